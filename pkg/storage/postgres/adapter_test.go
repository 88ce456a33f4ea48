package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geniusharmony/harmony/pkg/storage"
)

type preparedMocks struct {
	putTokens             *sqlmock.ExpectedPrepare
	getTokens             *sqlmock.ExpectedPrepare
	deleteTokens          *sqlmock.ExpectedPrepare
	putJournal            *sqlmock.ExpectedPrepare
	listJournalByMutation *sqlmock.ExpectedPrepare
	listJournalByEntity   *sqlmock.ExpectedPrepare
	purgeJournal          *sqlmock.ExpectedPrepare
}

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock, preparedMocks) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var p preparedMocks
	p.putTokens = mock.ExpectPrepare("INSERT INTO harmony.session_token")
	p.getTokens = mock.ExpectPrepare("SELECT (.+) FROM harmony.session_token")
	p.deleteTokens = mock.ExpectPrepare("DELETE FROM harmony.session_token")
	p.putJournal = mock.ExpectPrepare("INSERT INTO harmony.mutation_journal")
	p.listJournalByMutation = mock.ExpectPrepare("WHERE mutation_id = \\$1")
	p.listJournalByEntity = mock.ExpectPrepare("WHERE entity_kind = \\$1 AND entity_id = \\$2")
	p.purgeJournal = mock.ExpectPrepare("DELETE FROM harmony.mutation_journal")

	adapter, err := NewAdapter(db)
	require.NoError(t, err)
	return adapter, mock, p
}

var journalColumns = []string{"id", "mutation_id", "date_added", "command", "entity_kind", "entity_id", "actor_id", "event", "error_message"}

func TestNewAdapter_NilDB(t *testing.T) {
	_, err := NewAdapter(nil)
	assert.ErrorIs(t, err, ErrNilDB)
}

func TestNewAdapter_PrepareFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPrepare("INSERT INTO harmony.session_token")
	mock.ExpectPrepare("SELECT (.+) FROM harmony.session_token").WillReturnError(errors.New("relation does not exist"))

	_, err = NewAdapter(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prepare get tokens statement")
}

func TestUninitializedAdapter(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	a := &Adapter{db: db}
	_, err = a.GetTokens(context.Background(), "default")
	assert.ErrorIs(t, err, ErrAdapterNotInitialized)
}

func TestPutTokens(t *testing.T) {
	adapter, mock, p := newMockAdapter(t)

	expires := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	p.putTokens.ExpectExec().
		WithArgs("8a0f7c52-6a3b-4d0c-9d55-4c8f3f3b8c11", "default", "alice", "access", "refresh", sqlmock.AnyArg(), sqlmock.AnyArg(), expires).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.PutTokens(context.Background(), storage.TokenRecord{
		ID:           "8a0f7c52-6a3b-4d0c-9d55-4c8f3f3b8c11",
		Profile:      "default",
		Username:     "alice",
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    &expires,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Error(t, adapter.PutTokens(context.Background(), storage.TokenRecord{AccessToken: "x"}))
}

func TestGetTokens(t *testing.T) {
	adapter, mock, p := newMockAdapter(t)

	columns := []string{"id", "profile", "username", "access_token", "refresh_token", "date_added", "date_modified", "expires_at"}
	added := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	p.getTokens.ExpectQuery().
		WithArgs("default").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("8a0f7c52-6a3b-4d0c-9d55-4c8f3f3b8c11", "default", "alice", "access", "refresh", added, nil, nil))
	p.getTokens.ExpectQuery().
		WithArgs("other").
		WillReturnRows(sqlmock.NewRows(columns))
	p.getTokens.ExpectQuery().
		WithArgs("broken").
		WillReturnError(sql.ErrConnDone)

	record, err := adapter.GetTokens(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, storage.TokenRecord{
		ID:           "8a0f7c52-6a3b-4d0c-9d55-4c8f3f3b8c11",
		Profile:      "default",
		Username:     "alice",
		AccessToken:  "access",
		RefreshToken: "refresh",
		DateAdded:    added,
	}, record)

	_, err = adapter.GetTokens(context.Background(), "other")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = adapter.GetTokens(context.Background(), "broken")
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteTokens(t *testing.T) {
	adapter, mock, p := newMockAdapter(t)
	p.deleteTokens.ExpectExec().WithArgs("default").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, adapter.DeleteTokens(context.Background(), "default"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutJournal(t *testing.T) {
	adapter, mock, p := newMockAdapter(t)

	p.putJournal.ExpectExec().
		WithArgs(sqlmock.AnyArg(), "5d3a2f8e-1111-4c3b-9e0f-000000000001", sqlmock.AnyArg(), "move_task", "tache", int64(42), int64(7), "reverted", "PATCH /taches/42/: 500").
		WillReturnResult(sqlmock.NewResult(0, 1))
	p.putJournal.ExpectExec().
		WithArgs(sqlmock.AnyArg(), "5d3a2f8e-1111-4c3b-9e0f-000000000001", sqlmock.AnyArg(), "move_task", "tache", int64(42), int64(7), "applied", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	require.NoError(t, adapter.PutJournal(ctx, storage.JournalRecord{
		MutationID:   "5d3a2f8e-1111-4c3b-9e0f-000000000001",
		Command:      "move_task",
		EntityKind:   "tache",
		EntityID:     42,
		ActorID:      7,
		Event:        storage.JournalEventReverted,
		ErrorMessage: "PATCH /taches/42/: 500",
	}))
	require.NoError(t, adapter.PutJournal(ctx, storage.JournalRecord{
		MutationID: "5d3a2f8e-1111-4c3b-9e0f-000000000001",
		Command:    "move_task",
		EntityKind: "tache",
		EntityID:   42,
		ActorID:    7,
		Event:      storage.JournalEventApplied,
	}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListJournal(t *testing.T) {
	adapter, mock, p := newMockAdapter(t)

	at := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	p.listJournalByMutation.ExpectQuery().
		WithArgs("m-1").
		WillReturnRows(sqlmock.NewRows(journalColumns).
			AddRow("j-1", "m-1", at, "mark_read", "notification", int64(3), int64(7), "applied", nil).
			AddRow("j-2", "m-1", at.Add(time.Second), "mark_read", "notification", int64(3), int64(7), "committed", nil))
	p.listJournalByEntity.ExpectQuery().
		WithArgs("notification", int64(3)).
		WillReturnRows(sqlmock.NewRows(journalColumns))

	ctx := context.Background()
	records, err := adapter.ListJournalByMutation(ctx, "m-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, storage.JournalEventCommitted, records[1].Event)
	assert.Equal(t, int64(3), records[0].EntityID)

	empty, err := adapter.ListJournalByEntity(ctx, "notification", 3)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeJournal(t *testing.T) {
	adapter, mock, p := newMockAdapter(t)

	before := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p.purgeJournal.ExpectExec().WithArgs(before).WillReturnResult(sqlmock.NewResult(0, 12))

	n, err := adapter.PurgeJournal(context.Background(), before)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
