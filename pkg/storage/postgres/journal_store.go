package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/geniusharmony/harmony/pkg/storage"
)

const (
	putJournalQuery = `
INSERT INTO harmony.mutation_journal (
  id, mutation_id, date_added, command, entity_kind, entity_id, actor_id, event, error_message
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

	listJournalByMutationQuery = `
SELECT
  id::text, mutation_id::text, date_added, command, entity_kind, entity_id, actor_id, event, error_message
FROM harmony.mutation_journal
WHERE mutation_id = $1
ORDER BY date_added ASC
`

	listJournalByEntityQuery = `
SELECT
  id::text, mutation_id::text, date_added, command, entity_kind, entity_id, actor_id, event, error_message
FROM harmony.mutation_journal
WHERE entity_kind = $1 AND entity_id = $2
ORDER BY date_added ASC
`

	purgeJournalQuery = `DELETE FROM harmony.mutation_journal WHERE date_added < $1`
)

func (a *Adapter) PutJournal(ctx context.Context, record storage.JournalRecord) error {
	if err := a.requirePreparedStatements(); err != nil {
		return err
	}

	id := record.ID
	if id == "" {
		id = uuid.NewString()
	}

	dateAdded := record.DateAdded
	if dateAdded.IsZero() {
		dateAdded = time.Now().UTC()
	}

	var errorMessage sql.NullString
	if record.ErrorMessage != "" {
		errorMessage = sql.NullString{String: record.ErrorMessage, Valid: true}
	}

	_, err := a.stmts.putJournal.ExecContext(
		ctx,
		id,
		record.MutationID,
		dateAdded,
		record.Command,
		record.EntityKind,
		record.EntityID,
		record.ActorID,
		string(record.Event),
		errorMessage,
	)
	return err
}

func (a *Adapter) ListJournalByMutation(ctx context.Context, mutationID string) ([]storage.JournalRecord, error) {
	if err := a.requirePreparedStatements(); err != nil {
		return nil, err
	}

	rows, err := a.stmts.listJournalByMutation.QueryContext(ctx, mutationID)
	if err != nil {
		return nil, err
	}
	return scanJournalRows(rows)
}

func (a *Adapter) ListJournalByEntity(ctx context.Context, kind string, id int64) ([]storage.JournalRecord, error) {
	if err := a.requirePreparedStatements(); err != nil {
		return nil, err
	}

	rows, err := a.stmts.listJournalByEntity.QueryContext(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	return scanJournalRows(rows)
}

func (a *Adapter) PurgeJournal(ctx context.Context, before time.Time) (int64, error) {
	if err := a.requirePreparedStatements(); err != nil {
		return 0, err
	}

	result, err := a.stmts.purgeJournal.ExecContext(ctx, before.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanJournalRows(rows *sql.Rows) ([]storage.JournalRecord, error) {
	defer rows.Close()

	records := []storage.JournalRecord{}
	for rows.Next() {
		record, err := scanJournal(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func scanJournal(s scanner) (storage.JournalRecord, error) {
	var (
		record       storage.JournalRecord
		event        string
		errorMessage sql.NullString
	)

	if err := s.Scan(
		&record.ID,
		&record.MutationID,
		&record.DateAdded,
		&record.Command,
		&record.EntityKind,
		&record.EntityID,
		&record.ActorID,
		&event,
		&errorMessage,
	); err != nil {
		return storage.JournalRecord{}, err
	}

	record.DateAdded = record.DateAdded.UTC()
	record.Event = storage.JournalEvent(event)
	if errorMessage.Valid {
		record.ErrorMessage = errorMessage.String
	}
	return record, nil
}
