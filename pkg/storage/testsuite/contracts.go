// Package testsuite holds behavior checks every storage adapter must pass.
package testsuite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geniusharmony/harmony/pkg/storage"
)

func RunTokenStore(t *testing.T, store storage.TokenStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing profile", func(t *testing.T) {
		_, err := store.GetTokens(ctx, "nobody")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("put get replace delete", func(t *testing.T) {
		expires := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
		require.NoError(t, store.PutTokens(ctx, storage.TokenRecord{
			Profile:      "suite",
			Username:     "alice",
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresAt:    &expires,
		}))

		first, err := store.GetTokens(ctx, "suite")
		require.NoError(t, err)
		assert.NotEmpty(t, first.ID)
		assert.Equal(t, "alice", first.Username)
		assert.Equal(t, "access-1", first.AccessToken)
		require.NotNil(t, first.ExpiresAt)
		assert.True(t, expires.Equal(*first.ExpiresAt))

		require.NoError(t, store.PutTokens(ctx, storage.TokenRecord{
			Profile:      "suite",
			Username:     "alice",
			AccessToken:  "access-2",
			RefreshToken: "refresh-1",
		}))

		second, err := store.GetTokens(ctx, "suite")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID, "replacing tokens keeps the record id")
		assert.Equal(t, "access-2", second.AccessToken)
		assert.NotNil(t, second.DateModified)

		require.NoError(t, store.DeleteTokens(ctx, "suite"))
		_, err = store.GetTokens(ctx, "suite")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		require.NoError(t, store.DeleteTokens(ctx, "suite"), "deleting twice is not an error")
	})
}

func RunJournalStore(t *testing.T, store storage.JournalStore) {
	t.Helper()
	ctx := context.Background()

	mutationID := uuid.NewString()
	base := time.Now().UTC().Add(-time.Hour)
	events := []storage.JournalEvent{
		storage.JournalEventApplied,
		storage.JournalEventReverted,
	}
	for i, event := range events {
		require.NoError(t, store.PutJournal(ctx, storage.JournalRecord{
			MutationID: mutationID,
			DateAdded:  base.Add(time.Duration(i) * time.Second),
			Command:    "move_task",
			EntityKind: "tache",
			EntityID:   42,
			ActorID:    7,
			Event:      event,
		}))
	}
	require.NoError(t, store.PutJournal(ctx, storage.JournalRecord{
		MutationID: uuid.NewString(),
		Command:    "mark_read",
		EntityKind: "notification",
		EntityID:   42,
		Event:      storage.JournalEventCommitted,
	}))

	byMutation, err := store.ListJournalByMutation(ctx, mutationID)
	require.NoError(t, err)
	require.Len(t, byMutation, 2)
	assert.Equal(t, storage.JournalEventApplied, byMutation[0].Event)
	assert.Equal(t, storage.JournalEventReverted, byMutation[1].Event)
	assert.NotEmpty(t, byMutation[0].ID)

	byEntity, err := store.ListJournalByEntity(ctx, "tache", 42)
	require.NoError(t, err)
	assert.Len(t, byEntity, 2)

	none, err := store.ListJournalByMutation(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, none)

	purged, err := store.PurgeJournal(ctx, base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)

	byEntity, err = store.ListJournalByEntity(ctx, "notification", 42)
	require.NoError(t, err)
	assert.Len(t, byEntity, 1)
}
