package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/geniusharmony/harmony/pkg/storage"
)

var ErrMissingProfile = errors.New("memory storage: profile is required")

type Adapter struct {
	mu      sync.RWMutex
	tokens  map[string]storage.TokenRecord
	journal []storage.JournalRecord
}

var _ storage.Store = (*Adapter)(nil)

func NewAdapter() *Adapter {
	return &Adapter{tokens: map[string]storage.TokenRecord{}}
}

func (a *Adapter) PutTokens(ctx context.Context, record storage.TokenRecord) error {
	if record.Profile == "" {
		return ErrMissingProfile
	}

	now := time.Now().UTC()
	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.tokens[record.Profile]; ok {
		record.ID = existing.ID
		record.DateAdded = existing.DateAdded
		record.DateModified = &now
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.DateAdded.IsZero() {
		record.DateAdded = now
	}
	a.tokens[record.Profile] = cloneToken(record)
	return nil
}

func (a *Adapter) GetTokens(ctx context.Context, profile string) (storage.TokenRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	record, ok := a.tokens[profile]
	if !ok {
		return storage.TokenRecord{}, storage.ErrNotFound
	}
	return cloneToken(record), nil
}

func (a *Adapter) DeleteTokens(ctx context.Context, profile string) error {
	a.mu.Lock()
	delete(a.tokens, profile)
	a.mu.Unlock()
	return nil
}

func (a *Adapter) PutJournal(ctx context.Context, record storage.JournalRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.DateAdded.IsZero() {
		record.DateAdded = time.Now().UTC()
	}

	a.mu.Lock()
	a.journal = append(a.journal, record)
	a.mu.Unlock()
	return nil
}

func (a *Adapter) ListJournalByMutation(ctx context.Context, mutationID string) ([]storage.JournalRecord, error) {
	return a.filterJournal(func(r storage.JournalRecord) bool {
		return r.MutationID == mutationID
	}), nil
}

func (a *Adapter) ListJournalByEntity(ctx context.Context, kind string, id int64) ([]storage.JournalRecord, error) {
	return a.filterJournal(func(r storage.JournalRecord) bool {
		return r.EntityKind == kind && r.EntityID == id
	}), nil
}

func (a *Adapter) PurgeJournal(ctx context.Context, before time.Time) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	kept := a.journal[:0]
	var purged int64
	for _, r := range a.journal {
		if r.DateAdded.Before(before) {
			purged++
			continue
		}
		kept = append(kept, r)
	}
	a.journal = kept
	return purged, nil
}

func (a *Adapter) filterJournal(match func(storage.JournalRecord) bool) []storage.JournalRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := []storage.JournalRecord{}
	for _, r := range a.journal {
		if match(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DateAdded.Before(out[j].DateAdded)
	})
	return out
}

func cloneToken(record storage.TokenRecord) storage.TokenRecord {
	if record.DateModified != nil {
		t := *record.DateModified
		record.DateModified = &t
	}
	if record.ExpiresAt != nil {
		t := *record.ExpiresAt
		record.ExpiresAt = &t
	}
	return record
}
