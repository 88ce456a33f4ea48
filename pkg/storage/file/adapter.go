// Package file persists tokens and the mutation journal under a local
// directory, for single-user CLI installs without a database.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/geniusharmony/harmony/pkg/storage"
)

const (
	tokensFile  = "tokens.json"
	journalFile = "journal.jsonl"
)

var (
	ErrMissingDir     = errors.New("file storage: directory is required")
	ErrMissingProfile = errors.New("file storage: profile is required")
)

type Adapter struct {
	dir string
	mu  sync.Mutex
}

var _ storage.Store = (*Adapter)(nil)

func NewAdapter(dir string) (*Adapter, error) {
	if dir == "" {
		return nil, ErrMissingDir
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("file storage: create %s: %w", dir, err)
	}
	return &Adapter{dir: dir}, nil
}

func (a *Adapter) PutTokens(ctx context.Context, record storage.TokenRecord) error {
	if record.Profile == "" {
		return ErrMissingProfile
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	all, err := a.readTokens()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if existing, ok := all[record.Profile]; ok {
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
	all[record.Profile] = record

	return a.writeTokens(all)
}

func (a *Adapter) GetTokens(ctx context.Context, profile string) (storage.TokenRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	all, err := a.readTokens()
	if err != nil {
		return storage.TokenRecord{}, err
	}
	record, ok := all[profile]
	if !ok {
		return storage.TokenRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (a *Adapter) DeleteTokens(ctx context.Context, profile string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	all, err := a.readTokens()
	if err != nil {
		return err
	}
	if _, ok := all[profile]; !ok {
		return nil
	}
	delete(all, profile)
	return a.writeTokens(all)
}

func (a *Adapter) readTokens() (map[string]storage.TokenRecord, error) {
	raw, err := os.ReadFile(filepath.Join(a.dir, tokensFile))
	if errors.Is(err, os.ErrNotExist) {
		return map[string]storage.TokenRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file storage: read tokens: %w", err)
	}

	all := map[string]storage.TokenRecord{}
	if len(raw) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("file storage: decode tokens: %w", err)
	}
	return all, nil
}

func (a *Adapter) writeTokens(all map[string]storage.TokenRecord) error {
	raw, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("file storage: encode tokens: %w", err)
	}

	target := filepath.Join(a.dir, tokensFile)
	tmp, err := os.CreateTemp(a.dir, tokensFile+".*")
	if err != nil {
		return fmt.Errorf("file storage: write tokens: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file storage: write tokens: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file storage: write tokens: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file storage: write tokens: %w", err)
	}
	return os.Rename(tmp.Name(), target)
}

func (a *Adapter) PutJournal(ctx context.Context, record storage.JournalRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.DateAdded.IsZero() {
		record.DateAdded = time.Now().UTC()
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("file storage: encode journal: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(a.dir, journalFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("file storage: open journal: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("file storage: append journal: %w", err)
	}
	return f.Close()
}

func (a *Adapter) ListJournalByMutation(ctx context.Context, mutationID string) ([]storage.JournalRecord, error) {
	return a.filterJournal(func(r storage.JournalRecord) bool {
		return r.MutationID == mutationID
	})
}

func (a *Adapter) ListJournalByEntity(ctx context.Context, kind string, id int64) ([]storage.JournalRecord, error) {
	return a.filterJournal(func(r storage.JournalRecord) bool {
		return r.EntityKind == kind && r.EntityID == id
	})
}

func (a *Adapter) PurgeJournal(ctx context.Context, before time.Time) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	records, err := a.readJournal()
	if err != nil {
		return 0, err
	}

	var purged int64
	var buf []byte
	for _, r := range records {
		if r.DateAdded.Before(before) {
			purged++
			continue
		}
		line, err := json.Marshal(r)
		if err != nil {
			return 0, fmt.Errorf("file storage: encode journal: %w", err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	if purged == 0 {
		return 0, nil
	}

	if err := os.WriteFile(filepath.Join(a.dir, journalFile), buf, 0o600); err != nil {
		return 0, fmt.Errorf("file storage: rewrite journal: %w", err)
	}
	return purged, nil
}

func (a *Adapter) filterJournal(match func(storage.JournalRecord) bool) ([]storage.JournalRecord, error) {
	a.mu.Lock()
	records, err := a.readJournal()
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := []storage.JournalRecord{}
	for _, r := range records {
		if match(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DateAdded.Before(out[j].DateAdded)
	})
	return out, nil
}

func (a *Adapter) readJournal() ([]storage.JournalRecord, error) {
	f, err := os.Open(filepath.Join(a.dir, journalFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file storage: open journal: %w", err)
	}
	defer f.Close()

	var records []storage.JournalRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var r storage.JournalRecord
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("file storage: decode journal: %w", err)
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("file storage: read journal: %w", err)
	}
	return records, nil
}
