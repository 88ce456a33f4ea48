package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/geniusharmony/harmony/pkg/cache"
	"github.com/geniusharmony/harmony/pkg/model"
)

var (
	ErrInvalidTTL = errors.New("memory cache: ttl must be greater than zero")
)

type userEntry struct {
	snapshot cache.UserSnapshot
	expires  time.Time
}

type poleEntry struct {
	id      model.PoleID
	expires time.Time
}

type Adapter struct {
	mu          sync.RWMutex
	now         func() time.Time
	userEntries map[string]userEntry
	poleEntries map[string]poleEntry
}

var _ cache.UserCache = (*Adapter)(nil)
var _ cache.PoleCache = (*Adapter)(nil)

func NewAdapter() *Adapter {
	return &Adapter{
		now:         func() time.Time { return time.Now().UTC() },
		userEntries: map[string]userEntry{},
		poleEntries: map[string]poleEntry{},
	}
}

func (a *Adapter) SetUser(ctx context.Context, key string, snapshot cache.UserSnapshot, ttl time.Duration) error {
	if err := validateSetInput(key, ttl); err != nil {
		return err
	}

	a.mu.Lock()
	a.userEntries[key] = userEntry{
		snapshot: cloneSnapshot(snapshot),
		expires:  a.now().Add(ttl),
	}
	a.mu.Unlock()
	return nil
}

func (a *Adapter) GetUser(ctx context.Context, key string) (cache.UserSnapshot, bool, error) {
	now := a.now()

	a.mu.RLock()
	entry, ok := a.userEntries[key]
	a.mu.RUnlock()
	if !ok {
		return cache.UserSnapshot{}, false, nil
	}

	if now.After(entry.expires) {
		a.mu.Lock()
		delete(a.userEntries, key)
		a.mu.Unlock()
		return cache.UserSnapshot{}, false, nil
	}

	return cloneSnapshot(entry.snapshot), true, nil
}

func (a *Adapter) DeleteUser(ctx context.Context, key string) error {
	a.mu.Lock()
	delete(a.userEntries, key)
	a.mu.Unlock()
	return nil
}

func (a *Adapter) SetPoleID(ctx context.Context, name string, id model.PoleID, ttl time.Duration) error {
	if err := validateSetInput(name, ttl); err != nil {
		return err
	}

	a.mu.Lock()
	a.poleEntries[name] = poleEntry{id: id, expires: a.now().Add(ttl)}
	a.mu.Unlock()
	return nil
}

func (a *Adapter) GetPoleID(ctx context.Context, name string) (model.PoleID, bool, error) {
	now := a.now()

	a.mu.RLock()
	entry, ok := a.poleEntries[name]
	a.mu.RUnlock()
	if !ok {
		return 0, false, nil
	}

	if now.After(entry.expires) {
		a.mu.Lock()
		delete(a.poleEntries, name)
		a.mu.Unlock()
		return 0, false, nil
	}

	return entry.id, true, nil
}

func validateSetInput(key string, ttl time.Duration) error {
	if key == "" {
		return errors.New("memory cache: key is required")
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}

func cloneSnapshot(snapshot cache.UserSnapshot) cache.UserSnapshot {
	snapshot.User = *snapshot.User.Clone()
	return snapshot
}
