package cache

import (
	"context"
	"time"

	"github.com/geniusharmony/harmony/pkg/model"
)

// UserSnapshot is a cached /auth/me result.
type UserSnapshot struct {
	User     model.User
	CachedAt time.Time
}

// UserCache stores user snapshots keyed by a hash of the access token, so a
// restored session can skip the round trip while the token is unchanged.
type UserCache interface {
	SetUser(ctx context.Context, key string, snapshot UserSnapshot, ttl time.Duration) error
	GetUser(ctx context.Context, key string) (UserSnapshot, bool, error)
	DeleteUser(ctx context.Context, key string) error
}

// PoleCache maps pole display names to ids.
type PoleCache interface {
	SetPoleID(ctx context.Context, name string, id model.PoleID, ttl time.Duration) error
	GetPoleID(ctx context.Context, name string) (model.PoleID, bool, error)
}

type Dependencies struct {
	User UserCache
	Pole PoleCache
}
