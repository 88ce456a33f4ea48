package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geniusharmony/harmony/pkg/cache"
	"github.com/geniusharmony/harmony/pkg/model"
)

type fakeCommands struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newFakeCommands() *fakeCommands {
	return &fakeCommands{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCommands) Get(ctx context.Context, key string) *goredis.StringCmd {
	if f.err != nil {
		return goredis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func (f *fakeCommands) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd {
	if f.err != nil {
		return goredis.NewStatusResult("", f.err)
	}
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	default:
		f.values[key] = fmt.Sprint(v)
	}
	f.ttls[key] = expiration
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeCommands) Del(ctx context.Context, keys ...string) *goredis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

func TestUserSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommands()
	a := NewAdapterWithClient(fake, "")

	pole := model.PoleID(1)
	snapshot := cache.UserSnapshot{
		User:     model.User{ID: 4, Username: "chef", Role: model.RoleChefPole, Pole: &pole},
		CachedAt: time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC),
	}
	require.NoError(t, a.SetUser(ctx, "abc", snapshot, 5*time.Minute))
	assert.Equal(t, 5*time.Minute, fake.ttls["harmony:user:abc"])

	got, ok, err := a.GetUser(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snapshot, got)

	require.NoError(t, a.DeleteUser(ctx, "abc"))
	_, ok, err = a.GetUser(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPoleIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := NewAdapterWithClient(newFakeCommands(), "test")

	require.NoError(t, a.SetPoleID(ctx, "Musique", 7, time.Hour))
	id, ok, err := a.GetPoleID(ctx, "Musique")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, model.PoleID(7), id)

	_, ok, err = a.GetPoleID(ctx, "Audiovisuel")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBackendErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommands()
	fake.err = errors.New("connection refused")
	a := NewAdapterWithClient(fake, "")

	_, ok, err := a.GetUser(ctx, "abc")
	assert.False(t, ok)
	assert.EqualError(t, err, "connection refused")
	assert.Error(t, a.SetUser(ctx, "abc", cache.UserSnapshot{}, time.Minute))
}

func TestValidation(t *testing.T) {
	ctx := context.Background()
	a := NewAdapterWithClient(newFakeCommands(), "")
	assert.ErrorIs(t, a.SetUser(ctx, "abc", cache.UserSnapshot{}, 0), ErrInvalidTTL)
	assert.Error(t, a.SetPoleID(ctx, "", 1, time.Minute))

	var empty Adapter
	_, _, err := empty.GetUser(ctx, "abc")
	assert.ErrorIs(t, err, ErrNilClient)
}

func TestAgainstRedisServer(t *testing.T) {
	addr := os.Getenv("HARMONY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("HARMONY_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	a := NewAdapter(Config{Address: addr, Namespace: "harmony-test", DialTimeout: time.Second})
	t.Cleanup(func() { _ = a.Close() })
	require.NoError(t, a.Ping(ctx))

	require.NoError(t, a.SetPoleID(ctx, "Audiovisuel", 3, time.Minute))
	id, ok, err := a.GetPoleID(ctx, "Audiovisuel")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, model.PoleID(3), id)
}
