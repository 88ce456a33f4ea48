package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/geniusharmony/harmony/pkg/cache"
	"github.com/geniusharmony/harmony/pkg/model"
)

const defaultNamespace = "harmony"

var (
	ErrInvalidTTL = errors.New("redis cache: ttl must be greater than zero")
	ErrNilClient  = errors.New("redis cache: client is nil")
)

type Config struct {
	Address     string
	Username    string
	Password    string
	Database    int
	Namespace   string
	DialTimeout time.Duration
}

// Commands is the subset of the go-redis client the adapter relies on.
type Commands interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

type Adapter struct {
	client    Commands
	namespace string
	closer    func() error
}

var _ cache.UserCache = (*Adapter)(nil)
var _ cache.PoleCache = (*Adapter)(nil)

// NewAdapter dials redis with config. The connection is lazy; Ping reports
// reachability.
func NewAdapter(config Config) *Adapter {
	client := goredis.NewClient(&goredis.Options{
		Addr:        config.Address,
		Username:    config.Username,
		Password:    config.Password,
		DB:          config.Database,
		DialTimeout: config.DialTimeout,
	})

	adapter := NewAdapterWithClient(client, config.Namespace)
	adapter.closer = client.Close
	return adapter
}

func NewAdapterWithClient(client Commands, namespace string) *Adapter {
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &Adapter{client: client, namespace: namespace}
}

func (a *Adapter) Ping(ctx context.Context) error {
	pinger, ok := a.client.(interface {
		Ping(ctx context.Context) *goredis.StatusCmd
	})
	if !ok {
		return nil
	}
	return pinger.Ping(ctx).Err()
}

func (a *Adapter) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer()
}

func (a *Adapter) userKey(key string) string {
	return a.namespace + ":user:" + key
}

func (a *Adapter) poleKey(name string) string {
	return a.namespace + ":pole:" + name
}

func (a *Adapter) SetUser(ctx context.Context, key string, snapshot cache.UserSnapshot, ttl time.Duration) error {
	if err := a.validate(key, ttl); err != nil {
		return err
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("redis cache: encode user snapshot: %w", err)
	}
	return a.client.Set(ctx, a.userKey(key), payload, ttl).Err()
}

func (a *Adapter) GetUser(ctx context.Context, key string) (cache.UserSnapshot, bool, error) {
	if a.client == nil {
		return cache.UserSnapshot{}, false, ErrNilClient
	}

	raw, err := a.client.Get(ctx, a.userKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return cache.UserSnapshot{}, false, nil
	}
	if err != nil {
		return cache.UserSnapshot{}, false, err
	}

	var snapshot cache.UserSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return cache.UserSnapshot{}, false, fmt.Errorf("redis cache: decode user snapshot: %w", err)
	}
	return snapshot, true, nil
}

func (a *Adapter) DeleteUser(ctx context.Context, key string) error {
	if a.client == nil {
		return ErrNilClient
	}
	return a.client.Del(ctx, a.userKey(key)).Err()
}

func (a *Adapter) SetPoleID(ctx context.Context, name string, id model.PoleID, ttl time.Duration) error {
	if err := a.validate(name, ttl); err != nil {
		return err
	}
	return a.client.Set(ctx, a.poleKey(name), strconv.FormatInt(int64(id), 10), ttl).Err()
}

func (a *Adapter) GetPoleID(ctx context.Context, name string) (model.PoleID, bool, error) {
	if a.client == nil {
		return 0, false, ErrNilClient
	}

	id, err := a.client.Get(ctx, a.poleKey(name)).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return model.PoleID(id), true, nil
}

func (a *Adapter) validate(key string, ttl time.Duration) error {
	if a.client == nil {
		return ErrNilClient
	}
	if key == "" {
		return errors.New("redis cache: key is required")
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}
