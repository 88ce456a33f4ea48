package harmony

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	memorycache "github.com/geniusharmony/harmony/pkg/cache/memory"
	rediscache "github.com/geniusharmony/harmony/pkg/cache/redis"
	filestorage "github.com/geniusharmony/harmony/pkg/storage/file"
	memorystorage "github.com/geniusharmony/harmony/pkg/storage/memory"
	"github.com/geniusharmony/harmony/pkg/storage/postgres"
)

type StorageBackend string

const (
	StorageBackendNone     StorageBackend = "none"
	StorageBackendMemory   StorageBackend = "memory"
	StorageBackendFile     StorageBackend = "file"
	StorageBackendPostgres StorageBackend = "postgres"
)

type CacheBackend string

const (
	CacheBackendNone   CacheBackend = "none"
	CacheBackendMemory CacheBackend = "memory"
	CacheBackendRedis  CacheBackend = "redis"
)

type RuntimeConfig struct {
	API     APIConfig
	Storage StorageConfig
	Cache   CacheConfig
}

type APIConfig struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
}

type StorageConfig struct {
	Backend  StorageBackend
	File     FileStorageConfig
	Postgres PostgresConfig
}

type FileStorageConfig struct {
	Dir string
}

type PostgresConfig struct {
	DriverName      string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	OpenDB          func(driverName string, dsn string) (*sql.DB, error)
}

type CacheConfig struct {
	Backend CacheBackend
	Redis   RedisCacheConfig
}

type RedisCacheConfig struct {
	Address     string
	Username    string
	Password    string
	Database    int
	Namespace   string
	DialTimeout time.Duration
}

func (c Config) initialize(ctx context.Context) (func() error, Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	config := c
	config.Logger = resolveLogger(config.Logger)

	closeStorage, config, err := initializeStorage(ctx, config)
	if err != nil {
		return nil, Config{}, err
	}

	closeCache, config, err := initializeCache(config)
	if err != nil {
		_ = closeStorage()
		return nil, Config{}, err
	}

	return joinClosers(closeStorage, closeCache), config, nil
}

func initializeStorage(ctx context.Context, config Config) (func() error, Config, error) {
	backend := config.Runtime.Storage.Backend
	if backend == "" {
		backend = StorageBackendNone
	}

	switch backend {
	case StorageBackendNone:
		return noopCloser, config, nil
	case StorageBackendMemory:
		return initializeMemoryStorage(config)
	case StorageBackendFile:
		return initializeFileStorage(config)
	case StorageBackendPostgres:
		return initializePostgres(ctx, config)
	default:
		return nil, Config{}, fmt.Errorf("harmony config: unsupported runtime.storage.backend %q", backend)
	}
}

func initializeCache(config Config) (func() error, Config, error) {
	backend := config.Runtime.Cache.Backend
	if backend == "" {
		backend = CacheBackendNone
	}

	switch backend {
	case CacheBackendNone:
		return noopCloser, config, nil
	case CacheBackendMemory:
		return initializeMemoryCache(config)
	case CacheBackendRedis:
		return initializeRedisCache(config)
	default:
		return nil, Config{}, fmt.Errorf("harmony config: unsupported runtime.cache.backend %q", backend)
	}
}

func initializeMemoryStorage(config Config) (func() error, Config, error) {
	adapter := memorystorage.NewAdapter()

	if config.Store.Tokens == nil {
		config.Store.Tokens = adapter
	}
	if config.Store.Journal == nil {
		config.Store.Journal = adapter
	}

	config.Logger.V(1).Info("initialized memory storage backend")
	return noopCloser, config, nil
}

func initializeFileStorage(config Config) (func() error, Config, error) {
	dir := config.Runtime.Storage.File.Dir
	if dir == "" {
		return nil, Config{}, fmt.Errorf("harmony config: runtime.storage.file.dir is required")
	}

	adapter, err := filestorage.NewAdapter(dir)
	if err != nil {
		return nil, Config{}, fmt.Errorf("harmony config: failed to initialize file storage: %w", err)
	}

	if config.Store.Tokens == nil {
		config.Store.Tokens = adapter
	}
	if config.Store.Journal == nil {
		config.Store.Journal = adapter
	}

	config.Logger.V(1).Info("initialized file storage backend", "dir", dir)
	return noopCloser, config, nil
}

func initializeMemoryCache(config Config) (func() error, Config, error) {
	adapter := memorycache.NewAdapter()

	if config.Cache.User == nil {
		config.Cache.User = adapter
	}
	if config.Cache.Pole == nil {
		config.Cache.Pole = adapter
	}

	config.Logger.V(1).Info("initialized memory cache backend")
	return noopCloser, config, nil
}

func initializeRedisCache(config Config) (func() error, Config, error) {
	redisConfig := config.Runtime.Cache.Redis
	if redisConfig.Address == "" {
		return nil, Config{}, fmt.Errorf("harmony config: runtime.cache.redis.address is required")
	}
	if redisConfig.DialTimeout <= 0 {
		redisConfig.DialTimeout = 5 * time.Second
	}

	adapter := rediscache.NewAdapter(rediscache.Config{
		Address:     redisConfig.Address,
		Username:    redisConfig.Username,
		Password:    redisConfig.Password,
		Database:    redisConfig.Database,
		Namespace:   redisConfig.Namespace,
		DialTimeout: redisConfig.DialTimeout,
	})

	if config.Cache.User == nil {
		config.Cache.User = adapter
	}
	if config.Cache.Pole == nil {
		config.Cache.Pole = adapter
	}

	config.Runtime.Cache.Redis = redisConfig
	config.Logger.V(1).Info("initialized redis cache backend", "address", redisConfig.Address, "database", redisConfig.Database, "namespace", redisConfig.Namespace)
	return adapter.Close, config, nil
}

func initializePostgres(ctx context.Context, config Config) (func() error, Config, error) {
	pgConfig := config.Runtime.Storage.Postgres.withDefaults()
	if pgConfig.DSN == "" {
		return nil, Config{}, fmt.Errorf("harmony config: runtime.storage.postgres.dsn is required")
	}

	db, err := pgConfig.open(ctx)
	if err != nil {
		return nil, Config{}, err
	}

	adapter, err := postgres.NewAdapter(db)
	if err != nil {
		_ = db.Close()
		return nil, Config{}, fmt.Errorf("harmony config: failed to initialize postgres adapter: %w", err)
	}

	if config.Store.Tokens == nil {
		config.Store.Tokens = adapter
	}
	if config.Store.Journal == nil {
		config.Store.Journal = adapter
	}

	config.Runtime.Storage.Postgres = pgConfig
	config.Logger.V(1).Info("initialized postgres storage backend", "driver", pgConfig.DriverName, "max_open_conns", pgConfig.MaxOpenConns)
	return func() error {
		return stderrors.Join(adapter.Close(), db.Close())
	}, config, nil
}

func (c PostgresConfig) withDefaults() PostgresConfig {
	if c.DriverName == "" {
		c.DriverName = "pgx"
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 5 * time.Second
	}
	if c.OpenDB == nil {
		c.OpenDB = sql.Open
	}
	return c
}

// open returns a pool that answered a ping within PingTimeout.
func (c PostgresConfig) open(ctx context.Context) (*sql.DB, error) {
	db, err := c.OpenDB(c.DriverName, c.DSN)
	if err != nil {
		return nil, fmt.Errorf("harmony config: failed to open postgres database: %w", err)
	}

	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		db.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(c.ConnMaxLifetime)
	}
	if c.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(c.ConnMaxIdleTime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, c.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("harmony config: failed to ping postgres database: %w", err)
	}
	return db, nil
}

func joinClosers(closers ...func() error) func() error {
	return func() error {
		var errs []error

		for i := len(closers) - 1; i >= 0; i-- {
			if closers[i] == nil {
				continue
			}
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}

		return stderrors.Join(errs...)
	}
}

func noopCloser() error {
	return nil
}
