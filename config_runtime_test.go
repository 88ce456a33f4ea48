package harmony

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memorycache "github.com/geniusharmony/harmony/pkg/cache/memory"
	rediscache "github.com/geniusharmony/harmony/pkg/cache/redis"
	"github.com/geniusharmony/harmony/pkg/storage"
	filestorage "github.com/geniusharmony/harmony/pkg/storage/file"
	memorystorage "github.com/geniusharmony/harmony/pkg/storage/memory"
	"github.com/geniusharmony/harmony/pkg/storage/postgres"
)

func TestInitializeDefaultsToNoBackends(t *testing.T) {
	closeResource, config, err := Config{}.initialize(context.Background())
	require.NoError(t, err)
	defer func() { require.NoError(t, closeResource()) }()

	assert.Nil(t, config.Store.Tokens)
	assert.Nil(t, config.Store.Journal)
	assert.Nil(t, config.Cache.User)
	assert.Nil(t, config.Cache.Pole)
	assert.False(t, config.Logger.Enabled(), "logging is off unless a logger is passed")
	assert.NotPanics(t, func() { config.Logger.Info("dropped", "key", "value") })
}

func TestInitializeUnsupportedBackends(t *testing.T) {
	_, _, err := Config{Runtime: RuntimeConfig{Storage: StorageConfig{Backend: "mongo"}}}.initialize(context.Background())
	assert.ErrorContains(t, err, `unsupported runtime.storage.backend "mongo"`)

	_, _, err = Config{Runtime: RuntimeConfig{Cache: CacheConfig{Backend: "memcached"}}}.initialize(context.Background())
	assert.ErrorContains(t, err, `unsupported runtime.cache.backend "memcached"`)
}

func TestInitializeMemoryBackends(t *testing.T) {
	closeResource, config, err := Config{Runtime: RuntimeConfig{
		Storage: StorageConfig{Backend: StorageBackendMemory},
		Cache:   CacheConfig{Backend: CacheBackendMemory},
	}}.initialize(context.Background())
	require.NoError(t, err)
	defer func() { require.NoError(t, closeResource()) }()

	assert.IsType(t, &memorystorage.Adapter{}, config.Store.Tokens)
	assert.Same(t, config.Store.Tokens, config.Store.Journal)
	assert.IsType(t, &memorycache.Adapter{}, config.Cache.User)
	assert.Same(t, config.Cache.User, config.Cache.Pole)
}

func TestInitializeKeepsInjectedStores(t *testing.T) {
	injected := memorystorage.NewAdapter()

	closeResource, config, err := Config{
		Store:   storage.Dependencies{Tokens: injected},
		Runtime: RuntimeConfig{Storage: StorageConfig{Backend: StorageBackendMemory}},
	}.initialize(context.Background())
	require.NoError(t, err)
	defer func() { _ = closeResource() }()

	assert.Same(t, injected, config.Store.Tokens)
	assert.NotSame(t, injected, config.Store.Journal)
}

func TestInitializeFileStorage(t *testing.T) {
	_, _, err := Config{Runtime: RuntimeConfig{Storage: StorageConfig{Backend: StorageBackendFile}}}.initialize(context.Background())
	assert.ErrorContains(t, err, "runtime.storage.file.dir is required")

	closeResource, config, err := Config{Runtime: RuntimeConfig{Storage: StorageConfig{
		Backend: StorageBackendFile,
		File:    FileStorageConfig{Dir: t.TempDir()},
	}}}.initialize(context.Background())
	require.NoError(t, err)
	defer func() { _ = closeResource() }()

	assert.IsType(t, &filestorage.Adapter{}, config.Store.Tokens)
}

func TestInitializeRedisCache(t *testing.T) {
	_, _, err := Config{Runtime: RuntimeConfig{Cache: CacheConfig{Backend: CacheBackendRedis}}}.initialize(context.Background())
	assert.ErrorContains(t, err, "runtime.cache.redis.address is required")

	closeResource, config, err := Config{Runtime: RuntimeConfig{Cache: CacheConfig{
		Backend: CacheBackendRedis,
		Redis:   RedisCacheConfig{Address: "127.0.0.1:6379", Namespace: "test"},
	}}}.initialize(context.Background())
	require.NoError(t, err)

	assert.IsType(t, &rediscache.Adapter{}, config.Cache.User)
	assert.Greater(t, config.Runtime.Cache.Redis.DialTimeout.Seconds(), 0.0)
	assert.NoError(t, closeResource())
}

func TestInitializePostgres(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing()
	mock.ExpectPrepare("INSERT INTO harmony.session_token")
	mock.ExpectPrepare("SELECT (.+) FROM harmony.session_token")
	mock.ExpectPrepare("DELETE FROM harmony.session_token")
	mock.ExpectPrepare("INSERT INTO harmony.mutation_journal")
	mock.ExpectPrepare("WHERE mutation_id = \\$1")
	mock.ExpectPrepare("WHERE entity_kind = \\$1 AND entity_id = \\$2")
	mock.ExpectPrepare("DELETE FROM harmony.mutation_journal")

	var gotDriver, gotDSN string
	closeResource, config, err := Config{Runtime: RuntimeConfig{Storage: StorageConfig{
		Backend: StorageBackendPostgres,
		Postgres: PostgresConfig{
			DSN:          "postgres://harmony@localhost/harmony",
			MaxOpenConns: 4,
			OpenDB: func(driverName, dsn string) (*sql.DB, error) {
				gotDriver, gotDSN = driverName, dsn
				return db, nil
			},
		},
	}}}.initialize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "pgx", gotDriver)
	assert.Equal(t, "postgres://harmony@localhost/harmony", gotDSN)
	assert.IsType(t, &postgres.Adapter{}, config.Store.Tokens)
	assert.Same(t, config.Store.Tokens, config.Store.Journal)
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectClose()
	require.NoError(t, closeResource())
}

func TestInitializePostgresFailures(t *testing.T) {
	_, _, err := Config{Runtime: RuntimeConfig{Storage: StorageConfig{Backend: StorageBackendPostgres}}}.initialize(context.Background())
	assert.ErrorContains(t, err, "runtime.storage.postgres.dsn is required")

	_, _, err = Config{Runtime: RuntimeConfig{Storage: StorageConfig{
		Backend: StorageBackendPostgres,
		Postgres: PostgresConfig{
			DSN: "postgres://nowhere",
			OpenDB: func(string, string) (*sql.DB, error) {
				return nil, errors.New("driver missing")
			},
		},
	}}}.initialize(context.Background())
	assert.ErrorContains(t, err, "failed to open postgres database")

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectClose()

	_, _, err = Config{Runtime: RuntimeConfig{Storage: StorageConfig{
		Backend: StorageBackendPostgres,
		Postgres: PostgresConfig{
			DSN:    "postgres://down",
			OpenDB: func(string, string) (*sql.DB, error) { return db, nil },
		},
	}}}.initialize(context.Background())
	assert.ErrorContains(t, err, "failed to ping postgres database")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJoinClosersRunsInReverse(t *testing.T) {
	var order []string
	first := func() error {
		order = append(order, "first")
		return nil
	}
	second := func() error {
		order = append(order, "second")
		return errors.New("boom")
	}

	err := joinClosers(first, nil, second)()
	assert.EqualError(t, err, "boom")
	assert.Equal(t, []string{"second", "first"}, order)
}
