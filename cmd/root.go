package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/geniusharmony/harmony"
)

var BuildVersion = "dev"

const envPrefix = "HARMONY"

var settings = viper.New()

var rootCmd = &cobra.Command{
	Use:           "harmony",
	Short:         "Genius.Harmony CLI",
	Long:          "Command line client for the Genius.Harmony project manager: session, permissions, kanban and notifications.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadSettings(settings)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file. Defaults to ./harmony.yaml then $XDG_CONFIG_HOME/harmony/harmony.yaml.")
	flags.String("api-url", "", "Backend base URL. Can also be set via HARMONY_API_URL.")
	flags.String("profile", "", "Session profile name. Can also be set via HARMONY_PROFILE.")
	flags.String("storage", "", "Session storage backend: none, memory, file or postgres.")
	flags.String("cache", "", "User cache backend: none, memory or redis.")
	flags.CountP("verbose", "v", "Log requests and lifecycle events to stderr. Repeat for more detail.")

	_ = settings.BindPFlag("config", flags.Lookup("config"))
	_ = settings.BindPFlag("api.url", flags.Lookup("api-url"))
	_ = settings.BindPFlag("profile", flags.Lookup("profile"))
	_ = settings.BindPFlag("storage.backend", flags.Lookup("storage"))
	_ = settings.BindPFlag("cache.backend", flags.Lookup("cache"))
	_ = settings.BindPFlag("verbose", flags.Lookup("verbose"))

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of the Harmony CLI",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("%s\n", BuildVersion)
		},
	})
}

func Execute() error {
	return rootCmd.Execute()
}

// loadSettings layers flags over HARMONY_* env vars over the config file over
// defaults. A .env file in the working directory seeds the environment.
func loadSettings(v *viper.Viper) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("storage.postgres.dsn", "HARMONY_STORAGE_POSTGRES_DSN", "DATABASE_URL")
	_ = v.BindEnv("cache.redis.url", "HARMONY_CACHE_REDIS_URL", "REDIS_URL")

	v.SetDefault("api.url", "http://127.0.0.1:8000")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("storage.backend", string(harmony.StorageBackendFile))
	v.SetDefault("storage.file.dir", defaultStateDir())
	v.SetDefault("cache.backend", string(harmony.CacheBackendMemory))
	v.SetDefault("cache.redis.namespace", "harmony")

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("harmony")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "harmony"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "harmony")
	}
	return ".harmony"
}

// clientConfig maps the layered settings onto the library configuration.
// cache.redis.url, when set, overrides the individual redis keys.
func clientConfig(v *viper.Viper) (harmony.Config, error) {
	redis := harmony.RedisCacheConfig{
		Address:   v.GetString("cache.redis.address"),
		Username:  v.GetString("cache.redis.username"),
		Password:  v.GetString("cache.redis.password"),
		Database:  v.GetInt("cache.redis.db"),
		Namespace: v.GetString("cache.redis.namespace"),
	}
	if raw := v.GetString("cache.redis.url"); raw != "" {
		opts, err := goredis.ParseURL(raw)
		if err != nil {
			return harmony.Config{}, fmt.Errorf("parse cache.redis.url: %w", err)
		}
		redis.Address = opts.Addr
		redis.Username = opts.Username
		redis.Password = opts.Password
		redis.Database = opts.DB
	}

	return harmony.Config{
		Logger:  harmony.NewLogger(os.Stderr, v.GetInt("verbose")),
		Profile: v.GetString("profile"),
		Runtime: harmony.RuntimeConfig{
			API: harmony.APIConfig{
				BaseURL:   v.GetString("api.url"),
				Timeout:   v.GetDuration("api.timeout"),
				UserAgent: "harmony-cli/" + BuildVersion,
			},
			Storage: harmony.StorageConfig{
				Backend: harmony.StorageBackend(v.GetString("storage.backend")),
				File:    harmony.FileStorageConfig{Dir: v.GetString("storage.file.dir")},
				Postgres: harmony.PostgresConfig{
					DSN:          v.GetString("storage.postgres.dsn"),
					MaxOpenConns: v.GetInt("storage.postgres.max_open_conns"),
					MaxIdleConns: v.GetInt("storage.postgres.max_idle_conns"),
				},
			},
			Cache: harmony.CacheConfig{
				Backend: harmony.CacheBackend(v.GetString("cache.backend")),
				Redis:   redis,
			},
		},
	}, nil
}

// withClient builds a client, restores the persisted session and runs fn.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, client *harmony.Client) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	config, err := clientConfig(settings)
	if err != nil {
		return err
	}
	client, err := harmony.NewContext(ctx, config)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			cmd.PrintErrf("warning: failed to close client cleanly: %v\n", closeErr)
		}
	}()

	if err := client.Load(ctx); err != nil {
		return err
	}
	return fn(ctx, client)
}

// withSession is withClient for commands that need a logged in user.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, client *harmony.Client) error) error {
	return withClient(cmd, func(ctx context.Context, client *harmony.Client) error {
		if !client.Session().Authenticated() {
			return errors.New("not logged in: run `harmony login` first")
		}
		return fn(ctx, client)
	})
}
