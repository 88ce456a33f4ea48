package cmd

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"
	"github.com/spf13/cobra"
)

const (
	defaultMigrationsTable = "harmony.schema_migrations"
	defaultMigrationsPath  = "pkg/storage/postgres/migrations"
)

type migrateOptions struct {
	DatabaseURL string
	Table       string
	Path        string
}

func init() {
	rootCmd.AddCommand(newMigrateCommand())
}

func newMigrateCommand() *cobra.Command {
	var opts migrateOptions

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres schema of the session and journal store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := migrateCmd.PersistentFlags()
	flags.StringVar(&opts.DatabaseURL, "database-url", "", "Postgres URL. Defaults to HARMONY_MIGRATE_DATABASE_URL, then DATABASE_URL.")
	flags.StringVar(&opts.Table, "migrations-table", defaultMigrationsTable, "Version table, as table or schema.table.")
	flags.StringVar(&opts.Path, "migrations-path", defaultMigrationsPath, "Directory or source URL of the migration files.")

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up [steps]",
		Short: "Apply pending migrations, or only the next steps",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 0
			if len(args) == 1 {
				n, err := parseSteps(args[0])
				if err != nil {
					return err
				}
				steps = n
			}
			return runMigration(cmd, opts, "apply", func(m *migrate.Migrate) error {
				if steps == 0 {
					return m.Up()
				}
				return m.Steps(steps)
			}, steps)
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down <steps>",
		Short: "Roll back the given number of migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := parseSteps(args[0])
			if err != nil {
				return err
			}
			return runMigration(cmd, opts, "roll back", func(m *migrate.Migrate) error {
				return m.Steps(-steps)
			}, steps)
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Set the recorded version without running migrations (-1 clears it)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil || version < -1 {
				return fmt.Errorf("invalid version %q: expected an integer >= -1", args[0])
			}

			runner, _, err := openMigrations(opts)
			if err != nil {
				return err
			}
			defer closeMigrations(cmd, runner)

			if err := runner.Force(version); err != nil {
				return fmt.Errorf("force version: %w", err)
			}
			cmd.Printf("Recorded version set to %d.\n", version)
			return nil
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, _, err := openMigrations(opts)
			if err != nil {
				return err
			}
			defer closeMigrations(cmd, runner)

			version, dirty, err := runner.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				cmd.Println("No migration applied.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("read version: %w", err)
			}
			if dirty {
				cmd.Printf("Version %d (dirty: fix the schema then run `harmony migrate force %d`).\n", version, version)
				return nil
			}
			cmd.Printf("Version %d.\n", version)
			return nil
		},
	})

	return migrateCmd
}

// runMigration runs step against the configured database and reports how far
// it got. Reaching the first or last migration early is not an error.
func runMigration(cmd *cobra.Command, opts migrateOptions, verb string, step func(*migrate.Migrate) error, steps int) error {
	runner, source, err := openMigrations(opts)
	if err != nil {
		return err
	}
	defer closeMigrations(cmd, runner)

	err = step(runner)
	done := steps

	var short migrate.ErrShortLimit
	switch {
	case err == nil:
	case errors.Is(err, migrate.ErrNoChange), errors.Is(err, os.ErrNotExist):
		done = 0
	case steps > 0 && errors.As(err, &short):
		done = steps - int(short.Short)
	default:
		return fmt.Errorf("%s migrations: %w", verb, err)
	}

	switch {
	case err == nil && steps == 0:
		cmd.Printf("Applied all pending migrations from %s.\n", source)
	case done <= 0:
		cmd.Println("Schema already up to date.")
	default:
		cmd.Printf("%s %d of %d step(s) from %s.\n", pastTense(verb), done, steps, source)
	}
	return nil
}

func pastTense(verb string) string {
	switch verb {
	case "apply":
		return "Applied"
	case "roll back":
		return "Rolled back"
	}
	return verb
}

func parseSteps(raw string) (int, error) {
	steps, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || steps <= 0 {
		return 0, fmt.Errorf("invalid steps %q: expected a positive integer", raw)
	}
	return steps, nil
}

func openMigrations(opts migrateOptions) (*migrate.Migrate, string, error) {
	databaseURL := strings.TrimSpace(opts.DatabaseURL)
	if databaseURL == "" {
		databaseURL = strings.TrimSpace(os.Getenv("HARMONY_MIGRATE_DATABASE_URL"))
	}
	if databaseURL == "" {
		databaseURL = strings.TrimSpace(settings.GetString("storage.postgres.dsn"))
	}
	if databaseURL == "" {
		return nil, "", errors.New("missing database URL: set --database-url, HARMONY_MIGRATE_DATABASE_URL or DATABASE_URL")
	}

	schema, table, err := splitTable(opts.Table)
	if err != nil {
		return nil, "", err
	}
	if schema != "" {
		if err := createSchema(databaseURL, schema); err != nil {
			return nil, "", err
		}
	}
	databaseURL, err = withMigrationsTable(databaseURL, schema, table)
	if err != nil {
		return nil, "", err
	}

	source, err := sourceURL(opts.Path)
	if err != nil {
		return nil, "", err
	}

	runner, err := migrate.New(source, databaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("open migrations: %w", err)
	}
	return runner, source, nil
}

func closeMigrations(cmd *cobra.Command, runner *migrate.Migrate) {
	sourceErr, databaseErr := runner.Close()
	if err := errors.Join(sourceErr, databaseErr); err != nil {
		cmd.PrintErrf("warning: failed to close migrations cleanly: %v\n", err)
	}
}

// splitTable parses "table" or "schema.table".
func splitTable(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = defaultMigrationsTable
	}
	schema, table, qualified := strings.Cut(raw, ".")
	if !qualified {
		return "", schema, nil
	}
	if schema == "" || table == "" || strings.Contains(table, ".") {
		return "", "", fmt.Errorf("invalid migrations table %q: expected table or schema.table", raw)
	}
	return schema, table, nil
}

func withMigrationsTable(databaseURL, schema, table string) (string, error) {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("parse database URL: %w", err)
	}

	query := parsed.Query()
	if query.Get("x-migrations-table") != "" {
		return databaseURL, nil
	}
	if schema == "" {
		query.Set("x-migrations-table", table)
	} else {
		query.Set("x-migrations-table", pq.QuoteIdentifier(schema)+"."+pq.QuoteIdentifier(table))
		query.Set("x-migrations-table-quoted", "true")
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// createSchema makes sure the version table's schema exists; golang-migrate
// only creates the table.
func createSchema(databaseURL, schema string) error {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("parse database URL: %w", err)
	}

	db, err := sql.Open("postgres", migrate.FilterCustomQuery(parsed).String())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec("CREATE SCHEMA IF NOT EXISTS " + pq.QuoteIdentifier(schema)); err != nil {
		return fmt.Errorf("create schema %q: %w", schema, err)
	}
	return nil
}

func sourceURL(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultMigrationsPath
	}
	if strings.Contains(path, "://") {
		return path, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve migrations path %q: %w", path, err)
	}
	return "file://" + filepath.ToSlash(abs), nil
}
