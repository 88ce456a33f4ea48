package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/geniusharmony/harmony/pkg/storage"
)

type Adapter struct {
	db *sql.DB

	stmts preparedStatements
}

type preparedStatements struct {
	putTokens    *sql.Stmt
	getTokens    *sql.Stmt
	deleteTokens *sql.Stmt

	putJournal            *sql.Stmt
	listJournalByMutation *sql.Stmt
	listJournalByEntity   *sql.Stmt
	purgeJournal          *sql.Stmt
}

type prepareStatementSpec struct {
	label  string
	query  string
	assign func(*preparedStatements, *sql.Stmt)
}

var fixedPrepareStatementSpecs = []prepareStatementSpec{
	{
		label: "put tokens",
		query: putTokensQuery,
		assign: func(ps *preparedStatements, stmt *sql.Stmt) {
			ps.putTokens = stmt
		},
	},
	{
		label: "get tokens",
		query: getTokensQuery,
		assign: func(ps *preparedStatements, stmt *sql.Stmt) {
			ps.getTokens = stmt
		},
	},
	{
		label: "delete tokens",
		query: deleteTokensQuery,
		assign: func(ps *preparedStatements, stmt *sql.Stmt) {
			ps.deleteTokens = stmt
		},
	},
	{
		label: "put journal",
		query: putJournalQuery,
		assign: func(ps *preparedStatements, stmt *sql.Stmt) {
			ps.putJournal = stmt
		},
	},
	{
		label: "list journal by mutation_id",
		query: listJournalByMutationQuery,
		assign: func(ps *preparedStatements, stmt *sql.Stmt) {
			ps.listJournalByMutation = stmt
		},
	},
	{
		label: "list journal by entity",
		query: listJournalByEntityQuery,
		assign: func(ps *preparedStatements, stmt *sql.Stmt) {
			ps.listJournalByEntity = stmt
		},
	},
	{
		label: "purge journal",
		query: purgeJournalQuery,
		assign: func(ps *preparedStatements, stmt *sql.Stmt) {
			ps.purgeJournal = stmt
		},
	},
}

var (
	ErrNilDB                 = errors.New("postgres adapter: db is nil")
	ErrAdapterNotInitialized = errors.New("postgres adapter: adapter not initialized")
)

var _ storage.TokenStore = (*Adapter)(nil)
var _ storage.JournalStore = (*Adapter)(nil)

func NewAdapter(db *sql.DB) (*Adapter, error) {
	adapter := &Adapter{db: db}

	if err := adapter.prepareStatements(); err != nil {
		_ = adapter.Close()
		return nil, err
	}

	return adapter, nil
}

func (a *Adapter) Close() error {
	if a == nil {
		return nil
	}

	return closeStatements(
		a.stmts.putTokens,
		a.stmts.getTokens,
		a.stmts.deleteTokens,
		a.stmts.putJournal,
		a.stmts.listJournalByMutation,
		a.stmts.listJournalByEntity,
		a.stmts.purgeJournal,
	)
}

func (a *Adapter) prepareStatements() (err error) {
	db, err := a.requireDB()
	if err != nil {
		return err
	}

	prepared := make([]*sql.Stmt, 0, len(fixedPrepareStatementSpecs))
	defer func() {
		if err != nil {
			_ = closeStatements(prepared...)
		}
	}()

	for _, spec := range fixedPrepareStatementSpecs {
		stmt, prepErr := db.Prepare(spec.query)
		if prepErr != nil {
			err = fmt.Errorf("postgres adapter: prepare %s statement: %w", spec.label, prepErr)
			return err
		}
		prepared = append(prepared, stmt)
		spec.assign(&a.stmts, stmt)
	}
	return nil
}

func (a *Adapter) requirePreparedStatements() error {
	if _, err := a.requireDB(); err != nil {
		return err
	}

	if a.stmts.putTokens == nil || a.stmts.getTokens == nil || a.stmts.deleteTokens == nil {
		return ErrAdapterNotInitialized
	}
	if a.stmts.putJournal == nil || a.stmts.listJournalByMutation == nil || a.stmts.listJournalByEntity == nil || a.stmts.purgeJournal == nil {
		return ErrAdapterNotInitialized
	}

	return nil
}

func (a *Adapter) requireDB() (*sql.DB, error) {
	if a == nil || a.db == nil {
		return nil, ErrNilDB
	}
	return a.db, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func closeStatements(stmts ...*sql.Stmt) error {
	var errs []error
	for _, stmt := range stmts {
		if stmt == nil {
			continue
		}
		if err := stmt.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
