// Package mutation runs optimistic local updates against the backend. A
// command is applied locally, committed remotely, and on failure either
// reconciled from a fresh server read or reverted with its recorded inverse.
package mutation

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	herrors "github.com/geniusharmony/harmony/pkg/errors"
	"github.com/geniusharmony/harmony/pkg/model"
	"github.com/geniusharmony/harmony/pkg/storage"
)

// Command is one optimistic mutation. Apply and Revert touch local state
// only and must be exact inverses. Commit issues the remote request.
type Command interface {
	Name() string
	Entity() (kind string, id int64)
	Apply()
	Revert()
	Commit(ctx context.Context) error
}

// Reconciler is implemented by commands that can reload the affected state
// from the server instead of reverting.
type Reconciler interface {
	Reconcile(ctx context.Context) error
}

type Config struct {
	Journal storage.JournalStore
	Logger  logr.Logger
	Now     func() time.Time
}

type Executor struct {
	journal storage.JournalStore
	logger  logr.Logger
	now     func() time.Time
}

func NewExecutor(config Config) *Executor {
	logger := config.Logger
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &Executor{
		journal: config.Journal,
		logger:  logger.WithName("mutation"),
		now:     now,
	}
}

// Execute applies cmd, commits it and rolls it back if the commit fails.
// The returned error carries the commit failure's code.
func (e *Executor) Execute(ctx context.Context, actor model.UserID, cmd Command) error {
	if cmd == nil {
		return herrors.New(herrors.CodeInvalidInput, "mutation: command is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	run := step{
		executor:   e,
		mutationID: uuid.NewString(),
		command:    cmd.Name(),
		actor:      actor,
	}
	run.kind, run.entityID = cmd.Entity()
	logger := e.logger.WithValues("mutation_id", run.mutationID, "command", run.command, "entity", run.kind, "entity_id", run.entityID)

	cmd.Apply()
	run.record(ctx, storage.JournalEventApplied, nil)

	err := cmd.Commit(ctx)
	if err == nil {
		run.record(ctx, storage.JournalEventCommitted, nil)
		logger.V(1).Info("mutation committed")
		return nil
	}

	logger.Error(err, "mutation commit failed")
	if reconciler, ok := cmd.(Reconciler); ok {
		recErr := reconciler.Reconcile(ctx)
		if recErr == nil {
			run.record(ctx, storage.JournalEventReconciled, err)
			logger.V(1).Info("mutation reconciled from server")
			return failure(run.command, err)
		}
		logger.Error(recErr, "mutation reconcile failed, reverting")
	}

	cmd.Revert()
	run.record(ctx, storage.JournalEventReverted, err)
	logger.V(1).Info("mutation reverted")
	return failure(run.command, err)
}

// History returns the journaled steps for one entity, oldest first.
func (e *Executor) History(ctx context.Context, kind string, id int64) ([]storage.JournalRecord, error) {
	if e.journal == nil {
		return []storage.JournalRecord{}, nil
	}
	records, err := e.journal.ListJournalByEntity(ctx, kind, id)
	if err != nil {
		return nil, herrors.Wrap(herrors.CodeStorageUnavailable, "failed to read mutation journal", err)
	}
	return records, nil
}

// Steps returns the journaled steps of one mutation, oldest first.
func (e *Executor) Steps(ctx context.Context, mutationID string) ([]storage.JournalRecord, error) {
	if e.journal == nil {
		return []storage.JournalRecord{}, nil
	}
	records, err := e.journal.ListJournalByMutation(ctx, mutationID)
	if err != nil {
		return nil, herrors.Wrap(herrors.CodeStorageUnavailable, "failed to read mutation journal", err)
	}
	return records, nil
}

// Purge drops journal steps older than maxAge.
func (e *Executor) Purge(ctx context.Context, maxAge time.Duration) (int64, error) {
	if e.journal == nil {
		return 0, nil
	}
	if maxAge <= 0 {
		return 0, herrors.New(herrors.CodeInvalidInput, "mutation: purge age must be positive")
	}
	n, err := e.journal.PurgeJournal(ctx, e.now().Add(-maxAge).UTC())
	if err != nil {
		return 0, herrors.Wrap(herrors.CodeStorageUnavailable, "failed to purge mutation journal", err)
	}
	e.logger.V(1).Info("purged mutation journal", "removed", n, "max_age", maxAge)
	return n, nil
}

type step struct {
	executor   *Executor
	mutationID string
	command    string
	kind       string
	entityID   int64
	actor      model.UserID
}

// record writes one journal step. Journal failures never fail the mutation.
func (s step) record(ctx context.Context, event storage.JournalEvent, cause error) {
	e := s.executor
	if e.journal == nil {
		return
	}

	record := storage.JournalRecord{
		MutationID: s.mutationID,
		DateAdded:  e.now().UTC(),
		Command:    s.command,
		EntityKind: s.kind,
		EntityID:   s.entityID,
		ActorID:    int64(s.actor),
		Event:      event,
	}
	if cause != nil {
		record.ErrorMessage = cause.Error()
	}

	if err := e.journal.PutJournal(ctx, record); err != nil {
		e.logger.Error(err, "failed to journal mutation step", "mutation_id", s.mutationID, "event", event)
	}
}

func failure(command string, err error) error {
	return herrors.Wrap(herrors.CodeOf(err), fmt.Sprintf("%s: %s", command, err.Error()), err)
}
