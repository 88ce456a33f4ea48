// Package kanban keeps a task board grouped by task status and moves cards
// between columns optimistically.
package kanban

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/geniusharmony/harmony/pkg/api"
	"github.com/geniusharmony/harmony/pkg/authz"
	"github.com/geniusharmony/harmony/pkg/catalog"
	herrors "github.com/geniusharmony/harmony/pkg/errors"
	"github.com/geniusharmony/harmony/pkg/model"
	"github.com/geniusharmony/harmony/pkg/mutation"
)

const moveCommandName = "move_task"

// Backend is the part of the REST client the board uses.
type Backend interface {
	ListTasks(ctx context.Context, filter api.TaskFilter) ([]model.Task, error)
	ListProjects(ctx context.Context) ([]model.Project, error)
	UpdateTaskStatut(ctx context.Context, id model.TaskID, statut model.TaskStatus) (*model.Task, error)
}

// UserSource returns the current user, or nil when nobody is logged in.
type UserSource interface {
	User() *model.User
}

type Column struct {
	Statut model.TaskStatus
	Label  string
	Color  string
	Tasks  []model.Task
}

type Config struct {
	Logger logr.Logger
}

type Board struct {
	backend  Backend
	users    UserSource
	executor *mutation.Executor
	logger   logr.Logger

	mu       sync.RWMutex
	tasks    []model.Task
	projects map[model.ProjectID]model.Project
}

func New(backend Backend, users UserSource, executor *mutation.Executor, config Config) (*Board, error) {
	if backend == nil {
		return nil, herrors.ErrMissingAPI
	}
	if users == nil {
		return nil, herrors.Wrap(herrors.CodeUnauthenticated, "kanban: user source is required", herrors.ErrNotLoggedIn)
	}
	if executor == nil {
		executor = mutation.NewExecutor(mutation.Config{Logger: config.Logger})
	}
	logger := config.Logger
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}

	return &Board{
		backend:  backend,
		users:    users,
		executor: executor,
		logger:   logger.WithName("kanban"),
		projects: map[model.ProjectID]model.Project{},
	}, nil
}

// Load fetches the filtered tasks and the visible projects concurrently and
// replaces the board contents once both have arrived.
func (b *Board) Load(ctx context.Context, filter api.TaskFilter) error {
	var (
		tasks    []model.Task
		projects []model.Project
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tasks, err = b.backend.ListTasks(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		projects, err = b.backend.ListProjects(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		b.logger.Error(err, "failed to load board")
		return err
	}

	byID := make(map[model.ProjectID]model.Project, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
	}

	b.mu.Lock()
	b.tasks = tasks
	b.projects = byID
	b.mu.Unlock()

	b.logger.V(1).Info("board loaded", "tasks", len(tasks), "projects", len(projects))
	return nil
}

// Columns returns one column per task status, in workflow order.
func (b *Board) Columns() []Column {
	b.mu.RLock()
	defer b.mu.RUnlock()

	columns := make([]Column, 0, len(model.TaskStatuses))
	for _, statut := range model.TaskStatuses {
		entry := catalog.TaskStatus(statut)
		column := Column{Statut: statut, Label: entry.Label, Color: entry.Color, Tasks: []model.Task{}}
		for _, t := range b.tasks {
			if t.Statut == statut {
				column.Tasks = append(column.Tasks, cloneTask(t))
			}
		}
		columns = append(columns, column)
	}
	return columns
}

func (b *Board) Task(id model.TaskID) (model.Task, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i := b.indexOf(id)
	if i < 0 {
		return model.Task{}, false
	}
	return cloneTask(b.tasks[i]), true
}

func (b *Board) Project(id model.ProjectID) (model.Project, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.projects[id]
	return p, ok
}

// Permissions resolves the current user's rights on a task of the board.
func (b *Board) Permissions(id model.TaskID) authz.TaskPermissions {
	task, ok := b.Task(id)
	if !ok {
		return authz.TaskPermissions{}
	}
	project, ok := b.Project(task.Projet)
	if !ok {
		return authz.TaskPermissions{}
	}
	return authz.ResolveTask(b.users.User(), &project, &task)
}

// Move drags a task to another column. Permission is checked locally before
// any request is issued, and the card snaps back if the backend refuses.
func (b *Board) Move(ctx context.Context, id model.TaskID, to model.TaskStatus) error {
	user := b.users.User()
	if user == nil {
		return herrors.Wrap(herrors.CodeUnauthenticated, "kanban: not logged in", herrors.ErrNotLoggedIn)
	}

	task, ok := b.Task(id)
	if !ok {
		return herrors.New(herrors.CodeNotFound, fmt.Sprintf("kanban: task %d is not on the board", id))
	}
	if !to.Valid() {
		return herrors.New(herrors.CodeInvalidInput, fmt.Sprintf("kanban: unknown task status %q", to))
	}
	if task.Statut == to {
		return nil
	}

	var project *model.Project
	if p, ok := b.Project(task.Projet); ok {
		project = &p
	}
	if !authz.CanDragTask(user, project, &task) {
		return herrors.New(herrors.CodePermissionDenied, fmt.Sprintf("kanban: not allowed to move task %d", id))
	}

	return b.executor.Execute(ctx, user.ID, &moveCommand{board: b, id: id, from: task.Statut, to: to})
}

func (b *Board) setStatut(id model.TaskID, statut model.TaskStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.indexOf(id); i >= 0 {
		b.tasks[i].Statut = statut
	}
}

// replaceTask stores the server's copy of a task once a write is committed.
func (b *Board) replaceTask(t model.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.indexOf(t.ID); i >= 0 {
		b.tasks[i] = cloneTask(t)
	}
}

// indexOf expects b.mu to be held.
func (b *Board) indexOf(id model.TaskID) int {
	for i, t := range b.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

type moveCommand struct {
	board    *Board
	id       model.TaskID
	from, to model.TaskStatus
}

func (c *moveCommand) Name() string { return moveCommandName }

func (c *moveCommand) Entity() (string, int64) { return "tache", int64(c.id) }

func (c *moveCommand) Apply() { c.board.setStatut(c.id, c.to) }

func (c *moveCommand) Revert() { c.board.setStatut(c.id, c.from) }

func (c *moveCommand) Commit(ctx context.Context) error {
	task, err := c.board.backend.UpdateTaskStatut(ctx, c.id, c.to)
	if err != nil {
		return err
	}
	if task != nil {
		if task.ID == 0 {
			task.ID = c.id
		}
		c.board.replaceTask(*task)
	}
	return nil
}

func cloneTask(t model.Task) model.Task {
	if t.AssigneA != nil {
		t.AssigneA = append([]model.UserID(nil), t.AssigneA...)
	}
	return t
}
