package authz

import (
	"context"
	"errors"

	"github.com/geniusharmony/harmony/pkg/model"
)

// Subject is the snapshot a decision is computed from. Entities may be nil
// while they are loading.
type Subject struct {
	User    *model.User
	Project *model.Project
	Task    *model.Task
}

type Grant struct {
	Action  string
	Allowed bool
}

type Decision struct {
	Resource string
	Grants   []Grant
	Statuts  []model.ProjectStatus
}

func (d Decision) Allowed(action string) bool {
	for _, g := range d.Grants {
		if g.Action == action {
			return g.Allowed
		}
	}
	return false
}

type Evaluator interface {
	Name() string
	Evaluate(ctx context.Context, subject Subject) (Decision, error)
}

type Registry struct {
	evaluators map[string]Evaluator
	order      []string
}

var (
	ErrNilEvaluator     = errors.New("authz: evaluator is nil")
	ErrEmptyName        = errors.New("authz: evaluator name is empty")
	ErrDuplicateName    = errors.New("authz: evaluator already exists")
	ErrUnknownEvaluator = errors.New("authz: no evaluator for resource")
)

func NewRegistry(evaluators ...Evaluator) (*Registry, error) {
	r := &Registry{
		evaluators: map[string]Evaluator{},
	}

	for _, evaluator := range evaluators {
		if err := r.Register(evaluator); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// DefaultRegistry knows the projet and tache evaluators.
func DefaultRegistry() *Registry {
	r, _ := NewRegistry(ProjectEvaluator{}, TaskEvaluator{})
	return r
}

func (r *Registry) Register(evaluator Evaluator) error {
	if evaluator == nil {
		return ErrNilEvaluator
	}

	name := evaluator.Name()
	if name == "" {
		return ErrEmptyName
	}

	if _, exists := r.evaluators[name]; exists {
		return ErrDuplicateName
	}

	r.evaluators[name] = evaluator
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) Evaluator(name string) (Evaluator, bool) {
	evaluator, ok := r.evaluators[name]
	return evaluator, ok
}

func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Evaluate(ctx context.Context, name string, subject Subject) (Decision, error) {
	evaluator, ok := r.Evaluator(name)
	if !ok {
		return Decision{}, ErrUnknownEvaluator
	}
	return evaluator.Evaluate(ctx, subject)
}

type ProjectEvaluator struct{}

func (ProjectEvaluator) Name() string { return "projet" }

func (ProjectEvaluator) Evaluate(_ context.Context, s Subject) (Decision, error) {
	p := ResolveProject(s.User, s.Project)
	return Decision{
		Resource: "projet",
		Grants: []Grant{
			{Action: "view", Allowed: CanViewProject(s.User, s.Project)},
			{Action: "change_statut", Allowed: p.CanChangeStatut},
			{Action: "manage_membres", Allowed: p.CanManageMembres},
			{Action: "edit", Allowed: p.CanEditProjet},
			{Action: "delete", Allowed: p.CanDeleteProjet},
			{Action: "create_task", Allowed: CanCreateTask(s.User, s.Project)},
			{Action: "respond_chef_projet", Allowed: CanRespondChefProjet(s.User, s.Project)},
		},
		Statuts: p.AvailableStatuts,
	}, nil
}

type TaskEvaluator struct{}

func (TaskEvaluator) Name() string { return "tache" }

func (TaskEvaluator) Evaluate(_ context.Context, s Subject) (Decision, error) {
	t := ResolveTask(s.User, s.Project, s.Task)
	return Decision{
		Resource: "tache",
		Grants: []Grant{
			{Action: "view", Allowed: t.CanView},
			{Action: "manage", Allowed: t.CanManage},
			{Action: "drag", Allowed: t.CanDrag},
		},
	}, nil
}
