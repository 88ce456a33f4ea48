package harmony

import (
	"context"

	"github.com/geniusharmony/harmony/pkg/authz"
	herrors "github.com/geniusharmony/harmony/pkg/errors"
	"github.com/geniusharmony/harmony/pkg/model"
)

// PermissionService loads an entity and evaluates the current user's rights
// on it through the authz registry.
type PermissionService struct {
	entities EntitySource
	users    UserSource
	registry *authz.Registry
}

func NewPermissionService(entities EntitySource, users UserSource, registry *authz.Registry) *PermissionService {
	if registry == nil {
		registry = authz.DefaultRegistry()
	}
	return &PermissionService{entities: entities, users: users, registry: registry}
}

func (s *PermissionService) Evaluate(ctx context.Context, query PermissionQuery) (authz.Decision, error) {
	if s == nil || s.entities == nil {
		return authz.Decision{}, herrors.ErrMissingAPI
	}

	var user *model.User
	if s.users != nil {
		user = s.users.User()
	}
	if user == nil {
		return authz.Decision{}, herrors.Wrap(herrors.CodeUnauthenticated, "not logged in", herrors.ErrNotLoggedIn)
	}

	subject := authz.Subject{User: user}
	switch query.Resource {
	case ResourceProject:
		project, err := s.entities.GetProject(ctx, model.ProjectID(query.ID))
		if err != nil {
			return authz.Decision{}, err
		}
		subject.Project = project
	case ResourceTask:
		task, err := s.entities.GetTask(ctx, model.TaskID(query.ID))
		if err != nil {
			return authz.Decision{}, err
		}
		project, err := s.entities.GetProject(ctx, task.Projet)
		if err != nil {
			return authz.Decision{}, err
		}
		subject.Task = task
		subject.Project = project
	}

	decision, err := s.registry.Evaluate(ctx, string(query.Resource), subject)
	if err != nil {
		return authz.Decision{}, herrors.Wrap(herrors.CodeInvalidInput, "unknown resource "+string(query.Resource), err)
	}
	return decision, nil
}
