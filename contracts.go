package harmony

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	herrors "github.com/geniusharmony/harmony/pkg/errors"
	"github.com/geniusharmony/harmony/pkg/model"
)

// Resource names an entity kind permissions can be computed for. The values
// match the evaluator names of the authz registry.
type Resource string

const (
	ResourceProject Resource = "projet"
	ResourceTask    Resource = "tache"
)

func ParseResource(raw string) (Resource, error) {
	switch Resource(strings.ToLower(strings.TrimSpace(raw))) {
	case ResourceProject, "project":
		return ResourceProject, nil
	case ResourceTask, "task":
		return ResourceTask, nil
	}
	return "", herrors.New(herrors.CodeInvalidInput, fmt.Sprintf("unknown resource %q: expected projet or tache", raw))
}

// PermissionQuery asks what the current user may do with one entity.
type PermissionQuery struct {
	Resource Resource
	ID       int64
}

func ParsePermissionQuery(resource, id string) (PermissionQuery, error) {
	r, err := ParseResource(resource)
	if err != nil {
		return PermissionQuery{}, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || n <= 0 {
		return PermissionQuery{}, herrors.New(herrors.CodeInvalidInput, fmt.Sprintf("invalid %s id %q", r, id))
	}
	return PermissionQuery{Resource: r, ID: n}, nil
}

// EntitySource fetches the entities permissions are computed from.
type EntitySource interface {
	GetProject(ctx context.Context, id model.ProjectID) (*model.Project, error)
	GetTask(ctx context.Context, id model.TaskID) (*model.Task, error)
}

// UserSource returns the authenticated user, or nil.
type UserSource interface {
	User() *model.User
}
