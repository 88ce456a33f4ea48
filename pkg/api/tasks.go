package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"

	herrors "github.com/geniusharmony/harmony/pkg/errors"
	"github.com/geniusharmony/harmony/pkg/model"
)

type TaskFilter struct {
	Projet   model.ProjectID
	AssigneA model.UserID
	Statut   model.TaskStatus
	Priorite model.Priority
}

func (f TaskFilter) query() map[string]string {
	q := map[string]string{}
	if f.Projet != 0 {
		q["projet"] = strconv.FormatInt(int64(f.Projet), 10)
	}
	if f.AssigneA != 0 {
		q["assigne_a"] = strconv.FormatInt(int64(f.AssigneA), 10)
	}
	if f.Statut != "" {
		q["statut"] = string(f.Statut)
	}
	if f.Priorite != "" {
		q["priorite"] = string(f.Priorite)
	}
	return q
}

// TaskInput is the writable subset of a task. Nil fields are left out of
// PATCH bodies; a non-nil empty AssigneA unassigns everyone.
type TaskInput struct {
	Projet      *model.ProjectID
	Titre       *string
	Description *string
	Statut      *model.TaskStatus
	Priorite    *model.Priority
	AssigneA    []model.UserID
	Deadline    *model.Date

	ClearDeadline bool
}

func (in TaskInput) MarshalJSON() ([]byte, error) {
	body := map[string]any{}
	setPtr(body, "projet", in.Projet)
	setPtr(body, "titre", in.Titre)
	setPtr(body, "description", in.Description)
	setPtr(body, "statut", in.Statut)
	setPtr(body, "priorite", in.Priorite)
	if in.AssigneA != nil {
		body["assigne_a"] = dedupeUsers(in.AssigneA)
	}
	setNullable(body, "deadline", in.Deadline, in.ClearDeadline)
	return json.Marshal(body)
}

func taskPath(id model.TaskID) string {
	return fmt.Sprintf("/taches/%d/", id)
}

func (c *Client) ListTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	var out []model.Task
	if err := c.do(ctx, call{method: resty.MethodGet, path: "/taches/", query: filter.query(), result: &out}); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetTask(ctx context.Context, id model.TaskID) (*model.Task, error) {
	var out model.Task
	if err := c.do(ctx, call{method: resty.MethodGet, path: taskPath(id), result: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateTask(ctx context.Context, input TaskInput) (*model.Task, error) {
	if input.Projet == nil || input.Titre == nil || *input.Titre == "" {
		return nil, herrors.New(herrors.CodeInvalidInput, "projet and titre are required")
	}

	var out model.Task
	if err := c.do(ctx, call{method: resty.MethodPost, path: "/taches/", body: input, result: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateTask(ctx context.Context, id model.TaskID, input TaskInput) (*model.Task, error) {
	var out model.Task
	if err := c.do(ctx, call{method: resty.MethodPatch, path: taskPath(id), body: input, result: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTaskStatut sends a status-only PATCH, the one write assignees may make.
func (c *Client) UpdateTaskStatut(ctx context.Context, id model.TaskID, statut model.TaskStatus) (*model.Task, error) {
	if !statut.Valid() {
		return nil, herrors.New(herrors.CodeInvalidInput, "unknown task statut "+string(statut))
	}
	return c.UpdateTask(ctx, id, TaskInput{Statut: &statut})
}

func (c *Client) DeleteTask(ctx context.Context, id model.TaskID) error {
	return c.do(ctx, call{method: resty.MethodDelete, path: taskPath(id)})
}
