package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"

	herrors "github.com/geniusharmony/harmony/pkg/errors"
	"github.com/geniusharmony/harmony/pkg/model"
)

// ProjectInput is the writable subset of a project. Nil fields are left out
// of PATCH bodies; a non-nil empty Membres is sent as []. The Clear flags send
// an explicit null for the nullable references.
type ProjectInput struct {
	Titre       *string
	Description *string
	Type        *model.ProjectType
	Statut      *model.ProjectStatus
	Pole        *model.PoleID
	ChefProjet  *model.UserID
	Client      *model.UserID
	Membres     []model.UserID
	DateDebut   *model.Date
	DateFin     *model.Date

	ClearPole       bool
	ClearChefProjet bool
	ClearClient     bool
}

func (in ProjectInput) MarshalJSON() ([]byte, error) {
	body := map[string]any{}
	setPtr(body, "titre", in.Titre)
	setPtr(body, "description", in.Description)
	setPtr(body, "type", in.Type)
	setPtr(body, "statut", in.Statut)
	setNullable(body, "pole", in.Pole, in.ClearPole)
	setNullable(body, "chef_projet", in.ChefProjet, in.ClearChefProjet)
	setNullable(body, "client", in.Client, in.ClearClient)
	if in.Membres != nil {
		body["membres"] = dedupeUsers(in.Membres)
	}
	setPtr(body, "date_debut", in.DateDebut)
	setPtr(body, "date_fin", in.DateFin)
	return json.Marshal(body)
}

func setPtr[T any](body map[string]any, key string, v *T) {
	if v != nil {
		body[key] = *v
	}
}

func setNullable[T any](body map[string]any, key string, v *T, null bool) {
	switch {
	case null:
		body[key] = nil
	case v != nil:
		body[key] = *v
	}
}

// dedupeUsers returns ids without repeats, in first occurrence order. Never nil.
func dedupeUsers(ids []model.UserID) []model.UserID {
	p := model.Project{Membres: append([]model.UserID{}, ids...)}
	p.NormalizeMembres()
	return p.Membres
}

func decodedProject(p *model.Project) *model.Project {
	p.NormalizeMembres()
	return p
}

func projectPath(id model.ProjectID) string {
	return fmt.Sprintf("/projets/%d/", id)
}

func (c *Client) ListProjects(ctx context.Context) ([]model.Project, error) {
	var out []model.Project
	if err := c.do(ctx, call{method: resty.MethodGet, path: "/projets/", result: &out}); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].NormalizeMembres()
	}
	return out, nil
}

func (c *Client) GetProject(ctx context.Context, id model.ProjectID) (*model.Project, error) {
	var out model.Project
	if err := c.do(ctx, call{method: resty.MethodGet, path: projectPath(id), result: &out}); err != nil {
		return nil, err
	}
	return decodedProject(&out), nil
}

func (c *Client) CreateProject(ctx context.Context, input ProjectInput) (*model.Project, error) {
	if input.Titre == nil || *input.Titre == "" {
		return nil, herrors.New(herrors.CodeInvalidInput, "titre is required")
	}

	var out model.Project
	if err := c.do(ctx, call{method: resty.MethodPost, path: "/projets/", body: input, result: &out}); err != nil {
		return nil, err
	}
	return decodedProject(&out), nil
}

func (c *Client) UpdateProject(ctx context.Context, id model.ProjectID, input ProjectInput) (*model.Project, error) {
	var out model.Project
	if err := c.do(ctx, call{method: resty.MethodPatch, path: projectPath(id), body: input, result: &out}); err != nil {
		return nil, err
	}
	return decodedProject(&out), nil
}

func (c *Client) DeleteProject(ctx context.Context, id model.ProjectID) error {
	return c.do(ctx, call{method: resty.MethodDelete, path: projectPath(id)})
}

func (c *Client) UpdateProjectStatut(ctx context.Context, id model.ProjectID, statut model.ProjectStatus) (*model.Project, error) {
	if !statut.Valid() {
		return nil, herrors.New(herrors.CodeInvalidInput, "unknown project statut "+string(statut))
	}

	var out model.Project
	err := c.do(ctx, call{
		method: resty.MethodPatch,
		path:   projectPath(id) + "update-statut/",
		body:   map[string]model.ProjectStatus{"statut": statut},
		result: &out,
	})
	if err != nil {
		return nil, err
	}
	return decodedProject(&out), nil
}

func (c *Client) AcceptChefProjet(ctx context.Context, id model.ProjectID) (*model.Project, error) {
	var out model.Project
	if err := c.do(ctx, call{method: resty.MethodPost, path: projectPath(id) + "accept-chef/", result: &out}); err != nil {
		return nil, err
	}
	return decodedProject(&out), nil
}

func (c *Client) DeclineChefProjet(ctx context.Context, id model.ProjectID) (*model.Project, error) {
	var out model.Project
	if err := c.do(ctx, call{method: resty.MethodPost, path: projectPath(id) + "decline-chef/", result: &out}); err != nil {
		return nil, err
	}
	return decodedProject(&out), nil
}
