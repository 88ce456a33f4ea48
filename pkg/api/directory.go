package api

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	herrors "github.com/geniusharmony/harmony/pkg/errors"
	"github.com/geniusharmony/harmony/pkg/model"
)

type PoleInput struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Chef        *model.UserID `json:"chef,omitempty"`
}

type UserInput struct {
	Email     *string       `json:"email,omitempty"`
	FirstName *string       `json:"first_name,omitempty"`
	LastName  *string       `json:"last_name,omitempty"`
	Role      *model.Role   `json:"role,omitempty"`
	Pole      *model.PoleID `json:"pole,omitempty"`
}

// UserProfile is the detailed profile page payload.
type UserProfile struct {
	User        *model.User
	Description string
	PhotoURL    string
	Stats       map[string]any
}

type profileResponse struct {
	meResponse
	Description string         `json:"description"`
	PhotoURL    string         `json:"photo_url"`
	Stats       map[string]any `json:"stats"`
}

func polePath(id model.PoleID) string {
	return fmt.Sprintf("/poles/%d/", id)
}

func userPath(id model.UserID) string {
	return fmt.Sprintf("/users/%d/", id)
}

func (c *Client) ListPoles(ctx context.Context) ([]model.Pole, error) {
	var out []model.Pole
	if err := c.do(ctx, call{method: resty.MethodGet, path: "/poles/", result: &out}); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetPole(ctx context.Context, id model.PoleID) (*model.Pole, error) {
	var out model.Pole
	if err := c.do(ctx, call{method: resty.MethodGet, path: polePath(id), result: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePole(ctx context.Context, input PoleInput) (*model.Pole, error) {
	if input.Name == "" {
		return nil, herrors.New(herrors.CodeInvalidInput, "pole name is required")
	}

	var out model.Pole
	if err := c.do(ctx, call{method: resty.MethodPost, path: "/poles/", body: input, result: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdatePole(ctx context.Context, id model.PoleID, input PoleInput) (*model.Pole, error) {
	var out model.Pole
	if err := c.do(ctx, call{method: resty.MethodPatch, path: polePath(id), body: input, result: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeletePole(ctx context.Context, id model.PoleID) error {
	return c.do(ctx, call{method: resty.MethodDelete, path: polePath(id)})
}

func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var raw []meResponse
	if err := c.do(ctx, call{method: resty.MethodGet, path: "/users/", result: &raw}); err != nil {
		return nil, err
	}
	out := make([]model.User, 0, len(raw))
	for _, r := range raw {
		out = append(out, *r.user())
	}
	return out, nil
}

func (c *Client) UpdateUser(ctx context.Context, id model.UserID, input UserInput) (*model.User, error) {
	if input.Role != nil && !input.Role.Valid() {
		return nil, herrors.New(herrors.CodeInvalidInput, "unknown role "+string(*input.Role))
	}

	var out meResponse
	if err := c.do(ctx, call{method: resty.MethodPatch, path: userPath(id), body: input, result: &out}); err != nil {
		return nil, err
	}
	return out.user(), nil
}

func (c *Client) DeleteUser(ctx context.Context, id model.UserID) error {
	return c.do(ctx, call{method: resty.MethodDelete, path: userPath(id) + "delete/"})
}

func (c *Client) GetUserProfile(ctx context.Context, id model.UserID) (*UserProfile, error) {
	var out profileResponse
	if err := c.do(ctx, call{method: resty.MethodGet, path: userPath(id) + "profile/", result: &out}); err != nil {
		return nil, err
	}
	return &UserProfile{
		User:        out.user(),
		Description: out.Description,
		PhotoURL:    out.PhotoURL,
		Stats:       out.Stats,
	}, nil
}
