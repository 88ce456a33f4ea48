package api

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-resty/resty/v2"

	herrors "github.com/geniusharmony/harmony/pkg/errors"
	"github.com/geniusharmony/harmony/pkg/model"
)

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

type RegisterInput struct {
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	Password   string     `json:"password"`
	Role       model.Role `json:"role"`
	ClientType string     `json:"client_type,omitempty"`
}

func (c *Client) Login(ctx context.Context, username, password string) (TokenPair, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return TokenPair{}, herrors.New(herrors.CodeInvalidInput, "username and password are required")
	}

	var out TokenPair
	err := c.do(ctx, call{
		method: resty.MethodPost,
		path:   "/auth/login/",
		body:   map[string]string{"username": username, "password": password},
		result: &out,
		public: true,
	})
	if err != nil {
		return TokenPair{}, err
	}
	if out.Access == "" {
		return TokenPair{}, herrors.New(herrors.CodeUnknown, "login response carried no access token")
	}
	return out, nil
}

// Refresh exchanges a refresh token for a new access token. The returned
// pair keeps the given refresh token unless the backend rotated it.
func (c *Client) Refresh(ctx context.Context, refresh string) (TokenPair, error) {
	if refresh == "" {
		return TokenPair{}, herrors.New(herrors.CodeUnauthenticated, "no refresh token")
	}

	var out TokenPair
	err := c.do(ctx, call{
		method: resty.MethodPost,
		path:   "/auth/refresh/",
		body:   map[string]string{"refresh": refresh},
		result: &out,
		public: true,
	})
	if err != nil {
		return TokenPair{}, err
	}
	if out.Refresh == "" {
		out.Refresh = refresh
	}
	return out, nil
}

// meResponse tolerates the backend sending the pole either as an id or as
// its display name.
type meResponse struct {
	ID        model.UserID    `json:"id"`
	Username  string          `json:"username"`
	Email     string          `json:"email"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Role      model.Role      `json:"role"`
	Pole      json.RawMessage `json:"pole"`
	PoleID    *model.PoleID   `json:"pole_id"`
	PoleName  string          `json:"pole_name"`
}

func (m meResponse) user() *model.User {
	u := &model.User{
		ID:        m.ID,
		Username:  m.Username,
		Email:     m.Email,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Role:      m.Role,
		Pole:      m.PoleID,
		PoleName:  m.PoleName,
	}

	if u.Pole == nil && len(m.Pole) > 0 && string(m.Pole) != "null" {
		var id model.PoleID
		var name string
		switch {
		case json.Unmarshal(m.Pole, &id) == nil:
			u.Pole = &id
		case json.Unmarshal(m.Pole, &name) == nil && u.PoleName == "":
			u.PoleName = name
		}
	}
	return u
}

func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var out meResponse
	if err := c.do(ctx, call{method: resty.MethodGet, path: "/auth/me/", result: &out}); err != nil {
		return nil, err
	}
	return out.user(), nil
}

func (c *Client) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	if strings.TrimSpace(input.Username) == "" || input.Password == "" {
		return nil, herrors.New(herrors.CodeInvalidInput, "username and password are required")
	}
	if !input.Role.Valid() {
		return nil, herrors.New(herrors.CodeInvalidInput, "unknown role "+string(input.Role))
	}

	var out meResponse
	err := c.do(ctx, call{
		method: resty.MethodPost,
		path:   "/auth/register/",
		body:   input,
		result: &out,
		public: true,
	})
	if err != nil {
		return nil, err
	}
	return out.user(), nil
}
