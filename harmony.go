// Package harmony is the client core of Genius.Harmony: an authenticated
// session against the REST backend, role based permission decisions and
// optimistic mutations for the kanban board and the notification inbox.
package harmony

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/geniusharmony/harmony/pkg/api"
	"github.com/geniusharmony/harmony/pkg/authz"
	"github.com/geniusharmony/harmony/pkg/cache"
	herrors "github.com/geniusharmony/harmony/pkg/errors"
	"github.com/geniusharmony/harmony/pkg/kanban"
	"github.com/geniusharmony/harmony/pkg/model"
	"github.com/geniusharmony/harmony/pkg/mutation"
	"github.com/geniusharmony/harmony/pkg/notify"
	"github.com/geniusharmony/harmony/pkg/session"
	"github.com/geniusharmony/harmony/pkg/storage"
)

type Config struct {
	Store   storage.Dependencies
	Cache   cache.Dependencies
	Logger  logr.Logger
	Profile string
	Runtime RuntimeConfig
}

type Client struct {
	api         *api.Client
	session     *session.Session
	executor    *mutation.Executor
	permissions *PermissionService
	logger      logr.Logger

	closeResource func() error
}

func New(config Config) (*Client, error) {
	return NewContext(context.Background(), config)
}

// NewContext is New with a context bounding backend initialization.
func NewContext(ctx context.Context, config Config) (*Client, error) {
	closeResource, resolved, err := config.initialize(ctx)
	if err != nil {
		return nil, err
	}

	rest := api.New(api.Config{
		BaseURL:    resolved.Runtime.API.BaseURL,
		Timeout:    resolved.Runtime.API.Timeout,
		UserAgent:  resolved.Runtime.API.UserAgent,
		HTTPClient: resolved.Runtime.API.HTTPClient,
		Logger:     resolved.Logger,
	})

	sess, err := session.New(rest, session.Config{
		Profile: resolved.Profile,
		Tokens:  resolved.Store.Tokens,
		Cache:   resolved.Cache,
		Logger:  resolved.Logger,
	})
	if err != nil {
		_ = closeResource()
		return nil, err
	}
	rest.SetTokenSource(sess)
	rest.OnUnauthorized(sess.Clear)

	return &Client{
		api:           rest,
		session:       sess,
		executor:      mutation.NewExecutor(mutation.Config{Journal: resolved.Store.Journal, Logger: resolved.Logger}),
		permissions:   NewPermissionService(rest, sess, authz.DefaultRegistry()),
		logger:        resolved.Logger,
		closeResource: closeResource,
	}, nil
}

func (c *Client) API() *api.Client {
	if c == nil {
		return nil
	}
	return c.api
}

func (c *Client) Session() *session.Session {
	if c == nil {
		return nil
	}
	return c.session
}

func (c *Client) Executor() *mutation.Executor {
	if c == nil {
		return nil
	}
	return c.executor
}

// Load restores the persisted session of the configured profile.
func (c *Client) Load(ctx context.Context) error {
	if c == nil || c.session == nil {
		return herrors.ErrMissingAPI
	}
	return c.session.Load(ctx)
}

func (c *Client) Login(ctx context.Context, username, password string) (*model.User, error) {
	if c == nil || c.session == nil {
		return nil, herrors.ErrMissingAPI
	}
	if err := c.session.Login(ctx, username, password); err != nil {
		return nil, err
	}
	c.logger.V(1).Info("logged in", "username", username)
	return c.session.User(), nil
}

func (c *Client) Logout(ctx context.Context) error {
	if c == nil || c.session == nil {
		return herrors.ErrMissingAPI
	}
	return c.session.Logout(ctx)
}

// Permissions evaluates what the current user may do with one project or task.
func (c *Client) Permissions(ctx context.Context, query PermissionQuery) (authz.Decision, error) {
	if c == nil || c.permissions == nil {
		return authz.Decision{}, herrors.ErrMissingAPI
	}
	return c.permissions.Evaluate(ctx, query)
}

func (c *Client) NewBoard() (*kanban.Board, error) {
	if c == nil || c.api == nil {
		return nil, herrors.ErrMissingAPI
	}
	return kanban.New(c.api, c.session, c.executor, kanban.Config{Logger: c.logger})
}

func (c *Client) NewInbox() (*notify.Inbox, error) {
	if c == nil || c.api == nil {
		return nil, herrors.ErrMissingAPI
	}
	return notify.NewInbox(c.api, c.session, c.executor, notify.Config{Logger: c.logger})
}

func (c *Client) Close() error {
	if c == nil || c.closeResource == nil {
		return nil
	}
	return c.closeResource()
}
