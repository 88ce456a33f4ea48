// Package api is the REST client for the Genius.Harmony backend.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-resty/resty/v2"

	herrors "github.com/geniusharmony/harmony/pkg/errors"
)

const (
	DefaultBaseURL   = "http://127.0.0.1:8000"
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "harmony-go"
)

type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Logger    logr.Logger

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// TokenSource supplies the bearer token attached to authenticated calls.
// An empty token sends the request anonymously.
type TokenSource interface {
	Token() string
}

type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

type Client struct {
	http   *resty.Client
	logger logr.Logger

	mu             sync.RWMutex
	tokens         TokenSource
	onUnauthorized func()
}

func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	logger := config.Logger
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}

	var httpClient *resty.Client
	if config.HTTPClient != nil {
		httpClient = resty.NewWithClient(config.HTTPClient)
	} else {
		httpClient = resty.New()
	}

	httpClient.
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")+"/api").
		SetTimeout(config.Timeout).
		SetHeader("User-Agent", config.UserAgent).
		SetHeader("Accept", "application/json")

	return &Client{
		http:   httpClient,
		logger: logger.WithName("api"),
	}
}

func (c *Client) SetTokenSource(tokens TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = tokens
}

// OnUnauthorized registers fn to run whenever an authenticated call gets a 401.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

func (c *Client) unauthorized() {
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

type tokenContextKey struct{}

// WithToken makes calls under ctx authenticate with token instead of the
// installed token source. A 401 on such a call does not fire the unauthorized
// hook, since the rejected token is not the session's.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey{}, token)
}

func tokenFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey{}).(string)
	return token, ok
}

type call struct {
	method string
	path   string
	body   any
	query  map[string]string
	result any
	public bool
	form   func(*resty.Request)
}

func (c *Client) do(ctx context.Context, in call) error {
	if ctx == nil {
		ctx = context.Background()
	}

	req := c.http.R().SetContext(ctx)
	override, overridden := tokenFrom(ctx)
	if !in.public {
		token := c.token()
		if overridden {
			token = override
		}
		if token != "" {
			req.SetAuthToken(token)
		}
	}
	if in.body != nil {
		req.SetBody(in.body)
	}
	if len(in.query) > 0 {
		req.SetQueryParams(in.query)
	}
	if in.result != nil {
		req.SetResult(in.result)
	}
	if in.form != nil {
		in.form(req)
	}

	resp, err := req.Execute(in.method, in.path)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return herrors.Wrap(herrors.CodeUnknown, fmt.Sprintf("%s %s cancelled", in.method, in.path), err)
		}
		c.logger.Error(err, "request failed", "method", in.method, "path", in.path)
		return herrors.Wrap(herrors.CodeAPIUnavailable, fmt.Sprintf("%s %s failed", in.method, in.path), err)
	}

	c.logger.V(1).Info("request done", "method", in.method, "path", in.path, "status", resp.StatusCode(), "duration", resp.Time())

	if !resp.IsError() {
		return nil
	}

	if resp.StatusCode() == http.StatusUnauthorized && !in.public && !overridden {
		c.unauthorized()
	}
	return responseError(in.method, in.path, resp.StatusCode(), resp.Body())
}

// responseError turns a non-2xx response into a coded error carrying the
// backend's detail text when it sent one.
func responseError(method, path string, status int, body []byte) error {
	code := herrors.FromHTTPStatus(status)
	message := extractDetail(body)
	if message == "" {
		message = fmt.Sprintf("%s %s: %d %s", method, path, status, http.StatusText(status))
	}
	return herrors.Wrap(code, message, &StatusError{Status: status, Body: string(body)})
}

// StatusError keeps the raw response for callers that need it.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api: unexpected status %d", e.Status)
}

func extractDetail(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	for _, key := range []string{"detail", "error", "message"} {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}

	// field validation errors: {"titre": ["Ce champ est obligatoire."]}
	var parts []string
	for field, v := range payload {
		msgs, ok := v.([]any)
		if !ok || len(msgs) == 0 {
			continue
		}
		if first, ok := msgs[0].(string); ok {
			parts = append(parts, field+": "+first)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
