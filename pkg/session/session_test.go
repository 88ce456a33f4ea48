package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geniusharmony/harmony/pkg/api"
	"github.com/geniusharmony/harmony/pkg/cache"
	memorycache "github.com/geniusharmony/harmony/pkg/cache/memory"
	herrors "github.com/geniusharmony/harmony/pkg/errors"
	"github.com/geniusharmony/harmony/pkg/model"
	"github.com/geniusharmony/harmony/pkg/storage"
	memorystorage "github.com/geniusharmony/harmony/pkg/storage/memory"
)

var fixedNow = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func signedToken(t *testing.T, subject string, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

type fakeBackend struct {
	mu       sync.Mutex
	accepted map[string]bool
	pair     api.TokenPair

	meCalls      int32
	poleCalls    int32
	refreshCalls int32
	// unverified makes login hand out tokens /auth/me rejects
	unverified int32
}

func (b *fakeBackend) accept(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.accepted == nil {
		b.accepted = map[string]bool{}
	}
	b.accepted[token] = true
}

func (b *fakeBackend) authorized(r *http.Request) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accepted[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/auth/login/":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"No active account found with the given credentials"}`))
			return
		}
		b.mu.Lock()
		pair := b.pair
		b.mu.Unlock()
		if atomic.LoadInt32(&b.unverified) == 0 {
			b.accept(pair.Access)
		}
		_ = json.NewEncoder(w).Encode(pair)
	case "/api/auth/refresh/":
		atomic.AddInt32(&b.refreshCalls, 1)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["refresh"] != b.pair.Refresh {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Token is invalid or expired"}`))
			return
		}
		b.accept(b.pair.Access)
		_ = json.NewEncoder(w).Encode(map[string]string{"access": b.pair.Access})
	case "/api/auth/me/":
		atomic.AddInt32(&b.meCalls, 1)
		if !b.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Given token not valid for any token type"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":7,"username":"alice","role":"chef_pole","pole":"Audiovisuel"}`))
	case "/api/poles/":
		atomic.AddInt32(&b.poleCalls, 1)
		_, _ = w.Write([]byte(`[{"id":1,"name":"Communication"},{"id":3,"name":"Audiovisuel","chef":7}]`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type harness struct {
	backend *fakeBackend
	client  *api.Client
	tokens  *memorystorage.Adapter
	caches  *memorycache.Adapter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	backend := &fakeBackend{}
	backend.pair = api.TokenPair{
		Access:  signedToken(t, "7", fixedNow.Add(time.Hour)),
		Refresh: "refresh-1",
	}
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	return &harness{
		backend: backend,
		client:  api.New(api.Config{BaseURL: server.URL}),
		tokens:  memorystorage.NewAdapter(),
		caches:  memorycache.NewAdapter(),
	}
}

func (h *harness) session(t *testing.T) *Session {
	t.Helper()
	s, err := New(h.client, Config{
		Tokens: h.tokens,
		Cache:  cache.Dependencies{User: h.caches, Pole: h.caches},
		Now:    func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	h.client.SetTokenSource(s)
	h.client.OnUnauthorized(s.Clear)
	return s
}

func TestNewRequiresAuthenticator(t *testing.T) {
	_, err := New(nil, Config{})
	assert.ErrorIs(t, err, herrors.ErrMissingAPI)
}

func TestLoadWithoutTokens(t *testing.T) {
	h := newHarness(t)
	s := h.session(t)

	require.NoError(t, s.Load(context.Background()))
	assert.False(t, s.Authenticated())
	assert.Nil(t, s.User())
	assert.Empty(t, s.Token())
	assert.Zero(t, atomic.LoadInt32(&h.backend.meCalls))
}

func TestLoginResolvesPoleAndPersists(t *testing.T) {
	h := newHarness(t)
	s := h.session(t)
	ctx := context.Background()

	require.NoError(t, s.Login(ctx, " alice ", "secret"))
	assert.True(t, s.Authenticated())
	assert.Equal(t, h.backend.pair.Access, s.Token())
	assert.Equal(t, "alice", s.Username())

	user := s.User()
	require.NotNil(t, user)
	assert.Equal(t, model.UserID(7), user.ID)
	assert.Equal(t, model.RoleChefPole, user.Role)
	require.NotNil(t, user.Pole)
	assert.Equal(t, model.PoleID(3), *user.Pole)

	user.Role = model.RoleSuperAdmin
	assert.Equal(t, model.RoleChefPole, s.User().Role, "User must return a copy")

	record, err := h.tokens.GetTokens(ctx, storage.DefaultProfile)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", record.RefreshToken)
	require.NotNil(t, record.ExpiresAt)
	assert.Equal(t, fixedNow.Add(time.Hour).Unix(), record.ExpiresAt.Unix())

	id, ok, err := h.caches.GetPoleID(ctx, "Communication")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, model.PoleID(1), id)
}

func TestLoginRejected(t *testing.T) {
	h := newHarness(t)
	s := h.session(t)

	err := s.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.True(t, herrors.IsCode(err, herrors.CodeUnauthenticated))
	assert.False(t, s.Authenticated())

	_, err = h.tokens.GetTokens(context.Background(), storage.DefaultProfile)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFailedLoginKeepsCurrentSession(t *testing.T) {
	h := newHarness(t)
	s := h.session(t)
	ctx := context.Background()
	require.NoError(t, s.Login(ctx, "alice", "secret"))
	previous := s.Token()

	h.backend.mu.Lock()
	h.backend.pair = api.TokenPair{Access: signedToken(t, "7", fixedNow.Add(2*time.Hour)), Refresh: "refresh-2"}
	h.backend.mu.Unlock()
	atomic.StoreInt32(&h.backend.unverified, 1)

	err := s.Login(ctx, "alice", "secret")
	require.Error(t, err)
	assert.True(t, herrors.IsCode(err, herrors.CodeUnauthenticated))

	assert.True(t, s.Authenticated())
	assert.Equal(t, previous, s.Token())
	assert.Equal(t, model.UserID(7), s.User().ID)

	record, err := h.tokens.GetTokens(ctx, storage.DefaultProfile)
	require.NoError(t, err, "stored tokens survive a rejected login")
	assert.Equal(t, previous, record.AccessToken)
	assert.Equal(t, "refresh-1", record.RefreshToken)

	_, err = h.client.Me(ctx)
	assert.NoError(t, err, "the previous token still authenticates")
}

func TestLoadRestoresFromCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.session(t).Login(ctx, "alice", "secret"))
	require.Equal(t, int32(1), atomic.LoadInt32(&h.backend.meCalls))

	restored := h.session(t)
	require.NoError(t, restored.Load(ctx))
	assert.True(t, restored.Authenticated())
	assert.Equal(t, model.PoleID(3), *restored.User().Pole)
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.backend.meCalls), "cached user skips /auth/me")
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.backend.poleCalls))
}

func TestLoadRefreshesExpiredToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	expired := signedToken(t, "7", fixedNow.Add(-time.Minute))
	require.NoError(t, h.tokens.PutTokens(ctx, storage.TokenRecord{
		Profile:      storage.DefaultProfile,
		Username:     "alice",
		AccessToken:  expired,
		RefreshToken: "refresh-1",
	}))

	s := h.session(t)
	require.NoError(t, s.Load(ctx))
	assert.True(t, s.Authenticated())
	assert.Equal(t, h.backend.pair.Access, s.Token())
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.backend.refreshCalls))

	record, err := h.tokens.GetTokens(ctx, storage.DefaultProfile)
	require.NoError(t, err)
	assert.Equal(t, h.backend.pair.Access, record.AccessToken)
	assert.Equal(t, "refresh-1", record.RefreshToken)
}

func TestLoadDiscardsRejectedToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.tokens.PutTokens(ctx, storage.TokenRecord{
		Profile:      storage.DefaultProfile,
		AccessToken:  signedToken(t, "7", fixedNow.Add(time.Hour)),
		RefreshToken: "refresh-1",
	}))

	s := h.session(t)
	require.NoError(t, s.Load(ctx))
	assert.False(t, s.Authenticated())
	assert.Empty(t, s.Token())

	_, err := h.tokens.GetTokens(ctx, storage.DefaultProfile)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLoadDiscardsOnFailedRefresh(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.tokens.PutTokens(ctx, storage.TokenRecord{
		Profile:      storage.DefaultProfile,
		AccessToken:  signedToken(t, "7", fixedNow.Add(-time.Hour)),
		RefreshToken: "revoked",
	}))

	s := h.session(t)
	require.NoError(t, s.Load(ctx))
	assert.False(t, s.Authenticated())
	assert.Zero(t, atomic.LoadInt32(&h.backend.meCalls))

	_, err := h.tokens.GetTokens(ctx, storage.DefaultProfile)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	s := h.session(t)
	ctx := context.Background()

	require.NoError(t, s.Login(ctx, "alice", "secret"))
	require.NoError(t, s.Logout(ctx))
	assert.False(t, s.Authenticated())

	_, err := h.tokens.GetTokens(ctx, storage.DefaultProfile)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, ok, err := h.caches.GetUser(ctx, tokenKey(h.backend.pair.Access))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnauthorizedHookClears(t *testing.T) {
	h := newHarness(t)
	s := h.session(t)
	ctx := context.Background()

	require.NoError(t, s.Login(ctx, "alice", "secret"))

	h.backend.mu.Lock()
	h.backend.accepted = map[string]bool{}
	h.backend.mu.Unlock()

	_, err := h.client.Me(ctx)
	require.Error(t, err)
	assert.False(t, s.Authenticated())
	assert.Empty(t, s.Token())
}

func TestUnresolvedPoleStaysNil(t *testing.T) {
	user := &model.User{ID: 7, Role: model.RoleChefPole, PoleName: "Inconnu"}
	s, err := New(stubAuth{}, Config{})
	require.NoError(t, err)

	s.resolvePole(context.Background(), user)
	assert.Nil(t, user.Pole)
}

func TestOpaqueTokenNeverExpires(t *testing.T) {
	s, err := New(stubAuth{}, Config{Now: func() time.Time { return fixedNow }})
	require.NoError(t, err)

	assert.False(t, s.expired("not-a-jwt"))
	assert.Nil(t, s.expiresAt(""))
	assert.True(t, s.expired(signedToken(t, "7", fixedNow.Add(10*time.Second))), "tokens inside the skew count as expired")
	assert.False(t, s.expired(signedToken(t, "7", fixedNow.Add(time.Hour))))
}

type stubAuth struct{}

func (stubAuth) Login(context.Context, string, string) (api.TokenPair, error) {
	return api.TokenPair{}, nil
}

func (stubAuth) Refresh(context.Context, string) (api.TokenPair, error) {
	return api.TokenPair{}, nil
}

func (stubAuth) Me(context.Context) (*model.User, error) {
	return nil, nil
}

func (stubAuth) ListPoles(context.Context) ([]model.Pole, error) {
	return []model.Pole{{ID: 1, Name: "Communication"}}, nil
}
