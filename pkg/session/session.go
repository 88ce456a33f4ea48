// Package session holds the authenticated user and bearer token of one login
// profile, with an explicit load/clear lifecycle.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/golang-jwt/jwt/v5"

	"github.com/geniusharmony/harmony/pkg/api"
	"github.com/geniusharmony/harmony/pkg/cache"
	herrors "github.com/geniusharmony/harmony/pkg/errors"
	"github.com/geniusharmony/harmony/pkg/model"
	"github.com/geniusharmony/harmony/pkg/storage"
)

const (
	DefaultUserTTL = 5 * time.Minute
	DefaultPoleTTL = time.Hour

	// expirySkew treats a token as expired slightly before its exp claim.
	expirySkew   = 30 * time.Second
	clearTimeout = 5 * time.Second
)

// Authenticator is the subset of the REST client the session needs.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (api.TokenPair, error)
	Refresh(ctx context.Context, refresh string) (api.TokenPair, error)
	Me(ctx context.Context) (*model.User, error)
}

// PoleLister resolves pole names when /auth/me reports the pole by name.
type PoleLister interface {
	ListPoles(ctx context.Context) ([]model.Pole, error)
}

type Config struct {
	Profile string
	Tokens  storage.TokenStore
	Cache   cache.Dependencies
	Poles   PoleLister
	UserTTL time.Duration
	PoleTTL time.Duration
	Logger  logr.Logger
	Now     func() time.Time
}

type Session struct {
	auth    Authenticator
	poles   PoleLister
	tokens  storage.TokenStore
	users   cache.UserCache
	poleIDs cache.PoleCache
	profile string
	userTTL time.Duration
	poleTTL time.Duration
	logger  logr.Logger
	now     func() time.Time

	mu       sync.RWMutex
	access   string
	username string
	user     *model.User
}

var _ api.TokenSource = (*Session)(nil)

func New(auth Authenticator, config Config) (*Session, error) {
	if auth == nil {
		return nil, herrors.ErrMissingAPI
	}

	s := &Session{
		auth:    auth,
		poles:   config.Poles,
		tokens:  config.Tokens,
		users:   config.Cache.User,
		poleIDs: config.Cache.Pole,
		profile: config.Profile,
		userTTL: config.UserTTL,
		poleTTL: config.PoleTTL,
		logger:  config.Logger,
		now:     config.Now,
	}
	if s.poles == nil {
		if lister, ok := auth.(PoleLister); ok {
			s.poles = lister
		}
	}
	if s.profile == "" {
		s.profile = storage.DefaultProfile
	}
	if s.userTTL <= 0 {
		s.userTTL = DefaultUserTTL
	}
	if s.poleTTL <= 0 {
		s.poleTTL = DefaultPoleTTL
	}
	if s.logger.GetSink() == nil {
		s.logger = logr.Discard()
	}
	s.logger = s.logger.WithName("session").WithValues("profile", s.profile)
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Load restores the persisted tokens of the profile and fetches the user
// they belong to. A missing token leaves the session empty. A token the
// backend no longer accepts is discarded.
func (s *Session) Load(ctx context.Context) error {
	if s.tokens == nil {
		s.reset()
		return nil
	}

	record, err := s.tokens.GetTokens(ctx, s.profile)
	if stderrors.Is(err, storage.ErrNotFound) {
		s.reset()
		return nil
	}
	if err != nil {
		return herrors.Wrap(herrors.CodeStorageUnavailable, "failed to read session tokens", err)
	}

	access, refresh := record.AccessToken, record.RefreshToken
	if s.expired(access) {
		s.logger.V(1).Info("access token expired, refreshing")
		pair, err := s.auth.Refresh(ctx, refresh)
		if err != nil {
			return s.discard(ctx, "refresh failed", err)
		}
		access, refresh = pair.Access, pair.Refresh
		record.AccessToken, record.RefreshToken = access, refresh
		record.ExpiresAt = s.expiresAt(access)
		if err := s.tokens.PutTokens(ctx, record); err != nil {
			s.logger.Error(err, "failed to persist refreshed tokens")
		}
	}

	s.setTokens(access, record.Username)

	user, err := s.fetchUser(ctx, access)
	if err != nil {
		return s.discard(ctx, "failed to fetch current user", err)
	}
	s.setUser(user)
	s.logger.V(1).Info("session restored", "user_id", user.ID, "role", user.Role)
	return nil
}

// Login exchanges credentials for tokens, fetches the user and persists the
// tokens under the session profile.
func (s *Session) Login(ctx context.Context, username, password string) error {
	pair, err := s.auth.Login(ctx, username, password)
	if err != nil {
		return err
	}

	username = strings.TrimSpace(username)

	// installed only once /auth/me accepts it
	user, err := s.fetchUser(api.WithToken(ctx, pair.Access), pair.Access)
	if err != nil {
		return err
	}
	s.setTokens(pair.Access, username)
	s.setUser(user)
	s.logger.V(1).Info("logged in", "user_id", user.ID, "role", user.Role)

	if s.tokens == nil {
		return nil
	}
	err = s.tokens.PutTokens(ctx, storage.TokenRecord{
		Profile:      s.profile,
		Username:     username,
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
		ExpiresAt:    s.expiresAt(pair.Access),
	})
	if err != nil {
		return herrors.Wrap(herrors.CodeStorageUnavailable, "failed to persist session tokens", err)
	}
	return nil
}

// Logout forgets the session in memory, in the token store and in the user
// cache.
func (s *Session) Logout(ctx context.Context) error {
	access := s.Token()
	s.reset()

	var errs []error
	if s.users != nil && access != "" {
		if err := s.users.DeleteUser(ctx, tokenKey(access)); err != nil {
			errs = append(errs, err)
		}
	}
	if s.tokens != nil {
		if err := s.tokens.DeleteTokens(ctx, s.profile); err != nil {
			errs = append(errs, err)
		}
	}
	if err := stderrors.Join(errs...); err != nil {
		return herrors.Wrap(herrors.CodeStorageUnavailable, "failed to clear persisted session", err)
	}
	s.logger.V(1).Info("logged out")
	return nil
}

// Clear drops the session after the backend rejected its token. It is safe
// to call from the REST client's unauthorized hook.
func (s *Session) Clear() {
	if s.Token() == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), clearTimeout)
	defer cancel()
	if err := s.Logout(ctx); err != nil {
		s.logger.Error(err, "failed to clear session")
	}
}

// User returns a copy of the authenticated user, or nil.
func (s *Session) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.access != ""
}

func (s *Session) Profile() string {
	return s.profile
}

func (s *Session) fetchUser(ctx context.Context, access string) (*model.User, error) {
	key := tokenKey(access)
	if s.users != nil {
		snapshot, ok, err := s.users.GetUser(ctx, key)
		if err != nil {
			s.logger.Error(err, "user cache lookup failed")
		}
		if ok {
			user := snapshot.User
			return &user, nil
		}
	}

	user, err := s.auth.Me(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, herrors.New(herrors.CodeUnknown, "empty current user response")
	}
	s.resolvePole(ctx, user)

	if s.users != nil {
		snapshot := cache.UserSnapshot{User: *user.Clone(), CachedAt: s.now().UTC()}
		if err := s.users.SetUser(ctx, key, snapshot, s.userTTL); err != nil {
			s.logger.Error(err, "failed to cache current user")
		}
	}
	return user, nil
}

// resolvePole fills User.Pole from User.PoleName. An unresolved name leaves
// Pole nil, so pole-scoped rights stay denied.
func (s *Session) resolvePole(ctx context.Context, user *model.User) {
	if user.Pole != nil || user.PoleName == "" {
		return
	}

	if s.poleIDs != nil {
		id, ok, err := s.poleIDs.GetPoleID(ctx, user.PoleName)
		if err != nil {
			s.logger.Error(err, "pole cache lookup failed", "pole", user.PoleName)
		}
		if ok {
			user.Pole = &id
			return
		}
	}

	if s.poles == nil {
		return
	}
	poles, err := s.poles.ListPoles(ctx)
	if err != nil {
		s.logger.Error(err, "failed to resolve pole name", "pole", user.PoleName)
		return
	}
	for _, pole := range poles {
		if s.poleIDs != nil {
			if err := s.poleIDs.SetPoleID(ctx, pole.Name, pole.ID, s.poleTTL); err != nil {
				s.logger.Error(err, "failed to cache pole id", "pole", pole.Name)
			}
		}
		if pole.Name == user.PoleName {
			id := pole.ID
			user.Pole = &id
		}
	}
}

// discard forgets tokens the backend refused. Rejections clear silently,
// anything else is reported after clearing.
func (s *Session) discard(ctx context.Context, msg string, err error) error {
	s.logger.Error(err, msg)
	if clearErr := s.Logout(ctx); clearErr != nil {
		s.logger.Error(clearErr, "failed to discard session tokens")
	}
	if herrors.IsCode(err, herrors.CodeUnauthenticated) {
		return nil
	}
	return err
}

func (s *Session) expired(access string) bool {
	exp := s.expiresAt(access)
	if exp == nil {
		return false
	}
	return !s.now().Add(expirySkew).Before(*exp)
}

// expiresAt reads the exp claim without verifying the signature; the
// backend remains the verifier.
func (s *Session) expiresAt(access string) *time.Time {
	if access == "" {
		return nil
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, claims); err != nil {
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	exp := claims.ExpiresAt.Time.UTC()
	return &exp
}

func (s *Session) setTokens(access, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = access
	s.username = username
}

func (s *Session) setUser(user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user.Clone()
}

func (s *Session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = ""
	s.username = ""
	s.user = nil
}

func tokenKey(access string) string {
	sum := sha256.Sum256([]byte(access))
	return hex.EncodeToString(sum[:])
}
