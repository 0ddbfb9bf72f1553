// Package identity tracks the signed-in user and runs the account forms.
package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/omkarjtg/ecomm/internal/domain/identity"
	"github.com/omkarjtg/ecomm/internal/infrastructure/auth"
	"github.com/omkarjtg/ecomm/internal/infrastructure/localstore"
	"go.uber.org/zap"
)

// ProfileFetcher loads the authoritative profile of the token holder
type ProfileFetcher interface {
	Profile(ctx context.Context) (identity.Profile, error)
}

// AuthStore is the single gate for protected and admin views. The token lives
// in local storage; decoded claims only seed an optimistic session until the
// profile endpoint answers.
type AuthStore struct {
	mu       sync.RWMutex
	storage  localstore.Store
	profiles ProfileFetcher
	logger   *zap.Logger
	now      func() time.Time

	resolved bool
	token    string
	user     *identity.User

	ready     chan struct{}
	readyOnce sync.Once
	// epoch increases on every login and logout so a profile answer for an
	// older session is ignored
	epoch uint64
}

// NewAuthStore creates an unresolved auth store; call Init to hydrate it
func NewAuthStore(storage localstore.Store, profiles ProfileFetcher, logger *zap.Logger) *AuthStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthStore{
		storage:  storage,
		profiles: profiles,
		logger:   logger,
		now:      time.Now,
		ready:    make(chan struct{}),
	}
}

// Init hydrates the store from the stored token. A missing, malformed or
// expired token, or one the profile endpoint rejects, ends logged out.
func (s *AuthStore) Init(ctx context.Context) {
	defer s.markResolved()

	token, ok, err := s.storage.Get(ctx, localstore.KeyToken)
	if err != nil {
		s.logger.Warn("Failed to read stored token", zap.Error(err))
		return
	}
	if !ok || token == "" {
		return
	}
	if _, err := s.validClaims(token); err != nil {
		s.logger.Info("Discarding stored token", zap.Error(err))
		s.Logout(ctx)
		return
	}
	if err := s.adopt(ctx, token); err != nil {
		s.logger.Info("Stored token rejected by profile endpoint", zap.Error(err))
	}
}

// Login persists token, shows the session decoded from its claims and then
// reconciles it with the profile. A failed profile fetch logs out.
func (s *AuthStore) Login(ctx context.Context, token string) error {
	if _, err := s.validClaims(token); err != nil {
		return err
	}
	if err := s.storage.Set(ctx, localstore.KeyToken, token); err != nil {
		return err
	}
	defer s.markResolved()
	return s.adopt(ctx, token)
}

// adopt sets the optimistic session for token and reconciles it
func (s *AuthStore) adopt(ctx context.Context, token string) error {
	claims, _ := auth.ExtractClaims(token)
	optimistic := identity.UserFromClaims(claims)

	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.token = token
	s.user = &optimistic
	s.mu.Unlock()

	profile, err := s.profiles.Profile(ctx)
	if err != nil {
		s.logoutIf(ctx, epoch)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return nil
	}
	reconciled := optimistic.Reconcile(profile)
	s.user = &reconciled
	return nil
}

// Refresh re-fetches the profile for the current session
func (s *AuthStore) Refresh(ctx context.Context) (identity.User, error) {
	s.mu.RLock()
	epoch, user := s.epoch, s.user
	s.mu.RUnlock()
	if user == nil {
		return identity.User{}, ErrNotLoggedIn
	}

	profile, err := s.profiles.Profile(ctx)
	if err != nil {
		return identity.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.user == nil {
		return identity.User{}, ErrNotLoggedIn
	}
	reconciled := s.user.Reconcile(profile)
	s.user = &reconciled
	return reconciled, nil
}

// Logout clears the token and every in-memory auth field
func (s *AuthStore) Logout(ctx context.Context) {
	s.clear()
	if err := s.storage.Remove(ctx, localstore.KeyToken); err != nil {
		s.logger.Warn("Failed to remove stored token", zap.Error(err))
	}
}

func (s *AuthStore) logoutIf(ctx context.Context, epoch uint64) {
	s.mu.RLock()
	current := s.epoch == epoch
	s.mu.RUnlock()
	if current {
		s.Logout(ctx)
	}
}

func (s *AuthStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.token = ""
	s.user = nil
}

// HandleUnauthorized is hooked to the API client: the client already dropped
// the stored token, the store only forgets the session.
func (s *AuthStore) HandleUnauthorized(_ context.Context, status int) {
	s.logger.Info("Session ended by the server", zap.Int("status", status))
	s.clear()
}

// HasRole is a pure membership check against the cached roles
func (s *AuthStore) HasRole(role string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.user.HasRole(role)
}

// Session returns a snapshot of the auth state
func (s *AuthStore) Session() identity.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess := identity.Session{Resolved: s.resolved, LoggedIn: s.user != nil}
	if s.user != nil {
		u := *s.user
		u.Roles = append([]string(nil), s.user.Roles...)
		sess.User = &u
	}
	return sess
}

// CurrentUser returns the signed-in user
func (s *AuthStore) CurrentUser() (identity.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return identity.User{}, false
	}
	return *s.user, true
}

// Ready is closed once the stored token has been validated
func (s *AuthStore) Ready() <-chan struct{} {
	return s.ready
}

func (s *AuthStore) markResolved() {
	s.readyOnce.Do(func() {
		s.mu.Lock()
		s.resolved = true
		s.mu.Unlock()
		close(s.ready)
	})
}

// Watch follows login and logout performed in other tabs until ctx is done
func (s *AuthStore) Watch(ctx context.Context) <-chan struct{} {
	changes := s.storage.Watch(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for c := range changes {
			if c.Key != localstore.KeyToken {
				continue
			}
			if c.Removed || c.Value == "" {
				s.logger.Debug("Logged out in another tab")
				s.clear()
				continue
			}
			if s.currentToken() == c.Value {
				continue
			}
			s.logger.Debug("Logged in from another tab")
			if err := s.adopt(ctx, c.Value); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Info("Token from another tab rejected", zap.Error(err))
			}
		}
	}()
	return done
}

func (s *AuthStore) currentToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// validClaims rejects tokens that are malformed or expired. The store issues
// only sub and role, so whether the session is valid is left to the profile.
func (s *AuthStore) validClaims(token string) (identity.Claims, error) {
	return auth.ValidClaims(token, s.now())
}
