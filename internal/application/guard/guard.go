// Package guard decides whether a view may render for the current session.
package guard

import (
	"context"
	"time"

	"github.com/omkarjtg/ecomm/internal/application/notice"
	"github.com/omkarjtg/ecomm/internal/domain/identity"
	"go.uber.org/zap"
)

// Kind is the outcome of a guard check
type Kind string

const (
	// Pending holds rendering until the stored token has been validated
	Pending           Kind = "pending"
	Allowed           Kind = "allowed"
	RedirectLogin     Kind = "redirect_login"
	RedirectForbidden Kind = "redirect_forbidden"
)

// Requirement is what a route demands of the session
type Requirement int

const (
	Public Requirement = iota
	Authenticated
	Admin
)

// String returns the string representation of Requirement
func (r Requirement) String() string {
	switch r {
	case Authenticated:
		return "authenticated"
	case Admin:
		return "admin"
	}
	return "public"
}

// Redirect targets and the notices shown with them
const (
	LoginPath     = "/login"
	ForbiddenPath = "/forbidden"

	MsgLoginRequired = "Please log in to access this page"
	MsgAdminRequired = "Admin access required for this page"
)

// DefaultWait bounds how long Check waits for the auth store to resolve
const DefaultWait = 3 * time.Second

// Decision is the result of one guard check
type Decision struct {
	Kind     Kind   `json:"state"`
	Location string `json:"location,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Decide is the single transition function of the guard
func Decide(sess identity.Session, req Requirement) Decision {
	if req == Public {
		return Decision{Kind: Allowed}
	}
	if !sess.Resolved {
		return Decision{Kind: Pending}
	}
	if !sess.LoggedIn {
		return Decision{Kind: RedirectLogin, Location: LoginPath, Message: MsgLoginRequired}
	}
	if req == Admin && !sess.IsAdmin() {
		return Decision{Kind: RedirectForbidden, Location: ForbiddenPath, Message: MsgAdminRequired}
	}
	return Decision{Kind: Allowed}
}

// SessionSource is the auth state the guard reads
type SessionSource interface {
	Session() identity.Session
	Ready() <-chan struct{}
}

// Guard checks routes against the auth store
type Guard struct {
	auth    SessionSource
	notices *notice.Center
	wait    time.Duration
	logger  *zap.Logger
}

// Option configures a Guard
type Option func(*Guard)

// WithWait sets how long Check waits for hydration before answering Pending
func WithWait(d time.Duration) Option {
	return func(g *Guard) {
		if d >= 0 {
			g.wait = d
		}
	}
}

// New creates a Guard
func New(auth SessionSource, notices *notice.Center, logger *zap.Logger, opts ...Option) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notices == nil {
		notices = notice.NewCenter()
	}
	g := &Guard{auth: auth, notices: notices, wait: DefaultWait, logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check waits (bounded) for the auth store to resolve and decides. A redirect
// pushes its notice once per call.
func (g *Guard) Check(ctx context.Context, req Requirement) Decision {
	if req != Public {
		g.awaitReady(ctx)
	}
	d := Decide(g.auth.Session(), req)
	switch d.Kind {
	case RedirectLogin:
		g.notices.Error(d.Message)
		g.logger.Debug("Guard redirecting to login", zap.Stringer("requirement", req))
	case RedirectForbidden:
		g.notices.Error(d.Message)
		g.logger.Debug("Guard redirecting to forbidden", zap.Stringer("requirement", req))
	}
	return d
}

func (g *Guard) awaitReady(ctx context.Context) {
	ready := g.auth.Ready()
	select {
	case <-ready:
		return
	default:
	}
	if g.wait == 0 {
		return
	}
	timer := time.NewTimer(g.wait)
	defer timer.Stop()
	select {
	case <-ready:
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Session returns the current auth snapshot the guard decides on
func (g *Guard) Session() identity.Session {
	return g.auth.Session()
}
