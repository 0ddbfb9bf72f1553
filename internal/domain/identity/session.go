// Package identity models the signed-in user as the storefront sees it.
package identity

import (
	"strings"
	"time"
)

// Role names issued by the store API
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// Claims are the decoded fields of a bearer token. They are a hint for
// optimistic UI only; the profile endpoint is authoritative.
type Claims struct {
	Subject   string    `json:"sub"`
	UserID    int64     `json:"userId,omitempty"`
	Email     string    `json:"email,omitempty"`
	Username  string    `json:"username,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
}

// Expired reports whether the claims carry an expiry that lies before now
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Profile is the server's view of the signed-in user
type Profile struct {
	ID       int64    `json:"id,omitempty"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
	JoinedAt string   `json:"joinedAt,omitempty"`
}

// User is the in-memory signed-in user assembled from claims and profile
type User struct {
	ID       int64    `json:"id,omitempty"`
	Username string   `json:"username,omitempty"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles"`
	JoinedAt string   `json:"joinedAt,omitempty"`
}

// UserFromClaims builds the optimistic user shown right after login
func UserFromClaims(c Claims) User {
	email := c.Email
	if email == "" && strings.Contains(c.Subject, "@") {
		email = c.Subject
	}
	username := c.Username
	if username == "" && !strings.Contains(c.Subject, "@") {
		username = c.Subject
	}
	return User{
		ID:       c.UserID,
		Username: username,
		Email:    email,
		Roles:    NormalizeRoles(c.Roles),
	}
}

// Reconcile overlays the authoritative profile on top of the claim-derived
// user. Profile roles replace claim roles even when the profile has none.
func (u User) Reconcile(p Profile) User {
	out := u
	if p.ID != 0 {
		out.ID = p.ID
	}
	if p.Username != "" {
		out.Username = p.Username
	}
	if p.Email != "" {
		out.Email = p.Email
	}
	out.JoinedAt = p.JoinedAt
	out.Roles = NormalizeRoles(p.Roles)
	return out
}

// HasRole is a pure membership check against the cached role list
func (u User) HasRole(role string) bool {
	return HasRole(u.Roles, role)
}

// HasRole reports whether roles contains role. A missing or empty list never
// contains anything.
func HasRole(roles []string, role string) bool {
	want := normalizeRole(role)
	if want == "" {
		return false
	}
	for _, r := range roles {
		if normalizeRole(r) == want {
			return true
		}
	}
	return false
}

// NormalizeRoles upper-cases roles, strips the Spring "ROLE_" prefix and drops
// blanks and duplicates.
func NormalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		n := normalizeRole(r)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func normalizeRole(r string) string {
	r = strings.ToUpper(strings.TrimSpace(r))
	return strings.TrimPrefix(r, "ROLE_")
}

// Session is a read-only snapshot of the auth store
type Session struct {
	// Resolved is false until the stored token (if any) has been validated
	Resolved bool  `json:"resolved"`
	LoggedIn bool  `json:"loggedIn"`
	User     *User `json:"user,omitempty"`
}

// IsAdmin reports whether the session user holds the admin role
func (s Session) IsAdmin() bool {
	return s.User != nil && s.User.HasRole(RoleAdmin)
}

// Credentials is the login form
type Credentials struct {
	Identifier string `json:"identifier" binding:"required" validate:"required"`
	Password   string `json:"password" binding:"required,min=6" validate:"required,min=6"`
}

// Registration is the sign-up form. Name becomes the username.
type Registration struct {
	Name     string `json:"name" binding:"required,max=50" validate:"required,max=50"`
	Email    string `json:"email" binding:"required,email" validate:"required,email"`
	Password string `json:"password" binding:"required,min=6" validate:"required,min=6"`
}

// RegisterResult is the outcome of a sign-up
type RegisterResult struct {
	// Token is set when the server logged the new user in
	Token   string `json:"-"`
	Message string `json:"message,omitempty"`
}

// PasswordReset is the reset-password form
type PasswordReset struct {
	Token           string `json:"token" form:"token" binding:"required" validate:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"omitempty,eqfield=NewPassword"`
}

// ForgotPassword is the forgot-password form
type ForgotPassword struct {
	Email string `json:"email" binding:"required,email" validate:"required,email"`
}
