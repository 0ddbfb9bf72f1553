package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/omkarjtg/ecomm/internal/application/inflight"
	"github.com/omkarjtg/ecomm/internal/application/notice"
	"github.com/omkarjtg/ecomm/internal/application/validation"
	"github.com/omkarjtg/ecomm/internal/domain/identity"
	"github.com/omkarjtg/ecomm/internal/domain/shared"
	"github.com/omkarjtg/ecomm/internal/infrastructure/auth"
	"go.uber.org/zap"
)

var (
	ErrNotLoggedIn  = shared.ErrUnauthorized
	ErrInvalidToken = shared.NewDomainError("TOKEN_INVALID", "Invalid or expired login token")
	ErrMissingToken = shared.NewDomainError("TOKEN_INVALID", "OAuth login failed: no token received")
)

// Fallback messages when the server sends none
const (
	MsgLoginFailed    = "Login failed"
	MsgLoginOK        = "Login successful!"
	MsgLogoutOK       = "Logged out successfully!"
	MsgRegisterOK     = "Registration successful! Please log in."
	MsgResetLinkSent  = "If the email is registered, a reset link has been sent"
	MsgPasswordReset  = "Password reset successful. Please log in."
	MsgOAuthLoginOK   = "Logged in successfully!"
	MsgRegisterFailed = "Registration failed"
)

// AccountAPI is the remote account API
type AccountAPI interface {
	Login(ctx context.Context, cred identity.Credentials) (string, error)
	Register(ctx context.Context, reg identity.Registration) (identity.RegisterResult, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) (string, error)
}

// Outcome tells the view where to go after a form succeeded
type Outcome struct {
	Redirect string `json:"redirect"`
	Message  string `json:"message,omitempty"`
}

// AccountService runs the login, sign-up and password forms
type AccountService struct {
	api     AccountAPI
	store   *AuthStore
	notices *notice.Center
	flags   *inflight.Flags
	logger  *zap.Logger
}

// NewAccountService creates a new AccountService
func NewAccountService(api AccountAPI, store *AuthStore, notices *notice.Center, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notices == nil {
		notices = notice.NewCenter()
	}
	return &AccountService{api: api, store: store, notices: notices, flags: inflight.New(), logger: logger}
}

// Login exchanges credentials for a token and signs the user in
func (s *AccountService) Login(ctx context.Context, cred identity.Credentials) (Outcome, error) {
	cred.Identifier = strings.TrimSpace(cred.Identifier)
	if err := validation.Struct(cred); err != nil {
		return Outcome{}, err
	}
	release, err := s.flags.Acquire("login")
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	token, err := s.api.Login(ctx, cred)
	if err != nil {
		s.logger.Info("Login rejected", zap.Error(err))
		return Outcome{}, err
	}
	if err := s.signIn(ctx, token); err != nil {
		return Outcome{}, err
	}
	s.notices.Success(MsgLoginOK)
	return Outcome{Redirect: "/", Message: MsgLoginOK}, nil
}

// Register creates an account. When the server answers with a token the new
// user is signed in straight away.
func (s *AccountService) Register(ctx context.Context, reg identity.Registration) (Outcome, error) {
	reg.Name = strings.TrimSpace(reg.Name)
	reg.Email = strings.TrimSpace(reg.Email)
	if err := validation.Struct(reg); err != nil {
		return Outcome{}, err
	}
	release, err := s.flags.Acquire("signup")
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	res, err := s.api.Register(ctx, reg)
	if err != nil {
		return Outcome{}, err
	}
	if res.Token != "" {
		if err := s.signIn(ctx, res.Token); err != nil {
			s.logger.Warn("Auto-login after sign-up failed", zap.Error(err))
		} else {
			s.notices.Success(MsgLoginOK)
			return Outcome{Redirect: "/", Message: MsgLoginOK}, nil
		}
	}
	msg := MsgRegisterOK
	if res.Message != "" && !strings.HasPrefix(strings.TrimSpace(res.Message), "{") {
		msg = res.Message
	}
	s.notices.Success(msg)
	return Outcome{Redirect: "/login", Message: msg}, nil
}

// ForgotPassword requests a reset link
func (s *AccountService) ForgotPassword(ctx context.Context, form identity.ForgotPassword) (Outcome, error) {
	form.Email = strings.TrimSpace(form.Email)
	if err := validation.Struct(form); err != nil {
		return Outcome{}, err
	}
	release, err := s.flags.Acquire("forgot-password")
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	msg, err := s.api.ForgotPassword(ctx, form.Email)
	if err != nil {
		return Outcome{}, err
	}
	if msg == "" {
		msg = MsgResetLinkSent
	}
	s.notices.Success(msg)
	return Outcome{Redirect: "/login", Message: msg}, nil
}

// ResetPassword sets a new password with the emailed token
func (s *AccountService) ResetPassword(ctx context.Context, form identity.PasswordReset) (Outcome, error) {
	if err := validation.Struct(form); err != nil {
		return Outcome{}, err
	}
	release, err := s.flags.Acquire("reset-password")
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	msg, err := s.api.ResetPassword(ctx, form.Token, form.NewPassword)
	if err != nil {
		return Outcome{}, err
	}
	if msg == "" {
		msg = MsgPasswordReset
	}
	s.notices.Success(msg)
	return Outcome{Redirect: "/login", Message: msg}, nil
}

// CompleteOAuth finishes the OAuth redirect with the token it carried
func (s *AccountService) CompleteOAuth(ctx context.Context, token string) (Outcome, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		s.notices.Error(ErrMissingToken.Message)
		return Outcome{Redirect: "/login"}, ErrMissingToken
	}
	if err := s.signIn(ctx, token); err != nil {
		s.notices.Error(shared.MessageOf(err, MsgLoginFailed))
		return Outcome{Redirect: "/login"}, err
	}
	s.notices.Success(MsgOAuthLoginOK)
	return Outcome{Redirect: "/", Message: MsgOAuthLoginOK}, nil
}

// Logout signs the user out
func (s *AccountService) Logout(ctx context.Context) Outcome {
	s.store.Logout(ctx)
	s.notices.Success(MsgLogoutOK)
	return Outcome{Redirect: "/login", Message: MsgLogoutOK}
}

// Profile re-fetches the signed-in user's profile
func (s *AccountService) Profile(ctx context.Context) (identity.User, error) {
	return s.store.Refresh(ctx)
}

func (s *AccountService) signIn(ctx context.Context, token string) error {
	err := s.store.Login(ctx, token)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrMalformedToken), errors.Is(err, auth.ErrExpiredToken):
		return ErrInvalidToken
	}
	return err
}
