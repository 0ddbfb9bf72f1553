package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	appidentity "github.com/omkarjtg/ecomm/internal/application/identity"
	"github.com/omkarjtg/ecomm/internal/application/notice"
	"github.com/omkarjtg/ecomm/internal/domain/identity"
)

// AccountHandler serves the login, sign-up, password and profile views
type AccountHandler struct {
	BaseHandler
	accounts *appidentity.AccountService
	auth     *appidentity.AuthStore
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accounts *appidentity.AccountService, auth *appidentity.AuthStore, notices *notice.Center) *AccountHandler {
	return &AccountHandler{BaseHandler: NewBaseHandler(notices), accounts: accounts, auth: auth}
}

// Session handles GET /login. It reports the current session so the login
// view can send signed-in users home.
func (h *AccountHandler) Session(c *gin.Context) {
	h.Success(c, h.auth.Session())
}

// Login handles POST /login
func (h *AccountHandler) Login(c *gin.Context) {
	var req identity.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}
	h.outcome(c)(h.accounts.Login(c.Request.Context(), req))
}

// Signup handles POST /signup
func (h *AccountHandler) Signup(c *gin.Context) {
	var req identity.Registration
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}
	h.outcome(c)(h.accounts.Register(c.Request.Context(), req))
}

// ForgotPassword handles POST /forgot-password
func (h *AccountHandler) ForgotPassword(c *gin.Context) {
	var req identity.ForgotPassword
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}
	h.outcome(c)(h.accounts.ForgotPassword(c.Request.Context(), req))
}

// ResetPassword handles POST /reset-password. The token may come from the
// reset link's query string.
func (h *AccountHandler) ResetPassword(c *gin.Context) {
	var req identity.PasswordReset
	if tok := c.Query("token"); tok != "" {
		req.Token = tok
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}
	h.outcome(c)(h.accounts.ResetPassword(c.Request.Context(), req))
}

// Logout handles POST /logout
func (h *AccountHandler) Logout(c *gin.Context) {
	h.Success(c, h.accounts.Logout(c.Request.Context()))
}

// OAuthRedirect handles GET /oauth2/redirect?token=. It always navigates;
// the outcome is reported by the notice shown on the next view.
func (h *AccountHandler) OAuthRedirect(c *gin.Context) {
	out, _ := h.accounts.CompleteOAuth(c.Request.Context(), c.Query("token"))
	c.Redirect(http.StatusFound, out.Redirect)
}

// Profile handles GET /profile
func (h *AccountHandler) Profile(c *gin.Context) {
	user, err := h.accounts.Profile(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, user)
}

func (h *AccountHandler) outcome(c *gin.Context) func(appidentity.Outcome, error) {
	return func(out appidentity.Outcome, err error) {
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, out)
	}
}
