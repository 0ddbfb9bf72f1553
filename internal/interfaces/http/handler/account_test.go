package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	appidentity "github.com/omkarjtg/ecomm/internal/application/identity"
	"github.com/omkarjtg/ecomm/internal/application/notice"
	"github.com/omkarjtg/ecomm/internal/domain/identity"
	"github.com/omkarjtg/ecomm/internal/infrastructure/apiclient"
	"github.com/omkarjtg/ecomm/internal/infrastructure/localstore"
	"github.com/omkarjtg/ecomm/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBadCredentials = &apiclient.APIError{StatusCode: http.StatusUnauthorized, Message: "Login failed"}

type stubAccountAPI struct {
	loginErr   error
	forgotSent []string
	resets     map[string]string
}

func (s *stubAccountAPI) Login(context.Context, identity.Credentials) (string, error) {
	return "", s.loginErr
}

func (s *stubAccountAPI) Register(context.Context, identity.Registration) (identity.RegisterResult, error) {
	return identity.RegisterResult{Message: "User registered successfully"}, nil
}

func (s *stubAccountAPI) ForgotPassword(_ context.Context, email string) (string, error) {
	s.forgotSent = append(s.forgotSent, email)
	return "", nil
}

func (s *stubAccountAPI) ResetPassword(_ context.Context, token, newPassword string) (string, error) {
	if s.resets == nil {
		s.resets = map[string]string{}
	}
	s.resets[token] = newPassword
	return "Password has been reset", nil
}

type noProfile struct{}

func (noProfile) Profile(context.Context) (identity.Profile, error) {
	return identity.Profile{}, errors.New("no profile in tests")
}

type accountFixture struct {
	api     *stubAccountAPI
	notices *notice.Center
	engine  *gin.Engine
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()
	mem := localstore.NewMemory()
	t.Cleanup(func() { _ = mem.Close() })

	notices := notice.NewCenter()
	auth := appidentity.NewAuthStore(mem, noProfile{}, nil)
	auth.Init(context.Background())
	api := &stubAccountAPI{loginErr: errBadCredentials}
	h := NewAccountHandler(appidentity.NewAccountService(api, auth, notices, nil), auth, notices)

	r := gin.New()
	r.GET("/login", h.Session)
	r.POST("/login", h.Login)
	r.POST("/signup", h.Signup)
	r.POST("/forgot-password", h.ForgotPassword)
	r.POST("/reset-password", h.ResetPassword)
	r.POST("/logout", h.Logout)
	r.GET("/oauth2/redirect", h.OAuthRedirect)

	return &accountFixture{api: api, notices: notices, engine: r}
}

func (f *accountFixture) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestAccountHandler_LoginValidation(t *testing.T) {
	f := newAccountFixture(t)

	w := f.do(http.MethodPost, "/login", `{"identifier":"","password":"123"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	fields := make([]string, 0, len(resp.Error.Details))
	for _, d := range resp.Error.Details {
		fields = append(fields, d.Field)
	}
	assert.ElementsMatch(t, []string{"identifier", "password"}, fields)
}

func TestAccountHandler_LoginRejected(t *testing.T) {
	f := newAccountFixture(t)

	w := f.do(http.MethodPost, "/login", `{"identifier":"jane@example.com","password":"secret1"}`)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Header().Get("Location"))
	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, dto.ErrCodeUnauthorized, resp.Error.Code)
	assert.Equal(t, "Login failed", resp.Error.Message)
}

func TestAccountHandler_ForgotAndReset(t *testing.T) {
	f := newAccountFixture(t)

	w := f.do(http.MethodPost, "/forgot-password", `{"email":"jane@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"jane@example.com"}, f.api.forgotSent)
	assert.Contains(t, w.Body.String(), `"redirect":"/login"`)

	w = f.do(http.MethodPost, "/reset-password?token=tok-1", `{"newPassword":"secret99"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "secret99", f.api.resets["tok-1"])
	assert.Contains(t, w.Body.String(), "Password has been reset")
}

func TestAccountHandler_OAuthRedirectWithoutToken(t *testing.T) {
	f := newAccountFixture(t)

	w := f.do(http.MethodGet, "/oauth2/redirect", "")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	// the notice rides on the next view
	w = f.do(http.MethodGet, "/login", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.Len(t, resp.Notices, 1)
	assert.Equal(t, appidentity.ErrMissingToken.Message, resp.Notices[0].Message)
	assert.Equal(t, notice.LevelError, resp.Notices[0].Level)
}

func TestAccountHandler_Logout(t *testing.T) {
	f := newAccountFixture(t)

	w := f.do(http.MethodPost, "/logout", "")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.Len(t, resp.Notices, 1)
	assert.Equal(t, appidentity.MsgLogoutOK, resp.Notices[0].Message)
	assert.Contains(t, w.Body.String(), `"redirect":"/login"`)
	assert.Zero(t, f.notices.Len())
}
