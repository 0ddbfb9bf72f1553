package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/omkarjtg/ecomm/internal/domain/identity"
)

// ErrNoToken is returned when a login or register response carries no token
var ErrNoToken = errors.New("apiclient: response carries no token")

// AuthAPI wraps the account endpoints
type AuthAPI struct {
	c *Client
}

// Auth returns the account endpoints
func (c *Client) Auth() *AuthAPI {
	return &AuthAPI{c: c}
}

// Login exchanges credentials for a bearer token. Bad credentials come back
// as 401, which must not be treated as a session expiry.
func (a *AuthAPI) Login(ctx context.Context, cred identity.Credentials) (string, error) {
	resp, err := a.c.Do(ctx, Request{
		Method:    http.MethodPost,
		Path:      "/login",
		Body:      cred,
		KeepToken: true,
	})
	if err != nil {
		return "", err
	}
	return tokenFrom(resp)
}

// Register creates an account. The server may log the user in straight away,
// in which case the token is returned.
func (a *AuthAPI) Register(ctx context.Context, reg identity.Registration) (identity.RegisterResult, error) {
	resp, err := a.c.Do(ctx, Request{
		Method:    http.MethodPost,
		Path:      "/register",
		Body:      reg,
		KeepToken: true,
	})
	if err != nil {
		return identity.RegisterResult{}, err
	}
	if resp.StatusCode == http.StatusCreated {
		if token, err := tokenFrom(resp); err == nil {
			return identity.RegisterResult{Token: token}, nil
		}
	}
	return identity.RegisterResult{Message: resp.Text()}, nil
}

// Profile fetches the authoritative profile of the token holder
func (a *AuthAPI) Profile(ctx context.Context) (identity.Profile, error) {
	resp, err := a.c.Get(ctx, "/profile", nil)
	if err != nil {
		return identity.Profile{}, err
	}
	var p identity.Profile
	if err := resp.Decode(&p); err != nil {
		return identity.Profile{}, err
	}
	return p, nil
}

// ForgotPassword requests a reset link for email
func (a *AuthAPI) ForgotPassword(ctx context.Context, email string) (string, error) {
	resp, err := a.c.Post(ctx, "/forgot-password", map[string]string{"email": email})
	if err != nil {
		return "", err
	}
	return messageOf(resp), nil
}

// ResetPassword sets a new password using the emailed token
func (a *AuthAPI) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	resp, err := a.c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/reset-password",
		Query:  map[string]string{"token": token},
		Body:   map[string]string{"newPassword": newPassword},
	})
	if err != nil {
		return "", err
	}
	return messageOf(resp), nil
}

// tokenFrom accepts the token either as the plain body or as {"token": ...}
func tokenFrom(resp *Response) (string, error) {
	var obj struct {
		Token       string `json:"token"`
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(resp.Body, &obj); err == nil {
		if obj.Token != "" {
			return obj.Token, nil
		}
		if obj.AccessToken != "" {
			return obj.AccessToken, nil
		}
	}
	token := resp.Text()
	if token == "" || strings.ContainsAny(token, " {}") {
		return "", ErrNoToken
	}
	return token, nil
}

func messageOf(resp *Response) string {
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp.Body, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return resp.Text()
}
