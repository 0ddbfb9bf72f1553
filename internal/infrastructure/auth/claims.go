// Package auth decodes bearer tokens issued by the store API. The storefront
// never holds the signing key: decoded claims are a hint for optimistic UI
// and the profile endpoint stays authoritative.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/omkarjtg/ecomm/internal/domain/identity"
)

var (
	ErrMalformedToken = errors.New("malformed token")
	ErrExpiredToken   = errors.New("token has expired")
)

// BearerPrefix is stripped from tokens handed over with their scheme
const BearerPrefix = "Bearer "

var parser = jwt.NewParser()

// ExtractClaims decodes the payload of token without verifying its
// signature. It is the only place the storefront reads token contents.
func ExtractClaims(token string) (identity.Claims, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), BearerPrefix))
	if token == "" {
		return identity.Claims{}, ErrMalformedToken
	}

	mc := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, mc); err != nil {
		return identity.Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	var c identity.Claims
	c.Subject, _ = mc.GetSubject()
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	c.UserID = int64Claim(mc["userId"])
	c.Email = stringClaim(mc["email"])
	c.Username = stringClaim(mc["username"])
	c.Roles = identity.NormalizeRoles(rolesClaim(mc))
	return c, nil
}

// ValidClaims decodes token and rejects it when its expiry has passed
func ValidClaims(token string, now time.Time) (identity.Claims, error) {
	c, err := ExtractClaims(token)
	if err != nil {
		return identity.Claims{}, err
	}
	if c.Expired(now) {
		return c, ErrExpiredToken
	}
	return c, nil
}

// rolesClaim accepts the single "role" string the store issues as well as a
// "roles" or "authorities" array.
func rolesClaim(mc jwt.MapClaims) []string {
	var out []string
	if r := stringClaim(mc["role"]); r != "" {
		out = append(out, r)
	}
	for _, key := range []string{"roles", "authorities"} {
		switch v := mc[key].(type) {
		case []any:
			for _, item := range v {
				if s := stringClaim(item); s != "" {
					out = append(out, s)
				}
			}
		case string:
			for _, s := range strings.Split(v, ",") {
				out = append(out, s)
			}
		}
	}
	return out
}

func stringClaim(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		// Spring GrantedAuthority serialised as {"authority": "ROLE_ADMIN"}
		if a, ok := t["authority"].(string); ok {
			return a
		}
	}
	return ""
}

func int64Claim(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	}
	return 0
}
