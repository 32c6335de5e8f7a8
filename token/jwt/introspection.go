package jwt

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/cyberguard-client/internal/utils"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Claims is what the client can learn from a Session Token without the server's key.
// The values are for display and scheduling only; the server remains the authority.
type Claims struct {
	Subject   string    `json:"sub,omitempty"`
	Email     string    `json:"email,omitempty"`
	Issuer    string    `json:"iss,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
}

// Expired reports whether the exp claim has passed. Tokens without exp never expire locally.
func (c Claims) Expired() bool {
	return !c.ExpiresAt.IsZero() && NowTimeFunc().After(c.ExpiresAt)
}

// ExpiresWithin reports whether the token expires within d.
func (c Claims) ExpiresWithin(d time.Duration) bool {
	return !c.ExpiresAt.IsZero() && NowTimeFunc().Add(d).After(c.ExpiresAt)
}

var errNotJWT = errors.New("token is not a JWT")

// Inspect decodes the claims of rawToken without verifying the signature.
// Opaque (non JWT) tokens yield an error; callers treat that as "unknown".
func Inspect(rawToken string) (*Claims, error) {
	rawToken = strings.TrimSpace(strings.TrimPrefix(rawToken, "Bearer "))
	if strings.Count(rawToken, ".") != 2 {
		return nil, errNotJWT
	}

	token, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("error extracting claims")
	}

	c := &Claims{}
	c.Subject, _ = claims["sub"].(string)
	c.Email, _ = claims["email"].(string)
	c.Issuer, _ = claims["iss"].(string)
	if iat, _ := claims["iat"].(float64); iat > 0 {
		c.IssuedAt = time.Unix(int64(iat), 0)
	}
	if exp, _ := claims["exp"].(float64); exp > 0 {
		c.ExpiresAt = time.Unix(int64(exp), 0)
	}

	c.Roles = utils.StringList(claims["roles"])
	if len(c.Roles) == 0 {
		if role, ok := claims["role"].(string); ok && role != "" {
			c.Roles = []string{role}
		}
	}
	return c, nil
}
