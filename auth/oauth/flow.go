// Package oauth drives browser-based logins: the backend-hosted provider redirect and a direct
// OIDC authorisation code flow with PKCE. Both hand the resulting tokens to auth.Controller.
package oauth

import (
	"context"
	"net/url"

	"github.com/jrsteele09/cyberguard-client/auth"
)

// Callback paths served by the loopback callback server.
const (
	BackendCallbackPath = "/oauth2/callback"
	OIDCCallbackPath    = "/oauth2/oidc/callback"
)

// Flow is one provider login. Start returns the URL the user must open; Complete consumes the
// query string the provider redirected back with.
type Flow interface {
	Start(ctx context.Context) (string, error)
	Complete(ctx context.Context, query url.Values) (*auth.LoginResult, error)
	CallbackPath() string
}
