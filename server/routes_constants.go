package server

import "github.com/jrsteele09/cyberguard-client/auth/oauth"

// Route path constants
const (
	RouteBackendCallback = oauth.BackendCallbackPath
	RouteOIDCCallback    = oauth.OIDCCallbackPath
	RouteHealth          = "/healthz"
)
