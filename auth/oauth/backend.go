package oauth

import (
	"context"
	"net/url"

	"github.com/jrsteele09/cyberguard-client/auth"
)

var _ Flow = (*BackendFlow)(nil)

// BackendFlow is the gateway-hosted provider login: the backend talks to the provider and
// redirects back with token and refreshToken query parameters.
type BackendFlow struct {
	controller  *auth.Controller
	provider    auth.Provider
	redirectURI string
}

func NewBackendFlow(controller *auth.Controller, provider auth.Provider, redirectURI string) *BackendFlow {
	return &BackendFlow{
		controller:  controller,
		provider:    provider,
		redirectURI: redirectURI,
	}
}

func (f *BackendFlow) Start(ctx context.Context) (string, error) {
	return f.controller.LoginWithProvider(ctx, f.provider, f.redirectURI)
}

func (f *BackendFlow) Complete(ctx context.Context, query url.Values) (*auth.LoginResult, error) {
	return f.controller.CompleteProviderLogin(ctx, query)
}

func (f *BackendFlow) CallbackPath() string {
	return BackendCallbackPath
}
