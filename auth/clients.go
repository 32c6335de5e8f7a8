package auth

import (
	"github.com/jrsteele09/cyberguard-client/httpclient"
	"github.com/jrsteele09/cyberguard-client/internal/config"
	"github.com/jrsteele09/cyberguard-client/sessions"
	"github.com/jrsteele09/cyberguard-client/token/refresh"
	"github.com/pkg/errors"
)

// Clients holds the HTTP clients the Controller talks through.
type Clients struct {
	API   *httpclient.Client   // Authenticated calls, interceptor applied
	Login []*httpclient.Client // Tried in order for login, registration and email verification
}

// Wiring is the assembled access layer for one configuration.
type Wiring struct {
	Clients     Clients
	Refresh     *refresh.Manager
	Interceptor *Interceptor
}

// NewWiring builds the API client with the interceptor and the login fallback chain: the API
// gateway, the gateway again with the longer fallback timeout, then the auth service directly.
// opts are applied to every client.
func NewWiring(cfg config.APIConfig, session *sessions.Session, opts ...httpclient.Option) (*Wiring, error) {
	if session == nil {
		return nil, errors.New("[auth.NewWiring] session is required")
	}

	plain, err := httpclient.New(cfg.GetAPIBaseURL(), withDefaults(opts, httpclient.WithTimeout(cfg.GetRequestTimeout()))...)
	if err != nil {
		return nil, errors.Wrap(err, "[auth.NewWiring] primary client")
	}
	fallback, err := httpclient.New(cfg.GetAPIBaseURL(), withDefaults(opts, httpclient.WithTimeout(cfg.GetFallbackTimeout()))...)
	if err != nil {
		return nil, errors.Wrap(err, "[auth.NewWiring] fallback client")
	}
	authService, err := httpclient.New(cfg.GetAuthServiceURL(), withDefaults(opts, httpclient.WithTimeout(cfg.GetFallbackTimeout()))...)
	if err != nil {
		return nil, errors.Wrap(err, "[auth.NewWiring] auth service client")
	}

	manager, err := refresh.NewManager(plain, session)
	if err != nil {
		return nil, err
	}
	interceptor := NewInterceptor(session, manager)

	api, err := httpclient.New(cfg.GetAPIBaseURL(), withDefaults(opts,
		httpclient.WithTimeout(cfg.GetRequestTimeout()),
		httpclient.WithMiddleware(httpclient.LoggingMiddleware, interceptor.Middleware),
	)...)
	if err != nil {
		return nil, errors.Wrap(err, "[auth.NewWiring] api client")
	}

	return &Wiring{
		Clients: Clients{
			API:   api,
			Login: []*httpclient.Client{plain, fallback, authService},
		},
		Refresh:     manager,
		Interceptor: interceptor,
	}, nil
}

// withDefaults puts the per-client options before the caller's so callers can override them.
func withDefaults(callerOpts []httpclient.Option, defaults ...httpclient.Option) []httpclient.Option {
	return append(defaults, callerOpts...)
}
