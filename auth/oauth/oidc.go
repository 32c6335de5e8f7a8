package oauth

import (
	"context"
	"net/http"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/jrsteele09/cyberguard-client/auth"
	cgerrors "github.com/jrsteele09/cyberguard-client/internal/errors"
	"github.com/jrsteele09/cyberguard-client/server/authflowrepo"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const oidcProviderName = "oidc"

// OIDCSettings identify the client at the issuer.
type OIDCSettings struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

var _ Flow = (*OIDCFlow)(nil)

// OIDCFlow runs the authorisation code flow with PKCE against an OIDC issuer and stores the
// issued access and refresh tokens as the session pair.
type OIDCFlow struct {
	controller *auth.Controller
	states     authflowrepo.Repo
	provider   *oidc.Provider
	config     oauth2.Config
	verifier   *oidc.IDTokenVerifier
	httpClient *http.Client
}

type OIDCOption func(*OIDCFlow)

// WithOIDCHTTPClient sets the client used for discovery, key fetches and the code exchange.
func WithOIDCHTTPClient(c *http.Client) OIDCOption {
	return func(f *OIDCFlow) {
		f.httpClient = c
	}
}

// NewOIDCFlow discovers the issuer's endpoints and keys.
func NewOIDCFlow(ctx context.Context, settings OIDCSettings, controller *auth.Controller, states authflowrepo.Repo, opts ...OIDCOption) (*OIDCFlow, error) {
	if settings.Issuer == "" || settings.ClientID == "" {
		return nil, errors.New("[NewOIDCFlow] issuer and client id are required")
	}
	if controller == nil || states == nil {
		return nil, errors.New("[NewOIDCFlow] controller and state repo are required")
	}

	f := &OIDCFlow{
		controller: controller,
		states:     states,
	}
	for _, opt := range opts {
		opt(f)
	}

	provider, err := oidc.NewProvider(f.context(ctx), settings.Issuer)
	if err != nil {
		return nil, errors.Wrap(err, "[NewOIDCFlow] oidc.NewProvider")
	}
	f.provider = provider
	f.verifier = provider.Verifier(&oidc.Config{ClientID: settings.ClientID})
	f.config = oauth2.Config{
		ClientID:     settings.ClientID,
		ClientSecret: settings.ClientSecret,
		RedirectURL:  settings.RedirectURI,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess},
	}
	return f, nil
}

// Start records a fresh state, PKCE verifier and nonce and returns the issuer's authorisation URL.
func (f *OIDCFlow) Start(ctx context.Context) (string, error) {
	state := uuid.NewString()
	nonce := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	if err := f.states.Upsert(state, &authflowrepo.AuthFlowState{
		Provider:     oidcProviderName,
		CodeVerifier: verifier,
		Nonce:        nonce,
		RedirectURI:  f.config.RedirectURL,
	}); err != nil {
		return "", errors.Wrap(err, "[OIDCFlow.Start] states.Upsert")
	}

	authURL := f.config.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oidc.Nonce(nonce),
	)
	f.controller.Session().BeginAuthentication()
	log.Debug().Str("state", state).Msg("oidc login started")
	return authURL, nil
}

// Complete validates state, exchanges the code and checks the ID token before establishing the
// session.
func (f *OIDCFlow) Complete(ctx context.Context, query url.Values) (*auth.LoginResult, error) {
	result, err := f.complete(ctx, query)
	if err != nil {
		f.controller.Session().AbortAuthentication()
		return nil, err
	}
	return result, nil
}

func (f *OIDCFlow) complete(ctx context.Context, query url.Values) (*auth.LoginResult, error) {
	if providerErr := query.Get("error"); providerErr != "" {
		msg := providerErr
		if desc := query.Get("error_description"); desc != "" {
			msg = desc
		}
		return nil, &auth.AuthError{Op: "oidc", Message: msg, StatusCode: http.StatusUnauthorized}
	}

	state := query.Get("state")
	if state == "" {
		return nil, &auth.AuthError{Op: "oidc", Message: "Missing state", Err: cgerrors.ErrInvalidState}
	}
	flowState, err := f.states.Take(state)
	if err != nil {
		log.Err(err).Str("state", state).Msg("Unknown oidc state")
		return nil, &auth.AuthError{Op: "oidc", Message: "Invalid or expired login attempt", Err: errors.Wrap(cgerrors.ErrInvalidState, err.Error())}
	}

	code := query.Get("code")
	if code == "" {
		return nil, &auth.AuthError{Op: "oidc", Message: "Missing authorization code", Err: cgerrors.ErrMissingToken}
	}

	tok, err := f.config.Exchange(f.context(ctx), code, oauth2.VerifierOption(flowState.CodeVerifier))
	if err != nil {
		return nil, &auth.AuthError{Op: "oidc", Message: "Token exchange failed", Err: errors.Wrap(err, "[OIDCFlow.Complete] Exchange")}
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, &auth.AuthError{Op: "oidc", Message: "No id_token in token response", Err: cgerrors.ErrMissingToken}
	}
	idToken, err := f.verifier.Verify(f.context(ctx), rawIDToken)
	if err != nil {
		return nil, &auth.AuthError{Op: "oidc", Message: "Invalid id_token", Err: errors.Wrap(err, "[OIDCFlow.Complete] Verify")}
	}
	if idToken.Nonce != flowState.Nonce {
		return nil, &auth.AuthError{Op: "oidc", Message: "Nonce mismatch", Err: cgerrors.ErrInvalidState}
	}

	return f.controller.CompleteTokenLogin(ctx, tok.AccessToken, tok.RefreshToken)
}

func (f *OIDCFlow) CallbackPath() string {
	return OIDCCallbackPath
}

func (f *OIDCFlow) context(ctx context.Context) context.Context {
	if f.httpClient == nil {
		return ctx
	}
	return oidc.ClientContext(ctx, f.httpClient)
}
