package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/cyberguard-client/httpclient"
	"github.com/jrsteele09/cyberguard-client/sessions"
	"github.com/jrsteele09/cyberguard-client/token"
	"github.com/jrsteele09/cyberguard-client/token/refresh"
	"github.com/jrsteele09/cyberguard-client/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Auth endpoints relative to the API base URL.
const (
	LoginPath              = "/api/v1/auth/login"
	RegisterPath           = "/api/v1/auth/register"
	RefreshPath            = refresh.Path
	CurrentUserPath        = "/api/v1/auth/me"
	LogoutPath             = "/api/v1/auth/logout"
	VerifyEmailPath        = "/api/v1/auth/verify-email"
	ResendVerificationPath = "/api/v1/auth/resend-verification"
	SetupTwoFactorPath     = "/api/v1/auth/2fa/setup"
	VerifyTwoFactorPath    = "/api/v1/auth/2fa/verify"
	DisableTwoFactorPath   = "/api/v1/auth/2fa/disable"
	ProviderRedirectPath   = "/api/v1/auth/oauth2/redirect/"
	ResetPasswordPath      = "/api/v1/auth/reset-password"
)

const invalidResponseMessage = "Received invalid response from server"

// Provider is an external identity provider the backend can redirect to.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
)

func (p Provider) Valid() bool {
	return p == ProviderGoogle || p == ProviderGitHub
}

// LoginResult is what a successful login leaves behind.
type LoginResult struct {
	SessionToken string
	RefreshToken string
	User         *users.User
}

// TwoFactorSetup is the authenticator enrolment returned by the backend.
type TwoFactorSetup struct {
	Secret    string `json:"secret"`
	QRCodeURL string `json:"qrCodeUrl"`
}

// Controller orchestrates the authentication lifecycle: login, registration, logout, refresh,
// email verification, two-factor setup and provider logins.
type Controller struct {
	session   *sessions.Session
	clients   Clients
	refresher *refresh.Manager
	navigator Navigator
	validator *Validator
	nowTime   func() time.Time
}

// ControllerOption defines a function type to modify the Controller instance.
type ControllerOption func(*Controller)

// WithNavigator sets where route changes are sent. Without one they are dropped.
func WithNavigator(n Navigator) ControllerOption {
	return func(c *Controller) {
		c.navigator = n
	}
}

// WithRefreshManager shares the interceptor's refresh manager so explicit and silent refreshes
// are serialised together.
func WithRefreshManager(m *refresh.Manager) ControllerOption {
	return func(c *Controller) {
		c.refresher = m
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ControllerOption {
	return func(c *Controller) {
		c.nowTime = nowFunc
	}
}

// NewController creates a Controller. clients.API is required; when clients.Login is empty,
// logins go through a single attempt on clients.API.
func NewController(session *sessions.Session, clients Clients, opts ...ControllerOption) (*Controller, error) {
	if session == nil {
		return nil, errors.New("[NewController] session is required")
	}
	if clients.API == nil {
		return nil, errors.New("[NewController] api client is required")
	}
	if len(clients.Login) == 0 {
		clients.Login = []*httpclient.Client{clients.API}
	}

	c := &Controller{
		session:   session,
		clients:   clients,
		navigator: noopNavigator{},
		validator: NewValidator(),
		nowTime:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.refresher == nil {
		m, err := refresh.NewManager(clients.Login[0], session)
		if err != nil {
			return nil, err
		}
		c.refresher = m
	}
	session.OnExpired(func(ctx context.Context) {
		c.navigator.Navigate(ctx, RouteLogin)
	})
	return c, nil
}

func (c *Controller) Session() *sessions.Session {
	return c.session
}

// loginResponse accepts the shapes the auth service has used: {token, refreshToken, user},
// {accessToken, refreshToken} and either of those wrapped in {data: ...}.
type loginResponse struct {
	Token        string          `json:"token"`
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
	User         json.RawMessage `json:"user"`
	Data         *loginResponse  `json:"data"`
}

func (r *loginResponse) resolve() (sessionToken, refreshToken string, user *users.User) {
	sessionToken, refreshToken, user = r.Token, r.RefreshToken, decodeUser(r.User)
	if sessionToken == "" {
		sessionToken = r.AccessToken
	}
	if r.Data != nil {
		ds, dr, du := r.Data.resolve()
		if sessionToken == "" {
			sessionToken = ds
		}
		if refreshToken == "" {
			refreshToken = dr
		}
		if user == nil {
			user = du
		}
	}
	return sessionToken, refreshToken, user
}

// decodeUser reads the user embedded in a login response. The tokens are what matter, so an
// unexpected user shape is logged and left for CurrentUser to resolve.
func decodeUser(raw json.RawMessage) *users.User {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var u users.User
	if err := json.Unmarshal(raw, &u); err != nil {
		log.Warn().Err(err).Msg("Ignoring unreadable user in login response")
		return nil
	}
	return &u
}

// Login checks the form, then authenticates through the login fallback chain. On success the
// pair is stored, the user profile fetched when the response did not include it, and the
// Navigator sent to the dashboard.
func (c *Controller) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if err := c.validator.ValidateLogin(LoginRequest{Email: email, Password: password}); err != nil {
		return nil, err
	}

	c.session.BeginAuthentication()
	res, err := c.sendLoginChain(ctx, LoginPath, LoginRequest{Email: strings.TrimSpace(email), Password: password})
	if err != nil {
		c.session.AbortAuthentication()
		ae := loginError(err)
		log.Warn().Str("detail", ae.Detail()).Msg("Login failed")
		return nil, ae
	}

	var body loginResponse
	if err := json.Unmarshal(res.Body, &body); err != nil {
		c.session.AbortAuthentication()
		return nil, &AuthError{Op: "login", Message: invalidResponseMessage, StatusCode: res.StatusCode, Err: err}
	}
	sessionToken, refreshToken, user := body.resolve()
	if sessionToken == "" {
		c.session.AbortAuthentication()
		return nil, &AuthError{Op: "login", Message: invalidResponseMessage, StatusCode: res.StatusCode}
	}

	result, err := c.establish(ctx, "login", sessionToken, refreshToken, user)
	if err != nil {
		return nil, err
	}
	c.navigator.Navigate(ctx, RouteDashboard)
	return result, nil
}

func loginError(err error) *AuthError {
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		msg := se.Message
		if msg == httpclient.GenericMessage(se.StatusCode) {
			msg = fmt.Sprintf("Login failed (Status %d). Please try again.", se.StatusCode)
		}
		return &AuthError{Op: "login", Message: msg, StatusCode: se.StatusCode, Err: err}
	}
	if httpclient.IsNetworkError(err) {
		return &AuthError{Op: "login", Message: httpclient.ConnectivityMessage, Err: err}
	}
	return &AuthError{Op: "login", Message: "Login failed. Please try again.", Err: err}
}

// establish stores a freshly issued pair and resolves the user behind it.
func (c *Controller) establish(ctx context.Context, op, sessionToken, refreshToken string, user *users.User) (*LoginResult, error) {
	pair := token.Pair{SessionToken: sessionToken, RefreshToken: refreshToken, AcquiredAt: c.nowTime()}
	if err := c.session.SetTokens(ctx, pair); err != nil {
		c.session.AbortAuthentication()
		return nil, &AuthError{Op: op, Message: "Could not save the session", Err: err}
	}

	if user == nil {
		// The session is usable without the profile
		fetched, err := c.CurrentUser(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Could not fetch the current user after login")
		} else {
			user = fetched
		}
	} else if user.ID != "" {
		c.session.SetUserID(user.ID.String())
	}

	return &LoginResult{SessionToken: sessionToken, RefreshToken: refreshToken, User: user}, nil
}

// sendLoginChain posts body through each login client in turn. Only a NetworkError moves on to
// the next client; any HTTP answer is final.
func (c *Controller) sendLoginChain(ctx context.Context, path string, body any) (*httpclient.Response, error) {
	var lastErr error
	for i, client := range c.clients.Login {
		res, err := client.Send(ctx, http.MethodPost, path, body)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !httpclient.IsNetworkError(err) || ctx.Err() != nil {
			return nil, err
		}
		log.Warn().Err(err).Int("attempt", i+1).Str("base_url", client.BaseURL()).Msg("Auth request could not reach server, trying next address")
	}
	return nil, lastErr
}

// Register checks the form and creates the account. Server-side rejections are returned
// verbatim as a RegistrationError. On success the Navigator is sent to the login page.
func (c *Controller) Register(ctx context.Context, req RegisterRequest) error {
	if err := c.validator.ValidateRegistration(req); err != nil {
		return err
	}
	req.Email = strings.TrimSpace(req.Email)

	c.session.BeginAuthentication()
	defer c.session.AbortAuthentication()

	if _, err := c.sendLoginChain(ctx, RegisterPath, req); err != nil {
		log.Err(err).Msg("Registration failed")
		var se *httpclient.StatusError
		if errors.As(err, &se) {
			return &RegistrationError{Message: se.Message, StatusCode: se.StatusCode, Err: err}
		}
		if httpclient.IsNetworkError(err) {
			return &RegistrationError{Message: httpclient.ConnectivityMessage, Err: err}
		}
		return &RegistrationError{Message: "Registration failed. Please try again.", Err: err}
	}

	c.navigator.Navigate(ctx, RouteLoginRegistered)
	return nil
}

// Logout tells the server on a best-effort basis, then always clears the session and sends the
// Navigator to the login page.
func (c *Controller) Logout(ctx context.Context) error {
	if sessionToken, ok := c.session.Token(ctx); ok {
		// Explicit credentials keep a rejected logout from expiring the session twice
		_, err := c.clients.API.Send(ctx, http.MethodPost, LogoutPath, nil,
			httpclient.WithRequestHeader("Authorization", "Bearer "+sessionToken))
		switch {
		case err == nil:
		case httpclient.IsStatus(err, http.StatusUnauthorized):
			log.Debug().Msg("Session had already ended on the server")
		default:
			log.Warn().Err(err).Msg("Server logout failed, continuing with client-side logout")
		}
	}
	c.session.Clear(ctx)
	c.navigator.Navigate(ctx, RouteLogin)
	return nil
}

// Refresh exchanges refreshToken (the stored one when empty) for a new Session Token and
// stores the new pair.
func (c *Controller) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		pair, ok := c.session.Tokens(ctx)
		if !ok || pair.RefreshToken == "" {
			return "", &AuthError{Op: "refresh", Message: "No refresh token available", StatusCode: http.StatusUnauthorized}
		}
		refreshToken = pair.RefreshToken
	}

	pair, err := c.refresher.Rotate(ctx, refreshToken)
	if err != nil {
		ae := &AuthError{Op: "refresh", Message: "Session refresh failed", Err: err}
		var se *httpclient.StatusError
		if errors.As(err, &se) {
			ae.StatusCode = se.StatusCode
			ae.Message = se.Message
		} else if httpclient.IsNetworkError(err) {
			ae.Message = httpclient.ConnectivityMessage
		}
		log.Warn().Str("detail", ae.Detail()).Msg("Token refresh failed")
		return "", ae
	}
	return pair.SessionToken, nil
}

// CurrentUser fetches the profile of the authenticated user.
func (c *Controller) CurrentUser(ctx context.Context) (*users.User, error) {
	u, err := httpclient.Get[users.User](ctx, c.clients.API, CurrentUserPath)
	if err != nil {
		log.Err(err).Msg("Error fetching current user")
		return nil, err
	}
	if u.ID != "" {
		c.session.SetUserID(u.ID.String())
	}
	return &u, nil
}

// VerifyEmail confirms an address with the token sent by email. It needs no session and goes
// through the login fallback chain.
func (c *Controller) VerifyEmail(ctx context.Context, verificationToken string) error {
	if strings.TrimSpace(verificationToken) == "" {
		return &ValidationError{Field: "Token", Message: "Verification token is required"}
	}
	if _, err := c.sendLoginChain(ctx, VerifyEmailPath, map[string]string{"token": verificationToken}); err != nil {
		log.Err(err).Msg("Email verification failed")
		return err
	}
	return nil
}

// RequestPasswordReset asks the auth service to email a reset link. Like login it needs no
// session and goes through the login fallback chain; on success the Navigator is sent back to
// the login page.
func (c *Controller) RequestPasswordReset(ctx context.Context, email string) error {
	req := PasswordResetRequest{Email: strings.TrimSpace(email)}
	if err := c.validator.ValidatePasswordReset(req); err != nil {
		return err
	}

	if _, err := c.sendLoginChain(ctx, ResetPasswordPath, req); err != nil {
		ae := &AuthError{Op: "reset-password", Message: "An error occurred. Please try again.", Err: err}
		var se *httpclient.StatusError
		if errors.As(err, &se) {
			ae.StatusCode = se.StatusCode
			ae.Message = se.Message
			if se.Message == httpclient.GenericMessage(se.StatusCode) {
				ae.Message = "Failed to send reset link. Please try again."
			}
		} else if httpclient.IsNetworkError(err) {
			ae.Message = httpclient.ConnectivityMessage
		}
		log.Warn().Str("detail", ae.Detail()).Msg("Password reset request failed")
		return ae
	}

	c.navigator.Navigate(ctx, RouteLogin)
	return nil
}

func (c *Controller) ResendVerification(ctx context.Context) error {
	if _, err := c.clients.API.Send(ctx, http.MethodPost, ResendVerificationPath, nil); err != nil {
		log.Err(err).Msg("Resend verification failed")
		return err
	}
	return nil
}

func (c *Controller) SetupTwoFactor(ctx context.Context) (*TwoFactorSetup, error) {
	setup, err := httpclient.Post[TwoFactorSetup](ctx, c.clients.API, SetupTwoFactorPath, nil)
	if err != nil {
		log.Err(err).Msg("2FA setup failed")
		return nil, err
	}
	return &setup, nil
}

func (c *Controller) VerifyTwoFactor(ctx context.Context, code string) error {
	if err := c.validator.ValidateTwoFactorCode(code); err != nil {
		return err
	}
	if _, err := c.clients.API.Send(ctx, http.MethodPost, VerifyTwoFactorPath, map[string]string{"code": code}); err != nil {
		log.Err(err).Msg("2FA verification failed")
		return err
	}
	return nil
}

func (c *Controller) DisableTwoFactor(ctx context.Context, code string) error {
	if err := c.validator.ValidateTwoFactorCode(code); err != nil {
		return err
	}
	if _, err := c.clients.API.Send(ctx, http.MethodPost, DisableTwoFactorPath, map[string]string{"code": code}); err != nil {
		log.Err(err).Msg("2FA disable failed")
		return err
	}
	return nil
}

// ProviderURL is the backend-hosted authorisation URL for provider. redirectURI, when set, is
// where the backend sends the tokens afterwards.
func (c *Controller) ProviderURL(provider Provider, redirectURI string) (string, error) {
	if !provider.Valid() {
		return "", errors.Wrapf(ErrUnknownProvider, "[Controller.ProviderURL] %q", provider)
	}
	u, err := url.Parse(c.clients.API.BaseURL() + ProviderRedirectPath + string(provider))
	if err != nil {
		return "", errors.Wrap(err, "[Controller.ProviderURL] parse")
	}
	if redirectURI != "" {
		q := u.Query()
		q.Set("redirect_uri", redirectURI)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// LoginWithProvider sends the Navigator to the provider's authorisation URL. The login resumes
// in CompleteProviderLogin when the callback arrives.
func (c *Controller) LoginWithProvider(ctx context.Context, provider Provider, redirectURI string) (string, error) {
	target, err := c.ProviderURL(provider, redirectURI)
	if err != nil {
		return "", err
	}
	c.session.BeginAuthentication()
	c.navigator.Navigate(ctx, target)
	return target, nil
}

// CompleteProviderLogin consumes the callback query string of a provider login.
func (c *Controller) CompleteProviderLogin(ctx context.Context, query url.Values) (*LoginResult, error) {
	sessionToken := query.Get("token")
	if sessionToken == "" {
		c.session.AbortAuthentication()
		msg := "No token received"
		if e := query.Get("error"); e != "" {
			msg = e
		}
		c.navigator.Navigate(ctx, RouteLoginFailed)
		return nil, &AuthError{Op: "oauth2", Message: msg, StatusCode: http.StatusUnauthorized, Err: ErrMissingToken}
	}

	c.session.BeginAuthentication()
	result, err := c.establish(ctx, "oauth2", sessionToken, query.Get("refreshToken"), nil)
	if err != nil {
		c.navigator.Navigate(ctx, RouteLoginFailed)
		return nil, err
	}
	c.navigator.Navigate(ctx, RouteDashboard)
	return result, nil
}

// CompleteTokenLogin stores a pair obtained outside the backend login endpoints, such as a direct
// OIDC code exchange.
func (c *Controller) CompleteTokenLogin(ctx context.Context, sessionToken, refreshToken string) (*LoginResult, error) {
	if sessionToken == "" {
		return nil, &AuthError{Op: "oidc", Message: "No token received", Err: ErrMissingToken}
	}
	c.session.BeginAuthentication()
	result, err := c.establish(ctx, "oidc", sessionToken, refreshToken, nil)
	if err != nil {
		return nil, err
	}
	c.navigator.Navigate(ctx, RouteDashboard)
	return result, nil
}
