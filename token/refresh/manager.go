package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/cyberguard-client/httpclient"
	"github.com/jrsteele09/cyberguard-client/internal/errors"
	"github.com/jrsteele09/cyberguard-client/token"
	"github.com/rs/zerolog/log"
)

// Path is the refresh endpoint relative to the API base URL.
const Path = "/api/v1/auth/refresh-token"

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// TokenSource is the session state the Manager reads and rotates.
type TokenSource interface {
	Tokens(ctx context.Context) (token.Pair, bool)
	SetTokens(ctx context.Context, pair token.Pair) error
}

// Manager exchanges the Refresh Token for a new pair. Refreshes are serialised: callers that all
// saw the same rejected Session Token share one refresh call.
type Manager struct {
	client *httpclient.Client
	source TokenSource
	mu     sync.Mutex
}

// NewManager refreshes through client, which must not carry the auth interceptor.
func NewManager(client *httpclient.Client, source TokenSource) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("[refresh.NewManager] http client is required")
	}
	if source == nil {
		return nil, fmt.Errorf("[refresh.NewManager] token source is required")
	}
	return &Manager{client: client, source: source}, nil
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	Token        string           `json:"token"`
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
	Data         *refreshResponse `json:"data"`
}

func (r *refreshResponse) sessionToken() string {
	switch {
	case r.Token != "":
		return r.Token
	case r.AccessToken != "":
		return r.AccessToken
	case r.Data != nil:
		return r.Data.sessionToken()
	}
	return ""
}

func (r *refreshResponse) refreshToken() string {
	if r.RefreshToken == "" && r.Data != nil {
		return r.Data.refreshToken()
	}
	return r.RefreshToken
}

// Refresh returns a Session Token newer than rejected. If another caller already rotated the
// pair, the newer token is returned without calling the server.
func (m *Manager) Refresh(ctx context.Context, rejected string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.source.Tokens(ctx)
	if !ok {
		return "", errors.ErrNoSession
	}
	if current.SessionToken != rejected {
		return current.SessionToken, nil
	}
	if current.RefreshToken == "" {
		return "", errors.ErrNoRefreshToken
	}

	pair, err := m.rotate(ctx, current.RefreshToken)
	if err != nil {
		return "", err
	}
	return pair.SessionToken, nil
}

// Rotate exchanges refreshToken for a new pair and stores it.
func (m *Manager) Rotate(ctx context.Context, refreshToken string) (token.Pair, error) {
	if refreshToken == "" {
		return token.Pair{}, errors.ErrNoRefreshToken
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rotate(ctx, refreshToken)
}

func (m *Manager) rotate(ctx context.Context, refreshToken string) (token.Pair, error) {
	res, err := httpclient.Post[refreshResponse](ctx, m.client, Path, refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		var se *httpclient.StatusError
		if errors.As(err, &se) {
			return token.Pair{}, fmt.Errorf("[Manager.rotate] %w: %w", errors.ErrRefreshRejected, err)
		}
		return token.Pair{}, fmt.Errorf("[Manager.rotate] %w", err)
	}

	next := token.Pair{
		SessionToken: res.sessionToken(),
		RefreshToken: res.refreshToken(),
		AcquiredAt:   NowTimeFunc(),
	}
	if next.SessionToken == "" {
		return token.Pair{}, errors.Wrapf(errors.ErrInvalidResponse, "[Manager.rotate] no token in refresh response")
	}
	// The backend does not always rotate the refresh token
	if next.RefreshToken == "" {
		next.RefreshToken = refreshToken
	}
	if err := m.source.SetTokens(ctx, next); err != nil {
		return token.Pair{}, fmt.Errorf("[Manager.rotate] store tokens: %w", err)
	}
	log.Debug().Msg("Session token refreshed")
	return next, nil
}
