package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/cyberguard-client/auth"
	"github.com/jrsteele09/cyberguard-client/internal/config"
	"github.com/jrsteele09/cyberguard-client/sessions"
	"github.com/jrsteele09/cyberguard-client/token"
	"github.com/stretchr/testify/require"
)

const (
	testEmail        = "user@example.com"
	testPassword     = "password123"
	testSession      = "session-token-1"
	testRefresh      = "refresh-token-1"
	testFreshSession = "session-token-2"
	testFreshRefresh = "refresh-token-2"
)

// fakeGateway is a scripted API gateway that records every request it receives.
type fakeGateway struct {
	server   *httptest.Server
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	hits     map[string]int
	authSeen []string
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	g := &fakeGateway{
		handlers: map[string]http.HandlerFunc{},
		hits:     map[string]int{},
	}
	g.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path
		g.mu.Lock()
		g.hits[route]++
		g.authSeen = append(g.authSeen, r.Header.Get("Authorization"))
		h, ok := g.handlers[route]
		g.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(g.server.Close)
	return g
}

func (g *fakeGateway) handle(route string, h http.HandlerFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers[route] = h
}

func (g *fakeGateway) count(route string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hits[route]
}

func (g *fakeGateway) total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.hits {
		n += c
	}
	return n
}

func (g *fakeGateway) lastAuthorization() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.authSeen) == 0 {
		return ""
	}
	return g.authSeen[len(g.authSeen)-1]
}

func jsonResponse(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

// closedURL is the address of a server that is no longer listening.
func closedURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	return srv.URL
}

// testFixture holds all test dependencies
type testFixture struct {
	gateway    *fakeGateway
	store      *token.InMemoryStore
	session    *sessions.Session
	wiring     *auth.Wiring
	controller *auth.Controller

	mu        sync.Mutex
	navigated []string
}

type fixtureOption func(*config.API)

func withAPIURL(u string) fixtureOption {
	return func(c *config.API) { c.BaseURL = u }
}

func withAuthServiceURL(u string) fixtureOption {
	return func(c *config.API) { c.AuthServiceURL = u }
}

// setupTestFixture wires the access layer against a fresh fake gateway
func setupTestFixture(t *testing.T, opts ...fixtureOption) *testFixture {
	t.Helper()
	ctx := context.Background()

	f := &testFixture{
		gateway: newFakeGateway(t),
		store:   token.NewInMemoryStore(),
	}
	cfg := config.API{
		BaseURL:         f.gateway.server.URL,
		AuthServiceURL:  f.gateway.server.URL,
		Timeout:         2 * time.Second,
		FallbackTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var err error
	f.session, err = sessions.New(ctx, f.store)
	require.NoError(t, err)
	f.wiring, err = auth.NewWiring(cfg, f.session)
	require.NoError(t, err)
	f.controller, err = auth.NewController(f.session, f.wiring.Clients,
		auth.WithRefreshManager(f.wiring.Refresh),
		auth.WithNavigator(auth.NavigatorFunc(func(_ context.Context, target string) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.navigated = append(f.navigated, target)
		})),
	)
	require.NoError(t, err)
	return f
}

func (f *testFixture) navigations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.navigated...)
}

func (f *testFixture) saveTokens(t *testing.T, sessionToken, refreshToken string) {
	t.Helper()
	require.NoError(t, f.session.SetTokens(context.Background(), token.Pair{SessionToken: sessionToken, RefreshToken: refreshToken}))
}

func (f *testFixture) requireStoreEmpty(t *testing.T) {
	t.Helper()
	_, ok := f.store.Read(context.Background())
	require.False(t, ok)
}
