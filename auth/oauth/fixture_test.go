package oauth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/cyberguard-client/auth"
	"github.com/jrsteele09/cyberguard-client/internal/config"
	"github.com/jrsteele09/cyberguard-client/sessions"
	"github.com/jrsteele09/cyberguard-client/token"
	"github.com/stretchr/testify/require"
)

const (
	testClientID = "cyberguard-cli"
	testKeyID    = "test-key"
	testAccess   = "oidc-access-token"
	testRefresh  = "oidc-refresh-token"
)

// fakeIssuer is a minimal OIDC provider: discovery, keys and a token endpoint that checks PKCE.
type fakeIssuer struct {
	server *httptest.Server
	key    *rsa.PrivateKey

	mu         sync.Mutex
	challenges map[string]string // code -> code_challenge
	nonces     map[string]string // code -> nonce to put in the id_token
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	iss := &fakeIssuer{
		key:        key,
		challenges: map[string]string{},
		nonces:     map[string]string{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"issuer":                                iss.server.URL,
			"authorization_endpoint":                iss.server.URL + "/authorize",
			"token_endpoint":                        iss.server.URL + "/token",
			"jwks_uri":                              iss.server.URL + "/keys",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("GET /keys", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"keys": []map[string]string{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": testKeyID,
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	})
	mux.HandleFunc("POST /token", iss.token)
	iss.server = httptest.NewServer(mux)
	t.Cleanup(iss.server.Close)
	return iss
}

// authorize plays the user's consent: it records a code bound to the request's challenge and
// returns the callback query the issuer would redirect with.
func (f *fakeIssuer) authorize(t *testing.T, authURL string, nonceOverride string) url.Values {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.Equal(t, testClientID, q.Get("client_id"))
	require.NotEmpty(t, q.Get("state"))

	nonce := q.Get("nonce")
	if nonceOverride != "" {
		nonce = nonceOverride
	}
	code := "code-" + q.Get("state")
	f.mu.Lock()
	f.challenges[code] = q.Get("code_challenge")
	f.nonces[code] = nonce
	f.mu.Unlock()

	return url.Values{"code": {code}, "state": {q.Get("state")}}
}

func (f *fakeIssuer) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	code := r.PostForm.Get("code")
	f.mu.Lock()
	challenge, ok := f.challenges[code]
	nonce := f.nonces[code]
	delete(f.challenges, code)
	f.mu.Unlock()

	sum := sha256.Sum256([]byte(r.PostForm.Get("code_verifier")))
	if !ok || base64.RawURLEncoding.EncodeToString(sum[:]) != challenge {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		return
	}

	now := time.Now()
	idToken := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   f.server.URL,
		"aud":   testClientID,
		"sub":   "user-42",
		"email": "user@example.com",
		"nonce": nonce,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})
	idToken.Header["kid"] = testKeyID
	signed, err := idToken.SignedString(f.key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"access_token":  testAccess,
		"refresh_token": testRefresh,
		"token_type":    "Bearer",
		"expires_in":    3600,
		"id_token":      signed,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type testFixture struct {
	gateway    *httptest.Server
	store      *token.InMemoryStore
	session    *sessions.Session
	controller *auth.Controller

	mu     sync.Mutex
	routes []string
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{store: token.NewInMemoryStore()}

	f.gateway = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == auth.CurrentUserPath {
			writeJSON(w, map[string]any{"id": 42, "email": "user@example.com", "firstName": "Ada"})
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(f.gateway.Close)

	ctx := context.Background()
	session, err := sessions.New(ctx, f.store)
	require.NoError(t, err)
	f.session = session

	wiring, err := auth.NewWiring(config.API{
		BaseURL:         f.gateway.URL,
		AuthServiceURL:  f.gateway.URL,
		Timeout:         2 * time.Second,
		FallbackTimeout: 2 * time.Second,
	}, session)
	require.NoError(t, err)

	f.controller, err = auth.NewController(session, wiring.Clients,
		auth.WithRefreshManager(wiring.Refresh),
		auth.WithNavigator(auth.NavigatorFunc(func(_ context.Context, target string) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.routes = append(f.routes, target)
		})),
	)
	require.NoError(t, err)
	return f
}

func (f *testFixture) navigations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.routes...)
}
