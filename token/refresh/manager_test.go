package refresh_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jrsteele09/cyberguard-client/httpclient"
	"github.com/jrsteele09/cyberguard-client/internal/errors"
	"github.com/jrsteele09/cyberguard-client/sessions"
	"github.com/jrsteele09/cyberguard-client/token"
	"github.com/jrsteele09/cyberguard-client/token/refresh"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	server  *httptest.Server
	session *sessions.Session
	manager *refresh.Manager
	calls   atomic.Int32
}

func newTestFixture(t *testing.T, handler func(w http.ResponseWriter, body map[string]string)) *testFixture {
	t.Helper()
	f := &testFixture{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, refresh.Path, r.URL.Path)
		require.Empty(t, r.Header.Get("Authorization"))
		f.calls.Add(1)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		handler(w, body)
	}))
	t.Cleanup(f.server.Close)

	var err error
	f.session, err = sessions.New(context.Background(), token.NewInMemoryStore())
	require.NoError(t, err)
	client, err := httpclient.New(f.server.URL)
	require.NoError(t, err)
	f.manager, err = refresh.NewManager(client, f.session)
	require.NoError(t, err)
	return f
}

func TestManager_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("rotates the pair", func(t *testing.T) {
		f := newTestFixture(t, func(w http.ResponseWriter, body map[string]string) {
			require.Equal(t, "R1", body["refreshToken"])
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "S2", "refreshToken": "R2"})
		})
		require.NoError(t, f.session.SetTokens(ctx, token.Pair{SessionToken: "S1", RefreshToken: "R1"}))

		next, err := f.manager.Refresh(ctx, "S1")
		require.NoError(t, err)
		require.Equal(t, "S2", next)
		pair, ok := f.session.Tokens(ctx)
		require.True(t, ok)
		require.Equal(t, "R2", pair.RefreshToken)
	})

	t.Run("keeps the refresh token when none is returned", func(t *testing.T) {
		f := newTestFixture(t, func(w http.ResponseWriter, _ map[string]string) {
			_ = json.NewEncoder(w).Encode(map[string]string{"accessToken": "S2"})
		})
		require.NoError(t, f.session.SetTokens(ctx, token.Pair{SessionToken: "S1", RefreshToken: "R1"}))

		next, err := f.manager.Refresh(ctx, "S1")
		require.NoError(t, err)
		require.Equal(t, "S2", next)
		pair, _ := f.session.Tokens(ctx)
		require.Equal(t, "R1", pair.RefreshToken)
	})

	t.Run("rejected refresh", func(t *testing.T) {
		f := newTestFixture(t, func(w http.ResponseWriter, _ map[string]string) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		require.NoError(t, f.session.SetTokens(ctx, token.Pair{SessionToken: "S1", RefreshToken: "R1"}))

		_, err := f.manager.Refresh(ctx, "S1")
		require.True(t, errors.Is(err, errors.ErrRefreshRejected))
		require.True(t, httpclient.IsStatus(err, http.StatusUnauthorized))
	})

	t.Run("rotate with an explicit refresh token", func(t *testing.T) {
		f := newTestFixture(t, func(w http.ResponseWriter, body map[string]string) {
			require.Equal(t, "R9", body["refreshToken"])
			_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"accessToken": "S9"}})
		})

		pair, err := f.manager.Rotate(ctx, "R9")
		require.NoError(t, err)
		require.Equal(t, "S9", pair.SessionToken)
		require.Equal(t, "R9", pair.RefreshToken)
		stored, ok := f.session.Tokens(ctx)
		require.True(t, ok)
		require.Equal(t, pair.SessionToken, stored.SessionToken)
	})

	t.Run("no refresh token makes no call", func(t *testing.T) {
		f := newTestFixture(t, func(w http.ResponseWriter, _ map[string]string) {})
		require.NoError(t, f.session.SetTokens(ctx, token.Pair{SessionToken: "S1"}))

		_, err := f.manager.Refresh(ctx, "S1")
		require.True(t, errors.Is(err, errors.ErrNoRefreshToken))
		require.Zero(t, f.calls.Load())
	})

	t.Run("no session", func(t *testing.T) {
		f := newTestFixture(t, func(w http.ResponseWriter, _ map[string]string) {})
		_, err := f.manager.Refresh(ctx, "S1")
		require.True(t, errors.Is(err, errors.ErrNoSession))
	})

	t.Run("concurrent callers share one refresh", func(t *testing.T) {
		f := newTestFixture(t, func(w http.ResponseWriter, _ map[string]string) {
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "S2", "refreshToken": "R2"})
		})
		require.NoError(t, f.session.SetTokens(ctx, token.Pair{SessionToken: "S1", RefreshToken: "R1"}))

		var wg sync.WaitGroup
		results := make([]string, 5)
		errs := make([]error, 5)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = f.manager.Refresh(ctx, "S1")
			}(i)
		}
		wg.Wait()

		require.EqualValues(t, 1, f.calls.Load())
		for i := range results {
			require.NoError(t, errs[i])
			require.Equal(t, "S2", results[i])
		}
	})
}
