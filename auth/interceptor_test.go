package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/jrsteele09/cyberguard-client/auth"
	"github.com/jrsteele09/cyberguard-client/httpclient"
	"github.com/jrsteele09/cyberguard-client/sessions"
	"github.com/jrsteele09/cyberguard-client/token"
	"github.com/stretchr/testify/require"
)

const (
	threatsRoute = "GET /api/v1/threats/current"
	manualRoute  = "POST /api/v1/threats/manual-detection"
)

func TestInterceptor_AttachesToken(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	f.gateway.handle(threatsRoute, jsonResponse(http.StatusOK, `[]`))
	api := f.wiring.Clients.API

	t.Run("empty store sends no credential", func(t *testing.T) {
		_, err := api.Send(ctx, http.MethodGet, "/api/v1/threats/current", nil)
		require.NoError(t, err)
		require.Empty(t, f.gateway.lastAuthorization())
	})

	t.Run("stored token is sent as a bearer credential", func(t *testing.T) {
		f.saveTokens(t, testSession, testRefresh)
		_, err := api.Send(ctx, http.MethodGet, "/api/v1/threats/current", nil)
		require.NoError(t, err)
		require.Equal(t, "Bearer "+testSession, f.gateway.lastAuthorization())
	})

	t.Run("explicit credentials are left alone", func(t *testing.T) {
		_, err := api.Send(ctx, http.MethodGet, "/api/v1/threats/current", nil,
			httpclient.WithRequestHeader("Authorization", "Bearer other"))
		require.NoError(t, err)
		require.Equal(t, "Bearer other", f.gateway.lastAuthorization())
	})
}

func TestInterceptor_Unauthorized(t *testing.T) {
	ctx := context.Background()

	t.Run("no refresh token ends the session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.gateway.handle(threatsRoute, jsonResponse(http.StatusUnauthorized, `{"message":"expired"}`))
		f.saveTokens(t, testSession, "")

		_, err := f.wiring.Clients.API.Send(ctx, http.MethodGet, "/api/v1/threats/current", nil)
		require.ErrorIs(t, err, auth.ErrSessionExpired)
		f.requireStoreEmpty(t)
		require.Equal(t, sessions.Anonymous, f.session.State())
		require.Equal(t, []string{auth.RouteLogin}, f.navigations())
		require.Zero(t, f.gateway.count("POST "+auth.RefreshPath))
	})

	t.Run("anonymous request", func(t *testing.T) {
		f := setupTestFixture(t)
		f.gateway.handle(threatsRoute, jsonResponse(http.StatusUnauthorized, ``))

		_, err := f.wiring.Clients.API.Send(ctx, http.MethodGet, "/api/v1/threats/current", nil)
		require.ErrorIs(t, err, auth.ErrSessionExpired)
		require.Equal(t, []string{auth.RouteLogin}, f.navigations())
	})

	t.Run("silent refresh replays the request once", func(t *testing.T) {
		f := setupTestFixture(t)
		f.saveTokens(t, testSession, testRefresh)
		f.gateway.handle("POST "+auth.RefreshPath, func(w http.ResponseWriter, r *http.Request) {
			require.Empty(t, r.Header.Get("Authorization"))
			jsonResponse(http.StatusOK, `{"token":"`+testFreshSession+`","refreshToken":"`+testFreshRefresh+`"}`)(w, r)
		})
		f.gateway.handle(manualRoute, func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.JSONEq(t, `{"sourceIp":"10.0.0.1"}`, string(body))
			if r.Header.Get("Authorization") != "Bearer "+testFreshSession {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			jsonResponse(http.StatusOK, `{"threat":false}`)(w, r)
		})

		res, err := f.wiring.Clients.API.Send(ctx, http.MethodPost, "/api/v1/threats/manual-detection", map[string]string{"sourceIp": "10.0.0.1"})
		require.NoError(t, err)
		require.JSONEq(t, `{"threat":false}`, string(res.Body))
		require.Equal(t, 2, f.gateway.count(manualRoute))
		require.Equal(t, 1, f.gateway.count("POST "+auth.RefreshPath))

		pair, ok := f.store.Read(ctx)
		require.True(t, ok)
		require.Equal(t, testFreshSession, pair.SessionToken)
		require.Equal(t, testFreshRefresh, pair.RefreshToken)
		require.Empty(t, f.navigations())
	})

	t.Run("failed refresh ends the session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.saveTokens(t, testSession, testRefresh)
		f.gateway.handle("POST "+auth.RefreshPath, jsonResponse(http.StatusUnauthorized, `{"message":"Refresh token expired"}`))
		f.gateway.handle(threatsRoute, jsonResponse(http.StatusUnauthorized, ``))

		_, err := f.wiring.Clients.API.Send(ctx, http.MethodGet, "/api/v1/threats/current", nil)
		require.ErrorIs(t, err, auth.ErrSessionExpired)
		f.requireStoreEmpty(t)
		require.Equal(t, []string{auth.RouteLogin}, f.navigations())
	})

	t.Run("replay rejected again ends the session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.saveTokens(t, testSession, testRefresh)
		f.gateway.handle("POST "+auth.RefreshPath, jsonResponse(http.StatusOK, `{"token":"`+testFreshSession+`"}`))
		f.gateway.handle(threatsRoute, jsonResponse(http.StatusUnauthorized, ``))

		_, err := f.wiring.Clients.API.Send(ctx, http.MethodGet, "/api/v1/threats/current", nil)
		require.ErrorIs(t, err, auth.ErrSessionExpired)
		require.Equal(t, 2, f.gateway.count(threatsRoute))
		require.Equal(t, 1, f.gateway.count("POST "+auth.RefreshPath))
		f.requireStoreEmpty(t)
	})

	t.Run("forbidden is not an authentication failure", func(t *testing.T) {
		f := setupTestFixture(t)
		f.saveTokens(t, testSession, testRefresh)
		f.gateway.handle(threatsRoute, jsonResponse(http.StatusForbidden, `{"message":"Access denied"}`))

		_, err := f.wiring.Clients.API.Send(ctx, http.MethodGet, "/api/v1/threats/current", nil)
		var se *httpclient.StatusError
		require.ErrorAs(t, err, &se)
		require.Equal(t, "Access denied", se.Message)
		_, ok := f.store.Read(ctx)
		require.True(t, ok)
		require.Empty(t, f.navigations())
	})

	t.Run("concurrent 401s share one refresh", func(t *testing.T) {
		f := setupTestFixture(t)
		f.saveTokens(t, testSession, testRefresh)
		var refreshes atomic.Int32
		f.gateway.handle("POST "+auth.RefreshPath, func(w http.ResponseWriter, r *http.Request) {
			refreshes.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]string{"token": testFreshSession})
		})
		f.gateway.handle(threatsRoute, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+testFreshSession {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			jsonResponse(http.StatusOK, `[]`)(w, r)
		})

		errs := make(chan error, 4)
		for i := 0; i < 4; i++ {
			go func() {
				_, err := f.wiring.Clients.API.Send(ctx, http.MethodGet, "/api/v1/threats/current", nil)
				errs <- err
			}()
		}
		for i := 0; i < 4; i++ {
			require.NoError(t, <-errs)
		}
		require.EqualValues(t, 1, refreshes.Load())
	})
}

func TestInterceptor_WithoutRefresher(t *testing.T) {
	ctx := context.Background()
	gateway := newFakeGateway(t)
	gateway.handle(threatsRoute, jsonResponse(http.StatusUnauthorized, ``))

	store := token.NewInMemoryStore()
	session, err := sessions.New(ctx, store)
	require.NoError(t, err)
	require.NoError(t, session.SetTokens(ctx, token.Pair{SessionToken: testSession, RefreshToken: testRefresh}))
	expired := 0
	session.OnExpired(func(context.Context) { expired++ })

	client, err := httpclient.New(gateway.server.URL, httpclient.WithMiddleware(auth.NewInterceptor(session, nil).Middleware))
	require.NoError(t, err)

	_, err = client.Send(ctx, http.MethodGet, "/api/v1/threats/current", nil)
	require.ErrorIs(t, err, auth.ErrSessionExpired)
	require.Equal(t, 1, expired)
	_, ok := store.Read(ctx)
	require.False(t, ok)
}
