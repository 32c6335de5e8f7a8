package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/jrsteele09/cyberguard-client/auth"
	"github.com/jrsteele09/cyberguard-client/httpclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestLogNetworkError(t *testing.T) {
	var buf bytes.Buffer
	previous := log.Logger
	log.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)
	t.Cleanup(func() { log.Logger = previous })

	for _, u := range []string{"http://primary", "http://primary", "http://auth-service"} {
		logNetworkError(&httpclient.NetworkError{Method: "POST", URL: u + "/api/v1/auth/login", Err: context.DeadlineExceeded})
	}

	out := buf.String()
	require.Equal(t, 3, strings.Count(out, "Request could not reach server"))
	require.Contains(t, out, `"url":"http://auth-service/api/v1/auth/login"`)
	require.Contains(t, out, `"timeout":true`)
	require.NotContains(t, out, httpclient.ConnectivityMessage)
}

func TestDescribe(t *testing.T) {
	ne := &httpclient.NetworkError{Method: "GET", URL: "http://gateway/api/v1/threats", Err: errors.New("connection refused")}

	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "network", err: errors.Wrap(ne, "[Service.Current]"), expected: httpclient.ConnectivityMessage},
		{name: "login through every address", err: &auth.AuthError{Op: "login", Message: httpclient.ConnectivityMessage, Err: ne}, expected: httpclient.ConnectivityMessage},
		{name: "validation", err: &auth.ValidationError{Field: "Email", Message: "Email is required"}, expected: "Email is required"},
		{name: "status", err: &httpclient.StatusError{StatusCode: 403, Message: "Access denied"}, expected: "Access denied"},
		{name: "expired", err: errors.Wrap(auth.ErrSessionExpired, "[Interceptor.Do]"), expected: "Your session has expired. Run `cyberguard login` to sign in again."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, describe(tc.err))
		})
	}
}
