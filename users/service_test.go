package users_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/cyberguard-client/httpclient"
	"github.com/jrsteele09/cyberguard-client/users"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Route string
	Query string
	Body  string
}

type testFixture struct {
	svc *users.Service

	mu       sync.Mutex
	requests []recordedRequest
	replies  map[string]string
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{replies: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		route := r.Method + " " + r.URL.Path
		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{Route: route, Query: r.URL.RawQuery, Body: string(data)})
		reply, ok := f.replies[route]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"User not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)

	client, err := httpclient.New(srv.URL)
	require.NoError(t, err)
	f.svc, err = users.NewService(client)
	require.NoError(t, err)
	return f
}

func (f *testFixture) reply(route, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[route] = body
}

func (f *testFixture) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

const userJSON = `{"id":7,"email":"ada@example.com","firstName":"Ada","lastName":"Lovelace","roles":["ADMIN"]}`

func TestService_Profile(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	f.reply("GET /api/v1/users/7", userJSON)
	f.reply("PUT /api/v1/users/7/profile", userJSON)
	f.reply("GET /api/v1/users/search", userJSON)
	f.reply("DELETE /api/v1/users/7", "")

	u, err := f.svc.GetByID(ctx, "7")
	require.NoError(t, err)
	require.Equal(t, "Ada Lovelace", u.DisplayName())
	require.True(t, u.HasRole(users.RoleAdmin))

	_, err = f.svc.UpdateProfile(ctx, "7", users.ProfileUpdate{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"})
	require.NoError(t, err)
	require.JSONEq(t, `{"firstName":"Ada","lastName":"Lovelace","email":"ada@example.com"}`, f.last().Body)

	_, err = f.svc.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Equal(t, "email=ada%40example.com", f.last().Query)

	require.NoError(t, f.svc.DeleteAccount(ctx, "7"))
	require.Equal(t, "DELETE /api/v1/users/7", f.last().Route)

	_, err = f.svc.GetProfile(ctx, "8")
	var statusErr *httpclient.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, "User not found", statusErr.Message)
}

func TestService_Security(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	f.reply("GET /api/v1/users/7/subscription", "true")
	f.reply("GET /api/v1/users/7/2fa", "false")
	f.reply("POST /api/v1/users/7/2fa/enable", `{"secret":"ABC"}`)
	f.reply("POST /api/v1/users/7/suspicious-activity", `{"flagged":true}`)
	f.reply("GET /api/v1/auth/status/7", `{"locked":false}`)

	ok, err := f.svc.CheckSubscription(ctx, "7")
	require.NoError(t, err)
	require.True(t, ok)

	enabled, err := f.svc.TwoFactorEnabled(ctx, "7")
	require.NoError(t, err)
	require.False(t, enabled)

	res, err := f.svc.EnableTwoFactor(ctx, "7")
	require.NoError(t, err)
	require.JSONEq(t, `{"secret":"ABC"}`, string(res))

	_, err = f.svc.ReportSuspiciousActivity(ctx, "7", "BRUTE_FORCE")
	require.NoError(t, err)
	require.JSONEq(t, `{"activityType":"BRUTE_FORCE"}`, f.last().Body)

	status, err := f.svc.AuthStatus(ctx, "7")
	require.NoError(t, err)
	require.JSONEq(t, `{"locked":false}`, string(status))
}

func TestService_Logs(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	f.reply("GET /api/v1/users/7/audit-logs", `[{"id":1,"activityType":"LOGIN"}]`)
	f.reply("GET /api/v1/users/7/recent-logs", `[]`)
	f.reply("POST /api/v1/users/7/activity", "")
	f.reply("POST /api/v1/users/activity", "")

	start := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	logs, err := f.svc.AuditLogs(ctx, "7", start, time.Time{})
	require.NoError(t, err)
	require.Equal(t, "LOGIN", logs[0].ActivityType)
	require.Equal(t, "startDate=2025-06-01T08%3A30%3A00", f.last().Query)

	_, err = f.svc.RecentLogs(ctx, "7", 0)
	require.NoError(t, err)
	require.Equal(t, "limit=10", f.last().Query)

	require.NoError(t, f.svc.LogActivity(ctx, "7", "EXPORT", "exported report"))
	require.Equal(t, "description=exported+report&type=EXPORT", f.last().Query)

	require.NoError(t, f.svc.LogActivityDetails(ctx, users.ActivityLogRequest{UserID: "7", ActivityType: "EXPORT", Description: "pdf"}))
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(f.last().Body), &body))
	require.Equal(t, float64(7), body["userId"])
}

func TestService_Attributes(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	f.reply("GET /api/v1/users/7/attributes/department", `{"name":"department","value":"SOC"}`)
	f.reply("PUT /api/v1/users/7/attributes/department", "")
	f.reply("DELETE /api/v1/users/7/attributes/department", "")

	v, err := f.svc.GetAttribute(ctx, "7", "department")
	require.NoError(t, err)
	require.Equal(t, "SOC", v)

	require.NoError(t, f.svc.UpdateAttribute(ctx, "7", "department", "IR", "reorg"))
	require.Equal(t, "reason=reorg&value=IR", f.last().Query)

	require.NoError(t, f.svc.RemoveAttribute(ctx, "7", "department", "left"))
	require.Equal(t, "DELETE /api/v1/users/7/attributes/department", f.last().Route)
}

func TestService_OAuth2Users(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	f.reply("POST /api/v1/users/oauth2/register", userJSON)
	f.reply("POST /api/v1/users/oauth2/login", `{"token":"abc"}`)

	info := users.OAuth2UserInfo{Email: "ada@example.com", Provider: "github", ProviderID: "42"}
	u, err := f.svc.RegisterOAuth2User(ctx, info)
	require.NoError(t, err)
	require.Equal(t, "7", u.ID.String())

	res, err := f.svc.ProcessOAuth2Login(ctx, info)
	require.NoError(t, err)
	require.JSONEq(t, `{"token":"abc"}`, string(res))
}
