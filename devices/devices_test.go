package devices_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/cyberguard-client/devices"
	"github.com/jrsteele09/cyberguard-client/httpclient"
	"github.com/stretchr/testify/require"
)

func TestService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method + " " + r.URL.Path {
		case "POST /api/v1/devices/register":
			var reg devices.Registration
			_ = json.NewDecoder(r.Body).Decode(&reg)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"deviceId": 11, "deviceName": reg.DeviceName, "deviceType": reg.DeviceType, "userId": reg.UserID,
			})
		case "POST /api/v1/devices/11/status":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			_ = json.NewEncoder(w).Encode(map[string]any{"deviceId": 11, "status": body["status"]})
		case "GET /api/v1/devices":
			_, _ = w.Write([]byte(`[{"deviceId":11,"deviceName":"laptop"},{"deviceId":12,"deviceName":"phone"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	client, err := httpclient.New(srv.URL)
	require.NoError(t, err)
	svc, err := devices.NewService(client)
	require.NoError(t, err)
	ctx := context.Background()

	d, err := svc.Register(ctx, devices.Registration{UserID: 5, DeviceName: "laptop", DeviceType: "WORKSTATION"})
	require.NoError(t, err)
	require.Equal(t, "11", d.DeviceID.String())
	require.Equal(t, "5", d.UserID.String())
	require.Equal(t, "laptop", d.DeviceName)

	d, err = svc.UpdateStatus(ctx, 11, devices.StatusQuarantined)
	require.NoError(t, err)
	require.Equal(t, devices.StatusQuarantined, d.Status)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	_, err = svc.UpdateStatus(ctx, 99, devices.StatusActive)
	require.True(t, httpclient.IsStatus(err, http.StatusNotFound))
}
