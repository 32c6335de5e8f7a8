// Package devices wraps the device management endpoints.
package devices

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/jrsteele09/cyberguard-client/httpclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const basePath = "/api/v1/devices"

type Status string

const (
	StatusActive      Status = "ACTIVE"
	StatusInactive    Status = "INACTIVE"
	StatusQuarantined Status = "QUARANTINED"
)

type Device struct {
	DeviceID   json.Number `json:"deviceId"`
	DeviceName string      `json:"deviceName"`
	DeviceType string      `json:"deviceType"`
	UserID     json.Number `json:"userId"`
	Status     Status      `json:"status,omitempty"`
}

type Registration struct {
	UserID     int64  `json:"userId"`
	DeviceName string `json:"deviceName"`
	DeviceType string `json:"deviceType"`
}

type Service struct {
	client *httpclient.Client
}

func NewService(client *httpclient.Client) (*Service, error) {
	if client == nil {
		return nil, errors.New("[devices.NewService] http client is required")
	}
	return &Service{client: client}, nil
}

func (s *Service) Register(ctx context.Context, reg Registration) (*Device, error) {
	d, err := httpclient.Post[Device](ctx, s.client, basePath+"/register", reg)
	if err != nil {
		log.Err(err).Int64("user_id", reg.UserID).Msg("Error registering device")
		return nil, err
	}
	return &d, nil
}

func (s *Service) UpdateStatus(ctx context.Context, deviceID int64, status Status) (*Device, error) {
	path := basePath + "/" + strconv.FormatInt(deviceID, 10) + "/status"
	d, err := httpclient.Post[Device](ctx, s.client, path, map[string]Status{"status": status})
	if err != nil {
		log.Err(err).Int64("device_id", deviceID).Msg("Error updating device status")
		return nil, err
	}
	return &d, nil
}

// List returns the devices registered to the current user.
func (s *Service) List(ctx context.Context) ([]Device, error) {
	list, err := httpclient.Get[[]Device](ctx, s.client, basePath)
	if err != nil {
		log.Err(err).Msg("Error listing devices")
		return nil, err
	}
	return list, nil
}
