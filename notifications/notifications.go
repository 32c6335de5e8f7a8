// Package notifications wraps the notification service and its live WebSocket feed.
package notifications

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/jrsteele09/cyberguard-client/httpclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const basePath = "/api/v1/notifications"

type Type string

const (
	TypeSystem Type = "SYSTEM"
	TypeUser   Type = "USER"
)

type Notification struct {
	ID        json.Number `json:"id"`
	Message   string      `json:"message"`
	Type      Type        `json:"type,omitempty"`
	Read      bool        `json:"read"`
	CreatedAt string      `json:"createdAt"`
}

type Preferences struct {
	Push  bool `json:"push"`
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
}

type SendRequest struct {
	Message string   `json:"message"`
	UserIDs []string `json:"userIds"`
	Type    Type     `json:"type"`
}

type Service struct {
	client *httpclient.Client
}

func NewService(client *httpclient.Client) (*Service, error) {
	if client == nil {
		return nil, errors.New("[notifications.NewService] http client is required")
	}
	return &Service{client: client}, nil
}

func (s *Service) List(ctx context.Context) ([]Notification, error) {
	list, err := httpclient.Get[[]Notification](ctx, s.client, basePath)
	if err != nil {
		log.Err(err).Msg("Failed to fetch notifications")
		return nil, err
	}
	return list, nil
}

func (s *Service) Send(ctx context.Context, req SendRequest) (json.RawMessage, error) {
	res, err := httpclient.Post[json.RawMessage](ctx, s.client, basePath+"/send", req)
	if err != nil {
		log.Err(err).Int("recipients", len(req.UserIDs)).Msg("Failed to send notification")
		return nil, err
	}
	return res, nil
}

func (s *Service) UpdatePreferences(ctx context.Context, prefs Preferences) (*Preferences, error) {
	res, err := httpclient.Post[Preferences](ctx, s.client, basePath+"/preferences", prefs)
	if err != nil {
		log.Err(err).Msg("Failed to update preferences")
		return nil, err
	}
	return &res, nil
}

func (s *Service) MarkRead(ctx context.Context, notificationID int64) (*Notification, error) {
	path := basePath + "/" + strconv.FormatInt(notificationID, 10) + "/read"
	n, err := httpclient.Put[Notification](ctx, s.client, path, nil)
	if err != nil {
		log.Err(err).Int64("notification_id", notificationID).Msg("Failed to mark notification as read")
		return nil, err
	}
	return &n, nil
}
