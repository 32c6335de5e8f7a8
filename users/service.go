package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jrsteele09/cyberguard-client/httpclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const basePath = "/api/v1/users"

// AuditTimeLayout is the backend's LocalDateTime format.
const AuditTimeLayout = "2006-01-02T15:04:05"

// Service wraps the user management endpoints.
type Service struct {
	client *httpclient.Client
}

func NewService(client *httpclient.Client) (*Service, error) {
	if client == nil {
		return nil, errors.New("[users.NewService] http client is required")
	}
	return &Service{client: client}, nil
}

func userPath(userID string, parts ...string) string {
	p := basePath + "/" + url.PathEscape(userID)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

func (s *Service) GetByID(ctx context.Context, userID string) (*User, error) {
	u, err := httpclient.Get[User](ctx, s.client, userPath(userID))
	if err != nil {
		log.Err(err).Str("user_id", userID).Msg("Error fetching user by ID")
		return nil, err
	}
	return &u, nil
}

func (s *Service) Update(ctx context.Context, userID string, update ProfileUpdate) (*User, error) {
	u, err := httpclient.Put[User](ctx, s.client, userPath(userID), update)
	if err != nil {
		log.Err(err).Str("user_id", userID).Msg("Error updating user")
		return nil, err
	}
	return &u, nil
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*User, error) {
	u, err := httpclient.Get[User](ctx, s.client, basePath+"/search", httpclient.WithParam("email", email))
	if err != nil {
		log.Err(err).Msg("Error finding user by email")
		return nil, err
	}
	return &u, nil
}

func (s *Service) CheckSubscription(ctx context.Context, userID string) (bool, error) {
	valid, err := httpclient.Get[bool](ctx, s.client, userPath(userID, "subscription"))
	if err != nil {
		log.Err(err).Str("user_id", userID).Msg("Error checking subscription")
		return false, err
	}
	return valid, nil
}

func (s *Service) TwoFactorEnabled(ctx context.Context, userID string) (bool, error) {
	enabled, err := httpclient.Get[bool](ctx, s.client, userPath(userID, "2fa"))
	if err != nil {
		log.Err(err).Str("user_id", userID).Msg("Error checking 2FA status")
		return false, err
	}
	return enabled, nil
}

func (s *Service) RegisterDevice(ctx context.Context, userID string, device DeviceRegistration) (json.RawMessage, error) {
	res, err := httpclient.Post[json.RawMessage](ctx, s.client, userPath(userID, "devices"), device)
	if err != nil {
		log.Err(err).Str("user_id", userID).Msg("Error registering device")
		return nil, err
	}
	return res, nil
}

func (s *Service) ReportSuspiciousActivity(ctx context.Context, userID, activityType string) (json.RawMessage, error) {
	body := map[string]string{"activityType": activityType}
	res, err := httpclient.Post[json.RawMessage](ctx, s.client, userPath(userID, "suspicious-activity"), body)
	if err != nil {
		log.Err(err).Str("user_id", userID).Msg("Error handling suspicious activity")
		return nil, err
	}
	return res, nil
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*User, error) {
	u, err := httpclient.Get[User](ctx, s.client, userPath(userID, "profile"))
	if err != nil {
		log.Err(err).Str("user_id", userID).Msg("Error fetching user profile")
		return nil, err
	}
	return &u, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*User, error) {
	u, err := httpclient.Put[User](ctx, s.client, userPath(userID, "profile"), update)
	if err != nil {
		log.Err(err).Str("user_id", userID).Msg("Error updating profile")
		return nil, err
	}
	return &u, nil
}

func (s *Service) EnableTwoFactor(ctx context.Context, userID string) (json.RawMessage, error) {
	res, err := httpclient.Post[json.RawMessage](ctx, s.client, userPath(userID, "2fa", "enable"), nil)
	if err != nil {
		log.Err(err).Str("user_id", userID).Msg("Error enabling 2FA")
		return nil, err
	}
	return res, nil
}

func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	if _, err := s.client.Send(ctx, http.MethodDelete, userPath(userID), nil); err != nil {
		log.Err(err).Str("user_id", userID).Msg("Error deleting user account")
		return err
	}
	return nil
}

// AuditLogs lists audit entries; zero start or end leaves that bound open.
func (s *Service) AuditLogs(ctx context.Context, userID string, start, end time.Time) ([]AuditLog, error) {
	var opts []httpclient.RequestOption
	if !start.IsZero() {
		opts = append(opts, httpclient.WithParam("startDate", start.Format(AuditTimeLayout)))
	}
	if !end.IsZero() {
		opts = append(opts, httpclient.WithParam("endDate", end.Format(AuditTimeLayout)))
	}
	logs, err := httpclient.Get[[]AuditLog](ctx, s.client, userPath(userID, "audit-logs"), opts...)
	if err != nil {
		log.Err(err).Str("user_id", userID).Msg("Error fetching audit logs")
		return nil, err
	}
	return logs, nil
}

// RecentLogs returns the latest audit entries; limit defaults to 10.
func (s *Service) RecentLogs(ctx context.Context, userID string, limit int) ([]AuditLog, error) {
	if limit <= 0 {
		limit = 10
	}
	logs, err := httpclient.Get[[]AuditLog](ctx, s.client, userPath(userID, "recent-logs"),
		httpclient.WithParam("limit", strconv.Itoa(limit)))
	if err != nil {
		log.Err(err).Str("user_id", userID).Msg("Error fetching recent logs")
		return nil, err
	}
	return logs, nil
}

func (s *Service) RegisterOAuth2User(ctx context.Context, info OAuth2UserInfo) (*User, error) {
	u, err := httpclient.Post[User](ctx, s.client, basePath+"/oauth2/register", info)
	if err != nil {
		log.Err(err).Str("provider", info.Provider).Msg("Error registering OAuth2 user")
		return nil, err
	}
	return &u, nil
}

func (s *Service) ProcessOAuth2Login(ctx context.Context, info OAuth2UserInfo) (json.RawMessage, error) {
	res, err := httpclient.Post[json.RawMessage](ctx, s.client, basePath+"/oauth2/login", info)
	if err != nil {
		log.Err(err).Str("provider", info.Provider).Msg("Error processing OAuth2 login")
		return nil, err
	}
	return res, nil
}

func (s *Service) AuthStatus(ctx context.Context, userID string) (json.RawMessage, error) {
	res, err := httpclient.Get[json.RawMessage](ctx, s.client, "/api/v1/auth/status/"+url.PathEscape(userID))
	if err != nil {
		log.Err(err).Str("user_id", userID).Msg("Error fetching auth status")
		return nil, err
	}
	return res, nil
}

func (s *Service) UpdateSecurityStatus(ctx context.Context, userID string) (json.RawMessage, error) {
	res, err := httpclient.Post[json.RawMessage](ctx, s.client, userPath(userID, "security-status"), nil)
	if err != nil {
		log.Err(err).Str("user_id", userID).Msg("Error updating security status")
		return nil, err
	}
	return res, nil
}

// GetAttribute returns the attribute value, or "" when the backend has none.
func (s *Service) GetAttribute(ctx context.Context, userID, name string) (string, error) {
	attr, err := httpclient.Get[Attribute](ctx, s.client, userPath(userID, "attributes", url.PathEscape(name)))
	if err != nil {
		log.Err(err).Str("user_id", userID).Str("attribute", name).Msg("Error fetching user attribute")
		return "", err
	}
	return attr.Value, nil
}

func (s *Service) UpdateAttribute(ctx context.Context, userID, name, value, reason string) error {
	_, err := s.client.Send(ctx, http.MethodPut, userPath(userID, "attributes", url.PathEscape(name)), nil,
		httpclient.WithParam("value", value), httpclient.WithParam("reason", reason))
	if err != nil {
		log.Err(err).Str("user_id", userID).Str("attribute", name).Msg("Error updating user attribute")
		return err
	}
	return nil
}

func (s *Service) RemoveAttribute(ctx context.Context, userID, name, reason string) error {
	_, err := s.client.Send(ctx, http.MethodDelete, userPath(userID, "attributes", url.PathEscape(name)), nil,
		httpclient.WithParam("reason", reason))
	if err != nil {
		log.Err(err).Str("user_id", userID).Str("attribute", name).Msg("Error removing user attribute")
		return err
	}
	return nil
}

func (s *Service) LogActivity(ctx context.Context, userID, activityType, description string) error {
	_, err := s.client.Send(ctx, http.MethodPost, userPath(userID, "activity"), nil,
		httpclient.WithParam("type", activityType), httpclient.WithParam("description", description))
	if err != nil {
		log.Err(err).Str("user_id", userID).Msg("Error logging user activity")
		return err
	}
	return nil
}

func (s *Service) LogActivityDetails(ctx context.Context, req ActivityLogRequest) error {
	if _, err := s.client.Send(ctx, http.MethodPost, basePath+"/activity", req); err != nil {
		log.Err(err).Str("user_id", req.UserID.String()).Msg("Error logging detailed activity")
		return err
	}
	return nil
}
