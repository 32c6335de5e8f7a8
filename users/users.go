package users

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// RoleType is a role granted by the auth service.
type RoleType string

const (
	RoleAdmin   RoleType = "ADMIN"
	RoleAnalyst RoleType = "ANALYST"
	RoleUser    RoleType = "USER"
)

// ID is a user identifier. The auth service has issued both numeric and string ids, so either
// JSON form is accepted.
type ID string

func (id ID) String() string {
	return string(id)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "[ID.UnmarshalJSON]")
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Wrap(err, "[ID.UnmarshalJSON]")
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes integer ids as JSON numbers and anything else as a string.
func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// User is the read-only projection of a user account returned by the backend.
// The client never persists it; the last successful fetch wins.
type User struct {
	ID               ID             `json:"id,omitempty"`
	Email            string         `json:"email,omitempty"`
	FirstName        string         `json:"firstName,omitempty"`
	LastName         string         `json:"lastName,omitempty"`
	PhoneNumber      string         `json:"phoneNumber,omitempty"`
	AvatarURL        string         `json:"avatarUrl,omitempty"`
	Roles            []RoleType     `json:"roles,omitempty"`
	Verified         bool           `json:"verified,omitempty"`
	TwoFactorEnabled bool           `json:"twoFactorEnabled,omitempty"`
	Preferences      map[string]any `json:"preferences,omitempty"`
	CreatedAt        *time.Time     `json:"createdAt,omitempty"`
	LastLogin        *time.Time     `json:"lastLogin,omitempty"`
}

// DisplayName is the full name when known, otherwise the email address.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

func (u *User) HasRole(role RoleType) bool {
	for _, r := range u.Roles {
		if strings.EqualFold(string(r), string(role)) {
			return true
		}
	}
	return false
}

type ProfileUpdate struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

type DeviceRegistration struct {
	DeviceName   string `json:"deviceName"`
	DeviceType   string `json:"deviceType"`
	DeviceID     string `json:"deviceId"`
	Manufacturer string `json:"manufacturer,omitempty"`
	OSVersion    string `json:"osVersion,omitempty"`
}

// OAuth2UserInfo is the identity handed over by an external provider.
type OAuth2UserInfo struct {
	Email      string `json:"email"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	ImageURL   string `json:"imageUrl,omitempty"`
	Provider   string `json:"provider"`
	ProviderID string `json:"providerId"`
}

type ActivityLogRequest struct {
	UserID       json.Number    `json:"userId"`
	ActivityType string         `json:"activityType"`
	Description  string         `json:"description"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	DeviceID     string         `json:"deviceId,omitempty"`
	Location     string         `json:"location,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type AuditLog struct {
	ID           json.Number `json:"id,omitempty"`
	UserID       json.Number `json:"userId,omitempty"`
	ActivityType string      `json:"activityType,omitempty"`
	Description  string      `json:"description,omitempty"`
	IPAddress    string      `json:"ipAddress,omitempty"`
	Timestamp    string      `json:"timestamp,omitempty"`
}

// Attribute is a named user attribute value.
type Attribute struct {
	Name  string `json:"name,omitempty"`
	Value string `json:"value"`
}
