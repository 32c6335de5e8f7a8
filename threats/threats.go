// Package threats wraps the threat detection service.
package threats

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/jrsteele09/cyberguard-client/httpclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const basePath = "/api/v1/threats"

// TimeLayout is how time range bounds are sent.
const TimeLayout = "2006-01-02T15:04:05"

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

type Detection struct {
	ID          json.Number `json:"id"`
	ThreatType  string      `json:"threatType"`
	Severity    Severity    `json:"severity"`
	Description string      `json:"description"`
	DetectedAt  string      `json:"detectedAt"`
	DeviceID    json.Number `json:"deviceId,omitempty"`
	IPAddress   string      `json:"ipAddress,omitempty"`
}

type TypeCount struct {
	Date  string `json:"date"`
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// Traffic is a captured flow submitted for manual analysis.
type Traffic struct {
	SourceIP      string `json:"sourceIp"`
	DestinationIP string `json:"destinationIp"`
	Protocol      string `json:"protocol"`
	PacketSize    int    `json:"packetSize"`
	SecurityFlag  string `json:"securityFlag,omitempty"`
	Payload       string `json:"payload,omitempty"`
}

type Service struct {
	client *httpclient.Client
}

func NewService(client *httpclient.Client) (*Service, error) {
	if client == nil {
		return nil, errors.New("[threats.NewService] http client is required")
	}
	return &Service{client: client}, nil
}

// Data is the raw threat feed the dashboard charts are built from.
func (s *Service) Data(ctx context.Context) (json.RawMessage, error) {
	return s.raw(ctx, basePath+"/data", "Error fetching threat data")
}

func (s *Service) FeatureDistribution(ctx context.Context) (json.RawMessage, error) {
	return s.raw(ctx, basePath+"/features", "Error fetching feature distribution")
}

func (s *Service) TypesOverTime(ctx context.Context) ([]TypeCount, error) {
	counts, err := httpclient.Get[[]TypeCount](ctx, s.client, basePath+"/types")
	if err != nil {
		log.Err(err).Msg("Error fetching threat types over time")
		return nil, err
	}
	return counts, nil
}

func (s *Service) Current(ctx context.Context) ([]Detection, error) {
	return s.detections(ctx, basePath+"/current", nil, "Error fetching current threats")
}

func (s *Service) AnalyzeTraffic(ctx context.Context, traffic Traffic) (json.RawMessage, error) {
	res, err := httpclient.Post[json.RawMessage](ctx, s.client, basePath+"/manual-detection", traffic)
	if err != nil {
		log.Err(err).Msg("Error analyzing traffic")
		return nil, err
	}
	return res, nil
}

func (s *Service) ByUser(ctx context.Context, userID int64) ([]Detection, error) {
	return s.detections(ctx, basePath+"/user/"+strconv.FormatInt(userID, 10), nil, "Error fetching threat detection results for user")
}

func (s *Service) ByDevice(ctx context.Context, deviceID int64) ([]Detection, error) {
	return s.detections(ctx, basePath+"/device/"+strconv.FormatInt(deviceID, 10), nil, "Error fetching threat detection results for device")
}

func (s *Service) ByIP(ctx context.Context, ip string) ([]Detection, error) {
	return s.detections(ctx, basePath+"/ip/"+url.PathEscape(ip), nil, "Error fetching threat detection results for IP address")
}

func (s *Service) ByTimeRange(ctx context.Context, start, end time.Time) ([]Detection, error) {
	query := url.Values{
		"startTime": {start.Format(TimeLayout)},
		"endTime":   {end.Format(TimeLayout)},
	}
	return s.detections(ctx, basePath+"/time-range", query, "Error fetching threat detection results by time range")
}

func (s *Service) BySeverity(ctx context.Context, severity Severity) ([]Detection, error) {
	return s.detections(ctx, basePath+"/severity/"+url.PathEscape(string(severity)), nil, "Error fetching threat detection results by severity")
}

func (s *Service) detections(ctx context.Context, path string, query url.Values, msg string) ([]Detection, error) {
	list, err := httpclient.Get[[]Detection](ctx, s.client, path, httpclient.WithQuery(query))
	if err != nil {
		log.Err(err).Str("path", path).Msg(msg)
		return nil, err
	}
	return list, nil
}

func (s *Service) raw(ctx context.Context, path, msg string) (json.RawMessage, error) {
	res, err := httpclient.Get[json.RawMessage](ctx, s.client, path)
	if err != nil {
		log.Err(err).Msg(msg)
		return nil, err
	}
	return res, nil
}
