// Package incidents wraps the incident endpoints behind the dashboard's incident pages.
package incidents

import (
	"context"
	"encoding/json"

	"github.com/jrsteele09/cyberguard-client/httpclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const basePath = "/api/incidents"

type Incident struct {
	ID          json.Number `json:"id,omitempty"`
	CaseID      string      `json:"caseId,omitempty"`
	Type        string      `json:"type"`
	Severity    string      `json:"severity"`
	Status      string      `json:"status,omitempty"`
	Description string      `json:"description,omitempty"`
	ReportedBy  string      `json:"reportedBy,omitempty"`
	AssignedTo  string      `json:"assignedTo,omitempty"`
	Impact      string      `json:"impact,omitempty"`
	RootCause   string      `json:"rootCause,omitempty"`
	DetectedAt  string      `json:"detectedAt,omitempty"`
	ResolvedAt  string      `json:"resolvedAt,omitempty"`
}

type Metrics struct {
	Total                int     `json:"total"`
	Open                 int     `json:"open"`
	PercentageChange     float64 `json:"percentageChange"`
	NetworkTrafficChange float64 `json:"networkTrafficChange"`
}

type SeverityCount struct {
	Severity string `json:"severity"`
	Count    int    `json:"count"`
}

type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type ResponseMetric struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
}

type Service struct {
	client *httpclient.Client
}

func NewService(client *httpclient.Client) (*Service, error) {
	if client == nil {
		return nil, errors.New("[incidents.NewService] http client is required")
	}
	return &Service{client: client}, nil
}

func (s *Service) List(ctx context.Context) ([]Incident, error) {
	return get[[]Incident](ctx, s.client, basePath, "Error listing incidents")
}

// Create files a manually entered incident.
func (s *Service) Create(ctx context.Context, incident Incident) (*Incident, error) {
	created, err := httpclient.Post[Incident](ctx, s.client, basePath, incident)
	if err != nil {
		log.Err(err).Str("case_id", incident.CaseID).Msg("Error creating incident")
		return nil, err
	}
	return &created, nil
}

func (s *Service) Recent(ctx context.Context) ([]Incident, error) {
	return get[[]Incident](ctx, s.client, basePath+"/recent", "Error fetching recent incidents")
}

func (s *Service) Metrics(ctx context.Context) (*Metrics, error) {
	m, err := get[Metrics](ctx, s.client, basePath+"/metrics", "Error fetching incident metrics")
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Service) SeverityDistribution(ctx context.Context) ([]SeverityCount, error) {
	return get[[]SeverityCount](ctx, s.client, basePath+"/severity-distribution", "Error fetching incident severity distribution")
}

func (s *Service) TypeDistribution(ctx context.Context) ([]TypeCount, error) {
	return get[[]TypeCount](ctx, s.client, basePath+"/type-distribution", "Error fetching incident type distribution")
}

func (s *Service) ResponseTimes(ctx context.Context) ([]ResponseMetric, error) {
	return get[[]ResponseMetric](ctx, s.client, basePath+"/response-times", "Error fetching incident response times")
}

func (s *Service) Logs(ctx context.Context) ([]Incident, error) {
	return get[[]Incident](ctx, s.client, basePath+"/logs", "Error fetching incident logs")
}

func get[T any](ctx context.Context, client *httpclient.Client, path, msg string) (T, error) {
	res, err := httpclient.Get[T](ctx, client, path)
	if err != nil {
		log.Err(err).Str("path", path).Msg(msg)
	}
	return res, err
}
