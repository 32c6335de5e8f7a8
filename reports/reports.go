// Package reports wraps the threat report service.
package reports

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jrsteele09/cyberguard-client/httpclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const basePath = "/api/v1/reports"

type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type Summary struct {
	TotalThreats        int         `json:"totalThreats"`
	AverageResponseTime float64     `json:"averageResponseTime"`
	MitigationRate      float64     `json:"mitigationRate"`
	ThreatsByDay        []DayCount  `json:"threatsByDay"`
	ThreatsByType       []TypeCount `json:"threatsByType"`
}

type Detailed struct {
	ThreatID         int64  `json:"threatId"`
	Description      string `json:"description"`
	ResolutionStatus string `json:"resolutionStatus"`
	MitigatedAt      string `json:"mitigatedAt"`
}

// Export is a downloaded report file.
type Export struct {
	ContentType string
	Filename    string
	Data        []byte
}

type Service struct {
	client *httpclient.Client
}

func NewService(client *httpclient.Client) (*Service, error) {
	if client == nil {
		return nil, errors.New("[reports.NewService] http client is required")
	}
	return &Service{client: client}, nil
}

// Summary reports over [startDate, endDate], both passed through as the backend expects them
// (yyyy-MM-dd).
func (s *Service) Summary(ctx context.Context, startDate, endDate string) (*Summary, error) {
	query := url.Values{"startDate": {startDate}, "endDate": {endDate}}
	sum, err := httpclient.Get[Summary](ctx, s.client, basePath+"/summary", httpclient.WithQuery(query))
	if err != nil {
		log.Err(err).Msg("Error fetching summary report")
		return nil, err
	}
	return &sum, nil
}

func (s *Service) Detailed(ctx context.Context, threatID int64) (*Detailed, error) {
	d, err := httpclient.Get[Detailed](ctx, s.client, threatPath(threatID, "detailed"))
	if err != nil {
		log.Err(err).Int64("threat_id", threatID).Msg("Error fetching detailed report")
		return nil, err
	}
	return &d, nil
}

func (s *Service) ExportPDF(ctx context.Context, threatID int64) (*Export, error) {
	return s.export(ctx, threatID, "pdf", "application/pdf")
}

func (s *Service) ExportCSV(ctx context.Context, threatID int64) (*Export, error) {
	return s.export(ctx, threatID, "csv", "text/csv")
}

func (s *Service) export(ctx context.Context, threatID int64, format, accept string) (*Export, error) {
	res, err := s.client.Send(ctx, http.MethodGet, threatPath(threatID, "export", format), nil,
		httpclient.WithRequestHeader("Accept", accept))
	if err != nil {
		log.Err(err).Int64("threat_id", threatID).Str("format", format).Msg("Error exporting report")
		return nil, err
	}
	contentType := res.Header.Get("Content-Type")
	if contentType == "" {
		contentType = accept
	}
	return &Export{
		ContentType: contentType,
		Filename:    "threat-report-" + strconv.FormatInt(threatID, 10) + "." + format,
		Data:        res.Body,
	}, nil
}

func threatPath(threatID int64, parts ...string) string {
	p := basePath + "/" + strconv.FormatInt(threatID, 10)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}
