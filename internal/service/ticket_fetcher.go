package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/ticket-report-export/internal/dto"
	"github.com/noah-isme/ticket-report-export/internal/models"
	appErrors "github.com/noah-isme/ticket-report-export/pkg/errors"
)

const (
	// FullExportPath is the statistics endpoint returning every ticket visible to the caller.
	FullExportPath = "/api/statistics/full-export"
	// EmailHeader carries the caller identity on the full export call.
	EmailHeader = "x-user-email"
)

// TicketFetcherConfig tunes the statistics client.
type TicketFetcherConfig struct {
	BaseURL string
	Timeout time.Duration
}

// TicketFetcher retrieves ticket records from the statistics API.
type TicketFetcher struct {
	client  *http.Client
	baseURL string
	logger  *zap.Logger
}

// NewTicketFetcher constructs the fetcher. A nil client gets one with the configured timeout.
func NewTicketFetcher(cfg TicketFetcherConfig, client *http.Client, logger *zap.Logger) *TicketFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &TicketFetcher{client: client, baseURL: cfg.BaseURL, logger: logger}
}

// Fetch issues one GET carrying the identity header. Transport failures, non-2xx
// responses and undecodable bodies come back as ErrStatisticsUnavailable.
func (f *TicketFetcher) Fetch(ctx context.Context, identity string) ([]models.TicketRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+FullExportPath, nil)
	if err != nil {
		return nil, unavailable(err, "build statistics request")
	}
	req.Header.Set(EmailHeader, identity)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, unavailable(err, "statistics request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, unavailable(fmt.Errorf("status %d", resp.StatusCode), "statistics request rejected")
	}

	var body dto.FullExportResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, unavailable(err, "decode statistics response")
	}
	f.logger.Debug("statistics fetched",
		zap.Int("records", len(body.Data)),
		zap.Duration("latency", time.Since(start)),
	)
	if body.Data == nil {
		return []models.TicketRecord{}, nil
	}
	return body.Data, nil
}

func unavailable(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrStatisticsUnavailable.Code, appErrors.ErrStatisticsUnavailable.Status, message)
}
