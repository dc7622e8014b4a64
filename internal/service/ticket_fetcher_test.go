package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/ticket-report-export/pkg/errors"
)

func TestTicketFetcherSendsIdentityHeader(t *testing.T) {
	var gotEmail, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEmail = r.Header.Get(EmailHeader)
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":1,"title":"VPN","openedAt":"2024-01-10T12:00:00Z","resolvedAt":null,"resolutionDays":null},{"id":2,"openedAt":"2024-01-11T12:00:00Z"}]}`))
	}))
	defer server.Close()

	fetcher := NewTicketFetcher(TicketFetcherConfig{BaseURL: server.URL, Timeout: time.Second}, nil, zap.NewNop())
	records, err := fetcher.Fetch(context.Background(), "ana@example.com")
	require.NoError(t, err)
	require.Equal(t, "ana@example.com", gotEmail)
	require.Equal(t, FullExportPath, gotPath)
	require.Len(t, records, 2)
	require.Equal(t, "VPN", *records[0].Title)
	require.Nil(t, records[0].ResolvedAt)
	require.Nil(t, records[1].Title)
}

func TestTicketFetcherEmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	fetcher := NewTicketFetcher(TicketFetcherConfig{BaseURL: server.URL}, nil, nil)
	records, err := fetcher.Fetch(context.Background(), "ana@example.com")
	require.NoError(t, err)
	require.NotNil(t, records)
	require.Empty(t, records)
}

func TestTicketFetcherReportsUnavailable(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()
	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer garbage.Close()
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	for _, baseURL := range []string{failing.URL, garbage.URL, closedURL} {
		fetcher := NewTicketFetcher(TicketFetcherConfig{BaseURL: baseURL, Timeout: time.Second}, nil, zap.NewNop())
		_, err := fetcher.Fetch(context.Background(), "ana@example.com")
		require.ErrorIs(t, err, appErrors.ErrStatisticsUnavailable, baseURL)
	}
}
