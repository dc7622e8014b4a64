package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/ticket-report-export/internal/middleware"
	"github.com/noah-isme/ticket-report-export/internal/models"
	"github.com/noah-isme/ticket-report-export/internal/service"
	appErrors "github.com/noah-isme/ticket-report-export/pkg/errors"
	"github.com/noah-isme/ticket-report-export/pkg/export"
	"github.com/noah-isme/ticket-report-export/pkg/raster"
	"github.com/noah-isme/ticket-report-export/pkg/storage"
)

type orchestratorMock struct {
	delivery    *models.Delivery
	err         error
	status      models.ExportStatus
	ackErr      error
	lastCaller  models.Caller
	lastSurface string
	lastName    string
	lastIDs     []string
}

func (m *orchestratorMock) ExportTabular(ctx context.Context, caller models.Caller) (*models.Delivery, error) {
	m.lastCaller = caller
	return m.delivery, m.err
}

func (m *orchestratorMock) ExportSingleRaster(ctx context.Context, caller models.Caller, surfaceID, filename string) (*models.Delivery, error) {
	m.lastCaller = caller
	m.lastSurface = surfaceID
	m.lastName = filename
	return m.delivery, m.err
}

func (m *orchestratorMock) ExportDocument(ctx context.Context, caller models.Caller, surfaceIDs []string) (*models.Delivery, error) {
	m.lastCaller = caller
	m.lastIDs = surfaceIDs
	return m.delivery, m.err
}

func (m *orchestratorMock) Status(caller models.Caller) models.ExportStatus {
	m.lastCaller = caller
	return m.status
}

func (m *orchestratorMock) Acknowledge(caller models.Caller) error {
	m.lastCaller = caller
	return m.ackErr
}

type ticketsStub struct{}

func (ticketsStub) Fetch(ctx context.Context, identity string) ([]models.TicketRecord, error) {
	return []models.TicketRecord{{ID: 1, OpenedAt: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)}}, nil
}

type downloadMock struct {
	download *service.ArtifactDownload
	err      error
}

func (m *downloadMock) ResolveDownload(token string) (*service.ArtifactDownload, error) {
	return m.download, m.err
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func withCaller(c *gin.Context) {
	withEmail(c, "ana@example.com", "Ana Souza")
}

func withEmail(c *gin.Context, email, name string) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{Email: email, FullName: name})
}

func TestExportHandlerTabular(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &orchestratorMock{delivery: &models.Delivery{Filename: "statistics-tickets-2024-03-05.csv", Rows: 3}}
	handler := NewExportHandler(mock, &downloadMock{})

	c, w := newGinContext(http.MethodPost, "/exports/tabular", nil)
	withCaller(c)
	handler.Tabular(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "ana@example.com", mock.lastCaller.Email)
	require.Contains(t, w.Body.String(), "statistics-tickets-2024-03-05.csv")
}

func TestExportHandlerRequiresCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExportHandler(&orchestratorMock{}, &downloadMock{})

	c, w := newGinContext(http.MethodPost, "/exports/tabular", nil)
	handler.Tabular(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExportHandlerBusyConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExportHandler(&orchestratorMock{err: appErrors.ErrExportBusy}, &downloadMock{})

	payload, _ := json.Marshal(map[string]string{"surfaceId": "status-bar"})
	c, w := newGinContext(http.MethodPost, "/exports/raster", payload)
	withCaller(c)
	handler.Raster(c)

	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, w.Body.String(), "EXPORT_BUSY")
}

func TestExportHandlerRasterPassesPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &orchestratorMock{delivery: &models.Delivery{Filename: "status.png"}}
	handler := NewExportHandler(mock, &downloadMock{})

	payload, _ := json.Marshal(map[string]string{"surfaceId": "status-bar", "filename": "status"})
	c, w := newGinContext(http.MethodPost, "/exports/raster", payload)
	withCaller(c)
	handler.Raster(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "status-bar", mock.lastSurface)
	require.Equal(t, "status", mock.lastName)
}

func TestExportHandlerDocumentAcceptsEmptyBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &orchestratorMock{delivery: &models.Delivery{Filename: service.DocumentFilename, Pages: 2}}
	handler := NewExportHandler(mock, &downloadMock{})

	c, w := newGinContext(http.MethodPost, "/exports/document", nil)
	withCaller(c)
	handler.Document(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Nil(t, mock.lastIDs)

	payload, _ := json.Marshal(map[string][]string{"surfaces": {"monthly-line", "status-bar"}})
	c, w = newGinContext(http.MethodPost, "/exports/document", payload)
	withCaller(c)
	handler.Document(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, []string{"monthly-line", "status-bar"}, mock.lastIDs)
	require.Equal(t, "Ana Souza", mock.lastCaller.DisplayName())
}

func TestExportHandlerStatusAndAcknowledge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &orchestratorMock{status: models.ExportStatus{
		State: models.ExportStateError,
		Alert: &models.ExportAlert{Message: service.AlertRasterFailed},
	}}
	handler := NewExportHandler(mock, &downloadMock{})

	c, w := newGinContext(http.MethodGet, "/exports/status", nil)
	withCaller(c)
	handler.Status(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"state":"ERROR"`)
	require.Equal(t, "ana@example.com", mock.lastCaller.Email)

	mock.ackErr = appErrors.ErrInvalidTransition
	c, w = newGinContext(http.MethodPost, "/exports/acknowledge", nil)
	withCaller(c)
	handler.Acknowledge(c)
	require.Equal(t, http.StatusConflict, w.Code)

	c, w = newGinContext(http.MethodGet, "/exports/status", nil)
	handler.Status(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newGinContext(http.MethodPost, "/exports/acknowledge", nil)
	handler.Acknowledge(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExportHandlerStatusHidesOtherCallersDelivery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	delivery := service.NewDeliveryService(store, storage.NewSignedURLSigner("secret", time.Hour),
		service.DeliveryConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, zap.NewNop())
	orchestrator := service.NewExportOrchestrator(
		ticketsStub{},
		service.NewSurfaceRegistry(service.SurfaceLimits{}, zap.NewNop()),
		raster.NewRasterizer(raster.Options{Scale: 1}),
		export.NewDocumentBuilder(export.PageGeometry{Width: 210, Height: 297, Margin: 10}, export.LayoutConfig{}),
		export.NewPDFExporter(),
		export.NewDelimitedExporter(';'),
		delivery,
		service.NewMetricsService(),
		service.ExportOrchestratorConfig{},
		zap.NewNop(),
	)
	handler := NewExportHandler(orchestrator, delivery)

	c, w := newGinContext(http.MethodPost, "/exports/tabular", nil)
	withEmail(c, "ana@example.com", "Ana Souza")
	handler.Tabular(c)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), "/api/v1/exports/download/")

	c, w = newGinContext(http.MethodGet, "/exports/status", nil)
	withEmail(c, "beto@example.com", "Beto Lima")
	handler.Status(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"state":"IDLE"`)
	require.NotContains(t, w.Body.String(), "/exports/download/")

	c, w = newGinContext(http.MethodGet, "/exports/status", nil)
	withEmail(c, "ana@example.com", "Ana Souza")
	handler.Status(c)
	require.Contains(t, w.Body.String(), "/api/v1/exports/download/")
}

func TestExportHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	file, err := os.CreateTemp(t.TempDir(), "export*.csv")
	require.NoError(t, err)
	_, _ = file.WriteString("ID;Título\n")
	_, _ = file.Seek(0, 0)

	handler := NewExportHandler(&orchestratorMock{}, &downloadMock{download: &service.ArtifactDownload{
		File:        file,
		Filename:    "statistics-tickets-2024-03-05.csv",
		ContentType: "text/csv; charset=utf-8",
		ExpiresAt:   time.Now().Add(time.Hour),
	}})

	c, w := newGinContext(http.MethodGet, "/exports/download/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}
	handler.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ID;Título\n", w.Body.String())
	require.Equal(t, `attachment; filename="statistics-tickets-2024-03-05.csv"`, w.Header().Get("Content-Disposition"))
	require.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
}

func TestExportHandlerDownloadForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExportHandler(&orchestratorMock{}, &downloadMock{err: appErrors.ErrForbidden})

	c, w := newGinContext(http.MethodGet, "/exports/download/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}
	handler.Download(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}
