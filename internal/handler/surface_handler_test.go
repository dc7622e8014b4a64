package handler

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/ticket-report-export/internal/middleware"
	"github.com/noah-isme/ticket-report-export/internal/models"
	"github.com/noah-isme/ticket-report-export/internal/service"
)

func surfaceRequest(method, path, caller string, body io.Reader, contentType string) *http.Request {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if caller != "" {
		req.Header.Set("X-Test-Caller", caller)
	}
	return req
}

func pngSnapshot(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func multipartSnapshot(t *testing.T, fields map[string]string, snapshot []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if snapshot != nil {
		part, err := writer.CreateFormFile("snapshot", "chart.png")
		require.NoError(t, err)
		_, err = part.Write(snapshot)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func surfaceRouter(registry *service.SurfaceRegistry) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewSurfaceHandler(registry)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if email := c.GetHeader("X-Test-Caller"); email != "" {
			c.Set(middleware.ContextUserKey, &models.JWTClaims{Email: email})
		}
		c.Next()
	})
	r.PUT("/dashboard/surfaces/:id", handler.Mount)
	r.DELETE("/dashboard/surfaces/:id", handler.Unmount)
	r.GET("/dashboard/surfaces", handler.List)
	return r
}

func TestSurfaceHandlerMountListUnmount(t *testing.T) {
	registry := service.NewSurfaceRegistry(service.SurfaceLimits{}, zap.NewNop())
	r := surfaceRouter(registry)

	body, contentType := multipartSnapshot(t, map[string]string{"title": "Chamados por Status", "crossOrigin": "true"}, pngSnapshot(t, 40, 20))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, surfaceRequest(http.MethodPut, "/dashboard/surfaces/status-bar", "ana@example.com", body, contentType))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), `"width":40`)
	require.Contains(t, w.Body.String(), `"crossOrigin":true`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, surfaceRequest(http.MethodGet, "/dashboard/surfaces", "ana@example.com", nil, ""))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"count":1`)
	require.Contains(t, w.Body.String(), "Chamados por Status")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, surfaceRequest(http.MethodDelete, "/dashboard/surfaces/status-bar", "ana@example.com", nil, ""))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, surfaceRequest(http.MethodDelete, "/dashboard/surfaces/status-bar", "ana@example.com", nil, ""))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSurfaceHandlerScopesSurfacesToCaller(t *testing.T) {
	registry := service.NewSurfaceRegistry(service.SurfaceLimits{}, zap.NewNop())
	r := surfaceRouter(registry)

	body, contentType := multipartSnapshot(t, map[string]string{"title": "Ana"}, pngSnapshot(t, 40, 20))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, surfaceRequest(http.MethodPut, "/dashboard/surfaces/status-bar", "ana@example.com", body, contentType))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body, contentType = multipartSnapshot(t, map[string]string{"title": "Beto"}, pngSnapshot(t, 10, 10))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, surfaceRequest(http.MethodPut, "/dashboard/surfaces/status-bar", "beto@example.com", body, contentType))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, surfaceRequest(http.MethodGet, "/dashboard/surfaces", "ana@example.com", nil, ""))
	require.Contains(t, w.Body.String(), `"title":"Ana"`)
	require.NotContains(t, w.Body.String(), "Beto")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, surfaceRequest(http.MethodDelete, "/dashboard/surfaces/status-bar", "beto@example.com", nil, ""))
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "Ana", registry.Surface("ana@example.com", "status-bar").Title())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, surfaceRequest(http.MethodGet, "/dashboard/surfaces", "", nil, ""))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSurfaceHandlerRejectsBadSnapshots(t *testing.T) {
	r := surfaceRouter(service.NewSurfaceRegistry(service.SurfaceLimits{MaxPixels: 100}, zap.NewNop()))

	body, contentType := multipartSnapshot(t, map[string]string{"title": "Sem arquivo"}, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, surfaceRequest(http.MethodPut, "/dashboard/surfaces/status-bar", "ana@example.com", body, contentType))
	require.Equal(t, http.StatusBadRequest, w.Code)

	body, contentType = multipartSnapshot(t, nil, []byte("not a png"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, surfaceRequest(http.MethodPut, "/dashboard/surfaces/status-bar", "ana@example.com", body, contentType))
	require.Equal(t, http.StatusBadRequest, w.Code)

	body, contentType = multipartSnapshot(t, nil, pngSnapshot(t, 40, 20))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, surfaceRequest(http.MethodPut, "/dashboard/surfaces/status-bar", "ana@example.com", body, contentType))
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	require.Contains(t, w.Body.String(), "SNAPSHOT_TOO_LARGE")

	body, contentType = multipartSnapshot(t, nil, pngSnapshot(t, 5, 5))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, surfaceRequest(http.MethodPut, "/dashboard/surfaces/status-bar", "", body, contentType))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
