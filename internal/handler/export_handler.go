package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ticket-report-export/internal/dto"
	"github.com/noah-isme/ticket-report-export/internal/models"
	"github.com/noah-isme/ticket-report-export/internal/service"
	appErrors "github.com/noah-isme/ticket-report-export/pkg/errors"
	"github.com/noah-isme/ticket-report-export/pkg/response"
)

type exportOrchestrator interface {
	ExportTabular(ctx context.Context, caller models.Caller) (*models.Delivery, error)
	ExportSingleRaster(ctx context.Context, caller models.Caller, surfaceID, filename string) (*models.Delivery, error)
	ExportDocument(ctx context.Context, caller models.Caller, surfaceIDs []string) (*models.Delivery, error)
	Status(caller models.Caller) models.ExportStatus
	Acknowledge(caller models.Caller) error
}

type downloadResolver interface {
	ResolveDownload(token string) (*service.ArtifactDownload, error)
}

// ExportHandler triggers exports and streams their results.
type ExportHandler struct {
	exports   exportOrchestrator
	downloads downloadResolver
}

// NewExportHandler constructs handler.
func NewExportHandler(exports exportOrchestrator, downloads downloadResolver) *ExportHandler {
	return &ExportHandler{exports: exports, downloads: downloads}
}

// Tabular godoc
// @Summary Export tickets spreadsheet
// @Tags Exports
// @Produce json
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /api/v1/exports/tabular [post]
func (h *ExportHandler) Tabular(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	delivery, err := h.exports.ExportTabular(c.Request.Context(), caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, delivery)
}

// Raster godoc
// @Summary Export one chart as PNG
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body dto.RasterExportRequest true "Chart to export"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /api/v1/exports/raster [post]
func (h *ExportHandler) Raster(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RasterExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	delivery, err := h.exports.ExportSingleRaster(c.Request.Context(), caller, req.SurfaceID, req.Filename)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, delivery)
}

// Document godoc
// @Summary Export the paginated PDF report
// @Tags Exports
// @Accept json
// @Produce json
// @Param payload body dto.DocumentExportRequest false "Charts in report order"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /api/v1/exports/document [post]
func (h *ExportHandler) Document(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.DocumentExportRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	delivery, err := h.exports.ExportDocument(c.Request.Context(), caller, req.Surfaces)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, delivery)
}

// Status godoc
// @Summary Export lifecycle state of the caller
// @Tags Exports
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /api/v1/exports/status [get]
func (h *ExportHandler) Status(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, h.exports.Status(caller))
}

// Acknowledge godoc
// @Summary Dismiss the caller's pending export failure
// @Tags Exports
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /api/v1/exports/acknowledge [post]
func (h *ExportHandler) Acknowledge(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.exports.Acknowledge(caller); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.exports.Status(caller))
}

// Download godoc
// @Summary Download an export artifact
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /api/v1/exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	download, err := h.downloads.ResolveDownload(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.Header("Cache-Control", "private, max-age=0")
	c.DataFromReader(http.StatusOK, info.Size(), download.ContentType, download.File, nil)
}
