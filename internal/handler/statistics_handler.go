package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ticket-report-export/internal/dto"
	"github.com/noah-isme/ticket-report-export/internal/middleware"
	"github.com/noah-isme/ticket-report-export/internal/models"
	appErrors "github.com/noah-isme/ticket-report-export/pkg/errors"
	"github.com/noah-isme/ticket-report-export/pkg/response"
)

type statisticsService interface {
	FullExport(ctx context.Context, email string) ([]models.TicketRecord, error)
	InvalidateAll(ctx context.Context) error
}

// StatisticsHandler serves the ticket dataset consumed by the exporter.
type StatisticsHandler struct {
	service statisticsService
}

// NewStatisticsHandler constructs handler.
func NewStatisticsHandler(service statisticsService) *StatisticsHandler {
	return &StatisticsHandler{service: service}
}

// FullExport godoc
// @Summary Full ticket export
// @Description Returns every ticket visible to the caller identified by x-user-email.
// @Tags Statistics
// @Produce json
// @Param x-user-email header string true "Caller email"
// @Success 200 {object} dto.FullExportResponse
// @Failure 401 {object} response.Envelope
// @Router /api/statistics/full-export [get]
func (h *StatisticsHandler) FullExport(c *gin.Context) {
	email := strings.TrimSpace(c.GetHeader(middleware.EmailHeader))
	if email == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "x-user-email header required"))
		return
	}
	records, err := h.service.FullExport(c.Request.Context(), email)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, dto.FullExportResponse{Data: records})
}

// InvalidateCache godoc
// @Summary Drop cached ticket exports
// @Description Forces the next full export of every caller to read from the database.
// @Tags Statistics
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /api/v1/statistics/cache/invalidate [post]
func (h *StatisticsHandler) InvalidateCache(c *gin.Context) {
	if err := h.service.InvalidateAll(c.Request.Context()); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to invalidate statistics cache"))
		return
	}
	response.NoContent(c)
}
