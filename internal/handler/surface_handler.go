package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/ticket-report-export/internal/dto"
	"github.com/noah-isme/ticket-report-export/internal/models"
	appErrors "github.com/noah-isme/ticket-report-export/pkg/errors"
	"github.com/noah-isme/ticket-report-export/pkg/response"
)

type surfaceRegistry interface {
	Mount(owner, id, title string, snapshot io.Reader, crossOrigin bool) (*models.SurfaceInfo, error)
	Unmount(owner, id string) bool
	List(owner string) []models.SurfaceInfo
}

// SurfaceHandler lets the dashboard publish the charts it currently renders. Every
// surface belongs to the authenticated caller.
type SurfaceHandler struct {
	registry  surfaceRegistry
	validator *validator.Validate
}

// NewSurfaceHandler constructs handler.
func NewSurfaceHandler(registry surfaceRegistry) *SurfaceHandler {
	return &SurfaceHandler{registry: registry, validator: validator.New()}
}

// Mount godoc
// @Summary Mount chart snapshot
// @Tags Dashboard
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Surface ID"
// @Param snapshot formData file true "PNG snapshot"
// @Param title formData string false "Chart title"
// @Param crossOrigin formData bool false "Snapshot contains cross-origin content"
// @Success 200 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /api/v1/dashboard/surfaces/{id} [put]
func (h *SurfaceHandler) Mount(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var form dto.MountSurfaceRequest
	if err := c.ShouldBind(&form); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid surface form"))
		return
	}
	if err := h.validator.Struct(form); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid surface form"))
		return
	}
	header, err := c.FormFile("snapshot")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "snapshot file required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable snapshot"))
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := h.registry.Mount(caller.Email, c.Param("id"), form.Title, file, form.CrossOrigin)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info)
}

// Unmount godoc
// @Summary Unmount chart snapshot
// @Tags Dashboard
// @Param id path string true "Surface ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /api/v1/dashboard/surfaces/{id} [delete]
func (h *SurfaceHandler) Unmount(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if !h.registry.Unmount(caller.Email, c.Param("id")) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "surface not mounted"))
		return
	}
	response.NoContent(c)
}

// List godoc
// @Summary List mounted charts
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /api/v1/dashboard/surfaces [get]
func (h *SurfaceHandler) List(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	surfaces := h.registry.List(caller.Email)
	response.JSON(c, http.StatusOK, surfaces, map[string]interface{}{"count": len(surfaces)})
}
