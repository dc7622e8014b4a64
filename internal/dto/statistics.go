package dto

import "github.com/noah-isme/ticket-report-export/internal/models"

// FullExportResponse is the body of GET /api/statistics/full-export.
type FullExportResponse struct {
	Data []models.TicketRecord `json:"data"`
}
