package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/ticket-report-export/internal/models"
	"github.com/noah-isme/ticket-report-export/pkg/export"
)

// Column headers of the ticket spreadsheet, in output order.
const (
	ColumnID             = "ID"
	ColumnTitle          = "Título"
	ColumnCategory       = "Categoria"
	ColumnProblem        = "Problema"
	ColumnStatus         = "Status"
	ColumnPriority       = "Prioridade"
	ColumnRequester      = "Usuário Abertura"
	ColumnOpenedAt       = "Data Abertura"
	ColumnAssignee       = "Analista Responsável"
	ColumnResolvedAt     = "Data Resolução"
	ColumnResolutionDays = "Tempo Resolução (dias)"
	ColumnOpeningReason  = "Motivo Abertura"
)

// Fallback tokens for missing values.
const (
	FallbackTitle         = "Sem título"
	FallbackText          = "N/A"
	FallbackUnresolved    = "Não resolvido"
	FallbackOpeningReason = "Não informado"
)

// TicketColumns returns the twelve spreadsheet headers.
func TicketColumns() []string {
	return []string{
		ColumnID,
		ColumnTitle,
		ColumnCategory,
		ColumnProblem,
		ColumnStatus,
		ColumnPriority,
		ColumnRequester,
		ColumnOpenedAt,
		ColumnAssignee,
		ColumnResolvedAt,
		ColumnResolutionDays,
		ColumnOpeningReason,
	}
}

// DateLocale renders dates the way the requester reads them.
type DateLocale struct {
	Layout   string
	Location *time.Location
}

// NewDateLocale loads the timezone by name, falling back to UTC when the zone database
// does not know it.
func NewDateLocale(layout, timezone string) DateLocale {
	if layout == "" {
		layout = "02/01/2006"
	}
	loc := time.UTC
	if timezone != "" {
		if loaded, err := time.LoadLocation(timezone); err == nil {
			loc = loaded
		}
	}
	return DateLocale{Layout: layout, Location: loc}
}

// Format renders t in the locale; the zero time renders empty.
func (l DateLocale) Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	loc := l.Location
	if loc == nil {
		loc = time.UTC
	}
	layout := l.Layout
	if layout == "" {
		layout = "02/01/2006"
	}
	return t.In(loc).Format(layout)
}

// FormatTickets converts ticket records into the fixed twelve column dataset, one row
// per record in input order. Headers are present even when records is empty.
func FormatTickets(records []models.TicketRecord, locale DateLocale) export.Dataset {
	rows := make([]map[string]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, formatTicket(record, locale))
	}
	return export.Dataset{Headers: TicketColumns(), Rows: rows}
}

func formatTicket(record models.TicketRecord, locale DateLocale) map[string]string {
	resolvedAt := FallbackUnresolved
	if record.ResolvedAt != nil {
		resolvedAt = locale.Format(*record.ResolvedAt)
	}
	days := 0.0
	if record.ResolutionDays != nil {
		days = *record.ResolutionDays
	}
	return map[string]string{
		ColumnID:             strconv.FormatInt(record.ID, 10),
		ColumnTitle:          textOr(record.Title, FallbackTitle),
		ColumnCategory:       textOr(record.Category, FallbackText),
		ColumnProblem:        textOr(record.Problem, FallbackText),
		ColumnStatus:         textOr(record.Status, FallbackText),
		ColumnPriority:       textOr(record.Priority, FallbackText),
		ColumnRequester:      textOr(record.Requester, FallbackText),
		ColumnOpenedAt:       locale.Format(record.OpenedAt),
		ColumnAssignee:       textOr(record.Assignee, FallbackText),
		ColumnResolvedAt:     resolvedAt,
		ColumnResolutionDays: strconv.FormatFloat(days, 'f', -1, 64),
		ColumnOpeningReason:  textOr(record.OpeningReason, FallbackOpeningReason),
	}
}

func textOr(value *string, fallback string) string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return fallback
	}
	return *value
}
