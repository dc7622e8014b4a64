package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ticket-report-export/internal/models"
)

const ticketExportColumns = `t.id, t.title, c.name AS category, p.name AS problem, t.status, t.priority,
	ru.full_name AS requester, t.opened_at, au.full_name AS assignee, t.resolved_at,
	CASE WHEN t.resolved_at IS NULL THEN NULL
		ELSE ROUND((EXTRACT(EPOCH FROM (t.resolved_at - t.opened_at)) / 86400)::numeric, 1)
	END AS resolution_days,
	t.opening_reason`

const ticketExportFrom = `FROM tickets t
	LEFT JOIN categories c ON c.id = t.category_id
	LEFT JOIN problems p ON p.id = t.problem_id
	LEFT JOIN users ru ON ru.id = t.requester_id
	LEFT JOIN users au ON au.id = t.assignee_id`

// StatisticsRepository reads the ticket data behind the statistics export.
type StatisticsRepository struct {
	db *sqlx.DB
}

// NewStatisticsRepository creates a new instance of StatisticsRepository.
func NewStatisticsRepository(db *sqlx.DB) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

// FindUserByEmail returns the caller profile, or sql.ErrNoRows when unknown.
func (r *StatisticsRepository) FindUserByEmail(ctx context.Context, email string) (*models.StatisticsUser, error) {
	const query = `SELECT id, email, full_name, role FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var user models.StatisticsUser
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find statistics user: %w", err)
	}
	return &user, nil
}

// ListTickets returns every ticket ordered by id.
func (r *StatisticsRepository) ListTickets(ctx context.Context) ([]models.TicketRecord, error) {
	query := `SELECT ` + ticketExportColumns + ` ` + ticketExportFrom + ` ORDER BY t.id`
	records := make([]models.TicketRecord, 0)
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return records, nil
}

// ListTicketsByRequester returns the tickets opened by the given user ordered by id.
func (r *StatisticsRepository) ListTicketsByRequester(ctx context.Context, userID string) ([]models.TicketRecord, error) {
	query := `SELECT ` + ticketExportColumns + ` ` + ticketExportFrom + ` WHERE t.requester_id = $1 ORDER BY t.id`
	records := make([]models.TicketRecord, 0)
	if err := r.db.SelectContext(ctx, &records, query, userID); err != nil {
		return nil, fmt.Errorf("list tickets by requester: %w", err)
	}
	return records, nil
}

// Ping checks database connectivity.
func (r *StatisticsRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
