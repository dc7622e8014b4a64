package models

import "time"

// UserRole captures the helpdesk role of a caller.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleAnalyst   UserRole = "ANALYST"
	RoleRequester UserRole = "REQUESTER"
)

// TicketRecord is one row of the statistics full export. Optional fields stay nil
// here; display fallbacks are applied only when the record is formatted.
type TicketRecord struct {
	ID             int64      `db:"id" json:"id"`
	Title          *string    `db:"title" json:"title,omitempty"`
	Category       *string    `db:"category" json:"category,omitempty"`
	Problem        *string    `db:"problem" json:"problem,omitempty"`
	Status         *string    `db:"status" json:"status,omitempty"`
	Priority       *string    `db:"priority" json:"priority,omitempty"`
	Requester      *string    `db:"requester" json:"requester,omitempty"`
	OpenedAt       time.Time  `db:"opened_at" json:"openedAt"`
	Assignee       *string    `db:"assignee" json:"assignee,omitempty"`
	ResolvedAt     *time.Time `db:"resolved_at" json:"resolvedAt"`
	ResolutionDays *float64   `db:"resolution_days" json:"resolutionDays"`
	OpeningReason  *string    `db:"opening_reason" json:"openingReason,omitempty"`
}

// StatisticsUser is the caller profile used to scope the full export.
type StatisticsUser struct {
	ID       string   `db:"id" json:"id"`
	Email    string   `db:"email" json:"email"`
	FullName string   `db:"full_name" json:"full_name"`
	Role     UserRole `db:"role" json:"role"`
}

// SeesAllTickets reports whether the role may export every ticket.
func (u StatisticsUser) SeesAllTickets() bool {
	return u.Role == RoleAdmin || u.Role == RoleAnalyst
}
