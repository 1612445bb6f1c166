package repository

import (
	"context"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

type auditRepository struct {
	db DBTX
}

// NewAuditRepository builds repository.
func NewAuditRepository(db DBTX) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	const query = `
        INSERT INTO ticket_audit_log (ticket_id, old_status, new_status, changed_at)
        VALUES ($1,$2,$3,clock_timestamp())
        RETURNING id, changed_at`
	err := r.db.QueryRow(ctx, query,
		entry.TicketID,
		entry.PreviousStatus,
		entry.NewStatus,
	).Scan(&entry.ID, &entry.ChangedAt)
	return translateError(err)
}

// ListByTicket orders by id: entries for one ticket are inserted while its row
// lock is held, so id order is transition order even when transactions started
// out of order.
func (r *auditRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.AuditEntry, error) {
	const query = `
        SELECT id, ticket_id, old_status, new_status, changed_at
        FROM ticket_audit_log WHERE ticket_id=$1 ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	result := []domain.AuditEntry{}
	for rows.Next() {
		var entry domain.AuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.PreviousStatus,
			&entry.NewStatus,
			&entry.ChangedAt,
		); err != nil {
			return nil, translateError(err)
		}
		result = append(result, entry)
	}
	return result, translateError(rows.Err())
}
