package repository

import (
	"context"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

type assignmentRepository struct {
	db DBTX
}

// NewAssignmentRepository builds repository.
func NewAssignmentRepository(db DBTX) AssignmentRepository {
	return &assignmentRepository{db: db}
}

// Upsert records the technician for a ticket, replacing any previous row so a
// ticket never has more than one assignment.
func (r *assignmentRepository) Upsert(ctx context.Context, assignment *domain.Assignment) error {
	const query = `
        INSERT INTO ticket_assignments (ticket_id, technician_id, assigned_at)
        VALUES ($1,$2,clock_timestamp())
        ON CONFLICT (ticket_id) DO UPDATE
            SET technician_id = EXCLUDED.technician_id, assigned_at = EXCLUDED.assigned_at
        RETURNING assigned_at`
	err := r.db.QueryRow(ctx, query, assignment.TicketID, assignment.TechnicianID).
		Scan(&assignment.AssignedAt)
	return translateError(err)
}

func (r *assignmentRepository) GetByTicket(ctx context.Context, ticketID int64) (*domain.Assignment, error) {
	const query = `
        SELECT ticket_id, technician_id, assigned_at
        FROM ticket_assignments WHERE ticket_id=$1`
	var assignment domain.Assignment
	if err := r.db.QueryRow(ctx, query, ticketID).Scan(
		&assignment.TicketID,
		&assignment.TechnicianID,
		&assignment.AssignedAt,
	); err != nil {
		return nil, translateError(err)
	}
	return &assignment, nil
}
