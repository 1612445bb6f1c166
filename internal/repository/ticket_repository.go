package repository

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

const ticketColumns = `id, title, description, status, priority, created_at, updated_at`

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, status, priority)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	return translateError(err)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, translateError(err)
	}
	return &ticket, nil
}

func (r *ticketRepository) List(ctx context.Context) ([]domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets ORDER BY id`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListWithTechnician(ctx context.Context) ([]domain.TicketWithTechnician, error) {
	const query = `
        SELECT t.id, t.title, t.description, t.status, t.priority, t.created_at, t.updated_at,
               tech.id, tech.name
        FROM tickets t
        LEFT JOIN ticket_assignments a ON a.ticket_id = t.id
        LEFT JOIN technicians tech ON tech.id = a.technician_id
        ORDER BY t.id`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	result := []domain.TicketWithTechnician{}
	for rows.Next() {
		var item domain.TicketWithTechnician
		if err := rows.Scan(
			&item.ID,
			&item.Title,
			&item.Description,
			&item.Status,
			&item.Priority,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.TechnicianID,
			&item.TechnicianName,
		); err != nil {
			return nil, translateError(err)
		}
		result = append(result, item)
	}
	return result, translateError(rows.Err())
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET status=$1, updated_at=clock_timestamp()
        WHERE id=$2
        RETURNING updated_at`
	err := r.db.QueryRow(ctx, query, ticket.Status, ticket.ID).Scan(&ticket.UpdatedAt)
	return translateError(err)
}

func (r *ticketRepository) EscalateOverdue(ctx context.Context, threshold time.Duration) ([]domain.EscalatedTicket, error) {
	// The status guard in the outer UPDATE keeps a concurrent sweep from
	// escalating a ticket twice.
	const query = `
        WITH due AS (
            SELECT id, status, priority FROM tickets
            WHERE status = 'open' AND created_at < NOW() - make_interval(secs => $1)
            ORDER BY id
            FOR UPDATE SKIP LOCKED
        )
        UPDATE tickets t
        SET priority = GREATEST(due.priority - 1, 1),
            status = CASE WHEN GREATEST(due.priority - 1, 1) <= $2 THEN 'escalated' ELSE t.status END,
            updated_at = clock_timestamp()
        FROM due
        WHERE t.id = due.id AND t.status = 'open'
        RETURNING t.id, due.status, t.status, due.priority, t.priority`
	rows, err := r.db.Query(ctx, query, threshold.Seconds(), int(domain.EscalationPriorityCeiling))
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	result := []domain.EscalatedTicket{}
	for rows.Next() {
		var item domain.EscalatedTicket
		if err := rows.Scan(
			&item.TicketID,
			&item.PreviousStatus,
			&item.NewStatus,
			&item.PreviousPriority,
			&item.NewPriority,
		); err != nil {
			return nil, translateError(err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TicketID < result[j].TicketID })
	return result, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Title,
			&ticket.Description,
			&ticket.Status,
			&ticket.Priority,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, translateError(err)
		}
		result = append(result, ticket)
	}
	return result, translateError(rows.Err())
}
