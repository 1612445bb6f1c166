package repository

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrReferenced is returned when a delete is blocked by a dependent row.
	ErrReferenced = errors.New("record is still referenced")
	// ErrTransient marks failures that may succeed on retry (lock timeout,
	// serialization failure, deadlock).
	ErrTransient = errors.New("transient storage failure")
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	// GetForUpdate reads the ticket and holds an exclusive row lock until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*domain.Ticket, error)
	List(ctx context.Context) ([]domain.Ticket, error)
	ListWithTechnician(ctx context.Context) ([]domain.TicketWithTechnician, error)
	// UpdateStatus persists ticket.Status and refreshes ticket.UpdatedAt.
	UpdateStatus(ctx context.Context, ticket *domain.Ticket) error
	// EscalateOverdue bumps every open ticket created more than threshold ago,
	// skipping rows locked by other transactions.
	EscalateOverdue(ctx context.Context, threshold time.Duration) ([]domain.EscalatedTicket, error)
}

// TechnicianRepository handles persistence for technicians.
type TechnicianRepository interface {
	Create(ctx context.Context, technician *domain.Technician) error
	GetByID(ctx context.Context, id int64) (*domain.Technician, error)
	// GetForShare reads the technician and blocks concurrent updates of the row
	// until the surrounding transaction ends.
	GetForShare(ctx context.Context, id int64) (*domain.Technician, error)
	List(ctx context.Context) ([]domain.Technician, error)
	SetActive(ctx context.Context, id int64, active bool) (*domain.Technician, error)
	Delete(ctx context.Context, id int64) error
}

// AssignmentRepository stores the ticket to technician mapping.
type AssignmentRepository interface {
	Upsert(ctx context.Context, assignment *domain.Assignment) error
	GetByTicket(ctx context.Context, ticketID int64) (*domain.Assignment, error)
}

// AuditRepository is the append-only status transition log.
type AuditRepository interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.AuditEntry, error)
}

// Tx exposes the repositories bound to one unit of work.
type Tx interface {
	Tickets() TicketRepository
	Technicians() TechnicianRepository
	Assignments() AssignmentRepository
	Audit() AuditRepository
}

// Store gives autocommit access to the repositories and opens transactions.
// WithTx commits when fn returns nil and rolls back otherwise.
type Store interface {
	Tx
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}
