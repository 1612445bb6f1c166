package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/events"
	"github.com/spec-kit/ticket-engine/internal/repository"
	"github.com/spec-kit/ticket-engine/pkg/util/clock"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util/errorutil"
)

// TicketService is the lifecycle engine: the only writer of ticket status and
// of audit entries.
type TicketService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
}

// EscalationResult summarizes one sweep.
type EscalationResult struct {
	Tickets    []domain.EscalatedTicket
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// CreateTicket stores a new open ticket.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	if !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("priority must be between 1 and 3", map[string]any{
			"field":    "priority",
			"priority": int(input.Priority),
		})
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
		Priority:    input.Priority,
	}
	if err := s.store.Tickets().Create(ctx, ticket); err != nil {
		return nil, storageError(err)
	}

	s.publishEvent(ctx, events.New(events.EventTicketCreated, ticket.ID, events.ActorFrom(ctx), clock.Now(ctx),
		events.TicketCreatedPayload{Priority: ticket.Priority, Title: ticket.Title}))
	return ticket, nil
}

// GetTicket returns a ticket by id.
func (s *TicketService) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "ticket", map[string]any{"ticket_id": id})
	}
	return ticket, nil
}

// ListTickets returns every ticket ordered by id.
func (s *TicketService) ListTickets(ctx context.Context) ([]domain.Ticket, error) {
	tickets, err := s.store.Tickets().List(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	return tickets, nil
}

// ListTicketsWithAssignedTechnician returns tickets joined with their current
// technician; unassigned tickets carry nil technician fields.
func (s *TicketService) ListTicketsWithAssignedTechnician(ctx context.Context) ([]domain.TicketWithTechnician, error) {
	tickets, err := s.store.Tickets().ListWithTechnician(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	return tickets, nil
}

// SetStatus writes a manual status change. Writing the current status again
// succeeds without touching the store. Assigned is reachable only through
// AssignmentService, so it is rejected as a manual target.
func (s *TicketService) SetStatus(ctx context.Context, id int64, status string) (*domain.Ticket, error) {
	next, ok := domain.ParseTicketStatus(status)
	if !ok {
		return nil, apperrors.NewInvalidStatus(status)
	}

	var (
		ticket *domain.Ticket
		entry  *domain.AuditEntry
	)
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		locked, err := tx.Tickets().GetForUpdate(ctx, id)
		if err != nil {
			return notFoundOr(err, "ticket", map[string]any{"ticket_id": id})
		}
		ticket = locked
		if locked.Status == next {
			return nil
		}
		if next == domain.TicketStatusAssigned {
			return apperrors.NewConflict("tickets become assigned only through assignment", map[string]any{
				"ticket_id": id,
				"status":    string(locked.Status),
			})
		}
		entry, err = applyTransition(ctx, tx, locked, next)
		return err
	})
	if err != nil {
		return nil, storageError(err)
	}

	if entry != nil {
		s.publishEvent(ctx, events.New(events.EventTicketStatusChanged, ticket.ID, events.ActorFrom(ctx), entry.ChangedAt,
			events.TicketStatusChangedPayload{OldStatus: entry.PreviousStatus, NewStatus: entry.NewStatus}))
	}
	return ticket, nil
}

// CloseTicket moves the ticket to closed.
func (s *TicketService) CloseTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	return s.SetStatus(ctx, id, string(domain.TicketStatusClosed))
}

// GetAuditEntries returns the ticket's transitions, oldest first. A ticket
// without transitions yields an empty slice.
func (s *TicketService) GetAuditEntries(ctx context.Context, ticketID int64) ([]domain.AuditEntry, error) {
	entries, err := s.store.Audit().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, storageError(err)
	}
	return entries, nil
}

// EscalateOverdue runs one escalation sweep: every open ticket older than
// threshold moves one priority step up, and to escalated once at priority 2
// or better. Each status change is audited in the same transaction.
func (s *TicketService) EscalateOverdue(ctx context.Context, threshold time.Duration) (*EscalationResult, error) {
	result := &EscalationResult{StartedAt: clock.Now(ctx)}
	var audited []domain.AuditEntry

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		escalated, err := tx.Tickets().EscalateOverdue(ctx, threshold)
		if err != nil {
			return err
		}
		for _, item := range escalated {
			if !item.StatusChanged() {
				continue
			}
			entry := domain.AuditEntry{
				TicketID:       item.TicketID,
				PreviousStatus: item.PreviousStatus,
				NewStatus:      item.NewStatus,
			}
			if err := tx.Audit().Append(ctx, &entry); err != nil {
				return err
			}
			audited = append(audited, entry)
		}
		result.Tickets = escalated
		return nil
	})
	if err != nil {
		return nil, storageError(err)
	}
	result.FinishedAt = clock.Now(ctx)

	for _, item := range result.Tickets {
		s.publishEvent(ctx, events.New(events.EventTicketEscalated, item.TicketID, events.ActorFrom(ctx), result.FinishedAt,
			events.TicketEscalatedPayload{
				OldStatus:   item.PreviousStatus,
				NewStatus:   item.NewStatus,
				OldPriority: item.PreviousPriority,
				NewPriority: item.NewPriority,
			}))
	}
	if len(result.Tickets) > 0 {
		s.logger.Info("tickets escalated",
			zap.Int("count", len(result.Tickets)),
			zap.Int("audit_entries", len(audited)),
			zap.Duration("threshold", threshold))
	}
	return result, nil
}

// applyTransition writes next onto the locked ticket and appends the matching
// audit entry. It must run inside the transaction that locked the row.
func applyTransition(ctx context.Context, tx repository.Tx, ticket *domain.Ticket, next domain.TicketStatus) (*domain.AuditEntry, error) {
	previous := ticket.Status
	ticket.Status = next
	if err := tx.Tickets().UpdateStatus(ctx, ticket); err != nil {
		return nil, err
	}
	entry := &domain.AuditEntry{
		TicketID:       ticket.ID,
		PreviousStatus: previous,
		NewStatus:      next,
	}
	if err := tx.Audit().Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	publish(ctx, s.dispatcher, s.logger, event)
}

func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

// storageError classifies anything that is not already a DomainError.
func storageError(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	retryable := errors.Is(err, repository.ErrTransient) || errors.Is(err, context.DeadlineExceeded)
	return apperrors.NewStorageError(err, retryable)
}

func notFoundOr(err error, resource string, details map[string]any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, details)
	}
	return storageError(err)
}
