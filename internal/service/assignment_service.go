package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/events"
	"github.com/spec-kit/ticket-engine/internal/repository"
	apperrors "github.com/spec-kit/ticket-engine/pkg/util/errorutil"
)

// AssignmentService handles ticket assignment operations.
type AssignmentService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// AssignTicket binds an open ticket to an active technician and moves it to
// assigned. The ticket row stays locked from the status check until commit,
// so of two concurrent calls for the same ticket exactly one succeeds and the
// other gets a conflict.
func (s *AssignmentService) AssignTicket(ctx context.Context, ticketID, technicianID int64) (*domain.Assignment, error) {
	var (
		assignment *domain.Assignment
		entry      *domain.AuditEntry
	)
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		ticket, err := tx.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return notFoundOr(err, "ticket", map[string]any{"ticket_id": ticketID})
		}
		if ticket.Status != domain.TicketStatusOpen {
			return apperrors.NewConflict("ticket is not open", map[string]any{
				"ticket_id": ticketID,
				"status":    string(ticket.Status),
			})
		}

		technician, err := tx.Technicians().GetForShare(ctx, technicianID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return apperrors.NewTechnicianUnavailable("technician does not exist", map[string]any{"technician_id": technicianID})
		case err != nil:
			return err
		case !technician.Active:
			return apperrors.NewTechnicianUnavailable("technician is inactive", map[string]any{"technician_id": technicianID})
		}

		assignment = &domain.Assignment{TicketID: ticket.ID, TechnicianID: technician.ID}
		if err := tx.Assignments().Upsert(ctx, assignment); err != nil {
			return err
		}
		entry, err = applyTransition(ctx, tx, ticket, domain.TicketStatusAssigned)
		return err
	})
	if err != nil {
		return nil, storageError(err)
	}

	s.logger.Info("ticket assigned",
		zap.Int64("ticket_id", ticketID),
		zap.Int64("technician_id", technicianID))
	publish(ctx, s.dispatcher, s.logger, events.New(events.EventTicketAssigned, ticketID, events.ActorFrom(ctx), entry.ChangedAt,
		events.TicketAssignedPayload{TechnicianID: technicianID}))
	return assignment, nil
}
