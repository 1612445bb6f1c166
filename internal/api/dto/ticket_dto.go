package dto

import (
	"time"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	TechnicianID int64 `json:"technician_id"`
}

// TicketResponse renders one ticket.
type TicketResponse struct {
	ID          int64                 `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// TicketWithTechnicianResponse renders a ticket with its assignee; both
// technician fields are null when unassigned.
type TicketWithTechnicianResponse struct {
	TicketResponse
	TechnicianID   *int64  `json:"technician_id"`
	TechnicianName *string `json:"technician_name"`
}

// AssignmentResponse renders the ticket to technician mapping.
type AssignmentResponse struct {
	TicketID     int64     `json:"ticket_id"`
	TechnicianID int64     `json:"technician_id"`
	AssignedAt   time.Time `json:"assigned_at"`
}

// AuditEntryResponse renders one status transition.
type AuditEntryResponse struct {
	ID             int64               `json:"id"`
	TicketID       int64               `json:"ticket_id"`
	PreviousStatus domain.TicketStatus `json:"previous_status"`
	NewStatus      domain.TicketStatus `json:"new_status"`
	ChangedAt      time.Time           `json:"changed_at"`
}

// EscalatedTicketResponse describes one ticket touched by a sweep.
type EscalatedTicketResponse struct {
	TicketID         int64                 `json:"ticket_id"`
	PreviousStatus   domain.TicketStatus   `json:"previous_status"`
	NewStatus        domain.TicketStatus   `json:"new_status"`
	PreviousPriority domain.TicketPriority `json:"previous_priority"`
	NewPriority      domain.TicketPriority `json:"new_priority"`
}

// EscalationRunResponse summarizes a sweep.
type EscalationRunResponse struct {
	Escalated  []EscalatedTicketResponse `json:"escalated"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          ticket.ID,
		Title:       ticket.Title,
		Description: ticket.Description,
		Status:      ticket.Status,
		Priority:    ticket.Priority,
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
	}
}

// NewTicketResponses maps a list of tickets.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	items := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, NewTicketResponse(&tickets[i]))
	}
	return items
}

// NewTicketWithTechnicianResponses maps the joined listing.
func NewTicketWithTechnicianResponses(tickets []domain.TicketWithTechnician) []TicketWithTechnicianResponse {
	items := make([]TicketWithTechnicianResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, TicketWithTechnicianResponse{
			TicketResponse: NewTicketResponse(&tickets[i].Ticket),
			TechnicianID:   tickets[i].TechnicianID,
			TechnicianName: tickets[i].TechnicianName,
		})
	}
	return items
}

// NewAssignmentResponse maps an assignment.
func NewAssignmentResponse(assignment *domain.Assignment) AssignmentResponse {
	return AssignmentResponse{
		TicketID:     assignment.TicketID,
		TechnicianID: assignment.TechnicianID,
		AssignedAt:   assignment.AssignedAt,
	}
}

// NewAuditEntryResponses maps audit entries, keeping an empty list non-nil.
func NewAuditEntryResponses(entries []domain.AuditEntry) []AuditEntryResponse {
	items := make([]AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, AuditEntryResponse{
			ID:             entry.ID,
			TicketID:       entry.TicketID,
			PreviousStatus: entry.PreviousStatus,
			NewStatus:      entry.NewStatus,
			ChangedAt:      entry.ChangedAt,
		})
	}
	return items
}

// NewEscalationRunResponse maps a sweep summary.
func NewEscalationRunResponse(tickets []domain.EscalatedTicket, startedAt, finishedAt time.Time) EscalationRunResponse {
	items := make([]EscalatedTicketResponse, 0, len(tickets))
	for _, item := range tickets {
		items = append(items, EscalatedTicketResponse{
			TicketID:         item.TicketID,
			PreviousStatus:   item.PreviousStatus,
			NewStatus:        item.NewStatus,
			PreviousPriority: item.PreviousPriority,
			NewPriority:      item.NewPriority,
		})
	}
	return EscalationRunResponse{Escalated: items, StartedAt: startedAt, FinishedAt: finishedAt}
}
