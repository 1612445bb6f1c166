package domain

import "time"

// AuditEntry is an immutable record of one accepted status transition.
type AuditEntry struct {
	ID             int64
	TicketID       int64
	PreviousStatus TicketStatus
	NewStatus      TicketStatus
	ChangedAt      time.Time
}

// EscalatedTicket describes one row touched by an escalation sweep.
type EscalatedTicket struct {
	TicketID         int64
	PreviousStatus   TicketStatus
	NewStatus        TicketStatus
	PreviousPriority TicketPriority
	NewPriority      TicketPriority
}

// StatusChanged reports whether the sweep moved the ticket out of its previous status.
func (e EscalatedTicket) StatusChanged() bool {
	return e.PreviousStatus != e.NewStatus
}
