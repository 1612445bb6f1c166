package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen      TicketStatus = "open"
	TicketStatusAssigned  TicketStatus = "assigned"
	TicketStatusClosed    TicketStatus = "closed"
	TicketStatusEscalated TicketStatus = "escalated"
)

// TicketStatuses lists every recognized status.
var TicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusAssigned,
	TicketStatusClosed,
	TicketStatusEscalated,
}

// ParseTicketStatus normalizes raw input and reports whether it names a known status.
func ParseTicketStatus(raw string) (TicketStatus, bool) {
	candidate := TicketStatus(strings.ToLower(strings.TrimSpace(raw)))
	if candidate.Valid() {
		return candidate, true
	}
	return "", false
}

// Valid reports whether s is one of the recognized statuses.
func (s TicketStatus) Valid() bool {
	for _, known := range TicketStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no automatic flow moves a ticket out of s.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusClosed
}

// TicketPriority is the urgency level, 1 being the most urgent.
type TicketPriority int

const (
	TicketPriorityHigh   TicketPriority = 1
	TicketPriorityMedium TicketPriority = 2
	TicketPriorityLow    TicketPriority = 3
)

// EscalationPriorityCeiling is the highest priority value at which an
// overdue open ticket is moved to escalated.
const EscalationPriorityCeiling = TicketPriorityMedium

// Valid reports whether p is within 1..3.
func (p TicketPriority) Valid() bool {
	return p >= TicketPriorityHigh && p <= TicketPriorityLow
}

// Escalated returns the priority one step more urgent, floored at high.
func (p TicketPriority) Escalated() TicketPriority {
	if p <= TicketPriorityHigh {
		return TicketPriorityHigh
	}
	return p - 1
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID          int64
	Title       string
	Description string
	Status      TicketStatus
	Priority    TicketPriority
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TicketWithTechnician pairs a ticket with its current assignee, if any.
type TicketWithTechnician struct {
	Ticket
	TechnicianID   *int64
	TechnicianName *string
}
