package domain

import "time"

// Technician models a support technician that tickets can be assigned to.
type Technician struct {
	ID        int64
	Name      string
	Active    bool
	CreatedAt time.Time
}

// Assignment binds a ticket to its current technician.
type Assignment struct {
	TicketID     int64
	TechnicianID int64
	AssignedAt   time.Time
}
