package dto

import (
	"time"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// CreateTechnicianRequest payload.
type CreateTechnicianRequest struct {
	Name string `json:"name"`
}

// SetActiveRequest payload. Active is a pointer so a missing field is rejected
// rather than read as false.
type SetActiveRequest struct {
	Active *bool `json:"active"`
}

// TechnicianResponse renders one technician.
type TechnicianResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTechnicianResponse maps a domain technician.
func NewTechnicianResponse(technician *domain.Technician) TechnicianResponse {
	return TechnicianResponse{
		ID:        technician.ID,
		Name:      technician.Name,
		Active:    technician.Active,
		CreatedAt: technician.CreatedAt,
	}
}

// NewTechnicianResponses maps a list.
func NewTechnicianResponses(technicians []domain.Technician) []TechnicianResponse {
	items := make([]TechnicianResponse, 0, len(technicians))
	for i := range technicians {
		items = append(items, NewTechnicianResponse(&technicians[i]))
	}
	return items
}
