package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-engine/internal/api/dto"
	"github.com/spec-kit/ticket-engine/internal/service"
)

// EscalationsHandler triggers an escalation sweep on demand.
type EscalationsHandler struct {
	service   *service.TicketService
	threshold time.Duration
}

// NewEscalationsHandler constructs handler bound to the configured threshold.
func NewEscalationsHandler(ticketService *service.TicketService, threshold time.Duration) *EscalationsHandler {
	return &EscalationsHandler{service: ticketService, threshold: threshold}
}

// Run POST /escalations/run.
func (h *EscalationsHandler) Run(c *fiber.Ctx) error {
	result, err := h.service.EscalateOverdue(c.UserContext(), h.threshold)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewEscalationRunResponse(result.Tickets, result.StartedAt, result.FinishedAt)})
}
