package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-engine/internal/api/http/handlers"
	"github.com/spec-kit/ticket-engine/internal/auth"
	"github.com/spec-kit/ticket-engine/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Technicians    *handlers.TechniciansHandler
	Escalations    *handlers.EscalationsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	operators := auth.RequireRole(domain.OperatorRoleAgent, domain.OperatorRoleAdmin)
	admins := auth.RequireRole(domain.OperatorRoleAdmin)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, operators)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Put("/:id/status", cfg.Tickets.UpdateStatus)
	tickets.Post("/:id/close", cfg.Tickets.CloseTicket)
	tickets.Post("/:id/assign", cfg.Tickets.AssignTicket)
	tickets.Get("/:id/audit", cfg.Tickets.ListAudit)

	technicians := app.Group("/technicians", cfg.AuthMiddleware.Handle, operators)
	technicians.Get("/", cfg.Technicians.ListTechnicians)
	technicians.Get("/:id", cfg.Technicians.GetTechnician)
	technicians.Post("/", admins, cfg.Technicians.CreateTechnician)
	technicians.Put("/:id/active", admins, cfg.Technicians.SetActive)
	technicians.Delete("/:id", admins, cfg.Technicians.DeleteTechnician)

	escalations := app.Group("/escalations", cfg.AuthMiddleware.Handle, admins)
	escalations.Post("/run", cfg.Escalations.Run)
}
