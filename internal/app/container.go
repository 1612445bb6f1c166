package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/config"
	"github.com/spec-kit/ticket-engine/internal/events"
	"github.com/spec-kit/ticket-engine/internal/persistence"
	"github.com/spec-kit/ticket-engine/internal/repository"
	"github.com/spec-kit/ticket-engine/internal/service"
)

// Container holds the wired engine shared by the API server and the CLI.
type Container struct {
	Postgres      *persistence.Postgres
	Redis         *persistence.Redis
	Store         repository.Store
	Dispatcher    events.Dispatcher
	Notifications *service.NotificationService
	Tickets       *service.TicketService
	Assignments   *service.AssignmentService
	Technicians   *service.TechnicianService
}

// Build connects storage and constructs services. Without POSTGRES_DSN the
// engine runs on the in-memory store.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	var store repository.Store
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
				pg.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		store = repository.NewPostgresStore(pool, repository.PostgresOptions{
			LockTimeout: cfg.Postgres.LockTimeout(),
		})
	} else {
		store = repository.NewMemoryStore()
	}

	dispatcher := events.NewInMemoryDispatcher()
	notifications := service.NewNotificationService(dispatcher, logger.Named("notifications"), cfg.Notification)
	notifications.RegisterHandlers()

	return &Container{
		Postgres:      pg,
		Redis:         persistence.NewRedis(cfg.Redis, logger),
		Store:         store,
		Dispatcher:    dispatcher,
		Notifications: notifications,
		Tickets: service.NewTicketService(service.TicketDependencies{
			Store:      store,
			Dispatcher: dispatcher,
			Logger:     logger.Named("tickets"),
		}),
		Assignments: service.NewAssignmentService(service.AssignmentDependencies{
			Store:      store,
			Dispatcher: dispatcher,
			Logger:     logger.Named("assignments"),
		}),
		Technicians: service.NewTechnicianService(service.TechnicianDependencies{
			Store:  store,
			Logger: logger.Named("technicians"),
		}),
	}, nil
}

// Close releases connections.
func (c *Container) Close() {
	c.Redis.Close()
	c.Postgres.Close()
}
