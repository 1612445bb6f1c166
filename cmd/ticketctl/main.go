package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/app"
	"github.com/spec-kit/ticket-engine/internal/config"
	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/events"
	"github.com/spec-kit/ticket-engine/internal/observability"
)

func main() {
	if err := run(context.Background(), os.Args, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime lazily builds the engine so commands that never touch storage
// (token issue) do not open connections.
type runtime struct {
	cfg       *config.Config
	logger    *zap.Logger
	operator  string
	dsn       string
	memory    bool
	container *app.Container
}

// errNoDSN stops store-backed commands from writing to a store that vanishes
// when the process exits.
var errNoDSN = errors.New("no database configured: set POSTGRES_DSN or --dsn, or pass --memory for a throwaway store")

func (r *runtime) engine(ctx context.Context) (*app.Container, error) {
	if r.container != nil {
		return r.container, nil
	}
	if r.dsn != "" {
		r.cfg.Postgres.DSN = r.dsn
	}
	if r.cfg.Postgres.DSN == "" && !r.memory {
		return nil, errNoDSN
	}
	container, err := app.Build(ctx, r.cfg, r.logger)
	if err != nil {
		return nil, err
	}
	r.container = container
	return container, nil
}

// actorContext tags every change made from the CLI with the operator name.
func (r *runtime) actorContext(ctx context.Context) context.Context {
	return events.WithActor(ctx, events.Actor{Subject: r.operator, Role: domain.OperatorRoleAdmin})
}

func (r *runtime) close() {
	if r.container != nil {
		r.container.Close()
	}
	if r.logger != nil {
		_ = r.logger.Sync()
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	rt := &runtime{}
	var logLevel string

	root := &cli.Command{
		Name:   "ticketctl",
		Usage:  "Operate the ticket lifecycle engine",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "dsn",
				Usage:       "PostgreSQL DSN",
				Sources:     cli.EnvVars("POSTGRES_DSN"),
				Destination: &rt.dsn,
			},
			&cli.BoolFlag{
				Name:        "memory",
				Usage:       "Use an in-memory store that is discarded on exit",
				Sources:     cli.EnvVars("TICKETCTL_MEMORY"),
				Destination: &rt.memory,
			},
			&cli.StringFlag{
				Name:        "operator",
				Usage:       "Name recorded as the actor of changes",
				Value:       "ticketctl",
				Sources:     cli.EnvVars("TICKETCTL_OPERATOR"),
				Destination: &rt.operator,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Log level (debug, info, warn, error)",
				Value:       "warn",
				Sources:     cli.EnvVars("TICKETCTL_LOG_LEVEL"),
				Destination: &logLevel,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			cfg, err := config.Load()
			if err != nil {
				return ctx, err
			}
			cfg.Logger.Level = logLevel
			logger, err := observability.NewLogger(cfg.Logger)
			if err != nil {
				return ctx, err
			}
			rt.cfg = cfg
			rt.logger = logger
			return rt.actorContext(ctx), nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			rt.close()
			return nil
		},
		Commands: []*cli.Command{
			cmdTicket(rt),
			cmdTechnician(rt),
			cmdEscalate(rt),
			cmdToken(rt),
		},
	}

	return root.Run(ctx, args)
}
