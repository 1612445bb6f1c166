package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/spec-kit/ticket-engine/internal/api/dto"
)

func cmdEscalate(rt *runtime) *cli.Command {
	var threshold time.Duration
	return &cli.Command{
		Name:  "escalate",
		Usage: "Run one escalation sweep over overdue open tickets",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:        "threshold",
				Usage:       "Age after which an open ticket is overdue (default: ESCALATION_THRESHOLD)",
				Destination: &threshold,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if !c.IsSet("threshold") {
				threshold = rt.cfg.Escalation.Threshold
			}
			engine, err := rt.engine(ctx)
			if err != nil {
				return err
			}
			result, err := engine.Tickets.EscalateOverdue(ctx, threshold)
			if err != nil {
				return err
			}
			return printJSON(c.Root().Writer, dto.NewEscalationRunResponse(result.Tickets, result.StartedAt, result.FinishedAt))
		},
	}
}
