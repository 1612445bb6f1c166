package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/spec-kit/ticket-engine/internal/auth"
	"github.com/spec-kit/ticket-engine/internal/domain"
)

func cmdToken(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:     "token",
		Usage:    "Manage API bearer tokens",
		Commands: []*cli.Command{cmdTokenIssue(rt)},
	}
}

func cmdTokenIssue(rt *runtime) *cli.Command {
	var (
		subject string
		role    string
	)
	return &cli.Command{
		Name:  "issue",
		Usage: "Sign a bearer token with JWT_SECRET",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Usage: "Operator name", Required: true, Destination: &subject},
			&cli.StringFlag{Name: "role", Usage: "agent or admin", Value: string(domain.OperatorRoleAgent), Destination: &role},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			tokens := auth.NewTokenManager(rt.cfg.Auth.JWTSecret, rt.cfg.Auth.AccessTokenTTLMinutes)
			token, expiresAt, err := tokens.GenerateToken(subject, domain.OperatorRole(role))
			if err != nil {
				return err
			}
			return printJSON(c.Root().Writer, map[string]any{
				"token":      token,
				"role":       role,
				"expires_at": expiresAt.Format(time.RFC3339),
			})
		},
	}
}
