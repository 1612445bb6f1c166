package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/spec-kit/ticket-engine/internal/api/dto"
	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/service"
)

func cmdTicket(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "ticket",
		Usage: "Create, inspect and move tickets",
		Commands: []*cli.Command{
			cmdTicketCreate(rt),
			cmdTicketGet(rt),
			cmdTicketList(rt),
			cmdTicketStatus(rt),
			cmdTicketClose(rt),
			cmdTicketAssign(rt),
			cmdTicketAudit(rt),
		},
	}
}

func cmdTicketCreate(rt *runtime) *cli.Command {
	var (
		title       string
		description string
		priority    int
	)
	return &cli.Command{
		Name:  "create",
		Usage: "Open a new ticket",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Required: true, Destination: &title},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Destination: &description},
			&cli.IntFlag{Name: "priority", Aliases: []string{"p"}, Usage: "1 (high) to 3 (low)", Value: 3, Destination: &priority},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			engine, err := rt.engine(ctx)
			if err != nil {
				return err
			}
			ticket, err := engine.Tickets.CreateTicket(ctx, service.TicketCreateInput{
				Title:       title,
				Description: description,
				Priority:    domain.TicketPriority(priority),
			})
			if err != nil {
				return err
			}
			return printJSON(c.Root().Writer, dto.NewTicketResponse(ticket))
		},
	}
}

func cmdTicketGet(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one ticket",
		ArgsUsage: "<ticket-id>",
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := idArg(c, "ticket")
			if err != nil {
				return err
			}
			engine, err := rt.engine(ctx)
			if err != nil {
				return err
			}
			ticket, err := engine.Tickets.GetTicket(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(c.Root().Writer, dto.NewTicketResponse(ticket))
		},
	}
}

func cmdTicketList(rt *runtime) *cli.Command {
	var withTechnician bool
	return &cli.Command{
		Name:  "list",
		Usage: "List tickets ordered by id",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "with-technician", Usage: "Include the assigned technician", Destination: &withTechnician},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			engine, err := rt.engine(ctx)
			if err != nil {
				return err
			}
			if withTechnician {
				tickets, err := engine.Tickets.ListTicketsWithAssignedTechnician(ctx)
				if err != nil {
					return err
				}
				return printJSON(c.Root().Writer, dto.NewTicketWithTechnicianResponses(tickets))
			}
			tickets, err := engine.Tickets.ListTickets(ctx)
			if err != nil {
				return err
			}
			return printJSON(c.Root().Writer, dto.NewTicketResponses(tickets))
		},
	}
}

func cmdTicketStatus(rt *runtime) *cli.Command {
	var status string
	return &cli.Command{
		Name:      "status",
		Usage:     "Set a ticket's status",
		ArgsUsage: "<ticket-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "open, assigned, closed or escalated", Required: true, Destination: &status},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := idArg(c, "ticket")
			if err != nil {
				return err
			}
			engine, err := rt.engine(ctx)
			if err != nil {
				return err
			}
			ticket, err := engine.Tickets.SetStatus(ctx, id, status)
			if err != nil {
				return err
			}
			return printJSON(c.Root().Writer, dto.NewTicketResponse(ticket))
		},
	}
}

func cmdTicketClose(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "close",
		Usage:     "Close a ticket",
		ArgsUsage: "<ticket-id>",
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := idArg(c, "ticket")
			if err != nil {
				return err
			}
			engine, err := rt.engine(ctx)
			if err != nil {
				return err
			}
			ticket, err := engine.Tickets.CloseTicket(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(c.Root().Writer, dto.NewTicketResponse(ticket))
		},
	}
}

func cmdTicketAssign(rt *runtime) *cli.Command {
	var technicianID int
	return &cli.Command{
		Name:      "assign",
		Usage:     "Assign an open ticket to an active technician",
		ArgsUsage: "<ticket-id>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "technician", Usage: "Technician id", Required: true, Destination: &technicianID},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := idArg(c, "ticket")
			if err != nil {
				return err
			}
			engine, err := rt.engine(ctx)
			if err != nil {
				return err
			}
			assignment, err := engine.Assignments.AssignTicket(ctx, id, int64(technicianID))
			if err != nil {
				return err
			}
			return printJSON(c.Root().Writer, dto.NewAssignmentResponse(assignment))
		},
	}
}

func cmdTicketAudit(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "audit",
		Usage:     "Show a ticket's status transitions, oldest first",
		ArgsUsage: "<ticket-id>",
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := idArg(c, "ticket")
			if err != nil {
				return err
			}
			engine, err := rt.engine(ctx)
			if err != nil {
				return err
			}
			entries, err := engine.Tickets.GetAuditEntries(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(c.Root().Writer, dto.NewAuditEntryResponses(entries))
		},
	}
}
