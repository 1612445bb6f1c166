package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/spec-kit/ticket-engine/internal/api/dto"
)

func cmdTechnician(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "technician",
		Usage: "Manage technicians",
		Commands: []*cli.Command{
			cmdTechnicianCreate(rt),
			cmdTechnicianGet(rt),
			cmdTechnicianList(rt),
			cmdTechnicianSetActive(rt, "activate", true),
			cmdTechnicianSetActive(rt, "deactivate", false),
			cmdTechnicianDelete(rt),
		},
	}
}

func cmdTechnicianCreate(rt *runtime) *cli.Command {
	var name string
	return &cli.Command{
		Name:  "create",
		Usage: "Register an active technician",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Destination: &name},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			engine, err := rt.engine(ctx)
			if err != nil {
				return err
			}
			technician, err := engine.Technicians.CreateTechnician(ctx, name)
			if err != nil {
				return err
			}
			return printJSON(c.Root().Writer, dto.NewTechnicianResponse(technician))
		},
	}
}

func cmdTechnicianGet(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one technician",
		ArgsUsage: "<technician-id>",
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := idArg(c, "technician")
			if err != nil {
				return err
			}
			engine, err := rt.engine(ctx)
			if err != nil {
				return err
			}
			technician, err := engine.Technicians.GetTechnician(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(c.Root().Writer, dto.NewTechnicianResponse(technician))
		},
	}
}

func cmdTechnicianList(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List technicians ordered by id",
		Action: func(ctx context.Context, c *cli.Command) error {
			engine, err := rt.engine(ctx)
			if err != nil {
				return err
			}
			technicians, err := engine.Technicians.ListTechnicians(ctx)
			if err != nil {
				return err
			}
			return printJSON(c.Root().Writer, dto.NewTechnicianResponses(technicians))
		},
	}
}

func cmdTechnicianSetActive(rt *runtime, name string, active bool) *cli.Command {
	usage := "Mark a technician available for assignment"
	if !active {
		usage = "Stop new assignments to a technician"
	}
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<technician-id>",
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := idArg(c, "technician")
			if err != nil {
				return err
			}
			engine, err := rt.engine(ctx)
			if err != nil {
				return err
			}
			technician, err := engine.Technicians.SetActive(ctx, id, active)
			if err != nil {
				return err
			}
			return printJSON(c.Root().Writer, dto.NewTechnicianResponse(technician))
		},
	}
}

func cmdTechnicianDelete(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a technician without assignments",
		ArgsUsage: "<technician-id>",
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := idArg(c, "technician")
			if err != nil {
				return err
			}
			engine, err := rt.engine(ctx)
			if err != nil {
				return err
			}
			if err := engine.Technicians.DeleteTechnician(ctx, id); err != nil {
				return err
			}
			return printJSON(c.Root().Writer, map[string]any{"deleted": id})
		},
	}
}
