package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"sportkeeper/internal/access"
	"sportkeeper/internal/form"
	"sportkeeper/internal/model"
)

func usersCommand() *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Administer accounts.",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List accounts.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "role", Usage: "Only this role (ADMIN, COACH, MEMBER)"},
					&cli.StringFlag{Name: "q", Usage: "Filter by name, email or role"},
				},
				Action: func(c *cli.Context) error {
					env := envOf(c)
					var role model.Role
					if v := c.String("role"); v != "" {
						r, err := parseRoleArg(v)
						if err != nil {
							return err
						}
						role = r
					}
					if _, err := env.require(c.Context, access.ManageUsers); err != nil {
						return err
					}
					users, err := env.client.ListUsers(c.Context, role)
					if err != nil {
						return err
					}
					printUsers(env.out, model.FilterUsers(users, c.String("q")))
					return nil
				},
			},
			{
				Name:      "role",
				Usage:     "Change an account's role.",
				ArgsUsage: "<user-id> <role>",
				Action: func(c *cli.Context) error {
					env := envOf(c)
					if c.NArg() != 2 {
						return errors.New("usage: users role <user-id> <role>")
					}
					role, err := parseRoleArg(c.Args().Get(1))
					if err != nil {
						return err
					}
					if _, err := env.require(c.Context, access.ManageUsers); err != nil {
						return err
					}
					if err := env.client.SetUserRole(c.Context, c.Args().First(), role); err != nil {
						return err
					}
					fmt.Fprintf(env.out, "Role of %s set to %s\n", c.Args().First(), role)
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete an account.",
				ArgsUsage: "<user-id>",
				Action: func(c *cli.Context) error {
					env := envOf(c)
					id := c.Args().First()
					if id == "" {
						return errors.New("user id is required")
					}
					me, err := env.me(c.Context)
					if err != nil {
						return err
					}
					if err := access.CanDeleteUser(me, id); err != nil {
						return err
					}
					if err := env.client.DeleteUser(c.Context, id); err != nil {
						return err
					}
					fmt.Fprintf(env.out, "Deleted user %s\n", id)
					return nil
				},
			},
		},
	}
}

func activitiesCommand() *cli.Command {
	return &cli.Command{
		Name:  "activities",
		Usage: "List and edit activities.",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List activities by name.",
				Action: func(c *cli.Context) error {
					env := envOf(c)
					if _, err := env.require(c.Context, access.BookSlots); err != nil {
						return err
					}
					items, err := env.client.ListActivities(c.Context)
					if err != nil {
						return err
					}
					model.SortActivitiesByName(items)
					printActivities(env.out, items)
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "Create an activity.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "code", Usage: "Code, e.g. BJJ (normalized to upper case)", Required: true},
					&cli.StringFlag{Name: "name", Usage: "Display name", Required: true},
					&cli.BoolFlag{Name: "inactive", Usage: "Create as inactive"},
				},
				Action: func(c *cli.Context) error {
					env := envOf(c)
					in, err := form.ActivityForm{Code: c.String("code"), Name: c.String("name"), Active: !c.Bool("inactive")}.Input()
					if err != nil {
						return err
					}
					if _, err := env.require(c.Context, access.ManageActivities); err != nil {
						return err
					}
					id, err := env.client.CreateActivity(c.Context, in)
					if err != nil {
						return err
					}
					fmt.Fprintf(env.out, "Created activity %s (%s)\n", in.Code, id)
					return nil
				},
			},
			{
				Name:      "update",
				Usage:     "Update an activity.",
				ArgsUsage: "<activity-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "code", Usage: "New code"},
					&cli.StringFlag{Name: "name", Usage: "New display name"},
					&cli.BoolFlag{Name: "active", Value: true, Usage: "Whether the activity is offered"},
				},
				Action: func(c *cli.Context) error {
					env := envOf(c)
					id := c.Args().First()
					if id == "" {
						return errors.New("activity id is required")
					}
					if _, err := env.require(c.Context, access.ManageActivities); err != nil {
						return err
					}
					items, err := env.client.ListActivities(c.Context)
					if err != nil {
						return err
					}
					cur, ok := model.FindActivity(items, id)
					if !ok {
						return form.ErrActivityNotFound
					}
					f := form.ActivityForm{Code: cur.Code, Name: cur.Name, Active: cur.Active}
					if c.IsSet("code") {
						f.Code = c.String("code")
					}
					if c.IsSet("name") {
						f.Name = c.String("name")
					}
					if c.IsSet("active") {
						f.Active = c.Bool("active")
					}
					in, err := f.Input()
					if err != nil {
						return err
					}
					if err := env.client.UpdateActivity(c.Context, id, in); err != nil {
						return err
					}
					fmt.Fprintf(env.out, "Updated activity %s\n", in.Code)
					return nil
				},
			},
		},
	}
}
