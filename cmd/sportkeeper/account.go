package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"sportkeeper/internal/access"
	"sportkeeper/internal/config"
	"sportkeeper/internal/model"
)

func credentialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "email", Usage: "Account email"},
		&cli.StringFlag{Name: "password", Usage: "Account password (prompted when omitted)", EnvVars: []string{"SPORTKEEPER_PASSWORD"}},
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Log in and store the API token.",
		Flags: credentialFlags(),
		Action: func(c *cli.Context) error {
			env := envOf(c)
			email := env.prompt("Email", c.String("email"))
			password := env.prompt("Password", c.String("password"))
			if email == "" || password == "" {
				return errors.New("email and password are required")
			}

			token, err := env.anon.Login(c.Context, email, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if err := config.SaveToken(env.tokenPath, token); err != nil {
				return fmt.Errorf("save token: %w", err)
			}

			env.client = env.anon.WithToken(token)
			u, err := env.client.Me(c.Context)
			if err != nil {
				return err
			}
			fmt.Fprintf(env.out, "Logged in as %s (%s)\n", u.DisplayName(), u.Role)
			return nil
		},
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Forget the stored API token.",
		Action: func(c *cli.Context) error {
			env := envOf(c)
			if err := config.SaveToken(env.tokenPath, ""); err != nil {
				return err
			}
			fmt.Fprintln(env.out, "Logged out")
			return nil
		},
	}
}

func registerCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create an account.",
		Flags: credentialFlags(),
		Action: func(c *cli.Context) error {
			env := envOf(c)
			email := env.prompt("Email", c.String("email"))
			password := env.prompt("Password", c.String("password"))
			if email == "" || password == "" {
				return errors.New("email and password are required")
			}
			if err := env.anon.Register(c.Context, email, password); err != nil {
				return fmt.Errorf("register failed: %w", err)
			}
			fmt.Fprintf(env.out, "Registered %s; run `sportkeeper login` to continue\n", email)
			return nil
		},
	}
}

func meCommand() *cli.Command {
	return &cli.Command{
		Name:  "me",
		Usage: "Show the logged-in account and what it can do.",
		Action: func(c *cli.Context) error {
			env := envOf(c)
			u, err := env.me(c.Context)
			if err != nil {
				return err
			}
			caps := make([]string, 0)
			for _, cp := range access.All {
				if access.For(u.Role).Has(cp) {
					caps = append(caps, cp.String())
				}
			}
			fmt.Fprintf(env.out, "%s <%s>\nrole: %s\ncan: %s\n", u.DisplayName(), u.Email, u.Role, strings.Join(caps, ", "))
			return nil
		},
	}
}

func reserveCommand() *cli.Command {
	return &cli.Command{
		Name:      "reserve",
		Usage:     "Book a slot.",
		ArgsUsage: "<slot-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Usage: "Book for this email instead of your own"},
		},
		Action: func(c *cli.Context) error {
			env := envOf(c)
			slotID := c.Args().First()
			if slotID == "" {
				return errors.New("slot id is required")
			}
			u, err := env.require(c.Context, access.BookSlots)
			if err != nil {
				return err
			}
			email := c.String("email")
			if email == "" {
				email = u.Email
			}
			if err := env.client.Reserve(c.Context, slotID, email); err != nil {
				return fmt.Errorf("reservation failed: %w", err)
			}
			fmt.Fprintf(env.out, "Reserved %s for %s\n", slotID, email)
			return nil
		},
	}
}

func attendeesCommand() *cli.Command {
	return &cli.Command{
		Name:      "attendees",
		Usage:     "List the students booked into a slot.",
		ArgsUsage: "<slot-id>",
		Action: func(c *cli.Context) error {
			env := envOf(c)
			slotID := c.Args().First()
			if slotID == "" {
				return errors.New("slot id is required")
			}
			if _, err := env.require(c.Context, access.ViewAttendees); err != nil {
				return err
			}
			att, err := env.client.Attendees(c.Context, slotID)
			if err != nil {
				return err
			}
			if len(att.StudentIDs) == 0 {
				fmt.Fprintln(env.out, "No attendees yet")
				return nil
			}
			for _, id := range att.StudentIDs {
				fmt.Fprintln(env.out, id)
			}
			return nil
		},
	}
}

func notesCommand() *cli.Command {
	return &cli.Command{
		Name:  "notes",
		Usage: "Show your progress notes.",
		Action: func(c *cli.Context) error {
			env := envOf(c)
			if _, err := env.require(c.Context, access.ViewOwnNotes); err != nil {
				return err
			}
			notes, err := env.client.MyNotes(c.Context)
			if err != nil {
				return err
			}
			printNotes(env.out, notes)
			return nil
		},
	}
}

// parseRoleArg wraps model.ParseRole with a CLI-friendly error.
func parseRoleArg(s string) (model.Role, error) {
	r, ok := model.ParseRole(s)
	if !ok {
		return "", fmt.Errorf("unknown role %q (want one of ADMIN, COACH, MEMBER)", s)
	}
	return r, nil
}
