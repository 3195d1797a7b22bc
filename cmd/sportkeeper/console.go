package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"sportkeeper/internal/access"
	"sportkeeper/internal/capture"
	"sportkeeper/internal/config"
	appLog "sportkeeper/internal/log"
	"sportkeeper/internal/schedule"
	"sportkeeper/internal/web"
)

func calendarCommand() *cli.Command {
	return &cli.Command{
		Name:  "calendar",
		Usage: "Print a month grid with slot counts per day.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "month", Usage: "Month to show (YYYY-MM); default current"},
		},
		Action: func(c *cli.Context) error {
			env := envOf(c)
			anchor, err := monthAnchor(c.String("month"), time.Now(), env.loc)
			if err != nil {
				return err
			}
			if _, err := env.require(c.Context, access.BookSlots); err != nil {
				return err
			}
			slots, err := env.client.ListSlots(c.Context)
			if err != nil {
				return err
			}
			renderMonth(env.out, anchor, slots, env.loc)
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the local web console.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "HTTP listen address (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			env := envOf(c)
			if v := c.String("listen"); v != "" {
				env.cfg.Listen = v
			}
			u, err := env.require(c.Context, access.BookSlots)
			if err != nil {
				return err
			}
			appLog.Info("console starting", "version", version, "user", u.Email, "role", string(u.Role))

			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case sig := <-sigCh:
					appLog.Info("signal received, shutting down", "signal", sig.String())
					cancel()
				case <-ctx.Done():
				}
			}()

			return web.StartServer(ctx, env.cfg, env.client, web.Options{Role: u.Role})
		},
	}
}

func snapshotCommand() *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Save a PNG of the console's month view (needs a running console and Chromium).",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "month", Usage: "Month to capture (YYYY-MM)"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "calendar.png", Usage: "Output PNG path"},
			&cli.StringFlag{Name: "url", Usage: "Console base URL (default http://<listen>)"},
			&cli.StringFlag{Name: "password", Usage: "Console basic-auth password", EnvVars: []string{"SPORTKEEPER_CONSOLE_PASSWORD"}},
			&cli.IntFlag{Name: "width", Usage: "Viewport width"},
			&cli.IntFlag{Name: "height", Usage: "Viewport height"},
		},
		Action: func(c *cli.Context) error {
			env := envOf(c)
			if m := c.String("month"); m != "" {
				if _, err := monthAnchor(m, time.Now(), env.loc); err != nil {
					return err
				}
			}
			base := c.String("url")
			if base == "" {
				base = "http://" + env.cfg.Listen
			}
			opts := capture.Options{
				BaseURL:    base,
				Month:      c.String("month"),
				OutputPath: c.String("out"),
				Width:      c.Int("width"),
				Height:     c.Int("height"),
			}
			if env.cfg.BasicAuth != nil {
				opts.Username = env.cfg.BasicAuth.Username
				opts.Password = c.String("password")
			}
			if err := capture.SnapshotMonthPNG(c.Context, opts); err != nil {
				return err
			}
			fmt.Fprintf(env.out, "Wrote %s\n", opts.OutputPath)
			return nil
		},
	}
}

func consolePasswordCommand() *cli.Command {
	return &cli.Command{
		Name:  "console-password",
		Usage: "Set the web console's basic-auth user and password in the config file.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Value: "admin", Usage: "Console username"},
			&cli.StringFlag{Name: "password", Usage: "Console password (prompted when omitted)"},
			&cli.BoolFlag{Name: "disable", Usage: "Turn basic auth off"},
		},
		Action: func(c *cli.Context) error {
			env := envOf(c)
			// Reload so env and flag overrides are not written back.
			cfg, err := config.Load(env.cfgPath)
			if err != nil {
				return err
			}
			if c.Bool("disable") {
				cfg.BasicAuth = nil
			} else {
				pw := env.prompt("Console password", c.String("password"))
				if pw == "" {
					return errors.New("password is required")
				}
				hash, err := web.HashPassword(pw)
				if err != nil {
					return err
				}
				cfg.BasicAuth = &config.BasicAuthConfig{Username: c.String("user"), PasswordHash: hash}
			}
			if err := cfg.Save(env.cfgPath); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Fprintf(env.out, "Updated %s\n", env.cfgPath)
			return nil
		},
	}
}

// monthAnchor parses YYYY-MM; empty means the month containing now.
func monthAnchor(v string, now time.Time, loc *time.Location) (time.Time, error) {
	if v == "" {
		n := now.In(loc)
		return time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, loc), nil
	}
	t, err := time.ParseInLocation("2006-01", v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("month must be YYYY-MM, got %q", v)
	}
	return schedule.ShiftMonth(t, 0), nil
}
