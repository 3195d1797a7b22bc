package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/urfave/cli/v2"

	"sportkeeper/internal/access"
	"sportkeeper/internal/api"
	"sportkeeper/internal/config"
	appLog "sportkeeper/internal/log"
	"sportkeeper/internal/model"
)

const version = "0.3.0"

// appEnv is what every command needs once flags and config are resolved.
type appEnv struct {
	cfg       *config.Config
	cfgPath   string
	tokenPath string
	loc       *time.Location
	anon      *api.Client
	client    *api.Client
	out       io.Writer
	in        *bufio.Reader
}

func main() {
	app := newApp(os.Stdout, os.Stdin)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer, in io.Reader) *cli.App {
	return &cli.App{
		Name:     "sportkeeper",
		Usage:    "Schedule and manage SportKeeper classes from the terminal.",
		Version:  version,
		Writer:   out,
		Metadata: map[string]interface{}{},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: defaultConfigPath(), Usage: "Path to config file", EnvVars: []string{"SPORTKEEPER_CONFIG"}},
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "Optional dotenv file with SPORTKEEPER_* overrides"},
			&cli.StringFlag{Name: "token-file", Usage: "Where the login token is stored (default: next to the config)"},
			&cli.StringFlag{Name: "api-url", Usage: "Remote API base URL (overrides config)"},
			&cli.BoolFlag{Name: "debug", Usage: "Verbose logging"},
		},
		Before: func(c *cli.Context) error {
			env, err := setup(c, out, in)
			if err != nil {
				return err
			}
			c.App.Metadata["env"] = env
			return nil
		},
		Commands: []*cli.Command{
			loginCommand(),
			logoutCommand(),
			registerCommand(),
			meCommand(),
			slotsCommand(),
			calendarCommand(),
			reserveCommand(),
			attendeesCommand(),
			usersCommand(),
			activitiesCommand(),
			notesCommand(),
			serveCommand(),
			snapshotCommand(),
			consolePasswordCommand(),
		},
	}
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "sportkeeper.yaml"
	}
	return filepath.Join(dir, "sportkeeper", "config.yaml")
}

func setup(c *cli.Context, out io.Writer, in io.Reader) (*appEnv, error) {
	cfgPath := c.String("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	if err := cfg.ApplyEnv(c.String("env-file")); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	if v := c.String("api-url"); v != "" {
		cfg.APIURL = strings.TrimRight(v, "/")
	}
	appLog.Init(appLog.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if c.Bool("debug") {
		appLog.SetLevel(appLog.LevelDebug)
	}

	tokenPath := c.String("token-file")
	if tokenPath == "" {
		tokenPath = filepath.Join(filepath.Dir(cfgPath), "token")
	}
	if cfg.Token == "" {
		tok, err := config.LoadToken(tokenPath)
		if err != nil {
			return nil, fmt.Errorf("read token: %w", err)
		}
		cfg.Token = tok
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	anon := api.New(cfg.APIURL)
	appLog.Debug("effective config",
		"api_url", cfg.APIURL,
		"timezone", cfg.Timezone,
		"horizon_days", cfg.Recurrence.HorizonDays,
		"authenticated", cfg.Token != "",
	)

	return &appEnv{
		cfg:       cfg,
		cfgPath:   cfgPath,
		tokenPath: tokenPath,
		loc:       loc,
		anon:      anon,
		client:    anon.WithToken(cfg.Token),
		out:       out,
		in:        bufio.NewReader(in),
	}, nil
}

func envOf(c *cli.Context) *appEnv {
	return c.App.Metadata["env"].(*appEnv)
}

var errNotLoggedIn = errors.New("not logged in; run `sportkeeper login` first")

// me resolves the current account; every authenticated command starts here.
func (e *appEnv) me(ctx context.Context) (model.User, error) {
	if !e.client.Authenticated() {
		return model.User{}, errNotLoggedIn
	}
	u, err := e.client.Me(ctx)
	if err != nil {
		if api.StatusOf(err) == 401 {
			return model.User{}, fmt.Errorf("%w (%v)", errNotLoggedIn, err)
		}
		return model.User{}, err
	}
	return u, nil
}

// require fetches the current account and checks one capability.
func (e *appEnv) require(ctx context.Context, want access.Capability) (model.User, error) {
	u, err := e.me(ctx)
	if err != nil {
		return u, err
	}
	return u, access.Require(u.Role, want)
}

// prompt reads one line from stdin when value is empty.
func (e *appEnv) prompt(label, value string) string {
	if value != "" {
		return value
	}
	fmt.Fprintf(e.out, "%s: ", label)
	line, _ := e.in.ReadString('\n')
	return strings.TrimSpace(line)
}
