package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"sportkeeper/internal/access"
	"sportkeeper/internal/form"
	"sportkeeper/internal/ics"
	"sportkeeper/internal/schedule"
)

func slotsCommand() *cli.Command {
	return &cli.Command{
		Name:  "slots",
		Usage: "List, create and manage class slots.",
		Subcommands: []*cli.Command{
			slotsListCommand(),
			slotsCreateCommand(),
			slotsImportCommand(),
			slotsCapacityCommand(),
			slotsDeleteCommand(),
			slotsExportCommand(),
		},
	}
}

func slotsListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List slots, optionally within a date range.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Usage: "First day (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "to", Usage: "Last day (YYYY-MM-DD)"},
		},
		Action: func(c *cli.Context) error {
			env := envOf(c)
			if _, err := env.require(c.Context, access.BookSlots); err != nil {
				return err
			}
			slots, err := env.client.ListSlots(c.Context)
			if err != nil {
				return err
			}
			from, to, err := parseDayRange(c.String("from"), c.String("to"), env.loc)
			if err != nil {
				return err
			}
			printSlots(env.out, filterSlots(slots, from, to, env.loc), env.loc)
			return nil
		},
	}
}

func slotsCreateCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create one slot, or a series with --repeat.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "activity", Usage: "Activity id", Required: true},
			&cli.StringFlag{Name: "coach", Usage: "Coach user id", Required: true},
			&cli.StringFlag{Name: "start", Usage: "Start, local time (YYYY-MM-DDTHH:MM)", Required: true},
			&cli.StringFlag{Name: "end", Usage: "End, local time (YYYY-MM-DDTHH:MM)", Required: true},
			&cli.IntFlag{Name: "capacity", Usage: "Seats per slot (default from config)"},
			&cli.StringFlag{Name: "name", Usage: "Slot name"},
			&cli.StringFlag{Name: "description", Usage: "Slot description (markdown)"},
			&cli.StringFlag{Name: "repeat", Value: "NONE", Usage: "NONE, DAILY or WEEKLY"},
			&cli.StringFlag{Name: "until", Usage: "Last day of the series (YYYY-MM-DD)"},
			&cli.IntSliceFlag{Name: "weekday", Usage: "ISO weekday for WEEKLY (1=Mon..7=Sun); repeatable"},
			&cli.IntFlag{Name: "split", Usage: "Cut every occurrence into chunks of N minutes"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Print the occurrences without creating anything"},
		},
		Action: func(c *cli.Context) error {
			env := envOf(c)
			f := form.SlotForm{
				ActivityID:   c.String("activity"),
				CoachID:      c.String("coach"),
				StartAt:      c.String("start"),
				EndAt:        c.String("end"),
				Capacity:     c.Int("capacity"),
				Name:         c.String("name"),
				Description:  c.String("description"),
				Repeat:       c.String("repeat"),
				Until:        c.String("until"),
				Weekdays:     c.IntSlice("weekday"),
				SplitMinutes: c.Int("split"),
			}
			f.Normalize()
			if f.Capacity == 0 {
				f.Capacity = env.cfg.SlotDefaults.Capacity
			}
			if f.Repeat == "WEEKLY" && !c.IsSet("weekday") {
				f.Weekdays = append([]int(nil), env.cfg.Recurrence.DefaultWeekdays...)
			}

			if c.Bool("dry-run") {
				occs, err := f.Occurrences(env.loc, env.cfg.Recurrence.HorizonDays)
				if err != nil {
					return err
				}
				printOccurrences(env.out, occs)
				return nil
			}

			if _, err := env.require(c.Context, access.ManageSlots); err != nil {
				return err
			}
			activities, err := env.client.ListActivities(c.Context)
			if err != nil {
				return err
			}
			tmpl, occs, err := f.Prepare(env.loc, env.cfg.Recurrence.HorizonDays, activities)
			if err != nil {
				return err
			}

			res, err := env.client.CreateSlots(c.Context, tmpl, occs)
			fmt.Fprintf(env.out, "Created %d of %d slots\n", len(res.Created), res.Requested)
			return err
		},
	}
}

func slotsImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Create one slot per timed event in an iCalendar file.",
		ArgsUsage: "<file.ics>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "activity", Usage: "Activity id", Required: true},
			&cli.StringFlag{Name: "coach", Usage: "Coach user id", Required: true},
			&cli.IntFlag{Name: "capacity", Usage: "Seats per slot (default from config)"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Print what would be created"},
		},
		Action: func(c *cli.Context) error {
			env := envOf(c)
			path := c.Args().First()
			if path == "" {
				return errors.New("ics file is required")
			}
			fh, err := os.Open(path)
			if err != nil {
				return err
			}
			defer fh.Close()

			events, err := ics.ParseEvents(fh, env.loc)
			if err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
			if c.Bool("dry-run") {
				for _, ev := range events {
					fmt.Fprintf(env.out, "%s  %s\n", schedule.FormatRange(ev.Interval.Start, ev.Interval.End), ev.Summary)
				}
				return nil
			}

			if _, err := env.require(c.Context, access.ManageSlots); err != nil {
				return err
			}
			capacity := c.Int("capacity")
			if capacity <= 0 {
				capacity = env.cfg.SlotDefaults.Capacity
			}
			activities, err := env.client.ListActivities(c.Context)
			if err != nil {
				return err
			}
			f := form.SlotForm{ActivityID: c.String("activity"), CoachID: c.String("coach"), Capacity: capacity}
			tmpl, err := f.Template(activities)
			if err != nil {
				return err
			}

			created := 0
			for _, ev := range events {
				req := tmpl
				req.Name = ev.Summary
				req.Description = ev.Description
				if _, err := env.client.CreateSlots(c.Context, req, []schedule.Interval{ev.Interval}); err != nil {
					fmt.Fprintf(env.out, "Created %d of %d slots\n", created, len(events))
					return err
				}
				created++
			}
			fmt.Fprintf(env.out, "Created %d of %d slots\n", created, len(events))
			return nil
		},
	}
}

func slotsCapacityCommand() *cli.Command {
	return &cli.Command{
		Name:      "capacity",
		Usage:     "Change the capacity of a slot.",
		ArgsUsage: "<slot-id> <capacity>",
		Action: func(c *cli.Context) error {
			env := envOf(c)
			if c.NArg() != 2 {
				return errors.New("usage: slots capacity <slot-id> <capacity>")
			}
			n, err := strconv.Atoi(c.Args().Get(1))
			if err != nil || n < 1 {
				return fmt.Errorf("capacity must be a positive integer, got %q", c.Args().Get(1))
			}
			if _, err := env.require(c.Context, access.ManageSlots); err != nil {
				return err
			}
			if err := env.client.UpdateSlotCapacity(c.Context, c.Args().First(), n); err != nil {
				return err
			}
			fmt.Fprintf(env.out, "Capacity of %s set to %d\n", c.Args().First(), n)
			return nil
		},
	}
}

func slotsDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a slot.",
		ArgsUsage: "<slot-id>",
		Action: func(c *cli.Context) error {
			env := envOf(c)
			id := c.Args().First()
			if id == "" {
				return errors.New("slot id is required")
			}
			if _, err := env.require(c.Context, access.ManageSlots); err != nil {
				return err
			}
			if err := env.client.DeleteSlot(c.Context, id); err != nil {
				return err
			}
			fmt.Fprintf(env.out, "Deleted %s\n", id)
			return nil
		},
	}
}

func slotsExportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write the slot listing as an iCalendar feed.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file (default stdout)"},
			&cli.StringFlag{Name: "name", Value: "SportKeeper", Usage: "Calendar name"},
		},
		Action: func(c *cli.Context) error {
			env := envOf(c)
			if _, err := env.require(c.Context, access.BookSlots); err != nil {
				return err
			}
			slots, err := env.client.ListSlots(c.Context)
			if err != nil {
				return err
			}
			feed, skipped := ics.ExportSlots(slots, env.loc, ics.ExportOptions{Name: c.String("name"), Now: time.Now()})
			if skipped > 0 {
				fmt.Fprintf(os.Stderr, "skipped %d slots with malformed times\n", skipped)
			}
			if p := c.String("out"); p != "" {
				return os.WriteFile(p, []byte(feed), 0o644)
			}
			_, err = fmt.Fprint(env.out, feed)
			return err
		},
	}
}
