package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fxnlabs/zebench/fixtures"
	"github.com/fxnlabs/zebench/internal/runner"
	"github.com/fxnlabs/zebench/internal/store"
)

func suiteFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "suite",
		Usage:    "Benchmark suite: kernel or copy",
		Required: true,
	}
}

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "db",
		Usage: "SQLite database `FILE`, overrides runner.database",
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Sweep a benchmark suite over its sizes and store every sample",
		Flags: []cli.Flag{
			suiteFlag(),
			dbFlag(),
			&cli.BoolFlag{
				Name:  "reports",
				Usage: "Print the report of every benchmark run",
			},
		},
		Action: func(c *cli.Context) error {
			st := state(c)
			suite := c.String("suite")
			if _, err := runner.TableFor(suite); err != nil {
				return usageError(c, "%v", err)
			}
			cfg := *st.cfg
			if c.IsSet("db") {
				cfg.Runner.Database = c.String("db")
			}

			var out io.Writer = io.Discard
			if c.Bool("reports") {
				out = c.App.Writer
			}
			env, err := st.env(out)
			if err != nil {
				return err
			}

			var (
				r  *runner.Runner
				db *store.Store
			)
			app := fx.New(
				fx.Supply(&cfg, st.log, env),
				runner.Module,
				fx.Populate(&r, &db),
				fx.WithLogger(func() fxevent.Logger {
					return &fxevent.ZapLogger{Logger: st.log.Named("fx")}
				}),
			)
			if err := app.Start(c.Context); err != nil {
				return err
			}
			st.log.Info("Running suite", zap.String("suite", suite), zap.String("database", cfg.Runner.Database))
			if err = r.Run(c.Context, suite); err == nil {
				fmt.Fprintln(c.App.Writer, "============================")
				table, _ := runner.TableFor(suite)
				err = printSummary(c, db, table)
			}
			return multierr.Append(err, app.Stop(c.Context))
		},
	}
}

func queryCommand() *cli.Command {
	return &cli.Command{
		Name:  "query",
		Usage: "Print the stored samples of a suite",
		Flags: []cli.Flag{
			suiteFlag(),
			dbFlag(),
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Print every sample instead of the averages",
			},
		},
		Action: func(c *cli.Context) (err error) {
			st := state(c)
			table, err := runner.TableFor(c.String("suite"))
			if err != nil {
				return usageError(c, "%v", err)
			}
			path := st.cfg.Runner.Database
			if c.IsSet("db") {
				path = c.String("db")
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("no results database: %w", err)
			}
			db, err := store.Open(path, st.log.Named("store"))
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, db.Close()) }()

			if c.Bool("all") {
				rows, err := db.All(c.Context, table)
				if err != nil {
					return err
				}
				w := tablewriter.NewWriter(c.App.Writer)
				w.SetHeader([]string{"SIZE", "NAME", "TIME"})
				for _, r := range rows {
					w.Append([]string{strconv.FormatInt(r.Size, 10), r.Name, strconv.FormatInt(r.Time, 10)})
				}
				w.Render()
				return nil
			}
			return printSummary(c, db, table)
		},
	}
}

// printSummary renders the per size and name averages of table.
func printSummary(c *cli.Context, db *store.Store, table string) error {
	rows, err := db.Summary(c.Context, table)
	if err != nil {
		return err
	}
	w := tablewriter.NewWriter(c.App.Writer)
	w.SetHeader([]string{"SIZE", "NAME", "TIMER", "COUNT"})
	for _, r := range rows {
		w.Append([]string{
			strconv.FormatInt(r.Size, 10),
			r.Name,
			strconv.FormatFloat(r.AvgTime, 'f', 0, 64),
			strconv.FormatInt(r.Count, 10),
		})
	}
	w.Render()
	return nil
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write the default configuration to the --config path",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing file",
			},
		},
		Action: func(c *cli.Context) error {
			path := c.String("config")
			if _, err := os.Stat(path); err == nil && !c.Bool("force") {
				return fmt.Errorf("%s already exists, use --force to overwrite it", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := os.WriteFile(path, fixtures.ConfigTemplate, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Wrote %s\n", path)
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the version",
		Action: func(c *cli.Context) error {
			fmt.Fprintln(c.App.Writer, version)
			return nil
		},
	}
}
