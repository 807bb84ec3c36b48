package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fxnlabs/zebench/internal/bench"
	"github.com/fxnlabs/zebench/internal/config"
	"github.com/fxnlabs/zebench/internal/gpu"
	"github.com/fxnlabs/zebench/internal/logger"
)

const version = "0.1"

// appState is built once in Before and shared by every command through the
// app metadata.
type appState struct {
	cfg     *config.Config
	log     *zap.Logger
	manager *gpu.Manager
}

func state(c *cli.Context) *appState {
	return c.App.Metadata["state"].(*appState)
}

// env selects the backend on first use so commands that never touch a
// device work without one.
func (s *appState) env(out io.Writer) (bench.Env, error) {
	if s.manager == nil {
		m, err := gpu.NewManager(s.log.Named("gpu"), s.cfg.GPU.Backend)
		if err != nil {
			return bench.Env{}, err
		}
		s.manager = m
	}
	return bench.Env{
		Backend:     s.manager.Backend(),
		KernelDir:   s.cfg.GPU.KernelDir,
		Out:         out,
		Logger:      s.log.Named("bench"),
		SyncTimeout: s.cfg.GPU.SyncTimeout,
	}, nil
}

func newApp(out io.Writer) *cli.App {
	st := &appState{}
	return &cli.App{
		Name:    "zebench",
		Usage:   "Level Zero GPU micro-benchmarks",
		Version: version,
		Writer:  out,
		Metadata: map[string]interface{}{
			"state": st,
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "config.yaml",
				Usage:   "Load configuration from `FILE`",
				EnvVars: []string{"ZEBENCH_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Device backend: auto, levelzero or emulator",
			},
			&cli.StringFlag{
				Name:  "kernel-dir",
				Usage: "Directory holding the SPIR-V modules",
			},
			&cli.StringFlag{
				Name:  "verbosity",
				Usage: "Log level",
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			if c.IsSet("backend") {
				cfg.GPU.Backend = c.String("backend")
			}
			if c.IsSet("kernel-dir") {
				cfg.GPU.KernelDir = c.String("kernel-dir")
			}
			if c.IsSet("verbosity") {
				cfg.Logger.Verbosity = c.String("verbosity")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			zapLogger, err := logger.New(cfg.Logger.Verbosity, cfg.Logger.Format)
			if err != nil {
				return err
			}
			st.cfg = cfg
			st.log = zapLogger.Named("cli")
			return nil
		},
		After: func(c *cli.Context) error {
			var err error
			if st.manager != nil {
				err = st.manager.Cleanup()
			}
			if st.log != nil {
				_ = st.log.Sync()
			}
			return err
		},
		Commands: []*cli.Command{
			vectorAddCommand(),
			transfersCommand(),
			mxmCommand(),
			allocCommand(),
			memoryEffectCommand(),
			memoryEffectMxMCommand(),
			infoCommand(),
			runCommand(),
			queryCommand(),
			initCommand(),
			versionCommand(),
		},
	}
}

func main() {
	app := newApp(os.Stdout)
	if err := app.Run(os.Args); err != nil {
		st := app.Metadata["state"].(*appState)
		if st.log != nil {
			st.log.Fatal("failed to run app", zap.Errors("errors", multierr.Errors(err)))
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
