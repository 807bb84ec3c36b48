// Package runner sweeps the benchmarks over problem sizes and stores every
// sample.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/fxnlabs/zebench/internal/bench"
	"github.com/fxnlabs/zebench/internal/config"
	"github.com/fxnlabs/zebench/internal/gpu"
	"github.com/fxnlabs/zebench/internal/metrics"
	"github.com/fxnlabs/zebench/internal/store"
)

// Suites accepted by Run.
const (
	SuiteKernel = "kernel"
	SuiteCopy   = "copy"
)

// TableFor maps a suite to the table its samples are stored in.
func TableFor(suite string) (string, error) {
	switch suite {
	case SuiteKernel:
		return store.KernelTable, nil
	case SuiteCopy:
		return store.CopyTable, nil
	default:
		return "", fmt.Errorf("unknown suite %q, valid suites: %s, %s", suite, SuiteKernel, SuiteCopy)
	}
}

type Runner struct {
	cfg     *config.Config
	env     bench.Env
	store   *store.Store
	metrics *metrics.Collectors
	logger  *zap.Logger
}

func New(cfg *config.Config, env bench.Env, st *store.Store, m *metrics.Collectors, logger *zap.Logger) *Runner {
	return &Runner{cfg: cfg, env: env, store: st, metrics: m, logger: logger.Named("runner")}
}

// Run executes suite and writes the metrics textfile when one is configured.
func (r *Runner) Run(ctx context.Context, suite string) error {
	var err error
	switch suite {
	case SuiteKernel:
		err = r.KernelSweep(ctx)
	case SuiteCopy:
		err = r.CopySweep(ctx)
	default:
		_, err = TableFor(suite)
	}
	if path := r.cfg.Metrics.Textfile; path != "" {
		if werr := r.metrics.WriteTextfile(path); werr != nil {
			r.logger.Warn("Failed to write metrics textfile", zap.String("path", path), zap.Error(werr))
		}
	}
	return err
}

// KernelSweep runs the matrix multiply for every configured size the
// configured number of times.
func (r *Runner) KernelSweep(ctx context.Context) error {
	if err := r.store.EnsureTable(ctx, store.KernelTable); err != nil {
		return err
	}
	for _, n := range r.cfg.Runner.KernelSizes {
		for rep := 0; rep < r.cfg.Runner.KernelRepetitions; rep++ {
			report, err := r.attempt(ctx, func() (*bench.Report, error) {
				return bench.MatrixMultiply(ctx, r.env, n, false)
			})
			if err != nil {
				return fmt.Errorf("mxm size %d: %w", n, err)
			}
			if err := r.record(ctx, store.KernelTable, report); err != nil {
				return err
			}
		}
		r.logger.Info("Kernel size done", zap.Uint32("size", n), zap.Int("repetitions", r.cfg.Runner.KernelRepetitions))
	}
	return nil
}

// CopySweep runs the transfers starting at the configured size and doubling
// it after every step.
func (r *Runner) CopySweep(ctx context.Context) error {
	if err := r.store.EnsureTable(ctx, store.CopyTable); err != nil {
		return err
	}
	size := r.cfg.Runner.CopyStartBytes
	for step := 0; step < r.cfg.Runner.CopySteps; step++ {
		report, err := r.attempt(ctx, func() (*bench.Report, error) {
			return bench.Transfers(ctx, r.env, size, r.cfg.Bench.TransferIterations)
		})
		if err != nil {
			return fmt.Errorf("transfers size %d: %w", size, err)
		}
		if err := r.record(ctx, store.CopyTable, report); err != nil {
			return err
		}
		r.logger.Info("Copy size done", zap.Uint64("bytes", size), zap.Strings("unsupported", report.Unsupported))
		size *= 2
	}
	return nil
}

// attempt retries run with exponential backoff. Only driver failures are
// retried; anything else, such as a missing kernel file, fails at once.
func (r *Runner) attempt(ctx context.Context, run func() (*bench.Report, error)) (*bench.Report, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.Runner.RetryInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, r.cfg.Runner.MaxAttempts-1), ctx)

	var report *bench.Report
	err := backoff.RetryNotify(func() error {
		var err error
		report, err = run()
		if err == nil {
			return nil
		}
		r.metrics.RunsFailed.Inc()
		if gpu.CodeOf(err) == gpu.ResultErrorUnknown || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, next time.Duration) {
		r.logger.Warn("Benchmark run failed, retrying", zap.Duration("backoff", next), zap.Error(err))
	})
	return report, err
}

func (r *Runner) record(ctx context.Context, table string, report *bench.Report) error {
	for _, s := range report.Samples {
		if err := r.store.Insert(ctx, table, int64(report.Size), s.Name, s.Value.Nanoseconds()); err != nil {
			return err
		}
		r.metrics.ObserveSample(report.Benchmark, s.Name, report.Size, s.Value)
	}
	if report.Validation != bench.ValidationSkipped {
		r.metrics.ObserveValidation(report.Benchmark, report.Validation.String())
	}
	return nil
}
