package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/fxnlabs/zebench/internal/bench"
	"github.com/fxnlabs/zebench/internal/config"
	"github.com/fxnlabs/zebench/internal/gpu"
	"github.com/fxnlabs/zebench/internal/gpu/gputest"
	"github.com/fxnlabs/zebench/internal/metrics"
	"github.com/fxnlabs/zebench/internal/store"
)

// flakyBackend fails Initialize a given number of times with a driver error.
type flakyBackend struct {
	*gpu.EmulatorBackend
	failures int
	calls    int
}

func (b *flakyBackend) Initialize() error {
	b.calls++
	if b.failures > 0 {
		b.failures--
		return &gpu.ResultError{Call: "zeInit", Code: gpu.ResultErrorDeviceLost}
	}
	return b.EmulatorBackend.Initialize()
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Runner.Database = filepath.Join(t.TempDir(), "results.db")
	cfg.Runner.KernelSizes = []uint32{16, 32}
	cfg.Runner.KernelRepetitions = 2
	cfg.Runner.CopyStartBytes = 512
	cfg.Runner.CopySteps = 3
	cfg.Runner.MaxAttempts = 3
	cfg.Runner.RetryInterval = time.Millisecond
	cfg.Bench.TransferIterations = 2
	return cfg
}

func newTestRunner(t *testing.T, cfg *config.Config, backend gpu.Backend, kernelDir string) (*Runner, *store.Store) {
	t.Helper()
	st, err := store.Open(cfg.Runner.Database, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, st.Close()) })

	env := bench.Env{Backend: backend, KernelDir: kernelDir, Logger: zap.NewNop()}
	return New(cfg, env, st, metrics.NewCollectors(prometheus.NewRegistry()), zap.NewNop()), st
}

func TestRunner_KernelSweep(t *testing.T) {
	cfg := testConfig(t)
	r, st := newTestRunner(t, cfg, gpu.NewEmulatorBackend(zap.NewNop()), gputest.KernelDir(t))

	require.NoError(t, r.Run(context.Background(), SuiteKernel))

	rows, err := st.All(context.Background(), store.KernelTable)
	require.NoError(t, err)
	assert.Len(t, rows, 2*2*len(bench.KernelSampleNames))

	summary, err := st.Summary(context.Background(), store.KernelTable)
	require.NoError(t, err)
	require.Len(t, summary, 2*len(bench.KernelSampleNames))
	for _, s := range summary {
		assert.Equal(t, int64(2), s.Count)
		assert.Contains(t, bench.KernelSampleNames, s.Name)
	}

	assert.Equal(t, 2*len(bench.KernelSampleNames), testutil.CollectAndCount(r.metrics.LastSampleNanoseconds))
	assert.Zero(t, testutil.ToFloat64(r.metrics.RunsFailed))
}

func TestRunner_CopySweep(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "zebench.prom")
	r, st := newTestRunner(t, cfg, gpu.NewEmulatorBackend(zap.NewNop()), gputest.KernelDir(t))

	require.NoError(t, r.Run(context.Background(), SuiteCopy))

	rows, err := st.All(context.Background(), store.CopyTable)
	require.NoError(t, err)
	assert.Len(t, rows, 3*2*len(bench.TransferSampleNames))
	assert.Equal(t, int64(512), rows[0].Size)
	assert.Equal(t, int64(2048), rows[len(rows)-1].Size)
	assert.Equal(t, float64(3), testutil.ToFloat64(r.metrics.Validations.WithLabelValues("transfers", "PASSED")))

	data, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "zebench_sample_nanoseconds")
}

func TestRunner_Retry(t *testing.T) {
	t.Run("driver errors are retried", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Runner.KernelSizes = []uint32{16}
		cfg.Runner.KernelRepetitions = 1
		backend := &flakyBackend{EmulatorBackend: gpu.NewEmulatorBackend(zap.NewNop()), failures: 2}
		r, _ := newTestRunner(t, cfg, backend, gputest.KernelDir(t))

		require.NoError(t, r.KernelSweep(context.Background()))
		assert.Equal(t, 3, backend.calls)
		assert.Equal(t, float64(2), testutil.ToFloat64(r.metrics.RunsFailed))
	})

	t.Run("attempts are bounded", func(t *testing.T) {
		cfg := testConfig(t)
		backend := &flakyBackend{EmulatorBackend: gpu.NewEmulatorBackend(zap.NewNop()), failures: 10}
		r, _ := newTestRunner(t, cfg, backend, gputest.KernelDir(t))

		err := r.KernelSweep(context.Background())
		require.Error(t, err)
		assert.True(t, gpu.IsResult(err, gpu.ResultErrorDeviceLost))
		assert.Equal(t, 3, backend.calls)
	})

	t.Run("other errors fail at once", func(t *testing.T) {
		cfg := testConfig(t)
		r, _ := newTestRunner(t, cfg, gpu.NewEmulatorBackend(zap.NewNop()), t.TempDir())

		err := r.KernelSweep(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SPIR-V binary file not found")
		assert.Equal(t, float64(1), testutil.ToFloat64(r.metrics.RunsFailed))
	})
}

func TestRunner_UnknownSuite(t *testing.T) {
	cfg := testConfig(t)
	r, _ := newTestRunner(t, cfg, gpu.NewEmulatorBackend(zap.NewNop()), gputest.KernelDir(t))

	err := r.Run(context.Background(), "graphics")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown suite")
}

func TestModule(t *testing.T) {
	cfg := testConfig(t)
	env := bench.Env{Backend: gpu.NewEmulatorBackend(zap.NewNop()), KernelDir: gputest.KernelDir(t)}

	var r *Runner
	app := fxtest.New(t,
		fx.Supply(cfg, zap.NewNop(), env),
		Module,
		fx.Populate(&r),
	)
	app.RequireStart()
	require.NotNil(t, r)
	require.NoError(t, r.Run(context.Background(), SuiteKernel))
	app.RequireStop()
}
