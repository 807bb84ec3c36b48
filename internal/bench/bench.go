// Package bench implements the micro-benchmarks. Each benchmark opens its own
// session on a gpu.Backend, prints a human readable report to Env.Out and
// returns the measured samples.
package bench

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fxnlabs/zebench/internal/gpu"
)

// SPIR-V modules loaded by the benchmarks.
const (
	VectorAdditionModule = "vectorAddition.spv"
	MatrixMultiplyModule = "matrixMultiply.spv"
	MxMModule            = "mxm.spv"
)

// Env carries what every benchmark needs.
type Env struct {
	Backend   gpu.Backend
	KernelDir string
	Out       io.Writer
	Logger    *zap.Logger
	// SyncTimeout bounds every queue synchronization. Zero waits forever.
	SyncTimeout time.Duration
}

func (e Env) out() io.Writer {
	if e.Out == nil {
		return io.Discard
	}
	return e.Out
}

func (e Env) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// session opens a session and prints the device banner.
func (e Env) session() (*gpu.Session, error) {
	s, err := gpu.NewSession(e.Backend, e.logger())
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	printBasicInfo(e.out(), s)
	return s, nil
}

func (e Env) submit(ctx context.Context, s *gpu.Session) (time.Duration, error) {
	if e.SyncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.SyncTimeout)
		defer cancel()
	}
	elapsed, err := s.Submit(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to execute command list: %w", err)
	}
	return elapsed, nil
}

func (e Env) kernel(module, name string) (gpu.Kernel, func() error, error) {
	k, release, err := gpu.CreateKernel(e.Backend, e.KernelDir, module, name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kernel %s: %w", name, err)
	}
	return k, release, nil
}

// closeSession folds the teardown error into *err.
func closeSession(s *gpu.Session, err *error) {
	*err = multierr.Append(*err, s.Close())
}

// free releases bufs and folds the failure into *err.
func free(s *gpu.Session, err *error, bufs ...*gpu.Buffer) {
	*err = multierr.Append(*err, s.Free(bufs...))
}

func printBasicInfo(w io.Writer, s *gpu.Session) {
	fmt.Fprintf(w, "Device   : %s\n", s.Props.Name)
	fmt.Fprintf(w, "Type     : %s\n", s.Props.Type)
	fmt.Fprintf(w, "Vendor ID: %x\n", s.Props.VendorID)
	fmt.Fprintf(w, "#Queue Groups: %d\n", len(s.QueueGroups))
}

// sizeString renders a byte count as "<n> bytes - <GB> (GB) [<IEC>]".
func sizeString(n uint64) string {
	return fmt.Sprintf("%d bytes - %g (GB) [%s]", n, float64(n)*1e-9, humanize.IBytes(n))
}

// Validation is the outcome of the result check of a benchmark.
type Validation int

const (
	ValidationSkipped Validation = iota
	ValidationPassed
	ValidationFailed
)

func (v Validation) String() string {
	switch v {
	case ValidationPassed:
		return "PASSED"
	case ValidationFailed:
		return "FAILED"
	default:
		return "SKIPPED"
	}
}

func validationOf(ok bool) Validation {
	if ok {
		return ValidationPassed
	}
	return ValidationFailed
}

// Sample is one named measurement.
type Sample struct {
	Name  string
	Value time.Duration
}

// AllocationResult is the outcome of one allocation attempt.
type AllocationResult struct {
	Kind      gpu.MemoryType
	Size      uint64
	Supported bool
}

// Report is what a benchmark measured.
type Report struct {
	Benchmark  string
	Size       uint64
	Samples    []Sample
	Validation Validation
	// Unsupported lists the profiles skipped because the device rejected
	// the allocation size.
	Unsupported []string
	Allocations []AllocationResult
}

func newReport(benchmark string, size uint64) *Report {
	return &Report{Benchmark: benchmark, Size: size}
}

func (r *Report) add(name string, d time.Duration) {
	r.Samples = append(r.Samples, Sample{Name: name, Value: d})
}

// Values returns the samples recorded under name, in order.
func (r *Report) Values(name string) []time.Duration {
	var out []time.Duration
	for _, s := range r.Samples {
		if s.Name == name {
			out = append(out, s.Value)
		}
	}
	return out
}

// Names returns the distinct sample names in order of first appearance.
func (r *Report) Names() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range r.Samples {
		if !seen[s.Name] {
			seen[s.Name] = true
			out = append(out, s.Name)
		}
	}
	return out
}
