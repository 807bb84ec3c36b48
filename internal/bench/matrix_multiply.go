package bench

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fxnlabs/zebench/internal/gpu"
)

// Sample names recorded by MatrixMultiply.
const (
	SampleGPUKernel  = "GPU-KERNEL"
	SampleParallel   = "PARALLEL"
	SampleSequential = "SEQ"
)

// KernelSampleNames lists the MatrixMultiply samples in report order.
var KernelSampleNames = []string{SampleGPUKernel, SampleParallel, SampleSequential}

const mxmTolerance = 1e-3

// MatrixMultiply multiplies two n x n float matrices with the mxm kernel and
// reports the kernel time from device timestamps, the host time of the
// submission and the time of the sequential CPU multiplication.
func MatrixMultiply(ctx context.Context, env Env, n uint32, validate bool) (report *Report, err error) {
	if n == 0 {
		return nil, errors.New("matrix size must be positive")
	}
	out := env.out()
	fmt.Fprintf(out, "Matrix Size: %d x %d\n", n, n)

	s, err := env.session()
	if err != nil {
		return nil, err
	}
	defer closeSession(s, &err)

	bytes := uint64(n) * uint64(n) * 4
	opts := gpu.AllocOptions{Alignment: 1}
	var bufA, bufB, bufC, tsBuf *gpu.Buffer
	defer func() { free(s, &err, bufA, bufB, bufC, tsBuf) }()
	for _, p := range []**gpu.Buffer{&bufA, &bufB, &bufC} {
		if *p, err = s.Alloc(gpu.Shared, bytes, opts); err != nil {
			return nil, fmt.Errorf("failed to allocate shared memory: %w", err)
		}
	}
	if tsBuf, err = s.Alloc(gpu.Host, gpu.KernelTimestampSize, gpu.AllocOptions{Alignment: 1}); err != nil {
		return nil, fmt.Errorf("failed to allocate timestamp buffer: %w", err)
	}
	if err = multierr.Combine(gpu.FillFloat32(bufA, 2.5), gpu.FillFloat32(bufB, 3.2), gpu.FillFloat32(bufC, 0)); err != nil {
		return nil, err
	}

	pool, err := s.Backend.CreateEventPool(1, true)
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, pool.Destroy()) }()
	event, err := pool.Event(0)
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, event.Destroy()) }()

	kernel, release, err := env.kernel(MatrixMultiplyModule, "mxm")
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, release()) }()

	group, err := kernel.SuggestGroupSize(n, n, 1)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "GroupSizeX: %d\nGroupSizeY: %d\nGroupSizeZ: %d\n", group.X, group.Y, group.Z)
	if err = kernel.SetGroupSize(group); err != nil {
		return nil, err
	}
	if err = multierr.Combine(
		kernel.SetArgumentBuffer(0, bufA),
		kernel.SetArgumentBuffer(1, bufB),
		kernel.SetArgumentBuffer(2, bufC),
		kernel.SetArgumentValue(3, int32(n)),
	); err != nil {
		return nil, err
	}

	groups := gpu.GroupCount{X: n / group.X, Y: n / group.Y, Z: 1}
	if err = s.List.AppendLaunchKernel(kernel, groups, event); err != nil {
		return nil, err
	}
	if err = s.List.AppendBarrier(); err != nil {
		return nil, err
	}
	if err = s.List.AppendQueryKernelTimestamps([]gpu.Event{event}, tsBuf); err != nil {
		return nil, err
	}
	if err = s.List.AppendBarrier(); err != nil {
		return nil, err
	}
	parallel, err := env.submit(ctx, s)
	if err != nil {
		return nil, err
	}

	stamps, err := gpu.ReadKernelTimestamps(tsBuf, 1)
	if err != nil {
		return nil, err
	}
	kernelTime := gpu.KernelDuration(stamps[0], s.Props)
	printKernelTimestamps(env, s.Props, stamps[0], kernelTime)

	a, _ := bufA.Float32s()
	b, _ := bufB.Float32s()
	start := time.Now()
	want := MatMulFloat32(a, b, int(n))
	sequential := time.Since(start)

	report = newReport("mxm", uint64(n))
	report.add(SampleGPUKernel, kernelTime)
	report.add(SampleParallel, parallel)
	report.add(SampleSequential, sequential)
	fmt.Fprintf(out, "GPU-KERNEL = %d [ns]\n", kernelTime.Nanoseconds())
	fmt.Fprintf(out, "PARALLEL = %d [ns]\n", parallel.Nanoseconds())
	fmt.Fprintf(out, "SEQ = %d [ns]\n", sequential.Nanoseconds())

	if validate {
		c, _ := bufC.Float32s()
		idx := CompareFloat32(c, want, mxmTolerance)
		if idx >= 0 {
			env.logger().Debug("Matrix multiply mismatch", zap.Int("index", idx))
		}
		report.Validation = validationOf(idx < 0)
		fmt.Fprintf(out, "Matrix Multiply validation %s\n", report.Validation)
	}
	return report, nil
}

func printKernelTimestamps(env Env, props gpu.DeviceProperties, ts gpu.KernelTimestamp, d time.Duration) {
	out := env.out()
	fmt.Fprintf(out, "Kernel timestamp statistics (API %s):\n", props.APIVersion)
	fmt.Fprintf(out, "  Global start : %d cycles\n", ts.GlobalStart)
	fmt.Fprintf(out, "  Kernel start : %d cycles\n", ts.ContextStart)
	fmt.Fprintf(out, "  Kernel end   : %d cycles\n", ts.ContextEnd)
	fmt.Fprintf(out, "  Global end   : %d cycles\n", ts.GlobalEnd)
	fmt.Fprintf(out, "  timerResolution: %s\n", resolutionString(props))
	fmt.Fprintf(out, "  Kernel duration : %d cycles, %d ns\n",
		gpu.TimestampDelta(ts.ContextStart, ts.ContextEnd, props.KernelTimestampValidBits), d.Nanoseconds())
}
