package bench

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fxnlabs/zebench/internal/gpu"
)

const vectorAddTolerance = 0.01

// VectorAdd adds two float vectors of items elements in shared memory and
// validates c = a + b.
func VectorAdd(ctx context.Context, env Env, items uint32) (report *Report, err error) {
	if items == 0 {
		return nil, errors.New("vector size must be positive")
	}
	out := env.out()
	bytes := uint64(items) * 4
	fmt.Fprintf(out, "Vector Size: %d ---> #bytes: %d -- %g (GB)\n", items, bytes, float64(bytes)*1e-9)

	s, err := env.session()
	if err != nil {
		return nil, err
	}
	defer closeSession(s, &err)
	fmt.Fprintf(out, "Max Allocation Size: %d (bytes) %g (GB)\n", s.Props.MaxMemAllocSize, float64(s.Props.MaxMemAllocSize)*1e-9)

	opts := gpu.AllocOptions{Alignment: 1, Cached: true, RelaxedLimits: true}
	var bufA, bufB, bufC *gpu.Buffer
	defer func() { free(s, &err, bufA, bufB, bufC) }()
	for _, p := range []**gpu.Buffer{&bufA, &bufB, &bufC} {
		if *p, err = s.Alloc(gpu.Shared, bytes, opts); err != nil {
			return nil, fmt.Errorf("failed to allocate shared memory: %w", err)
		}
	}
	fmt.Fprintln(out, "[INFO] Allocation done")

	if err = multierr.Combine(gpu.FillFloat32(bufA, 2.5), gpu.FillFloat32(bufB, 3.2), gpu.FillFloat32(bufC, 0)); err != nil {
		return nil, err
	}

	kernel, release, err := env.kernel(VectorAdditionModule, "vectorAdd")
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, release()) }()

	group, err := kernel.SuggestGroupSize(items, 1, 1)
	if err != nil {
		return nil, err
	}
	if err = kernel.SetGroupSize(group); err != nil {
		return nil, err
	}
	if err = multierr.Combine(
		kernel.SetArgumentBuffer(0, bufC),
		kernel.SetArgumentBuffer(1, bufA),
		kernel.SetArgumentBuffer(2, bufB),
	); err != nil {
		return nil, err
	}

	groups := gpu.GroupCount{X: items / group.X, Y: 1, Z: 1}
	if err = s.List.AppendLaunchKernel(kernel, groups, nil); err != nil {
		return nil, err
	}
	if err = s.List.AppendBarrier(); err != nil {
		return nil, err
	}
	elapsed, err := env.submit(ctx, s)
	if err != nil {
		return nil, err
	}

	report = newReport("vector-add", uint64(items))
	report.add("PARALLEL", elapsed)

	a, _ := bufA.Float32s()
	b, _ := bufB.Float32s()
	c, _ := bufC.Float32s()
	if idx := VectorAddMismatch(a, b, c, vectorAddTolerance); idx >= 0 {
		env.logger().Debug("Vector addition mismatch",
			zap.Int("index", idx), zap.Float32("got", c[idx]), zap.Float32("want", a[idx]+b[idx]))
		report.Validation = ValidationFailed
	} else {
		report.Validation = ValidationPassed
	}
	fmt.Fprintf(out, "Vector Addition validation %s\n", report.Validation)
	return report, nil
}
