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

// Sample names recorded by the memory-effect benchmarks.
const (
	SampleHostTimer = "Host-Timer"
	SampleGPUTimer  = "GPU-Timer"
)

// placedBuffer is a kernel argument plus the host visible memory its
// contents are staged through. Both are the same buffer when the kernel
// binds host visible memory directly.
type placedBuffer struct {
	host *gpu.Buffer
	dev  *gpu.Buffer
}

func (p placedBuffer) staged() bool { return p.host != p.dev }

func (p placedBuffer) free(s *gpu.Session) error {
	if !p.staged() {
		return s.Free(p.dev)
	}
	return s.Free(p.host, p.dev)
}

func allocPlaced(env Env, s *gpu.Session, placement Placement, size uint64) (placedBuffer, error) {
	out := env.out()
	opts := gpu.AllocOptions{Alignment: 64}
	switch placement {
	case PlacementShared:
		buf, err := allocAnnounced(out, s, gpu.Shared, size, opts)
		return placedBuffer{host: buf, dev: buf}, err
	case PlacementHostOnly:
		buf, err := allocLabelled(out, s, "Host Only", gpu.Host, size, opts)
		return placedBuffer{host: buf, dev: buf}, err
	}

	dev, err := allocAnnounced(out, s, gpu.Device, size, opts)
	if err != nil {
		return placedBuffer{}, err
	}
	var host *gpu.Buffer
	if placement == PlacementHostStaging {
		host, err = allocAnnounced(out, s, gpu.Host, size, opts)
	} else {
		host, err = s.Alloc(gpu.Heap, size, opts)
	}
	if err != nil {
		return placedBuffer{}, multierr.Append(err, s.Free(dev))
	}
	return placedBuffer{host: host, dev: dev}, nil
}

// placedLaunch runs one kernel over placed inputs and outputs.
type placedLaunch struct {
	env     Env
	s       *gpu.Session
	timer   *globalTimer
	kernel  gpu.Kernel
	groups  gpu.GroupCount
	inputs  []placedBuffer
	outputs []placedBuffer
}

// run records staging copies in, the kernel and copies out between two
// global timestamps, then submits. The host time covers recording and
// execution, the device time only what lies between the timestamps.
func (l *placedLaunch) run(ctx context.Context) (host, device time.Duration, err error) {
	list := l.s.List
	start := time.Now()
	if err = l.timer.begin(list); err != nil {
		return 0, 0, err
	}
	staged := false
	for _, in := range l.inputs {
		if in.staged() {
			staged = true
			if err = list.AppendMemoryCopy(in.dev, in.host, in.dev.Size()); err != nil {
				return 0, 0, err
			}
		}
	}
	if staged {
		if err = list.AppendBarrier(); err != nil {
			return 0, 0, err
		}
	}
	if err = list.AppendLaunchKernel(l.kernel, l.groups, nil); err != nil {
		return 0, 0, err
	}
	if err = list.AppendBarrier(); err != nil {
		return 0, 0, err
	}
	for _, o := range l.outputs {
		if o.staged() {
			if err = list.AppendMemoryCopy(o.host, o.dev, o.dev.Size()); err != nil {
				return 0, 0, err
			}
		}
	}
	if err = l.timer.end(list); err != nil {
		return 0, 0, err
	}
	if _, err = l.env.submit(ctx, l.s); err != nil {
		return 0, 0, err
	}
	host = time.Since(start)
	device, err = l.timer.elapsed(l.s.Props)
	return host, device, err
}

func freePlaced(s *gpu.Session, err *error, bufs ...placedBuffer) {
	for _, b := range bufs {
		*err = multierr.Append(*err, b.free(s))
	}
}

// MemoryEffect runs the b = a + 100 integer kernel over items elements for
// the given number of iterations with the buffers placed as requested.
func MemoryEffect(ctx context.Context, env Env, placement Placement, items uint32, iterations int) (report *Report, err error) {
	if items == 0 {
		return nil, errors.New("vector size must be positive")
	}
	if iterations <= 0 {
		return nil, errors.New("iterations must be positive")
	}
	out := env.out()
	fmt.Fprintf(out, "SIZE: %d\n", items)
	fmt.Fprintf(out, "Using %s\n", placement)

	s, err := env.session()
	if err != nil {
		return nil, err
	}
	defer closeSession(s, &err)

	size := uint64(items) * 4
	var placed []placedBuffer
	defer func() { freePlaced(s, &err, placed...) }()
	for i := 0; i < 2; i++ {
		p, err := allocPlaced(env, s, placement, size)
		if err != nil {
			return nil, fmt.Errorf("failed to allocate %s: %w", placement, err)
		}
		placed = append(placed, p)
	}
	a, b := placed[0], placed[1]
	if err = multierr.Combine(gpu.FillInt32(a.host, 100), gpu.FillInt32(b.host, 0)); err != nil {
		return nil, err
	}

	timer, err := newGlobalTimer(s)
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, timer.free(s)) }()

	kernel, release, err := env.kernel(VectorAdditionModule, "vectorAddition")
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
	if err = multierr.Combine(kernel.SetArgumentBuffer(0, a.dev), kernel.SetArgumentBuffer(1, b.dev)); err != nil {
		return nil, err
	}

	launch := &placedLaunch{
		env:     env,
		s:       s,
		timer:   timer,
		kernel:  kernel,
		groups:  gpu.GroupCount{X: items / group.X, Y: 1, Z: 1},
		inputs:  []placedBuffer{a},
		outputs: []placedBuffer{b},
	}
	report = newReport("memory-effect", uint64(items))
	for i := 0; i < iterations; i++ {
		host, device, err := launch.run(ctx)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(out, "Host-Timer: %d ns\n", host.Nanoseconds())
		fmt.Fprintf(out, "Timer    : %d ns\n", device.Nanoseconds())
		report.add(SampleHostTimer, host)
		report.add(SampleGPUTimer, device)
	}

	in, _ := a.host.Int32s()
	res, _ := b.host.Int32s()
	ok := len(in) == len(res)
	for i := range res {
		if !ok {
			break
		}
		if res[i] != in[i]+100 {
			env.logger().Debug("Memory effect mismatch", zap.Int("index", i), zap.Int32("got", res[i]))
			ok = false
		}
	}
	report.Validation = validationOf(ok)
	fmt.Fprintf(out, "Results validation %s\n", report.Validation)
	return report, nil
}

// MemoryEffectMatrix multiplies two n x n integer matrices iterations times
// with the buffers placed as requested and reports the device time of every
// iteration.
func MemoryEffectMatrix(ctx context.Context, env Env, placement Placement, n uint32, iterations int, validate bool) (report *Report, err error) {
	if n == 0 {
		return nil, errors.New("matrix size must be positive")
	}
	if iterations <= 0 {
		return nil, errors.New("iterations must be positive")
	}
	out := env.out()
	fmt.Fprintf(out, "Matrix Size: %d x %d\n", n, n)
	fmt.Fprintf(out, "Using %s\n", placement)

	s, err := env.session()
	if err != nil {
		return nil, err
	}
	defer closeSession(s, &err)

	size := uint64(n) * uint64(n) * 4
	var placed []placedBuffer
	defer func() { freePlaced(s, &err, placed...) }()
	for i := 0; i < 3; i++ {
		p, err := allocPlaced(env, s, placement, size)
		if err != nil {
			return nil, fmt.Errorf("failed to allocate %s: %w", placement, err)
		}
		placed = append(placed, p)
	}
	a, b, c := placed[0], placed[1], placed[2]
	if err = multierr.Combine(gpu.FillInt32(a.host, 2), gpu.FillInt32(b.host, 3), gpu.FillInt32(c.host, 0)); err != nil {
		return nil, err
	}

	timer, err := newGlobalTimer(s)
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, timer.free(s)) }()

	kernel, release, err := env.kernel(MxMModule, "mxm")
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, release()) }()

	group, err := kernel.SuggestGroupSize(n, n, 1)
	if err != nil {
		return nil, err
	}
	if err = kernel.SetGroupSize(group); err != nil {
		return nil, err
	}
	if err = multierr.Combine(
		kernel.SetArgumentBuffer(0, a.dev),
		kernel.SetArgumentBuffer(1, b.dev),
		kernel.SetArgumentBuffer(2, c.dev),
		kernel.SetArgumentValue(3, int32(n)),
	); err != nil {
		return nil, err
	}

	launch := &placedLaunch{
		env:     env,
		s:       s,
		timer:   timer,
		kernel:  kernel,
		groups:  gpu.GroupCount{X: n / group.X, Y: n / group.Y, Z: 1},
		inputs:  []placedBuffer{a, b},
		outputs: []placedBuffer{c},
	}
	report = newReport("memory-effect-mxm", uint64(n))
	for i := 0; i < iterations; i++ {
		host, device, err := launch.run(ctx)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(out, "GPU-Timer: %d ns\n", device.Nanoseconds())
		report.add(SampleHostTimer, host)
		report.add(SampleGPUTimer, device)
	}
	gpuTimes := report.Values(SampleGPUTimer)
	fmt.Fprintf(out, "TIMER-FIRST-ITERATION: %d ns\n", gpuTimes[0].Nanoseconds())
	fmt.Fprintf(out, "TIMER-LAST-ITERATION: %d ns\n", gpuTimes[len(gpuTimes)-1].Nanoseconds())

	if validate {
		ma, _ := a.host.Int32s()
		mb, _ := b.host.Int32s()
		mc, _ := c.host.Int32s()
		idx := compareInt32(mc, MatMulInt32(ma, mb, int(n)))
		if idx >= 0 {
			env.logger().Debug("Matrix multiply mismatch", zap.Int("index", idx))
		}
		report.Validation = validationOf(idx < 0)
		fmt.Fprintf(out, "Matrix Multiply validation %s\n", report.Validation)
	}
	return report, nil
}
