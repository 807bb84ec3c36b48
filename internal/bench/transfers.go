package bench

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fxnlabs/zebench/internal/gpu"
)

// Sample names recorded by Transfers.
const (
	SharedToShared = "Shared->Shared"
	HeapToDevice   = "Heap->Device"
	DeviceToHeap   = "Device->Heap"
	DeviceToDevice = "Device->Device"
	HostToDevice   = "Host->Device"
	DeviceToHost   = "Device->Host"
)

// TransferSampleNames lists the Transfers samples in report order.
var TransferSampleNames = []string{
	SharedToShared, HeapToDevice, DeviceToHeap, DeviceToDevice, HostToDevice, DeviceToHost,
}

type transferProfile struct {
	name string
	run  func(ctx context.Context, t *transferRun) error
}

var transferProfiles = []transferProfile{
	{name: "shared", run: sharedProfile},
	{name: "heap", run: heapProfile},
	{name: "device", run: deviceProfile},
	{name: "host", run: hostProfile},
}

// transferRun is the state of one profile: its own session and timer.
type transferRun struct {
	env        Env
	s          *gpu.Session
	timer      *globalTimer
	size       uint64
	iterations int
	report     *Report
	validated  []bool
}

func (t *transferRun) out() io.Writer { return t.env.out() }

func (t *transferRun) alloc(kind gpu.MemoryType) (*gpu.Buffer, error) {
	return t.s.Alloc(kind, t.size, gpu.AllocOptions{Alignment: 64})
}

// timedCopy records ts, copy, barrier, ts and returns the device time.
func (t *transferRun) timedCopy(ctx context.Context, dst, src *gpu.Buffer) (time.Duration, error) {
	list := t.s.List
	if err := t.timer.begin(list); err != nil {
		return 0, err
	}
	if err := list.AppendMemoryCopy(dst, src, t.size); err != nil {
		return 0, err
	}
	if err := list.AppendBarrier(); err != nil {
		return 0, err
	}
	if err := t.timer.end(list); err != nil {
		return 0, err
	}
	if _, err := t.env.submit(ctx, t.s); err != nil {
		return 0, err
	}
	return t.timer.elapsed(t.s.Props)
}

// Transfers times memory copies of size bytes between every memory kind.
// Each profile runs in its own session. A profile whose allocation size the
// device rejects is reported as unsupported and skipped.
func Transfers(ctx context.Context, env Env, size uint64, iterations int) (*Report, error) {
	if size == 0 {
		return nil, errors.New("transfer size must be positive")
	}
	if iterations <= 0 {
		return nil, errors.New("iterations must be positive")
	}
	report := newReport("transfers", size)
	fmt.Fprintf(env.out(), "Transfer Size: %s\n", sizeString(size))

	var validated []bool
	for _, p := range transferProfiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := runTransferProfile(ctx, env, p, size, iterations, report)
		if gpu.IsResult(err, gpu.ResultErrorUnsupportedSize) {
			fmt.Fprintln(env.out(), "Size is too big. Unsupported")
			env.logger().Warn("Transfer profile skipped", zap.String("profile", p.name), zap.Error(err))
			report.Unsupported = append(report.Unsupported, p.name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s transfers: %w", p.name, err)
		}
		validated = append(validated, ok...)
	}

	if len(validated) > 0 {
		report.Validation = ValidationPassed
		for _, ok := range validated {
			if !ok {
				report.Validation = ValidationFailed
			}
		}
	}
	return report, nil
}

func runTransferProfile(ctx context.Context, env Env, p transferProfile, size uint64, iterations int, report *Report) (validated []bool, err error) {
	s, err := env.session()
	if err != nil {
		return nil, err
	}
	defer closeSession(s, &err)

	timer, err := newGlobalTimer(s)
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, timer.free(s)) }()

	t := &transferRun{env: env, s: s, timer: timer, size: size, iterations: iterations, report: report}
	if err = p.run(ctx, t); err != nil {
		return nil, err
	}
	return t.validated, nil
}

// fillPattern writes a recognizable byte pattern into a host visible buffer.
func fillPattern(buf *gpu.Buffer) error {
	raw, err := buf.Bytes()
	if err != nil {
		return err
	}
	for i := range raw {
		raw[i] = byte(i*7 + 3)
	}
	return nil
}

func sameBytes(a, b *gpu.Buffer) bool {
	x, err := a.Bytes()
	if err != nil {
		return false
	}
	y, err := b.Bytes()
	if err != nil {
		return false
	}
	return bytes.Equal(x, y)
}

func sharedProfile(ctx context.Context, t *transferRun) (err error) {
	var src, dst *gpu.Buffer
	defer func() { free(t.s, &err, src, dst) }()
	if src, err = t.alloc(gpu.Shared); err != nil {
		return err
	}
	if dst, err = t.alloc(gpu.Shared); err != nil {
		return err
	}
	if err = fillPattern(src); err != nil {
		return err
	}
	for i := 0; i < t.iterations; i++ {
		d, err := t.timedCopy(ctx, dst, src)
		if err != nil {
			return err
		}
		fmt.Fprintf(t.out(), "SHARED: %d ns\n", d.Nanoseconds())
		t.report.add(SharedToShared, d)
	}
	t.validated = append(t.validated, sameBytes(src, dst))
	return nil
}

func heapProfile(ctx context.Context, t *transferRun) (err error) {
	var heap, dev, back *gpu.Buffer
	defer func() { free(t.s, &err, heap, dev, back) }()
	if heap, err = t.alloc(gpu.Heap); err != nil {
		return err
	}
	if dev, err = t.alloc(gpu.Device); err != nil {
		return err
	}
	if back, err = t.alloc(gpu.Heap); err != nil {
		return err
	}
	if err = fillPattern(heap); err != nil {
		return err
	}
	for i := 0; i < t.iterations; i++ {
		in, err := t.timedCopy(ctx, dev, heap)
		if err != nil {
			return err
		}
		outward, err := t.timedCopy(ctx, back, dev)
		if err != nil {
			return err
		}
		fmt.Fprintf(t.out(), "-------------: \nHeap->Device: %d ns\nDevice->Heap: %d ns\n", in.Nanoseconds(), outward.Nanoseconds())
		t.report.add(HeapToDevice, in)
		t.report.add(DeviceToHeap, outward)
	}
	t.validated = append(t.validated, sameBytes(heap, back))
	return nil
}

func deviceProfile(ctx context.Context, t *transferRun) (err error) {
	var heap, a, b *gpu.Buffer
	defer func() { free(t.s, &err, heap, a, b) }()
	if heap, err = t.alloc(gpu.Heap); err != nil {
		return err
	}
	if a, err = t.alloc(gpu.Device); err != nil {
		return err
	}
	if b, err = t.alloc(gpu.Device); err != nil {
		return err
	}
	if err = fillPattern(heap); err != nil {
		return err
	}
	if err = t.s.List.AppendMemoryCopy(a, heap, t.size); err != nil {
		return err
	}
	if err = t.s.List.AppendBarrier(); err != nil {
		return err
	}
	if _, err = t.env.submit(ctx, t.s); err != nil {
		return err
	}
	for i := 0; i < t.iterations; i++ {
		d, err := t.timedCopy(ctx, b, a)
		if err != nil {
			return err
		}
		fmt.Fprintf(t.out(), "DEVICE->DEVICE: %d ns\n", d.Nanoseconds())
		t.report.add(DeviceToDevice, d)
	}
	return nil
}

func hostProfile(ctx context.Context, t *transferRun) (err error) {
	var host, dev *gpu.Buffer
	defer func() { free(t.s, &err, host, dev) }()
	if host, err = t.alloc(gpu.Host); err != nil {
		return err
	}
	if dev, err = t.alloc(gpu.Device); err != nil {
		return err
	}
	if err = fillPattern(host); err != nil {
		return err
	}
	for i := 0; i < t.iterations; i++ {
		in, err := t.timedCopy(ctx, dev, host)
		if err != nil {
			return err
		}
		fmt.Fprintf(t.out(), "HOST->DEVICE: %d ns\n", in.Nanoseconds())
		outward, err := t.timedCopy(ctx, host, dev)
		if err != nil {
			return err
		}
		fmt.Fprintf(t.out(), "DEVICE->HOST: %d ns\n", outward.Nanoseconds())
		t.report.add(HostToDevice, in)
		t.report.add(DeviceToHost, outward)
	}
	return nil
}
