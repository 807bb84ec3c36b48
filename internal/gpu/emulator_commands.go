package gpu

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"
)

// command is one recorded operation of an emulated command list.
type command func() error

type emuList struct {
	backend *EmulatorBackend
	ordinal uint32

	cmds []command
	// bufs are the buffers the recorded commands touch.
	bufs      []*Buffer
	closed    bool
	destroyed bool
	inFlight  atomic.Int32
}

func (l *emuList) appendCommand(call string, cmd command, bufs ...*Buffer) error {
	if l.destroyed {
		return resultError(call, ResultErrorInvalidNullHandle)
	}
	if l.closed {
		return resultError(call, ResultErrorInvalidArgument)
	}
	l.cmds = append(l.cmds, cmd)
	l.bufs = append(l.bufs, bufs...)
	return nil
}

func (l *emuList) AppendLaunchKernel(k Kernel, groups GroupCount, signal Event) error {
	const call = "zeCommandListAppendLaunchKernel"
	kernel, ok := k.(*emuKernel)
	if !ok || kernel == nil || kernel.destroyed {
		return resultError(call, ResultErrorInvalidNullHandle)
	}
	var ev *emuEvent
	if signal != nil {
		if ev, ok = signal.(*emuEvent); !ok || ev.destroyed {
			return resultError(call, ResultErrorInvalidNullHandle)
		}
	}
	// Arguments and group size are captured at append time.
	launch, err := kernel.snapshot(groups)
	if err != nil {
		return err
	}
	return l.appendCommand(call, func() error {
		start := l.backend.ticks()
		runErr := launch.run()
		end := l.backend.ticks()
		if ev != nil {
			ev.signal(start, end)
		}
		return runErr
	}, launch.buffers()...)
}

func (l *emuList) AppendBarrier() error {
	// Commands of an emulated list already execute in order.
	return l.appendCommand("zeCommandListAppendBarrier", func() error { return nil })
}

func (l *emuList) AppendMemoryCopy(dst, src *Buffer, size uint64) error {
	const call = "zeCommandListAppendMemoryCopy"
	if dst == nil || src == nil {
		return resultError(call, ResultErrorInvalidNullPointer)
	}
	if dst.freed || src.freed {
		return resultError(call, ResultErrorInvalidArgument)
	}
	if size > dst.size || size > src.size {
		return resultError(call, ResultErrorInvalidSize)
	}
	if dst == src {
		return resultError(call, ResultErrorOverlappingRegions)
	}
	return l.appendCommand(call, func() error {
		copy(dst.raw()[:size], src.raw()[:size])
		return nil
	}, dst, src)
}

func (l *emuList) AppendWriteGlobalTimestamp(dst *Buffer) error {
	const call = "zeCommandListAppendWriteGlobalTimestamp"
	if dst == nil {
		return resultError(call, ResultErrorInvalidNullPointer)
	}
	if dst.size < 8 {
		return resultError(call, ResultErrorInvalidSize)
	}
	return l.appendCommand(call, func() error {
		binary.NativeEndian.PutUint64(dst.raw(), l.backend.ticks())
		return nil
	}, dst)
}

func (l *emuList) AppendQueryKernelTimestamps(events []Event, dst *Buffer) error {
	const call = "zeCommandListAppendQueryKernelTimestamps"
	if dst == nil {
		return resultError(call, ResultErrorInvalidNullPointer)
	}
	if len(events) == 0 {
		return resultError(call, ResultErrorInvalidArgument)
	}
	if dst.size < uint64(len(events))*KernelTimestampSize {
		return resultError(call, ResultErrorInvalidSize)
	}
	evs := make([]*emuEvent, len(events))
	for i, e := range events {
		ev, ok := e.(*emuEvent)
		if !ok || ev == nil || ev.destroyed {
			return resultError(call, ResultErrorInvalidNullHandle)
		}
		if !ev.pool.kernelTimestamps {
			return resultError(call, ResultErrorInvalidArgument)
		}
		evs[i] = ev
	}
	return l.appendCommand(call, func() error {
		raw := dst.raw()
		for i, ev := range evs {
			ts := ev.timestamp()
			out := raw[i*KernelTimestampSize:]
			binary.NativeEndian.PutUint64(out[0:], ts.GlobalStart)
			binary.NativeEndian.PutUint64(out[8:], ts.GlobalEnd)
			binary.NativeEndian.PutUint64(out[16:], ts.ContextStart)
			binary.NativeEndian.PutUint64(out[24:], ts.ContextEnd)
		}
		return nil
	}, dst)
}

func (l *emuList) Close() error {
	if l.destroyed {
		return resultError("zeCommandListClose", ResultErrorInvalidNullHandle)
	}
	if l.closed {
		return resultError("zeCommandListClose", ResultErrorInvalidArgument)
	}
	l.closed = true
	return nil
}

func (l *emuList) Reset() error {
	if l.destroyed {
		return resultError("zeCommandListReset", ResultErrorInvalidNullHandle)
	}
	if l.inFlight.Load() > 0 {
		return resultError("zeCommandListReset", ResultErrorHandleObjectInUse)
	}
	l.cmds = nil
	l.bufs = nil
	l.closed = false
	return nil
}

func (l *emuList) Destroy() error {
	if l.destroyed {
		return resultError("zeCommandListDestroy", ResultErrorInvalidNullHandle)
	}
	if l.inFlight.Load() > 0 {
		return resultError("zeCommandListDestroy", ResultErrorHandleObjectInUse)
	}
	l.destroyed = true
	l.cmds = nil
	l.bufs = nil
	l.backend.live.Add(-1)
	return nil
}

type emuQueue struct {
	backend *EmulatorBackend
	ordinal uint32

	mu        sync.Mutex
	tail      chan struct{}
	err       error
	destroyed bool
}

// Execute snapshots the closed lists and runs them on a worker goroutine
// after every previous submission of this queue finished.
func (q *emuQueue) Execute(lists ...CommandList) error {
	const call = "zeCommandQueueExecuteCommandLists"
	if len(lists) == 0 {
		return resultError(call, ResultErrorInvalidSize)
	}
	emuLists := make([]*emuList, len(lists))
	var cmds []command
	var bufs []*Buffer
	for i, cl := range lists {
		l, ok := cl.(*emuList)
		if !ok || l == nil || l.destroyed {
			return resultError(call, ResultErrorInvalidNullHandle)
		}
		if !l.closed {
			return resultError(call, ResultErrorInvalidArgument)
		}
		if l.ordinal != q.ordinal {
			return resultError(call, ResultErrorInvalidCommandListType)
		}
		emuLists[i] = l
		cmds = append(cmds, l.cmds...)
		bufs = append(bufs, l.bufs...)
	}

	q.mu.Lock()
	if q.destroyed {
		q.mu.Unlock()
		return resultError(call, ResultErrorInvalidNullHandle)
	}
	prev := q.tail
	done := make(chan struct{})
	q.tail = done
	q.mu.Unlock()

	for _, l := range emuLists {
		l.inFlight.Add(1)
	}
	for _, b := range bufs {
		b.pending.Add(1)
	}
	go func() {
		defer close(done)
		defer func() {
			for _, b := range bufs {
				b.pending.Add(-1)
			}
			for _, l := range emuLists {
				l.inFlight.Add(-1)
			}
		}()
		if prev != nil {
			<-prev
		}
		for _, cmd := range cmds {
			if err := cmd(); err != nil {
				q.mu.Lock()
				if q.err == nil {
					q.err = err
				}
				q.mu.Unlock()
				return
			}
		}
	}()
	return nil
}

func (q *emuQueue) Synchronize(ctx context.Context) error {
	q.mu.Lock()
	tail := q.tail
	q.mu.Unlock()
	if tail != nil {
		select {
		case <-tail:
		case <-ctx.Done():
			return resultError("zeCommandQueueSynchronize", ResultNotReady)
		}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	err := q.err
	q.err = nil
	return err
}

func (q *emuQueue) Destroy() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.destroyed {
		return resultError("zeCommandQueueDestroy", ResultErrorInvalidNullHandle)
	}
	if q.tail != nil {
		select {
		case <-q.tail:
		default:
			return resultError("zeCommandQueueDestroy", ResultErrorHandleObjectInUse)
		}
	}
	q.destroyed = true
	q.backend.live.Add(-1)
	return nil
}

type emuEventPool struct {
	backend          *EmulatorBackend
	count            uint32
	kernelTimestamps bool

	mu        sync.Mutex
	events    int
	destroyed bool
}

func (p *emuEventPool) Event(index uint32) (Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return nil, resultError("zeEventCreate", ResultErrorInvalidNullHandle)
	}
	if index >= p.count {
		return nil, resultError("zeEventCreate", ResultErrorInvalidArgument)
	}
	p.events++
	p.backend.live.Add(1)
	return &emuEvent{pool: p, index: index}, nil
}

func (p *emuEventPool) Destroy() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return resultError("zeEventPoolDestroy", ResultErrorInvalidNullHandle)
	}
	if p.events > 0 {
		return resultError("zeEventPoolDestroy", ResultErrorHandleObjectInUse)
	}
	p.destroyed = true
	p.backend.live.Add(-1)
	return nil
}

type emuEvent struct {
	pool      *emuEventPool
	index     uint32
	destroyed bool

	mu       sync.Mutex
	ts       KernelTimestamp
	signaled bool
}

// signal records the kernel execution window, masked to the kernel
// timestamp width of the emulated device.
func (e *emuEvent) signal(start, end uint64) {
	const mask = 1<<32 - 1
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ts = KernelTimestamp{
		GlobalStart:  start & mask,
		GlobalEnd:    end & mask,
		ContextStart: start & mask,
		ContextEnd:   end & mask,
	}
	e.signaled = true
}

func (e *emuEvent) timestamp() KernelTimestamp {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ts
}

func (e *emuEvent) Destroy() error {
	if e.destroyed {
		return resultError("zeEventDestroy", ResultErrorInvalidNullHandle)
	}
	e.destroyed = true
	e.pool.mu.Lock()
	e.pool.events--
	e.pool.mu.Unlock()
	e.pool.backend.live.Add(-1)
	return nil
}
