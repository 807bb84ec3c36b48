package gpu

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrNoQueueGroups is returned when the device exposes no command queue group.
var ErrNoQueueGroups = errors.New("No queue groups found")

// SelectComputeOrdinal returns the ordinal of the last queue group with the
// compute flag. When no group has it, ordinal 0 is used.
func SelectComputeOrdinal(groups []QueueGroup) (uint32, error) {
	if len(groups) == 0 {
		return 0, ErrNoQueueGroups
	}
	var ordinal uint32
	for _, g := range groups {
		if g.Compute {
			ordinal = g.Ordinal
		}
	}
	return ordinal, nil
}

// Session is an initialized context with one compute queue and one command
// list on the same queue group.
type Session struct {
	Backend     Backend
	Props       DeviceProperties
	QueueGroups []QueueGroup
	Ordinal     uint32
	Queue       CommandQueue
	List        CommandList

	logger *zap.Logger
}

// NewSession initializes the backend and creates the queue and list. On
// error everything created so far is torn down again.
func NewSession(backend Backend, logger *zap.Logger) (s *Session, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err = backend.Initialize(); err != nil {
		return nil, err
	}
	s = &Session{Backend: backend, logger: logger}
	defer func() {
		if err != nil {
			err = multierr.Append(err, s.Close())
			s = nil
		}
	}()

	if s.Props, err = backend.DeviceProperties(); err != nil {
		return s, err
	}
	if s.QueueGroups, err = backend.QueueGroups(); err != nil {
		return s, err
	}
	if s.Ordinal, err = SelectComputeOrdinal(s.QueueGroups); err != nil {
		return s, err
	}
	if s.Queue, err = backend.CreateCommandQueue(s.Ordinal); err != nil {
		return s, err
	}
	if s.List, err = backend.CreateCommandList(s.Ordinal); err != nil {
		return s, err
	}
	logger.Debug("Session created",
		zap.String("backend", backend.Name()),
		zap.String("device", s.Props.Name),
		zap.Uint32("ordinal", s.Ordinal))
	return s, nil
}

// Close destroys the list, the queue and the context in that order.
func (s *Session) Close() error {
	var err error
	if s.List != nil {
		err = multierr.Append(err, s.List.Destroy())
		s.List = nil
	}
	if s.Queue != nil {
		err = multierr.Append(err, s.Queue.Destroy())
		s.Queue = nil
	}
	return multierr.Append(err, s.Backend.Cleanup())
}

// Alloc allocates through the session backend.
func (s *Session) Alloc(kind MemoryType, size uint64, opts AllocOptions) (*Buffer, error) {
	return s.Backend.Alloc(kind, size, opts)
}

// Free releases every non-nil buffer and merges the failures.
func (s *Session) Free(bufs ...*Buffer) error {
	var err error
	for _, b := range bufs {
		if b == nil || b.freed {
			continue
		}
		err = multierr.Append(err, s.Backend.Free(b))
	}
	return err
}

// Submit closes the session list, executes it, waits for completion and
// resets it for reuse. The returned duration is the host time spent from
// execute to completion.
func (s *Session) Submit(ctx context.Context) (time.Duration, error) {
	return Submit(ctx, s.Queue, s.List)
}

// Submit closes list, runs it on queue and resets it once the queue is idle.
// When ctx ends first the NOT_READY error is returned, but only after the
// queue drained.
func Submit(ctx context.Context, queue CommandQueue, list CommandList) (time.Duration, error) {
	if err := list.Close(); err != nil {
		return 0, err
	}
	start := time.Now()
	if err := queue.Execute(list); err != nil {
		return 0, multierr.Append(err, list.Reset())
	}
	if err := queue.Synchronize(ctx); err != nil {
		elapsed := time.Since(start)
		if IsResult(err, ResultNotReady) {
			// The lists are still running. Wait for them so nothing they
			// reference is released underneath the device.
			err = multierr.Append(err, queue.Synchronize(context.Background()))
			err = multierr.Append(err, list.Reset())
		}
		return elapsed, err
	}
	elapsed := time.Since(start)
	return elapsed, list.Reset()
}

// LoadModule reads a SPIR-V file from dir and builds it on the backend.
func LoadModule(backend Backend, dir, file, buildFlags string) (Module, error) {
	path := filepath.Join(dir, file)
	il, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("SPIR-V binary file not found: %s", path)
		}
		return nil, errors.Wrapf(err, "failed to read SPIR-V binary %s", path)
	}
	return backend.CreateModule(ModuleSource{Name: file, IL: il, BuildFlags: buildFlags})
}

// CreateKernel loads file from dir and creates the named kernel. The returned
// release function destroys the kernel and then the module.
func CreateKernel(backend Backend, dir, file, name string) (Kernel, func() error, error) {
	module, err := LoadModule(backend, dir, file, "")
	if err != nil {
		return nil, nil, err
	}
	kernel, err := module.CreateKernel(name)
	if err != nil {
		return nil, nil, multierr.Append(err, module.Destroy())
	}
	release := func() error {
		return multierr.Append(kernel.Destroy(), module.Destroy())
	}
	return kernel, release, nil
}
