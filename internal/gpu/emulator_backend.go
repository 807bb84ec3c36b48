package gpu

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	emulatorDeviceName = "Emulated Level Zero Device"

	emulatorMaxAlloc        uint64 = 4 << 30
	emulatorRelaxedMaxAlloc uint64 = 16 << 30

	emulatorMaxGroupSize = 256
)

// EmulatorBackend implements Backend in process. Device memory is ordinary Go
// memory, kernels are Go functions registered per SPIR-V module name and the
// device clock is the host monotonic clock at 1ns resolution.
type EmulatorBackend struct {
	logger *zap.Logger

	mu          sync.Mutex
	initialized bool
	epoch       time.Time

	// live counts objects created through the backend that were not
	// destroyed yet.
	live atomic.Int64
}

// NewEmulatorBackend creates a new emulator backend instance
func NewEmulatorBackend(logger *zap.Logger) *EmulatorBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmulatorBackend{
		logger: logger,
	}
}

func (e *EmulatorBackend) Name() string { return "emulator" }

// IsAvailable checks if the backend is available (always true for the emulator)
func (e *EmulatorBackend) IsAvailable() bool {
	return true
}

// Initialize prepares the emulator for use
func (e *EmulatorBackend) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		return nil
	}
	e.initialized = true
	e.epoch = time.Now()
	e.logger.Debug("Emulator backend initialized")
	return nil
}

// Cleanup destroys the emulated context. It fails while objects created
// from the context are still alive.
func (e *EmulatorBackend) Cleanup() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return nil
	}
	if n := e.live.Load(); n > 0 {
		e.logger.Warn("Context destroyed with live objects", zap.Int64("objects", n))
		return resultError("zeContextDestroy", ResultErrorHandleObjectInUse)
	}
	e.initialized = false
	return nil
}

// LiveObjects returns the number of buffers, queues, lists, modules, kernels,
// pools and events that were created and not destroyed yet.
func (e *EmulatorBackend) LiveObjects() int64 {
	return e.live.Load()
}

func (e *EmulatorBackend) ready(call string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return resultError(call, ResultErrorUninitialized)
	}
	return nil
}

// ticks returns the device global timestamp.
func (e *EmulatorBackend) ticks() uint64 {
	return uint64(time.Since(e.epoch))
}

func (e *EmulatorBackend) DeviceProperties() (DeviceProperties, error) {
	if err := e.ready("zeDeviceGetProperties"); err != nil {
		return DeviceProperties{}, err
	}
	return DeviceProperties{
		Name:                     emulatorDeviceName,
		Type:                     DeviceTypeGPU,
		MaxMemAllocSize:          emulatorMaxAlloc,
		TimerResolution:          uint64(time.Second),
		CyclesPerSecond:          true,
		TimestampValidBits:       64,
		KernelTimestampValidBits: 32,
		APIVersion:               MakeAPIVersion(1, 3),
	}, nil
}

func (e *EmulatorBackend) QueueGroups() ([]QueueGroup, error) {
	if err := e.ready("zeDeviceGetCommandQueueGroupProperties"); err != nil {
		return nil, err
	}
	return []QueueGroup{
		{Ordinal: 0, Compute: true, Copy: true, NumQueues: 1},
		{Ordinal: 1, Copy: true, NumQueues: 2},
	}, nil
}

func (e *EmulatorBackend) checkOrdinal(call string, ordinal uint32) error {
	if err := e.ready(call); err != nil {
		return err
	}
	groups, _ := e.QueueGroups()
	if int(ordinal) >= len(groups) {
		return resultError(call, ResultErrorInvalidArgument)
	}
	return nil
}

func (e *EmulatorBackend) CreateCommandQueue(ordinal uint32) (CommandQueue, error) {
	if err := e.checkOrdinal("zeCommandQueueCreate", ordinal); err != nil {
		return nil, err
	}
	e.live.Add(1)
	return &emuQueue{backend: e, ordinal: ordinal}, nil
}

func (e *EmulatorBackend) CreateCommandList(ordinal uint32) (CommandList, error) {
	if err := e.checkOrdinal("zeCommandListCreate", ordinal); err != nil {
		return nil, err
	}
	e.live.Add(1)
	return &emuList{backend: e, ordinal: ordinal}, nil
}

// Alloc reserves an emulated allocation. Nothing is backed by memory until
// the buffer is first touched, so large allocations only fail on the limits.
func (e *EmulatorBackend) Alloc(kind MemoryType, size uint64, opts AllocOptions) (*Buffer, error) {
	call := allocCall(kind)
	if err := e.ready(call); err != nil {
		return nil, err
	}
	switch kind {
	case Heap, Host, Device, Shared:
	default:
		return nil, resultError(call, ResultErrorInvalidEnumeration)
	}
	if size == 0 {
		return nil, resultError(call, ResultErrorUnsupportedSize)
	}
	if opts.Alignment&(opts.Alignment-1) != 0 {
		return nil, resultError(call, ResultErrorUnsupportedAlignment)
	}
	if kind != Heap {
		limit := emulatorMaxAlloc
		if opts.RelaxedLimits {
			limit = emulatorRelaxedMaxAlloc
		}
		if size > limit {
			return nil, resultError(call, ResultErrorUnsupportedSize)
		}
	}
	e.live.Add(1)
	return &Buffer{kind: kind, size: size}, nil
}

func (e *EmulatorBackend) Free(buf *Buffer) error {
	call := freeCall(buf)
	if buf == nil {
		return resultError(call, ResultErrorInvalidNullPointer)
	}
	if buf.freed {
		return resultError(call, ResultErrorInvalidArgument)
	}
	if buf.pending.Load() > 0 {
		return resultError(call, ResultErrorHandleObjectInUse)
	}
	buf.freed = true
	buf.backing = nil
	e.live.Add(-1)
	return nil
}

// CreateModule checks the SPIR-V header and binds the module to the kernels
// registered for its file name.
func (e *EmulatorBackend) CreateModule(src ModuleSource) (Module, error) {
	if err := e.ready("zeModuleCreate"); err != nil {
		return nil, err
	}
	if !IsSPIRV(src.IL) {
		return nil, errors.WithStack(&ResultError{
			Call:     "zeModuleCreate",
			Code:     ResultErrorInvalidNativeBinary,
			BuildLog: "error: invalid SPIR-V header in " + src.Name,
		})
	}
	e.live.Add(1)
	name := filepath.Base(src.Name)
	return &emuModule{backend: e, name: name, kernels: emulatedKernels[name]}, nil
}

func (e *EmulatorBackend) CreateEventPool(count uint32, kernelTimestamps bool) (EventPool, error) {
	if err := e.ready("zeEventPoolCreate"); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, resultError("zeEventPoolCreate", ResultErrorInvalidSize)
	}
	e.live.Add(1)
	return &emuEventPool{backend: e, count: count, kernelTimestamps: kernelTimestamps}, nil
}

func allocCall(kind MemoryType) string {
	switch kind {
	case Host:
		return "zeMemAllocHost"
	case Device:
		return "zeMemAllocDevice"
	case Shared:
		return "zeMemAllocShared"
	case Heap:
		return "malloc"
	default:
		return "zeMemAlloc"
	}
}

func freeCall(buf *Buffer) string {
	if buf != nil && buf.kind == Heap {
		return "free"
	}
	return "zeMemFree"
}
