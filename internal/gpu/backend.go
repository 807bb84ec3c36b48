package gpu

import (
	"context"
	"fmt"
)

// DeviceType mirrors ze_device_type_t.
type DeviceType uint32

const (
	DeviceTypeGPU  DeviceType = 1
	DeviceTypeCPU  DeviceType = 2
	DeviceTypeFPGA DeviceType = 3
	DeviceTypeMCA  DeviceType = 4
	DeviceTypeVPU  DeviceType = 5
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeGPU:
		return "GPU"
	case DeviceTypeCPU:
		return "CPU"
	case DeviceTypeFPGA:
		return "FPGA"
	case DeviceTypeMCA:
		return "MCA"
	case DeviceTypeVPU:
		return "VPU"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(t))
	}
}

// APIVersion is a driver API version packed as major<<16 | minor.
type APIVersion uint32

func MakeAPIVersion(major, minor uint32) APIVersion {
	return APIVersion(major<<16 | minor&0xffff)
}

func (v APIVersion) Major() uint32 { return uint32(v) >> 16 }
func (v APIVersion) Minor() uint32 { return uint32(v) & 0xffff }

func (v APIVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major(), v.Minor())
}

// AtLeast reports whether v is major.minor or newer.
func (v APIVersion) AtLeast(major, minor uint32) bool {
	return v >= MakeAPIVersion(major, minor)
}

// DeviceProperties contains the subset of ze_device_properties_t the
// benchmarks report or depend on.
type DeviceProperties struct {
	Name            string     `json:"name"`
	Type            DeviceType `json:"type"`
	VendorID        uint32     `json:"vendorId"`
	DeviceID        uint32     `json:"deviceId"`
	MaxMemAllocSize uint64     `json:"maxMemAllocSize"`
	// TimerResolution is nanoseconds per tick, or ticks per second when
	// CyclesPerSecond is set (drivers reporting API 1.2 and newer).
	TimerResolution          uint64     `json:"timerResolution"`
	CyclesPerSecond          bool       `json:"cyclesPerSecond"`
	TimestampValidBits       uint32     `json:"timestampValidBits"`
	KernelTimestampValidBits uint32     `json:"kernelTimestampValidBits"`
	APIVersion               APIVersion `json:"apiVersion"`
}

// QueueGroup describes one command queue group of the device.
type QueueGroup struct {
	Ordinal   uint32
	Compute   bool
	Copy      bool
	NumQueues uint32
}

// MemoryType selects where a Buffer lives.
type MemoryType int

const (
	// Heap is plain process memory that the driver does not manage.
	Heap MemoryType = iota
	Host
	Device
	Shared
)

func (m MemoryType) String() string {
	switch m {
	case Heap:
		return "Heap"
	case Host:
		return "Host"
	case Device:
		return "Device"
	case Shared:
		return "Shared"
	default:
		return fmt.Sprintf("MemoryType(%d)", int(m))
	}
}

// AllocOptions tune a single allocation.
type AllocOptions struct {
	Alignment uint64
	// Cached requests the BIAS_CACHED flag for device and shared memory.
	Cached bool
	// RelaxedLimits chains ze_relaxed_allocation_limits_exp_desc_t so that
	// allocations may exceed MaxMemAllocSize.
	RelaxedLimits bool
}

// GroupSize is the work-group shape of a kernel.
type GroupSize struct {
	X, Y, Z uint32
}

// GroupCount is the number of work-groups of a launch.
type GroupCount struct {
	X, Y, Z uint32
}

// ModuleSource is an IL binary ready to be handed to the driver.
type ModuleSource struct {
	// Name is the file name the binary was read from.
	Name       string
	IL         []byte
	BuildFlags string
}

// Backend is a compute driver able to run the benchmarks. The Level Zero
// backend talks to the real driver through cgo, the emulator runs everything
// in process.
//
// Initialize must be called before any other method except Name and
// IsAvailable. Cleanup destroys the context; every object created from the
// backend must be destroyed before that.
type Backend interface {
	// Name identifies the backend ("levelzero", "emulator").
	Name() string

	// IsAvailable performs a quick check without creating a context.
	IsAvailable() bool

	// Initialize initializes the driver and creates a context on the first
	// device of the first driver.
	Initialize() error

	Cleanup() error

	DeviceProperties() (DeviceProperties, error)
	QueueGroups() ([]QueueGroup, error)

	CreateCommandQueue(ordinal uint32) (CommandQueue, error)
	CreateCommandList(ordinal uint32) (CommandList, error)

	Alloc(kind MemoryType, size uint64, opts AllocOptions) (*Buffer, error)
	Free(buf *Buffer) error

	CreateModule(src ModuleSource) (Module, error)
	CreateEventPool(count uint32, kernelTimestamps bool) (EventPool, error)
}

// CommandQueue is an asynchronous, in-order queue.
type CommandQueue interface {
	Execute(lists ...CommandList) error
	// Synchronize blocks until all submitted lists completed. A context
	// deadline maps to ResultNotReady.
	Synchronize(ctx context.Context) error
	Destroy() error
}

// CommandList records commands until it is closed.
type CommandList interface {
	AppendLaunchKernel(k Kernel, groups GroupCount, signal Event) error
	AppendBarrier() error
	AppendMemoryCopy(dst, src *Buffer, size uint64) error
	// AppendWriteGlobalTimestamp writes the device global timestamp into the
	// first 8 bytes of dst.
	AppendWriteGlobalTimestamp(dst *Buffer) error
	// AppendQueryKernelTimestamps writes one ze_kernel_timestamp_result_t per
	// event into dst.
	AppendQueryKernelTimestamps(events []Event, dst *Buffer) error
	Close() error
	Reset() error
	Destroy() error
}

type Module interface {
	CreateKernel(name string) (Kernel, error)
	Destroy() error
}

type Kernel interface {
	Name() string
	SuggestGroupSize(globalX, globalY, globalZ uint32) (GroupSize, error)
	SetGroupSize(size GroupSize) error
	SetArgumentBuffer(index uint32, buf *Buffer) error
	// SetArgumentValue accepts int32, uint32, float32, int64, uint64 and
	// float64 scalars.
	SetArgumentValue(index uint32, value any) error
	Destroy() error
}

type EventPool interface {
	Event(index uint32) (Event, error)
	Destroy() error
}

type Event interface {
	Destroy() error
}
