//go:build levelzero

package gpu

/*
#cgo LDFLAGS: -lze_loader
#include <level_zero/ze_api.h>
#include <stdlib.h>
#include <string.h>

#define ZB_HOST   1
#define ZB_DEVICE 2
#define ZB_SHARED 3

static ze_result_t zb_init(void) {
	return zeInit(ZE_INIT_FLAG_GPU_ONLY);
}

static ze_result_t zb_first_driver(ze_driver_handle_t *driver) {
	uint32_t count = 0;
	ze_result_t res = zeDriverGet(&count, NULL);
	if (res != ZE_RESULT_SUCCESS) {
		return res;
	}
	if (count == 0) {
		return ZE_RESULT_ERROR_UNINITIALIZED;
	}
	count = 1;
	return zeDriverGet(&count, driver);
}

static ze_result_t zb_first_device(ze_driver_handle_t driver, ze_device_handle_t *device) {
	uint32_t count = 0;
	ze_result_t res = zeDeviceGet(driver, &count, NULL);
	if (res != ZE_RESULT_SUCCESS) {
		return res;
	}
	if (count == 0) {
		return ZE_RESULT_ERROR_UNINITIALIZED;
	}
	count = 1;
	return zeDeviceGet(driver, &count, device);
}

static ze_result_t zb_create_context(ze_driver_handle_t driver, ze_context_handle_t *context) {
	ze_context_desc_t desc = {ZE_STRUCTURE_TYPE_CONTEXT_DESC};
	return zeContextCreate(driver, &desc, context);
}

static ze_result_t zb_device_properties(ze_device_handle_t device, int v12, ze_device_properties_t *props) {
	memset(props, 0, sizeof(*props));
	props->stype = v12 ? ZE_STRUCTURE_TYPE_DEVICE_PROPERTIES_1_2 : ZE_STRUCTURE_TYPE_DEVICE_PROPERTIES;
	return zeDeviceGetProperties(device, props);
}

static ze_result_t zb_queue_group_count(ze_device_handle_t device, uint32_t *count) {
	*count = 0;
	return zeDeviceGetCommandQueueGroupProperties(device, count, NULL);
}

static ze_result_t zb_queue_groups(ze_device_handle_t device, uint32_t count, ze_command_queue_group_properties_t *props) {
	for (uint32_t i = 0; i < count; i++) {
		memset(&props[i], 0, sizeof(props[i]));
		props[i].stype = ZE_STRUCTURE_TYPE_COMMAND_QUEUE_GROUP_PROPERTIES;
	}
	return zeDeviceGetCommandQueueGroupProperties(device, &count, props);
}

static ze_result_t zb_create_queue(ze_context_handle_t context, ze_device_handle_t device, uint32_t ordinal, ze_command_queue_handle_t *queue) {
	ze_command_queue_desc_t desc = {ZE_STRUCTURE_TYPE_COMMAND_QUEUE_DESC};
	desc.ordinal = ordinal;
	desc.index = 0;
	desc.mode = ZE_COMMAND_QUEUE_MODE_ASYNCHRONOUS;
	return zeCommandQueueCreate(context, device, &desc, queue);
}

static ze_result_t zb_create_list(ze_context_handle_t context, ze_device_handle_t device, uint32_t ordinal, ze_command_list_handle_t *list) {
	ze_command_list_desc_t desc = {ZE_STRUCTURE_TYPE_COMMAND_LIST_DESC};
	desc.commandQueueGroupOrdinal = ordinal;
	return zeCommandListCreate(context, device, &desc, list);
}

static ze_result_t zb_alloc(ze_context_handle_t context, ze_device_handle_t device, int kind,
		size_t size, size_t alignment, int cached, int relaxed, void **out) {
	ze_relaxed_allocation_limits_exp_desc_t relax = {
		ZE_STRUCTURE_TYPE_RELAXED_ALLOCATION_LIMITS_EXP_DESC,
		NULL,
		ZE_RELAXED_ALLOCATION_LIMITS_EXP_FLAG_MAX_SIZE
	};
	ze_device_mem_alloc_desc_t deviceDesc = {ZE_STRUCTURE_TYPE_DEVICE_MEM_ALLOC_DESC};
	ze_host_mem_alloc_desc_t hostDesc = {ZE_STRUCTURE_TYPE_HOST_MEM_ALLOC_DESC};
	if (cached) {
		deviceDesc.flags = ZE_DEVICE_MEM_ALLOC_FLAG_BIAS_CACHED;
	}
	if (relaxed) {
		deviceDesc.pNext = &relax;
		hostDesc.pNext = &relax;
	}
	switch (kind) {
	case ZB_HOST:
		return zeMemAllocHost(context, &hostDesc, size, alignment, out);
	case ZB_DEVICE:
		return zeMemAllocDevice(context, &deviceDesc, size, alignment, device, out);
	case ZB_SHARED:
		return zeMemAllocShared(context, &deviceDesc, &hostDesc, size, alignment, device, out);
	}
	return ZE_RESULT_ERROR_INVALID_ENUMERATION;
}

static int zb_heap_alloc(size_t size, size_t alignment, void **out) {
	if (alignment < sizeof(void *)) {
		alignment = sizeof(void *);
	}
	return posix_memalign(out, alignment, size);
}

static ze_result_t zb_create_module(ze_context_handle_t context, ze_device_handle_t device,
		const uint8_t *il, size_t length, const char *flags,
		ze_module_handle_t *module, char **log, size_t *logLength) {
	ze_module_desc_t desc = {ZE_STRUCTURE_TYPE_MODULE_DESC};
	ze_module_build_log_handle_t buildLog = NULL;
	desc.format = ZE_MODULE_FORMAT_IL_SPIRV;
	desc.inputSize = length;
	desc.pInputModule = il;
	desc.pBuildFlags = flags;

	*log = NULL;
	*logLength = 0;
	ze_result_t res = zeModuleCreate(context, device, &desc, module, &buildLog);
	if (res != ZE_RESULT_SUCCESS && buildLog != NULL) {
		size_t n = 0;
		if (zeModuleBuildLogGetString(buildLog, &n, NULL) == ZE_RESULT_SUCCESS && n > 0) {
			*log = malloc(n);
			if (*log != NULL && zeModuleBuildLogGetString(buildLog, &n, *log) == ZE_RESULT_SUCCESS) {
				*logLength = n;
			}
		}
	}
	if (buildLog != NULL) {
		zeModuleBuildLogDestroy(buildLog);
	}
	return res;
}

static ze_result_t zb_create_kernel(ze_module_handle_t module, const char *name, ze_kernel_handle_t *kernel) {
	ze_kernel_desc_t desc = {ZE_STRUCTURE_TYPE_KERNEL_DESC};
	desc.pKernelName = name;
	return zeKernelCreate(module, &desc, kernel);
}

static ze_result_t zb_launch(ze_command_list_handle_t list, ze_kernel_handle_t kernel,
		uint32_t x, uint32_t y, uint32_t z, ze_event_handle_t signal) {
	ze_group_count_t groups = {x, y, z};
	return zeCommandListAppendLaunchKernel(list, kernel, &groups, signal, 0, NULL);
}

static ze_result_t zb_barrier(ze_command_list_handle_t list) {
	return zeCommandListAppendBarrier(list, NULL, 0, NULL);
}

static ze_result_t zb_copy(ze_command_list_handle_t list, void *dst, const void *src, size_t size) {
	return zeCommandListAppendMemoryCopy(list, dst, src, size, NULL, 0, NULL);
}

static ze_result_t zb_write_timestamp(ze_command_list_handle_t list, void *dst) {
	return zeCommandListAppendWriteGlobalTimestamp(list, (uint64_t *)dst, NULL, 0, NULL);
}

static ze_result_t zb_query_timestamps(ze_command_list_handle_t list, uint32_t count, ze_event_handle_t *events, void *dst) {
	return zeCommandListAppendQueryKernelTimestamps(list, count, events, dst, NULL, NULL, 0, NULL);
}

static ze_result_t zb_create_event_pool(ze_context_handle_t context, ze_device_handle_t device,
		uint32_t count, int timestamps, ze_event_pool_handle_t *pool) {
	ze_event_pool_desc_t desc = {ZE_STRUCTURE_TYPE_EVENT_POOL_DESC};
	desc.count = count;
	desc.flags = ZE_EVENT_POOL_FLAG_HOST_VISIBLE;
	if (timestamps) {
		desc.flags |= ZE_EVENT_POOL_FLAG_KERNEL_TIMESTAMP;
	}
	return zeEventPoolCreate(context, &desc, 1, &device, pool);
}

static ze_result_t zb_create_event(ze_event_pool_handle_t pool, uint32_t index, ze_event_handle_t *event) {
	ze_event_desc_t desc = {ZE_STRUCTURE_TYPE_EVENT_DESC};
	desc.index = index;
	desc.signal = ZE_EVENT_SCOPE_FLAG_HOST;
	desc.wait = ZE_EVENT_SCOPE_FLAG_HOST;
	return zeEventCreate(pool, &desc, event);
}
*/
import "C"

import (
	"context"
	"math"
	"sync"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// synchronizePoll bounds each zeCommandQueueSynchronize call when the
// caller's context can be cancelled.
const synchronizePoll = 10 * time.Millisecond

func check(call string, res C.ze_result_t) error {
	return resultError(call, Result(res))
}

// LevelZeroBackend implements Backend on top of the Level Zero loader.
type LevelZeroBackend struct {
	logger *zap.Logger

	mu          sync.Mutex
	initialized bool
	driver      C.ze_driver_handle_t
	context     C.ze_context_handle_t
	device      C.ze_device_handle_t
	props       DeviceProperties

	availableOnce sync.Once
	available     bool
}

// NewLevelZeroBackend creates a new Level Zero backend instance
func NewLevelZeroBackend(logger *zap.Logger) *LevelZeroBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LevelZeroBackend{logger: logger}
}

func (z *LevelZeroBackend) Name() string { return "levelzero" }

// IsAvailable initializes the loader once and checks that a GPU driver is
// present. No context is created.
func (z *LevelZeroBackend) IsAvailable() bool {
	z.availableOnce.Do(func() {
		if err := check("zeInit", C.zb_init()); err != nil {
			z.logger.Warn("Level Zero not available", zap.Error(err))
			return
		}
		var driver C.ze_driver_handle_t
		if err := check("zeDriverGet", C.zb_first_driver(&driver)); err != nil {
			z.logger.Warn("No Level Zero driver found", zap.Error(err))
			return
		}
		z.available = true
	})
	return z.available
}

func (z *LevelZeroBackend) Initialize() error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.initialized {
		return nil
	}

	if err := check("zeInit", C.zb_init()); err != nil {
		return err
	}
	if err := check("zeDriverGet", C.zb_first_driver(&z.driver)); err != nil {
		return err
	}
	if err := check("zeContextCreate", C.zb_create_context(z.driver, &z.context)); err != nil {
		return err
	}
	if err := check("zeDeviceGet", C.zb_first_device(z.driver, &z.device)); err != nil {
		_ = C.zeContextDestroy(z.context)
		return err
	}

	var version C.ze_api_version_t
	if err := check("zeDriverGetApiVersion", C.zeDriverGetApiVersion(z.driver, &version)); err != nil {
		_ = C.zeContextDestroy(z.context)
		return err
	}
	api := APIVersion(version)
	v12 := api.AtLeast(1, 2)

	var p C.ze_device_properties_t
	cV12 := C.int(0)
	if v12 {
		cV12 = 1
	}
	if err := check("zeDeviceGetProperties", C.zb_device_properties(z.device, cV12, &p)); err != nil {
		_ = C.zeContextDestroy(z.context)
		return err
	}
	z.props = DeviceProperties{
		Name:                     C.GoString(&p.name[0]),
		Type:                     DeviceType(p._type),
		VendorID:                 uint32(p.vendorId),
		DeviceID:                 uint32(p.deviceId),
		MaxMemAllocSize:          uint64(p.maxMemAllocSize),
		TimerResolution:          uint64(p.timerResolution),
		CyclesPerSecond:          v12,
		TimestampValidBits:       uint32(p.timestampValidBits),
		KernelTimestampValidBits: uint32(p.kernelTimestampValidBits),
		APIVersion:               api,
	}
	z.initialized = true
	z.logger.Info("Level Zero backend initialized",
		zap.String("device", z.props.Name),
		zap.Stringer("api", api))
	return nil
}

func (z *LevelZeroBackend) Cleanup() error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if !z.initialized {
		return nil
	}
	z.initialized = false
	return check("zeContextDestroy", C.zeContextDestroy(z.context))
}

func (z *LevelZeroBackend) ready(call string) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if !z.initialized {
		return resultError(call, ResultErrorUninitialized)
	}
	return nil
}

func (z *LevelZeroBackend) DeviceProperties() (DeviceProperties, error) {
	if err := z.ready("zeDeviceGetProperties"); err != nil {
		return DeviceProperties{}, err
	}
	return z.props, nil
}

func (z *LevelZeroBackend) QueueGroups() ([]QueueGroup, error) {
	const call = "zeDeviceGetCommandQueueGroupProperties"
	if err := z.ready(call); err != nil {
		return nil, err
	}
	var count C.uint32_t
	if err := check(call, C.zb_queue_group_count(z.device, &count)); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	props := make([]C.ze_command_queue_group_properties_t, count)
	if err := check(call, C.zb_queue_groups(z.device, count, &props[0])); err != nil {
		return nil, err
	}
	groups := make([]QueueGroup, count)
	for i, p := range props {
		groups[i] = QueueGroup{
			Ordinal:   uint32(i),
			Compute:   p.flags&C.ZE_COMMAND_QUEUE_GROUP_PROPERTY_FLAG_COMPUTE != 0,
			Copy:      p.flags&C.ZE_COMMAND_QUEUE_GROUP_PROPERTY_FLAG_COPY != 0,
			NumQueues: uint32(p.numQueues),
		}
	}
	return groups, nil
}

func (z *LevelZeroBackend) CreateCommandQueue(ordinal uint32) (CommandQueue, error) {
	if err := z.ready("zeCommandQueueCreate"); err != nil {
		return nil, err
	}
	q := &zeQueue{}
	if err := check("zeCommandQueueCreate", C.zb_create_queue(z.context, z.device, C.uint32_t(ordinal), &q.handle)); err != nil {
		return nil, err
	}
	return q, nil
}

func (z *LevelZeroBackend) CreateCommandList(ordinal uint32) (CommandList, error) {
	if err := z.ready("zeCommandListCreate"); err != nil {
		return nil, err
	}
	l := &zeList{}
	if err := check("zeCommandListCreate", C.zb_create_list(z.context, z.device, C.uint32_t(ordinal), &l.handle)); err != nil {
		return nil, err
	}
	return l, nil
}

func (z *LevelZeroBackend) Alloc(kind MemoryType, size uint64, opts AllocOptions) (*Buffer, error) {
	call := allocCall(kind)
	if err := z.ready(call); err != nil {
		return nil, err
	}
	var ptr unsafe.Pointer
	if kind == Heap {
		if rc := C.zb_heap_alloc(C.size_t(size), C.size_t(opts.Alignment), &ptr); rc != 0 || ptr == nil {
			return nil, resultError(call, ResultErrorOutOfHostMemory)
		}
		return &Buffer{kind: kind, size: size, ptr: ptr}, nil
	}
	var cached, relaxed C.int
	if opts.Cached {
		cached = 1
	}
	if opts.RelaxedLimits {
		relaxed = 1
	}
	res := C.zb_alloc(z.context, z.device, C.int(kind), C.size_t(size), C.size_t(opts.Alignment), cached, relaxed, &ptr)
	if err := check(call, res); err != nil {
		return nil, err
	}
	return &Buffer{kind: kind, size: size, ptr: ptr}, nil
}

func (z *LevelZeroBackend) Free(buf *Buffer) error {
	call := freeCall(buf)
	if buf == nil || buf.ptr == nil {
		return resultError(call, ResultErrorInvalidNullPointer)
	}
	if buf.freed {
		return resultError(call, ResultErrorInvalidArgument)
	}
	buf.freed = true
	if buf.kind == Heap {
		C.free(buf.ptr)
		return nil
	}
	return check(call, C.zeMemFree(z.context, buf.ptr))
}

func (z *LevelZeroBackend) CreateModule(src ModuleSource) (Module, error) {
	const call = "zeModuleCreate"
	if err := z.ready(call); err != nil {
		return nil, err
	}
	if len(src.IL) == 0 {
		return nil, resultError(call, ResultErrorInvalidSize)
	}
	il := C.CBytes(src.IL)
	defer C.free(il)
	flags := C.CString(src.BuildFlags)
	defer C.free(unsafe.Pointer(flags))

	m := &zeModule{}
	var log *C.char
	var logLength C.size_t
	res := C.zb_create_module(z.context, z.device, (*C.uint8_t)(il), C.size_t(len(src.IL)), flags, &m.handle, &log, &logLength)
	if log != nil {
		defer C.free(unsafe.Pointer(log))
	}
	if Result(res) != ResultSuccess {
		re := &ResultError{Call: call, Code: Result(res)}
		if logLength > 0 {
			re.BuildLog = C.GoString(log)
		}
		return nil, errors.WithStack(re)
	}
	return m, nil
}

func (z *LevelZeroBackend) CreateEventPool(count uint32, kernelTimestamps bool) (EventPool, error) {
	if err := z.ready("zeEventPoolCreate"); err != nil {
		return nil, err
	}
	var ts C.int
	if kernelTimestamps {
		ts = 1
	}
	p := &zeEventPool{}
	if err := check("zeEventPoolCreate", C.zb_create_event_pool(z.context, z.device, C.uint32_t(count), ts, &p.handle)); err != nil {
		return nil, err
	}
	return p, nil
}

type zeQueue struct {
	handle C.ze_command_queue_handle_t
}

func (q *zeQueue) Execute(lists ...CommandList) error {
	const call = "zeCommandQueueExecuteCommandLists"
	if len(lists) == 0 {
		return resultError(call, ResultErrorInvalidSize)
	}
	handles := make([]C.ze_command_list_handle_t, len(lists))
	for i, cl := range lists {
		l, ok := cl.(*zeList)
		if !ok || l == nil {
			return resultError(call, ResultErrorInvalidNullHandle)
		}
		handles[i] = l.handle
	}
	return check(call, C.zeCommandQueueExecuteCommandLists(q.handle, C.uint32_t(len(handles)), &handles[0], nil))
}

func (q *zeQueue) Synchronize(ctx context.Context) error {
	const call = "zeCommandQueueSynchronize"
	if ctx.Done() == nil {
		return check(call, C.zeCommandQueueSynchronize(q.handle, C.uint64_t(math.MaxUint64)))
	}
	for {
		res := C.zeCommandQueueSynchronize(q.handle, C.uint64_t(synchronizePoll))
		if Result(res) != ResultNotReady {
			return check(call, res)
		}
		select {
		case <-ctx.Done():
			return resultError(call, ResultNotReady)
		default:
		}
	}
}

func (q *zeQueue) Destroy() error {
	return check("zeCommandQueueDestroy", C.zeCommandQueueDestroy(q.handle))
}

type zeList struct {
	handle C.ze_command_list_handle_t
}

func (l *zeList) AppendLaunchKernel(k Kernel, groups GroupCount, signal Event) error {
	const call = "zeCommandListAppendLaunchKernel"
	kernel, ok := k.(*zeKernel)
	if !ok || kernel == nil {
		return resultError(call, ResultErrorInvalidNullHandle)
	}
	var ev C.ze_event_handle_t
	if signal != nil {
		e, ok := signal.(*zeEvent)
		if !ok {
			return resultError(call, ResultErrorInvalidNullHandle)
		}
		ev = e.handle
	}
	return check(call, C.zb_launch(l.handle, kernel.handle, C.uint32_t(groups.X), C.uint32_t(groups.Y), C.uint32_t(groups.Z), ev))
}

func (l *zeList) AppendBarrier() error {
	return check("zeCommandListAppendBarrier", C.zb_barrier(l.handle))
}

func (l *zeList) AppendMemoryCopy(dst, src *Buffer, size uint64) error {
	const call = "zeCommandListAppendMemoryCopy"
	if dst == nil || src == nil {
		return resultError(call, ResultErrorInvalidNullPointer)
	}
	if size > dst.size || size > src.size {
		return resultError(call, ResultErrorInvalidSize)
	}
	return check(call, C.zb_copy(l.handle, dst.ptr, src.ptr, C.size_t(size)))
}

func (l *zeList) AppendWriteGlobalTimestamp(dst *Buffer) error {
	const call = "zeCommandListAppendWriteGlobalTimestamp"
	if dst == nil {
		return resultError(call, ResultErrorInvalidNullPointer)
	}
	if dst.size < 8 {
		return resultError(call, ResultErrorInvalidSize)
	}
	return check(call, C.zb_write_timestamp(l.handle, dst.ptr))
}

func (l *zeList) AppendQueryKernelTimestamps(events []Event, dst *Buffer) error {
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
	handles := make([]C.ze_event_handle_t, len(events))
	for i, e := range events {
		ev, ok := e.(*zeEvent)
		if !ok || ev == nil {
			return resultError(call, ResultErrorInvalidNullHandle)
		}
		handles[i] = ev.handle
	}
	return check(call, C.zb_query_timestamps(l.handle, C.uint32_t(len(handles)), &handles[0], dst.ptr))
}

func (l *zeList) Close() error {
	return check("zeCommandListClose", C.zeCommandListClose(l.handle))
}

func (l *zeList) Reset() error {
	return check("zeCommandListReset", C.zeCommandListReset(l.handle))
}

func (l *zeList) Destroy() error {
	return check("zeCommandListDestroy", C.zeCommandListDestroy(l.handle))
}

type zeModule struct {
	handle C.ze_module_handle_t
}

func (m *zeModule) CreateKernel(name string) (Kernel, error) {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))
	k := &zeKernel{name: name}
	if err := check("zeKernelCreate", C.zb_create_kernel(m.handle, cName, &k.handle)); err != nil {
		return nil, err
	}
	return k, nil
}

func (m *zeModule) Destroy() error {
	return check("zeModuleDestroy", C.zeModuleDestroy(m.handle))
}

type zeKernel struct {
	handle C.ze_kernel_handle_t
	name   string
}

func (k *zeKernel) Name() string { return k.name }

func (k *zeKernel) SuggestGroupSize(globalX, globalY, globalZ uint32) (GroupSize, error) {
	var x, y, zz C.uint32_t
	res := C.zeKernelSuggestGroupSize(k.handle, C.uint32_t(globalX), C.uint32_t(globalY), C.uint32_t(globalZ), &x, &y, &zz)
	if err := check("zeKernelSuggestGroupSize", res); err != nil {
		return GroupSize{}, err
	}
	return GroupSize{X: uint32(x), Y: uint32(y), Z: uint32(zz)}, nil
}

func (k *zeKernel) SetGroupSize(size GroupSize) error {
	return check("zeKernelSetGroupSize",
		C.zeKernelSetGroupSize(k.handle, C.uint32_t(size.X), C.uint32_t(size.Y), C.uint32_t(size.Z)))
}

func (k *zeKernel) SetArgumentBuffer(index uint32, buf *Buffer) error {
	const call = "zeKernelSetArgumentValue"
	if buf == nil || buf.ptr == nil {
		return resultError(call, ResultErrorInvalidArgument)
	}
	ptr := buf.ptr
	return check(call, C.zeKernelSetArgumentValue(k.handle, C.uint32_t(index), C.size_t(unsafe.Sizeof(ptr)), unsafe.Pointer(&ptr)))
}

func (k *zeKernel) SetArgumentValue(index uint32, value any) error {
	const call = "zeKernelSetArgumentValue"
	set := func(size uintptr, p unsafe.Pointer) error {
		return check(call, C.zeKernelSetArgumentValue(k.handle, C.uint32_t(index), C.size_t(size), p))
	}
	switch v := value.(type) {
	case int32:
		return set(unsafe.Sizeof(v), unsafe.Pointer(&v))
	case uint32:
		return set(unsafe.Sizeof(v), unsafe.Pointer(&v))
	case float32:
		return set(unsafe.Sizeof(v), unsafe.Pointer(&v))
	case int64:
		return set(unsafe.Sizeof(v), unsafe.Pointer(&v))
	case uint64:
		return set(unsafe.Sizeof(v), unsafe.Pointer(&v))
	case float64:
		return set(unsafe.Sizeof(v), unsafe.Pointer(&v))
	default:
		return errors.Errorf("%s: unsupported argument type %T", call, value)
	}
}

func (k *zeKernel) Destroy() error {
	return check("zeKernelDestroy", C.zeKernelDestroy(k.handle))
}

type zeEventPool struct {
	handle C.ze_event_pool_handle_t
}

func (p *zeEventPool) Event(index uint32) (Event, error) {
	e := &zeEvent{}
	if err := check("zeEventCreate", C.zb_create_event(p.handle, C.uint32_t(index), &e.handle)); err != nil {
		return nil, err
	}
	return e, nil
}

func (p *zeEventPool) Destroy() error {
	return check("zeEventPoolDestroy", C.zeEventPoolDestroy(p.handle))
}

type zeEvent struct {
	handle C.ze_event_handle_t
}

func (e *zeEvent) Destroy() error {
	return check("zeEventDestroy", C.zeEventDestroy(e.handle))
}
