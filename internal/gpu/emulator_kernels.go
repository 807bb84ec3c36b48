package gpu

import (
	"math"
	"runtime"
	"unsafe"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

type argKind int

const (
	argBuffer argKind = iota
	argInt32
)

// workGroup is the global index box [x0,x1) x [y0,y1) x [z0,z1) covered by
// one work-group.
type workGroup struct {
	x0, x1, y0, y1, z0, z1 uint64
}

type emuKernelSpec struct {
	args []argKind
	// check runs once per launch before any work-group and rejects launches
	// that would access memory out of bounds.
	check func(a launchArgs, global [3]uint64) error
	run   func(a launchArgs, g workGroup) error
}

// emulatedKernels maps a SPIR-V file name to the kernels it exports.
var emulatedKernels = map[string]map[string]*emuKernelSpec{
	"vectorAddition.spv": {
		"vectorAdd":      vectorAddFloat32Kernel,
		"vectorAddition": vectorAddConstInt32Kernel,
	},
	"matrixMultiply.spv": {
		"mxm": mxmFloat32Kernel,
	},
	"mxm.spv": {
		"mxm": mxmInt32Kernel,
	},
}

type launchArgs []any

func (a launchArgs) buffer(i int) *Buffer { return a[i].(*Buffer) }

func (a launchArgs) float32s(i int) []float32 {
	raw := a.buffer(i).raw()
	if len(raw) < 4 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&raw[0])), len(raw)/4)
}

func (a launchArgs) int32s(i int) []int32 {
	raw := a.buffer(i).raw()
	if len(raw) < 4 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&raw[0])), len(raw)/4)
}

func (a launchArgs) int32(i int) int32 { return a[i].(int32) }

// elementsAtLeast fails the launch the way a page fault would on hardware.
func elementsAtLeast(a launchArgs, n uint64, indices ...int) error {
	for _, i := range indices {
		if a.buffer(i).size/4 < n {
			return resultError("zeCommandQueueSynchronize", ResultErrorDeviceLost)
		}
	}
	return nil
}

// vectorAdd(float *output, float *a, float *b)
var vectorAddFloat32Kernel = &emuKernelSpec{
	args: []argKind{argBuffer, argBuffer, argBuffer},
	check: func(a launchArgs, global [3]uint64) error {
		return elementsAtLeast(a, global[0], 0, 1, 2)
	},
	run: func(a launchArgs, g workGroup) error {
		out, x, y := a.float32s(0), a.float32s(1), a.float32s(2)
		for i := g.x0; i < g.x1; i++ {
			out[i] = x[i] + y[i]
		}
		return nil
	},
}

// vectorAddition(int *a, int *b): b[i] = a[i] + 100
var vectorAddConstInt32Kernel = &emuKernelSpec{
	args: []argKind{argBuffer, argBuffer},
	check: func(a launchArgs, global [3]uint64) error {
		return elementsAtLeast(a, global[0], 0, 1)
	},
	run: func(a launchArgs, g workGroup) error {
		in, out := a.int32s(0), a.int32s(1)
		for i := g.x0; i < g.x1; i++ {
			out[i] = in[i] + 100
		}
		return nil
	},
}

func checkSquare(a launchArgs, global [3]uint64) error {
	n := a.int32(3)
	if n <= 0 || global[0] > uint64(n) || global[1] > uint64(n) {
		return resultError("zeCommandQueueSynchronize", ResultErrorDeviceLost)
	}
	return elementsAtLeast(a, uint64(n)*uint64(n), 0, 1, 2)
}

// mxm(float *a, float *b, float *c, int n) computes the rows x0..x1 and
// columns y0..y1 of c with one GEMM call per work-group.
var mxmFloat32Kernel = &emuKernelSpec{
	args:  []argKind{argBuffer, argBuffer, argBuffer, argInt32},
	check: checkSquare,
	run: func(a launchArgs, g workGroup) error {
		n := int(a.int32(3))
		x0, x1, y0, y1 := int(g.x0), int(g.x1), int(g.y0), int(g.y1)
		if x1 == x0 || y1 == y0 {
			return nil
		}
		am := blas32.General{Rows: x1 - x0, Cols: n, Stride: n, Data: a.float32s(0)[x0*n:]}
		bm := blas32.General{Rows: n, Cols: y1 - y0, Stride: n, Data: a.float32s(1)[y0:]}
		cm := blas32.General{Rows: x1 - x0, Cols: y1 - y0, Stride: n, Data: a.float32s(2)[x0*n+y0:]}
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, am, bm, 0, cm)
		return nil
	},
}

// mxm(int *a, int *b, int *c, int n)
var mxmInt32Kernel = &emuKernelSpec{
	args:  []argKind{argBuffer, argBuffer, argBuffer, argInt32},
	check: checkSquare,
	run: func(a launchArgs, g workGroup) error {
		n := uint64(a.int32(3))
		am, bm, cm := a.int32s(0), a.int32s(1), a.int32s(2)
		for i := g.x0; i < g.x1; i++ {
			for j := g.y0; j < g.y1; j++ {
				var sum int32
				for k := uint64(0); k < n; k++ {
					sum += am[i*n+k] * bm[k*n+j]
				}
				cm[i*n+j] = sum
			}
		}
		return nil
	},
}

type emuModule struct {
	backend   *EmulatorBackend
	name      string
	kernels   map[string]*emuKernelSpec
	destroyed bool
}

func (m *emuModule) CreateKernel(name string) (Kernel, error) {
	if m.destroyed {
		return nil, resultError("zeKernelCreate", ResultErrorInvalidNullHandle)
	}
	spec, ok := m.kernels[name]
	if !ok {
		return nil, resultError("zeKernelCreate", ResultErrorInvalidKernelName)
	}
	m.backend.live.Add(1)
	return &emuKernel{
		module: m,
		name:   name,
		spec:   spec,
		args:   make([]any, len(spec.args)),
	}, nil
}

func (m *emuModule) Destroy() error {
	if m.destroyed {
		return resultError("zeModuleDestroy", ResultErrorInvalidNullHandle)
	}
	m.destroyed = true
	m.backend.live.Add(-1)
	return nil
}

type emuKernel struct {
	module    *emuModule
	name      string
	spec      *emuKernelSpec
	group     GroupSize
	args      []any
	destroyed bool
}

func (k *emuKernel) Name() string { return k.name }

// largestDivisor returns the largest d <= limit that divides n.
func largestDivisor(n, limit uint32) uint32 {
	if limit > n {
		limit = n
	}
	for d := limit; d > 1; d-- {
		if n%d == 0 {
			return d
		}
	}
	return 1
}

// SuggestGroupSize picks group dimensions that divide the global size and
// fit in emulatorMaxGroupSize work-items.
func (k *emuKernel) SuggestGroupSize(globalX, globalY, globalZ uint32) (GroupSize, error) {
	if globalX == 0 || globalY == 0 || globalZ == 0 {
		return GroupSize{}, resultError("zeKernelSuggestGroupSize", ResultErrorInvalidGlobalWidthDimension)
	}
	limitX := uint32(emulatorMaxGroupSize)
	if globalY > 1 || globalZ > 1 {
		limitX = 16
	}
	x := largestDivisor(globalX, limitX)
	y := largestDivisor(globalY, emulatorMaxGroupSize/x)
	z := largestDivisor(globalZ, min(64, emulatorMaxGroupSize/(x*y)))
	return GroupSize{X: x, Y: y, Z: z}, nil
}

func (k *emuKernel) SetGroupSize(size GroupSize) error {
	if size.X == 0 || size.Y == 0 || size.Z == 0 ||
		uint64(size.X)*uint64(size.Y)*uint64(size.Z) > emulatorMaxGroupSize {
		return resultError("zeKernelSetGroupSize", ResultErrorInvalidGroupSizeDimension)
	}
	k.group = size
	return nil
}

func (k *emuKernel) argument(call string, index uint32, kind argKind) error {
	if k.destroyed {
		return resultError(call, ResultErrorInvalidNullHandle)
	}
	if int(index) >= len(k.spec.args) {
		return resultError(call, ResultErrorInvalidKernelArgumentIndex)
	}
	if k.spec.args[index] != kind {
		return resultError(call, ResultErrorInvalidKernelArgumentSize)
	}
	return nil
}

func (k *emuKernel) SetArgumentBuffer(index uint32, buf *Buffer) error {
	const call = "zeKernelSetArgumentValue"
	if err := k.argument(call, index, argBuffer); err != nil {
		return err
	}
	if buf == nil || buf.freed {
		return resultError(call, ResultErrorInvalidArgument)
	}
	k.args[index] = buf
	return nil
}

func (k *emuKernel) SetArgumentValue(index uint32, value any) error {
	const call = "zeKernelSetArgumentValue"
	if err := k.argument(call, index, argInt32); err != nil {
		return err
	}
	switch v := value.(type) {
	case int32:
		k.args[index] = v
	case uint32:
		k.args[index] = int32(v)
	case float32:
		k.args[index] = int32(math.Float32bits(v))
	case int64, uint64, float64:
		return resultError(call, ResultErrorInvalidKernelArgumentSize)
	default:
		return resultError(call, ResultErrorInvalidArgument)
	}
	return nil
}

func (k *emuKernel) Destroy() error {
	if k.destroyed {
		return resultError("zeKernelDestroy", ResultErrorInvalidNullHandle)
	}
	k.destroyed = true
	k.module.backend.live.Add(-1)
	return nil
}

type emuLaunch struct {
	spec   *emuKernelSpec
	args   launchArgs
	group  GroupSize
	groups GroupCount
}

func (k *emuKernel) snapshot(groups GroupCount) (*emuLaunch, error) {
	for _, arg := range k.args {
		if arg == nil {
			return nil, resultError("zeCommandListAppendLaunchKernel", ResultErrorInvalidArgument)
		}
	}
	group := k.group
	if group == (GroupSize{}) {
		group = GroupSize{X: 1, Y: 1, Z: 1}
	}
	return &emuLaunch{
		spec:   k.spec,
		args:   append(launchArgs(nil), k.args...),
		group:  group,
		groups: groups,
	}, nil
}

func (l *emuLaunch) buffers() []*Buffer {
	var bufs []*Buffer
	for _, arg := range l.args {
		if b, ok := arg.(*Buffer); ok {
			bufs = append(bufs, b)
		}
	}
	return bufs
}

// run executes every work-group of the launch. The global size is
// groups*group per dimension, so items past the last full group are never
// touched.
func (l *emuLaunch) run() error {
	if l.groups.X == 0 || l.groups.Y == 0 || l.groups.Z == 0 {
		return nil
	}
	gx, gy, gz := uint64(l.group.X), uint64(l.group.Y), uint64(l.group.Z)
	global := [3]uint64{uint64(l.groups.X) * gx, uint64(l.groups.Y) * gy, uint64(l.groups.Z) * gz}
	if err := l.spec.check(l.args, global); err != nil {
		return err
	}

	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for z := uint64(0); z < uint64(l.groups.Z); z++ {
		for y := uint64(0); y < uint64(l.groups.Y); y++ {
			for x := uint64(0); x < uint64(l.groups.X); x++ {
				wg := workGroup{
					x0: x * gx, x1: (x + 1) * gx,
					y0: y * gy, y1: (y + 1) * gy,
					z0: z * gz, z1: (z + 1) * gz,
				}
				eg.Go(func() error { return l.spec.run(l.args, wg) })
			}
		}
	}
	return eg.Wait()
}
