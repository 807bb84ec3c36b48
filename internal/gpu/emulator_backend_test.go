package gpu

import (
	"context"
	"testing"
	"time"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fxnlabs/zebench/internal/gpu/gputest"
)

func newTestEmulator(t *testing.T) *EmulatorBackend {
	t.Helper()
	backend := NewEmulatorBackend(zap.NewNop())
	require.NoError(t, backend.Initialize())
	t.Cleanup(func() {
		assert.Zero(t, backend.LiveObjects(), "objects leaked")
		assert.NoError(t, backend.Cleanup())
	})
	return backend
}

func TestEmulatorBackend_Initialize(t *testing.T) {
	backend := NewEmulatorBackend(zap.NewNop())

	// Emulator should always be available
	assert.True(t, backend.IsAvailable())
	assert.Equal(t, "emulator", backend.Name())

	_, err := backend.DeviceProperties()
	assert.True(t, IsResult(err, ResultErrorUninitialized))

	require.NoError(t, backend.Initialize())
	assert.True(t, backend.initialized)

	props, err := backend.DeviceProperties()
	require.NoError(t, err)
	assert.Equal(t, emulatorDeviceName, props.Name)
	assert.Equal(t, "GPU", props.Type.String())
	assert.True(t, props.APIVersion.AtLeast(1, 2))
	assert.True(t, props.CyclesPerSecond)

	// Test double initialization (should be idempotent)
	assert.NoError(t, backend.Initialize())

	assert.NoError(t, backend.Cleanup())
	assert.False(t, backend.initialized)
}

func TestEmulatorBackend_Alloc(t *testing.T) {
	backend := newTestEmulator(t)

	testCases := []struct {
		name string
		kind MemoryType
		size uint64
		opts AllocOptions
		code Result
	}{
		{name: "shared", kind: Shared, size: 2048, opts: AllocOptions{Alignment: 128, Cached: true}},
		{name: "device", kind: Device, size: 64, opts: AllocOptions{Alignment: 64}},
		{name: "host", kind: Host, size: 64, opts: AllocOptions{Alignment: 64}},
		{name: "zero size", kind: Shared, size: 0, code: ResultErrorUnsupportedSize},
		{name: "above max alloc", kind: Device, size: emulatorMaxAlloc + 1, code: ResultErrorUnsupportedSize},
		{name: "relaxed above max alloc", kind: Device, size: emulatorMaxAlloc + 1, opts: AllocOptions{RelaxedLimits: true}},
		{name: "above relaxed limit", kind: Shared, size: emulatorRelaxedMaxAlloc + 1, opts: AllocOptions{RelaxedLimits: true}, code: ResultErrorUnsupportedSize},
		{name: "heap ignores device limit", kind: Heap, size: emulatorMaxAlloc + 1},
		{name: "bad alignment", kind: Host, size: 64, opts: AllocOptions{Alignment: 48}, code: ResultErrorUnsupportedAlignment},
		{name: "unknown kind", kind: MemoryType(42), size: 64, code: ResultErrorInvalidEnumeration},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buf, err := backend.Alloc(tc.kind, tc.size, tc.opts)
			if tc.code != ResultSuccess {
				assert.True(t, IsResult(err, tc.code), "got %v", err)
				assert.Nil(t, buf)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.kind, buf.Kind())
			assert.Equal(t, tc.size, buf.Size())
			require.NoError(t, backend.Free(buf))
			assert.True(t, IsResult(backend.Free(buf), ResultErrorInvalidArgument))
		})
	}
}

func TestEmulatorBackend_LazyMemory(t *testing.T) {
	backend := newTestEmulator(t)

	buf := must.M1(backend.Alloc(Shared, 2<<30, AllocOptions{RelaxedLimits: true}))
	defer func() { require.NoError(t, backend.Free(buf)) }()
	assert.Nil(t, buf.backing)

	small := must.M1(backend.Alloc(Shared, 16, AllocOptions{}))
	defer func() { require.NoError(t, backend.Free(small)) }()
	values, err := small.Int32s()
	require.NoError(t, err)
	assert.Len(t, values, 4)
	assert.NotNil(t, small.backing)
}

func TestEmulatorBackend_CreateModule(t *testing.T) {
	backend := newTestEmulator(t)

	t.Run("invalid binary", func(t *testing.T) {
		_, err := backend.CreateModule(ModuleSource{Name: "vectorAddition.spv", IL: []byte("__kernel void f() {}")})
		require.Error(t, err)
		assert.True(t, IsResult(err, ResultErrorInvalidNativeBinary))
		var re *ResultError
		require.ErrorAs(t, err, &re)
		assert.Contains(t, re.BuildLog, "invalid SPIR-V header")
	})

	t.Run("unknown kernel", func(t *testing.T) {
		module := must.M1(backend.CreateModule(ModuleSource{Name: "vectorAddition.spv", IL: gputest.SPIRVHeader()}))
		defer func() { require.NoError(t, module.Destroy()) }()
		_, err := module.CreateKernel("mxm")
		assert.True(t, IsResult(err, ResultErrorInvalidKernelName))
	})

	t.Run("kernel per module file", func(t *testing.T) {
		module := must.M1(backend.CreateModule(ModuleSource{Name: "/opt/kernels/mxm.spv", IL: gputest.SPIRVHeader()}))
		defer func() { require.NoError(t, module.Destroy()) }()
		kernel := must.M1(module.CreateKernel("mxm"))
		assert.Equal(t, "mxm", kernel.Name())
		assert.Same(t, mxmInt32Kernel, kernel.(*emuKernel).spec)
		require.NoError(t, kernel.Destroy())
	})
}

func TestEmulatorBackend_SuggestGroupSize(t *testing.T) {
	kernel := &emuKernel{spec: vectorAddFloat32Kernel}

	testCases := []struct {
		name             string
		global           [3]uint32
		expected         GroupSize
		expectedWidthErr bool
	}{
		{name: "1d power of two", global: [3]uint32{512, 1, 1}, expected: GroupSize{256, 1, 1}},
		{name: "1d small", global: [3]uint32{10, 1, 1}, expected: GroupSize{10, 1, 1}},
		{name: "1d prime", global: [3]uint32{257, 1, 1}, expected: GroupSize{1, 1, 1}},
		{name: "2d", global: [3]uint32{512, 512, 1}, expected: GroupSize{16, 16, 1}},
		{name: "2d odd", global: [3]uint32{6, 9, 1}, expected: GroupSize{6, 9, 1}},
		{name: "zero width", global: [3]uint32{0, 1, 1}, expectedWidthErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			size, err := kernel.SuggestGroupSize(tc.global[0], tc.global[1], tc.global[2])
			if tc.expectedWidthErr {
				assert.True(t, IsResult(err, ResultErrorInvalidGlobalWidthDimension))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, size)
			assert.NoError(t, kernel.SetGroupSize(size))
		})
	}

	assert.True(t, IsResult(kernel.SetGroupSize(GroupSize{32, 32, 1}), ResultErrorInvalidGroupSizeDimension))
}

// launchMxM runs matrixMultiply.spv/mxm on n x n matrices and returns C.
func launchMxM(t *testing.T, backend *EmulatorBackend, n int, a, b []float32) []float32 {
	t.Helper()
	s := must.M1(NewSession(backend, zap.NewNop()))
	defer func() { require.NoError(t, s.Close()) }()

	size := uint64(n * n * 4)
	bufA := must.M1(s.Alloc(Shared, size, AllocOptions{Alignment: 128}))
	bufB := must.M1(s.Alloc(Shared, size, AllocOptions{Alignment: 128}))
	bufC := must.M1(s.Alloc(Shared, size, AllocOptions{Alignment: 128}))
	defer func() { require.NoError(t, s.Free(bufA, bufB, bufC)) }()
	copy(must.M1(bufA.Float32s()), a)
	copy(must.M1(bufB.Float32s()), b)

	kernel, release, err := CreateKernel(backend, gputest.KernelDir(t), "matrixMultiply.spv", "mxm")
	require.NoError(t, err)
	defer func() { require.NoError(t, release()) }()

	group := must.M1(kernel.SuggestGroupSize(uint32(n), uint32(n), 1))
	require.NoError(t, kernel.SetGroupSize(group))
	require.NoError(t, kernel.SetArgumentBuffer(0, bufA))
	require.NoError(t, kernel.SetArgumentBuffer(1, bufB))
	require.NoError(t, kernel.SetArgumentBuffer(2, bufC))
	require.NoError(t, kernel.SetArgumentValue(3, int32(n)))
	groups := GroupCount{X: uint32(n) / group.X, Y: uint32(n) / group.Y, Z: 1}
	require.NoError(t, s.List.AppendLaunchKernel(kernel, groups, nil))
	require.NoError(t, s.List.AppendBarrier())
	_, err = s.Submit(context.Background())
	require.NoError(t, err)

	return must.M1(CopyFloat32(bufC))
}

func TestEmulatorBackend_MatrixMultiply(t *testing.T) {
	backend := newTestEmulator(t)

	testCases := []struct {
		name    string
		n       int
		setupA  func([]float32)
		setupB  func([]float32)
		verifyC func(*testing.T, []float32)
	}{
		{
			name: "small identity matrices",
			n:    3,
			setupA: func(a []float32) {
				for i := 0; i < 3; i++ {
					a[i*3+i] = 1.0
				}
			},
			setupB: func(b []float32) {
				for i := 0; i < 3; i++ {
					b[i*3+i] = 1.0
				}
			},
			verifyC: func(t *testing.T, c []float32) {
				for i := 0; i < 3; i++ {
					for j := 0; j < 3; j++ {
						expected := float32(0.0)
						if i == j {
							expected = 1.0
						}
						assert.InDelta(t, expected, c[i*3+j], 1e-5)
					}
				}
			},
		},
		{
			name: "simple 2x2 multiplication",
			n:    2,
			setupA: func(a []float32) {
				a[0], a[1] = 1, 2
				a[2], a[3] = 3, 4
			},
			setupB: func(b []float32) {
				b[0], b[1] = 5, 6
				b[2], b[3] = 7, 8
			},
			verifyC: func(t *testing.T, c []float32) {
				// Expected: [[19, 22], [43, 50]]
				assert.InDelta(t, float32(19), c[0], 1e-5)
				assert.InDelta(t, float32(22), c[1], 1e-5)
				assert.InDelta(t, float32(43), c[2], 1e-5)
				assert.InDelta(t, float32(50), c[3], 1e-5)
			},
		},
		{
			name: "multiple work-groups",
			n:    64,
			setupA: func(a []float32) {
				for i := range a {
					a[i] = 2.5
				}
			},
			setupB: func(b []float32) {
				for i := range b {
					b[i] = 3.2
				}
			},
			verifyC: func(t *testing.T, c []float32) {
				for _, val := range c {
					assert.InDelta(t, float32(64*2.5*3.2), val, 1e-2)
				}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := make([]float32, tc.n*tc.n)
			b := make([]float32, tc.n*tc.n)
			tc.setupA(a)
			tc.setupB(b)
			tc.verifyC(t, launchMxM(t, backend, tc.n, a, b))
		})
	}
}

func TestEmulatorBackend_TruncatedDispatch(t *testing.T) {
	backend := newTestEmulator(t)
	s := must.M1(NewSession(backend, zap.NewNop()))
	defer func() { require.NoError(t, s.Close()) }()

	const items = 10
	in := must.M1(s.Alloc(Shared, items*4, AllocOptions{}))
	out := must.M1(s.Alloc(Shared, items*4, AllocOptions{}))
	defer func() { require.NoError(t, s.Free(in, out)) }()
	require.NoError(t, FillInt32(in, 1))

	kernel, release, err := CreateKernel(backend, gputest.KernelDir(t), "vectorAddition.spv", "vectorAddition")
	require.NoError(t, err)
	defer func() { require.NoError(t, release()) }()

	require.NoError(t, kernel.SetGroupSize(GroupSize{4, 1, 1}))
	require.NoError(t, kernel.SetArgumentBuffer(0, in))
	require.NoError(t, kernel.SetArgumentBuffer(1, out))
	require.NoError(t, s.List.AppendLaunchKernel(kernel, GroupCount{X: items / 4, Y: 1, Z: 1}, nil))
	_, err = s.Submit(context.Background())
	require.NoError(t, err)

	got := must.M1(out.Int32s())
	assert.Equal(t, []int32{101, 101, 101, 101, 101, 101, 101, 101, 0, 0}, got)
}

func TestEmulatorBackend_CommandListState(t *testing.T) {
	backend := newTestEmulator(t)
	s := must.M1(NewSession(backend, zap.NewNop()))
	defer func() { require.NoError(t, s.Close()) }()

	ts := must.M1(s.Alloc(Device, 8, AllocOptions{}))
	defer func() { require.NoError(t, s.Free(ts)) }()

	// Executing an open list is rejected.
	require.NoError(t, s.List.AppendWriteGlobalTimestamp(ts))
	assert.True(t, IsResult(s.Queue.Execute(s.List), ResultErrorInvalidArgument))

	// Appending to a closed list is rejected.
	require.NoError(t, s.List.Close())
	assert.True(t, IsResult(s.List.AppendBarrier(), ResultErrorInvalidArgument))
	assert.True(t, IsResult(s.List.Close(), ResultErrorInvalidArgument))

	require.NoError(t, s.Queue.Execute(s.List))
	require.NoError(t, s.Queue.Synchronize(context.Background()))

	// A reset list records again.
	require.NoError(t, s.List.Reset())
	assert.NoError(t, s.List.AppendBarrier())
	require.NoError(t, s.List.Reset())
}

func TestEmulatorBackend_SynchronizeDeadline(t *testing.T) {
	backend := newTestEmulator(t)
	s := must.M1(NewSession(backend, zap.NewNop()))
	defer func() { require.NoError(t, s.Close()) }()

	block := make(chan struct{})
	list := s.List.(*emuList)
	list.cmds = append(list.cmds, func() error {
		<-block
		return nil
	})
	require.NoError(t, list.Close())
	require.NoError(t, s.Queue.Execute(list))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := s.Queue.Synchronize(ctx)
	assert.True(t, IsResult(err, ResultNotReady), "got %v", err)
	assert.True(t, IsResult(list.Reset(), ResultErrorHandleObjectInUse))

	close(block)
	require.NoError(t, s.Queue.Synchronize(context.Background()))
	require.NoError(t, list.Reset())
}

func TestEmulatorBackend_FreeInFlight(t *testing.T) {
	backend := newTestEmulator(t)
	s := must.M1(NewSession(backend, zap.NewNop()))
	defer func() { require.NoError(t, s.Close()) }()

	src := must.M1(s.Alloc(Shared, 64, AllocOptions{}))
	dst := must.M1(s.Alloc(Shared, 64, AllocOptions{}))

	block := make(chan struct{})
	list := s.List.(*emuList)
	require.NoError(t, list.appendCommand("blocked", func() error {
		<-block
		return nil
	}))
	require.NoError(t, list.AppendMemoryCopy(dst, src, 64))
	require.NoError(t, list.Close())
	require.NoError(t, s.Queue.Execute(list))

	assert.True(t, IsResult(s.Free(src), ResultErrorHandleObjectInUse))
	assert.True(t, IsResult(s.Free(dst), ResultErrorHandleObjectInUse))

	close(block)
	require.NoError(t, s.Queue.Synchronize(context.Background()))
	require.NoError(t, list.Reset())
	require.NoError(t, s.Free(src, dst))
}

func TestEmulatorBackend_KernelTimestamps(t *testing.T) {
	backend := newTestEmulator(t)
	s := must.M1(NewSession(backend, zap.NewNop()))
	defer func() { require.NoError(t, s.Close()) }()

	const items = 1024
	in := must.M1(s.Alloc(Shared, items*4, AllocOptions{}))
	out := must.M1(s.Alloc(Shared, items*4, AllocOptions{}))
	results := must.M1(s.Alloc(Host, KernelTimestampSize, AllocOptions{}))
	defer func() { require.NoError(t, s.Free(in, out, results)) }()

	pool := must.M1(backend.CreateEventPool(1, true))
	event := must.M1(pool.Event(0))
	defer func() {
		require.NoError(t, event.Destroy())
		require.NoError(t, pool.Destroy())
	}()
	assert.True(t, IsResult(pool.Destroy(), ResultErrorHandleObjectInUse))

	kernel, release, err := CreateKernel(backend, gputest.KernelDir(t), "vectorAddition.spv", "vectorAddition")
	require.NoError(t, err)
	defer func() { require.NoError(t, release()) }()
	require.NoError(t, kernel.SetArgumentBuffer(0, in))
	require.NoError(t, kernel.SetArgumentBuffer(1, out))
	require.NoError(t, kernel.SetGroupSize(GroupSize{256, 1, 1}))

	require.NoError(t, s.List.AppendLaunchKernel(kernel, GroupCount{X: items / 256, Y: 1, Z: 1}, event))
	require.NoError(t, s.List.AppendBarrier())
	require.NoError(t, s.List.AppendQueryKernelTimestamps([]Event{event}, results))
	_, err = s.Submit(context.Background())
	require.NoError(t, err)

	ts := must.M1(ReadKernelTimestamps(results, 1))
	require.Len(t, ts, 1)
	assert.Less(t, KernelDuration(ts[0], s.Props), time.Minute)
	assert.Equal(t, ts[0].GlobalStart, ts[0].ContextStart)
}

func TestEmulatorBackend_CleanupWithLiveObjects(t *testing.T) {
	backend := NewEmulatorBackend(zap.NewNop())
	require.NoError(t, backend.Initialize())

	buf := must.M1(backend.Alloc(Host, 64, AllocOptions{}))
	assert.True(t, IsResult(backend.Cleanup(), ResultErrorHandleObjectInUse))

	require.NoError(t, backend.Free(buf))
	assert.NoError(t, backend.Cleanup())
}
