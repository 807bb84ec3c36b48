package gpu

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fxnlabs/zebench/internal/gpu/gputest"
)

func TestSelectComputeOrdinal(t *testing.T) {
	testCases := []struct {
		name        string
		groups      []QueueGroup
		expected    uint32
		expectError bool
	}{
		{name: "no groups", expectError: true},
		{
			name:     "single compute group",
			groups:   []QueueGroup{{Ordinal: 0, Compute: true, Copy: true}},
			expected: 0,
		},
		{
			name: "last compute group wins",
			groups: []QueueGroup{
				{Ordinal: 0, Compute: true, Copy: true},
				{Ordinal: 1, Copy: true},
				{Ordinal: 2, Compute: true},
			},
			expected: 2,
		},
		{
			name:     "copy only falls back to zero",
			groups:   []QueueGroup{{Ordinal: 0, Copy: true}, {Ordinal: 1, Copy: true}},
			expected: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ordinal, err := SelectComputeOrdinal(tc.groups)
			if tc.expectError {
				assert.ErrorIs(t, err, ErrNoQueueGroups)
				assert.EqualError(t, err, "No queue groups found")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, ordinal)
		})
	}
}

func TestNewSession(t *testing.T) {
	backend := NewEmulatorBackend(zap.NewNop())

	s, err := NewSession(backend, nil)
	require.NoError(t, err)
	assert.Equal(t, emulatorDeviceName, s.Props.Name)
	assert.Len(t, s.QueueGroups, 2)
	assert.Equal(t, uint32(0), s.Ordinal)
	assert.EqualValues(t, 2, backend.LiveObjects())

	require.NoError(t, s.Close())
	assert.Zero(t, backend.LiveObjects())
	assert.False(t, backend.initialized)
}

func TestSession_Submit(t *testing.T) {
	backend := NewEmulatorBackend(zap.NewNop())
	s := must.M1(NewSession(backend, zap.NewNop()))
	defer func() { require.NoError(t, s.Close()) }()

	src := must.M1(s.Alloc(Heap, 64, AllocOptions{}))
	dev := must.M1(s.Alloc(Device, 64, AllocOptions{Alignment: 64}))
	dst := must.M1(s.Alloc(Heap, 64, AllocOptions{}))
	defer func() { require.NoError(t, s.Free(src, dev, dst, nil)) }()

	require.NoError(t, FillFloat32(src, 2.5))
	require.NoError(t, s.List.AppendMemoryCopy(dev, src, 64))
	require.NoError(t, s.List.AppendBarrier())
	require.NoError(t, s.List.AppendMemoryCopy(dst, dev, 64))
	require.NoError(t, s.List.AppendBarrier())

	elapsed, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Positive(t, elapsed)
	for _, v := range must.M1(dst.Float32s()) {
		assert.Equal(t, float32(2.5), v)
	}

	// The list was reset and can record again.
	assert.NoError(t, s.List.AppendBarrier())
	assert.True(t, IsResult(s.List.AppendMemoryCopy(dst, dst, 8), ResultErrorOverlappingRegions))
	assert.True(t, IsResult(s.List.AppendMemoryCopy(dst, src, 128), ResultErrorInvalidSize))
	require.NoError(t, s.List.Reset())
}

func TestSession_SubmitDeadline(t *testing.T) {
	backend := NewEmulatorBackend(zap.NewNop())
	s := must.M1(NewSession(backend, zap.NewNop()))
	defer func() { require.NoError(t, s.Close()) }()

	buf := must.M1(s.Alloc(Shared, 64, AllocOptions{}))
	var finished atomic.Bool
	list := s.List.(*emuList)
	require.NoError(t, list.appendCommand("slow", func() error {
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return nil
	}, buf))

	ctx, cancel := context.WithTimeout(context.Background(), time.Microsecond)
	defer cancel()
	_, err := s.Submit(ctx)
	assert.True(t, IsResult(err, ResultNotReady), "got %v", err)

	// The queue drained before Submit returned.
	assert.True(t, finished.Load())
	require.NoError(t, s.Free(buf))
	assert.NoError(t, s.List.AppendBarrier())
	require.NoError(t, s.List.Reset())
}

func TestLoadModule(t *testing.T) {
	backend := NewEmulatorBackend(zap.NewNop())
	require.NoError(t, backend.Initialize())
	defer func() { require.NoError(t, backend.Cleanup()) }()

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadModule(backend, t.TempDir(), "vectorAddition.spv", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SPIR-V binary file not found")
	})

	t.Run("build failure carries log", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "vectorAddition.spv"), []byte("not spirv"), 0o644))
		_, err := LoadModule(backend, dir, "vectorAddition.spv", "")
		assert.True(t, IsResult(err, ResultErrorInvalidNativeBinary))
	})

	t.Run("kernel", func(t *testing.T) {
		kernel, release, err := CreateKernel(backend, gputest.KernelDir(t), "vectorAddition.spv", "vectorAdd")
		require.NoError(t, err)
		assert.Equal(t, "vectorAdd", kernel.Name())
		assert.True(t, IsResult(kernel.SetArgumentValue(0, int32(1)), ResultErrorInvalidKernelArgumentSize))
		assert.True(t, IsResult(kernel.SetArgumentBuffer(3, nil), ResultErrorInvalidKernelArgumentIndex))
		require.NoError(t, release())
	})

	t.Run("missing kernel releases module", func(t *testing.T) {
		_, _, err := CreateKernel(backend, gputest.KernelDir(t), "vectorAddition.spv", "nope")
		assert.True(t, IsResult(err, ResultErrorInvalidKernelName))
		assert.Zero(t, backend.LiveObjects())
	})
}
