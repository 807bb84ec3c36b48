package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "bench.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	return s
}

func TestStore_InsertAndQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.EnsureTable(ctx, KernelTable))
	// Idempotent
	require.NoError(t, s.EnsureTable(ctx, KernelTable))

	samples := []Row{
		{Size: 64, Name: "SEQ", Time: 300},
		{Size: 64, Name: "GPU-KERNEL", Time: 10},
		{Size: 64, Name: "GPU-KERNEL", Time: 20},
		{Size: 32, Name: "GPU-KERNEL", Time: 5},
		{Size: 64, Name: "SEQ", Time: 100},
	}
	for _, r := range samples {
		require.NoError(t, s.Insert(ctx, KernelTable, r.Size, r.Name, r.Time))
	}

	all, err := s.All(ctx, KernelTable)
	require.NoError(t, err)
	assert.Equal(t, samples, all)

	summary, err := s.Summary(ctx, KernelTable)
	require.NoError(t, err)
	assert.Equal(t, []SummaryRow{
		{Size: 32, Name: "GPU-KERNEL", AvgTime: 5, Count: 1},
		{Size: 64, Name: "GPU-KERNEL", AvgTime: 15, Count: 2},
		{Size: 64, Name: "SEQ", AvgTime: 200, Count: 2},
	}, summary)
}

func TestStore_TablesAreSeparate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.EnsureTable(ctx, KernelTable))
	require.NoError(t, s.EnsureTable(ctx, CopyTable))
	require.NoError(t, s.Insert(ctx, CopyTable, 512, "Heap->Device", 42))

	kernel, err := s.All(ctx, KernelTable)
	require.NoError(t, err)
	assert.Empty(t, kernel)

	copies, err := s.All(ctx, CopyTable)
	require.NoError(t, err)
	assert.Equal(t, []Row{{Size: 512, Name: "Heap->Device", Time: 42}}, copies)
}

func TestStore_UnknownTable(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	testCases := []struct {
		name string
		call func() error
	}{
		{name: "ensure", call: func() error { return s.EnsureTable(ctx, "x; DROP TABLE y") }},
		{name: "insert", call: func() error { return s.Insert(ctx, "OTHER", 1, "a", 1) }},
		{name: "all", call: func() error { _, err := s.All(ctx, "OTHER"); return err }},
		{name: "summary", call: func() error { _, err := s.Summary(ctx, "OTHER"); return err }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "unknown table")
		})
	}
}

func TestStore_MissingTable(t *testing.T) {
	s := newTestStore(t)
	_, err := s.All(context.Background(), CopyTable)
	assert.Error(t, err)
}
