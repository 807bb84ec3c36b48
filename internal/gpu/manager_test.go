//go:build !levelzero

package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewManager(t *testing.T) {
	testCases := []struct {
		name        string
		preference  string
		expected    string
		expectError bool
	}{
		{name: "auto falls back to emulator", preference: BackendAuto, expected: BackendEmulator},
		{name: "empty means auto", preference: "", expected: BackendEmulator},
		{name: "forced emulator", preference: BackendEmulator, expected: BackendEmulator},
		{name: "level zero not compiled in", preference: BackendLevelZero, expectError: true},
		{name: "unknown backend", preference: "cuda", expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := NewManager(zap.NewNop(), tc.preference)
			if tc.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, m.BackendType())
			assert.False(t, m.IsGPUAvailable())
			require.NoError(t, m.Cleanup())
			assert.Equal(t, "none", m.BackendType())
		})
	}
}

func TestLevelZeroStub(t *testing.T) {
	backend := NewLevelZeroBackend(zap.NewNop())
	assert.False(t, backend.IsAvailable())
	assert.Error(t, backend.Initialize())
	assert.NoError(t, backend.Cleanup())
}
