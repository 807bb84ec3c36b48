// Package gputest provides fixtures for tests that run benchmarks on the
// emulated device.
package gputest

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ModuleFiles are the SPIR-V file names the benchmarks load.
var ModuleFiles = []string{"vectorAddition.spv", "matrixMultiply.spv", "mxm.spv"}

// SPIRVHeader returns a SPIR-V 1.0 module that only carries its header.
func SPIRVHeader() []byte {
	words := []uint32{0x07230203, 0x00010000, 0, 1, 0}
	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[4*i:], w)
	}
	return out
}

// KernelDir writes header-only modules into a temporary directory and
// returns it. Without names, every entry of ModuleFiles is written.
func KernelDir(t testing.TB, names ...string) string {
	t.Helper()
	if len(names) == 0 {
		names = ModuleFiles
	}
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), SPIRVHeader(), 0o644))
	}
	return dir
}
