package gpu

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/janpfeifer/must"
	"go.uber.org/zap"

	"github.com/fxnlabs/zebench/internal/gpu/gputest"
)

func benchmarkKernelDir(b *testing.B) string {
	dir := b.TempDir()
	for _, name := range gputest.ModuleFiles {
		if err := os.WriteFile(filepath.Join(dir, name), gputest.SPIRVHeader(), 0o644); err != nil {
			b.Fatal(err)
		}
	}
	return dir
}

func BenchmarkEmulator_MatrixMultiply(b *testing.B) {
	backend := NewEmulatorBackend(zap.NewNop())
	dir := benchmarkKernelDir(b)

	sizes := []int{64, 128, 256, 512}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("size_%d", size), func(b *testing.B) {
			s := must.M1(NewSession(backend, zap.NewNop()))
			defer s.Close()

			bytes := uint64(size * size * 4)
			bufA := must.M1(s.Alloc(Shared, bytes, AllocOptions{Alignment: 128}))
			bufB := must.M1(s.Alloc(Shared, bytes, AllocOptions{Alignment: 128}))
			bufC := must.M1(s.Alloc(Shared, bytes, AllocOptions{Alignment: 128}))
			defer s.Free(bufA, bufB, bufC)

			a := must.M1(bufA.Float32s())
			bb := must.M1(bufB.Float32s())
			for i := range a {
				a[i] = float32(i%100) / 100.0
				bb[i] = float32((i+1)%100) / 100.0
			}

			kernel, release, err := CreateKernel(backend, dir, "matrixMultiply.spv", "mxm")
			if err != nil {
				b.Fatal(err)
			}
			defer release()

			group := must.M1(kernel.SuggestGroupSize(uint32(size), uint32(size), 1))
			must.M(kernel.SetGroupSize(group))
			must.M(kernel.SetArgumentBuffer(0, bufA))
			must.M(kernel.SetArgumentBuffer(1, bufB))
			must.M(kernel.SetArgumentBuffer(2, bufC))
			must.M(kernel.SetArgumentValue(3, int32(size)))
			groups := GroupCount{X: uint32(size) / group.X, Y: uint32(size) / group.Y, Z: 1}

			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				must.M(s.List.AppendLaunchKernel(kernel, groups, nil))
				if _, err := s.Submit(context.Background()); err != nil {
					b.Fatal(err)
				}
			}

			// Report metrics
			flops := int64(2 * size * size * size * b.N)
			seconds := b.Elapsed().Seconds()
			gflops := float64(flops) / seconds / 1e9

			b.ReportMetric(gflops, "GFLOPS")
			b.ReportMetric(float64(size*size*4*3)/(1<<20), "MB") // Memory for A, B, C matrices
		})
	}
}
