package bench

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/fxnlabs/zebench/internal/gpu"
)

const unsupportedSizeMessage = "size argument is not supported by the device"

var allocAttempts = []struct {
	kind      gpu.MemoryType
	alignment uint64
}{
	{gpu.Shared, 128},
	{gpu.Device, 64},
	{gpu.Host, 64},
}

// Alloc tries a relaxed-limit allocation of size bytes of shared, device and
// host memory and reports which ones the device accepts.
func Alloc(ctx context.Context, env Env, size uint64) (report *Report, err error) {
	if size == 0 {
		return nil, errors.New("allocation size must be positive")
	}
	s, err := env.session()
	if err != nil {
		return nil, err
	}
	defer closeSession(s, &err)

	report = newReport("alloc", size)
	var bufs []*gpu.Buffer
	defer func() { free(s, &err, bufs...) }()
	for _, a := range allocAttempts {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		buf, allocErr := allocAnnounced(env.out(), s, a.kind, size, gpu.AllocOptions{Alignment: a.alignment, RelaxedLimits: true})
		if allocErr != nil && !gpu.IsResult(allocErr, gpu.ResultErrorUnsupportedSize) {
			env.logger().Warn("Allocation failed", zap.Stringer("kind", a.kind), zap.Error(allocErr))
		}
		report.Allocations = append(report.Allocations, AllocationResult{Kind: a.kind, Size: size, Supported: allocErr == nil})
		if buf != nil {
			bufs = append(bufs, buf)
		}
	}
	return report, nil
}

// allocAnnounced allocates and prints the outcome the way every
// memory-effect benchmark reports it.
func allocAnnounced(out io.Writer, s *gpu.Session, kind gpu.MemoryType, size uint64, opts gpu.AllocOptions) (*gpu.Buffer, error) {
	return allocLabelled(out, s, kind.String(), kind, size, opts)
}

func allocLabelled(out io.Writer, s *gpu.Session, label string, kind gpu.MemoryType, size uint64, opts gpu.AllocOptions) (*gpu.Buffer, error) {
	fmt.Fprintf(out, "Allocating %s Memory: %s\n", label, sizeString(size))
	buf, err := s.Alloc(kind, size, opts)
	switch {
	case err == nil:
		fmt.Fprintln(out, "\tAlloc OK")
	case gpu.IsResult(err, gpu.ResultErrorUnsupportedSize):
		fmt.Fprintln(out, unsupportedSizeMessage)
	}
	return buf, err
}
