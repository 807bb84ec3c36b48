package gpu

import (
	"math"
	"math/bits"
	"time"

	"github.com/pkg/errors"
)

// KernelTimestamp mirrors ze_kernel_timestamp_result_t.
type KernelTimestamp struct {
	GlobalStart  uint64
	GlobalEnd    uint64
	ContextStart uint64
	ContextEnd   uint64
}

// KernelTimestampSize is the size in bytes of one ze_kernel_timestamp_result_t.
const KernelTimestampSize = 32

// ReadKernelTimestamps decodes the results written by
// AppendQueryKernelTimestamps.
func ReadKernelTimestamps(buf *Buffer, count int) ([]KernelTimestamp, error) {
	words, err := buf.Uint64s()
	if err != nil {
		return nil, err
	}
	if len(words) < count*4 {
		return nil, errors.Errorf("timestamp buffer holds %d results, want %d", len(words)/4, count)
	}
	out := make([]KernelTimestamp, count)
	for i := range out {
		w := words[i*4 : i*4+4]
		out[i] = KernelTimestamp{GlobalStart: w[0], GlobalEnd: w[1], ContextStart: w[2], ContextEnd: w[3]}
	}
	return out, nil
}

// TimestampDelta returns end-start modulo 2^validBits so a counter that
// wrapped between the two samples still yields the elapsed ticks.
func TimestampDelta(start, end uint64, validBits uint32) uint64 {
	mask := uint64(math.MaxUint64)
	if validBits > 0 && validBits < 64 {
		mask = 1<<validBits - 1
	}
	return (end - start) & mask
}

// TicksToDuration converts device timer ticks to a duration. Before API 1.2
// the timer resolution is nanoseconds per tick; drivers queried with the 1.2
// properties report ticks per second instead.
func TicksToDuration(ticks uint64, props DeviceProperties) time.Duration {
	res := props.TimerResolution
	if res == 0 {
		return 0
	}
	if !props.CyclesPerSecond {
		hi, lo := bits.Mul64(ticks, res)
		if hi != 0 || lo > math.MaxInt64 {
			return time.Duration(math.MaxInt64)
		}
		return time.Duration(lo)
	}
	hi, lo := bits.Mul64(ticks, uint64(time.Second))
	if hi >= res {
		return time.Duration(math.MaxInt64)
	}
	ns, _ := bits.Div64(hi, lo, res)
	if ns > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ns)
}

// KernelDuration is the context-time duration of a kernel.
func KernelDuration(ts KernelTimestamp, props DeviceProperties) time.Duration {
	return TicksToDuration(TimestampDelta(ts.ContextStart, ts.ContextEnd, props.KernelTimestampValidBits), props)
}

// GlobalDuration is the duration between two global timestamps.
func GlobalDuration(start, end uint64, props DeviceProperties) time.Duration {
	return TicksToDuration(TimestampDelta(start, end, props.TimestampValidBits), props)
}
