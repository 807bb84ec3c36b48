package bench

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/fxnlabs/zebench/internal/gpu"
)

// globalTimer brackets a region of a command list with two global
// timestamps. The timestamps land in device memory and are copied back to
// heap buffers before the list ends.
type globalTimer struct {
	start, stop         *gpu.Buffer
	hostStart, hostStop *gpu.Buffer
}

func newGlobalTimer(s *gpu.Session) (t *globalTimer, err error) {
	t = &globalTimer{}
	defer func() {
		if err != nil {
			err = multierr.Append(err, t.free(s))
			t = nil
		}
	}()
	tsOpts := gpu.AllocOptions{Alignment: 8}
	if t.start, err = s.Alloc(gpu.Device, 8, tsOpts); err != nil {
		return t, err
	}
	if t.stop, err = s.Alloc(gpu.Device, 8, tsOpts); err != nil {
		return t, err
	}
	if t.hostStart, err = s.Alloc(gpu.Heap, 8, tsOpts); err != nil {
		return t, err
	}
	if t.hostStop, err = s.Alloc(gpu.Heap, 8, tsOpts); err != nil {
		return t, err
	}
	return t, nil
}

func (t *globalTimer) begin(list gpu.CommandList) error {
	return list.AppendWriteGlobalTimestamp(t.start)
}

func (t *globalTimer) end(list gpu.CommandList) error {
	if err := list.AppendWriteGlobalTimestamp(t.stop); err != nil {
		return err
	}
	if err := list.AppendBarrier(); err != nil {
		return err
	}
	if err := list.AppendMemoryCopy(t.hostStart, t.start, 8); err != nil {
		return err
	}
	if err := list.AppendMemoryCopy(t.hostStop, t.stop, 8); err != nil {
		return err
	}
	return list.AppendBarrier()
}

// elapsed reads the copied timestamps. Only valid after the list completed.
func (t *globalTimer) elapsed(props gpu.DeviceProperties) (time.Duration, error) {
	start, err := t.hostStart.Uint64s()
	if err != nil {
		return 0, err
	}
	stop, err := t.hostStop.Uint64s()
	if err != nil {
		return 0, err
	}
	return gpu.GlobalDuration(start[0], stop[0], props), nil
}

func (t *globalTimer) free(s *gpu.Session) error {
	return s.Free(t.start, t.stop, t.hostStart, t.hostStop)
}

// resolutionString renders the timer resolution with the unit the device
// reports it in.
func resolutionString(props gpu.DeviceProperties) string {
	if props.CyclesPerSecond {
		return fmt.Sprintf("%d cycles/s", props.TimerResolution)
	}
	return fmt.Sprintf("%d ns", props.TimerResolution)
}
