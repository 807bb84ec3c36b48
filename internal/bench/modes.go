package bench

import (
	"fmt"
	"sort"
	"strings"
)

// Placement decides where the buffers of a memory-effect benchmark live.
type Placement int

const (
	// PlacementShared binds shared allocations to the kernel.
	PlacementShared Placement = iota
	// PlacementDevice binds device allocations, staged through heap memory.
	PlacementDevice
	// PlacementHostStaging binds device allocations, staged through
	// driver-allocated host memory.
	PlacementHostStaging
	// PlacementHostOnly binds host allocations directly.
	PlacementHostOnly
)

func (p Placement) String() string {
	switch p {
	case PlacementShared:
		return "Shared Memory"
	case PlacementDevice:
		return "Device Memory"
	case PlacementHostStaging:
		return "Combined Host/Device Memory"
	case PlacementHostOnly:
		return "Host ONLY Memory"
	default:
		return fmt.Sprintf("Placement(%d)", int(p))
	}
}

var vectorModes = map[string]Placement{
	"s": PlacementShared,
	"d": PlacementDevice,
	"h": PlacementHostStaging,
	"o": PlacementHostOnly,
}

var matrixModes = map[string]Placement{
	"s": PlacementShared,
	"d": PlacementDevice,
	"c": PlacementHostStaging,
	"h": PlacementHostOnly,
}

// ParseVectorMode maps the memory-effect mode letters s, d, h and o.
func ParseVectorMode(mode string) (Placement, error) {
	return parseMode(vectorModes, mode)
}

// ParseMatrixMode maps the matrix memory-effect mode letters s, d, c and h.
func ParseMatrixMode(mode string) (Placement, error) {
	return parseMode(matrixModes, mode)
}

func parseMode(modes map[string]Placement, mode string) (Placement, error) {
	if p, ok := modes[mode]; ok {
		return p, nil
	}
	valid := make([]string, 0, len(modes))
	for k, p := range modes {
		valid = append(valid, fmt.Sprintf("%s (%s)", k, p))
	}
	sort.Strings(valid)
	return 0, fmt.Errorf("unknown mode %q, valid modes: %s", mode, strings.Join(valid, ", "))
}
