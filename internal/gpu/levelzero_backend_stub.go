//go:build !levelzero

package gpu

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var errLevelZeroNotCompiled = errors.New("level zero support not compiled in (build with -tags levelzero)")

// LevelZeroBackend is a stub type when the binary is built without the
// levelzero tag. It is never available.
type LevelZeroBackend struct {
	logger *zap.Logger
}

func NewLevelZeroBackend(logger *zap.Logger) *LevelZeroBackend {
	return &LevelZeroBackend{logger: logger}
}

func (z *LevelZeroBackend) Name() string      { return "levelzero" }
func (z *LevelZeroBackend) IsAvailable() bool { return false }
func (z *LevelZeroBackend) Initialize() error { return errLevelZeroNotCompiled }
func (z *LevelZeroBackend) Cleanup() error    { return nil }

func (z *LevelZeroBackend) DeviceProperties() (DeviceProperties, error) {
	return DeviceProperties{}, errLevelZeroNotCompiled
}

func (z *LevelZeroBackend) QueueGroups() ([]QueueGroup, error) {
	return nil, errLevelZeroNotCompiled
}

func (z *LevelZeroBackend) CreateCommandQueue(uint32) (CommandQueue, error) {
	return nil, errLevelZeroNotCompiled
}

func (z *LevelZeroBackend) CreateCommandList(uint32) (CommandList, error) {
	return nil, errLevelZeroNotCompiled
}

func (z *LevelZeroBackend) Alloc(MemoryType, uint64, AllocOptions) (*Buffer, error) {
	return nil, errLevelZeroNotCompiled
}

func (z *LevelZeroBackend) Free(*Buffer) error { return errLevelZeroNotCompiled }

func (z *LevelZeroBackend) CreateModule(ModuleSource) (Module, error) {
	return nil, errLevelZeroNotCompiled
}

func (z *LevelZeroBackend) CreateEventPool(uint32, bool) (EventPool, error) {
	return nil, errLevelZeroNotCompiled
}
