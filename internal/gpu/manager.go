package gpu

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const (
	BackendAuto      = "auto"
	BackendLevelZero = "levelzero"
	BackendEmulator  = "emulator"
)

// Manager handles backend selection
type Manager struct {
	backend Backend
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewManager creates a new manager and selects a backend. preference is one
// of auto, levelzero or emulator; auto prefers Level Zero when it is compiled
// in and a driver is present.
func NewManager(logger *zap.Logger, preference string) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		logger: logger,
	}

	if err := m.detect(preference); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Manager) detect(preference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch preference {
	case "", BackendAuto:
		if lz := NewLevelZeroBackend(m.logger); lz.IsAvailable() {
			m.backend = lz
		} else {
			m.backend = NewEmulatorBackend(m.logger)
		}
	case BackendLevelZero:
		lz := NewLevelZeroBackend(m.logger)
		if !lz.IsAvailable() {
			return fmt.Errorf("level zero backend requested but not available")
		}
		m.backend = lz
	case BackendEmulator:
		m.backend = NewEmulatorBackend(m.logger)
	default:
		return fmt.Errorf("unknown backend %q (valid: %s, %s, %s)", preference, BackendAuto, BackendLevelZero, BackendEmulator)
	}
	m.logger.Info("Using backend", zap.String("backend", m.backend.Name()))
	return nil
}

// Backend returns the selected backend
func (m *Manager) Backend() Backend {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.backend
}

// IsGPUAvailable returns true if a real driver backs the manager
func (m *Manager) IsGPUAvailable() bool {
	backend := m.Backend()
	if backend == nil {
		return false
	}
	_, isEmulator := backend.(*EmulatorBackend)
	return !isEmulator
}

// BackendType returns the name of the selected backend
func (m *Manager) BackendType() string {
	backend := m.Backend()
	if backend == nil {
		return "none"
	}
	return backend.Name()
}

// Cleanup releases resources held by the current backend
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		if err := m.backend.Cleanup(); err != nil {
			return err
		}
		m.backend = nil
	}
	return nil
}
