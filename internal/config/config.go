package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fxnlabs/zebench/fixtures"
)

type Config struct {
	Logger struct {
		Verbosity string `yaml:"verbosity"`
		Format    string `yaml:"format"`
	} `yaml:"logger"`
	GPU struct {
		Backend     string        `yaml:"backend"`
		KernelDir   string        `yaml:"kernelDir"`
		SyncTimeout time.Duration `yaml:"syncTimeout"`
	} `yaml:"gpu"`
	Bench struct {
		TransferIterations     int `yaml:"transferIterations"`
		MemoryEffectIterations int `yaml:"memoryEffectIterations"`
	} `yaml:"bench"`
	Runner struct {
		Database          string        `yaml:"database"`
		KernelSizes       []uint32      `yaml:"kernelSizes"`
		KernelRepetitions int           `yaml:"kernelRepetitions"`
		CopyStartBytes    uint64        `yaml:"copyStartBytes"`
		CopySteps         int           `yaml:"copySteps"`
		MaxAttempts       uint64        `yaml:"maxAttempts"`
		RetryInterval     time.Duration `yaml:"retryInterval"`
	} `yaml:"runner"`
	Metrics struct {
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`
}

// Default returns the configuration written by `zebench init`.
func Default() *Config {
	var config Config
	if err := yaml.Unmarshal(fixtures.ConfigTemplate, &config); err != nil {
		panic(fmt.Sprintf("embedded config template is invalid: %v", err))
	}
	return &config
}

// LoadConfig reads path on top of the defaults, so a file only needs the
// keys it changes.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := Default()
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return config, nil
}

// Load is LoadConfig that falls back to Default when path does not exist.
func Load(path string) (*Config, error) {
	config, err := LoadConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return config, err
}

func (c *Config) Validate() error {
	switch c.GPU.Backend {
	case "", "auto", "levelzero", "emulator":
	default:
		return fmt.Errorf("unknown gpu backend %q", c.GPU.Backend)
	}
	for _, size := range c.Runner.KernelSizes {
		if size == 0 {
			return errors.New("runner kernel sizes must be positive")
		}
	}
	if c.Runner.KernelRepetitions < 1 {
		return errors.New("runner kernelRepetitions must be at least 1")
	}
	if c.Runner.CopyStartBytes == 0 || c.Runner.CopySteps < 1 {
		return errors.New("runner copy sweep needs a positive start size and at least one step")
	}
	if c.Runner.MaxAttempts < 1 {
		return errors.New("runner maxAttempts must be at least 1")
	}
	if c.Bench.TransferIterations < 1 || c.Bench.MemoryEffectIterations < 1 {
		return errors.New("bench iterations must be at least 1")
	}
	return nil
}
