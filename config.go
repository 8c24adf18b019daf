package qsim

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FailurePolicy decides what a failed experiment does to the rest of its job.
type FailurePolicy string

const (
	// FailAbort stops the job at the first failed experiment.
	FailAbort FailurePolicy = "abort"
	// FailContinue records the failure and runs the remaining experiments.
	FailContinue FailurePolicy = "continue"
)

type Config struct {
	SchedulingTimeout time.Duration `mapstructure:"scheduling_timeout"`
	Workers           int           `mapstructure:"workers"`
	MaxQubits         int           `mapstructure:"max_qubits"`
	MaxShots          int           `mapstructure:"max_shots"`
	MemoryFraction    float64       `mapstructure:"memory_fraction"`
	Parallelism       int           `mapstructure:"parallelism"`
	FailurePolicy     FailurePolicy `mapstructure:"failure_policy"`
	Precision         int           `mapstructure:"precision"`
	MemoryFormat      MemoryFormat  `mapstructure:"memory_format"`
	ShotReplay        bool          `mapstructure:"shot_replay"`
	ResultTTL         time.Duration `mapstructure:"result_ttl"`
}

func NewConfig() *Config {
	return &Config{
		SchedulingTimeout: 10 * time.Second,
		Workers:           4,
		MaxQubits:         30,
		MaxShots:          1 << 20,
		MemoryFraction:    0.5,
		Parallelism:       1,
		FailurePolicy:     FailAbort,
		Precision:         8,
		MemoryFormat:      FormatBinary,
		ResultTTL:         10 * time.Minute,
	}
}

/*
LoadConfig builds a Config from the defaults, an optional config file and
QSIM_ prefixed environment variables, in increasing order of precedence.

Parameters:
  - path: config file to read, or "" for environment only

Returns:
  - *Config: the validated configuration
  - error: a read, decode or validation failure
*/
func LoadConfig(path string) (*Config, error) {
	defaults := NewConfig()

	v := viper.New()
	v.SetEnvPrefix("qsim")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("scheduling_timeout", defaults.SchedulingTimeout)
	v.SetDefault("workers", defaults.Workers)
	v.SetDefault("max_qubits", defaults.MaxQubits)
	v.SetDefault("max_shots", defaults.MaxShots)
	v.SetDefault("memory_fraction", defaults.MemoryFraction)
	v.SetDefault("parallelism", defaults.Parallelism)
	v.SetDefault("failure_policy", string(defaults.FailurePolicy))
	v.SetDefault("precision", defaults.Precision)
	v.SetDefault("memory_format", string(defaults.MemoryFormat))
	v.SetDefault("shot_replay", defaults.ShotReplay)
	v.SetDefault("result_ttl", defaults.ResultTTL)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.FailurePolicy {
	case FailAbort, FailContinue:
	default:
		return fmt.Errorf("unknown failure policy %q", c.FailurePolicy)
	}

	switch c.MemoryFormat {
	case FormatBinary, FormatHex:
	default:
		return fmt.Errorf("unknown memory format %q", c.MemoryFormat)
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}

	if c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism)
	}

	if c.MaxQubits < 1 || c.MaxQubits > 62 {
		return fmt.Errorf("max_qubits %d outside 1..62", c.MaxQubits)
	}

	if c.MaxShots < 1 {
		return fmt.Errorf("max_shots must be at least 1, got %d", c.MaxShots)
	}

	if c.MemoryFraction <= 0 || c.MemoryFraction > 1 {
		return fmt.Errorf("memory_fraction %v outside (0, 1]", c.MemoryFraction)
	}

	return nil
}

func (c *Config) schedulingTimeout() time.Duration {
	if c != nil && c.SchedulingTimeout > 0 {
		return c.SchedulingTimeout
	}
	return 5 * time.Second
}
