// Package config holds the tunables of the trace compiler and run-loop.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/sarchlab/rvjit/insts"
)

// EnvPrefix prefixes environment overrides, e.g. RVJIT_HOT_THRESHOLD.
const EnvPrefix = "RVJIT"

// Config holds the run-loop and tracer settings.
type Config struct {
	// MaxTraceLength is the maximum number of guest instructions in one
	// trace, terminator included. Default: 64.
	MaxTraceLength int `json:"max_trace_length" mapstructure:"max_trace_length"`

	// FusionWindow is the number of instructions the fusion matcher may
	// look ahead. Default: 8.
	FusionWindow int `json:"fusion_window" mapstructure:"fusion_window"`

	// Fusion enables idiom fusion. Default: true.
	Fusion bool `json:"fusion" mapstructure:"fusion"`

	// HotThreshold compiles a trace entry after this many visits.
	// 0 disables automatic compilation. Default: 0.
	HotThreshold uint64 `json:"hot_threshold" mapstructure:"hot_threshold"`

	// Invalidation drops compiled traces when guest stores or FENCE.I
	// touch their code. Default: true.
	Invalidation bool `json:"invalidation" mapstructure:"invalidation"`

	// CodeLineSize is the granularity in bytes of code tracking.
	// Default: 64.
	CodeLineSize int `json:"code_line_size" mapstructure:"code_line_size"`

	// CodeSets and CodeWays size the code tracking directory. Evicting a
	// line drops the traces that cover it. Default: 256 sets, 8 ways.
	CodeSets int `json:"code_sets" mapstructure:"code_sets"`
	CodeWays int `json:"code_ways" mapstructure:"code_ways"`

	// MaxInstructions stops the run-loop after this many retired
	// instructions. 0 means no limit. Default: 0.
	MaxInstructions uint64 `json:"max_instructions" mapstructure:"max_instructions"`

	// Extensions is the ISA string, e.g. "rv64im". Default: "rv64im".
	Extensions string `json:"extensions" mapstructure:"extensions"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		MaxTraceLength:  64,
		FusionWindow:    8,
		Fusion:          true,
		HotThreshold:    0,
		Invalidation:    true,
		CodeLineSize:    64,
		CodeSets:        256,
		CodeWays:        8,
		MaxInstructions: 0,
		Extensions:      "rv64im",
	}
}

// Load reads a configuration file (JSON, YAML or TOML, chosen by extension)
// over the defaults and applies RVJIT_* environment overrides. An empty
// path yields the defaults with overrides applied.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	// Only keys viper knows about are looked up in the environment.
	def := Default()
	v.SetDefault("max_trace_length", def.MaxTraceLength)
	v.SetDefault("fusion_window", def.FusionWindow)
	v.SetDefault("fusion", def.Fusion)
	v.SetDefault("hot_threshold", def.HotThreshold)
	v.SetDefault("invalidation", def.Invalidation)
	v.SetDefault("code_line_size", def.CodeLineSize)
	v.SetDefault("code_sets", def.CodeSets)
	v.SetDefault("code_ways", def.CodeWays)
	v.SetDefault("max_instructions", def.MaxInstructions)
	v.SetDefault("extensions", def.Extensions)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save writes the configuration as JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that every value is usable.
func (c *Config) Validate() error {
	if c.MaxTraceLength <= 0 {
		return fmt.Errorf("max_trace_length must be > 0")
	}
	if c.FusionWindow < 2 {
		return fmt.Errorf("fusion_window must be >= 2")
	}
	if c.CodeLineSize <= 0 || c.CodeLineSize&(c.CodeLineSize-1) != 0 {
		return fmt.Errorf("code_line_size must be a power of two")
	}
	if c.CodeSets <= 0 {
		return fmt.Errorf("code_sets must be > 0")
	}
	if c.CodeWays <= 0 {
		return fmt.Errorf("code_ways must be > 0")
	}
	if _, err := c.ISA(); err != nil {
		return err
	}
	return nil
}

// ISA parses Extensions.
func (c *Config) ISA() (insts.Ext, error) {
	return insts.ParseExt(c.Extensions)
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
