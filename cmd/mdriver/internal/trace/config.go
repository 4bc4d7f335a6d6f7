package trace

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/noip2019/malloclab/malloc"
)

// Config is the driver configuration file
type Config struct {
	// TraceDir is prepended to relative trace paths
	TraceDir string   `toml:"trace_dir"`
	Traces   []string `toml:"traces"`
	Check    bool     `toml:"check"`

	Allocator AllocatorConfig `toml:"allocator"`
}

// AllocatorConfig holds the allocator tunables. Zero values select the allocator's defaults.
type AllocatorConfig struct {
	ArenaSize       int  `toml:"arena_size"`
	ChunkSize       int  `toml:"chunk_size"`
	ExactClassShift int  `toml:"exact_class_shift"`
	BucketCount     int  `toml:"bucket_count"`
	Mapped          bool `toml:"mapped"`
	ValidateEveryOp bool `toml:"validate_every_op"`
}

// LoadConfig reads a TOML configuration file. Unknown keys are an error.
func LoadConfig(path string) (*Config, error) {
	var config Config

	metadata, err := toml.DecodeFile(path, &config)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load config %s", path)
	}

	undecoded := metadata.Undecoded()
	if len(undecoded) > 0 {
		return nil, errors.Errorf("config %s has unknown key %s", path, undecoded[0].String())
	}

	return &config, nil
}

// CreateOptions converts the allocator section into allocator options
func (c AllocatorConfig) CreateOptions() malloc.CreateOptions {
	options := malloc.CreateOptions{
		ArenaSize:       c.ArenaSize,
		ChunkSize:       c.ChunkSize,
		ExactClassShift: c.ExactClassShift,
		BucketCount:     c.BucketCount,
	}

	if c.Mapped {
		options.Flags |= malloc.AllocatorCreateMappedArena
	}
	if c.ValidateEveryOp {
		options.Flags |= malloc.AllocatorCreateValidateEveryOp
	}

	return options
}

// TracePaths returns the configured traces, resolved against TraceDir
func (c *Config) TracePaths() []string {
	paths := make([]string, 0, len(c.Traces))
	for _, trace := range c.Traces {
		if c.TraceDir != "" && !filepath.IsAbs(trace) {
			trace = filepath.Join(c.TraceDir, trace)
		}
		paths = append(paths, trace)
	}

	return paths
}

// ParseFile reads the trace at path and names it after the file
func ParseFile(path string) (*Trace, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open trace %s", path)
	}
	defer file.Close()

	t, err := Parse(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse trace %s", path)
	}

	t.Name = filepath.Base(path)
	return t, nil
}
