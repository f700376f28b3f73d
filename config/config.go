// Package config loads memdbg settings from YAML and turns them into
// debugger options.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wnxd/memdbg/console"
	"github.com/wnxd/memdbg/debugger"
	"github.com/wnxd/memdbg/debugger/cdb"
)

type Config struct {
	// DialectFile replaces the built-in cdb vocabulary.
	DialectFile string `yaml:"dialect_file,omitempty"`
	// Arch is assumed when the process lister cannot tell.
	Arch string `yaml:"arch,omitempty"`
	// Default: 30s. Zero waits forever.
	AttachTimeout time.Duration `yaml:"attach_timeout,omitempty"`
	ChunkReset    bool          `yaml:"chunk_reset,omitempty"`
	// Default: 50000
	RegionSize int `yaml:"region_size,omitempty"`
	// block or spin. Default: block
	Wait          string `yaml:"wait,omitempty"`
	StrictModules bool   `yaml:"strict_modules,omitempty"`
	Permissive    bool   `yaml:"permissive,omitempty"`
	// Default: 0x1000
	AllocSize uint64 `yaml:"alloc_size,omitempty"`

	Log Log `yaml:"log,omitempty"`
}

type Log struct {
	Enabled bool `yaml:"enabled,omitempty"`
	// Comma separated layers: console, wire, debugger, bridge.
	Output string `yaml:"output,omitempty"`
	File   string `yaml:"file,omitempty"`
}

// Default returns a Config with the cdb defaults.
func Default() *Config {
	return &Config{
		Arch:          console.ARCH_X86_64.String(),
		AttachTimeout: console.DefaultAttachTimeout,
		RegionSize:    console.DefaultRegionSize,
		Wait:          console.WAIT_BLOCK.String(),
		AllocSize:     debugger.DefaultAllocSize,
	}
}

// Load reads the YAML file at path over the defaults. An empty path only
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	cfg.loadFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	defaults := Default()
	if c.RegionSize == 0 {
		c.RegionSize = defaults.RegionSize
	}
	if c.AllocSize == 0 {
		c.AllocSize = defaults.AllocSize
	}
	if c.Wait == "" {
		c.Wait = defaults.Wait
	}
	if c.Arch == "" {
		c.Arch = defaults.Arch
	}
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("MEMDBG_DIALECT"); v != "" {
		c.DialectFile = v
	}
	if v := os.Getenv("MEMDBG_WAIT"); v != "" {
		c.Wait = v
	}
	if v := os.Getenv("MEMDBG_ATTACH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.AttachTimeout = d
		}
	}
}

func (c *Config) Validate() error {
	var errs []string
	if c.AttachTimeout < 0 {
		errs = append(errs, fmt.Sprintf("attach_timeout must not be negative, got %v", c.AttachTimeout))
	}
	if c.RegionSize < 1024 {
		errs = append(errs, fmt.Sprintf("region_size must be at least 1024, got %d", c.RegionSize))
	}
	if _, err := console.ParseWaitStrategy(c.Wait); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := console.ParseArch(c.Arch); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Console builds the session settings, loading the dialect file if one is
// set. A dialect with a new name is registered against the cdb facade.
func (c *Config) Console() (console.Config, error) {
	cfg := console.DefaultConfig()
	if c.DialectFile != "" {
		d, err := console.LoadDialect(c.DialectFile)
		if err != nil {
			return cfg, err
		}
		cdb.RegisterDialect(d.Name)
		cfg.Dialect = d
	}
	cfg.Arch, _ = console.ParseArch(c.Arch)
	cfg.Wait, _ = console.ParseWaitStrategy(c.Wait)
	cfg.AttachTimeout = c.AttachTimeout
	cfg.ChunkReset = c.ChunkReset
	cfg.RegionSize = c.RegionSize
	return cfg, nil
}

func (c *Config) Options() ([]debugger.Option, error) {
	con, err := c.Console()
	if err != nil {
		return nil, err
	}
	return []debugger.Option{
		debugger.WithConsole(con),
		debugger.WithStrictModules(c.StrictModules),
		debugger.WithPermissive(c.Permissive),
		debugger.WithAllocSize(c.AllocSize),
	}, nil
}
