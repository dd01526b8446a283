// Package config reads the optional wasmui.yaml file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caffeineduck/wasmui/guest"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the working directory.
const FileName = "wasmui.yaml"

// DefaultTTL is how long an idle served mount lives.
const DefaultTTL = 5 * time.Minute

// Config represents the optional wasmui.yaml configuration.
type Config struct {
	Module     string      `yaml:"module,omitempty"`
	Memory     string      `yaml:"memory,omitempty"`
	Cache      *bool       `yaml:"cache,omitempty"`
	LogLevel   string      `yaml:"log_level,omitempty"`
	Components []string    `yaml:"components,omitempty"`
	Serve      ServeConfig `yaml:"serve"`
}

// ServeConfig contains HTTP server settings.
type ServeConfig struct {
	Addr string `yaml:"addr,omitempty"`
	TTL  string `yaml:"ttl,omitempty"`
}

// Resolved contains configuration with defaults applied.
type Resolved struct {
	Module      string
	MemoryPages uint32
	Cache       bool
	LogLevel    string
	Components  []string
	ServeAddr   string
	ServeTTL    time.Duration
}

// LoadOptional reads path if present. A missing file yields an empty Config.
func LoadOptional(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return &cfg, nil
}

// Resolve loads path (if present) and resolves defaults.
func Resolve(path string) (*Resolved, error) {
	cfg, err := LoadOptional(path)
	if err != nil {
		return nil, err
	}
	return cfg.Resolve()
}

// Resolve applies defaults and validates values.
func (c *Config) Resolve() (*Resolved, error) {
	r := &Resolved{
		Module:     strings.TrimSpace(c.Module),
		Cache:      true,
		LogLevel:   strings.TrimSpace(c.LogLevel),
		Components: c.Components,
		ServeAddr:  strings.TrimSpace(c.Serve.Addr),
		ServeTTL:   DefaultTTL,
	}

	if c.Cache != nil {
		r.Cache = *c.Cache
	}
	if r.LogLevel == "" {
		r.LogLevel = "warn"
	}
	if r.ServeAddr == "" {
		r.ServeAddr = ":8080"
	}

	if mem := strings.TrimSpace(c.Memory); mem != "" {
		r.MemoryPages = guest.ParseMemoryLimit(mem)
		if r.MemoryPages == 0 {
			return nil, fmt.Errorf("invalid memory %q (expected 1mb, 16mb, 64mb, 256mb, or 1gb)", mem)
		}
	}

	if ttl := strings.TrimSpace(c.Serve.TTL); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid serve.ttl %q: %w", ttl, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("invalid serve.ttl %q: must be positive", ttl)
		}
		r.ServeTTL = d
	}

	return r, nil
}
