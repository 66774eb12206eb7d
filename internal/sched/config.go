package sched

import (
	"fmt"
	"os"
	"strings"

	yaml "github.com/goccy/go-yaml"
)

// Config mirrors config.yml
type Config struct {
	TickMS         int    `yaml:"tick_ms"`         // 1 (by default)
	HeapBytes      int    `yaml:"heap_bytes"`      // 4096 (by default)
	CallbackTimers int    `yaml:"callback_timers"` // 15 (by default), one bank per 15 slots
	PowerSaving    bool   `yaml:"power_saving"`    // true (by default)
	Device         string `yaml:"device_class"`    // always_on | battery
	Poll           bool   `yaml:"poll"`            // drive timers from RunOnce instead of a tick goroutine
}

// DefaultConfig returns the values used when no config file is given.
func DefaultConfig() Config {
	return Config{
		TickMS:         1,
		HeapBytes:      4096,
		CallbackTimers: 15,
		PowerSaving:    true,
		Device:         "always_on",
	}
}

// DeviceClass parses the device_class field. Unknown values fall back to
// always-on, which never idles.
func (c Config) DeviceClass() DeviceClass {
	switch strings.ToLower(strings.TrimSpace(c.Device)) {
	case "battery":
		return DeviceBattery
	default:
		return DeviceAlwaysOn
	}
}

// Load reads YAML and overrides defaults; empty path = defaults only
func Load(path string) Config {
	cfg := DefaultConfig()

	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	_ = yaml.Unmarshal(data, &cfg)
	return cfg.clamp()
}

// LoadFile is the strict form of Load: a missing or malformed file is an
// error.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg.clamp(), nil
}

// sanity clamps
func (c Config) clamp() Config {
	if c.TickMS <= 0 {
		c.TickMS = 1
	}
	if c.HeapBytes <= 0 {
		c.HeapBytes = 4096
	}
	if c.CallbackTimers < 0 {
		c.CallbackTimers = 0
	}
	return c
}
