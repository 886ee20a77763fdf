package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values, applying
// defaults for omitted fields. It returns a joined error listing all
// validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Service
	if cfg.Service.URL == "" {
		errs = append(errs, errors.New("service.url is required"))
	} else if !strings.HasPrefix(cfg.Service.URL, "ws://") && !strings.HasPrefix(cfg.Service.URL, "wss://") {
		errs = append(errs, fmt.Errorf("service.url %q must use the ws:// or wss:// scheme", cfg.Service.URL))
	}

	if cfg.Service.OutboundRate == 0 {
		cfg.Service.OutboundRate = OutboundWireRate
	} else if cfg.Service.OutboundRate != OutboundWireRate {
		errs = append(errs, fmt.Errorf("service.outbound_rate %d is not supported; the service contract fixes it at %d", cfg.Service.OutboundRate, OutboundWireRate))
	}
	if cfg.Service.InboundRate == 0 {
		cfg.Service.InboundRate = InboundWireRate
	} else if cfg.Service.InboundRate != InboundWireRate {
		errs = append(errs, fmt.Errorf("service.inbound_rate %d is not supported; the service contract fixes it at %d", cfg.Service.InboundRate, InboundWireRate))
	}

	// Capture
	if cfg.Capture.SampleRate == 0 {
		cfg.Capture.SampleRate = 48000
	} else if cfg.Capture.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("capture.sample_rate %d must be positive", cfg.Capture.SampleRate))
	}
	if cfg.Capture.Channels == 0 {
		cfg.Capture.Channels = 1
	} else if cfg.Capture.Channels < 0 {
		errs = append(errs, fmt.Errorf("capture.channels %d must be positive", cfg.Capture.Channels))
	}

	return errors.Join(errs...)
}
