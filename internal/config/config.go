// Package config provides the configuration schema and loader for the
// voicewire audio transport client.
package config

// LogLevel controls log verbosity for the voicewire client.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Wire rates contractually fixed by the speech service. The config may
// restate them but never change them; [Validate] rejects other values.
const (
	// OutboundWireRate is the sample rate of chunks sent to the service.
	OutboundWireRate = 16000

	// InboundWireRate is the sample rate of chunks received from the
	// service, which equals the output device rate by contract.
	InboundWireRate = 24000
)

// Config is the root configuration structure for voicewire.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Service ServiceConfig `yaml:"service"`
	Capture CaptureConfig `yaml:"capture"`
}

// ServerConfig holds logging and metrics settings for the client process.
type ServerConfig struct {
	// MetricsAddr is the TCP address the Prometheus /metrics endpoint
	// listens on (e.g., ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ServiceConfig identifies the upstream speech service.
type ServiceConfig struct {
	// URL is the WebSocket endpoint of the speech service
	// (e.g., "wss://speech.example.com/v1/dialog").
	URL string `yaml:"url"`

	// APIKey authenticates the session. Sent as a bearer token.
	APIKey string `yaml:"api_key"`

	// OutboundRate is the outbound wire rate in Hz. Defaults to
	// [OutboundWireRate]; any other value is a validation error.
	OutboundRate int `yaml:"outbound_rate"`

	// InboundRate is the inbound wire rate in Hz. Defaults to
	// [InboundWireRate]; any other value is a validation error.
	InboundRate int `yaml:"inbound_rate"`
}

// CaptureConfig describes the expected microphone capture format. The
// pipeline converts whatever arrives, so these values are advisory defaults
// for the capture provider rather than hard constraints.
type CaptureConfig struct {
	// SampleRate is the preferred capture rate in Hz.
	SampleRate int `yaml:"sample_rate"`

	// Channels is the preferred capture channel count.
	Channels int `yaml:"channels"`
}
