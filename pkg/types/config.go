// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Defaults for the conversion pipeline.
const (
	DefaultMaxFileSize     int64 = 100 * 1024 * 1024
	DefaultMaxRequestSize  int64 = 256 * 1024 * 1024
	DefaultTimeout               = 30 * time.Second
	DefaultPollInterval          = 2 * time.Second
	DefaultMaxPollAttempts       = 30
	DefaultListenAddr            = ":8080"
	DefaultUpstreamURL           = "https://api.cloudmersive.com"
	DefaultProxyURL              = "http://localhost:8080"
	DefaultUserAgent             = "convertease/0.1"
)

// BodyMode selects how file bytes are sent to the conversion API.
type BodyMode string

const (
	// BodyMultipart posts the file as the multipart field "inputFile".
	BodyMultipart BodyMode = "multipart"
	// BodyJSON posts {"FileBytes": <base64>}.
	BodyJSON BodyMode = "json"
)

// HTTPConfig holds shared HTTP settings used by every outbound client.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// UpstreamConfig describes the external conversion API.
type UpstreamConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the API root (default https://api.cloudmersive.com).
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// APIKey is sent as the Apikey header. Never logged.
	APIKey string `json:"-" yaml:"-" mapstructure:"api_key"`

	// BodyMode selects multipart or JSON uploads (default multipart).
	BodyMode BodyMode `json:"body_mode" yaml:"body_mode" mapstructure:"body_mode"`

	// RequestsPerSecond paces outbound calls; zero disables pacing.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`

	// Burst is the limiter burst size (default 1).
	Burst int `json:"burst" yaml:"burst" mapstructure:"burst"`
}

// ProxyConfig holds settings for the conversion proxy service.
type ProxyConfig struct {
	// ListenAddr is the HTTP listen address (default :8080).
	ListenAddr string `json:"listen_addr" yaml:"listen_addr" mapstructure:"listen_addr"`

	// MaxFileSize is the per-file limit in bytes (default 100 MiB).
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size" mapstructure:"max_file_size"`

	// MaxRequestSize caps a whole request body in bytes (default 256 MiB).
	// It is raised to fit at least one maximum-size file.
	MaxRequestSize int64 `json:"max_request_size" yaml:"max_request_size" mapstructure:"max_request_size"`

	// FormatsFile optionally replaces the built-in format tables.
	FormatsFile string `json:"formats_file,omitempty" yaml:"formats_file,omitempty" mapstructure:"formats_file"`

	Upstream UpstreamConfig `json:"upstream" yaml:"upstream" mapstructure:"upstream"`
}

// PollConfig bounds the job polling loop.
type PollConfig struct {
	// Interval is the wait between polls (default 2s).
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`

	// MaxAttempts is the attempt ceiling (default 30).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`
}

// ClientConfig holds settings for the conversion orchestrator.
type ClientConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// ProxyURL is the base URL of the conversion proxy.
	ProxyURL string `json:"proxy_url" yaml:"proxy_url" mapstructure:"proxy_url"`

	// MaxFileSize is the per-file limit checked at selection time.
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size" mapstructure:"max_file_size"`

	Poll PollConfig `json:"poll" yaml:"poll" mapstructure:"poll"`
}

// Config groups the configuration of both sides of the pipeline.
type Config struct {
	Proxy  ProxyConfig  `json:"proxy" yaml:"proxy" mapstructure:"proxy"`
	Client ClientConfig `json:"client" yaml:"client" mapstructure:"client"`
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	return Config{
		Proxy: ProxyConfig{
			ListenAddr:     DefaultListenAddr,
			MaxFileSize:    DefaultMaxFileSize,
			MaxRequestSize: DefaultMaxRequestSize,
			Upstream: UpstreamConfig{
				HTTPConfig: HTTPConfig{Timeout: DefaultTimeout, UserAgent: DefaultUserAgent},
				BaseURL:    DefaultUpstreamURL,
				BodyMode:   BodyMultipart,
				Burst:      1,
			},
		},
		Client: ClientConfig{
			HTTPConfig:  HTTPConfig{Timeout: DefaultTimeout, UserAgent: DefaultUserAgent},
			ProxyURL:    DefaultProxyURL,
			MaxFileSize: DefaultMaxFileSize,
			Poll: PollConfig{
				Interval:    DefaultPollInterval,
				MaxAttempts: DefaultMaxPollAttempts,
			},
		},
	}
}

// Normalize fills zero fields with defaults.
func (c PollConfig) Normalize() PollConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultPollInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxPollAttempts
	}
	return c
}
