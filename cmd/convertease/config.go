package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/convertease/internal/formats"
	"github.com/pdiddy/convertease/pkg/types"
)

// secretsDir is where credential files are read from.
const secretsDir = ".secrets/"

// setDefaults registers every configuration key with its default so
// environment overrides (CONVERTEASE_PROXY_LISTEN_ADDR, ...) resolve during
// Unmarshal.
func setDefaults(v *viper.Viper) {
	d := types.DefaultConfig()

	v.SetDefault("proxy.listen_addr", d.Proxy.ListenAddr)
	v.SetDefault("proxy.max_file_size", d.Proxy.MaxFileSize)
	v.SetDefault("proxy.max_request_size", d.Proxy.MaxRequestSize)
	v.SetDefault("proxy.formats_file", d.Proxy.FormatsFile)
	v.SetDefault("proxy.upstream.base_url", d.Proxy.Upstream.BaseURL)
	v.SetDefault("proxy.upstream.api_key", "")
	v.SetDefault("proxy.upstream.timeout", d.Proxy.Upstream.Timeout)
	v.SetDefault("proxy.upstream.user_agent", d.Proxy.Upstream.UserAgent)
	v.SetDefault("proxy.upstream.body_mode", string(d.Proxy.Upstream.BodyMode))
	v.SetDefault("proxy.upstream.requests_per_second", d.Proxy.Upstream.RequestsPerSecond)
	v.SetDefault("proxy.upstream.burst", d.Proxy.Upstream.Burst)

	v.SetDefault("client.proxy_url", d.Client.ProxyURL)
	v.SetDefault("client.timeout", d.Client.Timeout)
	v.SetDefault("client.user_agent", d.Client.UserAgent)
	v.SetDefault("client.max_file_size", d.Client.MaxFileSize)
	v.SetDefault("client.poll.interval", d.Client.Poll.Interval)
	v.SetDefault("client.poll.max_attempts", d.Client.Poll.MaxAttempts)
}

// configureEnv maps nested keys onto CONVERTEASE_* variables.
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("CONVERTEASE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// loadConfig decodes the merged configuration (defaults, file, env, bound
// flags) and checks the values that would otherwise fail late.
func loadConfig(v *viper.Viper) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding configuration: %w", err)
	}
	switch cfg.Proxy.Upstream.BodyMode {
	case types.BodyMultipart, types.BodyJSON:
	default:
		return types.Config{}, &types.ConfigurationError{
			Message: fmt.Sprintf("unknown body_mode %q (want multipart or json)", cfg.Proxy.Upstream.BodyMode),
		}
	}
	if cfg.Proxy.MaxFileSize <= 0 || cfg.Client.MaxFileSize <= 0 {
		return types.Config{}, &types.ConfigurationError{Message: "max_file_size must be positive"}
	}
	if cfg.Proxy.MaxRequestSize <= 0 {
		return types.Config{}, &types.ConfigurationError{Message: "max_request_size must be positive"}
	}
	cfg.Client.Poll = cfg.Client.Poll.Normalize()
	return cfg, nil
}

// formatsFile returns the --formats-file flag when set, else configured.
func formatsFile(cmd *cobra.Command, configured string) string {
	if f, _ := cmd.Flags().GetString("formats-file"); f != "" {
		return f
	}
	return configured
}

// loadTable returns the format tables, from path when set.
func loadTable(path string) (*formats.Table, error) {
	if path == "" {
		return formats.Default(), nil
	}
	return formats.Load(path)
}
