package config

import "time"

// Feed types.
const (
	FeedTypeProxy = "proxy"
	FeedTypeGated = "gated"
)

// Config is the root configuration structure
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Feeds   []FeedConfig  `yaml:"feeds"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	HTTP      HTTPConfig  `yaml:"http"`
	WebSocket WSConfig    `yaml:"websocket"`
	Admin     AdminConfig `yaml:"admin"`

	// CallTimeout bounds each request's backend and authority calls.
	CallTimeout Duration `yaml:"call_timeout"`
}

// HTTPConfig configures the HTTP server
type HTTPConfig struct {
	Addr string    `yaml:"addr"`
	TLS  TLSConfig `yaml:"tls"`
}

// WSConfig configures the event stream
type WSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TLSConfig holds TLS certificate configuration
type TLSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cert    string `yaml:"cert"`
	Key     string `yaml:"key"`
}

// AdminConfig enables the mutation endpoints. They stay unregistered
// unless a token is configured.
type AdminConfig struct {
	Token    string `yaml:"token"`
	TokenEnv string `yaml:"token_env"`
}

// FeedConfig configures one proxy
type FeedConfig struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`  // "proxy" or "gated"
	Owner string `yaml:"owner"` // hex address
	// Decimals is read from the aggregator when omitted.
	Decimals   *uint8          `yaml:"decimals"`
	Aggregator BackendConfig   `yaml:"aggregator"`
	Whitelist  WhitelistConfig `yaml:"whitelist"` // gated feeds only
}

// BackendConfig selects a registered backend or authority factory
type BackendConfig struct {
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:"config"`
}

// WhitelistConfig configures the access check of a gated feed.
// With Authority set, Members must be empty.
type WhitelistConfig struct {
	Enabled   *bool          `yaml:"enabled"` // default true
	Members   []string       `yaml:"members"`
	Authority *BackendConfig `yaml:"authority"`
}

// IsEnabled reports whether the whitelist starts enabled.
func (w WhitelistConfig) IsEnabled() bool {
	return w.Enabled == nil || *w.Enabled
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Duration is a wrapper around time.Duration for YAML parsing
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(td)
	return nil
}

// ToDuration converts Duration to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}
