package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Load loads configuration from YAML file and environment variables.
func Load(path string) (*Config, error) {
	// Validate and sanitize path
	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	data, err := os.ReadFile(absPath) // #nosec G304 -- Path sanitized with filepath.Clean and filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses YAML configuration, expanding environment variables first.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.HTTP.Addr == "" {
		cfg.Server.HTTP.Addr = ":8080"
	}
	if cfg.Server.WebSocket.Path == "" {
		cfg.Server.WebSocket.Path = "/ws"
	}
	if cfg.Server.CallTimeout.ToDuration() == 0 {
		cfg.Server.CallTimeout = Duration(10 * time.Second)
	}

	// Feed defaults
	for i := range cfg.Feeds {
		if cfg.Feeds[i].Type == "" {
			cfg.Feeds[i].Type = FeedTypeProxy
		}
	}

	// Metrics defaults
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9091"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// AdminToken returns the configured admin token, reading it from the
// environment when token_env is set. An empty token disables the admin API.
func (s *ServerConfig) AdminToken() string {
	if s.Admin.TokenEnv != "" {
		return os.Getenv(s.Admin.TokenEnv)
	}
	return s.Admin.Token
}

// OwnerAddress returns the parsed owner address.
func (f *FeedConfig) OwnerAddress() common.Address {
	return common.HexToAddress(f.Owner)
}

// MemberAddresses returns the parsed whitelist members.
func (w *WhitelistConfig) MemberAddresses() []common.Address {
	members := make([]common.Address, 0, len(w.Members))
	for _, m := range w.Members {
		members = append(members, common.HexToAddress(m))
	}
	return members
}

// IsGated reports whether the feed puts a whitelist in front of reads.
func (f *FeedConfig) IsGated() bool {
	return f.Type == FeedTypeGated
}
