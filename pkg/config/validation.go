package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Validate checks configuration for errors
func Validate(cfg *Config) error {
	if err := validateServerConfig(&cfg.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if len(cfg.Feeds) == 0 {
		return ErrNoFeedsConfigured
	}
	seen := make(map[string]struct{}, len(cfg.Feeds))
	for i := range cfg.Feeds {
		feed := &cfg.Feeds[i]
		if err := validateFeedConfig(feed); err != nil {
			return fmt.Errorf("feed %d (%s): %w", i, feed.Name, err)
		}
		if _, ok := seen[feed.Name]; ok {
			return fmt.Errorf("feed %d: %w: %s", i, ErrDuplicateFeed, feed.Name)
		}
		seen[feed.Name] = struct{}{}
	}

	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func validateServerConfig(cfg *ServerConfig) error {
	if cfg.HTTP.TLS.Enabled {
		if cfg.HTTP.TLS.Cert == "" || cfg.HTTP.TLS.Key == "" {
			return ErrTLSConfigIncomplete
		}
		if _, err := os.Stat(cfg.HTTP.TLS.Cert); err != nil {
			return fmt.Errorf("%w: %s", ErrTLSCertNotFound, cfg.HTTP.TLS.Cert)
		}
		if _, err := os.Stat(cfg.HTTP.TLS.Key); err != nil {
			return fmt.Errorf("%w: %s", ErrTLSKeyNotFound, cfg.HTTP.TLS.Key)
		}
	}

	if cfg.Admin.TokenEnv != "" && os.Getenv(cfg.Admin.TokenEnv) == "" {
		return fmt.Errorf("%w: %s", ErrAdminTokenEnvNotSet, cfg.Admin.TokenEnv)
	}

	return nil
}

func validateFeedConfig(cfg *FeedConfig) error {
	if cfg.Name == "" {
		return ErrFeedNameRequired
	}

	feedType := strings.ToLower(cfg.Type)
	if feedType != FeedTypeProxy && feedType != FeedTypeGated {
		return fmt.Errorf("%w: %s (must be '%s' or '%s')", ErrInvalidFeedType, cfg.Type, FeedTypeProxy, FeedTypeGated)
	}
	cfg.Type = feedType

	if !common.IsHexAddress(cfg.Owner) || cfg.OwnerAddress() == (common.Address{}) {
		return fmt.Errorf("%w: %q", ErrInvalidOwner, cfg.Owner)
	}

	if cfg.Aggregator.Type == "" {
		return fmt.Errorf("aggregator: %w", ErrBackendTypeRequired)
	}

	return validateWhitelistConfig(cfg)
}

func validateWhitelistConfig(cfg *FeedConfig) error {
	wl := &cfg.Whitelist
	configured := wl.Enabled != nil || len(wl.Members) > 0 || wl.Authority != nil

	if !cfg.IsGated() {
		if configured {
			return ErrWhitelistNotGated
		}
		return nil
	}

	if wl.Authority != nil {
		if len(wl.Members) > 0 {
			return ErrWhitelistConflict
		}
		if wl.Authority.Type == "" {
			return fmt.Errorf("whitelist authority: %w", ErrBackendTypeRequired)
		}
	}

	for i, m := range wl.Members {
		if !common.IsHexAddress(m) {
			return fmt.Errorf("whitelist member %d: %w: %q", i, ErrInvalidMember, m)
		}
	}

	return nil
}

func validateLoggingConfig(cfg *LoggingConfig) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	levelValid := false
	for _, l := range validLevels {
		if strings.ToLower(cfg.Level) == l {
			levelValid = true
			break
		}
	}
	if !levelValid {
		return fmt.Errorf("%w: %s (must be one of: %s)", ErrInvalidLogLevel, cfg.Level, strings.Join(validLevels, ", "))
	}

	formatValid := strings.ToLower(cfg.Format) == "json" || strings.ToLower(cfg.Format) == "text"
	if !formatValid {
		return fmt.Errorf("%w: %s (must be 'json' or 'text')", ErrInvalidLogFormat, cfg.Format)
	}

	return nil
}
