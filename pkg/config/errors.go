// Package config provides configuration loading and validation for feedproxy.
package config

import "errors"

var (
	// ErrNoFeedsConfigured indicates that no feeds are configured.
	ErrNoFeedsConfigured = errors.New("at least one feed must be configured")
	// ErrFeedNameRequired indicates that a feed has no name.
	ErrFeedNameRequired = errors.New("feed name is required")
	// ErrDuplicateFeed indicates that two feeds share a name.
	ErrDuplicateFeed = errors.New("duplicate feed name")
	// ErrInvalidFeedType indicates that the feed type is invalid.
	ErrInvalidFeedType = errors.New("invalid feed type")
	// ErrInvalidOwner indicates that the owner is missing or not a hex address.
	ErrInvalidOwner = errors.New("owner must be a non-zero hex address")
	// ErrBackendTypeRequired indicates that a backend or authority has no type.
	ErrBackendTypeRequired = errors.New("backend type is required")
	// ErrInvalidMember indicates that a whitelist member is not a hex address.
	ErrInvalidMember = errors.New("whitelist member must be a hex address")
	// ErrWhitelistConflict indicates that both members and an authority are configured.
	ErrWhitelistConflict = errors.New("whitelist members and authority are mutually exclusive")
	// ErrWhitelistNotGated indicates a whitelist on a feed that is not gated.
	ErrWhitelistNotGated = errors.New("whitelist is only supported on gated feeds")
	// ErrAdminTokenEnvNotSet indicates that the admin token environment variable is not set.
	ErrAdminTokenEnvNotSet = errors.New("admin token environment variable not set")
	// ErrTLSConfigIncomplete indicates that TLS config is incomplete.
	ErrTLSConfigIncomplete = errors.New("TLS cert and key must be specified when TLS is enabled")
	// ErrTLSCertNotFound indicates that the TLS cert file was not found.
	ErrTLSCertNotFound = errors.New("TLS cert file not found")
	// ErrTLSKeyNotFound indicates that the TLS key file was not found.
	ErrTLSKeyNotFound = errors.New("TLS key file not found")
	// ErrInvalidLogLevel indicates that the log level is invalid.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat indicates that the log format is invalid.
	ErrInvalidLogFormat = errors.New("invalid log format")
)
