// Package proxy implements the feed proxies: FeedProxy, which rotates its
// aggregator through a propose/confirm handshake, and AccessGatedProxy, which
// puts a whitelist in front of every read.
package proxy

import "errors"

var (
	// ErrNameRequired indicates that a proxy was configured without a name.
	ErrNameRequired = errors.New("proxy name is required")
	// ErrDelegatedWhitelist indicates a local whitelist mutation on a proxy that delegates to an authority.
	ErrDelegatedWhitelist = errors.New("whitelist is delegated to an authority")
	// ErrLocalWhitelist indicates an authority change on a proxy that keeps its own whitelist.
	ErrLocalWhitelist = errors.New("whitelist is kept locally")
	// ErrNilAuthority indicates that a nil authority was supplied to a delegated proxy.
	ErrNilAuthority = errors.New("authority is required")
	// ErrDecimalsUnknown indicates that decimals were neither configured nor readable from the aggregator.
	ErrDecimalsUnknown = errors.New("decimals not configured and not reported by aggregator")
)
