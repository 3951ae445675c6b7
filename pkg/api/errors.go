// Package api provides the HTTP and WebSocket surface of the feed proxies.
package api

import (
	"errors"
	"net/http"

	"github.com/StrathCole/feedproxy-go/pkg/backend"
	"github.com/StrathCole/feedproxy-go/pkg/feed"
	"github.com/StrathCole/feedproxy-go/pkg/ownership"
	"github.com/StrathCole/feedproxy-go/pkg/proxy"
)

var (
	// ErrFeedNotFound indicates a request for a feed that is not served.
	ErrFeedNotFound = errors.New("feed not found")
	// ErrDuplicateFeed indicates two feeds registered under one name.
	ErrDuplicateFeed = errors.New("duplicate feed")
	// ErrInvalidCaller indicates a malformed caller header.
	ErrInvalidCaller = errors.New("invalid caller address")
	// ErrCallerRequired indicates an admin request without a caller.
	ErrCallerRequired = errors.New("caller address is required")
	// ErrInvalidRound indicates a round id that is not a non-negative integer.
	ErrInvalidRound = errors.New("invalid round id")
	// ErrInvalidAddress indicates a malformed address in a request body.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrInvalidBody indicates a request body that could not be decoded.
	ErrInvalidBody = errors.New("invalid request body")
	// ErrNotSupported indicates an operation the feed's proxy type does not offer.
	ErrNotSupported = errors.New("operation not supported by this feed")
	// ErrAdminUnauthorized indicates a missing or wrong admin token.
	ErrAdminUnauthorized = errors.New("invalid admin token")
)

// statusFor maps an error to the HTTP status reported to clients.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrAdminUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, feed.ErrNotWhitelisted), errors.Is(err, feed.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrFeedNotFound), errors.Is(err, feed.ErrNoProposalPending):
		return http.StatusNotFound
	case errors.Is(err, feed.ErrProposalMismatch),
		errors.Is(err, proxy.ErrDelegatedWhitelist),
		errors.Is(err, proxy.ErrLocalWhitelist):
		return http.StatusConflict
	case errors.Is(err, feed.ErrIncompatibleBackend):
		return http.StatusUnprocessableEntity
	case errors.Is(err, feed.ErrBackendUnavailable), errors.Is(err, feed.ErrAuthorityUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, ErrInvalidCaller),
		errors.Is(err, ErrCallerRequired),
		errors.Is(err, ErrInvalidRound),
		errors.Is(err, ErrInvalidAddress),
		errors.Is(err, ErrInvalidBody),
		errors.Is(err, ErrNotSupported),
		errors.Is(err, feed.ErrNilBackend),
		errors.Is(err, proxy.ErrNilAuthority),
		errors.Is(err, ownership.ErrZeroOwner),
		errors.Is(err, backend.ErrUnknownBackend),
		errors.Is(err, backend.ErrUnknownAuthority),
		errors.Is(err, backend.ErrAddressRequired),
		errors.Is(err, backend.ErrInvalidAddress),
		errors.Is(err, backend.ErrInvalidNumber):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
