// Package feed defines the round data model, the backend and authority
// contracts, and the error taxonomy shared by the feed proxies.
package feed

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnavailable indicates that the underlying aggregator call failed.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrIncompatibleBackend indicates that the backend does not implement the round data interface.
	ErrIncompatibleBackend = errors.New("backend does not support round data")
	// ErrNoProposalPending indicates that no aggregator has been proposed.
	ErrNoProposalPending = errors.New("no proposed aggregator present")
	// ErrProposalMismatch indicates that the confirmed aggregator is not the proposed one.
	ErrProposalMismatch = errors.New("invalid proposed aggregator")
	// ErrNotWhitelisted indicates that the caller may not read from a gated proxy.
	ErrNotWhitelisted = errors.New("not whitelisted")
	// ErrAuthorityUnavailable indicates that the delegated whitelist check itself failed.
	ErrAuthorityUnavailable = errors.New("whitelist authority unavailable")
	// ErrUnauthorized indicates a mutation attempted by someone other than the owner or nominee.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRoundNotFound indicates that a backend has no data for the requested round.
	ErrRoundNotFound = errors.New("no data present")
	// ErrNilBackend indicates that a nil backend was supplied where one is required.
	ErrNilBackend = errors.New("backend is required")
)

// Unavailable classifies a backend failure. Errors that already carry a
// taxonomy error are returned untouched; anything else is wrapped with
// ErrBackendUnavailable; the cause stays reachable through errors.Is and errors.As.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	if IsClassified(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
}

// IsClassified reports whether err already matches one of the taxonomy errors.
func IsClassified(err error) bool {
	for _, kind := range []error{
		ErrBackendUnavailable,
		ErrIncompatibleBackend,
		ErrNoProposalPending,
		ErrProposalMismatch,
		ErrNotWhitelisted,
		ErrAuthorityUnavailable,
		ErrUnauthorized,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// Classify wraps cause with kind so that errors.Is matches both.
func Classify(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}
