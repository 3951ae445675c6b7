package backend

import "errors"

var (
	// ErrUnknownBackend indicates that no factory is registered for the backend type.
	ErrUnknownBackend = errors.New("unknown backend type")
	// ErrUnknownAuthority indicates that no factory is registered for the authority type.
	ErrUnknownAuthority = errors.New("unknown authority type")
	// ErrAddressRequired indicates that a backend config is missing its address.
	ErrAddressRequired = errors.New("address is required")
	// ErrInvalidAddress indicates that a configured address is not a hex address.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrInvalidNumber indicates that a configured number could not be parsed.
	ErrInvalidNumber = errors.New("invalid number")
)
