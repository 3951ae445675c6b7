package facade

import "errors"

// ErrInnerRequired indicates that a facade config has no inner backend.
var ErrInnerRequired = errors.New("inner backend is required")
