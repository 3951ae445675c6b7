package evm

import "errors"

var (
	// ErrRPCURLRequired indicates that rpc_url configuration is required.
	ErrRPCURLRequired = errors.New("rpc_url is required")
	// ErrEmptyResult indicates that a call returned no data.
	ErrEmptyResult = errors.New("call returned no data")
	// ErrUnexpectedOutput indicates that a call returned data of the wrong shape.
	ErrUnexpectedOutput = errors.New("unexpected call output")
)
