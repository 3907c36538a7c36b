package device

import "errors"

var (
	// ErrNotFound indicates a peer was not found
	ErrNotFound = errors.New("peer not found")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrNotConnected indicates the transport is not connected
	ErrNotConnected = errors.New("transport not connected")

	// ErrUnsupported indicates an operation is not supported by the transport
	ErrUnsupported = errors.New("operation not supported")

	// ErrValidation indicates a payload failed validation
	ErrValidation = errors.New("validation error")

	// ErrPermissionDenied indicates a required platform permission was not granted
	ErrPermissionDenied = errors.New("permission denied")
)
