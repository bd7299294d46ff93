package game

import "errors"

// Request outcomes fall into a fixed taxonomy so the transport layer can map
// them to status codes with errors.Is. State and conflict errors are
// legitimate race outcomes, not bugs.
var (
	ErrValidation          = errors.New("invalid request")
	ErrNotFound            = errors.New("not found")
	ErrState               = errors.New("wrong round phase")
	ErrConflict            = errors.New("conflicting operation")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrOracleUnavailable   = errors.New("price oracle unavailable")
	ErrPersistence         = errors.New("persistence failure")
)
