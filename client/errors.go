package client

import "errors"

// Sentinel errors for signaling operations.
var (
	// ErrNotConnected indicates no live connection to the relay service.
	ErrNotConnected = errors.New("not connected to signaling service")

	// ErrRequestTimeout indicates no correlated result arrived within the
	// operation's bound.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrRequestPending indicates a request of the same type is already
	// awaiting its result on this connection.
	ErrRequestPending = errors.New("request of this type already pending")

	// ErrLookupNotFound indicates the short code resolved to nobody
	// currently online.
	ErrLookupNotFound = errors.New("lookup target not found")

	// ErrTargetOffline indicates the call target has no live transport.
	ErrTargetOffline = errors.New("target offline")

	// ErrReconnectExhausted indicates reconnection was abandoned after the
	// maximum number of attempts.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)
