package session

import "errors"

// Sentinel errors for session negotiation. These enable reliable
// classification with errors.Is().
var (
	// ErrInvalidTransition indicates an operation was attempted from a
	// state that does not permit it.
	ErrInvalidTransition = errors.New("invalid negotiation state transition")

	// ErrWrongRole indicates an initiator-only operation was attempted as
	// responder, or vice versa.
	ErrWrongRole = errors.New("operation not valid for this role")

	// ErrNegotiationFailed indicates the underlying capability reported a
	// terminal failure.
	ErrNegotiationFailed = errors.New("negotiation failed")

	// ErrChannelUnavailable indicates a send was attempted while the
	// session is not connected or the channel is not open.
	ErrChannelUnavailable = errors.New("message channel unavailable")
)
