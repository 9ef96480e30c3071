package call

import "errors"

// Sentinel errors for call lifecycle operations.
var (
	// ErrBusy indicates a call is already outstanding on this endpoint.
	ErrBusy = errors.New("another call is already in progress")

	// ErrInvalidPhase indicates the operation does not apply to the
	// current call phase.
	ErrInvalidPhase = errors.New("operation not valid in current call phase")

	// ErrInviteTimeout indicates the remote side never answered the
	// invitation within the ringing bound.
	ErrInviteTimeout = errors.New("call invitation timed out")

	// ErrDeclined indicates the remote side declined the invitation.
	ErrDeclined = errors.New("call declined by remote peer")

	// ErrRemoteHangup indicates the remote side ended the call.
	ErrRemoteHangup = errors.New("remote peer hung up")

	// ErrNegotiationFailed indicates the peer session reached a terminal
	// failure before or after connecting.
	ErrNegotiationFailed = errors.New("session negotiation failed")

	// ErrChannelUnavailable indicates a message was sent while the peer
	// channel is not deliverable.
	ErrChannelUnavailable = errors.New("peer channel unavailable")
)
