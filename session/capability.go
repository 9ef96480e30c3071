package session

import "encoding/json"

// Connectivity is the transport-level connection state reported
// asynchronously by the capability.
type Connectivity uint8

const (
	ConnectivityChecking Connectivity = iota
	ConnectivityConnected
	ConnectivityDisconnected
	ConnectivityFailed
	ConnectivityClosed
)

// String returns a human-readable connectivity name for logging.
func (c Connectivity) String() string {
	switch c {
	case ConnectivityChecking:
		return "checking"
	case ConnectivityConnected:
		return "connected"
	case ConnectivityDisconnected:
		return "disconnected"
	case ConnectivityFailed:
		return "failed"
	case ConnectivityClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Events are the callbacks a Capability fires towards the negotiator.
// All fields are optional; a nil callback is skipped.
type Events struct {
	// Candidate reports a locally gathered connectivity candidate that
	// must be relayed to the peer.
	Candidate func(candidate json.RawMessage)

	// Connectivity reports transport connection-state transitions.
	Connectivity func(state Connectivity)

	// ChannelOpen fires when the bidirectional ordered message channel
	// becomes usable.
	ChannelOpen func()

	// ChannelClose fires when the message channel closes.
	ChannelClose func()

	// ChannelMessage delivers one inbound application message.
	ChannelMessage func(data []byte)
}

// Capability is the abstract peer-session surface the negotiator drives.
// Descriptions and candidates are opaque JSON blobs produced and consumed
// by the implementation; the negotiator only sequences them.
type Capability interface {
	// Bind registers the event callbacks. Must be called before any other
	// method; implementations may deliver events from their own goroutines.
	Bind(ev Events)

	// CreateOffer produces the local session description for an initiator.
	CreateOffer() (json.RawMessage, error)

	// CreateAnswer produces the local session description for a responder.
	// Valid only after SetRemoteDescription.
	CreateAnswer() (json.RawMessage, error)

	// SetRemoteDescription installs the peer's session description.
	SetRemoteDescription(desc json.RawMessage) error

	// AddCandidate installs one remote connectivity candidate.
	AddCandidate(candidate json.RawMessage) error

	// OpenChannel creates the ordered application message channel.
	// Initiator-side only; responders receive the channel via ChannelOpen.
	OpenChannel() error

	// SendMessage writes one application message to the open channel.
	SendMessage(data []byte) error

	// Close releases the underlying session and any owned media capture.
	Close() error
}
