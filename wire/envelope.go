package wire

import "encoding/json"

// Envelope types exchanged with the rendezvous service.
const (
	TypeJoin         = "join"
	TypeJoinResult   = "join-result"
	TypeLookup       = "lookup"
	TypeLookupResult = "lookup-result"
	TypeCall         = "call"
	TypeCallResult   = "call-result"
	TypeIncomingCall = "incoming-call"
	TypeCallResponse = "call-response"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
	TypeHangup       = "hangup"
)

// Envelope is a single signaling frame. Every frame is one flat JSON
// object keyed by Type; unused fields are omitted on the wire.
//
// TargetID addresses the frame on the way in; the router strips it and
// injects FromID from the sender's authenticated connection before
// forwarding. FromID supplied by a client is never trusted.
type Envelope struct {
	Type string `json:"type"`

	// Presence fields (join, lookup and their results).
	ID          string `json:"id,omitempty"`
	ShortCode   string `json:"shortCode,omitempty"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"displayName,omitempty"`

	// Routing fields.
	TargetID        string `json:"targetId,omitempty"`
	FromID          string `json:"fromId,omitempty"`
	FromDisplayName string `json:"fromDisplayName,omitempty"`

	// Result fields.
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`

	// Call handshake.
	Accepted *bool `json:"accepted,omitempty"`

	// Session negotiation payloads, opaque to the relay.
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// Bool returns a pointer for the optional boolean envelope fields.
func Bool(v bool) *bool { return &v }

// Ok reports whether a result envelope carries success:true.
func (e Envelope) Ok() bool { return e.Success != nil && *e.Success }

// IsAccepted reports whether a call-response envelope carries accepted:true.
func (e Envelope) IsAccepted() bool { return e.Accepted != nil && *e.Accepted }

// ResultType returns the reply type the service uses for a request type,
// e.g. "call" -> "call-result".
func ResultType(requestType string) string { return requestType + "-result" }

// ExpectsResult reports whether the sender of the given request type waits
// for a correlated result frame from the service.
func ExpectsResult(requestType string) bool {
	switch requestType {
	case TypeJoin, TypeLookup, TypeCall:
		return true
	default:
		return false
	}
}

// Routable reports whether the given type is forwarded peer-to-peer by the
// relay (as opposed to being answered by the service itself).
func Routable(t string) bool {
	switch t {
	case TypeCall, TypeCallResponse, TypeOffer, TypeAnswer, TypeICECandidate, TypeHangup:
		return true
	default:
		return false
	}
}

// Marshal serializes the envelope to a JSON text frame.
func (e Envelope) Marshal() ([]byte, error) { return json.Marshal(e) }

// ParseEnvelope deserializes a JSON text frame.
func ParseEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(data, &e)
	return e, err
}
