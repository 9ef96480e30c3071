// Package session implements the peer-session negotiator: the state
// machine that turns relayed session descriptions and connectivity
// candidates into a connected peer channel.
//
// The underlying media transport (codec negotiation, encryption, NAT
// traversal) is consumed through the Capability interface and is not
// implemented here. The webrtcsession subpackage provides a Pion-backed
// Capability; tests use an in-memory mock.
//
// Candidates that arrive before a remote description exists are queued in
// arrival order and flushed, never reordered or dropped, once the
// description is set.
package session
