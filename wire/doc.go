// Package wire defines the message formats exchanged in peerlink.
//
// Two distinct surfaces share this package:
//
//   - Envelope: the JSON text frames exchanged with the rendezvous service
//     over the persistent WebSocket connection (join, lookup, call
//     signaling, session-description and candidate relay).
//   - ChannelMessage: the application protocol carried directly over the
//     established peer data channel (chat, control authorization, remote
//     input events). The server never sees these.
//
// Both are flat single-object JSON keyed by type, so the structs here use
// omitempty fields rather than nested payloads.
package wire
