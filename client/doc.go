// Package client implements the endpoint side of the rendezvous protocol:
// a persistent WebSocket connection to the relay service with JSON frame
// encoding, correlated request/result waits, typed push handlers, and
// bounded exponential reconnection.
//
// Requests that expect a correlated result (join, lookup, call) block the
// caller for at most their bound (10 seconds for identity and lookup
// operations, 30 seconds for call invitations). Waiters are exactly-once:
// a late result arriving after the timeout is discarded rather than
// double-resolving the caller.
//
// Reconnection after an unexpected disconnect backs off exponentially from
// 1 second, doubling up to a 30 second cap, and gives up after 5 attempts
// with a terminal failure signal.
package client
