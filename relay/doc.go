// Package relay implements the rendezvous service: a WebSocket front end
// that binds each connection to a joined identity, and a stateless router
// that forwards addressed envelopes between online endpoints.
//
// The router is deliberately dumb. It validates nothing about payloads,
// never forwards to anyone but the addressed target, and always stamps the
// sender's authenticated identity into fromId; a client-supplied fromId is
// discarded. Absent targets are reported back to the sender as a normal
// failure result, never as an error.
package relay
