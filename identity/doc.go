// Package identity implements deterministic identity derivation for peerlink.
//
// An identity is derived purely from a username, a secret, and a short
// numeric PIN. The same credentials always produce the same identity on any
// machine, so possession of the credentials is the only login token the
// rendezvous service needs. Alongside the opaque hex ID, derivation produces
// a 12-character short code suitable for reading over the phone.
//
// Example:
//
//	id := identity.Derive("alice", "pw123", "000000")
//	fmt.Println(id.ShortCode) // e.g. "7XKQ2M9RHT4B"
package identity
