// Package call implements the human-facing call lifecycle: invite, ring,
// accept or decline, negotiate, talk, hang up.
//
// The orchestrator sequences rendezvous envelopes (through a narrow
// Signaler interface) and a session negotiator (through a factory) but
// owns neither transport. One call is outstanding at a time; a second
// invitation in either direction is rejected locally as busy before any
// envelope leaves the endpoint. Invitations from blocked peers, or any
// invitation while do-not-disturb is enabled, are suppressed before the
// ringing state is ever entered.
package call
