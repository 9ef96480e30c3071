// Package presence implements the server-side directory of currently
// connected endpoints.
//
// The directory is purely ephemeral: a record exists only while its owner
// holds a live transport, and the shortCode index is kept in lockstep with
// the record set so a code never resolves after its owner leaves. There is
// no persistence and no registration; joining with a derived identity is
// the whole security model.
package presence
