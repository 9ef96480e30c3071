// Package control implements the remote-control authorization handshake
// carried over the peer application channel during screen sharing.
//
// Each endpoint runs one Handshake per call. It tracks two independent
// perspectives: the owner side (is the local screen controllable by the
// peer) and the controller side (may the local endpoint drive the peer's
// screen). A controller asks with a request action; the owner answers
// granted or denied. Input events flow controller to owner and are
// executed only while the owner's grant is live. A revoked action from
// either side tears the grant down unconditionally, and stopping the
// screen share emits one as a side effect so the peer never keeps a
// stale grant.
package control
