package session

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerlink/wire"
)

// Role distinguishes the endpoint that opens the session from the one
// that answers it.
type Role uint8

const (
	RoleInitiator Role = iota
	RoleResponder
)

// String returns a human-readable role name.
func (r Role) String() string {
	if r == RoleInitiator {
		return "initiator"
	}
	return "responder"
}

// State is the negotiator's session state.
type State uint8

const (
	StateNew State = iota
	StateHaveLocalOffer
	StateHaveRemoteOffer
	StateConnecting
	StateConnected
	StateFailed
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateHaveLocalOffer:
		return "have-local-offer"
	case StateHaveRemoteOffer:
		return "have-remote-offer"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state permits no further transitions.
func (s State) Terminal() bool { return s == StateFailed || s == StateClosed }

// Callbacks are the negotiator's outward events. All optional.
type Callbacks struct {
	// StateChange fires on every session state transition.
	StateChange func(state State)

	// LocalCandidate reports a candidate that must be relayed to the peer.
	LocalCandidate func(candidate json.RawMessage)

	// Message delivers one parsed inbound application message.
	Message func(msg wire.ChannelMessage)
}

// Negotiator owns one PeerSession: it sequences description exchange,
// queues early candidates, tracks connectivity, and exposes the
// application message channel once connected.
type Negotiator struct {
	peerID string
	role   Role
	cap    Capability
	cb     Callbacks

	mu          sync.Mutex
	state       State
	remoteSet   bool
	flushing    bool
	channelOpen bool
	pending     []json.RawMessage // candidates queued before the remote description
}

// NewNegotiator allocates a PeerSession in StateNew. An initiator opens
// the application message channel immediately so it rides the initial
// description exchange.
func NewNegotiator(peerID string, role Role, capability Capability, cb Callbacks) (*Negotiator, error) {
	n := &Negotiator{
		peerID: peerID,
		role:   role,
		cap:    capability,
		cb:     cb,
		state:  StateNew,
	}

	capability.Bind(Events{
		Candidate:      n.onLocalCandidate,
		Connectivity:   n.onConnectivity,
		ChannelOpen:    n.onChannelOpen,
		ChannelClose:   n.onChannelClose,
		ChannelMessage: n.onChannelMessage,
	})

	if role == RoleInitiator {
		if err := capability.OpenChannel(); err != nil {
			return nil, err
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewNegotiator",
		"peer":     abbreviate(peerID),
		"role":     role.String(),
	}).Info("Peer session allocated")

	return n, nil
}

// PeerID returns the remote peer this session belongs to.
func (n *Negotiator) PeerID() string { return n.peerID }

// Role returns the session role.
func (n *Negotiator) Role() Role { return n.role }

// State returns the current session state.
func (n *Negotiator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// CreateOffer produces the local session description. Valid only as
// initiator from StateNew; transitions to StateHaveLocalOffer. The caller
// relays the returned description.
func (n *Negotiator) CreateOffer() (json.RawMessage, error) {
	n.mu.Lock()
	if n.role != RoleInitiator {
		n.mu.Unlock()
		return nil, ErrWrongRole
	}
	if n.state != StateNew {
		n.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	n.mu.Unlock()

	offer, err := n.cap.CreateOffer()
	if err != nil {
		return nil, err
	}

	n.transition(StateHaveLocalOffer)
	return offer, nil
}

// AcceptOffer installs the peer's offer and produces the local answer.
// Valid only as responder from StateNew; transitions to
// StateHaveRemoteOffer and flushes any candidates queued before the offer
// arrived.
func (n *Negotiator) AcceptOffer(remote json.RawMessage) (json.RawMessage, error) {
	n.mu.Lock()
	if n.role != RoleResponder {
		n.mu.Unlock()
		return nil, ErrWrongRole
	}
	if n.state != StateNew {
		n.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	n.mu.Unlock()

	if err := n.cap.SetRemoteDescription(remote); err != nil {
		return nil, err
	}

	answer, err := n.cap.CreateAnswer()
	if err != nil {
		return nil, err
	}

	n.releaseCandidates()
	n.transition(StateHaveRemoteOffer)
	return answer, nil
}

// AcceptAnswer installs the peer's answer. Valid only as initiator from
// StateHaveLocalOffer; transitions to StateConnecting and flushes queued
// candidates.
func (n *Negotiator) AcceptAnswer(remote json.RawMessage) error {
	n.mu.Lock()
	if n.role != RoleInitiator {
		n.mu.Unlock()
		return ErrWrongRole
	}
	if n.state != StateHaveLocalOffer {
		n.mu.Unlock()
		return ErrInvalidTransition
	}
	n.mu.Unlock()

	if err := n.cap.SetRemoteDescription(remote); err != nil {
		return err
	}

	n.releaseCandidates()
	n.transition(StateConnecting)
	return nil
}

// AddRemoteCandidate installs one relayed candidate. Candidates arriving
// before the remote description are queued in arrival order and flushed
// when the description is set.
func (n *Negotiator) AddRemoteCandidate(candidate json.RawMessage) {
	n.mu.Lock()
	if n.state.Terminal() {
		n.mu.Unlock()
		return
	}
	if !n.remoteSet || n.flushing {
		n.pending = append(n.pending, candidate)
		queued := len(n.pending)
		n.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "AddRemoteCandidate",
			"peer":     abbreviate(n.peerID),
			"queued":   queued,
		}).Debug("Candidate queued before remote description")
		return
	}
	n.mu.Unlock()

	if err := n.cap.AddCandidate(candidate); err != nil {
		logrus.WithError(err).WithField("peer", abbreviate(n.peerID)).Warn("Candidate rejected by capability")
	}
}

// Send writes one application message to the peer channel. It reports
// delivery as a boolean instead of an error: false means the session is
// not connected or the channel is not open, and the caller decides whether
// to retry or drop.
func (n *Negotiator) Send(msg wire.ChannelMessage) bool {
	n.mu.Lock()
	ready := n.state == StateConnected && n.channelOpen
	n.mu.Unlock()
	if !ready {
		return false
	}

	data, err := msg.Marshal()
	if err != nil {
		return false
	}
	return n.cap.SendMessage(data) == nil
}

// Close tears the session down and releases the capability. Idempotent.
func (n *Negotiator) Close() {
	n.mu.Lock()
	if n.state == StateClosed {
		n.mu.Unlock()
		return
	}
	n.state = StateClosed
	n.channelOpen = false
	n.mu.Unlock()

	_ = n.cap.Close()
	if n.cb.StateChange != nil {
		n.cb.StateChange(StateClosed)
	}
}

// onConnectivity maps transport connectivity onto session state. A
// disconnect maps back to Connecting because the capability retries on its
// own; failed and closed are terminal and release local resources.
func (n *Negotiator) onConnectivity(c Connectivity) {
	logrus.WithFields(logrus.Fields{
		"function":     "onConnectivity",
		"peer":         abbreviate(n.peerID),
		"connectivity": c.String(),
	}).Debug("Connectivity transition")

	switch c {
	case ConnectivityChecking, ConnectivityDisconnected:
		n.transition(StateConnecting)
	case ConnectivityConnected:
		n.transition(StateConnected)
	case ConnectivityFailed:
		n.terminate(StateFailed)
	case ConnectivityClosed:
		n.terminate(StateClosed)
	}
}

func (n *Negotiator) onLocalCandidate(candidate json.RawMessage) {
	if n.cb.LocalCandidate != nil {
		n.cb.LocalCandidate(candidate)
	}
}

func (n *Negotiator) onChannelOpen() {
	n.mu.Lock()
	n.channelOpen = true
	n.mu.Unlock()
}

func (n *Negotiator) onChannelClose() {
	n.mu.Lock()
	n.channelOpen = false
	n.mu.Unlock()
}

func (n *Negotiator) onChannelMessage(data []byte) {
	msg, err := wire.ParseChannelMessage(data)
	if err != nil {
		logrus.WithError(err).WithField("peer", abbreviate(n.peerID)).Warn("Invalid channel message dropped")
		return
	}
	if n.cb.Message != nil {
		n.cb.Message(msg)
	}
}

// releaseCandidates marks the remote description as set and drains the
// early-candidate queue into the capability in arrival order. Candidates
// arriving while the drain runs keep queueing behind it, so the relative
// order is preserved end to end.
func (n *Negotiator) releaseCandidates() {
	n.mu.Lock()
	n.remoteSet = true
	n.flushing = true
	for len(n.pending) > 0 {
		queued := n.pending
		n.pending = nil
		n.mu.Unlock()

		for _, candidate := range queued {
			if err := n.cap.AddCandidate(candidate); err != nil {
				logrus.WithError(err).WithField("peer", abbreviate(n.peerID)).Warn("Queued candidate rejected by capability")
			}
		}

		n.mu.Lock()
	}
	n.flushing = false
	n.mu.Unlock()
}

func (n *Negotiator) transition(s State) {
	n.mu.Lock()
	if n.state == s || n.state.Terminal() {
		n.mu.Unlock()
		return
	}
	n.state = s
	n.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "transition",
		"peer":     abbreviate(n.peerID),
		"state":    s.String(),
	}).Debug("Session state transition")

	if n.cb.StateChange != nil {
		n.cb.StateChange(s)
	}
}

// terminate enters a terminal state and releases local resources: the
// channel is closed and the capability told to stop any owned capture.
func (n *Negotiator) terminate(s State) {
	n.mu.Lock()
	if n.state.Terminal() {
		n.mu.Unlock()
		return
	}
	n.state = s
	n.channelOpen = false
	n.mu.Unlock()

	_ = n.cap.Close()
	if n.cb.StateChange != nil {
		n.cb.StateChange(s)
	}
}

func abbreviate(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
