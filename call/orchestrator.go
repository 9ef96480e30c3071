package call

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerlink/session"
	"github.com/opd-ai/peerlink/wire"
)

// DefaultRingTimeout bounds how long an outgoing invitation rings before
// it is abandoned.
const DefaultRingTimeout = 30 * time.Second

// Phase is the call lifecycle state.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseInviting
	PhaseRingingRemote
	PhaseRingingLocal
	PhaseNegotiating
	PhaseActive
	PhaseEnding
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseInviting:
		return "inviting"
	case PhaseRingingRemote:
		return "ringing-remote"
	case PhaseRingingLocal:
		return "ringing-local"
	case PhaseNegotiating:
		return "negotiating"
	case PhaseActive:
		return "active"
	case PhaseEnding:
		return "ending"
	default:
		return "unknown"
	}
}

// Direction records which side initiated the call.
type Direction uint8

const (
	DirectionOutgoing Direction = iota
	DirectionIncoming
)

// Signaler is the slice of the rendezvous client the orchestrator needs.
type Signaler interface {
	// Call delivers a call invitation and blocks for the service result.
	Call(targetID string) error

	// Send writes one fire-and-forget envelope.
	Send(env wire.Envelope) error
}

// SessionFactory allocates a negotiator for one call attempt. Tests
// substitute a factory returning a mock-backed negotiator.
type SessionFactory func(peerID string, role session.Role, cb session.Callbacks) (*session.Negotiator, error)

// Callbacks are the orchestrator's outward events. All optional.
type Callbacks struct {
	// PhaseChange fires on every lifecycle transition.
	PhaseChange func(phase Phase, peerID string)

	// IncomingCall fires when a non-suppressed invitation arrives and the
	// endpoint starts ringing locally. The user answers via Accept or
	// Decline.
	IncomingCall func(fromID, fromDisplayName string)

	// Message delivers inbound application-channel messages for the
	// active call (chat, control, input).
	Message func(peerID string, msg wire.ChannelMessage)

	// Ended fires once per call on return to idle, with the reason the
	// call ended (nil for a local hangup).
	Ended func(peerID string, reason error)
}

// Orchestrator drives the call lifecycle for one endpoint.
type Orchestrator struct {
	sig        Signaler
	newSession SessionFactory
	cb         Callbacks

	ringTimeout time.Duration

	mu         sync.Mutex
	phase      Phase
	peerID     string
	direction  Direction
	negotiator *session.Negotiator
	ringTimer  *time.Timer
	generation int // invalidates stale ring timers and session events

	dnd     bool
	blocked map[string]bool
}

// NewOrchestrator creates an idle orchestrator.
func NewOrchestrator(sig Signaler, factory SessionFactory, cb Callbacks) *Orchestrator {
	return &Orchestrator{
		sig:         sig,
		newSession:  factory,
		cb:          cb,
		ringTimeout: DefaultRingTimeout,
		phase:       PhaseIdle,
		blocked:     make(map[string]bool),
	}
}

// SetRingTimeout overrides the outgoing-invitation bound, mainly for tests.
func (o *Orchestrator) SetRingTimeout(d time.Duration) {
	o.mu.Lock()
	o.ringTimeout = d
	o.mu.Unlock()
}

// Phase returns the current lifecycle phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// PeerID returns the peer of the outstanding call, if any.
func (o *Orchestrator) PeerID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.peerID
}

// SetDoNotDisturb toggles suppression of all incoming invitations.
func (o *Orchestrator) SetDoNotDisturb(enabled bool) {
	o.mu.Lock()
	o.dnd = enabled
	o.mu.Unlock()
}

// Block suppresses invitations from the given peer.
func (o *Orchestrator) Block(peerID string) {
	o.mu.Lock()
	o.blocked[peerID] = true
	o.mu.Unlock()
}

// Unblock lifts a block.
func (o *Orchestrator) Unblock(peerID string) {
	o.mu.Lock()
	delete(o.blocked, peerID)
	o.mu.Unlock()
}

// Invite starts an outgoing call. It blocks for the service's delivery
// result: an offline target fails immediately back to idle. On delivery
// the endpoint rings remotely until the peer answers, declines, or the
// ring timeout expires.
func (o *Orchestrator) Invite(peerID string) error {
	o.mu.Lock()
	if o.phase != PhaseIdle {
		o.mu.Unlock()
		return ErrBusy
	}
	o.phase = PhaseInviting
	o.peerID = peerID
	o.direction = DirectionOutgoing
	o.generation++
	o.mu.Unlock()
	o.notifyPhase(PhaseInviting, peerID)

	if err := o.sig.Call(peerID); err != nil {
		o.reset()
		return err
	}

	o.mu.Lock()
	if o.phase != PhaseInviting {
		// A hangup raced the invitation result.
		o.mu.Unlock()
		return ErrInvalidPhase
	}
	o.phase = PhaseRingingRemote
	gen := o.generation
	o.ringTimer = time.AfterFunc(o.ringTimeout, func() { o.ringExpired(gen) })
	o.mu.Unlock()

	o.notifyPhase(PhaseRingingRemote, peerID)
	return nil
}

// Accept answers a locally ringing call: the negotiator is allocated as
// responder before the acceptance leaves, so the peer's offer always
// finds it.
func (o *Orchestrator) Accept() error {
	o.mu.Lock()
	if o.phase != PhaseRingingLocal {
		o.mu.Unlock()
		return ErrInvalidPhase
	}
	peerID := o.peerID
	o.mu.Unlock()

	if err := o.startNegotiation(peerID, session.RoleResponder); err != nil {
		o.endCall(peerID, err)
		return err
	}

	return o.sig.Send(wire.Envelope{
		Type:     wire.TypeCallResponse,
		TargetID: peerID,
		Accepted: wire.Bool(true),
	})
}

// Decline refuses a locally ringing call and returns to idle.
func (o *Orchestrator) Decline() error {
	o.mu.Lock()
	if o.phase != PhaseRingingLocal {
		o.mu.Unlock()
		return ErrInvalidPhase
	}
	peerID := o.peerID
	o.mu.Unlock()

	err := o.sig.Send(wire.Envelope{
		Type:     wire.TypeCallResponse,
		TargetID: peerID,
		Accepted: wire.Bool(false),
	})
	o.reset()
	return err
}

// Hangup ends the outstanding call from any non-idle phase. The peer is
// notified and local session state is released.
func (o *Orchestrator) Hangup() {
	o.mu.Lock()
	if o.phase == PhaseIdle {
		o.mu.Unlock()
		return
	}
	peerID := o.peerID
	o.mu.Unlock()

	_ = o.sig.Send(wire.Envelope{Type: wire.TypeHangup, TargetID: peerID})
	o.endCall(peerID, nil)
}

// SendMessage sends one chat message over the peer channel of the active
// call and returns the message as stored locally.
func (o *Orchestrator) SendMessage(content string) (wire.ChannelMessage, error) {
	o.mu.Lock()
	neg := o.negotiator
	active := o.phase == PhaseActive
	o.mu.Unlock()

	msg := wire.ChannelMessage{
		Type:      wire.ChannelChat,
		ID:        uuid.NewString(),
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	}

	if !active || neg == nil || !neg.Send(msg) {
		return wire.ChannelMessage{}, ErrChannelUnavailable
	}
	return msg, nil
}

// SendChannel writes one raw application message (control, input) over
// the peer channel, reporting delivery as a boolean.
func (o *Orchestrator) SendChannel(msg wire.ChannelMessage) bool {
	o.mu.Lock()
	neg := o.negotiator
	o.mu.Unlock()
	return neg != nil && neg.Send(msg)
}

// HandleEnvelope feeds one pushed rendezvous envelope into the state
// machine. Wire it to the client with one On registration per routed type.
func (o *Orchestrator) HandleEnvelope(env wire.Envelope) {
	switch env.Type {
	case wire.TypeIncomingCall:
		o.handleIncomingCall(env)
	case wire.TypeCallResponse:
		o.handleCallResponse(env)
	case wire.TypeOffer:
		o.handleOffer(env)
	case wire.TypeAnswer:
		o.handleAnswer(env)
	case wire.TypeICECandidate:
		o.handleCandidate(env)
	case wire.TypeHangup:
		o.handleHangup(env)
	default:
		logrus.WithField("type", env.Type).Debug("Envelope ignored by call orchestrator")
	}
}

func (o *Orchestrator) handleIncomingCall(env wire.Envelope) {
	o.mu.Lock()
	if o.blocked[env.FromID] || o.dnd {
		o.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "handleIncomingCall",
			"from":     abbreviate(env.FromID),
		}).Info("Invitation suppressed")
		return
	}
	if o.phase != PhaseIdle {
		o.mu.Unlock()
		// Busy: refuse without ringing.
		_ = o.sig.Send(wire.Envelope{
			Type:     wire.TypeCallResponse,
			TargetID: env.FromID,
			Accepted: wire.Bool(false),
		})
		return
	}
	o.phase = PhaseRingingLocal
	o.peerID = env.FromID
	o.direction = DirectionIncoming
	o.generation++
	o.mu.Unlock()

	o.notifyPhase(PhaseRingingLocal, env.FromID)
	if o.cb.IncomingCall != nil {
		o.cb.IncomingCall(env.FromID, env.FromDisplayName)
	}
}

func (o *Orchestrator) handleCallResponse(env wire.Envelope) {
	o.mu.Lock()
	if o.phase != PhaseRingingRemote || env.FromID != o.peerID {
		o.mu.Unlock()
		return
	}
	o.stopRingTimerLocked()
	peerID := o.peerID
	accepted := env.IsAccepted()
	o.mu.Unlock()

	if !accepted {
		o.endCall(peerID, ErrDeclined)
		return
	}

	if err := o.startNegotiation(peerID, session.RoleInitiator); err != nil {
		o.endCall(peerID, err)
		return
	}

	o.mu.Lock()
	neg := o.negotiator
	o.mu.Unlock()

	offer, err := neg.CreateOffer()
	if err != nil {
		o.endCall(peerID, ErrNegotiationFailed)
		return
	}
	_ = o.sig.Send(wire.Envelope{Type: wire.TypeOffer, TargetID: peerID, Offer: offer})
}

func (o *Orchestrator) handleOffer(env wire.Envelope) {
	neg := o.sessionFor(env.FromID)
	if neg == nil {
		return
	}

	answer, err := neg.AcceptOffer(env.Offer)
	if err != nil {
		logrus.WithError(err).Warn("Offer rejected")
		o.endCall(env.FromID, ErrNegotiationFailed)
		return
	}
	_ = o.sig.Send(wire.Envelope{Type: wire.TypeAnswer, TargetID: env.FromID, Answer: answer})
}

func (o *Orchestrator) handleAnswer(env wire.Envelope) {
	neg := o.sessionFor(env.FromID)
	if neg == nil {
		return
	}
	if err := neg.AcceptAnswer(env.Answer); err != nil {
		logrus.WithError(err).Warn("Answer rejected")
		o.endCall(env.FromID, ErrNegotiationFailed)
	}
}

func (o *Orchestrator) handleCandidate(env wire.Envelope) {
	if neg := o.sessionFor(env.FromID); neg != nil {
		neg.AddRemoteCandidate(env.Candidate)
	}
}

func (o *Orchestrator) handleHangup(env wire.Envelope) {
	o.mu.Lock()
	match := o.phase != PhaseIdle && env.FromID == o.peerID
	peerID := o.peerID
	o.mu.Unlock()

	if match {
		o.endCall(peerID, ErrRemoteHangup)
	}
}

// sessionFor returns the live negotiator if the envelope belongs to the
// outstanding call's peer.
func (o *Orchestrator) sessionFor(fromID string) *session.Negotiator {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.negotiator == nil || fromID != o.peerID {
		return nil
	}
	return o.negotiator
}

// startNegotiation allocates the negotiator for the outstanding call and
// enters the negotiating phase.
func (o *Orchestrator) startNegotiation(peerID string, role session.Role) error {
	o.mu.Lock()
	gen := o.generation
	o.mu.Unlock()

	neg, err := o.newSession(peerID, role, session.Callbacks{
		StateChange: func(s session.State) { o.onSessionState(gen, peerID, s) },
		LocalCandidate: func(candidate json.RawMessage) {
			_ = o.sig.Send(wire.Envelope{
				Type:      wire.TypeICECandidate,
				TargetID:  peerID,
				Candidate: candidate,
			})
		},
		Message: func(msg wire.ChannelMessage) {
			if o.cb.Message != nil {
				o.cb.Message(peerID, msg)
			}
		},
	})
	if err != nil {
		return ErrNegotiationFailed
	}

	// A hangup, decline or timeout processed while the factory ran has
	// already ended the call; the fresh session must not be installed.
	o.mu.Lock()
	if gen != o.generation || (o.phase != PhaseRingingLocal && o.phase != PhaseRingingRemote) {
		o.mu.Unlock()
		neg.Close()
		return ErrInvalidPhase
	}
	o.negotiator = neg
	o.phase = PhaseNegotiating
	o.mu.Unlock()
	o.notifyPhase(PhaseNegotiating, peerID)
	return nil
}

// onSessionState maps negotiator transitions onto the call lifecycle.
func (o *Orchestrator) onSessionState(gen int, peerID string, s session.State) {
	o.mu.Lock()
	if gen != o.generation || o.phase == PhaseIdle || o.phase == PhaseEnding {
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	switch s {
	case session.StateConnected:
		o.mu.Lock()
		o.phase = PhaseActive
		o.mu.Unlock()
		o.notifyPhase(PhaseActive, peerID)
	case session.StateFailed:
		o.endCall(peerID, ErrNegotiationFailed)
	case session.StateClosed:
		o.endCall(peerID, ErrRemoteHangup)
	}
}

func (o *Orchestrator) ringExpired(gen int) {
	o.mu.Lock()
	if gen != o.generation || o.phase != PhaseRingingRemote {
		o.mu.Unlock()
		return
	}
	peerID := o.peerID
	o.mu.Unlock()

	logrus.WithField("peer", abbreviate(peerID)).Info("Invitation ring timed out")
	o.endCall(peerID, ErrInviteTimeout)
}

// endCall drives Ending and back to Idle, releasing the session. Safe to
// call from session callbacks; idempotent per call attempt.
func (o *Orchestrator) endCall(peerID string, reason error) {
	o.mu.Lock()
	if o.phase == PhaseIdle || o.phase == PhaseEnding || peerID != o.peerID {
		o.mu.Unlock()
		return
	}
	o.phase = PhaseEnding
	o.generation++
	o.stopRingTimerLocked()
	neg := o.negotiator
	o.negotiator = nil
	o.mu.Unlock()

	o.notifyPhase(PhaseEnding, peerID)
	if neg != nil {
		neg.Close()
	}

	o.mu.Lock()
	o.phase = PhaseIdle
	o.peerID = ""
	o.mu.Unlock()

	o.notifyPhase(PhaseIdle, "")
	if o.cb.Ended != nil {
		o.cb.Ended(peerID, reason)
	}

	logrus.WithFields(logrus.Fields{
		"function": "endCall",
		"peer":     abbreviate(peerID),
		"reason":   reasonString(reason),
	}).Info("Call ended")
}

// reset abandons a call attempt that never got past invitation.
func (o *Orchestrator) reset() {
	o.mu.Lock()
	o.phase = PhaseIdle
	o.peerID = ""
	o.generation++
	o.stopRingTimerLocked()
	o.mu.Unlock()
	o.notifyPhase(PhaseIdle, "")
}

func (o *Orchestrator) stopRingTimerLocked() {
	if o.ringTimer != nil {
		o.ringTimer.Stop()
		o.ringTimer = nil
	}
}

func (o *Orchestrator) notifyPhase(p Phase, peerID string) {
	if o.cb.PhaseChange != nil {
		o.cb.PhaseChange(p, peerID)
	}
}

func reasonString(err error) string {
	if err == nil {
		return "local hangup"
	}
	return err.Error()
}

func abbreviate(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
