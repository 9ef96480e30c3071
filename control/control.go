package control

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerlink/wire"
)

var (
	// ErrNoRequest is returned when granting or denying without an
	// outstanding request from the peer.
	ErrNoRequest = errors.New("no control request outstanding")

	// ErrRequestPending is returned when asking for control while an
	// earlier request is still unanswered.
	ErrRequestPending = errors.New("control request already outstanding")

	// ErrChannelUnavailable is returned when the peer channel refused
	// the message.
	ErrChannelUnavailable = errors.New("peer channel unavailable")
)

// OwnerState is the grant state of the local screen.
type OwnerState uint8

const (
	OwnerIdle OwnerState = iota
	OwnerRequested
	OwnerGranted
	OwnerDenied
)

func (s OwnerState) String() string {
	switch s {
	case OwnerIdle:
		return "idle"
	case OwnerRequested:
		return "requested"
	case OwnerGranted:
		return "granted"
	case OwnerDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// ControllerState is the local endpoint's authority over the peer's
// screen.
type ControllerState uint8

const (
	NotControlling ControllerState = iota
	Requesting
	Controlling
)

func (s ControllerState) String() string {
	switch s {
	case NotControlling:
		return "not-controlling"
	case Requesting:
		return "requesting"
	case Controlling:
		return "controlling"
	default:
		return "unknown"
	}
}

// Sender writes one application message to the peer channel, reporting
// delivery as a boolean.
type Sender interface {
	SendChannel(msg wire.ChannelMessage) bool
}

// InputInjector executes peer input events against the local
// environment. Implementations wrap OS-level injection; tests record.
type InputInjector interface {
	Mouse(event string, x, y float64, button int)
	Key(event, key, code string, mods wire.Modifiers)
}

// Callbacks are the handshake's outward events. All optional.
type Callbacks struct {
	// RequestReceived fires when the peer asks to control the local
	// screen; the user answers via Grant or Deny.
	RequestReceived func()

	// OwnerChange fires on every owner-side transition.
	OwnerChange func(state OwnerState)

	// ControllerChange fires on every controller-side transition.
	ControllerChange func(state ControllerState)
}

// Handshake tracks control authorization for one call.
type Handshake struct {
	sender   Sender
	injector InputInjector
	cb       Callbacks

	mu         sync.Mutex
	owner      OwnerState
	controller ControllerState
}

// NewHandshake creates an idle handshake. injector may be nil when the
// local screen is never shared.
func NewHandshake(sender Sender, injector InputInjector, cb Callbacks) *Handshake {
	return &Handshake{
		sender:   sender,
		injector: injector,
		cb:       cb,
	}
}

// OwnerState returns the grant state of the local screen.
func (h *Handshake) OwnerState() OwnerState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.owner
}

// ControllerState returns the local endpoint's controller state.
func (h *Handshake) ControllerState() ControllerState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.controller
}

// RequestControl asks the peer for control of its screen.
func (h *Handshake) RequestControl() error {
	h.mu.Lock()
	if h.controller != NotControlling {
		h.mu.Unlock()
		return ErrRequestPending
	}
	h.mu.Unlock()

	if !h.sender.SendChannel(wire.ChannelMessage{
		Type:   wire.ChannelControl,
		Action: wire.ControlRequest,
	}) {
		return ErrChannelUnavailable
	}

	h.setController(Requesting)
	return nil
}

// Grant approves the peer's outstanding control request.
func (h *Handshake) Grant() error {
	h.mu.Lock()
	if h.owner != OwnerRequested {
		h.mu.Unlock()
		return ErrNoRequest
	}
	h.mu.Unlock()

	if !h.sender.SendChannel(wire.ChannelMessage{
		Type:   wire.ChannelControl,
		Action: wire.ControlGranted,
	}) {
		return ErrChannelUnavailable
	}

	h.setOwner(OwnerGranted)
	logrus.WithField("function", "Grant").Info("Control granted to peer")
	return nil
}

// Deny refuses the peer's outstanding control request.
func (h *Handshake) Deny() error {
	h.mu.Lock()
	if h.owner != OwnerRequested {
		h.mu.Unlock()
		return ErrNoRequest
	}
	h.mu.Unlock()

	if !h.sender.SendChannel(wire.ChannelMessage{
		Type:   wire.ChannelControl,
		Action: wire.ControlDenied,
	}) {
		return ErrChannelUnavailable
	}

	h.setOwner(OwnerDenied)
	return nil
}

// Revoke withdraws any grant in either direction and tells the peer.
// Always safe to call, whatever the current state; stopping a screen
// share must call it so the peer drops its grant with the stream.
func (h *Handshake) Revoke() {
	h.sender.SendChannel(wire.ChannelMessage{
		Type:   wire.ChannelControl,
		Action: wire.ControlRevoked,
	})
	h.resetBoth()
}

// Reset drops all authorization state without notifying the peer. Call
// it when the call itself ends and the channel is already gone.
func (h *Handshake) Reset() {
	h.resetBoth()
}

// SendMouse transmits one mouse event to the owned screen. Dropped
// unless control is currently granted to this endpoint.
func (h *Handshake) SendMouse(event string, x, y float64, button int) bool {
	h.mu.Lock()
	active := h.controller == Controlling
	h.mu.Unlock()
	if !active {
		return false
	}
	return h.sender.SendChannel(wire.ChannelMessage{
		Type:   wire.ChannelMouse,
		Event:  event,
		X:      x,
		Y:      y,
		Button: button,
	})
}

// SendKey transmits one keyboard event to the owned screen. Dropped
// unless control is currently granted to this endpoint.
func (h *Handshake) SendKey(event, key, code string, mods *wire.Modifiers) bool {
	h.mu.Lock()
	active := h.controller == Controlling
	h.mu.Unlock()
	if !active {
		return false
	}
	return h.sender.SendChannel(wire.ChannelMessage{
		Type:      wire.ChannelKey,
		Event:     event,
		Key:       key,
		Code:      code,
		Modifiers: mods,
	})
}

// Handle feeds one inbound application message into the handshake.
// Returns true when the message was consumed, false when it belongs to
// another layer.
func (h *Handshake) Handle(msg wire.ChannelMessage) bool {
	switch msg.Type {
	case wire.ChannelControl:
		h.handleControl(msg.Action)
		return true
	case wire.ChannelMouse, wire.ChannelKey:
		h.handleInput(msg)
		return true
	default:
		return false
	}
}

func (h *Handshake) handleControl(action string) {
	switch action {
	case wire.ControlRequest:
		h.mu.Lock()
		if h.owner == OwnerGranted || h.owner == OwnerRequested {
			h.mu.Unlock()
			return
		}
		h.mu.Unlock()
		h.setOwner(OwnerRequested)
		if h.cb.RequestReceived != nil {
			h.cb.RequestReceived()
		}

	case wire.ControlGranted:
		h.mu.Lock()
		if h.controller != Requesting {
			h.mu.Unlock()
			return
		}
		h.mu.Unlock()
		h.setController(Controlling)
		logrus.WithField("function", "handleControl").Info("Control granted by peer")

	case wire.ControlDenied:
		h.mu.Lock()
		if h.controller != Requesting {
			h.mu.Unlock()
			return
		}
		h.mu.Unlock()
		h.setController(NotControlling)

	case wire.ControlRevoked:
		// A revoke is always accepted, even repeated.
		h.resetBoth()

	default:
		logrus.WithField("action", action).Debug("Unknown control action ignored")
	}
}

// handleInput executes a peer input event, but only while the local
// grant is live. Events arriving outside a grant are discarded so a
// stale or revoked grant is never honored.
func (h *Handshake) handleInput(msg wire.ChannelMessage) {
	h.mu.Lock()
	granted := h.owner == OwnerGranted
	inj := h.injector
	h.mu.Unlock()

	if !granted || inj == nil {
		return
	}

	switch msg.Type {
	case wire.ChannelMouse:
		inj.Mouse(msg.Event, msg.X, msg.Y, msg.Button)
	case wire.ChannelKey:
		var mods wire.Modifiers
		if msg.Modifiers != nil {
			mods = *msg.Modifiers
		}
		inj.Key(msg.Event, msg.Key, msg.Code, mods)
	}
}

func (h *Handshake) setOwner(s OwnerState) {
	h.mu.Lock()
	changed := h.owner != s
	h.owner = s
	h.mu.Unlock()
	if changed && h.cb.OwnerChange != nil {
		h.cb.OwnerChange(s)
	}
}

func (h *Handshake) setController(s ControllerState) {
	h.mu.Lock()
	changed := h.controller != s
	h.controller = s
	h.mu.Unlock()
	if changed && h.cb.ControllerChange != nil {
		h.cb.ControllerChange(s)
	}
}

func (h *Handshake) resetBoth() {
	h.setOwner(OwnerIdle)
	h.setController(NotControlling)
}
