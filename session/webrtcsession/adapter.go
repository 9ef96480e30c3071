// Package webrtcsession provides a session.Capability backed by Pion
// WebRTC: an RTCPeerConnection with an ordered data channel as the
// application message channel. Trickle ICE candidates and connection-state
// changes are surfaced through the session.Events callbacks.
package webrtcsession

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerlink/session"
)

// DefaultSTUNServers are used when no servers are configured.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// channelLabel is the data-channel label both sides agree on.
const channelLabel = "data"

// Adapter implements session.Capability over a Pion PeerConnection.
type Adapter struct {
	pc *webrtc.PeerConnection

	mu     sync.Mutex
	events session.Events
	ch     *webrtc.DataChannel
	closed bool
}

// New creates an adapter with its own PeerConnection. stunServers may be
// nil to use the defaults.
func New(stunServers []string) (*Adapter, error) {
	if len(stunServers) == 0 {
		stunServers = DefaultSTUNServers
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: stunServers}},
	})
	if err != nil {
		return nil, err
	}

	a := &Adapter{pc: pc}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return // end of gathering
		}
		init := c.ToJSON()
		data, err := json.Marshal(init)
		if err != nil {
			return
		}
		if fn := a.eventCallbacks().Candidate; fn != nil {
			fn(data)
		}
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		logrus.WithFields(logrus.Fields{
			"function": "OnConnectionStateChange",
			"state":    s.String(),
		}).Debug("Peer connection state changed")

		conn, ok := mapConnectionState(s)
		if !ok {
			return
		}
		if fn := a.eventCallbacks().Connectivity; fn != nil {
			fn(conn)
		}
	})

	// Responder side receives the channel the initiator opened.
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		a.adoptChannel(dc)
	})

	return a, nil
}

// Bind implements session.Capability.
func (a *Adapter) Bind(ev session.Events) {
	a.mu.Lock()
	a.events = ev
	a.mu.Unlock()
}

// CreateOffer implements session.Capability: it produces and installs the
// local offer, returned as the JSON form relayed to the peer.
func (a *Adapter) CreateOffer() (json.RawMessage, error) {
	offer, err := a.pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	if err := a.pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	return json.Marshal(offer)
}

// CreateAnswer implements session.Capability.
func (a *Adapter) CreateAnswer() (json.RawMessage, error) {
	answer, err := a.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	if err := a.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	return json.Marshal(answer)
}

// SetRemoteDescription implements session.Capability.
func (a *Adapter) SetRemoteDescription(desc json.RawMessage) error {
	var sd webrtc.SessionDescription
	if err := json.Unmarshal(desc, &sd); err != nil {
		return err
	}
	return a.pc.SetRemoteDescription(sd)
}

// AddCandidate implements session.Capability.
func (a *Adapter) AddCandidate(candidate json.RawMessage) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(candidate, &init); err != nil {
		return err
	}
	return a.pc.AddICECandidate(init)
}

// OpenChannel implements session.Capability: initiator-side creation of
// the ordered application channel.
func (a *Adapter) OpenChannel() error {
	ordered := true
	dc, err := a.pc.CreateDataChannel(channelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return err
	}
	a.adoptChannel(dc)
	return nil
}

// SendMessage implements session.Capability.
func (a *Adapter) SendMessage(data []byte) error {
	a.mu.Lock()
	dc := a.ch
	a.mu.Unlock()

	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return errors.New("data channel not open")
	}
	return dc.Send(data)
}

// Close implements session.Capability. Closing the PeerConnection stops
// every owned track and transport.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()
	return a.pc.Close()
}

// adoptChannel wires a data channel's lifecycle into the bound events.
func (a *Adapter) adoptChannel(dc *webrtc.DataChannel) {
	a.mu.Lock()
	a.ch = dc
	a.mu.Unlock()

	dc.OnOpen(func() {
		if fn := a.eventCallbacks().ChannelOpen; fn != nil {
			fn()
		}
	})
	dc.OnClose(func() {
		if fn := a.eventCallbacks().ChannelClose; fn != nil {
			fn()
		}
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if fn := a.eventCallbacks().ChannelMessage; fn != nil {
			fn(msg.Data)
		}
	})
}

func (a *Adapter) eventCallbacks() session.Events {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.events
}

// mapConnectionState translates Pion connection states into the session
// connectivity vocabulary. New has no mapping.
func mapConnectionState(s webrtc.PeerConnectionState) (session.Connectivity, bool) {
	switch s {
	case webrtc.PeerConnectionStateConnecting:
		return session.ConnectivityChecking, true
	case webrtc.PeerConnectionStateConnected:
		return session.ConnectivityConnected, true
	case webrtc.PeerConnectionStateDisconnected:
		return session.ConnectivityDisconnected, true
	case webrtc.PeerConnectionStateFailed:
		return session.ConnectivityFailed, true
	case webrtc.PeerConnectionStateClosed:
		return session.ConnectivityClosed, true
	default:
		return 0, false
	}
}
