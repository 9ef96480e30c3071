package session

import (
	"encoding/json"
	"errors"
	"sync"
)

// mockCapability is an in-memory Capability recording everything the
// negotiator asks of it and letting tests fire events by hand.
type mockCapability struct {
	mu sync.Mutex

	events Events

	remoteDescription json.RawMessage
	accepted          []json.RawMessage // candidates the capability accepted, in order
	sentMessages      [][]byte
	channelOpened     bool
	closed            bool

	failCreateOffer bool
	failAddCand     bool

	// onAccept, when set, fires once after the next accepted candidate.
	onAccept func()
}

func newMockCapability() *mockCapability { return &mockCapability{} }

func (m *mockCapability) Bind(ev Events) {
	m.mu.Lock()
	m.events = ev
	m.mu.Unlock()
}

func (m *mockCapability) CreateOffer() (json.RawMessage, error) {
	if m.failCreateOffer {
		return nil, errors.New("mock offer failure")
	}
	return json.RawMessage(`{"type":"offer","sdp":"mock-offer"}`), nil
}

func (m *mockCapability) CreateAnswer() (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.remoteDescription == nil {
		return nil, errors.New("no remote description")
	}
	return json.RawMessage(`{"type":"answer","sdp":"mock-answer"}`), nil
}

func (m *mockCapability) SetRemoteDescription(desc json.RawMessage) error {
	m.mu.Lock()
	m.remoteDescription = desc
	m.mu.Unlock()
	return nil
}

func (m *mockCapability) AddCandidate(candidate json.RawMessage) error {
	if m.failAddCand {
		return errors.New("mock candidate failure")
	}
	m.mu.Lock()
	m.accepted = append(m.accepted, candidate)
	hook := m.onAccept
	m.onAccept = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (m *mockCapability) OpenChannel() error {
	m.mu.Lock()
	m.channelOpened = true
	m.mu.Unlock()
	return nil
}

func (m *mockCapability) SendMessage(data []byte) error {
	m.mu.Lock()
	m.sentMessages = append(m.sentMessages, data)
	m.mu.Unlock()
	return nil
}

func (m *mockCapability) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *mockCapability) acceptedCandidates() []json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]json.RawMessage, len(m.accepted))
	copy(out, m.accepted)
	return out
}

func (m *mockCapability) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Event helpers: fire the bound callbacks the way a real transport would.

func (m *mockCapability) fireConnectivity(c Connectivity) {
	m.mu.Lock()
	fn := m.events.Connectivity
	m.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

func (m *mockCapability) fireChannelOpen() {
	m.mu.Lock()
	fn := m.events.ChannelOpen
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (m *mockCapability) fireChannelMessage(data []byte) {
	m.mu.Lock()
	fn := m.events.ChannelMessage
	m.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

func (m *mockCapability) fireLocalCandidate(c json.RawMessage) {
	m.mu.Lock()
	fn := m.events.Candidate
	m.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}
