package call

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/opd-ai/peerlink/session"
	"github.com/opd-ai/peerlink/wire"
)

// mockSignaler records everything the orchestrator sends and lets tests
// fail invitation delivery.
type mockSignaler struct {
	mu sync.Mutex

	called  []string
	sent    []wire.Envelope
	callErr error
	sendErr error
}

func newMockSignaler() *mockSignaler { return &mockSignaler{} }

func (m *mockSignaler) Call(targetID string) error {
	m.mu.Lock()
	m.called = append(m.called, targetID)
	m.mu.Unlock()
	return m.callErr
}

func (m *mockSignaler) Send(env wire.Envelope) error {
	m.mu.Lock()
	m.sent = append(m.sent, env)
	m.mu.Unlock()
	return m.sendErr
}

func (m *mockSignaler) sentEnvelopes() []wire.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]wire.Envelope, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *mockSignaler) lastOfType(t string) (wire.Envelope, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Type == t {
			return m.sent[i], true
		}
	}
	return wire.Envelope{}, false
}

// mockTransport is an in-memory session.Capability driven by hand from
// tests.
type mockTransport struct {
	mu sync.Mutex

	events session.Events

	remoteDescription json.RawMessage
	sentMessages      [][]byte
	channelOpened     bool
	closed            bool
}

func newMockTransport() *mockTransport { return &mockTransport{} }

func (m *mockTransport) Bind(ev session.Events) {
	m.mu.Lock()
	m.events = ev
	m.mu.Unlock()
}

func (m *mockTransport) CreateOffer() (json.RawMessage, error) {
	return json.RawMessage(`{"type":"offer","sdp":"mock-offer"}`), nil
}

func (m *mockTransport) CreateAnswer() (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.remoteDescription == nil {
		return nil, errors.New("no remote description")
	}
	return json.RawMessage(`{"type":"answer","sdp":"mock-answer"}`), nil
}

func (m *mockTransport) SetRemoteDescription(desc json.RawMessage) error {
	m.mu.Lock()
	m.remoteDescription = desc
	m.mu.Unlock()
	return nil
}

func (m *mockTransport) AddCandidate(json.RawMessage) error { return nil }

func (m *mockTransport) OpenChannel() error {
	m.mu.Lock()
	m.channelOpened = true
	m.mu.Unlock()
	return nil
}

func (m *mockTransport) SendMessage(data []byte) error {
	m.mu.Lock()
	m.sentMessages = append(m.sentMessages, data)
	m.mu.Unlock()
	return nil
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *mockTransport) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// connect walks the transport through a successful channel bring-up.
func (m *mockTransport) connect() {
	m.mu.Lock()
	ev := m.events
	m.mu.Unlock()
	if ev.Connectivity != nil {
		ev.Connectivity(session.ConnectivityConnected)
	}
	if ev.ChannelOpen != nil {
		ev.ChannelOpen()
	}
}

func (m *mockTransport) fireConnectivity(c session.Connectivity) {
	m.mu.Lock()
	fn := m.events.Connectivity
	m.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

func (m *mockTransport) fireChannelMessage(data []byte) {
	m.mu.Lock()
	fn := m.events.ChannelMessage
	m.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

// transportFactory hands one mockTransport per session allocation and
// remembers it for the test to drive. allocating, when set, runs at the
// start of each allocation so tests can race other events against it.
type transportFactory struct {
	mu         sync.Mutex
	created    []*mockTransport
	allocating func()
}

func (f *transportFactory) factory(peerID string, role session.Role, cb session.Callbacks) (*session.Negotiator, error) {
	f.mu.Lock()
	hook := f.allocating
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	t := newMockTransport()
	f.mu.Lock()
	f.created = append(f.created, t)
	f.mu.Unlock()
	return session.NewNegotiator(peerID, role, t, cb)
}

func (f *transportFactory) last() *mockTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.created) == 0 {
		return nil
	}
	return f.created[len(f.created)-1]
}
