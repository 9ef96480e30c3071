package client

import (
	"errors"
	"sync"

	"github.com/opd-ai/peerlink/wire"
)

var errConnClosed = errors.New("mock connection closed")

// mockConn is an in-memory Conn. Frames pushed with push() appear on
// ReadMessage; frames the client writes are recorded and optionally
// answered by a reply function.
type mockConn struct {
	mu      sync.Mutex
	inbound chan []byte
	written []wire.Envelope
	closed  bool

	// reply, when set, is invoked for every written envelope; a non-nil
	// result is pushed back as if the service had replied.
	reply func(env wire.Envelope) *wire.Envelope
}

func newMockConn() *mockConn {
	return &mockConn{inbound: make(chan []byte, 16)}
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	data, ok := <-m.inbound
	if !ok {
		return 0, nil, errConnClosed
	}
	return 1, data, nil
}

func (m *mockConn) WriteMessage(_ int, data []byte) error {
	env, err := wire.ParseEnvelope(data)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errConnClosed
	}
	m.written = append(m.written, env)
	reply := m.reply
	m.mu.Unlock()

	if reply != nil {
		if res := reply(env); res != nil {
			m.push(*res)
		}
	}
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.inbound)
	}
	return nil
}

func (m *mockConn) push(env wire.Envelope) {
	data, _ := env.Marshal()
	m.inbound <- data
}

func (m *mockConn) sent() []wire.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]wire.Envelope, len(m.written))
	copy(out, m.written)
	return out
}

// mockDialer hands out a scripted sequence of connections, failing for
// every nil entry.
type mockDialer struct {
	mu    sync.Mutex
	conns []*mockConn
	calls int
}

func (d *mockDialer) dial(string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if len(d.conns) == 0 {
		return nil, errors.New("mock dial failure")
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	if conn == nil {
		return nil, errors.New("mock dial failure")
	}
	return conn, nil
}

func (d *mockDialer) dialCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}
