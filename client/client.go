package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerlink/identity"
	"github.com/opd-ai/peerlink/wire"
)

// Default operation bounds and reconnect tuning.
const (
	DefaultLookupTimeout        = 10 * time.Second
	DefaultCallTimeout          = 30 * time.Second
	DefaultBackoffBase          = 1 * time.Second
	DefaultBackoffCap           = 30 * time.Second
	DefaultMaxReconnectAttempts = 5
)

// Conn is the minimal connection surface the client uses, satisfied by
// *websocket.Conn. Tests substitute an in-memory implementation.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a connection to the signaling service.
type Dialer func(url string) (Conn, error)

func gorillaDial(url string) (Conn, error) {
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// Options configures a Client. Zero fields take the defaults above.
type Options struct {
	// URL of the signaling service, e.g. "ws://localhost:8080/ws".
	URL string

	LookupTimeout        time.Duration
	CallTimeout          time.Duration
	BackoffBase          time.Duration
	BackoffCap           time.Duration
	MaxReconnectAttempts int

	// Dialer overrides the WebSocket dialer, mainly for tests.
	Dialer Dialer
}

// NewOptions returns Options with every default filled in.
func NewOptions(url string) *Options {
	return &Options{
		URL:                  url,
		LookupTimeout:        DefaultLookupTimeout,
		CallTimeout:          DefaultCallTimeout,
		BackoffBase:          DefaultBackoffBase,
		BackoffCap:           DefaultBackoffCap,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		Dialer:               gorillaDial,
	}
}

// Client is one endpoint's connection to the rendezvous service.
type Client struct {
	opts Options

	mu        sync.Mutex
	conn      Conn
	closed    bool
	self      identity.Identity
	joined    bool
	pending   map[string]chan wire.Envelope // result type -> one-shot waiter
	handlers  map[string][]func(wire.Envelope)
	onDropped func()
	onFailed  func(error)
}

// New creates a client. Connect must be called before any operation.
func New(opts *Options) *Client {
	o := *opts
	if o.LookupTimeout == 0 {
		o.LookupTimeout = DefaultLookupTimeout
	}
	if o.CallTimeout == 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	if o.BackoffBase == 0 {
		o.BackoffBase = DefaultBackoffBase
	}
	if o.BackoffCap == 0 {
		o.BackoffCap = DefaultBackoffCap
	}
	if o.MaxReconnectAttempts == 0 {
		o.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if o.Dialer == nil {
		o.Dialer = gorillaDial
	}

	return &Client{
		opts:     o,
		pending:  make(map[string]chan wire.Envelope),
		handlers: make(map[string][]func(wire.Envelope)),
	}
}

// Connect dials the service and starts the read pump.
func (c *Client) Connect() error {
	conn, err := c.opts.Dialer(c.opts.URL)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.closed = false
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Connect",
		"url":      c.opts.URL,
	}).Info("Connected to signaling service")

	go c.readLoop(conn)
	return nil
}

// Close shuts the connection down and suppresses reconnection.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// On registers a handler for pushed envelopes of the given type
// (incoming-call, call-response, offer, answer, ice-candidate, hangup).
func (c *Client) On(envType string, fn func(wire.Envelope)) {
	c.mu.Lock()
	c.handlers[envType] = append(c.handlers[envType], fn)
	c.mu.Unlock()
}

// OnDisconnect registers a handler fired when the connection drops
// unexpectedly, before reconnection starts.
func (c *Client) OnDisconnect(fn func()) {
	c.mu.Lock()
	c.onDropped = fn
	c.mu.Unlock()
}

// OnReconnectFailed registers the terminal failure handler fired after
// reconnection is abandoned.
func (c *Client) OnReconnectFailed(fn func(error)) {
	c.mu.Lock()
	c.onFailed = fn
	c.mu.Unlock()
}

// Identity returns the identity this client joined with, if any.
func (c *Client) Identity() (identity.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.self, c.joined
}

// Join registers the identity with the presence directory and waits for
// the join-result within the identity-operation bound.
func (c *Client) Join(id identity.Identity) error {
	res, err := c.request(wire.Envelope{
		Type:        wire.TypeJoin,
		ID:          id.ID,
		ShortCode:   id.ShortCode,
		Username:    id.Username,
		DisplayName: id.DisplayName,
	}, c.opts.LookupTimeout)
	if err != nil {
		return err
	}
	if !res.Ok() {
		return fmt.Errorf("join rejected: %s", res.Error)
	}

	c.mu.Lock()
	c.self = id
	c.joined = true
	c.mu.Unlock()
	return nil
}

// Lookup resolves a short code to the identity currently owning it.
func (c *Client) Lookup(shortCode string) (identity.Identity, error) {
	res, err := c.request(wire.Envelope{
		Type:      wire.TypeLookup,
		ShortCode: shortCode,
	}, c.opts.LookupTimeout)
	if err != nil {
		return identity.Identity{}, err
	}
	if !res.Ok() {
		return identity.Identity{}, ErrLookupNotFound
	}
	return identity.Identity{
		ID:          res.ID,
		ShortCode:   res.ShortCode,
		DisplayName: res.DisplayName,
	}, nil
}

// Call sends a call invitation and waits for the service's call-result
// within the invitation bound. A success only means the invitation was
// delivered; acceptance arrives later as a pushed call-response.
func (c *Client) Call(targetID string) error {
	res, err := c.request(wire.Envelope{
		Type:     wire.TypeCall,
		TargetID: targetID,
	}, c.opts.CallTimeout)
	if err != nil {
		return err
	}
	if !res.Ok() {
		return ErrTargetOffline
	}
	return nil
}

// Send writes one fire-and-forget envelope (call-response, offer, answer,
// ice-candidate, hangup).
func (c *Client) Send(env wire.Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// request sends env and blocks for the correlated result frame. The
// waiter is registered before the write so a fast reply cannot be missed,
// and is deregistered exactly once on timeout.
func (c *Client) request(env wire.Envelope, timeout time.Duration) (wire.Envelope, error) {
	resultType := wire.ResultType(env.Type)
	ch := make(chan wire.Envelope, 1)

	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return wire.Envelope{}, ErrNotConnected
	}
	if _, exists := c.pending[resultType]; exists {
		c.mu.Unlock()
		return wire.Envelope{}, ErrRequestPending
	}
	c.pending[resultType] = ch
	c.mu.Unlock()

	if err := c.Send(env); err != nil {
		c.mu.Lock()
		delete(c.pending, resultType)
		c.mu.Unlock()
		return wire.Envelope{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res, nil
	case <-timer.C:
	}

	// Timed out: deregister, unless the result raced in between the timer
	// firing and us taking the lock, in which case honor the result.
	c.mu.Lock()
	_, stillPending := c.pending[resultType]
	delete(c.pending, resultType)
	c.mu.Unlock()

	if !stillPending {
		return <-ch, nil
	}

	logrus.WithFields(logrus.Fields{
		"function": "request",
		"type":     env.Type,
		"timeout":  timeout.String(),
	}).Warn("Request timed out")
	return wire.Envelope{}, ErrRequestTimeout
}

// readLoop pumps inbound frames until the connection dies, then hands off
// to the reconnect loop unless the client was closed deliberately.
func (c *Client) readLoop(conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}

		env, err := wire.ParseEnvelope(data)
		if err != nil {
			logrus.WithError(err).Warn("Invalid frame from service")
			continue
		}
		c.dispatch(env)
	}
}

// dispatch delivers one inbound envelope: correlated waiters first,
// otherwise the registered push handlers. A result type with no waiter
// (late reply after timeout) is dropped.
func (c *Client) dispatch(env wire.Envelope) {
	c.mu.Lock()
	if ch, ok := c.pending[env.Type]; ok {
		delete(c.pending, env.Type)
		c.mu.Unlock()
		ch <- env
		return
	}
	fns := append([]func(wire.Envelope){}, c.handlers[env.Type]...)
	c.mu.Unlock()

	if len(fns) == 0 {
		logrus.WithField("type", env.Type).Debug("Unhandled envelope dropped")
		return
	}
	for _, fn := range fns {
		fn(env)
	}
}

func (c *Client) handleDisconnect(conn Conn, cause error) {
	c.mu.Lock()
	if c.closed || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	dropped := c.onDropped
	c.mu.Unlock()

	logrus.WithError(cause).Warn("Signaling connection lost")
	if dropped != nil {
		dropped()
	}
	go c.reconnectLoop()
}

// reconnectLoop retries the dial with exponential backoff: 1s, 2s, 4s,
// 8s, 16s (capped at 30s), abandoning after the attempt limit with a
// terminal failure signal.
func (c *Client) reconnectLoop() {
	for attempt := 1; attempt <= c.opts.MaxReconnectAttempts; attempt++ {
		delay := c.reconnectDelay(attempt)
		logrus.WithFields(logrus.Fields{
			"function": "reconnectLoop",
			"attempt":  attempt,
			"delay":    delay.String(),
		}).Info("Reconnecting")
		time.Sleep(delay)

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		conn, err := c.opts.Dialer(c.opts.URL)
		if err != nil {
			continue
		}

		c.mu.Lock()
		c.conn = conn
		self, joined := c.self, c.joined
		c.mu.Unlock()

		go c.readLoop(conn)

		// Re-register presence so the short code resolves again. The
		// service treats a repeated join as a handle replacement.
		if joined {
			_ = c.Send(wire.Envelope{
				Type:        wire.TypeJoin,
				ID:          self.ID,
				ShortCode:   self.ShortCode,
				Username:    self.Username,
				DisplayName: self.DisplayName,
			})
		}

		logrus.Info("Reconnected to signaling service")
		return
	}

	c.mu.Lock()
	failed := c.onFailed
	c.mu.Unlock()

	logrus.Error("Reconnect attempts exhausted")
	if failed != nil {
		failed(ErrReconnectExhausted)
	}
}

// reconnectDelay returns the backoff for the given 1-based attempt.
func (c *Client) reconnectDelay(attempt int) time.Duration {
	delay := c.opts.BackoffBase << (attempt - 1)
	if delay > c.opts.BackoffCap {
		delay = c.opts.BackoffCap
	}
	return delay
}
