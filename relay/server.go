package relay

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerlink/identity"
	"github.com/opd-ai/peerlink/presence"
	"github.com/opd-ai/peerlink/wire"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server terminates endpoint WebSocket connections, binds each one to the
// identity it joins with, and feeds addressed envelopes to the router.
type Server struct {
	registry  *presence.Registry
	router    *Router
	readLimit int64
}

// NewServer creates a server over a fresh presence directory.
func NewServer() *Server {
	registry := presence.NewRegistry()
	return &Server{
		registry: registry,
		router:   NewRouter(registry),
	}
}

// SetReadLimit caps the size of inbound frames. Zero means no limit.
func (s *Server) SetReadLimit(n int64) { s.readLimit = n }

// Registry exposes the presence directory, mainly for tests and the
// liveness endpoint.
func (s *Server) Registry() *presence.Registry { return s.registry }

// Handler returns the HTTP surface: the WebSocket endpoint and a liveness
// endpoint reporting process status and presence count.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWS)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"users":  s.registry.Count(),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Error("WebSocket upgrade failed")
		return
	}

	if s.readLimit > 0 {
		ws.SetReadLimit(s.readLimit)
	}

	c := &conn{ws: ws}
	logrus.WithField("remote", ws.RemoteAddr().String()).Info("New connection")

	defer func() {
		// Leave only while this connection still owns the record; a
		// rejoin over a fresh connection must survive our teardown.
		if id := c.boundID(); id != "" {
			s.registry.LeaveHandle(id, c)
		}
		ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).Warn("Unexpected close")
			}
			return
		}

		env, err := wire.ParseEnvelope(data)
		if err != nil {
			logrus.WithError(err).Warn("Invalid frame")
			continue
		}
		s.handleEnvelope(c, env)
	}
}

// handleEnvelope dispatches one inbound frame. Join and lookup are answered
// by the service itself; everything else goes through the router under the
// connection's bound identity.
func (s *Server) handleEnvelope(c *conn, env wire.Envelope) {
	switch env.Type {
	case wire.TypeJoin:
		s.handleJoin(c, env)

	case wire.TypeLookup:
		s.handleLookup(c, env)

	default:
		from, ok := s.registry.Lookup(c.boundID())
		if !ok {
			logrus.WithField("type", env.Type).Warn("Frame from unjoined connection dropped")
			return
		}
		s.router.Route(from, c, env)
	}
}

func (s *Server) handleJoin(c *conn, env wire.Envelope) {
	id := identity.Identity{
		ID:          env.ID,
		ShortCode:   identity.NormalizeShortCode(env.ShortCode),
		Username:    env.Username,
		DisplayName: env.DisplayName,
	}

	s.registry.Join(id)
	s.registry.Attach(id.ID, c)
	c.bind(id.ID)

	_ = c.WriteEnvelope(wire.Envelope{
		Type:        wire.TypeJoinResult,
		Success:     wire.Bool(true),
		DisplayName: id.DisplayName,
		ShortCode:   id.ShortCode,
	})
}

func (s *Server) handleLookup(c *conn, env wire.Envelope) {
	user, ok := s.registry.ResolveShortCode(env.ShortCode)
	if !ok {
		_ = c.WriteEnvelope(wire.Envelope{
			Type:    wire.TypeLookupResult,
			Success: wire.Bool(false),
			Error:   "user not found or offline",
		})
		return
	}

	_ = c.WriteEnvelope(wire.Envelope{
		Type:        wire.TypeLookupResult,
		Success:     wire.Bool(true),
		ID:          user.ID,
		ShortCode:   user.ShortCode,
		DisplayName: user.DisplayName,
	})
}

// conn wraps one WebSocket connection. The write mutex serializes frames
// because gorilla connections allow only one concurrent writer.
type conn struct {
	ws *websocket.Conn

	mu sync.Mutex
	id string
}

func (c *conn) bind(id string) {
	c.mu.Lock()
	c.id = id
	c.mu.Unlock()
}

func (c *conn) boundID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// WriteEnvelope implements presence.Handle.
func (c *conn) WriteEnvelope(env wire.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(env)
}
