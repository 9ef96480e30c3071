package presence

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerlink/identity"
	"github.com/opd-ai/peerlink/wire"
)

// Handle is the live transport bound to a joined identity. The registry
// never writes to it; it only hands it to the router.
type Handle interface {
	// WriteEnvelope sends one signaling frame to the endpoint.
	WriteEnvelope(env wire.Envelope) error
}

// Record is one joined endpoint. Exactly one record exists per identity;
// a later join with the same identity replaces the earlier record.
type Record struct {
	Identity identity.Identity
	Handle   Handle
	LastSeen time.Time
}

// Registry is the concurrency-safe presence directory. A single mutex
// guards both maps so the shortCode↔id bijection can never be observed
// half-updated.
type Registry struct {
	mu        sync.RWMutex
	records   map[string]*Record // id -> record
	shortCode map[string]string  // shortCode -> id
}

// NewRegistry creates an empty presence directory.
func NewRegistry() *Registry {
	return &Registry{
		records:   make(map[string]*Record),
		shortCode: make(map[string]string),
	}
}

// Join upserts the record for id. It always succeeds: a re-join after a
// reconnect silently replaces the previous record, and any prior owner of
// the same short code is displaced.
func (r *Registry) Join(id identity.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.records[id.ID]; ok {
		delete(r.shortCode, prev.Identity.ShortCode)
	}
	r.records[id.ID] = &Record{Identity: id, LastSeen: time.Now()}
	r.shortCode[id.ShortCode] = id.ID

	logrus.WithFields(logrus.Fields{
		"function":   "Join",
		"id":         abbreviate(id.ID),
		"short_code": id.ShortCode,
	}).Info("Endpoint joined")
}

// Attach binds a live transport handle to an already-joined identity,
// replacing any prior handle. Attaching an unknown id is a no-op.
func (r *Registry) Attach(id string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return
	}
	rec.Handle = h
	rec.LastSeen = time.Now()
}

// Leave removes the record and its shortCode entry atomically. Idempotent:
// leaving twice is harmless.
func (r *Registry) Leave(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return
	}
	delete(r.shortCode, rec.Identity.ShortCode)
	delete(r.records, id)

	logrus.WithFields(logrus.Fields{
		"function": "Leave",
		"id":       abbreviate(id),
	}).Info("Endpoint left")
}

// LeaveHandle removes the record only while h is still the attached
// handle. A connection tearing down after its identity rejoined over a
// fresh connection must not evict the replacement record.
func (r *Registry) LeaveHandle(id string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok || rec.Handle != h {
		return
	}
	delete(r.shortCode, rec.Identity.ShortCode)
	delete(r.records, id)

	logrus.WithFields(logrus.Fields{
		"function": "LeaveHandle",
		"id":       abbreviate(id),
	}).Info("Endpoint left")
}

// ResolveShortCode returns the identity currently owning the code. The
// input is normalized first, so case and separators do not matter.
func (r *Registry) ResolveShortCode(code string) (identity.Identity, bool) {
	code = identity.NormalizeShortCode(code)

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.shortCode[code]
	if !ok {
		return identity.Identity{}, false
	}
	return r.records[id].Identity, true
}

// Lookup returns the identity for an id if present.
func (r *Registry) Lookup(id string) (identity.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return identity.Identity{}, false
	}
	return rec.Identity, true
}

// HandleOf returns the live transport for id, if one is attached.
func (r *Registry) HandleOf(id string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok || rec.Handle == nil {
		return nil, false
	}
	return rec.Handle, true
}

// Count returns the number of joined endpoints, for the liveness endpoint.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// abbreviate shortens an id for log output.
func abbreviate(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
