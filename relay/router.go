package relay

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerlink/identity"
	"github.com/opd-ai/peerlink/presence"
	"github.com/opd-ai/peerlink/wire"
)

// Router forwards addressed envelopes between currently online endpoints.
// It holds no state of its own; target resolution goes through the
// presence directory on every call.
type Router struct {
	registry *presence.Registry
}

// NewRouter creates a router over the given presence directory.
func NewRouter(registry *presence.Registry) *Router {
	return &Router{registry: registry}
}

// Route delivers env to its target on behalf of from. The sender's bound
// identity is injected as fromId and targetId is stripped before
// forwarding; whatever fromId the client put in the frame is overwritten.
//
// If the target is offline and the envelope type expects a result, the
// sender receives a <type>-result{success:false,error:"offline"} frame.
// Route never returns an error for an absent target.
func (r *Router) Route(from identity.Identity, sender presence.Handle, env wire.Envelope) {
	log := logrus.WithFields(logrus.Fields{
		"function": "Route",
		"type":     env.Type,
		"from":     abbreviate(from.ID),
		"target":   abbreviate(env.TargetID),
	})

	if !wire.Routable(env.Type) {
		log.Warn("Dropping unroutable envelope type")
		return
	}

	target, online := r.registry.HandleOf(env.TargetID)
	if !online {
		log.Debug("Target offline")
		if wire.ExpectsResult(env.Type) && sender != nil {
			_ = sender.WriteEnvelope(wire.Envelope{
				Type:    wire.ResultType(env.Type),
				Success: wire.Bool(false),
				Error:   "offline",
			})
		}
		return
	}

	forward := env
	forward.TargetID = ""
	forward.FromID = from.ID
	forward.FromDisplayName = ""

	// A call invitation reaches the callee as incoming-call carrying the
	// caller's display name; the caller gets an immediate call-result.
	if env.Type == wire.TypeCall {
		forward.Type = wire.TypeIncomingCall
		forward.FromDisplayName = from.DisplayName
	}

	if err := target.WriteEnvelope(forward); err != nil {
		log.WithError(err).Error("Forward failed")
		if wire.ExpectsResult(env.Type) && sender != nil {
			_ = sender.WriteEnvelope(wire.Envelope{
				Type:    wire.ResultType(env.Type),
				Success: wire.Bool(false),
				Error:   "offline",
			})
		}
		return
	}

	if wire.ExpectsResult(env.Type) && sender != nil {
		_ = sender.WriteEnvelope(wire.Envelope{
			Type:    wire.ResultType(env.Type),
			Success: wire.Bool(true),
		})
	}

	log.Debug("Envelope forwarded")
}

func abbreviate(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
