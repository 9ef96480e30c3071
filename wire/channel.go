package wire

import "encoding/json"

// Application-channel message types. These travel over the peer data
// channel once a session is connected and never pass through the relay.
const (
	ChannelChat    = "message"
	ChannelControl = "control"
	ChannelMouse   = "mouse"
	ChannelKey     = "key"
)

// Control authorization actions.
const (
	ControlRequest = "request"
	ControlGranted = "granted"
	ControlDenied  = "denied"
	ControlRevoked = "revoked"
)

// Mouse and key event names.
const (
	InputMove  = "move"
	InputDown  = "down"
	InputUp    = "up"
	InputClick = "click"
)

// Modifiers carries keyboard modifier state for key events.
type Modifiers struct {
	Ctrl  bool `json:"ctrl,omitempty"`
	Alt   bool `json:"alt,omitempty"`
	Shift bool `json:"shift,omitempty"`
	Meta  bool `json:"meta,omitempty"`
}

// ChannelMessage is a single application-protocol message. Like Envelope
// it is one flat JSON object keyed by Type.
type ChannelMessage struct {
	Type string `json:"type"`

	// Chat (ChannelChat).
	ID        string `json:"id,omitempty"`
	Content   string `json:"content,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`

	// Control authorization (ChannelControl).
	Action string `json:"action,omitempty"`

	// Remote input (ChannelMouse, ChannelKey). Mouse coordinates are
	// normalized to [0,1] relative to the shared surface.
	Event     string     `json:"event,omitempty"`
	X         float64    `json:"x,omitempty"`
	Y         float64    `json:"y,omitempty"`
	Button    int        `json:"button,omitempty"`
	Key       string     `json:"key,omitempty"`
	Code      string     `json:"code,omitempty"`
	Modifiers *Modifiers `json:"modifiers,omitempty"`
}

// Marshal serializes the message for the data channel.
func (m ChannelMessage) Marshal() ([]byte, error) { return json.Marshal(m) }

// ParseChannelMessage deserializes a data-channel frame.
func ParseChannelMessage(data []byte) (ChannelMessage, error) {
	var m ChannelMessage
	err := json.Unmarshal(data, &m)
	return m, err
}
