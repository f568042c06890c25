package models

import "encoding/json"

// Event names carried in Envelope.Event.
const (
	EventJoin         = "join"
	EventLeave        = "leave"
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice_candidate"

	EventUserJoined = "user_joined"
	EventUserLeft   = "user_left"
	EventError      = "error"
	EventWarning    = "warning"
)

// Envelope is the frame exchanged over a signaling connection.
// Data is kept raw so offer/answer/candidate blobs pass through untouched.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RoomPayload is the routing part every inbound event carries.
type RoomPayload struct {
	Room *string `json:"room"`
}

// MembershipPayload is the body of join and leave.
type MembershipPayload struct {
	Room     *string `json:"room"`
	Username *string `json:"username"`
}

// UserPayload is the body of user_joined and user_left.
type UserPayload struct {
	Username string `json:"username"`
}

// NoticePayload is the body of error and warning.
type NoticePayload struct {
	Message string `json:"message"`
}

// NewEnvelope marshals data into an envelope for event.
func NewEnvelope(event string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: raw}, nil
}

// NoticeEnvelope builds an error or warning frame. It cannot fail.
func NoticeEnvelope(event, message string) Envelope {
	raw, _ := json.Marshal(NoticePayload{Message: message})
	return Envelope{Event: event, Data: raw}
}
