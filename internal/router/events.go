package router

import "encoding/json"

// Inbound event names.
const (
	EventSendMessage      = "sendMessage"
	EventJoinRoom         = "join_room"
	EventSendGroupMessage = "sendGroupMessage"
)

// Outbound event names.
const (
	EventSuccessMessage = "successMessage"
	EventNewMessage     = "newMessage"
	EventError          = "error"
)

// ClientEvent is the wire envelope for everything a client sends.
type ClientEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// ServerEvent is the wire envelope for everything the gateway sends.
type ServerEvent struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

type SendMessagePayload struct {
	Content string `json:"content"`
	SendTo  string `json:"sendTo"`
}

type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
}

type SendGroupMessagePayload struct {
	Content string `json:"content"`
	GroupID string `json:"groupId"`
}

// NewMessagePayload goes to recipients. GroupID is set only for group
// messages.
type NewMessagePayload struct {
	Content string `json:"content"`
	From    string `json:"from"`
	GroupID string `json:"groupId,omitempty"`
}

// ErrorPayload reports a non-fatal operation failure. Type names the inbound
// event that failed.
type ErrorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
