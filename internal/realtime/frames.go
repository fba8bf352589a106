package realtime

import (
	"encoding/json"
	"time"
)

// Inbound frame types.
const (
	FrameJoin      = "join"
	FrameLeave     = "leave"
	FrameJoinUser  = "joinUserRoom"
	FrameJoinAdmin = "joinAdminRoom"
)

// Outbound frame types.
const (
	FrameConnected  = "connected"
	FrameJoined     = "joined"
	FrameLeft       = "left"
	FrameError      = "error"
	FrameNewMessage = "newMessage"
)

type inboundFrame struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
}

// Frame is a server to client message.
type Frame struct {
	Type    string        `json:"type"`
	Room    string        `json:"room,omitempty"`
	Code    string        `json:"code,omitempty"`
	Error   string        `json:"error,omitempty"`
	Message *MessageEvent `json:"message,omitempty"`
}

// MessageEvent is the payload pushed to a room when a message is persisted.
type MessageEvent struct {
	ID                int64     `json:"id"`
	ConversationID    int64     `json:"conversationId"`
	SenderKind        string    `json:"senderKind"`
	Body              string    `json:"body"`
	CreatedAt         time.Time `json:"createdAt"`
	SenderDisplayName string    `json:"senderDisplayName"`
}

// EncodeNewMessage builds the newMessage frame for ev.
func EncodeNewMessage(ev MessageEvent) ([]byte, error) {
	return json.Marshal(Frame{Type: FrameNewMessage, Message: &ev})
}

func errorFrame(code, msg string) Frame {
	return Frame{Type: FrameError, Code: code, Error: msg}
}
