package realtime

import (
	"context"
	"encoding/json"

	apperrors "support-relay-backend/internal/common/errors"
)

// State of a live connection.
type State int

const (
	StateUnauthenticated State = iota
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Event drives a Session transition.
type Event interface{ event() }

type (
	// JoinEvent declares the connection's identity.
	JoinEvent struct{ Token string }
	// LeaveEvent drops the current membership but keeps the connection open.
	LeaveEvent struct{}
	// DisconnectEvent is the transport going away.
	DisconnectEvent struct{}
	// MalformedEvent is a frame that could not be understood.
	MalformedEvent struct{ Reason string }
)

func (JoinEvent) event()       {}
func (LeaveEvent) event()      {}
func (DisconnectEvent) event() {}
func (MalformedEvent) event()  {}

// RoomResolver verifies a session token and returns the room it may join.
type RoomResolver interface {
	RoomForToken(ctx context.Context, token string) (string, error)
}

// Session is the per-connection membership state machine:
// Unauthenticated -> Joined(room) -> Closed. It knows nothing about the
// transport; replies are returned to the caller to deliver.
type Session struct {
	member   Member
	rooms    *Rooms
	resolver RoomResolver

	state State
	room  string
}

func NewSession(member Member, rooms *Rooms, resolver RoomResolver) *Session {
	return &Session{member: member, rooms: rooms, resolver: resolver}
}

func (s *Session) State() State { return s.state }

// Room returns the joined room, or "" when not joined.
func (s *Session) Room() string { return s.room }

// Handle applies ev and returns the frame to send back, if any.
func (s *Session) Handle(ctx context.Context, ev Event) *Frame {
	if s.state == StateClosed {
		return nil
	}

	switch e := ev.(type) {
	case JoinEvent:
		if e.Token == "" {
			f := errorFrame(string(apperrors.ErrCodeInvalidCredential), "token is required")
			return &f
		}
		room, err := s.resolver.RoomForToken(ctx, e.Token)
		if err != nil {
			code := apperrors.ErrCodeInvalidCredential
			if appErr, ok := apperrors.AsAppError(err); ok {
				code = appErr.Code
			}
			f := errorFrame(string(code), "join rejected")
			return &f
		}
		s.rooms.Join(room, s.member)
		s.state = StateJoined
		s.room = room
		return &Frame{Type: FrameJoined, Room: room}

	case LeaveEvent:
		s.rooms.Leave(s.member)
		s.state = StateUnauthenticated
		s.room = ""
		return &Frame{Type: FrameLeft}

	case DisconnectEvent:
		s.rooms.Leave(s.member)
		s.state = StateClosed
		s.room = ""
		return nil

	case MalformedEvent:
		f := errorFrame(string(apperrors.ErrCodeValidation), e.Reason)
		return &f
	}
	return nil
}

// ParseEvent decodes a client frame. The legacy joinUserRoom/joinAdminRoom
// frames are treated as join; the room still comes from the token.
func ParseEvent(data []byte) Event {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return MalformedEvent{Reason: "invalid payload"}
	}
	switch f.Type {
	case FrameJoin, FrameJoinUser, FrameJoinAdmin:
		return JoinEvent{Token: f.Token}
	case FrameLeave:
		return LeaveEvent{}
	default:
		return MalformedEvent{Reason: "unknown frame type"}
	}
}
