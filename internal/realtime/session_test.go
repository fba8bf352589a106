package realtime

import (
	"context"
	"testing"

	apperrors "support-relay-backend/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticResolver map[string]string

func (r staticResolver) RoomForToken(_ context.Context, token string) (string, error) {
	room, ok := r[token]
	if !ok {
		return "", apperrors.NewInvalidCredentialError("unknown token")
	}
	return room, nil
}

var resolver = staticResolver{"user-1": "actor:1", "admin": "admin"}

func TestSessionJoinLeaveDisconnect(t *testing.T) {
	ctx := context.Background()
	rooms := NewRooms()
	m := newFakeMember("c1")
	s := NewSession(m, rooms, resolver)
	assert.Equal(t, StateUnauthenticated, s.State())

	f := s.Handle(ctx, JoinEvent{Token: "user-1"})
	require.NotNil(t, f)
	assert.Equal(t, FrameJoined, f.Type)
	assert.Equal(t, "actor:1", f.Room)
	assert.Equal(t, StateJoined, s.State())
	assert.Equal(t, 1, rooms.Members("actor:1"))

	f = s.Handle(ctx, LeaveEvent{})
	require.NotNil(t, f)
	assert.Equal(t, FrameLeft, f.Type)
	assert.Equal(t, StateUnauthenticated, s.State())
	assert.Equal(t, 0, rooms.Members("actor:1"))

	s.Handle(ctx, JoinEvent{Token: "admin"})
	assert.Equal(t, 1, rooms.Members("admin"))

	assert.Nil(t, s.Handle(ctx, DisconnectEvent{}))
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 0, rooms.Members("admin"))

	assert.Nil(t, s.Handle(ctx, JoinEvent{Token: "admin"}), "closed sessions ignore events")
	assert.Equal(t, 0, rooms.Members("admin"))
}

func TestSessionRejoinSwitchesRoom(t *testing.T) {
	ctx := context.Background()
	rooms := NewRooms()
	s := NewSession(newFakeMember("c1"), rooms, resolver)

	s.Handle(ctx, JoinEvent{Token: "user-1"})
	s.Handle(ctx, JoinEvent{Token: "admin"})
	assert.Equal(t, "admin", s.Room())
	assert.Equal(t, 0, rooms.Members("actor:1"))
	assert.Equal(t, 1, rooms.Members("admin"))
}

func TestSessionRejectsUnverifiedJoin(t *testing.T) {
	ctx := context.Background()
	rooms := NewRooms()
	s := NewSession(newFakeMember("c1"), rooms, resolver)

	f := s.Handle(ctx, JoinEvent{})
	require.NotNil(t, f)
	assert.Equal(t, FrameError, f.Type)
	assert.Equal(t, string(apperrors.ErrCodeInvalidCredential), f.Code)

	f = s.Handle(ctx, JoinEvent{Token: "forged"})
	require.NotNil(t, f)
	assert.Equal(t, FrameError, f.Type)
	assert.Equal(t, StateUnauthenticated, s.State())
	assert.Equal(t, 0, rooms.Members("actor:1"))
}

func TestParseEvent(t *testing.T) {
	assert.Equal(t, JoinEvent{Token: "t"}, ParseEvent([]byte(`{"type":"join","token":"t"}`)))
	assert.Equal(t, JoinEvent{Token: "t"}, ParseEvent([]byte(`{"type":"joinAdminRoom","token":"t"}`)))
	assert.Equal(t, JoinEvent{}, ParseEvent([]byte(`{"type":"joinUserRoom","userId":5}`)))
	assert.Equal(t, LeaveEvent{}, ParseEvent([]byte(`{"type":"leave"}`)))
	assert.IsType(t, MalformedEvent{}, ParseEvent([]byte(`{"type":"dance"}`)))
	assert.IsType(t, MalformedEvent{}, ParseEvent([]byte(`not json`)))
}
