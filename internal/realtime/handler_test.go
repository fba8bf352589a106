package realtime

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, rooms *Rooms) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", NewHandler(rooms, resolver, 8, nil).Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var f Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestHandlerJoinAndPush(t *testing.T) {
	rooms := NewRooms()
	ws := dial(t, rooms)

	assert.Equal(t, FrameConnected, readFrame(t, ws).Type)

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "join", "token": "user-1"}))
	joined := readFrame(t, ws)
	assert.Equal(t, FrameJoined, joined.Type)
	assert.Equal(t, "actor:1", joined.Room)

	payload, err := EncodeNewMessage(MessageEvent{ID: 3, ConversationID: 10, SenderKind: "admin", Body: "Hi", SenderDisplayName: "Admin"})
	require.NoError(t, err)
	assert.Equal(t, 1, rooms.Broadcast("actor:1", payload))

	pushed := readFrame(t, ws)
	assert.Equal(t, FrameNewMessage, pushed.Type)
	require.NotNil(t, pushed.Message)
	assert.Equal(t, "Hi", pushed.Message.Body)
	assert.Equal(t, "admin", pushed.Message.SenderKind)
	assert.Equal(t, int64(10), pushed.Message.ConversationID)
}

func TestHandlerRejectsBadToken(t *testing.T) {
	rooms := NewRooms()
	ws := dial(t, rooms)
	readFrame(t, ws)

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "joinAdminRoom"}))
	f := readFrame(t, ws)
	assert.Equal(t, FrameError, f.Type)
	assert.Equal(t, 0, rooms.Members("admin"))
}

func TestHandlerDisconnectLeavesRoom(t *testing.T) {
	rooms := NewRooms()
	ws := dial(t, rooms)
	readFrame(t, ws)

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "join", "token": "admin"}))
	readFrame(t, ws)
	assert.Equal(t, 1, rooms.Members("admin"))

	require.NoError(t, ws.Close())
	assert.Eventually(t, func() bool { return rooms.Members("admin") == 0 }, 2*time.Second, 10*time.Millisecond)
}
