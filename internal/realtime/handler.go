package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"support-relay-backend/internal/common/logger"
	"support-relay-backend/internal/common/metrics"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Handler upgrades /ws requests and runs one Session per connection.
type Handler struct {
	rooms    *Rooms
	resolver RoomResolver
	buffer   int
	upgrader websocket.Upgrader
	timeout  time.Duration
}

// NewHandler builds the websocket endpoint. checkOrigin may be nil to accept
// any origin.
func NewHandler(rooms *Rooms, resolver RoomResolver, buffer int, checkOrigin func(*http.Request) bool) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		rooms:    rooms,
		resolver: resolver,
		buffer:   buffer,
		timeout:  5 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Handle processes frames until the client disconnects.
func (h *Handler) Handle(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the response.
		return
	}

	conn := NewConnection(ws, h.buffer)
	session := NewSession(conn, h.rooms, h.resolver)
	log := logger.Component("realtime").With().Str("conn_id", conn.ID()).Logger()

	conn.Start()
	metrics.OpenConnections.Inc()
	defer func() {
		session.Handle(context.Background(), DisconnectEvent{})
		conn.Close(websocket.CloseNormalClosure, "session closed")
		metrics.OpenConnections.Dec()
		log.Debug().Msg("connection closed")
	}()

	ws.SetReadLimit(maxFrame)
	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	reply(conn, &Frame{Type: FrameConnected})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				log.Debug().Err(err).Msg("read failed")
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		out := session.Handle(ctx, ParseEvent(data))
		cancel()
		reply(conn, out)
	}
}

func reply(conn *Connection, f *Frame) {
	if f == nil {
		return
	}
	if payload, err := json.Marshal(f); err == nil {
		_ = conn.Send(payload)
	}
}
