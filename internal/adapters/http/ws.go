package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/randomtoy/pairs-go/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Client commands accepted on the stream.
const (
	CommandSelect  = "select"
	CommandNewGame = "new_game"
	CommandStyle   = "style"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Stream upgrades to a websocket that pushes the session's render events and
// accepts select, new_game and style commands.
func (h *Handler) Stream(c echo.Context) error {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return h.mapError(c, err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", "session", sess.ID, "error", err)
		return nil
	}

	events, unsubscribe := sess.View.Subscribe()
	done := make(chan struct{})
	go h.writeLoop(conn, events, done)

	ctx := c.Request().Context()
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read", "session", sess.ID, "error", err)
			}
			break
		}
		if err := h.sessions.Touch(sess.ID); err != nil {
			h.logger.Debug("websocket session gone", "session", sess.ID, "error", err)
			break
		}

		var cmdErr error
		switch msg.Type {
		case CommandSelect:
			cmdErr = sess.Engine.Select(ctx, msg.Index)
		case CommandNewGame:
			cmdErr = sess.Engine.NewGame(ctx, msg.Difficulty, msg.Style)
		case CommandStyle:
			cmdErr = sess.Engine.SetStyle(ctx, msg.Style)
		default:
			h.logger.Debug("unknown websocket command", "session", sess.ID, "type", msg.Type)
		}
		if cmdErr != nil && !errors.Is(cmdErr, domain.ErrSelectionRejected) {
			h.logger.Warn("websocket command", "session", sess.ID, "type", msg.Type, "error", cmdErr)
		}
	}

	unsubscribe()
	<-done
	return nil
}

// writeLoop owns all writes on conn. It closes conn once events is closed.
func (h *Handler) writeLoop(conn *websocket.Conn, events <-chan EventMessage, done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
		close(done)
	}()

	for {
		select {
		case ev, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
