package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nearword/nearword/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 20 * time.Second
	maxMessageSize = 4096
)

// RegisterRoutes registers the game WebSocket endpoint.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.handleWS)
}

func (h *Handler) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return h.allowedOrigin(r.Header.Get("Origin"))
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}

	sess := h.sessions.Create()
	h.logger.Info("Client connected",
		zap.String("session_id", sess.ID()),
		zap.String("remote", r.RemoteAddr),
	)

	done := make(chan struct{})
	go h.writePump(conn, sess, done)
	h.readPump(conn, sess)

	// Reader gone: leave rooms, close the outbox, end the writer.
	h.disconnect(sess)
	<-done
	_ = conn.Close()
	h.logger.Info("Client disconnected", zap.String("session_id", sess.ID()))
}

// readPump decodes inbound frames and dispatches them until the peer goes
// away. Guesses from one session are processed in arrival order.
func (h *Handler) readPump(conn *websocket.Conn, sess *session.Session) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error",
					zap.String("session_id", sess.ID()),
					zap.Error(err),
				)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		h.dispatch(sess, f)
	}
}

// writePump drains the session outbox onto the socket and keeps the
// connection alive with pings. It exits when the outbox closes.
func (h *Handler) writePump(conn *websocket.Conn, sess *session.Session, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-sess.Outbox():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				h.logger.Debug("WebSocket write error",
					zap.String("session_id", sess.ID()),
					zap.Error(err),
				)
				// Keep draining so Close can complete; the reader will
				// notice the dead peer.
				continue
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"),
				time.Now().Add(writeWait)); err != nil {
				continue
			}
		}
	}
}
