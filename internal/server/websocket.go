// File: internal/server/websocket.go
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients may be served from a dev server on another origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Constants for WebSocket timeouts and limits (based on Gorilla WebSocket examples).
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// handleRunStream replays a run's progress and then follows it live. The
// connection is closed after the final update.
func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	state, ok := s.runs.Get(runID)
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		s.logger.Error("Failed to upgrade connection to WebSocket", zap.Error(err))
		return
	}
	s.logger.Debug("WebSocket subscriber attached", zap.String("run_id", runID), zap.String("remoteAddr", r.RemoteAddr))

	closed := make(chan struct{})
	go s.readPump(conn, closed)
	s.writePump(conn, state, closed)
}

// readPump only services control frames; subscribers never send data.
func (s *Server) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("WebSocket closed unexpectedly", zap.Error(err))
			}
			return
		}
	}
}

// writePump owns every write on conn.
func (s *Server) writePump(conn *websocket.Conn, state *runState, closed <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	sent := 0
	for {
		pending, changed, done := state.since(sent)
		for _, u := range pending {
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(u); err != nil {
				s.logger.Debug("Error writing update to WebSocket", zap.Error(err))
				return
			}
			sent++
		}
		if done {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"))
			return
		}

		select {
		case <-changed:
		case <-closed:
			return
		case <-s.baseCtx.Done():
			return
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
