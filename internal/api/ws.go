package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/terra-clan/pylearn-arcade/internal/models"
	"github.com/terra-clan/pylearn-arcade/internal/session"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxMessage = 4096
)

// wsError is pushed when a client event is rejected
type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) upgrader() websocket.Upgrader {
	allowed := make(map[string]bool, len(s.config.AllowedOrigins))
	for _, o := range s.config.AllowedOrigins {
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || len(allowed) == 0 || allowed["*"] || allowed[origin]
		},
	}
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(msg session.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal stream message", "error", err, "type", msg.Type)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) control(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(messageType, data, time.Now().Add(wsWriteWait))
}

// handleSessionWS streams a session's state, cues, speech and reward
// outcomes, and accepts player events on the same socket. Browsers cannot set
// headers on a WebSocket handshake, so the session token from create is
// passed as the token query parameter.
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing_token", "session token is required")
		return
	}

	stream, err := s.sessions.Subscribe(id, token)
	if err != nil {
		respondSessionError(w, err, "subscribe", id)
		return
	}
	defer stream.Close()

	upgrader := s.upgrader()
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err, "session_id", id)
		return
	}
	defer raw.Close()
	conn := &wsConn{conn: raw}

	slog.Info("session stream connected", "session_id", id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	// Session -> WebSocket
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()

		ping := time.NewTicker(wsPingPeriod)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-stream.C:
				if !ok {
					conn.control(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
					return
				}
				if err := conn.send(msg); err != nil {
					slog.Debug("failed to send stream message", "error", err, "session_id", id)
					return
				}
			case <-ping.C:
				if err := conn.control(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// WebSocket -> session
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		// Unblocks ReadMessage once the writer side gives up
		go func() {
			<-ctx.Done()
			raw.SetReadDeadline(time.Now())
		}()

		raw.SetReadLimit(wsMaxMessage)
		raw.SetReadDeadline(time.Now().Add(wsPongWait))
		raw.SetPongHandler(func(string) error {
			return raw.SetReadDeadline(time.Now().Add(wsPongWait))
		})

		for {
			_, data, err := raw.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("websocket read error", "error", err, "session_id", id)
				}
				return
			}

			var req models.EventRequest
			if err := json.Unmarshal(data, &req); err != nil {
				conn.send(session.Message{Type: "error", Data: wsError{Code: "invalid_request", Message: "invalid JSON message"}})
				continue
			}
			if err := s.validate.Struct(req); err != nil {
				conn.send(session.Message{Type: "error", Data: wsError{Code: "validation_error", Message: validationMessage(err)}})
				continue
			}

			// The resulting state arrives through the stream
			if _, err := stream.Dispatch(ctx, toEvent(req)); err != nil {
				_, code := errorStatus(err)
				if code == "internal_error" {
					slog.Error("failed to apply stream event", "error", err, "session_id", id)
				}
				conn.send(session.Message{Type: "error", Data: wsError{Code: code, Message: err.Error()}})
			}
		}
	}()

	wg.Wait()
	slog.Info("session stream disconnected", "session_id", id)
}
