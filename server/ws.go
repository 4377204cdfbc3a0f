package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Time allowed to write a message to the peer
const writeWait = 10 * time.Second

type sessionRequest struct {
	Action    string `json:"action"`
	Text      string `json:"text"`
	Lang      string `json:"lang"`
	Verbosity string `json:"verbosity"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	clientID := uuid.New()
	slog.Info("Session connected", "clientID", clientID, "remoteAddr", r.RemoteAddr)
	defer slog.Info("Session closed", "clientID", clientID)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket read error", "clientID", clientID, "error", err)
			}
			return
		}

		reply := s.reply(data)
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(reply); err != nil {
			slog.Error("WebSocket write error", "clientID", clientID, "error", err)
			return
		}
	}
}

// reply maps one inbound frame to a response. The different shapes let a
// developer drive every client code path by hand: plain text echoes back,
// "open <url>" produces a navigation frame, an empty message produces an
// error frame.
func (s *Server) reply(data []byte) any {
	var req sessionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return map[string]any{"action": "error", "message": "malformed frame: " + err.Error()}
	}

	text := strings.TrimSpace(req.Text)
	switch {
	case req.Action != "" && req.Action != "message":
		return map[string]any{"action": "error", "message": "unsupported action: " + req.Action}

	case text == "":
		return map[string]any{"action": "error", "message": "empty message"}

	case strings.HasPrefix(text, "open "):
		url := strings.TrimSpace(strings.TrimPrefix(text, "open "))
		return map[string]any{
			"action":  "open_url",
			"url":     url,
			"message": "Opening that page for you.",
		}

	default:
		return map[string]any{"response": formatEcho(text, req.Verbosity)}
	}
}

func formatEcho(text, verbosity string) string {
	if verbosity == "concise" {
		return "- " + text
	}
	return text
}
