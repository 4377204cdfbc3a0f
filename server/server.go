// Package server runs a protocol-complete development backend: a
// websocket endpoint speaking the session protocol and a multipart upload
// endpoint backed by a local whisper executable. The production agent is a
// separate system; this backend exists so the client can be exercised end
// to end.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Config for the development backend.
type Config struct {
	// HTTP listen address.
	Addr string

	// Path to the whisper executable. Empty disables transcription: audio
	// uploads are rejected with an explanatory error.
	WhisperPath string

	// Path to the whisper model file.
	WhisperModel string

	// Workers bounds concurrent whisper invocations.
	Workers int
}

// Server hosts the /ws and /audio endpoints.
type Server struct {
	config     Config
	httpServer *http.Server
	upgrader   websocket.Upgrader
	slots      chan struct{}
}

func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}

	s := &Server{
		config: cfg,
		slots:  make(chan struct{}, cfg.Workers),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local development backend
			},
		},
	}

	router := mux.NewRouter()
	router.HandleFunc("/audio", s.handleAudio).Methods(http.MethodPost)
	router.HandleFunc("/ws", s.handleWebSocket)

	s.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}
	return s
}

// Handler exposes the route table.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until the context ends.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			slog.Error("Failed to shut down HTTP server", "error", err)
		}
	}()

	slog.Info("Development backend listening", "addr", s.config.Addr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
