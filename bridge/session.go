package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultSessionPath    = "/ws"
	defaultReconnectDelay = 2 * time.Second

	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second
)

// SessionConfig describes one logical connection to the backend.
type SessionConfig struct {
	// Origin is the backend's HTTP origin, e.g. "http://localhost:8000".
	// An https origin selects the secure websocket transport.
	Origin string

	// Path of the websocket endpoint. Defaults to "/ws".
	Path string

	// ReconnectDelay is the fixed interval between a close and the single
	// retry it schedules. Defaults to 2 seconds.
	ReconnectDelay time.Duration

	Lang      string
	Verbosity string
}

// SessionHandlers receive lifecycle and message events. All of them are
// optional.
type SessionHandlers struct {
	OnOpen    func()
	OnMessage func(raw []byte)
	OnError   func(err error)
	OnClose   func(err error)
}

// Session owns one persistent duplex channel to the backend. The Session
// itself lives for the whole process; only its transport is cycled. Each
// close schedules exactly one reconnect after the fixed delay; retry is
// unbounded with constant backoff.
type Session struct {
	cfg      SessionConfig
	url      string
	handlers SessionHandlers

	mu      sync.Mutex
	conn    *websocket.Conn
	open    bool
	started bool
}

// NewSession derives the websocket endpoint from the origin and returns an
// unconnected session.
func NewSession(cfg SessionConfig, handlers SessionHandlers) (*Session, error) {
	if cfg.Path == "" {
		cfg.Path = defaultSessionPath
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	endpoint, err := EndpointURL(cfg.Origin, cfg.Path)
	if err != nil {
		return nil, err
	}
	return &Session{cfg: cfg, url: endpoint, handlers: handlers}, nil
}

// EndpointURL maps an HTTP origin to the session's websocket endpoint,
// selecting ws or wss to match the origin's own security scheme.
func EndpointURL(origin, path string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported origin scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("origin %q has no host", origin)
	}
	u.Path = path
	return u.String(), nil
}

// Connect starts the session's run loop. Calling it again is a no-op.
func (s *Session) Connect(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()
	go s.run(ctx)
}

// IsOpen reports whether the transport is currently open.
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Send serializes one user message and writes it to the transport, but
// only if the transport is currently open. Otherwise the message is
// dropped silently; callers accept at-most-once delivery.
func (s *Session) Send(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || s.conn == nil {
		slog.Debug("Transport not open, dropping outbound message")
		return
	}
	msg := Outbound{
		Action:    actionMessage,
		Text:      text,
		Lang:      s.cfg.Lang,
		Verbosity: s.cfg.Verbosity,
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(msg); err != nil {
		slog.Error("Failed to write outbound message", "error", err)
	}
}

// run cycles the transport: dial, deliver frames in arrival order, notify
// on close, wait out the fixed delay, dial again. A single loop guarantees
// at most one live transport and at most one pending retry.
func (s *Session) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
		if err != nil {
			s.emitError(err)
			s.emitClose(err)
			if !s.wait(ctx) {
				return
			}
			continue
		}

		s.mu.Lock()
		s.conn = conn
		s.open = true
		s.mu.Unlock()

		if s.handlers.OnOpen != nil {
			s.handlers.OnOpen()
		}

		// close the transport when the context ends
		readDone := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-readDone:
			}
		}()

		readErr := s.readLoop(ctx, conn)
		close(readDone)

		s.mu.Lock()
		s.open = false
		s.conn = nil
		s.mu.Unlock()
		conn.Close()

		if websocket.IsUnexpectedCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			s.emitError(readErr)
		}
		s.emitClose(readErr)

		if !s.wait(ctx) {
			return
		}
	}
}

func (s *Session) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.handlers.OnMessage != nil {
			s.handlers.OnMessage(data)
		}
	}
}

// wait sleeps out the reconnect delay. It returns false when the context
// ended first.
func (s *Session) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(s.cfg.ReconnectDelay):
		return true
	}
}

func (s *Session) emitError(err error) {
	if s.handlers.OnError != nil {
		s.handlers.OnError(err)
	}
}

func (s *Session) emitClose(err error) {
	if s.handlers.OnClose != nil {
		s.handlers.OnClose(err)
	}
}
