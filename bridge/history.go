package bridge

import "sync"

const defaultHistoryLimit = 200

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one rendered conversation entry.
type Turn struct {
	Role Role
	Text string
}

// History is the process-owned conversation log. It is bounded: once the
// limit is reached the oldest turn is dropped. Both the router and the
// transcription upload read from it, so no component has to scrape
// presentation output for the last assistant turn.
type History struct {
	mu    sync.Mutex
	turns []Turn
	limit int
}

// NewHistory returns a history bounded to limit turns. A non-positive
// limit selects the default.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &History{limit: limit}
}

// Append records one turn, evicting the oldest when full.
func (h *History) Append(role Role, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.turns) >= h.limit {
		h.turns = h.turns[1:]
	}
	h.turns = append(h.turns, Turn{Role: role, Text: text})
}

// LastAssistant returns the text of the most recent assistant turn.
func (h *History) LastAssistant() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.turns) - 1; i >= 0; i-- {
		if h.turns[i].Role == RoleAssistant {
			return h.turns[i].Text, true
		}
	}
	return "", false
}

// Len reports the number of retained turns.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

// Clear drops all turns. Called on every reconnect: the client keeps no
// cross-reconnect conversation continuity.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
}
