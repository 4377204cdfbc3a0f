package bridge

import "log/slog"

// Router classifies decoded server frames and dispatches them to the
// display, navigation and speech sinks. Dispatch is a pure function of
// payload shape; side effects fan out from the matched variant.
type Router struct {
	display Display
	nav     Navigator
	speaker Speaker
	history *History
	lang    string
}

func NewRouter(display Display, nav Navigator, speaker Speaker, history *History, lang string) *Router {
	return &Router{
		display: display,
		nav:     nav,
		speaker: speaker,
		history: history,
		lang:    lang,
	}
}

// Dispatch routes one raw frame to its effect.
func (r *Router) Dispatch(raw []byte) {
	switch m := Classify(raw).(type) {
	case PlainText:
		r.Assistant(m.Text)
	case AssistantReply:
		r.Assistant(m.Text)
	case Notice:
		r.Assistant(m.Text)
	case Navigate:
		r.System("Opening: " + m.URL)
		if m.Message != "" {
			r.Assistant(m.Message)
		}
		r.navigate(m.URL)
	case ErrorNotice:
		r.Error("Error: " + m.Message)
	}
}

// RenderResponse applies the assistant-text rule to a decoded `response`
// value (bare string or object with a nested `response` string). The
// transcription upload path shares it with the session path.
func (r *Router) RenderResponse(v any) {
	if text := responseText(v); text != "" {
		r.Assistant(text)
	}
}

// Assistant renders one assistant turn, records it and speaks it.
func (r *Router) Assistant(text string) {
	r.display.Assistant(text)
	r.history.Append(RoleAssistant, text)
	r.speak(text)
}

// User renders one user turn and records it.
func (r *Router) User(text string) {
	r.display.User(text)
	r.history.Append(RoleUser, text)
}

// System renders a system-level notice. Notices are not conversation turns
// and stay out of history.
func (r *Router) System(text string) {
	r.display.System(text)
}

// Error renders a system-level error notice.
func (r *Router) Error(text string) {
	r.display.Error(text)
}

func (r *Router) navigate(url string) {
	if r.nav == nil {
		return
	}
	if err := r.nav.OpenURL(url); err != nil {
		slog.Error("Failed to open URL", "url", url, "error", err)
	}
}

// speak fires a detached speech attempt. A failure never propagates or
// blocks the render.
func (r *Router) speak(text string) {
	if r.speaker == nil {
		return
	}
	go func() {
		if err := r.speaker.Speak(text, r.lang); err != nil {
			slog.Debug("Speech output failed", "error", err)
		}
	}()
}
