// Package transcribe performs the one-shot upload of a finished recording
// and routes the backend's reply through the shared display pipeline.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/madebyv-in/civicbridge/audio"
)

const (
	uploadPath  = "/audio"
	defaultLang = "en"

	requestTimeout   = 2 * time.Minute
	maxResponseBytes = 1 << 20
)

// Renderer is the display pipeline fed with the upload outcome. The
// session router satisfies it, so replies to spoken and typed input render
// identically.
type Renderer interface {
	User(text string)
	System(text string)
	Error(text string)
	RenderResponse(v any)
}

// Conversation exposes the prior assistant turn, captured fresh at upload
// time rather than when the recording started.
type Conversation interface {
	LastAssistant() (string, bool)
}

// Response is the upload endpoint's reply shape.
type Response struct {
	Transcription  string          `json:"transcription"`
	TranscribeLang string          `json:"transcribe_lang"`
	LangReceived   string          `json:"lang_received"`
	Response       json.RawMessage `json:"response"`
	Error          string          `json:"error"`
}

// Client uploads recording artifacts to the backend.
type Client struct {
	baseURL    string
	lang       string
	httpClient *http.Client
	render     Renderer
	history    Conversation
}

func NewClient(baseURL, lang string, history Conversation, render Renderer) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		lang:       lang,
		httpClient: &http.Client{Timeout: requestTimeout},
		render:     render,
		history:    history,
	}
}

// Upload performs exactly one request carrying the artifact, the language
// tag and, when a prior assistant turn exists, that turn's text. Failures
// render an error notice; there is no retry.
func (c *Client) Upload(ctx context.Context, artifact audio.Artifact) error {
	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)

	part, err := form.CreateFormFile("file", "recording"+artifact.Ext())
	if err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(artifact.Data); err != nil {
		return fmt.Errorf("failed to write audio part: %w", err)
	}

	lang := c.lang
	if lang == "" {
		lang = defaultLang
	}
	if err := form.WriteField("lang", lang); err != nil {
		return fmt.Errorf("failed to write lang field: %w", err)
	}
	if prev, ok := c.history.LastAssistant(); ok {
		if err := form.WriteField("prev_assistant", prev); err != nil {
			return fmt.Errorf("failed to write prev_assistant field: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("failed to finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, body)
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.render.Error("Error: " + err.Error())
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.render.Error("Error: " + err.Error())
		return fmt.Errorf("failed to read upload response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := rejectionMessage(data)
		c.render.Error("Error: " + msg)
		return fmt.Errorf("upload rejected: status %d", resp.StatusCode)
	}

	var result Response
	if err := json.Unmarshal(data, &result); err != nil {
		c.render.Error("Error: unreadable transcription response")
		return fmt.Errorf("failed to decode upload response: %w", err)
	}

	c.renderResult(result)
	return nil
}

// renderResult displays the accepted response: the client's own speech as
// a user turn first, a language diagnostic when present, then the
// assistant reply through the shared assistant-text rule.
func (c *Client) renderResult(result Response) {
	if result.Transcription != "" {
		c.render.User(result.Transcription)
	}
	if result.TranscribeLang != "" || result.LangReceived != "" {
		c.render.System(fmt.Sprintf("Transcribed as %q (language received %q)",
			result.TranscribeLang, result.LangReceived))
	}
	if len(result.Response) > 0 && string(result.Response) != "null" {
		var v any
		if err := json.Unmarshal(result.Response, &v); err != nil {
			slog.Error("Failed to decode response field", "error", err)
			return
		}
		c.render.RenderResponse(v)
	}
}

// rejectionMessage extracts a human-readable failure from a rejected
// upload's body, falling back to the raw body text.
func rejectionMessage(data []byte) string {
	var result Response
	if err := json.Unmarshal(data, &result); err == nil && result.Error != "" {
		return result.Error
	}
	if msg := strings.TrimSpace(string(data)); msg != "" {
		return msg
	}
	return "transcription upload failed"
}
