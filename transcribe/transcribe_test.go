package transcribe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/madebyv-in/civicbridge/audio"
)

type fakeRenderer struct {
	mu     sync.Mutex
	events []string
}

func (r *fakeRenderer) record(kind, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, kind+":"+text)
}

func (r *fakeRenderer) User(text string)   { r.record("user", text) }
func (r *fakeRenderer) System(text string) { r.record("system", text) }
func (r *fakeRenderer) Error(text string)  { r.record("error", text) }

func (r *fakeRenderer) RenderResponse(v any) {
	switch t := v.(type) {
	case string:
		r.record("assistant", t)
	case map[string]any:
		if nested, ok := t["response"].(string); ok {
			r.record("assistant", nested)
		}
	}
}

func (r *fakeRenderer) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeConversation struct {
	last string
	ok   bool
}

func (c *fakeConversation) LastAssistant() (string, bool) { return c.last, c.ok }

type receivedUpload struct {
	filename      string
	fileBytes     []byte
	lang          string
	prevAssistant string
	hasPrev       bool
}

func uploadServer(t *testing.T, status int, body string, got *receivedUpload) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
		} else {
			got.filename = header.Filename
			got.fileBytes, _ = io.ReadAll(file)
			file.Close()
		}
		got.lang = r.FormValue("lang")
		_, got.hasPrev = r.MultipartForm.Value["prev_assistant"]
		got.prevAssistant = r.FormValue("prev_assistant")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
}

func wavArtifact() audio.Artifact {
	return audio.Artifact{Data: []byte("RIFFxxxx"), MIME: audio.MIMEWAV}
}

func TestUploadCarriesAllFields(t *testing.T) {
	var got receivedUpload
	srv := uploadServer(t, http.StatusOK, `{"transcription":"hi"}`, &got)
	defer srv.Close()

	render := &fakeRenderer{}
	client := NewClient(srv.URL, "es", &fakeConversation{last: "how can I help?", ok: true}, render)

	if err := client.Upload(context.Background(), wavArtifact()); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if got.filename != "recording.wav" {
		t.Errorf("filename = %q, want recording.wav", got.filename)
	}
	if string(got.fileBytes) != "RIFFxxxx" {
		t.Errorf("file bytes = %q", got.fileBytes)
	}
	if got.lang != "es" {
		t.Errorf("lang = %q, want es", got.lang)
	}
	if !got.hasPrev || got.prevAssistant != "how can I help?" {
		t.Errorf("prev_assistant = %q (present=%v)", got.prevAssistant, got.hasPrev)
	}
}

func TestUploadDefaultsLangAndOmitsPrevAssistant(t *testing.T) {
	var got receivedUpload
	srv := uploadServer(t, http.StatusOK, `{}`, &got)
	defer srv.Close()

	client := NewClient(srv.URL, "", &fakeConversation{}, &fakeRenderer{})
	if err := client.Upload(context.Background(), wavArtifact()); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if got.lang != "en" {
		t.Errorf("lang = %q, want fallback en", got.lang)
	}
	if got.hasPrev {
		t.Error("prev_assistant sent with no prior assistant turn")
	}
}

func TestUploadRendersTranscriptionThenResponse(t *testing.T) {
	var got receivedUpload
	srv := uploadServer(t, http.StatusOK,
		`{"transcription":"hi","response":{"response":"hello back"}}`, &got)
	defer srv.Close()

	render := &fakeRenderer{}
	client := NewClient(srv.URL, "en", &fakeConversation{}, render)
	if err := client.Upload(context.Background(), wavArtifact()); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	want := []string{"user:hi", "assistant:hello back"}
	events := render.snapshot()
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, events[i], want[i])
		}
	}
}

func TestUploadRendersLanguageDiagnostic(t *testing.T) {
	var got receivedUpload
	srv := uploadServer(t, http.StatusOK,
		`{"transcription":"hola","lang_received":"es","transcribe_lang":"en","response":"hi"}`, &got)
	defer srv.Close()

	render := &fakeRenderer{}
	client := NewClient(srv.URL, "es", &fakeConversation{}, render)
	if err := client.Upload(context.Background(), wavArtifact()); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	events := render.snapshot()
	if len(events) != 3 {
		t.Fatalf("events = %v", events)
	}
	if events[0] != "user:hola" {
		t.Errorf("event 0 = %q", events[0])
	}
	if events[1] != `system:Transcribed as "en" (language received "es")` {
		t.Errorf("event 1 = %q", events[1])
	}
	if events[2] != "assistant:hi" {
		t.Errorf("event 2 = %q", events[2])
	}
}

func TestUploadRejectionRendersError(t *testing.T) {
	var got receivedUpload
	srv := uploadServer(t, http.StatusInternalServerError,
		`{"transcription":null,"error":"whisper not installed"}`, &got)
	defer srv.Close()

	render := &fakeRenderer{}
	client := NewClient(srv.URL, "en", &fakeConversation{}, render)
	if err := client.Upload(context.Background(), wavArtifact()); err == nil {
		t.Fatal("Upload succeeded on a rejected request")
	}

	events := render.snapshot()
	if len(events) != 1 || events[0] != "error:Error: whisper not installed" {
		t.Errorf("events = %v", events)
	}
}

func TestUploadTransportFailureRendersError(t *testing.T) {
	render := &fakeRenderer{}
	// nothing listens here
	client := NewClient("http://127.0.0.1:1", "en", &fakeConversation{}, render)
	if err := client.Upload(context.Background(), wavArtifact()); err == nil {
		t.Fatal("Upload succeeded against a dead endpoint")
	}
	events := render.snapshot()
	if len(events) != 1 {
		t.Fatalf("events = %v", events)
	}
}
