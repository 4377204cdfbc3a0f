package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, frame string) map[string]any {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var reply map[string]any
	if err := json.Unmarshal(data, &reply); err != nil {
		t.Fatalf("decoding reply %q: %v", data, err)
	}
	return reply
}

func TestWebSocketEcho(t *testing.T) {
	srv := httptest.NewServer(New(Config{}).Handler())
	defer srv.Close()
	conn := dialWS(t, srv)

	reply := roundTrip(t, conn, `{"action":"message","text":"hello","lang":"en","verbosity":"verbose"}`)
	if reply["response"] != "hello" {
		t.Errorf("reply = %v", reply)
	}
}

func TestWebSocketConciseEcho(t *testing.T) {
	srv := httptest.NewServer(New(Config{}).Handler())
	defer srv.Close()
	conn := dialWS(t, srv)

	reply := roundTrip(t, conn, `{"action":"message","text":"hello","verbosity":"concise"}`)
	if reply["response"] != "- hello" {
		t.Errorf("reply = %v", reply)
	}
}

func TestWebSocketOpenURL(t *testing.T) {
	srv := httptest.NewServer(New(Config{}).Handler())
	defer srv.Close()
	conn := dialWS(t, srv)

	reply := roundTrip(t, conn, `{"action":"message","text":"open https://example.com"}`)
	if reply["action"] != "open_url" || reply["url"] != "https://example.com" {
		t.Errorf("reply = %v", reply)
	}
	if reply["message"] == "" {
		t.Error("open_url reply carries no message")
	}
}

func TestWebSocketEmptyMessage(t *testing.T) {
	srv := httptest.NewServer(New(Config{}).Handler())
	defer srv.Close()
	conn := dialWS(t, srv)

	reply := roundTrip(t, conn, `{"action":"message","text":"  "}`)
	if reply["action"] != "error" || reply["message"] != "empty message" {
		t.Errorf("reply = %v", reply)
	}
}

func TestWebSocketUnsupportedAction(t *testing.T) {
	srv := httptest.NewServer(New(Config{}).Handler())
	defer srv.Close()
	conn := dialWS(t, srv)

	reply := roundTrip(t, conn, `{"action":"screenshot","text":"x"}`)
	if reply["action"] != "error" {
		t.Errorf("reply = %v", reply)
	}
}

func postAudio(t *testing.T, srv *httptest.Server, lang string) *http.Response {
	t.Helper()
	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	part, err := form.CreateFormFile("file", "recording.wav")
	if err != nil {
		t.Fatalf("building form: %v", err)
	}
	part.Write([]byte("RIFFxxxx"))
	form.WriteField("lang", lang)
	form.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/audio", body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("posting audio: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAudioWithoutWhisperConfigured(t *testing.T) {
	srv := httptest.NewServer(New(Config{}).Handler())
	defer srv.Close()

	resp := postAudio(t, srv, "en")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["transcription"] != nil {
		t.Errorf("transcription = %v, want null", body["transcription"])
	}
	if msg, _ := body["error"].(string); !strings.Contains(msg, "unavailable") {
		t.Errorf("error = %v", body["error"])
	}
}

func TestAudioRejectsMissingFile(t *testing.T) {
	srv := httptest.NewServer(New(Config{}).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/audio", "application/x-www-form-urlencoded",
		strings.NewReader("lang=en"))
	if err != nil {
		t.Fatalf("posting: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAudioRejectsGet(t *testing.T) {
	srv := httptest.NewServer(New(Config{}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/audio")
	if err != nil {
		t.Fatalf("GET /audio: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestExtractText(t *testing.T) {
	output := "[00:00.000 --> 00:02.000]  Hello there.\n\n[00:02.000 --> 00:03.000]  [BLANK_AUDIO]\n[00:03.000 --> 00:05.000]  How are you?\n"
	got := extractText(output)
	want := "Hello there. How are you?"
	if got != want {
		t.Errorf("extractText = %q, want %q", got, want)
	}
}
