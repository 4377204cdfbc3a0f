package server

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const maxUploadBytes = 32 << 20

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"transcription": nil,
			"error":         "missing audio file: " + err.Error(),
		})
		return
	}
	defer file.Close()

	lang := r.FormValue("lang")
	prevAssistant := r.FormValue("prev_assistant")

	suffix := filepath.Ext(header.Filename)
	if suffix == "" {
		suffix = ".wav"
	}

	tmp, err := os.CreateTemp("", "upload-*"+suffix)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"transcription": nil,
			"error":         "failed to store upload: " + err.Error(),
		})
		return
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"transcription": nil,
			"error":         "failed to store upload: " + err.Error(),
		})
		return
	}
	tmp.Close()

	// Chinese only when the client explicitly selected it; everything
	// else transcribes as English.
	transcribeLang := "en"
	if strings.HasPrefix(strings.ToLower(lang), "zh") {
		transcribeLang = "zh"
	}

	slog.Info("Received audio upload",
		"file", header.Filename,
		"lang", lang,
		"transcribeLang", transcribeLang,
		"hasPrevAssistant", prevAssistant != "")

	text, err := s.transcribe(r.Context(), tmpPath, transcribeLang)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"transcription": nil,
			"error":         err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transcription":   text,
		"response":        map[string]any{"response": text},
		"lang_received":   lang,
		"transcribe_lang": transcribeLang,
	})
}
