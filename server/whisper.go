package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// transcribe runs the whisper executable against one audio file. A
// worker-count semaphore bounds concurrent invocations: transcription is
// heavy and uploads can pile up.
func (s *Server) transcribe(ctx context.Context, path, lang string) (string, error) {
	if s.config.WhisperPath == "" {
		return "", errors.New("transcription backend unavailable: no whisper executable configured")
	}

	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	cmd := exec.CommandContext(ctx, s.config.WhisperPath,
		"--model", s.config.WhisperModel,
		"--language", lang,
		path)

	slog.Debug("Executing whisper command", "command", cmd.String())

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("whisper execution failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("whisper execution failed: %w", err)
	}

	text := extractText(string(output))
	if text == "" {
		return "", errors.New("no transcribable content found")
	}
	return text, nil
}

// extractText flattens whisper's subtitle-style output into one line,
// dropping timestamp prefixes and blank-audio markers.
func extractText(output string) string {
	var parts []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, "[BLANK_AUDIO]") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			if end := strings.Index(line, "]"); end >= 0 {
				line = strings.TrimSpace(line[end+1:])
			}
		}
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}
