package bridge

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"
)

const speakTimeout = 30 * time.Second

// CommandSpeaker speaks text by invoking an external TTS executable such
// as espeak or flite. The router runs it detached, so a slow or missing
// binary never blocks a render.
type CommandSpeaker struct {
	path string
}

func NewCommandSpeaker(path string) *CommandSpeaker {
	return &CommandSpeaker{path: path}
}

func (s *CommandSpeaker) Speak(text, lang string) error {
	ctx, cancel := context.WithTimeout(context.Background(), speakTimeout)
	defer cancel()

	args := make([]string, 0, 3)
	if lang != "" && lang != "auto" {
		args = append(args, "-v", lang)
	}
	args = append(args, text)

	cmd := exec.CommandContext(ctx, s.path, args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("speech command failed: %w", err)
	}
	return nil
}

// BrowserNavigator opens URLs with the platform's default opener.
type BrowserNavigator struct {
	path string
}

func NewBrowserNavigator() *BrowserNavigator {
	if runtime.GOOS == "darwin" {
		return &BrowserNavigator{path: "open"}
	}
	return &BrowserNavigator{path: "xdg-open"}
}

func (n *BrowserNavigator) OpenURL(url string) error {
	cmd := exec.Command(n.path, url)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	go cmd.Wait()
	return nil
}
