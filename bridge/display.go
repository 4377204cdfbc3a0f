package bridge

import (
	"fmt"
	"io"
	"sync"
)

// Display is the UI sink consumed by the router. Implementations decide
// how turns are presented; the core only produces (role, text) pairs.
type Display interface {
	Assistant(text string)
	User(text string)
	System(text string)
	Error(text string)
	Clear()
}

// Navigator opens a URL in a new browsing context.
type Navigator interface {
	OpenURL(url string) error
}

// Speaker performs best-effort text-to-speech keyed by a language tag.
// Failures are ignored by contract.
type Speaker interface {
	Speak(text, lang string) error
}

// ConsoleDisplay renders conversation turns to a terminal.
type ConsoleDisplay struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleDisplay(w io.Writer) *ConsoleDisplay {
	return &ConsoleDisplay{w: w}
}

func (d *ConsoleDisplay) Assistant(text string) { d.print("assistant> " + text) }
func (d *ConsoleDisplay) User(text string)      { d.print("you> " + text) }
func (d *ConsoleDisplay) System(text string)    { d.print("* " + text) }
func (d *ConsoleDisplay) Error(text string)     { d.print("! " + text) }

// Clear wipes the terminal before a fresh conversation.
func (d *ConsoleDisplay) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprint(d.w, "\033[2J\033[H")
}

func (d *ConsoleDisplay) print(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.w, line)
}
