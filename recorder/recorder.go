package recorder

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/madebyv-in/civicbridge/audio"
)

// State of the recording session machine.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateRecording
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

var (
	// ErrBusy rejects a start while a session is already underway.
	ErrBusy = errors.New("recording already in progress")

	// ErrNotRecording rejects a stop with no active recording.
	ErrNotRecording = errors.New("no recording in progress")
)

// Uploader consumes the finalized artifact of one recording session.
// Implementations render their own success and failure output.
type Uploader interface {
	Upload(ctx context.Context, artifact audio.Artifact) error
}

// Notifier receives user-visible notices from the state machine.
type Notifier interface {
	System(text string)
	Error(text string)
}

// Recorder drives one capture session at a time through
// idle -> acquiring -> recording -> processing -> idle. Every exit path,
// including failures, releases the capture stream.
type Recorder struct {
	device   Device
	uploader Uploader
	notify   Notifier

	mu        sync.Mutex
	state     State
	stream    Stream
	encoder   *audio.Encoder
	sessionID uuid.UUID
}

func New(device Device, uploader Uploader, notify Notifier) *Recorder {
	return &Recorder{device: device, uploader: uploader, notify: notify}
}

// State returns the machine's current state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start acquires the capture device and begins buffering chunks. It is
// accepted only from idle; any acquisition failure returns to idle with a
// notice and no resources held.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		return ErrBusy
	}
	r.state = StateAcquiring
	r.sessionID = uuid.New()
	id := r.sessionID
	r.mu.Unlock()

	slog.Debug("Acquiring capture device", "sessionID", id)

	stream, format, err := r.device.Open(r.appendChunk)
	if err != nil {
		r.reset()
		if errors.Is(err, ErrCaptureUnavailable) {
			r.notify.System("Audio capture is not available on this system.")
		} else {
			r.notify.System("Could not access the microphone: " + err.Error())
		}
		return err
	}

	encoder, err := audio.NewEncoder(format)
	if err != nil {
		if closeErr := stream.Close(); closeErr != nil {
			slog.Error("Failed to release capture stream", "error", closeErr)
		}
		r.reset()
		r.notify.System("Unsupported recording format: " + err.Error())
		return err
	}

	r.mu.Lock()
	r.stream = stream
	r.encoder = encoder
	r.state = StateRecording
	r.mu.Unlock()

	if err := stream.Start(); err != nil {
		if closeErr := stream.Close(); closeErr != nil {
			slog.Error("Failed to release capture stream", "error", closeErr)
		}
		r.reset()
		r.notify.System("Could not start recording: " + err.Error())
		return err
	}

	slog.Info("Recording started", "sessionID", id)
	r.notify.System("Recording...")
	return nil
}

// Stop finalizes the session: the stream is stopped and released, the
// buffered chunks become one artifact, and the artifact is handed to the
// uploader. The machine returns to idle once the upload settles, success
// or not. A second stop is rejected, not re-entered.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return ErrNotRecording
	}
	r.state = StateProcessing
	stream := r.stream
	encoder := r.encoder
	id := r.sessionID
	r.stream = nil
	r.mu.Unlock()

	// Release the device before the upload outcome is known.
	if err := stream.Stop(); err != nil {
		slog.Error("Failed to stop capture stream", "sessionID", id, "error", err)
	}
	if err := stream.Close(); err != nil {
		slog.Error("Failed to release capture stream", "sessionID", id, "error", err)
	}

	defer r.reset()

	artifact, err := encoder.Artifact()
	if err != nil {
		r.notify.Error("Could not finalize recording: " + err.Error())
		return err
	}

	slog.Info("Recording finished",
		"sessionID", id,
		"samples", encoder.Len(),
		"bytes", len(artifact.Data))
	r.notify.System("Processing recording...")

	if err := r.uploader.Upload(ctx, artifact); err != nil {
		// The uploader already rendered the failure; no automatic retry.
		slog.Error("Upload failed", "sessionID", id, "error", err)
		return err
	}
	return nil
}

// appendChunk buffers one encoded chunk in arrival order. Chunks arriving
// outside the recording state are dropped.
func (r *Recorder) appendChunk(chunk []int16) {
	if len(chunk) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording || r.encoder == nil {
		return
	}
	r.encoder.Append(chunk)
}

func (r *Recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateIdle
	r.stream = nil
	r.encoder = nil
}
