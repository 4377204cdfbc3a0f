package audio

import (
	"bytes"
	"fmt"

	wav "github.com/youpy/go-wav"
)

// MIMEWAV tags artifacts produced by the Encoder.
const MIMEWAV = "audio/wav"

// Format describes the PCM layout of captured samples.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// Artifact is the single encoded result of one recording session. It is
// produced once, uploaded once, then discarded.
type Artifact struct {
	Data []byte
	MIME string
}

// Ext returns the file extension matching the artifact's MIME type.
func (a Artifact) Ext() string {
	switch a.MIME {
	case MIMEWAV:
		return ".wav"
	default:
		return ".bin"
	}
}

// Encoder accumulates PCM chunks in arrival order and finalizes them into
// one WAV artifact.
type Encoder struct {
	format  Format
	samples []int16
}

// NewEncoder validates the capture format and returns an encoder bound to
// it. Only 16-bit mono or stereo PCM is supported.
func NewEncoder(f Format) (*Encoder, error) {
	if f.BitsPerSample != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d", f.BitsPerSample)
	}
	if f.Channels < 1 || f.Channels > 2 {
		return nil, fmt.Errorf("unsupported channel count: %d", f.Channels)
	}
	if f.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", f.SampleRate)
	}
	return &Encoder{format: f}, nil
}

// Append adds one chunk of samples. Empty chunks are ignored.
func (e *Encoder) Append(chunk []int16) {
	if len(chunk) == 0 {
		return
	}
	e.samples = append(e.samples, chunk...)
}

// Len reports the number of buffered samples.
func (e *Encoder) Len() int {
	return len(e.samples)
}

// Artifact concatenates all buffered chunks into a single WAV artifact.
func (e *Encoder) Artifact() (Artifact, error) {
	numFrames := len(e.samples) / e.format.Channels
	frames := make([]wav.Sample, numFrames)
	for i := 0; i < numFrames; i++ {
		for c := 0; c < e.format.Channels; c++ {
			frames[i].Values[c] = int(e.samples[i*e.format.Channels+c])
		}
	}

	var buf bytes.Buffer
	w := wav.NewWriter(&buf,
		uint32(numFrames),
		uint16(e.format.Channels),
		uint32(e.format.SampleRate),
		uint16(e.format.BitsPerSample))
	if err := w.WriteSamples(frames); err != nil {
		return Artifact{}, fmt.Errorf("failed to encode WAV data: %w", err)
	}

	return Artifact{Data: buf.Bytes(), MIME: MIMEWAV}, nil
}
