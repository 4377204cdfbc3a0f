package recorder

import (
	"errors"
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/madebyv-in/civicbridge/audio"
)

const (
	sampleRate      = 44100
	channels        = 1
	framesPerBuffer = 1024
)

// ErrCaptureUnavailable means the host has no usable audio capture API at
// all, as opposed to a present API denying access to a device.
var ErrCaptureUnavailable = errors.New("audio capture unavailable on this host")

// Stream is one live capture stream. It must be released on every exit
// path so the microphone is never leaked.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Device grants exclusive access to a capture device. Open wires the
// stream to a chunk callback and reports the PCM format it will emit.
type Device interface {
	Open(onChunk func(chunk []int16)) (Stream, audio.Format, error)
}

// PortAudioDevice captures from a PortAudio input device. A zero DeviceID
// selects the host default.
type PortAudioDevice struct {
	DeviceID int
}

func (d *PortAudioDevice) Open(onChunk func(chunk []int16)) (Stream, audio.Format, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, audio.Format{}, fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}

	params, err := d.inputParams()
	if err != nil {
		portaudio.Terminate()
		return nil, audio.Format{}, err
	}

	stream, err := portaudio.OpenStream(params, func(in []int16) {
		// PortAudio reuses the callback buffer between invocations.
		chunk := make([]int16, len(in))
		copy(chunk, in)
		onChunk(chunk)
	})
	if err != nil {
		portaudio.Terminate()
		return nil, audio.Format{}, fmt.Errorf("failed to open capture stream: %w", err)
	}

	format := audio.Format{SampleRate: sampleRate, Channels: channels, BitsPerSample: 16}
	return &portAudioStream{stream: stream}, format, nil
}

func (d *PortAudioDevice) inputParams() (portaudio.StreamParameters, error) {
	var device *portaudio.DeviceInfo
	if d.DeviceID > 0 {
		devices, err := portaudio.Devices()
		if err != nil {
			return portaudio.StreamParameters{}, fmt.Errorf("failed to get audio devices: %w", err)
		}
		if d.DeviceID >= len(devices) {
			return portaudio.StreamParameters{}, fmt.Errorf("invalid device ID %d", d.DeviceID)
		}
		device = devices[d.DeviceID]
		if device.MaxInputChannels == 0 {
			return portaudio.StreamParameters{}, fmt.Errorf("device %d (%s) is not an input device", d.DeviceID, device.Name)
		}
	} else {
		var err error
		device, err = portaudio.DefaultInputDevice()
		if err != nil {
			return portaudio.StreamParameters{}, fmt.Errorf("failed to get default input device: %w", err)
		}
	}

	return portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      sampleRate,
		FramesPerBuffer: framesPerBuffer,
	}, nil
}

type portAudioStream struct {
	stream *portaudio.Stream
}

func (s *portAudioStream) Start() error { return s.stream.Start() }
func (s *portAudioStream) Stop() error  { return s.stream.Stop() }

func (s *portAudioStream) Close() error {
	err := s.stream.Close()
	portaudio.Terminate()
	return err
}

// ListDevices returns the host's audio input devices.
func ListDevices() ([]portaudio.DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}

	inputDevices := make([]portaudio.DeviceInfo, 0)
	for _, device := range devices {
		if device.MaxInputChannels > 0 {
			inputDevices = append(inputDevices, *device)
		}
	}
	return inputDevices, nil
}
