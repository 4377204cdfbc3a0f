package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/madebyv-in/civicbridge/bridge"
	"github.com/madebyv-in/civicbridge/ingest"
	"github.com/madebyv-in/civicbridge/recorder"
	"github.com/madebyv-in/civicbridge/server"
	"github.com/madebyv-in/civicbridge/transcribe"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8000", "Backend origin (http or https)")
	lang := flag.String("lang", "en", "Language tag sent with messages and uploads")
	verbosity := flag.String("verbosity", bridge.VerbosityVerbose, "Response verbosity hint (verbose or concise)")
	deviceID := flag.Int("device", 0, "Audio input device ID to use")
	listDevices := flag.Bool("list-devices", false, "List available audio input devices")
	speakCmd := flag.String("speak", "", "Text-to-speech executable for assistant replies (empty disables)")
	ingestDir := flag.String("ingest", "", "Directory to watch for WAV files to transcribe")
	verbose := flag.Bool("verbose", false, "Enable debug logging")

	serveMode := flag.Bool("serve", false, "Run the development backend instead of the client")
	serveAddr := flag.String("addr", ":8000", "Listen address for the development backend")
	whisperPath := flag.String("whisper", "", "Path to whisper executable (development backend)")
	whisperModel := flag.String("model", "", "Path to whisper model file (development backend)")
	workers := flag.Int("workers", 2, "Concurrent transcriptions allowed by the development backend")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *listDevices {
		devices, err := recorder.ListDevices()
		if err != nil {
			slog.Error("Failed to list audio devices", "error", err)
			os.Exit(1)
		}
		fmt.Println("Available audio input devices:")
		for i, device := range devices {
			fmt.Printf("[%d] %s\n", i, device.Name)
			fmt.Printf("    Max Input Channels: %d\n", device.MaxInputChannels)
			fmt.Printf("    Default Sample Rate: %f\n", device.DefaultSampleRate)
			fmt.Println()
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Debug("Received shutdown signal")
		cancel()
	}()

	if *serveMode {
		srv := server.New(server.Config{
			Addr:         *serveAddr,
			WhisperPath:  *whisperPath,
			WhisperModel: *whisperModel,
			Workers:      *workers,
		})
		if err := srv.Start(ctx); err != nil {
			slog.Error("Development backend failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := runClient(ctx, clientOptions{
		origin:    *serverURL,
		lang:      *lang,
		verbosity: *verbosity,
		deviceID:  *deviceID,
		speakCmd:  *speakCmd,
		ingestDir: *ingestDir,
	}); err != nil {
		slog.Error("Client failed", "error", err)
		os.Exit(1)
	}

	slog.Debug("Program exiting")
}

type clientOptions struct {
	origin    string
	lang      string
	verbosity string
	deviceID  int
	speakCmd  string
	ingestDir string
}

func runClient(ctx context.Context, opts clientOptions) error {
	display := bridge.NewConsoleDisplay(os.Stdout)
	history := bridge.NewHistory(0)

	var speaker bridge.Speaker
	if opts.speakCmd != "" {
		speaker = bridge.NewCommandSpeaker(opts.speakCmd)
	}

	router := bridge.NewRouter(display, bridge.NewBrowserNavigator(), speaker, history, opts.lang)

	session, err := bridge.NewSession(bridge.SessionConfig{
		Origin:    opts.origin,
		Lang:      opts.lang,
		Verbosity: opts.verbosity,
	}, bridge.SessionHandlers{
		OnOpen: func() {
			display.Clear()
			history.Clear()
			display.System("Connected to assistant.")
		},
		OnMessage: router.Dispatch,
		OnError: func(err error) {
			display.System("Connection error: " + err.Error())
		},
		OnClose: func(err error) {
			display.System("Disconnected. Reconnecting shortly...")
		},
	})
	if err != nil {
		return err
	}

	uploader := transcribe.NewClient(opts.origin, opts.lang, history, router)
	rec := recorder.New(&recorder.PortAudioDevice{DeviceID: opts.deviceID}, uploader, display)

	session.Connect(ctx)

	if opts.ingestDir != "" {
		watcher, err := ingest.New(opts.ingestDir, uploader, display)
		if err != nil {
			return err
		}
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Ingest watcher stopped", "error", err)
			}
		}()
	}

	display.System("Type a message, /record to start recording, /stop to finish, /quit to exit.")
	return inputLoop(ctx, session, rec, display)
}

// inputLoop reads stdin lines and turns them into session sends or
// recording commands until the context ends or stdin closes.
func inputLoop(ctx context.Context, session *bridge.Session, rec *recorder.Recorder, display *bridge.ConsoleDisplay) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "/quit" {
				return nil
			}
			handleLine(ctx, line, session, rec, display)
		}
	}
}

func handleLine(ctx context.Context, line string, session *bridge.Session, rec *recorder.Recorder, display *bridge.ConsoleDisplay) {
	switch line {
	case "":
		return
	case "/record":
		if err := rec.Start(ctx); errors.Is(err, recorder.ErrBusy) {
			display.System("Already recording.")
		}
	case "/stop":
		if err := rec.Stop(ctx); errors.Is(err, recorder.ErrNotRecording) {
			display.System("Not recording.")
		}
	default:
		session.Send(line)
	}
}
