package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	cli "github.com/spf13/pflag"

	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"speechcmd/internal/assistant"
	"speechcmd/internal/audio"
	"speechcmd/internal/commandlog"
	"speechcmd/internal/config"
	"speechcmd/internal/ipc"
	"speechcmd/internal/logging"
	"speechcmd/internal/nlu"
	"speechcmd/internal/notify"
	"speechcmd/internal/pactl"
	"speechcmd/internal/platform"
	"speechcmd/internal/proxy"
	"speechcmd/internal/recognizer"
	"speechcmd/internal/tts"
	"speechcmd/pkg/audioconv"
	"speechcmd/pkg/protocol"
	"speechcmd/pkg/stt"
)

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks Proxy Address for cloud speech recognition")
	socket := cli.StringP("socket", "s", "", "Control socket path")
	dryRun := cli.Bool("dry-run", false, "Record actions instead of touching the device")
	cli.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	if *proxyAddr != "" {
		cfg.STT.Proxy = *proxyAddr
	}
	if *socket != "" {
		cfg.Socket = *socket
	}
	if *dryRun {
		cfg.Platform.Kind = "simulated"
	}

	logger, logCloser := logging.New(logging.Options{Level: *logLevel, File: cfg.DiagLog})
	defer logCloser.Close()
	log.SetDefault(logger)

	log.Info("Booting up")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := commandlog.Open(cfg.Log.Backend, cfg.Log.Path)
	if err != nil {
		log.Error("Failed to open command log", "backend", cfg.Log.Backend, "path", cfg.Log.Path, "err", err)
		os.Exit(1)
	}
	defer store.Close()

	log.Debug("Loaded command log", "backend", cfg.Log.Backend, "location", store.Location())

	dev, closeDev, err := newPlatform(ctx, cfg.Platform)
	if err != nil {
		log.Error("Failed to set up platform", "kind", cfg.Platform.Kind, "err", err)
		os.Exit(1)
	}
	defer closeDev()

	log.Debug("Loaded platform", "kind", cfg.Platform.Kind)

	notifier := notify.Multi{notify.Log{}, notify.Desktop{}}
	if cfg.Notify.Speak {
		notifier = append(notifier, tts.Speaker{Voice: cfg.Notify.Voice})
	}

	matcher := nlu.NewMatcher()
	asst := assistant.New(ctx, assistant.Options{
		Matcher:    matcher,
		Store:      store,
		History:    commandlog.NewHistory(cfg.Log.HistorySize),
		Dispatcher: nlu.NewDispatcher(dev, notifier, cfg.Replay.Delay),
		Notifier:   notifier,
	})

	transcriber, closeSTT, err := newTranscriber(cfg.STT, cfg.Recognition.Language, matcher.Vocabulary())
	if err != nil {
		log.Warn("Speech recognition unavailable", "engine", cfg.STT.Engine, "err", err)
	} else {
		defer closeSTT()
		log.Debug("Loaded transcriber", "engine", cfg.STT.Engine)
	}

	var svc *recognizer.Service
	if transcriber != nil {
		asst.SetFiles(func(path string) recognizer.Engine {
			return &recognizer.File{Path: path, STT: transcriber, MaxSamples: 30 * audioconv.SampleRate}
		})

		rec := audio.NewRecorder(audio.DefaultRecorderConfig())
		if err := rec.Init(); err != nil {
			log.Error("Failed to init audio", "err", err)
			os.Exit(1)
		}
		defer rec.Close()

		mic := &recognizer.Microphone{Capture: rec, STT: transcriber}
		if cfg.Recognition.Duck {
			mic.Ducker = pactl.NewMixer(pactl.ExecRunner, 0, "speechcmd-daemon")
		}

		cue := notify.NewCue(cfg.Recognition.CueFile)
		svc = recognizer.NewService(mic, func(ctx context.Context, text string) {
			asst.HandleTranscript(ctx, text)
		}, recognizer.Config{
			ResultRestart: cfg.Recognition.ResultRestart,
			ErrorRestart:  cfg.Recognition.ErrorRestart,
			OnReady: func() {
				if err := cue.Play(); err != nil {
					log.Warn("Failed to play cue", "err", err)
				}
			},
			OnError: func(e *recognizer.Error) {
				notifier.Notify(e.Code.String())
			},
		})
		asst.AttachListener(svc)
		defer svc.Stop()
	}

	srv, err := ipc.Listen(ctx, cfg.Socket, asst.Control)
	if err != nil {
		log.Error("Failed ipc server", "err", err)
		os.Exit(1)
	}
	defer srv.Close()

	log.Info("Boot up - successful", "socket", srv.Path())

	if svc != nil && cfg.Recognition.Continuous {
		go func() {
			if err := svc.Run(ctx); err != nil {
				log.Error("Recognition stopped", "err", err)
			}
		}()
	}

	<-ctx.Done()
	log.Info("Shutting down")
}

func newPlatform(ctx context.Context, cfg config.PlatformConfig) (platform.Platform, func(), error) {
	switch cfg.Kind {
	case "simulated":
		return platform.NewSimulated(), func() {}, nil

	case "hub":
		client, err := protocol.Dial(ctx, protocol.Config{
			URL:     cfg.HubURL,
			Shard:   cfg.HubShard,
			Timeout: cfg.HubTimeout,
			Unsolicited: func(m *protocol.Message) {
				log.Debug("Unsolicited hub message", "msg", m.String())
			},
		})
		if err != nil {
			return nil, nil, err
		}
		go func() {
			if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Hub connection lost", "err", err)
			}
		}()
		return platform.NewHub(client, cfg.HubDevice, cfg.HubTimeout), func() { client.Close() }, nil

	default:
		dc := platform.DefaultDesktopConfig()
		dc.CameraCommand = cfg.CameraCommand
		dc.SettingsCommand = cfg.SettingsCmd
		dc.HomeCommand = cfg.HomeCommand
		dc.TorchDevice = cfg.TorchDevice
		return platform.NewDesktop(dc, nil), func() {}, nil
	}
}

func newTranscriber(cfg config.STTConfig, language, vocabulary string) (recognizer.Transcriber, func(), error) {
	opt := stt.Options{
		Language:      language,
		InitialPrompt: vocabulary,
	}

	switch cfg.Engine {
	case "openai":
		httpClient, err := proxy.NewSocksClient(cfg.Proxy, 0)
		if err != nil {
			return nil, nil, err
		}
		client := openai.NewClient(
			option.WithAPIKey(cfg.OpenAIKey),
			option.WithHTTPClient(httpClient),
		)
		return stt.NewOpenAI(client, cfg.OpenAIModel, opt), func() {}, nil

	default:
		if _, err := os.Stat(cfg.WhisperModel); err != nil {
			return nil, nil, err
		}
		w, err := stt.NewWhisper(filepath.Clean(cfg.WhisperModel), opt)
		if err != nil {
			return nil, nil, err
		}
		return w, func() { w.Close() }, nil
	}
}
