// Package recognizer runs the continuous listen, transcribe, restart loop.
package recognizer

import (
	"context"
	"errors"
	log "log/slog"
	"strings"
	"sync"
	"time"
)

const (
	DefaultResultRestart = 500 * time.Millisecond
	DefaultErrorRestart  = 1000 * time.Millisecond
)

var ErrDestroyed = errors.New("recognizer: service stopped")

// Engine performs one recognition and returns the alternatives, best first.
type Engine interface {
	Recognize(ctx context.Context) ([]string, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context) ([]string, error)

func (f EngineFunc) Recognize(ctx context.Context) ([]string, error) { return f(ctx) }

// Handler receives the best alternative of every successful cycle.
type Handler func(ctx context.Context, transcript string)

type Config struct {
	ResultRestart time.Duration
	ErrorRestart  time.Duration
	// OnReady fires when the engine starts listening, e.g. to play a cue.
	OnReady func()
	// OnError receives every failed cycle.
	OnError func(*Error)
}

// Service owns the listening and destroyed flags of one engine.
type Service struct {
	engine Engine
	handle Handler
	cfg    Config

	mu        sync.Mutex
	listening bool
	destroyed bool
	cancel    context.CancelFunc
	stopped   chan struct{}
}

func NewService(engine Engine, handle Handler, cfg Config) *Service {
	if cfg.ResultRestart <= 0 {
		cfg.ResultRestart = DefaultResultRestart
	}
	if cfg.ErrorRestart <= 0 {
		cfg.ErrorRestart = DefaultErrorRestart
	}
	return &Service{engine: engine, handle: handle, cfg: cfg, stopped: make(chan struct{})}
}

func (s *Service) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listening
}

func (s *Service) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// ListenOnce runs a single cycle. It refuses to start when the service is
// stopped or a cycle is already in flight.
func (s *Service) ListenOnce(ctx context.Context) (string, error) {
	s.mu.Lock()
	switch {
	case s.destroyed:
		s.mu.Unlock()
		log.Debug("Not starting listening, service is destroyed")
		return "", ErrDestroyed
	case s.listening:
		s.mu.Unlock()
		log.Debug("Not starting listening, already listening")
		return "", &Error{Code: ErrorRecognizerBusy}
	}
	cctx, cancel := context.WithCancel(ctx)
	s.listening = true
	s.cancel = cancel
	s.mu.Unlock()

	log.Debug("Ready for speech")
	if s.cfg.OnReady != nil {
		s.cfg.OnReady()
	}

	alts, err := s.engine.Recognize(cctx)
	cancel()

	s.mu.Lock()
	s.listening = false
	s.cancel = nil
	destroyed := s.destroyed
	s.mu.Unlock()

	if destroyed {
		return "", ErrDestroyed
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		rerr := Classify(err)
		log.Error("Speech error", "code", int(rerr.Code), "text", rerr.Code.String(), "err", err)
		if s.cfg.OnError != nil {
			s.cfg.OnError(rerr)
		}
		return "", rerr
	}

	transcript := best(alts)
	if transcript == "" {
		rerr := &Error{Code: ErrorNoMatch}
		log.Info("Speech error", "code", int(rerr.Code), "text", rerr.Code.String())
		if s.cfg.OnError != nil {
			s.cfg.OnError(rerr)
		}
		return "", rerr
	}

	log.Debug("Recognized", "text", transcript)
	if s.handle != nil {
		s.handle(ctx, transcript)
	}
	return transcript, nil
}

// Run listens until ctx is done, Stop is called or the engine reports
// insufficient permissions. Listening restarts after ResultRestart following a
// result and after ErrorRestart following an error.
func (s *Service) Run(ctx context.Context) error {
	log.Info("Recognition loop started")
	defer log.Info("Recognition loop stopped")

	for {
		_, err := s.ListenOnce(ctx)
		if errors.Is(err, ErrDestroyed) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := s.cfg.ResultRestart
		if err != nil {
			if CodeOf(err) == ErrorInsufficientPermissions {
				return err
			}
			delay = s.cfg.ErrorRestart
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-s.stopped:
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// Stop marks the service destroyed and cancels an in-flight recognition.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.destroyed {
		s.destroyed = true
		close(s.stopped)
	}
	if s.cancel != nil {
		s.cancel()
	}
}

func best(alts []string) string {
	if len(alts) == 0 {
		return ""
	}
	return strings.TrimSpace(alts[0])
}
