// Package assistant ties recognition, the command log and the dispatcher
// together and answers control requests.
package assistant

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"

	"github.com/google/uuid"

	"speechcmd/internal/commandlog"
	"speechcmd/internal/nlu"
	"speechcmd/internal/recognizer"
	"speechcmd/pkg/command"
)

var (
	ErrNoListener     = errors.New("assistant: no recognizer attached")
	ErrReplayRunning  = errors.New("assistant: replay already running")
	ErrNoCommandsFile = errors.New("assistant: no commands file found")
	ErrNoValidCommand = errors.New("assistant: no valid commands found")
)

// Listener runs one recognition cycle; the recognised text reaches
// HandleTranscript through the recognizer's handler.
type Listener interface {
	ListenOnce(ctx context.Context) (string, error)
}

type Options struct {
	Matcher    *nlu.Matcher
	Store      commandlog.Store
	History    *commandlog.History
	Dispatcher *nlu.Dispatcher
	Notifier   nlu.Notifier
	// Files builds an engine that transcribes the audio file at path.
	Files func(path string) recognizer.Engine
}

type Assistant struct {
	matcher    *nlu.Matcher
	store      commandlog.Store
	history    *commandlog.History
	dispatcher *nlu.Dispatcher
	notifier   nlu.Notifier
	files      func(path string) recognizer.Engine

	mu       sync.Mutex
	listener Listener
	replay   context.CancelFunc
}

// New builds the assistant and seeds the history from the tail of the log.
func New(ctx context.Context, opt Options) *Assistant {
	if opt.Matcher == nil {
		opt.Matcher = nlu.NewMatcher()
	}
	if opt.History == nil {
		opt.History = commandlog.NewHistory(commandlog.DefaultHistorySize)
	}

	a := &Assistant{
		matcher:    opt.Matcher,
		store:      opt.Store,
		history:    opt.History,
		dispatcher: opt.Dispatcher,
		notifier:   opt.Notifier,
		files:      opt.Files,
	}

	tokens, err := a.store.ReadTokens(ctx)
	if err != nil {
		log.Error("Failed to load command history", "err", err)
	} else {
		a.history.Seed(tokens)
		log.Debug("Command history loaded", "items", a.history.Len())
	}
	return a
}

// AttachListener sets the recognizer used by the listen control command.
func (a *Assistant) AttachListener(l Listener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listener = l
}

// SetFiles sets the engine factory used by TranscribeFile.
func (a *Assistant) SetFiles(files func(path string) recognizer.Engine) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.files = files
}

// HandleTranscript matches text and records the command it names. Unknown
// text is reported and never logged.
func (a *Assistant) HandleTranscript(ctx context.Context, text string) (command.Token, error) {
	res := a.matcher.Analyze(text)
	if !res.Known() {
		a.notify(fmt.Sprintf("Unknown command: %q", text))
		return command.Unknown, nil
	}

	var saveErr error
	if err := a.store.Append(ctx, res.Token); err != nil {
		log.Error("Error saving command", "token", res.Token, "err", err)
		a.notify("Error saving command")
		saveErr = err
	}

	a.history.Push(res.Token)
	a.notify("Command registered: " + res.Token.String())
	log.Info("Command registered", "token", res.Token, "text", text)
	return res.Token, saveErr
}

// Listen runs one recognition cycle through the attached listener.
func (a *Assistant) Listen(ctx context.Context) (string, error) {
	a.mu.Lock()
	l := a.listener
	a.mu.Unlock()
	if l == nil {
		return "", ErrNoListener
	}
	return l.ListenOnce(ctx)
}

// TranscribeFile recognises the audio file at path and handles the result.
func (a *Assistant) TranscribeFile(ctx context.Context, path string) (string, command.Token, error) {
	a.mu.Lock()
	files := a.files
	a.mu.Unlock()
	if files == nil {
		return "", command.Unknown, ErrNoListener
	}
	alts, err := files(path).Recognize(ctx)
	if err != nil {
		rerr := recognizer.Classify(err)
		a.notify(rerr.Code.String())
		return "", command.Unknown, rerr
	}
	if len(alts) == 0 {
		rerr := &recognizer.Error{Code: recognizer.ErrorNoMatch}
		a.notify(rerr.Code.String())
		return "", command.Unknown, rerr
	}
	token, err := a.HandleTranscript(ctx, alts[0])
	return alts[0], token, err
}

// Replay executes every logged command in order. Only one replay runs at a
// time; StopReplay or cancelling ctx interrupts it.
func (a *Assistant) Replay(ctx context.Context) (nlu.ReplayReport, error) {
	a.mu.Lock()
	if a.replay != nil {
		a.mu.Unlock()
		return nlu.ReplayReport{}, ErrReplayRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	a.replay = cancel
	a.mu.Unlock()

	defer func() {
		cancel()
		a.mu.Lock()
		a.replay = nil
		a.mu.Unlock()
	}()

	run := uuid.NewString()
	logger := log.With("run", run)

	st, err := a.store.Stats(ctx)
	if err != nil {
		logger.Error("Failed to read commands", "err", err)
		a.notify("Error reading commands")
		return nlu.ReplayReport{}, err
	}
	if !st.Exists {
		a.notify("No commands file found")
		return nlu.ReplayReport{}, ErrNoCommandsFile
	}
	tokens, err := a.store.ReadTokens(ctx)
	if err != nil {
		logger.Error("Failed to read commands", "err", err)
		a.notify("Error reading commands")
		return nlu.ReplayReport{}, err
	}
	if len(tokens) == 0 {
		a.notify("No valid commands found in the file")
		return nlu.ReplayReport{}, ErrNoValidCommand
	}

	logger.Info("Replay started", "commands", len(tokens))
	report := a.dispatcher.Replay(ctx, tokens)
	logger.Info("Replay finished", "executed", len(report.Outcomes), "succeeded", report.Succeeded(), "interrupted", report.Interrupted)
	return report, nil
}

// StopReplay interrupts a running replay and reports whether one was running.
func (a *Assistant) StopReplay() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.replay == nil {
		return false
	}
	a.replay()
	return true
}

// Execute dispatches a single token without logging it.
func (a *Assistant) Execute(ctx context.Context, token command.Token) nlu.Outcome {
	return a.dispatcher.Execute(ctx, token)
}

// Clear deletes the log and the in-memory history.
func (a *Assistant) Clear(ctx context.Context) error {
	if err := a.store.Clear(ctx); err != nil {
		a.notify("Error clearing commands")
		return err
	}
	a.history.Reset()
	a.notify("Commands cleared")
	return nil
}

// History returns the recent tokens, most recent first.
func (a *Assistant) History() []command.Token {
	return a.history.Tokens()
}

func (a *Assistant) Stats(ctx context.Context) (commandlog.Stats, error) {
	return a.store.Stats(ctx)
}

// Lines returns the last n raw log lines, or all of them when n <= 0.
func (a *Assistant) Lines(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return a.store.ReadAll(ctx)
	}
	return a.store.Recent(ctx, n)
}

func (a *Assistant) Export(ctx context.Context) (string, error) {
	return a.store.Export(ctx)
}

func (a *Assistant) notify(message string) {
	if a.notifier != nil {
		a.notifier.Notify(message)
	}
}
