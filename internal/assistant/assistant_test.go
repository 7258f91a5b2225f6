package assistant

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"speechcmd/internal/commandlog"
	"speechcmd/internal/ipc"
	"speechcmd/internal/nlu"
	"speechcmd/internal/notify"
	"speechcmd/internal/platform"
	"speechcmd/internal/recognizer"
	"speechcmd/pkg/command"
)

type fixture struct {
	a     *Assistant
	sim   *platform.Simulated
	rec   *notify.Recorder
	store *commandlog.FileLog
	path  string
}

func newFixture(t *testing.T, delay time.Duration) *fixture {
	t.Helper()
	return newFixtureAt(t, filepath.Join(t.TempDir(), commandlog.DefaultFileName), delay)
}

func newFixtureAt(t *testing.T, path string, delay time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		sim:   platform.NewSimulated(),
		rec:   &notify.Recorder{},
		store: commandlog.NewFileLog(path),
		path:  path,
	}
	f.a = New(context.Background(), Options{
		Store:      f.store,
		Dispatcher: nlu.NewDispatcher(f.sim, f.rec, delay),
		Notifier:   f.rec,
	})
	return f
}

func writeLog(t *testing.T, path string, lines ...string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

type fakeListener struct {
	text string
	err  error
	n    int
}

func (l *fakeListener) ListenOnce(context.Context) (string, error) {
	l.n++
	return l.text, l.err
}

func TestHandleTranscriptKnown(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)
	ctx := context.Background()

	token, err := f.a.HandleTranscript(ctx, "Please turn the VOLUME UP")
	if err != nil || token != command.VolumeUp {
		t.Fatalf("got %q, %v", token, err)
	}

	tokens, err := f.store.ReadTokens(ctx)
	if err != nil || !slices.Equal(tokens, []command.Token{command.VolumeUp}) {
		t.Fatalf("log tokens %v, %v", tokens, err)
	}
	if got := f.a.History(); !slices.Equal(got, []command.Token{command.VolumeUp}) {
		t.Fatalf("history %v", got)
	}
	if got := f.rec.Last(); got != "Command registered: VOLUME_UP" {
		t.Fatalf("notification %q", got)
	}
	if len(f.sim.Calls()) != 0 {
		t.Fatalf("recognised commands must not be executed, got %v", f.sim.Calls())
	}
}

func TestHandleTranscriptUnknown(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)
	ctx := context.Background()

	token, err := f.a.HandleTranscript(ctx, "hello there")
	if err != nil || !token.IsUnknown() {
		t.Fatalf("got %q, %v", token, err)
	}
	if got := f.rec.Last(); got != `Unknown command: "hello there"` {
		t.Fatalf("notification %q", got)
	}
	if f.store.HasCommands(ctx) {
		t.Fatal("unknown text must not be logged")
	}
	if len(f.a.History()) != 0 {
		t.Fatal("unknown text must not reach the history")
	}
}

func TestHandleTranscriptSaveFailure(t *testing.T) {
	t.Parallel()
	// A directory in place of the log makes every append fail.
	f := newFixtureAt(t, t.TempDir(), 0)

	token, err := f.a.HandleTranscript(context.Background(), "torch on")
	if err == nil {
		t.Fatal("expected save error")
	}
	if token != command.FlashlightOn {
		t.Fatalf("token %q", token)
	}
	want := []string{"Error saving command", "Command registered: FLASHLIGHT_ON"}
	if got := f.rec.Messages(); !slices.Equal(got, want) {
		t.Fatalf("messages %v, want %v", got, want)
	}
	if got := f.a.History(); !slices.Equal(got, []command.Token{command.FlashlightOn}) {
		t.Fatalf("history %v", got)
	}
}

func TestNewSeedsHistory(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), commandlog.DefaultFileName)
	writeLog(t, path,
		"[2024-03-09 14:05:01] WIFI_ON",
		"garbage",
		"2024-03-09 14:05:02: GO_HOME",
	)
	f := newFixtureAt(t, path, 0)

	want := []command.Token{command.GoHome, command.WifiOn}
	if got := f.a.History(); !slices.Equal(got, want) {
		t.Fatalf("history %v, want %v", got, want)
	}
}

func TestReplay(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)
	writeLog(t, f.path,
		"[2024-03-09 14:05:01] VOLUME_UP",
		"[2024-03-09 14:05:02] FLASHLIGHT_ON",
		"[2024-03-09 14:05:03] GO_BACK",
	)

	report, err := f.a.Replay(context.Background())
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if report.Total != 3 || len(report.Outcomes) != 3 || report.Succeeded() != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Message != "Executed 3 commands" {
		t.Fatalf("message %q", report.Message)
	}
	want := []string{"volume:raise", "torch:on"}
	if got := f.sim.Calls(); !slices.Equal(got, want) {
		t.Fatalf("calls %v, want %v", got, want)
	}
}

func TestReplayMissingAndInvalid(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	if _, err := f.a.Replay(context.Background()); !errors.Is(err, ErrNoCommandsFile) {
		t.Fatalf("missing log: %v", err)
	}
	if got := f.rec.Last(); got != "No commands file found" {
		t.Fatalf("notification %q", got)
	}

	writeLog(t, f.path, "no separator here", "[2024-03-09 14:05:01] ")
	if _, err := f.a.Replay(context.Background()); !errors.Is(err, ErrNoValidCommand) {
		t.Fatalf("invalid log: %v", err)
	}
	if got := f.rec.Last(); got != "No valid commands found in the file" {
		t.Fatalf("notification %q", got)
	}
	if len(f.sim.Calls()) != 0 {
		t.Fatalf("nothing should run, got %v", f.sim.Calls())
	}
}

func TestReplaySingleRunAndStop(t *testing.T) {
	t.Parallel()
	f := newFixture(t, time.Minute)
	writeLog(t, f.path,
		"[2024-03-09 14:05:01] VOLUME_UP",
		"[2024-03-09 14:05:02] VOLUME_DOWN",
	)

	done := make(chan nlu.ReplayReport, 1)
	go func() {
		report, err := f.a.Replay(context.Background())
		if err != nil {
			t.Errorf("replay: %v", err)
		}
		done <- report
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(f.sim.Calls()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("replay never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := f.a.Replay(context.Background()); !errors.Is(err, ErrReplayRunning) {
		t.Fatalf("second replay: %v", err)
	}
	if !f.a.StopReplay() {
		t.Fatal("StopReplay should report a running replay")
	}

	select {
	case report := <-done:
		if !report.Interrupted || len(report.Outcomes) != 1 {
			t.Fatalf("unexpected report %+v", report)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("replay did not stop")
	}
	if f.a.StopReplay() {
		t.Fatal("no replay should be running")
	}
}

func TestClear(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)
	ctx := context.Background()

	f.a.HandleTranscript(ctx, "wifi off")
	if err := f.a.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if f.rec.Last() != "Commands cleared" {
		t.Fatalf("notification %q", f.rec.Last())
	}
	if len(f.a.History()) != 0 {
		t.Fatal("history must be cleared with the log")
	}
	lines, _ := f.a.Lines(ctx, 0)
	if len(lines) != 0 {
		t.Fatalf("log not cleared: %v", lines)
	}
}

func TestTranscribeFile(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)
	f.a.SetFiles(func(path string) recognizer.Engine {
		return recognizer.EngineFunc(func(context.Context) ([]string, error) {
			switch path {
			case "cmd.wav":
				return []string{"take a picture", "take picture"}, nil
			case "silence.wav":
				return nil, nil
			}
			return nil, &recognizer.Error{Code: recognizer.ErrorAudio, Err: os.ErrNotExist}
		})
	})
	ctx := context.Background()

	text, token, err := f.a.TranscribeFile(ctx, "cmd.wav")
	if err != nil || text != "take a picture" || !token.IsUnknown() {
		t.Fatalf("best alternative only: %q %q %v", text, token, err)
	}

	_, _, err = f.a.TranscribeFile(ctx, "silence.wav")
	if recognizer.CodeOf(err) != recognizer.ErrorNoMatch {
		t.Fatalf("silence: %v", err)
	}

	_, _, err = f.a.TranscribeFile(ctx, "missing.wav")
	if recognizer.CodeOf(err) != recognizer.ErrorAudio {
		t.Fatalf("missing: %v", err)
	}
	if f.rec.Last() != recognizer.ErrorAudio.String() {
		t.Fatalf("notification %q", f.rec.Last())
	}
}

func TestControl(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)
	ctx := context.Background()
	ctl := func(cmd string, args ...string) ipc.Reply {
		return f.a.Control(ctx, ipc.ControlMessage{Cmd: cmd, Args: args})
	}

	if r := ctl("say", "brightness", "up"); !r.OK || r.Message != "Command registered: BRIGHTNESS_UP" {
		t.Fatalf("say: %+v", r)
	}
	if r := ctl("say", "nonsense"); r.OK {
		t.Fatalf("say nonsense: %+v", r)
	}
	ctl("say", "lock phone")

	if r := ctl("history"); !slices.Equal(r.Lines, []string{"LOCK_SCREEN", "BRIGHTNESS_UP"}) {
		t.Fatalf("history: %+v", r)
	}
	if r := ctl("log", "1"); len(r.Lines) != 1 || !strings.HasSuffix(r.Lines[0], "] LOCK_SCREEN") {
		t.Fatalf("log 1: %+v", r)
	}
	if r := ctl("log", "x"); r.OK {
		t.Fatalf("log x: %+v", r)
	}
	if r := ctl("export"); !r.OK || len(r.Lines) != 2 {
		t.Fatalf("export: %+v", r)
	}

	r := ctl("stats")
	if !r.OK || r.Stats["entries"] != 2 || r.Stats["commands"] != 2 || r.Stats["exists"] != true || r.Stats["history"] != 2 {
		t.Fatalf("stats: %+v", r)
	}

	if r := ctl("execute", "volume_mute"); !r.OK || r.Message != "Volume muted" {
		t.Fatalf("execute: %+v", r)
	}
	if r := ctl("execute", "DANCE"); r.OK || r.Message != "Unknown command: DANCE" {
		t.Fatalf("execute unknown: %+v", r)
	}

	if r := ctl("replay"); !r.OK || r.Message != "Executed 2 commands" || len(r.Lines) != 2 {
		t.Fatalf("replay: %+v", r)
	}
	if r := ctl("stop"); r.OK {
		t.Fatalf("stop without replay: %+v", r)
	}

	if r := ctl("clear"); !r.OK {
		t.Fatalf("clear: %+v", r)
	}
	if r := ctl("export"); r.OK || r.Message != "No commands file found" {
		t.Fatalf("export after clear: %+v", r)
	}
	if r := ctl("bogus"); r.OK {
		t.Fatalf("bogus: %+v", r)
	}
}

func TestControlListen(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)
	ctx := context.Background()

	if r := f.a.Control(ctx, ipc.ControlMessage{Cmd: "listen"}); r.OK {
		t.Fatalf("listen without recognizer: %+v", r)
	}

	l := &fakeListener{text: "go home"}
	f.a.AttachListener(l)
	if r := f.a.Control(ctx, ipc.ControlMessage{Cmd: "listen"}); !r.OK || r.Message != "go home" || l.n != 1 {
		t.Fatalf("listen: %+v (calls %d)", r, l.n)
	}

	l.err = &recognizer.Error{Code: recognizer.ErrorSpeechTimeout}
	r := f.a.Control(ctx, ipc.ControlMessage{Cmd: "listen"})
	if r.OK || r.Message != recognizer.ErrorSpeechTimeout.String() {
		t.Fatalf("listen error: %+v", r)
	}
}

type brokenStore struct {
	*commandlog.FileLog
	err error
}

func (s brokenStore) Stats(context.Context) (commandlog.Stats, error) {
	return commandlog.Stats{}, s.err
}

func TestReplayReadError(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk on fire")
	rec := &notify.Recorder{}
	store := brokenStore{FileLog: commandlog.NewFileLog(filepath.Join(t.TempDir(), commandlog.DefaultFileName)), err: boom}
	a := New(context.Background(), Options{
		Store:      store,
		Dispatcher: nlu.NewDispatcher(platform.NewSimulated(), rec, 0),
		Notifier:   rec,
	})

	_, err := a.Replay(context.Background())
	if !errors.Is(err, boom) || errors.Is(err, ErrNoCommandsFile) {
		t.Fatalf("unexpected error %v", err)
	}
	if got := rec.Last(); got != "Error reading commands" {
		t.Fatalf("notification %q", got)
	}
}
