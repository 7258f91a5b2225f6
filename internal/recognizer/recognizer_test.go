package recognizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	openai "github.com/openai/openai-go/v3"

	"speechcmd/internal/audio"
	"speechcmd/pkg/audioconv"
	"speechcmd/pkg/stt"
)

// scriptedEngine returns its steps in order, then blocks until cancelled.
type scriptedEngine struct {
	mu    sync.Mutex
	steps []step
	calls int
}

type step struct {
	alts []string
	err  error
}

func (e *scriptedEngine) Recognize(ctx context.Context) ([]string, error) {
	e.mu.Lock()
	if e.calls < len(e.steps) {
		s := e.steps[e.calls]
		e.calls++
		e.mu.Unlock()
		return s.alts, s.err
	}
	e.calls++
	e.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (e *scriptedEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type collector struct {
	mu          sync.Mutex
	transcripts []string
	codes       []ErrorCode
}

func (c *collector) handle(_ context.Context, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transcripts = append(c.transcripts, text)
}

func (c *collector) onError(e *Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes = append(c.codes, e.Code)
}

func fastConfig(c *collector) Config {
	return Config{
		ResultRestart: time.Millisecond,
		ErrorRestart:  time.Millisecond,
		OnError:       c.onError,
	}
}

func TestListenOnceHandsBestAlternative(t *testing.T) {
	t.Parallel()

	c := &collector{}
	engine := &scriptedEngine{steps: []step{{alts: []string{"  turn on wifi ", "turn on why fi"}}}}
	s := NewService(engine, c.handle, fastConfig(c))

	got, err := s.ListenOnce(context.Background())
	if err != nil || got != "turn on wifi" {
		t.Fatalf("got %q %v", got, err)
	}
	if len(c.transcripts) != 1 || c.transcripts[0] != "turn on wifi" {
		t.Fatalf("unexpected transcripts %v", c.transcripts)
	}
	if s.Listening() {
		t.Fatal("listening must be cleared after a cycle")
	}
}

func TestListenOnceEmptyResultIsNoMatch(t *testing.T) {
	t.Parallel()

	c := &collector{}
	s := NewService(&scriptedEngine{steps: []step{{alts: nil}}}, c.handle, fastConfig(c))

	_, err := s.ListenOnce(context.Background())
	if CodeOf(err) != ErrorNoMatch {
		t.Fatalf("expected NoMatch, got %v", err)
	}
	if len(c.codes) != 1 || len(c.transcripts) != 0 {
		t.Fatalf("unexpected callbacks: %v %v", c.codes, c.transcripts)
	}
}

func TestListenOnceRefusesWhileListening(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	engine := EngineFunc(func(ctx context.Context) ([]string, error) {
		close(started)
		<-release
		return []string{"go home"}, nil
	})
	s := NewService(engine, nil, Config{})

	done := make(chan error, 1)
	go func() {
		_, err := s.ListenOnce(context.Background())
		done <- err
	}()
	<-started

	if !s.Listening() {
		t.Fatal("expected listening flag during a cycle")
	}
	if _, err := s.ListenOnce(context.Background()); CodeOf(err) != ErrorRecognizerBusy {
		t.Fatalf("expected busy, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first cycle: %v", err)
	}
}

func TestRunRestartsAfterResultsAndErrors(t *testing.T) {
	t.Parallel()

	c := &collector{}
	engine := &scriptedEngine{steps: []step{
		{alts: []string{"volume up"}},
		{err: audio.ErrNoSpeech},
		{err: errors.New("mic unplugged")},
		{alts: []string{"mute"}},
	}}
	s := NewService(engine, c.handle, fastConfig(c))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for engine.Calls() <= len(engine.steps) {
		select {
		case <-deadline:
			t.Fatalf("loop did not progress, calls=%d", engine.Calls())
		case <-time.After(5 * time.Millisecond):
		}
	}
	s.Stop()
	if err := <-done; err != nil {
		t.Fatalf("stopped loop must return nil, got %v", err)
	}
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.transcripts) != 2 || c.transcripts[0] != "volume up" || c.transcripts[1] != "mute" {
		t.Fatalf("unexpected transcripts %v", c.transcripts)
	}
	if len(c.codes) != 2 || c.codes[0] != ErrorSpeechTimeout || c.codes[1] != ErrorClient {
		t.Fatalf("unexpected error codes %v", c.codes)
	}
	if !s.Destroyed() {
		t.Fatal("expected destroyed flag")
	}
	if _, err := s.ListenOnce(context.Background()); !errors.Is(err, ErrDestroyed) {
		t.Fatalf("destroyed service must refuse to listen, got %v", err)
	}
}

func TestRunStopsOnInsufficientPermissions(t *testing.T) {
	t.Parallel()

	c := &collector{}
	engine := &scriptedEngine{steps: []step{
		{err: &Error{Code: ErrorInsufficientPermissions}},
		{alts: []string{"never reached"}},
	}}
	s := NewService(engine, c.handle, fastConfig(c))

	err := s.Run(context.Background())
	if CodeOf(err) != ErrorInsufficientPermissions {
		t.Fatalf("expected permissions error, got %v", err)
	}
	if engine.Calls() != 1 || len(c.transcripts) != 0 {
		t.Fatalf("loop must stop after the first cycle, calls=%d", engine.Calls())
	}
}

func TestRunHonoursErrorRestartDelay(t *testing.T) {
	t.Parallel()

	engine := &scriptedEngine{steps: []step{{err: errors.New("boom")}, {err: errors.New("boom")}}}
	s := NewService(engine, nil, Config{ErrorRestart: 100 * time.Millisecond, ResultRestart: time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	// The second restart would end after the deadline.
	if got := engine.Calls(); got != 2 {
		t.Fatalf("expected 2 cycles, got %d", got)
	}
}

func TestStopCancelsInFlightRecognition(t *testing.T) {
	t.Parallel()

	engine := &scriptedEngine{}
	s := NewService(engine, nil, Config{})

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	for !s.Listening() {
		time.Sleep(time.Millisecond)
	}
	s.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Stop did not cancel the engine")
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		code ErrorCode
	}{
		{audio.ErrNoSpeech, ErrorSpeechTimeout},
		{fmt.Errorf("wrapped: %w", stt.ErrNoLanguage), ErrorLanguageNotSupported},
		{context.DeadlineExceeded, ErrorNetworkTimeout},
		{&openai.Error{StatusCode: http.StatusTooManyRequests}, ErrorTooManyRequests},
		{&openai.Error{StatusCode: http.StatusUnauthorized}, ErrorInsufficientPermissions},
		{&openai.Error{StatusCode: http.StatusInternalServerError}, ErrorServer},
		{&openai.Error{StatusCode: http.StatusServiceUnavailable}, ErrorServerDisconnected},
		{&Error{Code: ErrorLanguageUnavailable}, ErrorLanguageUnavailable},
		{errors.New("anything"), ErrorClient},
	}
	for i, tc := range cases {
		if got := CodeOf(tc.err); got != tc.code {
			t.Fatalf("case %d: got %v, want %v", i, got, tc.code)
		}
	}
	if CodeOf(nil) != 0 {
		t.Fatal("nil error has no code")
	}
}

func TestErrorCodeText(t *testing.T) {
	t.Parallel()

	if ErrorSpeechTimeout.String() != "No speech input" {
		t.Fatalf("got %q", ErrorSpeechTimeout.String())
	}
	if ErrorCode(99).String() != "Unknown speech error" {
		t.Fatalf("got %q", ErrorCode(99).String())
	}
	e := &Error{Code: ErrorNetwork, Err: errors.New("dial tcp")}
	if e.Error() != "recognizer: Network error: dial tcp" {
		t.Fatalf("got %q", e.Error())
	}
}

type fakeSTT struct {
	text string
	err  error
	got  int
}

func (f *fakeSTT) Transcribe(_ context.Context, pcm []float32) (string, error) {
	f.got = len(pcm)
	return f.text, f.err
}

type fakeCapture struct {
	pcm []float32
	err error
}

func (f fakeCapture) Record(context.Context) ([]float32, error) { return f.pcm, f.err }

type fakeDucker struct{ calls []string }

func (d *fakeDucker) Duck(_ context.Context, factor float64) error {
	d.calls = append(d.calls, fmt.Sprintf("duck:%.1f", factor))
	return nil
}

func (d *fakeDucker) Restore(context.Context) error {
	d.calls = append(d.calls, "restore")
	return nil
}

func TestMicrophoneEngine(t *testing.T) {
	t.Parallel()

	ducker := &fakeDucker{}
	tr := &fakeSTT{text: "take photo"}
	m := &Microphone{Capture: fakeCapture{pcm: make([]float32, 320)}, STT: tr, Ducker: ducker}

	alts, err := m.Recognize(context.Background())
	if err != nil || len(alts) != 1 || alts[0] != "take photo" {
		t.Fatalf("got %v %v", alts, err)
	}
	if tr.got != 320 {
		t.Fatalf("transcriber got %d samples", tr.got)
	}
	if len(ducker.calls) != 2 || ducker.calls[0] != "duck:0.3" || ducker.calls[1] != "restore" {
		t.Fatalf("unexpected ducking %v", ducker.calls)
	}

	silent := &Microphone{Capture: fakeCapture{err: audio.ErrNoSpeech}, STT: tr}
	if _, err := silent.Recognize(context.Background()); CodeOf(err) != ErrorSpeechTimeout {
		t.Fatalf("expected speech timeout, got %v", err)
	}
	broken := &Microphone{Capture: fakeCapture{err: errors.New("device busy")}, STT: tr}
	if _, err := broken.Recognize(context.Background()); CodeOf(err) != ErrorAudio {
		t.Fatalf("expected audio error, got %v", err)
	}
}

func TestFileEngine(t *testing.T) {
	t.Parallel()

	data, err := audioconv.EncodeWAV(make([]float32, 1600), audioconv.SampleRate)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "cmd.wav")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	tr := &fakeSTT{text: "open settings"}
	alts, err := (&File{Path: path, STT: tr}).Recognize(context.Background())
	if err != nil || len(alts) != 1 || alts[0] != "open settings" {
		t.Fatalf("got %v %v", alts, err)
	}
	if tr.got != 1600 {
		t.Fatalf("transcriber got %d samples", tr.got)
	}

	_, err = (&File{Path: filepath.Join(t.TempDir(), "nope.wav"), STT: tr}).Recognize(context.Background())
	if CodeOf(err) != ErrorAudio {
		t.Fatalf("expected audio error, got %v", err)
	}

	quiet := &fakeSTT{text: ""}
	alts, err = (&File{Path: path, STT: quiet}).Recognize(context.Background())
	if err != nil || len(alts) != 0 {
		t.Fatalf("empty transcription must yield no alternatives, got %v %v", alts, err)
	}
}
