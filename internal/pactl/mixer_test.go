package pactl

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

const sinkInputsFixture = `Sink Input #12
	Driver: protocol-native.c
	Volume: front-left: 52428 /  80% / -5.81 dB,   front-right: 52428 /  80% / -5.81 dB
	Properties:
		application.name = "Firefox"
Sink Input #15
	Volume: front-left: 65536 / 100% / 0.00 dB
	Properties:
		application.name = "speechcmd"
Sink Input #bad
	Volume: front-left: 1 / 1% / 0 dB
`

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	out   map[string][]byte
	err   error
	fail  map[string]error
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	line := name + " " + strings.Join(args, " ")
	f.calls = append(f.calls, line)
	if f.err != nil {
		return nil, f.err
	}
	if err := f.fail[line]; err != nil {
		return nil, err
	}
	return f.out[line], nil
}

func TestMixerVolumeSteps(t *testing.T) {
	t.Parallel()

	fr := &fakeRunner{}
	m := NewMixer(fr.run, 10)
	ctx := context.Background()

	if err := m.Raise(ctx); err != nil {
		t.Fatalf("raise failed: %v", err)
	}
	if err := m.Lower(ctx); err != nil {
		t.Fatalf("lower failed: %v", err)
	}
	if err := m.Mute(ctx); err != nil {
		t.Fatalf("mute failed: %v", err)
	}

	want := []string{
		"pactl set-sink-mute @DEFAULT_SINK@ 0",
		"pactl set-sink-volume @DEFAULT_SINK@ +10%",
		"pactl set-sink-volume @DEFAULT_SINK@ -10%",
		"pactl set-sink-mute @DEFAULT_SINK@ 1",
	}
	if strings.Join(fr.calls, "\n") != strings.Join(want, "\n") {
		t.Fatalf("unexpected calls:\n%s", strings.Join(fr.calls, "\n"))
	}
}

func TestMixerRunnerError(t *testing.T) {
	t.Parallel()

	boom := errors.New("no pulse")
	m := NewMixer((&fakeRunner{err: boom}).run, 5)
	if err := m.Lower(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped runner error, got %v", err)
	}
}

func TestMixerDuckAndRestore(t *testing.T) {
	t.Parallel()

	fr := &fakeRunner{out: map[string][]byte{
		"pactl list sink-inputs": []byte(sinkInputsFixture),
	}}
	m := NewMixer(fr.run, 5, "speechcmd")
	ctx := context.Background()

	if err := m.Duck(ctx, 0.25); err != nil {
		t.Fatalf("duck failed: %v", err)
	}
	if err := m.Duck(ctx, 0.25); err != nil {
		t.Fatalf("second duck failed: %v", err)
	}
	if err := m.Restore(ctx); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	want := []string{
		"pactl list sink-inputs",
		"pactl set-sink-input-volume 12 20%",
		"pactl list sink-inputs",
		"pactl set-sink-input-volume 12 80%",
	}
	if strings.Join(fr.calls, "\n") != strings.Join(want, "\n") {
		t.Fatalf("unexpected calls:\n%s", strings.Join(fr.calls, "\n"))
	}
}

func TestMixerRestoresPartialDuck(t *testing.T) {
	t.Parallel()

	inputs := `Sink Input #1
	Volume: front-left: 65536 / 100% / 0.00 dB
	Properties:
		application.name = "mpv"
Sink Input #2
	Volume: front-left: 52428 /  80% / -5.81 dB
	Properties:
		application.name = "Firefox"
`
	boom := errors.New("no such input")
	fr := &fakeRunner{
		out:  map[string][]byte{"pactl list sink-inputs": []byte(inputs)},
		fail: map[string]error{"pactl set-sink-input-volume 2 24%": boom},
	}
	m := NewMixer(fr.run, 5)
	ctx := context.Background()

	if err := m.Duck(ctx, 0.3); !errors.Is(err, boom) {
		t.Fatalf("expected duck error, got %v", err)
	}
	if err := m.Restore(ctx); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	want := []string{
		"pactl list sink-inputs",
		"pactl set-sink-input-volume 1 30%",
		"pactl set-sink-input-volume 2 24%",
		"pactl list sink-inputs",
		"pactl set-sink-input-volume 1 100%",
	}
	if strings.Join(fr.calls, "\n") != strings.Join(want, "\n") {
		t.Fatalf("unexpected calls:\n%s", strings.Join(fr.calls, "\n"))
	}
}

func TestParseSinkInputs(t *testing.T) {
	t.Parallel()

	got := parseSinkInputs(sinkInputsFixture)
	if len(got) != 2 {
		t.Fatalf("expected 2 inputs, got %+v", got)
	}
	if got[0].ID != 12 || got[0].Volume != 80 || got[0].AppName != "Firefox" {
		t.Fatalf("unexpected first input: %+v", got[0])
	}
	if got[1].AppName != "speechcmd" || got[1].Volume != 100 {
		t.Fatalf("unexpected second input: %+v", got[1])
	}
}
