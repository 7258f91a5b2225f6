// Package pactl drives PulseAudio and PipeWire through the pactl command line.
package pactl

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

// Runner executes an external command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

const (
	defaultSink = "@DEFAULT_SINK@"
	maxPercent  = 150
)

type sinkInput struct {
	ID      int
	Volume  int
	AppName string
}

// Mixer drives PulseAudio/PipeWire through pactl: volume steps on the default
// sink and temporary ducking of other applications while we listen.
type Mixer struct {
	run  Runner
	step int

	mu        sync.Mutex
	ducked    bool
	selfNames []string
	saved     map[int]int
}

// NewMixer returns a mixer that changes the default sink volume by step percent.
func NewMixer(run Runner, step int, selfNames ...string) *Mixer {
	if run == nil {
		run = ExecRunner
	}
	if step <= 0 {
		step = 5
	}
	return &Mixer{
		run:       run,
		step:      step,
		selfNames: append([]string(nil), selfNames...),
		saved:     make(map[int]int),
	}
}

// Raise increases the default sink volume and unmutes it.
func (m *Mixer) Raise(ctx context.Context) error {
	if err := m.pactl(ctx, "set-sink-mute", defaultSink, "0"); err != nil {
		return err
	}
	return m.pactl(ctx, "set-sink-volume", defaultSink, fmt.Sprintf("+%d%%", m.step))
}

// Lower decreases the default sink volume.
func (m *Mixer) Lower(ctx context.Context) error {
	return m.pactl(ctx, "set-sink-volume", defaultSink, fmt.Sprintf("-%d%%", m.step))
}

// Mute silences the default sink.
func (m *Mixer) Mute(ctx context.Context) error {
	return m.pactl(ctx, "set-sink-mute", defaultSink, "1")
}

// Duck scales every foreign sink input by factor, remembering the original level.
func (m *Mixer) Duck(ctx context.Context, factor float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ducked {
		return nil
	}

	inputs, err := m.sinkInputs(ctx)
	if err != nil {
		return err
	}

	// Inputs ducked before a failure stay recorded so Restore can undo them.
	saved := make(map[int]int)
	var duckErr error
	for _, in := range inputs {
		if m.isSelf(in) {
			continue
		}
		to := int(math.Round(float64(in.Volume) * factor))
		if err := m.setInputVolume(ctx, in.ID, to); err != nil {
			duckErr = err
			break
		}
		saved[in.ID] = in.Volume
	}

	m.saved = saved
	m.ducked = len(saved) > 0 || duckErr == nil
	return duckErr
}

// Restore puts ducked inputs back to their saved level. Inputs that went away are skipped.
func (m *Mixer) Restore(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ducked {
		return nil
	}

	inputs, err := m.sinkInputs(ctx)
	if err != nil {
		return err
	}

	for _, in := range inputs {
		orig, ok := m.saved[in.ID]
		if !ok {
			continue
		}
		if err := m.setInputVolume(ctx, in.ID, orig); err != nil {
			return err
		}
	}

	m.saved = make(map[int]int)
	m.ducked = false
	return nil
}

func (m *Mixer) isSelf(in sinkInput) bool {
	for _, name := range m.selfNames {
		if in.AppName == name {
			return true
		}
	}
	return false
}

func (m *Mixer) pactl(ctx context.Context, args ...string) error {
	if _, err := m.run(ctx, "pactl", args...); err != nil {
		return fmt.Errorf("pactl %s: %w", args[0], err)
	}
	return nil
}

func (m *Mixer) setInputVolume(ctx context.Context, id int, percent int) error {
	percent = max(0, min(percent, maxPercent))
	return m.pactl(ctx, "set-sink-input-volume", strconv.Itoa(id), fmt.Sprintf("%d%%", percent))
}

func (m *Mixer) sinkInputs(ctx context.Context) ([]sinkInput, error) {
	out, err := m.run(ctx, "pactl", "list", "sink-inputs")
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}
	return parseSinkInputs(string(out)), nil
}

func parseSinkInputs(text string) []sinkInput {
	blocks := strings.Split(text, "Sink Input #")
	var res []sinkInput

	for _, block := range blocks[1:] {
		header, body, ok := strings.Cut(block, "\n")
		if !ok {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(header))
		if err != nil {
			continue
		}

		in := sinkInput{ID: id}
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)

			if strings.HasPrefix(line, "Volume:") && in.Volume == 0 {
				if m := percentRe.FindStringSubmatch(line); len(m) >= 2 {
					in.Volume, _ = strconv.Atoi(m[1])
				}
			}

			if name, found := strings.CutPrefix(line, "application.name ="); found && in.AppName == "" {
				in.AppName = strings.Trim(strings.TrimSpace(name), `"`)
			}
		}

		if in.Volume == 0 && in.AppName == "" {
			continue
		}
		res = append(res, in)
	}

	return res
}
