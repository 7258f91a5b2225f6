package nlu

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"time"

	"speechcmd/internal/platform"
	"speechcmd/pkg/command"
)

// DefaultReplayDelay is the pause between two replayed commands.
const DefaultReplayDelay = 500 * time.Millisecond

// Notifier shows a user-visible status message.
type Notifier interface {
	Notify(message string)
}

// Outcome is the result of one dispatched command.
type Outcome struct {
	Token   command.Token `json:"token"`
	OK      bool          `json:"ok"`
	Message string        `json:"message"`
}

// ReplayReport summarises a batch replay.
type ReplayReport struct {
	Outcomes    []Outcome `json:"outcomes"`
	Total       int       `json:"total"`
	Interrupted bool      `json:"interrupted"`
	Message     string    `json:"message"`
}

// Succeeded counts the commands that reported success.
func (r ReplayReport) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK {
			n++
		}
	}
	return n
}

// Dispatcher maps tokens to platform actions.
type Dispatcher struct {
	platform platform.Platform
	notifier Notifier
	delay    time.Duration
}

func NewDispatcher(p platform.Platform, n Notifier, delay time.Duration) *Dispatcher {
	if delay < 0 {
		delay = DefaultReplayDelay
	}
	return &Dispatcher{platform: p, notifier: n, delay: delay}
}

// Execute runs the action for token once. Platform errors and panics are
// reported as a failed outcome, never returned.
func (d *Dispatcher) Execute(ctx context.Context, token command.Token) (out Outcome) {
	out.Token = token

	defer func() {
		if r := recover(); r != nil {
			log.Error("Command panicked", "token", token, "panic", r)
			out.OK = false
			out.Message = fmt.Sprintf("Error executing command: %s", token)
		}
		d.notify(out.Message)
	}()

	out.OK, out.Message = d.execute(ctx, token)
	log.Debug("Executed command", "token", token, "ok", out.OK, "message", out.Message)
	return out
}

func (d *Dispatcher) execute(ctx context.Context, token command.Token) (bool, string) {
	switch token {
	case command.CameraOn, command.OpenCameraApp:
		return d.launchCamera(ctx)
	case command.CameraOff:
		// The camera application cannot be closed from here.
		return true, "Camera turned OFF"
	case command.FlashlightOn:
		return d.torch(ctx, true)
	case command.FlashlightOff:
		return d.torch(ctx, false)
	case command.VolumeUp:
		return d.volume(ctx, platform.VolumeRaise)
	case command.VolumeDown:
		return d.volume(ctx, platform.VolumeLower)
	case command.VolumeMute:
		return d.volume(ctx, platform.VolumeMute)
	case command.BrightnessUp:
		return d.brightness(ctx, true)
	case command.BrightnessDown:
		return d.brightness(ctx, false)
	case command.WifiOn:
		return d.radio(ctx, platform.RadioWiFi, true)
	case command.WifiOff:
		return d.radio(ctx, platform.RadioWiFi, false)
	case command.BluetoothOn:
		return d.radio(ctx, platform.RadioBluetooth, true)
	case command.BluetoothOff:
		return d.radio(ctx, platform.RadioBluetooth, false)
	case command.OpenSettings:
		if err := d.platform.OpenSettings(ctx, platform.PanelMain); err != nil {
			return d.fail(err, "Settings not available")
		}
		return true, "Opening settings"
	case command.TakePhoto:
		if err := d.platform.CapturePhoto(ctx); err != nil {
			return d.fail(err, "Camera app not available")
		}
		return true, "Taking photo..."
	case command.GoHome:
		if err := d.platform.GoHome(ctx); err != nil {
			return d.fail(err, "Home screen not available")
		}
		return true, "Going to home screen"
	case command.LockScreen:
		return false, "Screen lock command received (requires device admin)"
	case command.GoBack:
		return false, "Back command received (requires accessibility service)"
	default:
		return false, fmt.Sprintf("Unknown command: %s", token)
	}
}

func (d *Dispatcher) launchCamera(ctx context.Context) (bool, string) {
	if err := d.platform.LaunchCamera(ctx); err != nil {
		return d.fail(err, "Camera app not available")
	}
	return true, "Opening camera"
}

func (d *Dispatcher) torch(ctx context.Context, on bool) (bool, string) {
	if !d.platform.Granted(platform.PermissionCamera) {
		return false, "Camera permission required for flashlight"
	}
	if err := d.platform.SetTorch(ctx, on); err != nil {
		return d.fail(err, "Flashlight not available")
	}
	if on {
		return true, "Flashlight ON"
	}
	return true, "Flashlight OFF"
}

func (d *Dispatcher) volume(ctx context.Context, adj platform.VolumeAdjust) (bool, string) {
	if err := d.platform.AdjustVolume(ctx, adj); err != nil {
		return d.fail(err, "Volume adjustment failed")
	}
	switch adj {
	case platform.VolumeRaise:
		return true, "Volume increased"
	case platform.VolumeLower:
		return true, "Volume decreased"
	case platform.VolumeMute:
		return true, "Volume muted"
	default:
		return true, "Volume adjusted"
	}
}

func (d *Dispatcher) brightness(ctx context.Context, up bool) (bool, string) {
	err := d.platform.AdjustBrightness(ctx, up)
	switch {
	case err == nil:
		if up {
			return true, "Brightness increased"
		}
		return true, "Brightness decreased"
	case errors.Is(err, platform.ErrUnsupported):
		if err := d.platform.OpenSettings(ctx, platform.PanelDisplay); err != nil {
			return d.fail(err, "Cannot adjust brightness automatically")
		}
		return true, "Opening brightness settings"
	default:
		return d.fail(err, "Cannot adjust brightness automatically")
	}
}

func (d *Dispatcher) radio(ctx context.Context, radio platform.Radio, on bool) (bool, string) {
	enabled, err := d.platform.RadioEnabled(ctx, radio)
	switch {
	case errors.Is(err, platform.ErrUnavailable):
		return false, radio.Label() + " not available"
	case err == nil && enabled == on:
		return true, fmt.Sprintf("%s already %s", radio.Label(), stateWord(on))
	}

	err = d.platform.SetRadio(ctx, radio, on)
	switch {
	case err == nil:
		return true, fmt.Sprintf("%s %s", radio.Label(), stateWord(on))
	case errors.Is(err, platform.ErrUnsupported):
		if err := d.platform.OpenSettings(ctx, radio.Panel()); err != nil {
			return d.fail(err, radio.Label()+" not available")
		}
		return true, fmt.Sprintf("Opening %s settings", radio.Label())
	case errors.Is(err, platform.ErrUnavailable):
		return false, radio.Label() + " not available"
	default:
		return d.fail(err, radio.Label()+" not available")
	}
}

func (d *Dispatcher) fail(err error, message string) (bool, string) {
	log.Warn("Platform action failed", "message", message, "err", err)
	return false, message
}

func (d *Dispatcher) notify(message string) {
	if d.notifier != nil && message != "" {
		d.notifier.Notify(message)
	}
}

// Replay executes tokens in order with the configured pause between two
// commands. Cancelling ctx abandons the rest of the batch.
func (d *Dispatcher) Replay(ctx context.Context, tokens []command.Token) ReplayReport {
	report := ReplayReport{Total: len(tokens)}

	if len(tokens) == 0 {
		report.Message = "No commands to execute."
		d.notify(report.Message)
		return report
	}

	for i, token := range tokens {
		log.Debug("Executing", "index", i, "token", token)
		report.Outcomes = append(report.Outcomes, d.Execute(ctx, token))

		if i == len(tokens)-1 {
			break
		}
		if !d.pause(ctx) {
			log.Warn("Replay interrupted", "executed", len(report.Outcomes), "remaining", len(tokens)-i-1)
			report.Interrupted = true
			report.Message = "Execution interrupted"
			d.notify(report.Message)
			return report
		}
	}

	report.Message = fmt.Sprintf("Executed %d commands", len(report.Outcomes))
	d.notify(report.Message)
	return report
}

func (d *Dispatcher) pause(ctx context.Context) bool {
	if d.delay == 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func stateWord(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
