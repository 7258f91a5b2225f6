package platform

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"speechcmd/internal/pactl"
)

// Runner executes an external command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// DesktopConfig names the launchers used for actions without a system tool.
// Each command is split on whitespace; an empty command makes the action unsupported.
type DesktopConfig struct {
	CameraCommand   string
	SettingsCommand string
	HomeCommand     string
	TorchDevice     string // brightnessctl device name of a torch LED
	BrightnessStep  int
	VolumeStep      int
	Panels          map[SettingsPanel]string
}

func DefaultDesktopConfig() DesktopConfig {
	return DesktopConfig{
		CameraCommand:   "cheese",
		SettingsCommand: "gnome-control-center",
		HomeCommand:     "",
		BrightnessStep:  10,
		VolumeStep:      5,
		Panels: map[SettingsPanel]string{
			PanelDisplay:   "display",
			PanelWiFi:      "wifi",
			PanelBluetooth: "bluetooth",
		},
	}
}

// Desktop drives a Linux desktop with the usual command line tools:
// pactl for volume, brightnessctl for backlight and torch LEDs, nmcli for
// Wi-Fi and bluetoothctl for Bluetooth.
type Desktop struct {
	cfg   DesktopConfig
	run   Runner
	mixer *pactl.Mixer
}

func NewDesktop(cfg DesktopConfig, run Runner) *Desktop {
	if run == nil {
		run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		}
	}
	if cfg.BrightnessStep <= 0 {
		cfg.BrightnessStep = 10
	}
	return &Desktop{
		cfg:   cfg,
		run:   run,
		mixer: pactl.NewMixer(pactl.Runner(run), cfg.VolumeStep),
	}
}

func (d *Desktop) LaunchCamera(ctx context.Context) error {
	return d.launch(ctx, d.cfg.CameraCommand)
}

func (d *Desktop) CapturePhoto(ctx context.Context) error {
	return d.launch(ctx, d.cfg.CameraCommand)
}

func (d *Desktop) SetTorch(ctx context.Context, on bool) error {
	if d.cfg.TorchDevice == "" {
		return ErrUnavailable
	}
	level := "0"
	if on {
		level = "100%"
	}
	return d.exec(ctx, "brightnessctl", "--device="+d.cfg.TorchDevice, "set", level)
}

func (d *Desktop) AdjustVolume(ctx context.Context, adj VolumeAdjust) error {
	switch adj {
	case VolumeRaise:
		return d.mixer.Raise(ctx)
	case VolumeLower:
		return d.mixer.Lower(ctx)
	case VolumeMute:
		return d.mixer.Mute(ctx)
	default:
		return fmt.Errorf("platform: unknown volume adjustment %q", adj)
	}
}

func (d *Desktop) AdjustBrightness(ctx context.Context, up bool) error {
	step := fmt.Sprintf("%d%%-", d.cfg.BrightnessStep)
	if up {
		step = fmt.Sprintf("+%d%%", d.cfg.BrightnessStep)
	}
	err := d.exec(ctx, "brightnessctl", "--class=backlight", "set", step)
	if errors.Is(err, exec.ErrNotFound) {
		return ErrUnsupported
	}
	return err
}

func (d *Desktop) RadioEnabled(ctx context.Context, radio Radio) (bool, error) {
	switch radio {
	case RadioWiFi:
		out, err := d.output(ctx, "nmcli", "radio", "wifi")
		if err != nil {
			return false, err
		}
		return strings.TrimSpace(out) == "enabled", nil
	case RadioBluetooth:
		out, err := d.output(ctx, "bluetoothctl", "show")
		if err != nil {
			return false, err
		}
		if strings.Contains(out, "No default controller available") {
			return false, ErrUnavailable
		}
		return strings.Contains(out, "Powered: yes"), nil
	default:
		return false, ErrUnavailable
	}
}

func (d *Desktop) SetRadio(ctx context.Context, radio Radio, on bool) error {
	var err error
	switch radio {
	case RadioWiFi:
		err = d.exec(ctx, "nmcli", "radio", "wifi", onOff(on))
	case RadioBluetooth:
		err = d.exec(ctx, "bluetoothctl", "power", onOff(on))
	default:
		return ErrUnavailable
	}
	if errors.Is(err, exec.ErrNotFound) {
		return ErrUnsupported
	}
	return err
}

func (d *Desktop) OpenSettings(ctx context.Context, panel SettingsPanel) error {
	command := d.cfg.SettingsCommand
	if name, ok := d.cfg.Panels[panel]; ok && panel != PanelMain && command != "" {
		command += " " + name
	}
	return d.launch(ctx, command)
}

func (d *Desktop) GoHome(ctx context.Context) error {
	return d.launch(ctx, d.cfg.HomeCommand)
}

func (d *Desktop) Granted(Permission) bool {
	return true
}

// launch starts a GUI program without waiting for it to exit.
func (d *Desktop) launch(ctx context.Context, command string) error {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ErrUnsupported
	}
	if _, err := exec.LookPath(fields[0]); err != nil {
		return fmt.Errorf("%w: %s", ErrUnavailable, fields[0])
	}
	// The runner is bypassed: launchers must outlive the request context.
	cmd := exec.Command(fields[0], fields[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", fields[0], err)
	}
	go cmd.Wait()
	return nil
}

func (d *Desktop) exec(ctx context.Context, name string, args ...string) error {
	_, err := d.output(ctx, name, args...)
	return err
}

func (d *Desktop) output(ctx context.Context, name string, args ...string) (string, error) {
	out, err := d.run(ctx, name, args...)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return string(out), nil
}
