// Package platform holds the device actions the dispatcher drives and the
// backends that carry them out.
package platform

import (
	"context"
	"errors"
)

var (
	// ErrUnsupported means the backend cannot perform the action directly.
	// Callers usually fall back to opening the matching settings panel.
	ErrUnsupported = errors.New("platform: action not supported")

	// ErrUnavailable means the hardware or service behind the action is missing.
	ErrUnavailable = errors.New("platform: hardware not available")

	// ErrPermission means the backend lacks the permission the action needs.
	ErrPermission = errors.New("platform: permission denied")
)

type VolumeAdjust string

const (
	VolumeRaise VolumeAdjust = "raise"
	VolumeLower VolumeAdjust = "lower"
	VolumeMute  VolumeAdjust = "mute"
)

type Radio string

const (
	RadioWiFi      Radio = "wifi"
	RadioBluetooth Radio = "bluetooth"
)

// Label is the user-facing radio name.
func (r Radio) Label() string {
	switch r {
	case RadioWiFi:
		return "WiFi"
	case RadioBluetooth:
		return "Bluetooth"
	default:
		return string(r)
	}
}

// Panel returns the settings panel that controls the radio.
func (r Radio) Panel() SettingsPanel {
	if r == RadioBluetooth {
		return PanelBluetooth
	}
	return PanelWiFi
}

type SettingsPanel string

const (
	PanelMain      SettingsPanel = "main"
	PanelDisplay   SettingsPanel = "display"
	PanelWiFi      SettingsPanel = "wifi"
	PanelBluetooth SettingsPanel = "bluetooth"
)

type Permission string

const (
	PermissionCamera Permission = "camera"
)

// Platform performs device actions. Every method is attempted once; callers
// translate errors into user-visible messages.
type Platform interface {
	LaunchCamera(ctx context.Context) error
	CapturePhoto(ctx context.Context) error
	SetTorch(ctx context.Context, on bool) error
	AdjustVolume(ctx context.Context, adj VolumeAdjust) error
	AdjustBrightness(ctx context.Context, up bool) error
	RadioEnabled(ctx context.Context, radio Radio) (bool, error)
	SetRadio(ctx context.Context, radio Radio, on bool) error
	OpenSettings(ctx context.Context, panel SettingsPanel) error
	GoHome(ctx context.Context) error
	Granted(perm Permission) bool
}
