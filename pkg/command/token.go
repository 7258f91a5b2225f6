// Package command defines the closed vocabulary of device-control tokens.
package command

import "strings"

// Token identifies one device action. The zero value is the unknown marker.
type Token string

const Unknown Token = ""

const (
	CameraOn       Token = "CAMERA_ON"
	CameraOff      Token = "CAMERA_OFF"
	FlashlightOn   Token = "FLASHLIGHT_ON"
	FlashlightOff  Token = "FLASHLIGHT_OFF"
	VolumeUp       Token = "VOLUME_UP"
	VolumeDown     Token = "VOLUME_DOWN"
	VolumeMute     Token = "VOLUME_MUTE"
	BrightnessUp   Token = "BRIGHTNESS_UP"
	BrightnessDown Token = "BRIGHTNESS_DOWN"
	WifiOn         Token = "WIFI_ON"
	WifiOff        Token = "WIFI_OFF"
	BluetoothOn    Token = "BLUETOOTH_ON"
	BluetoothOff   Token = "BLUETOOTH_OFF"
	OpenCameraApp  Token = "OPEN_CAMERA_APP"
	OpenSettings   Token = "OPEN_SETTINGS"
	TakePhoto      Token = "TAKE_PHOTO"
	LockScreen     Token = "LOCK_SCREEN"
	GoHome         Token = "GO_HOME"
	GoBack         Token = "GO_BACK"
)

var vocabulary = []Token{
	CameraOn, CameraOff,
	FlashlightOn, FlashlightOff,
	VolumeUp, VolumeDown, VolumeMute,
	BrightnessUp, BrightnessDown,
	WifiOn, WifiOff,
	BluetoothOn, BluetoothOff,
	OpenCameraApp, OpenSettings, TakePhoto,
	LockScreen, GoHome, GoBack,
}

// All returns every known token in declaration order.
func All() []Token {
	return append([]Token(nil), vocabulary...)
}

// Known reports whether t belongs to the vocabulary.
func Known(t Token) bool {
	for _, v := range vocabulary {
		if v == t {
			return true
		}
	}
	return false
}

// Parse trims s and returns it as a token. ok is false for text outside the vocabulary.
func Parse(s string) (Token, bool) {
	t := Token(strings.TrimSpace(s))
	if !Known(t) {
		return t, false
	}
	return t, true
}

func (t Token) String() string {
	return string(t)
}

// IsUnknown reports whether t is the unknown marker.
func (t Token) IsUnknown() bool {
	return t == Unknown
}
