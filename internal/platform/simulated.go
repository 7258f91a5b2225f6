package platform

import (
	"context"
	"fmt"
	"sync"
)

// Simulated accepts every action and only records it. It backs dry runs and tests.
// Errors can be injected per action name ("torch", "volume", "brightness",
// "radio", "radio-state", "camera", "photo", "settings", "home").
type Simulated struct {
	mu     sync.Mutex
	calls  []string
	errs   map[string]error
	denied map[Permission]bool
	radios map[Radio]bool
	panics map[string]bool
}

func NewSimulated() *Simulated {
	return &Simulated{
		errs:   make(map[string]error),
		denied: make(map[Permission]bool),
		radios: make(map[Radio]bool),
		panics: make(map[string]bool),
	}
}

// FailWith makes every later call of action return err.
func (s *Simulated) FailWith(action string, err error) *Simulated {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[action] = err
	return s
}

// PanicOn makes action panic, as a misbehaving driver would.
func (s *Simulated) PanicOn(action string) *Simulated {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panics[action] = true
	return s
}

// Deny revokes perm.
func (s *Simulated) Deny(perm Permission) *Simulated {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denied[perm] = true
	return s
}

// SetRadioState sets the current state reported for radio.
func (s *Simulated) SetRadioState(radio Radio, on bool) *Simulated {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.radios[radio] = on
	return s
}

// Calls returns the recorded actions in order.
func (s *Simulated) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *Simulated) record(action string, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if detail != "" {
		s.calls = append(s.calls, action+":"+detail)
	} else {
		s.calls = append(s.calls, action)
	}
	if s.panics[action] {
		panic(fmt.Sprintf("simulated %s failure", action))
	}
	return s.errs[action]
}

func (s *Simulated) LaunchCamera(context.Context) error {
	return s.record("camera", "")
}

func (s *Simulated) CapturePhoto(context.Context) error {
	return s.record("photo", "")
}

func (s *Simulated) SetTorch(_ context.Context, on bool) error {
	return s.record("torch", onOff(on))
}

func (s *Simulated) AdjustVolume(_ context.Context, adj VolumeAdjust) error {
	return s.record("volume", string(adj))
}

func (s *Simulated) AdjustBrightness(_ context.Context, up bool) error {
	if up {
		return s.record("brightness", "up")
	}
	return s.record("brightness", "down")
}

func (s *Simulated) RadioEnabled(_ context.Context, radio Radio) (bool, error) {
	if err := s.record("radio-state", string(radio)); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.radios[radio], nil
}

func (s *Simulated) SetRadio(_ context.Context, radio Radio, on bool) error {
	if err := s.record("radio", string(radio)+"="+onOff(on)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.radios[radio] = on
	return nil
}

func (s *Simulated) OpenSettings(_ context.Context, panel SettingsPanel) error {
	return s.record("settings", string(panel))
}

func (s *Simulated) GoHome(context.Context) error {
	return s.record("home", "")
}

func (s *Simulated) Granted(perm Permission) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.denied[perm]
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
