package nlu

import (
	log "log/slog"
	"strings"

	"speechcmd/pkg/command"
)

// Rule maps any of its phrases to a token.
type Rule struct {
	Token   command.Token
	Phrases []string
}

func (r Rule) matches(speech string) bool {
	for _, p := range r.Phrases {
		if strings.Contains(speech, p) {
			return true
		}
	}
	return false
}

// Result is the outcome of analysing one transcript.
type Result struct {
	Token command.Token `json:"token"`
	Query string        `json:"query"`
}

// Known reports whether a rule matched.
func (r Result) Known() bool {
	return !r.Token.IsUnknown()
}

// Order matters: the first rule containing a phrase of the transcript wins.
var defaultRules = []Rule{
	{command.CameraOn, []string{"camera on", "turn on camera", "switch on camera", "start camera"}},
	{command.CameraOff, []string{"camera off", "turn off camera", "switch off camera", "stop camera"}},

	{command.FlashlightOn, []string{"flashlight on", "torch on", "turn on flashlight", "switch on light"}},
	{command.FlashlightOff, []string{"flashlight off", "torch off", "turn off flashlight", "switch off light"}},

	{command.VolumeUp, []string{"volume up", "increase volume"}},
	{command.VolumeDown, []string{"volume down", "decrease volume"}},
	{command.VolumeMute, []string{"mute", "volume off"}},

	{command.BrightnessUp, []string{"brightness up", "increase brightness"}},
	{command.BrightnessDown, []string{"brightness down", "decrease brightness"}},

	{command.WifiOn, []string{"wifi on", "turn on wifi"}},
	{command.WifiOff, []string{"wifi off", "turn off wifi"}},
	{command.BluetoothOn, []string{"bluetooth on", "turn on bluetooth"}},
	{command.BluetoothOff, []string{"bluetooth off", "turn off bluetooth"}},

	{command.OpenCameraApp, []string{"open camera app"}},
	{command.OpenSettings, []string{"open settings"}},
	{command.TakePhoto, []string{"take photo", "capture photo", "take picture", "capture picture"}},

	{command.LockScreen, []string{"lock screen", "lock phone"}},
	{command.GoHome, []string{"go home"}},
	{command.GoBack, []string{"go back"}},
}

// Matcher resolves transcripts against an ordered rule list.
type Matcher struct {
	rules []Rule
}

// NewMatcher returns a matcher over the built-in command phrases.
func NewMatcher() *Matcher {
	return NewMatcherWithRules(defaultRules)
}

// NewMatcherWithRules builds a matcher over rules. Phrases are lower-cased.
func NewMatcherWithRules(rules []Rule) *Matcher {
	m := &Matcher{rules: make([]Rule, 0, len(rules))}
	for _, r := range rules {
		phrases := make([]string, 0, len(r.Phrases))
		for _, p := range r.Phrases {
			if p = strings.ToLower(p); p != "" {
				phrases = append(phrases, p)
			}
		}
		m.rules = append(m.rules, Rule{Token: r.Token, Phrases: phrases})
	}
	return m
}

// Match returns the token of the first matching rule, or command.Unknown.
func (m *Matcher) Match(transcript string) command.Token {
	speech := strings.ToLower(transcript)
	for _, r := range m.rules {
		if r.matches(speech) {
			return r.Token
		}
	}
	return command.Unknown
}

// Analyze matches transcript and keeps the original text alongside the token.
func (m *Matcher) Analyze(transcript string) Result {
	out := Result{Token: m.Match(transcript), Query: transcript}
	log.Debug("Parsed command", "query", transcript, "token", out.Token)
	return out
}

// Rules returns a copy of the rule list in evaluation order.
func (m *Matcher) Rules() []Rule {
	out := make([]Rule, len(m.rules))
	for i, r := range m.rules {
		out[i] = Rule{Token: r.Token, Phrases: append([]string(nil), r.Phrases...)}
	}
	return out
}

// Phrases returns every phrase that maps to token.
func (m *Matcher) Phrases(token command.Token) []string {
	var out []string
	for _, r := range m.rules {
		if r.Token == token {
			out = append(out, r.Phrases...)
		}
	}
	return out
}

// Vocabulary is a comma separated list of all phrases, used to bias speech engines.
func (m *Matcher) Vocabulary() string {
	var all []string
	for _, r := range m.rules {
		all = append(all, r.Phrases...)
	}
	return strings.Join(all, ", ")
}
