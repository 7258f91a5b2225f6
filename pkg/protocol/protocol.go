// Package protocol implements the colon separated line protocol spoken on
// the device hub: TO:VERB:NOUN[:ARGS...]:FROM.
package protocol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	VerbOK  = "OK"
	VerbErr = "ERR"

	// Broadcast addresses every shard on the hub.
	Broadcast = "ALL"
)

var ErrEmpty = errors.New("protocol: empty message")

type Message struct {
	To   string
	Verb string
	Noun string
	Args []string
	From string
}

func (m *Message) String() string {
	parts := make([]string, 0, 4+len(m.Args))
	parts = append(parts, m.To, m.Verb, m.Noun)
	parts = append(parts, m.Args...)
	parts = append(parts, m.From)
	return strings.Join(parts, ":")
}

// IsOK reports whether m is a positive reply.
func (m *Message) IsOK() bool {
	return m.Verb == VerbOK
}

// Arg returns the i-th argument or "" when absent.
func (m *Message) Arg(i int) string {
	if i < 0 || i >= len(m.Args) {
		return ""
	}
	return m.Args[i]
}

// Reply builds the answer to m, addressed back to its sender.
func (m *Message) Reply(verb, noun string, args ...string) Message {
	return Message{To: m.From, Verb: verb, Noun: noun, Args: args, From: m.To}
}

// Error turns m into a failure reply carrying reason.
func (m *Message) Error(reason string, args ...string) {
	m.Verb = VerbErr
	m.Noun = reason
	m.Args = args
}

// Parse decodes one frame. Verb and noun are upper-cased.
func Parse(line string) (*Message, error) {
	s := strings.TrimSpace(line)
	if s == "" {
		return nil, ErrEmpty
	}
	if strings.ContainsAny(s, " \t\r\n") {
		// frames are single-line
		return nil, fmt.Errorf("protocol: invalid whitespace present")
	}
	parts := strings.Split(s, ":")
	if len(parts) < 4 {
		return nil, fmt.Errorf("protocol: too few fields: got %d, want >= 4", len(parts))
	}

	to := parts[0]
	verb := parts[1]
	noun := parts[2]
	from := parts[len(parts)-1]
	args := append([]string(nil), parts[3:len(parts)-1]...)

	if !isToken(to) && !isHexID(to) && to != Broadcast {
		return nil, fmt.Errorf("protocol: invalid TO token: %q", to)
	}
	if !isToken(from) && !isHexID(from) {
		return nil, fmt.Errorf("protocol: invalid FROM token: %q", from)
	}
	if !isToken(noun) || !isToken(verb) {
		return nil, fmt.Errorf("protocol: invalid NOUN/VERB: %q %q", noun, verb)
	}
	for i, a := range args {
		if !isToken(a) {
			return nil, fmt.Errorf("protocol: invalid ARG[%d]: %q", i, a)
		}
	}

	return &Message{
		To:   to,
		Verb: strings.ToUpper(verb),
		Noun: strings.ToUpper(noun),
		Args: args,
		From: from,
	}, nil
}

// Recipient returns the TO field of a raw frame without validating it.
func Recipient(line string) string {
	to, _, _ := strings.Cut(strings.TrimSpace(line), ":")
	return to
}

var (
	tokenRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	hexIDRe = regexp.MustCompile(`^[0-9A-F]{2}$`)
)

func isToken(s string) bool {
	return tokenRe.MatchString(s)
}

func isHexID(s string) bool {
	return hexIDRe.MatchString(strings.ToUpper(s))
}
