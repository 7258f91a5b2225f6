// Package commandlog persists recognised commands as timestamped lines.
package commandlog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"speechcmd/pkg/command"
)

const (
	// DefaultFileName is the log file name inside the data directory.
	DefaultFileName = "speech_commands.txt"

	timeLayout = "2006-01-02 15:04:05"
	separator  = "] "
	legacySep  = ": "
)

var ErrUnknownBackend = errors.New("commandlog: unknown backend")

// Stats describes the current state of a store.
type Stats struct {
	Exists   bool      `json:"exists"`
	Entries  int       `json:"entries"`
	Commands int       `json:"commands"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Location string    `json:"location"`
}

// Store is an append-only command log. Implementations are safe for
// concurrent use.
type Store interface {
	Append(ctx context.Context, token command.Token) error
	// ReadAll returns the raw lines in insertion order; empty when the store does not exist.
	ReadAll(ctx context.Context) ([]string, error)
	// ReadTokens returns the tokens of every well-formed line.
	ReadTokens(ctx context.Context) ([]command.Token, error)
	// Clear deletes the whole log.
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
	// Recent returns the last n raw lines.
	Recent(ctx context.Context, n int) ([]string, error)
	// Export returns the whole log as text, "" when it does not exist.
	Export(ctx context.Context) (string, error)
	HasCommands(ctx context.Context) bool
	Location() string
	Close() error
}

// FormatEntry renders one log line, without the trailing newline.
func FormatEntry(at time.Time, token command.Token) string {
	return "[" + at.Format(timeLayout) + separator + string(token)
}

// ParseEntry splits a line into its timestamp and token. Lines in the legacy
// "timestamp: TOKEN" form are accepted. ok is false when the line has no
// separator or an empty token.
func ParseEntry(line string) (at time.Time, token command.Token, ok bool) {
	line = strings.TrimRight(line, "\r\n")

	var stamp, rest string
	if strings.HasPrefix(line, "[") {
		var found bool
		stamp, rest, found = strings.Cut(line[1:], separator)
		if !found {
			return time.Time{}, command.Unknown, false
		}
	} else {
		// The legacy timestamp itself contains ':', so split on the first ": ".
		var found bool
		stamp, rest, found = strings.Cut(line, legacySep)
		if !found {
			return time.Time{}, command.Unknown, false
		}
	}

	rest = strings.TrimSpace(rest)
	if rest == "" {
		return time.Time{}, command.Unknown, false
	}
	at, _ = time.ParseInLocation(timeLayout, stamp, time.Local)
	return at, command.Token(rest), true
}

// tokensOf strips the timestamps of lines, skipping malformed ones.
func tokensOf(lines []string) []command.Token {
	tokens := make([]command.Token, 0, len(lines))
	for _, line := range lines {
		if _, token, ok := ParseEntry(line); ok {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func lastN(lines []string, n int) []string {
	if n <= 0 {
		return []string{}
	}
	if n > len(lines) {
		n = len(lines)
	}
	return append([]string(nil), lines[len(lines)-n:]...)
}

// Open returns the store for backend ("file" or "sqlite") at path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", "file":
		return NewFileLog(path), nil
	case "sqlite":
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
