// Package notify shows short status messages to the user.
package notify

import (
	"context"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

// Notifier displays one short message, the desktop counterpart of a toast.
type Notifier interface {
	Notify(message string)
}

// Func adapts a function to Notifier.
type Func func(message string)

func (f Func) Notify(message string) { f(message) }

// Log writes messages to the structured log.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(message string) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Notice", "message", message)
}

// Desktop shows messages through notify-send.
type Desktop struct {
	App     string
	Timeout time.Duration
}

func (d Desktop) Notify(message string) {
	app := d.App
	if app == "" {
		app = "speechcmd"
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "notify-send", "-a", app, "-t", "2000", app, message)
	if err := cmd.Run(); err != nil {
		slog.Debug("notify-send failed", "err", err)
	}
}

// Multi fans a message out to several notifiers in order.
type Multi []Notifier

func (m Multi) Notify(message string) {
	for _, n := range m {
		if n != nil {
			n.Notify(message)
		}
	}
}

// Recorder keeps every message, used by tests and the control socket.
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

func (r *Recorder) Notify(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

// Messages returns a copy of what was recorded so far.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

// Last returns the most recent message or "".
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return ""
	}
	return r.messages[len(r.messages)-1]
}
