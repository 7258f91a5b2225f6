package commandlog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	log "log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"speechcmd/pkg/command"
)

// FileLog keeps the log as a UTF-8 text file, one entry per line.
type FileLog struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func NewFileLog(path string) *FileLog {
	if path == "" {
		path = DefaultFileName
	}
	return &FileLog{path: path, now: time.Now}
}

// WithClock replaces the timestamp source.
func (l *FileLog) WithClock(now func() time.Time) *FileLog {
	l.now = now
	return l
}

func (l *FileLog) Location() string {
	return l.path
}

func (l *FileLog) Append(_ context.Context, token command.Token) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Error("Failed to create log directory", "dir", dir, "err", err)
			return fmt.Errorf("commandlog: create dir: %w", err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Error("Failed to open command log", "path", l.path, "err", err)
		return fmt.Errorf("commandlog: open: %w", err)
	}

	line := FormatEntry(l.now(), token) + "\n"
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		log.Error("Failed to append command", "path", l.path, "token", token, "err", err)
		return fmt.Errorf("commandlog: write: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("commandlog: close: %w", err)
	}

	log.Debug("Command saved", "token", token, "path", l.path)
	return nil
}

func (l *FileLog) ReadAll(_ context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readLines()
}

func (l *FileLog) ReadTokens(ctx context.Context) ([]command.Token, error) {
	lines, err := l.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return tokensOf(lines), nil
}

func (l *FileLog) Clear(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Error("Failed to clear command log", "path", l.path, "err", err)
		return fmt.Errorf("commandlog: clear: %w", err)
	}
	log.Info("Command log cleared", "path", l.path)
	return nil
}

func (l *FileLog) Stats(_ context.Context) (Stats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := Stats{Location: l.path}
	info, err := os.Stat(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("commandlog: stat: %w", err)
	}

	lines, err := l.readLines()
	if err != nil {
		return st, err
	}
	st.Exists = true
	st.Entries = len(lines)
	st.Commands = len(tokensOf(lines))
	st.Size = info.Size()
	st.Modified = info.ModTime()
	return st, nil
}

func (l *FileLog) Recent(ctx context.Context, n int) ([]string, error) {
	lines, err := l.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return lastN(lines, n), nil
}

func (l *FileLog) Export(_ context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("commandlog: export: %w", err)
	}
	return string(data), nil
}

func (l *FileLog) HasCommands(_ context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	info, err := os.Stat(l.path)
	return err == nil && info.Size() > 0
}

func (l *FileLog) Close() error {
	return nil
}

func (l *FileLog) readLines() ([]string, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		log.Error("Failed to read command log", "path", l.path, "err", err)
		return nil, fmt.Errorf("commandlog: open: %w", err)
	}
	defer f.Close()

	// No line length cap; blank lines are entries too.
	lines := []string{}
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			lines = append(lines, strings.TrimRight(line, "\r\n"))
		}
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			log.Error("Failed to read command log", "path", l.path, "err", err)
			return nil, fmt.Errorf("commandlog: read: %w", err)
		}
	}
}
