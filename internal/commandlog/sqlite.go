package commandlog

import (
	"context"
	"database/sql"
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"speechcmd/pkg/command"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite keeps the log in a single table. Each row stores the rendered line
// so ReadAll returns exactly what the text backend would.
type SQLite struct {
	mu   sync.Mutex
	conn *sql.DB
	path string
	now  func() time.Time
}

func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = "speech_commands.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("commandlog: create dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("commandlog: open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	s := &SQLite{conn: conn, path: path, now: time.Now}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("commandlog: migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			line TEXT NOT NULL,
			token TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_entries_token ON entries(token);
	`)
	return err
}

// WithClock replaces the timestamp source.
func (s *SQLite) WithClock(now func() time.Time) *SQLite {
	s.now = now
	return s
}

func (s *SQLite) Location() string {
	return s.path
}

func (s *SQLite) Append(ctx context.Context, token command.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.now()
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO entries (line, token, created_at) VALUES (?, ?, ?)`,
		FormatEntry(at, token), string(token), at.UnixNano(),
	)
	if err != nil {
		log.Error("Failed to append command", "path", s.path, "token", token, "err", err)
		return fmt.Errorf("commandlog: insert: %w", err)
	}
	return nil
}

func (s *SQLite) ReadAll(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines(ctx, `SELECT line FROM entries ORDER BY id`)
}

func (s *SQLite) ReadTokens(ctx context.Context) ([]command.Token, error) {
	lines, err := s.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return tokensOf(lines), nil
}

func (s *SQLite) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.conn.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		log.Error("Failed to clear command log", "path", s.path, "err", err)
		return fmt.Errorf("commandlog: clear: %w", err)
	}
	log.Info("Command log cleared", "path", s.path)
	return nil
}

func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Location: s.path}
	var (
		size     sql.NullInt64
		modified sql.NullInt64
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*), SUM(LENGTH(CAST(line AS BLOB)) + 1), MAX(created_at) FROM entries`,
	).Scan(&st.Entries, &size, &modified)
	if err != nil {
		return st, fmt.Errorf("commandlog: stats: %w", err)
	}
	if st.Entries == 0 {
		return st, nil
	}

	lines, err := s.lines(ctx, `SELECT line FROM entries ORDER BY id`)
	if err != nil {
		return st, err
	}
	st.Exists = true
	st.Commands = len(tokensOf(lines))
	st.Size = size.Int64
	st.Modified = time.Unix(0, modified.Int64)
	return st, nil
}

func (s *SQLite) Recent(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return []string{}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := s.lines(ctx,
		`SELECT line FROM (SELECT id, line FROM entries ORDER BY id DESC LIMIT ?) ORDER BY id`, n)
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *SQLite) Export(ctx context.Context) (string, error) {
	lines, err := s.ReadAll(ctx)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", nil
	}
	return strings.Join(lines, "\n") + "\n", nil
}

func (s *SQLite) HasCommands(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return false
	}
	return n > 0
}

func (s *SQLite) Close() error {
	return s.conn.Close()
}

func (s *SQLite) lines(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("commandlog: query: %w", err)
	}
	defer rows.Close()

	lines := []string{}
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("commandlog: scan: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
