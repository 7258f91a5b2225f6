// Package ipc carries control requests to the daemon over a unix socket,
// one JSON request and one JSON reply per connection.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"time"
)

const SocketPath = "/tmp/speechcmd.sock"

type ControlMessage struct {
	Cmd  string   `json:"cmd"`
	Args []string `json:"args,omitempty"`
}

type Reply struct {
	OK      bool           `json:"ok"`
	Message string         `json:"message,omitempty"`
	Lines   []string       `json:"lines,omitempty"`
	Stats   map[string]any `json:"stats,omitempty"`
}

// Handler answers one control message.
type Handler func(ctx context.Context, msg ControlMessage) Reply

// Server accepts control connections until Close.
type Server struct {
	path   string
	ln     net.Listener
	cancel context.CancelFunc
	done   chan struct{}
}

// Listen removes a stale socket at path, listens on it and serves handler
// in the background.
func Listen(ctx context.Context, path string, handler Handler) (*Server, error) {
	if path == "" {
		path = SocketPath
	}
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("ipc: listen: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Server{path: path, ln: ln, cancel: cancel, done: make(chan struct{})}
	go s.serve(ctx, handler)
	return s, nil
}

func (s *Server) Path() string {
	return s.path
}

func (s *Server) serve(ctx context.Context, handler Handler) {
	defer close(s.done)
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn("Failed to accept control connection", "err", err)
			continue
		}
		go handleConn(ctx, conn, handler)
	}
}

// Close stops accepting, cancels in-flight handlers and removes the socket.
func (s *Server) Close() error {
	s.cancel()
	err := s.ln.Close()
	<-s.done
	os.Remove(s.path)
	return err
}

func handleConn(ctx context.Context, conn net.Conn, handler Handler) {
	defer conn.Close()

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		log.Warn("Malformed control message", "err", err)
		_ = json.NewEncoder(conn).Encode(Reply{Message: "malformed request"})
		return
	}
	log.Debug("Control message", "cmd", msg.Cmd, "args", msg.Args)

	reply := handler(ctx, msg)
	if err := json.NewEncoder(conn).Encode(reply); err != nil {
		log.Warn("Failed to write control reply", "err", err)
	}
}

// Send delivers msg to the daemon at path and waits for its reply. A zero
// timeout waits as long as ctx allows.
func Send(ctx context.Context, path string, msg ControlMessage, timeout time.Duration) (Reply, error) {
	if path == "" {
		path = SocketPath
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return Reply{}, err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return Reply{}, fmt.Errorf("ipc: send: %w", err)
	}
	var reply Reply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return Reply{}, fmt.Errorf("ipc: read reply: %w", err)
	}
	return reply, nil
}
