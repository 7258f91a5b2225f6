package protocol

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

var ErrClosed = errors.New("protocol: client closed")

type Config struct {
	URL       string
	Shard     string        // our address on the hub
	Timeout   time.Duration // per request; 0 waits for ctx only
	Reconnect time.Duration // pause between redial attempts
	// Unsolicited receives frames for us that answer no pending request.
	Unsolicited func(*Message)
}

// Client is a websocket connection to the hub. One request is in flight
// at a time; Run must be running for replies to arrive.
type Client struct {
	cfg Config

	connMu sync.Mutex
	conn   *ws.Conn

	reqMu sync.Mutex // serialises Request

	waiterMu sync.Mutex
	waiter   chan *Message

	closed chan struct{}
	once   sync.Once
}

func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Shard == "" {
		return nil, errors.New("protocol: empty shard")
	}
	if cfg.Reconnect <= 0 {
		cfg.Reconnect = time.Second
	}
	log.Debug("Dialing hub", "url", cfg.URL, "shard", cfg.Shard)

	conn, _, err := ws.DefaultDialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("protocol: dial %s: %w", cfg.URL, err)
	}
	return &Client{cfg: cfg, conn: conn, closed: make(chan struct{})}, nil
}

// Send writes m with our shard as sender and does not wait for an answer.
func (c *Client) Send(m Message) error {
	m.From = c.cfg.Shard
	payload := m.String()
	log.Debug("Write ws", "msg", payload)

	c.connMu.Lock()
	defer c.connMu.Unlock()
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	return c.conn.WriteMessage(ws.TextMessage, []byte(payload))
}

// Request sends m and waits for the next frame addressed to us.
func (c *Client) Request(ctx context.Context, m Message) (*Message, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	w := c.installWaiter()
	defer c.clearWaiter()

	if err := c.Send(m); err != nil {
		return nil, err
	}

	select {
	case reply := <-w:
		return reply, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("protocol: waiting for %s:%s: %w", m.Verb, m.Noun, ctx.Err())
	case <-c.closed:
		return nil, ErrClosed
	}
}

// Run reads frames until ctx is done or Close is called, redialing when
// the hub drops the connection.
func (c *Client) Run(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.closed:
		}
	}()

	for {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				return ctx.Err()
			default:
			}
			if isClosed(err) {
				log.Warn("Trying to reconnect on", "url", c.cfg.URL)
				if err := c.redial(ctx); err != nil {
					return err
				}
				log.Info("Successfully reconnected")
				continue
			}
			log.Error("Failed to read", "err", err)
			if err := c.redial(ctx); err != nil {
				return err
			}
			continue
		}

		line := string(raw)
		log.Debug("Read ws", "msg", line)
		if Recipient(line) != c.cfg.Shard {
			continue
		}
		msg, err := Parse(line)
		if err != nil {
			log.Warn("Failed to parse", "msg", line, "err", err)
			continue
		}
		c.deliver(msg)
	}
}

func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		c.connMu.Lock()
		defer c.connMu.Unlock()
		close(c.closed)
		_ = c.conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
		err = c.conn.Close()
	})
	return err
}

func (c *Client) deliver(msg *Message) {
	c.waiterMu.Lock()
	w := c.waiter
	if w != nil {
		c.waiter = nil
	}
	c.waiterMu.Unlock()

	if w != nil {
		w <- msg
		return
	}
	if c.cfg.Unsolicited != nil {
		c.cfg.Unsolicited(msg)
	}
}

func (c *Client) redial(ctx context.Context) error {
	for {
		conn, _, err := ws.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
		if err == nil {
			c.connMu.Lock()
			c.conn.Close()
			c.conn = conn
			c.connMu.Unlock()
			return nil
		}

		t := time.NewTimer(c.cfg.Reconnect)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-c.closed:
			t.Stop()
			return ErrClosed
		case <-t.C:
		}
	}
}

func (c *Client) installWaiter() chan *Message {
	c.waiterMu.Lock()
	defer c.waiterMu.Unlock()
	c.waiter = make(chan *Message, 1)
	return c.waiter
}

func (c *Client) clearWaiter() {
	c.waiterMu.Lock()
	defer c.waiterMu.Unlock()
	c.waiter = nil
}

func isClosed(err error) bool {
	return ws.IsCloseError(err,
		ws.CloseNormalClosure,
		ws.CloseGoingAway,
		ws.CloseAbnormalClosure)
}
