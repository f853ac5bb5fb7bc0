package server

import (
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hactazia/quiznet/internal/metrics"
)

const (
	defaultSendQueueSize = 64
	defaultWriteTimeout  = 5 * time.Second
)

// Client is one connected quiz client. Responses and game events share a
// single per-client write queue, so a reply can never overtake the events
// queued before it.
type Client struct {
	id   int64
	conn net.Conn
	ip   string

	authenticated atomic.Bool

	mu        sync.Mutex
	pseudo    string
	sessionID int64 // 0 = not seated in any session

	sendCh    chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once

	writeTimeout time.Duration
}

// NewClient creates the client state for a fresh connection.
func NewClient(id int64, conn net.Conn, sendQueueSize int, writeTimeout time.Duration) *Client {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}
	if sendQueueSize <= 0 {
		sendQueueSize = defaultSendQueueSize
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Client{
		id:           id,
		conn:         conn,
		ip:           host,
		sendCh:       make(chan []byte, sendQueueSize),
		closeCh:      make(chan struct{}),
		writeTimeout: writeTimeout,
	}
}

// ID returns the connection-scoped client id.
func (c *Client) ID() int64 {
	return c.id
}

// IP returns the client's remote IP address.
func (c *Client) IP() string {
	return c.ip
}

// Authenticated reports whether the client passed player/login.
func (c *Client) Authenticated() bool {
	return c.authenticated.Load()
}

// SetAuthenticated marks the client as logged in.
func (c *Client) SetAuthenticated(v bool) {
	c.authenticated.Store(v)
}

// Pseudo returns the pseudo bound at login, "" before that.
func (c *Client) Pseudo() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pseudo
}

// SetPseudo binds the logged-in pseudo.
func (c *Client) SetPseudo(pseudo string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pseudo = pseudo
}

// SessionID returns the session the client sits in, 0 for none.
func (c *Client) SessionID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// SetSessionID binds the client to a session. Zero clears the binding.
func (c *Client) SetSessionID(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = id
}

// writePump is the dedicated writer goroutine for this client. It batches
// queued payloads into a single writev when the queue backs up.
func (c *Client) writePump() {
	bufs := make(net.Buffers, 0, 16)

	for {
		select {
		case payload, ok := <-c.sendCh:
			if !ok {
				return
			}

			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				slog.Warn("set write deadline failed", "client", c.ip, "error", err)
				return
			}

			queued := len(c.sendCh)
			if queued == 0 {
				if _, err := c.conn.Write(payload); err != nil {
					slog.Warn("write failed", "client", c.ip, "error", err)
					return
				}
				continue
			}

			bufs = bufs[:0]
			bufs = append(bufs, payload)
			for range queued {
				bufs = append(bufs, <-c.sendCh)
			}
			if _, err := bufs.WriteTo(c.conn); err != nil {
				slog.Warn("batch write failed", "client", c.ip, "error", err)
				return
			}

		case <-c.closeCh:
			return
		}
	}
}

// Send queues a payload for async delivery. Non-blocking: a full queue
// means the client stopped reading, so it gets disconnected instead of
// stalling a game round.
func (c *Client) Send(payload []byte) {
	select {
	case c.sendCh <- payload:
	default:
		metrics.SendQueueDrops.Inc()
		slog.Warn("send queue full, disconnecting slow client", "client", c.ip, "pseudo", c.Pseudo())
		c.CloseAsync()
	}
}

// CloseAsync stops the writePump and closes the socket without blocking.
// Closing the connection is what unblocks a reader parked in Read, so the
// server's deferred cleanup (leave session, deregister) always runs.
// Safe to call multiple times.
func (c *Client) CloseAsync() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		if err := c.conn.Close(); err != nil {
			slog.Debug("close failed", "client", c.ip, "error", err)
		}
	})
}

// Close closes the connection and stops the writePump.
func (c *Client) Close() error {
	c.CloseAsync()
	return nil
}
