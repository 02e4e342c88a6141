// Package transport provides the message-oriented streaming connection the
// session client owns. The gateway speaks WebSocket; Conn and Dialer exist so
// the session client can be exercised against fakes.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a control frame to the peer.
	writeWait = 10 * time.Second

	// Maximum message size accepted from the gateway.
	maxMessageSize = 1 << 20
)

// ErrClosed is returned by ReadMessage once the connection is closed
var ErrClosed = errors.New("connection closed")

// Conn is a bidirectional message connection to one remote endpoint
type Conn interface {
	// ReadMessage blocks until the next message arrives, ctx is done, or the
	// connection fails. A read interrupted by ctx leaves the connection unusable.
	ReadMessage(ctx context.Context) ([]byte, error)
	// Open reports whether the connection still considers itself usable
	Open() bool
	// Close closes the connection. Safe to call more than once.
	Close() error
}

// Dialer opens Conns
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebSocketDialer dials gorilla/websocket connections
type WebSocketDialer struct {
	// HandshakeTimeout bounds the opening handshake
	HandshakeTimeout time.Duration
	// PingInterval is the keepalive period; zero disables pings
	PingInterval time.Duration
	// Header is sent with the handshake request
	Header http.Header
}

// NewWebSocketDialer returns a dialer with the given keepalive period
func NewWebSocketDialer(handshakeTimeout, pingInterval time.Duration) *WebSocketDialer {
	return &WebSocketDialer{
		HandshakeTimeout: handshakeTimeout,
		PingInterval:     pingInterval,
	}
}

// Dial connects to url
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}

	ws, resp, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake with %s failed (status %d): %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	return newWSConn(ws, d.PingInterval), nil
}

type wsConn struct {
	ws        *websocket.Conn
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

func newWSConn(ws *websocket.Conn, pingInterval time.Duration) *wsConn {
	c := &wsConn{
		ws:   ws,
		done: make(chan struct{}),
	}
	ws.SetReadLimit(maxMessageSize)

	if pingInterval > 0 {
		go c.keepalive(pingInterval)
	}
	return c
}

// ReadMessage reads the next text or binary message
func (c *wsConn) ReadMessage(ctx context.Context) ([]byte, error) {
	if !c.Open() {
		return nil, ErrClosed
	}

	// Unblock the read when ctx ends. gorilla marks the connection broken
	// after a deadline-triggered failure, so the conn is closed below.
	var (
		mu       sync.Mutex
		finished bool
	)
	stop := context.AfterFunc(ctx, func() {
		mu.Lock()
		defer mu.Unlock()
		if !finished {
			_ = c.ws.SetReadDeadline(time.Now())
		}
	})
	defer func() {
		stop()
		mu.Lock()
		finished = true
		mu.Unlock()
	}()

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			c.markClosed()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: %v", ErrClosed, err)
		}
		if msgType == websocket.TextMessage || msgType == websocket.BinaryMessage {
			mu.Lock()
			finished = true
			if ctx.Err() != nil {
				// the deadline may already be in place; clear it for the next read
				_ = c.ws.SetReadDeadline(time.Time{})
			}
			mu.Unlock()
			return data, nil
		}
	}
}

// Open reports whether the connection is usable
func (c *wsConn) Open() bool {
	return !c.closed.Load()
}

// Close sends a close frame and releases the connection
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}

func (c *wsConn) markClosed() {
	c.closed.Store(true)
}

// keepalive pings the gateway so a dead peer is noticed without waiting
// for the next read
func (c *wsConn) keepalive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.markClosed()
				return
			}
		}
	}
}
