package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"github.com/ytkinroman/trans-app/internal/gateway"
	"github.com/ytkinroman/trans-app/internal/logger"
	"github.com/ytkinroman/trans-app/internal/transport"
)

// State represents the current state of the gateway connection
type State int32

const (
	// StateDisconnected indicates there is no usable connection
	StateDisconnected State = iota
	// StateConnecting is held only while Connect runs
	StateConnecting
	// StateLive indicates the connection is open and a session id is known
	StateLive
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateLive:
		return "live"
	default:
		return "unknown"
	}
}

// Session identifies one logical conversation with the gateway
type Session struct {
	ID          string
	ConnectedAt time.Time
	Live        bool
}

// Config holds client configuration
type Config struct {
	// URL is the gateway's WebSocket endpoint
	URL string
	// ConnectTimeout bounds dialing
	ConnectTimeout time.Duration
	// HelloTimeout bounds the wait for the first message after dialing
	HelloTimeout time.Duration
	// MaxReconnectAttempts is the number of connect attempts one Reconnect makes
	MaxReconnectAttempts int
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:       10 * time.Second,
		HelloTimeout:         10 * time.Second,
		MaxReconnectAttempts: 3,
	}
}

// Stats counts connection activity
type Stats struct {
	ConnectAttempts    int64
	Connects           int64
	ReconnectSequences int64
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithStateCallback registers the callback invoked on every state change.
// It runs with the client's lock held and must not call back into the client.
func WithStateCallback(fn func(State, error)) Option {
	return func(c *Client) {
		c.onState = fn
	}
}

// Client owns the streaming connection to the gateway and the session bound to it
type Client struct {
	cfg    Config
	dialer transport.Dialer
	log    *logger.Logger

	// mu serializes connect, disconnect and state reads. Reads from the
	// socket run on a snapshot outside mu so Disconnect can interrupt them.
	mu         sync.Mutex
	state      State
	conn       transport.Conn
	session    Session
	generation uint64

	reconnects singleflight.Group
	onState    func(State, error)

	connectAttempts    atomic.Int64
	connects           atomic.Int64
	reconnectSequences atomic.Int64
}

// NewClient creates a client for cfg.URL. It does not connect.
func NewClient(cfg Config, dialer transport.Dialer, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("gateway websocket url is required")
	}
	if dialer == nil {
		return nil, errors.New("dialer is required")
	}

	defaults := DefaultConfig()
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	if cfg.HelloTimeout <= 0 {
		cfg.HelloTimeout = defaults.HelloTimeout
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = defaults.MaxReconnectAttempts
	}

	c := &Client{
		cfg:    cfg,
		dialer: dialer,
		log:    logger.Global().WithPrefix("session"),
		state:  StateDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Connect opens the connection and waits for the session id. It is a no-op
// when the client is already live.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.state == StateLive && c.conn != nil && c.conn.Open() {
		return nil
	}
	c.closeLocked(nil)

	c.setStateLocked(StateConnecting, nil)
	c.connectAttempts.Add(1)

	dialCtx, cancelDial := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	conn, err := c.dialer.Dial(dialCtx, c.cfg.URL)
	cancelDial()
	if err != nil {
		err = gateway.NewError(gateway.KindConnectionUnavailable, "connect", err)
		c.log.Error("Failed to connect to %s: %v", c.cfg.URL, err)
		c.setStateLocked(StateDisconnected, err)
		return err
	}

	helloCtx, cancelHello := context.WithTimeout(ctx, c.cfg.HelloTimeout)
	data, err := conn.ReadMessage(helloCtx)
	cancelHello()
	if err != nil {
		_ = conn.Close()
		err = gateway.NewError(gateway.KindConnectionUnavailable, "read hello", err)
		c.log.Error("No greeting from gateway: %v", err)
		c.setStateLocked(StateDisconnected, err)
		return err
	}

	id, err := gateway.ParseSessionID(data)
	if err != nil {
		_ = conn.Close()
		c.log.Error("Failed to obtain session id: %v", err)
		c.setStateLocked(StateDisconnected, err)
		return err
	}

	c.conn = conn
	c.generation++
	c.session = Session{ID: id, ConnectedAt: time.Now(), Live: true}
	c.connects.Add(1)
	c.setStateLocked(StateLive, nil)
	c.log.Info("Connected to %s, session_id=%s", c.cfg.URL, id)
	return nil
}

// IsAlive reports whether the client is live and the socket is open. It does
// not talk to the gateway; a peer that vanished without a close frame is only
// noticed by the next read or keepalive ping.
func (c *Client) IsAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateLive {
		return false
	}
	if c.conn == nil || !c.conn.Open() {
		c.log.Warn("Connection for session %s is no longer open", c.session.ID)
		c.closeLocked(gateway.NewError(gateway.KindConnectionUnavailable, "liveness", transport.ErrClosed))
		return false
	}
	return true
}

// SessionID returns the current session id, or "" unless live
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateLive {
		return ""
	}
	return c.session.ID
}

// Session returns a snapshot of the current session
func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// State returns the connection state. An in-progress connect reports as
// disconnected.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateConnecting {
		return StateDisconnected
	}
	return c.state
}

// Stats returns connection counters
func (c *Client) Stats() Stats {
	return Stats{
		ConnectAttempts:    c.connectAttempts.Load(),
		Connects:           c.connects.Load(),
		ReconnectSequences: c.reconnectSequences.Load(),
	}
}

// ReceiveNext blocks until the gateway pushes the next message and parses it
// as a translation result. Losing the connection moves the client to
// StateDisconnected; retrying is left to the caller. Only one goroutine may
// receive at a time.
func (c *Client) ReceiveNext(ctx context.Context) (gateway.Result, error) {
	c.mu.Lock()
	if c.state != StateLive || c.conn == nil {
		c.mu.Unlock()
		return gateway.Result{}, gateway.NewError(gateway.KindConnectionUnavailable, "receive", errors.New("not connected"))
	}
	conn, gen, id := c.conn, c.generation, c.session.ID
	c.mu.Unlock()

	data, err := conn.ReadMessage(ctx)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			err = gateway.NewError(gateway.KindTimeout, "receive", err)
		default:
			err = gateway.NewError(gateway.KindConnectionUnavailable, "receive", err)
		}
		c.dropIfCurrent(gen, err)
		return gateway.Result{}, err
	}

	c.log.Debug("Message for session %s: %s", id, truncateForLog(data))
	return gateway.ParseResult(data)
}

// Reconnect waits delay, then replaces the connection, making up to
// MaxReconnectAttempts attempts with the same delay between them. Concurrent
// callers share one sequence and all receive its outcome. A client found live
// on an open connection, for example one restored by another caller after
// this caller's liveness check, is kept as is.
func (c *Client) Reconnect(ctx context.Context, delay time.Duration) error {
	ch := c.reconnects.DoChan("reconnect", func() (interface{}, error) {
		return nil, c.reconnect(ctx, delay)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return gateway.NewError(gateway.KindConnectionUnavailable, "reconnect", ctx.Err())
	}
}

func (c *Client) reconnect(ctx context.Context, delay time.Duration) error {
	c.mu.Lock()
	live := c.liveLocked()
	c.mu.Unlock()
	if live {
		c.log.Debug("Connection already live, not reconnecting")
		return nil
	}

	c.reconnectSequences.Add(1)
	attempts := c.cfg.MaxReconnectAttempts

	c.log.Info("Reconnecting in %v (up to %d attempts)", delay, attempts)
	if err := sleepContext(ctx, delay); err != nil {
		return gateway.NewError(gateway.KindConnectionUnavailable, "reconnect", err)
	}

	attempt := 0
	operation := func() error {
		attempt++

		c.mu.Lock()
		defer c.mu.Unlock()

		if c.liveLocked() {
			c.log.Debug("Connection already restored, skipping attempt")
			return nil
		}

		c.log.Info("Reconnect attempt %d/%d", attempt, attempts)
		c.closeLocked(nil)
		if err := c.connectLocked(ctx); err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(attempts-1)),
		ctx,
	)
	err := backoff.RetryNotify(operation, policy, func(err error, next time.Duration) {
		c.log.Warn("Reconnect attempt %d failed, retrying in %v: %v", attempt, next, err)
	})
	if err != nil {
		c.log.Error("All %d reconnect attempts failed: %v", attempt, err)
		return gateway.NewError(gateway.KindConnectionUnavailable, "reconnect", err)
	}
	return nil
}

// Disconnect closes the connection and clears the session. It is idempotent
// and unblocks a goroutine parked in ReceiveNext.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil || c.state != StateDisconnected {
		c.log.Info("Disconnecting session %s", c.session.ID)
	}
	c.closeLocked(nil)
	return nil
}

func (c *Client) closeLocked(cause error) {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.log.Debug("Error closing connection: %v", err)
		}
		c.conn = nil
	}
	c.session = Session{}
	c.setStateLocked(StateDisconnected, cause)
}

func (c *Client) liveLocked() bool {
	return c.state == StateLive && c.conn != nil && c.conn.Open()
}

// dropIfCurrent tears down the connection a failed read was using, unless a
// reconnect already replaced it
func (c *Client) dropIfCurrent(gen uint64, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen || c.conn == nil {
		return
	}
	c.log.Warn("Connection for session %s lost: %v", c.session.ID, cause)
	c.closeLocked(cause)
}

func (c *Client) setStateLocked(state State, err error) {
	old := c.state
	c.state = state
	if c.onState != nil && old != state {
		c.onState(state, err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncateForLog(data []byte) string {
	const limit = 256
	if len(data) <= limit {
		return string(data)
	}
	return fmt.Sprintf("%s... (%d bytes)", data[:limit], len(data))
}
