// Package live keeps a value in sync with a server push feed over a
// WebSocket. A Channel reconnects on its own and exposes the latest value
// and error for the caller to render.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/tl-its-umich-edu/remote-office-hours-queue-sub000/internal/logging"
)

const (
	DefaultMaxRetries = 10

	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 10 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
)

// Option configures a Channel.
type Option func(*options)

type options struct {
	maxRetries   int
	baseDelay    time.Duration
	maxDelay     time.Duration
	pingInterval time.Duration
	pongTimeout  time.Duration
	dialer       *websocket.Dialer
	logger       *logrus.Entry
	deleteErr    string
}

// WithMaxRetries bounds the consecutive reconnects made without receiving a
// message. The first connection is not a retry, so the feed dials at most
// n+1 times in a row.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxRetries = n
		}
	}
}

// WithBackoff sets the first reconnect delay and its cap. The delay doubles
// after every failed attempt.
func WithBackoff(base, max time.Duration) Option {
	return func(o *options) {
		if base > 0 {
			o.baseDelay = base
		}
		if max >= o.baseDelay {
			o.maxDelay = max
		}
	}
}

// WithKeepalive sets how often pings go out and how long to wait for
// traffic before treating the connection as dead.
func WithKeepalive(ping, pong time.Duration) Option {
	return func(o *options) {
		if ping > 0 {
			o.pingInterval = ping
		}
		if pong > 0 {
			o.pongTimeout = pong
		}
	}
}

func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

func WithLogger(l *logrus.Entry) Option {
	return func(o *options) { o.logger = l }
}

// withDeleteError makes a deleted message surface msg as a terminal error
// after the delete handler runs.
func withDeleteError(msg string) Option {
	return func(o *options) { o.deleteErr = msg }
}

// State is a consistent view of a channel at one instant. Before the first
// message both Value and Err are unset.
type State[T any] struct {
	Value    T
	HasValue bool
	Err      error
	Closed   bool
}

// Channel follows one feed URL. The handlers passed to Open run on the
// channel's goroutine, one message at a time in receipt order.
type Channel[T any] struct {
	url    string
	opts   options
	log    *logrus.Entry
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	onUpdate func(T)
	onDelete func()
	value    T
	hasValue bool
	err      error
	closing  bool
	closed   bool
	conn     *websocket.Conn

	writeMu   sync.Mutex // serialises control frames and pings
	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Open starts following url and returns at once. onDelete may be nil, in
// which case a deleted message is a terminal error. Cancelling ctx has the
// same effect as Close.
func Open[T any](ctx context.Context, url string, onUpdate func(T), onDelete func(), opts ...Option) *Channel[T] {
	o := options{
		maxRetries:   DefaultMaxRetries,
		baseDelay:    reconnectBaseDelay,
		maxDelay:     reconnectMaxDelay,
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
		dialer:       websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Discard()
	}

	c := &Channel[T]{
		url:      url,
		opts:     o,
		log:      o.logger.WithField("url", url),
		onUpdate: onUpdate,
		onDelete: onDelete,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	c.ctx, c.cancel = context.WithCancel(ctx)

	go c.run()
	go func() {
		<-c.ctx.Done()
		c.Close()
	}()
	return c
}

// URL returns the feed address.
func (c *Channel[T]) URL() string {
	return c.url
}

// State returns the current value, error and whether the channel stopped.
func (c *Channel[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State[T]{Value: c.value, HasValue: c.hasValue, Err: c.err, Closed: c.closed}
}

// Value returns the last good value. The value survives transient errors.
func (c *Channel[T]) Value() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.hasValue
}

// Err returns the current error, or nil when the channel is healthy.
func (c *Channel[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Notify returns a channel that receives after any state change. Signals
// coalesce; read State after each one.
func (c *Channel[T]) Notify() <-chan struct{} {
	return c.notify
}

// Done is closed once the channel has stopped for good.
func (c *Channel[T]) Done() <-chan struct{} {
	return c.done
}

// Close detaches the handlers and closes the connection with a normal
// closure. It does not wait for the run loop and is safe to call more than
// once, including from inside a handler.
//
// Called from a handler, no further handler runs. Called from another
// goroutine, at most one handler call already taken from the channel may
// still run after Close returns.
func (c *Channel[T]) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closing = true
		c.onUpdate = nil
		c.onDelete = nil
		conn := c.conn
		c.mu.Unlock()

		c.cancel()
		if conn != nil {
			c.closeConn(conn, websocket.CloseNormalClosure)
		}
		c.log.Debug("live channel closed")
	})
}

func (c *Channel[T]) run() {
	defer close(c.done)
	defer c.finish()

	attempts := 0
	delay := c.opts.baseDelay
	for {
		if c.ctx.Err() != nil {
			return
		}

		c.log.WithField("attempt", attempts+1).Debug("live dial")
		conn, _, err := c.opts.dialer.DialContext(c.ctx, c.url, nil)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.setErr(&ConnectionError{Message: msgUnexpected, Err: err})
		} else {
			if !c.attach(conn) {
				conn.Close()
				return
			}
			received, retry := c.serve(conn)
			c.detach(conn)
			if !retry {
				return
			}
			if received {
				attempts = 0
				delay = c.opts.baseDelay
			}
		}

		attempts++
		if attempts > c.opts.maxRetries {
			c.setErr(retriesExhaustedError(c.opts.maxRetries, c.Err()))
			return
		}
		if !c.sleep(delay) {
			return
		}
		delay = min(delay*2, c.opts.maxDelay)
	}
}

// serve reads from conn until it fails. It reports whether any message
// arrived and whether the loop should reconnect.
func (c *Channel[T]) serve(conn *websocket.Conn) (received, retry bool) {
	pingCtx, stopPing := context.WithCancel(c.ctx)
	defer stopPing()
	go c.pingLoop(pingCtx, conn)

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.opts.pongTimeout))
	})
	conn.SetReadDeadline(time.Now().Add(c.opts.pongTimeout))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return received, c.handleClose(err)
		}
		received = true
		conn.SetReadDeadline(time.Now().Add(c.opts.pongTimeout))
		if !c.handleMessage(conn, data) {
			return received, false
		}
	}
}

func (c *Channel[T]) handleClose(err error) bool {
	if c.ctx.Err() != nil {
		return false
	}

	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		c.setErr(&ConnectionError{Message: msgUnexpected, Err: err})
		return true
	}

	log := c.log.WithField("code", ce.Code)
	switch ce.Code {
	case CloseNotFound:
		log.Info("live feed resource no longer exists")
		return false
	case CloseForbidden:
		c.setErr(&ConnectionError{Code: ce.Code, Message: msgForbidden, Err: err})
		return true
	case websocket.CloseInternalServerErr:
		c.setErr(&ConnectionError{Code: ce.Code, Terminal: true, Message: msgSystem, Err: err})
		return false
	case websocket.CloseGoingAway:
		log.Debug("live feed going away")
		return false
	case websocket.CloseAbnormalClosure:
		c.setErr(&ConnectionError{Code: ce.Code, Message: msgUnexpected, Err: err})
		return true
	default:
		c.setErr(unexpectedCloseError(ce.Code, err))
		return true
	}
}

// handleMessage applies one frame and reports whether to keep reading.
func (c *Channel[T]) handleMessage(conn *websocket.Conn, data []byte) bool {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.setErr(&ConnectionError{Message: msgDecode, Err: err})
		return true
	}

	switch env.Type {
	case MsgInit, MsgUpdate:
		var v T
		if err := json.Unmarshal(env.Content, &v); err != nil {
			c.setErr(&ConnectionError{Message: msgDecode, Err: err})
			return true
		}
		c.mu.Lock()
		if c.closing {
			c.mu.Unlock()
			return false
		}
		c.value = v
		c.hasValue = true
		if c.err != nil && !IsTerminal(c.err) {
			c.err = nil
		}
		// The handler is taken under the same lock that Close uses to
		// detach it, so a message read after Close is never delivered.
		onUpdate := c.onUpdate
		c.mu.Unlock()

		if onUpdate != nil {
			onUpdate(v)
		}
		c.signal()
		return true

	case MsgDeleted:
		c.mu.Lock()
		onDelete := c.onDelete
		closing := c.closing
		c.mu.Unlock()
		if closing {
			return false
		}
		if onDelete != nil {
			onDelete()
			if c.opts.deleteErr != "" {
				c.setErr(&ConnectionError{Code: CloseNotFound, Terminal: true, Message: c.opts.deleteErr})
			}
			return true
		}
		c.setErr(&ConnectionError{Code: CloseNotFound, Terminal: true, Message: msgDeleted})
		c.closeConn(conn, websocket.CloseNormalClosure)
		return false

	default:
		c.log.WithField("type", env.Type).Debug("ignoring unknown live message")
		return true
	}
}

// pingLoop sends periodic pings on conn until ctx is cancelled or a write
// fails.
func (c *Channel[T]) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.opts.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				c.log.WithError(err).Debug("live ping failed")
				return
			}
		}
	}
}

func (c *Channel[T]) attach(conn *websocket.Conn) bool {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return false
	}
	c.conn = conn
	c.err = nil
	c.mu.Unlock()

	c.log.Debug("live connected")
	c.signal()
	return true
}

func (c *Channel[T]) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close()
}

func (c *Channel[T]) closeConn(conn *websocket.Conn, code int) {
	c.writeMu.Lock()
	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, ""), time.Now().Add(writeTimeout))
	c.writeMu.Unlock()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.log.WithError(err).Debug("live close frame not sent")
	}
	conn.Close()
}

func (c *Channel[T]) setErr(err *ConnectionError) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()

	entry := c.log.WithField("code", err.Code)
	if err.Err != nil {
		entry = entry.WithError(err.Err)
	}
	if err.Terminal {
		entry.Error(err.Message)
	} else {
		entry.Warn(err.Message)
	}
	c.signal()
}

func (c *Channel[T]) finish() {
	c.mu.Lock()
	c.closed = true
	c.conn = nil
	c.mu.Unlock()
	c.cancel()
	c.signal()
}

func (c *Channel[T]) signal() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *Channel[T]) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-c.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
