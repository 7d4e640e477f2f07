package broadcast

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/models"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/pkg/logger"
)

var (
	ErrConnClosed  = errors.New("connection closed")
	ErrSendTimeout = errors.New("send buffer full")
)

const (
	// Per-connection outbound queue. Sized for bursts; a consumer that
	// stays this far behind is dropped.
	defaultSendBuffer = 64

	// DefaultSendTimeout bounds how long a publish waits on one
	// connection's queue before that connection is dropped.
	DefaultSendTimeout = 500 * time.Millisecond

	writeWait = 10 * time.Second
)

// Subscriber is one registered consumer of a channel. The websocket Conn is
// the production implementation; tests substitute fakes.
type Subscriber interface {
	ID() string
	Actor() models.Actor
	// Send enqueues a frame for delivery. It must preserve enqueue order
	// and return an error (never block indefinitely) when the consumer
	// cannot accept delivery; the hub then drops the subscriber.
	Send(frame Frame) error
}

// Conn wraps one websocket connection with a buffered send queue serviced by
// a single writer goroutine, so one slow socket never blocks a publisher.
type Conn struct {
	id          string
	actor       models.Actor
	ws          *websocket.Conn
	send        chan interface{} // Frame or ErrorFrame
	sendTimeout time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

// NewConn registers queue state for a connection. ws may be nil in tests;
// the write pump is only started via Run.
func NewConn(id string, actor models.Actor, ws *websocket.Conn, sendTimeout time.Duration) *Conn {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	return &Conn{
		id:          id,
		actor:       actor,
		ws:          ws,
		send:        make(chan interface{}, defaultSendBuffer),
		sendTimeout: sendTimeout,
		closed:      make(chan struct{}),
	}
}

func (c *Conn) ID() string          { return c.id }
func (c *Conn) Actor() models.Actor { return c.actor }

// Send enqueues a frame. If the queue is full past the send timeout the
// caller gets ErrSendTimeout and is expected to drop this connection.
func (c *Conn) Send(frame Frame) error {
	return c.enqueue(frame)
}

// SendError enqueues an error frame (e.g. a rejected subscribe).
func (c *Conn) SendError(ef ErrorFrame) error {
	return c.enqueue(ef)
}

func (c *Conn) enqueue(v interface{}) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}

	timer := time.NewTimer(c.sendTimeout)
	defer timer.Stop()

	select {
	case c.send <- v:
		return nil
	case <-c.closed:
		return ErrConnClosed
	case <-timer.C:
		return ErrSendTimeout
	}
}

// Run services the send queue until the connection closes. Call in its own
// goroutine after the websocket handshake.
func (c *Conn) Run() {
	defer c.Close()
	for {
		select {
		case v := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(v); err != nil {
				logger.Debug().Err(err).Str("conn_id", c.id).Msg("socket write failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

// Close tears the connection down. Safe to call multiple times.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.ws != nil {
			c.ws.Close()
		}
	})
}

// Closed reports whether the connection has been torn down.
func (c *Conn) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}
