package wire

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/velotype/velotype/internal/ratelimit"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 90 * time.Second
	maxMessageSize = 8 * 1024
)

// Handler processes one validated inbound frame for a connection. It runs
// on the connection's read goroutine, so it must not block on anything
// that waits on the same connection's write pump.
type Handler func(c *Conn, frame InboundFrame)

// Conn wraps one player's websocket with the rate limiting and heartbeat
// bookkeeping every connection in the room needs, grounded on the
// teacher's WebSocketClient split between a read loop and a ping loop,
// generalized here to a server-side connection with a buffered outbound
// channel instead of a reconnect channel.
type Conn struct {
	UserID string

	ws     *websocket.Conn
	bucket *ratelimit.Bucket
	rtt    *RTTEstimator

	send     chan OutboundFrame
	closed   chan struct{}
	closeOne sync.Once

	handler Handler

	// onRateLimited, if set, is invoked (off the read goroutine is not
	// guaranteed) every time an inbound frame is dropped for exceeding the
	// per-connection rate limit. Wired to the telemetry rate-limit-drop
	// counter by the process that constructs the connection; nil is a
	// valid no-op default.
	onRateLimited func()

	lastPingAt time.Time
	mu         sync.Mutex
}

// WithRateLimitObserver attaches a callback invoked on every rate-limit
// drop, for wiring into an operational metrics counter.
func (c *Conn) WithRateLimitObserver(fn func()) *Conn {
	c.onRateLimited = fn
	return c
}

// NewDetachedConn builds a Conn with no underlying socket: useful for
// orchestration-layer tests (e.g. internal/match) that need a real Conn
// to receive Send() calls but never exercise ReadPump/WritePump.
func NewDetachedConn(userID string) *Conn {
	return &Conn{
		UserID: userID,
		bucket: ratelimit.NewBucket(),
		rtt:    NewRTTEstimator(),
		send:   make(chan OutboundFrame, 64),
		closed: make(chan struct{}),
	}
}

// NewConn wraps an already-upgraded websocket connection.
func NewConn(ws *websocket.Conn, userID string, handler Handler) *Conn {
	ws.SetReadLimit(maxMessageSize)
	c := &Conn{
		UserID:  userID,
		ws:      ws,
		bucket:  ratelimit.NewBucket(),
		rtt:     NewRTTEstimator(),
		send:    make(chan OutboundFrame, 32),
		closed:  make(chan struct{}),
		handler: handler,
	}
	return c
}

// Send enqueues a frame for the write pump. It never blocks the caller
// for longer than it takes to acquire the channel; a connection whose
// outbound buffer is full is considered unhealthy and closed, same as a
// slow consumer in any fan-out broadcast.
func (c *Conn) Send(frame OutboundFrame) {
	select {
	case c.send <- frame:
	case <-c.closed:
	default:
		log.Warn().Str("userId", c.UserID).Msg("wire: outbound buffer full, dropping connection")
		c.Close()
	}
}

// Close idempotently tears down the connection.
func (c *Conn) Close() {
	c.closeOne.Do(func() {
		close(c.closed)
		if c.ws != nil {
			c.ws.Close()
		}
	})
}

// Done reports the connection's closed channel for callers that want to
// observe disconnection (e.g. the match room removing a player).
func (c *Conn) Done() <-chan struct{} { return c.closed }

// Outbox exposes the outbound queue for callers driving a NewDetachedConn
// directly (no WritePump running to drain it), letting tests observe what
// the room sent without a real socket.
func (c *Conn) Outbox() <-chan OutboundFrame { return c.send }

// ReadPump runs the inbound loop until the socket closes or a fatal read
// error occurs. Call in its own goroutine; it returns when the connection
// should be considered gone.
func (c *Conn) ReadPump() {
	defer c.Close()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		var frame InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.Send(NewError("invalid payload"))
			continue
		}
		if err := frame.Validate(); err != nil {
			c.Send(NewError(err.Error()))
			continue
		}

		if !c.bucket.Allow() {
			c.Send(NewError("rate limited"))
			if c.onRateLimited != nil {
				c.onRateLimited()
			}
			continue
		}

		if frame.Type == InPing {
			c.observePing()
			c.Send(NewPong(frame.ClientTs, time.Now().UnixMilli()))
			continue
		}

		if c.handler != nil {
			c.handler(c, frame)
		}
	}
}

// observePing folds the interval since the previous ping into the RTT
// estimator as a connection-quality signal (see rtt.go doc comment: this
// is a heartbeat-interval jitter estimate, not a literal round trip,
// since only the client initiates pings per spec).
func (c *Conn) observePing() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if !c.lastPingAt.IsZero() {
		c.rtt.Update(now.Sub(c.lastPingAt))
	}
	c.lastPingAt = now
}

// WritePump drains the outbound channel onto the socket until closed.
// Call in its own goroutine alongside ReadPump.
func (c *Conn) WritePump() {
	defer c.ws.Close()

	for {
		select {
		case <-c.closed:
			return
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(frame); err != nil {
				return
			}
		}
	}
}
