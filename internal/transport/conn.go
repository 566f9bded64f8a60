package transport

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"dicehall/internal/protocol"
)

// Options tune a connection's limits. Zero values fall back to defaults.
type Options struct {
	MaxMessageSize    int64
	SendBufferSize    int
	MaxAttachmentSize int
	MessagesPerSecond float64
	MessageBurst      int
}

func (o Options) withDefaults() Options {
	if o.MaxMessageSize == 0 {
		o.MaxMessageSize = 4096
	}
	if o.SendBufferSize == 0 {
		o.SendBufferSize = 64
	}
	if o.MaxAttachmentSize == 0 {
		o.MaxAttachmentSize = 2048
	}
	if o.MessagesPerSecond == 0 {
		o.MessagesPerSecond = 10
	}
	if o.MessageBurst == 0 {
		o.MessageBurst = 20
	}
	return o
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Upgrader performs the websocket handshake. Origin checks are delegated to
// the reverse proxy in front of the server.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ErrAttachmentTooLarge is returned when Attach exceeds the per-connection
// attachment budget.
var ErrAttachmentTooLarge = errors.New("attachment too large")

// Conn wraps a websocket with a buffered writer pump, identity, string tags
// for fanout routing, and a small opaque attachment that survives across the
// read loop (the room code and seat binding live there).
type Conn struct {
	ws   *websocket.Conn
	id   *Identity
	opts Options

	send    chan []byte
	done    chan struct{}
	closeMu sync.Mutex
	closed  bool

	mu         sync.Mutex
	tags       map[string]struct{}
	attachment []byte

	limiter *rate.Limiter
}

// NewConn wraps an upgraded websocket.
func NewConn(ws *websocket.Conn, id *Identity, opts Options) *Conn {
	opts = opts.withDefaults()
	return &Conn{
		ws:      ws,
		id:      id,
		opts:    opts,
		send:    make(chan []byte, opts.SendBufferSize),
		done:    make(chan struct{}),
		tags:    make(map[string]struct{}),
		limiter: rate.NewLimiter(rate.Limit(opts.MessagesPerSecond), opts.MessageBurst),
	}
}

// Identity returns the verified caller bound at upgrade time.
func (c *Conn) Identity() *Identity { return c.id }

// AddTag marks the connection for tag-addressed fanout, e.g. "user:u1" or
// "room:AB2C9D".
func (c *Conn) AddTag(tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags[tag] = struct{}{}
}

// RemoveTag clears a tag.
func (c *Conn) RemoveTag(tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tags, tag)
}

// HasTag reports whether the connection carries the tag.
func (c *Conn) HasTag(tag string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.tags[tag]
	return ok
}

// Attach stores a small opaque blob on the connection.
func (c *Conn) Attach(data []byte) error {
	if len(data) > c.opts.MaxAttachmentSize {
		return ErrAttachmentTooLarge
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attachment = make([]byte, len(data))
	copy(c.attachment, data)
	return nil
}

// ReadAttachment returns the stored blob, or nil.
func (c *Conn) ReadAttachment() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attachment == nil {
		return nil
	}
	out := make([]byte, len(c.attachment))
	copy(out, c.attachment)
	return out
}

// Send enqueues an envelope for the writer pump. A full buffer means the
// client has stopped draining; the connection is closed with a policy
// violation rather than blocking the room's writer.
func (c *Conn) Send(env protocol.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("⚠️ failed to marshal envelope %s: %v", env.Type, err)
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	default:
		c.CloseWithCode(websocket.ClosePolicyViolation, "send buffer overflow")
	}
}

// SendError is a convenience for error envelopes.
func (c *Conn) SendError(eventType, code, message string) {
	c.Send(protocol.NewEnvelope(eventType, protocol.ErrorPayload{Code: code, Message: message}))
}

// CloseWithCode sends a close frame and tears the connection down.
func (c *Conn) CloseWithCode(code int, reason string) {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	c.closeMu.Unlock()

	if c.ws == nil {
		return
	}
	deadline := time.Now().Add(writeWait)
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, deadline)
	_ = c.ws.Close()
}

// Close tears the connection down with a normal closure.
func (c *Conn) Close() { c.CloseWithCode(websocket.CloseNormalClosure, "") }

// Done is closed when the connection is torn down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// WritePump drains the send buffer onto the wire and keeps the connection
// alive with protocol pings. Run it on its own goroutine per connection.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// FrameHandler consumes inbound frames from a connection's read loop.
type FrameHandler func(c *Conn, frame *protocol.Frame)

// ReadLoop pulls frames off the wire until the connection dies. Binary
// frames close the connection with 1003. Application-level PING frames are
// answered inline so a heartbeating client never wakes the room's writer.
func (c *Conn) ReadLoop(handler FrameHandler) {
	defer c.Close()

	c.ws.SetReadLimit(c.opts.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			c.CloseWithCode(websocket.CloseUnsupportedData, protocol.CodeBinaryUnsupported)
			return
		}

		if !c.limiter.Allow() {
			c.SendError(protocol.EvtError, protocol.CodeRateLimited, "slow down")
			continue
		}

		frame, err := protocol.ParseFrame(data)
		if err != nil {
			if errors.Is(err, protocol.ErrUnknownCommand) {
				c.SendError(protocol.EvtError, protocol.CodeUnknownCommand, "unknown command")
			} else {
				c.SendError(protocol.EvtError, protocol.CodeInvalidMessage, "unparseable message")
			}
			continue
		}

		if frame.Type == protocol.CmdPing {
			c.Send(protocol.NewEnvelope(protocol.EvtPong, nil))
			continue
		}

		handler(c, frame)
	}
}
