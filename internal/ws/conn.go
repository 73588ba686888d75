package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrSendBufferFull is returned when a member's outbound buffer is
// saturated. The frame is dropped so one slow reader cannot stall a
// room broadcast.
var ErrSendBufferFull = errors.New("send buffer full")

// Conn wraps a websocket with an independently buffered outbound queue.
// All writes go through the queue so the write pump is the only
// goroutine touching the socket writer.
type Conn struct {
	id   string
	sock *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func NewConn(sock *websocket.Conn, sendBuffer int) *Conn {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Conn{
		id:   uuid.New().String()[:8],
		sock: sock,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// ID is a short identifier for logs.
func (c *Conn) ID() string { return c.id }

// Send queues a text frame, dropping it when the buffer is full or the
// connection is already closed.
func (c *Conn) Send(data []byte) error {
	select {
	case <-c.done:
		return websocket.ErrCloseSent
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// SendJSON marshals v and queues it.
func (c *Conn) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Send(data)
}

// Close is idempotent; the write pump exits once done is closed.
func (c *Conn) Close() {
	c.once.Do(func() {
		close(c.done)
		if c.sock != nil {
			c.sock.Close()
		}
	})
}

// Done is closed when the connection has been shut down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// WritePump drains the outbound queue and probes the peer with a
// websocket ping whenever the writer has been idle for pingPeriod.
// Runs in its own goroutine; returns when the connection closes.
func (c *Conn) WritePump(pingPeriod, writeWait time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			ticker.Reset(pingPeriod)
		case <-ticker.C:
			if err := c.sock.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
