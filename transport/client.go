// Package transport exposes the HTTP surface and the realtime channel.
package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"chatline/domain"
	"chatline/errors"
	"chatline/runtime"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// ConnLike is the slice of the websocket connection the client needs,
// kept narrow so tests can substitute an in-memory double.
type ConnLike interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

// Client owns one realtime connection. Deliveries go through a buffered
// channel drained by a single writer goroutine, so concurrent fan-outs
// never interleave writes on the socket.
type Client struct {
	id   uuid.UUID
	log  *slog.Logger
	conn ConnLike
	send chan []byte
	done chan struct{}
	once sync.Once
}

func NewClient(conn ConnLike, bufferSize int, log *slog.Logger) *Client {
	id := uuid.New()
	return &Client{
		id:   id,
		log:  log.With("connection", id),
		conn: conn,
		send: make(chan []byte, bufferSize),
		done: make(chan struct{}),
	}
}

// Send queues one payload for delivery. It blocks until the writer
// accepts it, the buffer being the slack, and gives up when the
// connection closed or the caller's deadline expired.
func (c *Client) Send(ctx context.Context, payload []byte) error {
	select {
	case <-c.done:
		return errors.ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	case c.send <- payload:
		return nil
	}
}

// ReadPump decodes inbound envelopes and hands them to the engine until
// the socket errors out. A malformed frame or a rejected envelope is
// logged and the connection stays open.
func (c *Client) ReadPump(ctx context.Context, engine *runtime.Engine) {
	defer c.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.log.Debug("Connection read loop ended", "error", err)
			return
		}

		var envelope domain.InboundEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			c.log.Warn("Dropping malformed frame", "error", err)
			continue
		}
		if err := engine.Ingest(ctx, c, envelope); err != nil {
			c.log.Warn("Message rejected", "chat", envelope.ChatID, "error", err)
		}
	}
}

// WritePump is the single goroutine allowed to write on the socket.
func (c *Client) WritePump() {
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug("Connection write failed", "error", err)
				c.Close()
				return
			}
		}
	}
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}
