package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/connectra/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 65536
	sendBufSize    = 64
)

// bufPool pools bytes.Buffer for JSON encoding in the hot-path (writePump).
var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// Conn is the client side of the push channel.
// Lifecycle: Dial -> Start(ctx, cancel, handler) -> [readPump, writePump] -> Close -> Wait.
// The connection is a process-wide singleton scoped to the session's lifetime;
// there is no reconnect protocol.
type Conn struct {
	conn    *websocket.Conn
	send    chan ClientEvent
	handler Handler

	// done guards the non-blocking enqueue path.
	done chan struct{}
	// cancel cancels the context passed to Start, triggering pump shutdown.
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

// Dial connects to the server's push channel endpoint. baseURL is the HTTP
// base (http:// or https://); the username identifies the session.
func Dial(ctx context.Context, baseURL, username string) (*Conn, error) {
	u := strings.TrimSuffix(baseURL, "/")
	u = strings.Replace(u, "http://", "ws://", 1)
	u = strings.Replace(u, "https://", "wss://", 1)

	hdr := http.Header{}
	hdr.Set("X-Username", username)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u+"/ws", hdr)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("ws dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("ws dial: %w", err)
	}
	return &Conn{
		conn: conn,
		send: make(chan ClientEvent, sendBufSize),
		done: make(chan struct{}),
	}, nil
}

// Start launches the pump goroutines. Events decoded from the wire are
// delivered to h one at a time from the read pump.
func (c *Conn) Start(ctx context.Context, cancel context.CancelFunc, h Handler) {
	c.cancel = cancel
	c.handler = h
	c.wg.Add(2)
	go c.writePump(ctx)
	go c.readPump(ctx)
}

// Wait blocks until both pump goroutines have exited.
func (c *Conn) Wait() {
	c.wg.Wait()
}

// Close signals the connection to stop. Safe to call multiple times from any
// goroutine.
func (c *Conn) Close() {
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		close(c.done)
		// Force both pumps to unblock (ReadMessage / WriteMessage will error).
		c.conn.Close()
	})
}

// JoinChat requests membership in a chat's event stream.
func (c *Conn) JoinChat(chatID string) { c.enqueue(ClientEvent{Type: EventJoinChat, ChatID: chatID}) }

// LeaveChat leaves a chat's event stream.
func (c *Conn) LeaveChat(chatID string) { c.enqueue(ClientEvent{Type: EventLeaveChat, ChatID: chatID}) }

// Typing signals that the local user is composing in the chat.
func (c *Conn) Typing(chatID string) { c.enqueue(ClientEvent{Type: EventTyping, ChatID: chatID}) }

// StopTyping signals the trailing edge of the typing debounce.
func (c *Conn) StopTyping(chatID string) {
	c.enqueue(ClientEvent{Type: EventStopTyping, ChatID: chatID})
}

func (c *Conn) enqueue(ev ClientEvent) {
	select {
	case c.send <- ev:
	case <-c.done:
	default:
		// Send buffer full: drop the signal rather than block the UI path.
		logger.Errorf("ws send buffer full, dropping %s", ev.Type)
	}
}

// readPump reads server events and dispatches them to the handler.
// Exits on read error (triggered by conn.Close or writePump exit).
func (c *Conn) readPump(ctx context.Context) {
	defer c.wg.Done()
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Errorf("ws set read deadline: %v", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("ws read error: %v", err)
			}
			return
		}

		if err := DispatchServerEvent(raw, c.handler); err != nil {
			logger.Errorf("ws dispatch: %v", err)
		}
	}
}

// writePump writes client events to the connection and keeps it alive with
// pings. Exits on ctx cancellation, write error, or connection close.
func (c *Conn) writePump(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			if err := c.conn.WriteMessage(websocket.CloseMessage, nil); err != nil {
				logger.Errorf("ws close message: %v", err)
			}
			return
		case ev := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Errorf("ws set write deadline: %v", err)
				return
			}
			buf := bufPool.Get().(*bytes.Buffer)
			buf.Reset()
			enc := json.NewEncoder(buf)
			if err := enc.Encode(ev); err != nil {
				bufPool.Put(buf)
				logger.Errorf("ws marshal error: %v", err)
				continue
			}
			data := buf.Bytes()
			// json.Encoder appends '\n'; trim it for WebSocket text messages.
			if len(data) > 0 && data[len(data)-1] == '\n' {
				data = data[:len(data)-1]
			}
			writeErr := c.conn.WriteMessage(websocket.TextMessage, data)
			bufPool.Put(buf)
			if writeErr != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Errorf("ws set write deadline: %v", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
