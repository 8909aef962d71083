package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/gaspardpetit/agentbridge/internal/logx"
)

// DefaultReadLimit bounds a single inbound frame.
const DefaultReadLimit int64 = 1 << 20

var (
	// ErrConnection is returned when the agent endpoint cannot be reached.
	ErrConnection = errors.New("transport: connection failed")
	// ErrTransport wraps send and receive failures on an open connection.
	ErrTransport = errors.New("transport: i/o failure")
	// ErrTimeout is returned by ReceiveText when the context deadline passes.
	ErrTimeout = errors.New("transport: timeout")
	// ErrPeerClosed is returned when the peer closes the connection cleanly.
	ErrPeerClosed = errors.New("transport: peer closed")
	// ErrNotConnected is returned for operations on a closed Conn.
	ErrNotConnected = errors.New("transport: not connected")
)

// Options tune Dial.
type Options struct {
	ReadLimit int64
	Header    http.Header
}

// Conn is one WebSocket connection carrying text frames.
type Conn struct {
	ws *websocket.Conn

	mu     sync.Mutex
	closed bool
}

// Dial opens a connection to url. There is no retry.
func Dial(ctx context.Context, url string, opts Options) (*Conn, error) {
	ws, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: opts.Header})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return Wrap(ws, opts.ReadLimit), nil
}

// Wrap adopts an established connection, such as one returned by
// websocket.Accept on the agent side.
func Wrap(ws *websocket.Conn, readLimit int64) *Conn {
	if readLimit <= 0 {
		readLimit = DefaultReadLimit
	}
	ws.SetReadLimit(readLimit)
	return &Conn{ws: ws}
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// SendText writes one text frame.
func (c *Conn) SendText(ctx context.Context, text []byte) error {
	if c.isClosed() {
		return ErrNotConnected
	}
	if err := c.ws.Write(ctx, websocket.MessageText, text); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return nil
}

// ReceiveText blocks until a text frame arrives or ctx ends. Binary frames
// are skipped. An expired deadline also tears down the socket.
func (c *Conn) ReceiveText(ctx context.Context) ([]byte, error) {
	for {
		if c.isClosed() {
			return nil, ErrNotConnected
		}
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			return nil, c.readErr(ctx, err)
		}
		if typ != websocket.MessageText {
			logx.Log.Debug().Int("bytes", len(data)).Msg("skipping binary frame")
			continue
		}
		return data, nil
	}
}

func (c *Conn) readErr(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ErrTimeout
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", ErrTransport, ctx.Err())
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return ErrPeerClosed
	}
	if c.isClosed() {
		return ErrNotConnected
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

// Close starts the close handshake and returns without waiting for the
// peer's close frame, so a peer that stopped reading cannot hold the caller.
// Only the first call does anything; later calls return nil.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	go func() {
		if err := c.ws.Close(websocket.StatusNormalClosure, ""); err != nil {
			// the peer may already be gone; the socket is released either way
			logx.Log.Debug().Err(err).Msg("websocket close")
		}
	}()
	return nil
}
