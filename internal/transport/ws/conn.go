package ws

import (
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

const writeWait = 5 * time.Second

// wsConn is a registry channel backed by one websocket. Pushes enqueue onto a
// bounded queue drained by writeLoop; they never block the caller.
type wsConn struct {
	id        string
	conn      *websocket.Conn
	tokenID   string
	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newWsConn(c *websocket.Conn, queue int, tokenID string) *wsConn {
	return &wsConn{
		id:      uuid.NewString(),
		conn:    c,
		tokenID: tokenID,
		send:    make(chan []byte, queue),
		closed:  make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Push(msg domain.Message) error {
	return c.enqueue(privateMessage(msg))
}

func (c *wsConn) enqueue(msg Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case <-c.closed:
		return domain.ErrChannelClosed
	default:
	}

	select {
	case c.send <- b:
		return nil
	case <-c.closed:
		return domain.ErrChannelClosed
	default:
		return domain.ErrChannelFull
	}
}

// writeLoop owns all writes to the socket. It drains the queue and pings at
// pingEvery until the connection is closed or a write fails.
func (c *wsConn) writeLoop(pingEvery time.Duration) {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-c.closed:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

// Close stops the write loop and closes the socket. Safe to call repeatedly.
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}
