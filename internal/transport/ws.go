package transport

import (
	"bytes"
	"io"
	"sync"

	"github.com/gorilla/websocket"
)

// wsConn adapts a WebSocket to the byte stream STOMP expects. Reads
// concatenate incoming messages; writes are buffered until a frame's NUL
// terminator so every outgoing WebSocket message carries whole frames.
type wsConn struct {
	ws *websocket.Conn
	r  io.Reader

	wmu sync.Mutex
	buf []byte
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws}
}

func (c *wsConn) Read(p []byte) (int, error) {
	for {
		if c.r == nil {
			_, r, err := c.ws.NextReader()
			if err != nil {
				return 0, err
			}
			c.r = r
		}
		n, err := c.r.Read(p)
		if err == io.EOF {
			c.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	c.buf = append(c.buf, p...)
	for {
		end := bytes.IndexByte(c.buf, 0)
		if end < 0 {
			break
		}
		if err := c.ws.WriteMessage(websocket.TextMessage, c.buf[:end+1]); err != nil {
			return 0, err
		}
		c.buf = c.buf[end+1:]
	}
	// Heart-beats are bare EOLs with no terminator.
	if len(c.buf) > 0 && len(bytes.Trim(c.buf, "\r\n")) == 0 {
		if err := c.ws.WriteMessage(websocket.TextMessage, c.buf); err != nil {
			return 0, err
		}
		c.buf = c.buf[:0]
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}
