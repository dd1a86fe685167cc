// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"lightsync/internal/log"
)

// wsConn is a client connection to a device's WebSocket endpoint. A single
// writer goroutine owns the socket; at most one frame waits in its queue.
type wsConn struct {
	connBase

	url          string
	dialer       *websocket.Dialer
	dialTimeout  time.Duration
	writeTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	queue  chan []byte

	mu        sync.Mutex // Protects conn
	conn      *websocket.Conn
	closeOnce sync.Once
}

// targetURL maps a bare "host[:port]" onto ws://host[:port]{path}. Addresses
// that already carry a ws:// or wss:// scheme are used verbatim.
func targetURL(addr, path string) string {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return addr
	}
	return "ws://" + addr + path
}

func newWSConn(addr string, d *Dialer, notify StateFunc) *wsConn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &wsConn{
		url:          targetURL(addr, d.Path),
		dialer:       d.WSDialer,
		dialTimeout:  d.DialTimeout,
		writeTimeout: d.WriteTimeout,
		ctx:          ctx,
		cancel:       cancel,
		queue:        make(chan []byte, 1),
	}
	c.init(c, addr, notify)
	go c.run()
	return c
}

func (c *wsConn) run() {
	dialCtx, cancel := context.WithTimeout(c.ctx, c.dialTimeout)
	conn, resp, err := c.dialer.DialContext(dialCtx, c.url, http.Header{})
	cancel()
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if c.ctx.Err() == nil {
			log.Warnf("Transport: Connection to %s failed: %v", c.url, err)
			c.shutdown(err)
		}
		return
	}

	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.mu.Unlock()

	if !c.transition(StateOpen, nil) {
		return
	}
	log.Infof("Transport: Connected to %s (id %s)", c.url, c.id)

	go c.readLoop(conn)
	c.writeLoop(conn)
}

// readLoop drains inbound frames and detects the peer going away.
func (c *wsConn) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if c.ctx.Err() == nil {
				log.Infof("Transport: Connection to %s closed: %v", c.url, err)
				c.shutdown(err)
			}
			return
		}
	}
}

func (c *wsConn) writeLoop(conn *websocket.Conn) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case payload := <-c.queue:
			_ = conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
				if c.ctx.Err() == nil {
					log.Warnf("Transport: Write to %s failed: %v", c.url, err)
					c.shutdown(err)
				}
				return
			}
		}
	}
}

// Send queues payload for the writer. It fails fast when the connection is not
// open or a previous frame is still pending.
func (c *wsConn) Send(payload []byte) error {
	if c.State() != StateOpen {
		return ErrNotOpen
	}
	select {
	case c.queue <- payload:
		return nil
	default:
		return ErrBackpressure
	}
}

// Close aborts a pending dial or closes the socket with a normal close frame.
func (c *wsConn) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *wsConn) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.cancel()
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			if cause == nil {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
			}
			conn.Close()
		}
		c.transition(StateClosed, cause)
	})
}
