// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"lightsync/internal/log"
)

// DeviceServer emulates a light device: it accepts WebSocket clients on a path
// and records every well-formed three byte binary frame.
type DeviceServer struct {
	addr     string
	path     string
	upgrader websocket.Upgrader
	server   *http.Server
	onFrame  func([FrameSize]byte)

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}

	frames  atomic.Uint64
	dropped atomic.Uint64
	lastMu  sync.Mutex
	last    [FrameSize]byte
}

// NewDeviceServer creates a server for addr and path. onFrame may be nil.
func NewDeviceServer(addr, path string, onFrame func([FrameSize]byte)) *DeviceServer {
	s := &DeviceServer{
		addr: addr,
		path: path,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		onFrame: onFrame,
		clients: make(map[*websocket.Conn]struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, s.handleWebSocket)
	s.server = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Handler exposes the routed handler, for embedding in another server.
func (s *DeviceServer) Handler() http.Handler { return s.server.Handler }

// ListenAndServe blocks until ctx is cancelled or the listener fails.
func (s *DeviceServer) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	log.Infof("DeviceServer: Listening on %s%s", ln.Addr(), s.path)

	errCh := make(chan error, 1)
	go func() { errCh <- s.server.Serve(ln) }()

	select {
	case <-ctx.Done():
		s.Close()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *DeviceServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("DeviceServer: Upgrade error: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = struct{}{}
	total := len(s.clients)
	s.clientsMu.Unlock()
	log.Infof("DeviceServer: Client %s connected, total: %d", r.RemoteAddr, total)

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		total := len(s.clients)
		s.clientsMu.Unlock()
		conn.Close()
		log.Infof("DeviceServer: Client %s disconnected, total: %d", r.RemoteAddr, total)
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.BinaryMessage || len(data) != FrameSize {
			s.dropped.Add(1)
			log.Debugf("DeviceServer: Ignoring %d byte message of type %d", len(data), mt)
			continue
		}
		var frame [FrameSize]byte
		copy(frame[:], data)
		s.lastMu.Lock()
		s.last = frame
		s.lastMu.Unlock()
		s.frames.Add(1)
		if s.onFrame != nil {
			s.onFrame(frame)
		}
	}
}

// Frames returns the number of accepted frames.
func (s *DeviceServer) Frames() uint64 { return s.frames.Load() }

// Dropped returns the number of malformed messages.
func (s *DeviceServer) Dropped() uint64 { return s.dropped.Load() }

// Last returns the most recent frame and whether any has arrived.
func (s *DeviceServer) Last() ([FrameSize]byte, bool) {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.last, s.frames.Load() > 0
}

// Clients returns the number of connected clients.
func (s *DeviceServer) Clients() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

// DisconnectAll drops every client without a close handshake.
func (s *DeviceServer) DisconnectAll() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range s.clients {
		c.Close()
	}
}

// Close shuts the server and all client connections.
func (s *DeviceServer) Close() error {
	log.Infof("DeviceServer: Closing server")
	s.DisconnectAll()
	return s.server.Close()
}
