// SPDX-License-Identifier: MIT

// Package udp sends energy frames to devices that listen for raw datagrams.
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"lightsync/internal/log"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("udp sender is closed")

// Sender writes each payload as one datagram to a fixed target.
type Sender struct {
	conn   *net.UDPConn
	target *net.UDPAddr
	mu     sync.Mutex // Protects conn during Close
	closed bool
	sent   uint64
}

// NewSender resolves targetAddress ("host:port") and binds an ephemeral local
// socket to it.
func NewSender(targetAddress string) (*Sender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address '%s': %w", targetAddress, err)
	}

	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP for target '%s': %w", targetAddress, err)
	}

	log.Infof("UDP Sender: Connection established to %s", conn.RemoteAddr())
	return &Sender{conn: conn, target: udpAddr}, nil
}

// Target returns the resolved remote address.
func (s *Sender) Target() *net.UDPAddr { return s.target }

// Sent returns the number of datagrams written successfully.
func (s *Sender) Sent() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// Send transmits data as a single datagram. Safe for concurrent use.
func (s *Sender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.conn.Write(data); err != nil {
		return fmt.Errorf("failed to send UDP packet: %w", err)
	}
	s.sent++
	return nil
}

// Close releases the socket. Subsequent calls are no-ops.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	log.Debugf("UDP Sender: Closing connection to %s", s.target)
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close UDP connection: %w", err)
	}
	return nil
}
