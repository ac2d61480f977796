// Package rtpio implements the shared RTP UDP endpoint: a receiver that
// depacketizes inbound PCMU datagrams onto a frame queue, and a sender that
// paces outbound frames at 20ms cadence (spec.md §4.3-§4.5).
package rtpio

import (
	"net"
	"sync"
)

// SharedSocket wraps a single UDP socket reused by both the RTP receiver and
// sender for the lifetime of a call, so the caller's NAT sees a symmetric
// 5-tuple. Bind is idempotent; Close is safe to call more than once.
type SharedSocket struct {
	mu   sync.Mutex
	conn *net.UDPConn
}

// Bind opens the socket on addr if it isn't already open. Calling Bind again
// on an already-bound SharedSocket is a no-op.
func (s *SharedSocket) Bind(addr *net.UDPAddr) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return nil
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

// Conn returns the underlying connection, or nil if not yet bound.
func (s *SharedSocket) Conn() *net.UDPConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// Close closes the socket if open. Safe to call multiple times.
func (s *SharedSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
