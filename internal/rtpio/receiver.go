package rtpio

import (
	"errors"
	"net"
	"os"
	"time"

	"github.com/pion/rtp"

	"github.com/tcz/rotarygpt/internal/frame"
	"github.com/tcz/rotarygpt/internal/logging"
)

// maxDatagram is the largest datagram the receiver will read: a 12-byte RTP
// header plus a 160-byte PCMU payload, with no headroom beyond that.
const maxDatagram = 172

// pollTimeout bounds how long a single read blocks, so the receive loop can
// observe a shutdown signal promptly (spec.md §4.3).
const pollTimeout = 200 * time.Millisecond

// Receiver reads PCMU datagrams off a SharedSocket, strips the RTP header
// unconditionally, and pushes the payload onto an inbound frame.Queue.
type Receiver struct {
	sock *SharedSocket
	out  *frame.Queue
	log  logging.Logger
}

// NewReceiver builds a Receiver that reads from sock and pushes payloads
// onto out. A nil log defaults to logging.NoOpLogger.
func NewReceiver(sock *SharedSocket, out *frame.Queue, log logging.Logger) *Receiver {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Receiver{sock: sock, out: out, log: log}
}

// Run reads datagrams until shutdown is closed. The upstream PBX is
// configured to emit plain PCMU with no CSRC or header extensions, so the
// leading 12 bytes are stripped unconditionally rather than parsed per
// RTP packet field-by-field; rtp.Header.Unmarshal is used only to validate
// and log, never to compute the payload boundary.
func (r *Receiver) Run(shutdown <-chan struct{}) {
	conn := r.sock.Conn()
	if conn == nil {
		return
	}

	buf := make([]byte, maxDatagram)
	for {
		select {
		case <-shutdown:
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(pollTimeout))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) {
				return
			}
			r.log.Warn("rtpio: read error", "error", err)
			continue
		}

		if n <= 12 {
			continue
		}

		var hdr rtp.Header
		if _, err := hdr.Unmarshal(buf[:n]); err != nil {
			r.log.Debug("rtpio: malformed rtp header", "error", err)
		}

		payload := make([]byte, n-12)
		copy(payload, buf[12:n])
		r.out.Push(payload)
	}
}
