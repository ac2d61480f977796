package rtpio

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pion/rtp"

	"github.com/tcz/rotarygpt/internal/codec"
	"github.com/tcz/rotarygpt/internal/frame"
	"github.com/tcz/rotarygpt/internal/wavhdr"
)

const (
	frameInterval = 20 * time.Millisecond
	talkspurtGap  = time.Second
)

// Session holds the per-call RTP state: sequence and timestamp counters,
// SSRC, and marker/talkspurt bookkeeping. Seq, timestamp and ssrc are
// randomized per call (spec.md §3 "RTP session state").
type Session struct {
	ssrc      uint32
	seq       uint16
	timestamp uint32

	sentAny             bool
	lastNonEmptyDequeue time.Time
}

// NewSession creates a Session with randomized ssrc/seq/timestamp.
func NewSession() *Session {
	return &Session{
		ssrc:      randUint32(),
		seq:       uint16(randUint32()),
		timestamp: randUint32(),
	}
}

func randUint32() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is effectively unrecoverable on this host;
		// fall back to a fixed but still valid value rather than panic.
		return 0x1234
	}
	return binary.BigEndian.Uint32(b[:])
}

// Sender dequeues mu-law frames and emits them as 160-byte PCMU RTP packets
// at 20ms cadence, appending every emitted payload to a debug WAV capture.
type Sender struct {
	sock    *SharedSocket
	in      *frame.Queue
	session *Session

	peerMu sync.Mutex
	peer   *net.UDPAddr

	debug       io.Writer
	debugHeader bool
}

// NewSender builds a Sender reading from in and writing RTP packets for
// session over sock. debug, if non-nil, receives every emitted PCMU payload
// preceded once by the streaming WAV header.
func NewSender(sock *SharedSocket, in *frame.Queue, session *Session, debug io.Writer) *Sender {
	return &Sender{sock: sock, in: in, session: session, debug: debug}
}

// SetPeer updates the destination the sender writes RTP packets to.
func (s *Sender) SetPeer(addr *net.UDPAddr) {
	s.peerMu.Lock()
	defer s.peerMu.Unlock()
	s.peer = addr
}

func (s *Sender) peerAddr() *net.UDPAddr {
	s.peerMu.Lock()
	defer s.peerMu.Unlock()
	return s.peer
}

// Run paces frames out at 20ms intervals until shutdown is closed. Pacing
// uses a busy-wait against the monotonic clock: a sleep-based wait cannot
// guarantee the tight inter-packet jitter the caller's jitter buffer needs.
// If the loop falls behind, the deficit is carried into next frame's target
// instead of being made up all at once.
func (s *Sender) Run(shutdown <-chan struct{}) {
	conn := s.sock.Conn()
	if conn == nil {
		return
	}

	nextTarget := time.Now()

	for {
		select {
		case <-shutdown:
			return
		default:
		}

		payload, ok := s.in.TryPop()
		if ok {
			s.sendPayload(conn, payload)
		}

		nextTarget = nextTarget.Add(frameInterval)
		busyWaitUntil(nextTarget, shutdown)
	}
}

func (s *Sender) sendPayload(conn *net.UDPConn, payload []byte) {
	now := time.Now()

	marker := !s.session.sentAny
	if !marker && now.Sub(s.session.lastNonEmptyDequeue) > talkspurtGap {
		marker = true
	}
	s.session.sentAny = true
	s.session.lastNonEmptyDequeue = now

	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Padding:        false,
			Extension:      false,
			Marker:         marker,
			PayloadType:    0, // PCMU
			SequenceNumber: s.session.seq,
			Timestamp:      s.session.timestamp,
			SSRC:           s.session.ssrc,
		},
		Payload: payload,
	}

	s.session.seq++
	s.session.timestamp += uint32(codec.FrameSamples)

	raw, err := pkt.Marshal()
	if err != nil {
		return
	}

	if peer := s.peerAddr(); peer != nil {
		conn.WriteToUDP(raw, peer)
	}

	s.writeDebug(payload)
}

func (s *Sender) writeDebug(payload []byte) {
	if s.debug == nil {
		return
	}
	if !s.debugHeader {
		s.debug.Write(wavhdr.Header())
		s.debugHeader = true
	}
	s.debug.Write(payload)
}

// busyWaitUntil spins until target, checking shutdown periodically so a
// stuck sender can still exit promptly. A negative (already-past) target
// returns immediately, which is how pacing deficit is carried forward.
func busyWaitUntil(target time.Time, shutdown <-chan struct{}) {
	for {
		now := time.Now()
		if !now.Before(target) {
			return
		}
		select {
		case <-shutdown:
			return
		default:
		}
		if target.Sub(now) > time.Millisecond {
			time.Sleep(time.Millisecond)
		}
	}
}
