// Package sipua implements the minimal SIP user agent server: a single
// UDP socket that negotiates exactly one audio session at a time by
// answering INVITE with a fixed-shape SDP and BYE with an empty 200 OK
// (spec.md §4.6).
package sipua

import (
	"bytes"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tcz/rotarygpt/internal/logging"
)

const (
	readBufSize = 4096
	pollTimeout = 200 * time.Millisecond
)

var (
	audioPortRe = regexp.MustCompile(`audio (\d+) RTP`)
	sipHostRe   = regexp.MustCompile(`sip:([a-zA-Z0-9.-]+)`)
)

// CallHandler receives the server's lifecycle callbacks. Handlers must
// return quickly: they merely start or stop worker tasks (spec.md §4.6).
type CallHandler interface {
	OnIncomingCall(peerIP string, peerRTPPort int)
	OnCallEnded()
}

// Server is a single-dialog SIP UAS handling INVITE and BYE only.
type Server struct {
	addr    *net.UDPAddr
	log     logging.Logger
	handler CallHandler

	conn   *net.UDPConn
	inCall bool
}

// New builds a Server bound to addr once Run is called. A nil log defaults
// to logging.NoOpLogger.
func New(addr *net.UDPAddr, handler CallHandler, log logging.Logger) *Server {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Server{addr: addr, handler: handler, log: log}
}

// Run binds the socket and serves requests until shutdown is closed or a
// socket error aborts the loop.
func (s *Server) Run(shutdown <-chan struct{}) error {
	conn, err := net.ListenUDP("udp", s.addr)
	if err != nil {
		return fmt.Errorf("sipua: listen: %w", err)
	}
	s.conn = conn
	defer conn.Close()

	s.log.Info("sip server started", "addr", s.addr.String())

	buf := make([]byte, readBufSize)
	for {
		select {
		case <-shutdown:
			s.log.Info("sip server stopped")
			return nil
		default:
		}

		conn.SetReadDeadline(time.Now().Add(pollTimeout))
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return fmt.Errorf("sipua: read: %w", err)
		}

		req, perr := parseRequest(buf[:n], from)
		if perr != nil {
			s.log.Debug("sipua: dropping malformed request", "error", perr)
			continue
		}

		s.log.Info("incoming sip request", "method", req.Method)
		s.handle(req)
	}
}

func (s *Server) handle(req *request) {
	switch req.Method {
	case "INVITE":
		s.handleInvite(req)
	case "BYE":
		s.handleBye(req)
	default:
		// Everything else is silently dropped (spec.md §4.6).
	}
}

func (s *Server) handleInvite(req *request) {
	if s.inCall {
		return
	}

	toHost := extractSIPHost(req.Headers["To"])

	resp := &response{
		StatusCode: 200,
		StatusText: "OK",
		Headers: orderedHeaders{
			{"Via", req.Headers["Via"]},
			{"To", req.Headers["To"]},
			{"From", req.Headers["From"]},
			{"Contact", req.Headers["To"]},
			{"Call-ID", req.Headers["Call-ID"]},
			{"CSeq", req.Headers["CSeq"]},
			{"Content-Type", "application/sdp"},
		},
		Body: []byte(buildAnswerSDP(toHost)),
	}

	s.send(resp, req.From)
	s.inCall = true

	match := audioPortRe.FindStringSubmatch(string(req.Body))
	if match == nil {
		return
	}
	port, err := strconv.Atoi(match[1])
	if err != nil {
		return
	}

	s.log.Debug("firing incoming call callbacks", "peer", req.From.IP.String(), "port", port)
	if s.handler != nil {
		s.handler.OnIncomingCall(req.From.IP.String(), port)
	}
}

func (s *Server) handleBye(req *request) {
	if !s.inCall {
		return
	}
	s.inCall = false

	resp := &response{
		StatusCode: 200,
		StatusText: "OK",
		Headers: orderedHeaders{
			{"Via", req.Headers["Via"]},
			{"To", req.Headers["To"]},
			{"From", req.Headers["From"]},
			{"Contact", req.Headers["To"]},
			{"Call-ID", req.Headers["Call-ID"]},
			{"CSeq", req.Headers["CSeq"]},
		},
	}

	s.send(resp, req.From)

	s.log.Debug("firing call ended callbacks")
	if s.handler != nil {
		s.handler.OnCallEnded()
	}
}

func (s *Server) send(resp *response, to *net.UDPAddr) {
	s.conn.WriteToUDP(resp.marshal(), to)
}

// buildAnswerSDP returns the fixed SDP template from spec.md §4.6, with the
// connection address taken from the host part of the request's To URI.
func buildAnswerSDP(host string) string {
	lines := []string{
		"v=0",
		"o=RotaryGPT 1 1 IN IP4 " + host,
		"s=SIP Call",
		"c=IN IP4 " + host,
		"t=0 0",
		"m=audio 5004 RTP/AVP 0",
		"a=sendrecv",
		"a=rtpmap:0 PCMU/8000",
		"a=ptime:20",
	}
	return strings.Join(lines, "\r\n") + "\r\n"
}

func extractSIPHost(sipAddress string) string {
	trimmed := strings.Trim(sipAddress, "<> ")
	match := sipHostRe.FindStringSubmatch(trimmed)
	if match == nil {
		return ""
	}
	return match[1]
}

type orderedHeader struct {
	Key   string
	Value string
}

type orderedHeaders []orderedHeader

type response struct {
	StatusCode int
	StatusText string
	Headers    orderedHeaders
	Body       []byte
}

func (r *response) marshal() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "SIP/2.0 %d %s\r\n", r.StatusCode, r.StatusText)
	for _, h := range r.Headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", h.Key, h.Value)
	}
	fmt.Fprintf(&buf, "Content-Length: %d\r\n", len(r.Body))
	buf.WriteString("\r\n")
	buf.Write(r.Body)
	return buf.Bytes()
}
