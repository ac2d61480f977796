// Package callserver wires the SIP lifecycle callbacks to the RTP
// receive/send pair and the conversation controller, mirroring the
// start/stop ordering the original rotarygpt.py drove through partial
// closures (spec.md §9 "Callback registration on the SIP server").
package callserver

import (
	"context"
	"io"
	"net"
	"os"
	"sync"

	"github.com/tcz/rotarygpt/internal/conversation"
	"github.com/tcz/rotarygpt/internal/frame"
	"github.com/tcz/rotarygpt/internal/logging"
	"github.com/tcz/rotarygpt/internal/rtpio"
)

// queueCapacity bounds the inbound/outbound frame queues. A call holds at
// most a few seconds of audio in flight; this is generous headroom.
const queueCapacity = 2000

// Deps are the process-wide collaborators a call needs. They are shared
// across calls; only the per-call queues, RTP session and controller are
// created fresh on each INVITE.
type Deps struct {
	RTPAddr *net.UDPAddr

	STT   conversation.STTClient
	LLM   conversation.LLMClient
	TTS   conversation.TTSClient
	Tools conversation.ToolRegistry
	Clips conversation.Clips

	DebugWAVPath string
	Log          logging.Logger
}

// Server implements sipua.CallHandler, starting and tearing down the RTP
// and conversation tasks for the single call the SIP UAS admits at a time.
type Server struct {
	deps Deps

	mu     sync.Mutex
	active *call
	sock   *rtpio.SharedSocket
}

// call holds everything torn down together when the dialog ends.
type call struct {
	shutdown  chan struct{}
	stopOnce  sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	debugFile *os.File
}

// stop is idempotent: both a BYE and a fatal controller error race to tear
// a call down, and only one may close shutdown.
func (c *call) stop() {
	c.stopOnce.Do(func() {
		close(c.shutdown)
		c.cancel()
	})
}

// New builds a Server that answers calls over a fresh SharedSocket bound to
// deps.RTPAddr on the first INVITE.
func New(deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = logging.NoOpLogger{}
	}
	return &Server{deps: deps, sock: &rtpio.SharedSocket{}}
}

// OnIncomingCall implements sipua.CallHandler. It binds the shared RTP
// socket if needed, then starts the receiver, sender and conversation
// controller in that order (spec.md §9).
func (s *Server) OnIncomingCall(peerIP string, peerRTPPort int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		s.deps.Log.Warn("callserver: incoming call while one is active, ignoring")
		return
	}

	if err := s.sock.Bind(s.deps.RTPAddr); err != nil {
		s.deps.Log.Error("callserver: failed to bind RTP socket", "error", err)
		return
	}

	peer := &net.UDPAddr{IP: net.ParseIP(peerIP), Port: peerRTPPort}

	in := frame.New(queueCapacity)
	out := frame.New(queueCapacity)
	session := rtpio.NewSession()

	var debugFile *os.File
	if s.deps.DebugWAVPath != "" {
		f, err := os.Create(s.deps.DebugWAVPath)
		if err != nil {
			s.deps.Log.Warn("callserver: failed to open debug wav capture", "error", err)
		} else {
			debugFile = f
		}
	}

	receiver := rtpio.NewReceiver(s.sock, in, s.deps.Log)
	var debugWriter io.Writer
	if debugFile != nil {
		debugWriter = debugFile
	}
	sender := rtpio.NewSender(s.sock, out, session, debugWriter)
	sender.SetPeer(peer)

	ctx, cancel := context.WithCancel(context.Background())
	c := &call{shutdown: make(chan struct{}), cancel: cancel, debugFile: debugFile}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		receiver.Run(c.shutdown)
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		sender.Run(c.shutdown)
	}()

	controller := conversation.New(in, out, s.deps.STT, s.deps.LLM, s.deps.TTS, s.deps.Tools, s.deps.Clips, s.deps.Log)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := controller.Run(ctx); err != nil {
			s.deps.Log.Error("callserver: conversation controller exited with error", "error", err)
		}
		// A fatal controller error ends the call from our side; tear down
		// the RTP tasks too rather than waiting for the PBX's BYE.
		c.stop()
	}()

	s.active = c
	s.deps.Log.Info("callserver: call started", "peerIP", peerIP, "peerRTPPort", peerRTPPort)
}

// OnCallEnded implements sipua.CallHandler. It signals shutdown to every
// task, joins them, and drops the active call so the next INVITE can be
// accepted (spec.md §3 "Call lifecycle").
func (s *Server) OnCallEnded() {
	s.mu.Lock()
	c := s.active
	s.active = nil
	s.mu.Unlock()

	if c == nil {
		return
	}

	c.stop()
	c.wg.Wait()

	if c.debugFile != nil {
		if err := c.debugFile.Close(); err != nil {
			s.deps.Log.Warn("callserver: failed to close debug wav capture", "error", err)
		}
	}

	s.deps.Log.Info("callserver: call ended")
}
