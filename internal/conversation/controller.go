package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tcz/rotarygpt/internal/codec"
	"github.com/tcz/rotarygpt/internal/frame"
	"github.com/tcz/rotarygpt/internal/logging"
)

// defaultWatchdogDelay is how long the controller waits for the first TTS
// chunk before playing the "one moment" filler clip (spec.md §4.7). Tests
// shrink Controller.watchdogDelay to exercise the fire path without
// waiting out the production delay.
const defaultWatchdogDelay = 4 * time.Second

// outboundDrainPoll is how often the controller checks whether the outbound
// queue has fully drained after TTS completes.
const outboundDrainPoll = 20 * time.Millisecond

// Controller owns the per-call conversation log and sequences the
// GREET -> LISTEN -> SPEAK_OR_WAIT turn loop (spec.md §4.7).
type Controller struct {
	in  *frame.Queue
	out *frame.Queue

	silence *codec.Detector

	stt   STTClient
	llm   LLMClient
	tts   TTSClient
	tools ToolRegistry

	clips Clips
	log   logging.Logger

	conversationLog []Message
	muLawCarry      []byte

	// watchdogDelay defaults to defaultWatchdogDelay; tests shrink it to
	// exercise the watchdog-fires path deterministically.
	watchdogDelay time.Duration

	// sessionID correlates this call's log lines; it has no protocol
	// meaning (the SIP Call-ID is what's echoed on the wire).
	sessionID string
}

// New builds a Controller. A nil log defaults to logging.NoOpLogger.
func New(in, out *frame.Queue, stt STTClient, llm LLMClient, tts TTSClient, tools ToolRegistry, clips Clips, log logging.Logger) *Controller {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Controller{
		in:            in,
		out:           out,
		silence:       codec.NewDetector(),
		stt:           stt,
		llm:           llm,
		tts:           tts,
		tools:         tools,
		clips:         clips,
		log:           log,
		watchdogDelay: defaultWatchdogDelay,
		sessionID:     uuid.NewString(),
	}
}

// Run drives the turn loop until ctx is cancelled or a fatal error trips
// the error-clip path. It always returns nil on a clean shutdown; a fatal
// turn error is logged and the error clip is played before returning.
func (c *Controller) Run(ctx context.Context) error {
	c.log.Info("conversation turn loop starting", "sessionID", c.sessionID)
	c.greet()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		transcript, err := c.listen(ctx)
		if err != nil {
			if err == ErrShutdown {
				return nil
			}
			return c.fatal(err)
		}

		if err := c.turn(ctx, transcript); err != nil {
			if err == ErrShutdown {
				return nil
			}
			return c.fatal(err)
		}

		if err := c.drainAfterTurn(ctx); err != nil {
			return nil
		}
	}
}

// greet plays the greeting clip and appends it to the log (state GREET).
func (c *Controller) greet() {
	playClip(c.out, c.clips.Greeting)
	c.append(Message{Role: RoleAssistant, Content: greetingText})
}

// listen opens a new STT upload and forwards inbound frames to both the
// silence detector and the upload, but only while the outbound queue is
// empty so the agent never transcribes its own echo (state LISTEN).
func (c *Controller) listen(ctx context.Context) (string, error) {
	upload, err := c.stt.StartUpload(ctx)
	if err != nil {
		return "", fmt.Errorf("conversation: start stt upload: %w", err)
	}

	for {
		f, ok := c.in.Pop(ctx)
		if !ok {
			upload.Discard()
			return "", ErrShutdown
		}

		if !c.out.Empty() {
			continue
		}

		if err := upload.AddFrame(f); err != nil {
			c.log.Warn("stt upload write failed", "sessionID", c.sessionID, "error", err)
		}

		if c.silence.Push(f) {
			transcript, err := upload.Finish(ctx)
			if err != nil {
				c.log.Warn("stt finish failed, proceeding with empty transcript", "error", err)
				return "", nil
			}
			return transcript, nil
		}
	}
}

// turn runs SPEAK_OR_WAIT through the tool-dispatch loop and TTS playback
// (states 3-6 of spec.md §4.7; drainAfterTurn does step 7).
func (c *Controller) turn(ctx context.Context, transcript string) error {
	if transcript != "" {
		c.append(Message{Role: RoleUser, Content: transcript})
	}

	wd := newWatchdog(c.watchdogDelay, func() {
		playClip(c.out, c.clips.OneMoment)
	})
	defer wd.stop()

	reply, err := c.llm.Complete(ctx, c.conversationLog, c.tools.ExportedSchemas())
	if wd.drain() {
		c.append(Message{Role: RoleAssistant, Content: oneMomentText})
	}
	if err != nil {
		return classifyErr(err, ErrLLMFailed)
	}

	for reply.ToolCall != nil {
		call := reply.ToolCall
		c.append(Message{Role: RoleAssistant, ToolCall: call})

		result := c.tools.CallJSON(call.Name, []byte(call.Arguments))
		c.append(Message{Role: RoleToolResult, Content: result, ToolCall: call})

		reply, err = c.llm.Complete(ctx, c.conversationLog, c.tools.ExportedSchemas())
		if wd.drain() {
			c.append(Message{Role: RoleAssistant, Content: oneMomentText})
		}
		if err != nil {
			return classifyErr(err, ErrLLMFailed)
		}
	}

	c.append(Message{Role: RoleAssistant, Content: reply.Text})

	firstChunk := true
	c.muLawCarry = nil
	var pcmRemainder []byte
	err = c.tts.Synthesize(ctx, reply.Text, func(pcm []byte) error {
		if firstChunk {
			wd.stop()
			firstChunk = false
		}
		pcmRemainder = append(pcmRemainder, pcm...)
		pcmRemainder = c.pushMuLawFrames(pcmRemainder)
		return nil
	})
	if wd.drain() {
		c.append(Message{Role: RoleAssistant, Content: oneMomentText})
	}
	if err != nil {
		return classifyErr(err, ErrTTSFailed)
	}

	return nil
}

// classifyErr maps a context cancellation surfaced by a provider client to
// ErrShutdown, so Run treats it as a clean hangup instead of routing it
// through fatal's error-clip path (spec.md §7). Anything else is wrapped
// under fallback.
func classifyErr(err error, fallback error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrShutdown
	}
	return fmt.Errorf("%w: %v", fallback, err)
}

// drainAfterTurn waits for the outbound queue to empty (so the next LISTEN
// doesn't capture our own tail), then drains the inbound queue and resets
// the silence detector latch (step 7 of spec.md §4.7).
func (c *Controller) drainAfterTurn(ctx context.Context) error {
	for !c.out.Empty() {
		select {
		case <-ctx.Done():
			return ErrShutdown
		case <-time.After(outboundDrainPoll):
		}
	}
	c.in.Drain()
	c.silence.Reset()
	return nil
}

// fatal plays the error clip and logs the turn's fatal error. The call
// ends from our side; the PBX is expected to follow with BYE.
func (c *Controller) fatal(err error) error {
	c.log.Error("conversation turn failed fatally", "sessionID", c.sessionID, "error", err)
	playClip(c.out, c.clips.ErrorMessage)
	return err
}

func (c *Controller) append(m Message) {
	c.conversationLog = append(c.conversationLog, m)
}

// pushMuLawFrames mu-law encodes as many complete 16-bit samples as pcmBuf
// holds, accumulates the result into the controller's mu-law carry buffer,
// pushes every full 160-byte frame to the outbound queue, and returns the
// trailing odd PCM byte (if any) for the caller to prepend to the next
// chunk. TTS chunk boundaries are not guaranteed frame-aligned, so both the
// PCM-byte and the mu-law-byte remainders must survive across calls.
func (c *Controller) pushMuLawFrames(pcmBuf []byte) []byte {
	usable := len(pcmBuf) - (len(pcmBuf) % 2)
	c.muLawCarry = append(c.muLawCarry, codec.EncodeLinearPCM(pcmBuf[:usable])...)

	for len(c.muLawCarry) >= codec.FrameSamples {
		f := make([]byte, codec.FrameSamples)
		copy(f, c.muLawCarry[:codec.FrameSamples])
		c.out.Push(f)
		c.muLawCarry = c.muLawCarry[codec.FrameSamples:]
	}

	return pcmBuf[usable:]
}
