package conversation

import (
	"github.com/tcz/rotarygpt/internal/codec"
	"github.com/tcz/rotarygpt/internal/frame"
)

// Clips holds the three raw linear-PCM (s16le @ 8kHz) clips played as
// audible cues: the call greeting, the "one moment" watchdog filler, and
// the fatal-path error message (spec.md §6 "On-disk assets").
type Clips struct {
	Greeting     []byte
	OneMoment    []byte
	ErrorMessage []byte
}

// greetingText is the assistant-log entry appended alongside the greeting
// clip, so the model's first turn sees it said something.
const greetingText = "Hello! How can I help you today?"

// oneMomentText is appended to the log when the watchdog fires, so the
// next LLM turn is aware it already told the caller to hold on.
const oneMomentText = "One moment, please."

// playClip mu-law encodes clip and pushes every 160-byte frame onto out.
// Frames that don't fill a full 160-sample window are dropped rather than
// padded; the on-disk clips are expected to be frame-aligned.
func playClip(out *frame.Queue, clip []byte) {
	encoded := codec.EncodeLinearPCM(clip)
	for i := 0; i+codec.FrameSamples <= len(encoded); i += codec.FrameSamples {
		out.Push(encoded[i : i+codec.FrameSamples])
	}
}
