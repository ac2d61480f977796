package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tcz/rotarygpt/internal/codec"
	"github.com/tcz/rotarygpt/internal/frame"
)

// fakeUpload is a no-op conversation.STTUpload that returns a fixed
// transcript on Finish.
type fakeUpload struct {
	mu        sync.Mutex
	frames    int
	finished  bool
	discarded bool
	transcript string
}

func (u *fakeUpload) AddFrame(f []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.finished {
		return nil
	}
	u.frames++
	return nil
}

func (u *fakeUpload) Finish(ctx context.Context) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.finished = true
	return u.transcript, nil
}

func (u *fakeUpload) Discard() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.discarded = true
}

// fakeSTT hands out a single fakeUpload and lets the test trigger silence
// by feeding a fixed number of frames through the real detector.
type fakeSTT struct {
	upload *fakeUpload
}

func (s *fakeSTT) StartUpload(ctx context.Context) (STTUpload, error) {
	s.upload = &fakeUpload{transcript: "hello there"}
	return s.upload, nil
}

// fakeLLM replays a scripted sequence of LLMReply values, one per call.
type fakeLLM struct {
	replies []LLMReply
	calls   int
}

func (f *fakeLLM) Complete(ctx context.Context, log []Message, tools []ExportedTool) (LLMReply, error) {
	r := f.replies[f.calls]
	f.calls++
	return r, nil
}

// fakeTTS immediately invokes onChunk with the given chunks, with no delay.
type fakeTTS struct {
	chunks  [][]byte
	calls   int
	gotText []string
}

func (f *fakeTTS) Synthesize(ctx context.Context, text string, onChunk func([]byte) error) error {
	f.calls++
	f.gotText = append(f.gotText, text)
	for _, c := range f.chunks {
		if err := onChunk(c); err != nil {
			return err
		}
	}
	return nil
}

// fakeTools records CallJSON invocations and returns a fixed string.
type fakeTools struct {
	calls   int
	lastName string
	result  string
}

func (f *fakeTools) ExportedSchemas() []ExportedTool { return nil }

func (f *fakeTools) CallJSON(name string, rawArgs []byte) string {
	f.calls++
	f.lastName = name
	return f.result
}

func testClips() Clips {
	// One 160-sample (320-byte) silent linear PCM frame per clip, so
	// playClip emits exactly one outbound frame.
	silent := make([]byte, codec.FrameSamples*2)
	return Clips{Greeting: silent, OneMoment: silent, ErrorMessage: silent}
}

// feedSilenceTriggeringFrames pushes warmup+calibration silence, a loud tone,
// then trailing silence onto in, enough for the real silence detector to emit
// exactly one event (mirrors codec's own silence detector test fixture).
func feedSilenceTriggeringFrames(t *testing.T, in *frame.Queue) {
	t.Helper()
	silentFrame := make([]byte, codec.FrameSamples)
	for i := range silentFrame {
		// Near-silence (+8/-8) so calibration sees a non-zero noise floor.
		if i%2 == 0 {
			silentFrame[i] = 0xFE // mu-law encoded +8
		} else {
			silentFrame[i] = 0x7E // mu-law encoded -8
		}
	}
	loudFrame := make([]byte, codec.FrameSamples)
	for i := range loudFrame {
		if i%2 == 0 {
			loudFrame[i] = 0x00
		} else {
			loudFrame[i] = 0x0F
		}
	}

	push := func(f []byte) {
		cp := make([]byte, len(f))
		copy(cp, f)
		if !in.Push(cp) {
			t.Fatalf("push into inbound queue failed (queue full)")
		}
	}

	for i := 0; i < 25+25; i++ {
		push(silentFrame)
	}
	for i := 0; i < 50; i++ {
		push(loudFrame)
	}
	for i := 0; i < 50; i++ {
		push(silentFrame)
	}
}

func TestToolCallLoopTerminatesOnPlainText(t *testing.T) {
	in := frame.New(4096)
	out := frame.New(4096)
	feedSilenceTriggeringFrames(t, in)

	stt := &fakeSTT{}
	llm := &fakeLLM{replies: []LLMReply{
		{ToolCall: &ToolCall{Name: "weather__get_weather_today", Arguments: `{"location":"London"}`}},
		{Text: "It'll rain."},
	}}
	tts := &fakeTTS{}
	tools := &fakeTools{result: "Rainy, 15C"}

	c := New(in, out, stt, llm, tts, tools, testClips(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	transcript, err := c.listen(ctx)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if err := c.turn(ctx, transcript); err != nil {
		t.Fatalf("turn: %v", err)
	}
	cancel()

	if tools.calls != 1 {
		t.Fatalf("tool calls = %d, want 1", tools.calls)
	}
	if tts.calls != 1 {
		t.Fatalf("tts calls = %d, want 1", tts.calls)
	}
	if tts.gotText[0] != "It'll rain." {
		t.Fatalf("tts text = %q, want %q", tts.gotText[0], "It'll rain.")
	}

	var gotToolCall, gotToolResult, gotAssistantText bool
	for _, m := range c.conversationLog {
		switch {
		case m.Role == RoleAssistant && m.ToolCall != nil:
			gotToolCall = true
		case m.Role == RoleToolResult:
			gotToolResult = true
		case m.Role == RoleAssistant && m.Content == "It'll rain.":
			gotAssistantText = true
		}
	}
	if !gotToolCall || !gotToolResult || !gotAssistantText {
		t.Fatalf("expected assistant-with-call, tool_result, assistant-text in log, got %+v", c.conversationLog)
	}
}

func TestWatchdogDoesNotFireWhenTTSIsFast(t *testing.T) {
	in := frame.New(4096)
	out := frame.New(4096)

	stt := &fakeSTT{}
	llm := &fakeLLM{replies: []LLMReply{{Text: "hi"}}}
	tools := &fakeTools{}
	clips := testClips()
	c := New(in, out, stt, llm, &blockingThenChunkTTS{delay: 50 * time.Millisecond}, tools, clips, nil)
	c.watchdogDelay = 4 * time.Second

	ctx := context.Background()
	if err := c.turn(ctx, "hello"); err != nil {
		t.Fatalf("turn: %v", err)
	}

	var sawOneMoment bool
	for _, m := range c.conversationLog {
		if m.Role == RoleAssistant && m.Content == oneMomentText {
			sawOneMoment = true
		}
	}
	if sawOneMoment {
		t.Fatalf("one-moment clip should not fire when TTS is fast relative to watchdogDelay")
	}
}

// TestWatchdogFiresWhenTTSExceedsDelay shrinks watchdogDelay below the
// fake TTS client's synthesize delay so the watchdog genuinely fires,
// proving the positive case of spec.md §8 Property 8 (the negative case,
// a fast TTS never tripping the watchdog, is covered above).
func TestWatchdogFiresWhenTTSExceedsDelay(t *testing.T) {
	in := frame.New(4096)
	out := frame.New(4096)

	stt := &fakeSTT{}
	llm := &fakeLLM{replies: []LLMReply{{Text: "hi"}}}
	tools := &fakeTools{}
	clips := testClips()
	c := New(in, out, stt, llm, &blockingThenChunkTTS{delay: 100 * time.Millisecond}, tools, clips, nil)
	c.watchdogDelay = 20 * time.Millisecond

	ctx := context.Background()
	if err := c.turn(ctx, "hello"); err != nil {
		t.Fatalf("turn: %v", err)
	}

	var sawOneMoment bool
	for _, m := range c.conversationLog {
		if m.Role == RoleAssistant && m.Content == oneMomentText {
			sawOneMoment = true
		}
	}
	if !sawOneMoment {
		t.Fatalf("one-moment clip should fire when TTS exceeds watchdogDelay, got log %+v", c.conversationLog)
	}

	var framesSeen int
	for !out.Empty() {
		if _, ok := out.TryPop(); ok {
			framesSeen++
		}
	}
	if framesSeen == 0 {
		t.Fatalf("expected at least the one-moment clip's frame(s) on the outbound queue")
	}
}

// blockingThenChunkTTS synthesizes after a short delay, to exercise the
// first-chunk-stops-watchdog path without waiting out the real 4s delay.
type blockingThenChunkTTS struct {
	delay time.Duration
}

func (b *blockingThenChunkTTS) Synthesize(ctx context.Context, text string, onChunk func([]byte) error) error {
	time.Sleep(b.delay)
	return onChunk(make([]byte, codec.FrameSamples*2))
}

func TestPushMuLawFramesCarriesRemainderAcrossChunks(t *testing.T) {
	in := frame.New(4096)
	out := frame.New(4096)
	c := New(in, out, &fakeSTT{}, &fakeLLM{}, &fakeTTS{}, &fakeTools{}, testClips(), nil)

	// 3 bytes: exercises the odd-byte PCM remainder path.
	rem := c.pushMuLawFrames([]byte{0x00, 0x00, 0x01})
	if len(rem) != 1 {
		t.Fatalf("remainder length = %d, want 1", len(rem))
	}
	if !out.Empty() {
		t.Fatalf("expected no full frame pushed yet")
	}

	// Feed enough more PCM bytes (as if from the next chunk) to complete a
	// full 160-byte mu-law frame (320 PCM bytes total, minus what's already
	// consumed).
	more := make([]byte, 320-2)
	full := append(rem, more...)
	leftover := c.pushMuLawFrames(full)
	if len(leftover) > 1 {
		t.Fatalf("leftover too large: %d", len(leftover))
	}
	if out.Empty() {
		t.Fatalf("expected exactly one full frame pushed")
	}
	f, ok := out.TryPop()
	if !ok || len(f) != codec.FrameSamples {
		t.Fatalf("popped frame length = %d, ok=%v, want %d", len(f), ok, codec.FrameSamples)
	}
}

func TestDrainAfterTurnDrainsInboundQueue(t *testing.T) {
	in := frame.New(4096)
	out := frame.New(4096)
	c := New(in, out, &fakeSTT{}, &fakeLLM{}, &fakeTTS{}, &fakeTools{}, testClips(), nil)

	in.Push(make([]byte, codec.FrameSamples))
	if err := c.drainAfterTurn(context.Background()); err != nil {
		t.Fatalf("drainAfterTurn: %v", err)
	}
	if !in.Empty() {
		t.Fatalf("expected inbound queue drained")
	}
}
