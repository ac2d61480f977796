// Package conversation implements the turn state machine that sequences
// capture, STT, LLM (with tool calls), and TTS for one call (spec.md §4.7).
//
// The provider and tool interfaces below are owned by this package, not by
// the packages that implement them (internal/providers/*, internal/tools),
// mirroring the teacher's pkg/orchestrator/types.go pattern. This keeps
// provider packages free to import conversation without conversation ever
// importing them back.
package conversation

import "context"

// Role identifies who produced a conversation log entry.
type Role string

const (
	RoleSystem     Role = "system"
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool_result"
)

// ToolCall is the {name, json-arguments} pair an assistant message carries
// when the model wants to invoke a tool.
type ToolCall struct {
	Name      string
	Arguments string
}

// Message is one entry in the conversation log.
type Message struct {
	Role     Role
	Content  string
	ToolCall *ToolCall
}

// ToolProperty mirrors tools.Property without importing the tools package.
type ToolProperty struct {
	Type        string
	Description string
}

// ToolSchema mirrors tools.Schema without importing the tools package.
type ToolSchema struct {
	Type       string
	Properties map[string]ToolProperty
	Required   []string
}

// ExportedTool is the {name, description, parameters} shape the LLM client
// sends as part of its request.
type ExportedTool struct {
	Name        string
	Description string
	Parameters  ToolSchema
}

// ToolRegistry is the subset of tools.Registry the controller depends on.
// CallJSON takes the raw JSON arguments object the LLM emitted for a tool
// call and returns the handler's string output (or a sentinel for an
// unknown tool or a handler panic).
type ToolRegistry interface {
	ExportedSchemas() []ExportedTool
	CallJSON(name string, rawArgs []byte) string
}

// LLMReply is either plain text or a tool call, never both.
type LLMReply struct {
	Text     string
	ToolCall *ToolCall
}

// LLMClient issues one chat-completion request per call and returns either
// plain text or a tool call.
type LLMClient interface {
	Complete(ctx context.Context, log []Message, tools []ExportedTool) (LLMReply, error)
}

// STTUpload is a single streaming speech-to-text upload for one user turn.
type STTUpload interface {
	AddFrame(frame []byte) error
	Finish(ctx context.Context) (string, error)
	Discard()
}

// STTClient opens a new streaming upload at the start of each LISTEN state.
type STTClient interface {
	StartUpload(ctx context.Context) (STTUpload, error)
}

// TTSClient streams synthesized speech back through onChunk, where each
// chunk is little-endian signed 16-bit linear PCM at 8kHz.
type TTSClient interface {
	Synthesize(ctx context.Context, text string, onChunk func([]byte) error) error
}

// VoiceSetter is satisfied by the process-wide mutable TTS voice cell.
type VoiceSetter interface {
	SetVoice(voiceID string)
}
