package conversation

import "errors"

var (
	// ErrShutdown is returned by blocking operations when the call's
	// shutdown flag was set before they could complete.
	ErrShutdown = errors.New("conversation: shutdown requested")

	// ErrLLMFailed aborts a turn through the fatal path (spec.md §7).
	ErrLLMFailed = errors.New("conversation: language model request failed")

	// ErrTTSFailed aborts a turn through the fatal path (spec.md §7).
	ErrTTSFailed = errors.New("conversation: text-to-speech request failed")
)
