package conversation

import (
	"sync"
	"time"
)

// watchdog runs onAudio once, after delay, unless stopped first, and
// signals fired so the controller goroutine can record the event in its
// own time. onAudio only touches the outbound frame queue, which is safe
// to push to from any goroutine; the conversation log is single-writer
// (spec.md §5), so the log append it triggers must happen when the
// controller goroutine drains fired, never from this timer goroutine.
// stop is idempotent: the first TTS chunk stops it early, and turn's
// deferred stop is a no-op in that case (spec.md §4.7 step 4).
type watchdog struct {
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	fired   chan struct{}
}

func newWatchdog(delay time.Duration, onAudio func()) *watchdog {
	wd := &watchdog{fired: make(chan struct{}, 1)}
	wd.timer = time.AfterFunc(delay, func() {
		wd.mu.Lock()
		already := wd.stopped
		wd.stopped = true
		wd.mu.Unlock()
		if already {
			return
		}
		onAudio()
		wd.fired <- struct{}{}
	})
	return wd
}

func (wd *watchdog) stop() {
	wd.mu.Lock()
	defer wd.mu.Unlock()
	if wd.stopped {
		return
	}
	wd.stopped = true
	wd.timer.Stop()
}

// drain reports whether the watchdog has fired since the last call,
// without blocking. Call it from the controller goroutine only.
func (wd *watchdog) drain() bool {
	select {
	case <-wd.fired:
		return true
	default:
		return false
	}
}
