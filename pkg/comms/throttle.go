package comms

import (
	"sync"
	"time"
)

// throttleWindow is how often ByteThrottle recomputes its in/out deltas,
// per the spec's 50ms cadence.
const throttleWindow = 50 * time.Millisecond

// ByteThrottle paces a connection's upload/download byte rate. Every
// recompute window it measures how many bytes moved in each direction; if
// either exceeds its configured per-second budget, Delay returns a sleep
// proportional to the excess for the caller to wait out before reading the
// next frame. No frame is ever dropped.
type ByteThrottle struct {
	mu sync.Mutex

	uploadPerSecond   int64
	downloadPerSecond int64

	windowStart time.Time
	uploaded    int64
	downloaded  int64
}

// NewByteThrottle creates a throttle with the given per-second budgets. A
// non-positive budget disables throttling in that direction.
func NewByteThrottle(uploadPerSecond, downloadPerSecond int64) *ByteThrottle {
	return &ByteThrottle{
		uploadPerSecond:   uploadPerSecond,
		downloadPerSecond: downloadPerSecond,
		windowStart:       time.Now(),
	}
}

// RecordUpload registers n bytes written since the last recompute.
func (t *ByteThrottle) RecordUpload(n int) {
	t.mu.Lock()
	t.uploaded += int64(n)
	t.mu.Unlock()
}

// RecordDownload registers n bytes read since the last recompute.
func (t *ByteThrottle) RecordDownload(n int) {
	t.mu.Lock()
	t.downloaded += int64(n)
	t.mu.Unlock()
}

// Delay recomputes the current window (if due) and returns how long the
// caller should sleep before its next frame, proportional to whichever
// direction is furthest over budget.
func (t *ByteThrottle) Delay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(t.windowStart)
	if elapsed < throttleWindow {
		return 0
	}

	seconds := elapsed.Seconds()
	var excess time.Duration

	if t.uploadPerSecond > 0 {
		if over := overBudget(t.uploaded, t.uploadPerSecond, seconds); over > excess {
			excess = over
		}
	}
	if t.downloadPerSecond > 0 {
		if over := overBudget(t.downloaded, t.downloadPerSecond, seconds); over > excess {
			excess = over
		}
	}

	t.windowStart = now
	t.uploaded = 0
	t.downloaded = 0
	return excess
}

func overBudget(moved int64, budgetPerSecond int64, seconds float64) time.Duration {
	allowed := float64(budgetPerSecond) * seconds
	if float64(moved) <= allowed {
		return 0
	}
	excessFraction := (float64(moved) - allowed) / float64(budgetPerSecond)
	return time.Duration(excessFraction * float64(time.Second))
}
