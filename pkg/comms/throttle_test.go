package comms

import (
	"testing"
	"time"
)

func TestByteThrottleUnderBudgetNeverDelays(t *testing.T) {
	th := NewByteThrottle(1_000_000, 1_000_000)
	th.RecordUpload(10)
	th.RecordDownload(10)
	time.Sleep(60 * time.Millisecond)
	if d := th.Delay(); d != 0 {
		t.Fatalf("Delay() = %v, want 0", d)
	}
}

func TestByteThrottleDisabledDirectionNeverDelays(t *testing.T) {
	th := NewByteThrottle(0, 0)
	th.RecordUpload(10_000_000)
	th.RecordDownload(10_000_000)
	time.Sleep(60 * time.Millisecond)
	if d := th.Delay(); d != 0 {
		t.Fatalf("Delay() = %v, want 0", d)
	}
}

func TestByteThrottleOverBudgetDelaysProportionally(t *testing.T) {
	th := NewByteThrottle(100, 0)
	th.RecordUpload(1000)
	time.Sleep(60 * time.Millisecond)
	if d := th.Delay(); d <= 0 {
		t.Fatalf("Delay() = %v, want > 0", d)
	}
}

func TestByteThrottleSkipsRecomputeBeforeWindowElapses(t *testing.T) {
	th := NewByteThrottle(1, 0)
	th.RecordUpload(1_000_000)
	if d := th.Delay(); d != 0 {
		t.Fatalf("Delay() before window elapsed = %v, want 0", d)
	}
}
