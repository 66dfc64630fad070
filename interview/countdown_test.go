package interview

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestCountdownCompletesOnce(t *testing.T) {
	var ticks []int
	var completions atomic.Int32
	done := make(chan struct{})

	cd := NewCountdown()
	cd.Start(2, func(remaining int) {
		ticks = append(ticks, remaining)
	}, func() {
		completions.Add(1)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("countdown did not complete")
	}

	if got := completions.Load(); got != 1 {
		t.Errorf("completions = %d, want 1", got)
	}
	if len(ticks) != 2 || ticks[0] != 2 || ticks[1] != 1 {
		t.Errorf("ticks = %v, want [2 1]", ticks)
	}

	// Cancel after completion must not panic or re-fire.
	cd.Cancel()
	if got := completions.Load(); got != 1 {
		t.Errorf("completions after cancel = %d, want 1", got)
	}
}

func TestCountdownCancelSuppressesCompletion(t *testing.T) {
	var completions atomic.Int32
	cd := NewCountdown()
	cd.Start(10, nil, func() { completions.Add(1) })

	cd.Cancel()
	time.Sleep(1500 * time.Millisecond)

	if got := completions.Load(); got != 0 {
		t.Errorf("completions = %d, want 0 after cancel", got)
	}
}
