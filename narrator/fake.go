package narrator

import (
	"context"
	"sync"
	"time"
)

// Fake records everything spoken. Tests use it to assert narration order
// and count without a speech engine.
type Fake struct {
	Delay time.Duration
	Err   error

	mu     sync.Mutex
	spoken []string
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Speak(ctx context.Context, text string) error {
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.mu.Unlock()
	return f.Err
}

func (f *Fake) Spoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.spoken))
	copy(out, f.spoken)
	return out
}
