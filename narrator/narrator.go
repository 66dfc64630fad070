// Package narrator speaks interview prompts through the platform speech
// engine. Narration is best-effort: callers always get control back
// exactly once per Speak, even when no engine exists.
package narrator

import "context"

type Narrator interface {
	Name() string
	// Speak synthesizes text and blocks until playback ends or ctx is
	// cancelled. A non-nil error means playback failed; callers treat it
	// as non-fatal.
	Speak(ctx context.Context, text string) error
}

// New returns the platform engine, or Null when none is installed.
// voice selects a named voice where the engine supports one; an engine
// that cannot find the voice falls back to its default.
func New(voice string) Narrator {
	if n := newPlatform(voice); n != nil {
		return n
	}
	return Null{}
}

// Null is the no-engine fallback: Speak returns immediately so the
// interview flow never blocks on unavailable speech.
type Null struct{}

func (Null) Name() string                        { return "none" }
func (Null) Speak(context.Context, string) error { return nil }
