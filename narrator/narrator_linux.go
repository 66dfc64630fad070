//go:build linux

package narrator

import (
	"context"
	"fmt"
	"os/exec"
)

type execNarrator struct {
	name string
	args func(voice, text string) []string

	voice string
}

// Engines in preference order. espeak-ng speaks inline; spd-say needs
// -w to block until playback ends.
var engines = []execNarrator{
	{name: "espeak-ng", args: func(voice, text string) []string {
		if voice != "" {
			return []string{"-v", voice, text}
		}
		return []string{text}
	}},
	{name: "espeak", args: func(voice, text string) []string {
		if voice != "" {
			return []string{"-v", voice, text}
		}
		return []string{text}
	}},
	{name: "spd-say", args: func(voice, text string) []string {
		return []string{"-w", text}
	}},
}

func newPlatform(voice string) Narrator {
	for i := range engines {
		if _, err := exec.LookPath(engines[i].name); err == nil {
			n := engines[i]
			n.voice = voice
			return &n
		}
	}
	return nil
}

func (e *execNarrator) Name() string { return e.name }

func (e *execNarrator) Speak(ctx context.Context, text string) error {
	cmd := exec.CommandContext(ctx, e.name, e.args(e.voice, text)...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", e.name, err)
	}
	return nil
}
