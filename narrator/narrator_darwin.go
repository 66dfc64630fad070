//go:build darwin

package narrator

import (
	"context"
	"fmt"
	"os/exec"
)

type sayNarrator struct {
	voice string
}

func newPlatform(voice string) Narrator {
	if _, err := exec.LookPath("say"); err != nil {
		return nil
	}
	return &sayNarrator{voice: voice}
}

func (s *sayNarrator) Name() string { return "say" }

func (s *sayNarrator) Speak(ctx context.Context, text string) error {
	args := []string{}
	if s.voice != "" {
		args = append(args, "-v", s.voice)
	}
	args = append(args, text)
	cmd := exec.CommandContext(ctx, "say", args...)
	if err := cmd.Run(); err != nil {
		if s.voice != "" {
			// Unknown voice makes say exit non-zero; retry with the default.
			retry := exec.CommandContext(ctx, "say", text)
			if retry.Run() == nil {
				return nil
			}
		}
		return fmt.Errorf("say: %w", err)
	}
	return nil
}
