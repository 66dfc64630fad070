//go:build windows

package narrator

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

type sapiNarrator struct {
	voice string
}

func newPlatform(voice string) Narrator {
	if _, err := exec.LookPath("powershell"); err != nil {
		return nil
	}
	return &sapiNarrator{voice: voice}
}

func (s *sapiNarrator) Name() string { return "sapi" }

func (s *sapiNarrator) Speak(ctx context.Context, text string) error {
	var sb strings.Builder
	sb.WriteString("Add-Type -AssemblyName System.Speech; ")
	sb.WriteString("$s = New-Object System.Speech.Synthesis.SpeechSynthesizer; ")
	if s.voice != "" {
		fmt.Fprintf(&sb, "try { $s.SelectVoice('%s') } catch {}; ", escapeSingleQuotes(s.voice))
	}
	fmt.Fprintf(&sb, "$s.Speak('%s')", escapeSingleQuotes(text))

	cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command", sb.String())
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sapi: %w", err)
	}
	return nil
}

func escapeSingleQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
