// Package prompts holds the system prompts the bot can run with.
package prompts

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed default.md
var defaultPrompt string

// Mode names a system prompt variant.
type Mode string

const (
	ModeDefault   Mode = "default"
	ModeCasual    Mode = "casual"
	ModeTechnical Mode = "technical"
	ModeBrief     Mode = "brief"
)

var byMode = map[Mode]string{
	ModeDefault: defaultPrompt,
	ModeCasual: `You are Mr Trove Advisor, a friendly assistant in Varvet's Slack workspace.
Keep a relaxed, conversational tone while staying professional.`,
	ModeTechnical: `You are Mr Trove Advisor, a technical assistant specializing in software development.
Give detailed explanations, code examples and concrete recommendations. Be precise and thorough.`,
	ModeBrief: `You are Mr Trove Advisor, a concise assistant.
Keep every answer short and to the point while remaining helpful.`,
}

// ForMode returns the system prompt for mode. An empty mode selects ModeDefault.
func ForMode(mode string) (string, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(mode)))
	if m == "" {
		m = ModeDefault
	}
	p, ok := byMode[m]
	if !ok {
		return "", fmt.Errorf("unknown prompt mode %q (want one of %s)", mode, strings.Join(Modes(), ", "))
	}
	return strings.TrimSpace(p), nil
}

// Modes lists the known prompt modes.
func Modes() []string {
	out := make([]string, 0, len(byMode))
	for m := range byMode {
		out = append(out, string(m))
	}
	sort.Strings(out)
	return out
}
