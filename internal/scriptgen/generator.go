// Package scriptgen turns topic research into short narration scripts and,
// for plans with auto research, proposes the research itself.
package scriptgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/reelcast/autopilot/internal/models"
	"github.com/reelcast/autopilot/internal/providers/openai"
)

// ErrEmptyScript is returned when the model produced no usable text.
var ErrEmptyScript = errors.New("generated script is empty")

// TextGenerator is the text-generation backend.
type TextGenerator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (openai.Completion, error)
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (openai.Completion, error)
}

// Fields are the inputs to a script. Persona is optional.
type Fields struct {
	Idea         string
	Description  string
	WhyItMatters string
	UsefulTips   string
	Category     string
	Persona      string
}

// Result is a generated script.
type Result struct {
	Script     string
	TokensUsed int
}

// Generator writes scripts and research. It holds no state between calls.
type Generator struct {
	llm TextGenerator
}

// New creates a Generator backed by llm.
func New(llm TextGenerator) *Generator {
	return &Generator{llm: llm}
}

// Generate writes a narration script for fields. Failures are wrapped and
// returned without retrying.
func (g *Generator) Generate(ctx context.Context, fields Fields) (*Result, error) {
	user := UserPrompt(fields)
	if user == "" {
		return nil, errors.New("script generation: no input fields provided")
	}

	completion, err := g.llm.Complete(ctx, SystemPrompt(fields.Category), user)
	if err != nil {
		return nil, fmt.Errorf("script generation failed: %w", err)
	}

	script := strings.TrimSpace(strings.Trim(completion.Content, "\"“”"))
	if script == "" {
		return nil, fmt.Errorf("script generation failed: %w", ErrEmptyScript)
	}

	return &Result{Script: withCallToAction(script), TokensUsed: completion.TokensUsed}, nil
}

// UserPrompt renders every provided field. Placeholder values such as
// "not provided" are left out entirely.
func UserPrompt(f Fields) string {
	parts := []struct{ label, value string }{
		{"Idea", f.Idea},
		{"Description", f.Description},
		{"Why it matters", f.WhyItMatters},
		{"Useful tips", f.UsefulTips},
		{"Category", f.Category},
		{"Narrator persona", f.Persona},
	}

	var b strings.Builder
	for _, p := range parts {
		if !provided(p.value) {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", p.label, strings.TrimSpace(p.value))
	}
	return strings.TrimSpace(b.String())
}

// Research proposes a video topic for a niche. An explicit topic narrows it.
func (g *Generator) Research(ctx context.Context, niche, topic string) (*models.Research, error) {
	var b strings.Builder
	if provided(niche) {
		fmt.Fprintf(&b, "Channel niche: %s\n", strings.TrimSpace(niche))
	}
	if provided(topic) {
		fmt.Fprintf(&b, "Requested topic: %s\n", strings.TrimSpace(topic))
	}
	if b.Len() == 0 {
		b.WriteString("Channel niche: everyday self-improvement\n")
	}

	completion, err := g.llm.CompleteJSON(ctx, researchPrompt, b.String())
	if err != nil {
		return nil, fmt.Errorf("research generation failed: %w", err)
	}

	var research models.Research
	if err := json.Unmarshal([]byte(completion.Content), &research); err != nil {
		return nil, fmt.Errorf("research generation: invalid payload: %w", err)
	}
	if strings.TrimSpace(research.Idea) == "" {
		return nil, errors.New("research generation: payload has no idea")
	}
	return &research, nil
}

func provided(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "not provided", "n/a":
		return false
	}
	return true
}

func withCallToAction(script string) string {
	if strings.HasSuffix(script, CallToAction) {
		return script
	}
	return script + " " + CallToAction
}
