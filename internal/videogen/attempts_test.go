package videogen

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/reelcast/autopilot/internal/modes"
	"github.com/stretchr/testify/assert"
)

func TestBuildAttemptPlan(t *testing.T) {
	m := modes.Target{Provider: "kie", Model: "sora-2-pro-text-to-video"}
	s := modes.Target{Provider: "kie", Model: "sora-2-text-to-video"}

	assert.Equal(t, []modes.Target{m, m, s, s}, BuildAttemptPlan(m, s, 2))
	assert.Equal(t, []modes.Target{s, s}, BuildAttemptPlan(s, s, 2))
	assert.Len(t, BuildAttemptPlan(m, s, 0), 4)
	assert.Equal(t, []modes.Target{m, m}, BuildAttemptPlan(m, modes.Target{}, 2))
}

func TestBuildPromptIncludesPacing(t *testing.T) {
	p := BuildPrompt("bright flat illustration", "morning habits", "Write one task down.", 10)
	assert.Contains(t, p, "at most 25 words")
	assert.Contains(t, p, "narration pacing")
	assert.Contains(t, p, "bright flat illustration")
	assert.Contains(t, p, "morning habits")
	assert.Contains(t, p, `"Write one task down."`)
}

func TestBuildPromptTruncatesWithMarker(t *testing.T) {
	script := strings.Repeat("word ", 400)
	p := BuildPrompt("", "topic", script, 10)

	assert.Equal(t, MaxPromptLength, utf8.RuneCountInString(p))
	assert.True(t, strings.HasSuffix(p, TruncationMarker))
	assert.Contains(t, p, "at most 25 words")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	got := Truncate("ééééééééééééééééééééééé", 15)
	assert.Equal(t, 15, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, TruncationMarker))
}
