package videogen

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxPromptLength is the hard cap on prompt length in runes.
	MaxPromptLength = 1000
	// TruncationMarker is appended whenever a prompt is cut.
	TruncationMarker = " [truncated]"
	// WordsPerSecond is the narration pace used to size scripts.
	WordsPerSecond  = 2.5
	avgCharsPerWord = 6
)

// BuildPrompt composes the provider prompt. Pacing rules come first so that
// truncation only ever shortens the script excerpt.
func BuildPrompt(style, topic, script string, durationSeconds int) string {
	if durationSeconds <= 0 {
		durationSeconds = 10
	}
	maxWords := int(float64(durationSeconds) * WordsPerSecond)
	maxChars := maxWords * avgCharsPerWord

	var b strings.Builder
	fmt.Fprintf(&b, "Short video, %d seconds. ", durationSeconds)
	fmt.Fprintf(&b, "Voice-over pacing: at most %d words (about %d characters) spoken in %d seconds. ", maxWords, maxChars, durationSeconds)
	b.WriteString("Match every cut to the narration pacing and keep each shot on screen while its sentence is spoken. ")
	if s := strings.TrimSpace(style); s != "" {
		fmt.Fprintf(&b, "Visual style: %s. ", s)
	}
	if t := strings.TrimSpace(topic); t != "" {
		fmt.Fprintf(&b, "Topic: %s. ", t)
	}
	if s := strings.TrimSpace(script); s != "" {
		fmt.Fprintf(&b, "Narration: %q", s)
	}

	return Truncate(strings.TrimSpace(b.String()), MaxPromptLength)
}

// Truncate caps s at limit runes, marker included.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	keep := limit - utf8.RuneCountInString(TruncationMarker)
	if keep < 0 {
		keep = 0
	}
	runes := []rune(s)
	return string(runes[:keep]) + TruncationMarker
}
