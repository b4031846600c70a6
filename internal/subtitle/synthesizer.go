// Package subtitle synthesizes WebVTT subtitle files from transcribed text.
package subtitle

import (
	"fmt"
	"strings"
)

const (
	// headerDurationMs is how long the language header cue stays on screen.
	headerDurationMs = 3000
	// minCueDurationMs is the floor for any text cue.
	minCueDurationMs = 2000
	// charsPerSecond drives reading-speed based cue durations.
	charsPerSecond = 80
)

// Synthesize builds a WebVTT document from a transcription. The first cue
// announces the language; each sentence then gets a cue whose duration scales
// with its length at charsPerSecond, never below minCueDurationMs. Output is
// byte-identical for identical input.
func Synthesize(text, languageLabel string) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")

	b.WriteString(formatTimestamp(0))
	b.WriteString(" --> ")
	b.WriteString(formatTimestamp(headerDurationMs))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Language: %s\n\n", languageLabel)

	cursor := headerDurationMs
	for _, sentence := range splitSentences(text) {
		duration := len(sentence) * 1000 / charsPerSecond
		if duration < minCueDurationMs {
			duration = minCueDurationMs
		}

		b.WriteString(formatTimestamp(cursor))
		b.WriteString(" --> ")
		b.WriteString(formatTimestamp(cursor + duration))
		b.WriteString("\n")
		b.WriteString(sentence)
		b.WriteString("\n\n")

		cursor += duration
	}

	return b.String()
}

// splitSentences splits on ". ", trims whitespace, and restores the trailing
// period on each surviving segment.
func splitSentences(text string) []string {
	var out []string
	for _, part := range strings.Split(text, ". ") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.HasSuffix(part, ".") {
			part += "."
		}
		out = append(out, part)
	}
	return out
}

// formatTimestamp renders milliseconds as MM:SS.mmm.
func formatTimestamp(ms int) string {
	minutes := ms / 60000
	seconds := (ms % 60000) / 1000
	millis := ms % 1000
	return fmt.Sprintf("%02d:%02d.%03d", minutes, seconds, millis)
}
