package subtitle

import (
	"strings"
	"testing"
)

func TestSynthesize_HeaderCue(t *testing.T) {
	vtt := Synthesize("", "French")

	if !strings.HasPrefix(vtt, "WEBVTT\n\n") {
		t.Errorf("expected WEBVTT header, got %q", vtt[:20])
	}
	if !strings.Contains(vtt, "00:00.000 --> 00:03.000\nLanguage: French\n") {
		t.Errorf("expected language header cue, got:\n%s", vtt)
	}
}

func TestSynthesize_ShortSentenceGetsMinimumDuration(t *testing.T) {
	vtt := Synthesize("Hello there", "English")

	// 12 chars is well under the 160 needed to exceed the 2s floor.
	if !strings.Contains(vtt, "00:03.000 --> 00:05.000\nHello there.\n") {
		t.Errorf("expected 2s cue starting at header end, got:\n%s", vtt)
	}
}

func TestSynthesize_LongSentenceScalesWithLength(t *testing.T) {
	// 240 chars reads as 3000 ms at 80 chars per second.
	sentence := strings.Repeat("abcdefghij", 24)
	vtt := Synthesize(sentence, "English")

	if !strings.Contains(vtt, "00:03.000 --> 00:06.012") {
		t.Errorf("expected scaled duration for long sentence, got:\n%s", vtt)
	}
}

func TestSynthesize_SentencesAreContiguous(t *testing.T) {
	vtt := Synthesize("First sentence. Second sentence. Third", "English")

	wantCues := []string{
		"00:03.000 --> 00:05.000\nFirst sentence.",
		"00:05.000 --> 00:07.000\nSecond sentence.",
		"00:07.000 --> 00:09.000\nThird.",
	}
	for _, cue := range wantCues {
		if !strings.Contains(vtt, cue) {
			t.Errorf("missing cue %q in:\n%s", cue, vtt)
		}
	}
}

func TestSynthesize_TrailingPeriodRestored(t *testing.T) {
	vtt := Synthesize("No trailing period here", "English")
	if !strings.Contains(vtt, "No trailing period here.\n") {
		t.Errorf("expected restored trailing period, got:\n%s", vtt)
	}
}

func TestSynthesize_EmptySegmentsDropped(t *testing.T) {
	vtt := Synthesize("One. .  . Two", "English")

	if strings.Contains(vtt, "\n.\n") {
		t.Errorf("expected empty segments dropped, got:\n%s", vtt)
	}
	if !strings.Contains(vtt, "One.") || !strings.Contains(vtt, "Two.") {
		t.Errorf("expected surviving segments kept, got:\n%s", vtt)
	}
}

func TestSynthesize_Deterministic(t *testing.T) {
	a := Synthesize("Same input. Every time", "French")
	b := Synthesize("Same input. Every time", "French")
	if a != b {
		t.Error("expected byte-identical output for identical input")
	}
}

func TestSynthesize_MinuteRollover(t *testing.T) {
	// 40 sentences at 2s each push the cursor past one minute.
	text := strings.Repeat("Short one. ", 40)
	vtt := Synthesize(text, "English")

	if !strings.Contains(vtt, "01:") {
		t.Errorf("expected minute field past 60s, got:\n%s", vtt)
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		ms   int
		want string
	}{
		{0, "00:00.000"},
		{3000, "00:03.000"},
		{61500, "01:01.500"},
		{600123, "10:00.123"},
	}
	for _, tt := range tests {
		if got := formatTimestamp(tt.ms); got != tt.want {
			t.Errorf("formatTimestamp(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}
