package speech

import (
	"context"
	"strings"
	"testing"
)

// chunkRecognizer returns a different text per call, failing selected calls.
type chunkRecognizer struct {
	texts    []string
	failIdx  map[int]error
	nextCall int
}

func (c *chunkRecognizer) Recognize(_ context.Context, _, _ string) (string, error) {
	i := c.nextCall
	c.nextCall++
	if err, ok := c.failIdx[i]; ok {
		return "", err
	}
	if i < len(c.texts) {
		return c.texts[i], nil
	}
	return "", ErrNoSpeech
}

// fixedProber reports a constant duration.
type fixedProber struct {
	duration float64
}

func (f fixedProber) Duration(_ context.Context, _ string) (float64, error) {
	return f.duration, nil
}

func TestTranscriber_JoinsChunksInOrder(t *testing.T) {
	rec := &chunkRecognizer{texts: []string{"first part.", "second part.", "third part."}}
	tr := NewTranscriber(rec, &fakeCutter{}, fixedProber{duration: 90}, 30, testLogger())

	text, err := tr.Transcribe(context.Background(), "audio.wav", t.TempDir(), "en")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	want := "first part. second part. third part."
	if text != want {
		t.Errorf("expected %q, got %q", want, text)
	}
	if rec.nextCall != 3 {
		t.Errorf("expected 3 chunks, got %d", rec.nextCall)
	}
}

func TestTranscriber_SkipsFailedChunk(t *testing.T) {
	rec := &chunkRecognizer{
		texts:   []string{"alpha.", "", "gamma."},
		failIdx: map[int]error{1: ErrServerError},
	}
	tr := NewTranscriber(rec, &fakeCutter{}, fixedProber{duration: 75}, 30, testLogger())

	text, err := tr.Transcribe(context.Background(), "audio.wav", t.TempDir(), "en")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "alpha. gamma." {
		t.Errorf("expected failed chunk skipped, got %q", text)
	}
}

func TestTranscriber_SilentChunksYieldEmpty(t *testing.T) {
	rec := &chunkRecognizer{}
	tr := NewTranscriber(rec, &fakeCutter{}, fixedProber{duration: 45}, 30, testLogger())

	text, err := tr.Transcribe(context.Background(), "audio.wav", t.TempDir(), "en")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "" {
		t.Errorf("expected empty text, got %q", text)
	}
}

func TestTranscriber_ShortAudioSingleChunk(t *testing.T) {
	rec := &chunkRecognizer{texts: []string{"only one."}}
	cutter := &fakeCutter{}
	tr := NewTranscriber(rec, cutter, fixedProber{duration: 8}, 30, testLogger())

	text, err := tr.Transcribe(context.Background(), "audio.wav", t.TempDir(), "en")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "only one." {
		t.Errorf("expected single chunk text, got %q", text)
	}
	if cutter.calls != 1 {
		t.Errorf("expected 1 cut, got %d", cutter.calls)
	}
}

func TestTranscriber_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := NewTranscriber(&chunkRecognizer{}, &fakeCutter{}, fixedProber{duration: 60}, 30, testLogger())
	_, err := tr.Transcribe(ctx, "audio.wav", t.TempDir(), "en")
	if err == nil || !strings.Contains(err.Error(), "cancelled") {
		t.Errorf("expected cancellation error, got %v", err)
	}
}
