package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// DurationProber reports the duration of a media file in seconds. Satisfied
// by media.FFmpegProcessor.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Transcriber converts a full audio track into text by recognizing fixed-size
// windows independently. A window that fails to recognize is skipped and
// contributes no text; it never aborts the whole transcription.
type Transcriber struct {
	recognizer Recognizer
	cutter     AudioCutter
	prober     DurationProber
	chunkSec   int
	logger     *slog.Logger
}

// NewTranscriber creates a chunked transcriber with the given window size in
// seconds.
func NewTranscriber(recognizer Recognizer, cutter AudioCutter, prober DurationProber, chunkSec int, logger *slog.Logger) *Transcriber {
	if chunkSec <= 0 {
		chunkSec = 30
	}
	return &Transcriber{
		recognizer: recognizer,
		cutter:     cutter,
		prober:     prober,
		chunkSec:   chunkSec,
		logger:     logger,
	}
}

// Transcribe recognizes the WAV file at audioPath in langCode, window by
// window, and joins the surviving texts in order with single spaces. Returns
// an empty string when no window produced text.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath, workDir, langCode string) (string, error) {
	duration, err := t.prober.Duration(ctx, audioPath)
	if err != nil {
		return "", fmt.Errorf("probe audio duration: %w", err)
	}

	chunks := int(math.Ceil(duration / float64(t.chunkSec)))
	if chunks < 1 {
		chunks = 1
	}

	var parts []string
	for i := 0; i < chunks; i++ {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("transcription cancelled: %w", ctx.Err())
		default:
		}

		start := float64(i * t.chunkSec)
		chunkPath := filepath.Join(workDir, fmt.Sprintf("chunk_%03d.wav", i))

		text, err := t.transcribeChunk(ctx, audioPath, chunkPath, start, langCode)
		if err != nil {
			t.logger.Warn("skipping failed transcription chunk",
				"chunk", i, "start_sec", start, "error", err)
			continue
		}
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}

func (t *Transcriber) transcribeChunk(ctx context.Context, audioPath, chunkPath string, start float64, langCode string) (string, error) {
	if err := t.cutter.CutAudio(ctx, audioPath, chunkPath, start, float64(t.chunkSec)); err != nil {
		return "", fmt.Errorf("cut chunk: %w", err)
	}
	defer func() { _ = os.Remove(chunkPath) }()

	text, err := t.recognizer.Recognize(ctx, chunkPath, langCode)
	if err != nil {
		if errors.Is(err, ErrNoSpeech) {
			return "", nil
		}
		return "", err
	}
	return text, nil
}
