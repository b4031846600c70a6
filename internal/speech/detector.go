package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// UnknownLanguageCode is the code recorded when no candidate language
// produced any text.
const UnknownLanguageCode = "unk"

// probeDurationSec is how much audio from the start of the track is used to
// decide the spoken language.
const probeDurationSec = 25.0

// languageNames maps ISO codes to display names used in subtitles.
var languageNames = map[string]string{
	"fr": "French",
	"en": "English",
	"es": "Spanish",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
}

// LanguageName returns the display name for a language code, or the code
// itself when unmapped.
func LanguageName(code string) string {
	if code == UnknownLanguageCode {
		return "Unknown"
	}
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}

// Language is a detected spoken language.
type Language struct {
	Code string
	Name string
}

// AudioCutter extracts a time window from an audio file. Satisfied by
// media.FFmpegProcessor.
type AudioCutter interface {
	CutAudio(ctx context.Context, inputPath, outputPath string, startSec, durationSec float64) error
}

// Detector identifies the spoken language of an audio track by recognizing a
// short probe sample against an ordered list of candidate languages.
type Detector struct {
	recognizer Recognizer
	cutter     AudioCutter
	candidates []string
	logger     *slog.Logger
}

// NewDetector creates a language detector. Candidates are tried in order;
// the first one that yields any text wins.
func NewDetector(recognizer Recognizer, cutter AudioCutter, candidates []string, logger *slog.Logger) *Detector {
	if len(candidates) == 0 {
		candidates = []string{"fr", "en"}
	}
	return &Detector{
		recognizer: recognizer,
		cutter:     cutter,
		candidates: candidates,
		logger:     logger,
	}
}

// Detect returns the language spoken in the WAV file at audioPath. When no
// candidate matches it returns the unknown language with a nil error;
// transport or tooling failures return an error.
func (d *Detector) Detect(ctx context.Context, audioPath, workDir string) (Language, error) {
	probePath := filepath.Join(workDir, "language_probe.wav")
	if err := d.cutter.CutAudio(ctx, audioPath, probePath, 0, probeDurationSec); err != nil {
		return Language{}, fmt.Errorf("cut language probe: %w", err)
	}
	defer func() { _ = os.Remove(probePath) }()

	for _, code := range d.candidates {
		text, err := d.recognizer.Recognize(ctx, probePath, code)
		if err != nil {
			if errors.Is(err, ErrNoSpeech) {
				d.logger.Debug("no speech for candidate language", "language", code)
				continue
			}
			return Language{}, fmt.Errorf("recognize probe as %s: %w", code, err)
		}
		if text != "" {
			return Language{Code: code, Name: LanguageName(code)}, nil
		}
	}

	return Language{Code: UnknownLanguageCode, Name: LanguageName(UnknownLanguageCode)}, nil
}
