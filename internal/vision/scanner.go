package vision

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// UnidentifiedLabel is recorded when no animal passes the confidence
// threshold in any sampled frame.
const UnidentifiedLabel = "unidentified"

// animalLabels is the allowlist of detection labels treated as animals.
var animalLabels = map[string]bool{
	"bird":     true,
	"cat":      true,
	"dog":      true,
	"horse":    true,
	"sheep":    true,
	"cow":      true,
	"elephant": true,
	"bear":     true,
	"zebra":    true,
	"giraffe":  true,
}

// FrameSource extracts single frames and reports frame counts. Satisfied by
// media.FFmpegProcessor.
type FrameSource interface {
	ExtractFrame(ctx context.Context, videoPath, outputPath string, frameIndex int) error
	FrameCount(ctx context.Context, path string) (int, error)
}

// Scanner samples frames from a video and reports which animals appear in it.
type Scanner struct {
	frames        FrameSource
	detector      Detector
	samples       int
	minConfidence float64
	logger        *slog.Logger
}

// NewScanner creates an animal scanner sampling the given number of frames
// and keeping detections at or above minConfidence.
func NewScanner(frames FrameSource, detector Detector, samples int, minConfidence float64, logger *slog.Logger) *Scanner {
	if samples <= 0 {
		samples = 12
	}
	return &Scanner{
		frames:        frames,
		detector:      detector,
		samples:       samples,
		minConfidence: minConfidence,
		logger:        logger,
	}
}

// Scan returns the sorted, deduplicated animal labels found across sampled
// frames, or [UnidentifiedLabel] when nothing qualifies. A positive samples
// argument overrides the configured sample count. A frame that fails to
// extract or detect is skipped; only a total inability to sample is an
// error.
func (s *Scanner) Scan(ctx context.Context, videoPath, workDir string, samples int) ([]string, error) {
	if samples <= 0 {
		samples = s.samples
	}

	total, err := s.frames.FrameCount(ctx, videoPath)
	if err != nil {
		return nil, fmt.Errorf("count frames: %w", err)
	}

	seen := make(map[string]bool)
	for i, frameIdx := range SampleIndices(total, samples) {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("animal scan cancelled: %w", ctx.Err())
		default:
		}

		framePath := filepath.Join(workDir, fmt.Sprintf("frame_%03d.jpg", i))
		detections, err := s.scanFrame(ctx, videoPath, framePath, frameIdx)
		if err != nil {
			s.logger.Warn("skipping frame", "frame_index", frameIdx, "error", err)
			continue
		}

		for _, det := range detections {
			if det.Confidence >= s.minConfidence && animalLabels[det.Label] {
				seen[det.Label] = true
			}
		}
	}

	if len(seen) == 0 {
		return []string{UnidentifiedLabel}, nil
	}

	animals := make([]string, 0, len(seen))
	for label := range seen {
		animals = append(animals, label)
	}
	sort.Strings(animals)
	return animals, nil
}

func (s *Scanner) scanFrame(ctx context.Context, videoPath, framePath string, frameIdx int) ([]Detection, error) {
	if err := s.frames.ExtractFrame(ctx, videoPath, framePath, frameIdx); err != nil {
		return nil, fmt.Errorf("extract frame: %w", err)
	}
	defer func() { _ = os.Remove(framePath) }()

	return s.detector.DetectObjects(ctx, framePath)
}
