package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Static errors for media operations.
var (
	// ErrInvalidDimensions is returned when the provided dimensions are not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
	// ErrInputMissing is returned when an input file does not exist.
	ErrInputMissing = errors.New("input file does not exist")
	// ErrInvalidWindow is returned when an audio cut window is not positive.
	ErrInvalidWindow = errors.New("invalid window: duration must be positive")
	// ErrFFprobeExecution is returned when an ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
	// ErrUnknownMuxMode is returned for an unrecognized subtitle mux mode.
	ErrUnknownMuxMode = errors.New("unknown subtitle mux mode")
)

// Compile-time checks.
var (
	_ Processor = (*FFmpegProcessor)(nil)
	_ Prober    = (*FFmpegProcessor)(nil)
)

// FFmpegProcessor implements Processor and Prober using the ffmpeg and
// ffprobe CLIs.
type FFmpegProcessor struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// Empty paths default to "ffmpeg" and "ffprobe" (found via PATH).
func NewFFmpegProcessor(ffmpegPath, ffprobePath string) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Downscale re-encodes src to the target resolution, preserving aspect ratio
// with black padding, H.264 video and AAC audio.
func (p *FFmpegProcessor) Downscale(ctx context.Context, src, dst string, w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, w, h)
	}
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("%w: %s", ErrInputMissing, src)
	}

	// scale fits within w x h keeping aspect ratio; pad centers the result.
	filter := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2", w, h, w, h)

	args := []string{
		"-y",
		"-i", src,
		"-vf", filter,
		"-c:v", "libx264",
		"-crf", "23",
		"-preset", "fast",
		"-c:a", "aac",
		"-b:a", "128k",
		dst,
	}
	return p.runFFmpeg(ctx, args)
}

// ExtractAudio demuxes the audio track into 16 kHz mono PCM, the format the
// speech recognition endpoint expects.
func (p *FFmpegProcessor) ExtractAudio(ctx context.Context, src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("%w: %s", ErrInputMissing, src)
	}

	args := []string{
		"-y",
		"-i", src,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		dst,
	}
	return p.runFFmpeg(ctx, args)
}

// CutAudio copies one time window out of a WAV file without re-encoding.
func (p *FFmpegProcessor) CutAudio(ctx context.Context, src, dst string, startSec, durSec float64) error {
	if durSec <= 0 {
		return fmt.Errorf("%w: got %.2f", ErrInvalidWindow, durSec)
	}

	args := []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", startSec),
		"-t", fmt.Sprintf("%.3f", durSec),
		"-i", src,
		"-c", "copy",
		dst,
	}
	return p.runFFmpeg(ctx, args)
}

// ExtractFrame writes one video frame as a JPEG image.
func (p *FFmpegProcessor) ExtractFrame(ctx context.Context, videoPath, dst string, frameIndex int) error {
	if frameIndex < 0 {
		frameIndex = 0
	}
	if _, err := os.Stat(videoPath); err != nil {
		return fmt.Errorf("%w: %s", ErrInputMissing, videoPath)
	}

	args := []string{
		"-y",
		"-i", videoPath,
		"-vf", fmt.Sprintf(`select=eq(n\,%d)`, frameIndex),
		"-frames:v", "1",
		"-q:v", "3",
		dst,
	}
	return p.runFFmpeg(ctx, args)
}

// MuxSubtitles combines a video with a WebVTT caption file.
func (p *FFmpegProcessor) MuxSubtitles(ctx context.Context, videoPath, subtitlePath, out string, mode MuxMode) error {
	if _, err := os.Stat(videoPath); err != nil {
		return fmt.Errorf("%w: %s", ErrInputMissing, videoPath)
	}
	if _, err := os.Stat(subtitlePath); err != nil {
		return fmt.Errorf("%w: %s", ErrInputMissing, subtitlePath)
	}

	var args []string
	switch mode {
	case MuxHard:
		// Burning captions requires re-encoding the video stream.
		args = []string{
			"-y",
			"-i", videoPath,
			"-vf", fmt.Sprintf("subtitles=%s", escapeFilterPath(subtitlePath)),
			"-c:v", "libx264",
			"-preset", "fast",
			"-c:a", "aac",
			out,
		}
	case MuxSoft:
		args = []string{
			"-y",
			"-i", videoPath,
			"-i", subtitlePath,
			"-c", "copy",
			"-c:s", "mov_text",
			out,
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMuxMode, mode)
	}
	return p.runFFmpeg(ctx, args)
}

// Duration returns the media duration in seconds via ffprobe.
func (p *FFmpegProcessor) Duration(ctx context.Context, path string) (float64, error) {
	out, err := p.runFFprobe(ctx,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

// FrameCount returns the number of video frames by counting packets on the
// first video stream, which works even when container metadata omits
// nb_frames.
func (p *FFmpegProcessor) FrameCount(ctx context.Context, path string) (int, error) {
	out, err := p.runFFprobe(ctx,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=nb_read_packets",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}

	count, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, fmt.Errorf("parse frame count: %w", err)
	}
	return count, nil
}

// escapeFilterPath escapes characters that ffmpeg's filter parser treats
// specially in filenames.
func escapeFilterPath(path string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	return r.Replace(path)
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// runFFprobe executes ffprobe and returns its stdout.
func (p *FFmpegProcessor) runFFprobe(ctx context.Context, args ...string) (string, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return "", fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}
	return stdout.String(), nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
