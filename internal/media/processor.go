// Package media provides video and audio processing capabilities built on the
// ffmpeg and ffprobe CLIs.
package media

import "context"

// MuxMode selects how subtitles are attached to a video.
type MuxMode string

const (
	// MuxHard burns captions into the pixels (requires re-encoding).
	MuxHard MuxMode = "hard"
	// MuxSoft attaches captions as a selectable mov_text track (stream copy).
	MuxSoft MuxMode = "soft"
)

// Processor defines the video processing operations used by the pipeline.
// Implementations should use ffmpeg or similar tools for media manipulation.
type Processor interface {
	// Downscale re-encodes src to the given resolution, preserving aspect
	// ratio with black padding, and writes the result to dst.
	Downscale(ctx context.Context, src, dst string, w, h int) error

	// ExtractAudio demuxes src's audio track into a 16 kHz mono PCM WAV at dst.
	ExtractAudio(ctx context.Context, src, dst string) error

	// CutAudio copies the [startSec, startSec+durSec) window of a WAV file
	// into dst. Used to bound per-request transcription latency.
	CutAudio(ctx context.Context, src, dst string, startSec, durSec float64) error

	// ExtractFrame writes video frame frameIndex as a JPEG image at dst.
	ExtractFrame(ctx context.Context, videoPath, dst string, frameIndex int) error

	// MuxSubtitles combines a video with a WebVTT caption file into out,
	// either hard-burned or as a soft track depending on mode.
	MuxSubtitles(ctx context.Context, videoPath, subtitlePath, out string, mode MuxMode) error
}

// Prober defines the metadata queries used by the pipeline.
type Prober interface {
	// Duration returns the media duration in seconds.
	Duration(ctx context.Context, path string) (float64, error)

	// FrameCount returns the number of video frames in the file.
	FrameCount(ctx context.Context, path string) (int, error)
}
