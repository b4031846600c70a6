// Package pipeline runs uploaded videos through the processing stages and
// keeps the job record current as each stage lands.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/faunalens/faunalens-api/internal/job"
	"github.com/faunalens/faunalens-api/internal/media"
	"github.com/faunalens/faunalens-api/internal/progress"
	"github.com/faunalens/faunalens-api/internal/speech"
	"github.com/faunalens/faunalens-api/internal/storage"
	"github.com/faunalens/faunalens-api/internal/subtitle"
	"github.com/faunalens/faunalens-api/internal/vision"
)

// ErrJobAlreadyRunning is returned when a second pipeline run is started for
// a job that is still in flight.
var ErrJobAlreadyRunning = errors.New("job is already being processed")

// Progress checkpoints published as each stage lands.
const (
	pctValidate  = 5
	pctUpload    = 15
	pctDownscale = 25
	pctLanguage  = 40
	pctAnimals   = 55
	pctSubtitles = 75
	pctCompile   = 90
	pctComplete  = 100
)

// LanguageDetector identifies the spoken language of an audio track.
type LanguageDetector interface {
	Detect(ctx context.Context, audioPath, workDir string) (speech.Language, error)
}

// Transcriber converts an audio track into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, workDir, langCode string) (string, error)
}

// AnimalScanner reports the animals appearing in a video.
type AnimalScanner interface {
	Scan(ctx context.Context, videoPath, workDir string, samples int) ([]string, error)
}

// Options holds the tuning knobs shared by every pipeline run.
type Options struct {
	DownscaleWidth   int
	DownscaleHeight  int
	DownscaleTimeout time.Duration
	AudioTimeout     time.Duration
	DefaultLanguage  string
}

// RunOptions are per-run overrides supplied by the caller.
type RunOptions struct {
	MuxMode      media.MuxMode
	FrameSamples int
}

// Orchestrator owns the stage sequence for one job at a time per job ID.
type Orchestrator struct {
	store       job.Store
	files       storage.Storage
	media       media.Processor
	detector    LanguageDetector
	transcriber Transcriber
	scanner     AnimalScanner
	hub         *progress.Hub
	opts        Options
	logger      *slog.Logger

	mu      sync.Mutex
	running map[string]struct{}
}

// New creates a pipeline orchestrator.
func New(
	store job.Store,
	files storage.Storage,
	proc media.Processor,
	detector LanguageDetector,
	transcriber Transcriber,
	scanner AnimalScanner,
	hub *progress.Hub,
	opts Options,
	logger *slog.Logger,
) *Orchestrator {
	if opts.DownscaleTimeout <= 0 {
		opts.DownscaleTimeout = 300 * time.Second
	}
	if opts.AudioTimeout <= 0 {
		opts.AudioTimeout = 120 * time.Second
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "fr"
	}
	return &Orchestrator{
		store:       store,
		files:       files,
		media:       proc,
		detector:    detector,
		transcriber: transcriber,
		scanner:     scanner,
		hub:         hub,
		opts:        opts,
		logger:      logger,
		running:     make(map[string]struct{}),
	}
}

// Run processes the job through every stage. It returns ErrJobAlreadyRunning
// when the job is still in flight from a previous call. The job keeps
// processing even if the caller that started it goes away, so callers at a
// connection boundary should pass a context detached from the connection.
func (o *Orchestrator) Run(ctx context.Context, jobID string, runOpts RunOptions) error {
	if !o.acquire(jobID) {
		return ErrJobAlreadyRunning
	}
	defer o.release(jobID)

	if runOpts.MuxMode == "" {
		runOpts.MuxMode = media.MuxHard
	}

	log := o.logger.With("job_id", jobID)

	rec, err := o.store.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}

	validatePatch := job.Patch{
		Stage:   job.StageValidate,
		Outcome: ptr(job.Success(rec.SourcePath)),
	}
	if _, err := o.persist(ctx, jobID, validatePatch); err != nil {
		return err
	}
	o.publish(jobID, "validate", pctValidate, "upload validated")
	o.publish(jobID, "upload", pctUpload, "video stored")

	workDir, err := o.files.WorkDir(jobID)
	if err != nil {
		return o.fail(ctx, jobID, fmt.Sprintf("prepare work directory: %v", err))
	}

	// Downscale. A failure substitutes the original file and degrades the
	// stage rather than failing the job.
	activePath := rec.SourcePath
	dsPath := filepath.Join(workDir, "downscaled.mp4")
	dsPatch := job.Patch{Stage: job.StageDownscale}
	if err := o.downscale(ctx, rec.SourcePath, dsPath); err != nil {
		log.Warn("downscale failed, using original video", "error", err)
		dsPatch.Outcome = ptr(job.Degraded(rec.SourcePath, err.Error()))
		dsPatch.Warning = ptr("downscale failed, original resolution kept")
	} else {
		activePath = dsPath
		dsPatch.Outcome = ptr(job.Success(dsPath))
		dsPatch.DownscaledPath = ptr(dsPath)
	}
	if _, err := o.persist(ctx, jobID, dsPatch); err != nil {
		return err
	}
	o.publish(jobID, "downscale", pctDownscale, "video downscaled")

	// Audio extraction feeds both language detection and transcription.
	wavPath := filepath.Join(workDir, "audio.wav")
	audioErr := o.extractAudio(ctx, activePath, wavPath)
	if audioErr != nil {
		log.Warn("audio extraction failed", "error", audioErr)
	}

	lang, langPatch := o.detectLanguage(ctx, wavPath, workDir, audioErr)
	if _, err := o.persist(ctx, jobID, langPatch); err != nil {
		return err
	}
	o.publish(jobID, "language", pctLanguage, "language: "+lang.Name)

	transcription, trPatch := o.transcribe(ctx, wavPath, workDir, lang, audioErr)
	if _, err := o.persist(ctx, jobID, trPatch); err != nil {
		return err
	}

	animals, animalPatch := o.scanAnimals(ctx, activePath, workDir, runOpts.FrameSamples)
	if _, err := o.persist(ctx, jobID, animalPatch); err != nil {
		return err
	}
	o.publish(jobID, "animals", pctAnimals, "animals: "+strings.Join(animals, ", "))

	// Subtitle synthesis is the one stage whose failure fails the job: a
	// muxable caption file is the contract of the pipeline.
	subPath := filepath.Join(workDir, "subtitles.vtt")
	vtt := subtitle.Synthesize(transcription, lang.Name)
	if err := os.WriteFile(subPath, []byte(vtt), 0o600); err != nil {
		subPatch := job.Patch{Stage: job.StageSubtitleGenerate, Outcome: ptr(job.Failed(err.Error()))}
		if _, perr := o.persist(ctx, jobID, subPatch); perr != nil {
			return perr
		}
		return o.fail(ctx, jobID, fmt.Sprintf("write subtitles: %v", err))
	}
	subPatch := job.Patch{
		Stage:        job.StageSubtitleGenerate,
		Outcome:      ptr(job.Success(subPath)),
		SubtitlePath: ptr(subPath),
	}
	if _, err := o.persist(ctx, jobID, subPatch); err != nil {
		return err
	}
	o.publish(jobID, "subtitles", pctSubtitles, "subtitles generated")

	outputPath, muxPatch := o.mux(ctx, activePath, subPath, workDir, runOpts.MuxMode, log)
	if _, err := o.persist(ctx, jobID, muxPatch); err != nil {
		return err
	}

	compilePatch := o.compile(ctx, jobID, workDir, outputPath, lang, animals, transcription, subPath, log)
	if _, err := o.persist(ctx, jobID, compilePatch); err != nil {
		return err
	}
	o.publish(jobID, "compilation", pctCompile, "artifacts compiled")

	now := time.Now().UTC()
	donePatch := job.Patch{
		Status:      ptr(job.StatusCompleted),
		CompletedAt: &now,
	}
	if _, err := o.persist(ctx, jobID, donePatch); err != nil {
		return err
	}
	o.publish(jobID, progress.StepComplete, pctComplete, "processing complete")
	log.Info("job completed", "animals", animals, "language", lang.Code)
	return nil
}

func (o *Orchestrator) downscale(ctx context.Context, src, dst string) error {
	dctx, cancel := context.WithTimeout(ctx, o.opts.DownscaleTimeout)
	defer cancel()
	return o.media.Downscale(dctx, src, dst, o.opts.DownscaleWidth, o.opts.DownscaleHeight)
}

func (o *Orchestrator) extractAudio(ctx context.Context, src, dst string) error {
	actx, cancel := context.WithTimeout(ctx, o.opts.AudioTimeout)
	defer cancel()
	return o.media.ExtractAudio(actx, src, dst)
}

// detectLanguage runs the language stage, substituting the configured
// default language when detection cannot run or errors out.
func (o *Orchestrator) detectLanguage(ctx context.Context, wavPath, workDir string, audioErr error) (speech.Language, job.Patch) {
	patch := job.Patch{Stage: job.StageLanguageDetect}
	fallback := speech.Language{Code: o.opts.DefaultLanguage, Name: speech.LanguageName(o.opts.DefaultLanguage)}

	if audioErr != nil {
		patch.Outcome = ptr(job.Failed("no audio track: " + audioErr.Error()))
		patch.Warning = ptr("audio extraction failed, assuming " + fallback.Name)
		o.setLanguage(&patch, fallback)
		return fallback, patch
	}

	lang, err := o.detector.Detect(ctx, wavPath, workDir)
	switch {
	case err != nil:
		patch.Outcome = ptr(job.Failed(err.Error()))
		patch.Warning = ptr("language detection failed, assuming " + fallback.Name)
		lang = fallback
	case lang.Code == speech.UnknownLanguageCode:
		patch.Outcome = ptr(job.Degraded(lang.Code, "no candidate language matched"))
	default:
		patch.Outcome = ptr(job.Success(lang.Code))
	}
	o.setLanguage(&patch, lang)
	return lang, patch
}

func (o *Orchestrator) setLanguage(patch *job.Patch, lang speech.Language) {
	patch.Language = ptr(lang.Name)
	patch.LanguageCode = ptr(lang.Code)
}

// transcribe runs the transcription stage. Any failure degrades to empty
// text; it never fails the job.
func (o *Orchestrator) transcribe(ctx context.Context, wavPath, workDir string, lang speech.Language, audioErr error) (string, job.Patch) {
	patch := job.Patch{Stage: job.StageTranscribe, Transcription: ptr("")}

	switch {
	case audioErr != nil:
		patch.Outcome = ptr(job.Degraded("", "no audio track"))
		return "", patch
	case lang.Code == speech.UnknownLanguageCode:
		patch.Outcome = ptr(job.Degraded("", "unknown language"))
		return "", patch
	}

	text, err := o.transcriber.Transcribe(ctx, wavPath, workDir, lang.Code)
	switch {
	case err != nil:
		patch.Outcome = ptr(job.Failed(err.Error()))
		patch.Warning = ptr("transcription failed, subtitles will carry no speech")
	case text == "":
		patch.Outcome = ptr(job.Degraded("", "no speech recognized"))
	default:
		patch.Outcome = ptr(job.Success(text))
		patch.Transcription = ptr(text)
	}
	return text, patch
}

// scanAnimals runs the detection stage, falling back to the unidentified
// sentinel on failure.
func (o *Orchestrator) scanAnimals(ctx context.Context, videoPath, workDir string, samples int) ([]string, job.Patch) {
	patch := job.Patch{Stage: job.StageAnimalDetect}

	animals, err := o.scanner.Scan(ctx, videoPath, workDir, samples)
	if err != nil {
		animals = []string{vision.UnidentifiedLabel}
		patch.Outcome = ptr(job.Failed(err.Error()))
		patch.Warning = ptr("animal detection failed")
	} else {
		patch.Outcome = ptr(job.Success(strings.Join(animals, ",")))
	}
	patch.Animals = &animals
	return animals, patch
}

// mux attaches the subtitles. A failure keeps the job alive: the un-muxed
// video becomes the final artifact and a warning is recorded.
func (o *Orchestrator) mux(ctx context.Context, videoPath, subPath, workDir string, mode media.MuxMode, log *slog.Logger) (string, job.Patch) {
	outPath := filepath.Join(workDir, "output.mp4")
	patch := job.Patch{Stage: job.StageSubtitleMux}

	if err := o.media.MuxSubtitles(ctx, videoPath, subPath, outPath, mode); err != nil {
		log.Warn("subtitle mux failed, delivering unmuxed video", "error", err)
		patch.Outcome = ptr(job.Failed(err.Error()))
		patch.Warning = ptr("subtitle mux failed, delivering video without embedded captions")
		patch.OutputPath = ptr(videoPath)
		return videoPath, patch
	}

	patch.Outcome = ptr(job.Success(outPath))
	patch.OutputPath = ptr(outPath)
	return outPath, patch
}

// jobMetadata is the terminal metadata document written beside artifacts.
type jobMetadata struct {
	Language      string   `json:"language"`
	LanguageCode  string   `json:"language_code"`
	Animals       []string `json:"animals"`
	SubtitlePath  string   `json:"subtitle_path"`
	Transcription string   `json:"transcription"`
}

// compile writes the metadata document and, when S3 is configured, publishes
// the final artifact. Both steps degrade to warnings.
func (o *Orchestrator) compile(ctx context.Context, jobID, workDir, outputPath string, lang speech.Language, animals []string, transcription, subPath string, log *slog.Logger) job.Patch {
	patch := job.Patch{
		Stage:   job.StageCompile,
		Outcome: ptr(job.Success(outputPath)),
	}

	meta := jobMetadata{
		Language:      lang.Name,
		LanguageCode:  lang.Code,
		Animals:       animals,
		SubtitlePath:  subPath,
		Transcription: transcription,
	}
	doc, err := json.MarshalIndent(meta, "", "  ")
	if err == nil {
		err = os.WriteFile(filepath.Join(workDir, "metadata.json"), doc, 0o600)
	}
	if err != nil {
		log.Warn("metadata write failed", "error", err)
		patch.Warning = ptr("metadata document could not be written")
	}

	url, err := o.files.PublishArtifact(ctx, jobID+"/output.mp4", outputPath)
	switch {
	case errors.Is(err, storage.ErrS3NotConfigured):
		// Local-only deployment.
	case err != nil:
		log.Warn("artifact publish failed", "error", err)
		patch.Warning = ptr("final artifact could not be published to S3")
	default:
		patch.OutputURL = ptr(url)
	}
	return patch
}

// persist applies a patch, retrying once. A second failure marks the job
// failed and aborts the run.
func (o *Orchestrator) persist(ctx context.Context, jobID string, patch job.Patch) (*job.Record, error) {
	rec, err := o.store.Update(ctx, jobID, patch)
	if err == nil {
		return rec, nil
	}
	o.logger.Warn("store update failed, retrying", "job_id", jobID, "error", err)

	rec, err = o.store.Update(ctx, jobID, patch)
	if err == nil {
		return rec, nil
	}
	return nil, o.fail(ctx, jobID, "persistence_unavailable")
}

// fail marks the job failed (best effort) and publishes a terminal error
// event. It always returns a non-nil error carrying the reason.
func (o *Orchestrator) fail(ctx context.Context, jobID, reason string) error {
	now := time.Now().UTC()
	patch := job.Patch{
		Status:      ptr(job.StatusFailed),
		Error:       ptr(reason),
		CompletedAt: &now,
	}
	if _, err := o.store.Update(ctx, jobID, patch); err != nil {
		o.logger.Error("could not record job failure", "job_id", jobID, "error", err)
	}
	o.publish(jobID, progress.StepError, 0, reason)
	return fmt.Errorf("job %s failed: %s", jobID, reason)
}

func (o *Orchestrator) publish(jobID, step string, pct int, msg string) {
	o.hub.Publish(jobID, progress.Event{
		Step:       step,
		Percentage: pct,
		Message:    msg,
		Timestamp:  time.Now().UTC(),
	})
}

func (o *Orchestrator) acquire(jobID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.running[jobID]; ok {
		return false
	}
	o.running[jobID] = struct{}{}
	return true
}

func (o *Orchestrator) release(jobID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, jobID)
}

func ptr[T any](v T) *T {
	return &v
}
