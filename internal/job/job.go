// Package job provides the job record for video processing pipelines and the
// Store port for persisting it. The record is the single source of truth for
// what happened to an uploaded video; the orchestrator keeps no authoritative
// state outside it.
package job

import (
	"time"
)

// Status represents the lifecycle state of a job record.
type Status string

const (
	// StatusProcessing indicates the pipeline has not reached a terminal state.
	StatusProcessing Status = "processing"
	// StatusCompleted indicates the pipeline finished, possibly with degraded stages.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the pipeline aborted.
	StatusFailed Status = "failed"
	// StatusNotFound is reported by query boundaries for unknown job IDs.
	// It is never stored.
	StatusNotFound Status = "not_found"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Stage names in pipeline order.
const (
	StageValidate         = "validate"
	StageDownscale        = "downscale"
	StageLanguageDetect   = "language_detect"
	StageTranscribe       = "transcribe"
	StageAnimalDetect     = "animal_detect"
	StageSubtitleGenerate = "subtitle_generate"
	StageSubtitleMux      = "subtitle_mux"
	StageCompile          = "compile"
)

// OutcomeKind classifies how a stage ended.
type OutcomeKind string

const (
	// OutcomeSuccess means the stage produced its intended payload.
	OutcomeSuccess OutcomeKind = "success"
	// OutcomeDegraded means the stage fell back to an acceptable substitute.
	OutcomeDegraded OutcomeKind = "degraded"
	// OutcomeFailed means the stage produced nothing usable.
	OutcomeFailed OutcomeKind = "failed"
)

// StageOutcome is the recorded result of one pipeline stage. Every outcome is
// persisted; none is silently dropped.
type StageOutcome struct {
	// Kind classifies the outcome.
	Kind OutcomeKind `json:"kind"`
	// Payload is a short description of what the stage produced
	// (a path, a language name, a label list).
	Payload string `json:"payload,omitempty"`
	// Reason explains a degraded or failed outcome.
	Reason string `json:"reason,omitempty"`
}

// Success returns a successful outcome carrying the given payload.
func Success(payload string) StageOutcome {
	return StageOutcome{Kind: OutcomeSuccess, Payload: payload}
}

// Degraded returns an outcome carrying a fallback payload and the reason
// the stage could not fully succeed.
func Degraded(fallback, reason string) StageOutcome {
	return StageOutcome{Kind: OutcomeDegraded, Payload: fallback, Reason: reason}
}

// Failed returns an outcome for a stage that produced nothing usable.
func Failed(reason string) StageOutcome {
	return StageOutcome{Kind: OutcomeFailed, Reason: reason}
}

// Record is the durable per-video job document.
type Record struct {
	// ID is the unique identifier, assigned at upload time, immutable.
	ID string `json:"id"`
	// Filename is the sanitized original filename.
	Filename string `json:"filename"`
	// SourcePath is where the original bytes are stored.
	SourcePath string `json:"file_path"`
	// Status is the lifecycle state. Transitions only move forward:
	// processing -> completed or failed, never back.
	Status Status `json:"status"`
	// Stages maps stage name to its last recorded outcome. Entries are
	// appended or overwritten per stage; a stage never removes another
	// stage's entry.
	Stages map[string]StageOutcome `json:"stages,omitempty"`

	// Language is the display name of the detected spoken language.
	Language string `json:"language,omitempty"`
	// LanguageCode is the detected language code ("fr", "en", "unk").
	LanguageCode string `json:"language_code,omitempty"`
	// Animals is the deduplicated list of detected animal labels.
	Animals []string `json:"animals,omitempty"`
	// Transcription is the concatenated transcribed text.
	Transcription string `json:"transcription,omitempty"`

	// DownscaledPath is the reduced-resolution copy, if downscaling succeeded.
	DownscaledPath string `json:"downscaled_path,omitempty"`
	// SubtitlePath is the generated WebVTT file.
	SubtitlePath string `json:"subtitles_path,omitempty"`
	// OutputPath is the final video artifact (muxed when the mux stage
	// succeeded, otherwise the best available video).
	OutputPath string `json:"output_path,omitempty"`
	// OutputURL is the S3 URL of the final artifact, when uploaded.
	OutputURL string `json:"output_url,omitempty"`

	// Warnings collects non-fatal problems (e.g. mux failure).
	Warnings []string `json:"warnings,omitempty"`
	// Error is set when the job failed.
	Error string `json:"error,omitempty"`

	// FileSize is the uploaded byte count.
	FileSize int64 `json:"file_size"`
	// CreatedAt is when the record was created.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is nil until the job reaches a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// New creates a Record in processing state for a freshly uploaded video.
func New(id, filename, sourcePath string, size int64) *Record {
	return &Record{
		ID:         id,
		Filename:   filename,
		SourcePath: sourcePath,
		Status:     StatusProcessing,
		Stages:     make(map[string]StageOutcome),
		FileSize:   size,
		CreatedAt:  time.Now().UTC(),
	}
}

// Clone creates a deep copy of the record for safe reads.
func (r *Record) Clone() *Record {
	out := *r
	if r.Stages != nil {
		out.Stages = make(map[string]StageOutcome, len(r.Stages))
		for k, v := range r.Stages {
			out.Stages[k] = v
		}
	}
	if r.Animals != nil {
		out.Animals = append([]string(nil), r.Animals...)
	}
	if r.Warnings != nil {
		out.Warnings = append([]string(nil), r.Warnings...)
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// ArtifactPaths lists the on-disk files referenced by the record, used by
// the delete boundary to clean up before removing the record itself.
func (r *Record) ArtifactPaths() []string {
	var paths []string
	for _, p := range []string{r.SourcePath, r.DownscaledPath, r.SubtitlePath, r.OutputPath} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// Stats aggregates store-wide counters.
type Stats struct {
	// Total is the number of records in the store.
	Total int `json:"total_videos"`
	// Completed is the number of records in completed state.
	Completed int `json:"processed"`
	// TotalBytes is the summed upload size of all records.
	TotalBytes int64 `json:"total_bytes"`
}
