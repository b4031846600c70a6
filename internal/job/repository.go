package job

import (
	"context"
	"errors"
	"time"
)

// ErrJobNotFound is returned when a record cannot be found by ID.
var ErrJobNotFound = errors.New("job not found")

// ErrDuplicateJob is returned when creating a record whose ID already exists.
var ErrDuplicateJob = errors.New("job already exists")

// Patch describes a partial update to a record. Nil fields are left
// untouched; set fields replace the stored value (last write wins).
type Patch struct {
	Status         *Status
	Language       *string
	LanguageCode   *string
	Animals        *[]string
	Transcription  *string
	DownscaledPath *string
	SubtitlePath   *string
	OutputPath     *string
	OutputURL      *string
	Error          *string
	CompletedAt    *time.Time

	// Stage records the outcome of a single named stage. It merges into the
	// stage map without touching other stages.
	Stage   string
	Outcome *StageOutcome

	// Warning, when set, is appended to the record's warning list.
	Warning *string
}

// apply merges the patch into the record. Shared by all Store backends so
// that the merge semantics cannot drift between them.
func (p Patch) apply(r *Record) {
	if p.Status != nil && (!r.Status.IsTerminal() || *p.Status == r.Status) {
		r.Status = *p.Status
	}
	if p.Language != nil {
		r.Language = *p.Language
	}
	if p.LanguageCode != nil {
		r.LanguageCode = *p.LanguageCode
	}
	if p.Animals != nil {
		r.Animals = append([]string(nil), (*p.Animals)...)
	}
	if p.Transcription != nil {
		r.Transcription = *p.Transcription
	}
	if p.DownscaledPath != nil {
		r.DownscaledPath = *p.DownscaledPath
	}
	if p.SubtitlePath != nil {
		r.SubtitlePath = *p.SubtitlePath
	}
	if p.OutputPath != nil {
		r.OutputPath = *p.OutputPath
	}
	if p.OutputURL != nil {
		r.OutputURL = *p.OutputURL
	}
	if p.Error != nil {
		r.Error = *p.Error
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		r.CompletedAt = &t
	}
	if p.Outcome != nil && p.Stage != "" {
		if r.Stages == nil {
			r.Stages = make(map[string]StageOutcome)
		}
		r.Stages[p.Stage] = *p.Outcome
	}
	if p.Warning != nil {
		r.Warnings = append(r.Warnings, *p.Warning)
	}
}

// Store defines the persistence port for job records. Implementations must
// make each Update atomic from the caller's point of view: a crash between
// two updates leaves the record as written by the last completed update.
type Store interface {
	// Create persists a new record. Returns ErrDuplicateJob if the ID exists.
	Create(ctx context.Context, rec *Record) error

	// Update merges the patch into the stored record and returns the result.
	// Returns ErrJobNotFound if the record does not exist. Safe for
	// concurrent calls on different IDs.
	Update(ctx context.Context, id string, patch Patch) (*Record, error)

	// Get retrieves a record by ID. Returns ErrJobNotFound if absent.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns all records. Order is not guaranteed across restarts.
	List(ctx context.Context) ([]*Record, error)

	// Delete removes a record. Returns ErrJobNotFound if absent.
	Delete(ctx context.Context, id string) error

	// Stats returns aggregate counters over all records.
	Stats(ctx context.Context) (Stats, error)
}
