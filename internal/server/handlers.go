package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/faunalens/faunalens-api/internal/job"
	"github.com/faunalens/faunalens-api/internal/job/id"
	"github.com/faunalens/faunalens-api/internal/media"
	"github.com/faunalens/faunalens-api/internal/pipeline"
	"github.com/faunalens/faunalens-api/internal/progress"
	"github.com/faunalens/faunalens-api/internal/storage"
)

// PipelineRunner starts the processing pipeline for a stored job.
// Satisfied by pipeline.Orchestrator.
type PipelineRunner interface {
	Run(ctx context.Context, jobID string, opts pipeline.RunOptions) error
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	store          job.Store
	files          storage.Storage
	runner         PipelineRunner
	progress       *progress.Hub
	validator      *validator.Validate
	logger         *slog.Logger
	maxUploadBytes int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithMaxUploadBytes caps the accepted upload size.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		h.maxUploadBytes = n
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store job.Store, files storage.Storage, runner PipelineRunner, hub *progress.Hub, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		store:          store,
		files:          files,
		runner:         runner,
		progress:       hub,
		validator:      validator.New(),
		logger:         logger,
		maxUploadBytes: 500 * 1024 * 1024,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Upload handles POST /video/upload requests. The multipart "video" part is
// stored under a sanitized, uniquely suffixed job ID and a record is created
// in the processing state.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, err := r.FormFile("video")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit", "UPLOAD_TOO_LARGE")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field 'video' is required", "MISSING_VIDEO")
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size == 0 {
		writeError(w, http.StatusBadRequest, "uploaded file is empty", "EMPTY_VIDEO")
		return
	}

	jobID := id.New(header.Filename)
	path, err := h.files.SaveUpload(r.Context(), jobID, file)
	if err != nil {
		h.logger.Error("failed to store upload",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to store upload", "UPLOAD_STORE_FAILED")
		return
	}

	rec := job.New(jobID, header.Filename, path, header.Size)
	if err := h.store.Create(r.Context(), rec); err != nil {
		h.logger.Error("failed to create job record",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	h.logger.Info("video uploaded",
		slog.String("job_id", jobID),
		slog.Int64("size", header.Size),
	)
	writeJSON(w, http.StatusCreated, UploadResponse{
		Success:  true,
		VideoID:  jobID,
		Filename: header.Filename,
		Size:     header.Size,
	})
}

// Process handles POST /video/process/{id} requests. Processing runs in the
// background with a context detached from the request so that the client
// going away never cancels the job.
func (h *Handlers) Process(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	runOpts, ok := h.decodeRunOptions(w, r)
	if !ok {
		return
	}

	if _, err := h.store.Get(r.Context(), jobID); err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND")
			return
		}
		h.logger.Error("failed to load job", slog.String("job_id", jobID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load job", "JOB_FETCH_FAILED")
		return
	}

	go func(ctx context.Context) {
		if err := h.runner.Run(ctx, jobID, runOpts); err != nil && !errors.Is(err, pipeline.ErrJobAlreadyRunning) {
			h.logger.Error("background processing failed",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		}
	}(context.WithoutCancel(r.Context()))

	writeJSON(w, http.StatusAccepted, ProcessResponse{
		Success: true,
		VideoID: jobID,
		Status:  string(job.StatusProcessing),
	})
}

// decodeRunOptions parses the optional JSON body of a process request. An
// empty body selects the defaults.
func (h *Handlers) decodeRunOptions(w http.ResponseWriter, r *http.Request) (pipeline.RunOptions, bool) {
	var req ProcessRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
			return pipeline.RunOptions{}, false
		}
	}
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return pipeline.RunOptions{}, false
	}
	return pipeline.RunOptions{
		MuxMode:      media.MuxMode(req.SubtitleMode),
		FrameSamples: req.FrameSamples,
	}, true
}

// Status handles GET /video/status/{id} requests.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	rec, err := h.store.Get(r.Context(), jobID)
	if err != nil {
		// Store trouble on the query path degrades to not_found rather
		// than surfacing an internal error.
		if !errors.Is(err, job.ErrJobNotFound) {
			h.logger.Error("failed to get job", slog.String("job_id", jobID), slog.String("error", err.Error()))
		}
		writeJSON(w, http.StatusNotFound, StatusResponse{
			Success: false,
			Status:  string(job.StatusNotFound),
		})
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Success: true,
		Status:  string(rec.Status),
		Video:   rec,
	})
}

// List handles GET /video/videos and GET /dashboard/videos requests.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	recs, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		recs = nil
	}

	writeJSON(w, http.StatusOK, ListResponse{
		Success: true,
		Count:   len(recs),
		Videos:  recs,
	})
}

// Stats handles GET /dashboard/stats requests.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to compute stats", slog.String("error", err.Error()))
		stats = job.Stats{}
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		Success:         true,
		TotalVideos:     stats.Total,
		CompletedVideos: stats.Completed,
		StorageBytes:    stats.TotalBytes,
	})
}

// Subtitles handles GET /video/subtitles/{id} requests, serving the raw
// WebVTT document of a completed job.
func (h *Handlers) Subtitles(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	rec, err := h.store.Get(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND")
		return
	}
	if rec.SubtitlePath == "" {
		writeError(w, http.StatusNotFound, "subtitles not available", "SUBTITLES_NOT_READY")
		return
	}

	f, err := h.files.Open(r.Context(), rec.SubtitlePath)
	if err != nil {
		h.logger.Error("failed to open subtitles",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read subtitles", "SUBTITLES_READ_FAILED")
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", "text/vtt; charset=utf-8")
	if _, err := io.Copy(w, f); err != nil {
		h.logger.Warn("failed to stream subtitles", slog.String("job_id", jobID), slog.String("error", err.Error()))
	}
}

// Downscaled handles GET /video/downscaled/{id} requests, falling back to
// the original upload when no downscaled rendition exists.
func (h *Handlers) Downscaled(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	rec, err := h.store.Get(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND")
		return
	}

	path := rec.DownscaledPath
	if path == "" {
		path = rec.SourcePath
	}

	f, err := h.files.Open(r.Context(), path)
	if err != nil {
		h.logger.Error("failed to open video",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read video", "VIDEO_READ_FAILED")
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", "video/mp4")
	if _, err := io.Copy(w, f); err != nil {
		h.logger.Warn("failed to stream video", slog.String("job_id", jobID), slog.String("error", err.Error()))
	}
}

// Delete handles DELETE /video/delete/{id} requests. Artifact files go
// first; the record is deleted last so a crash mid-delete leaves a record
// pointing at missing files rather than orphaned files with no record.
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	rec, err := h.store.Get(r.Context(), jobID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, DeleteResponse{Success: false, Error: "not found"})
		return
	}

	if err := h.files.Remove(r.Context(), jobID, rec.ArtifactPaths()); err != nil {
		h.logger.Warn("failed to remove some artifacts",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}

	if err := h.store.Delete(r.Context(), jobID); err != nil {
		h.logger.Error("failed to delete record",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete video", "DELETE_FAILED")
		return
	}

	h.logger.Info("video deleted", slog.String("job_id", jobID))
	writeJSON(w, http.StatusOK, DeleteResponse{Success: true})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Success: false,
		Error:   message,
		Code:    code,
	})
}
