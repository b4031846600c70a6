package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/faunalens/faunalens-api/internal/job"
	"github.com/faunalens/faunalens-api/internal/media"
	"github.com/faunalens/faunalens-api/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from a different origin in development.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// ProcessWS handles GET /video/ws/process/{id} requests. It upgrades the
// connection, starts the pipeline, and streams progress events until a
// terminal event or the client disconnects. The pipeline itself runs on a
// detached context: a disconnect stops the stream, never the job.
func (h *Handlers) ProcessWS(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	if _, err := h.store.Get(r.Context(), jobID); err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load job", "JOB_FETCH_FAILED")
		return
	}

	runOpts := pipeline.RunOptions{
		MuxMode: media.MuxMode(r.URL.Query().Get("mode")),
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}
	defer func() { _ = conn.Close() }()

	events, cancel := h.progress.Subscribe(jobID)
	defer cancel()

	go func(ctx context.Context) {
		if err := h.runner.Run(ctx, jobID, runOpts); err != nil && !errors.Is(err, pipeline.ErrJobAlreadyRunning) {
			h.logger.Error("processing failed",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		}
	}(context.WithoutCancel(r.Context()))

	for ev := range events {
		if err := conn.WriteJSON(ev); err != nil {
			h.logger.Debug("progress stream closed by client",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
			return
		}
		if ev.IsTerminal() {
			return
		}
	}
}
