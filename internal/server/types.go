// Package server provides the HTTP and WebSocket boundary for the video
// pipeline API. It includes handlers, middleware, routes, and DTOs separated
// from domain types.
package server

import "github.com/faunalens/faunalens-api/internal/job"

// ProcessRequest is the optional HTTP request body for starting processing.
type ProcessRequest struct {
	// SubtitleMode selects hard-burned or soft subtitle muxing.
	SubtitleMode string `json:"subtitle_mode" validate:"omitempty,oneof=hard soft"`
	// FrameSamples overrides how many frames are sampled for animal detection.
	FrameSamples int `json:"frame_samples" validate:"omitempty,min=1,max=60"`
}

// UploadResponse is the HTTP response after a successful upload.
type UploadResponse struct {
	Success  bool   `json:"success"`
	VideoID  string `json:"video_id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// ProcessResponse is the HTTP response after starting background processing.
type ProcessResponse struct {
	Success bool   `json:"success"`
	VideoID string `json:"video_id"`
	Status  string `json:"status"`
}

// StatusResponse is the HTTP response for a job status query.
type StatusResponse struct {
	Success bool        `json:"success"`
	Status  string      `json:"status"`
	Video   *job.Record `json:"video,omitempty"`
}

// ListResponse is the HTTP response for video listings.
type ListResponse struct {
	Success bool          `json:"success"`
	Count   int           `json:"count"`
	Videos  []*job.Record `json:"videos"`
}

// StatsResponse is the HTTP response for dashboard statistics.
type StatsResponse struct {
	Success         bool  `json:"success"`
	TotalVideos     int   `json:"total_videos"`
	CompletedVideos int   `json:"completed_videos"`
	StorageBytes    int64 `json:"storage_bytes"`
}

// DeleteResponse is the HTTP response after deleting a video.
type DeleteResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}
