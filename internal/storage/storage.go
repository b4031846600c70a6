// Package storage provides file storage for uploads and pipeline artifacts.
// It defines the Storage interface (port) for hexagonal architecture and
// implementations for local disk and S3 delivery.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for upload and artifact file storage.
// Implementations keep uploaded sources and pipeline artifacts on local disk
// and optionally publish final artifacts to S3.
type Storage interface {
	// SaveUpload persists an uploaded video under the given job ID and
	// returns the stored file path.
	SaveUpload(ctx context.Context, jobID string, data io.Reader) (path string, err error)

	// WorkDir returns a per-job scratch directory for intermediate
	// artifacts, creating it if needed.
	WorkDir(jobID string) (string, error)

	// Open reads a stored file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Remove deletes the given files and the job's work directory.
	// It continues even if some paths fail to delete.
	Remove(ctx context.Context, jobID string, paths []string) error

	// PublishArtifact uploads a final artifact to S3 and returns its URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	PublishArtifact(ctx context.Context, key, path string) (url string, err error)
}
