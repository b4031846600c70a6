package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrS3NotConfigured is returned when S3 operations are attempted
// without proper configuration.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// LocalStorage implements the Storage interface using local disk.
// Uploads live under <dataDir>/uploads and per-job scratch space under
// <dataDir>/work/<jobID>. It does not support S3 operations unless wrapped
// with S3Storage.
type LocalStorage struct {
	dataDir string
}

// NewLocalStorage creates a new LocalStorage instance rooted at dataDir.
// If dataDir is empty, a directory under os.TempDir() is used.
// The uploads directory is created if it doesn't exist.
func NewLocalStorage(dataDir string) (*LocalStorage, error) {
	if dataDir == "" {
		dataDir = filepath.Join(os.TempDir(), "faunalens")
	}

	if err := os.MkdirAll(filepath.Join(dataDir, "uploads"), 0750); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}

	return &LocalStorage{dataDir: dataDir}, nil
}

// DataDir returns the storage root directory.
func (s *LocalStorage) DataDir() string {
	return s.dataDir
}

// UploadsDir returns the directory holding uploaded source videos.
func (s *LocalStorage) UploadsDir() string {
	return filepath.Join(s.dataDir, "uploads")
}

// SaveUpload persists an uploaded video under the given job ID and returns
// the stored file path.
func (s *LocalStorage) SaveUpload(ctx context.Context, jobID string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	path := filepath.Join(s.UploadsDir(), jobID)
	f, err := os.Create(path) // #nosec G304 - jobID is sanitized at the boundary
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close upload file: %w", err)
	}

	return path, nil
}

// WorkDir returns a per-job scratch directory, creating it if needed.
func (s *LocalStorage) WorkDir(jobID string) (string, error) {
	dir := filepath.Join(s.dataDir, "work", jobID)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create work directory: %w", err)
	}
	return dir, nil
}

// Open reads a stored file and returns a reader.
// The caller is responsible for closing the returned ReadCloser.
func (s *LocalStorage) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, fmt.Errorf("open stored file: %w", err)
	}

	return f, nil
}

// Remove deletes the given files and the job's work directory.
// It continues even if some paths fail to delete, returning the first error
// encountered.
func (s *LocalStorage) Remove(ctx context.Context, jobID string, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove file %s: %w", p, err)
			}
		}
	}

	if jobID != "" {
		if err := os.RemoveAll(filepath.Join(s.dataDir, "work", jobID)); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("remove work directory: %w", err)
		}
	}
	return firstErr
}

// PublishArtifact is not supported by LocalStorage and returns
// ErrS3NotConfigured.
func (s *LocalStorage) PublishArtifact(_ context.Context, _, _ string) (string, error) {
	return "", ErrS3NotConfigured
}
