package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewLocalStorage(t *testing.T) {
	t.Run("creates uploads directory", func(t *testing.T) {
		dataDir := filepath.Join(os.TempDir(), "faunalens_test_"+randomSuffix())
		defer func() { _ = os.RemoveAll(dataDir) }()

		storage, err := NewLocalStorage(dataDir)
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		if storage.DataDir() != dataDir {
			t.Errorf("DataDir() = %v, want %v", storage.DataDir(), dataDir)
		}

		info, err := os.Stat(storage.UploadsDir())
		if err != nil {
			t.Fatalf("uploads directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("expected directory, got file")
		}
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		storage, err := NewLocalStorage("")
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		expected := filepath.Join(os.TempDir(), "faunalens")
		if storage.DataDir() != expected {
			t.Errorf("DataDir() = %v, want %v", storage.DataDir(), expected)
		}
	})
}

func TestLocalStorage_SaveUpload(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("stores data under job id", func(t *testing.T) {
		path, err := storage.SaveUpload(ctx, "safari_ab12cd34.mp4", bytes.NewReader([]byte("video bytes")))
		if err != nil {
			t.Fatalf("SaveUpload() error = %v", err)
		}

		if filepath.Dir(path) != storage.UploadsDir() {
			t.Errorf("upload stored outside uploads dir: %v", path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read upload: %v", err)
		}
		if string(data) != "video bytes" {
			t.Errorf("stored data = %q, want %q", data, "video bytes")
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := storage.SaveUpload(cancelled, "x.mp4", bytes.NewReader(nil))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStorage_WorkDir(t *testing.T) {
	storage := setupTestStorage(t)

	dir, err := storage.WorkDir("safari_ab12cd34.mp4")
	if err != nil {
		t.Fatalf("WorkDir() error = %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("work directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected directory, got file")
	}

	// Second call returns the same directory.
	again, err := storage.WorkDir("safari_ab12cd34.mp4")
	if err != nil {
		t.Fatalf("WorkDir() second call error = %v", err)
	}
	if again != dir {
		t.Errorf("WorkDir() = %v, want %v", again, dir)
	}
}

func TestLocalStorage_Open(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	path, err := storage.SaveUpload(ctx, "open_test.mp4", bytes.NewReader([]byte("contents")))
	if err != nil {
		t.Fatalf("SaveUpload() error = %v", err)
	}

	r, err := storage.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if string(data) != "contents" {
		t.Errorf("read %q, want %q", data, "contents")
	}
}

func TestLocalStorage_Remove(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("removes files and work directory", func(t *testing.T) {
		path, err := storage.SaveUpload(ctx, "remove_test.mp4", bytes.NewReader([]byte("data")))
		if err != nil {
			t.Fatalf("SaveUpload() error = %v", err)
		}
		workDir, err := storage.WorkDir("remove_test.mp4")
		if err != nil {
			t.Fatalf("WorkDir() error = %v", err)
		}

		if err := storage.Remove(ctx, "remove_test.mp4", []string{path}); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}

		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("upload %s still exists", path)
		}
		if _, err := os.Stat(workDir); !os.IsNotExist(err) {
			t.Errorf("work directory %s still exists", workDir)
		}
	})

	t.Run("ignores non-existent files", func(t *testing.T) {
		err := storage.Remove(ctx, "ghost.mp4", []string{"/non/existent/file"})
		if err != nil {
			t.Errorf("Remove() should ignore non-existent files, got %v", err)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		err := storage.Remove(cancelled, "x.mp4", []string{"/some/path"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStorage_PublishArtifact(t *testing.T) {
	storage := setupTestStorage(t)

	_, err := storage.PublishArtifact(context.Background(), "key", "/some/path")
	if !errors.Is(err, ErrS3NotConfigured) {
		t.Errorf("expected ErrS3NotConfigured, got %v", err)
	}
}

func setupTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	dataDir := filepath.Join(os.TempDir(), "faunalens_test_"+randomSuffix())
	t.Cleanup(func() { _ = os.RemoveAll(dataDir) })

	storage, err := NewLocalStorage(dataDir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return storage
}

func randomSuffix() string {
	return time.Now().Format("20060102150405.000000000")
}
