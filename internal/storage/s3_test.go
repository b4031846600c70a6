package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func testS3Config() S3Config {
	return S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566", // LocalStack-like endpoint
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}
}

func TestNewS3Storage(t *testing.T) {
	dataDir := filepath.Join(os.TempDir(), "faunalens_s3_test_"+randomSuffix())
	defer func() { _ = os.RemoveAll(dataDir) }()

	cfg := testS3Config()
	storage, err := NewS3Storage(dataDir, cfg)
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	if storage.bucket != cfg.Bucket {
		t.Errorf("bucket = %v, want %v", storage.bucket, cfg.Bucket)
	}
	if storage.region != cfg.Region {
		t.Errorf("region = %v, want %v", storage.region, cfg.Region)
	}
}

func TestS3Storage_InheritsLocalStorage(t *testing.T) {
	dataDir := filepath.Join(os.TempDir(), "faunalens_s3_test_"+randomSuffix())
	defer func() { _ = os.RemoveAll(dataDir) }()

	storage, err := NewS3Storage(dataDir, testS3Config())
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	ctx := context.Background()
	path, err := storage.SaveUpload(ctx, "inherit_test.mp4", bytes.NewReader([]byte("test data")))
	if err != nil {
		t.Fatalf("SaveUpload() error = %v", err)
	}
	defer func() { _ = os.Remove(path) }()

	if _, err := storage.WorkDir("inherit_test.mp4"); err != nil {
		t.Fatalf("WorkDir() error = %v", err)
	}
}

func TestS3Storage_PublishArtifact_MissingFile(t *testing.T) {
	dataDir := filepath.Join(os.TempDir(), "faunalens_s3_test_"+randomSuffix())
	defer func() { _ = os.RemoveAll(dataDir) }()

	storage, err := NewS3Storage(dataDir, testS3Config())
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	_, err = storage.PublishArtifact(context.Background(), "key", "/does/not/exist.mp4")
	if err == nil {
		t.Error("expected error for missing artifact file")
	}
}
