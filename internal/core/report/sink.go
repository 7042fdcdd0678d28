package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/markdave123-py/cvflow/internal/core"
)

var (
	_ core.ReportSink = (*LocalSink)(nil)
	_ core.ReportSink = (*S3Sink)(nil)
)

// LocalSink writes report artifacts next to the batch's uploaded files.
type LocalSink struct {
	baseDir string
}

func NewLocalSink(baseDir string) *LocalSink {
	return &LocalSink{baseDir: baseDir}
}

func (s *LocalSink) Save(_ context.Context, batchID, filename string, content []byte) (string, error) {
	dir := filepath.Join(s.baseDir, batchID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// S3Sink uploads report artifacts to object storage, keyed by batch.
type S3Sink struct {
	obj    core.ObjectClient
	bucket string
}

func NewS3Sink(obj core.ObjectClient, bucket string) *S3Sink {
	return &S3Sink{obj: obj, bucket: bucket}
}

func (s *S3Sink) Save(ctx context.Context, batchID, filename string, content []byte) (string, error) {
	key := fmt.Sprintf("%s/%s", batchID, filename)
	return s.obj.UploadFile(ctx, s.bucket, key, content, "text/plain; charset=utf-8")
}
