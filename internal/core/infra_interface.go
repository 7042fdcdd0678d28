package core

import (
	"context"

	"github.com/markdave123-py/cvflow/internal/models"
)

// Store defines all persistence operations the pipeline and handlers need.
// It abstracts Postgres so higher layers never depend on a specific DB.
type Store interface {
	CreateBatch(ctx context.Context, batch *models.Batch) error
	GetBatch(ctx context.Context, id string) (*models.Batch, error)
	// BeginProcessing atomically moves a pending batch to processing.
	// Returns false when the batch is not in pending status, which is the
	// single-flight guard against double-processing one batch id.
	BeginProcessing(ctx context.Context, id string) (bool, error)
	UpdateBatchStatus(ctx context.Context, id, status string, quotaError *bool) error

	CreateFile(ctx context.Context, file *models.FileRecord) (int64, error)
	GetFileByID(ctx context.Context, id int64) (*models.FileRecord, error)
	GetBatchFiles(ctx context.Context, batchID string, onlyInitial bool) ([]models.FileRecord, error)

	CreateResults(ctx context.Context, results []*models.Result) error
	GetBatchResultTexts(ctx context.Context, batchID string) ([]models.ResultText, error)

	CreateChatTurn(ctx context.Context, turn *models.ChatTurn) error
	GetChatHistory(ctx context.Context, batchID string, limit int) ([]models.ChatTurn, error)
}

// Gateway is the AI collaborator consumed by the pipeline and the
// conversation handler. Every capability reports quota exhaustion as a
// distinguished outcome so callers can tell "try again later" apart from
// "this document is broken".
type Gateway interface {
	// ExtractData pulls structured candidate fields out of resume text.
	// A nil fields map with a non-quota status is a non-fatal outcome.
	ExtractData(ctx context.Context, text string) (fields map[string]any, status string, quotaErr bool)

	// GenerateReport writes a per-candidate report artifact built from the
	// extracted fields and the full text.
	GenerateReport(ctx context.Context, fields map[string]any, text, originalName, batchID string) (ok bool, status string, quotaErr bool)

	// SummarizeWeb researches a key topic from the text online and returns
	// a labeled summary, or nil when nothing usable was produced.
	SummarizeWeb(ctx context.Context, text string) (status string, summary *string, quotaErr bool)

	// Chat answers a free-form prompt.
	Chat(ctx context.Context, prompt string) (reply string, quotaErr bool, err error)
}

// DocumentReader turns a stored file into plain text. An empty string with
// a nil error means the document had no extractable text; a non-nil error
// means the read itself failed.
type DocumentReader interface {
	ReadText(path string) (string, error)
}

// ReportSink persists generated report artifacts. Local disk by default,
// object storage when configured.
type ReportSink interface {
	Save(ctx context.Context, batchID, filename string, content []byte) (location string, err error)
}

// ObjectClient uploads artifacts to S3 or any object storage. Reports are
// write-once: nothing in the service reads them back, so the contract is
// upload only.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
}
