package models

import (
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Batch lifecycle. A batch only ever moves forward along
// pending -> processing -> {completed | failed}.
const (
	BatchStatusPending    = "pending"
	BatchStatusProcessing = "processing"
	BatchStatusCompleted  = "completed"
	BatchStatusFailed     = "failed"
)

// Feature flags a client may set at upload time.
const (
	FlagGenerateReport = "generate_report"
	FlagSearchWeb      = "search_web"
)

// Per-file terminal statuses. Anything prefixed with StatusSuccessPrefix
// counts as a completed pipeline for that file.
const (
	StatusSuccessPrefix     = "Sucesso"
	StatusSuccess           = "Sucesso"
	StatusSuccessNoText     = "Sucesso (sem texto para IA)"
	StatusError             = "Erro"
	StatusPending           = "Pendente"
	StepStatusNotRequested  = "Não solicitado"
	StepStatusSkippedNoText = "Pulado (sem texto)"
)

// Batch represents one user-submitted collection of documents processed
// together under one set of feature flags.
type Batch struct {
	ID                 string          `json:"batch_id"`
	Status             string          `json:"status"`
	Flags              map[string]bool `json:"flags"`
	InitialInstruction string          `json:"initial_instruction,omitempty"`
	QuotaErrorSeen     bool            `json:"quota_error_seen"`
	CreatedAt          time.Time       `json:"created_at"`
}

// FileRecord is one stored file belonging to a batch, either uploaded
// directly or pulled out of a container archive. Immutable after creation.
type FileRecord struct {
	ID                   int64     `json:"file_id"`
	BatchID              string    `json:"batch_id"`
	OriginalName         string    `json:"original_name"`
	SavedPath            string    `json:"saved_path"`
	ExtractedFromArchive bool      `json:"extracted_from_archive"`
	CreatedAt            time.Time `json:"created_at"`
}

// StepLog maps step name -> status string, preserving execution order.
// The ordered map keeps JSON key order equal to insertion order, which the
// front end relies on to render steps in the order they ran.
type StepLog = orderedmap.OrderedMap[string, string]

func NewStepLog() *StepLog {
	return orderedmap.New[string, string]()
}

// Result is the outcome of one file's pipeline run. Created exactly once
// per file after its pipeline finishes; never updated afterwards.
type Result struct {
	ID           int64          `json:"-"`
	FileID       int64          `json:"file_id"`
	BatchID      string         `json:"-"`
	Filename     string         `json:"filename"`
	StatusFinal  string         `json:"status_final"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Steps        *StepLog       `json:"steps"`
	Data         map[string]any `json:"data,omitempty"`
	WebSummary   *string        `json:"web_summary,omitempty"`
	FullText     *string        `json:"full_text,omitempty"`
}

// ResultText is the slice of a result the conversation handler needs for
// context building.
type ResultText struct {
	OriginalName string
	FullText     string
}

// ChatTurn is one user message / model reply pair. Append-only; timestamp
// order defines conversation order.
type ChatTurn struct {
	ID          int64     `json:"id"`
	BatchID     string    `json:"batch_id"`
	UserMessage string    `json:"user_message"`
	ModelReply  string    `json:"model_reply"`
	CreatedAt   time.Time `json:"created_at"`
}
