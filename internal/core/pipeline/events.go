package pipeline

import "github.com/markdave123-py/cvflow/internal/models"

// Progress event types. One batch run produces a single append-only,
// ordered sequence of these; batch_done or batch_failed is always last.
const (
	EventStatus                   = "status"
	EventWarning                  = "warning"
	EventError                    = "error"
	EventPause                    = "pause"
	EventFileStart                = "file_start"
	EventStepStart                = "step_start"
	EventStepDone                 = "step_done"
	EventFileError                = "file_error"
	EventFileDone                 = "file_done"
	EventInitialInstructionResult = "initial_instruction_result"
	EventBatchDone                = "batch_done"
	EventBatchFailed              = "batch_failed"
)

// Event is one unit of the server-to-client progress stream, serialized as
// a single JSON object per event.
type Event struct {
	Type       string         `json:"type"`
	Message    string         `json:"message,omitempty"`
	Filename   string         `json:"filename,omitempty"`
	Step       string         `json:"step,omitempty"`
	Status     string         `json:"status,omitempty"`
	Duration   float64        `json:"duration,omitempty"`
	Index      int            `json:"index,omitempty"`
	Total      int            `json:"total,omitempty"`
	FileID     int64          `json:"file_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Summary    *string        `json:"summary,omitempty"`
	Reply      string         `json:"reply,omitempty"`
	Result     *models.Result `json:"result,omitempty"`
	QuotaError *bool          `json:"quota_error,omitempty"`
}

func statusEvent(message string) Event {
	return Event{Type: EventStatus, Message: message}
}

func warningEvent(message string) Event {
	return Event{Type: EventWarning, Message: message}
}

func errorEvent(message string) Event {
	return Event{Type: EventError, Message: message}
}

func pauseEvent(seconds float64) Event {
	return Event{Type: EventPause, Duration: seconds}
}
