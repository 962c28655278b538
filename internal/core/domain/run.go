package domain

import "time"

type RunKind string

const (
	RunKindText  RunKind = "text"
	RunKindImage RunKind = "image"
)

// IndexingRun is one journaled indexing call.
type IndexingRun struct {
	ID          string      `json:"id"`
	DocumentID  string      `json:"document_id"`
	Kind        RunKind     `json:"kind"`
	Status      IndexStatus `json:"status"`
	Failure     FailureKind `json:"failure,omitempty"`
	Message     string      `json:"message,omitempty"`
	Submitted   int         `json:"submitted"`
	FailedItems int         `json:"failed_items"`
	DurationMS  float64     `json:"duration_ms"`
	CreatedAt   time.Time   `json:"created_at"`
}
