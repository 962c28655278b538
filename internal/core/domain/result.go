package domain

type IndexStatus string

const (
	StatusSuccess        IndexStatus = "success"
	StatusPartialSuccess IndexStatus = "partial_success"
	StatusWarning        IndexStatus = "warning"
	StatusError          IndexStatus = "error"
	StatusUnimplemented  IndexStatus = "unimplemented"
)

// FailureKind tells callers which failure path produced a non-success result.
type FailureKind string

const (
	FailureConnectivity   FailureKind = "connectivity"
	FailureInvalidInput   FailureKind = "invalid_input"
	FailurePartialWrite   FailureKind = "partial_write"
	FailureUnexpected     FailureKind = "unexpected"
	FailureNotImplemented FailureKind = "not_implemented"
)

// IndexedCounts reports how many records of each kind were submitted.
// Counts come from the input shape, not from confirmed writes.
type IndexedCounts struct {
	Documents  int `json:"documents"`
	Pages      int `json:"pages"`
	Paragraphs int `json:"paragraphs"`
	Sentences  int `json:"sentences"`
}

func (c IndexedCounts) Total() int {
	return c.Documents + c.Pages + c.Paragraphs + c.Sentences
}

// IndexResult is the outcome of an extraction indexing call. Every failure is
// folded into it; the indexing operations never return a Go error.
type IndexResult struct {
	Status        IndexStatus     `json:"status"`
	Message       string          `json:"message,omitempty"`
	DocumentID    string          `json:"document_id"`
	IndexedItems  *IndexedCounts  `json:"indexed_items,omitempty"`
	ImagesIndexed int             `json:"images_indexed,omitempty"`
	Errors        []BulkItemError `json:"errors,omitempty"`
	Failure       FailureKind     `json:"failure,omitempty"`

	// Cause holds the underlying error for connectivity, invalid input and
	// unexpected failures.
	Cause error `json:"-"`
}

func (r IndexResult) OK() bool {
	return r.Status == StatusSuccess || r.Status == StatusPartialSuccess || r.Status == StatusWarning
}

func (r IndexResult) Err() error {
	return r.Cause
}
