package domain

// BulkOperation is a single index (upsert) action inside a bulk request.
type BulkOperation struct {
	Index    string
	ID       string
	Document any
}

type BulkItemResult struct {
	Index  string         `json:"index"`
	ID     string         `json:"id"`
	Status int            `json:"status"`
	Error  *BulkItemError `json:"error,omitempty"`
}

type BulkItemError struct {
	Index  string `json:"index"`
	ID     string `json:"id"`
	Status int    `json:"status"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// BulkResponse mirrors the backend bulk reply. Errors is the backend's own
// top-level flag and is trusted as-is.
type BulkResponse struct {
	Errors bool
	Items  []BulkItemResult
}

// FailedItems returns the error details of every rejected item.
func (r *BulkResponse) FailedItems() []BulkItemError {
	if r == nil {
		return nil
	}
	out := make([]BulkItemError, 0)
	for _, item := range r.Items {
		if item.Error == nil {
			continue
		}
		out = append(out, *item.Error)
	}
	return out
}
