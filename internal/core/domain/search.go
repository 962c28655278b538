package domain

type IndexDocumentResult struct {
	Index   string `json:"index"`
	ID      string `json:"id"`
	Result  string `json:"result"`
	Version int64  `json:"version,omitempty"`
}

type SearchHit struct {
	Index  string         `json:"index"`
	ID     string         `json:"id"`
	Score  float64        `json:"score"`
	Source map[string]any `json:"source"`
}

type SearchResult struct {
	Total int64       `json:"total"`
	Hits  []SearchHit `json:"hits"`
}
