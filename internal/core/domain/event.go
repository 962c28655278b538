package domain

type ExtractionEventKind string

const (
	EventKindText  ExtractionEventKind = "text"
	EventKindImage ExtractionEventKind = "image"
)

// ExtractionEvent is published by extraction services once a document has
// been processed.
type ExtractionEvent struct {
	Kind        ExtractionEventKind `json:"kind"`
	DocumentID  string              `json:"document_id"`
	Pages       []string            `json:"pages,omitempty"`
	Paragraphs  [][]string          `json:"paragraphs,omitempty"`
	Sentences   [][][]string        `json:"sentences,omitempty"`
	Metadata    map[string]any      `json:"metadata,omitempty"`
	Images      []ImageInput        `json:"images,omitempty"`
	PageNumbers []int               `json:"page_numbers,omitempty"`
}

func (e ExtractionEvent) Text() ExtractedText {
	return ExtractedText{
		Pages:      e.Pages,
		Paragraphs: e.Paragraphs,
		Sentences:  e.Sentences,
	}
}
