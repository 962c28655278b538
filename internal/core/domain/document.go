package domain

import "time"

// Index collections every extraction is fanned out into.
const (
	IndexDocuments  = "documents"
	IndexPages      = "pages"
	IndexParagraphs = "paragraphs"
	IndexSentences  = "sentences"
	IndexImages     = "images"
)

// Keys owned by the document record; caller metadata may not set them.
const (
	FieldDocumentID = "document_id"
	FieldTimestamp  = "timestamp"
)

// ExtractedText is the hierarchical output of text extraction. Paragraphs and
// Sentences are aligned by position with Pages (and Sentences with Paragraphs).
type ExtractedText struct {
	Pages      []string     `json:"pages"`
	Paragraphs [][]string   `json:"paragraphs"`
	Sentences  [][][]string `json:"sentences"`
}

// ImageInput is one extracted image: a caption and a comma-separated label list.
type ImageInput struct {
	Caption string `json:"caption"`
	Labels  string `json:"labels"`
}

type PageRecord struct {
	PageID     string    `json:"page_id"`
	DocumentID string    `json:"document_id"`
	PageNumber int       `json:"page_number"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

type ParagraphRecord struct {
	ParagraphID string    `json:"paragraph_id"`
	PageID      string    `json:"page_id"`
	DocumentID  string    `json:"document_id"`
	Position    int       `json:"position"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

type SentenceRecord struct {
	SentenceID  string    `json:"sentence_id"`
	ParagraphID string    `json:"paragraph_id"`
	PageID      string    `json:"page_id"`
	DocumentID  string    `json:"document_id"`
	Position    int       `json:"position"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

type ImageRecord struct {
	ImageID    string    `json:"image_id"`
	DocumentID string    `json:"document_id"`
	Position   int       `json:"position"`
	Caption    string    `json:"caption"`
	Labels     []string  `json:"labels"`
	PageNumber *int      `json:"page_number,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
