package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/extraction-indexer/internal/core/domain"
)

// Indices names the collections extraction records are written into.
type Indices struct {
	Documents  string
	Pages      string
	Paragraphs string
	Sentences  string
	Images     string
}

func DefaultIndices() Indices {
	return Indices{
		Documents:  domain.IndexDocuments,
		Pages:      domain.IndexPages,
		Paragraphs: domain.IndexParagraphs,
		Sentences:  domain.IndexSentences,
		Images:     domain.IndexImages,
	}
}

// WithPrefix returns the default index names prefixed with prefix.
func (i Indices) WithPrefix(prefix string) Indices {
	if prefix == "" {
		return i
	}
	return Indices{
		Documents:  prefix + i.Documents,
		Pages:      prefix + i.Pages,
		Paragraphs: prefix + i.Paragraphs,
		Sentences:  prefix + i.Sentences,
		Images:     prefix + i.Images,
	}
}

func (i Indices) normalize() Indices {
	out := i
	def := DefaultIndices()
	if out.Documents == "" {
		out.Documents = def.Documents
	}
	if out.Pages == "" {
		out.Pages = def.Pages
	}
	if out.Paragraphs == "" {
		out.Paragraphs = def.Paragraphs
	}
	if out.Sentences == "" {
		out.Sentences = def.Sentences
	}
	if out.Images == "" {
		out.Images = def.Images
	}
	return out
}

func PageID(documentID string, page int) string {
	return fmt.Sprintf("%s_p%d", documentID, page)
}

func ParagraphID(pageID string, position int) string {
	return fmt.Sprintf("%s_par%d", pageID, position)
}

func SentenceID(paragraphID string, position int) string {
	return fmt.Sprintf("%s_s%d", paragraphID, position)
}

func ImageID(documentID string, position int) string {
	return fmt.Sprintf("%s_img_%d", documentID, position)
}

// countText sums the input shape. It is what success results report,
// independently of how many writes the backend confirmed.
func countText(text domain.ExtractedText) domain.IndexedCounts {
	counts := domain.IndexedCounts{
		Documents: 1,
		Pages:     len(text.Pages),
	}
	for _, paragraphs := range text.Paragraphs {
		counts.Paragraphs += len(paragraphs)
	}
	for _, pageSentences := range text.Sentences {
		for _, sentences := range pageSentences {
			counts.Sentences += len(sentences)
		}
	}
	return counts
}

func buildDocumentRecord(documentID string, metadata map[string]any, now time.Time) map[string]any {
	record := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		record[k] = v
	}
	record[domain.FieldDocumentID] = documentID
	record[domain.FieldTimestamp] = now
	return record
}

func buildTextOperations(
	indices Indices,
	documentID string,
	text domain.ExtractedText,
	metadata map[string]any,
	now time.Time,
) []domain.BulkOperation {
	counts := countText(text)
	ops := make([]domain.BulkOperation, 0, counts.Total())

	ops = append(ops, domain.BulkOperation{
		Index:    indices.Documents,
		ID:       documentID,
		Document: buildDocumentRecord(documentID, metadata, now),
	})

	for i, pageText := range text.Pages {
		pageID := PageID(documentID, i+1)
		ops = append(ops, domain.BulkOperation{
			Index: indices.Pages,
			ID:    pageID,
			Document: domain.PageRecord{
				PageID:     pageID,
				DocumentID: documentID,
				PageNumber: i + 1,
				Text:       pageText,
				Timestamp:  now,
			},
		})
	}

	for i, paragraphs := range text.Paragraphs {
		pageID := PageID(documentID, i+1)
		for j, paragraphText := range paragraphs {
			paragraphID := ParagraphID(pageID, j+1)
			ops = append(ops, domain.BulkOperation{
				Index: indices.Paragraphs,
				ID:    paragraphID,
				Document: domain.ParagraphRecord{
					ParagraphID: paragraphID,
					PageID:      pageID,
					DocumentID:  documentID,
					Position:    j + 1,
					Text:        paragraphText,
					Timestamp:   now,
				},
			})
		}
	}

	for i, pageSentences := range text.Sentences {
		pageID := PageID(documentID, i+1)
		for j, sentences := range pageSentences {
			paragraphID := ParagraphID(pageID, j+1)
			for k, sentenceText := range sentences {
				sentenceID := SentenceID(paragraphID, k+1)
				ops = append(ops, domain.BulkOperation{
					Index: indices.Sentences,
					ID:    sentenceID,
					Document: domain.SentenceRecord{
						SentenceID:  sentenceID,
						ParagraphID: paragraphID,
						PageID:      pageID,
						DocumentID:  documentID,
						Position:    k + 1,
						Text:        sentenceText,
						Timestamp:   now,
					},
				})
			}
		}
	}

	return ops
}

func buildImageOperations(
	indices Indices,
	documentID string,
	images []domain.ImageInput,
	pageNumbers []int,
	now time.Time,
) []domain.BulkOperation {
	ops := make([]domain.BulkOperation, 0, len(images))
	for i, image := range images {
		imageID := ImageID(documentID, i+1)
		record := domain.ImageRecord{
			ImageID:    imageID,
			DocumentID: documentID,
			Position:   i + 1,
			Caption:    image.Caption,
			Labels:     ParseLabels(image.Labels),
			Timestamp:  now,
		}
		if i < len(pageNumbers) {
			page := pageNumbers[i]
			record.PageNumber = &page
		}
		ops = append(ops, domain.BulkOperation{
			Index:    indices.Images,
			ID:       imageID,
			Document: record,
		})
	}
	return ops
}

// ParseLabels splits a comma-separated label string into trimmed, non-empty,
// de-duplicated labels in input order. It never returns nil.
func ParseLabels(raw string) []string {
	out := make([]string, 0)
	if strings.TrimSpace(raw) == "" {
		return out
	}
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		label := strings.TrimSpace(part)
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}
