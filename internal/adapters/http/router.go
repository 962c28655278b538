package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/kirillkom/extraction-indexer/internal/core/domain"
	"github.com/kirillkom/extraction-indexer/internal/core/ports"
	"github.com/kirillkom/extraction-indexer/internal/observability/metrics"
)

const defaultMaxBodyBytes = 32 << 20

type RouterOptions struct {
	Service        string
	Runs           ports.RunReader
	Metrics        *metrics.HTTPServerMetrics
	RateLimitRPS   float64
	RateLimitBurst int
	MaxBodyBytes   int64
}

type Router struct {
	indexer   ports.ExtractionIndexer
	documents ports.DocumentStore
	runs      ports.RunReader
	metrics   *metrics.HTTPServerMetrics

	service        string
	rateLimitRPS   float64
	rateLimitBurst int
	maxBodyBytes   int64
}

func NewRouter(indexer ports.ExtractionIndexer, documents ports.DocumentStore, options RouterOptions) *Router {
	service := options.Service
	if service == "" {
		service = "indexer-api"
	}
	maxBody := options.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return &Router{
		indexer:        indexer,
		documents:      documents,
		runs:           options.Runs,
		metrics:        options.Metrics,
		service:        service,
		rateLimitRPS:   options.RateLimitRPS,
		rateLimitBurst: options.RateLimitBurst,
		maxBodyBytes:   maxBody,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /readyz", rt.readyz)

	mux.HandleFunc("POST /v1/documents/{document_id}/text", rt.saveText)
	mux.HandleFunc("POST /v1/documents/{document_id}/images", rt.saveImages)
	mux.HandleFunc("POST /v1/documents/{document_id}/video", rt.saveVideo)
	mux.HandleFunc("POST /v1/documents/{document_id}/equations", rt.saveEquations)
	mux.HandleFunc("POST /v1/documents/{document_id}/metadata", rt.saveMetadata)
	mux.HandleFunc("GET /v1/documents/{document_id}/runs", rt.listRuns)

	mux.HandleFunc("POST /v1/indices/{index}/documents", rt.indexDocument)
	mux.HandleFunc("POST /v1/indices/{index}/search", rt.search)

	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = rt.rateLimitMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) readyz(w http.ResponseWriter, r *http.Request) {
	if !rt.indexer.CheckConnection(r.Context()) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type saveTextRequest struct {
	Pages      []string       `json:"pages"`
	Paragraphs [][]string     `json:"paragraphs"`
	Sentences  [][][]string   `json:"sentences"`
	Metadata   map[string]any `json:"metadata"`
}

func (rt *Router) saveText(w http.ResponseWriter, r *http.Request) {
	var req saveTextRequest
	if !rt.decodeBody(w, r, &req) {
		return
	}
	result := rt.indexer.SaveExtractedText(r.Context(), r.PathValue("document_id"), domain.ExtractedText{
		Pages:      req.Pages,
		Paragraphs: req.Paragraphs,
		Sentences:  req.Sentences,
	}, req.Metadata)
	writeResult(w, result)
}

type saveImagesRequest struct {
	Images      []domain.ImageInput `json:"images"`
	PageNumbers []int               `json:"page_numbers"`
}

func (rt *Router) saveImages(w http.ResponseWriter, r *http.Request) {
	var req saveImagesRequest
	if !rt.decodeBody(w, r, &req) {
		return
	}
	writeResult(w, rt.indexer.SaveExtractedImage(r.Context(), r.PathValue("document_id"), req.Images, req.PageNumbers))
}

func (rt *Router) saveVideo(w http.ResponseWriter, r *http.Request) {
	writeResult(w, rt.indexer.SaveExtractedVideo(r.Context(), r.PathValue("document_id")))
}

func (rt *Router) saveEquations(w http.ResponseWriter, r *http.Request) {
	writeResult(w, rt.indexer.SaveExtractedEquations(r.Context(), r.PathValue("document_id")))
}

func (rt *Router) saveMetadata(w http.ResponseWriter, r *http.Request) {
	writeResult(w, rt.indexer.SaveMetadata(r.Context(), r.PathValue("document_id")))
}

func (rt *Router) listRuns(w http.ResponseWriter, r *http.Request) {
	if rt.runs == nil {
		writeError(w, r, http.StatusNotFound, "indexing run journal is disabled")
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	runs, err := rt.runs.ListByDocument(r.Context(), r.PathValue("document_id"), limit)
	if err != nil {
		writeError(w, r, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (rt *Router) indexDocument(w http.ResponseWriter, r *http.Request) {
	var document map[string]any
	if !rt.decodeBody(w, r, &document) {
		return
	}

	res, err := rt.documents.IndexDocument(r.Context(), r.PathValue("index"), r.URL.Query().Get("id"), document)
	if err != nil {
		writeError(w, r, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	status := http.StatusOK
	if res.Result == "created" {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	var query map[string]any
	if r.ContentLength != 0 {
		if !rt.decodeBody(w, r, &query) {
			return
		}
	}

	res, err := rt.documents.Search(r.Context(), r.PathValue("index"), query)
	if err != nil {
		writeError(w, r, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (rt *Router) decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	body := http.MaxBytesReader(w, r.Body, rt.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(out); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func writeResult(w http.ResponseWriter, result domain.IndexResult) {
	writeJSON(w, statusForResult(result), result)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":      message,
		"request_id": requestIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
