package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/kirillkom/extraction-indexer/internal/core/domain"
	"github.com/kirillkom/extraction-indexer/internal/infrastructure/resilience"
)

var errNoAddress = errors.New("elasticsearch: at least one address is required")

type Options struct {
	Addresses []string
	Username  string
	Password  string
	APIKey    string

	// RequestTimeout, when positive, bounds the wait for response headers.
	// Zero leaves timing to the caller's ctx.
	RequestTimeout time.Duration
}

// Client writes extraction records into Elasticsearch. Writes are always
// issued with refresh=true so they are searchable on return.
type Client struct {
	es        *es.Client
	transport *http.Transport
	executor  *resilience.Executor
}

func New(opts Options, executor *resilience.Executor) (*Client, error) {
	if len(opts.Addresses) == 0 {
		return nil, errNoAddress
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.RequestTimeout > 0 {
		transport.ResponseHeaderTimeout = opts.RequestTimeout
	}

	client, err := es.NewClient(es.Config{
		Addresses:    opts.Addresses,
		Username:     opts.Username,
		Password:     opts.Password,
		APIKey:       opts.APIKey,
		Transport:    transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	return &Client{
		es:        client,
		transport: transport,
		executor:  executor,
	}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	err := c.execute(ctx, resilience.Read("elasticsearch_ping"), func(ctx context.Context) error {
		res, err := c.es.Info(c.es.Info.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("elasticsearch ping request: %w", err)
		}
		defer drainAndClose(res)
		if res.IsError() {
			return statusError("ping", res)
		}
		return nil
	})
	if err != nil {
		return domain.WrapError(domain.ErrUnavailable, "ping", err)
	}
	return nil
}

type bulkAction struct {
	Index bulkActionMeta `json:"index"`
}

type bulkActionMeta struct {
	Index string `json:"_index"`
	ID    string `json:"_id,omitempty"`
}

type bulkReply struct {
	Errors bool                            `json:"errors"`
	Items  []map[string]bulkReplyItemEntry `json:"items"`
}

type bulkReplyItemEntry struct {
	Index  string `json:"_index"`
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error,omitempty"`
}

func (c *Client) Bulk(ctx context.Context, ops []domain.BulkOperation) (*domain.BulkResponse, error) {
	if len(ops) == 0 {
		return &domain.BulkResponse{}, nil
	}
	body, err := encodeBulkBody(ops)
	if err != nil {
		return nil, err
	}

	var reply bulkReply
	err = c.execute(ctx, resilience.Write("elasticsearch_bulk"), func(ctx context.Context) error {
		res, err := c.es.Bulk(
			bytes.NewReader(body),
			c.es.Bulk.WithContext(ctx),
			c.es.Bulk.WithRefresh("true"),
		)
		if err != nil {
			return fmt.Errorf("elasticsearch bulk request: %w", err)
		}
		defer drainAndClose(res)
		if res.IsError() {
			return statusError("bulk", res)
		}
		if err := json.NewDecoder(res.Body).Decode(&reply); err != nil {
			return fmt.Errorf("decode bulk response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, wrapTemporaryIfNeeded("bulk", err)
	}
	return reply.toDomain(), nil
}

func encodeBulkBody(ops []domain.BulkOperation) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, op := range ops {
		if err := enc.Encode(bulkAction{Index: bulkActionMeta{Index: op.Index, ID: op.ID}}); err != nil {
			return nil, fmt.Errorf("encode bulk action for %s/%s: %w", op.Index, op.ID, err)
		}
		if err := enc.Encode(op.Document); err != nil {
			return nil, fmt.Errorf("encode bulk document for %s/%s: %w", op.Index, op.ID, err)
		}
	}
	return buf.Bytes(), nil
}

func (r bulkReply) toDomain() *domain.BulkResponse {
	out := &domain.BulkResponse{
		Errors: r.Errors,
		Items:  make([]domain.BulkItemResult, 0, len(r.Items)),
	}
	for _, entry := range r.Items {
		for _, item := range entry {
			result := domain.BulkItemResult{Index: item.Index, ID: item.ID, Status: item.Status}
			if item.Error != nil {
				result.Error = &domain.BulkItemError{
					Index:  item.Index,
					ID:     item.ID,
					Status: item.Status,
					Type:   item.Error.Type,
					Reason: item.Error.Reason,
				}
			}
			out.Items = append(out.Items, result)
		}
	}
	return out
}

func (c *Client) IndexDocument(ctx context.Context, index, id string, document map[string]any) (*domain.IndexDocumentResult, error) {
	body, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}

	var reply struct {
		Index   string `json:"_index"`
		ID      string `json:"_id"`
		Result  string `json:"result"`
		Version int64  `json:"_version"`
	}
	err = c.execute(ctx, resilience.Write("elasticsearch_index"), func(ctx context.Context) error {
		opts := []func(*esapi.IndexRequest){
			c.es.Index.WithContext(ctx),
			c.es.Index.WithRefresh("true"),
		}
		if id != "" {
			opts = append(opts, c.es.Index.WithDocumentID(id))
		}
		res, err := c.es.Index(index, bytes.NewReader(body), opts...)
		if err != nil {
			return fmt.Errorf("elasticsearch index request: %w", err)
		}
		defer drainAndClose(res)
		if res.IsError() {
			return statusError("index", res)
		}
		if err := json.NewDecoder(res.Body).Decode(&reply); err != nil {
			return fmt.Errorf("decode index response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, wrapTemporaryIfNeeded("index document", err)
	}
	return &domain.IndexDocumentResult{
		Index:   reply.Index,
		ID:      reply.ID,
		Result:  reply.Result,
		Version: reply.Version,
	}, nil
}

type searchReply struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Index  string         `json:"_index"`
			ID     string         `json:"_id"`
			Score  *float64       `json:"_score"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (c *Client) Search(ctx context.Context, index string, query map[string]any) (*domain.SearchResult, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	var reply searchReply
	err = c.execute(ctx, resilience.Read("elasticsearch_search"), func(ctx context.Context) error {
		res, err := c.es.Search(
			c.es.Search.WithContext(ctx),
			c.es.Search.WithIndex(index),
			c.es.Search.WithBody(bytes.NewReader(body)),
		)
		if err != nil {
			return fmt.Errorf("elasticsearch search request: %w", err)
		}
		defer drainAndClose(res)
		if res.IsError() {
			return statusError("search", res)
		}
		if err := json.NewDecoder(res.Body).Decode(&reply); err != nil {
			return fmt.Errorf("decode search response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, wrapTemporaryIfNeeded("search", err)
	}

	out := &domain.SearchResult{
		Total: reply.Hits.Total.Value,
		Hits:  make([]domain.SearchHit, 0, len(reply.Hits.Hits)),
	}
	for _, hit := range reply.Hits.Hits {
		item := domain.SearchHit{Index: hit.Index, ID: hit.ID, Source: hit.Source}
		if hit.Score != nil {
			item.Score = *hit.Score
		}
		out.Hits = append(out.Hits, item)
	}
	return out, nil
}

// Close releases pooled connections. It is safe to call more than once.
func (c *Client) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

func (c *Client) execute(ctx context.Context, op resilience.Operation, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, op, fn, classifyElasticsearchError)
}

func statusError(operation string, res *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: res.StatusCode,
		Status:     res.Status(),
		Body:       strings.TrimSpace(string(body)),
	}
}

func drainAndClose(res *esapi.Response) {
	if res == nil || res.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
	_ = res.Body.Close()
}
