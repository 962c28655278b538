package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/extraction-indexer/internal/core/domain"
	"github.com/kirillkom/extraction-indexer/internal/core/ports"
	"github.com/kirillkom/extraction-indexer/internal/infrastructure/resilience"
)

const (
	DefaultQueueGroup = "indexers"

	drainTimeout = 30 * time.Second
)

type Queue struct {
	conn       *nats.Conn
	subject    string
	queueGroup string
	executor   *resilience.Executor
}

type Options struct {
	QueueGroup           string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	queueGroup := options.QueueGroup
	if queueGroup == "" {
		queueGroup = DefaultQueueGroup
	}

	conn, err := nats.Connect(
		url,
		nats.Name("extraction-indexer"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:       conn,
		subject:    subject,
		queueGroup: queueGroup,
		executor:   options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) SubscribeExtractionCompleted(ctx context.Context, handler ports.ExtractionEventHandler) error {
	sub, err := q.conn.QueueSubscribe(q.subject, q.queueGroup, func(msg *nats.Msg) {
		q.handleMessage(ctx, msg, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	slog.Info("nats_subscribed", "subject", q.subject, "queue_group", q.queueGroup)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := waitDrained(sub, drainTimeout); err != nil {
		return err
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// waitDrained blocks until every message buffered before Drain was handled.
func waitDrained(sub *nats.Subscription, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for sub.IsValid() {
		if time.Now().After(deadline) {
			return fmt.Errorf("nats drain subscription: timed out after %s", timeout)
		}
		time.Sleep(25 * time.Millisecond)
	}
	return nil
}

// handleMessage indexes one message and answers its reply subject, if any.
// Handlers run detached from ctx cancellation: messages delivered while the
// subscription drains are still indexed.
func (q *Queue) handleMessage(ctx context.Context, msg *nats.Msg, handler ports.ExtractionEventHandler) {
	handlerCtx := context.WithoutCancel(ctx)
	result := dispatch(handlerCtx, msg.Data, handler)
	if msg.Reply == "" {
		return
	}
	if err := q.respond(handlerCtx, msg, result); err != nil {
		slog.Error("nats_reply_failed", "document_id", result.DocumentID, "error", err)
	}
}

// dispatch decodes one message and hands it to the handler. Payloads that do
// not decode never reach the handler.
func dispatch(ctx context.Context, data []byte, handler ports.ExtractionEventHandler) domain.IndexResult {
	var event domain.ExtractionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		cause := domain.WrapError(domain.ErrInvalidInput, "decode extraction event", err)
		slog.Warn("extraction_event_rejected", "error", cause, "payload_bytes", len(data))
		return domain.IndexResult{
			Status:  domain.StatusError,
			Message: cause.Error(),
			Failure: domain.FailureInvalidInput,
			Cause:   cause,
		}
	}
	return handler(ctx, event)
}

func (q *Queue) respond(ctx context.Context, msg *nats.Msg, result domain.IndexResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal index result: %w", err)
	}

	call := func(context.Context) error {
		if err := msg.Respond(payload); err != nil {
			return fmt.Errorf("nats respond: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, resilience.Write("nats_respond"), call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(err)
}
