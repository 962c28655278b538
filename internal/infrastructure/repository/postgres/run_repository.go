package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/extraction-indexer/internal/core/domain"
)

const (
	defaultRunListLimit = 50
	maxRunListLimit     = 500
)

// IndexingRunRepository journals indexing outcomes. It never stores record
// content, only what happened to each call.
type IndexingRunRepository struct {
	db *sql.DB
}

func NewIndexingRunRepository(db *sql.DB) *IndexingRunRepository {
	return &IndexingRunRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *IndexingRunRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS indexing_runs (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	failure TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	submitted INTEGER NOT NULL DEFAULT 0,
	failed_items INTEGER NOT NULL DEFAULT 0,
	duration_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_indexing_runs_document ON indexing_runs(document_id, created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *IndexingRunRepository) Record(ctx context.Context, run domain.IndexingRun) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO indexing_runs (
	id, document_id, kind, status, failure, message, submitted, failed_items, duration_ms, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		run.ID, run.DocumentID, string(run.Kind), string(run.Status), string(run.Failure), run.Message,
		run.Submitted, run.FailedItems, run.DurationMS, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert indexing run: %w", err)
	}
	return nil
}

// ListByDocument returns the newest runs first. A non-positive limit means
// the default page size.
func (r *IndexingRunRepository) ListByDocument(ctx context.Context, documentID string, limit int) ([]domain.IndexingRun, error) {
	if limit <= 0 {
		limit = defaultRunListLimit
	}
	limit = min(limit, maxRunListLimit)

	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_id, kind, status, failure, message, submitted, failed_items, duration_ms, created_at
FROM indexing_runs
WHERE document_id = $1
ORDER BY created_at DESC
LIMIT $2
`, documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("query indexing runs: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.IndexingRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan indexing run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate indexing runs: %w", err)
	}
	return runs, nil
}

type runScanner interface {
	Scan(dest ...any) error
}

func scanRun(row runScanner) (domain.IndexingRun, error) {
	var run domain.IndexingRun
	var kind, status, failure string
	err := row.Scan(
		&run.ID,
		&run.DocumentID,
		&kind,
		&status,
		&failure,
		&run.Message,
		&run.Submitted,
		&run.FailedItems,
		&run.DurationMS,
		&run.CreatedAt,
	)
	if err != nil {
		return domain.IndexingRun{}, err
	}
	run.Kind = domain.RunKind(kind)
	run.Status = domain.IndexStatus(status)
	run.Failure = domain.FailureKind(failure)
	return run, nil
}
