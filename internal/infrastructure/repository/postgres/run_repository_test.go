package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/extraction-indexer/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*IndexingRunRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewIndexingRunRepository(db), mock, func() { _ = db.Close() }
}

var runColumns = []string{
	"id", "document_id", "kind", "status", "failure", "message", "submitted", "failed_items", "duration_ms", "created_at",
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS indexing_runs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestEnsureSchemaRollsBackOnDDLFailure(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS indexing_runs").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	if err := repo.EnsureSchema(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordInsertsRun(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	createdAt := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	run := domain.IndexingRun{
		ID:          "run-1",
		DocumentID:  "doc-1",
		Kind:        domain.RunKindText,
		Status:      domain.StatusPartialSuccess,
		Message:     "1 of 7 records failed to index",
		Submitted:   7,
		FailedItems: 1,
		DurationMS:  12.5,
		CreatedAt:   createdAt,
	}

	mock.ExpectExec("INSERT INTO indexing_runs").
		WithArgs("run-1", "doc-1", "text", "partial_success", "", run.Message, 7, 1, 12.5, createdAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Record(context.Background(), run); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordWrapsDriverError(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	driverErr := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO indexing_runs").WillReturnError(driverErr)

	err := repo.Record(context.Background(), domain.IndexingRun{ID: "run-1"})
	if !errors.Is(err, driverErr) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
}

func TestListByDocumentScansRowsNewestFirst(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	newer := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)
	rows := sqlmock.NewRows(runColumns).
		AddRow("run-2", "doc-1", "image", "error", "connectivity", "cannot connect to search backend", 0, 0, 1.0, newer).
		AddRow("run-1", "doc-1", "text", "success", "", "", 5, 0, 3.5, older)

	mock.ExpectQuery("SELECT id, document_id, kind, status").
		WithArgs("doc-1", defaultRunListLimit).
		WillReturnRows(rows)

	runs, err := repo.ListByDocument(context.Background(), "doc-1", 0)
	if err != nil {
		t.Fatalf("ListByDocument() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-2" || runs[0].Kind != domain.RunKindImage || runs[0].Failure != domain.FailureConnectivity {
		t.Fatalf("unexpected first run: %+v", runs[0])
	}
	if runs[1].Status != domain.StatusSuccess || runs[1].Submitted != 5 || !runs[1].CreatedAt.Equal(older) {
		t.Fatalf("unexpected second run: %+v", runs[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListByDocumentCapsLimit(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, document_id, kind, status").
		WithArgs("doc-1", maxRunListLimit).
		WillReturnRows(sqlmock.NewRows(runColumns))

	runs, err := repo.ListByDocument(context.Background(), "doc-1", 10_000)
	if err != nil {
		t.Fatalf("ListByDocument() error = %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", runs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
