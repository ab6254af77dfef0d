package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/avoronov/compliance-kb/internal/core/domain"
)

func newPassageRepoWithMock(t *testing.T) (*PassageRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &PassageRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestReplaceForDocumentDeletesThenInserts(t *testing.T) {
	repo, mock, done := newPassageRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM passages").
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO passages").
		WithArgs("p1", "doc-1", "a.txt", 0, "", "privacy", "first chunk", 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO passages").
		WithArgs("p2", "doc-1", "a.txt", 0, "", "privacy", "second chunk", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	passages := []domain.Passage{
		{ID: "p1", DocumentID: "doc-1", Source: "a.txt", Category: "privacy", Text: "first chunk"},
		{ID: "p2", DocumentID: "doc-1", Source: "a.txt", Category: "privacy", Text: "second chunk"},
	}
	if err := repo.ReplaceForDocument(context.Background(), "doc-1", passages); err != nil {
		t.Fatalf("ReplaceForDocument() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReplaceForDocumentRollsBackOnInsertError(t *testing.T) {
	repo, mock, done := newPassageRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM passages").
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO passages").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	passages := []domain.Passage{{ID: "p1", DocumentID: "doc-1", Source: "a.txt", Text: "chunk"}}
	err := repo.ReplaceForDocument(context.Background(), "doc-1", passages)
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListAllScansPassagesInCorpusOrder(t *testing.T) {
	repo, mock, done := newPassageRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"id", "document_id", "source", "page", "section", "category", "content"}).
		AddRow("p1", "doc-1", "a.pdf", 3, "Retention", "privacy", "first").
		AddRow("p2", "doc-1", "a.pdf", 4, "Retention", "privacy", "second")
	mock.ExpectQuery("SELECT id, document_id, source, page, section, category, content").
		WillReturnRows(rows)

	passages, err := repo.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(passages) != 2 {
		t.Fatalf("expected 2 passages, got %d", len(passages))
	}
	if passages[0].ID != "p1" || passages[0].Page != 3 || passages[0].Text != "first" {
		t.Fatalf("unexpected first passage: %+v", passages[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
