package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/avoronov/compliance-kb/internal/core/domain"
)

func passageFixture() []domain.Passage {
	return []domain.Passage{
		{ID: "11111111-1111-1111-1111-111111111111", DocumentID: "doc-1", Source: "a.txt", Text: "alpha"},
		{ID: "22222222-2222-2222-2222-222222222222", DocumentID: "doc-1", Source: "a.txt", Text: "beta"},
	}
}

func TestIndexPassagesEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/docs/points":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}

	if err := client.IndexPassages(context.Background(), passageFixture(), vectors); err != nil {
		t.Fatalf("first IndexPassages() error = %v", err)
	}
	if err := client.IndexPassages(context.Background(), passageFixture(), vectors); err != nil {
		t.Fatalf("second IndexPassages() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/docs" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	err := client.IndexPassages(context.Background(), passageFixture()[:1], [][]float32{{0.1, 0.2}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); got == "" || !strings.Contains(got, "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}

func TestSearchMapsHitsAndFilter(t *testing.T) {
	var capturedBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/docs/points/search" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&capturedBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"result":[{"id":"p1","score":0.92},{"id":"p2","score":0.41}]}`))
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	hits, err := client.Search(context.Background(), []float32{0.1, 0.2}, 5, domain.SearchFilter{"category": "privacy"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(hits) != 2 || hits[0].PassageID != "p1" || hits[0].Score != 0.92 {
		t.Fatalf("unexpected hits: %v", hits)
	}

	filter, ok := capturedBody["filter"].(map[string]any)
	if !ok {
		t.Fatalf("expected filter in request, got %v", capturedBody)
	}
	must, ok := filter["must"].([]any)
	if !ok || len(must) != 1 {
		t.Fatalf("expected a single must clause, got %v", filter)
	}
	clause := must[0].(map[string]any)
	if clause["key"] != "category" {
		t.Fatalf("unexpected filter clause: %v", clause)
	}
}

func TestSearchOmitsFilterWhenEmpty(t *testing.T) {
	var capturedBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&capturedBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"result":[]}`))
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	if _, err := client.Search(context.Background(), []float32{0.1}, 5, nil); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if _, present := capturedBody["filter"]; present {
		t.Fatalf("expected no filter key in request, got %v", capturedBody)
	}
}

func TestDeleteByDocumentTreatsMissingCollectionAsNoop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	if err := client.DeleteByDocument(context.Background(), "doc-1"); err != nil {
		t.Fatalf("DeleteByDocument() error = %v", err)
	}
}

func TestDeleteByDocumentSendsDocumentFilter(t *testing.T) {
	var capturedBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/docs/points/delete" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&capturedBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := New(server.URL, "docs")
	if err := client.DeleteByDocument(context.Background(), "doc-42"); err != nil {
		t.Fatalf("DeleteByDocument() error = %v", err)
	}

	filter := capturedBody["filter"].(map[string]any)
	must := filter["must"].([]any)
	clause := must[0].(map[string]any)
	match := clause["match"].(map[string]any)
	if clause["key"] != "document_id" || match["value"] != "doc-42" {
		t.Fatalf("unexpected delete filter: %v", capturedBody)
	}
}
