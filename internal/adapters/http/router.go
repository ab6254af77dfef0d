package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/avoronov/compliance-kb/internal/config"
	"github.com/avoronov/compliance-kb/internal/core/domain"
	"github.com/avoronov/compliance-kb/internal/core/ports"
	"github.com/avoronov/compliance-kb/internal/observability/metrics"
)

const apiServiceName = "api"

// Router exposes the knowledge base over HTTP: question answering,
// document ingestion and the operator cache controls.
type Router struct {
	cfg       config.Config
	ingest    ports.DocumentIngestor
	questions ports.QuestionService
	documents ports.DocumentReader
	metrics   *metrics.HTTPServerMetrics
}

type RouterOptions struct {
	// Metrics enables the /metrics endpoint and per-request
	// instrumentation when set.
	Metrics *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	ingest ports.DocumentIngestor,
	questions ports.QuestionService,
	documents ports.DocumentReader,
) *Router {
	return NewRouterWithOptions(cfg, ingest, questions, documents, RouterOptions{})
}

func NewRouterWithOptions(
	cfg config.Config,
	ingest ports.DocumentIngestor,
	questions ports.QuestionService,
	documents ports.DocumentReader,
	opts RouterOptions,
) *Router {
	return &Router{
		cfg:       cfg,
		ingest:    ingest,
		questions: questions,
		documents: documents,
		metrics:   opts.Metrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/ask", rt.askQuestion)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/cache/stats", rt.cacheStats)
	mux.HandleFunc("/v1/cache", rt.clearCache)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(apiServiceName, handler)
	}
	handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, backpressureAcquireTimeout)
	handler = rateLimitMiddleware(handler, rt.cfg.RequestsPerSecond, rt.cfg.RequestBurst)
	handler = recoverMiddleware(handler)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) askQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Question string            `json:"question"`
		Category string            `json:"category"`
		Filter   map[string]string `json:"filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	filter := domain.SearchFilter{}
	for key, value := range req.Filter {
		filter[key] = value
	}
	if req.Category != "" {
		filter["category"] = req.Category
	}
	if len(filter) == 0 {
		filter = nil
	}

	start := time.Now()
	answer, err := rt.questions.Ask(r.Context(), req.Question, filter)
	if err != nil {
		rt.recordAsk(string(domain.ModeError), 0, time.Since(start))
		writeError(w, err)
		return
	}

	// Degraded answers carry ModeError with an explanation in Text and
	// are still 200: the pipeline answered, the backends did not.
	rt.recordAsk(string(answer.Mode), len(answer.Sources), time.Since(start))
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		r.FormValue("category"),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.documents.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) cacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, rt.questions.CacheStats())
}

func (rt *Router) clearCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	rt.questions.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) recordAsk(mode string, passageCount int, duration time.Duration) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordAskObservation(apiServiceName, mode, passageCount, duration)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
