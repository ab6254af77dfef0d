package crossencoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avoronov/compliance-kb/internal/infrastructure/resilience"
)

// Client scores query/passage pairs against a text-embeddings-inference
// style rerank endpoint (POST /rerank).
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string) *Client {
	return NewWithOptions(baseURL, model, Options{})
}

type Options struct {
	HTTPTimeout        time.Duration
	ResilienceExecutor *resilience.Executor
}

func NewWithOptions(baseURL, model string, options Options) *Client {
	httpTimeout := options.HTTPTimeout
	if httpTimeout <= 0 {
		httpTimeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: httpTimeout},
		executor:   options.ResilienceExecutor,
	}
}

// Score returns one relevance score per input text, in input order. The
// endpoint replies with (index, score) pairs sorted by relevance, so the
// result is rebuilt positionally.
func (c *Client) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"query": query,
		"texts": texts,
	}
	if c.model != "" {
		request["model"] = c.model
	}

	var ranks []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	}
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/rerank", request, &ranks)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "crossencoder.rerank", call, classifyRerankError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded(err)
	}

	scores := make([]float64, len(texts))
	for _, rank := range ranks {
		if rank.Index < 0 || rank.Index >= len(scores) {
			return nil, fmt.Errorf("rerank index %d out of range for %d texts", rank.Index, len(texts))
		}
		scores[rank.Index] = rank.Score
	}
	return scores, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode rerank response: %w", err)
	}
	return nil
}
