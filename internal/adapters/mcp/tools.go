package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/avoronov/compliance-kb/internal/core/domain"
)

// JSON-RPC error codes reported to MCP clients.
const (
	errorCodeInvalidParams = -32602
	errorCodeInternalError = -32603
)

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newToolError(errorCodeInvalidParams, "invalid arguments", nil)
	}

	question, ok := args["question"].(string)
	if !ok || strings.TrimSpace(question) == "" {
		return nil, newToolError(errorCodeInvalidParams, "question parameter is required", map[string]interface{}{
			"param":  "question",
			"reason": "missing or empty",
		})
	}

	answer, err := s.questions.Ask(ctx, question, filterFromArgs(args))
	if err != nil {
		return nil, newToolError(errorCodeInternalError, "ask failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	sources := make([]map[string]interface{}, 0, len(answer.Sources))
	for _, src := range answer.Sources {
		sources = append(sources, map[string]interface{}{
			"source":  src.Source,
			"page":    src.Page,
			"section": src.Section,
			"snippet": src.Snippet,
		})
	}

	response := map[string]interface{}{
		"answer":    answer.Text,
		"mode":      string(answer.Mode),
		"cache_hit": answer.CacheHit,
		"sources":   sources,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newToolError(errorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, newToolError(errorCodeInvalidParams, "query parameter is required", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", defaultSearchLimit)
	if limit < 1 || limit > maxSearchLimit {
		return nil, newToolError(errorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", maxSearchLimit), map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	res := s.retriever.Retrieve(ctx, query, limit, filterFromArgs(args))

	passages := make([]map[string]interface{}, 0, len(res.Passages))
	for _, p := range res.Passages {
		passages = append(passages, map[string]interface{}{
			"document_id": p.DocumentID,
			"source":      p.Source,
			"page":        p.Page,
			"section":     p.Section,
			"text":        p.Text,
		})
	}

	response := map[string]interface{}{
		"mode":     string(res.Mode),
		"passages": passages,
	}
	if res.Err != nil {
		response["error"] = res.Err.Error()
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

func (s *Server) handleCacheStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats := s.questions.CacheStats()
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"entries":  stats.Entries,
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"hit_rate": stats.HitRate,
	})), nil
}

func filterFromArgs(args map[string]interface{}) domain.SearchFilter {
	category := getStringDefault(args, "category", "")
	if category == "" {
		return nil
	}
	return domain.SearchFilter{"category": category}
}

func newToolError(code int, message string, data interface{}) error {
	return &toolError{Code: code, Message: message, Data: data}
}

type toolError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *toolError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func formatJSON(data map[string]interface{}) string {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(raw)
}

// getIntDefault reads an integer argument; JSON numbers decode as float64.
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
