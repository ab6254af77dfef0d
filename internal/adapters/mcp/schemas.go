package mcpadapter

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func askKnowledgeBaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ask_knowledge_base",
		Description: "Ask a question over the compliance knowledge base and receive an answer with citations",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Question to answer from the ingested documents",
				},
				"category": map[string]interface{}{
					"type":        "string",
					"description": "Restrict retrieval to documents of this category",
				},
			},
			Required: []string{"question"},
		},
	}
}

func searchKnowledgeBaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_knowledge_base",
		Description: "Run hybrid retrieval and return the matching passages without answer synthesis",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of passages to return (1-50)",
					"default":     defaultSearchLimit,
					"minimum":     1,
					"maximum":     maxSearchLimit,
				},
				"category": map[string]interface{}{
					"type":        "string",
					"description": "Restrict retrieval to documents of this category",
				},
			},
			Required: []string{"query"},
		},
	}
}

func cacheStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "cache_stats",
		Description: "Report query cache entries, hits, misses and hit rate",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
