package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/cppcontext-mcp/internal/searcher"
)

// indexCodebaseTool returns the tool definition for index_codebase
func indexCodebaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_codebase",
		Description: "Build or refresh the C++ index used by query_code and describe_entity",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"roots": map[string]interface{}{
					"type":        "array",
					"description": "Directories to index. Defaults to the configured roots.",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"path": map[string]interface{}{
								"type":        "string",
								"description": "Absolute directory path",
							},
							"origin": map[string]interface{}{
								"type":    "string",
								"enum":    []string{"engine", "project"},
								"default": "project",
							},
						},
						"required": []string{"path"},
					},
				},
				"incremental": map[string]interface{}{
					"type":        "boolean",
					"description": "Reuse vectors of files whose content and chunk count are unchanged",
					"default":     true,
				},
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "Re-embed every file even when incremental is set",
					"default":     false,
				},
			},
		},
	}
}

// queryCodeTool returns the tool definition for query_code
func queryCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "query_code",
		Description: "Answer a question about the indexed C++ code. Definition questions (\"struct FHitResult\") return entity graphs; conceptual questions return ranked source chunks.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Natural-language question or entity name",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of chunks to return",
					"default":     searcher.DefaultTopK,
					"minimum":     1,
					"maximum":     searcher.MaxTopK,
				},
				"filter": map[string]interface{}{
					"type":        "string",
					"description": "Filter expression, e.g. \"type:struct AND macro:UPROPERTY AND origin:engine\"",
				},
				"path_contains": map[string]interface{}{
					"type":        "string",
					"description": "Only consider chunks whose path contains this substring",
				},
				"extensions": map[string]interface{}{
					"type":        "array",
					"description": "Only consider chunks from files with these extensions",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"no_cache": map[string]interface{}{
					"type":        "boolean",
					"description": "Bypass the result cache",
					"default":     false,
				},
			},
			Required: []string{"question"},
		},
	}
}

// describeEntityTool returns the tool definition for describe_entity
func describeEntityTool() mcp.Tool {
	return mcp.Tool{
		Name:        "describe_entity",
		Description: "Show the inheritance, members and includes of a struct, class, enum or function by name. Tolerates typos.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Entity name, e.g. AActor",
				},
				"format": map[string]interface{}{
					"type":    "string",
					"enum":    []string{"json", "tree"},
					"default": "json",
				},
			},
			Required: []string{"name"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report whether the index is ready, missing or invalid, with statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
