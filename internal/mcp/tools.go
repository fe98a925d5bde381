package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/cppcontext-mcp/internal/embedder"
	"github.com/dshills/cppcontext-mcp/internal/indexer"
	"github.com/dshills/cppcontext-mcp/internal/parser"
	"github.com/dshills/cppcontext-mcp/internal/searcher"
	"github.com/dshills/cppcontext-mcp/internal/storage"
	"github.com/dshills/cppcontext-mcp/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeNoSourceFiles      = -32001 // Roots contain no indexable files
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // No build has been published
	ErrorCodeEmptyQuery         = -32004 // Question parameter is empty
	ErrorCodeIndexInvalid       = -32005 // Build exists but failed validation
	ErrorCodeNoCandidates       = -32006 // Filters excluded every chunk
)

// maxReportedErrors caps per-file errors echoed back by index_codebase
const maxReportedErrors = 5

// handleIndexCodebase handles the index_codebase tool invocation
func (s *Server) handleIndexCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	cfg := s.cfg.IndexerConfig(getBoolDefault(args, "incremental", true), getBoolDefault(args, "force", false))
	if raw, ok := args["roots"]; ok {
		roots, err := parseRoots(raw)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid roots", map[string]interface{}{
				"param":  "roots",
				"reason": err.Error(),
			})
		}
		cfg.Roots = roots
	}

	stats, err := s.indexer.Build(ctx, cfg)
	switch {
	case errors.Is(err, indexer.ErrIndexingInProgress):
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", nil)
	case errors.Is(err, indexer.ErrNoFiles):
		return nil, newMCPError(ErrorCodeNoSourceFiles, "no source files found under the roots", map[string]interface{}{
			"roots": cfg.Roots,
		})
	case err != nil:
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":          true,
		"build_id":         stats.BuildID,
		"files_discovered": stats.FilesDiscovered,
		"files_indexed":    stats.FilesIndexed,
		"files_reused":     stats.FilesReused,
		"files_empty":      stats.FilesEmpty,
		"files_failed":     stats.FilesFailed,
		"chunks_total":     stats.ChunksTotal,
		"chunks_created":   stats.ChunksCreated,
		"chunks_reused":    stats.ChunksReused,
		"declarations":     stats.Declarations,
		"embedding": map[string]interface{}{
			"batches":        stats.Embedding.Batches,
			"batch_failures": stats.Embedding.BatchFailures,
			"item_retries":   stats.Embedding.ItemRetries,
			"zero_vectors":   stats.Embedding.ZeroVectors,
		},
		"duration_ms": stats.Duration.Milliseconds(),
	}

	if n := len(stats.ErrorMessages); n > 0 {
		if n > maxReportedErrors {
			response["errors"] = stats.ErrorMessages[:maxReportedErrors]
			response["error_count"] = n
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleQueryCode handles the query_code tool invocation
func (s *Server) handleQueryCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	question := strings.TrimSpace(getStringDefault(args, "question", ""))
	if question == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "question parameter is required and cannot be empty", map[string]interface{}{
			"param":  "question",
			"reason": "missing or empty",
		})
	}

	topK := getIntDefault(args, "top_k", s.cfg.Search.TopK)
	if topK < 1 || topK > searcher.MaxTopK {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("top_k must be between 1 and %d", searcher.MaxTopK), map[string]interface{}{
			"param": "top_k",
			"value": topK,
		})
	}

	filters, err := searcher.ParseFilter(getStringDefault(args, "filter", ""))
	if err != nil {
		data := map[string]interface{}{"param": "filter", "syntax": searcher.FilterSyntax}
		var fe *searcher.FilterError
		if errors.As(err, &fe) {
			data["clause"] = fe.Clause
			data["reason"] = fe.Reason
		}
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid filter", data)
	}

	extensions, err := getStringSlice(args, "extensions")
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid extensions", map[string]interface{}{
			"param":  "extensions",
			"reason": err.Error(),
		})
	}

	resp, err := s.searcher.Query(ctx, searcher.QueryRequest{
		Question: question,
		TopK:     topK,
		Scope: searcher.Scope{
			PathContains: getStringDefault(args, "path_contains", ""),
			Extensions:   extensions,
		},
		Filters: filters,
		NoCache: getBoolDefault(args, "no_cache", false),
	})
	if err != nil {
		return nil, searchError(err)
	}

	return mcp.NewToolResultText(formatJSON(resp)), nil
}

// handleDescribeEntity handles the describe_entity tool invocation
func (s *Server) handleDescribeEntity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(getStringDefault(args, "name", ""))
	if name == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "name parameter is required", map[string]interface{}{
			"param":  "name",
			"reason": "missing or empty",
		})
	}
	format := getStringDefault(args, "format", "json")
	if format != "json" && format != "tree" {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid format", map[string]interface{}{
			"param":   "format",
			"value":   format,
			"allowed": []string{"json", "tree"},
		})
	}

	defs, err := s.searcher.Describe(ctx, name)
	if err != nil {
		return nil, searchError(err)
	}

	if format == "tree" {
		if len(defs) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("No entity matches %q.", name)), nil
		}
		return mcp.NewToolResultText(renderTrees(defs)), nil
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"query":   name,
		"found":   len(defs) > 0,
		"results": defs,
	})), nil
}

// renderTrees formats each match as a header line and its entity tree
func renderTrees(defs []types.DefinitionResult) string {
	var b strings.Builder
	for i, d := range defs {
		if i > 0 {
			b.WriteString("\n")
		}
		match := "exact"
		if !d.Exact {
			match = fmt.Sprintf("score %.2f", d.Score)
		}
		fmt.Fprintf(&b, "%s (%s) %s:%d\n", d.MatchedName, match, d.Entity.Path, d.Line)
		b.WriteString(parser.RenderTree(d.Entity))
	}
	return b.String()
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report := s.store.Status(s.handle.Dimension())

	response := map[string]interface{}{
		"indexed":  report.State == storage.StateReady,
		"indexing": s.indexer.Busy(),
		"store":    report,
		"embedder": map[string]interface{}{
			"provider":  s.handle.Provider(),
			"model":     s.handle.Model(),
			"dimension": s.handle.Dimension(),
		},
	}

	if report.State == storage.StateReady {
		stats, err := s.searcher.Stats(ctx)
		if err != nil {
			response["catalog_error"] = err.Error()
		} else {
			response["catalog"] = map[string]interface{}{
				"files":    stats.Files,
				"entities": stats.Entities,
				"by_kind":  stats.ByKind,
				"size_mb":  fmt.Sprintf("%.2f", stats.SizeMB),
			}
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// searchError maps searcher and store failures to MCP errors
func searchError(err error) error {
	switch {
	case errors.Is(err, storage.ErrMissing):
		return newMCPError(ErrorCodeNotIndexed, "index not built", storeErrorData(err))
	case errors.Is(err, storage.ErrInvalid):
		return newMCPError(ErrorCodeIndexInvalid, "index failed validation", storeErrorData(err))
	case errors.Is(err, embedder.ErrDimensionMismatch):
		return newMCPError(ErrorCodeIndexInvalid, "index dimension does not match the embedder", map[string]interface{}{
			"remediation": "rebuild the index with force after changing the embedding provider",
		})
	case errors.Is(err, searcher.ErrNoCandidates):
		return newMCPError(ErrorCodeNoCandidates, "no chunks match the filters", map[string]interface{}{
			"remediation": "relax the filter, path_contains or extensions parameters",
		})
	case errors.Is(err, searcher.ErrEmptyQuestion):
		return newMCPError(ErrorCodeEmptyQuery, err.Error(), nil)
	default:
		return newMCPError(ErrorCodeInternalError, "query failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func storeErrorData(err error) map[string]interface{} {
	data := map[string]interface{}{"reason": err.Error()}
	var ve *storage.ValidationError
	if errors.As(err, &ve) {
		data["reason"] = ve.Reason
		data["remediation"] = ve.Remediation()
	}
	return data
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// arguments returns the call's argument map. Calls without arguments get an
// empty map.
func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

// parseRoots decodes the roots parameter
func parseRoots(raw interface{}) ([]indexer.Root, error) {
	list, ok := raw.([]interface{})
	if !ok || len(list) == 0 {
		return nil, errors.New("roots must be a non-empty array")
	}
	roots := make([]indexer.Root, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("roots[%d] must be an object", i)
		}
		root := indexer.Root{
			Path:   getStringDefault(obj, "path", ""),
			Origin: types.Origin(getStringDefault(obj, "origin", string(types.OriginProject))),
		}
		if root.Origin != types.OriginEngine && root.Origin != types.OriginProject {
			return nil, fmt.Errorf("roots[%d]: origin must be engine or project", i)
		}
		if err := validatePath(root.Path); err != nil {
			return nil, fmt.Errorf("roots[%d]: %w", i, err)
		}
		roots = append(roots, root)
	}
	return roots, nil
}

// validatePath checks if a path exists and is a readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	// Check if path is absolute
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	// Check if path exists
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	// Check if it's a directory
	if !info.IsDir() {
		return ErrNotDirectory
	}

	// Check if directory is readable
	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts an optional array of strings
func getStringSlice(args map[string]interface{}, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string", key, i)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s must be an array of strings", key)
	}
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
