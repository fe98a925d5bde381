// Package mcp implements the Model Context Protocol (MCP) server for cppcontext.
//
// The server exposes four tools to AI coding assistants:
//   - index_codebase: Build or refresh the index over the configured roots
//   - query_code: Answer a question with entity definitions and ranked chunks
//   - describe_entity: Show one entity's inheritance, members and includes
//   - get_status: Report whether the index is ready, missing or invalid
//
// The server speaks JSON-RPC 2.0 over stdio. Stdout carries protocol
// messages only; logs go to stderr.
//
// # Tool: query_code
//
//	Request:
//	{
//	  "name": "query_code",
//	  "arguments": {
//	    "question": "FHitResult members",
//	    "top_k": 5,
//	    "filter": "origin:engine AND file:header"
//	  }
//	}
//
// The response carries the classified intent, definition_results from the
// structural path and semantic_results from the vector path, plus timings.
//
// # Tool: describe_entity
//
//	Request:
//	{
//	  "name": "describe_entity",
//	  "arguments": {"name": "AActor", "format": "tree"}
//	}
//
// Names are matched exactly, then case-insensitively, then fuzzily.
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "cppcontext": {
//	      "command": "/usr/local/bin/cppcontext",
//	      "args": ["serve", "--config", "/path/to/cppcontext.yaml"]
//	    }
//	  }
//	}
//
// # Error Handling
//
// Failures are returned as JSON-RPC errors with a data object naming the
// offending parameter or a remediation:
//   - -32602: Invalid params
//   - -32603: Internal error
//   - -32001: No source files under the roots
//   - -32002: Indexing in progress
//   - -32003: Index not built
//   - -32004: Empty question
//   - -32005: Index failed validation
//   - -32006: Filters excluded every chunk
package mcp
