// Package mcp provides an MCP (Model Context Protocol) server adapter.
// It lets AI assistants run queries against configured search indexes.
package mcp

import "errors"

var (
	// ErrMissingSearchService is returned when the search service is not provided.
	ErrMissingSearchService = errors.New("mcp: search service is required")

	// ErrMissingIndexService is returned by index tools when no index service is set.
	ErrMissingIndexService = errors.New("mcp: index service is not configured")
)
