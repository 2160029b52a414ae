package mcp

import (
	"github.com/custodia-labs/searchapi/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
type Ports struct {
	// Search runs queries.
	Search driving.SearchService

	// Index exposes index configurations and tracking state.
	// Optional: without it only the search tool is useful.
	Index driving.IndexService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
