package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/searchapi/internal/adapters/driving/mcp"
)

func TestMCPServe_RequiresSearchService(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	searchService = nil

	_, err := execute("mcp", "serve")
	assert.ErrorIs(t, err, mcp.ErrMissingSearchService)
}

func TestMCPServe_BadHTTPAddress(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	defer func() { mcpHTTPAddr, mcpWatch = "", false }()

	w := &mockWatcher{}
	watcher = w

	_, err := execute("mcp", "serve", "--http", "no-port-here", "--watch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen no-port-here")
	assert.Equal(t, 1, w.watched)
}
