package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/searchapi/internal/core/domain"
)

func resetServerFlags() {
	serverName, serverBackend = "", ""
	serverDisabled = false
	serverOptions = nil
}

func TestServerList(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("server", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "default")
	assert.Contains(t, out, "bleve")
}

func TestServerList_Empty(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.server.servers = nil

	out, err := execute("server", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No servers configured.")
}

func TestServerSave(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	defer resetServerFlags()

	out, err := execute("server", "save", "fast", "--backend", "memory", "--disabled",
		"--option", "features=search_api_data_type_location")
	require.NoError(t, err)
	assert.Contains(t, out, "Server fast saved")

	require.Len(t, ts.server.saved, 1)
	s := ts.server.saved[0]
	assert.Equal(t, "fast", s.ID)
	assert.Equal(t, "fast", s.Name)
	assert.Equal(t, domain.BackendMemory, s.Backend)
	assert.False(t, s.Enabled)
	assert.Equal(t, "search_api_data_type_location", s.Options["features"])
}

func TestServerSave_UsesDefaultBackend(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	defer resetServerFlags()
	ts.settings.settings.DefaultBackend = domain.BackendMemory

	_, err := execute("server", "save", "other", "--name", "Other")
	require.NoError(t, err)
	require.Len(t, ts.server.saved, 1)
	assert.Equal(t, domain.BackendMemory, ts.server.saved[0].Backend)
	assert.Equal(t, "Other", ts.server.saved[0].Name)
	assert.True(t, ts.server.saved[0].Enabled)
}

func TestServerSave_Error(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	defer resetServerFlags()
	ts.server.err = domain.ErrUnknownBackend

	_, err := execute("server", "save", "x", "--backend", "solr")
	assert.ErrorIs(t, err, domain.ErrUnknownBackend)
}

func TestServerTasks(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.server.executed = 3

	out, err := execute("server", "tasks")
	require.NoError(t, err)
	assert.Contains(t, out, "Replayed 3 server tasks.")

	ts.server.err = errBoom
	out, err = execute("server", "tasks")
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, out, "stay queued")
}

func TestDefaultBackend_WithoutSettings(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	settingsService = nil

	assert.Equal(t, domain.BackendBleve, defaultBackend())
}
