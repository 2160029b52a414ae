package mcp

import (
	"context"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Run("missing search service", func(t *testing.T) {
		for _, ports := range []*Ports{nil, {}} {
			server, err := NewServer(ports, "test")
			require.Error(t, err)
			assert.Nil(t, server)
			assert.ErrorIs(t, err, ErrMissingSearchService)
		}
	})

	t.Run("reports name and version", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}}, "1.2.3")
		require.NoError(t, err)
		name, version := server.Info()
		assert.Equal(t, "searchapi", name)
		assert.Equal(t, "1.2.3", version)
	})

	t.Run("empty version", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}}, "")
		require.NoError(t, err)
		_, version := server.Info()
		assert.Equal(t, "dev", version)
	})
}

func TestPorts_Validate(t *testing.T) {
	assert.ErrorIs(t, (&Ports{}).Validate(), ErrMissingSearchService)
	assert.NoError(t, (&Ports{Search: &mockSearchService{}}).Validate())
	assert.NoError(t, (&Ports{Search: &mockSearchService{}, Index: &mockIndexService{}}).Validate())
}

func TestServer_ServeHTTPStopsOnCancel(t *testing.T) {
	server, err := NewServer(&Ports{Search: &mockSearchService{}}, "test")
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.serveHTTP(ctx, ln) }()

	// A GET without a session is rejected, but proves the handler is mounted.
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode != http.StatusNotFound
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * shutdownGrace):
		t.Fatal("server did not stop")
	}
}

func TestServer_RunHTTPBadAddress(t *testing.T) {
	server, err := NewServer(&Ports{Search: &mockSearchService{}}, "test")
	require.NoError(t, err)

	err = server.RunHTTP(context.Background(), "not-an-address")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "listen not-an-address"))
}
