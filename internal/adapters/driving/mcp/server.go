package mcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/searchapi/internal/logger"
)

const serverName = "searchapi"

// shutdownGrace bounds how long open HTTP sessions get after cancellation.
const shutdownGrace = 5 * time.Second

// Server publishes the search and index services as MCP tools and
// resources.
type Server struct {
	ports   *Ports
	version string
	mcp     *mcp.Server
	log     *logger.Logger
}

// NewServer registers the tools and resources ports can back. version is
// reported to clients during initialization.
func NewServer(ports *Ports, version string) (*Server, error) {
	if ports == nil {
		return nil, ErrMissingSearchService
	}
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}
	if version == "" {
		version = "dev"
	}

	s := &Server{
		ports:   ports,
		version: version,
		log:     logger.With("mcp"),
	}
	// Capabilities follow from what gets registered.
	s.mcp = mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil)
	s.registerTools()
	s.registerResources()
	return s, nil
}

// Info returns the name and version announced to clients.
func (s *Server) Info() (name, version string) {
	return serverName, s.version
}

// Run serves one client over stdin and stdout until ctx ends or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.log.Debug("serving on stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the streamable HTTP transport on addr. Cancelling ctx
// shuts the listener down and returns nil.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.serveHTTP(ctx, ln)
}

func (s *Server) serveHTTP(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler: mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
			return s.mcp
		}, nil),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("listening on %s", ln.Addr())
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
