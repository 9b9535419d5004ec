package mcpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/mark3labs/mcp-go/server"
	"github.com/mark3labs/sidekick/internal/importer"
	"github.com/mark3labs/sidekick/internal/logger"
	"github.com/mark3labs/sidekick/internal/session"
	"github.com/mark3labs/sidekick/internal/subagent"
	"github.com/mark3labs/sidekick/internal/webtool"
)

// Server manages an embedded MCP HTTP server that exposes subagent, web,
// and session tools to a host agent over the MCP protocol.
type Server struct {
	store      *session.Store
	sessName   string
	workDir    string
	runner     *subagent.Runner
	search     webtool.SearchProvider
	fetcher    *webtool.Fetcher
	importer   *importer.Importer
	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
	stdServer  *http.Server // Standard HTTP server that uses the listener
	port       int
	mu         sync.Mutex
}

// Config bundles the dependencies a Server exposes as tools.
type Config struct {
	Store    *session.Store
	Session  string
	WorkDir  string
	Runner   *subagent.Runner
	Search   webtool.SearchProvider
	Fetcher  *webtool.Fetcher
	Importer *importer.Importer
}

// New creates a new MCP server instance for the given session.
// The server is not started until Start() is called.
func New(cfg Config) *Server {
	search := cfg.Search
	if search == nil {
		search = webtool.StubSearchProvider{}
	}
	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = &webtool.Fetcher{}
	}
	return &Server{
		store:    cfg.Store,
		sessName: cfg.Session,
		workDir:  cfg.WorkDir,
		runner:   cfg.Runner,
		search:   search,
		fetcher:  fetcher,
		importer: cfg.Importer,
	}
}

// Start starts the MCP HTTP server on a random available port.
// Blocks until the server is ready to accept connections.
// Returns the port number or an error if startup fails.
func (s *Server) Start(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdServer != nil {
		return 0, fmt.Errorf("server already started")
	}

	s.mcpServer = server.NewMCPServer(
		"sidekick-tools",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools()

	// Find a random available port by creating a listener
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to find available port: %w", err)
	}
	s.port = listener.Addr().(*net.TCPAddr).Port

	// Stateless mode; the pre-opened listener avoids a TOCTOU race on the port
	mux := http.NewServeMux()
	mcpHandler := server.NewStreamableHTTPServer(
		s.mcpServer,
		server.WithStateLess(true),
	)
	mux.Handle("/mcp", mcpHandler)

	s.stdServer = &http.Server{Handler: mux}
	s.httpServer = mcpHandler

	logger.Debug("Starting MCP server on port %d", s.port)

	stdServer := s.stdServer
	go func() {
		if err := stdServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("MCP server error: %v", err)
		}
	}()

	logger.Debug("MCP server ready on port %d", s.port)
	return s.port, nil
}

// Stop stops the MCP HTTP server and cleans up resources.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdServer == nil {
		return nil // Already stopped
	}

	logger.Debug("Stopping MCP server")
	if err := s.stdServer.Shutdown(context.Background()); err != nil {
		logger.Warn("Error stopping MCP server: %v", err)
		return fmt.Errorf("failed to stop server: %w", err)
	}

	s.httpServer = nil
	s.stdServer = nil
	s.mcpServer = nil
	logger.Debug("MCP server stopped")
	return nil
}

// URL returns the HTTP URL for the MCP server endpoint.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("http://localhost:%d/mcp", s.port)
}
