package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/tankfinder/internal/logger"
)

// Version is reported to assistants during initialisation.
const Version = "0.1.0"

const instructions = `TankFinder indexes engineering job folders (one folder per job, named like
"101-23 Smith Tank Farm"). Use search_jobs to find jobs by terms that must
all match a filename or extracted document text, optionally narrowed by
years, flags (pdf, cad, compress, ame, photos, legacy) or a job. Leave the
query empty to browse by filters alone. Use get_job to list one job's files.`

const shutdownTimeout = 5 * time.Second

// Server answers job-catalog questions from assistants: the search_jobs
// and get_job tools plus the status and job resources.
type Server struct {
	ports  *Ports
	server *mcp.Server
}

// NewServer registers the job-search tools and catalog resources.
// A nil Search port is rejected; Catalog is optional.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{
		ports: ports,
		server: mcp.NewServer(
			&mcp.Implementation{Name: "tankfinder", Title: "TankFinder job search", Version: Version},
			&mcp.ServerOptions{Instructions: instructions},
		),
	}
	s.registerTools()
	s.registerResources()
	return s, nil
}

// ServeStdio answers one assistant over stdin/stdout until ctx ends.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler serves the job-search tools over streamable HTTP.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// ListenAndServe serves Handler on addr until ctx ends, then drains
// open requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("MCP server shutdown: %v", err)
		}
	}()

	logger.Info("MCP job search listening on %s", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
