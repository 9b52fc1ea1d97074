package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/readerview/pkg/api"
)

const (
	serverName    = "readerview"
	serverVersion = "0.1.0"

	jobRetention = 30 * time.Minute
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	Reader    api.Reader
	Transport string // "stdio" or "sse"
	Addr      string // Listen address for sse
	Logger    *logrus.Entry
}

// Server exposes the reader pipeline as MCP tools
type Server struct {
	mcpServer  *server.MCPServer
	sse        *server.SSEServer
	cfg        *ServerConfig
	log        *logrus.Entry
	jobManager *JobManager
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.Reader == nil {
		return nil, errors.New("reader is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(logrus.StandardLogger())
	}

	s := &Server{
		mcpServer:  server.NewMCPServer(serverName, serverVersion, server.WithLogging()),
		cfg:        cfg,
		log:        cfg.Logger.WithField("component", "mcp"),
		jobManager: NewJobManager(),
	}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	extractorOpt := mcp.WithString("extractor",
		mcp.Description("Extraction engine: mercury (default) or readability"),
		mcp.Enum("mercury", "readability"),
	)

	s.mcpServer.AddTool(mcp.NewTool("fetch_and_extract",
		mcp.WithDescription("Fetch a URL, extract its main article and return it with page metadata"),
		mcp.WithString("url", mcp.Required(), mcp.Description("The page to read")),
		extractorOpt,
		mcp.WithBoolean("webview", mcp.Description("Render the page in a headless browser before extracting")),
		mcp.WithBoolean("markdown", mcp.Description("Return the article as markdown with an outline and chunks")),
		mcp.WithBoolean("include_html", mcp.Description("Include the styled reader document")),
	), s.handleFetchAndExtract)

	s.mcpServer.AddTool(mcp.NewTool("extract_html",
		mcp.WithDescription("Extract the main article from HTML you already have"),
		mcp.WithString("url", mcp.Required(), mcp.Description("URL the HTML was loaded from")),
		mcp.WithString("html", mcp.Required(), mcp.Description("Raw page HTML")),
		extractorOpt,
	), s.handleExtractHTML)

	s.mcpServer.AddTool(mcp.NewTool("warmup",
		mcp.WithDescription("Start loading an extraction engine so the first request is fast"),
		extractorOpt,
	), s.handleWarmup)

	s.mcpServer.AddTool(mcp.NewTool("start_extract",
		mcp.WithDescription("Start a background fetch and extract. Returns immediately with a job ID."),
		mcp.WithString("url", mcp.Required(), mcp.Description("The page to read")),
		extractorOpt,
		mcp.WithBoolean("webview", mcp.Description("Render the page in a headless browser before extracting")),
	), s.handleStartExtract)

	s.mcpServer.AddTool(mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the status of a background extraction, and its result once completed"),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("The job ID returned by start_extract")),
	), s.handleGetJobStatus)

	s.log.Debug("Registered MCP tools")
}

// Run serves the configured transport until ctx is cancelled or the transport fails
func (s *Server) Run(ctx context.Context) error {
	go s.jobManager.RunCleanup(ctx, time.Minute, jobRetention)

	switch s.cfg.Transport {
	case "", "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.NewStdioServer(s.mcpServer).Listen(ctx, os.Stdin, os.Stdout)
	case "sse":
		addr := s.cfg.Addr
		if addr == "" {
			addr = ":8081"
		}
		s.sse = server.NewSSEServer(s.mcpServer)
		errCh := make(chan error, 1)
		go func() {
			s.log.Infof("Starting MCP server with SSE transport on %s", addr)
			errCh <- s.sse.Start(addr)
		}()
		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return s.Shutdown(shutdownCtx)
		}
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown cancels running jobs and stops the SSE listener if one is running
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()
	if s.sse != nil {
		return s.sse.Shutdown(ctx)
	}
	return nil
}
