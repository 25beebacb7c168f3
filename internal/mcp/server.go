package mcp

import (
	"context"
	"errors"
	"io"
	stdlog "log"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/vcpkg-mcp/internal/cache"
	"github.com/dshills/vcpkg-mcp/internal/packages"
	"github.com/dshills/vcpkg-mcp/internal/searcher"
)

const (
	// ServerName is the MCP server name
	ServerName = "vcpkg-mcp"
	// ServerVersion is the default server version
	ServerVersion = "1.0.0"
)

// PackageService answers single-package requests
type PackageService interface {
	GetInfo(ctx context.Context, req packages.InfoRequest) (*packages.Info, error)
	GetReadme(ctx context.Context, req packages.ReadmeRequest) (*packages.Readme, error)
}

// SearchService ranks packages for a query
type SearchService interface {
	Search(ctx context.Context, req searcher.SearchRequest) (*searcher.SearchResponse, error)
}

// CacheStats reports response cache statistics
type CacheStats interface {
	Stats() cache.Stats
}

// ToolObserver is notified after every tool call
type ToolObserver interface {
	ObserveTool(tool string, err error, d time.Duration)
}

// Config holds server dependencies
type Config struct {
	Packages PackageService
	Searcher SearchService
	Cache    CacheStats
	Observer ToolObserver // Optional
	Logger   log.Logger
	Version  string // Defaults to ServerVersion
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	packages PackageService
	searcher SearchService
	cache    CacheStats
	observer ToolObserver
	logger   log.Logger
}

// toolHandler is a tool handler that receives a request scoped logger
type toolHandler func(ctx context.Context, logger log.Logger, args map[string]interface{}) (map[string]interface{}, error)

// NewServer creates a new MCP server instance
func NewServer(cfg Config) (*Server, error) {
	if cfg.Packages == nil || cfg.Searcher == nil || cfg.Cache == nil {
		return nil, errors.New("packages, searcher and cache are required")
	}

	version := cfg.Version
	if version == "" {
		version = ServerVersion
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, version, server.WithRecovery()),
		packages: cfg.Packages,
		searcher: cfg.Searcher,
		cache:    cfg.Cache,
		observer: cfg.Observer,
		logger:   cfg.Logger,
	}
	if s.logger == nil {
		s.logger = log.NewNopLogger()
	}

	s.registerTools()
	return s, nil
}

// Serve runs the MCP protocol over stdin and stdout until ctx is cancelled
// or the input is closed
func (s *Server) Serve(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(stdlog.New(log.NewStdlibAdapter(level.Error(s.logger)), "", 0))

	level.Info(s.logger).Log("msg", "serving MCP over stdio", "server", ServerName)
	err := stdio.Listen(ctx, stdin, stdout)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, io.EOF)) {
		return nil
	}
	return err
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(getPackageInfoTool(), s.wrap(ToolGetPackageInfo, s.handleGetPackageInfo))
	s.mcp.AddTool(getPackageReadmeTool(), s.wrap(ToolGetPackageReadme, s.handleGetPackageReadme))
	s.mcp.AddTool(searchPackagesTool(), s.wrap(ToolSearchPackages, s.handleSearchPackages))
	s.mcp.AddTool(getCacheStatsTool(), s.wrap(ToolGetCacheStats, s.handleGetCacheStats))
}

// wrap adapts a toolHandler to mcp-go. Each call gets a request id in its
// logger, its error mapped to an MCPError and is reported to the observer.
func (s *Server) wrap(tool string, h toolHandler) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		logger := log.With(s.logger, "request_id", uuid.NewString(), "tool", tool)

		response, err := s.invoke(ctx, logger, request, h)
		elapsed := time.Since(start)

		if s.observer != nil {
			s.observer.ObserveTool(tool, err, elapsed)
		}

		if err != nil {
			mcpErr := toMCPError(err)
			if mcpErr.Code == ErrorCodeInternalError {
				level.Error(logger).Log("msg", "tool call failed", "duration", elapsed, "err", err)
			} else {
				level.Info(logger).Log("msg", "tool call rejected", "code", mcpErr.Code, "duration", elapsed, "err", err)
			}
			return nil, mcpErr
		}

		level.Debug(logger).Log("msg", "tool call complete", "duration", elapsed)
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
}

func (s *Server) invoke(ctx context.Context, logger log.Logger, request mcp.CallToolRequest, h toolHandler) (response map[string]interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			level.Error(logger).Log("msg", "tool handler panic", "panic", r)
			response, err = nil, newMCPError(ErrorCodeInternalError, "internal error", nil)
		}
	}()

	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	return h(ctx, logger, args)
}
