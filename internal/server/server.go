// SPDX-License-Identifier: AGPL-3.0-only
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jolks/mcp-openai/internal/completion"
	"github.com/jolks/mcp-openai/internal/config"
	"github.com/jolks/mcp-openai/internal/errors"
	"github.com/jolks/mcp-openai/internal/logging"
	"github.com/jolks/mcp-openai/internal/model"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/cors"
)

// Make os.OpenFile mockable for testing
var osOpenFile = os.OpenFile

// MCPServer exposes the OpenAI tools over MCP
type MCPServer struct {
	provider       completion.ChatProvider
	history        model.HistoryStore
	server         *mcp.Server
	httpServer     *http.Server
	tools          map[string]ToolDefinition
	callMu         sync.Mutex
	cancel         context.CancelFunc
	address        string
	port           int
	stopCh         chan struct{}
	stopOnce       sync.Once
	wg             sync.WaitGroup
	config         *config.Config
	logger         *logging.Logger
	shutdownMutex  sync.Mutex
	isShuttingDown bool
}

// NewMCPServer creates a new MCP server. history may be nil, in which case
// calls are only logged.
func NewMCPServer(cfg *config.Config, provider completion.ChatProvider, history model.HistoryStore) (*MCPServer, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if provider == nil {
		return nil, errors.InvalidInput("a chat provider is required")
	}

	logger, err := newServerLogger(cfg)
	if err != nil {
		return nil, err
	}
	logging.SetDefaultLogger(logger)

	switch cfg.Server.TransportMode {
	case config.TransportStdio:
		logger.Infof("Using stdio transport")
	case config.TransportSSE:
		logger.Infof("Using SSE transport on %s:%d", cfg.Server.Address, cfg.Server.Port)
	case config.TransportHTTP:
		logger.Infof("Using streamable HTTP transport on %s:%d", cfg.Server.Address, cfg.Server.Port)
	default:
		return nil, errors.InvalidInput(fmt.Sprintf("unsupported transport mode: %s", cfg.Server.TransportMode))
	}

	mcpSrv := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Server.Name,
		Version: cfg.Server.Version,
	}, &mcp.ServerOptions{
		Logger: logger.Slog(),
	})

	s := &MCPServer{
		provider: provider,
		history:  history,
		server:   mcpSrv,
		address:  cfg.Server.Address,
		port:     cfg.Server.Port,
		stopCh:   make(chan struct{}),
		config:   cfg,
		logger:   logger,
	}
	s.registerTools()
	mcpSrv.AddReceivingMiddleware(s.dispatchMiddleware)

	return s, nil
}

// newServerLogger builds the process logger. In stdio mode stdout carries the
// JSON-RPC stream, so logs go to a file next to the executable, or stderr.
func newServerLogger(cfg *config.Config) (*logging.Logger, error) {
	level := logging.ParseLevel(cfg.Logging.Level)

	if cfg.Logging.FilePath != "" {
		logger, err := logging.FileLogger(cfg.Logging.FilePath, level)
		if err != nil {
			return nil, fmt.Errorf("failed to create file logger: %w", err)
		}
		return logger, nil
	}

	if cfg.Server.TransportMode != config.TransportStdio {
		return logging.New(logging.Options{Level: level}), nil
	}

	execPath, err := os.Executable()
	if err != nil {
		execPath = cfg.Server.Name
	}
	logPath := filepath.Join(filepath.Dir(execPath), fmt.Sprintf("%s.log", cfg.Server.Name))

	logFile, err := osOpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.SetOutput(os.Stderr)
		return logging.New(logging.Options{Output: os.Stderr, Level: level}), nil
	}
	log.SetOutput(logFile)
	return logging.New(logging.Options{Output: logFile, Level: level}), nil
}

// Start starts serving on the configured transport
func (s *MCPServer) Start(ctx context.Context) error {
	switch s.config.Server.TransportMode {
	case config.TransportStdio:
		runCtx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.server.Run(runCtx, &mcp.StdioTransport{}); err != nil && runCtx.Err() == nil {
				s.logger.Errorf("Error running MCP server: %v", err)
			}
			// The client closed stdin; nothing else will arrive.
			s.closeStopCh()
		}()
	case config.TransportSSE:
		handler := mcp.NewSSEHandler(func(_ *http.Request) *mcp.Server {
			return s.server
		}, nil)
		s.serveHTTP(handler)
	case config.TransportHTTP:
		handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
			return s.server
		}, &mcp.StreamableHTTPOptions{Stateless: true})
		s.serveHTTP(cors.AllowAll().Handler(handler))
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-s.stopCh:
		}
		if err := s.Stop(); err != nil {
			s.logger.Errorf("Error stopping MCP server: %v", err)
		}
	}()

	return nil
}

func (s *MCPServer) serveHTTP(handler http.Handler) {
	addr := fmt.Sprintf("%s:%d", s.address, s.port)
	s.httpServer = &http.Server{Addr: addr, Handler: handler}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("Error running MCP server: %v", err)
		}
	}()
}

// Done is closed once the server has stopped, either through Stop or because
// the stdio client went away.
func (s *MCPServer) Done() <-chan struct{} {
	return s.stopCh
}

func (s *MCPServer) closeStopCh() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Stop stops the MCP server
func (s *MCPServer) Stop() error {
	s.shutdownMutex.Lock()
	defer s.shutdownMutex.Unlock()

	if s.isShuttingDown {
		s.logger.Debugf("Stop called but server is already shutting down, ignoring")
		return nil
	}
	s.isShuttingDown = true

	if s.cancel != nil {
		s.cancel()
	}

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return errors.Internal(fmt.Errorf("error shutting down MCP server: %w", err))
		}
	}

	s.wg.Wait()
	s.closeStopCh()
	return nil
}
