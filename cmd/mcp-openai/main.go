// SPDX-License-Identifier: AGPL-3.0-only
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jolks/mcp-openai/internal/completion"
	"github.com/jolks/mcp-openai/internal/config"
	"github.com/jolks/mcp-openai/internal/logging"
	"github.com/jolks/mcp-openai/internal/model"
	"github.com/jolks/mcp-openai/internal/server"
	"github.com/jolks/mcp-openai/internal/singleton"
	"github.com/jolks/mcp-openai/internal/store"
)

var (
	address       = flag.String("address", "", "The address to bind the server to")
	port          = flag.Int("port", 0, "The port to bind the server to")
	transport     = flag.String("transport", "", "Transport mode: stdio, sse or http")
	logLevel      = flag.String("log-level", "", "Logging level: debug, info, warn, error, fatal")
	logFile       = flag.String("log-file", "", "Log file path (default: next to the executable in stdio mode, stderr otherwise)")
	version       = flag.Bool("version", false, "Show version information and exit")
	openAIBaseURL = flag.String("openai-base-url", "", "Custom base URL for OpenAI-compatible endpoints")
	envFile       = flag.String("env-file", "", "Load environment variables (e.g. "+config.APIKeyEnv+") from a dotenv file")
	historyDB     = flag.String("history-db", "", "Path to a SQLite database recording completed tool calls (default: disabled)")
)

func main() {
	flag.Parse()

	cfg := loadConfig()

	if *version {
		log.Printf("%s version %s", cfg.Server.Name, cfg.Server.Version)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := createApp(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	if err := app.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	// Wait for termination signal or server exit (e.g. stdin closed in stdio mode)
	waitForShutdown(cancel, app)
}

// loadConfig loads configuration from an optional env file, the environment
// and command line flags
func loadConfig() *config.Config {
	cfg := config.DefaultConfig()

	if *envFile != "" {
		if err := config.LoadEnvFile(*envFile); err != nil {
			log.Fatalf("Invalid configuration: %v", err)
		}
	}

	config.FromEnv(cfg)
	applyCommandLineFlagsToConfig(cfg)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	return cfg
}

// applyCommandLineFlagsToConfig applies command line flags to the configuration
func applyCommandLineFlagsToConfig(cfg *config.Config) {
	if *address != "" {
		cfg.Server.Address = *address
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *transport != "" {
		cfg.Server.TransportMode = *transport
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFile != "" {
		cfg.Logging.FilePath = *logFile
	}
	if *openAIBaseURL != "" {
		cfg.OpenAI.BaseURL = *openAIBaseURL
	}
	if *historyDB != "" {
		cfg.History.DBPath = *historyDB
	}
}

// Application represents the running application
type Application struct {
	history model.HistoryStore
	lock    *singleton.Lock
	server  *server.MCPServer
	logger  *logging.Logger
}

// createApp creates a new application instance
func createApp(cfg *config.Config) (*Application, error) {
	history, lock, err := openHistory(cfg.History.DBPath)
	if err != nil {
		return nil, err
	}

	provider := completion.NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)

	mcpServer, err := server.NewMCPServer(cfg, provider, history)
	if err != nil {
		closeHistory(history, lock)
		return nil, err
	}

	// Get the default logger that was configured by the server
	logger := logging.GetDefaultLogger()
	if history != nil {
		logger.Infof("Recording call history in %s", cfg.History.DBPath)
	}

	return &Application{
		history: history,
		lock:    lock,
		server:  mcpServer,
		logger:  logger,
	}, nil
}

// openHistory opens the call history database when a path is configured. If
// another server process already owns the database, history is disabled for
// this process rather than failing startup.
func openHistory(dbPath string) (model.HistoryStore, *singleton.Lock, error) {
	if dbPath == "" {
		return nil, nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create history directory: %w", err)
	}

	lock, acquired, err := singleton.TryAcquire(dbPath)
	if err != nil {
		return nil, nil, err
	}
	if !acquired {
		logging.GetDefaultLogger().Warnf("History database %s is in use by another process; call history disabled", dbPath)
		return nil, nil, nil
	}

	history, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		_ = lock.Release()
		return nil, nil, fmt.Errorf("create history store: %w", err)
	}
	return history, lock, nil
}

func closeHistory(history model.HistoryStore, lock *singleton.Lock) error {
	var err error
	if history != nil {
		err = history.Close()
	}
	if lock != nil {
		if lerr := lock.Release(); lerr != nil && err == nil {
			err = lerr
		}
	}
	return err
}

// Start starts the application
func (a *Application) Start(ctx context.Context) error {
	if err := a.server.Start(ctx); err != nil {
		return err
	}
	a.logger.Infof("MCP server started")
	return nil
}

// Stop stops the application
func (a *Application) Stop() error {
	if err := a.server.Stop(); err != nil {
		a.logger.Errorf("Error stopping MCP server: %v", err)
		return err
	}
	a.logger.Infof("MCP server stopped")

	if err := closeHistory(a.history, a.lock); err != nil {
		a.logger.Warnf("Error closing call history: %v", err)
	}
	return nil
}

// waitForShutdown waits for termination signals or server exit and performs cleanup
func waitForShutdown(cancel context.CancelFunc, app *Application) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-signalCh:
		app.logger.Infof("Received termination signal, shutting down...")
	case <-app.server.Done():
		app.logger.Infof("Server transport exited, shutting down...")
	}

	// Cancel the context to initiate shutdown
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	shutdownDone := make(chan struct{})
	go func() {
		if err := app.Stop(); err != nil {
			app.logger.Errorf("Error during shutdown: %v", err)
		}
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		app.logger.Infof("Graceful shutdown completed")
	case <-shutdownCtx.Done():
		app.logger.Warnf("Shutdown timed out")
	}
}
