package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/recoagent/internal/api"
	"github.com/kalambet/recoagent/internal/catalog"
	"github.com/kalambet/recoagent/internal/config"
	"github.com/kalambet/recoagent/internal/ingest"
	"github.com/kalambet/recoagent/internal/reranking"
	"github.com/kalambet/recoagent/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recommendation server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server, catalog and LLM status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "recoagent.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func runServer(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	fmt.Fprintf(os.Stderr, "recoagent version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	if err := newLocalClient(cfg.Server.Port, 2*time.Second).get(parent, "/health", nil); !errors.Is(err, errUnreachable) {
		return fmt.Errorf("port %d is already in use, is recoagent already running?", cfg.Server.Port)
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer os.Remove(pidPath)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	cat, closeCatalog, err := openCatalog(ctx, cfg, store)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer closeCatalog()

	rr := buildReranker(ctx, cfg, os.Stderr)
	_, noLLM := rr.(*reranking.NoOpReranker)
	svc := api.NewService(cat, buildRecommender(cfg, cat, rr), store, cfg.Catalog.Source)

	handler := api.NewHandler(api.Deps{
		Service:     svc,
		Catalog:     cat,
		DataSource:  cfg.Catalog.Source,
		LLMProvider: cfg.LLM.Provider,
		LLMModel:    cfg.LLM.Model,
		LLMEnabled:  !noLLM,
		RateLimit:   cfg.Server.RateLimit,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("recoagent listening", "addr", addr, "catalog", cfg.Catalog.Source, "llm", !noLLM)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if interval := cfg.SyncInterval(); interval > 0 {
		worker := ingest.NewWorker(store, cfg.Catalog.ProductsFile, interval)
		if cached, ok := cat.(*catalog.Cached); ok {
			worker.OnSync(func(int) { cached.Invalidate() })
		}
		g.Go(func() error {
			worker.Run(gctx)
			return nil
		})
	}

	if cfg.Server.MCPStdio {
		stdio := server.NewStdioServer(api.NewMCPServer(svc))
		g.Go(func() error {
			slog.Info("MCP server started (stdio transport)")
			if err := stdio.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("MCP stdio server: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		return fmt.Errorf("recoagent is not running (no PID file): %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("could not find process %d: %w", pid, err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		os.Remove(pidPath)
		return fmt.Errorf("could not stop recoagent (PID %d): %w", pid, err)
	}

	printSuccess("Sent stop signal to recoagent (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	var health api.HealthResponse
	err = newLocalClient(cfg.Server.Port, 2*time.Second).get(ctx, "/health", &health)
	switch {
	case errors.Is(err, errUnreachable):
		printStatus("Server", "stopped")
	case err != nil:
		printStatus("Server", "error (%v)", err)
	default:
		printStatus("Server", "running on port %d", cfg.Server.Port)
		printStatus("Data source", "%s", health.DataSource)
		printStatus("LLM", "%s", llmLabel(health))
	}

	printStatus("Catalog source", "%s", cfg.Catalog.Source)
	if cfg.Catalog.Source == config.SourceJSON {
		printStatus("Products file", "%s", cfg.Catalog.ProductsFile)
	}
	printStatus("LLM provider", "%s", cfg.LLM.Provider)
	printStatus("Model", "%s", orNone(cfg.LLM.Model))
	printStatus("Fallback model", "%s", orNone(cfg.LLM.FallbackModel))
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func llmLabel(h api.HealthResponse) string {
	if !h.LLMEnabled {
		return "disabled (deterministic ranking)"
	}
	return fmt.Sprintf("%s / %s", h.LLMProvider, h.LLMModel)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// prettyJSON renders v indented for terminal output.
func prettyJSON(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
