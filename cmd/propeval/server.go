package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/propeval/internal/api"
	"github.com/kalambet/propeval/internal/cache"
	"github.com/kalambet/propeval/internal/config"
	"github.com/kalambet/propeval/internal/council"
	"github.com/kalambet/propeval/internal/filter"
	"github.com/kalambet/propeval/internal/metrics"
	"github.com/kalambet/propeval/internal/pipeline"
	"github.com/kalambet/propeval/internal/providers"
	"github.com/kalambet/propeval/internal/storage"
	"github.com/kalambet/propeval/internal/strategy"
	"github.com/kalambet/propeval/internal/vision"
	"github.com/kalambet/propeval/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, MCP server and background worker (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		stdio, _ := cmd.Flags().GetBool("mcp-stdio")
		return runServer(stdio)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running propeval server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server health, pipeline progress and listing counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("mcp-stdio", false, "serve MCP over stdin/stdout instead of HTTP on server.mcp_port")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "propeval.pid")
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

func removePIDFile(path string) {
	os.Remove(path)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openStore(cfg config.Config) (*storage.Store, error) {
	if cfg.Storage.Driver == "postgres" {
		return storage.OpenPostgres(cfg.Storage.PostgresDSN)
	}
	return storage.Open(cfg.Storage.DataDir)
}

// openCacheBackend returns the shared cache tier and a function releasing it.
func openCacheBackend(ctx context.Context, cfg config.Config) (cache.Backend, func(), error) {
	if cfg.Cache.Backend == "redis" {
		r, err := cache.DialRedis(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { r.Close() }, nil
	}
	return cache.NewMemory(), func() {}, nil
}

// buildProviders selects the external data providers from configuration.
// Providers left nil fall back to heuristics inside the pipeline.
func buildProviders(cfg config.Config) (pipeline.Providers, error) {
	analyzer, err := vision.New(vision.Config{
		Provider:  cfg.Vision.Provider,
		Model:     cfg.Vision.Model,
		BaseURL:   cfg.Vision.BaseURL,
		APIKey:    cfg.Vision.APIKey,
		MaxPhotos: cfg.Vision.MaxPhotos,
	})
	if err != nil {
		return pipeline.Providers{}, fmt.Errorf("configuring vision: %w", err)
	}
	prov := pipeline.Providers{Vision: analyzer}

	registry, err := council.LoadRegistry(cfg.Council.RegistryPath)
	if err != nil {
		return pipeline.Providers{}, fmt.Errorf("loading council registry: %w", err)
	}
	prov.Rates = council.NewRates(registry)
	if cfg.Council.UseCouncilRules {
		var geocoder providers.Geocoder
		if cfg.Council.GoogleMapsAPIKey != "" {
			geocoder = council.NewGoogleGeocoder(cfg.Council.GoogleMapsAPIKey)
		} else {
			slog.Info("council: no Google Maps key, geocoding disabled")
		}
		prov.Zoning = council.NewZoning(registry, geocoder)
	}

	if cfg.Tenancy.Provider == "api" {
		prov.Tenancy = providers.NewTenancyClient(cfg.Tenancy.BaseURL, cfg.Tenancy.APIKey)
	}
	if cfg.Insurance.Provider == "api" {
		prov.Insurance = providers.NewInsuranceClient(cfg.Insurance.BaseURL, cfg.Insurance.APIKey, cfg.Insurance.Insurer)
	}
	return prov, nil
}

func pipelineConfig(cfg config.Config) pipeline.Config {
	return pipeline.Config{
		Filters: filter.Config{
			MaxPrice:      cfg.Filters.MaxPrice,
			MinPopulation: cfg.Filters.MinPopulation,
		},
		AnalysisMode: cfg.Pipeline.AnalysisMode,
		Strategy: strategy.Options{
			RiskTolerance: strategy.RiskTolerance(cfg.Pipeline.RiskTolerance),
			MarketTrend:   strategy.MarketTrend(cfg.Pipeline.MarketTrend),
		},
		MaxPhotos:   cfg.Vision.MaxPhotos,
		VisionDelay: cfg.Pipeline.VisionRateLimitDelay,
		Parallel:    cfg.Pipeline.ParallelEnrichment,
	}
}

func runServer(mcpStdio bool) error {
	fmt.Fprintf(os.Stderr, "propeval version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)})))
	if cfg.Server.APIToken == "" {
		slog.Warn("PROPEVAL_API_TOKEN is not set, /api endpoints are unauthenticated")
	}

	// Refuse to start twice against the same data dir or port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("propeval is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("propeval is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()
	slog.Info("storage ready", "driver", store.Dialect())

	shared, closeCache, err := openCacheBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer closeCache()

	prov, err := buildProviders(cfg)
	if err != nil {
		return err
	}
	if o, ok := prov.Vision.(*vision.Ollama); ok {
		printStep("Checking Ollama vision model...")
		if err := o.EnsureReady(ctx, os.Stderr); err != nil {
			return fmt.Errorf("preparing Ollama vision model: %w", err)
		}
	}
	slog.Info("providers configured",
		"vision", prov.Vision.Name(),
		"zoning", prov.Zoning != nil,
		"tenancy", cfg.Tenancy.Provider,
		"insurance", cfg.Insurance.Provider,
		"cache", cfg.Cache.Backend,
	)

	m := metrics.New()
	p := pipeline.New(store, prov, pipelineConfig(cfg),
		pipeline.WithMetrics(m),
		pipeline.WithSharedCache(shared, cfg.Cache.TTL),
	)

	w := worker.NewWorker(store, p, 500*time.Millisecond)
	if cfg.Scheduler.Enabled {
		sched, err := worker.NewSchedule(cfg.Scheduler.Hour, cfg.Scheduler.Minute)
		if err != nil {
			return fmt.Errorf("configuring scheduler: %w", err)
		}
		w.SetSchedule(sched)
	}

	appHandler := api.NewAppHandler(api.AppDeps{
		Store:    store,
		Pipeline: p,
		Token:    cfg.Server.APIToken,
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port),
		Handler:           appHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	mcpSrv := api.NewMCPServer(api.MCPDeps{Store: store, Pipeline: p, Version: version})
	var mcpHTTP *http.Server
	if !mcpStdio {
		mcpHTTP = &http.Server{
			Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Server.MCPPort),
			Handler:           server.NewStreamableHTTPServer(mcpSrv),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := w.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("worker: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "propeval listening on %s\n", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	if mcpStdio {
		g.Go(func() error {
			slog.Info("MCP server started (stdio transport)")
			if err := server.NewStdioServer(mcpSrv).Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
	} else {
		g.Go(func() error {
			slog.Info("MCP server started (streamable HTTP)", "addr", mcpHTTP.Addr)
			if err := mcpHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("MCP server error: %w", err)
			}
			return nil
		})
	}

	// Shut the listeners down once a signal arrives or any member fails.
	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if mcpHTTP != nil {
			err = errors.Join(err, mcpHTTP.Shutdown(shutdownCtx))
		}
		return err
	})

	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("propeval is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop propeval (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to propeval (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	client, err := newAPIClient()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	resp, err := client.get(ctx, "/health")
	if err != nil {
		printStatus("Server", "stopped")
		return nil
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		return nil
	}
	printStatus("Server", "running at %s", client.baseURL)

	if resp, err := client.get(ctx, "/api/pipeline/status"); err == nil {
		var snap pipeline.StatusSnapshot
		if err := decodeJSON(resp, &snap); err != nil {
			printWarning("pipeline status unavailable: %v", err)
		} else {
			printPipelineStatus(snap)
		}
	}

	if resp, err := client.get(ctx, "/api/stats"); err == nil {
		var stats storage.Stats
		if err := decodeJSON(resp, &stats); err == nil {
			printStatus("Listings", "%d total, %d passed filters, %d rejected, %d scored",
				stats.Total, stats.ByFilter["passed"], stats.ByFilter["rejected"], stats.Scored)
			printStatus("Analysis", "%d pending, %d completed, %d failed",
				stats.ByAnalysis["pending"], stats.ByAnalysis["completed"], stats.ByAnalysis["failed"])
		}
	}
	return nil
}

func printPipelineStatus(snap pipeline.StatusSnapshot) {
	switch {
	case snap.Running && snap.Progress != nil:
		printStatus("Pipeline", "%s (%d/%d): %s", snap.Task, snap.Progress.Current, snap.Progress.Total, snap.Message)
	case snap.Running:
		printStatus("Pipeline", "%s: %s", snap.Task, snap.Message)
	case snap.Queued:
		printStatus("Pipeline", "run queued")
	default:
		printStatus("Pipeline", "idle")
	}
	if snap.LastError != "" {
		printStatus("Last error", "%s", colorize(colorRed, snap.LastError))
	}
	if b := snap.LastBatch; b != nil {
		printStatus("Last batch", "%d processed, %d completed, %d rejected, %d failed",
			b.Processed, b.Completed, b.Rejected, b.Failed)
	}
}
