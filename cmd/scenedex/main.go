// Package main is the scenedex CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/scenedex/scenedex/internal/config"
	"github.com/scenedex/scenedex/internal/curate"
	"github.com/scenedex/scenedex/internal/embedding"
	"github.com/scenedex/scenedex/internal/ingest"
	"github.com/scenedex/scenedex/internal/model"
	"github.com/scenedex/scenedex/internal/models"
	"github.com/scenedex/scenedex/internal/search"
	"github.com/scenedex/scenedex/internal/server"
	"github.com/scenedex/scenedex/internal/stats"
	"github.com/scenedex/scenedex/internal/storage"
	"github.com/scenedex/scenedex/internal/vector"
	"github.com/scenedex/scenedex/internal/watcher"
	"github.com/scenedex/scenedex/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/scenedex/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence (for development).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "search":
		runSearch()
	case "dedupe":
		runSweep("dedupe")
	case "blanks":
		runSweep("blanks")
	case "retag":
		runRetag()
	case "stats":
		runStats()
	case "delete":
		runDelete()
	case "version", "--version", "-v":
		fmt.Printf("scenedex version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	statsCache := stats.NewCache(components.Store,
		stats.WithTTL(time.Duration(cfg.Stats.TTLSeconds)*time.Second),
		stats.WithLogger(logger))
	if err := statsCache.Prime(context.Background()); err != nil {
		logger.Fatal("Failed to prime stats cache", zap.Error(err))
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.Enabled {
		watchOpts := []watcher.Option{
			watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMS) * time.Millisecond),
		}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc := watcher.NewWatcher(cfg.Storage.FramesDir, func() {
			if _, err := components.Coordinator.Sync(context.Background()); err != nil {
				logger.Warn("watch-triggered sync failed", zap.Error(err))
			}
		}, watchOpts...)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	queryLog := server.NewQueryLog(cfg.Storage.QueryLogPath, logger)
	defer queryLog.Close()

	srv := server.NewServer(components.Engine, components.Coordinator, statsCache, queryLog, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if cfg.Storage.VectorIndexPath != "" {
		if err := components.Index.Save(cfg.Storage.VectorIndexPath); err != nil {
			logger.Warn("vector index save failed",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(err))
		}
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	components, cfg := mustComponents(*configPath)
	defer components.Close()

	report, err := components.Coordinator.Sync(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingestion failed: %v\n", err)
		os.Exit(1)
	}
	if cfg.Storage.VectorIndexPath != "" {
		if err := components.Index.Save(cfg.Storage.VectorIndexPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: vector index save failed: %v\n", err)
		}
	}
	printJSON(report)
}

func runSweep(kind string) {
	fs := flag.NewFlagSet(kind, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dryRun := fs.Bool("dry-run", false, "report what would be removed without deleting")
	_ = fs.Parse(os.Args[2:])

	components, cfg := mustComponents(*configPath)
	defer components.Close()

	var report *ingest.SweepReport
	var err error
	switch kind {
	case "dedupe":
		report, err = components.Coordinator.SweepDuplicates(context.Background(), *dryRun)
	case "blanks":
		report, err = components.Coordinator.SweepBlanks(context.Background(), *dryRun)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Sweep failed: %v\n", err)
		os.Exit(1)
	}
	if !*dryRun && report.Removed > 0 && cfg.Storage.VectorIndexPath != "" {
		if err := components.Index.Save(cfg.Storage.VectorIndexPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: vector index save failed: %v\n", err)
		}
	}
	printJSON(report)
}

func runRetag() {
	fs := flag.NewFlagSet("retag", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	components, _ := mustComponents(*configPath)
	defer components.Close()

	report, err := components.Coordinator.Retag(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Re-tagging failed: %v\n", err)
		os.Exit(1)
	}
	printJSON(report)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	limit := fs.Int("limit", 20, "number of results")
	mode := fs.String("mode", "visual", "search mode: visual or quote")
	season := fs.String("season", "", "comma-separated season filter (e.g. s01,s02)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: scenedex search [flags] <query>")
		os.Exit(1)
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Println("Usage: scenedex search [flags] <query>")
		os.Exit(1)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(*limit))
	params.Set("mode", *mode)
	if *season != "" {
		params.Set("season", *season)
	}
	resp, err := http.Get(*serverURL + "/search?" + params.Encode())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		fmt.Fprintf(os.Stderr, "Decode response: %v\n", err)
		os.Exit(1)
	}
	if *output == "json" {
		printJSON(response)
		return
	}
	fmt.Printf("%d result(s) for %q (%s, %dms)\n\n",
		response.Total, response.Query, response.Mode, response.QueryTime)
	for i, r := range response.Results {
		fmt.Printf("%2d. [%.3f] %s @ %.0fs\n", i+1, r.Score, r.Path, r.Timestamp)
		if r.Caption != "" {
			fmt.Printf("      %s\n", r.Caption)
		}
		if r.Characters != "" {
			fmt.Printf("      characters: %s\n", r.Characters)
		}
	}
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	refresh := fs.Bool("refresh", false, "force a recomputation")
	_ = fs.Parse(os.Args[2:])

	target := *serverURL + "/stats"
	if *refresh {
		target += "?refresh=1"
	}
	resp, err := http.Get(target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var snap models.StatsSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		fmt.Fprintf(os.Stderr, "Decode response: %v\n", err)
		os.Exit(1)
	}
	printJSON(snap)
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: scenedex delete [flags] <frame-path>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	components, cfg := mustComponents(*configPath)
	defer components.Close()

	removed, err := components.Coordinator.Delete(context.Background(), path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Deletion failed: %v\n", err)
		os.Exit(1)
	}
	if !removed {
		fmt.Printf("Frame not indexed: %s\n", path)
		return
	}
	if cfg.Storage.VectorIndexPath != "" {
		if err := components.Index.Save(cfg.Storage.VectorIndexPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: vector index save failed: %v\n", err)
		}
	}
	fmt.Printf("Frame deleted: %s\n", path)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// mustComponents loads config and initializes components or exits.
func mustComponents(configPath string) (*Components, *config.Config) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return components, cfg
}

// Components holds initialized services.
type Components struct {
	Store       storage.FrameStore
	Embedder    embedding.Embedder
	Index       vector.FrameIndex
	Engine      *search.Engine
	Coordinator *ingest.Coordinator
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Index != nil {
		_ = c.Index.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var embedder embedding.Embedder
	if cfg.Embedding.Mock {
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	} else {
		onnxEmbedder, err := embedding.NewONNXEmbedder(
			cfg.Embedding.TextModelPath,
			cfg.Embedding.ImageModelPath,
			cfg.Embedding.Dimensions,
			cfg.Embedding.CacheSize,
		)
		if err != nil {
			if logger != nil {
				logger.Warn("ONNX embedder unavailable, using mock embedder", zap.Error(err))
			}
			embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
		} else {
			embedder = onnxEmbedder
		}
	}

	index, err := vector.NewMemoryIndex(cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	if cfg.Storage.VectorIndexPath != "" {
		if loadErr := index.Load(cfg.Storage.VectorIndexPath); loadErr != nil && logger != nil {
			logger.Warn("vector index load skipped",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(loadErr))
		}
	}
	// The store is the source of truth; rebuild the index when the persisted
	// copy is missing or behind.
	if err := rebuildIndex(store, index, logger); err != nil {
		return nil, err
	}

	var annotator model.Annotator = model.NoopAnnotator{}
	if cfg.Annotate.SidecarURL != "" {
		annotator = model.NewSidecarClient(cfg.Annotate.SidecarURL,
			time.Duration(cfg.Annotate.TimeoutSeconds)*time.Second)
	}

	boundaries, err := curate.LoadBoundaryCache(cfg.Ingest.BoundaryCachePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load boundary cache: %w", err)
	}

	engineOpts := []search.Option{}
	coordOpts := []ingest.Option{
		ingest.WithFrameInterval(cfg.Ingest.FrameIntervalSeconds),
		ingest.WithDedupe(cfg.Curation.SimilarityThreshold, cfg.Curation.MaxGapSeconds),
	}
	if debug && logger != nil {
		engineOpts = append(engineOpts, search.WithLogger(logger))
		coordOpts = append(coordOpts, ingest.WithLogger(logger))
	}

	engine := search.NewEngine(store, embedder, index, engineOpts...)
	coordinator := ingest.NewCoordinator(store, index, embedder, annotator, boundaries,
		cfg.Storage.FramesDir, coordOpts...)

	return &Components{
		Store:       store,
		Embedder:    embedder,
		Index:       index,
		Engine:      engine,
		Coordinator: coordinator,
	}, nil
}

// rebuildIndex backfills the vector index with any stored embeddings it is
// missing.
func rebuildIndex(store storage.FrameStore, index vector.FrameIndex, logger *zap.Logger) error {
	count, err := store.CountFrames(context.Background())
	if err != nil {
		return fmt.Errorf("count frames: %w", err)
	}
	if int64(index.Size()) >= count {
		return nil
	}
	frames, err := store.AllEmbeddings(context.Background())
	if err != nil {
		return fmt.Errorf("load embeddings: %w", err)
	}
	added := 0
	for _, f := range frames {
		if _, ok := index.Vector(f.Path); ok {
			continue
		}
		if err := index.Add(context.Background(), []string{f.Path}, [][]float32{f.Embedding}); err != nil {
			if logger != nil {
				logger.Warn("index rebuild skipped frame", zap.String("path", f.Path), zap.Error(err))
			}
			continue
		}
		added++
	}
	if added > 0 && logger != nil {
		logger.Info("vector index rebuilt from store", zap.Int("added", added))
	}
	return nil
}

func printUsage() {
	fmt.Println(`scenedex - frame curation and scene search engine

Usage:
  scenedex server [flags]            Start the HTTP server
  scenedex ingest [flags]            Discover and index new frames
  scenedex search [flags] <query>    Search indexed frames (via server)
  scenedex dedupe [flags]            Remove near-duplicate frames from the index
  scenedex blanks [flags]            Remove blank frames from the index
  scenedex retag [flags]             Re-run character labeling over all frames
  scenedex stats [flags]             Show index statistics (via server)
  scenedex delete [flags] <path>     Delete one frame by path
  scenedex version                   Show version
  scenedex help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/scenedex/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --server string    Server URL (default: http://localhost:8080)
  --limit int        Number of results (default: 20)
  --mode string      Search mode: visual or quote (default: visual)
  --season string    Comma-separated season filter (e.g. s01,s02)
  --output string    Output format: text or json (default: text)

Sweep Flags (dedupe, blanks):
  --config string    Config file path
  --dry-run          Report what would be removed without deleting

Examples:
  scenedex server
  scenedex ingest
  scenedex search homer eating donuts
  scenedex search --mode quote "eat my shorts"
  scenedex search --season s04 --limit 5 steamed hams
  scenedex dedupe --dry-run
  scenedex delete S01E01/frame_00042.jpg`)
}
