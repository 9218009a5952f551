// Package main is the carprice CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/carprice/internal/artifact"
	"github.com/hyperjump/carprice/internal/cli"
	"github.com/hyperjump/carprice/internal/comparables"
	"github.com/hyperjump/carprice/internal/config"
	"github.com/hyperjump/carprice/internal/inference"
	"github.com/hyperjump/carprice/internal/models"
	"github.com/hyperjump/carprice/internal/registry"
	"github.com/hyperjump/carprice/internal/server"
	"github.com/hyperjump/carprice/internal/training"
	"github.com/hyperjump/carprice/internal/watcher"
	"github.com/hyperjump/carprice/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/carprice/config.yaml"

// loadConfig loads and validates config from path. When path is the default
// and config.yaml exists in the current directory, that file is used instead.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	resolved := path
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				resolved = fallback
			}
		}
	}
	cfg, err := config.Load(resolved)
	if err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, resolved, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "train":
		runTrain()
	case "server", "serve":
		runServer()
	case "predict":
		runPredict()
	case "status":
		runStatus()
	case "runs":
		runRuns()
	case "version", "--version", "-v":
		fmt.Printf("carprice version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func mustLogger(debug bool) *zap.Logger {
	logger, err := utils.NewLogger(debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func mustFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	return format
}

func runTrain() {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	datasetPath := fs.String("dataset", "", "training CSV (default: dataset.path from config)")
	debug := fs.Bool("debug", false, "enable debug logging")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := mustFormat(*outputFormat)

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := mustLogger(cfg.Debug || *debug)
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolvedConfigPath))

	path := cfg.Dataset.Path
	if *datasetPath != "" {
		path = *datasetPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := registry.Open(ctx, cfg.Registry.Driver, cfg.Registry.DatabasePath, cfg.Registry.DSN)
	if err != nil {
		logger.Fatal("Failed to open registry", zap.Error(err))
	}
	defer store.Close()

	opts := training.Options{
		ReferenceYear: cfg.Features.ReferenceYear,
		Bounds:        cfg.Dataset.PriceBounds,
		TestFraction:  cfg.Dataset.TestFractionOrDefault(),
		Seed:          cfg.Dataset.Seed,
		Params:        cfg.Training.Params,
		VerboseEvery:  cfg.Training.VerboseEvery,
		ArtifactPath:  cfg.Model.ArtifactPath,
	}
	if cfg.Comparables.Enabled {
		opts.ComparablesPath = cfg.Comparables.IndexPath
	}
	pipeline := training.NewPipeline(opts, training.WithLogger(logger), training.WithRegistry(store))
	res, err := pipeline.Run(ctx, path)
	if err != nil {
		logger.Error("training failed", zap.String("dataset", path), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Training failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteTrainingReport(os.Stdout, res.Run, res.ComparablesIndexed, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
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
	logger := mustLogger(debugMode)
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.Int("reference_year", cfg.Features.ReferenceYear),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	// A missing artifact leaves the server up with inference disabled until
	// training writes one.
	var watchSvc *watcher.Watcher
	if _, ok := components.Loader.Artifact(); !ok && cfg.Model.WatchArtifactOrDefault() {
		watchSvc = watcher.New(cfg.Model.ArtifactPath, components.Loader.Load, watcher.WithLogger(logger))
		if err := watchSvc.Start(ctx); err != nil {
			logger.Warn("artifact watcher not started", zap.Error(err))
			watchSvc = nil
		}
	}

	srv := server.NewServer(
		components.Adapter,
		components.Loader,
		components.Store,
		components.searcher(),
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// argsReorder moves flags that appear after positional arguments to the
// front so that flag.Parse sees them; the flag package stops at the first
// non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// brandAndModel takes the first positional argument as the brand and joins
// the rest into the model, so "F-150 XLT" works with or without quotes.
func brandAndModel(args []string) (brand, model string) {
	if len(args) == 0 {
		return "", ""
	}
	return strings.TrimSpace(args[0]), strings.TrimSpace(strings.Join(args[1:], " "))
}

// optionalFloat parses a flag value where empty means missing.
func optionalFloat(name, s string) (*float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &v, nil
}

// optionalInt parses a flag value where empty means missing.
func optionalInt(name, s string) (*int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &v, nil
}

func printPredictUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: carprice predict [flags] <brand> <model...>\n\n")
	fmt.Fprintf(fs.Output(), "Omitted numeric fields are filled with the model's training medians.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  carprice predict Ford F-150 --year 2018 --mileage 45000 --hp 375 --liters 3.5 --cylinders 6 --turbo
  carprice predict --engine "3.5L V6 Twin Turbo" --fuel Gasoline Ford "F-150 XLT"
  carprice predict --server http://localhost:8080 --output json Toyota Camry
`)
}

func runPredict() {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = load the model artifact directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	year := fs.String("year", "", "model year")
	mileage := fs.String("mileage", "", "odometer reading in miles")
	fuel := fs.String("fuel", "", "fuel type (Gasoline, Diesel, Hybrid, E85 Flex Fuel, ...)")
	extCol := fs.String("ext-col", "", "exterior color")
	intCol := fs.String("int-col", "", "interior color")
	cleanTitle := fs.String("clean-title", "", "clean title: Yes or No")
	accident := fs.String("accident", "", "accident history, e.g. \"None reported\"")
	transmission := fs.String("transmission", "", "transmission text, e.g. \"6-Speed M/T\"")
	engine := fs.String("engine", "", "free engine text; overrides --hp, --liters, --cylinders and --turbo")
	hp := fs.String("hp", "", "horsepower")
	liters := fs.String("liters", "", "displacement in liters")
	cylinders := fs.String("cylinders", "", "cylinder count")
	turbo := fs.Bool("turbo", false, "turbocharged")
	fs.Usage = func() { printPredictUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))
	format := mustFormat(*outputFormat)

	brand, model := brandAndModel(fs.Args())
	if brand == "" {
		printPredictUsage(fs)
		os.Exit(1)
	}
	req := models.EstimateRequest{
		Brand:        brand,
		Model:        model,
		FuelType:     *fuel,
		ExtCol:       *extCol,
		IntCol:       *intCol,
		CleanTitle:   *cleanTitle,
		Accident:     *accident,
		Transmission: *transmission,
		IsTurbo:      *turbo,
		Engine:       *engine,
	}
	var err error
	if req.ModelYear, err = optionalInt("year", *year); err == nil {
		if req.Mileage, err = optionalFloat("mileage", *mileage); err == nil {
			if req.HP, err = optionalFloat("hp", *hp); err == nil {
				if req.Liters, err = optionalFloat("liters", *liters); err == nil {
					req.Cylinders, err = optionalFloat("cylinders", *cylinders)
				}
			}
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var est *models.Estimate
	if *serverURL != "" {
		est, err = estimateViaHTTP(*serverURL, &req)
	} else {
		est, err = estimateDirect(*configPath, req)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Estimate failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteEstimate(os.Stdout, est, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func estimateDirect(configPath string, req models.EstimateRequest) (*models.Estimate, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := mustLogger(cfg.Debug)
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()
	return components.Adapter.Estimate(ctx, req)
}

func estimateViaHTTP(serverURL string, req *models.EstimateRequest) (*models.Estimate, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/api/v1/estimate", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var est models.Estimate
	if err := json.NewDecoder(resp.Body).Decode(&est); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &est, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = inspect artifact and registry directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := mustFormat(*outputFormat)

	var (
		status *cli.Status
		err    error
	)
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
	} else {
		status, err = statusDirect(*configPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*cli.Status, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s cli.Status
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func statusDirect(configPath string) (*cli.Status, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, zap.NewNop())
	if err != nil {
		return nil, err
	}
	defer components.Close()
	return buildStatus(ctx, cfg, components), nil
}

func buildStatus(ctx context.Context, cfg *config.Config, c *Components) *cli.Status {
	st := c.Loader.Status()
	s := &cli.Status{
		Model:            st,
		InferenceEnabled: st.Status == artifact.StatusLoaded,
		ReferenceYear:    cfg.Features.ReferenceYear,
		DisplayMargin:    cfg.Inference.DisplayMargin,
		Comparables:      c.Comparables != nil,
	}
	if c.Store != nil {
		if n, err := c.Store.CountPredictions(ctx); err == nil {
			s.Predictions = &n
		}
		if run, err := c.Store.LatestRun(ctx); err == nil {
			s.LatestRun = run
		}
	}
	if n, err := utils.SizeOnDisk(cfg.Model.ArtifactPath, cfg.Comparables.IndexPath); err == nil {
		s.DiskUsageBytes = &n
	}
	return s
}

func runRuns() {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 20, "number of runs to show")
	offset := fs.Int("offset", 0, "number of runs to skip")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := mustFormat(*outputFormat)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	store, err := registry.Open(ctx, cfg.Registry.Driver, cfg.Registry.DatabasePath, cfg.Registry.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open registry: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, *offset, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List runs failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteRuns(os.Stdout, runs, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Store       registry.Store
	Loader      *artifact.Loader
	Comparables *comparables.Index
	Adapter     *inference.Adapter
}

// searcher returns the comparables index as an interface value that is nil
// when the index is not open.
func (c *Components) searcher() inference.ComparableSearcher {
	if c.Comparables == nil {
		return nil
	}
	return c.Comparables
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Comparables != nil {
		_ = c.Comparables.Close()
	}
}

// initializeComponents opens the registry and comparables index and attempts
// one artifact load. A failed load is not an error: the adapter reports the
// model as unavailable until Loader.Load succeeds.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := registry.Open(ctx, cfg.Registry.Driver, cfg.Registry.DatabasePath, cfg.Registry.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize registry: %w", err)
	}
	c := &Components{Store: store}

	c.Loader = artifact.NewLoader(
		cfg.Model.ArtifactPath,
		cfg.Features.ReferenceYear,
		artifact.WithLogger(logger),
		artifact.WithReferenceYearDrift(cfg.Inference.AllowReferenceYearDrift),
	)
	_ = c.Loader.Load()

	if cfg.Comparables.Enabled {
		idx, err := comparables.Open(cfg.Comparables.IndexPath)
		switch {
		case err == nil:
			c.Comparables = idx
		case errors.Is(err, comparables.ErrIndexNotFound):
			logger.Warn("comparables index not found; run train to build it",
				zap.String("path", cfg.Comparables.IndexPath))
		default:
			c.Close()
			return nil, fmt.Errorf("failed to open comparables index: %w", err)
		}
	}

	opts := []inference.Option{
		inference.WithLogger(logger),
		inference.WithCurrency(cfg.Inference.Currency),
	}
	if s := c.searcher(); s != nil {
		opts = append(opts, inference.WithComparables(s, cfg.Comparables.Limit))
	}
	c.Adapter = inference.NewAdapter(c.Loader, cfg.Features.ReferenceYear, cfg.Inference.DisplayMargin, opts...)
	return c, nil
}

func printUsage() {
	fmt.Println(`carprice - Used-car price estimator

Usage:
  carprice train [flags]                    Train a model from the listings CSV
  carprice server [flags]                   Start the HTTP server
  carprice predict [flags] <brand> <model>  Estimate a price
  carprice status [flags]                   Show model/registry status
  carprice runs [flags]                     List recorded training runs
  carprice version                          Show version
  carprice help                             Show this help

Train Flags:
  --config string    Config file path (default: /usr/local/etc/carprice/config.yaml)
  --dataset string   Training CSV (default: dataset.path from config)
  --debug            Enable debug logging
  --output string    Output format: text or json (default: text)

Server Flags:
  --config string    Config file path
  --debug            Enable debug logging

Predict Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL. Empty (default) loads the artifact directly.
  --year, --mileage, --fuel, --ext-col, --int-col, --clean-title, --accident,
  --transmission, --engine, --hp, --liters, --cylinders, --turbo
  --output string    Output format: text or json (default: text)

Status Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct mode.
  --output string    Output format: text or json (default: text)

Runs Flags:
  --config string    Config file path
  --limit int        Number of runs (default: 20)
  --offset int       Runs to skip (default: 0)
  --output string    Output format: text or json (default: text)

Examples:
  carprice train --dataset ./data/used_cars.csv
  carprice server
  carprice predict --year 2018 --mileage 45000 --engine "375.0HP 3.5L V6 Cylinder Engine Gasoline Fuel" Ford F-150
  carprice status --output json
  carprice runs --limit 5`)
}
