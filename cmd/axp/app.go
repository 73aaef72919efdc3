package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lmmx/arxiv-explorer/internal/arxiv"
	"github.com/lmmx/arxiv-explorer/internal/config"
	"github.com/lmmx/arxiv-explorer/internal/embedding"
	"github.com/lmmx/arxiv-explorer/internal/hub"
	"github.com/lmmx/arxiv-explorer/internal/partition"
	"github.com/lmmx/arxiv-explorer/internal/pipeline"
	"github.com/lmmx/arxiv-explorer/internal/projection"
	"github.com/lmmx/arxiv-explorer/internal/semantic"
)

// app holds the wired components for one command invocation.
type app struct {
	cfg         *config.GlobalConfig
	logger      *zap.Logger
	hub         *hub.Client
	catalog     *partition.Catalog
	partitions  *partition.Cache
	provider    *embedding.OllamaProvider
	engine      *embedding.Engine
	store       *semantic.Store
	projections *projection.Cache
	runner      *pipeline.Runner
}

// mustOpenApp wires every component from config, exits on error.
func mustOpenApp() *app {
	cfg := mustLoadConfig()
	logger := newLogger(logLevel, logFormat)

	if err := config.EnsureLayout(cfg.DataDir); err != nil {
		exitWithError(ExitConfigError, "preparing data directory: %v", err)
	}
	if n, err := config.SweepTemp(cfg.DataDir, config.StaleTempAge); err != nil {
		logger.Warn("sweeping temp files", zap.Error(err))
	} else if n > 0 {
		logger.Info("removed temp files from interrupted writes", zap.Int("files", n))
	}

	a := &app{cfg: cfg, logger: logger}
	a.hub = hub.NewClient(
		hub.WithRepo(cfg.DatasetRepo),
		hub.WithRevision(cfg.Revision),
		hub.WithToken(cfg.HFToken),
		hub.WithLogger(logger.Named("hub")),
	)

	catalog, err := partition.OpenCatalog(config.CatalogPath(cfg.DataDir))
	if err != nil {
		exitWithError(ExitConfigError, "opening catalog: %v", err)
	}
	a.catalog = catalog
	a.partitions = partition.NewCache(config.PartitionsPath(cfg.DataDir), catalog, a.hub,
		partition.WithLogger(logger.Named("partitions")))

	a.provider = embedding.NewOllamaProvider(
		embedding.WithBaseURL(cfg.OllamaURL),
		embedding.WithModel(cfg.Model),
		embedding.WithDimensions(cfg.Dimensions),
	)
	a.engine = embedding.NewEngine(a.provider,
		embedding.WithBatchSize(cfg.BatchSize),
		embedding.WithLogger(logger.Named("embed")))
	a.store = semantic.NewStore(config.EmbeddingsPath(cfg.DataDir), a.engine,
		semantic.WithLogger(logger.Named("store")))
	a.projections = projection.NewCache(config.ProjectionsPath(cfg.DataDir),
		projection.WithParams(cfg.UMAP),
		projection.WithLogger(logger.Named("projection")))

	a.runner, err = pipeline.NewRunner(a.partitions, a.store, a.projections, a.engine,
		pipeline.WithDownloadConcurrency(cfg.Concurrency),
		pipeline.WithLogger(logger.Named("pipeline")))
	if err != nil {
		exitWithError(ExitError, "creating pipeline: %v", err)
	}
	return a
}

// Close releases the catalog and flushes logs.
func (a *app) Close() {
	a.catalog.Close()
	_ = a.logger.Sync()
}

// mustValidateOllama checks that Ollama is reachable and has the model.
func (a *app) mustValidateOllama(ctx context.Context) {
	if err := a.provider.IsAvailable(ctx); err != nil {
		exitWithError(ExitModelError, "Ollama is not running at %s\n\nStart Ollama with 'ollama serve' or install from https://ollama.ai", a.cfg.OllamaURL)
	}
	hasModel, err := a.provider.HasModel(ctx)
	if err != nil {
		exitWithError(ExitError, "checking model availability: %v", err)
	}
	if !hasModel {
		exitWithError(ExitModelError, "embedding model %q not found\n\nRun 'ollama pull %s' to download it.", a.provider.ModelName(), a.provider.ModelName())
	}
}

// mustRun runs the pipeline for sel, exiting on failure.
func (a *app) mustRun(ctx context.Context, sel arxiv.Selection, quiet bool) *pipeline.Corpus {
	a.mustValidateOllama(ctx)
	corpus, err := a.runner.Run(ctx, sel, progressSink(quiet))
	if err != nil {
		exitWithErr(err)
	}
	return corpus
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// selectionFlags are the flags every corpus command shares.
type selectionFlags struct {
	categories []string
	year       int
	months     []string
}

func (f *selectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.categories, "category", "c", nil, "Subject category, e.g. cs.AI (repeatable)")
	cmd.Flags().IntVarP(&f.year, "year", "y", time.Now().Year(), "Year to select")
	cmd.Flags().StringSliceVarP(&f.months, "month", "m", nil, "Month (MM or YYYY-MM, repeatable); default all months of --year")
	_ = cmd.MarkFlagRequired("category")
}

// selection builds the selection: every category in every chosen month.
func (f *selectionFlags) selection() (arxiv.Selection, error) {
	var months []arxiv.YearMonth
	if len(f.months) == 0 {
		months = arxiv.MonthsOfYear(f.year, time.Now())
	}
	for _, m := range f.months {
		s := strings.TrimSpace(m)
		if !strings.ContainsAny(s, "-/") {
			s = fmt.Sprintf("%04d-%s", f.year, s)
		}
		ym, err := arxiv.ParseYearMonth(s)
		if err != nil {
			return arxiv.Selection{}, err
		}
		months = append(months, ym)
	}
	return arxiv.Cross(f.categories, months), nil
}

func (f *selectionFlags) mustSelection() arxiv.Selection {
	sel, err := f.selection()
	if err != nil {
		exitWithErr(err)
	}
	return sel
}

// filterFlags narrow an already-loaded corpus.
type filterFlags struct {
	categories []string
	months     []string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.categories, "only-category", nil, "Restrict to these categories")
	cmd.Flags().StringSliceVar(&f.months, "only-month", nil, "Restrict to these months (YYYY-MM)")
}

func (f *filterFlags) mustFilter() arxiv.Filter {
	filter := arxiv.Filter{Categories: f.categories}
	for _, m := range f.months {
		ym, err := arxiv.ParseYearMonth(m)
		if err != nil {
			exitWithErr(err)
		}
		filter.Months = append(filter.Months, ym)
	}
	return filter
}
