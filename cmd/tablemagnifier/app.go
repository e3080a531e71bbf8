package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/user/tablemagnifier/internal/adapter/chromedp_renderer"
	"github.com/user/tablemagnifier/internal/adapter/pdf"
	"github.com/user/tablemagnifier/internal/adapter/postgres"
	redis_adapter "github.com/user/tablemagnifier/internal/adapter/redis"
	"github.com/user/tablemagnifier/internal/adapter/xlsx"
	"github.com/user/tablemagnifier/internal/delivery/http/handler"
	"github.com/user/tablemagnifier/internal/delivery/http/router"
	"github.com/user/tablemagnifier/internal/delivery/http/server"
	"github.com/user/tablemagnifier/internal/detector"
	"github.com/user/tablemagnifier/internal/entity"
	"github.com/user/tablemagnifier/internal/extractor"
	"github.com/user/tablemagnifier/internal/ledger"
	"github.com/user/tablemagnifier/internal/repository"
	"github.com/user/tablemagnifier/internal/usecase"
	"github.com/user/tablemagnifier/pkg/config"
	"github.com/user/tablemagnifier/pkg/logger"
	"github.com/user/tablemagnifier/pkg/metrics"
)

// app carries what every subcommand shares: configuration, the logger, the
// metrics registry and the cleanups to run on exit.
type app struct {
	configPath string
	logLevel   string

	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	checks   map[string]handler.Checker
	closers  []func()
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	a.cfg = cfg
	a.logger = log
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)
	a.checks = map[string]handler.Checker{}
	a.logger.Debug("Configuration loaded",
		zap.String("ledger_backend", cfg.LedgerBackend),
		zap.String("web_strategy", cfg.WebStrategy),
		zap.String("pdf_strategy", cfg.PDFStrategy))
	return nil
}

// close runs cleanups in reverse order of registration.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func (a *app) onClose(f func()) { a.closers = append(a.closers, f) }

func (a *app) layout() extractor.Layout {
	return layoutFrom(a.cfg)
}

func layoutFrom(cfg *config.Config) extractor.Layout {
	return extractor.Layout{
		OriginDir:    cfg.OriginDir,
		TableDir:     cfg.TableDir,
		OriginPrefix: cfg.OriginPrefix,
		TablePrefix:  cfg.TablePrefix,
	}
}

// openStore connects the configured ledger backend.
func (a *app) openStore(ctx context.Context) (repository.LedgerStore, error) {
	switch a.cfg.LedgerBackend {
	case "postgres":
		store, err := postgres.NewLedgerStore(ctx, a.cfg.PostgresURL, a.logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", repository.ErrLedgerIO, err)
		}
		a.onClose(store.Close)
		a.checks["ledger"] = store
		a.logger.Info("PostgreSQL ledger connected")
		return store, nil
	default:
		a.logger.Info("Spreadsheet ledger", zap.String("path", a.cfg.LedgerPath))
		return xlsx.NewLedgerStore(a.cfg.LedgerPath, a.logger), nil
	}
}

// loadState opens the store and reads the ledger from it.
func (a *app) loadState(ctx context.Context) (repository.LedgerStore, *ledger.State, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return store, ledger.Load(ctx, store, a.logger), nil
}

// openQueue connects to Redis and returns the source queue.
func (a *app) openQueue(ctx context.Context) (repository.SourceQueue, error) {
	client := redis_adapter.NewClient(a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", a.cfg.RedisAddr, err)
	}
	a.onClose(func() { client.Close() })
	a.checks["queue"] = pingRedis(client)
	a.logger.Info("Redis connection established", zap.String("addr", a.cfg.RedisAddr))
	return redis_adapter.NewQueueRepo(client, a.cfg.RedisQueueKey), nil
}

func pingRedis(c *goredis.Client) handler.Checker {
	return handler.CheckerFunc(func(ctx context.Context) error { return c.Ping(ctx).Err() })
}

// pipelineConfig turns flat settings into the orchestrator's configuration.
func pipelineConfig(cfg *config.Config) (usecase.Config, error) {
	web, err := entity.ParseDetectionMethod(cfg.WebStrategy)
	if err != nil {
		return usecase.Config{}, fmt.Errorf("WEB_STRATEGY: %w", err)
	}
	pdfMethod, err := entity.ParseDetectionMethod(cfg.PDFStrategy)
	if err != nil {
		return usecase.Config{}, fmt.Errorf("PDF_STRATEGY: %w", err)
	}
	morph, err := detector.MorphologyVariant(cfg.MorphVariant)
	if err != nil {
		return usecase.Config{}, fmt.Errorf("MORPH_VARIANT: %w", err)
	}

	det := detector.DefaultOptions()
	det.Morphology = morph
	det.PDFNative = detector.PDFNativeConfig{
		PaddingPoints:     cfg.PDFPaddingPt,
		PaddingPixels:     cfg.PDFPaddingPx,
		ExtendRight:       cfg.PDFExtendRight,
		RightMarginPixels: cfg.PDFRightMarginPx,
	}
	det.FullPageFallback = cfg.FullPageFallback

	uc := usecase.DefaultConfig()
	uc.WebStrategy = web
	uc.PDFStrategy = pdfMethod
	uc.Detection = det
	uc.DPI = cfg.PDFDPI
	uc.ViewportWidth = cfg.ViewportWidth
	uc.ViewportHeight = cfg.ViewportHeight
	uc.ElementWaitTimeout = cfg.ElementWaitTimeout
	uc.ScrollStepPx = cfg.ScrollStepPx
	uc.ScrollPause = cfg.ScrollPause
	uc.ScrollMaxSteps = cfg.ScrollMaxSteps
	uc.WebSourceDelay = cfg.WebSourceDelay
	uc.PDFSourceDelay = cfg.PDFSourceDelay
	uc.PanelPatterns = cfg.PanelPatterns
	uc.PDFInboxDir = cfg.PDFInboxDir
	uc.RemoveProcessedPDFs = cfg.RemoveProcessedPDFs
	return uc, nil
}

// needs reports which capabilities a set of sources calls for.
func needs(sources []usecase.Source) (web, pdfs bool) {
	for _, s := range sources {
		switch s.Kind() {
		case entity.SourceKindPDF:
			pdfs = true
		default:
			web = true
		}
	}
	return web, pdfs
}

// newPipeline wires the orchestrator. A missing browser or pdftoppm aborts
// only when sources of that kind are about to be processed.
func (a *app) newPipeline(store repository.LedgerStore, web, pdfs bool) (*usecase.Pipeline, error) {
	cfg, err := pipelineConfig(a.cfg)
	if err != nil {
		return nil, err
	}

	layout := a.layout()
	if err := layout.Ensure(); err != nil {
		return nil, err
	}

	deps := usecase.Deps{
		Store:     store,
		Extractor: extractor.New(layout, extractor.DefaultConfig(), a.logger),
		Metrics:   a.metrics,
	}

	renderers := chromedp_renderer.NewFactory(chromedp_renderer.Options{
		ExecPath:     a.cfg.ChromePath,
		UserAgent:    a.cfg.UserAgent,
		WindowWidth:  a.cfg.ViewportWidth,
		WindowHeight: a.cfg.ViewportHeight,
	}, a.logger)
	if web {
		if err := renderers.Available(); err != nil {
			return nil, err
		}
		deps.Renderers = renderers
	}

	raster := pdf.NewRasterizer(a.cfg.PdftoppmPath, a.cfg.PDFRenderTimeout)
	if pdfs {
		if err := raster.Available(); err != nil {
			return nil, err
		}
		deps.PDFs = pdf.NewDecoder(raster, a.logger)
	}

	return usecase.NewPipeline(cfg, deps, a.logger)
}

// serveTelemetry starts the operational endpoints when METRICS_ADDR is set.
func (a *app) serveTelemetry() {
	if a.cfg.MetricsAddr == "" {
		return
	}
	h := handler.NewHandler(a.checks, a.logger)
	srv := server.New(a.cfg.MetricsAddr, router.New(h, a.registry, a.metrics, a.logger), a.logger)
	srv.Start()
	a.onClose(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Warn("Operational server shutdown", zap.Error(err))
		}
	})
}

var errCommitFailures = errors.New("ledger commits failed")
