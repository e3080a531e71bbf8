// Package usecase runs sources through detection and extraction and keeps the
// ledger current after every one of them.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/tablemagnifier/internal/detector"
	"github.com/user/tablemagnifier/internal/entity"
	"github.com/user/tablemagnifier/internal/extractor"
	"github.com/user/tablemagnifier/internal/ledger"
	"github.com/user/tablemagnifier/internal/repository"
	"github.com/user/tablemagnifier/pkg/metrics"
	"github.com/user/tablemagnifier/pkg/utils"
)

// Config holds the pipeline's tunables.
type Config struct {
	WebStrategy entity.DetectionMethod
	PDFStrategy entity.DetectionMethod
	Detection   detector.Options

	DPI int

	ViewportWidth      int
	ViewportHeight     int
	ElementWaitTimeout time.Duration

	ScrollStepPx   int
	ScrollPause    time.Duration
	ScrollMaxSteps int

	WebSourceDelay time.Duration
	PDFSourceDelay time.Duration

	// PanelPatterns selects URLs whose tables are read from collapsed panels.
	PanelPatterns []string
	// PDFInboxDir is where PDFs named by ledger refs are looked up again.
	PDFInboxDir         string
	RemoveProcessedPDFs bool
}

func DefaultConfig() Config {
	return Config{
		WebStrategy:        entity.MethodDOMTable,
		PDFStrategy:        entity.MethodPDFNativeTable,
		Detection:          detector.DefaultOptions(),
		DPI:                300,
		ViewportWidth:      1920,
		ViewportHeight:     1080,
		ElementWaitTimeout: 20 * time.Second,
		ScrollStepPx:       500,
		ScrollPause:        200 * time.Millisecond,
		ScrollMaxSteps:     200,
		WebSourceDelay:     2 * time.Second,
		PDFSourceDelay:     time.Second,
		PanelPatterns:      []string{"page06_new.html"},
	}
}

// Deps are the pipeline's collaborators. Renderers and PDFs may be nil when
// the batch has no source of that kind.
type Deps struct {
	Renderers repository.RendererFactory
	PDFs      repository.PDFDecoder
	Store     repository.LedgerStore
	Extractor *extractor.Extractor
	Metrics   *metrics.Metrics
}

// Pipeline processes sources strictly one after another.
type Pipeline struct {
	cfg  Config
	deps Deps

	web   detector.Strategy
	panel detector.Strategy
	pdf   detector.Strategy

	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

func NewPipeline(cfg Config, deps Deps, logger *zap.Logger) (*Pipeline, error) {
	if deps.Store == nil || deps.Extractor == nil {
		return nil, errors.New("pipeline needs a ledger store and an extractor")
	}
	if cfg.PDFStrategy == entity.MethodDOMTable {
		return nil, fmt.Errorf("%q cannot run on PDF pages", cfg.PDFStrategy)
	}
	if cfg.ScrollMaxSteps <= 0 {
		return nil, errors.New("scroll needs a positive step bound")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop()
	}

	web, err := detector.NewStrategy(cfg.WebStrategy, cfg.Detection, logger)
	if err != nil {
		return nil, fmt.Errorf("web strategy: %w", err)
	}
	pdf, err := detector.NewStrategy(cfg.PDFStrategy, cfg.Detection, logger)
	if err != nil {
		return nil, fmt.Errorf("pdf strategy: %w", err)
	}
	panel := detector.NewDOMStructural(cfg.Detection.DOM, logger)

	return &Pipeline{
		cfg:    cfg,
		deps:   deps,
		web:    web,
		panel:  panel,
		pdf:    pdf,
		logger: logger,
		sleep:  sleepCtx,
		now:    time.Now,
	}, nil
}

// RunBatch processes every source the ledger does not know yet. The ledger is
// committed after each recorded source; a failed commit is logged and the
// batch continues with the in-memory state.
func (p *Pipeline) RunBatch(ctx context.Context, state *ledger.State, sources []Source) BatchResult {
	res := BatchResult{BatchID: uuid.NewString()}
	log := p.logger.With(zap.String("batch_id", res.BatchID))

	fresh := state.FilterNew(Refs(sources))
	admit := make(map[string]struct{}, len(fresh))
	for _, ref := range fresh {
		admit[ref] = struct{}{}
	}
	log.Info("Batch started",
		zap.Int("sources", len(sources)),
		zap.Int("new", len(fresh)),
		zap.Int("max_origin_id", state.MaxOriginID()))

	attempted := false
	for _, src := range sources {
		if ctx.Err() != nil {
			log.Warn("Batch interrupted", zap.Error(ctx.Err()))
			break
		}
		// A ref is admitted once per batch, whatever its outcome.
		if _, ok := admit[src.Ref]; !ok {
			log.Debug("Skipping known source", zap.String("source", src.Ref))
			p.deps.Metrics.SourcesTotal.WithLabelValues(string(src.Kind()), string(entity.SourceStatusSkipped)).Inc()
			res.add(SourceOutcome{Ref: src.Ref, Status: entity.SourceStatusSkipped})
			continue
		}

		if attempted {
			if err := p.sleep(ctx, p.delayFor(src.Kind())); err != nil {
				log.Warn("Batch interrupted", zap.Error(err))
				break
			}
		}
		attempted = true
		delete(admit, src.Ref)

		res.add(p.runOne(ctx, state, src, log))
	}

	log.Info("Batch finished",
		zap.Int("processed", res.Processed),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
		zap.Int("tables", res.TablesRecorded),
		zap.Int("commit_failures", res.CommitFailures))
	return res
}

func (p *Pipeline) runOne(ctx context.Context, state *ledger.State, src Source, log *zap.Logger) SourceOutcome {
	kind := string(src.Kind())
	id := state.NextID()
	log = log.With(zap.Int("origin_id", id), zap.String("source", src.Ref))
	log.Info("Processing source")

	start := p.now()
	out, err := p.process(ctx, job{src: src, originID: id, storeOrigin: true, log: log})
	p.deps.Metrics.SourceDuration.WithLabelValues(kind).Observe(p.now().Sub(start).Seconds())
	if err != nil {
		p.discard(id, log)
		state.Release(id)
		log.Error("Source failed", zap.Error(err))
		p.deps.Metrics.SourcesTotal.WithLabelValues(kind, string(entity.SourceStatusFailed)).Inc()
		return SourceOutcome{Ref: src.Ref, Status: entity.SourceStatusFailed, Err: err}
	}

	rec := entity.SourceRecord{
		OriginID:    id,
		SourceRef:   src.Ref,
		Title:       out.title,
		ArtifactRef: out.artifact,
		TableCount:  len(out.tables),
		ProcessedAt: p.now().UTC(),
	}
	if err := state.Append(rec, out.tables); err != nil {
		p.discard(id, log)
		state.Release(id)
		log.Error("Source records rejected", zap.Error(err))
		p.deps.Metrics.SourcesTotal.WithLabelValues(kind, string(entity.SourceStatusFailed)).Inc()
		return SourceOutcome{Ref: src.Ref, Status: entity.SourceStatusFailed, Err: err}
	}
	for _, t := range out.tables {
		p.deps.Metrics.TablesTotal.WithLabelValues(string(t.DetectionMethod)).Inc()
	}
	p.deps.Metrics.SourcesTotal.WithLabelValues(kind, string(entity.SourceStatusProcessed)).Inc()

	outcome := SourceOutcome{Ref: src.Ref, OriginID: id, Status: entity.SourceStatusProcessed, Tables: len(out.tables)}
	if err := p.commit(ctx, state); err != nil {
		log.Error("Ledger commit failed, source kept in memory only", zap.Error(err))
		outcome.CommitErr = err
		return outcome
	}
	log.Info("Source recorded", zap.Int("tables", len(out.tables)))

	if p.cfg.RemoveProcessedPDFs && src.Path != "" {
		if err := os.Remove(src.Path); err != nil {
			log.Warn("Could not remove processed PDF", zap.String("path", src.Path), zap.Error(err))
		}
	}
	return outcome
}

// discard removes whatever a failed source wrote under id, so the id can be
// handed to the next source without inheriting its files.
func (p *Pipeline) discard(id int, log *zap.Logger) {
	layout := p.deps.Extractor.Layout()
	if n, err := layout.RemoveOrigin(id); err != nil {
		log.Warn("Origin artifacts of failed source left on disk", zap.Error(err))
	} else if n > 0 {
		log.Debug("Removed origin artifacts of failed source", zap.Int("files", n))
	}
	if n, err := layout.RemoveTableArtifactsFrom(id, 0); err != nil {
		log.Warn("Table artifacts of failed source left on disk", zap.Error(err))
	} else if n > 0 {
		log.Debug("Removed table artifacts of failed source", zap.Int("files", n))
	}
}

func (p *Pipeline) commit(ctx context.Context, state *ledger.State) error {
	if err := ledger.Commit(ctx, p.deps.Store, state); err != nil {
		p.deps.Metrics.CommitsTotal.WithLabelValues("failure").Inc()
		return err
	}
	p.deps.Metrics.CommitsTotal.WithLabelValues("success").Inc()
	return nil
}

func (p *Pipeline) delayFor(kind entity.SourceKind) time.Duration {
	if kind == entity.SourceKindPDF {
		return p.cfg.PDFSourceDelay
	}
	return p.cfg.WebSourceDelay
}

// job is one detection pass over a source.
type job struct {
	src      Source
	originID int
	// strategy overrides the configured strategy for the source's kind.
	strategy detector.Strategy
	// storeOrigin writes the source artifact; reprocessing keeps the old one.
	storeOrigin bool
	log         *zap.Logger
}

type result struct {
	title    string
	artifact string
	tables   []entity.TableRecord
}

func (p *Pipeline) process(ctx context.Context, j job) (result, error) {
	if j.src.Kind() == entity.SourceKindPDF {
		if j.strategy == nil {
			j.strategy = p.pdf
		}
		return p.processPDF(ctx, j)
	}
	if !utils.IsWebURL(j.src.Ref) {
		return result{}, &SourceError{Ref: j.src.Ref, Stage: "parse", Err: ErrNotWebSource}
	}
	if j.strategy == nil {
		j.strategy = p.web
	}
	return p.processWeb(ctx, j)
}

// extractAll writes every candidate in order. Indexes stay dense when a
// region has to be skipped.
func (p *Pipeline) extractAll(ctx context.Context, s detector.Surface, cands []detector.Candidate, originID int, tables []entity.TableRecord) []entity.TableRecord {
	for _, c := range cands {
		rec, ok := p.deps.Extractor.Extract(ctx, s, c, originID, len(tables))
		if ok {
			tables = append(tables, rec)
		}
	}
	return tables
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
