package usecase

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/user/tablemagnifier/internal/detector"
	"github.com/user/tablemagnifier/internal/entity"
	"github.com/user/tablemagnifier/internal/ledger"
	"github.com/user/tablemagnifier/internal/repository"
)

// ReprocessResult describes one reprocessed origin.
type ReprocessResult struct {
	OriginID        int
	Method          entity.DetectionMethod
	PreviousTables  int
	Tables          int
	RemovedArtifact int
}

// Reprocess reruns detection for an origin already in the ledger, replacing
// its table records and nothing else. Stale table images beyond the new count
// are removed. Unlike RunBatch, the commit error is returned.
func (p *Pipeline) Reprocess(ctx context.Context, state *ledger.State, originID int, method entity.DetectionMethod) (ReprocessResult, error) {
	res := ReprocessResult{OriginID: originID, Method: method}
	src, ok := state.Source(originID)
	if !ok {
		return res, fmt.Errorf("%w: %d", repository.ErrOriginNotFound, originID)
	}
	res.PreviousTables = len(state.TablesFor(originID))

	strategy, err := detector.NewStrategy(method, p.cfg.Detection, p.logger)
	if err != nil {
		return res, err
	}
	log := p.logger.With(zap.Int("origin_id", originID), zap.String("source", src.SourceRef), zap.String("strategy", string(method)))

	input := Source{Ref: src.SourceRef}
	if src.Kind() == entity.SourceKindPDF {
		if method == entity.MethodDOMTable {
			return res, fmt.Errorf("%q cannot run on PDF pages", method)
		}
		path, err := p.locatePDF(src)
		if err != nil {
			return res, &SourceError{Ref: src.SourceRef, Stage: "locate", Err: err}
		}
		input.Path = path
	}

	log.Info("Reprocessing origin", zap.Int("previous_tables", res.PreviousTables))
	out, err := p.process(ctx, job{src: input, originID: originID, strategy: strategy, log: log})
	if err != nil {
		return res, err
	}

	if _, err := state.ReplaceTables(originID, out.tables); err != nil {
		return res, err
	}
	res.Tables = len(out.tables)

	removed, err := p.deps.Extractor.Layout().RemoveTableArtifactsFrom(originID, res.Tables)
	if err != nil {
		log.Warn("Stale table images not removed", zap.Error(err))
	}
	res.RemovedArtifact = removed

	if err := p.commit(ctx, state); err != nil {
		return res, err
	}
	log.Info("Origin reprocessed", zap.Int("tables", res.Tables), zap.Int("removed_artifacts", removed))
	return res, nil
}

// locatePDF finds the document behind a PDF ref: the stored origin copy first,
// then the inbox.
func (p *Pipeline) locatePDF(src entity.SourceRecord) (string, error) {
	candidates := []string{}
	if strings.EqualFold(filepath.Ext(src.ArtifactRef), ".pdf") {
		candidates = append(candidates, src.ArtifactRef)
	}
	if name, ok := entity.PDFFileName(src.SourceRef); ok && p.cfg.PDFInboxDir != "" {
		candidates = append(candidates, filepath.Join(p.cfg.PDFInboxDir, name))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: no copy of %s found", fs.ErrNotExist, src.SourceRef)
}
