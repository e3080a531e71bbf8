package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/user/tablemagnifier/internal/detector"
	"github.com/user/tablemagnifier/internal/repository"
)

var errNoPages = errors.New("no page could be rendered")

func (p *Pipeline) processPDF(ctx context.Context, j job) (res result, err error) {
	if p.deps.PDFs == nil {
		return res, &SourceError{Ref: j.src.Ref, Stage: "open", Err: repository.ErrDecodeFailed}
	}
	doc, err := p.deps.PDFs.Open(ctx, j.src.Path)
	if err != nil {
		return res, &SourceError{Ref: j.src.Ref, Stage: "open", Err: err}
	}
	defer func() {
		if cerr := doc.Close(); cerr != nil {
			j.log.Warn("PDF did not close cleanly", zap.Error(cerr))
		}
	}()

	res.title = strings.TrimSuffix(filepath.Base(j.src.Path), filepath.Ext(j.src.Path))
	if j.storeOrigin {
		if res.artifact, err = p.deps.Extractor.Layout().CopyOrigin(j.originID, j.src.Path); err != nil {
			j.log.Warn("Origin PDF not copied", zap.Error(err))
		}
	}

	pages := doc.PageCount()
	rendered := 0
	for page := 1; page <= pages; page++ {
		if ctx.Err() != nil {
			return res, &SourceError{Ref: j.src.Ref, Stage: "rasterize", Err: ctx.Err()}
		}
		img, err := doc.Rasterize(ctx, page, p.cfg.DPI)
		if err != nil {
			j.log.Warn("Page skipped",
				zap.Error(&detector.Error{Strategy: j.strategy.Method(), Page: page, Err: err}))
			continue
		}
		rendered++

		surface := &detector.PDFPageSurface{Doc: doc, Page: page, Image: img}
		cands := j.strategy.Detect(ctx, surface)
		j.log.Debug("Page scanned", zap.Int("page", page), zap.Int("candidates", len(cands)))
		res.tables = p.extractAll(ctx, surface, cands, j.originID, res.tables)
	}

	if pages > 0 && rendered == 0 {
		return res, &SourceError{Ref: j.src.Ref, Stage: "rasterize", Err: fmt.Errorf("%w: %d pages", errNoPages, pages)}
	}
	j.log.Info("PDF scanned", zap.Int("pages", pages), zap.Int("tables", len(res.tables)))
	return res, nil
}
