package detector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/user/tablemagnifier/internal/entity"
	"github.com/user/tablemagnifier/internal/geometry"
)

// PDFNativeConfig controls how document-space boxes become pixel crops.
type PDFNativeConfig struct {
	// PaddingPoints grows each box in document space before scaling.
	PaddingPoints float64
	// PaddingPixels grows each box in raster space after scaling.
	PaddingPixels int
	// ExtendRight pushes every crop out to RightMarginPixels short of the
	// raster's right edge so wide tables are never clipped.
	ExtendRight       bool
	RightMarginPixels int
}

func DefaultPDFNative() PDFNativeConfig {
	return PDFNativeConfig{PaddingPixels: 30, ExtendRight: true, RightMarginPixels: 20}
}

// PDFNative maps the decoder's table boxes onto the page raster.
type PDFNative struct {
	cfg    PDFNativeConfig
	logger *zap.Logger
}

func NewPDFNative(cfg PDFNativeConfig, logger *zap.Logger) *PDFNative {
	return &PDFNative{cfg: cfg, logger: logger}
}

func (d *PDFNative) Method() entity.DetectionMethod { return entity.MethodPDFNativeTable }

func (d *PDFNative) Detect(_ context.Context, s Surface) []Candidate {
	ps, ok := s.(*PDFPageSurface)
	if !ok || ps.Doc == nil || ps.Image == nil {
		d.logger.Warn("PDF-native detection needs a document page with a raster",
			zap.String("surface", fmt.Sprintf("%T", s)))
		return nil
	}

	pageW, pageH, err := ps.Doc.PageSize(ps.Page)
	if err != nil {
		d.logger.Warn("Page size unavailable", zap.Error(&Error{Strategy: d.Method(), Page: ps.Page, Err: err}))
		return nil
	}
	tables, err := ps.Doc.FindTables(ps.Page)
	if err != nil {
		d.logger.Warn("Table geometry detection failed", zap.Error(&Error{Strategy: d.Method(), Page: ps.Page, Err: err}))
		return nil
	}

	bounds := ps.Image.Bounds()
	page := geometry.Rect{X1: pageW, Y1: pageH}
	scale := geometry.ScaleBetween(pageW, pageH, bounds)

	var out []Candidate
	for i, t := range tables {
		box := t.BBox
		if d.cfg.PaddingPoints > 0 {
			box = box.Pad(d.cfg.PaddingPoints).Clip(page)
		}
		if box.Empty() {
			continue
		}
		px := scale.ToPixels(box).Add(bounds.Min)
		px = geometry.PadPixels(px, d.cfg.PaddingPixels, bounds)
		if d.cfg.ExtendRight {
			px = geometry.ExtendRight(px, bounds, d.cfg.RightMarginPixels)
		}
		if px.Empty() {
			continue
		}

		rows, cols := cellShape(t.Cells)
		out = append(out, Candidate{
			Method:   d.Method(),
			Bounds:   px,
			Area:     float64(geometry.Area(px)),
			Page:     ps.Page,
			Position: fmt.Sprintf("Page %d Table %d", ps.Page, i+1),
			Rows:     rows,
			Cols:     cols,
			Cells:    t.Cells,
		})
	}
	d.logger.Debug("PDF-native detection finished",
		zap.Int("page", ps.Page), zap.Int("tables", len(tables)), zap.Int("candidates", len(out)))
	return out
}

func cellShape(cells [][]string) (rows, cols int) {
	for _, r := range cells {
		cols = max(cols, len(r))
	}
	return len(cells), cols
}
