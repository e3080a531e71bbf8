// Package pdf adapts the tabula PDF reader and poppler's pdftoppm to the
// repository.PDFDecoder contract.
package pdf

import (
	"context"
	"fmt"
	"image"
	"sort"
	"strings"

	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/graphicsstate"
	"github.com/tsawler/tabula/model"
	"github.com/tsawler/tabula/reader"
	"github.com/tsawler/tabula/tables"
	"go.uber.org/zap"

	"github.com/user/tablemagnifier/internal/geometry"
	"github.com/user/tablemagnifier/internal/repository"
)

const (
	// minGridConfidence drops weak ruled-grid hypotheses.
	minGridConfidence = 0.5
	// maxOverlap is the share of a text-aligned table that may coincide with
	// an accepted grid before it counts as the same table.
	maxOverlap = 0.5
)

// Decoder opens PDFs with tabula for geometry and pdftoppm for pixels.
type Decoder struct {
	raster *Rasterizer
	logger *zap.Logger
}

func NewDecoder(raster *Rasterizer, logger *zap.Logger) *Decoder {
	return &Decoder{raster: raster, logger: logger}
}

func (d *Decoder) Open(_ context.Context, path string) (repository.PDFDocument, error) {
	r, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", repository.ErrDecodeFailed, path, err)
	}
	n, err := r.PageCount()
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("%w: page count of %s: %w", repository.ErrDecodeFailed, path, err)
	}
	return &document{path: path, reader: r, pages: n, raster: d.raster, logger: d.logger}, nil
}

type document struct {
	path   string
	reader *reader.Reader
	pages  int
	raster *Rasterizer
	logger *zap.Logger
}

func (d *document) PageCount() int { return d.pages }

func (d *document) PageSize(page int) (float64, float64, error) {
	p, err := d.reader.GetPage(page - 1)
	if err != nil {
		return 0, 0, fmt.Errorf("page %d: %w", page, err)
	}
	w, err := p.Width()
	if err != nil {
		return 0, 0, fmt.Errorf("page %d width: %w", page, err)
	}
	h, err := p.Height()
	if err != nil {
		return 0, 0, fmt.Errorf("page %d height: %w", page, err)
	}
	return w, h, nil
}

func (d *document) Rasterize(ctx context.Context, page, dpi int) (image.Image, error) {
	return d.raster.RenderPage(ctx, d.path, page, dpi)
}

// FindTables combines ruled-grid detection with text-alignment detection.
// Grids win where both find the same table.
func (d *document) FindTables(page int) ([]repository.PDFTable, error) {
	p, err := d.reader.GetPage(page - 1)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", page, err)
	}
	w, h, err := d.PageSize(page)
	if err != nil {
		return nil, err
	}

	frags, err := d.reader.ExtractTextFragments(p)
	if err != nil {
		return nil, fmt.Errorf("page %d text: %w", page, err)
	}
	content, err := pageContent(p.Contents)
	if err != nil {
		return nil, fmt.Errorf("page %d content: %w", page, err)
	}
	ge := graphicsstate.NewGraphicsExtractor()
	if err := ge.ExtractFromBytes(content); err != nil {
		return nil, fmt.Errorf("page %d graphics: %w", page, err)
	}

	mp := model.NewPage(w, h)
	mp.Number = page
	for _, f := range frags {
		mp.RawText = append(mp.RawText, model.TextFragment{
			Text:     f.Text,
			BBox:     model.NewBBox(f.X, f.Y, f.Width, f.Height),
			FontSize: f.FontSize,
			FontName: f.FontName,
		})
	}
	mp.RawLines = append(ge.ToModelLines(), ge.ToModelRectangles()...)

	var found []repository.PDFTable
	var taken []model.BBox
	for _, g := range tables.DetectGrids(ge).Hypotheses {
		if g.Confidence < minGridConfidence {
			continue
		}
		taken = append(taken, g.BBox)
		found = append(found, repository.PDFTable{
			BBox:  toRect(g.BBox, h),
			Cells: gridCells(g.HorizontalLines, g.VerticalLines, mp.RawText),
		})
	}

	aligned, err := tables.NewGeometricDetector().Detect(mp)
	if err != nil {
		d.logger.Debug("Text-alignment table detection failed", zap.Int("page", page), zap.Error(err))
	}
	for _, t := range aligned {
		if overlapsAny(t.BBox, taken) {
			continue
		}
		found = append(found, repository.PDFTable{BBox: toRect(t.BBox, h), Cells: tableCells(t)})
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].BBox.Y0 != found[j].BBox.Y0 {
			return found[i].BBox.Y0 < found[j].BBox.Y0
		}
		return found[i].BBox.X0 < found[j].BBox.X0
	})
	return found, nil
}

func (d *document) Close() error {
	return d.reader.Close()
}

// pageContent concatenates a page's decoded content streams.
func pageContent(contents func() ([]core.Object, error)) ([]byte, error) {
	objs, err := contents()
	if err != nil {
		return nil, err
	}
	var data []byte
	for _, obj := range objs {
		stream, ok := obj.(*core.Stream)
		if !ok {
			continue
		}
		b, err := stream.Decode()
		if err != nil {
			return nil, err
		}
		data = append(data, b...)
	}
	return data, nil
}

func toRect(b model.BBox, pageHeight float64) geometry.Rect {
	return geometry.FromBottomLeft(b.X, b.Y, b.Width, b.Height, pageHeight)
}

func overlapsAny(b model.BBox, others []model.BBox) bool {
	for _, o := range others {
		if b.OverlapRatio(o) > maxOverlap {
			return true
		}
	}
	return false
}

func tableCells(t *model.Table) [][]string {
	out := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		line := make([]string, len(row))
		for i, c := range row {
			line[i] = strings.TrimSpace(c.Text)
		}
		out = append(out, line)
	}
	return out
}

// gridCells buckets text fragments into the cells of a ruled grid.
// horizontals are row boundaries top to bottom (descending PDF y); verticals
// are column boundaries left to right.
func gridCells(horizontals, verticals []float64, frags []model.TextFragment) [][]string {
	if len(horizontals) < 2 || len(verticals) < 2 {
		return nil
	}
	rows, cols := len(horizontals)-1, len(verticals)-1
	parts := make([][][]string, rows)
	for i := range parts {
		parts[i] = make([][]string, cols)
	}

	for _, f := range frags {
		c := f.BBox.Center()
		r := sort.Search(rows, func(i int) bool { return c.Y >= horizontals[i+1] })
		k := sort.Search(cols, func(i int) bool { return c.X < verticals[i+1] })
		if r >= rows || k >= cols || c.Y > horizontals[0] || c.X < verticals[0] {
			continue
		}
		parts[r][k] = append(parts[r][k], strings.TrimSpace(f.Text))
	}

	out := make([][]string, rows)
	for i := range parts {
		out[i] = make([]string, cols)
		for j := range parts[i] {
			out[i][j] = strings.Join(parts[i][j], " ")
		}
	}
	return out
}
