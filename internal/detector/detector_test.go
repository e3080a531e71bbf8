package detector

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/tablemagnifier/internal/entity"
	"github.com/user/tablemagnifier/internal/geometry"
	"github.com/user/tablemagnifier/internal/repository"
)

func blankPage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

func fill(img *image.Gray, r image.Rectangle) {
	draw.Draw(img, r, image.NewUniform(color.Black), image.Point{}, draw.Src)
}

// drawGrid rules r with 2px lines every step pixels, outer border included.
func drawGrid(img *image.Gray, r image.Rectangle, step int) {
	const thick = 2
	for y := r.Min.Y; y < r.Max.Y; y += step {
		fill(img, image.Rect(r.Min.X, y, r.Max.X, y+thick))
	}
	fill(img, image.Rect(r.Min.X, r.Max.Y-thick, r.Max.X, r.Max.Y))
	for x := r.Min.X; x < r.Max.X; x += step {
		fill(img, image.Rect(x, r.Min.Y, x+thick, r.Max.Y))
	}
	fill(img, image.Rect(r.Max.X-thick, r.Min.Y, r.Max.X, r.Max.Y))
}

func TestMorphologyFindsGrid(t *testing.T) {
	img := blankPage(600, 400)
	grid := image.Rect(100, 100, 400, 250)
	drawGrid(img, grid, 30)

	for name, cfg := range map[string]MorphologyConfig{"loose": LooseMorphology(), "strict": StrictMorphology()} {
		t.Run(name, func(t *testing.T) {
			got := NewImageMorphology(cfg, zap.NewNop()).Detect(context.Background(), &RasterSurface{Image: img})

			require.Len(t, got, 1)
			assert.Greater(t, got[0].Area, 5000.0)
			assert.Equal(t, entity.MethodImageMorphology, got[0].Method)
			assert.True(t, grid.In(got[0].Bounds), "padded crop covers the grid")
			assert.Zero(t, got[0].Rows)
			assert.Zero(t, got[0].Cols)
		})
	}
}

func TestMorphologyLooseBoundsArePadded(t *testing.T) {
	img := blankPage(600, 400)
	drawGrid(img, image.Rect(100, 100, 400, 250), 30)

	got := NewImageMorphology(LooseMorphology(), zap.NewNop()).Detect(context.Background(), &RasterSurface{Image: img, Page: 2})

	require.Len(t, got, 1)
	assert.Equal(t, image.Rect(80, 80, 420, 270), got[0].Bounds)
	assert.Equal(t, "Page 2 Table 1", got[0].Position)
	assert.Equal(t, 2, got[0].Page)
}

func TestMorphologyIgnoresSpeck(t *testing.T) {
	img := blankPage(600, 400)
	fill(img, image.Rect(50, 50, 70, 70))

	for name, cfg := range map[string]MorphologyConfig{"loose": LooseMorphology(), "strict": StrictMorphology()} {
		t.Run(name, func(t *testing.T) {
			got := NewImageMorphology(cfg, zap.NewNop()).Detect(context.Background(), &RasterSurface{Image: img})
			assert.Empty(t, got)
		})
	}
}

func TestMorphologyOrdersByAreaDescending(t *testing.T) {
	img := blankPage(1200, 800)
	small := image.Rect(50, 50, 250, 150)
	large := image.Rect(400, 300, 1000, 600)
	drawGrid(img, small, 25)
	drawGrid(img, large, 50)

	got := NewImageMorphology(LooseMorphology(), zap.NewNop()).Detect(context.Background(), &RasterSurface{Image: img})

	require.Len(t, got, 2)
	assert.True(t, large.In(got[0].Bounds))
	assert.True(t, small.In(got[1].Bounds))
	assert.Greater(t, got[0].Area, got[1].Area)
}

func TestMorphologyStrictRejectsNearFullPage(t *testing.T) {
	img := blankPage(600, 400)
	drawGrid(img, image.Rect(5, 5, 595, 395), 40)

	loose := NewImageMorphology(LooseMorphology(), zap.NewNop()).Detect(context.Background(), &RasterSurface{Image: img})
	strict := NewImageMorphology(StrictMorphology(), zap.NewNop()).Detect(context.Background(), &RasterSurface{Image: img})

	assert.Len(t, loose, 1)
	assert.Empty(t, strict)
}

func TestMorphologyRejectsExtremeAspect(t *testing.T) {
	img := blankPage(1200, 400)
	drawGrid(img, image.Rect(10, 100, 1190, 200), 50) // 11.8:1

	got := NewImageMorphology(LooseMorphology(), zap.NewNop()).Detect(context.Background(), &RasterSurface{Image: img})
	assert.Empty(t, got)
}

func TestMorphologyWithoutRaster(t *testing.T) {
	got := NewImageMorphology(LooseMorphology(), zap.NewNop()).Detect(context.Background(), &PanelSurface{})
	assert.Empty(t, got)
}

func TestMorphologyVariant(t *testing.T) {
	cfg, err := MorphologyVariant("strict")
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.KernelLength)

	_, err = MorphologyVariant("fuzzy")
	assert.Error(t, err)
}

func TestOpeningKeepsLongRunsExactly(t *testing.T) {
	m := newMask(100, 3)
	for x := 10; x < 70; x++ { // 60px run
		m.pix[1*m.w+x] = 255
	}
	for x := 80; x < 95; x++ { // 15px run
		m.pix[1*m.w+x] = 255
	}

	opened := m.open(40, 1)

	for x := 0; x < 100; x++ {
		want := x >= 10 && x < 70
		assert.Equal(t, want, opened.at(x, 1) != 0, "x=%d", x)
	}
}

func TestExternalBlobsFillsHoles(t *testing.T) {
	m := newMask(20, 20)
	for i := 2; i < 12; i++ {
		m.pix[2*m.w+i] = 255
		m.pix[11*m.w+i] = 255
		m.pix[i*m.w+2] = 255
		m.pix[i*m.w+11] = 255
	}
	m.pix[6*m.w+6] = 255 // isolated dot inside the frame

	blobs := externalBlobs(m)

	require.Len(t, blobs, 1, "inner dot is not external")
	assert.Equal(t, image.Rect(2, 2, 12, 12), blobs[0].bounds)
	assert.Equal(t, 100, blobs[0].filled)
}

func TestFullPageFallback(t *testing.T) {
	img := blankPage(300, 200)
	s := WithFullPageFallback(NewImageMorphology(LooseMorphology(), zap.NewNop()))

	got := s.Detect(context.Background(), &RasterSurface{Image: img, Page: 3})

	require.Len(t, got, 1)
	assert.Equal(t, entity.MethodFullPageFallback, got[0].Method)
	assert.Equal(t, img.Bounds(), got[0].Bounds)
	assert.Equal(t, "Page 3 (full page)", got[0].Position)
	assert.Equal(t, entity.MethodImageMorphology, s.Method())
}

func TestFullPageFallbackKeepsFindings(t *testing.T) {
	img := blankPage(600, 400)
	drawGrid(img, image.Rect(100, 100, 400, 250), 30)

	got := WithFullPageFallback(NewImageMorphology(LooseMorphology(), zap.NewNop())).
		Detect(context.Background(), &RasterSurface{Image: img})

	require.Len(t, got, 1)
	assert.Equal(t, entity.MethodImageMorphology, got[0].Method)
}

type fakeDoc struct {
	w, h   float64
	tables []repository.PDFTable
	err    error
}

func (f *fakeDoc) PageCount() int { return 1 }
func (f *fakeDoc) PageSize(int) (float64, float64, error) {
	return f.w, f.h, nil
}
func (f *fakeDoc) Rasterize(context.Context, int, int) (image.Image, error) {
	return nil, errors.New("not used")
}
func (f *fakeDoc) FindTables(int) ([]repository.PDFTable, error) { return f.tables, f.err }
func (f *fakeDoc) Close() error                                   { return nil }

func TestPDFNativeScalesToRaster(t *testing.T) {
	doc := &fakeDoc{w: 612, h: 792, tables: []repository.PDFTable{{
		BBox:  geometry.Rect{X0: 100, Y0: 100, X1: 400, Y1: 300},
		Cells: [][]string{{"a", "b", "c"}, {"1", "2"}},
	}}}
	raster := image.NewGray(image.Rect(0, 0, 2550, 3300))
	surface := &PDFPageSurface{Doc: doc, Page: 1, Image: raster}

	t.Run("unpadded", func(t *testing.T) {
		got := NewPDFNative(PDFNativeConfig{}, zap.NewNop()).Detect(context.Background(), surface)

		require.Len(t, got, 1)
		b := got[0].Bounds
		assert.InDelta(t, 417, b.Min.X, 1)
		assert.InDelta(t, 417, b.Min.Y, 1)
		assert.InDelta(t, 1667, b.Max.X, 1)
		assert.InDelta(t, 1250, b.Max.Y, 1)
		assert.Equal(t, "Page 1 Table 1", got[0].Position)
		assert.Equal(t, 2, got[0].Rows)
		assert.Equal(t, 3, got[0].Cols)
	})

	t.Run("pixel padding and right extension", func(t *testing.T) {
		got := NewPDFNative(DefaultPDFNative(), zap.NewNop()).Detect(context.Background(), surface)

		require.Len(t, got, 1)
		assert.Equal(t, image.Rect(387, 387, 2530, 1280), got[0].Bounds)
	})

	t.Run("point padding clipped to page", func(t *testing.T) {
		edge := &fakeDoc{w: 612, h: 792, tables: []repository.PDFTable{{BBox: geometry.Rect{X0: 5, Y0: 5, X1: 300, Y1: 200}}}}
		got := NewPDFNative(PDFNativeConfig{PaddingPoints: 20}, zap.NewNop()).
			Detect(context.Background(), &PDFPageSurface{Doc: edge, Page: 1, Image: raster})

		require.Len(t, got, 1)
		assert.Equal(t, image.Point{}, got[0].Bounds.Min)
	})
}

func TestPDFNativeNoTables(t *testing.T) {
	raster := image.NewGray(image.Rect(0, 0, 255, 330))

	got := NewPDFNative(DefaultPDFNative(), zap.NewNop()).
		Detect(context.Background(), &PDFPageSurface{Doc: &fakeDoc{w: 612, h: 792}, Page: 1, Image: raster})
	assert.Empty(t, got, "no fallback by default")

	got = NewPDFNative(DefaultPDFNative(), zap.NewNop()).
		Detect(context.Background(), &PDFPageSurface{Doc: &fakeDoc{w: 612, h: 792, err: errors.New("bad xref")}, Page: 1, Image: raster})
	assert.Empty(t, got)

	got = WithFullPageFallback(NewPDFNative(DefaultPDFNative(), zap.NewNop())).
		Detect(context.Background(), &PDFPageSurface{Doc: &fakeDoc{w: 612, h: 792}, Page: 4, Image: raster})
	require.Len(t, got, 1)
	assert.Equal(t, entity.MethodFullPageFallback, got[0].Method)
}

func TestPDFNativeWrongSurface(t *testing.T) {
	got := NewPDFNative(DefaultPDFNative(), zap.NewNop()).
		Detect(context.Background(), &RasterSurface{Image: blankPage(10, 10)})
	assert.Empty(t, got)
}

type scanRenderer struct {
	repository.Renderer
	tables []domTable
	err    error
}

func (r *scanRenderer) Evaluate(_ context.Context, _ string, res any) error {
	if r.err != nil {
		return r.err
	}
	b, err := json.Marshal(r.tables)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, res)
}

func (r *scanRenderer) WaitReady(context.Context, string, time.Duration) error { return nil }

func TestDOMStructuralFilters(t *testing.T) {
	r := &scanRenderer{tables: []domTable{
		{Index: 0, Displayed: true, X: 10, Y: 20, Width: 400, Height: 200, Rows: 5, Cols: 3, Text: "a\nb"},
		{Index: 1, Displayed: false, X: 0, Y: 0, Width: 400, Height: 200},
		{Index: 2, Displayed: true, X: 0, Y: 300, Width: 49, Height: 200},
		{Index: 3, Displayed: true, X: 0, Y: 600, Width: 300, Height: 50, Rows: 1, Cols: 2},
	}}

	got := NewDOMStructural(DefaultDOM(), zap.NewNop()).Detect(context.Background(), &PageSurface{Renderer: r})

	require.Len(t, got, 2)
	assert.Equal(t, `table[data-tm-index="0"]`, got[0].Selector)
	assert.Equal(t, `table[data-tm-index="3"]`, got[1].Selector)
	assert.Equal(t, image.Rect(10, 20, 410, 220), got[0].Bounds)
	assert.Equal(t, "(10, 20)", got[0].Position)
	assert.Equal(t, 5, got[0].Rows)
	assert.Equal(t, 3, got[0].Cols)
	assert.Equal(t, entity.MethodDOMTable, got[1].Method)
}

func TestDOMStructuralScanFailure(t *testing.T) {
	r := &scanRenderer{err: errors.New("target closed")}
	got := NewDOMStructural(DefaultDOM(), zap.NewNop()).Detect(context.Background(), &PageSurface{Renderer: r})
	assert.Empty(t, got)
}

const panelHTML = `<html><body>
<table><tr><td>outside</td></tr></table>
<div class="panel" style="display:none">
  <table>
    <tr><th>Test</th><th>Price</th></tr>
    <tr><td>MRI</td><td>500,000</td></tr>
    <tr><td>CT</td><td>200,000</td></tr>
  </table>
  <table></table>
</div>
<div class="panel">
  <table><tr><td>X</td><td>Y</td><td>Z</td></tr></table>
</div>
</body></html>`

func TestDOMStructuralPanels(t *testing.T) {
	got := NewDOMStructural(DefaultDOM(), zap.NewNop()).Detect(context.Background(), &PanelSurface{HTML: panelHTML})

	require.Len(t, got, 2)

	assert.Equal(t, "panel[0] table[0]", got[0].Position)
	assert.Equal(t, 3, got[0].Rows)
	assert.Equal(t, 2, got[0].Cols)
	assert.Equal(t, [][]string{{"Test", "Price"}, {"MRI", "500,000"}}, got[0].Cells)
	assert.Contains(t, got[0].HTML, "<table>")
	assert.Contains(t, got[0].HTML, "MRI")

	assert.Equal(t, "panel[1] table[0]", got[1].Position)
	assert.Equal(t, 3, got[1].Cols)
}

func TestNewStrategy(t *testing.T) {
	for _, m := range []entity.DetectionMethod{entity.MethodDOMTable, entity.MethodImageMorphology, entity.MethodPDFNativeTable} {
		s, err := NewStrategy(m, DefaultOptions(), zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, m, s.Method())
	}

	_, err := NewStrategy(entity.MethodFullPageFallback, DefaultOptions(), zap.NewNop())
	assert.Error(t, err)
}
