package pdf

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/model"

	"github.com/user/tablemagnifier/internal/geometry"
)

func frag(text string, x, y float64) model.TextFragment {
	return model.TextFragment{Text: text, BBox: model.NewBBox(x, y, 10, 8)}
}

func TestGridCells(t *testing.T) {
	// two rows (700..650, 650..600), two columns (100..200, 200..300)
	h := []float64{700, 650, 600}
	v := []float64{100, 200, 300}
	frags := []model.TextFragment{
		frag("Drug", 110, 670),
		frag("Dose", 210, 670),
		frag("Aspirin", 110, 620),
		frag("100", 210, 620),
		frag("mg", 240, 620),
		frag("outside", 400, 620),
		frag("above", 110, 750),
	}

	cells := gridCells(h, v, frags)
	assert.Equal(t, [][]string{
		{"Drug", "Dose"},
		{"Aspirin", "100 mg"},
	}, cells)
}

func TestGridCellsDegenerate(t *testing.T) {
	assert.Nil(t, gridCells([]float64{700}, []float64{100, 200}, nil))
	assert.Nil(t, gridCells([]float64{700, 600}, []float64{100}, nil))
}

func TestToRectFlipsOrigin(t *testing.T) {
	r := toRect(model.NewBBox(100, 600, 200, 100), 792)
	assert.Equal(t, geometry.Rect{X0: 100, Y0: 92, X1: 300, Y1: 192}, r)
}

func TestOverlapsAny(t *testing.T) {
	grid := model.NewBBox(100, 100, 200, 200)
	assert.True(t, overlapsAny(model.NewBBox(110, 110, 180, 180), []model.BBox{grid}))
	assert.False(t, overlapsAny(model.NewBBox(500, 500, 50, 50), []model.BBox{grid}))
	assert.False(t, overlapsAny(grid, nil))
}

func TestTableCells(t *testing.T) {
	tbl := &model.Table{Rows: [][]model.Cell{
		{{Text: " a "}, {Text: "b"}},
		{{Text: "c"}},
	}}
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, tableCells(tbl))
}

func TestPageContentError(t *testing.T) {
	_, err := pageContent(func() ([]core.Object, error) { return nil, errors.New("boom") })
	assert.EqualError(t, err, "boom")

	data, err := pageContent(func() ([]core.Object, error) { return nil, nil })
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestPdftoppmArgs(t *testing.T) {
	args := pdftoppmArgs("in.pdf", "/tmp/x/page", 3, 300)
	assert.Equal(t, []string{"-png", "-r", "300", "-f", "3", "-l", "3", "-singlefile", "-q", "in.pdf", "/tmp/x/page"}, args)
}

func TestRasterizerMissingBinary(t *testing.T) {
	r := NewRasterizer("tablemagnifier-no-such-pdftoppm", time.Second)
	assert.Error(t, r.Available())

	_, err := r.RenderPage(context.Background(), "missing.pdf", 1, 72)
	assert.Error(t, err)
}

func TestNewRasterizerDefaultBinary(t *testing.T) {
	assert.Equal(t, "pdftoppm", NewRasterizer("", 0).bin)
}
