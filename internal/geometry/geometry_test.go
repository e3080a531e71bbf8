package geometry

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScaleToPixels(t *testing.T) {
	raster := image.Rect(0, 0, 2550, 3300)
	s := ScaleBetween(612, 792, raster)

	got := s.ToPixels(Rect{X0: 100, Y0: 100, X1: 400, Y1: 300})

	assert.InDelta(t, 417, got.Min.X, 1)
	assert.InDelta(t, 417, got.Min.Y, 1)
	assert.InDelta(t, 1667, got.Max.X, 1)
	assert.InDelta(t, 1250, got.Max.Y, 1)
}

func TestScaleBetweenDegeneratePage(t *testing.T) {
	assert.Equal(t, Scale{X: 1, Y: 1}, ScaleBetween(0, 792, image.Rect(0, 0, 10, 10)))
}

func TestFromBottomLeft(t *testing.T) {
	r := FromBottomLeft(100, 492, 300, 200, 792)
	assert.Equal(t, Rect{X0: 100, Y0: 100, X1: 400, Y1: 300}, r)
}

func TestRectPadAndClip(t *testing.T) {
	page := Rect{X1: 612, Y1: 792}

	tests := []struct {
		name string
		in   Rect
		want Rect
	}{
		{"interior", Rect{X0: 100, Y0: 100, X1: 200, Y1: 200}, Rect{X0: 80, Y0: 80, X1: 220, Y1: 220}},
		{"top left corner", Rect{X0: 5, Y0: 5, X1: 50, Y1: 50}, Rect{X0: 0, Y0: 0, X1: 70, Y1: 70}},
		{"bottom right corner", Rect{X0: 600, Y0: 780, X1: 612, Y1: 792}, Rect{X0: 580, Y0: 760, X1: 612, Y1: 792}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Pad(20).Clip(page))
		})
	}
}

func TestRectEmpty(t *testing.T) {
	assert.True(t, Rect{X0: 10, X1: 10, Y1: 5}.Empty())
	assert.False(t, Rect{X1: 1, Y1: 1}.Empty())
	assert.True(t, Rect{X0: 700, Y0: 0, X1: 800, Y1: 10}.Clip(Rect{X1: 612, Y1: 792}).Empty())
}

func TestPadPixels(t *testing.T) {
	bounds := image.Rect(0, 0, 1000, 800)

	assert.Equal(t, image.Rect(70, 70, 330, 230), PadPixels(image.Rect(100, 100, 300, 200), 30, bounds))
	assert.Equal(t, image.Rect(0, 0, 1000, 800), PadPixels(image.Rect(10, 10, 990, 790), 30, bounds))
}

func TestExtendRight(t *testing.T) {
	bounds := image.Rect(0, 0, 2550, 3300)

	got := ExtendRight(image.Rect(400, 400, 1700, 1300), bounds, 20)
	assert.Equal(t, image.Rect(400, 400, 2530, 1300), got)

	wide := ExtendRight(image.Rect(400, 400, 2545, 1300), bounds, 20)
	assert.Equal(t, 2545, wide.Max.X, "edge never pulled in")
}

func TestAspectRatioAndArea(t *testing.T) {
	r := image.Rect(0, 0, 300, 150)
	assert.Equal(t, 2.0, AspectRatio(r))
	assert.Equal(t, 45000, Area(r))
	assert.Zero(t, AspectRatio(image.Rect(0, 0, 10, 0)))
}
