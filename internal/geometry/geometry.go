// Package geometry holds the rectangle, scale and padding helpers shared by the
// detection strategies. Document boxes are float points with a top-left origin;
// pixel boxes use image.Rectangle.
package geometry

import (
	"image"
	"math"
)

// Rect is a box in document points with a top-left origin.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// FromBottomLeft converts a PDF box (x, bottom, width, height) into a top-left
// origin Rect on a page of the given height.
func FromBottomLeft(x, bottom, width, height, pageHeight float64) Rect {
	top := pageHeight - (bottom + height)
	return Rect{X0: x, Y0: top, X1: x + width, Y1: top + height}
}

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Empty reports whether the rect has no area.
func (r Rect) Empty() bool {
	return r.X1 <= r.X0 || r.Y1 <= r.Y0
}

// Pad grows the rect by p on every side.
func (r Rect) Pad(p float64) Rect {
	return Rect{X0: r.X0 - p, Y0: r.Y0 - p, X1: r.X1 + p, Y1: r.Y1 + p}
}

// Clip limits the rect to bounds. The result may be Empty.
func (r Rect) Clip(bounds Rect) Rect {
	return Rect{
		X0: math.Max(r.X0, bounds.X0),
		Y0: math.Max(r.Y0, bounds.Y0),
		X1: math.Min(r.X1, bounds.X1),
		Y1: math.Min(r.Y1, bounds.Y1),
	}
}

// Scale maps document points onto raster pixels. X and Y are independent so a
// raster that was not rendered at a uniform DPI still lines up.
type Scale struct {
	X, Y float64
}

// ScaleBetween derives the factors from a page size in points and the raster
// bounds it was rendered to.
func ScaleBetween(pageWidth, pageHeight float64, raster image.Rectangle) Scale {
	if pageWidth <= 0 || pageHeight <= 0 {
		return Scale{X: 1, Y: 1}
	}
	return Scale{
		X: float64(raster.Dx()) / pageWidth,
		Y: float64(raster.Dy()) / pageHeight,
	}
}

// ToPixels scales r and rounds each edge to the nearest pixel.
func (s Scale) ToPixels(r Rect) image.Rectangle {
	return image.Rect(
		int(math.Round(r.X0*s.X)),
		int(math.Round(r.Y0*s.Y)),
		int(math.Round(r.X1*s.X)),
		int(math.Round(r.Y1*s.Y)),
	)
}

// PadPixels grows r by p pixels on every side and clips it to bounds.
func PadPixels(r image.Rectangle, p int, bounds image.Rectangle) image.Rectangle {
	return image.Rect(r.Min.X-p, r.Min.Y-p, r.Max.X+p, r.Max.Y+p).Intersect(bounds)
}

// ExtendRight pushes the right edge out to margin pixels short of the bounds'
// right border, never pulling it in.
func ExtendRight(r image.Rectangle, bounds image.Rectangle, margin int) image.Rectangle {
	edge := bounds.Max.X - margin
	if edge > r.Max.X {
		r.Max.X = edge
	}
	return r.Intersect(bounds)
}

// AspectRatio is width over height; zero for a degenerate box.
func AspectRatio(r image.Rectangle) float64 {
	if r.Dy() == 0 {
		return 0
	}
	return float64(r.Dx()) / float64(r.Dy())
}

// Area returns the pixel area of r.
func Area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}
