// Package detector locates table regions on a rendered surface. Three
// strategies share one interface: DOM-structural discovery on a live page,
// line morphology on a raster image, and a PDF decoder's own table geometry.
package detector

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/user/tablemagnifier/internal/entity"
	"github.com/user/tablemagnifier/internal/repository"
)

var (
	errNoRaster   = errors.New("surface has no raster image")
	errNoRenderer = errors.New("surface has no renderer")
)

// Strategy finds candidate table regions on a surface. Detect never fails:
// internal errors are logged and produce no candidates for the affected page.
type Strategy interface {
	Method() entity.DetectionMethod
	Detect(ctx context.Context, s Surface) []Candidate
}

// Surface is something a strategy can inspect.
type Surface interface {
	// Bounds is the pixel extent used for clipping and full-page fallback.
	Bounds() image.Rectangle
	// PageNumber is the 1-based page for documents, 0 for web surfaces.
	PageNumber() int
}

// PageSurface is a web page loaded in a live renderer.
type PageSurface struct {
	Renderer repository.Renderer
	// Screenshot is the full-page capture, used by raster strategies and the
	// full-page fallback. It may be nil for DOM-only detection.
	Screenshot image.Image
	// Size is the full scrollable page size in CSS pixels.
	Size image.Point
}

func (p *PageSurface) Bounds() image.Rectangle {
	if p.Screenshot != nil {
		return p.Screenshot.Bounds()
	}
	return image.Rectangle{Max: p.Size}
}

func (p *PageSurface) PageNumber() int { return 0 }

// PanelSurface is raw page HTML whose tables sit in collapsed panels. The
// renderer is used to draw each table on its own.
type PanelSurface struct {
	Renderer repository.Renderer
	HTML     string
}

func (p *PanelSurface) Bounds() image.Rectangle { return image.Rectangle{} }
func (p *PanelSurface) PageNumber() int         { return 0 }

// RasterSurface is a plain image, such as one rasterized PDF page.
type RasterSurface struct {
	Image image.Image
	Page  int
}

func (r *RasterSurface) Bounds() image.Rectangle { return r.Image.Bounds() }
func (r *RasterSurface) PageNumber() int         { return r.Page }

// PDFPageSurface is one page of an open document together with its raster.
type PDFPageSurface struct {
	Doc   repository.PDFDocument
	Page  int
	Image image.Image
}

func (p *PDFPageSurface) Bounds() image.Rectangle { return p.Image.Bounds() }
func (p *PDFPageSurface) PageNumber() int         { return p.Page }

// Raster returns the image behind a surface, if it has one.
func Raster(s Surface) (image.Image, bool) {
	switch v := s.(type) {
	case *RasterSurface:
		return v.Image, v.Image != nil
	case *PDFPageSurface:
		return v.Image, v.Image != nil
	case *PageSurface:
		return v.Screenshot, v.Screenshot != nil
	}
	return nil, false
}

// Candidate is one hypothesised table region.
type Candidate struct {
	Method entity.DetectionMethod
	// Bounds is the pixel box on the surface, padding included.
	Bounds image.Rectangle
	// Area orders candidates; for morphology it is the filled contour area.
	Area     float64
	Page     int
	Position string

	// Selector addresses a live DOM element for an element screenshot.
	Selector string
	// HTML is a standalone table document for panel rendering.
	HTML string

	Rows, Cols int
	Text       string
	Cells      [][]string
}

// Error describes a failure inside a strategy. It is only ever logged.
type Error struct {
	Strategy entity.DetectionMethod
	Page     int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s detection on page %d: %v", e.Strategy, e.Page, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
