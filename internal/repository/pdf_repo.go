package repository

import (
	"context"
	"image"

	"github.com/user/tablemagnifier/internal/geometry"
)

// PDFTable is one table found by a decoder's geometry detector.
type PDFTable struct {
	// BBox is in document points with a top-left origin.
	BBox geometry.Rect
	// Cells holds best-effort cell text by row; it may be empty.
	Cells [][]string
}

// PDFDocument exposes the per-page capabilities the detectors need.
type PDFDocument interface {
	PageCount() int
	// PageSize returns the width and height of a 1-based page in points.
	PageSize(page int) (width, height float64, err error)
	// Rasterize renders a 1-based page at dpi.
	Rasterize(ctx context.Context, page int, dpi int) (image.Image, error)
	// FindTables runs table-geometry detection on a 1-based page.
	FindTables(page int) ([]PDFTable, error)
	Close() error
}

// PDFDecoder opens PDF files.
type PDFDecoder interface {
	Open(ctx context.Context, path string) (PDFDocument, error)
}
