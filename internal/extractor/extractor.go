// Package extractor turns detected regions into table images on disk and the
// ledger rows that describe them.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"

	"go.uber.org/zap"

	"github.com/user/tablemagnifier/internal/detector"
	"github.com/user/tablemagnifier/internal/entity"
	"github.com/user/tablemagnifier/internal/repository"
)

var (
	errEmptyCrop  = errors.New("crop region is empty")
	errNoSource   = errors.New("candidate has no capturable source")
	errNoRenderer = errors.New("surface has no renderer")
)

// Error describes a failed capture. The extractor logs it and falls back to a
// placeholder image.
type Error struct {
	OriginID   int
	TableIndex int
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract table %d of origin %d: %v", e.TableIndex, e.OriginID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config tunes previews.
type Config struct {
	// PreviewRows is how many rows of cell text go into a preview.
	PreviewRows int
	// PreviewLimit caps previews, in characters.
	PreviewLimit int
}

func DefaultConfig() Config {
	return Config{PreviewRows: 2, PreviewLimit: 200}
}

// Extractor captures candidates and writes them under a Layout.
type Extractor struct {
	layout    Layout
	cfg       Config
	logger    *zap.Logger
	writeFile func(path string, data []byte) error
}

func New(layout Layout, cfg Config, logger *zap.Logger) *Extractor {
	return &Extractor{
		layout: layout,
		cfg:    cfg,
		logger: logger,
		writeFile: func(path string, data []byte) error {
			return os.WriteFile(path, data, 0o644)
		},
	}
}

// Layout returns the artifact layout the extractor writes into.
func (e *Extractor) Layout() Layout { return e.layout }

// Extract writes the image for c as table index of originID and returns its
// ledger row. It reports false only when neither the capture nor a placeholder
// could be written, in which case the region is skipped.
func (e *Extractor) Extract(ctx context.Context, s detector.Surface, c detector.Candidate, originID, index int) (entity.TableRecord, bool) {
	path := e.layout.TableArtifact(originID, index)
	rec := entity.TableRecord{
		OriginID:        originID,
		TableIndex:      index,
		ImageRef:        path,
		Rows:            c.Rows,
		Cols:            c.Cols,
		PositionTag:     c.Position,
		PreviewText:     e.preview(c),
		DetectionMethod: c.Method,
	}

	data, size, err := e.capture(ctx, s, c)
	if err == nil {
		err = e.writeFile(path, data)
	}
	if err == nil {
		rec.PixelWidth, rec.PixelHeight = size.X, size.Y
		return rec, true
	}

	e.logger.Warn("Table capture failed, writing placeholder",
		zap.Error(&Error{OriginID: originID, TableIndex: index, Err: err}),
		zap.String("position", c.Position))

	data, size, err = placeholder(index, c.Rows, c.Cols)
	if err == nil {
		err = e.writeFile(path, data)
	}
	if err != nil {
		e.logger.Error("Placeholder write failed, skipping table",
			zap.Error(&Error{OriginID: originID, TableIndex: index, Err: err}))
		return entity.TableRecord{}, false
	}
	rec.PixelWidth, rec.PixelHeight = size.X, size.Y
	return rec, true
}

func (e *Extractor) capture(ctx context.Context, s detector.Surface, c detector.Candidate) ([]byte, image.Point, error) {
	switch {
	case c.Selector != "":
		r, err := rendererOf(s)
		if err != nil {
			return nil, image.Point{}, err
		}
		data, err := r.ElementScreenshot(ctx, c.Selector)
		if err != nil {
			return nil, image.Point{}, err
		}
		return data, pngSize(data, c.Bounds.Size()), nil

	case c.HTML != "":
		r, err := rendererOf(s)
		if err != nil {
			return nil, image.Point{}, err
		}
		if err := r.SetContent(ctx, standalonePage(c.HTML)); err != nil {
			return nil, image.Point{}, err
		}
		data, err := r.ElementScreenshot(ctx, "table")
		if err != nil {
			return nil, image.Point{}, err
		}
		return data, pngSize(data, image.Point{}), nil
	}

	img, ok := detector.Raster(s)
	if !ok {
		return nil, image.Point{}, errNoSource
	}
	sub, err := crop(img, c.Bounds)
	if err != nil {
		return nil, image.Point{}, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, sub); err != nil {
		return nil, image.Point{}, fmt.Errorf("encode crop: %w", err)
	}
	return buf.Bytes(), sub.Bounds().Size(), nil
}

func rendererOf(s detector.Surface) (repository.Renderer, error) {
	var r repository.Renderer
	switch v := s.(type) {
	case *detector.PageSurface:
		r = v.Renderer
	case *detector.PanelSurface:
		r = v.Renderer
	}
	if r == nil {
		return nil, errNoRenderer
	}
	return r, nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// crop clips r to img and returns that part of the image.
func crop(img image.Image, r image.Rectangle) (image.Image, error) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return nil, errEmptyCrop
	}
	if si, ok := img.(subImager); ok {
		return si.SubImage(r), nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst, nil
}

// pngSize reads the dimensions from PNG bytes, or returns fallback.
func pngSize(data []byte, fallback image.Point) image.Point {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fallback
	}
	return image.Pt(cfg.Width, cfg.Height)
}

const standaloneTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { margin: 0; padding: 20px; background: #ffffff; font-family: "Malgun Gothic", "Apple SD Gothic Neo", "Noto Sans CJK KR", sans-serif; }
table { border-collapse: collapse; background: #ffffff; }
th, td { border: 1px solid #999999; padding: 6px 10px; font-size: 14px; text-align: left; }
th { background: #f2f2f2; font-weight: bold; }
</style>
</head>
<body>%s</body>
</html>`

func standalonePage(tableHTML string) string {
	return fmt.Sprintf(standaloneTemplate, tableHTML)
}
