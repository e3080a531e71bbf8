package detector

import (
	"context"
	"fmt"
	"image"
	"sort"

	"go.uber.org/zap"

	"github.com/user/tablemagnifier/internal/entity"
	"github.com/user/tablemagnifier/internal/geometry"
)

// ThresholdMode selects how a grayscale image is binarised.
type ThresholdMode string

const (
	ThresholdFixed    ThresholdMode = "fixed"
	ThresholdAdaptive ThresholdMode = "adaptive"
)

// MorphologyConfig tunes the line-structure detector.
type MorphologyConfig struct {
	Threshold     ThresholdMode
	FixedLevel    uint8
	AdaptiveBlock int
	AdaptiveC     float64

	// KernelLength is the length of the 1-pixel line kernels.
	KernelLength     int
	CloseSize        int
	DilateIterations int

	MinArea              float64
	MinAspect, MaxAspect float64
	MinWidth, MinHeight  int
	// MaxPageFraction rejects boxes at least this share of the page in either
	// dimension. Zero disables the check.
	MaxPageFraction float64

	Padding int
}

// LooseMorphology accepts most line-framed boxes.
func LooseMorphology() MorphologyConfig {
	return MorphologyConfig{
		Threshold:    ThresholdFixed,
		FixedLevel:   128,
		KernelLength: 40,
		CloseSize:    3,
		MinArea:      5000,
		MinAspect:    0.3,
		MaxAspect:    10,
		Padding:      20,
	}
}

// StrictMorphology trades recall for fewer false positives.
func StrictMorphology() MorphologyConfig {
	return MorphologyConfig{
		Threshold:        ThresholdAdaptive,
		AdaptiveBlock:    15,
		AdaptiveC:        10,
		KernelLength:     50,
		CloseSize:        3,
		DilateIterations: 2,
		MinArea:          10000,
		MinAspect:        0.5,
		MaxAspect:        5,
		MinWidth:         200,
		MinHeight:        100,
		MaxPageFraction:  0.95,
		Padding:          20,
	}
}

// MorphologyVariant returns the named preset.
func MorphologyVariant(name string) (MorphologyConfig, error) {
	switch name {
	case "", "loose":
		return LooseMorphology(), nil
	case "strict":
		return StrictMorphology(), nil
	}
	return MorphologyConfig{}, fmt.Errorf("unknown morphology variant %q", name)
}

// ImageMorphology finds ruled tables in a raster by isolating long horizontal
// and vertical strokes and boxing what they enclose.
type ImageMorphology struct {
	cfg    MorphologyConfig
	logger *zap.Logger
}

func NewImageMorphology(cfg MorphologyConfig, logger *zap.Logger) *ImageMorphology {
	return &ImageMorphology{cfg: cfg, logger: logger}
}

func (d *ImageMorphology) Method() entity.DetectionMethod { return entity.MethodImageMorphology }

func (d *ImageMorphology) Detect(_ context.Context, s Surface) []Candidate {
	img, ok := Raster(s)
	if !ok {
		d.logger.Warn("Surface has no raster, skipping morphology",
			zap.Error(&Error{Strategy: d.Method(), Page: s.PageNumber(), Err: errNoRaster}))
		return nil
	}

	regions := d.regions(img)
	bounds := img.Bounds()
	out := make([]Candidate, 0, len(regions))
	for i, r := range regions {
		pos := fmt.Sprintf("(%d, %d)", r.bounds.Min.X, r.bounds.Min.Y)
		if page := s.PageNumber(); page > 0 {
			pos = fmt.Sprintf("Page %d Table %d", page, i+1)
		}
		out = append(out, Candidate{
			Method:   d.Method(),
			Bounds:   geometry.PadPixels(r.bounds.Add(bounds.Min), d.cfg.Padding, bounds),
			Area:     float64(r.filled),
			Page:     s.PageNumber(),
			Position: pos,
		})
	}
	d.logger.Debug("Morphology detection finished",
		zap.Int("page", s.PageNumber()), zap.Int("candidates", len(out)))
	return out
}

// regions runs the pipeline on img and returns the accepted blobs in
// descending area order, ties kept in scan order. Boxes are relative to the
// image's bounds origin.
func (d *ImageMorphology) regions(img image.Image) []blob {
	c := d.cfg
	gray := grayscale(img)

	var bin *mask
	if c.Threshold == ThresholdAdaptive {
		bin = adaptiveThresholdInv(gray, c.AdaptiveBlock, c.AdaptiveC)
	} else {
		bin = thresholdInv(gray, c.FixedLevel)
	}

	horizontal := bin.open(c.KernelLength, 1)
	vertical := bin.open(1, c.KernelLength)
	structure := blendHalf(horizontal, vertical)
	if c.CloseSize > 1 {
		structure = structure.close(c.CloseSize, c.CloseSize)
	}
	for i := 0; i < c.DilateIterations; i++ {
		structure = structure.dilate(3, 3)
	}

	var kept []blob
	for _, b := range externalBlobs(structure) {
		if d.accept(b, gray.w, gray.h) {
			kept = append(kept, b)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].filled > kept[j].filled })
	return kept
}

func (d *ImageMorphology) accept(b blob, pageW, pageH int) bool {
	c := d.cfg
	if float64(b.filled) <= c.MinArea {
		return false
	}
	ar := geometry.AspectRatio(b.bounds)
	if ar <= c.MinAspect || ar >= c.MaxAspect {
		return false
	}
	w, h := b.bounds.Dx(), b.bounds.Dy()
	if w <= c.MinWidth && c.MinWidth > 0 || h <= c.MinHeight && c.MinHeight > 0 {
		return false
	}
	if c.MaxPageFraction > 0 {
		if float64(w) >= float64(pageW)*c.MaxPageFraction || float64(h) >= float64(pageH)*c.MaxPageFraction {
			return false
		}
	}
	return true
}
