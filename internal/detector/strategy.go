package detector

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/user/tablemagnifier/internal/entity"
)

// Options carries the settings of every strategy so one can be picked by name.
type Options struct {
	DOM        DOMConfig
	Morphology MorphologyConfig
	PDFNative  PDFNativeConfig
	// FullPageFallback captures the whole surface when nothing is found.
	FullPageFallback bool
}

func DefaultOptions() Options {
	return Options{
		DOM:        DefaultDOM(),
		Morphology: LooseMorphology(),
		PDFNative:  DefaultPDFNative(),
	}
}

// NewStrategy builds the strategy registered under method.
func NewStrategy(method entity.DetectionMethod, o Options, logger *zap.Logger) (Strategy, error) {
	var s Strategy
	switch method {
	case entity.MethodDOMTable:
		s = NewDOMStructural(o.DOM, logger)
	case entity.MethodImageMorphology:
		s = NewImageMorphology(o.Morphology, logger)
	case entity.MethodPDFNativeTable:
		s = NewPDFNative(o.PDFNative, logger)
	default:
		return nil, fmt.Errorf("%q is not a detection strategy", method)
	}
	if o.FullPageFallback {
		s = WithFullPageFallback(s)
	}
	return s, nil
}
