package detector

import (
	"context"
	"fmt"

	"github.com/user/tablemagnifier/internal/entity"
	"github.com/user/tablemagnifier/internal/geometry"
)

type fullPageFallback struct {
	Strategy
}

// WithFullPageFallback wraps s so that a surface yielding no candidates is
// captured whole instead.
func WithFullPageFallback(s Strategy) Strategy {
	return fullPageFallback{Strategy: s}
}

func (f fullPageFallback) Detect(ctx context.Context, s Surface) []Candidate {
	if found := f.Strategy.Detect(ctx, s); len(found) > 0 {
		return found
	}
	b := s.Bounds()
	if b.Empty() {
		return nil
	}
	pos := "full page"
	if page := s.PageNumber(); page > 0 {
		pos = fmt.Sprintf("Page %d (full page)", page)
	}
	return []Candidate{{
		Method:   entity.MethodFullPageFallback,
		Bounds:   b,
		Area:     float64(geometry.Area(b)),
		Page:     s.PageNumber(),
		Position: pos,
	}}
}
