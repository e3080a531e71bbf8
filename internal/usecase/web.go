package usecase

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/user/tablemagnifier/internal/detector"
	"github.com/user/tablemagnifier/internal/repository"
	"github.com/user/tablemagnifier/pkg/utils"
)

const (
	maxTitleLen = 50

	pageHeightScript = `Math.max(document.body.scrollHeight, document.documentElement.scrollHeight)`
	scrollToScript   = `window.scrollTo(0, %d); true`
	scrollEndScript  = `window.scrollTo(0, document.body.scrollHeight); true`
	scrollTopScript  = `window.scrollTo(0, 0); true`
)

func (p *Pipeline) processWeb(ctx context.Context, j job) (res result, err error) {
	if p.deps.Renderers == nil {
		return res, &SourceError{Ref: j.src.Ref, Stage: "acquire", Err: repository.ErrRendererUnavailable}
	}
	r, err := p.deps.Renderers.Acquire(ctx)
	if err != nil {
		return res, &SourceError{Ref: j.src.Ref, Stage: "acquire", Err: err}
	}
	defer func() {
		if cerr := r.Close(); cerr != nil {
			j.log.Warn("Renderer did not close cleanly", zap.Error(cerr))
		}
	}()

	if err := r.SetViewport(ctx, p.cfg.ViewportWidth, p.cfg.ViewportHeight); err != nil {
		return res, &SourceError{Ref: j.src.Ref, Stage: "viewport", Err: err}
	}
	if err := r.Navigate(ctx, j.src.Ref); err != nil {
		return res, &SourceError{Ref: j.src.Ref, Stage: "navigate", Err: err}
	}
	if err := r.WaitReady(ctx, "body", p.cfg.ElementWaitTimeout); err != nil {
		return res, &SourceError{Ref: j.src.Ref, Stage: "wait", Err: err}
	}

	title, err := r.Title(ctx)
	if err != nil {
		j.log.Warn("Page title unavailable", zap.Error(err))
	}
	res.title = pageTitle(title, j.originID)

	if utils.MatchesAny(j.src.Ref, p.cfg.PanelPatterns) {
		return p.processPanels(ctx, r, j, res)
	}

	p.scroll(ctx, r, j.log)

	surface := &detector.PageSurface{Renderer: r}
	shot, err := r.FullScreenshot(ctx)
	if err != nil {
		j.log.Warn("Full-page screenshot failed", zap.Error(err))
	} else {
		if img, derr := png.Decode(bytes.NewReader(shot)); derr != nil {
			j.log.Warn("Full-page screenshot unreadable", zap.Error(derr))
		} else {
			surface.Screenshot = img
		}
		if j.storeOrigin {
			if res.artifact, err = p.deps.Extractor.Layout().WriteOrigin(j.originID, "png", shot); err != nil {
				j.log.Warn("Origin screenshot not saved", zap.Error(err))
			}
		}
	}
	if surface.Screenshot == nil {
		var size struct{ W, H int }
		if err := r.Evaluate(ctx, `({W: document.documentElement.scrollWidth, H: document.documentElement.scrollHeight})`, &size); err == nil {
			surface.Size = image.Pt(size.W, size.H)
		}
	}

	cands := j.strategy.Detect(ctx, surface)
	j.log.Info("Tables detected", zap.Int("candidates", len(cands)), zap.String("strategy", string(j.strategy.Method())))
	res.tables = p.extractAll(ctx, surface, cands, j.originID, nil)
	return res, nil
}

// processPanels handles pages whose tables live in collapsed panel
// containers: each table is re-rendered on its own and captured.
func (p *Pipeline) processPanels(ctx context.Context, r repository.Renderer, j job, res result) (result, error) {
	html, err := r.OuterHTML(ctx)
	if err != nil {
		return res, &SourceError{Ref: j.src.Ref, Stage: "read html", Err: err}
	}
	if j.storeOrigin {
		if res.artifact, err = p.deps.Extractor.Layout().WriteOrigin(j.originID, "html", []byte(html)); err != nil {
			j.log.Warn("Origin HTML not saved", zap.Error(err))
		}
	}

	surface := &detector.PanelSurface{Renderer: r, HTML: html}
	cands := p.panel.Detect(ctx, surface)
	j.log.Info("Panel tables detected", zap.Int("candidates", len(cands)))
	res.tables = p.extractAll(ctx, surface, cands, j.originID, nil)
	return res, nil
}

// scroll walks the page in fixed steps so lazily loaded content appears. It
// stops once the bottom is reached without the page growing, or after
// ScrollMaxSteps steps, then returns to the top. Failures only cost content.
func (p *Pipeline) scroll(ctx context.Context, r repository.Renderer, log *zap.Logger) {
	var height float64
	if err := r.Evaluate(ctx, pageHeightScript, &height); err != nil {
		log.Warn("Page height unavailable, not scrolling", zap.Error(err))
		return
	}

	pos := 0
	steps := 0
	for ; steps < p.cfg.ScrollMaxSteps; steps++ {
		pos += p.cfg.ScrollStepPx
		if err := r.Evaluate(ctx, fmt.Sprintf(scrollToScript, pos), nil); err != nil {
			log.Warn("Scroll failed", zap.Error(err))
			return
		}
		if err := p.sleep(ctx, p.cfg.ScrollPause); err != nil {
			return
		}
		var h float64
		if err := r.Evaluate(ctx, pageHeightScript, &h); err != nil {
			log.Warn("Page height unavailable", zap.Error(err))
			return
		}
		if h > height {
			height = h
			continue
		}
		if float64(pos) >= height {
			break
		}
	}
	if steps == p.cfg.ScrollMaxSteps {
		log.Warn("Scroll step bound reached", zap.Int("steps", steps), zap.Float64("height", height))
	}

	for _, script := range []string{scrollEndScript, scrollTopScript} {
		if err := r.Evaluate(ctx, script, nil); err != nil {
			log.Warn("Scroll failed", zap.Error(err))
			return
		}
		if err := p.sleep(ctx, p.cfg.ScrollPause); err != nil {
			return
		}
	}
}

// pageTitle trims a document title for the ledger, falling back to Page_<id>.
func pageTitle(title string, originID int) string {
	title = strings.Join(strings.Fields(utils.CleanText(title)), " ")
	if title == "" {
		return fmt.Sprintf("Page_%d", originID)
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		title = string([]rune(title)[:maxTitleLen])
	}
	return title
}
