package detector

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/user/tablemagnifier/internal/entity"
)

// tableIndexAttr tags each table during the scan so it can be addressed again
// for its element screenshot.
const tableIndexAttr = "data-tm-index"

// tableScanScript lists every <table> with its page-relative box, visibility
// and row/column counts.
const tableScanScript = `(() => {
  const out = [];
  document.querySelectorAll('table').forEach((t, i) => {
    t.setAttribute('` + tableIndexAttr + `', String(i));
    const r = t.getBoundingClientRect();
    const st = window.getComputedStyle(t);
    const displayed = st.display !== 'none' && st.visibility !== 'hidden' && t.getClientRects().length > 0;
    const rows = t.querySelectorAll('tr');
    let cols = 0;
    if (rows.length > 0) {
      cols = rows[0].querySelectorAll('th').length + rows[0].querySelectorAll('td').length;
    }
    out.push({
      index: i,
      displayed: displayed,
      x: r.left + window.scrollX,
      y: r.top + window.scrollY,
      width: r.width,
      height: r.height,
      rows: rows.length,
      cols: cols,
      text: t.innerText || ''
    });
  });
  return out;
})()`

type domTable struct {
	Index     int     `json:"index"`
	Displayed bool    `json:"displayed"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Rows      int     `json:"rows"`
	Cols      int     `json:"cols"`
	Text      string  `json:"text"`
}

// DOMConfig tunes DOM-structural detection.
type DOMConfig struct {
	// MinSize is the smallest rendered width and height kept, in CSS pixels.
	MinSize int
	// PanelSelector finds the collapsed containers scanned in panel mode.
	PanelSelector string
	// PreviewRows is how many rows of a panel table keep their cell text.
	PreviewRows int
}

func DefaultDOM() DOMConfig {
	return DOMConfig{MinSize: 50, PanelSelector: "div.panel", PreviewRows: 2}
}

// DOMStructural enumerates table elements directly.
type DOMStructural struct {
	cfg    DOMConfig
	logger *zap.Logger
}

func NewDOMStructural(cfg DOMConfig, logger *zap.Logger) *DOMStructural {
	return &DOMStructural{cfg: cfg, logger: logger}
}

func (d *DOMStructural) Method() entity.DetectionMethod { return entity.MethodDOMTable }

func (d *DOMStructural) Detect(ctx context.Context, s Surface) []Candidate {
	switch v := s.(type) {
	case *PageSurface:
		return d.detectPage(ctx, v)
	case *PanelSurface:
		return d.detectPanels(v)
	}
	d.logger.Warn("DOM detection needs a page surface", zap.String("surface", fmt.Sprintf("%T", s)))
	return nil
}

func (d *DOMStructural) detectPage(ctx context.Context, s *PageSurface) []Candidate {
	if s.Renderer == nil {
		d.logger.Warn("DOM detection skipped", zap.Error(&Error{Strategy: d.Method(), Err: errNoRenderer}))
		return nil
	}
	var found []domTable
	if err := s.Renderer.Evaluate(ctx, tableScanScript, &found); err != nil {
		d.logger.Warn("Table scan failed", zap.Error(&Error{Strategy: d.Method(), Err: err}))
		return nil
	}

	minSize := float64(d.cfg.MinSize)
	var out []Candidate
	for _, t := range found {
		if !t.Displayed {
			d.logger.Debug("Skipping hidden table", zap.Int("dom_index", t.Index))
			continue
		}
		if t.Width < minSize || t.Height < minSize {
			d.logger.Debug("Skipping undersized table", zap.Int("dom_index", t.Index),
				zap.Float64("width", t.Width), zap.Float64("height", t.Height))
			continue
		}
		x, y := int(math.Round(t.X)), int(math.Round(t.Y))
		w, h := int(math.Round(t.Width)), int(math.Round(t.Height))
		out = append(out, Candidate{
			Method:   d.Method(),
			Bounds:   image.Rect(x, y, x+w, y+h),
			Area:     t.Width * t.Height,
			Position: fmt.Sprintf("(%d, %d)", x, y),
			Selector: fmt.Sprintf(`table[%s="%d"]`, tableIndexAttr, t.Index),
			Rows:     t.Rows,
			Cols:     t.Cols,
			Text:     t.Text,
		})
	}
	d.logger.Debug("DOM detection finished", zap.Int("tables", len(found)), zap.Int("candidates", len(out)))
	return out
}

// detectPanels parses tables held inside panel containers. They are usually
// collapsed, so each one is later drawn on its own from its HTML.
func (d *DOMStructural) detectPanels(s *PanelSurface) []Candidate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.HTML))
	if err != nil {
		d.logger.Warn("Panel HTML unparsable", zap.Error(&Error{Strategy: d.Method(), Err: err}))
		return nil
	}

	var out []Candidate
	doc.Find(d.cfg.PanelSelector).Each(func(p int, panel *goquery.Selection) {
		panel.Find("table").Each(func(t int, table *goquery.Selection) {
			rows := table.Find("tr")
			if rows.Length() == 0 {
				d.logger.Debug("Skipping panel table without rows", zap.Int("panel", p), zap.Int("table", t))
				return
			}
			html, err := goquery.OuterHtml(table)
			if err != nil {
				d.logger.Warn("Panel table not serialisable", zap.Error(&Error{Strategy: d.Method(), Err: err}))
				return
			}

			var cells [][]string
			cols := 0
			rows.Each(func(r int, row *goquery.Selection) {
				n := row.Find("th, td").Length()
				cols = max(cols, n)
				if r >= d.cfg.PreviewRows {
					return
				}
				var line []string
				row.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
					line = append(line, strings.TrimSpace(cell.Text()))
				})
				cells = append(cells, line)
			})

			out = append(out, Candidate{
				Method:   d.Method(),
				Position: fmt.Sprintf("panel[%d] table[%d]", p, t),
				HTML:     html,
				Rows:     rows.Length(),
				Cols:     cols,
				Text:     strings.TrimSpace(table.Text()),
				Cells:    cells,
			})
		})
	})
	d.logger.Debug("Panel detection finished", zap.Int("candidates", len(out)))
	return out
}
