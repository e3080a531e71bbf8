package extractor

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/user/tablemagnifier/internal/detector"
	"github.com/user/tablemagnifier/internal/entity"
	"github.com/user/tablemagnifier/pkg/utils"
)

const noText = "(no text)"

func (e *Extractor) preview(c detector.Candidate) string {
	if len(c.Cells) > 0 {
		if p := FlattenCells(c.Cells, e.cfg.PreviewRows, e.cfg.PreviewLimit); p != "" {
			return p
		}
	}
	if c.Method == entity.MethodDOMTable {
		return FlattenText(c.Text, e.cfg.PreviewLimit)
	}
	if c.Method == entity.MethodFullPageFallback {
		return fmt.Sprintf("%s - no table detected", c.Position)
	}
	return fmt.Sprintf("%s - detected by %s", c.Position, c.Method)
}

// FlattenCells joins the first rows of a table with " | ", truncated to limit
// characters.
func FlattenCells(cells [][]string, rows, limit int) string {
	var parts []string
	for i, row := range cells {
		if i >= rows {
			break
		}
		for _, cell := range row {
			parts = append(parts, strings.Join(strings.Fields(utils.CleanText(cell)), " "))
		}
	}
	return truncate(strings.Join(parts, " | "), limit)
}

// FlattenText puts element text on one line, truncated to limit characters.
// Truncation happens before whitespace is collapsed, so the preview is the
// leading slice of the original text.
func FlattenText(text string, limit int) string {
	t := strings.TrimSpace(strings.ReplaceAll(truncate(utils.CleanText(text), limit), "\n", " "))
	if t == "" {
		return noText
	}
	return t
}

func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
