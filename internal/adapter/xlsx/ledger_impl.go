// Package xlsx stores the ledger as a two-sheet spreadsheet.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/user/tablemagnifier/internal/entity"
	"github.com/user/tablemagnifier/internal/repository"
)

const (
	SourcesSheet = "Main Results"
	TablesSheet  = "Table Details"
)

var sourceHeader = []string{
	"Origin Number", "URL", "Page Title", "PNG Filename", "Table Count", "Processing Time",
}

var tableHeader = []string{
	"Origin Number", "Table Index", "Table Filename", "Rows", "Columns",
	"Image Width", "Image Height", "Position", "Preview Text", "Detection Method",
}

// legacyTimeLayout is how older sheets wrote the processing time.
const legacyTimeLayout = "2006-01-02 15:04:05"

type ledgerStore struct {
	path   string
	logger *zap.Logger
}

// NewLedgerStore returns a LedgerStore backed by the workbook at path.
func NewLedgerStore(path string, logger *zap.Logger) repository.LedgerStore {
	return &ledgerStore{path: path, logger: logger}
}

func (s *ledgerStore) Load(_ context.Context) (entity.LedgerSnapshot, error) {
	var snap entity.LedgerSnapshot

	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return snap, repository.ErrLedgerNotFound
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return snap, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(SourcesSheet)
	if err != nil {
		return snap, fmt.Errorf("read %q: %w", SourcesSheet, err)
	}
	snap.Sources, err = parseRows(rows, sourceHeader, parseSource)
	if err != nil {
		return snap, fmt.Errorf("parse %q: %w", SourcesSheet, err)
	}

	rows, err = f.GetRows(TablesSheet)
	if err != nil {
		return snap, fmt.Errorf("read %q: %w", TablesSheet, err)
	}
	snap.Tables, err = parseRows(rows, tableHeader, parseTable)
	if err != nil {
		return snap, fmt.Errorf("parse %q: %w", TablesSheet, err)
	}

	s.logger.Debug("Loaded ledger workbook",
		zap.String("path", s.path),
		zap.Int("sources", len(snap.Sources)),
		zap.Int("tables", len(snap.Tables)))
	return snap, nil
}

// Save writes the whole snapshot to a temporary workbook next to the target
// and renames it into place, so a failed write leaves the previous file intact.
func (s *ledgerStore) Save(_ context.Context, snap entity.LedgerSnapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SourcesSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(TablesSheet); err != nil {
		return err
	}

	if err := writeRow(f, SourcesSheet, 1, toCells(sourceHeader)); err != nil {
		return err
	}
	for i, src := range snap.Sources {
		if err := writeRow(f, SourcesSheet, i+2, sourceCells(src)); err != nil {
			return err
		}
	}
	if err := writeRow(f, TablesSheet, 1, toCells(tableHeader)); err != nil {
		return err
	}
	for i, tbl := range snap.Tables {
		if err := writeRow(f, TablesSheet, i+2, tableCells(tbl)); err != nil {
			return err
		}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}

	s.logger.Debug("Saved ledger workbook",
		zap.String("path", s.path),
		zap.Int("sources", len(snap.Sources)),
		zap.Int("tables", len(snap.Tables)))
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

func toCells(header []string) []any {
	out := make([]any, len(header))
	for i, h := range header {
		out[i] = h
	}
	return out
}

func sourceCells(s entity.SourceRecord) []any {
	return []any{
		s.OriginID,
		s.SourceRef,
		s.Title,
		s.ArtifactRef,
		s.TableCount,
		s.ProcessedAt.UTC().Format(time.RFC3339Nano),
	}
}

func tableCells(t entity.TableRecord) []any {
	return []any{
		t.OriginID,
		t.TableIndex,
		t.ImageRef,
		t.Rows,
		t.Cols,
		t.PixelWidth,
		t.PixelHeight,
		t.PositionTag,
		t.PreviewText,
		string(t.DetectionMethod),
	}
}

// row gives named access to one sheet row. GetRows drops trailing empty cells,
// so missing columns read as "".
type row struct {
	cols  map[string]int
	cells []string
}

func (r row) str(name string) string {
	i, ok := r.cols[name]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return r.cells[i]
}

func (r row) num(name string) (int, error) {
	v := strings.TrimSpace(r.str(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		// numeric cells written by other tools may carry a fraction
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil {
			return 0, fmt.Errorf("column %q: %w", name, err)
		}
		n = int(f)
	}
	return n, nil
}

func parseRows[T any](rows [][]string, header []string, parse func(row) (T, error)) ([]T, error) {
	out := []T{}
	if len(rows) == 0 {
		return out, nil
	}
	cols := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		cols[strings.TrimSpace(name)] = i
	}
	if _, ok := cols[header[0]]; !ok {
		return nil, fmt.Errorf("missing %q column", header[0])
	}

	for n, cells := range rows[1:] {
		if isBlank(cells) {
			continue
		}
		rec, err := parse(row{cols: cols, cells: cells})
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+2, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseSource(r row) (entity.SourceRecord, error) {
	var s entity.SourceRecord
	var err error
	if s.OriginID, err = r.num("Origin Number"); err != nil {
		return s, err
	}
	if s.TableCount, err = r.num("Table Count"); err != nil {
		return s, err
	}
	s.SourceRef = r.str("URL")
	s.Title = r.str("Page Title")
	s.ArtifactRef = r.str("PNG Filename")
	if s.ProcessedAt, err = parseTime(r.str("Processing Time")); err != nil {
		return s, err
	}
	return s, nil
}

func parseTable(r row) (entity.TableRecord, error) {
	var t entity.TableRecord
	ints := []struct {
		col string
		dst *int
	}{
		{"Origin Number", &t.OriginID},
		{"Table Index", &t.TableIndex},
		{"Rows", &t.Rows},
		{"Columns", &t.Cols},
		{"Image Width", &t.PixelWidth},
		{"Image Height", &t.PixelHeight},
	}
	for _, c := range ints {
		v, err := r.num(c.col)
		if err != nil {
			return t, err
		}
		*c.dst = v
	}
	t.ImageRef = r.str("Table Filename")
	t.PositionTag = r.str("Position")
	t.PreviewText = r.str("Preview Text")

	if m := r.str("Detection Method"); m != "" {
		method, err := entity.ParseDetectionMethod(m)
		if err != nil {
			return t, err
		}
		t.DetectionMethod = method
	}
	return t, nil
}

func parseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(legacyTimeLayout, v, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("processing time %q: %w", v, err)
	}
	return t, nil
}
