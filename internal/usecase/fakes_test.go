package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/tablemagnifier/internal/entity"
	"github.com/user/tablemagnifier/internal/extractor"
	"github.com/user/tablemagnifier/internal/geometry"
	"github.com/user/tablemagnifier/internal/repository"
)

// memStore keeps the last saved snapshot and can be told to fail commits.
type memStore struct {
	saved  *entity.LedgerSnapshot
	saves  int
	failAt func(n int) bool
}

func (m *memStore) Load(context.Context) (entity.LedgerSnapshot, error) {
	if m.saved == nil {
		return entity.LedgerSnapshot{}, repository.ErrLedgerNotFound
	}
	return *m.saved, nil
}

func (m *memStore) Save(_ context.Context, snap entity.LedgerSnapshot) error {
	m.saves++
	if m.failAt != nil && m.failAt(m.saves) {
		return errors.New("disk full")
	}
	m.saved = &snap
	return nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// fakeRenderer answers the pipeline's scripts from canned values.
type fakeRenderer struct {
	t *testing.T

	navigateErr error
	title       string
	html        string
	// scanJSON is returned for the table scan script.
	scanJSON string
	// heights is consumed by page-height queries; the last value repeats.
	heights []float64

	scrolls     []string
	setContents int
	closed      int
}

func (r *fakeRenderer) SetViewport(context.Context, int, int) error { return nil }
func (r *fakeRenderer) Navigate(context.Context, string) error      { return r.navigateErr }
func (r *fakeRenderer) WaitReady(context.Context, string, time.Duration) error {
	return nil
}

func (r *fakeRenderer) Evaluate(_ context.Context, script string, res any) error {
	switch {
	case script == pageHeightScript:
		h := 1000.0
		if len(r.heights) > 0 {
			h = r.heights[0]
			if len(r.heights) > 1 {
				r.heights = r.heights[1:]
			}
		}
		*res.(*float64) = h
		return nil
	case strings.HasPrefix(script, "window.scrollTo"):
		r.scrolls = append(r.scrolls, script)
		return nil
	case r.scanJSON != "":
		return json.Unmarshal([]byte(r.scanJSON), res)
	}
	return errors.New("unexpected script")
}

func (r *fakeRenderer) Title(context.Context) (string, error)     { return r.title, nil }
func (r *fakeRenderer) OuterHTML(context.Context) (string, error) { return r.html, nil }
func (r *fakeRenderer) SetContent(context.Context, string) error {
	r.setContents++
	return nil
}
func (r *fakeRenderer) FullScreenshot(context.Context) ([]byte, error) {
	return pngBytes(r.t, 320, 240), nil
}
func (r *fakeRenderer) ElementScreenshot(context.Context, string) ([]byte, error) {
	return pngBytes(r.t, 120, 60), nil
}
func (r *fakeRenderer) Close() error {
	r.closed++
	return nil
}

type fakeFactory struct {
	next     func() *fakeRenderer
	acquired []*fakeRenderer
}

func (f *fakeFactory) Acquire(context.Context) (repository.Renderer, error) {
	r := f.next()
	f.acquired = append(f.acquired, r)
	return r, nil
}

// fakeDoc is a letter-size page rendered at 72 dpi, so points equal pixels.
type fakeDoc struct {
	pages  int
	tables map[int][]repository.PDFTable
	closed bool

	rasterErr error
	// onRasterize runs before each page is rendered.
	onRasterize func(page int)
}

func (d *fakeDoc) PageCount() int { return d.pages }
func (d *fakeDoc) PageSize(int) (float64, float64, error) {
	return 612, 792, nil
}
// Rasterize returns a blank white page.
func (d *fakeDoc) Rasterize(ctx context.Context, page, _ int) (image.Image, error) {
	if d.onRasterize != nil {
		d.onRasterize(page)
	}
	if d.rasterErr != nil {
		return nil, d.rasterErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img := image.NewGray(image.Rect(0, 0, 612, 792))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img, nil
}
func (d *fakeDoc) FindTables(page int) ([]repository.PDFTable, error) {
	return d.tables[page], nil
}
func (d *fakeDoc) Close() error {
	d.closed = true
	return nil
}

// fakeDecoder opens documents by base name.
type fakeDecoder struct {
	docs   map[string]*fakeDoc
	failOn map[string]bool
}

func (f *fakeDecoder) Open(_ context.Context, path string) (repository.PDFDocument, error) {
	name := filepath.Base(path)
	if f.failOn[name] {
		return nil, repository.ErrDecodeFailed
	}
	if d, ok := f.docs[name]; ok {
		return d, nil
	}
	return &fakeDoc{pages: 1, tables: map[int][]repository.PDFTable{1: dosingTable()}}, nil
}

func dosingTable() []repository.PDFTable {
	return []repository.PDFTable{
		{BBox: geometry.Rect{X0: 100, Y0: 100, X1: 400, Y1: 300}, Cells: [][]string{{"Drug", "Dose"}, {"A", "1 mg"}}},
	}
}

// dirNames lists the file names in dir.
func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

type harness struct {
	pipeline *Pipeline
	store    *memStore
	decoder  *fakeDecoder
	factory  *fakeFactory
	layout   extractor.Layout
	inbox    string
	sleeps   []time.Duration
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	root := t.TempDir()
	h := &harness{
		store:   &memStore{},
		decoder: &fakeDecoder{docs: map[string]*fakeDoc{}, failOn: map[string]bool{}},
		layout: extractor.Layout{
			OriginDir:    filepath.Join(root, "origin"),
			TableDir:     filepath.Join(root, "table"),
			OriginPrefix: "M_origin",
			TablePrefix:  "M_table",
		},
		inbox: filepath.Join(root, "inbox"),
	}
	require.NoError(t, h.layout.Ensure())
	require.NoError(t, os.MkdirAll(h.inbox, 0o755))
	h.factory = &fakeFactory{next: func() *fakeRenderer { return &fakeRenderer{t: t, title: "Dosing table"} }}

	cfg := DefaultConfig()
	cfg.DPI = 72
	cfg.PDFInboxDir = h.inbox
	if mutate != nil {
		mutate(&cfg)
	}
	logger := zap.NewNop()
	p, err := NewPipeline(cfg, Deps{
		Renderers: h.factory,
		PDFs:      h.decoder,
		Store:     h.store,
		Extractor: extractor.New(h.layout, extractor.DefaultConfig(), logger),
	}, logger)
	require.NoError(t, err)
	p.sleep = func(_ context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	}
	p.now = func() time.Time { return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC) }
	h.pipeline = p
	return h
}

// pdf writes an inbox file and returns its source.
func (h *harness) pdf(t *testing.T, name string) Source {
	t.Helper()
	path := filepath.Join(h.inbox, name)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 "+name), 0o644))
	return PDFSource(path)
}
