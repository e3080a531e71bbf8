package usecase

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/tablemagnifier/internal/entity"
	"github.com/user/tablemagnifier/internal/geometry"
	"github.com/user/tablemagnifier/internal/ledger"
	"github.com/user/tablemagnifier/internal/repository"
)

func TestReprocessReplacesTables(t *testing.T) {
	h := newHarness(t, nil)
	doc := &fakeDoc{pages: 1, tables: map[int][]repository.PDFTable{1: {
		{BBox: geometry.Rect{X0: 100, Y0: 100, X1: 300, Y1: 200}},
		{BBox: geometry.Rect{X0: 100, Y0: 400, X1: 300, Y1: 500}},
	}}}
	h.decoder.docs["a.pdf"] = doc
	state := ledger.NewState()
	h.pipeline.RunBatch(context.Background(), state, []Source{h.pdf(t, "a.pdf"), h.pdf(t, "b.pdf")})
	require.Len(t, state.TablesFor(1), 2)
	before := state.Sources()

	// the inbox copy is gone; the origin copy is used
	require.NoError(t, os.Remove(h.inbox+"/a.pdf"))
	doc.tables = map[int][]repository.PDFTable{1: {{BBox: geometry.Rect{X0: 50, Y0: 50, X1: 500, Y1: 300}}}}

	res, err := h.pipeline.Reprocess(context.Background(), state, 1, entity.MethodPDFNativeTable)
	require.NoError(t, err)
	assert.Equal(t, 2, res.PreviousTables)
	assert.Equal(t, 1, res.Tables)
	assert.Equal(t, 1, res.RemovedArtifact)

	after := state.Sources()
	require.Len(t, after, 2, "no source record is added")
	assert.Equal(t, 1, after[0].TableCount)
	assert.Equal(t, before[0].ArtifactRef, after[0].ArtifactRef)
	assert.Equal(t, before[1], after[1])
	assert.Empty(t, state.Problems())

	assert.FileExists(t, h.layout.TableArtifact(1, 0))
	assert.NoFileExists(t, h.layout.TableArtifact(1, 1))
	assert.Equal(t, 1, h.store.saved.Sources[0].TableCount, "change is committed")
}

func TestReprocessWithOtherStrategy(t *testing.T) {
	h := newHarness(t, nil)
	h.decoder.docs["scan.pdf"] = &fakeDoc{pages: 1}
	state := ledger.NewState()
	h.pipeline.RunBatch(context.Background(), state, []Source{h.pdf(t, "scan.pdf")})
	require.Empty(t, state.TablesFor(1))

	// a blank page has no ruled regions either
	res, err := h.pipeline.Reprocess(context.Background(), state, 1, entity.MethodImageMorphology)
	require.NoError(t, err)
	assert.Zero(t, res.Tables)
	assert.Equal(t, entity.MethodImageMorphology, res.Method)
}

func TestReprocessUnknownOrigin(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.pipeline.Reprocess(context.Background(), ledger.NewState(), 9, entity.MethodPDFNativeTable)
	assert.ErrorIs(t, err, repository.ErrOriginNotFound)
}

func TestReprocessRejectsDOMOnPDF(t *testing.T) {
	h := newHarness(t, nil)
	state := ledger.NewState()
	h.pipeline.RunBatch(context.Background(), state, []Source{h.pdf(t, "a.pdf")})

	_, err := h.pipeline.Reprocess(context.Background(), state, 1, entity.MethodDOMTable)
	assert.Error(t, err)
	assert.Len(t, state.TablesFor(1), 1, "tables untouched")
}

func TestReprocessMissingDocument(t *testing.T) {
	h := newHarness(t, nil)
	state := ledger.NewState()
	require.NoError(t, state.Append(entity.SourceRecord{OriginID: 1, SourceRef: "PDF_FILE: gone.pdf"}, nil))

	_, err := h.pipeline.Reprocess(context.Background(), state, 1, entity.MethodPDFNativeTable)
	var serr *SourceError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "locate", serr.Stage)
}

func TestReprocessCommitFailureIsReturned(t *testing.T) {
	h := newHarness(t, nil)
	state := ledger.NewState()
	h.pipeline.RunBatch(context.Background(), state, []Source{h.pdf(t, "a.pdf")})
	h.store.failAt = func(int) bool { return true }

	_, err := h.pipeline.Reprocess(context.Background(), state, 1, entity.MethodPDFNativeTable)
	assert.ErrorIs(t, err, repository.ErrLedgerIO)
}
