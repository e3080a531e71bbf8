package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/tablemagnifier/internal/entity"
	"github.com/user/tablemagnifier/internal/repository"
)

type memStore struct {
	snap    *entity.LedgerSnapshot
	loadErr error
	saveErr error
	saves   int
}

func (m *memStore) Load(context.Context) (entity.LedgerSnapshot, error) {
	if m.loadErr != nil {
		return entity.LedgerSnapshot{}, m.loadErr
	}
	if m.snap == nil {
		return entity.LedgerSnapshot{}, repository.ErrLedgerNotFound
	}
	return *m.snap, nil
}

func (m *memStore) Save(_ context.Context, snap entity.LedgerSnapshot) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.snap = &snap
	return nil
}

func source(id int, ref string, tables int) entity.SourceRecord {
	return entity.SourceRecord{
		OriginID:    id,
		SourceRef:   ref,
		Title:       ref,
		TableCount:  tables,
		ProcessedAt: time.Date(2025, 3, 1, 12, 0, id, 0, time.UTC),
	}
}

func tables(id, n int) []entity.TableRecord {
	out := make([]entity.TableRecord, n)
	for i := range out {
		out[i] = entity.TableRecord{OriginID: id, TableIndex: i, DetectionMethod: entity.MethodDOMTable}
	}
	return out
}

func TestNextIDMonotonic(t *testing.T) {
	s := NewState()

	var ids []int
	for i := 0; i < 5; i++ {
		ids = append(ids, s.NextID())
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ids)
}

func TestNextIDContinuesFromLedgerMax(t *testing.T) {
	s := FromSnapshot(entity.LedgerSnapshot{
		Sources: []entity.SourceRecord{source(4, "a", 0), source(9, "b", 0), source(2, "c", 0)},
	})

	assert.Equal(t, 10, s.NextID())
	assert.Equal(t, 11, s.NextID(), "allocation is visible before any append")
}

func TestRelease(t *testing.T) {
	s := NewState()
	first := s.NextID()
	require.NoError(t, s.Append(source(first, "a", 0), nil))

	failed := s.NextID()
	s.Release(failed)
	assert.Equal(t, failed, s.NextID(), "released id is reused by the next source")

	s.Release(first)
	assert.Equal(t, failed, s.MaxOriginID(), "recorded ids are never released")
}

func TestFilterNew(t *testing.T) {
	known := map[string]struct{}{
		"https://a.example/x": {},
		"PDF_FILE:b.pdf":      {},
	}

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"empty", nil, []string{}},
		{"all known", []string{"PDF_FILE:b.pdf", "https://a.example/x"}, []string{}},
		{"order preserved", []string{"z", "https://a.example/x", "y", "x"}, []string{"z", "y", "x"}},
		{"no normalisation", []string{"https://a.example/x/", "HTTPS://a.example/x", "https://a.example/x?q=1"},
			[]string{"https://a.example/x/", "HTTPS://a.example/x", "https://a.example/x?q=1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterNew(tt.in, known))
		})
	}
}

func TestFilterNewIdempotent(t *testing.T) {
	s := NewState()
	batch := []string{"a", "b", "c"}
	for _, ref := range s.FilterNew(batch) {
		require.NoError(t, s.Append(source(s.NextID(), ref, 0), nil))
	}

	assert.Empty(t, s.FilterNew(batch))
}

func TestAppend(t *testing.T) {
	t.Run("records source and tables", func(t *testing.T) {
		s := NewState()
		require.NoError(t, s.Append(source(1, "a", 2), tables(1, 2)))

		assert.True(t, s.Contains("a"))
		assert.Equal(t, 1, s.MaxOriginID())
		assert.Len(t, s.TablesFor(1), 2)
		assert.Empty(t, s.Problems())
	})

	t.Run("rejects duplicate origin", func(t *testing.T) {
		s := NewState()
		require.NoError(t, s.Append(source(1, "a", 0), nil))
		assert.ErrorIs(t, s.Append(source(1, "b", 0), nil), ErrDuplicateOrigin)
	})

	t.Run("rejects count mismatch", func(t *testing.T) {
		s := NewState()
		assert.ErrorIs(t, s.Append(source(1, "a", 3), tables(1, 2)), ErrOwnership)
		assert.False(t, s.Contains("a"))
	})

	t.Run("rejects foreign tables", func(t *testing.T) {
		s := NewState()
		assert.ErrorIs(t, s.Append(source(1, "a", 1), tables(2, 1)), ErrOwnership)
	})

	t.Run("rejects index gaps", func(t *testing.T) {
		s := NewState()
		ts := tables(1, 2)
		ts[1].TableIndex = 5
		assert.ErrorIs(t, s.Append(source(1, "a", 2), ts), ErrOwnership)
	})
}

func TestReplaceTables(t *testing.T) {
	s := NewState()
	require.NoError(t, s.Append(source(1, "a", 2), tables(1, 2)))
	require.NoError(t, s.Append(source(2, "b", 3), tables(2, 3)))

	updated, err := s.ReplaceTables(1, tables(1, 4))
	require.NoError(t, err)

	assert.Equal(t, 4, updated.TableCount)
	assert.Len(t, s.Sources(), 2, "no source duplicated")
	assert.Len(t, s.TablesFor(1), 4)
	assert.Len(t, s.TablesFor(2), 3, "other origins untouched")
	assert.Empty(t, s.Problems())

	_, err = s.ReplaceTables(42, nil)
	assert.ErrorIs(t, err, repository.ErrOriginNotFound)
}

func TestProblems(t *testing.T) {
	s := FromSnapshot(entity.LedgerSnapshot{
		Sources: []entity.SourceRecord{source(1, "a", 2)},
		Tables:  append(tables(1, 1), tables(7, 1)...),
	})

	assert.Equal(t, []string{
		"origin 1: table_count 2 but 1 table records",
		"origin 7: 1 table records without a source",
	}, s.Problems())
}

func TestLoad(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	t.Run("missing ledger", func(t *testing.T) {
		s := Load(ctx, &memStore{}, logger)
		assert.Empty(t, s.Sources())
		assert.Zero(t, s.MaxOriginID())
	})

	t.Run("unreadable ledger degrades to empty", func(t *testing.T) {
		s := Load(ctx, &memStore{loadErr: errors.New("corrupt zip")}, logger)
		assert.Empty(t, s.Sources())
	})

	t.Run("existing ledger", func(t *testing.T) {
		snap := entity.LedgerSnapshot{Sources: []entity.SourceRecord{source(3, "a", 1)}, Tables: tables(3, 1)}
		s := Load(ctx, &memStore{snap: &snap}, logger)
		assert.Equal(t, 3, s.MaxOriginID())
		assert.True(t, s.Contains("a"))
	})
}

func TestCommit(t *testing.T) {
	ctx := context.Background()
	s := NewState()
	require.NoError(t, s.Append(source(1, "a", 1), tables(1, 1)))

	store := &memStore{}
	require.NoError(t, Commit(ctx, store, s))
	assert.Equal(t, s.Snapshot(), *store.snap)

	store.saveErr = errors.New("disk full")
	err := Commit(ctx, store, s)
	assert.ErrorIs(t, err, repository.ErrLedgerIO)
	assert.True(t, s.Contains("a"), "state survives a failed commit")
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewState()
	require.NoError(t, s.Append(source(1, "a", 0), nil))

	snap := s.Snapshot()
	snap.Sources[0].Title = "changed"

	got, ok := s.Source(1)
	require.True(t, ok)
	assert.Equal(t, "a", got.Title)
}
