// Package ledger holds the in-memory ledger state and the load/commit protocol
// around a repository.LedgerStore.
package ledger

import (
	"errors"
	"fmt"
	"slices"

	"github.com/user/tablemagnifier/internal/entity"
	"github.com/user/tablemagnifier/internal/repository"
)

var (
	ErrDuplicateOrigin = errors.New("origin already recorded")
	ErrOwnership       = errors.New("table records do not belong to source")
)

// State is the ledger as held in memory during a batch. It is a plain value
// owned by the caller; nothing in this package keeps a State of its own.
type State struct {
	sources []entity.SourceRecord
	tables  []entity.TableRecord
	known   map[string]struct{}
	maxID   int
}

// NewState returns an empty ledger.
func NewState() *State {
	return &State{known: make(map[string]struct{})}
}

// FromSnapshot rebuilds a State from stored records.
func FromSnapshot(snap entity.LedgerSnapshot) *State {
	s := NewState()
	s.sources = slices.Clone(snap.Sources)
	s.tables = slices.Clone(snap.Tables)
	for _, src := range s.sources {
		s.known[src.SourceRef] = struct{}{}
		s.maxID = max(s.maxID, src.OriginID)
	}
	return s
}

// Snapshot copies the full state for a store.
func (s *State) Snapshot() entity.LedgerSnapshot {
	return entity.LedgerSnapshot{
		Sources: slices.Clone(s.sources),
		Tables:  slices.Clone(s.tables),
	}
}

func (s *State) Sources() []entity.SourceRecord { return slices.Clone(s.sources) }
func (s *State) Tables() []entity.TableRecord   { return slices.Clone(s.tables) }

// MaxOriginID is the highest origin id allocated or recorded so far.
func (s *State) MaxOriginID() int { return s.maxID }

// Contains reports whether ref has a SourceRecord.
func (s *State) Contains(ref string) bool {
	_, ok := s.known[ref]
	return ok
}

// Source looks a record up by origin id.
func (s *State) Source(originID int) (entity.SourceRecord, bool) {
	i := s.sourceIndex(originID)
	if i < 0 {
		return entity.SourceRecord{}, false
	}
	return s.sources[i], true
}

// TablesFor returns the tables owned by originID in table_index order.
func (s *State) TablesFor(originID int) []entity.TableRecord {
	var out []entity.TableRecord
	for _, t := range s.tables {
		if t.OriginID == originID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b entity.TableRecord) int { return a.TableIndex - b.TableIndex })
	return out
}

// Append records one source and its tables. The tables must all carry the
// source's origin id, be indexed 0..n-1 and match its TableCount.
func (s *State) Append(src entity.SourceRecord, tables []entity.TableRecord) error {
	if s.sourceIndex(src.OriginID) >= 0 {
		return fmt.Errorf("%w: %d", ErrDuplicateOrigin, src.OriginID)
	}
	if err := checkOwnership(src, tables); err != nil {
		return err
	}
	s.sources = append(s.sources, src)
	s.tables = append(s.tables, tables...)
	s.known[src.SourceRef] = struct{}{}
	s.maxID = max(s.maxID, src.OriginID)
	return nil
}

// ReplaceTables swaps every table owned by originID for tables and updates the
// source's TableCount. It returns the updated source record.
func (s *State) ReplaceTables(originID int, tables []entity.TableRecord) (entity.SourceRecord, error) {
	i := s.sourceIndex(originID)
	if i < 0 {
		return entity.SourceRecord{}, fmt.Errorf("%w: %d", repository.ErrOriginNotFound, originID)
	}
	src := s.sources[i]
	src.TableCount = len(tables)
	if err := checkOwnership(src, tables); err != nil {
		return entity.SourceRecord{}, err
	}

	kept := s.tables[:0:0]
	for _, t := range s.tables {
		if t.OriginID != originID {
			kept = append(kept, t)
		}
	}
	s.tables = append(kept, tables...)
	s.sources[i] = src
	return src, nil
}

// Problems lists ownership violations: tables without a source, and sources
// whose TableCount disagrees with their tables.
func (s *State) Problems() []string {
	counts := make(map[int]int, len(s.sources))
	for _, t := range s.tables {
		counts[t.OriginID]++
	}
	var problems []string
	seen := make(map[int]struct{}, len(s.sources))
	for _, src := range s.sources {
		seen[src.OriginID] = struct{}{}
		if counts[src.OriginID] != src.TableCount {
			problems = append(problems, fmt.Sprintf("origin %d: table_count %d but %d table records",
				src.OriginID, src.TableCount, counts[src.OriginID]))
		}
	}
	for id, n := range counts {
		if _, ok := seen[id]; !ok {
			problems = append(problems, fmt.Sprintf("origin %d: %d table records without a source", id, n))
		}
	}
	slices.Sort(problems)
	return problems
}

func (s *State) sourceIndex(originID int) int {
	return slices.IndexFunc(s.sources, func(src entity.SourceRecord) bool { return src.OriginID == originID })
}

func checkOwnership(src entity.SourceRecord, tables []entity.TableRecord) error {
	if src.TableCount != len(tables) {
		return fmt.Errorf("%w: origin %d declares %d tables, got %d", ErrOwnership, src.OriginID, src.TableCount, len(tables))
	}
	for i, t := range tables {
		if t.OriginID != src.OriginID {
			return fmt.Errorf("%w: table %d carries origin %d, want %d", ErrOwnership, i, t.OriginID, src.OriginID)
		}
		if t.TableIndex != i {
			return fmt.Errorf("%w: origin %d table at position %d has index %d", ErrOwnership, src.OriginID, i, t.TableIndex)
		}
	}
	return nil
}
