package usecase

import (
	"sort"

	"github.com/user/tablemagnifier/internal/entity"
	"github.com/user/tablemagnifier/internal/extractor"
	"github.com/user/tablemagnifier/internal/ledger"
)

// Report cross-checks the ledger against the table images on disk.
type Report struct {
	Sources  int            `yaml:"sources" json:"sources"`
	Tables   int            `yaml:"tables" json:"tables"`
	ByKind   map[string]int `yaml:"by_kind" json:"by_kind"`
	ByMethod map[string]int `yaml:"by_method" json:"by_method"`

	MaxOriginID int `yaml:"max_origin_id" json:"max_origin_id"`

	ArtifactsOnDisk int `yaml:"artifacts_on_disk" json:"artifacts_on_disk"`
	// Discrepancy is artifacts on disk minus table records. Non-zero is
	// informational only.
	Discrepancy int `yaml:"discrepancy" json:"discrepancy"`
	// Missing are recorded table images absent from disk.
	Missing []string `yaml:"missing_artifacts,omitempty" json:"missing_artifacts,omitempty"`
	// Orphans are table images no record refers to.
	Orphans []string `yaml:"orphan_artifacts,omitempty" json:"orphan_artifacts,omitempty"`

	Problems []string `yaml:"problems,omitempty" json:"problems,omitempty"`
}

// BuildReport summarises state and compares it with the files under layout.
func BuildReport(state *ledger.State, layout extractor.Layout) (Report, error) {
	rep := Report{
		ByKind:      map[string]int{},
		ByMethod:    map[string]int{},
		MaxOriginID: state.MaxOriginID(),
		Problems:    state.Problems(),
	}

	sources := state.Sources()
	rep.Sources = len(sources)
	for _, s := range sources {
		rep.ByKind[string(s.Kind())]++
	}

	type key struct{ origin, index int }
	recorded := map[key]entity.TableRecord{}
	tables := state.Tables()
	rep.Tables = len(tables)
	for _, t := range tables {
		rep.ByMethod[string(t.DetectionMethod)]++
		recorded[key{t.OriginID, t.TableIndex}] = t
	}

	files, err := layout.TableArtifacts()
	if err != nil {
		return rep, err
	}
	rep.ArtifactsOnDisk = len(files)
	rep.Discrepancy = rep.ArtifactsOnDisk - rep.Tables

	onDisk := map[key]bool{}
	for _, f := range files {
		o, i, _ := layout.ParseTableArtifact(f)
		k := key{o, i}
		onDisk[k] = true
		if _, ok := recorded[k]; !ok {
			rep.Orphans = append(rep.Orphans, f)
		}
	}
	for k, t := range recorded {
		if !onDisk[k] {
			rep.Missing = append(rep.Missing, t.ImageRef)
		}
	}
	sort.Strings(rep.Missing)
	sort.Strings(rep.Orphans)
	return rep, nil
}
