package usecase

import "github.com/user/tablemagnifier/internal/entity"

// SourceOutcome is what happened to one source of a batch.
type SourceOutcome struct {
	Ref      string
	OriginID int
	Status   entity.SourceStatus
	Tables   int
	// Err is set for failed sources.
	Err error
	// CommitErr is set when the source was recorded in memory but the ledger
	// write after it failed.
	CommitErr error
}

// BatchResult summarises a RunBatch call.
type BatchResult struct {
	BatchID  string
	Outcomes []SourceOutcome

	Processed      int
	Failed         int
	Skipped        int
	TablesRecorded int
	CommitFailures int
}

func (r *BatchResult) add(o SourceOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case entity.SourceStatusProcessed:
		r.Processed++
		r.TablesRecorded += o.Tables
		if o.CommitErr != nil {
			r.CommitFailures++
		}
	case entity.SourceStatusFailed:
		r.Failed++
	case entity.SourceStatusSkipped:
		r.Skipped++
	}
}
