package entity

// SourceStatus is the terminal state of one source within a batch.
type SourceStatus string

const (
	SourceStatusProcessed SourceStatus = "processed" // committed or pending commit
	SourceStatusFailed    SourceStatus = "failed"    // transient error, no records appended
	SourceStatusSkipped   SourceStatus = "skipped"   // already known to the ledger
)
