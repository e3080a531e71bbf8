package entity

// LedgerSnapshot is the full content of both ledger relations as written to or
// read from durable storage.
type LedgerSnapshot struct {
	Sources []SourceRecord
	Tables  []TableRecord
}
