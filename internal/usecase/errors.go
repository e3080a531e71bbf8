package usecase

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyRecorded = errors.New("source is already recorded in the ledger")
	ErrNotWebSource    = errors.New("not an http(s) URL")
)

// SourceError is a failure that aborted one source. The batch carries on.
type SourceError struct {
	Ref   string
	Stage string
	Err   error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Ref, e.Stage, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
