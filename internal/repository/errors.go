package repository

import "errors"

var (
	ErrRendererUnavailable = errors.New("renderer unavailable")
	ErrRenderTimeout       = errors.New("render timed out")
	ErrNavigationFailed    = errors.New("navigation failed")
	ErrDecodeFailed        = errors.New("document decode failed")
	ErrLedgerIO            = errors.New("ledger storage failure")
	ErrLedgerNotFound      = errors.New("ledger not found")
	ErrOriginNotFound      = errors.New("origin not found in ledger")
	ErrQueueEmpty          = errors.New("source queue is empty")
)
