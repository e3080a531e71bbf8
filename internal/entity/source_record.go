package entity

import (
	"strings"
	"time"
)

// PDFRefPrefix tags document sources so they share one dedup keyspace with URLs.
const PDFRefPrefix = "PDF_FILE:"

// SourceKind tells the orchestrator which rendering path a source takes.
type SourceKind string

const (
	SourceKindWeb SourceKind = "web"
	SourceKindPDF SourceKind = "pdf"
)

// SourceRecord mirrors the `source_records` table and the "Main Results" sheet.
type SourceRecord struct {
	OriginID    int
	SourceRef   string
	Title       string
	ArtifactRef string
	TableCount  int
	ProcessedAt time.Time
}

// Kind reports whether the record came from a web page or a PDF file.
func (s SourceRecord) Kind() SourceKind {
	return KindOf(s.SourceRef)
}

// PDFSourceRef builds the synthetic reference used for a PDF file name.
func PDFSourceRef(fileName string) string {
	return PDFRefPrefix + fileName
}

// KindOf classifies a source reference.
func KindOf(ref string) SourceKind {
	if strings.HasPrefix(ref, PDFRefPrefix) {
		return SourceKindPDF
	}
	return SourceKindWeb
}

// PDFFileName returns the file name carried by a PDF reference. Older ledgers
// wrote a space after the colon, so surrounding whitespace is dropped.
func PDFFileName(ref string) (string, bool) {
	if !strings.HasPrefix(ref, PDFRefPrefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(ref, PDFRefPrefix)), true
}
