package usecase

import (
	"path/filepath"

	"github.com/user/tablemagnifier/internal/entity"
	"github.com/user/tablemagnifier/pkg/utils"
)

// Source is one unit of batch input. Ref is the ledger's dedup key; Path is
// set for PDF files.
type Source struct {
	Ref  string
	Path string
}

func (s Source) Kind() entity.SourceKind { return entity.KindOf(s.Ref) }

// WebSource wraps a page URL.
func WebSource(url string) Source {
	return Source{Ref: url}
}

// PDFSource wraps a PDF file. Its ref carries only the file name, so the same
// document dropped into the inbox twice is recognised.
func PDFSource(path string) Source {
	return Source{Ref: entity.PDFSourceRef(filepath.Base(path)), Path: path}
}

// ParseSource classifies a queued reference: http(s) URLs are pages,
// anything else is taken as a PDF path.
func ParseSource(ref string) Source {
	if utils.IsWebURL(ref) {
		return WebSource(ref)
	}
	return PDFSource(ref)
}

// Refs returns the dedup keys of sources, in order.
func Refs(sources []Source) []string {
	refs := make([]string, len(sources))
	for i, s := range sources {
		refs[i] = s.Ref
	}
	return refs
}
