package entity

import "fmt"

// DetectionMethod records which strategy located a table region.
type DetectionMethod string

const (
	MethodDOMTable         DetectionMethod = "dom_table"
	MethodImageMorphology  DetectionMethod = "image_morphology"
	MethodPDFNativeTable   DetectionMethod = "pdf_native_table"
	MethodFullPageFallback DetectionMethod = "full_page_fallback"
)

// DetectionMethods lists every known method in a stable order.
var DetectionMethods = []DetectionMethod{
	MethodDOMTable,
	MethodImageMorphology,
	MethodPDFNativeTable,
	MethodFullPageFallback,
}

// ParseDetectionMethod validates a stored or configured method name.
func ParseDetectionMethod(s string) (DetectionMethod, error) {
	for _, m := range DetectionMethods {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown detection method %q", s)
}

// TableRecord mirrors the `table_records` table and the "Table Details" sheet.
// A TableRecord belongs to exactly one SourceRecord through OriginID.
type TableRecord struct {
	OriginID        int
	TableIndex      int
	ImageRef        string
	Rows            int
	Cols            int
	PixelWidth      int
	PixelHeight     int
	PositionTag     string
	PreviewText     string
	DetectionMethod DetectionMethod
}
