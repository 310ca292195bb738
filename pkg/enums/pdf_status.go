package enums

import "fmt"

// PDFStatus describes the lifecycle state of an uploaded PDF document.
type PDFStatus string

const (
	PDFStatusProcessing         PDFStatus = "processing"
	PDFStatusProcessed          PDFStatus = "processed"
	PDFStatusPartiallyProcessed PDFStatus = "partially_processed"
	PDFStatusFailed             PDFStatus = "failed"
)

var validPDFStatuses = []PDFStatus{
	PDFStatusProcessing,
	PDFStatusProcessed,
	PDFStatusPartiallyProcessed,
	PDFStatusFailed,
}

// String returns the literal string for the status.
func (s PDFStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is known.
func (s PDFStatus) IsValid() bool {
	for _, candidate := range validPDFStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s PDFStatus) IsTerminal() bool {
	return s.IsValid() && s != PDFStatusProcessing
}

// ParsePDFStatus converts raw input into a PDFStatus.
func ParsePDFStatus(value string) (PDFStatus, error) {
	for _, candidate := range validPDFStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pdf status %q", value)
}
