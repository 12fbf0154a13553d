package reports

import (
	"encoding/json"
	"fmt"
	"time"
)

// Report is a row of relatorios. AnalysisID is empty for manually created
// reports; PDFS3Key is empty until a PDF has been uploaded.
type Report struct {
	ID              int64
	ObraID          int64
	AnalysisID      string
	NomeRelatorio   string
	ConteudoJSON    json.RawMessage
	AnalyzedAt      *time.Time
	OverallProgress *float64
	SequenceNumber  *int
	PDFS3Key        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PDFKey is the object key of the cached PDF for an analysis. It never varies for a given id.
func PDFKey(analysisID string) string {
	return fmt.Sprintf("reports/%s.pdf", analysisID)
}
