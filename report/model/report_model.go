package model

import (
	"encoding/json"
)

// ReportModel is the presentation-shaped view of one analysis. It is persisted
// as relatorios.conteudo_json and fed to the renderer.
type ReportModel struct {
	ProjectID        string   `json:"projectId"`
	AnalysisID       string   `json:"analysisId"`
	SequenceNumber   int      `json:"sequenceNumber"`
	AnalyzedAt       string   `json:"analyzedAt"`
	ImageDescription string   `json:"imageDescription"`
	Overview         Overview `json:"overview"`
	Progress         Progress `json:"progress"`
	Elements         Elements `json:"elements"`
	Insights         []string `json:"insights"`
}

// Overview holds the report title and the analysis summary.
type Overview struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Progress carries the overall figure and, when a previous analysis exists,
// the comparison against it. Comparison is nil for the first analysis.
type Progress struct {
	OverallProgress        float64             `json:"overallProgress"`
	OverallProgressPercent string              `json:"overallProgressPercent"`
	Comparison             *ProgressComparison `json:"comparison"`
}

type ProgressComparison struct {
	HasPrevious           bool    `json:"hasPrevious"`
	PreviousAnalysisID    string  `json:"previousAnalysisId,omitempty"`
	PreviousTimestamp     string  `json:"previousTimestamp,omitempty"`
	ProgressChange        float64 `json:"progressChange"`
	ProgressChangePercent string  `json:"progressChangePercent"`
	ProgressSummary       string  `json:"progressSummary,omitempty"`
}

type Elements struct {
	Detected   []DetectedElement `json:"detected"`
	Comparison ElementComparison `json:"comparison"`
}

// DetectedElement is one row of the detected-elements table.
type DetectedElement struct {
	ElementType       string         `json:"elementType"`
	Label             string         `json:"label"`
	CountVisible      int            `json:"countVisible"`
	Status            string         `json:"status"`
	Confidence        float64        `json:"confidence"`
	ConfidencePercent string         `json:"confidencePercent"`
	ConfidenceLabel   ConfidenceTier `json:"confidenceLabel"`
	Description       string         `json:"description"`
}

// ElementComparison lists element changes since the previous analysis.
// Removed and changed entries are passed through as received.
type ElementComparison struct {
	ElementsAdded   []ElementChange   `json:"elementsAdded"`
	ElementsRemoved []json.RawMessage `json:"elementsRemoved"`
	ElementsChanged []json.RawMessage `json:"elementsChanged"`
}

type ElementChange struct {
	ElementType   string `json:"elementType"`
	Label         string `json:"label"`
	ChangeType    string `json:"changeType"`
	CountPrevious int    `json:"countPrevious"`
	CountCurrent  int    `json:"countCurrent"`
	CountChange   int    `json:"countChange"`
	Description   string `json:"description"`
}

// IsFirstAnalysis reports whether there is no previous analysis to compare against.
func (m ReportModel) IsFirstAnalysis() bool {
	return m.Progress.Comparison == nil
}

// Decode parses a model previously stored as conteudo_json.
func Decode(raw []byte) (ReportModel, error) {
	var m ReportModel
	if err := json.Unmarshal(raw, &m); err != nil {
		return ReportModel{}, err
	}
	return m, nil
}
