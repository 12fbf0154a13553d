package virag

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Analysis is one AI assessment of a site photo as returned by GET /bim/analysis/{id}.
type Analysis struct {
	AnalysisID         string            `json:"analysis_id"`
	ProjectID          ProjectID         `json:"project_id"`
	SequenceNumber     int               `json:"sequence_number"`
	AnalyzedAt         string            `json:"analyzed_at"`
	OverallProgress    float64           `json:"overall_progress"`
	Summary            string            `json:"summary"`
	ImageDescription   string            `json:"image_description,omitempty"`
	DetectedElements   []DetectedElement `json:"detected_elements"`
	Alerts             []json.RawMessage `json:"alerts,omitempty"`
	PreviousAnalysisID string            `json:"previous_analysis_id,omitempty"`
	Comparison         *Comparison       `json:"comparison,omitempty"`
}

// DetectedElement is a structural element the model recognized in the photo.
type DetectedElement struct {
	ElementType  string  `json:"element_type"`
	CountVisible int     `json:"count_visible"`
	Status       string  `json:"status"`
	Confidence   float64 `json:"confidence"`
	Description  string  `json:"description"`
}

// Comparison links an analysis to the previous one of the same project.
// AttributeValues is nil for the first analysis.
type Comparison struct {
	AttributeValues *AttributeValues `json:"attribute_values,omitempty"`
}

type AttributeValues struct {
	PreviousTimestamp string            `json:"previous_timestamp,omitempty"`
	ProgressChange    float64           `json:"progress_change"`
	Summary           string            `json:"summary,omitempty"`
	ElementsAdded     []ElementChange   `json:"elements_added,omitempty"`
	ElementsRemoved   []json.RawMessage `json:"elements_removed,omitempty"`
	ElementsChanged   []json.RawMessage `json:"elements_changed,omitempty"`
}

type ElementChange struct {
	ElementType   string `json:"element_type"`
	ChangeType    string `json:"change_type"`
	CountPrevious int    `json:"count_previous"`
	CountCurrent  int    `json:"count_current"`
	CountChange   int    `json:"count_change"`
	Description   string `json:"description"`
}

// HasComparison reports whether the analysis carries a previous-analysis comparison.
func (a *Analysis) HasComparison() bool {
	return a != nil && a.Comparison != nil && a.Comparison.AttributeValues != nil
}

// ProjectID accepts both JSON numbers and strings; the service has emitted both.
type ProjectID string

func (p *ProjectID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = ProjectID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("project_id: %w", err)
	}
	*p = ProjectID(n.String())
	return nil
}

// Int64 parses the id as an obra primary key.
func (p ProjectID) Int64() (int64, error) {
	id, err := strconv.ParseInt(string(p), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("project_id %q is not numeric", string(p))
	}
	return id, nil
}
