package model

import (
	"encoding/json"
	"fmt"
	"math"

	"construction-monitor/internal/virag"
)

// ConfidenceTier is the localized confidence bucket shown next to each element.
type ConfidenceTier string

const (
	ConfidenceLow    ConfidenceTier = "Baixa"
	ConfidenceMedium ConfidenceTier = "Média"
	ConfidenceHigh   ConfidenceTier = "Alta"
)

const defaultImageDescription = "Sem descrição"

const (
	insightEarlyStage    = "A obra está em estágio inicial de construção."
	insightInProgress    = "A obra está em andamento, com progresso intermediário."
	insightAdvancedStage = "A obra está em estágio avançado de execução."
)

var elementLabels = map[string]string{
	"Column":      "Colunas metálicas",
	"Beam":        "Vigas metálicas",
	"Roof":        "Cobertura metálica",
	"Wall":        "Paredes",
	"Door":        "Portas",
	"Window":      "Janelas",
	"Floor":       "Pisos",
	"Slab":        "Lajes",
	"Stair":       "Escadas",
	"Railing":     "Guarda-corpos",
	"CurtainWall": "Fachada cortina",
}

// Label returns the display label for an element type code. Unknown codes are returned unchanged.
func Label(elementType string) string {
	if label, ok := elementLabels[elementType]; ok {
		return label
	}
	return elementType
}

// Confidence buckets a 0–1 fraction. Lower bounds are inclusive: 0.60 is Média, 0.80 is Alta.
func Confidence(fraction float64) ConfidenceTier {
	switch {
	case fraction < 0.6:
		return ConfidenceLow
	case fraction < 0.8:
		return ConfidenceMedium
	default:
		return ConfidenceHigh
	}
}

// Title is the report heading for an analysis sequence number.
func Title(sequenceNumber int) string {
	return fmt.Sprintf("Relatório de Progresso - Análise #%d", sequenceNumber)
}

// ProgressPercent converts an overall_progress fraction to a percentage rounded to 2 decimals.
func ProgressPercent(fraction float64) float64 {
	return round2(fraction * 100)
}

// FormatPercent renders a percentage with exactly 2 decimals.
func FormatPercent(percent float64) string {
	return fmt.Sprintf("%.2f", round2(percent))
}

// Build derives the report model from an analysis. It performs no I/O.
func Build(a virag.Analysis) ReportModel {
	percent := ProgressPercent(a.OverallProgress)

	m := ReportModel{
		ProjectID:        string(a.ProjectID),
		AnalysisID:       a.AnalysisID,
		SequenceNumber:   a.SequenceNumber,
		AnalyzedAt:       a.AnalyzedAt,
		ImageDescription: a.ImageDescription,
		Overview: Overview{
			Title:   Title(a.SequenceNumber),
			Summary: a.Summary,
		},
		Progress: Progress{
			OverallProgress:        a.OverallProgress,
			OverallProgressPercent: FormatPercent(percent),
		},
		Elements: Elements{
			Detected: buildDetected(a.DetectedElements),
			Comparison: ElementComparison{
				ElementsAdded:   []ElementChange{},
				ElementsRemoved: []json.RawMessage{},
				ElementsChanged: []json.RawMessage{},
			},
		},
	}
	if m.ImageDescription == "" {
		m.ImageDescription = defaultImageDescription
	}

	var attrs *virag.AttributeValues
	if a.HasComparison() {
		attrs = a.Comparison.AttributeValues
		m.Progress.Comparison = &ProgressComparison{
			HasPrevious:           true,
			PreviousAnalysisID:    a.PreviousAnalysisID,
			PreviousTimestamp:     attrs.PreviousTimestamp,
			ProgressChange:        attrs.ProgressChange,
			ProgressChangePercent: FormatPercent(attrs.ProgressChange),
			ProgressSummary:       attrs.Summary,
		}
		m.Elements.Comparison = buildElementComparison(attrs)
	}

	m.Insights = buildInsights(percent, len(a.Alerts), attrs)
	return m
}

func buildDetected(in []virag.DetectedElement) []DetectedElement {
	out := make([]DetectedElement, 0, len(in))
	for _, e := range in {
		out = append(out, DetectedElement{
			ElementType:       e.ElementType,
			Label:             Label(e.ElementType),
			CountVisible:      e.CountVisible,
			Status:            e.Status,
			Confidence:        e.Confidence,
			ConfidencePercent: fmt.Sprintf("%.1f", e.Confidence*100),
			ConfidenceLabel:   Confidence(e.Confidence),
			Description:       e.Description,
		})
	}
	return out
}

func buildElementComparison(attrs *virag.AttributeValues) ElementComparison {
	cmp := ElementComparison{
		ElementsAdded:   make([]ElementChange, 0, len(attrs.ElementsAdded)),
		ElementsRemoved: attrs.ElementsRemoved,
		ElementsChanged: attrs.ElementsChanged,
	}
	for _, e := range attrs.ElementsAdded {
		cmp.ElementsAdded = append(cmp.ElementsAdded, ElementChange{
			ElementType:   e.ElementType,
			Label:         Label(e.ElementType),
			ChangeType:    e.ChangeType,
			CountPrevious: e.CountPrevious,
			CountCurrent:  e.CountCurrent,
			CountChange:   e.CountChange,
			Description:   e.Description,
		})
	}
	if cmp.ElementsRemoved == nil {
		cmp.ElementsRemoved = []json.RawMessage{}
	}
	if cmp.ElementsChanged == nil {
		cmp.ElementsChanged = []json.RawMessage{}
	}
	return cmp
}

// buildInsights appends, in order: the stage line, the alert count, the positive progress change.
func buildInsights(percent float64, alerts int, attrs *virag.AttributeValues) []string {
	insights := make([]string, 0, 3)
	switch {
	case percent < 30:
		insights = append(insights, insightEarlyStage)
	case percent < 70:
		insights = append(insights, insightInProgress)
	default:
		insights = append(insights, insightAdvancedStage)
	}
	if alerts > 0 {
		insights = append(insights, fmt.Sprintf("%d alerta(s) identificado(s) que requerem atenção.", alerts))
	}
	if attrs != nil && attrs.ProgressChange > 0 {
		insights = append(insights, fmt.Sprintf("Houve evolução positiva de %s%% em relação à análise anterior.", FormatPercent(attrs.ProgressChange)))
	}
	return insights
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
