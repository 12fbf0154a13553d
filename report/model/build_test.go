package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"construction-monitor/internal/virag"
)

func baseAnalysis() virag.Analysis {
	return virag.Analysis{
		AnalysisID:      "abc123",
		ProjectID:       "7",
		SequenceNumber:  3,
		AnalyzedAt:      "2025-03-10T14:30:00Z",
		OverallProgress: 0.42,
		Summary:         "Estrutura metálica em montagem.",
		DetectedElements: []virag.DetectedElement{
			{ElementType: "Column", CountVisible: 12, Status: "completed", Confidence: 0.91, Description: "Colunas alinhadas"},
			{ElementType: "Scaffold", CountVisible: 4, Status: "temporary", Confidence: 0.55, Description: "Andaimes"},
		},
	}
}

func TestConfidenceBoundaries(t *testing.T) {
	tests := []struct {
		fraction float64
		want     ConfidenceTier
	}{
		{0, ConfidenceLow},
		{0.59, ConfidenceLow},
		{0.5999, ConfidenceLow},
		{0.60, ConfidenceMedium},
		{0.79, ConfidenceMedium},
		{0.80, ConfidenceHigh},
		{1, ConfidenceHigh},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Confidence(tt.fraction), "fraction %v", tt.fraction)
	}
}

func TestLabelKnownAndUnknown(t *testing.T) {
	tests := map[string]string{
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
		"Scaffold":    "Scaffold",
		"":            "",
		"column":      "column",
	}
	for code, want := range tests {
		require.Equal(t, want, Label(code), "code %q", code)
	}
}

func TestBuildFirstAnalysisScenario(t *testing.T) {
	m := Build(baseAnalysis())

	require.Equal(t, "42.00", m.Progress.OverallProgressPercent)
	require.Equal(t, []string{"A obra está em andamento, com progresso intermediário."}, m.Insights)
	require.Nil(t, m.Progress.Comparison)
	require.True(t, m.IsFirstAnalysis())
	require.Equal(t, "Relatório de Progresso - Análise #3", m.Overview.Title)
	require.Equal(t, "Sem descrição", m.ImageDescription)
	require.Empty(t, m.Elements.Comparison.ElementsAdded)

	require.Len(t, m.Elements.Detected, 2)
	require.Equal(t, "Colunas metálicas", m.Elements.Detected[0].Label)
	require.Equal(t, "91.0", m.Elements.Detected[0].ConfidencePercent)
	require.Equal(t, ConfidenceHigh, m.Elements.Detected[0].ConfidenceLabel)
	require.Equal(t, "Scaffold", m.Elements.Detected[1].Label)
	require.Equal(t, ConfidenceLow, m.Elements.Detected[1].ConfidenceLabel)
}

func TestBuildWithComparisonAddsGainInsightLast(t *testing.T) {
	a := baseAnalysis()
	a.PreviousAnalysisID = "abc122"
	a.Comparison = &virag.Comparison{AttributeValues: &virag.AttributeValues{
		PreviousTimestamp: "2025-02-10T10:00:00Z",
		ProgressChange:    5.25,
		Summary:           "Cobertura avançou.",
		ElementsAdded: []virag.ElementChange{
			{ElementType: "Beam", ChangeType: "added", CountPrevious: 2, CountCurrent: 6, CountChange: 4, Description: "Novas vigas"},
		},
		ElementsRemoved: []json.RawMessage{json.RawMessage(`{"element_type":"Scaffold"}`)},
	}}

	m := Build(a)

	require.Equal(t, []string{
		"A obra está em andamento, com progresso intermediário.",
		"Houve evolução positiva de 5.25% em relação à análise anterior.",
	}, m.Insights)
	require.NotNil(t, m.Progress.Comparison)
	require.True(t, m.Progress.Comparison.HasPrevious)
	require.Equal(t, "abc122", m.Progress.Comparison.PreviousAnalysisID)
	require.Equal(t, "5.25", m.Progress.Comparison.ProgressChangePercent)
	require.Len(t, m.Elements.Comparison.ElementsAdded, 1)
	require.Equal(t, "Vigas metálicas", m.Elements.Comparison.ElementsAdded[0].Label)
	require.Equal(t, 4, m.Elements.Comparison.ElementsAdded[0].CountChange)
	require.Len(t, m.Elements.Comparison.ElementsRemoved, 1)
	require.NotNil(t, m.Elements.Comparison.ElementsChanged)
}

func TestBuildInsightOrderWithAlerts(t *testing.T) {
	a := baseAnalysis()
	a.OverallProgress = 0.85
	a.Alerts = []json.RawMessage{json.RawMessage(`{"type":"safety"}`), json.RawMessage(`{"type":"delay"}`)}
	a.Comparison = &virag.Comparison{AttributeValues: &virag.AttributeValues{ProgressChange: 3}}

	m := Build(a)

	require.Equal(t, []string{
		"A obra está em estágio avançado de execução.",
		"2 alerta(s) identificado(s) que requerem atenção.",
		"Houve evolução positiva de 3.00% em relação à análise anterior.",
	}, m.Insights)
}

func TestBuildStageThresholds(t *testing.T) {
	tests := []struct {
		progress float64
		want     string
	}{
		{0, "A obra está em estágio inicial de construção."},
		{0.2999, "A obra está em estágio inicial de construção."},
		{0.30, "A obra está em andamento, com progresso intermediário."},
		{0.6999, "A obra está em andamento, com progresso intermediário."},
		{0.70, "A obra está em estágio avançado de execução."},
		{1, "A obra está em estágio avançado de execução."},
	}
	for _, tt := range tests {
		a := baseAnalysis()
		a.OverallProgress = tt.progress
		require.Equal(t, tt.want, Build(a).Insights[0], "progress %v", tt.progress)
	}
}

func TestBuildNoGainInsightWhenChangeNotPositive(t *testing.T) {
	for _, change := range []float64{0, -1.5} {
		a := baseAnalysis()
		a.Comparison = &virag.Comparison{AttributeValues: &virag.AttributeValues{ProgressChange: change}}
		m := Build(a)
		require.Len(t, m.Insights, 1, "change %v", change)
		require.NotNil(t, m.Progress.Comparison, "comparison block stays present")
	}
}

func TestBuildComparisonWithoutAttributeValuesIsFirstAnalysis(t *testing.T) {
	a := baseAnalysis()
	a.Comparison = &virag.Comparison{}
	require.True(t, Build(a).IsFirstAnalysis())
}

func TestBuildIsDeterministicAndDecodable(t *testing.T) {
	a := baseAnalysis()
	first, err := json.Marshal(Build(a))
	require.NoError(t, err)
	second, err := json.Marshal(Build(a))
	require.NoError(t, err)
	require.JSONEq(t, string(first), string(second))

	decoded, err := Decode(first)
	require.NoError(t, err)
	require.Equal(t, Build(a), decoded)
}
