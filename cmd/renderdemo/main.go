package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	ledongthuc "github.com/ledongthuc/pdf"

	"construction-monitor/internal/virag"
	"construction-monitor/report/model"
	"construction-monitor/report/pdf"
	"construction-monitor/report/render"
)

func main() {
	inPath := flag.String("in", "./internal/virag/testdata/analysis_abc123.json", "analysis JSON as returned by the AI service")
	outDir := flag.String("out", "./out", "output directory")
	engine := flag.String("engine", pdf.EngineBasic, "pdf engine (basic or chrome)")
	project := flag.String("project", "Obra Demonstração", "project name printed in the header")
	location := flag.String("location", "São Paulo - SP", "project location printed in the header")
	flag.Parse()

	analysis, err := loadAnalysis(*inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load analysis: %v\n", err)
		os.Exit(1)
	}

	reportModel := model.Build(analysis)
	html, err := render.HTML(reportModel, render.Project{Name: *project, Location: *location})
	if err != nil {
		fmt.Fprintf(os.Stderr, "render failed: %v\n", err)
		os.Exit(1)
	}
	if pos := tokenIndex(html); pos != -1 {
		fmt.Fprintf(os.Stderr, "unresolved template tokens near: %s\n", snippetAround(html, pos, 200))
		os.Exit(1)
	}

	gen, err := pdf.New(pdf.Options{Engine: *engine, Timeout: time.Minute})
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdf engine: %v\n", err)
		os.Exit(1)
	}
	defer gen.Close()

	pdfBytes, err := gen.Render(context.Background(), html)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdf render failed: %v\n", err)
		os.Exit(1)
	}

	if err := writeOutputs(*outDir, reportModel, html, pdfBytes); err != nil {
		fmt.Fprintf(os.Stderr, "write failed: %v\n", err)
		os.Exit(1)
	}

	if err := validatePDF(pdfBytes, analysis.AnalysisID); err != nil {
		fmt.Fprintf(os.Stderr, "pdf validation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OK: wrote %s\n", filepath.Join(*outDir, "report.pdf"))
}

func loadAnalysis(path string) (virag.Analysis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return virag.Analysis{}, err
	}
	var a virag.Analysis
	if err := json.Unmarshal(raw, &a); err != nil {
		return virag.Analysis{}, err
	}
	return a, nil
}

func writeOutputs(dir string, reportModel model.ReportModel, html string, pdfBytes []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "report.html"), []byte(html), 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "report.pdf"), pdfBytes, 0o644); err != nil {
		return err
	}

	payload, err := json.MarshalIndent(reportModel, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "report_model.json"), payload, 0o644)
}

func validatePDF(data []byte, analysisID string) error {
	reader, err := ledongthuc.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return err
	}
	if reader.NumPage() == 0 {
		return fmt.Errorf("pdf has no pages")
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return err
	}
	text, err := io.ReadAll(plain)
	if err != nil {
		return err
	}
	if analysisID != "" && !strings.Contains(string(text), analysisID) {
		return fmt.Errorf("analysis id %q not found in pdf text", analysisID)
	}
	return nil
}

func tokenIndex(text string) int {
	if idx := strings.Index(text, "{{"); idx != -1 {
		return idx
	}
	if idx := strings.Index(text, "}}"); idx != -1 {
		return idx
	}
	return -1
}

func snippetAround(text string, pos, maxLen int) string {
	if pos < 0 {
		return ""
	}
	start := pos - maxLen/2
	if start < 0 {
		start = 0
	}
	end := start + maxLen
	if end > len(text) {
		end = len(text)
	}
	return text[start:end]
}
