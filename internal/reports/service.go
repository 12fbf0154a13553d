package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"construction-monitor/internal/obras"
	"construction-monitor/internal/shared/metrics"
	"construction-monitor/internal/shared/storage/object"
	"construction-monitor/internal/shared/telemetry"
	"construction-monitor/internal/virag"
	"construction-monitor/report/model"
	"construction-monitor/report/pdf"
	"construction-monitor/report/render"
)

const (
	DefaultURLTTL  = time.Hour
	pdfContentType = "application/pdf"
)

// Service retrieves analysis reports, generating and caching the PDF on first use.
type Service struct {
	Repo    Repo
	Obras   obras.Repo
	Fetcher virag.Fetcher
	Store   object.Store
	PDF     pdf.Generator
	URLTTL  time.Duration
}

// Retrieval is the outcome of RetrieveByAnalysisID. Exactly one of PDFExists
// and Generated is true.
type Retrieval struct {
	Report      Report
	Obra        obras.Obra
	DownloadURL string
	PDFExists   bool
	Generated   bool
}

// RetrieveByAnalysisID returns a signed download URL for the analysis report.
//
// Metadata is looked up first and built from a freshly fetched analysis on a
// miss. The PDF is then probed at PDFKey; when absent the analysis is fetched
// again, rendered, uploaded and its key recorded. Nothing is rolled back on
// failure: a row without pdf_s3_key is retried on the next call.
func (s *Service) RetrieveByAnalysisID(ctx context.Context, analysisID string) (Retrieval, error) {
	analysisID = strings.TrimSpace(analysisID)
	if analysisID == "" {
		return Retrieval{}, fmt.Errorf("%w: analysis id is required", ErrInvalidInput)
	}
	start := time.Now()

	rep, obra, err := s.loadOrCreateMetadata(ctx, analysisID)
	if err != nil {
		return Retrieval{}, err
	}

	key := PDFKey(analysisID)
	exists, err := s.Store.Exists(ctx, key)
	if err != nil {
		return Retrieval{}, s.fail(ctx, "pdf_probe", analysisID, fmt.Errorf("check pdf %s: %w", key, err))
	}

	out := Retrieval{Report: rep, Obra: obra, PDFExists: exists}
	if exists {
		if rep.PDFS3Key != key {
			if err := s.Repo.UpdatePDFKey(ctx, analysisID, key); err != nil {
				return Retrieval{}, s.fail(ctx, "metadata", analysisID, fmt.Errorf("record pdf key: %w", err))
			}
			out.Report.PDFS3Key = key
		}
		metrics.IncReportHit()
	} else {
		if err := s.generatePDF(ctx, analysisID, key, obra); err != nil {
			return Retrieval{}, err
		}
		out.Report.PDFS3Key = key
		out.Generated = true
		metrics.IncReportGenerated()
		metrics.ObserveReportGeneration(time.Since(start))
	}

	url, err := s.Store.SignedURL(ctx, key, s.ttl())
	if err != nil {
		return Retrieval{}, s.fail(ctx, "sign", analysisID, fmt.Errorf("sign download url: %w", err))
	}
	out.DownloadURL = url

	telemetry.Info("report.retrieve", telemetry.WithContext(ctx, map[string]any{
		"analysis_id": analysisID,
		"report_id":   out.Report.ID,
		"pdf_exists":  out.PDFExists,
		"generated":   out.Generated,
		"duration_ms": time.Since(start).Milliseconds(),
	}))
	return out, nil
}

func (s *Service) loadOrCreateMetadata(ctx context.Context, analysisID string) (Report, obras.Obra, error) {
	rep, err := s.Repo.FindByAnalysisID(ctx, analysisID)
	if err == nil {
		obra, err := s.Obras.GetByID(ctx, rep.ObraID)
		if err != nil {
			return Report{}, obras.Obra{}, s.fail(ctx, "project", analysisID, fmt.Errorf("load obra %d: %w", rep.ObraID, err))
		}
		return rep, obra, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Report{}, obras.Obra{}, s.fail(ctx, "metadata", analysisID, fmt.Errorf("find report: %w", err))
	}

	analysis, err := s.Fetcher.FetchAnalysis(ctx, analysisID)
	if err != nil {
		return Report{}, obras.Obra{}, s.fail(ctx, "fetch", analysisID, fmt.Errorf("fetch analysis: %w", err))
	}
	built := model.Build(*analysis)

	obra, err := s.resolveObra(ctx, analysis.ProjectID)
	if err != nil {
		return Report{}, obras.Obra{}, s.fail(ctx, "project", analysisID, err)
	}

	content, err := json.Marshal(built)
	if err != nil {
		return Report{}, obras.Obra{}, s.fail(ctx, "metadata", analysisID, fmt.Errorf("encode report model: %w", err))
	}
	progress := analysis.OverallProgress
	seq := analysis.SequenceNumber
	row := Report{
		ObraID:          obra.ID,
		AnalysisID:      analysisID,
		NomeRelatorio:   ReportName(obra.NomeObra, seq),
		ConteudoJSON:    content,
		OverallProgress: &progress,
		SequenceNumber:  &seq,
	}
	if t, ok := render.ParseTimestamp(analysis.AnalyzedAt); ok {
		row.AnalyzedAt = &t
	}

	rep, inserted, err := s.Repo.InsertOrGet(ctx, row)
	if err != nil {
		return Report{}, obras.Obra{}, s.fail(ctx, "metadata", analysisID, fmt.Errorf("insert report: %w", err))
	}
	telemetry.Info("report.metadata", map[string]any{
		"analysis_id": analysisID,
		"report_id":   rep.ID,
		"inserted":    inserted,
	})
	return rep, obra, nil
}

// generatePDF always re-fetches the analysis rather than decoding conteudo_json,
// so a regenerated PDF reflects upstream corrections.
func (s *Service) generatePDF(ctx context.Context, analysisID, key string, obra obras.Obra) error {
	analysis, err := s.Fetcher.FetchAnalysis(ctx, analysisID)
	if err != nil {
		return s.fail(ctx, "fetch", analysisID, fmt.Errorf("fetch analysis: %w", err))
	}
	built := model.Build(*analysis)

	html, err := render.HTML(built, render.Project{Name: obra.NomeObra, Location: obra.Localizacao})
	if err != nil {
		return s.fail(ctx, "render", analysisID, fmt.Errorf("%w: %w", pdf.ErrRender, err))
	}
	data, err := s.PDF.Render(ctx, html)
	if err != nil {
		return s.fail(ctx, "render", analysisID, err)
	}

	err = s.Store.Put(ctx, key, data, object.PutOptions{
		ContentType:        pdfContentType,
		ContentDisposition: fmt.Sprintf(`inline; filename="relatorio-%s.pdf"`, analysisID),
	})
	if err != nil {
		return s.fail(ctx, "upload", analysisID, fmt.Errorf("upload pdf %s: %w", key, err))
	}
	if err := s.Repo.UpdatePDFKey(ctx, analysisID, key); err != nil {
		return s.fail(ctx, "metadata", analysisID, fmt.Errorf("record pdf key: %w", err))
	}

	telemetry.Info("report.pdf.generated", map[string]any{
		"analysis_id": analysisID,
		"key":         key,
		"bytes":       len(data),
	})
	return nil
}

func (s *Service) resolveObra(ctx context.Context, projectID virag.ProjectID) (obras.Obra, error) {
	id, err := projectID.Int64()
	if err != nil {
		return obras.Obra{}, fmt.Errorf("%w: %v", obras.ErrNotFound, err)
	}
	obra, err := s.Obras.GetByID(ctx, id)
	if err != nil {
		return obras.Obra{}, fmt.Errorf("load obra %d: %w", id, err)
	}
	return obra, nil
}

func (s *Service) fail(ctx context.Context, stage, analysisID string, err error) error {
	metrics.IncReportFailed(stage)
	telemetry.Error("report.retrieve.failed", telemetry.WithContext(ctx, map[string]any{
		"analysis_id": analysisID,
		"stage":       stage,
		"error":       err,
	}))
	return err
}

func (s *Service) ttl() time.Duration {
	if s.URLTTL > 0 {
		return s.URLTTL
	}
	return DefaultURLTTL
}

// ReportName titles an analysis report after its obra.
func ReportName(nomeObra string, sequenceNumber int) string {
	return fmt.Sprintf("Relatório-%s-Análise-%d", nomeObra, sequenceNumber)
}

// ManualReportName titles a report created from a photo date.
func ManualReportName(nomeObra, dataFoto string) string {
	return fmt.Sprintf("Relatório-%s-%s", nomeObra, dataFoto)
}
