package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"construction-monitor/internal/shared/telemetry"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// CreateManual stores a report supplied by the client for a photo date.
func (s *Service) CreateManual(ctx context.Context, obraID int64, dataFoto string, conteudo json.RawMessage) (Report, error) {
	dataFoto = strings.TrimSpace(dataFoto)
	if dataFoto == "" || len(conteudo) == 0 || string(conteudo) == "null" {
		return Report{}, fmt.Errorf("%w: data_foto and conteudo_json are required", ErrInvalidInput)
	}
	if !json.Valid(conteudo) {
		return Report{}, fmt.Errorf("%w: conteudo_json is not valid JSON", ErrInvalidInput)
	}

	obra, err := s.Obras.GetByID(ctx, obraID)
	if err != nil {
		return Report{}, fmt.Errorf("load obra %d: %w", obraID, err)
	}

	rep, err := s.Repo.Create(ctx, Report{
		ObraID:        obra.ID,
		NomeRelatorio: ManualReportName(obra.NomeObra, dataFoto),
		ConteudoJSON:  conteudo,
	})
	if err != nil {
		return Report{}, err
	}
	telemetry.Info("report.created", map[string]any{"report_id": rep.ID, "obra_id": obraID})
	return rep, nil
}

// List returns all reports, newest first. limit is clamped to [1, 200].
func (s *Service) List(ctx context.Context, limit, offset int) ([]Report, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.Repo.List(ctx, limit, offset)
}

// ListByObra returns the reports of one obra, newest first.
func (s *Service) ListByObra(ctx context.Context, obraID int64) ([]Report, error) {
	return s.Repo.ListByObra(ctx, obraID)
}

func (s *Service) Get(ctx context.Context, id int64) (Report, error) {
	return s.Repo.GetByID(ctx, id)
}

// Delete removes the row only. The cached PDF stays at its key, so a later
// retrieval recreates the row and hits the cache.
func (s *Service) Delete(ctx context.Context, id int64) (Report, error) {
	rep, err := s.Repo.Delete(ctx, id)
	if err != nil {
		return Report{}, err
	}
	telemetry.Info("report.deleted", map[string]any{"report_id": id, "analysis_id": rep.AnalysisID})
	return rep, nil
}
