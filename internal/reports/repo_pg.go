package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const reportColumns = `id, obra_id, analysis_id, nome_relatorio, conteudo_json, analyzed_at,
       overall_progress, sequence_number, pdf_s3_key, created_at, updated_at`

const uniqueViolation = "23505"

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

// FindByAnalysisID returns the report cached for an analysis.
func (r *PGRepo) FindByAnalysisID(ctx context.Context, analysisID string) (Report, error) {
	query := `SELECT ` + reportColumns + ` FROM relatorios WHERE analysis_id = $1 LIMIT 1`
	return scanReport(r.DB.QueryRowContext(ctx, query, analysisID))
}

// InsertOrGet runs a single conditional insert on the analysis_id unique key.
// The no-op update makes RETURNING yield the existing row; xmax = 0 only for fresh inserts.
func (r *PGRepo) InsertOrGet(ctx context.Context, rep Report) (Report, bool, error) {
	if rep.AnalysisID == "" {
		return Report{}, false, fmt.Errorf("%w: analysis id is required", ErrInvalidInput)
	}
	query := `
INSERT INTO relatorios (obra_id, analysis_id, nome_relatorio, conteudo_json, analyzed_at, overall_progress, sequence_number)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (analysis_id) DO UPDATE SET analysis_id = EXCLUDED.analysis_id
RETURNING ` + reportColumns + `, (xmax = 0) AS inserted`

	var inserted bool
	out, err := scanReport(r.DB.QueryRowContext(ctx, query, insertArgs(rep)...), &inserted)
	if err != nil {
		return Report{}, false, err
	}
	return out, inserted, nil
}

// UpdatePDFKey records the uploaded PDF key for an analysis.
func (r *PGRepo) UpdatePDFKey(ctx context.Context, analysisID, key string) error {
	const query = `UPDATE relatorios SET pdf_s3_key = $2, updated_at = now() WHERE analysis_id = $1`
	res, err := r.DB.ExecContext(ctx, query, analysisID, key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Create inserts a report row.
func (r *PGRepo) Create(ctx context.Context, rep Report) (Report, error) {
	query := `
INSERT INTO relatorios (obra_id, analysis_id, nome_relatorio, conteudo_json, analyzed_at, overall_progress, sequence_number)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + reportColumns

	out, err := scanReport(r.DB.QueryRowContext(ctx, query, insertArgs(rep)...))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Report{}, ErrConflict
		}
		return Report{}, err
	}
	return out, nil
}

// GetByID returns a report by primary key.
func (r *PGRepo) GetByID(ctx context.Context, id int64) (Report, error) {
	query := `SELECT ` + reportColumns + ` FROM relatorios WHERE id = $1 LIMIT 1`
	return scanReport(r.DB.QueryRowContext(ctx, query, id))
}

// List returns all reports, newest first.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Report, error) {
	query := `SELECT ` + reportColumns + ` FROM relatorios ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`
	return r.query(ctx, query, limit, offset)
}

// ListByObra returns the reports of one obra, newest first.
func (r *PGRepo) ListByObra(ctx context.Context, obraID int64) ([]Report, error) {
	query := `SELECT ` + reportColumns + ` FROM relatorios WHERE obra_id = $1 ORDER BY created_at DESC, id DESC`
	return r.query(ctx, query, obraID)
}

// Delete removes a report and returns the deleted row.
func (r *PGRepo) Delete(ctx context.Context, id int64) (Report, error) {
	query := `DELETE FROM relatorios WHERE id = $1 RETURNING ` + reportColumns
	return scanReport(r.DB.QueryRowContext(ctx, query, id))
}

func (r *PGRepo) query(ctx context.Context, query string, args ...any) ([]Report, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Report{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func insertArgs(rep Report) []any {
	content := string(rep.ConteudoJSON)
	if content == "" {
		content = "{}"
	}
	var analyzedAt any
	if rep.AnalyzedAt != nil {
		analyzedAt = *rep.AnalyzedAt
	}
	var progress any
	if rep.OverallProgress != nil {
		progress = *rep.OverallProgress
	}
	var seq any
	if rep.SequenceNumber != nil {
		seq = int64(*rep.SequenceNumber)
	}
	return []any{rep.ObraID, nullString(rep.AnalysisID), rep.NomeRelatorio, content, analyzedAt, progress, seq}
}

func scanReport(row rowScanner, extra ...any) (Report, error) {
	var rep Report
	var analysisID, pdfKey sql.NullString
	var content []byte
	var analyzedAt sql.NullTime
	var progress sql.NullFloat64
	var seq sql.NullInt64

	dest := []any{
		&rep.ID,
		&rep.ObraID,
		&analysisID,
		&rep.NomeRelatorio,
		&content,
		&analyzedAt,
		&progress,
		&seq,
		&pdfKey,
		&rep.CreatedAt,
		&rep.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Report{}, ErrNotFound
		}
		return Report{}, err
	}

	rep.AnalysisID = analysisID.String
	rep.PDFS3Key = pdfKey.String
	if len(content) > 0 {
		rep.ConteudoJSON = append([]byte(nil), content...)
	}
	if analyzedAt.Valid {
		t := analyzedAt.Time
		rep.AnalyzedAt = &t
	}
	if progress.Valid {
		p := progress.Float64
		rep.OverallProgress = &p
	}
	if seq.Valid {
		n := int(seq.Int64)
		rep.SequenceNumber = &n
	}
	return rep, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Repo = (*PGRepo)(nil)
