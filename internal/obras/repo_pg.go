package obras

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// GetByID returns an obra by ID.
func (r *PGRepo) GetByID(ctx context.Context, id int64) (Obra, error) {
	const query = `
SELECT id, nome_obra, responsavel_obra, localizacao, data_inicio, previsao_termino,
       observacoes, progresso, status, created_at, updated_at
FROM obras
WHERE id = $1
LIMIT 1`
	var o Obra
	var responsavel, localizacao, observacoes sql.NullString
	var dataInicio, previsao sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&o.ID,
		&o.NomeObra,
		&responsavel,
		&localizacao,
		&dataInicio,
		&previsao,
		&observacoes,
		&o.Progresso,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Obra{}, ErrNotFound
		}
		return Obra{}, err
	}
	o.ResponsavelObra = responsavel.String
	o.Localizacao = localizacao.String
	o.Observacoes = observacoes.String
	if dataInicio.Valid {
		o.DataInicio = &dataInicio.Time
	}
	if previsao.Valid {
		o.PrevisaoTermino = &previsao.Time
	}
	return o, nil
}

var _ Repo = (*PGRepo)(nil)
