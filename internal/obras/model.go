package obras

import "time"

// Obra is a construction project. Reports reference it by ID.
type Obra struct {
	ID              int64      `json:"id"`
	NomeObra        string     `json:"nome_obra"`
	ResponsavelObra string     `json:"responsavel_obra,omitempty"`
	Localizacao     string     `json:"localizacao"`
	DataInicio      *time.Time `json:"data_inicio,omitempty"`
	PrevisaoTermino *time.Time `json:"previsao_termino,omitempty"`
	Observacoes     string     `json:"observacoes,omitempty"`
	Progresso       float64    `json:"progresso"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
