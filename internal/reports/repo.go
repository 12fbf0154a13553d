package reports

import "context"

// Repo defines persistence operations for relatorios.
type Repo interface {
	FindByAnalysisID(ctx context.Context, analysisID string) (Report, error)
	// InsertOrGet inserts r unless a row for r.AnalysisID exists, in which case the
	// existing row is returned. inserted reports which case happened.
	InsertOrGet(ctx context.Context, r Report) (row Report, inserted bool, err error)
	UpdatePDFKey(ctx context.Context, analysisID, key string) error
	// Create inserts r and fails with ErrConflict when r.AnalysisID is already taken.
	Create(ctx context.Context, r Report) (Report, error)
	GetByID(ctx context.Context, id int64) (Report, error)
	List(ctx context.Context, limit, offset int) ([]Report, error)
	ListByObra(ctx context.Context, obraID int64) ([]Report, error)
	Delete(ctx context.Context, id int64) (Report, error)
}
