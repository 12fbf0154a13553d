package obras

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var obraColumns = []string{
	"id", "nome_obra", "responsavel_obra", "localizacao", "data_inicio", "previsao_termino",
	"observacoes", "progresso", "status", "created_at", "updated_at",
}

func TestPGRepoGetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, nome_obra").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(obraColumns).
			AddRow(int64(7), "Ponte Norte", nil, "Setor B", start, nil, nil, 42.5, "em_andamento", now, now))

	repo := &PGRepo{DB: db}
	o, err := repo.GetByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if o.NomeObra != "Ponte Norte" || o.Localizacao != "Setor B" {
		t.Fatalf("unexpected obra %+v", o)
	}
	if o.DataInicio == nil || !o.DataInicio.Equal(start) {
		t.Fatalf("expected data_inicio %v, got %v", start, o.DataInicio)
	}
	if o.PrevisaoTermino != nil {
		t.Fatalf("expected nil previsao_termino")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT id, nome_obra").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(obraColumns))

	repo := &PGRepo{DB: db}
	if _, err := repo.GetByID(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepoAddAssignsIDs(t *testing.T) {
	repo := NewMemoryRepo()
	a := repo.Add(Obra{NomeObra: "A"})
	b := repo.Add(Obra{ID: 10, NomeObra: "B"})
	c := repo.Add(Obra{NomeObra: "C"})
	if a.ID != 1 || b.ID != 10 || c.ID != 11 {
		t.Fatalf("unexpected ids %d %d %d", a.ID, b.ID, c.ID)
	}
	got, err := repo.GetByID(context.Background(), 10)
	if err != nil || got.NomeObra != "B" || got.Status != "em_andamento" {
		t.Fatalf("unexpected obra %+v err=%v", got, err)
	}
	if _, err := repo.GetByID(context.Background(), 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
