package reports

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"construction-monitor/internal/obras"
	"construction-monitor/internal/shared/storage/object/local"
	"construction-monitor/internal/virag"
)

type fakeFetcher struct {
	mu       sync.Mutex
	analysis virag.Analysis
	err      error
	calls    atomic.Int32
}

func (f *fakeFetcher) FetchAnalysis(ctx context.Context, analysisID string) (*virag.Analysis, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	a := f.analysis
	a.AnalysisID = analysisID
	return &a, nil
}

func (f *fakeFetcher) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type fakePDF struct {
	renders atomic.Int32
	fail    atomic.Bool
	lastLen atomic.Int32
}

func (f *fakePDF) Render(ctx context.Context, html string) ([]byte, error) {
	if f.fail.Load() {
		return nil, errors.New("pdf: chrome crashed")
	}
	f.renders.Add(1)
	f.lastLen.Store(int32(len(html)))
	return []byte("%PDF-1.4 fake"), nil
}

func (f *fakePDF) Close() error { return nil }

type testEnv struct {
	svc     *Service
	repo    *MemoryRepo
	obras   *obras.MemoryRepo
	fetcher *fakeFetcher
	pdf     *fakePDF
	store   *local.Store
}

func loadFixture(t *testing.T) virag.Analysis {
	t.Helper()
	raw, err := os.ReadFile("../virag/testdata/analysis_abc123.json")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	var a virag.Analysis
	if err := json.Unmarshal(raw, &a); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return a
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	obraRepo := obras.NewMemoryRepo()
	obraRepo.Add(obras.Obra{ID: 7, NomeObra: "Ponte Norte", Localizacao: "Setor B"})

	env := &testEnv{
		repo:    NewMemoryRepo(),
		obras:   obraRepo,
		fetcher: &fakeFetcher{analysis: loadFixture(t)},
		pdf:     &fakePDF{},
		store:   local.New(t.TempDir(), "http://localhost:3000/files", "test-key"),
	}
	env.svc = &Service{
		Repo:    env.repo,
		Obras:   env.obras,
		Fetcher: env.fetcher,
		Store:   env.store,
		PDF:     env.pdf,
		URLTTL:  time.Hour,
	}
	return env
}
