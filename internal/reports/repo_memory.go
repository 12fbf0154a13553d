package reports

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores reports in memory and is safe for concurrent use.
// The analysis id index mirrors the unique constraint of the Postgres table.
type MemoryRepo struct {
	mu         sync.RWMutex
	nextID     int64
	byID       map[int64]Report
	byAnalysis map[string]int64
	now        func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:       make(map[int64]Report),
		byAnalysis: make(map[string]int64),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// FindByAnalysisID returns the report cached for an analysis.
func (r *MemoryRepo) FindByAnalysisID(ctx context.Context, analysisID string) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byAnalysis[analysisID]
	if !ok {
		return Report{}, ErrNotFound
	}
	return r.byID[id], nil
}

// InsertOrGet inserts rep or returns the row already holding rep.AnalysisID.
func (r *MemoryRepo) InsertOrGet(ctx context.Context, rep Report) (Report, bool, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, false, err
	}
	if rep.AnalysisID == "" {
		return Report{}, false, fmt.Errorf("%w: analysis id is required", ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byAnalysis[rep.AnalysisID]; ok {
		return r.byID[id], false, nil
	}
	return r.insertLocked(rep), true, nil
}

// UpdatePDFKey records the uploaded PDF key for an analysis.
func (r *MemoryRepo) UpdatePDFKey(ctx context.Context, analysisID, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byAnalysis[analysisID]
	if !ok {
		return ErrNotFound
	}
	rep := r.byID[id]
	rep.PDFS3Key = key
	rep.UpdatedAt = r.now()
	r.byID[id] = rep
	return nil
}

// Create inserts a report row.
func (r *MemoryRepo) Create(ctx context.Context, rep Report) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if rep.AnalysisID != "" {
		if _, ok := r.byAnalysis[rep.AnalysisID]; ok {
			return Report{}, ErrConflict
		}
	}
	return r.insertLocked(rep), nil
}

// GetByID returns a report by primary key.
func (r *MemoryRepo) GetByID(ctx context.Context, id int64) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rep, ok := r.byID[id]
	if !ok {
		return Report{}, ErrNotFound
	}
	return rep, nil
}

// List returns all reports, newest first.
func (r *MemoryRepo) List(ctx context.Context, limit, offset int) ([]Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all := r.sorted(func(Report) bool { return true })
	if offset >= len(all) {
		return []Report{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// ListByObra returns the reports of one obra, newest first.
func (r *MemoryRepo) ListByObra(ctx context.Context, obraID int64) ([]Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.sorted(func(rep Report) bool { return rep.ObraID == obraID }), nil
}

// Delete removes a report and returns the deleted row.
func (r *MemoryRepo) Delete(ctx context.Context, id int64) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.byID[id]
	if !ok {
		return Report{}, ErrNotFound
	}
	delete(r.byID, id)
	if rep.AnalysisID != "" {
		delete(r.byAnalysis, rep.AnalysisID)
	}
	return rep, nil
}

// Count returns the number of stored rows.
func (r *MemoryRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *MemoryRepo) insertLocked(rep Report) Report {
	r.nextID++
	now := r.now()
	rep.ID = r.nextID
	rep.PDFS3Key = ""
	rep.CreatedAt = now
	rep.UpdatedAt = now
	if len(rep.ConteudoJSON) == 0 {
		rep.ConteudoJSON = []byte("{}")
	}
	r.byID[rep.ID] = rep
	if rep.AnalysisID != "" {
		r.byAnalysis[rep.AnalysisID] = rep.ID
	}
	return rep
}

func (r *MemoryRepo) sorted(keep func(Report) bool) []Report {
	r.mu.RLock()
	out := make([]Report, 0, len(r.byID))
	for _, rep := range r.byID {
		if keep(rep) {
			out = append(out, rep)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

var _ Repo = (*MemoryRepo)(nil)
