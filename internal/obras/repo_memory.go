package obras

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo stores obras in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]Obra
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[int64]Obra)}
}

// Add stores o. A zero ID is assigned the next sequence value.
func (r *MemoryRepo) Add(o Obra) Obra {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o.ID == 0 {
		r.nextID++
		o.ID = r.nextID
	} else if o.ID > r.nextID {
		r.nextID = o.ID
	}
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = now
	}
	if o.Status == "" {
		o.Status = "em_andamento"
	}
	r.byID[o.ID] = o
	return o
}

// GetByID returns an obra by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id int64) (Obra, error) {
	if err := ctx.Err(); err != nil {
		return Obra{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.byID[id]
	if !ok {
		return Obra{}, ErrNotFound
	}
	return o, nil
}

var _ Repo = (*MemoryRepo)(nil)
