package obras

import "context"

// Repo is the read side of obras needed for report titling.
type Repo interface {
	GetByID(ctx context.Context, id int64) (Obra, error)
}
