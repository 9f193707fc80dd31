package reporting

import (
	"context"
	"errors"
	"sync"
	"time"

	"gymcrm-calls/internal/calls"
)

// MemoryRepo is a simple in-memory reporting repository for tests.
// It enforces director isolation on reads.
type MemoryRepo struct {
	mu    sync.Mutex
	Calls []calls.Call
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListCalls(ctx context.Context, directorID int64, from, to time.Time) ([]calls.Call, error) {
	if directorID <= 0 {
		return nil, errors.New("director_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.Call, 0)
	for _, c := range r.Calls {
		if c.DirectorID != directorID {
			continue
		}
		if c.CallTime.Before(from) || !c.CallTime.Before(to) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
