package chat

import (
	"context"
	"sync"
)

type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]Record
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: map[string]Record{}}
}

func (r *MemoryRepo) InsertIgnore(ctx context.Context, recs []Record) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range recs {
		if _, ok := r.rows[rec.MessageID]; ok {
			continue
		}
		r.rows[rec.MessageID] = rec
		n++
	}
	return n, nil
}

func (r *MemoryRepo) Get(messageID string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rows[messageID]
	return rec, ok
}
