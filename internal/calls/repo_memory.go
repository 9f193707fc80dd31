package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests and local development.
// Per-external-id serialization uses a refcounted keyed mutex; writes made
// inside WithCallLock are staged and only become visible when fn succeeds.
type MemoryRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]Call // keyed by external id
	locks  map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: map[string]Call{}, locks: map[string]*keyLock{}}
}

func (r *MemoryRepo) WithCallLock(ctx context.Context, externalID string, fn func(ctx context.Context, tx CallTx) error) error {
	unlock := r.lockKey(externalID)
	defer unlock()

	tx := &memTx{repo: r, externalID: externalID}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if tx.pending != nil {
		r.mu.Lock()
		r.rows[externalID] = *tx.pending
		r.mu.Unlock()
	}
	return nil
}

func (r *MemoryRepo) lockKey(key string) func() {
	r.mu.Lock()
	l, ok := r.locks[key]
	if !ok {
		l = &keyLock{}
		r.locks[key] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, key)
		}
		r.mu.Unlock()
	}
}

// Get returns the committed record for externalID.
func (r *MemoryRepo) Get(externalID string) (Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[externalID]
	return c, ok
}

// Put stores a record directly, assigning an id when it has none.
func (r *MemoryRepo) Put(c Call) Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == 0 {
		r.nextID++
		c.ID = r.nextID
	}
	r.rows[c.ExternalID] = c
	return c
}

// Len reports how many records exist.
func (r *MemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *MemoryRepo) List(ctx context.Context, directorID int64, limit, offset int) ([]Call, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]Call, 0)
	for _, c := range r.rows {
		if c.DirectorID == directorID {
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CallTime.Equal(all[j].CallTime) {
			return all[i].ID > all[j].ID
		}
		return all[i].CallTime.After(all[j].CallTime)
	})

	total := len(all)
	if offset >= total {
		return []Call{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *MemoryRepo) AssignClient(ctx context.Context, directorID, callID int64, clientID *int64, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, c := range r.rows {
		if c.ID != callID || c.DirectorID != directorID {
			continue
		}
		c.ClientID = copyID(clientID)
		c.UpdatedAt = now
		r.rows[k] = c
		return nil
	}
	return ErrNotFound
}

func (r *MemoryRepo) LinkClientByPhone(ctx context.Context, directorID, callID, clientID int64, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	from, found := "", false
	for _, c := range r.rows {
		if c.ID == callID && c.DirectorID == directorID {
			from, found = c.PhoneFrom, true
			break
		}
	}
	if !found {
		return 0, nil
	}

	var n int64
	for k, c := range r.rows {
		if c.DirectorID != directorID || c.PhoneFrom != from {
			continue
		}
		c.ClientID = copyID(&clientID)
		c.UpdatedAt = now
		r.rows[k] = c
		n++
	}
	return n, nil
}

type memTx struct {
	repo       *MemoryRepo
	externalID string
	pending    *Call
}

func (t *memTx) Find(ctx context.Context) (Call, bool, error) {
	if t.pending != nil {
		return *t.pending, true, nil
	}
	c, ok := t.repo.Get(t.externalID)
	return c, ok, nil
}

func (t *memTx) Insert(ctx context.Context, c *Call) (bool, error) {
	if _, ok, _ := t.Find(ctx); ok {
		return false, nil
	}
	t.repo.mu.Lock()
	t.repo.nextID++
	c.ID = t.repo.nextID
	t.repo.mu.Unlock()

	cp := *c
	cp.ExternalID = t.externalID
	t.pending = &cp
	return true, nil
}

func (t *memTx) UpdateState(ctx context.Context, id int64, status Status, seq int64, now time.Time) error {
	c, err := t.forWrite(id)
	if err != nil {
		return err
	}
	c.Status = status
	c.LastSeq = seq
	c.UpdatedAt = now
	t.pending = &c
	return nil
}

func (t *memTx) UpdateSummary(ctx context.Context, id int64, status Status, duration int, now time.Time) error {
	c, err := t.forWrite(id)
	if err != nil {
		return err
	}
	c.Status = status
	d := duration
	c.Duration = &d
	c.UpdatedAt = now
	t.pending = &c
	return nil
}

func (t *memTx) forWrite(id int64) (Call, error) {
	c, ok, _ := t.Find(context.Background())
	if !ok || c.ID != id {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
