package tenancy

import (
	"context"
	"sync"

	"gymcrm-calls/internal/phone"
)

// MemoryResolver is an in-memory Resolver for tests.
type MemoryResolver struct {
	mu      sync.RWMutex
	gyms    []Gym
	clients []Client
}

type Gym struct {
	ID         int64
	Phone      string
	DirectorID int64
}

type Client struct {
	ID         int64
	Phone      string
	DirectorID int64
}

func NewMemoryResolver() *MemoryResolver {
	return &MemoryResolver{}
}

func (m *MemoryResolver) AddGym(g Gym) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gyms = append(m.gyms, g)
}

func (m *MemoryResolver) AddClient(c Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients = append(m.clients, c)
}

func (m *MemoryResolver) DirectorByPhone(ctx context.Context, p string) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, g := range m.gyms {
		if phone.Match(g.Phone, p) {
			return g.DirectorID, true, nil
		}
	}
	return 0, false, nil
}

func (m *MemoryResolver) ClientByPhone(ctx context.Context, directorID int64, p string) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.clients {
		if c.DirectorID == directorID && phone.Match(c.Phone, p) {
			return c.ID, true, nil
		}
	}
	return 0, false, nil
}

func (m *MemoryResolver) HasClient(ctx context.Context, directorID, clientID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.clients {
		if c.DirectorID == directorID && c.ID == clientID {
			return true, nil
		}
	}
	return false, nil
}
