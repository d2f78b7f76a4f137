package staff

import (
	"context"
	"sort"
	"sync"
)

// Repository defines read access to the staff roster. The roster itself is
// managed by the practice-administration layer; the scheduling core only
// consults it.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Member, error)
	ListActive(ctx context.Context) ([]*Member, error)
}

// InMemoryRepository is a roster held in process memory.
type InMemoryRepository struct {
	mu      sync.RWMutex
	members map[string]*Member
}

// NewInMemoryRepository creates an empty roster.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{members: make(map[string]*Member)}
}

// Put adds or replaces a roster entry.
func (r *InMemoryRepository) Put(m *Member) {
	r.mu.Lock()
	r.members[m.ID] = m
	r.mu.Unlock()
}

// GetByID returns one member.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.members[id]
	if !ok {
		return nil, ErrStaffNotFound
	}
	return m, nil
}

// ListActive returns active members ordered by ID for determinism.
func (r *InMemoryRepository) ListActive(ctx context.Context) ([]*Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*Member{}
	for _, m := range r.members {
		if m.Active {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
