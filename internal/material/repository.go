package material

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/wichananm65/vendor-supply-backend/internal/metrics"
)

// Filter narrows List. A nil Available returns both available and
// unavailable materials. Page is 1-based and replaces Offset when set.
type Filter struct {
	Category   Category
	SupplierID int
	City       string
	Search     string
	Available  *bool
	Page       int
	Limit      int
	Offset     int
}

type Repository interface {
	List(ctx context.Context, filter Filter) ([]Material, error)
	GetByID(ctx context.Context, id int) (Material, error)
	GetByIDs(ctx context.Context, ids []int) (map[int]Material, error)
	Create(ctx context.Context, m Material) (Material, error)
	Update(ctx context.Context, id int, m Material) (Material, error)
	SetAvailability(ctx context.Context, id int, available bool) (Material, error)
	Delete(ctx context.Context, id int) error
	Stock
}

// Stock takes quantities out of and back into materials. Reserve is all or
// nothing: either every line is decremented or none is.
type Stock interface {
	Reserve(ctx context.Context, lines []StockLine) error
	Release(ctx context.Context, lines []StockLine) error
}

type InMemoryRepository struct {
	mu        sync.RWMutex
	materials map[int]Material
	nextID    int
}

func NewInMemoryRepository(seed []Material) *InMemoryRepository {
	repo := &InMemoryRepository{
		materials: make(map[int]Material, len(seed)),
		nextID:    1,
	}

	for _, m := range seed {
		repo.materials[m.ID] = m
		if m.ID >= repo.nextID {
			repo.nextID = m.ID + 1
		}
	}

	return repo
}

func (r *InMemoryRepository) List(_ context.Context, filter Filter) ([]Material, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]Material, 0, len(r.materials))
	for _, m := range r.materials {
		if filter.Category != "" && m.Category != filter.Category {
			continue
		}
		if filter.SupplierID != 0 && m.SupplierID != filter.SupplierID {
			continue
		}
		if filter.City != "" && !strings.EqualFold(m.Location.City, filter.City) {
			continue
		}
		if filter.Available != nil && m.IsAvailable != *filter.Available {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(m.Name), search) &&
			!strings.Contains(strings.ToLower(m.Description), search) {
			continue
		}
		out = append(out, m)
	}

	// newest first
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []Material{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id int) (Material, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.materials[id]
	if !ok {
		return Material{}, ErrNotFound
	}
	return m, nil
}

func (r *InMemoryRepository) GetByIDs(_ context.Context, ids []int) (map[int]Material, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[int]Material, len(ids))
	for _, id := range ids {
		if m, ok := r.materials[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func (r *InMemoryRepository) Create(_ context.Context, m Material) (Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.ID == 0 {
		m.ID = r.nextID
		r.nextID++
	}
	r.materials[m.ID] = m
	return m, nil
}

func (r *InMemoryRepository) Update(_ context.Context, id int, m Material) (Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.materials[id]
	if !ok {
		return Material{}, ErrNotFound
	}

	m.ID = id
	m.SupplierID = existing.SupplierID
	m.CreatedAt = existing.CreatedAt
	r.materials[id] = m
	return m, nil
}

func (r *InMemoryRepository) SetAvailability(_ context.Context, id int, available bool) (Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.materials[id]
	if !ok {
		return Material{}, ErrNotFound
	}
	m.IsAvailable = available
	r.materials[id] = m
	return m, nil
}

func (r *InMemoryRepository) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.materials[id]; !ok {
		return ErrNotFound
	}
	delete(r.materials, id)
	return nil
}

func (r *InMemoryRepository) Reserve(_ context.Context, lines []StockLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	merged := MergeLines(lines)
	// check every line before touching any quantity
	for _, l := range merged {
		m, ok := r.materials[l.MaterialID]
		if !ok {
			return ErrNotFound
		}
		if l.Quantity > m.Available() {
			return &StockError{MaterialID: m.ID, Name: m.Name, Available: m.Available()}
		}
	}

	for _, l := range merged {
		m := r.materials[l.MaterialID]
		m.Quantity -= l.Quantity
		r.materials[l.MaterialID] = m
		metrics.RecordStock(m.ID, m.Quantity)
	}
	return nil
}

// Release returns quantities to stock. Lines for deleted materials are skipped.
func (r *InMemoryRepository) Release(_ context.Context, lines []StockLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range MergeLines(lines) {
		m, ok := r.materials[l.MaterialID]
		if !ok {
			continue
		}
		m.Quantity += l.Quantity
		r.materials[l.MaterialID] = m
		metrics.RecordStock(m.ID, m.Quantity)
	}
	return nil
}
