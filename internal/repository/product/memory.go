package product

import (
	"context"
	"sort"
	"sync"
	"time"

	"checkout-webhooks/internal/domain"
)

// Memory is an in-process catalog used by the memory store driver and tests.
type Memory struct {
	mu     sync.RWMutex
	byID   map[int64]domain.Product
	nextID int64
}

func NewMemory(products ...domain.Product) *Memory {
	m := &Memory{byID: make(map[int64]domain.Product)}
	for _, p := range products {
		_, _ = m.Upsert(context.Background(), p)
	}
	return m
}

func (m *Memory) List(_ context.Context) ([]domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Product, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetByID(_ context.Context, id int64) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (m *Memory) Upsert(_ context.Context, product domain.Product) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.byID {
		if existing.SKU == product.SKU && product.SKU != "" {
			product.ID = id
			product.CreatedAt = existing.CreatedAt
			m.byID[id] = product
			return &product, nil
		}
	}
	if product.ID == 0 {
		m.nextID++
		product.ID = m.nextID
	} else if product.ID > m.nextID {
		m.nextID = product.ID
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	m.byID[product.ID] = product
	return &product, nil
}
