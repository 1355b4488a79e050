package order

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"checkout-webhooks/internal/domain"
	"github.com/google/uuid"
)

// Memory keeps orders in process. InTx stages every write in the Tx and
// publishes the header together with its line items under one lock, so
// readers never see a header without all of its lines.
type Memory struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
	lines  map[string][]domain.OrderLineItem
}

func NewMemory() *Memory {
	return &Memory{
		orders: make(map[string]domain.Order),
		lines:  make(map[string][]domain.OrderLineItem),
	}
}

func (m *Memory) FindMatch(_ context.Context, c MatchCriteria) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []domain.Order
	for _, o := range m.orders {
		if matchesCriteria(o, c) {
			matches = append(matches, o)
		}
	}
	if len(matches) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.Before(matches[j].CreatedAt) })
	return &matches[0], nil
}

func (m *Memory) GetByNumber(_ context.Context, orderNumber string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orders {
		if o.OrderNumber == orderNumber {
			o.LineItems = append([]domain.OrderLineItem(nil), m.lines[o.ID]...)
			return &o, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *Memory) InTx(_ context.Context, fn func(tx Tx) error) error {
	tx := &memoryTx{
		store:  m,
		orders: make(map[string]domain.Order),
		lines:  make(map[string][]domain.OrderLineItem),
	}
	if err := fn(tx); err != nil {
		return err
	}
	return m.commit(tx)
}

func (m *Memory) commit(tx *memoryTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range tx.created {
		o := tx.orders[id]
		if err := m.checkUniqueLocked(o.OrderNumber, o.StripePID); err != nil {
			return err
		}
	}
	for _, id := range tx.created {
		m.orders[id] = tx.orders[id]
		m.lines[id] = tx.lines[id]
	}
	return nil
}

func (m *Memory) checkUniqueLocked(orderNumber, stripePID string) error {
	for _, existing := range m.orders {
		if existing.StripePID == stripePID {
			return fmt.Errorf("order for %s: %w", stripePID, domain.ErrDuplicate)
		}
		if existing.OrderNumber == orderNumber {
			return fmt.Errorf("order number %s: %w", orderNumber, domain.ErrDuplicate)
		}
	}
	return nil
}

// Delete removes an order header and cascades to its line items.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.orders, id)
	delete(m.lines, id)
	return nil
}

// Counts reports stored headers and line items.
func (m *Memory) Counts() (orders, lines int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.lines {
		lines += len(l)
	}
	return len(m.orders), lines
}

// memoryTx holds writes until commit. It is used by one goroutine.
type memoryTx struct {
	store   *Memory
	orders  map[string]domain.Order
	lines   map[string][]domain.OrderLineItem
	created []string
}

func (t *memoryTx) Create(_ context.Context, in CreateOrderInput) (*domain.Order, error) {
	t.store.mu.RLock()
	err := t.store.checkUniqueLocked(in.OrderNumber, in.StripePID)
	t.store.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	for _, staged := range t.orders {
		if staged.StripePID == in.StripePID {
			return nil, fmt.Errorf("order for %s: %w", in.StripePID, domain.ErrDuplicate)
		}
	}

	o := domain.Order{
		ID:             uuid.NewString(),
		OrderNumber:    in.OrderNumber,
		FullName:       in.FullName,
		Email:          in.Email,
		PhoneNumber:    in.PhoneNumber,
		Country:        in.Country,
		Postcode:       in.Postcode,
		TownOrCity:     in.TownOrCity,
		StreetAddress1: in.StreetAddress1,
		StreetAddress2: in.StreetAddress2,
		County:         in.County,
		OriginalBag:    in.OriginalBag,
		StripePID:      in.StripePID,
		GrandTotal:     in.GrandTotal.Round(2),
		CreatedAt:      time.Now().UTC(),
	}
	t.orders[o.ID] = o
	t.created = append(t.created, o.ID)
	return &o, nil
}

func (t *memoryTx) AddLineItem(_ context.Context, in AddLineItemInput) (*domain.OrderLineItem, error) {
	o, ok := t.orders[in.OrderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", in.OrderID, domain.ErrNotFound)
	}
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", in.Quantity)
	}

	line := domain.OrderLineItem{
		ID:            uuid.NewString(),
		OrderID:       in.OrderID,
		ProductID:     in.Product.ID,
		ProductSize:   in.ProductSize,
		Quantity:      in.Quantity,
		LineItemTotal: lineItemTotal(in.Product, in.Quantity),
		CreatedAt:     time.Now().UTC(),
	}
	t.lines[in.OrderID] = append(t.lines[in.OrderID], line)

	o.OrderTotal = o.OrderTotal.Add(line.LineItemTotal)
	t.orders[o.ID] = o
	return &line, nil
}

func matchesCriteria(o domain.Order, c MatchCriteria) bool {
	return o.StripePID == c.StripePID &&
		o.OriginalBag == c.OriginalBag &&
		o.GrandTotal.Equal(c.GrandTotal) &&
		equalFold(o.FullName, c.FullName) &&
		equalFold(o.Email, c.Email) &&
		equalFold(o.PhoneNumber, c.PhoneNumber) &&
		equalFold(o.Country, c.Country) &&
		equalFold(o.Postcode, c.Postcode) &&
		equalFold(o.TownOrCity, c.TownOrCity) &&
		equalFold(o.StreetAddress1, c.StreetAddress1) &&
		equalFold(o.StreetAddress2, c.StreetAddress2) &&
		equalFold(o.County, c.County)
}

func equalFold(stored, want *string) bool {
	if stored == nil || want == nil {
		return stored == nil && want == nil
	}
	return strings.EqualFold(*stored, *want)
}
