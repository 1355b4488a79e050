package reconcile

import (
	"context"
	"errors"
	"testing"

	"checkout-webhooks/internal/domain"
	orderrepo "checkout-webhooks/internal/repository/order"
	productrepo "checkout-webhooks/internal/repository/product"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catalog() *productrepo.Memory {
	return productrepo.NewMemory(
		domain.Product{ID: 12, SKU: "MUG-12", Name: "Enamel mug", Price: decimal.RequireFromString("12.50")},
		domain.Product{ID: 40, SKU: "TEE-40", Name: "Logo tee", Price: decimal.RequireFromString("19.99"), HasSizes: true},
	)
}

func fixedNumber(m *Materializer, n string) {
	m.newOrderNumber = func() string { return n }
}

func TestParseBag(t *testing.T) {
	t.Run("bare quantity", func(t *testing.T) {
		lines, err := parseBag(`{"12": 3}`)
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Equal(t, int64(12), lines[0].ProductID)
		assert.Nil(t, lines[0].Size)
		assert.Equal(t, 3, lines[0].Quantity)
	})

	t.Run("sized entries are ordered", func(t *testing.T) {
		lines, err := parseBag(`{"40": {"items_by_size": {"M": 2, "L": 1}}, "12": 1}`)
		require.NoError(t, err)
		require.Len(t, lines, 3)
		assert.Equal(t, int64(12), lines[0].ProductID)
		assert.Equal(t, "L", *lines[1].Size)
		assert.Equal(t, 1, lines[1].Quantity)
		assert.Equal(t, "M", *lines[2].Size)
		assert.Equal(t, 2, lines[2].Quantity)
	})

	t.Run("product ids sort numerically", func(t *testing.T) {
		lines, err := parseBag(`{"100": 1, "9": 1}`)
		require.NoError(t, err)
		assert.Equal(t, int64(9), lines[0].ProductID)
		assert.Equal(t, int64(100), lines[1].ProductID)
	})

	for name, bag := range map[string]string{
		"empty":              "",
		"not json":           "{12:3",
		"non numeric id":     `{"mug": 1}`,
		"zero quantity":      `{"12": 0}`,
		"negative size qty":  `{"40": {"items_by_size": {"M": -1}}}`,
		"unsupported value":  `{"12": "three"}`,
		"missing size table": `{"40": {"sizes": {"M": 1}}}`,
	} {
		t.Run("rejects "+name, func(t *testing.T) {
			_, err := parseBag(bag)
			assert.Error(t, err)
		})
	}
}

func TestMaterializerCreatesSingleLine(t *testing.T) {
	orders := orderrepo.NewMemory()
	m := NewMaterializer(orders, catalog(), nil)
	fixedNumber(m, "ORD-1")

	created, err := m.Create(context.Background(), sampleEvent())
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", created.OrderNumber)

	stored, err := orders.GetByNumber(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "pi_1", stored.StripePID)
	assert.Equal(t, `{"12": 3}`, stored.OriginalBag)
	assert.True(t, stored.GrandTotal.Equal(decimal.RequireFromString("45.99")))
	assert.True(t, stored.OrderTotal.Equal(decimal.RequireFromString("37.50")), stored.OrderTotal.String())
	assert.Equal(t, "Ada Lovelace", *stored.FullName)
	assert.Equal(t, "London", *stored.TownOrCity)
	assert.Nil(t, stored.StreetAddress2)
	assert.Nil(t, stored.County)
	require.Len(t, stored.LineItems, 1)
	assert.Equal(t, int64(12), stored.LineItems[0].ProductID)
	assert.Nil(t, stored.LineItems[0].ProductSize)
	assert.Equal(t, 3, stored.LineItems[0].Quantity)
}

func TestMaterializerCreatesLinePerSize(t *testing.T) {
	orders := orderrepo.NewMemory()
	m := NewMaterializer(orders, catalog(), nil)
	fixedNumber(m, "ORD-2")

	ev := sampleEvent()
	ev.Bag = `{"40": {"items_by_size": {"M": 2, "L": 1}}}`
	created, err := m.Create(context.Background(), ev)
	require.NoError(t, err)
	require.Len(t, created.LineItems, 2)

	_, lines := orders.Counts()
	assert.Equal(t, 2, lines)

	sizes := map[string]int{}
	for _, line := range created.LineItems {
		require.NotNil(t, line.ProductSize)
		sizes[*line.ProductSize] = line.Quantity
	}
	assert.Equal(t, map[string]int{"M": 2, "L": 1}, sizes)
	assert.True(t, created.OrderTotal.Equal(decimal.RequireFromString("59.97")), created.OrderTotal.String())
}

func TestMaterializerRollsBackOnUnknownProduct(t *testing.T) {
	orders := orderrepo.NewMemory()
	m := NewMaterializer(orders, catalog(), nil)

	ev := sampleEvent()
	ev.Bag = `{"12": 1, "999": 1}`
	_, err := m.Create(context.Background(), ev)

	var matErr *MaterializationError
	require.ErrorAs(t, err, &matErr)
	assert.Equal(t, "pi_1", matErr.PaymentID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "product 999 not found")

	headers, lines := orders.Counts()
	assert.Zero(t, headers)
	assert.Zero(t, lines)
}

func TestMaterializerRejectsBadBagBeforeWriting(t *testing.T) {
	orders := orderrepo.NewMemory()
	m := NewMaterializer(orders, catalog(), nil)

	ev := sampleEvent()
	ev.Bag = `{"12": 0}`
	_, err := m.Create(context.Background(), ev)

	var matErr *MaterializationError
	assert.ErrorAs(t, err, &matErr)
	headers, _ := orders.Counts()
	assert.Zero(t, headers)
}

func TestMaterializerReportsDuplicate(t *testing.T) {
	orders := orderrepo.NewMemory()
	m := NewMaterializer(orders, catalog(), nil)

	_, err := m.Create(context.Background(), sampleEvent())
	require.NoError(t, err)

	_, err = m.Create(context.Background(), sampleEvent())
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	var matErr *MaterializationError
	assert.False(t, errors.As(err, &matErr))

	headers, lines := orders.Counts()
	assert.Equal(t, 1, headers)
	assert.Equal(t, 1, lines)
}

type failingCatalog struct{}

func (failingCatalog) GetByID(context.Context, int64) (*domain.Product, error) {
	return nil, errors.New("catalog offline")
}

func TestMaterializerWrapsCatalogFailure(t *testing.T) {
	orders := orderrepo.NewMemory()
	m := NewMaterializer(orders, failingCatalog{}, nil)

	_, err := m.Create(context.Background(), sampleEvent())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolve product 12: catalog offline")
	headers, _ := orders.Counts()
	assert.Zero(t, headers)
}

func TestNewOrderNumber(t *testing.T) {
	a, b := newOrderNumber(), newOrderNumber()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^[0-9A-F]+$`, a)
}
