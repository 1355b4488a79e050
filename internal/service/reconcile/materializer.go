package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"checkout-webhooks/internal/domain"
	"checkout-webhooks/internal/logging"
	orderrepo "checkout-webhooks/internal/repository/order"
	"checkout-webhooks/internal/webhook"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaterializationError wraps anything that stopped an order from being
// written. Nothing of the order is left behind when it is returned.
type MaterializationError struct {
	PaymentID string
	Err       error
}

func (e *MaterializationError) Error() string {
	return e.Err.Error()
}

func (e *MaterializationError) Unwrap() error {
	return e.Err
}

type orderWriter interface {
	InTx(ctx context.Context, fn func(tx orderrepo.Tx) error) error
}

type productGetter interface {
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
}

// Materializer writes an order header and its line items from the cart
// stored in the payment metadata.
type Materializer struct {
	orders         orderWriter
	products       productGetter
	newOrderNumber func() string
	logger         *zap.Logger
}

func NewMaterializer(orders orderWriter, products productGetter, logger *zap.Logger) *Materializer {
	return &Materializer{
		orders:         orders,
		products:       products,
		newOrderNumber: newOrderNumber,
		logger:         logging.OrNop(logger),
	}
}

// cartLine is one line item to be written: a product with no size, or one
// size of a sized product.
type cartLine struct {
	ProductID int64
	Size      *string
	Quantity  int
}

// Create writes the order in one unit. A duplicate payment reference comes
// back wrapping domain.ErrDuplicate; every other failure is a
// *MaterializationError.
func (m *Materializer) Create(ctx context.Context, ev webhook.NormalizedEvent) (*domain.Order, error) {
	lines, err := parseBag(ev.Bag)
	if err != nil {
		return nil, &MaterializationError{PaymentID: ev.PaymentID, Err: err}
	}

	var created *domain.Order
	err = m.orders.InTx(ctx, func(tx orderrepo.Tx) error {
		addr := ev.Shipping.Address
		order, err := tx.Create(ctx, orderrepo.CreateOrderInput{
			OrderNumber:    m.newOrderNumber(),
			FullName:       ev.Shipping.Name,
			Email:          ev.Email,
			PhoneNumber:    ev.Shipping.Phone,
			Country:        addr.Country,
			Postcode:       addr.PostalCode,
			TownOrCity:     addr.City,
			StreetAddress1: addr.Line1,
			StreetAddress2: addr.Line2,
			County:         addr.State,
			GrandTotal:     ev.GrandTotal,
			OriginalBag:    ev.Bag,
			StripePID:      ev.PaymentID,
		})
		if err != nil {
			return err
		}

		products := make(map[int64]domain.Product)
		for _, line := range lines {
			product, ok := products[line.ProductID]
			if !ok {
				p, err := m.products.GetByID(ctx, line.ProductID)
				if err != nil {
					if errors.Is(err, domain.ErrNotFound) {
						return fmt.Errorf("product %d not found: %w", line.ProductID, err)
					}
					return fmt.Errorf("resolve product %d: %w", line.ProductID, err)
				}
				product = *p
				products[line.ProductID] = product
			}

			item, err := tx.AddLineItem(ctx, orderrepo.AddLineItemInput{
				OrderID:     order.ID,
				Product:     product,
				ProductSize: line.Size,
				Quantity:    line.Quantity,
			})
			if err != nil {
				return fmt.Errorf("add line item for product %d: %w", line.ProductID, err)
			}
			order.OrderTotal = order.OrderTotal.Add(item.LineItemTotal)
			order.LineItems = append(order.LineItems, *item)
		}
		created = order
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, err
		}
		m.logger.Warn("order materialization rolled back",
			zap.String("stripe_pid", ev.PaymentID),
			zap.Error(err),
		)
		return nil, &MaterializationError{PaymentID: ev.PaymentID, Err: err}
	}

	m.logger.Info("created order from webhook",
		zap.String("stripe_pid", ev.PaymentID),
		zap.String("order_number", created.OrderNumber),
		zap.Int("line_items", len(created.LineItems)),
	)
	return created, nil
}

// parseBag decodes the serialized cart. A value is either a bare quantity
// or {"items_by_size": {size: quantity}}. Lines come out ordered by product
// id, then size, so writes are deterministic.
func parseBag(bag string) ([]cartLine, error) {
	if strings.TrimSpace(bag) == "" {
		return nil, errors.New("cart is empty")
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal([]byte(bag), &entries); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var lines []cartLine
	for _, rawID := range ids {
		productID, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid product id %q in cart", rawID)
		}
		raw := entries[rawID]

		var quantity int
		if err := json.Unmarshal(raw, &quantity); err == nil {
			lines = append(lines, cartLine{ProductID: productID, Quantity: quantity})
			continue
		}

		var sized struct {
			ItemsBySize map[string]int `json:"items_by_size"`
		}
		if err := json.Unmarshal(raw, &sized); err != nil || sized.ItemsBySize == nil {
			return nil, fmt.Errorf("unsupported cart entry for product %d: %s", productID, raw)
		}
		sizes := make([]string, 0, len(sized.ItemsBySize))
		for size := range sized.ItemsBySize {
			sizes = append(sizes, size)
		}
		sort.Strings(sizes)
		for _, size := range sizes {
			lines = append(lines, cartLine{ProductID: productID, Size: &size, Quantity: sized.ItemsBySize[size]})
		}
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("quantity for product %d must be positive, got %d", line.ProductID, line.Quantity)
		}
	}
	return lines, nil
}

func newOrderNumber() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
