package httpserver

import (
	"errors"
	"net/http"
	"time"

	"checkout-webhooks/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type orderResponse struct {
	OrderNumber    string             `json:"orderNumber"`
	FullName       *string            `json:"fullName"`
	Email          *string            `json:"email"`
	PhoneNumber    *string            `json:"phoneNumber"`
	Country        *string            `json:"country"`
	Postcode       *string            `json:"postcode"`
	TownOrCity     *string            `json:"townOrCity"`
	StreetAddress1 *string            `json:"streetAddress1"`
	StreetAddress2 *string            `json:"streetAddress2"`
	County         *string            `json:"county"`
	StripePID      string             `json:"stripePid"`
	OrderTotal     decimal.Decimal    `json:"orderTotal"`
	GrandTotal     decimal.Decimal    `json:"grandTotal"`
	CreatedAt      time.Time          `json:"createdAt"`
	LineItems      []lineItemResponse `json:"lineItems"`
}

type lineItemResponse struct {
	ProductID     int64           `json:"productId"`
	ProductSize   *string         `json:"productSize,omitempty"`
	Quantity      int             `json:"quantity"`
	LineItemTotal decimal.Decimal `json:"lineItemTotal"`
}

func toOrderResponse(o domain.Order) orderResponse {
	resp := orderResponse{
		OrderNumber:    o.OrderNumber,
		FullName:       o.FullName,
		Email:          o.Email,
		PhoneNumber:    o.PhoneNumber,
		Country:        o.Country,
		Postcode:       o.Postcode,
		TownOrCity:     o.TownOrCity,
		StreetAddress1: o.StreetAddress1,
		StreetAddress2: o.StreetAddress2,
		County:         o.County,
		StripePID:      o.StripePID,
		OrderTotal:     o.OrderTotal,
		GrandTotal:     o.GrandTotal,
		CreatedAt:      o.CreatedAt,
		LineItems:      make([]lineItemResponse, 0, len(o.LineItems)),
	}
	for _, line := range o.LineItems {
		resp.LineItems = append(resp.LineItems, lineItemResponse{
			ProductID:     line.ProductID,
			ProductSize:   line.ProductSize,
			Quantity:      line.Quantity,
			LineItemTotal: line.LineItemTotal,
		})
	}
	return resp
}

func getOrderHandler(logger *zap.Logger, orders orderReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := orders.GetByNumber(c.Request.Context(), c.Param("orderNumber"))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
				return
			}
			logger.Error("get order", zap.String("order_number", c.Param("orderNumber")), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, toOrderResponse(*order))
	}
}
