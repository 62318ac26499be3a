package services

import (
	"bomsabor-web/models"

	"github.com/shopspring/decimal"
)

type OrderTotals struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}

// Totals prices the cart. The fee only counts for delivery orders.
func Totals(cart *Cart, fulfillment models.Fulfillment, fee decimal.Decimal) OrderTotals {
	t := OrderTotals{Subtotal: cart.Subtotal(), DeliveryFee: decimal.Zero}
	if fulfillment == models.FulfillmentDelivery {
		t.DeliveryFee = fee
	}
	t.Total = t.Subtotal.Add(t.DeliveryFee)
	return t
}
