package services

import (
	"testing"

	"bomsabor-web/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTotals(t *testing.T) {
	a := models.MenuItem{ID: "1", Name: "A", Price: dec("10.00")}
	b := models.MenuItem{ID: "2", Name: "B", Price: dec("7.50")}
	c := NewCart()
	c.AddItem(a, a.Price, "")
	c.AddItem(a, a.Price, "")
	c.AddItem(b, b.Price, "")

	tests := []struct {
		name        string
		fulfillment models.Fulfillment
		fee         decimal.Decimal
		wantFee     string
		wantTotal   string
	}{
		{"delivery adds fee", models.FulfillmentDelivery, dec("6.00"), "6.00", "33.50"},
		{"pickup ignores fee", models.FulfillmentPickup, dec("6.00"), "0.00", "27.50"},
		{"delivery without zone", models.FulfillmentDelivery, decimal.Zero, "0.00", "27.50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Totals(c, tt.fulfillment, tt.fee)
			assert.Equal(t, "27.50", got.Subtotal.StringFixed(2))
			assert.Equal(t, tt.wantFee, got.DeliveryFee.StringFixed(2))
			assert.Equal(t, tt.wantTotal, got.Total.StringFixed(2))
		})
	}
}

func TestTotalsEmptyCart(t *testing.T) {
	got := Totals(NewCart(), models.FulfillmentDelivery, dec("6.00"))
	assert.Equal(t, "6.00", got.Total.StringFixed(2))
	assert.True(t, got.Subtotal.IsZero())
}
