package services

import (
	"sync"

	"bomsabor-web/models"

	"github.com/shopspring/decimal"
)

type CartLine struct {
	ID         string          `json:"id"`
	MenuItemID string          `json:"menu_item_id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Qty        int             `json:"qty"`
}

// LineTotal is Price * Qty.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Qty)))
}

// CartLineID is the composite identity of a (menu item, chosen price) selection.
func CartLineID(itemID string, price decimal.Decimal) string {
	return itemID + "-" + price.StringFixed(2)
}

// Cart holds the selected lines of one browser session. It lives in memory only.
type Cart struct {
	mu    sync.Mutex
	lines []CartLine
}

func NewCart() *Cart {
	return &Cart{}
}

// AddItem adds one unit of item at chosenPrice. Re-adding the same selection bumps the
// quantity of the existing line.
func (c *Cart) AddItem(item models.MenuItem, chosenPrice decimal.Decimal, chosenLabel string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := CartLineID(string(item.ID), chosenPrice)
	for i := range c.lines {
		if c.lines[i].ID == id {
			c.lines[i].Qty++
			return
		}
	}
	name := item.Name
	if item.HasSizes() && chosenLabel != "" {
		name += " (" + chosenLabel + ")"
	}
	c.lines = append(c.lines, CartLine{
		ID:         id,
		MenuItemID: string(item.ID),
		Name:       name,
		Price:      chosenPrice,
		Qty:        1,
	})
}

// AdjustQuantity adds delta to the line's quantity, clamped at zero. A line that
// reaches zero is dropped.
func (c *Cart) AdjustQuantity(lineID string, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.lines[:0]
	for _, l := range c.lines {
		if l.ID == lineID {
			l.Qty += delta
			if l.Qty < 0 {
				l.Qty = 0
			}
		}
		if l.Qty > 0 {
			out = append(out, l)
		}
	}
	c.lines = out
}

func (c *Cart) RemoveLine(lineID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.lines[:0]
	for _, l := range c.lines {
		if l.ID != lineID {
			out = append(out, l)
		}
	}
	c.lines = out
}

func (c *Cart) Clear() {
	c.mu.Lock()
	c.lines = nil
	c.mu.Unlock()
}

// Lines returns a copy in insertion order.
func (c *Cart) Lines() []CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

// Subtotal is the sum of every line total.
func (c *Cart) Subtotal() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	sum := decimal.Zero
	for _, l := range c.lines {
		sum = sum.Add(l.LineTotal())
	}
	return sum
}
