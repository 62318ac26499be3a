package services

import (
	"fmt"
	"strings"
	"sync"

	"bomsabor-web/models"

	"github.com/shopspring/decimal"
)

// MenuEvent names the menu broadcasts.
type MenuEvent string

const (
	MenuItemCreated MenuEvent = "MenuItemCreated"
	MenuItemUpdated MenuEvent = "MenuItemUpdated"
	MenuItemDeleted MenuEvent = "MenuItemDeleted"
)

// MenuBoard is the menu as shown to one customer. Updates replace an item in
// place so the list never reorders under the reader.
type MenuBoard struct {
	mu    sync.Mutex
	items []models.MenuItem
}

func NewMenuBoard(items []models.MenuItem) *MenuBoard {
	return &MenuBoard{items: append([]models.MenuItem(nil), items...)}
}

func (b *MenuBoard) Replace(items []models.MenuItem) {
	b.mu.Lock()
	b.items = append([]models.MenuItem(nil), items...)
	b.mu.Unlock()
}

// Apply merges a menu broadcast and reports whether anything changed.
func (b *MenuBoard) Apply(ev MenuEvent, item models.MenuItem) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexLocked(item.ID)
	switch ev {
	case MenuItemCreated, MenuItemUpdated:
		if i >= 0 {
			b.items[i] = item
		} else {
			b.items = append(b.items, item)
		}
		return true
	case MenuItemDeleted:
		if i < 0 {
			return false
		}
		b.items = append(b.items[:i], b.items[i+1:]...)
		return true
	}
	return false
}

func (b *MenuBoard) Items() []models.MenuItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.MenuItem, len(b.items))
	copy(out, b.items)
	return out
}

// ByPeriod keeps the board order.
func (b *MenuBoard) ByPeriod(p models.Period) []models.MenuItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.MenuItem
	for _, it := range b.items {
		if it.Period == p {
			out = append(out, it)
		}
	}
	return out
}

func (b *MenuBoard) Get(id models.FlexID) (models.MenuItem, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.indexLocked(id); i >= 0 {
		return b.items[i], true
	}
	return models.MenuItem{}, false
}

func (b *MenuBoard) indexLocked(id models.FlexID) int {
	for i := range b.items {
		if b.items[i].ID == id {
			return i
		}
	}
	return -1
}

// MenuItemForm is the raw admin form.
type MenuItemForm struct {
	Name        string
	Description string
	Category    string
	Price       string
	SmallPrice  string
	ImageURL    string
	Period      string
}

func parsePrice(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price: %q", s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("price must be >= 0")
	}
	return d.Round(2), nil
}

// ParseMenuItemForm checks an admin form before it is sent to the API.
func ParseMenuItemForm(f MenuItemForm) (models.MenuItemInput, error) {
	in := models.MenuItemInput{
		Name:        strings.TrimSpace(f.Name),
		Description: strings.TrimSpace(f.Description),
		Category:    strings.TrimSpace(f.Category),
		ImageURL:    strings.TrimSpace(f.ImageURL),
		Period:      models.Period(f.Period),
	}
	if in.Name == "" {
		return in, fmt.Errorf("name is required")
	}
	if !in.Period.Valid() {
		return in, fmt.Errorf("invalid period: %s", f.Period)
	}
	price, err := parsePrice(f.Price)
	if err != nil {
		return in, err
	}
	in.Price = price
	if strings.TrimSpace(f.SmallPrice) != "" {
		small, err := parsePrice(f.SmallPrice)
		if err != nil {
			return in, err
		}
		in.SmallPrice = decimal.NewNullDecimal(small)
	}
	return in, nil
}

// ParseZoneForm checks an admin delivery-zone form.
func ParseZoneForm(city, neighborhood, fee string) (models.DeliveryZoneInput, error) {
	in := models.DeliveryZoneInput{City: strings.TrimSpace(city), Neighborhood: strings.TrimSpace(neighborhood)}
	if in.City == "" || in.Neighborhood == "" {
		return in, fmt.Errorf("city and neighborhood are required")
	}
	d, err := parsePrice(fee)
	if err != nil {
		return in, err
	}
	in.Fee = d
	return in, nil
}
