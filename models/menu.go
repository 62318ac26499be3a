package models

import "github.com/shopspring/decimal"

type Period string

const (
	PeriodLunch  Period = "lunch"
	PeriodDinner Period = "dinner"
)

func (p Period) Valid() bool {
	return p == PeriodLunch || p == PeriodDinner
}

// Label is the customer-facing name of the meal period.
func (p Period) Label() string {
	switch p {
	case PeriodLunch:
		return "Almoço"
	case PeriodDinner:
		return "Jantar"
	default:
		return string(p)
	}
}

// MenuItem is owned by the backend. Price is the large (or only) size; SmallPrice is
// set only for items sold in two sizes.
type MenuItem struct {
	ID          FlexID              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Category    string              `json:"category"`
	Price       decimal.Decimal     `json:"price"`
	SmallPrice  decimal.NullDecimal `json:"price_small"`
	ImageURL    string              `json:"image_url,omitempty"`
	Period      Period              `json:"period"`
}

const (
	SizeLargeLabel = "Grande"
	SizeSmallLabel = "Pequena"
)

// HasSizes reports whether the item is sold in two sizes.
func (m MenuItem) HasSizes() bool {
	return m.SmallPrice.Valid
}

// MenuItemInput is the admin create/update payload.
type MenuItemInput struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Category    string              `json:"category"`
	Price       decimal.Decimal     `json:"price"`
	SmallPrice  decimal.NullDecimal `json:"price_small"`
	ImageURL    string              `json:"image_url,omitempty"`
	Period      Period              `json:"period"`
}
