package models

import "github.com/shopspring/decimal"

// DeliveryZone is one (city, neighborhood) row of the backend fee table.
type DeliveryZone struct {
	ID           int64           `json:"id"`
	City         string          `json:"city"`
	Neighborhood string          `json:"neighborhood"`
	Fee          decimal.Decimal `json:"fee"`
}

type DeliveryZoneInput struct {
	City         string          `json:"city"`
	Neighborhood string          `json:"neighborhood"`
	Fee          decimal.Decimal `json:"fee"`
}

// CityZones groups zones of one city for selects and admin listings.
type CityZones struct {
	City  string
	Zones []DeliveryZone
}
