package services

import (
	"errors"
	"sort"
	"strings"

	"bomsabor-web/models"

	"github.com/shopspring/decimal"
)

// ErrZoneNotFound means the chosen neighborhood has no row in the fee table. The fee
// is zero in that case and checkout refuses to submit.
var ErrZoneNotFound = errors.New("delivery zone not found")

// GroupZonesByCity returns cities sorted by name, neighborhoods sorted within each city.
func GroupZonesByCity(zones []models.DeliveryZone) []models.CityZones {
	byCity := map[string][]models.DeliveryZone{}
	for _, z := range zones {
		byCity[z.City] = append(byCity[z.City], z)
	}
	out := make([]models.CityZones, 0, len(byCity))
	for city, zs := range byCity {
		sort.SliceStable(zs, func(i, j int) bool { return zs[i].Neighborhood < zs[j].Neighborhood })
		out = append(out, models.CityZones{City: city, Zones: zs})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].City < out[j].City })
	return out
}

// DeliveryResolver maps the (city, neighborhood) selection of a checkout form to a fee.
// The table is fetched once when the form opens.
type DeliveryResolver struct {
	zones        []models.DeliveryZone
	city         string
	neighborhood string
	fee          decimal.Decimal
	resolved     bool
}

func NewDeliveryResolver(zones []models.DeliveryZone) *DeliveryResolver {
	return &DeliveryResolver{zones: zones}
}

// Loaded reports whether a non-empty fee table is available.
func (r *DeliveryResolver) Loaded() bool {
	return len(r.zones) > 0
}

func (r *DeliveryResolver) Cities() []string {
	groups := GroupZonesByCity(r.zones)
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.City
	}
	return out
}

// Neighborhoods lists the options for the selected city, empty before a city is chosen.
func (r *DeliveryResolver) Neighborhoods() []models.DeliveryZone {
	if r.city == "" {
		return nil
	}
	var out []models.DeliveryZone
	for _, z := range r.zones {
		if z.City == r.city {
			out = append(out, z)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Neighborhood < out[j].Neighborhood })
	return out
}

// SelectCity narrows the neighborhood options and forgets any previous neighborhood and fee.
func (r *DeliveryResolver) SelectCity(city string) {
	r.city = strings.TrimSpace(city)
	r.neighborhood = ""
	r.fee = decimal.Zero
	r.resolved = false
}

// SelectNeighborhood looks the fee up in the fetched table. An unknown neighborhood
// leaves the fee at zero and returns ErrZoneNotFound.
func (r *DeliveryResolver) SelectNeighborhood(neighborhood string) error {
	r.neighborhood = strings.TrimSpace(neighborhood)
	r.fee = decimal.Zero
	r.resolved = false
	if r.neighborhood == "" {
		return nil
	}
	for _, z := range r.zones {
		if z.City == r.city && z.Neighborhood == r.neighborhood {
			r.fee = z.Fee
			r.resolved = true
			return nil
		}
	}
	return ErrZoneNotFound
}

// Reset clears city, neighborhood and fee.
func (r *DeliveryResolver) Reset() {
	r.SelectCity("")
}

// SetFulfillment resets the selection when the customer switches to pickup.
func (r *DeliveryResolver) SetFulfillment(f models.Fulfillment) {
	if f == models.FulfillmentPickup {
		r.Reset()
	}
}

func (r *DeliveryResolver) City() string         { return r.city }
func (r *DeliveryResolver) Neighborhood() string { return r.neighborhood }
func (r *DeliveryResolver) Fee() decimal.Decimal { return r.fee }
func (r *DeliveryResolver) Resolved() bool       { return r.resolved }
