package services

import (
	"testing"

	"bomsabor-web/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zoneTable() []models.DeliveryZone {
	return []models.DeliveryZone{
		{ID: 1, City: "Niterói", Neighborhood: "Icaraí", Fee: dec("6.00")},
		{ID: 2, City: "Niterói", Neighborhood: "Centro", Fee: dec("5.00")},
		{ID: 3, City: "São Gonçalo", Neighborhood: "Alcântara", Fee: dec("9.50")},
	}
}

func TestGroupZonesByCity(t *testing.T) {
	groups := GroupZonesByCity(zoneTable())
	require.Len(t, groups, 2)
	assert.Equal(t, "Niterói", groups[0].City)
	require.Len(t, groups[0].Zones, 2)
	assert.Equal(t, "Centro", groups[0].Zones[0].Neighborhood)
	assert.Equal(t, "São Gonçalo", groups[1].City)
}

func TestSelectCityNarrowsAndResets(t *testing.T) {
	r := NewDeliveryResolver(zoneTable())
	r.SelectCity("Niterói")
	require.NoError(t, r.SelectNeighborhood("Icaraí"))
	assert.Equal(t, "6.00", r.Fee().StringFixed(2))

	r.SelectCity("São Gonçalo")
	assert.Empty(t, r.Neighborhood())
	assert.True(t, r.Fee().IsZero())
	assert.False(t, r.Resolved())

	ns := r.Neighborhoods()
	require.Len(t, ns, 1)
	assert.Equal(t, "Alcântara", ns[0].Neighborhood)
}

func TestSelectNeighborhoodUnknownIsFlagged(t *testing.T) {
	r := NewDeliveryResolver(zoneTable())
	r.SelectCity("Niterói")
	err := r.SelectNeighborhood("Alcântara")
	assert.ErrorIs(t, err, ErrZoneNotFound)
	assert.True(t, r.Fee().IsZero())
	assert.False(t, r.Resolved())
}

func TestResetClearsSelection(t *testing.T) {
	r := NewDeliveryResolver(zoneTable())
	r.SelectCity("Niterói")
	require.NoError(t, r.SelectNeighborhood("Centro"))

	r.Reset()
	assert.Empty(t, r.City())
	assert.Empty(t, r.Neighborhood())
	assert.True(t, r.Fee().IsZero())
	assert.Nil(t, r.Neighborhoods())
}

func TestEmptyTableLeavesControlsEmpty(t *testing.T) {
	r := NewDeliveryResolver(nil)
	assert.False(t, r.Loaded())
	assert.Empty(t, r.Cities())
	r.SelectCity("Niterói")
	assert.Empty(t, r.Neighborhoods())
}

func TestSwitchToPickupClearsSelection(t *testing.T) {
	r := NewDeliveryResolver(zoneTable())
	r.SelectCity("Niterói")
	require.NoError(t, r.SelectNeighborhood("Icaraí"))

	r.SetFulfillment(models.FulfillmentDelivery)
	assert.Equal(t, "Icaraí", r.Neighborhood())

	r.SetFulfillment(models.FulfillmentPickup)
	assert.Empty(t, r.City())
	assert.Empty(t, r.Neighborhood())
	assert.True(t, r.Fee().IsZero())
}
