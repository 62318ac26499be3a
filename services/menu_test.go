package services

import (
	"testing"

	"bomsabor-web/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMenuUpdateReplacesInPlace(t *testing.T) {
	b := NewMenuBoard([]models.MenuItem{pudim(), pizza(), {ID: "7", Name: "Suco", Price: dec("8.00")}})

	updated := pizza()
	updated.Name = "Pizza Calabresa"
	updated.Price = dec("48.00")
	require.True(t, b.Apply(MenuItemUpdated, updated))

	items := b.Items()
	require.Len(t, items, 3)
	assert.Equal(t, []models.FlexID{"4", "9", "7"}, []models.FlexID{items[0].ID, items[1].ID, items[2].ID})
	assert.Equal(t, "Pizza Calabresa", items[1].Name)
	assert.Equal(t, "48.00", items[1].Price.StringFixed(2))
	assert.Equal(t, "Pudim de Leite", items[0].Name)
}

func TestMenuCreateAndDelete(t *testing.T) {
	b := NewMenuBoard([]models.MenuItem{pudim()})
	assert.True(t, b.Apply(MenuItemCreated, pizza()))
	assert.Len(t, b.Items(), 2)

	assert.True(t, b.Apply(MenuItemDeleted, models.MenuItem{ID: "4"}))
	assert.False(t, b.Apply(MenuItemDeleted, models.MenuItem{ID: "4"}))
	_, ok := b.Get("4")
	assert.False(t, ok)
	assert.Len(t, b.ByPeriod(models.PeriodDinner), 1)
	assert.Empty(t, b.ByPeriod(models.PeriodLunch))
}

func TestParseMenuItemForm(t *testing.T) {
	in, err := ParseMenuItemForm(MenuItemForm{
		Name: " Feijoada Completa ", Price: "35,9", SmallPrice: "", Period: "lunch", Category: "Prato Principal",
	})
	require.NoError(t, err)
	assert.Equal(t, "Feijoada Completa", in.Name)
	assert.Equal(t, "35.90", in.Price.StringFixed(2))
	assert.False(t, in.SmallPrice.Valid)

	in, err = ParseMenuItemForm(MenuItemForm{Name: "Pizza", Price: "45", SmallPrice: "30", Period: "dinner"})
	require.NoError(t, err)
	assert.True(t, in.SmallPrice.Valid)

	tests := []MenuItemForm{
		{Name: "", Price: "10", Period: "lunch"},
		{Name: "X", Price: "abc", Period: "lunch"},
		{Name: "X", Price: "-1", Period: "lunch"},
		{Name: "X", Price: "10", Period: "breakfast"},
		{Name: "X", Price: "10", SmallPrice: "x", Period: "lunch"},
	}
	for _, f := range tests {
		if _, err := ParseMenuItemForm(f); err == nil {
			t.Errorf("ParseMenuItemForm(%+v) = nil error, want error", f)
		}
	}
}

func TestParseZoneForm(t *testing.T) {
	in, err := ParseZoneForm("Niterói", "Icaraí", "6")
	require.NoError(t, err)
	assert.Equal(t, "6.00", in.Fee.StringFixed(2))

	_, err = ParseZoneForm("", "Icaraí", "6")
	assert.Error(t, err)
	_, err = ParseZoneForm("Niterói", "Icaraí", "")
	assert.Error(t, err)
}
