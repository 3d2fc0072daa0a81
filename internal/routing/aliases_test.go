package routing_test

import (
	"testing"

	"github.com/Flaque/filet"
	"github.com/UnknownOlympus/hermes/internal/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAliasTable_Canonical(t *testing.T) {
	table := routing.NewAliasTable()

	tests := []struct {
		city string
		want string
	}{
		{"Hamrun", "Hamrun"},
		{"Ħamrun", "Hamrun"},
		{"Il-Ħamrun", "Hamrun"},
		{"  il-hamrun ", "Hamrun"},
		{"IL-MOSTA", "Mosta"},
		{"Mosta", "Mosta"},
		{"St. Julian's", "San Giljan"},
		{"San Ġiljan", "San Giljan"},
		{"Ħaż-Żebbuġ", "Zebbug"},
		{"Tas-Sliema", "Sliema"},
		{"Città Vittoriosa", "Birgu"},
		{"new town", "New Town"},
		{"Il-Fortizza", "Il-Fortizza"},
		{"Hal Far", "Hal Far"},
		{"Ħal Far", "Hal Far"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.city, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Canonical(tt.city))
		})
	}
}

func TestAliasTable_Add(t *testing.T) {
	table := routing.NewAliasTable()

	table.Add("Santa Venera", "Fleur-de-Lys")

	assert.Equal(t, "Santa Venera", table.Canonical("fleur-de-lys"))
}

func TestLoadAliasTable(t *testing.T) {
	defer filet.CleanUp(t)

	t.Run("overlay extends the built-in table", func(t *testing.T) {
		file := filet.TmpFile(t, "", `
[[city]]
canonical = "Hamrun"
aliases = ["Blata l-Bajda"]

[[city]]
canonical = "Pembroke"
aliases = ["Pembroke Army Base"]
`)

		table, err := routing.LoadAliasTable(file.Name())

		require.NoError(t, err)
		assert.Equal(t, "Hamrun", table.Canonical("Blata l-Bajda"))
		assert.Equal(t, "Hamrun", table.Canonical("Ħamrun"))
		assert.Equal(t, "Pembroke", table.Canonical("pembroke army base"))
	})

	t.Run("missing canonical name", func(t *testing.T) {
		file := filet.TmpFile(t, "", "[[city]]\naliases = [\"Nowhere\"]\n")

		_, err := routing.LoadAliasTable(file.Name())

		require.ErrorContains(t, err, "has no canonical name")
	})

	t.Run("invalid toml", func(t *testing.T) {
		file := filet.TmpFile(t, "", "[[city]\ncanonical = ")

		_, err := routing.LoadAliasTable(file.Name())

		require.ErrorContains(t, err, "failed to decode city aliases")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := routing.LoadAliasTable("does-not-exist.toml")

		require.Error(t, err)
	})
}
