package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToNum(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"123", 123},
		{"-42", -42},
		{"12,5", 12.5},
		{"1 234,56", 1234.56},
		{"1.234.567,89", 1234567.89},
		{"  7.25  ", 7.25},
		{"", 0},
		{"abc", 0},
		{"12abc", 0},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, ToNum(tc.in), 1e-9, "input %q", tc.in)
	}
}

func TestToInt(t *testing.T) {
	assert.Equal(t, 7, ToInt("7", 0))
	assert.Equal(t, 3, ToInt("x", 3))
	assert.Equal(t, 3, ToInt("", 3))
	assert.Equal(t, -5, ToInt(" -5 ", 0))
}

func TestFold(t *testing.T) {
	assert.Equal(t, "dywidenda", Fold("Dywidenda"))
	assert.Equal(t, "sprzedaz waloru", Fold("Sprzedaż waloru"))
	assert.Equal(t, "operacja gotowkowa", Fold("Operacja gotówkowa"))
	assert.Equal(t, "zobowiazanie", Fold("Zobowiązanie"))
	assert.Equal(t, "foo bar", Fold("  Foo   Bar "))
	assert.Equal(t, "", Fold("   "))
}

func TestContainsFold(t *testing.T) {
	assert.True(t, ContainsFold("Sprzedaż waloru", "sprzedaz"))
	assert.True(t, ContainsFold("Zamknięte inwestycje - szczegóły", "zamkniete", "szczegoly"))
	assert.False(t, ContainsFold("Kupno waloru", "sprzedaz"))
	assert.True(t, ContainsFold("anything"))
}

func TestSafeDiv(t *testing.T) {
	assert.InDelta(t, 2.5, SafeDiv(5, 2), 1e-9)
	assert.InDelta(t, 0, SafeDiv(5, 0), 1e-9)
	assert.InDelta(t, 0, SafeDiv(5, 1e-13), 1e-9)
}

func TestParseDateISO(t *testing.T) {
	assert.Equal(t, "2024-03-09", ParseDateISO("2024-03-09"))
	assert.Equal(t, "2024-03-09", ParseDateISO("2024-03-09T15:04:05Z"))
	assert.Equal(t, "2024-03-09", ParseDateISO("2024/03/09"))
	assert.Equal(t, "2024-03-09", ParseDateISO("09.03.2024"))
	assert.Equal(t, "2024-03-09", ParseDateISO("09-03-2024"))
	assert.Equal(t, "2024-03-09", ParseDateISO("09.03.2024 15:04:05"))

	// Unparseable input falls back to today rather than failing.
	assert.Equal(t, TodayISO(), ParseDateISO("not a date"))
	assert.Equal(t, TodayISO(), ParseDateISO(""))
}
