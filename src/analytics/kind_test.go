package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyOperation(t *testing.T) {
	cases := []struct {
		label string
		want  Kind
	}{
		{"Kupno waloru", KindBuy},
		{"BUY shares", KindBuy},
		{"Sprzedaż waloru", KindSell},
		{"sprzedaz czesciowa", KindSell},
		{"Sell to close", KindSell},
		{"Konwersja", KindConversion},
		{"Currency conversion", KindConversion},
		{"Dywidenda", KindDividend},
		{"dividend payout", KindDividend},
		{"Prowizja maklerska", KindFee},
		{"Commission", KindFee},
		{"Operacja gotówkowa", KindContribution},
		{"Cash operation", KindContribution},
		{"Przelew przychodzący", KindContribution},
		{"Transfer out", KindContribution},
		{"Lokata terminowa", KindContribution},
		{"Term deposit", KindContribution},
		{"Pożyczka", KindContribution},
		{"Loan repayment", KindContribution},
		{"Zobowiązanie", KindContribution},
		{"Liability payment", KindContribution},
		{"Deposit", KindContribution},
		{"Withdrawal", KindContribution},
		{"Jakaś inna operacja", KindGenericCash},
		{"", KindGenericCash},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyOperation(tc.label), "label %q", tc.label)
	}
}

func TestClassifyOperationFirstMarkerWins(t *testing.T) {
	// Trade markers outrank the broad cash-movement markers.
	assert.Equal(t, KindBuy, ClassifyOperation("Kupno - prowizja w cenie"))
	assert.Equal(t, KindSell, ClassifyOperation("Sprzedaz z przelewem"))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "buy", KindBuy.String())
	assert.Equal(t, "contribution", KindContribution.String())
	assert.Equal(t, "cash", KindGenericCash.String())
}
