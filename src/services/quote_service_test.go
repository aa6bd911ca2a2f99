package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTickers(t *testing.T) {
	out := normalizeTickers([]string{" cdr ", "CDR", "", "pkn.wa", "ETF1"})
	assert.Equal(t, []string{"CDR", "PKN.WA", "ETF1"}, out)

	assert.Empty(t, normalizeTickers(nil))
}

func TestStooqCandidates(t *testing.T) {
	assert.Equal(t, []string{"cdr", "cdr.us", "cdr.pl"}, stooqCandidates("CDR"))
	assert.Equal(t, []string{"pkn.wa"}, stooqCandidates("PKN.WA"))
	assert.Nil(t, stooqCandidates("  "))
}

func TestStooqHistoryCandidates(t *testing.T) {
	assert.Equal(t, []string{"wig20"}, stooqHistoryCandidates("WIG20")[:1])
	assert.Equal(t, []string{"spx"}, stooqHistoryCandidates("S&P 500")[:1])
	assert.Equal(t, []string{"cdr", "cdr.pl", "cdr.us"}, stooqHistoryCandidates("CDR"))
	assert.Equal(t, []string{"pkn.wa", "pkn"}, stooqHistoryCandidates("PKN.WA"))
}

func TestGuessCurrencyFromTicker(t *testing.T) {
	assert.Equal(t, "PLN", guessCurrencyFromTicker("cdr.pl"))
	assert.Equal(t, "PLN", guessCurrencyFromTicker("PKN.WA"))
	assert.Equal(t, "EUR", guessCurrencyFromTicker("sap.de"))
	assert.Equal(t, "GBP", guessCurrencyFromTicker("hsba.l"))
	assert.Equal(t, "CHF", guessCurrencyFromTicker("nesn.sw"))
	assert.Equal(t, "USD", guessCurrencyFromTicker("AAPL"))
}

func TestParseStooqCSV(t *testing.T) {
	text := "Symbol,Date,Time,Open,High,Low,Close,Volume\n" +
		"CDR,2026-08-28,17:00:00,118.2,121.0,117.5,120.4,250000\n"
	price, ok := parseStooqCSV(text)
	require.True(t, ok)
	assert.InDelta(t, 120.4, price, 1e-9)

	_, ok = parseStooqCSV("Symbol,Date,Time,Open,High,Low,Close,Volume\nCDR,N/D,N/D,N/D,N/D,N/D,N/D,N/D\n")
	assert.False(t, ok)

	_, ok = parseStooqCSV("")
	assert.False(t, ok)
}

func TestParseStooqHistoryCSV(t *testing.T) {
	text := "Date,Open,High,Low,Close,Volume\n" +
		"2026-08-27,117.0,119.0,116.5,118.2,200000\n" +
		"2026-08-26,115.0,117.5,114.0,117.0,180000\n" +
		"2026-08-28,118.2,121.0,117.5,120.4,250000\n" +
		"2026-08-29,,,,N/D,\n"
	rows := parseStooqHistoryCSV(text)

	require.Len(t, rows, 3)
	// Oldest first, malformed rows skipped.
	assert.Equal(t, "2026-08-26", rows[0].Date)
	assert.Equal(t, "2026-08-28", rows[2].Date)
	assert.InDelta(t, 120.4, rows[2].Close, 1e-9)

	assert.Nil(t, parseStooqHistoryCSV("Date,Close\n"))
	assert.Nil(t, parseStooqHistoryCSV("Foo,Bar\n1,2\n"))
}

func TestParseStooqCandlesCSV(t *testing.T) {
	text := "Date,Open,High,Low,Close,Volume\n" +
		"2026-08-27,117.0,119.0,116.5,118.2,200000\n" +
		"2026-08-26,115.0,117.5,114.0,117.0,180000\n" +
		"2026-08-28,N/D,N/D,N/D,N/D,N/D\n" +
		"2026-08-29,118.2,121.0,117.5,120.4,\n"
	rows := parseStooqCandlesCSV(text)

	require.Len(t, rows, 3)
	// Oldest first, N/D rows dropped, a missing volume degrades to 0.
	assert.Equal(t, "2026-08-26", rows[0].Date)
	assert.Equal(t, "2026-08-29", rows[2].Date)
	assert.InDelta(t, 117.0, rows[1].Open, 1e-9)
	assert.InDelta(t, 119.0, rows[1].High, 1e-9)
	assert.InDelta(t, 116.5, rows[1].Low, 1e-9)
	assert.InDelta(t, 118.2, rows[1].Close, 1e-9)
	assert.InDelta(t, 200000, rows[1].Volume, 1e-9)
	assert.InDelta(t, 0, rows[2].Volume, 1e-9)

	assert.Nil(t, parseStooqCandlesCSV("Date,Open,High,Low,Close,Volume\n"))
	assert.Nil(t, parseStooqCandlesCSV("Foo,Bar\n1,2\n"))
}
