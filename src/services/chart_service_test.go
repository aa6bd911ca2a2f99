package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/fundfolio/backend/src/models"
)

type fakeCandleSource struct {
	bars map[string][]Candle
}

func (f *fakeCandleSource) DailyCandles(ctx context.Context, ticker string) ([]Candle, error) {
	return f.bars[strings.ToUpper(strings.TrimSpace(ticker))], nil
}

// zigzagBars climbs 2 then drops 1 per day; the net trend is up while RSI
// stays out of the overbought zone.
func zigzagBars(days int) []Candle {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]Candle, 0, days+1)
	value := 100.0
	for i := 0; i <= days; i++ {
		if i > 0 {
			if i%2 == 1 {
				value += 2
			} else {
				value--
			}
		}
		bars = append(bars, Candle{Date: start.AddDate(0, 0, i).Format("2006-01-02"), Close: value})
	}
	return bars
}

func linearBars(days int, step float64) []Candle {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]Candle, 0, days)
	for i := 0; i < days; i++ {
		bars = append(bars, Candle{
			Date:  start.AddDate(0, 0, i).Format("2006-01-02"),
			Close: 100 + step*float64(i),
		})
	}
	return bars
}

func TestChartIndicatorHelpers(t *testing.T) {
	assert.InDelta(t, 3.5, sma([]float64{1, 2, 3, 4}, 2), 1e-9)
	assert.InDelta(t, 2, sma([]float64{1, 2, 3}, 5), 1e-9)
	assert.InDelta(t, 0, sma(nil, 20), 1e-9)

	// alpha = 0.5 for period 3: 0.5*4 + 0.5*2
	assert.InDelta(t, 3, ema([]float64{2, 4}, 3), 1e-9)
	assert.InDelta(t, 0, ema(nil, 12), 1e-9)

	assert.InDelta(t, 50, rsi([]float64{7}, 14), 1e-9)
	assert.InDelta(t, 100, rsi([]float64{1, 2, 3}, 14), 1e-9)
	assert.InDelta(t, 50, rsi([]float64{10, 11, 10, 11, 10}, 14), 1e-9)

	line, signal, hist := macd([]float64{5, 5, 5, 5, 5})
	assert.InDelta(t, 0, line, 1e-9)
	assert.InDelta(t, 0, signal, 1e-9)
	assert.InDelta(t, 0, hist, 1e-9)
}

func TestSignalFromIndicators(t *testing.T) {
	buy := map[string]float64{"sma20": 126, "sma50": 118, "rsi14": 66, "macdHist": 0}
	assert.Equal(t, "BUY", signalFromIndicators(130, buy))

	sell := map[string]float64{"sma20": 100, "sma50": 110, "rsi14": 40, "macdHist": -1}
	assert.Equal(t, "SELL", signalFromIndicators(90, sell))

	hold := map[string]float64{"sma20": 100, "sma50": 95, "rsi14": 40, "macdHist": -1}
	assert.Equal(t, "HOLD", signalFromIndicators(101, hold))

	// Overbought RSI takes one point back off an otherwise perfect trend.
	overbought := map[string]float64{"sma20": 150, "sma50": 140, "rsi14": 85, "macdHist": 1}
	assert.Equal(t, "HOLD", signalFromIndicators(200, overbought))
}

func TestTradingViewSymbolMapping(t *testing.T) {
	assert.Equal(t, "GPW:CDR", tradingViewSymbol("cdr"))
	assert.Equal(t, "GPW:CDR", tradingViewSymbol("CDR.PL"))
	assert.Equal(t, "GPW:PKN", tradingViewSymbol("PKN.WA"))
	assert.Equal(t, "NASDAQ:AAPL", tradingViewSymbol("AAPL.US"))
	assert.Equal(t, "SAP.DE", tradingViewSymbol("SAP.DE"))
	assert.Equal(t, "GPW:WIG20", tradingViewSymbol(""))
}

func TestCandlesUptrendSignalsBuy(t *testing.T) {
	source := &fakeCandleSource{bars: map[string][]Candle{"CDR": zigzagBars(60)}}
	service := NewChartService(nil, nil, source)

	result, err := service.Candles(context.Background(), " cdr ", 0)
	require.NoError(t, err)

	assert.Equal(t, "CDR", result.Ticker)
	require.Len(t, result.Candles, 61)
	assert.Equal(t, "BUY", result.Signal)
	assert.InDelta(t, 126, result.Indicators["sma20"], 1e-6)
	assert.InDelta(t, 118.5, result.Indicators["sma50"], 1e-6)
	assert.InDelta(t, 66.666667, result.Indicators["rsi14"], 1e-6)
	assert.InDelta(t, 0, result.Indicators["macdHist"], 1e-6)
}

func TestCandlesEmptyTicker(t *testing.T) {
	service := NewChartService(nil, nil, &fakeCandleSource{})

	result, err := service.Candles(context.Background(), "  ", 120)
	require.NoError(t, err)

	assert.Equal(t, "", result.Ticker)
	assert.Empty(t, result.Candles)
	assert.Equal(t, "N/A", result.Signal)
}

func TestCandlesLimitClamp(t *testing.T) {
	source := &fakeCandleSource{bars: map[string][]Candle{"CDR": linearBars(30, 1)}}
	service := NewChartService(nil, nil, source)

	twelve, err := service.Candles(context.Background(), "CDR", 12)
	require.NoError(t, err)
	assert.Len(t, twelve.Candles, 12)

	// Requests below the floor still keep ten bars.
	floored, err := service.Candles(context.Background(), "CDR", 5)
	require.NoError(t, err)
	assert.Len(t, floored.Candles, 10)

	all, err := service.Candles(context.Background(), "CDR", 0)
	require.NoError(t, err)
	assert.Len(t, all.Candles, 30)
}

func TestTradingViewUsesCandleSignal(t *testing.T) {
	source := &fakeCandleSource{bars: map[string][]Candle{"CDR": zigzagBars(60)}}
	service := NewChartService(nil, nil, source)

	result, err := service.TradingView(context.Background(), "cdr")
	require.NoError(t, err)

	assert.Equal(t, "CDR", result.Ticker)
	assert.Equal(t, "GPW:CDR", result.TradingViewSymbol)
	assert.Contains(t, result.EmbedURL, "GPW%3ACDR")
	assert.Equal(t, "BUY", result.Signal)
	assert.InDelta(t, 66.666667, result.Indicators["rsi14"], 1e-6)
}

func TestCatalystAnalysis(t *testing.T) {
	state := serviceTestState()
	state.Assets = append(state.Assets,
		models.Asset{
			ID: "ast_b1", Ticker: "CAT1", Name: "Obligacja 2060", Type: "Obligacje korporacyjne",
			Currency: "PLN", CurrentPrice: 95,
			Tags: models.Tags{"coupon=6", "nominal=100", "maturity=2060-01-01"},
		},
		models.Asset{
			ID: "ast_b2", Ticker: "CAT2", Name: "Obligacja bez wykupu", Type: "Obligacje",
			Currency: "PLN", CurrentPrice: 100,
			Tags: models.Tags{"kupon: 3"},
		},
	)
	quotes := &fakeQuoteStore{quotes: []models.Quote{
		{Ticker: "CAT2", Price: 90, Currency: "PLN"},
	}}
	service := NewChartService(&fakeStateStore{state: state}, quotes, &fakeCandleSource{})

	result, err := service.CatalystAnalysis("", 80)
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)

	// The dated bond carries a positive YTM and sorts first.
	first := result.Rows[0]
	assert.Equal(t, "CAT1", first.Ticker)
	assert.InDelta(t, 6.3158, first.CurrentYieldPct, 1e-4)
	assert.Equal(t, "2060-01-01", first.MaturityDate)
	assert.Greater(t, first.YearsToMaturity, 7.0)
	assert.Greater(t, first.YTMApproxPct, 0.0)
	assert.Greater(t, first.DurationProxy, 0.0)
	assert.Equal(t, "Wysoki", first.RiskLabel)

	// The undated bond prices off the cached quote and stays low risk.
	second := result.Rows[1]
	assert.Equal(t, "CAT2", second.Ticker)
	assert.InDelta(t, 90, second.Price, 1e-9)
	assert.InDelta(t, 3.3333, second.CurrentYieldPct, 1e-4)
	assert.InDelta(t, 0, second.YTMApproxPct, 1e-9)
	assert.Equal(t, "", second.MaturityDate)
	assert.Equal(t, "Niski", second.RiskLabel)
}

func TestFundsRankingOrdersByScore(t *testing.T) {
	state := serviceTestState()
	state.Assets = append(state.Assets,
		models.Asset{ID: "ast_f1", Ticker: "FUP", Name: "Fundusz wzrostowy", Type: "ETF"},
		models.Asset{ID: "ast_f2", Ticker: "FDOWN", Name: "Fundusz spadkowy", Type: "Fundusz akcji"},
		models.Asset{ID: "ast_f3", Ticker: "FSHORT", Name: "Nowy fundusz", Type: "ETF"},
	)
	source := &fakeCandleSource{bars: map[string][]Candle{
		"FUP":    linearBars(60, 0.5),
		"FDOWN":  linearBars(60, -0.5),
		"FSHORT": linearBars(10, 0.5),
	}}
	service := NewChartService(&fakeStateStore{state: state}, &fakeQuoteStore{}, source)

	result, err := service.FundsRanking(context.Background(), 30)
	require.NoError(t, err)

	// FSHORT lacks history, CDR is not a fund.
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "FUP", result.Rows[0].Ticker)
	assert.Equal(t, 1, result.Rows[0].Rank)
	assert.Greater(t, result.Rows[0].CumulativeReturnPct, 0.0)
	assert.InDelta(t, 0, result.Rows[0].MaxDrawdownPct, 1e-9)

	assert.Equal(t, "FDOWN", result.Rows[1].Ticker)
	assert.Equal(t, 2, result.Rows[1].Rank)
	assert.Less(t, result.Rows[1].CumulativeReturnPct, 0.0)
	assert.Less(t, result.Rows[1].MaxDrawdownPct, 0.0)
	assert.Greater(t, result.Rows[0].Score, result.Rows[1].Score)
}

func TestParseTagMapAndDates(t *testing.T) {
	tagMap := parseTagMap(models.Tags{"coupon=6", "Kupon: 5", "plain", ""})
	assert.Len(t, tagMap, 2)
	assert.Equal(t, "6", tagValue(tagMap, "coupon"))
	assert.Equal(t, "5", tagValue(tagMap, "missing", "kupon"))
	assert.Equal(t, "", tagValue(tagMap, "missing"))

	assert.Equal(t, "2030-03-09", isoDate("2030-03-09"))
	assert.Equal(t, "2030-03-09", isoDate("09.03.2030"))
	assert.Equal(t, "", isoDate("niepoprawna"))
	assert.Equal(t, "", isoDate(""))

	assert.InDelta(t, 0, yearsTo(""), 1e-9)
	assert.InDelta(t, 0, yearsTo("2020-01-01"), 1e-9)
	assert.Greater(t, yearsTo("2060-01-01"), 30.0)
}
