package analytics

import (
	"math"
	"sort"

	"github.com/username/fundfolio/backend/src/models"
	"github.com/username/fundfolio/backend/src/utils"
)

// BuildSeries produces the historical value series: one snapshot per distinct
// operation date (valued at historical transaction prices) plus a trailing
// "today" snapshot at live prices when today is not already the last date.
// Each point is one replay truncated at that date with CutoffClosed set, so
// the cost is O(distinct dates × operations); maxPoints > 0 keeps only the
// most recent
// dates as the caller-imposed bound on pathological histories. The engine
// itself memoizes nothing — repeated callers cache externally.
func BuildSeries(state *models.State, portfolioID string, maxPoints int) []models.SeriesPoint {
	seen := make(map[string]struct{})
	for i := range state.Operations {
		op := &state.Operations[i]
		if portfolioID != "" && op.PortfolioID != portfolioID {
			continue
		}
		if op.Date == "" {
			continue
		}
		date := op.Date
		if len(date) > 10 {
			date = date[:10]
		}
		seen[date] = struct{}{}
	}
	dates := make([]string, 0, len(seen))
	for date := range seen {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	if maxPoints > 0 && len(dates) > maxPoints {
		dates = dates[len(dates)-maxPoints:]
	}

	out := make([]models.SeriesPoint, 0, len(dates)+1)
	for _, date := range dates {
		metrics := Replay(state, Options{
			PortfolioID:   portfolioID,
			UntilDate:     date,
			UseLivePrices: false,
			CutoffClosed:  true,
		})
		out = append(out, seriesPoint(date, metrics))
	}

	today := utils.TodayISO()
	if len(out) == 0 || out[len(out)-1].Date != today {
		current := Replay(state, Options{PortfolioID: portfolioID, UseLivePrices: true})
		out = append(out, seriesPoint(today, current))
	}
	return out
}

func seriesPoint(date string, metrics *models.Metrics) models.SeriesPoint {
	return models.SeriesPoint{
		Date:             date,
		NetWorth:         metrics.NetWorth,
		MarketValue:      metrics.MarketValue,
		CashTotal:        metrics.CashTotal,
		LiabilitiesTotal: metrics.LiabilitiesTotal,
		TotalPL:          metrics.TotalPL,
		ReturnPct:        metrics.ReturnPct,
		UnitValue:        safeDiv(metrics.NetWorth, metrics.Units),
	}
}

// PeriodReturns is the point-to-point percentage change of the picked value.
func PeriodReturns(series []models.SeriesPoint, pick func(models.SeriesPoint) float64) []models.DatedValue {
	out := make([]models.DatedValue, 0, len(series))
	for i := 1; i < len(series); i++ {
		prev := pick(series[i-1])
		cur := pick(series[i])
		pct := 0.0
		if prev != 0 {
			pct = safeDiv(cur-prev, prev) * 100
		}
		out = append(out, models.DatedValue{Date: series[i].Date, Value: pct})
	}
	return out
}

// RollingReturns is the percentage change over a trailing window of points;
// points before a full window report 0.
func RollingReturns(series []models.SeriesPoint, window int, pick func(models.SeriesPoint) float64) []models.DatedValue {
	out := make([]models.DatedValue, 0, len(series))
	for i := range series {
		if i < window {
			out = append(out, models.DatedValue{Date: series[i].Date, Value: 0})
			continue
		}
		base := pick(series[i-window])
		cur := pick(series[i])
		value := 0.0
		if base != 0 {
			value = safeDiv(cur-base, base) * 100
		}
		out = append(out, models.DatedValue{Date: series[i].Date, Value: value})
	}
	return out
}

// Drawdown is the percentage distance from the running peak, 0 at new highs.
func Drawdown(series []models.SeriesPoint, pick func(models.SeriesPoint) float64) []models.DatedValue {
	peak := math.Inf(-1)
	out := make([]models.DatedValue, 0, len(series))
	for _, point := range series {
		value := pick(point)
		if value > peak {
			peak = value
		}
		draw := 0.0
		if peak != 0 && !math.IsInf(peak, 0) {
			draw = safeDiv(value-peak, peak) * 100
		}
		out = append(out, models.DatedValue{Date: point.Date, Value: draw})
	}
	return out
}

// Compound chains percentage returns into one aggregate percentage.
func Compound(returns []models.DatedValue) float64 {
	result := 1.0
	for _, row := range returns {
		result *= 1 + row.Value/100
	}
	return (result - 1) * 100
}

// Mean is the arithmetic mean; empty input yields 0.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, value := range values {
		total += value
	}
	return total / float64(len(values))
}

// StdDev is the population standard deviation; empty input yields 0.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	avg := Mean(values)
	variance := 0.0
	for _, value := range values {
		variance += (value - avg) * (value - avg)
	}
	return math.Sqrt(variance / float64(len(values)))
}

// PickNetWorth is the default series selector used by the report layer.
func PickNetWorth(point models.SeriesPoint) float64 { return point.NetWorth }
