package services

import (
	"context"
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/username/fundfolio/backend/src/analytics"
	"github.com/username/fundfolio/backend/src/models"
	"github.com/username/fundfolio/backend/src/utils"
)

// CandleSource fetches the daily OHLCV history for one ticker, oldest first.
type CandleSource interface {
	DailyCandles(ctx context.Context, ticker string) ([]Candle, error)
}

// CandlesResult is one ticker's chart: the bars, the derived indicators and
// the aggregate trade signal.
type CandlesResult struct {
	Ticker      string             `json:"ticker"`
	Candles     []Candle           `json:"candles"`
	Indicators  map[string]float64 `json:"indicators"`
	Signal      string             `json:"signal"`
	GeneratedAt string             `json:"generatedAt"`
}

// TradingViewResult maps a ticker onto an embeddable TradingView chart plus
// the locally computed indicators.
type TradingViewResult struct {
	Ticker            string             `json:"ticker"`
	TradingViewSymbol string             `json:"tradingviewSymbol"`
	EmbedURL          string             `json:"embedUrl"`
	Signal            string             `json:"signal"`
	Indicators        map[string]float64 `json:"indicators"`
	GeneratedAt       string             `json:"generatedAt"`
}

// CatalystRow is one bond of the Catalyst yield analysis.
type CatalystRow struct {
	Ticker          string  `json:"ticker"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	Currency        string  `json:"currency"`
	CouponRate      float64 `json:"couponRate"`
	Nominal         float64 `json:"nominal"`
	MaturityDate    string  `json:"maturityDate"`
	YearsToMaturity float64 `json:"yearsToMaturity"`
	CurrentYieldPct float64 `json:"currentYieldPct"`
	YTMApproxPct    float64 `json:"ytmApproxPct"`
	DurationProxy   float64 `json:"durationProxy"`
	RiskLabel       string  `json:"riskLabel"`
}

// CatalystResult is the full bond analysis response.
type CatalystResult struct {
	PortfolioID string        `json:"portfolioId"`
	Rows        []CatalystRow `json:"rows"`
	GeneratedAt string        `json:"generatedAt"`
}

// FundRankRow is one fund of the risk-adjusted performance ranking.
type FundRankRow struct {
	Rank                int     `json:"rank"`
	Ticker              string  `json:"ticker"`
	Name                string  `json:"name"`
	Type                string  `json:"type"`
	AnnualReturnPct     float64 `json:"annualReturnPct"`
	CumulativeReturnPct float64 `json:"cumulativeReturnPct"`
	VolatilityPct       float64 `json:"volatilityPct"`
	MaxDrawdownPct      float64 `json:"maxDrawdownPct"`
	SharpeApprox        float64 `json:"sharpeApprox"`
	ReturnRisk          float64 `json:"returnRisk"`
	Score               float64 `json:"score"`
}

// FundsRankingResult is the full fund ranking response.
type FundsRankingResult struct {
	Rows        []FundRankRow `json:"rows"`
	GeneratedAt string        `json:"generatedAt"`
}

// ChartService builds technical charts and history-derived analyses: the
// candle view with SMA/EMA/RSI/MACD indicators, the TradingView embed, the
// Catalyst bond yield table and the fund performance ranking.
type ChartService struct {
	states  StateProvider
	quotes  QuoteStoreWriter
	candles CandleSource
}

func NewChartService(states StateProvider, quotes QuoteStoreWriter, candles CandleSource) *ChartService {
	return &ChartService{states: states, quotes: quotes, candles: candles}
}

// Candles fetches the daily bars for one ticker and derives the indicator
// set plus an aggregate signal. limit > 0 keeps only the most recent bars,
// clamped to [10, 3000].
func (s *ChartService) Candles(ctx context.Context, ticker string, limit int) (*CandlesResult, error) {
	symbol := strings.ToUpper(strings.TrimSpace(ticker))
	if symbol == "" {
		return &CandlesResult{
			Ticker:      "",
			Candles:     []Candle{},
			Indicators:  map[string]float64{},
			Signal:      "N/A",
			GeneratedAt: utils.NowISO(),
		}, nil
	}

	rows, err := s.candles.DailyCandles(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if limit > 0 {
		keep := limit
		if keep > 3000 {
			keep = 3000
		}
		if keep < 10 {
			keep = 10
		}
		if len(rows) > keep {
			rows = rows[len(rows)-keep:]
		}
	}

	closes := make([]float64, 0, len(rows))
	for _, row := range rows {
		if row.Close > 0 {
			closes = append(closes, row.Close)
		}
	}
	lastClose := 0.0
	if len(closes) > 0 {
		lastClose = closes[len(closes)-1]
	}

	indicators := chartIndicators(closes)
	signal := "N/A"
	if len(rows) > 0 {
		signal = signalFromIndicators(lastClose, indicators)
	}
	for key, value := range indicators {
		indicators[key] = math.Round(value*1e6) / 1e6
	}
	return &CandlesResult{
		Ticker:      symbol,
		Candles:     rows,
		Indicators:  indicators,
		Signal:      signal,
		GeneratedAt: utils.NowISO(),
	}, nil
}

// TradingView maps the ticker onto an exchange-prefixed TradingView symbol
// and reuses the candle indicators for the signal shown next to the embed.
func (s *ChartService) TradingView(ctx context.Context, ticker string) (*TradingViewResult, error) {
	symbol := strings.ToUpper(strings.TrimSpace(ticker))
	chart, err := s.Candles(ctx, symbol, 220)
	if err != nil {
		return nil, err
	}
	tvSymbol := tradingViewSymbol(symbol)
	return &TradingViewResult{
		Ticker:            symbol,
		TradingViewSymbol: tvSymbol,
		EmbedURL:          "https://www.tradingview.com/chart/?symbol=" + url.QueryEscape(tvSymbol),
		Signal:            chart.Signal,
		Indicators:        chart.Indicators,
		GeneratedAt:       utils.NowISO(),
	}, nil
}

// CatalystAnalysis computes approximate yield figures for the bond assets of
// the snapshot. Coupon, nominal and maturity come from key=value asset tags;
// the price prefers the cached quote over the stored reference price.
func (s *ChartService) CatalystAnalysis(portfolioID string, limit int) (*CatalystResult, error) {
	state, err := s.states.Get()
	if err != nil {
		return nil, err
	}

	tickers := make([]string, 0, len(state.Assets))
	for _, asset := range state.Assets {
		tickers = append(tickers, asset.Ticker)
	}
	quoteMap := make(map[string]models.Quote)
	if quotes, err := s.quotes.List(normalizeTickers(tickers)); err == nil {
		for _, quote := range quotes {
			quoteMap[strings.ToUpper(quote.Ticker)] = quote
		}
	}

	rows := []CatalystRow{}
	for _, asset := range state.Assets {
		if !isBondAsset(asset) {
			continue
		}
		ticker := strings.ToUpper(strings.TrimSpace(asset.Ticker))
		quote, hasQuote := quoteMap[ticker]
		price := asset.CurrentPrice.Float()
		if hasQuote && quote.Price > 0 {
			price = quote.Price
		}
		if price <= 0 {
			continue
		}

		tagMap := parseTagMap(asset.Tags)
		couponRate := utils.ToNum(tagValue(tagMap, "coupon", "kupon", "coupon_rate"))
		nominal := utils.ToNum(tagValue(tagMap, "nominal", "nominal_value", "wartosc_nominalna"))
		if nominal == 0 {
			nominal = 100
		}
		maturity := isoDate(tagValue(tagMap, "maturity", "zapadalnosc", "expiry", "wykup"))
		years := yearsTo(maturity)

		annualCoupon := nominal * couponRate / 100
		currentYield := annualCoupon / price * 100
		ytm := 0.0
		durationProxy := 0.0
		if years > 0 {
			ytm = ((annualCoupon + (nominal-price)/years) / ((nominal + price) / 2)) * 100
			durationProxy = years / (1 + math.Max(0, ytm)/100)
		}
		risk := "Niski"
		if years > 7 || ytm > 10 {
			risk = "Wysoki"
		} else if years > 3 || ytm > 6 {
			risk = "Sredni"
		}

		currency := asset.Currency
		if hasQuote && quote.Currency != "" {
			currency = quote.Currency
		}
		if currency == "" {
			currency = "PLN"
		}

		rows = append(rows, CatalystRow{
			Ticker:          ticker,
			Name:            asset.Name,
			Price:           math.Round(price*1e4) / 1e4,
			Currency:        currency,
			CouponRate:      math.Round(couponRate*1e4) / 1e4,
			Nominal:         math.Round(nominal*1e4) / 1e4,
			MaturityDate:    maturity,
			YearsToMaturity: math.Round(years*1e4) / 1e4,
			CurrentYieldPct: math.Round(currentYield*1e4) / 1e4,
			YTMApproxPct:    math.Round(ytm*1e4) / 1e4,
			DurationProxy:   math.Round(durationProxy*1e4) / 1e4,
			RiskLabel:       risk,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].YTMApproxPct > rows[j].YTMApproxPct })
	if limit < 1 {
		limit = 1
	}
	if limit > 500 {
		limit = 500
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return &CatalystResult{PortfolioID: portfolioID, Rows: rows, GeneratedAt: utils.NowISO()}, nil
}

// fundsRankingUniverseCap bounds how many funds fetch history per call.
const fundsRankingUniverseCap = 80

// FundsRanking scores the fund and ETF assets of the snapshot on their daily
// history: annualized return, volatility, an approximate Sharpe ratio and
// max drawdown, folded into one ranking score.
func (s *ChartService) FundsRanking(ctx context.Context, limit int) (*FundsRankingResult, error) {
	state, err := s.states.Get()
	if err != nil {
		return nil, err
	}

	candidates := make([]models.Asset, 0, len(state.Assets))
	for _, asset := range state.Assets {
		if isFundAsset(asset) {
			candidates = append(candidates, asset)
		}
	}
	if len(candidates) > fundsRankingUniverseCap {
		candidates = candidates[:fundsRankingUniverseCap]
	}

	rows := []FundRankRow{}
	for _, asset := range candidates {
		ticker := strings.ToUpper(strings.TrimSpace(asset.Ticker))
		if ticker == "" {
			continue
		}
		bars, err := s.candles.DailyCandles(ctx, ticker)
		if err != nil || len(bars) < 20 {
			continue
		}
		closes := make([]float64, 0, len(bars))
		for _, bar := range bars {
			if bar.Close > 0 {
				closes = append(closes, bar.Close)
			}
		}
		if len(closes) > 252 {
			closes = closes[len(closes)-252:]
		}
		if len(closes) < 10 {
			continue
		}
		returns := make([]float64, 0, len(closes)-1)
		for i := 1; i < len(closes); i++ {
			if closes[i-1] > 0 {
				returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
			}
		}
		if len(returns) == 0 {
			continue
		}

		cumulative := 0.0
		if closes[0] > 0 {
			cumulative = (closes[len(closes)-1]/closes[0] - 1) * 100
		}
		avgDaily := analytics.Mean(returns)
		annualReturn := (math.Pow(1+avgDaily, 252) - 1) * 100
		volatility := analytics.StdDev(returns) * math.Sqrt(252) * 100
		sharpe := 0.0
		returnRisk := 0.0
		if volatility > 0 {
			sharpe = (annualReturn - 2) / volatility
			returnRisk = annualReturn / volatility
		}
		drawdown := maxDrawdownPct(closes)
		score := sharpe*100 + returnRisk*10 + cumulative*0.3 + drawdown*0.2

		rows = append(rows, FundRankRow{
			Ticker:              ticker,
			Name:                asset.Name,
			Type:                asset.Type,
			AnnualReturnPct:     math.Round(annualReturn*1e4) / 1e4,
			CumulativeReturnPct: math.Round(cumulative*1e4) / 1e4,
			VolatilityPct:       math.Round(volatility*1e4) / 1e4,
			MaxDrawdownPct:      math.Round(drawdown*1e4) / 1e4,
			SharpeApprox:        math.Round(sharpe*1e4) / 1e4,
			ReturnRisk:          math.Round(returnRisk*1e4) / 1e4,
			Score:               math.Round(score*1e4) / 1e4,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return &FundsRankingResult{Rows: rows, GeneratedAt: utils.NowISO()}, nil
}

func chartIndicators(closes []float64) map[string]float64 {
	macdLine, macdSignal, macdHist := macd(closes)
	return map[string]float64{
		"sma20":      sma(closes, 20),
		"sma50":      sma(closes, 50),
		"ema12":      ema(closes, 12),
		"ema26":      ema(closes, 26),
		"rsi14":      rsi(closes, 14),
		"macd":       macdLine,
		"macdSignal": macdSignal,
		"macdHist":   macdHist,
	}
}

// sma averages the trailing period; shorter inputs average everything.
func sma(values []float64, period int) float64 {
	if len(values) == 0 {
		return 0
	}
	if len(values) > period {
		values = values[len(values)-period:]
	}
	total := 0.0
	for _, value := range values {
		total += value
	}
	return total / float64(len(values))
}

func ema(values []float64, period int) float64 {
	if len(values) == 0 {
		return 0
	}
	alpha := 2.0 / (float64(period) + 1)
	result := values[0]
	for _, value := range values[1:] {
		result = alpha*value + (1-alpha)*result
	}
	return result
}

// rsi shrinks the window when the series is shorter than the period; fewer
// than two closes report the neutral 50.
func rsi(values []float64, period int) float64 {
	if len(values) < 2 {
		return 50
	}
	deltas := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		deltas = append(deltas, values[i]-values[i-1])
	}
	if len(deltas) < period {
		period = len(deltas)
	}
	if period < 1 {
		period = 1
	}
	gains := 0.0
	losses := 0.0
	for _, delta := range deltas[len(deltas)-period:] {
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// macd returns the MACD line, its signal and the histogram. The signal line
// is approximated from a short constant series, so the histogram stays near
// zero; the line itself carries the trend information.
func macd(values []float64) (line, signal, hist float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}
	line = ema(values, 12) - ema(values, 26)
	length := len(values) / 10
	if length < 9 {
		length = 9
	}
	if length > 20 {
		length = 20
	}
	synthetic := make([]float64, length)
	for i := range synthetic {
		synthetic[i] = line
	}
	signal = ema(synthetic, 9)
	return line, signal, line - signal
}

// signalFromIndicators scores trend and momentum agreement: 3+ of the checks
// passing reads BUY, 1 or fewer SELL.
func signalFromIndicators(lastClose float64, indicators map[string]float64) string {
	score := 0
	if lastClose > indicators["sma20"] {
		score++
	}
	if indicators["sma20"] > indicators["sma50"] {
		score++
	}
	if indicators["rsi14"] >= 55 && indicators["rsi14"] <= 75 {
		score++
	}
	if indicators["macdHist"] > 0 {
		score++
	}
	if indicators["rsi14"] >= 80 {
		score--
	}
	if score >= 3 {
		return "BUY"
	}
	if score <= 1 {
		return "SELL"
	}
	return "HOLD"
}

// tradingViewSymbol prefixes GPW for Polish listings and bare tickers; this
// is a Warsaw-first installation.
func tradingViewSymbol(ticker string) string {
	text := strings.ToUpper(strings.TrimSpace(ticker))
	if text == "" {
		return "GPW:WIG20"
	}
	if strings.HasSuffix(text, ".PL") || strings.HasSuffix(text, ".WA") {
		return "GPW:" + strings.SplitN(text, ".", 2)[0]
	}
	if strings.HasSuffix(text, ".US") {
		return "NASDAQ:" + strings.SplitN(text, ".", 2)[0]
	}
	if strings.Contains(text, ".") {
		return text
	}
	return "GPW:" + text
}

func maxDrawdownPct(closes []float64) float64 {
	peak := math.Inf(-1)
	worst := 0.0
	for _, close := range closes {
		if close > peak {
			peak = close
		}
		if peak <= 0 {
			continue
		}
		if dd := (close - peak) / peak * 100; dd < worst {
			worst = dd
		}
	}
	return worst
}

// parseTagMap reads key=value (or key: value) asset tags into a folded-key
// lookup; tags without a separator are ignored.
func parseTagMap(tags models.Tags) map[string]string {
	out := make(map[string]string, len(tags))
	for _, raw := range tags {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		var key, value string
		var found bool
		if key, value, found = strings.Cut(text, "="); !found {
			if key, value, found = strings.Cut(text, ":"); !found {
				continue
			}
		}
		out[utils.Fold(key)] = strings.TrimSpace(value)
	}
	return out
}

func tagValue(tagMap map[string]string, keys ...string) string {
	for _, key := range keys {
		if value := tagMap[utils.Fold(key)]; value != "" {
			return value
		}
	}
	return ""
}

// isoDate accepts YYYY-MM-DD as-is and rearranges DD.MM.YYYY; anything else
// yields the empty string.
func isoDate(text string) string {
	text = strings.TrimSpace(text)
	if len(text) != 10 {
		return ""
	}
	if _, err := time.Parse("2006-01-02", text); err == nil {
		return text
	}
	if parsed, err := time.Parse("02.01.2006", text); err == nil {
		return parsed.Format("2006-01-02")
	}
	return ""
}

// yearsTo measures today-to-date in 365.25-day years; past or unparseable
// dates yield 0.
func yearsTo(dateISO string) float64 {
	if dateISO == "" {
		return 0
	}
	maturity, err := time.Parse("2006-01-02", dateISO)
	if err != nil {
		return 0
	}
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := maturity.Sub(today).Hours() / 24
	if days <= 0 {
		return 0
	}
	return days / 365.25
}

func isBondAsset(asset models.Asset) bool {
	kind := utils.Fold(asset.Type)
	if strings.Contains(kind, "oblig") || strings.Contains(kind, "bond") {
		return true
	}
	joined := utils.Fold(strings.Join(asset.Tags, " "))
	return strings.Contains(joined, "oblig") || strings.Contains(joined, "bond") ||
		strings.Contains(joined, "catalyst")
}

func isFundAsset(asset models.Asset) bool {
	kind := utils.Fold(asset.Type)
	if strings.Contains(kind, "fund") || strings.Contains(kind, "etf") {
		return true
	}
	joined := utils.Fold(strings.Join(asset.Tags, " "))
	return strings.Contains(joined, "fundusz") || strings.Contains(joined, "fund") ||
		strings.Contains(joined, "etf")
}
