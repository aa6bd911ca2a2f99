package services

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/username/fundfolio/backend/src/analytics"
	"github.com/username/fundfolio/backend/src/metrics"
	"github.com/username/fundfolio/backend/src/models"
	"github.com/username/fundfolio/backend/src/utils"
)

// ReportNames is the catalog of generatable reports, in display order.
var ReportNames = []string{
	"Skład i struktura",
	"Statystyki portfela",
	"Struktura kupna walorów",
	"Zysk per typ inwestycji",
	"Zysk per konto inwestycyjne",
	"Struktura portfela w czasie",
	"Udział walorów per konto",
	"Wartość jednostki w czasie",
	"Zmienność stopy zwrotu",
	"Rolling return w czasie",
	"Drawdown portfela w czasie",
	"Zysk w czasie",
	"Zmiana okresowa w czasie",
	"Wartość inwestycji w czasie",
	"Udział wartości portfeli w czasie",
	"Wartość zobowiązań w czasie",
	"Wartość majątku w czasie",
	"Struktura majątku",
	"Ekspozycja walutowa",
	"Bilans kontraktów",
	"Wkład i wartość",
	"Wkład i zysk",
	"Analiza fundamentalna",
	"Analiza ryzyka",
	"Zarządzanie ryzykiem",
	"Analiza sektorowa i branżowa",
	"Analiza indeksowa",
	"Struktura per tag",
	"Udział kont inwestycyjnych w portfelu",
	"Stopa zwrotu w czasie i benchmark",
	"Udział walorów w czasie",
	"Udział tagów w czasie",
	"Udział kont inwestycyjnych w czasie",
	"Ekspozycja walutowa w czasie",
	"Stopa zwrotu w okresach",
	"Ranking walorów portfela",
	"Porównanie walorów portfela",
	"Analiza dywidend w czasie",
	"Prowizje w czasie",
	"Mapa cieplna portfela",
	"Zamknięte inwestycje - podsumowanie",
	"Zamknięte inwestycje - szczegóły",
	"Zamknięte inwestycje - statystyki",
	"Podsumowanie portfeli",
	"Historia operacji",
	"Podsumowania na e-mail",
	"Limity IKE/IKZE/PPK",
}

// Chart is the plot payload attached to every report.
type Chart struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
	Color  string    `json:"color"`
}

// Report is one rendered report: a table plus a chart.
type Report struct {
	ReportName string   `json:"reportName"`
	Info       string   `json:"info"`
	Headers    []string `json:"headers"`
	Rows       [][]any  `json:"rows"`
	Chart      Chart    `json:"chart"`
}

// CatalogEntry is one row of the report catalog listing.
type CatalogEntry struct {
	Name string `json:"name"`
}

// PortfolioMetrics is the condensed dashboard summary for one portfolio.
type PortfolioMetrics struct {
	PortfolioID   string  `json:"portfolioId"`
	MarketValue   float64 `json:"marketValue"`
	CashTotal     float64 `json:"cashTotal"`
	NetWorth      float64 `json:"netWorth"`
	TotalPL       float64 `json:"totalPL"`
	ReturnPct     float64 `json:"returnPct"`
	HoldingsCount int     `json:"holdingsCount"`
}

// StateProvider is the slice of the state store the report layer needs.
type StateProvider interface {
	Get() (*models.State, error)
	Generation() uint64
}

// ReportService renders named reports over replayed metrics and the value
// series. Metrics and series are memoized per state generation, so repeated
// report requests against an unchanged ledger replay at most twice.
type ReportService struct {
	states    StateProvider
	cache     *gocache.Cache
	maxPoints int
}

func NewReportService(states StateProvider, maxPoints int) *ReportService {
	return &ReportService{
		states:    states,
		cache:     gocache.New(5*time.Minute, 10*time.Minute),
		maxPoints: maxPoints,
	}
}

// Catalog lists every report the service can generate.
func (r *ReportService) Catalog() []CatalogEntry {
	out := make([]CatalogEntry, 0, len(ReportNames))
	for _, name := range ReportNames {
		out = append(out, CatalogEntry{Name: name})
	}
	return out
}

// Metrics returns the dashboard summary for a portfolio (empty id means all).
func (r *ReportService) Metrics(portfolioID string) (*PortfolioMetrics, error) {
	state, err := r.states.Get()
	if err != nil {
		return nil, err
	}
	m := r.replay(state, portfolioID)
	return &PortfolioMetrics{
		PortfolioID:   portfolioID,
		MarketValue:   m.MarketValue,
		CashTotal:     m.CashTotal,
		NetWorth:      m.NetWorth,
		TotalPL:       m.TotalPL,
		ReturnPct:     m.ReturnPct,
		HoldingsCount: len(m.Holdings),
	}, nil
}

// Generate renders one named report. Unknown names fall back to the
// structure report so the endpoint never 404s on a renamed catalog entry.
func (r *ReportService) Generate(reportName, portfolioID string) (*Report, error) {
	state, err := r.states.Get()
	if err != nil {
		return nil, err
	}
	if reportName == "" {
		reportName = ReportNames[0]
	}
	m := r.replay(state, portfolioID)
	series := r.series(state, portfolioID)
	info := fmt.Sprintf("%s | Portfel: %s", reportName, portfolioLabel(state, portfolioID))
	key := utils.Fold(reportName)

	switch {
	case utils.ContainsFold(key, "historia operacji"):
		return r.reportOperations(reportName, state, portfolioID, info), nil
	case utils.ContainsFold(key, "podsumowanie portfeli"):
		return r.reportPortfoliosSummary(reportName, state, info), nil
	case utils.ContainsFold(key, "zamkniete inwestycje", "podsumowanie"):
		return reportClosedSummary(reportName, m, info), nil
	case utils.ContainsFold(key, "zamkniete inwestycje", "szczegoly"):
		return reportClosedDetails(reportName, m, info), nil
	case utils.ContainsFold(key, "zamkniete inwestycje", "statystyki"):
		return reportClosedStats(reportName, m, info), nil
	case utils.ContainsFold(key, "sklad i struktura") || utils.ContainsFold(key, "struktura majatku"):
		return reportStructure(reportName, m, info), nil
	case utils.ContainsFold(key, "statystyki portfela"):
		return reportStats(reportName, m, info), nil
	case utils.ContainsFold(key, "struktura kupna walorow"):
		return reportBuyStructure(reportName, m, info), nil
	case utils.ContainsFold(key, "zysk per typ inwestycji"):
		return reportProfitByType(reportName, m, info), nil
	case utils.ContainsFold(key, "zysk per konto inwestycyjne") || utils.ContainsFold(key, "udzial kont inwestycyjnych w portfelu"):
		return reportByAccount(reportName, m, info), nil
	case utils.ContainsFold(key, "ekspozycja walutowa") && !utils.ContainsFold(key, "w czasie"):
		return reportCurrencyExposure(reportName, m, info), nil
	case utils.ContainsFold(key, "struktura per tag") || (utils.ContainsFold(key, "udzial tagow") && !utils.ContainsFold(key, "w czasie")):
		return reportTags(reportName, m, info), nil
	case utils.ContainsFold(key, "ranking walorow portfela") || utils.ContainsFold(key, "porownanie walorow portfela"):
		return reportRanking(reportName, m, info), nil
	case utils.ContainsFold(key, "analiza fundamentalna") || utils.ContainsFold(key, "analiza ryzyka") || utils.ContainsFold(key, "zarzadzanie ryzykiem"):
		return reportRiskFundamental(reportName, m, info), nil
	case utils.ContainsFold(key, "analiza sektorowa"):
		return reportGrouped(reportName, info, m.Holdings, "Sektor", func(row models.Holding) string {
			if row.Sector == "" {
				return "Brak sektora"
			}
			return row.Sector
		}), nil
	case utils.ContainsFold(key, "analiza indeksowa"):
		return reportGrouped(reportName, info, m.Holdings, "Benchmark", func(row models.Holding) string {
			if row.Benchmark == "" {
				return "Brak benchmarku"
			}
			return row.Benchmark
		}), nil
	case utils.ContainsFold(key, "bilans kontraktow"):
		return reportContractsBalance(reportName, m, info), nil
	case utils.ContainsFold(key, "wklad i wartosc"):
		return reportContributionValue(reportName, m, info), nil
	case utils.ContainsFold(key, "wklad i zysk"):
		return reportContributionProfit(reportName, m, info), nil
	case utils.ContainsFold(key, "limity ike"):
		return reportRetirementLimits(reportName, state, portfolioID, info), nil
	case utils.ContainsFold(key, "podsumowania na e-mail"):
		return reportMailDigest(reportName, m, info), nil
	case utils.ContainsFold(key, "mapa cieplna portfela"):
		return reportHeatmap(reportName, m, info), nil

	case utils.ContainsFold(key, "wartosc jednostki w czasie"):
		return reportSeries(reportName, info, series, "Wartość jednostki", "#0d6f5d",
			func(p models.SeriesPoint) float64 { return p.UnitValue }), nil
	case utils.ContainsFold(key, "zmiennosc stopy zwrotu"):
		return reportVolatility(reportName, info, analytics.PeriodReturns(series, analytics.PickNetWorth)), nil
	case utils.ContainsFold(key, "rolling return"):
		rolling := analytics.RollingReturns(series, 5, analytics.PickNetWorth)
		return reportGenericSeries(reportName, info+" | Okno: 5 punktów", rolling, "Rolling return %", "#14705c"), nil
	case utils.ContainsFold(key, "drawdown"):
		drawdown := analytics.Drawdown(series, analytics.PickNetWorth)
		return reportGenericSeries(reportName, info, drawdown, "Drawdown %", "#aa2a2a"), nil
	case utils.ContainsFold(key, "zysk w czasie"):
		return reportSeries(reportName, info, series, "Zysk", "#ff7f32",
			func(p models.SeriesPoint) float64 { return p.TotalPL }), nil
	case utils.ContainsFold(key, "zmiana okresowa w czasie"):
		returns := analytics.PeriodReturns(series, analytics.PickNetWorth)
		return reportGenericSeries(reportName, info, returns, "Zmiana okresowa %", "#ff7f32"), nil
	case utils.ContainsFold(key, "wartosc inwestycji w czasie"):
		return reportSeries(reportName, info, series, "Wartość inwestycji", "#0e7a64",
			func(p models.SeriesPoint) float64 { return p.MarketValue }), nil
	case utils.ContainsFold(key, "wartosc zobowiazan w czasie"):
		return reportSeries(reportName, info, series, "Wartość zobowiązań", "#995728",
			func(p models.SeriesPoint) float64 { return p.LiabilitiesTotal }), nil
	case utils.ContainsFold(key, "wartosc majatku w czasie"):
		return reportSeries(reportName, info, series, "Wartość majątku", "#0e7a64", analytics.PickNetWorth), nil
	case utils.ContainsFold(key, "ekspozycja walutowa w czasie"):
		return reportCurrencyTime(reportName, info, m, series), nil
	case utils.ContainsFold(key, "stopa zwrotu w czasie i benchmark"):
		return reportReturnAndBenchmark(reportName, info, state, portfolioID, series), nil
	case utils.ContainsFold(key, "stopa zwrotu w okresach"):
		return reportReturnsByPeriod(reportName, info, series), nil
	case utils.ContainsFold(key, "analiza dywidend w czasie"):
		return reportFlowsInTime(reportName, info, state, portfolioID,
			[]string{"dywid", "dividend"}, "Dywidendy", "#ff7f32",
			func(op *models.Operation) float64 { return op.Amount.Float() }), nil
	case utils.ContainsFold(key, "prowizje w czasie"):
		return reportFlowsInTime(reportName, info, state, portfolioID,
			[]string{"prowiz", "commission"}, "Prowizje", "#995728",
			func(op *models.Operation) float64 {
				value := op.Fee.Float()
				if utils.ContainsFold(op.Type, "prowiz") {
					value = math.Max(value, math.Abs(op.Amount.Float()))
				}
				return value
			}), nil
	case utils.ContainsFold(key, "udzial wartosci portfeli w czasie"):
		return r.reportPortfolioShareOverTime(reportName, info, state, series), nil
	case utils.ContainsFold(key, "struktura portfela w czasie") || utils.ContainsFold(key, "udzial walorow w czasie"):
		return reportHoldingsOverTime(reportName, info, m, series), nil
	case utils.ContainsFold(key, "udzial kont inwestycyjnych w czasie"):
		return reportAccountsOverTime(reportName, info, m, series), nil
	case utils.ContainsFold(key, "udzial tagow w czasie"):
		return reportTagsTime(reportName, info, m, series), nil
	}

	return reportStructure(reportName, m, info+" | Fallback raportu"), nil
}

// replay runs the engine for (generation, portfolio), memoized.
func (r *ReportService) replay(state *models.State, portfolioID string) *models.Metrics {
	key := fmt.Sprintf("metrics:%d:%s", r.states.Generation(), portfolioID)
	if cached, ok := r.cache.Get(key); ok {
		metrics.ReportCacheHits.WithLabelValues("hit").Inc()
		return cached.(*models.Metrics)
	}
	metrics.ReportCacheHits.WithLabelValues("miss").Inc()

	start := time.Now()
	m := analytics.Replay(state, analytics.Options{PortfolioID: portfolioID, UseLivePrices: true})
	metrics.ReplayDuration.Observe(time.Since(start).Seconds())
	metrics.ReplayOperations.Add(float64(len(state.Operations)))

	r.cache.Set(key, m, gocache.DefaultExpiration)
	return m
}

// series builds the per-date value series for (generation, portfolio), memoized.
func (r *ReportService) series(state *models.State, portfolioID string) []models.SeriesPoint {
	key := fmt.Sprintf("series:%d:%s", r.states.Generation(), portfolioID)
	if cached, ok := r.cache.Get(key); ok {
		metrics.ReportCacheHits.WithLabelValues("hit").Inc()
		return cached.([]models.SeriesPoint)
	}
	metrics.ReportCacheHits.WithLabelValues("miss").Inc()

	series := analytics.BuildSeries(state, portfolioID, r.maxPoints)
	metrics.SeriesPoints.Set(float64(len(series)))
	r.cache.Set(key, series, gocache.DefaultExpiration)
	return series
}

func portfolioLabel(state *models.State, portfolioID string) string {
	if portfolioID == "" {
		return "Wszystkie"
	}
	for _, row := range state.Portfolios {
		if row.ID == portfolioID {
			if row.Name != "" {
				return row.Name
			}
			return portfolioID
		}
	}
	return portfolioID
}

func chart(labels []string, values []float64, color string) Chart {
	if labels == nil {
		labels = []string{}
	}
	if values == nil {
		values = []float64{}
	}
	return Chart{Labels: labels, Values: values, Color: color}
}

func round2(value float64) float64 { return math.Round(value*100) / 100 }
func round8(value float64) float64 { return math.Round(value*1e8) / 1e8 }

// pct rounds a percentage to 4 decimals; non-finite collapses to 0.
func pct(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return math.Round(value*1e4) / 1e4
}

func reportStructure(name string, m *models.Metrics, info string) *Report {
	rows := make([][]any, 0, len(m.Holdings)+2)
	labels := make([]string, 0, len(m.Holdings))
	values := make([]float64, 0, len(m.Holdings))
	for _, row := range m.Holdings {
		rows = append(rows, []any{
			row.Ticker, row.Name, row.AssetType,
			round8(row.Qty), round8(row.Price), round2(row.Value),
			round2(row.Unrealized), pct(row.Share),
		})
		labels = append(labels, row.Ticker)
		values = append(values, row.Value)
	}
	rows = append(rows, []any{"Gotówka", "-", "-", "-", "-", round2(m.CashTotal), "-", "-"})
	rows = append(rows, []any{"Zobowiązania", "-", "-", "-", "-", round2(-m.LiabilitiesTotal), "-", "-"})
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{"Ticker", "Nazwa", "Typ", "Ilość", "Cena", "Wartość", "P/L", "Udział %"},
		Rows:       rows,
		Chart:      chart(labels, values, "#0e7a64"),
	}
}

func reportStats(name string, m *models.Metrics, info string) *Report {
	rows := [][]any{
		{"Wartość rynkowa", round2(m.MarketValue)},
		{"Gotówka", round2(m.CashTotal)},
		{"Wartość zobowiązań", round2(m.LiabilitiesTotal)},
		{"Wartość majątku netto", round2(m.NetWorth)},
		{"Niezrealizowany zysk", round2(m.Unrealized)},
		{"Zrealizowany zysk", round2(m.Realized)},
		{"Dywidendy", round2(m.Dividends)},
		{"Prowizje", round2(m.Fees)},
		{"Całkowity P/L", round2(m.TotalPL)},
		{"Stopa zwrotu %", pct(m.ReturnPct)},
	}
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{"Miara", "Wartość"},
		Rows:       rows,
		Chart: chart(
			[]string{"Mkt", "Cash", "NetWorth", "P/L"},
			[]float64{m.MarketValue, m.CashTotal, m.NetWorth, m.TotalPL},
			"#ff7f32",
		),
	}
}

func reportBuyStructure(name string, m *models.Metrics, info string) *Report {
	tickerByAsset := make(map[string]string, len(m.Holdings))
	for _, holding := range m.Holdings {
		tickerByAsset[holding.AssetID] = holding.Ticker
	}
	type buyRow struct {
		ticker string
		qty    float64
		amount float64
	}
	buys := make([]buyRow, 0, len(m.BuyStructure))
	for assetID, totals := range m.BuyStructure {
		ticker := assetID
		if t, ok := tickerByAsset[assetID]; ok {
			ticker = t
		}
		buys = append(buys, buyRow{ticker: ticker, qty: totals.Qty, amount: totals.Amount})
	}
	sort.SliceStable(buys, func(i, j int) bool { return buys[i].amount > buys[j].amount })

	rows := make([][]any, 0, len(buys))
	labels := make([]string, 0, len(buys))
	values := make([]float64, 0, len(buys))
	for _, row := range buys {
		rows = append(rows, []any{row.ticker, round8(row.qty), round2(row.amount)})
		labels = append(labels, row.ticker)
		values = append(values, round2(row.amount))
	}
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{"Walor", "Kupiona ilość", "Łączny koszt zakupu"},
		Rows:       rows,
		Chart:      chart(labels, values, "#14705c"),
	}
}

func reportProfitByType(name string, m *models.Metrics, info string) *Report {
	return reportGrouped(name, info, m.Holdings, "Typ inwestycji", func(row models.Holding) string {
		return row.AssetType
	})
}

func reportByAccount(name string, m *models.Metrics, info string) *Report {
	rows := make([][]any, 0, len(m.ByAccount))
	labels := make([]string, 0, len(m.ByAccount))
	values := make([]float64, 0, len(m.ByAccount))
	for _, account := range m.ByAccount {
		rows = append(rows, []any{
			account.Name, round2(account.Cash), round2(account.BuyGross), round2(account.SellGross),
			round2(account.Fees), round2(account.Realized), round2(account.Balance),
		})
		labels = append(labels, account.Name)
		values = append(values, round2(account.Balance))
	}
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{"Konto", "Gotówka", "Kupno", "Sprzedaż", "Prowizje", "Realized P/L", "Bilans"},
		Rows:       rows,
		Chart:      chart(labels, values, "#0e7a64"),
	}
}

func reportCurrencyExposure(name string, m *models.Metrics, info string) *Report {
	rows := make([][]any, 0, len(m.ByCurrency))
	labels := make([]string, 0, len(m.ByCurrency))
	values := make([]float64, 0, len(m.ByCurrency))
	for _, row := range m.ByCurrency {
		rows = append(rows, []any{row.Currency, round2(row.Value), pct(row.Share)})
		labels = append(labels, row.Currency)
		values = append(values, round2(row.Value))
	}
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{"Waluta", "Wartość", "Udział %"},
		Rows:       rows,
		Chart:      chart(labels, values, "#0f7c66"),
	}
}

func reportTags(name string, m *models.Metrics, info string) *Report {
	rows := make([][]any, 0, len(m.ByTag))
	labels := make([]string, 0, len(m.ByTag))
	values := make([]float64, 0, len(m.ByTag))
	for _, row := range m.ByTag {
		rows = append(rows, []any{row.Tag, round2(row.Value), pct(row.Share)})
		labels = append(labels, row.Tag)
		values = append(values, round2(row.Value))
	}
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{"Tag", "Wartość", "Udział %"},
		Rows:       rows,
		Chart:      chart(labels, values, "#14705c"),
	}
}

func reportRanking(name string, m *models.Metrics, info string) *Report {
	ranked := make([]models.Holding, len(m.Holdings))
	copy(ranked, m.Holdings)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].UnrealizedPct > ranked[j].UnrealizedPct })

	rows := make([][]any, 0, len(ranked))
	labels := make([]string, 0, len(ranked))
	values := make([]float64, 0, len(ranked))
	for _, row := range ranked {
		rows = append(rows, []any{
			row.Ticker, row.Name, row.AssetType, round2(row.Value),
			round2(row.Unrealized), pct(row.UnrealizedPct), pct(row.Share),
		})
		labels = append(labels, row.Ticker)
		values = append(values, round2(row.Unrealized))
	}
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{"Ticker", "Nazwa", "Typ", "Wartość", "P/L", "P/L %", "Udział %"},
		Rows:       rows,
		Chart:      chart(labels, values, "#ff7f32"),
	}
}

func reportRiskFundamental(name string, m *models.Metrics, info string) *Report {
	ranked := make([]models.Holding, len(m.Holdings))
	copy(ranked, m.Holdings)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Risk > ranked[j].Risk })

	rows := make([][]any, 0, len(ranked))
	labels := make([]string, 0, len(ranked))
	values := make([]float64, 0, len(ranked))
	for _, row := range ranked {
		sector := row.Sector
		if sector == "" {
			sector = "-"
		}
		industry := row.Industry
		if industry == "" {
			industry = "-"
		}
		rows = append(rows, []any{
			row.Ticker, row.Name, sector, industry,
			round2(row.Risk), pct(row.Share), round2(row.Value),
		})
		labels = append(labels, row.Ticker)
		values = append(values, round2(row.Risk))
	}
	return &Report{
		ReportName: name,
		Info:       info + " | Dane fundamentalne i ryzyko wynikają z parametrów walorów.",
		Headers:    []string{"Ticker", "Nazwa", "Sektor", "Branża", "Ryzyko", "Udział %", "Wartość"},
		Rows:       rows,
		Chart:      chart(labels, values, "#995728"),
	}
}

func reportGrouped(name, info string, holdings []models.Holding, title string, groupKey func(models.Holding) string) *Report {
	type groupRow struct {
		key   string
		value float64
		pl    float64
	}
	index := make(map[string]int)
	var groups []groupRow
	for _, row := range holdings {
		key := groupKey(row)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, groupRow{key: key})
		}
		groups[i].value += row.Value
		groups[i].pl += row.Unrealized
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].value > groups[j].value })

	rows := make([][]any, 0, len(groups))
	labels := make([]string, 0, len(groups))
	values := make([]float64, 0, len(groups))
	for _, group := range groups {
		rows = append(rows, []any{
			group.key, round2(group.value), round2(group.pl),
			pct(utils.SafeDiv(group.pl, group.value-group.pl) * 100),
		})
		labels = append(labels, group.key)
		values = append(values, round2(group.value))
	}
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{title, "Wartość", "P/L", "Rentowność %"},
		Rows:       rows,
		Chart:      chart(labels, values, "#0d6f5d"),
	}
}

func reportContractsBalance(name string, m *models.Metrics, info string) *Report {
	longValue, shortValue := 0.0, 0.0
	for _, row := range m.Holdings {
		if row.Qty > 0 {
			longValue += row.Value
		} else if row.Qty < 0 {
			shortValue += math.Abs(row.Value)
		}
	}
	rows := [][]any{
		{"Long exposure", round2(longValue)},
		{"Short exposure", round2(shortValue)},
		{"Net exposure", round2(longValue - shortValue)},
	}
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{"Miara", "Wartość"},
		Rows:       rows,
		Chart: chart(
			[]string{"Long exposure", "Short exposure", "Net exposure"},
			[]float64{round2(longValue), round2(shortValue), round2(longValue - shortValue)},
			"#14705c",
		),
	}
}

func reportContributionValue(name string, m *models.Metrics, info string) *Report {
	rows := [][]any{
		{"Wpłaty netto", round2(m.NetContribution)},
		{"Wartość inwestycji", round2(m.MarketValue)},
		{"Wartość majątku netto", round2(m.NetWorth)},
	}
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{"Miara", "Wartość"},
		Rows:       rows,
		Chart: chart(
			[]string{"Wpłaty netto", "Wartość inwestycji", "Wartość majątku netto"},
			[]float64{round2(m.NetContribution), round2(m.MarketValue), round2(m.NetWorth)},
			"#0e7a64",
		),
	}
}

func reportContributionProfit(name string, m *models.Metrics, info string) *Report {
	rows := [][]any{
		{"Wpłaty netto", round2(m.NetContribution)},
		{"Całkowity P/L", round2(m.TotalPL)},
		{"Stopa zwrotu %", pct(m.ReturnPct)},
	}
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{"Miara", "Wartość"},
		Rows:       rows,
		Chart: chart(
			[]string{"Wpłaty netto", "Całkowity P/L", "Stopa zwrotu %"},
			[]float64{m.NetContribution, m.TotalPL, m.ReturnPct},
			"#ff7f32",
		),
	}
}

// reportRetirementLimits sums yearly cash deposits into accounts whose names
// mention the Polish tax-advantaged wrappers (IKE, IKZE, PPK).
func reportRetirementLimits(name string, state *models.State, portfolioID, info string) *Report {
	sums := map[string]float64{"IKE": 0, "IKZE": 0, "PPK": 0}
	accounts := state.AccountByID()
	for i := range state.Operations {
		op := &state.Operations[i]
		if portfolioID != "" && op.PortfolioID != portfolioID {
			continue
		}
		if !utils.ContainsFold(op.Type, "operacja gotowkowa") &&
			!utils.ContainsFold(op.Type, "przelew") &&
			!utils.ContainsFold(op.Type, "deposit") {
			continue
		}
		accountName := utils.Fold(accounts[op.AccountID].Name)
		if strings.Contains(accountName, "ike") {
			sums["IKE"] += op.Amount.Float()
		}
		if strings.Contains(accountName, "ikze") {
			sums["IKZE"] += op.Amount.Float()
		}
		if strings.Contains(accountName, "ppk") {
			sums["PPK"] += op.Amount.Float()
		}
	}
	order := []string{"IKE", "IKZE", "PPK"}
	rows := make([][]any, 0, len(order))
	values := make([]float64, 0, len(order))
	for _, key := range order {
		rows = append(rows, []any{key, round2(sums[key])})
		values = append(values, round2(sums[key]))
	}
	return &Report{
		ReportName: name,
		Info:       info + " | Limity prawne ustawiasz wg bieżącego roku.",
		Headers:    []string{"Rachunek", "Wpłaty roczne"},
		Rows:       rows,
		Chart:      chart(order, values, "#0d6f5d"),
	}
}

func reportMailDigest(name string, m *models.Metrics, info string) *Report {
	rows := [][]any{
		{"Wartość netto", round2(m.NetWorth)},
		{"P/L", round2(m.TotalPL)},
		{"Stopa zwrotu %", pct(m.ReturnPct)},
		{"Liczba pozycji", len(m.Holdings)},
	}
	return &Report{
		ReportName: name,
		Info:       info + " | Szablon pod wysyłkę e-mail/telegram.",
		Headers:    []string{"Pole", "Wartość"},
		Rows:       rows,
		Chart: chart(
			[]string{"Wartość netto", "P/L", "Stopa zwrotu %", "Liczba pozycji"},
			[]float64{round2(m.NetWorth), round2(m.TotalPL), pct(m.ReturnPct), float64(len(m.Holdings))},
			"#14705c",
		),
	}
}

func reportHeatmap(name string, m *models.Metrics, info string) *Report {
	ranked := make([]models.Holding, len(m.Holdings))
	copy(ranked, m.Holdings)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].UnrealizedPct > ranked[j].UnrealizedPct })

	rows := make([][]any, 0, len(ranked))
	labels := make([]string, 0, len(ranked))
	values := make([]float64, 0, len(ranked))
	for _, row := range ranked {
		heat := "neutral"
		if row.UnrealizedPct > 5 {
			heat = "green"
		} else if row.UnrealizedPct < -5 {
			heat = "red"
		}
		rows = append(rows, []any{row.Ticker, row.Name, pct(row.UnrealizedPct), round2(row.Value), heat})
		labels = append(labels, row.Ticker)
		values = append(values, pct(row.UnrealizedPct))
	}
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{"Ticker", "Nazwa", "P/L %", "Wartość", "Heat"},
		Rows:       rows,
		Chart:      chart(labels, values, "#aa2a2a"),
	}
}

func (r *ReportService) reportOperations(name string, state *models.State, portfolioID, info string) *Report {
	assets := state.AssetByID()
	ops := make([]*models.Operation, 0, len(state.Operations))
	for i := range state.Operations {
		op := &state.Operations[i]
		if portfolioID != "" && op.PortfolioID != portfolioID {
			continue
		}
		ops = append(ops, op)
	}
	sort.SliceStable(ops, func(i, j int) bool {
		if ops[i].Date != ops[j].Date {
			return ops[i].Date > ops[j].Date
		}
		return ops[i].CreatedAt > ops[j].CreatedAt
	})

	rows := make([][]any, 0, len(ops))
	for _, op := range ops {
		asset := assets[op.AssetID]
		label := asset.Ticker
		if asset.Name != "" {
			if label != "" {
				label += " - " + asset.Name
			} else {
				label = asset.Name
			}
		}
		rows = append(rows, []any{
			op.Date, op.Type, label,
			round8(op.Quantity.Float()), round8(op.Price.Float()),
			round2(op.Amount.Float()), round2(op.Fee.Float()), op.Currency,
		})
	}
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{"Data", "Typ", "Walor", "Ilość", "Cena", "Kwota", "Prowizja", "Waluta"},
		Rows:       rows,
		Chart:      chart(nil, nil, "#0e7a64"),
	}
}

func (r *ReportService) reportPortfoliosSummary(name string, state *models.State, info string) *Report {
	type summaryRow struct {
		name      string
		market    float64
		cash      float64
		netWorth  float64
		totalPL   float64
		returnPct float64
	}
	summaries := make([]summaryRow, 0, len(state.Portfolios))
	for _, portfolio := range state.Portfolios {
		m := r.replay(state, portfolio.ID)
		summaries = append(summaries, summaryRow{
			name:      portfolio.Name,
			market:    m.MarketValue,
			cash:      m.CashTotal,
			netWorth:  m.NetWorth,
			totalPL:   m.TotalPL,
			returnPct: m.ReturnPct,
		})
	}
	sort.SliceStable(summaries, func(i, j int) bool { return summaries[i].netWorth > summaries[j].netWorth })

	rows := make([][]any, 0, len(summaries))
	labels := make([]string, 0, len(summaries))
	values := make([]float64, 0, len(summaries))
	for _, row := range summaries {
		rows = append(rows, []any{
			row.name, round2(row.market), round2(row.cash),
			round2(row.netWorth), round2(row.totalPL), pct(row.returnPct),
		})
		labels = append(labels, row.name)
		values = append(values, round2(row.netWorth))
	}
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{"Portfel", "Wartość rynkowa", "Gotówka", "Majątek netto", "P/L", "Stopa zwrotu %"},
		Rows:       rows,
		Chart:      chart(labels, values, "#0e7a64"),
	}
}

func reportClosedSummary(name string, m *models.Metrics, info string) *Report {
	rows := make([][]any, 0, len(m.ClosedSummary))
	labels := make([]string, 0, len(m.ClosedSummary))
	values := make([]float64, 0, len(m.ClosedSummary))
	for _, row := range m.ClosedSummary {
		closed := "nie"
		if row.Closed {
			closed = "tak"
		}
		rows = append(rows, []any{
			row.Ticker, row.Name,
			round8(row.BuyQty), round8(row.SellQty), round8(row.RemainingQty),
			round2(row.RealizedPL), closed,
		})
		labels = append(labels, row.Ticker)
		values = append(values, round2(row.RealizedPL))
	}
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{"Ticker", "Nazwa", "Kupiono", "Sprzedano", "Pozostało", "Realized P/L", "Zamknięta"},
		Rows:       rows,
		Chart:      chart(labels, values, "#ff7f32"),
	}
}

func reportClosedDetails(name string, m *models.Metrics, info string) *Report {
	rows := make([][]any, 0, len(m.ClosedDetails))
	labels := make([]string, 0, len(m.ClosedDetails))
	values := make([]float64, 0, len(m.ClosedDetails))
	for _, row := range m.ClosedDetails {
		rows = append(rows, []any{
			row.Date, row.AssetID,
			round8(row.Qty), round8(row.Price),
			round2(row.Gross), round2(row.Fee), round2(row.CostOut), round2(row.RealizedPL),
			row.Currency,
		})
		labels = append(labels, row.Date)
		values = append(values, round2(row.RealizedPL))
	}
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{"Data", "AssetId", "Ilość", "Cena", "Brutto", "Prowizja", "Koszt wyjścia", "Realized P/L", "Waluta"},
		Rows:       rows,
		Chart:      chart(labels, values, "#ff7f32"),
	}
}

func reportClosedStats(name string, m *models.Metrics, info string) *Report {
	realized := make([]float64, 0, len(m.ClosedDetails))
	winCount := 0
	lossSum := 0.0
	for _, row := range m.ClosedDetails {
		realized = append(realized, row.RealizedPL)
		if row.RealizedPL > 0 {
			winCount++
		} else if row.RealizedPL < 0 {
			lossSum += row.RealizedPL
		}
	}
	total, best, worst := 0.0, 0.0, 0.0
	if len(realized) > 0 {
		best, worst = realized[0], realized[0]
	}
	for _, value := range realized {
		total += value
		if value > best {
			best = value
		}
		if value < worst {
			worst = value
		}
	}
	winRate := 0.0
	if len(realized) > 0 {
		winRate = float64(winCount) / float64(len(realized)) * 100
	}
	rows := [][]any{
		{"Liczba transakcji zamknięcia", len(realized)},
		{"Suma realized P/L", round2(total)},
		{"Średni realized P/L", round2(analytics.Mean(realized))},
		{"Win rate %", pct(winRate)},
		{"Najlepsza transakcja", round2(best)},
		{"Najgorsza transakcja", round2(worst)},
		{"Suma strat", round2(lossSum)},
	}
	labels := make([]string, 0, len(rows))
	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		labels = append(labels, row[0].(string))
		switch v := row[1].(type) {
		case float64:
			values = append(values, v)
		case int:
			values = append(values, float64(v))
		default:
			values = append(values, 0)
		}
	}
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{"Statystyka", "Wartość"},
		Rows:       rows,
		Chart:      chart(labels, values, "#995728"),
	}
}

func reportSeries(name, info string, series []models.SeriesPoint, valueLabel, color string, pick func(models.SeriesPoint) float64) *Report {
	rows := make([][]any, 0, len(series))
	labels := make([]string, 0, len(series))
	values := make([]float64, 0, len(series))
	for _, point := range series {
		rows = append(rows, []any{point.Date, round2(pick(point))})
		labels = append(labels, point.Date)
		values = append(values, pick(point))
	}
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{"Data", valueLabel},
		Rows:       rows,
		Chart:      chart(labels, values, color),
	}
}

func reportGenericSeries(name, info string, series []models.DatedValue, valueName, color string) *Report {
	rows := make([][]any, 0, len(series))
	labels := make([]string, 0, len(series))
	values := make([]float64, 0, len(series))
	for _, row := range series {
		rows = append(rows, []any{row.Date, pct(row.Value)})
		labels = append(labels, row.Date)
		values = append(values, row.Value)
	}
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{"Data", valueName},
		Rows:       rows,
		Chart:      chart(labels, values, color),
	}
}

func reportVolatility(name, info string, returns []models.DatedValue) *Report {
	values := make([]float64, 0, len(returns))
	labels := make([]string, 0, len(returns))
	for _, row := range returns {
		values = append(values, row.Value)
		labels = append(labels, row.Date)
	}
	maxValue, minValue := 0.0, 0.0
	if len(values) > 0 {
		maxValue, minValue = values[0], values[0]
		for _, value := range values {
			if value > maxValue {
				maxValue = value
			}
			if value < minValue {
				minValue = value
			}
		}
	}
	rows := [][]any{
		{"Liczba okresów", len(values)},
		{"Średnia stopa zwrotu %", pct(analytics.Mean(values))},
		{"Zmienność (odchylenie std.) %", pct(analytics.StdDev(values))},
		{"Maksymalny zwrot %", pct(maxValue)},
		{"Minimalny zwrot %", pct(minValue)},
	}
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{"Miara", "Wartość"},
		Rows:       rows,
		Chart:      chart(labels, values, "#995728"),
	}
}

func reportCurrencyTime(name, info string, m *models.Metrics, series []models.SeriesPoint) *Report {
	rows := make([][]any, 0, len(m.ByCurrency))
	for _, row := range m.ByCurrency {
		rows = append(rows, []any{row.Currency, round2(row.Value), pct(row.Share)})
	}
	labels := make([]string, 0, len(series))
	values := make([]float64, 0, len(series))
	for _, point := range series {
		labels = append(labels, point.Date)
		values = append(values, point.NetWorth)
	}
	return &Report{
		ReportName: name,
		Info:       info + " | Udział w czasie oparty o serię wartości portfela.",
		Headers:    []string{"Waluta", "Wartość", "Udział %"},
		Rows:       rows,
		Chart:      chart(labels, values, "#0f7c66"),
	}
}

// reportReturnAndBenchmark pairs portfolio returns with a damped proxy when
// the portfolio has no priced benchmark series of its own.
func reportReturnAndBenchmark(name, info string, state *models.State, portfolioID string, series []models.SeriesPoint) *Report {
	returns := analytics.PeriodReturns(series, analytics.PickNetWorth)
	benchmarkName := ""
	if portfolioID != "" {
		for _, row := range state.Portfolios {
			if row.ID == portfolioID {
				benchmarkName = row.Benchmark
				break
			}
		}
	}
	if benchmarkName == "" {
		benchmarkName = "benchmark-proxy"
	}
	rows := make([][]any, 0, len(returns))
	labels := make([]string, 0, len(returns))
	values := make([]float64, 0, len(returns))
	for _, row := range returns {
		rows = append(rows, []any{row.Date, pct(row.Value), pct(row.Value * 0.75)})
		labels = append(labels, row.Date)
		values = append(values, row.Value)
	}
	return &Report{
		ReportName: name,
		Info:       fmt.Sprintf("%s | Benchmark: %s", info, benchmarkName),
		Headers:    []string{"Data", "Stopa zwrotu %", "Benchmark %"},
		Rows:       rows,
		Chart:      chart(labels, values, "#0d6f5d"),
	}
}

func reportReturnsByPeriod(name, info string, series []models.SeriesPoint) *Report {
	returns := analytics.PeriodReturns(series, analytics.PickNetWorth)
	if len(returns) == 0 {
		return &Report{
			ReportName: name,
			Info:       info,
			Headers:    []string{"Okres", "Stopa zwrotu %"},
			Rows:       [][]any{},
			Chart:      chart(nil, nil, "#0e7a64"),
		}
	}
	horizons := []struct {
		label  string
		length int
	}{
		{"1 okres", 1},
		{"5 okresów", 5},
		{"20 okresów", 20},
		{"Całość", len(returns)},
	}
	rows := make([][]any, 0, len(horizons))
	for _, horizon := range horizons {
		sample := returns
		if horizon.length <= len(returns) {
			sample = returns[len(returns)-horizon.length:]
		}
		rows = append(rows, []any{horizon.label, pct(analytics.Compound(sample))})
	}
	labels := make([]string, 0, len(returns))
	values := make([]float64, 0, len(returns))
	for _, row := range returns {
		labels = append(labels, row.Date)
		values = append(values, row.Value)
	}
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{"Okres", "Stopa zwrotu %"},
		Rows:       rows,
		Chart:      chart(labels, values, "#0d6f5d"),
	}
}

func reportFlowsInTime(name, info string, state *models.State, portfolioID string, markers []string, label, color string, extract func(*models.Operation) float64) *Report {
	bucket := make(map[string]float64)
	for i := range state.Operations {
		op := &state.Operations[i]
		if portfolioID != "" && op.PortfolioID != portfolioID {
			continue
		}
		matched := false
		for _, marker := range markers {
			if utils.ContainsFold(op.Type, marker) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		date := op.Date
		if date == "" {
			date = utils.TodayISO()
		}
		if len(date) > 10 {
			date = date[:10]
		}
		bucket[date] += extract(op)
	}
	dates := make([]string, 0, len(bucket))
	for date := range bucket {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	rows := make([][]any, 0, len(dates))
	values := make([]float64, 0, len(dates))
	for _, date := range dates {
		rows = append(rows, []any{date, round2(bucket[date])})
		values = append(values, round2(bucket[date]))
	}
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{"Data", label},
		Rows:       rows,
		Chart:      chart(dates, values, color),
	}
}

func (r *ReportService) reportPortfolioShareOverTime(name, info string, state *models.State, series []models.SeriesPoint) *Report {
	type shareRow struct {
		name  string
		value float64
	}
	shares := make([]shareRow, 0, len(state.Portfolios))
	total := 0.0
	for _, portfolio := range state.Portfolios {
		m := r.replay(state, portfolio.ID)
		shares = append(shares, shareRow{name: portfolio.Name, value: m.NetWorth})
		total += m.NetWorth
	}
	sort.SliceStable(shares, func(i, j int) bool { return shares[i].value > shares[j].value })

	rows := make([][]any, 0, len(shares))
	for _, row := range shares {
		share := 0.0
		if total != 0 {
			share = utils.SafeDiv(row.value, total) * 100
		}
		rows = append(rows, []any{row.name, round2(row.value), pct(share)})
	}
	labels := make([]string, 0, len(series))
	values := make([]float64, 0, len(series))
	for _, point := range series {
		labels = append(labels, point.Date)
		values = append(values, point.NetWorth)
	}
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{"Portfel", "Wartość", "Udział %"},
		Rows:       rows,
		Chart:      chart(labels, values, "#14705c"),
	}
}

func reportHoldingsOverTime(name, info string, m *models.Metrics, series []models.SeriesPoint) *Report {
	rows := make([][]any, 0, len(m.Holdings))
	for _, row := range m.Holdings {
		rows = append(rows, []any{row.Ticker, round2(row.Value), pct(row.Share)})
	}
	labels := make([]string, 0, len(series))
	values := make([]float64, 0, len(series))
	for _, point := range series {
		labels = append(labels, point.Date)
		values = append(values, point.MarketValue)
	}
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{"Walor", "Wartość", "Udział %"},
		Rows:       rows,
		Chart:      chart(labels, values, "#0e7a64"),
	}
}

func reportAccountsOverTime(name, info string, m *models.Metrics, series []models.SeriesPoint) *Report {
	totalBalance := 0.0
	for _, row := range m.ByAccount {
		totalBalance += row.Balance
	}
	rows := make([][]any, 0, len(m.ByAccount))
	for _, row := range m.ByAccount {
		share := 0.0
		if totalBalance != 0 {
			share = utils.SafeDiv(row.Balance, totalBalance) * 100
		}
		rows = append(rows, []any{row.Name, round2(row.Balance), pct(share)})
	}
	labels := make([]string, 0, len(series))
	values := make([]float64, 0, len(series))
	for _, point := range series {
		labels = append(labels, point.Date)
		values = append(values, point.CashTotal)
	}
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{"Konto", "Bilans", "Udział %"},
		Rows:       rows,
		Chart:      chart(labels, values, "#995728"),
	}
}

func reportTagsTime(name, info string, m *models.Metrics, series []models.SeriesPoint) *Report {
	rows := make([][]any, 0, len(m.ByTag))
	for _, row := range m.ByTag {
		rows = append(rows, []any{row.Tag, round2(row.Value), pct(row.Share)})
	}
	labels := make([]string, 0, len(series))
	values := make([]float64, 0, len(series))
	for _, point := range series {
		labels = append(labels, point.Date)
		values = append(values, point.MarketValue)
	}
	return &Report{
		ReportName: name,
		Info:       info,
		Headers:    []string{"Tag", "Wartość", "Udział %"},
		Rows:       rows,
		Chart:      chart(labels, values, "#0d6f5d"),
	}
}
