package services

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/username/fundfolio/backend/src/analytics"
	"github.com/username/fundfolio/backend/src/logger"
	"github.com/username/fundfolio/backend/src/metrics"
	"github.com/username/fundfolio/backend/src/models"
	"github.com/username/fundfolio/backend/src/utils"
)

// ScannerFilters narrows the asset scanner result set.
type ScannerFilters struct {
	MinScore    float64 `json:"minScore"`
	MaxRisk     float64 `json:"maxRisk"`
	Sector      string  `json:"sector"`
	MinPrice    float64 `json:"minPrice"`
	PortfolioID string  `json:"portfolioId"`
}

// Clamp applies the documented filter bounds: risk 1..10, price >= 0.
func (f ScannerFilters) Clamp() ScannerFilters {
	if f.MaxRisk == 0 {
		f.MaxRisk = 10
	}
	f.MaxRisk = math.Max(1, math.Min(10, f.MaxRisk))
	f.MinPrice = math.Max(0, f.MinPrice)
	f.Sector = strings.TrimSpace(f.Sector)
	f.PortfolioID = strings.TrimSpace(f.PortfolioID)
	return f
}

// ScannerItem is one scored asset of the scanner result.
type ScannerItem struct {
	Ticker        string  `json:"ticker"`
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	Price         float64 `json:"price"`
	Currency      string  `json:"currency"`
	Risk          float64 `json:"risk"`
	Sector        string  `json:"sector"`
	Industry      string  `json:"industry"`
	Share         float64 `json:"share"`
	PositionValue float64 `json:"positionValue"`
	UnrealizedPct float64 `json:"unrealizedPct"`
	Score         float64 `json:"score"`
	Signal        string  `json:"signal"`
	SignalReason  string  `json:"signalReason"`
}

// ScannerResult is the full scanner response.
type ScannerResult struct {
	Filters     ScannerFilters `json:"filters"`
	Items       []ScannerItem  `json:"items"`
	GeneratedAt string         `json:"generatedAt"`
}

// SignalRow is one per-holding trade signal.
type SignalRow struct {
	Ticker        string  `json:"ticker"`
	Name          string  `json:"name"`
	Signal        string  `json:"signal"`
	Confidence    float64 `json:"confidence"`
	Reason        string  `json:"reason"`
	Risk          float64 `json:"risk"`
	Share         float64 `json:"share"`
	UnrealizedPct float64 `json:"unrealizedPct"`
	PositionValue float64 `json:"positionValue"`
}

// SignalsResult is the full signals response.
type SignalsResult struct {
	PortfolioID string      `json:"portfolioId"`
	Signals     []SignalRow `json:"signals"`
	GeneratedAt string      `json:"generatedAt"`
}

// CalendarEvent is one upcoming event of the planning calendar.
type CalendarEvent struct {
	Date     string `json:"date"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Priority string `json:"priority"`
	Source   string `json:"source"`
	Details  string `json:"details"`
}

// CalendarResult is the full calendar response.
type CalendarResult struct {
	PortfolioID string          `json:"portfolioId"`
	Days        int             `json:"days"`
	Events      []CalendarEvent `json:"events"`
	GeneratedAt string          `json:"generatedAt"`
}

// Recommendation is one portfolio health advisory.
type Recommendation struct {
	Category string `json:"category"`
	Priority string `json:"priority"`
	Title    string `json:"title"`
	Action   string `json:"action"`
	Impact   string `json:"impact"`
}

// RecommendationsResult is the full recommendations response.
type RecommendationsResult struct {
	PortfolioID     string           `json:"portfolioId"`
	Recommendations []Recommendation `json:"recommendations"`
	GeneratedAt     string           `json:"generatedAt"`
}

// AlertRow is one evaluated alert within the workflow response.
type AlertRow struct {
	AlertID      string  `json:"alertId"`
	Ticker       string  `json:"ticker"`
	AssetName    string  `json:"assetName"`
	Direction    string  `json:"direction"`
	TargetPrice  float64 `json:"targetPrice"`
	CurrentPrice float64 `json:"currentPrice"`
	Currency     string  `json:"currency"`
	Status       string  `json:"status"`
	CheckedAt    string  `json:"checkedAt"`
}

// AlertAction is the suggested follow-up for a triggered alert.
type AlertAction struct {
	Title    string  `json:"title"`
	Priority string  `json:"priority"`
	Action   string  `json:"action"`
	DeltaPct float64 `json:"deltaPct"`
}

// AlertWorkflowSummary counts the evaluated alerts by outcome.
type AlertWorkflowSummary struct {
	TotalAlerts int `json:"totalAlerts"`
	Triggered   int `json:"triggered"`
	Waiting     int `json:"waiting"`
}

// AlertWorkflowResult is the full alert workflow response.
type AlertWorkflowResult struct {
	PortfolioID string               `json:"portfolioId"`
	Summary     AlertWorkflowSummary `json:"summary"`
	Triggered   []AlertRow           `json:"triggered"`
	Waiting     []AlertRow           `json:"waiting"`
	Actions     []AlertAction        `json:"actions"`
	History     []models.AlertEvent  `json:"history"`
	GeneratedAt string               `json:"generatedAt"`
}

// StateWriter extends StateProvider with the alert persistence the workflow
// needs to record trigger timestamps.
type StateWriter interface {
	StateProvider
	UpdateAlerts(alerts []models.Alert) error
}

// AlertLogger is the slice of the alert store the workflow writes to.
type AlertLogger interface {
	LogEvent(event models.AlertEvent) error
	ListEvents(limit int) ([]models.AlertEvent, error)
}

// ExpertService implements the analysis tools layered on top of replayed
// metrics: asset scanner, per-holding signals, planning calendar, portfolio
// recommendations and the price alert workflow.
type ExpertService struct {
	states StateWriter
	quotes QuoteStoreWriter
	alerts AlertLogger
}

func NewExpertService(states StateWriter, quotes QuoteStoreWriter, alerts AlertLogger) *ExpertService {
	return &ExpertService{states: states, quotes: quotes, alerts: alerts}
}

// Scanner scores every asset of the snapshot and filters the result.
func (e *ExpertService) Scanner(filters ScannerFilters) (*ScannerResult, error) {
	filters = filters.Clamp()
	state, err := e.states.Get()
	if err != nil {
		return nil, err
	}
	m := analytics.Replay(state, analytics.Options{PortfolioID: filters.PortfolioID, UseLivePrices: true})
	quoteMap := e.quoteMap(state)
	holdingsByAsset := make(map[string]models.Holding, len(m.Holdings))
	for _, holding := range m.Holdings {
		holdingsByAsset[holding.AssetID] = holding
	}

	items := []ScannerItem{}
	for _, asset := range state.Assets {
		ticker := strings.ToUpper(strings.TrimSpace(asset.Ticker))
		if ticker == "" {
			continue
		}
		price := asset.CurrentPrice.Float()
		currency := asset.Currency
		if quote, ok := quoteMap[ticker]; ok {
			price = quote.Price
			if quote.Currency != "" {
				currency = quote.Currency
			}
		}
		if currency == "" {
			currency = state.Meta.BaseCurrency
		}
		risk := asset.Risk.Float()
		if risk == 0 {
			risk = 5
		}
		holding := holdingsByAsset[asset.ID]

		score := scannerScore(price, risk, holding.Share, holding.UnrealizedPct)
		signal, reason := scannerSignal(score, risk, holding.UnrealizedPct, holding.Share)

		if score < filters.MinScore || risk > filters.MaxRisk || price < filters.MinPrice {
			continue
		}
		if filters.Sector != "" && !strings.Contains(utils.Fold(asset.Sector), utils.Fold(filters.Sector)) {
			continue
		}

		sector := asset.Sector
		if sector == "" {
			sector = "-"
		}
		industry := asset.Industry
		if industry == "" {
			industry = "-"
		}
		items = append(items, ScannerItem{
			Ticker:        ticker,
			Name:          asset.Name,
			Type:          asset.Type,
			Price:         price,
			Currency:      currency,
			Risk:          risk,
			Sector:        sector,
			Industry:      industry,
			Share:         holding.Share,
			PositionValue: holding.Value,
			UnrealizedPct: holding.UnrealizedPct,
			Score:         score,
			Signal:        signal,
			SignalReason:  reason,
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	return &ScannerResult{Filters: filters, Items: items, GeneratedAt: utils.NowISO()}, nil
}

// Signals derives one trade signal per open holding.
func (e *ExpertService) Signals(portfolioID string) (*SignalsResult, error) {
	state, err := e.states.Get()
	if err != nil {
		return nil, err
	}
	m := analytics.Replay(state, analytics.Options{PortfolioID: portfolioID, UseLivePrices: true})
	rows := []SignalRow{}
	for _, holding := range m.Holdings {
		signal, confidence, reason := signalForHolding(holding)
		rows = append(rows, SignalRow{
			Ticker:        holding.Ticker,
			Name:          holding.Name,
			Signal:        signal,
			Confidence:    confidence,
			Reason:        reason,
			Risk:          holding.Risk,
			Share:         holding.Share,
			UnrealizedPct: holding.UnrealizedPct,
			PositionValue: holding.Value,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Signal != rows[j].Signal {
			return rows[i].Signal < rows[j].Signal
		}
		return rows[i].Confidence > rows[j].Confidence
	})
	return &SignalsResult{PortfolioID: portfolioID, Signals: rows, GeneratedAt: utils.NowISO()}, nil
}

// Calendar lists upcoming liabilities, recurring operation occurrences and
// synthetic company events for held instruments within the horizon.
func (e *ExpertService) Calendar(days int, portfolioID string) (*CalendarResult, error) {
	state, err := e.states.Get()
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 60
	}
	if days > 365 {
		days = 365
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	end := today.AddDate(0, 0, days)

	events := []CalendarEvent{}
	for _, liability := range state.Liabilities {
		if strings.TrimSpace(liability.DueDate) == "" {
			continue
		}
		due, err := time.Parse("2006-01-02", utils.ParseDateISO(liability.DueDate))
		if err != nil || due.Before(today) || due.After(end) {
			continue
		}
		priority := "Średni"
		if due.Sub(today) <= 7*24*time.Hour {
			priority = "Wysoki"
		}
		name := liability.Name
		if name == "" {
			name = "Zobowiązanie"
		}
		events = append(events, CalendarEvent{
			Date:     due.Format("2006-01-02"),
			Type:     "Zobowiązanie",
			Title:    "Termin: " + name,
			Priority: priority,
			Source:   "liabilities",
			Details:  fmt.Sprintf("Kwota %.2f %s", liability.Amount.Float(), liability.Currency),
		})
	}

	for _, recurring := range state.RecurringOps {
		if portfolioID != "" && recurring.PortfolioID != portfolioID {
			continue
		}
		start, err := time.Parse("2006-01-02", utils.ParseDateISO(recurring.StartDate))
		if err != nil {
			continue
		}
		next := nextOccurrence(start, recurring.Frequency, today)
		if next.Before(today) || next.After(end) {
			continue
		}
		name := recurring.Name
		if name == "" {
			name = "Operacja"
		}
		events = append(events, CalendarEvent{
			Date:     next.Format("2006-01-02"),
			Type:     "Operacja cykliczna",
			Title:    fmt.Sprintf("%s (%s)", name, recurring.Type),
			Priority: "Średni",
			Source:   "recurring",
			Details:  fmt.Sprintf("Kwota %.2f", recurring.Amount.Float()),
		})
	}

	m := analytics.Replay(state, analytics.Options{PortfolioID: portfolioID, UseLivePrices: true})
	equityTypes := map[string]struct{}{"akcja": {}, "etf": {}, "fundusz": {}, "inny": {}}
	for _, holding := range m.Holdings {
		if _, ok := equityTypes[utils.Fold(holding.AssetType)]; !ok {
			continue
		}
		synthetic := []struct {
			offset   int
			label    string
			priority string
		}{
			{15, "Raport okresowy", "Niski"},
			{45, "Dywidenda (szacunek)", "Średni"},
		}
		for _, event := range synthetic {
			date := today.AddDate(0, 0, event.offset)
			if date.After(end) {
				continue
			}
			events = append(events, CalendarEvent{
				Date:     date.Format("2006-01-02"),
				Type:     "Kalendarium spółek",
				Title:    holding.Ticker + ": " + event.label,
				Priority: event.priority,
				Source:   "synthetic",
				Details:  "Wydarzenie wygenerowane automatycznie na bazie pozycji.",
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Date != events[j].Date {
			return events[i].Date < events[j].Date
		}
		return events[i].Priority < events[j].Priority
	})
	return &CalendarResult{PortfolioID: portfolioID, Days: days, Events: events, GeneratedAt: utils.NowISO()}, nil
}

// Recommendations runs the portfolio health checklist.
func (e *ExpertService) Recommendations(portfolioID string) (*RecommendationsResult, error) {
	state, err := e.states.Get()
	if err != nil {
		return nil, err
	}
	m := analytics.Replay(state, analytics.Options{PortfolioID: portfolioID, UseLivePrices: true})
	rows := []Recommendation{}

	if len(m.Holdings) == 0 {
		rows = append(rows, Recommendation{
			Category: "Portfel",
			Priority: "Wysoki",
			Title:    "Brak aktywnych pozycji",
			Action:   "Dodaj pierwsze pozycje lub importuj historię brokera.",
			Impact:   "Bez pozycji raporty ryzyka i sygnały AT są ograniczone.",
		})
	} else {
		top := m.Holdings[0]
		for _, holding := range m.Holdings[1:] {
			if holding.Share > top.Share {
				top = holding
			}
		}
		if top.Share > 35 {
			rows = append(rows, Recommendation{
				Category: "Dywersyfikacja",
				Priority: "Wysoki",
				Title:    fmt.Sprintf("Koncentracja na %s (%.1f%%)", top.Ticker, top.Share),
				Action:   "Rozważ obniżenie udziału do <25% i przeniesienie części środków.",
				Impact:   "Zmniejszenie ryzyka pojedynczej pozycji.",
			})
		}
	}

	cashRatio := 0.0
	if m.NetWorth != 0 {
		cashRatio = m.CashTotal / m.NetWorth * 100
	}
	if cashRatio > 30 {
		rows = append(rows, Recommendation{
			Category: "Alokacja",
			Priority: "Średni",
			Title:    fmt.Sprintf("Wysoki udział gotówki (%.1f%%)", cashRatio),
			Action:   "Rozważ stopniowe inwestowanie gotówki w kilku transzach.",
			Impact:   "Lepsze wykorzystanie kapitału i redukcja cash drag.",
		})
	}

	liabilitiesRatio := 0.0
	if m.NetWorth != 0 {
		liabilitiesRatio = m.LiabilitiesTotal / m.NetWorth * 100
	}
	if liabilitiesRatio > 40 {
		rows = append(rows, Recommendation{
			Category: "Dźwignia",
			Priority: "Wysoki",
			Title:    fmt.Sprintf("Wysokie zobowiązania względem majątku (%.1f%%)", liabilitiesRatio),
			Action:   "Rozważ redukcję zadłużenia lub zwiększenie bufora gotówkowego.",
			Impact:   "Niższe ryzyko płynności i obsługi zobowiązań.",
		})
	}

	avgRisk := 0.0
	for _, holding := range m.Holdings {
		avgRisk += holding.Risk * holding.Share
	}
	avgRisk /= 100
	if avgRisk >= 7 {
		rows = append(rows, Recommendation{
			Category: "Ryzyko",
			Priority: "Średni",
			Title:    fmt.Sprintf("Podwyższone ryzyko portfela (avg %.2f/10)", avgRisk),
			Action:   "Przesuń część pozycji do niższego ryzyka lub hedguj ekspozycję.",
			Impact:   "Mniejsza zmienność i drawdown.",
		})
	}

	if len(m.Holdings) > 0 && len(state.Alerts) == 0 {
		rows = append(rows, Recommendation{
			Category: "Workflow",
			Priority: "Średni",
			Title:    "Brak aktywnych alertów cenowych",
			Action:   "Dodaj alerty dla głównych pozycji i uruchamiaj workflow alertów.",
			Impact:   "Szybsza reakcja na zdarzenia rynkowe.",
		})
	}

	if len(rows) == 0 {
		rows = append(rows, Recommendation{
			Category: "Status",
			Priority: "Niski",
			Title:    "Brak krytycznych rekomendacji",
			Action:   "Kontynuuj monitoring i regularny przegląd struktury portfela.",
			Impact:   "Utrzymanie obecnej jakości zarządzania.",
		})
	}
	return &RecommendationsResult{PortfolioID: portfolioID, Recommendations: rows, GeneratedAt: utils.NowISO()}, nil
}

// RunAlertWorkflow evaluates every alert against the freshest known price,
// logs triggered ones and stamps lastTriggerAt on the stored alerts.
func (e *ExpertService) RunAlertWorkflow(portfolioID string) (*AlertWorkflowResult, error) {
	state, err := e.states.Get()
	if err != nil {
		return nil, err
	}
	assets := state.AssetByID()
	quoteMap := e.quoteMap(state)

	triggered := []AlertRow{}
	waiting := []AlertRow{}
	actions := []AlertAction{}
	updated := false

	alerts := make([]models.Alert, len(state.Alerts))
	copy(alerts, state.Alerts)
	for i := range alerts {
		alert := &alerts[i]
		asset, ok := assets[alert.AssetID]
		if !ok {
			continue
		}
		ticker := strings.ToUpper(strings.TrimSpace(asset.Ticker))
		price := asset.CurrentPrice.Float()
		currency := asset.Currency
		if quote, found := quoteMap[ticker]; found {
			price = quote.Price
			if quote.Currency != "" {
				currency = quote.Currency
			}
		}
		if currency == "" {
			currency = state.Meta.BaseCurrency
		}
		target := alert.TargetPrice.Float()
		direction := strings.ToLower(alert.Direction)
		if direction != "lte" {
			direction = "gte"
		}
		hit := price >= target
		if direction == "lte" {
			hit = price <= target
		}

		row := AlertRow{
			AlertID:      alert.ID,
			Ticker:       ticker,
			AssetName:    asset.Name,
			Direction:    direction,
			TargetPrice:  target,
			CurrentPrice: price,
			Currency:     currency,
			Status:       "WAITING",
			CheckedAt:    utils.NowISO(),
		}
		if !hit {
			waiting = append(waiting, row)
			continue
		}
		row.Status = "TRIGGERED"
		alert.LastTriggerAt = row.CheckedAt
		updated = true
		triggered = append(triggered, row)
		actions = append(actions, alertAction(row))
		metrics.AlertTriggersTotal.Inc()
		if err := e.alerts.LogEvent(models.AlertEvent{
			AlertID:      row.AlertID,
			AssetID:      asset.ID,
			Ticker:       ticker,
			Direction:    direction,
			TargetPrice:  target,
			CurrentPrice: price,
			Status:       "TRIGGERED",
			Message:      row.Status,
			EventTime:    row.CheckedAt,
		}); err != nil {
			logger.L.Error("Logging alert event failed", "alertId", row.AlertID, "error", err)
		}
	}

	if updated {
		if err := e.states.UpdateAlerts(alerts); err != nil {
			logger.L.Error("Persisting alert trigger timestamps failed", "error", err)
		}
	}

	history, err := e.alerts.ListEvents(50)
	if err != nil {
		logger.L.Error("Reading alert history failed", "error", err)
		history = []models.AlertEvent{}
	}
	return &AlertWorkflowResult{
		PortfolioID: portfolioID,
		Summary: AlertWorkflowSummary{
			TotalAlerts: len(alerts),
			Triggered:   len(triggered),
			Waiting:     len(waiting),
		},
		Triggered:   triggered,
		Waiting:     waiting,
		Actions:     actions,
		History:     history,
		GeneratedAt: utils.NowISO(),
	}, nil
}

// AlertHistory returns the recent alert trigger log.
func (e *ExpertService) AlertHistory(limit int) ([]models.AlertEvent, error) {
	events, err := e.alerts.ListEvents(limit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []models.AlertEvent{}
	}
	return events, nil
}

func (e *ExpertService) quoteMap(state *models.State) map[string]models.Quote {
	tickers := make([]string, 0, len(state.Assets))
	for _, asset := range state.Assets {
		tickers = append(tickers, asset.Ticker)
	}
	quotes, err := e.quotes.List(tickers)
	if err != nil {
		logger.L.Warn("Reading cached quotes failed, using stored asset prices", "error", err)
		return map[string]models.Quote{}
	}
	out := make(map[string]models.Quote, len(quotes))
	for _, quote := range quotes {
		out[strings.ToUpper(quote.Ticker)] = quote
	}
	return out
}

// scannerScore combines a quality, momentum and liquidity component with a
// concentration penalty into a 0..~130 score.
func scannerScore(price, risk, share, unrealizedPct float64) float64 {
	quality := math.Max(0, 10-risk) * 6.5
	momentum := math.Max(-20, math.Min(20, unrealizedPct))*2 + 40
	penalty := math.Max(0, share-20) * 1.2
	liquidity := math.Min(20, math.Max(0, price/10))
	score := quality + momentum + liquidity - penalty
	if score < 0 {
		score = 0
	}
	return math.Round(score*100) / 100
}

func scannerSignal(score, risk, unrealizedPct, share float64) (string, string) {
	switch {
	case share > 35:
		return "REBALANCE", "Pozycja dominuje w portfelu."
	case unrealizedPct <= -8:
		return "RISK_OFF", "Znaczna strata niezrealizowana."
	case risk >= 8 && score < 50:
		return "REDUCE", "Wysokie ryzyko przy słabym score."
	case score >= 75:
		return "ACCUMULATE", "Mocny score i akceptowalny profil ryzyka."
	default:
		return "HOLD", "Brak silnego sygnału do zmiany."
	}
}

func signalForHolding(holding models.Holding) (string, float64, string) {
	switch {
	case holding.Share > 35:
		return "REBALANCE", 0.87, "Pozycja przekracza 35% portfela."
	case holding.UnrealizedPct <= -12:
		return "CUT_LOSS", 0.9, "Strata przekroczyła -12%."
	case holding.UnrealizedPct >= 18 && holding.Risk >= 6:
		return "TAKE_PROFIT", 0.82, "Wysoki zysk na aktywie o podwyższonym ryzyku."
	case holding.Risk >= 8 && holding.Share >= 15:
		return "REDUCE_RISK", 0.78, "Duży udział waloru o wysokim ryzyku."
	case holding.UnrealizedPct >= -3 && holding.UnrealizedPct <= 4 && holding.Risk <= 5:
		return "ACCUMULATE", 0.65, "Niska zmienność i umiarkowane ryzyko."
	default:
		return "HOLD", 0.55, "Brak kryteriów dla silniejszego sygnału."
	}
}

func alertAction(row AlertRow) AlertAction {
	title := row.Ticker + ": poziom dolny osiągnięty"
	action := "Sprawdź setup obronny, redukcję pozycji lub plan dokupienia."
	if row.Direction == "gte" {
		title = row.Ticker + ": poziom górny osiągnięty"
		action = "Rozważ realizację części zysku lub podniesienie trailing stop."
	}
	deltaPct := 0.0
	if row.TargetPrice != 0 {
		deltaPct = (row.CurrentPrice - row.TargetPrice) / row.TargetPrice * 100
	}
	return AlertAction{
		Title:    title,
		Priority: "Wysoki",
		Action:   action,
		DeltaPct: math.Round(deltaPct*100) / 100,
	}
}

func nextOccurrence(base time.Time, frequency string, today time.Time) time.Time {
	folded := utils.Fold(frequency)
	cursor := base
	for cursor.Before(today) {
		switch {
		case strings.Contains(folded, "week") || strings.Contains(folded, "tydz"):
			cursor = cursor.AddDate(0, 0, 7)
		case strings.Contains(folded, "quarter") || strings.Contains(folded, "kwart"):
			cursor = cursor.AddDate(0, 0, 91)
		default:
			cursor = cursor.AddDate(0, 0, 30)
		}
	}
	return cursor
}
