package services

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/fundfolio/backend/src/logger"
	"github.com/username/fundfolio/backend/src/models"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

type fakeStateStore struct {
	state       *models.State
	generation  uint64
	savedAlerts []models.Alert
}

func (f *fakeStateStore) Get() (*models.State, error) { return f.state, nil }
func (f *fakeStateStore) Generation() uint64          { return f.generation }
func (f *fakeStateStore) UpdateAlerts(alerts []models.Alert) error {
	f.savedAlerts = alerts
	return nil
}

type fakeQuoteStore struct {
	quotes []models.Quote
}

func (f *fakeQuoteStore) Upsert(quotes []models.Quote) error { f.quotes = quotes; return nil }
func (f *fakeQuoteStore) List(tickers []string) ([]models.Quote, error) {
	return f.quotes, nil
}

type fakeAlertLog struct {
	events []models.AlertEvent
}

func (f *fakeAlertLog) LogEvent(event models.AlertEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAlertLog) ListEvents(limit int) ([]models.AlertEvent, error) {
	if limit > 0 && len(f.events) > limit {
		return f.events[:limit], nil
	}
	return f.events, nil
}

type fakeMetaStore struct {
	docs map[string][]byte
}

func newFakeMetaStore() *fakeMetaStore {
	return &fakeMetaStore{docs: map[string][]byte{}}
}

func (f *fakeMetaStore) GetJSON(key string, out any) (bool, error) {
	raw, ok := f.docs[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (f *fakeMetaStore) SetJSON(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.docs[key] = raw
	return nil
}

func serviceTestState(ops ...models.Operation) *models.State {
	return &models.State{
		Meta: models.Meta{ActivePlan: "Expert", BaseCurrency: "PLN"},
		Portfolios: []models.Portfolio{
			{ID: "ptf_1", Name: "Glowny", Currency: "PLN", Benchmark: "WIG20"},
		},
		Accounts: []models.Account{
			{ID: "acc_1", Name: "Konto podstawowe", Type: "Broker", Currency: "PLN"},
		},
		Assets: []models.Asset{
			{
				ID: "ast_1", Ticker: "CDR", Name: "CD Projekt", Type: "Akcja",
				Currency: "PLN", CurrentPrice: 120, Risk: 5, Sector: "Gry",
			},
		},
		Operations: ops,
	}
}

func buyCDR(id, date string, qty, price float64) models.Operation {
	return models.Operation{
		ID: id, Date: date, Type: "Kupno waloru",
		PortfolioID: "ptf_1", AccountID: "acc_1", AssetID: "ast_1",
		Quantity: models.Number(qty), Price: models.Number(price),
		Currency: "PLN", CreatedAt: date + "T11:00:00Z",
	}
}

func depositPLN(id, date string, amount float64) models.Operation {
	return models.Operation{
		ID: id, Date: date, Type: "Operacja gotówkowa",
		PortfolioID: "ptf_1", AccountID: "acc_1",
		Amount: models.Number(amount), Currency: "PLN",
		CreatedAt: date + "T10:00:00Z",
	}
}

func TestScannerFiltersClamp(t *testing.T) {
	assert.InDelta(t, 10, ScannerFilters{}.Clamp().MaxRisk, 1e-9)
	assert.InDelta(t, 10, ScannerFilters{MaxRisk: 15}.Clamp().MaxRisk, 1e-9)
	assert.InDelta(t, 1, ScannerFilters{MaxRisk: 0.5}.Clamp().MaxRisk, 1e-9)
	assert.InDelta(t, 0, ScannerFilters{MinPrice: -5}.Clamp().MinPrice, 1e-9)
}

func TestScannerScore(t *testing.T) {
	// quality 32.5 + momentum 40 + liquidity 10.
	assert.InDelta(t, 82.5, scannerScore(100, 5, 0, 0), 1e-9)
	// Deep loss and heavy concentration floor at zero.
	assert.InDelta(t, 0, scannerScore(0, 10, 50, -30), 1e-9)
	// Liquidity component caps at 20.
	assert.InDelta(t, 92.5, scannerScore(1000, 5, 0, 0), 1e-9)
}

func TestScannerSignal(t *testing.T) {
	signal, _ := scannerSignal(90, 5, 0, 40)
	assert.Equal(t, "REBALANCE", signal)

	signal, _ = scannerSignal(90, 5, -10, 10)
	assert.Equal(t, "RISK_OFF", signal)

	signal, _ = scannerSignal(40, 9, 0, 10)
	assert.Equal(t, "REDUCE", signal)

	signal, _ = scannerSignal(80, 5, 0, 10)
	assert.Equal(t, "ACCUMULATE", signal)

	signal, _ = scannerSignal(60, 5, 0, 10)
	assert.Equal(t, "HOLD", signal)
}

func TestSignalForHolding(t *testing.T) {
	cases := []struct {
		holding    models.Holding
		wantSignal string
		wantConf   float64
	}{
		{models.Holding{Share: 40}, "REBALANCE", 0.87},
		{models.Holding{UnrealizedPct: -15}, "CUT_LOSS", 0.9},
		{models.Holding{UnrealizedPct: 20, Risk: 7}, "TAKE_PROFIT", 0.82},
		{models.Holding{Risk: 9, Share: 20}, "REDUCE_RISK", 0.78},
		{models.Holding{UnrealizedPct: 2, Risk: 4}, "ACCUMULATE", 0.65},
		{models.Holding{UnrealizedPct: 10, Risk: 6, Share: 5}, "HOLD", 0.55},
	}
	for _, tc := range cases {
		signal, confidence, reason := signalForHolding(tc.holding)
		assert.Equal(t, tc.wantSignal, signal)
		assert.InDelta(t, tc.wantConf, confidence, 1e-9)
		assert.NotEmpty(t, reason)
	}
}

func TestScannerPrefersCachedQuote(t *testing.T) {
	states := &fakeStateStore{state: serviceTestState()}
	quotes := &fakeQuoteStore{quotes: []models.Quote{
		{Ticker: "CDR", Price: 150, Currency: "PLN", Provider: "yahoo"},
	}}
	service := NewExpertService(states, quotes, &fakeAlertLog{})

	result, err := service.Scanner(ScannerFilters{})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)

	item := result.Items[0]
	assert.Equal(t, "CDR", item.Ticker)
	assert.InDelta(t, 150, item.Price, 1e-9)
	// quality 32.5 + momentum 40 + liquidity 15.
	assert.InDelta(t, 87.5, item.Score, 1e-9)
	assert.Equal(t, "ACCUMULATE", item.Signal)
	assert.Equal(t, "Gry", item.Sector)
	assert.Equal(t, "-", item.Industry)
}

func TestScannerFiltersExclude(t *testing.T) {
	states := &fakeStateStore{state: serviceTestState()}
	service := NewExpertService(states, &fakeQuoteStore{}, &fakeAlertLog{})

	byRisk, err := service.Scanner(ScannerFilters{MaxRisk: 4})
	require.NoError(t, err)
	assert.Empty(t, byRisk.Items)

	bySector, err := service.Scanner(ScannerFilters{Sector: "Banki"})
	require.NoError(t, err)
	assert.Empty(t, bySector.Items)

	matching, err := service.Scanner(ScannerFilters{Sector: "gry", MinPrice: 100})
	require.NoError(t, err)
	assert.Len(t, matching.Items, 1)
}

func TestSignalsPerHolding(t *testing.T) {
	states := &fakeStateStore{state: serviceTestState(
		depositPLN("op_1", "2024-01-02", 1000),
		buyCDR("op_2", "2024-01-03", 2, 100),
	)}
	service := NewExpertService(states, &fakeQuoteStore{}, &fakeAlertLog{})

	result, err := service.Signals("")
	require.NoError(t, err)
	require.Len(t, result.Signals, 1)

	row := result.Signals[0]
	assert.Equal(t, "CDR", row.Ticker)
	// Single holding owns 100% of market value.
	assert.Equal(t, "REBALANCE", row.Signal)
	assert.InDelta(t, 0.87, row.Confidence, 1e-9)
}

func TestRunAlertWorkflow(t *testing.T) {
	state := serviceTestState()
	state.Alerts = []models.Alert{
		{ID: "alt_1", AssetID: "ast_1", Direction: "gte", TargetPrice: 100},
		{ID: "alt_2", AssetID: "ast_1", Direction: "lte", TargetPrice: 100},
		{ID: "alt_3", AssetID: "ast_missing", Direction: "gte", TargetPrice: 1},
	}
	states := &fakeStateStore{state: state}
	log := &fakeAlertLog{}
	service := NewExpertService(states, &fakeQuoteStore{}, log)

	result, err := service.RunAlertWorkflow("")
	require.NoError(t, err)

	assert.Equal(t, 3, result.Summary.TotalAlerts)
	assert.Equal(t, 1, result.Summary.Triggered)
	assert.Equal(t, 1, result.Summary.Waiting)

	require.Len(t, result.Triggered, 1)
	assert.Equal(t, "alt_1", result.Triggered[0].AlertID)
	assert.Equal(t, "TRIGGERED", result.Triggered[0].Status)
	assert.InDelta(t, 120, result.Triggered[0].CurrentPrice, 1e-9)

	require.Len(t, result.Actions, 1)
	assert.InDelta(t, 20, result.Actions[0].DeltaPct, 1e-9)

	// Trigger timestamp was stamped and persisted.
	require.Len(t, states.savedAlerts, 3)
	assert.NotEmpty(t, states.savedAlerts[0].LastTriggerAt)
	assert.Empty(t, states.savedAlerts[1].LastTriggerAt)

	require.Len(t, log.events, 1)
	assert.Equal(t, "alt_1", log.events[0].AlertID)
	require.Len(t, result.History, 1)
}

func TestRunAlertWorkflowNoTriggerSkipsPersist(t *testing.T) {
	state := serviceTestState()
	state.Alerts = []models.Alert{
		{ID: "alt_1", AssetID: "ast_1", Direction: "gte", TargetPrice: 500},
	}
	states := &fakeStateStore{state: state}
	service := NewExpertService(states, &fakeQuoteStore{}, &fakeAlertLog{})

	result, err := service.RunAlertWorkflow("")
	require.NoError(t, err)

	assert.Equal(t, 0, result.Summary.Triggered)
	assert.Equal(t, 1, result.Summary.Waiting)
	assert.Nil(t, states.savedAlerts)
}

func TestCalendarLiabilitiesAndRecurring(t *testing.T) {
	today := time.Now().UTC()
	state := serviceTestState(
		depositPLN("op_1", "2024-01-02", 1000),
		buyCDR("op_2", "2024-01-03", 2, 100),
	)
	state.Liabilities = []models.Liability{
		{ID: "liab_1", Name: "Kredyt", Amount: 500, Currency: "PLN",
			DueDate: today.AddDate(0, 0, 3).Format("2006-01-02")},
	}
	state.RecurringOps = []models.RecurringOp{
		{ID: "rec_1", Name: "Wpłata IKE", Type: "Operacja gotówkowa",
			Frequency: "monthly", Amount: 200, PortfolioID: "ptf_1",
			StartDate: today.AddDate(0, 0, -10).Format("2006-01-02")},
	}
	service := NewExpertService(&fakeStateStore{state: state}, &fakeQuoteStore{}, &fakeAlertLog{})

	result, err := service.Calendar(60, "")
	require.NoError(t, err)
	assert.Equal(t, 60, result.Days)

	byType := map[string]int{}
	for _, event := range result.Events {
		byType[event.Type]++
	}
	assert.Equal(t, 1, byType["Zobowiązanie"])
	assert.Equal(t, 1, byType["Operacja cykliczna"])
	assert.Equal(t, 2, byType["Kalendarium spółek"])

	// A due date inside a week is high priority.
	for _, event := range result.Events {
		if event.Type == "Zobowiązanie" {
			assert.Equal(t, "Wysoki", event.Priority)
		}
	}
}

func TestRecommendationsConcentrationAndCash(t *testing.T) {
	states := &fakeStateStore{state: serviceTestState(
		depositPLN("op_1", "2024-01-02", 1000),
		buyCDR("op_2", "2024-01-03", 2, 100),
	)}
	service := NewExpertService(states, &fakeQuoteStore{}, &fakeAlertLog{})

	result, err := service.Recommendations("")
	require.NoError(t, err)

	categories := map[string]bool{}
	for _, row := range result.Recommendations {
		categories[row.Category] = true
	}
	// 100% in one holding and a large cash pile both fire, as does the
	// missing-alerts reminder.
	assert.True(t, categories["Dywersyfikacja"])
	assert.True(t, categories["Alokacja"])
	assert.True(t, categories["Workflow"])
}

func TestRecommendationsEmptyPortfolio(t *testing.T) {
	states := &fakeStateStore{state: serviceTestState()}
	service := NewExpertService(states, &fakeQuoteStore{}, &fakeAlertLog{})

	result, err := service.Recommendations("")
	require.NoError(t, err)
	require.NotEmpty(t, result.Recommendations)
	assert.Equal(t, "Portfel", result.Recommendations[0].Category)
}

func TestNextOccurrence(t *testing.T) {
	today := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	base := today.AddDate(0, 0, -10)

	weekly := nextOccurrence(base, "weekly", today)
	assert.Equal(t, today.AddDate(0, 0, 4), weekly)

	monthly := nextOccurrence(base, "monthly", today)
	assert.Equal(t, today.AddDate(0, 0, 20), monthly)

	quarterly := nextOccurrence(base, "kwartalnie", today)
	assert.Equal(t, today.AddDate(0, 0, 81), quarterly)

	future := today.AddDate(0, 0, 5)
	assert.Equal(t, future, nextOccurrence(future, "monthly", today))
}
