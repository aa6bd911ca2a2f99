package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/fundfolio/backend/src/models"
)

func newTestReportService(state *models.State) *ReportService {
	return NewReportService(&fakeStateStore{state: state}, 500)
}

func TestCatalogListsEveryReport(t *testing.T) {
	service := newTestReportService(serviceTestState())

	catalog := service.Catalog()
	require.Len(t, catalog, len(ReportNames))
	assert.Equal(t, "Skład i struktura", catalog[0].Name)
	assert.Equal(t, "Limity IKE/IKZE/PPK", catalog[len(catalog)-1].Name)
}

func TestMetricsSummary(t *testing.T) {
	service := newTestReportService(serviceTestState(
		depositPLN("op_1", "2024-01-02", 1000),
		buyCDR("op_2", "2024-01-03", 2, 100),
	))

	summary, err := service.Metrics("")
	require.NoError(t, err)

	assert.InDelta(t, 240, summary.MarketValue, 1e-9)
	assert.InDelta(t, 800, summary.CashTotal, 1e-9)
	assert.InDelta(t, 1040, summary.NetWorth, 1e-9)
	assert.InDelta(t, 40, summary.TotalPL, 1e-9)
	assert.Equal(t, 1, summary.HoldingsCount)
}

func TestGenerateStructureReport(t *testing.T) {
	service := newTestReportService(serviceTestState(
		depositPLN("op_1", "2024-01-02", 1000),
		buyCDR("op_2", "2024-01-03", 2, 100),
	))

	report, err := service.Generate("Struktura majątku", "")
	require.NoError(t, err)

	assert.Equal(t, "Struktura majątku", report.ReportName)
	assert.Contains(t, report.Info, "Portfel: Wszystkie")
	assert.Equal(t,
		[]string{"Ticker", "Nazwa", "Typ", "Ilość", "Cena", "Wartość", "P/L", "Udział %"},
		report.Headers)

	// One holding row plus the cash and liabilities rows.
	require.Len(t, report.Rows, 3)
	assert.Equal(t, "CDR", report.Rows[0][0])
	require.Len(t, report.Chart.Labels, 1)
	assert.Equal(t, "CDR", report.Chart.Labels[0])
	assert.InDelta(t, 240, report.Chart.Values[0], 1e-9)
}

func TestGenerateStatsReport(t *testing.T) {
	service := newTestReportService(serviceTestState(
		depositPLN("op_1", "2024-01-02", 1000),
		buyCDR("op_2", "2024-01-03", 2, 100),
	))

	report, err := service.Generate("Statystyki portfela", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"Miara", "Wartość"}, report.Headers)
	require.NotEmpty(t, report.Rows)
	assert.Equal(t, "Wartość rynkowa", report.Rows[0][0])
	assert.InDelta(t, 240, report.Rows[0][1].(float64), 1e-9)
}

func TestGenerateSeriesReport(t *testing.T) {
	service := newTestReportService(serviceTestState(
		depositPLN("op_1", "2024-01-02", 1000),
		buyCDR("op_2", "2024-01-03", 2, 100),
	))

	report, err := service.Generate("Drawdown portfela w czasie", "")
	require.NoError(t, err)

	assert.Equal(t, "Drawdown portfela w czasie", report.ReportName)
	assert.NotEmpty(t, report.Chart.Labels)
	assert.Equal(t, len(report.Chart.Labels), len(report.Chart.Values))
}

func TestGenerateUnknownNameFallsBack(t *testing.T) {
	service := newTestReportService(serviceTestState())

	report, err := service.Generate("Zupełnie nieznany raport", "")
	require.NoError(t, err)

	assert.Equal(t, "Zupełnie nieznany raport", report.ReportName)
	assert.Contains(t, report.Info, "Fallback raportu")
}

func TestGenerateMemoizesPerGeneration(t *testing.T) {
	states := &fakeStateStore{state: serviceTestState(
		depositPLN("op_1", "2024-01-02", 1000),
	)}
	service := NewReportService(states, 500)

	first, err := service.Generate("Statystyki portfela", "")
	require.NoError(t, err)
	second, err := service.Generate("Statystyki portfela", "")
	require.NoError(t, err)
	assert.Equal(t, first.Rows, second.Rows)

	// A new generation bypasses the memoized replay.
	states.state.Operations = append(states.state.Operations,
		depositPLN("op_2", "2024-01-03", 500))
	states.generation++

	third, err := service.Generate("Statystyki portfela", "")
	require.NoError(t, err)
	assert.InDelta(t, 1500, third.Rows[1][1].(float64), 1e-9)
}
