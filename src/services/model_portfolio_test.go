package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelPortfolioGetDefault(t *testing.T) {
	service := NewModelPortfolioService(&fakeStateStore{state: serviceTestState()}, newFakeMetaStore())

	model, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, "Portfel wzorcowy", model.Name)
	assert.Empty(t, model.Weights)
}

func TestModelPortfolioSetNormalizesWeights(t *testing.T) {
	meta := newFakeMetaStore()
	service := NewModelPortfolioService(&fakeStateStore{state: serviceTestState()}, meta)

	model, err := service.Set(ModelPortfolio{
		Name: "  Moja strategia  ",
		Weights: []ModelWeight{
			{Ticker: " cdr ", Weight: 30},
			{Ticker: "etf1", Weight: 10},
			{Ticker: "", Weight: 5},
			{Ticker: "XYZ", Weight: -2},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Moja strategia", model.Name)
	require.Len(t, model.Weights, 2)
	assert.Equal(t, "CDR", model.Weights[0].Ticker)
	assert.InDelta(t, 75, model.Weights[0].Weight, 1e-9)
	assert.Equal(t, "ETF1", model.Weights[1].Ticker)
	assert.InDelta(t, 25, model.Weights[1].Weight, 1e-9)
	assert.NotEmpty(t, model.UpdatedAt)

	// Round trip through the store.
	stored, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, "Moja strategia", stored.Name)
	require.Len(t, stored.Weights, 2)
}

func TestModelPortfolioSetRejectsNonPositiveWeights(t *testing.T) {
	service := NewModelPortfolioService(&fakeStateStore{state: serviceTestState()}, newFakeMetaStore())

	_, err := service.Set(ModelPortfolio{Weights: []ModelWeight{
		{Ticker: "CDR", Weight: 0},
		{Ticker: "ETF1", Weight: -10},
	}})
	assert.ErrorIs(t, err, ErrInvalidModelWeights)
}

func TestModelPortfolioCompareEmptyModel(t *testing.T) {
	service := NewModelPortfolioService(&fakeStateStore{state: serviceTestState()}, newFakeMetaStore())

	result, err := service.Compare("")
	require.NoError(t, err)
	assert.Empty(t, result.Rows)
	assert.False(t, result.Summary.RebalanceNeeded)
}

func TestModelPortfolioCompare(t *testing.T) {
	states := &fakeStateStore{state: serviceTestState(
		depositPLN("op_1", "2024-01-02", 1000),
		buyCDR("op_2", "2024-01-03", 2, 100),
	)}
	service := NewModelPortfolioService(states, newFakeMetaStore())
	_, err := service.Set(ModelPortfolio{Weights: []ModelWeight{
		{Ticker: "CDR", Weight: 60},
		{Ticker: "ETF1", Weight: 40},
	}})
	require.NoError(t, err)

	result, err := service.Compare("")
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)

	// Cash 800 + position 240 at the live price gives net worth 1040; the
	// single holding owns the whole market value.
	cdr := result.Rows[0]
	assert.Equal(t, "CDR", cdr.Ticker)
	assert.InDelta(t, 60, cdr.TargetSharePct, 1e-9)
	assert.InDelta(t, 100, cdr.ActualSharePct, 1e-9)
	assert.InDelta(t, 40, cdr.DeviationPct, 1e-9)
	assert.InDelta(t, 624, cdr.TargetValue, 1e-9)
	assert.InDelta(t, 240, cdr.ActualValue, 1e-9)
	assert.InDelta(t, -384, cdr.ValueDelta, 1e-9)
	assert.InDelta(t, 3.2, cdr.QtyDeltaApprox, 1e-9)
	assert.Equal(t, "SPRZEDAJ", cdr.Action)

	etf := result.Rows[1]
	assert.Equal(t, "ETF1", etf.Ticker)
	assert.InDelta(t, -40, etf.DeviationPct, 1e-9)
	assert.Equal(t, "KUP", etf.Action)

	assert.True(t, result.Summary.RebalanceNeeded)
	assert.InDelta(t, 40, result.Summary.TrackingErrorPct, 1e-9)
}
