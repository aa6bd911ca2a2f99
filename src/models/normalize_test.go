package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberUnmarshalTolerant(t *testing.T) {
	var payload struct {
		A Number `json:"a"`
		B Number `json:"b"`
		C Number `json:"c"`
		D Number `json:"d"`
		E Number `json:"e"`
	}
	raw := `{"a": 12.5, "b": "1 234,56", "c": null, "d": "garbage", "e": "-3"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	assert.InDelta(t, 12.5, payload.A.Float(), 1e-9)
	assert.InDelta(t, 1234.56, payload.B.Float(), 1e-9)
	assert.InDelta(t, 0, payload.C.Float(), 1e-9)
	assert.InDelta(t, 0, payload.D.Float(), 1e-9)
	assert.InDelta(t, -3, payload.E.Float(), 1e-9)
}

func TestTagsUnmarshalBothShapes(t *testing.T) {
	var fromList Tags
	require.NoError(t, json.Unmarshal([]byte(`["akcje"," dywidendowe ",""]`), &fromList))
	assert.Equal(t, Tags{"akcje", "dywidendowe"}, fromList)

	var fromString Tags
	require.NoError(t, json.Unmarshal([]byte(`"akcje, dywidendowe"`), &fromString))
	assert.Equal(t, Tags{"akcje", "dywidendowe"}, fromString)

	var fromJunk Tags
	require.NoError(t, json.Unmarshal([]byte(`42`), &fromJunk))
	assert.Nil(t, fromJunk)
}

func TestDefaultState(t *testing.T) {
	state := DefaultState()

	assert.Equal(t, "Expert", state.Meta.ActivePlan)
	assert.Equal(t, DefaultBaseCurrency, state.Meta.BaseCurrency)
	require.Len(t, state.Portfolios, 1)
	require.Len(t, state.Accounts, 1)
	assert.NotEmpty(t, state.Portfolios[0].ID)
	assert.NotEmpty(t, state.Accounts[0].ID)
}

func TestNormalizeNilYieldsDefault(t *testing.T) {
	state := Normalize(nil)

	require.NotNil(t, state)
	assert.Len(t, state.Portfolios, 1)
	assert.Len(t, state.Accounts, 1)
}

func TestNormalizeRepairsRows(t *testing.T) {
	state := &State{
		Meta: Meta{ActivePlan: "Platinum"},
		Assets: []Asset{
			{Name: "<b>Spolka</b>", Risk: 25},
			{Ticker: "CDR", Name: "CD Projekt", Risk: 0},
		},
		Operations: []Operation{
			{Type: "", Date: "09.03.2024", Note: "<script>x</script>ok"},
		},
		Alerts: []Alert{
			{AssetID: "ast_1", Direction: "GTE"},
			{AssetID: "ast_2", Direction: "LTE"},
			{AssetID: "ast_3", Direction: "sideways"},
		},
	}

	out := Normalize(state)

	assert.Equal(t, "Expert", out.Meta.ActivePlan)
	assert.Equal(t, DefaultBaseCurrency, out.Meta.BaseCurrency)

	assert.NotEmpty(t, out.Assets[0].ID)
	assert.Equal(t, "Spolka", out.Assets[0].Name)
	assert.Equal(t, "N/A", out.Assets[0].Ticker)
	assert.InDelta(t, 10, out.Assets[0].Risk.Float(), 1e-9)
	assert.InDelta(t, 5, out.Assets[1].Risk.Float(), 1e-9)

	op := out.Operations[0]
	assert.Equal(t, "2024-03-09", op.Date)
	assert.Equal(t, "Cash operation", op.Type)
	assert.Equal(t, "ok", op.Note)
	assert.Equal(t, DefaultBaseCurrency, op.Currency)

	assert.Equal(t, "gte", out.Alerts[0].Direction)
	assert.Equal(t, "lte", out.Alerts[1].Direction)
	assert.Equal(t, "gte", out.Alerts[2].Direction)

	// Missing portfolios and accounts fall back to the seed rows.
	require.Len(t, out.Portfolios, 1)
	require.Len(t, out.Accounts, 1)
}
