package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/username/fundfolio/backend/src/utils"
)

// PlanOrder lists the recognized subscription plans, lowest first.
var PlanOrder = []string{"None", "Basic", "Standard", "Pro", "Expert"}

const DefaultBaseCurrency = "PLN"

// sanitizer strips all markup from free-text fields before they are persisted.
var sanitizer = bluemonday.StrictPolicy()

// MakeID mints a prefixed id: "<prefix>_<unix-millis>_<short-uuid>".
func MakeID(prefix string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UTC().UnixMilli(), uuid.NewString()[:6])
}

func textOrFallback(value, fallback string) string {
	clean := sanitizer.Sanitize(value)
	if clean == "" {
		return fallback
	}
	return clean
}

func clampRisk(value float64) float64 {
	if value == 0 {
		value = 5
	}
	if value < 1 {
		return 1
	}
	if value > 10 {
		return 10
	}
	return value
}

// DefaultState returns the seed snapshot for a fresh database: one portfolio,
// one broker account, nothing else.
func DefaultState() *State {
	createdAt := utils.NowISO()
	return &State{
		Meta: Meta{
			ActivePlan:   "Expert",
			BaseCurrency: DefaultBaseCurrency,
			CreatedAt:    createdAt,
		},
		Portfolios: []Portfolio{{
			ID:        MakeID("ptf"),
			Name:      "Main",
			Currency:  DefaultBaseCurrency,
			Benchmark: "WIG20",
			Goal:      "Long-term growth",
			CreatedAt: createdAt,
		}},
		Accounts: []Account{{
			ID:        MakeID("acc"),
			Name:      "Primary account",
			Type:      "Broker",
			Currency:  DefaultBaseCurrency,
			CreatedAt: createdAt,
		}},
	}
}

// Normalize repairs a snapshot in place after decoding: missing ids are
// minted, free text is sanitized, dates are coerced to YYYY-MM-DD, risk is
// clamped to 1..10 and dangling defaults are filled. It never fails; bad
// rows degrade to safe defaults rather than aborting the whole state.
func Normalize(state *State) *State {
	if state == nil {
		return DefaultState()
	}

	if !planKnown(state.Meta.ActivePlan) {
		state.Meta.ActivePlan = "Expert"
	}
	state.Meta.BaseCurrency = textOrFallback(state.Meta.BaseCurrency, DefaultBaseCurrency)
	state.Meta.CreatedAt = textOrFallback(state.Meta.CreatedAt, utils.NowISO())
	base := state.Meta.BaseCurrency

	for i := range state.Portfolios {
		p := &state.Portfolios[i]
		p.ID = textOrFallback(p.ID, MakeID("ptf"))
		p.Name = textOrFallback(p.Name, "Portfolio")
		p.Currency = textOrFallback(p.Currency, base)
		p.Benchmark = sanitizer.Sanitize(p.Benchmark)
		p.Goal = sanitizer.Sanitize(p.Goal)
		p.GroupName = sanitizer.Sanitize(p.GroupName)
		p.CreatedAt = textOrFallback(p.CreatedAt, utils.NowISO())
	}

	for i := range state.Accounts {
		a := &state.Accounts[i]
		a.ID = textOrFallback(a.ID, MakeID("acc"))
		a.Name = textOrFallback(a.Name, "Account")
		a.Type = textOrFallback(a.Type, "Broker")
		a.Currency = textOrFallback(a.Currency, base)
		a.CreatedAt = textOrFallback(a.CreatedAt, utils.NowISO())
	}

	for i := range state.Assets {
		a := &state.Assets[i]
		a.ID = textOrFallback(a.ID, MakeID("ast"))
		a.Ticker = textOrFallback(a.Ticker, "N/A")
		a.Name = textOrFallback(a.Name, "Unnamed asset")
		a.Type = textOrFallback(a.Type, "Other")
		a.Currency = textOrFallback(a.Currency, base)
		a.Risk = Number(clampRisk(a.Risk.Float()))
		a.Sector = sanitizer.Sanitize(a.Sector)
		a.Industry = sanitizer.Sanitize(a.Industry)
		a.Benchmark = sanitizer.Sanitize(a.Benchmark)
		a.CreatedAt = textOrFallback(a.CreatedAt, utils.NowISO())
	}

	for i := range state.Operations {
		o := &state.Operations[i]
		o.ID = textOrFallback(o.ID, MakeID("op"))
		o.Date = utils.ParseDateISO(o.Date)
		o.Type = textOrFallback(o.Type, "Cash operation")
		o.Currency = textOrFallback(o.Currency, base)
		o.Note = sanitizer.Sanitize(o.Note)
		o.CreatedAt = textOrFallback(o.CreatedAt, utils.NowISO())
	}

	for i := range state.RecurringOps {
		r := &state.RecurringOps[i]
		r.ID = textOrFallback(r.ID, MakeID("rec"))
		r.Name = textOrFallback(r.Name, "Recurring operation")
		r.Type = textOrFallback(r.Type, "Cash operation")
		r.Frequency = textOrFallback(r.Frequency, "monthly")
		r.StartDate = utils.ParseDateISO(r.StartDate)
		r.Currency = textOrFallback(r.Currency, base)
		r.CreatedAt = textOrFallback(r.CreatedAt, utils.NowISO())
	}

	for i := range state.Liabilities {
		l := &state.Liabilities[i]
		l.ID = textOrFallback(l.ID, MakeID("liab"))
		l.Name = textOrFallback(l.Name, "Liability")
		l.Currency = textOrFallback(l.Currency, base)
		l.CreatedAt = textOrFallback(l.CreatedAt, utils.NowISO())
	}

	for i := range state.Alerts {
		al := &state.Alerts[i]
		al.ID = textOrFallback(al.ID, MakeID("alt"))
		if utils.Fold(al.Direction) != "lte" {
			al.Direction = "gte"
		} else {
			al.Direction = "lte"
		}
		al.CreatedAt = textOrFallback(al.CreatedAt, utils.NowISO())
	}

	for i := range state.Notes {
		n := &state.Notes[i]
		n.ID = textOrFallback(n.ID, MakeID("note"))
		n.Content = sanitizer.Sanitize(n.Content)
		n.CreatedAt = textOrFallback(n.CreatedAt, utils.NowISO())
	}

	for i := range state.Strategies {
		st := &state.Strategies[i]
		st.ID = textOrFallback(st.ID, MakeID("str"))
		st.Name = textOrFallback(st.Name, "Strategy")
		st.Description = sanitizer.Sanitize(st.Description)
		st.CreatedAt = textOrFallback(st.CreatedAt, utils.NowISO())
	}

	var favorites []string
	for _, fav := range state.Favorites {
		if clean := sanitizer.Sanitize(fav); clean != "" {
			favorites = append(favorites, clean)
		}
	}
	state.Favorites = favorites

	fallback := DefaultState()
	if len(state.Portfolios) == 0 {
		state.Portfolios = fallback.Portfolios
	}
	if len(state.Accounts) == 0 {
		state.Accounts = fallback.Accounts
	}
	return state
}

func planKnown(plan string) bool {
	for _, known := range PlanOrder {
		if plan == known {
			return true
		}
	}
	return false
}
