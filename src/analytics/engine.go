// Package analytics is the portfolio ledger-replay and aggregation engine.
//
// One invocation folds a chronologically ordered operation list into per-asset
// positions and per-account cash balances, then aggregates the final state
// into a Metrics object. The engine is a pure function of the snapshot: it
// performs no I/O, no locking and no caching, and it never fails on data
// quality — malformed references and numbers degrade to zero contributions.
package analytics

import (
	"math"
	"sort"

	"github.com/username/fundfolio/backend/src/models"
)

// globalAccountKey buckets cash for operations without an account reference.
const globalAccountKey = "__global"

// Options select the slice of the ledger to replay.
type Options struct {
	// PortfolioID limits the replay to one portfolio; empty replays all.
	PortfolioID string
	// UntilDate is an inclusive YYYY-MM-DD cutoff; empty replays everything.
	// The closed-position aggregate spans the full ledger regardless, unless
	// CutoffClosed is set.
	UntilDate string
	// CutoffClosed restricts the closed-position aggregate to the cutoff
	// slice, skipping the second full-ledger pass. Series building sets it
	// because series points never read the closed aggregates.
	CutoffClosed bool
	// UseLivePrices values holdings at the asset's current reference price
	// when positive; otherwise the last transaction price seen wins.
	UseLivePrices bool
}

// position is the running average-cost state of one asset.
type position struct {
	qty  float64
	cost float64
}

// accountStats is the cash ledger of one account.
type accountStats struct {
	cash      float64
	buyGross  float64
	sellGross float64
	fees      float64
	realized  float64
	balance   float64
}

// closedAgg accumulates lifetime buy/sell totals for one asset.
type closedAgg struct {
	buyQty     float64
	sellQty    float64
	buyCost    float64
	sellValue  float64
	realizedPL float64
	fees       float64
	trades     int
}

// ledger is the mutable accumulator of one replay pass. It is built fresh
// per invocation and discarded with it; nothing here outlives the call.
type ledger struct {
	baseCurrency string

	positions map[string]*position
	accounts  map[string]*accountStats
	lastPrice map[string]float64

	realized        float64
	dividends       float64
	fees            float64
	netContribution float64

	sales  []models.SaleRecord
	buys   map[string]models.BuyTotals
	closed map[string]*closedAgg
}

func newLedger(baseCurrency string) *ledger {
	return &ledger{
		baseCurrency: baseCurrency,
		positions:    make(map[string]*position),
		accounts:     make(map[string]*accountStats),
		lastPrice:    make(map[string]float64),
		buys:         make(map[string]models.BuyTotals),
		closed:       make(map[string]*closedAgg),
	}
}

func (l *ledger) position(assetID string) *position {
	row, ok := l.positions[assetID]
	if !ok {
		row = &position{}
		l.positions[assetID] = row
	}
	return row
}

func (l *ledger) account(accountID string) *accountStats {
	key := accountID
	if key == "" {
		key = globalAccountKey
	}
	row, ok := l.accounts[key]
	if !ok {
		row = &accountStats{}
		l.accounts[key] = row
	}
	return row
}

func (l *ledger) closedFor(assetID string) *closedAgg {
	row, ok := l.closed[assetID]
	if !ok {
		row = &closedAgg{}
		l.closed[assetID] = row
	}
	return row
}

func (l *ledger) addCash(accountID string, amount float64) {
	stats := l.account(accountID)
	stats.cash += amount
	stats.balance += amount
}

// apply folds one operation into the ledger. Sign conventions: outflows
// (buy cost, fees) are negative cash, inflows (sale proceeds, dividends,
// deposits) positive.
func (l *ledger) apply(op *models.Operation) {
	qty := op.Quantity.Float()
	targetQty := op.TargetQuantity.Float()
	price := op.Price.Float()
	amount := op.Amount.Float()
	fee := op.Fee.Float()

	if op.AssetID != "" && price > 0 {
		l.lastPrice[op.AssetID] = price
	}

	switch ClassifyOperation(op.Type) {
	case KindBuy:
		gross := math.Abs(amount)
		if qty != 0 && price != 0 {
			gross = qty * price
		}
		total := gross + fee
		row := l.position(op.AssetID)
		row.qty += qty
		row.cost += total
		l.addCash(op.AccountID, -total)
		stats := l.account(op.AccountID)
		stats.buyGross += gross
		stats.fees += fee
		l.fees += fee
		totals := l.buys[op.AssetID]
		totals.Qty += qty
		totals.Amount += total
		l.buys[op.AssetID] = totals
		agg := l.closedFor(op.AssetID)
		agg.buyQty += qty
		agg.buyCost += total

	case KindSell:
		row := l.position(op.AssetID)
		soldQty := 0.0
		if qty > 0 {
			soldQty = qty
		} else if price > 0 {
			soldQty = safeDiv(math.Abs(amount), price)
		}
		avgCost := price // empty position falls back to the sale price
		if row.qty > 0 {
			avgCost = safeDiv(row.cost, row.qty)
		}
		costOut := avgCost * soldQty
		gross := math.Abs(amount)
		if soldQty != 0 && price != 0 {
			gross = soldQty * price
		}
		netProceeds := gross
		if amount != 0 {
			netProceeds = amount
		}
		netProceeds -= fee
		row.qty = snapZero(row.qty - soldQty)
		row.cost = snapZero(row.cost - costOut)
		l.addCash(op.AccountID, netProceeds)
		stats := l.account(op.AccountID)
		stats.sellGross += gross
		stats.fees += fee
		realizedDelta := netProceeds - costOut
		stats.realized += realizedDelta
		l.realized += realizedDelta
		l.fees += fee
		currency := op.Currency
		if currency == "" {
			currency = l.baseCurrency
		}
		l.sales = append(l.sales, models.SaleRecord{
			Date:       op.Date,
			AssetID:    op.AssetID,
			Qty:        soldQty,
			Price:      price,
			Gross:      gross,
			Fee:        fee,
			CostOut:    costOut,
			RealizedPL: realizedDelta,
			Currency:   currency,
		})
		agg := l.closedFor(op.AssetID)
		agg.sellQty += soldQty
		agg.sellValue += netProceeds
		agg.realizedPL += realizedDelta
		agg.fees += fee
		agg.trades++

	case KindConversion:
		source := l.position(op.AssetID)
		sourceAvg := price
		if source.qty > 0 {
			sourceAvg = safeDiv(source.cost, source.qty)
		}
		costOut := sourceAvg * qty
		source.qty = snapZero(source.qty - qty)
		source.cost = snapZero(source.cost - costOut)

		target := l.position(op.TargetAssetID)
		received := targetQty
		if received <= 0 {
			received = qty
		}
		target.qty += received
		target.cost += costOut + fee
		if fee > 0 {
			l.addCash(op.AccountID, -fee)
			l.account(op.AccountID).fees += fee
			l.fees += fee
		}

	case KindDividend:
		l.addCash(op.AccountID, amount)
		l.dividends += amount

	case KindFee:
		feeAmount := fee
		if feeAmount <= 0 {
			feeAmount = math.Abs(amount)
		}
		l.addCash(op.AccountID, -feeAmount)
		l.account(op.AccountID).fees += feeAmount
		l.fees += feeAmount

	case KindContribution:
		l.addCash(op.AccountID, amount)
		l.netContribution += amount
		if fee > 0 {
			l.addCash(op.AccountID, -fee)
			l.account(op.AccountID).fees += fee
			l.fees += fee
		}

	default: // generic cash movement: money moves, no contribution credit
		l.addCash(op.AccountID, amount)
		if fee > 0 {
			l.addCash(op.AccountID, -fee)
			l.account(op.AccountID).fees += fee
			l.fees += fee
		}
	}
}

// selectOperations filters by portfolio and cutoff and orders the result by
// (date, createdAt) ascending. Date strings are ISO so plain string
// comparison gives chronological order.
func selectOperations(state *models.State, portfolioID, untilDate string) []*models.Operation {
	out := make([]*models.Operation, 0, len(state.Operations))
	for i := range state.Operations {
		op := &state.Operations[i]
		if portfolioID != "" && op.PortfolioID != portfolioID {
			continue
		}
		if untilDate != "" && op.Date > untilDate {
			continue
		}
		out = append(out, op)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].CreatedAt < out[j].CreatedAt
	})
	return out
}

// Replay folds the selected operations and aggregates the result. The
// returned Metrics is freshly built and safe to retain; concurrent calls
// with their own snapshots are safe.
func Replay(state *models.State, opts Options) *models.Metrics {
	led := newLedger(state.Meta.BaseCurrency)
	for _, op := range selectOperations(state, opts.PortfolioID, opts.UntilDate) {
		led.apply(op)
	}

	closed := led.closed
	if opts.UntilDate != "" && !opts.CutoffClosed {
		// The closed-position aggregate spans the whole ledger, not the
		// cutoff slice, so run a second full pass just for it.
		full := newLedger(state.Meta.BaseCurrency)
		for _, op := range selectOperations(state, opts.PortfolioID, "") {
			full.apply(op)
		}
		closed = full.closed
	}

	return aggregate(state, led, closed, opts)
}
