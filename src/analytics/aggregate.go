package analytics

import (
	"math"
	"sort"

	"github.com/username/fundfolio/backend/src/models"
)

// noTagBucket collects holdings of untagged assets in the tag breakdown.
const noTagBucket = "no-tag"

// aggregate turns the final ledger state into the Metrics object: holdings
// rows, breakdowns by currency/tag/account, top-line scalars and the
// closed-position summary.
func aggregate(state *models.State, led *ledger, closed map[string]*closedAgg, opts Options) *models.Metrics {
	assetByID := state.AssetByID()
	accountByID := state.AccountByID()
	base := state.Meta.BaseCurrency

	var holdings []models.Holding
	marketValue := 0.0
	bookValue := 0.0
	byCurrency := make(map[string]float64)
	byTag := make(map[string]float64)

	for assetID, pos := range led.positions {
		if math.Abs(pos.qty) < holdingQtyEps && math.Abs(pos.cost) < holdingCostEps {
			continue
		}
		asset, known := assetByID[assetID]
		price := led.lastPrice[assetID]
		if opts.UseLivePrices && asset.CurrentPrice.Float() > 0 {
			price = asset.CurrentPrice.Float()
		}
		value := pos.qty * price
		unrealized := value - pos.cost
		unrealizedPct := 0.0
		if pos.cost != 0 {
			unrealizedPct = safeDiv(unrealized, pos.cost) * 100
		}

		row := models.Holding{
			AssetID:       assetID,
			Ticker:        asset.Ticker,
			Name:          asset.Name,
			AssetType:     asset.Type,
			Currency:      asset.Currency,
			Risk:          asset.Risk.Float(),
			Sector:        asset.Sector,
			Industry:      asset.Industry,
			Benchmark:     asset.Benchmark,
			Tags:          asset.Tags,
			Qty:           pos.qty,
			Price:         price,
			Value:         value,
			Cost:          pos.cost,
			Unrealized:    unrealized,
			UnrealizedPct: unrealizedPct,
		}
		if !known {
			// Dangling asset reference: degrade to defaults, never fail.
			row.Ticker = "N/A"
			row.Name = "Deleted asset"
			row.AssetType = "Other"
			row.Currency = base
			row.Risk = 5
		}
		if row.Currency == "" {
			row.Currency = base
		}

		holdings = append(holdings, row)
		marketValue += value
		bookValue += pos.cost
		byCurrency[row.Currency] += value
		if len(row.Tags) == 0 {
			byTag[noTagBucket] += value
		} else {
			for _, tag := range row.Tags {
				byTag[tag] += value
			}
		}
	}

	cashTotal := 0.0
	for accountID, stats := range led.accounts {
		cashTotal += stats.cash
		currency := base
		if account, ok := accountByID[accountID]; ok && account.Currency != "" {
			currency = account.Currency
		}
		byCurrency[currency] += stats.cash
	}

	liabilitiesTotal := 0.0
	for _, liability := range state.Liabilities {
		liabilitiesTotal += liability.Amount.Float()
	}

	unrealized := marketValue - bookValue
	totalPL := unrealized + led.realized + led.dividends - led.fees
	netWorth := marketValue + cashTotal - liabilitiesTotal
	units := math.Max(1, math.Round(math.Max(1, math.Abs(led.netContribution)/100)))
	returnPct := 0.0
	if led.netContribution != 0 {
		returnPct = safeDiv(totalPL, math.Abs(led.netContribution)) * 100
	}

	for i := range holdings {
		if marketValue != 0 {
			holdings[i].Share = safeDiv(holdings[i].Value, marketValue) * 100
		}
	}
	sort.SliceStable(holdings, func(i, j int) bool { return holdings[i].Value > holdings[j].Value })

	currencyRows := make([]models.CurrencyExposure, 0, len(byCurrency))
	for currency, value := range byCurrency {
		share := 0.0
		if netWorth != 0 {
			share = safeDiv(value, netWorth) * 100
		}
		currencyRows = append(currencyRows, models.CurrencyExposure{Currency: currency, Value: value, Share: share})
	}
	sort.SliceStable(currencyRows, func(i, j int) bool { return currencyRows[i].Value > currencyRows[j].Value })

	tagRows := make([]models.TagExposure, 0, len(byTag))
	for tag, value := range byTag {
		share := 0.0
		if marketValue != 0 {
			share = safeDiv(value, marketValue) * 100
		}
		tagRows = append(tagRows, models.TagExposure{Tag: tag, Value: value, Share: share})
	}
	sort.SliceStable(tagRows, func(i, j int) bool { return tagRows[i].Value > tagRows[j].Value })

	accountRows := make([]models.AccountBreakdown, 0, len(led.accounts))
	for accountID, stats := range led.accounts {
		accountRows = append(accountRows, models.AccountBreakdown{
			AccountID: accountID,
			Name:      accountName(accountByID, accountID),
			Cash:      stats.cash,
			BuyGross:  stats.buyGross,
			SellGross: stats.sellGross,
			Fees:      stats.fees,
			Realized:  stats.realized,
			Balance:   stats.balance,
		})
	}
	sort.SliceStable(accountRows, func(i, j int) bool { return accountRows[i].Balance > accountRows[j].Balance })

	closedRows := make([]models.ClosedPosition, 0, len(closed))
	for assetID, agg := range closed {
		if agg.sellQty <= 0 {
			continue
		}
		remaining := 0.0
		if pos, ok := led.positions[assetID]; ok {
			remaining = pos.qty
		}
		asset := assetByID[assetID]
		ticker := asset.Ticker
		if ticker == "" {
			ticker = assetID
		}
		closedRows = append(closedRows, models.ClosedPosition{
			AssetID:      assetID,
			Ticker:       ticker,
			Name:         asset.Name,
			BuyQty:       agg.buyQty,
			SellQty:      agg.sellQty,
			RemainingQty: remaining,
			BuyCost:      agg.buyCost,
			SellValue:    agg.sellValue,
			RealizedPL:   agg.realizedPL,
			Fees:         agg.fees,
			Trades:       agg.trades,
			Closed:       math.Abs(remaining) < closedEps,
		})
	}
	sort.SliceStable(closedRows, func(i, j int) bool { return closedRows[i].RealizedPL > closedRows[j].RealizedPL })

	sales := make([]models.SaleRecord, len(led.sales))
	copy(sales, led.sales)
	sort.SliceStable(sales, func(i, j int) bool {
		if sales[i].Date != sales[j].Date {
			return sales[i].Date > sales[j].Date
		}
		return sales[i].AssetID > sales[j].AssetID
	})

	buyStructure := make(map[string]models.BuyTotals, len(led.buys))
	for assetID, totals := range led.buys {
		buyStructure[assetID] = totals
	}

	return &models.Metrics{
		Holdings:         holdings,
		MarketValue:      marketValue,
		BookValue:        bookValue,
		CashTotal:        cashTotal,
		LiabilitiesTotal: liabilitiesTotal,
		Unrealized:       unrealized,
		Realized:         led.realized,
		Dividends:        led.dividends,
		Fees:             led.fees,
		TotalPL:          totalPL,
		NetWorth:         netWorth,
		NetContribution:  led.netContribution,
		ReturnPct:        returnPct,
		Units:            units,
		ByCurrency:       currencyRows,
		ByTag:            tagRows,
		ByAccount:        accountRows,
		BuyStructure:     buyStructure,
		ClosedSummary:    closedRows,
		ClosedDetails:    sales,
	}
}

func accountName(accounts map[string]models.Account, accountID string) string {
	if accountID == "" || accountID == globalAccountKey {
		return "N/A"
	}
	if account, ok := accounts[accountID]; ok && account.Name != "" {
		return account.Name
	}
	return accountID
}
