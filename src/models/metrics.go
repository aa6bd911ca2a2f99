package models

// Holding is one row of the point-in-time holdings table: an asset with
// non-zero exposure after replay, priced and weighted.
type Holding struct {
	AssetID       string   `json:"assetId"`
	Ticker        string   `json:"ticker"`
	Name          string   `json:"name"`
	AssetType     string   `json:"assetType"`
	Currency      string   `json:"currency"`
	Risk          float64  `json:"risk"`
	Sector        string   `json:"sector"`
	Industry      string   `json:"industry"`
	Benchmark     string   `json:"benchmark"`
	Tags          []string `json:"tags"`
	Qty           float64  `json:"qty"`
	Price         float64  `json:"price"`
	Value         float64  `json:"value"`
	Cost          float64  `json:"cost"`
	Unrealized    float64  `json:"unrealized"`
	UnrealizedPct float64  `json:"unrealizedPct"`
	Share         float64  `json:"share"`
}

// CurrencyExposure is holdings value plus cash grouped by currency.
type CurrencyExposure struct {
	Currency string  `json:"currency"`
	Value    float64 `json:"value"`
	Share    float64 `json:"share"`
}

// TagExposure is holdings value grouped by tag.
type TagExposure struct {
	Tag   string  `json:"tag"`
	Value float64 `json:"value"`
	Share float64 `json:"share"`
}

// AccountBreakdown is the cash ledger of one account after replay.
type AccountBreakdown struct {
	AccountID string  `json:"accountId"`
	Name      string  `json:"name"`
	Cash      float64 `json:"cash"`
	BuyGross  float64 `json:"buyGross"`
	SellGross float64 `json:"sellGross"`
	Fees      float64 `json:"fees"`
	Realized  float64 `json:"realized"`
	Balance   float64 `json:"balance"`
}

// SaleRecord is the per-sale detail log entry appended on every sell.
type SaleRecord struct {
	Date       string  `json:"date"`
	AssetID    string  `json:"assetId"`
	Qty        float64 `json:"qty"`
	Price      float64 `json:"price"`
	Gross      float64 `json:"gross"`
	Fee        float64 `json:"fee"`
	CostOut    float64 `json:"costOut"`
	RealizedPL float64 `json:"realizedPL"`
	Currency   string  `json:"currency"`
}

// ClosedPosition is the lifetime buy/sell aggregate for one asset. Unlike
// Holding it spans the entire operation list, not just up to a cutoff.
type ClosedPosition struct {
	AssetID      string  `json:"assetId"`
	Ticker       string  `json:"ticker"`
	Name         string  `json:"name"`
	BuyQty       float64 `json:"buyQty"`
	SellQty      float64 `json:"sellQty"`
	RemainingQty float64 `json:"remainingQty"`
	BuyCost      float64 `json:"buyCost"`
	SellValue    float64 `json:"sellValue"`
	RealizedPL   float64 `json:"realizedPL"`
	Fees         float64 `json:"fees"`
	Trades       int     `json:"trades"`
	Closed       bool    `json:"closed"`
}

// BuyTotals accumulates cumulative bought quantity and cost per asset.
type BuyTotals struct {
	Qty    float64 `json:"qty"`
	Amount float64 `json:"amount"`
}

// Metrics is the full result of one engine invocation. It is constructed
// once per call and never mutated after return.
type Metrics struct {
	Holdings         []Holding            `json:"holdings"`
	MarketValue      float64              `json:"marketValue"`
	BookValue        float64              `json:"bookValue"`
	CashTotal        float64              `json:"cashTotal"`
	LiabilitiesTotal float64              `json:"liabilitiesTotal"`
	Unrealized       float64              `json:"unrealized"`
	Realized         float64              `json:"realized"`
	Dividends        float64              `json:"dividends"`
	Fees             float64              `json:"fees"`
	TotalPL          float64              `json:"totalPL"`
	NetWorth         float64              `json:"netWorth"`
	NetContribution  float64              `json:"netContribution"`
	ReturnPct        float64              `json:"returnPct"`
	Units            float64              `json:"units"`
	ByCurrency       []CurrencyExposure   `json:"byCurrency"`
	ByTag            []TagExposure        `json:"byTag"`
	ByAccount        []AccountBreakdown   `json:"byAccount"`
	BuyStructure     map[string]BuyTotals `json:"buyStructure"`
	ClosedSummary    []ClosedPosition     `json:"closedSummary"`
	ClosedDetails    []SaleRecord         `json:"closedDetails"`
}

// SeriesPoint is one date of the historical value series.
type SeriesPoint struct {
	Date             string  `json:"date"`
	NetWorth         float64 `json:"netWorth"`
	MarketValue      float64 `json:"marketValue"`
	CashTotal        float64 `json:"cashTotal"`
	LiabilitiesTotal float64 `json:"liabilitiesTotal"`
	TotalPL          float64 `json:"totalPL"`
	ReturnPct        float64 `json:"returnPct"`
	UnitValue        float64 `json:"unitValue"`
}

// DatedValue is a generic (date, value) pair used by derived series.
type DatedValue struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Quote is a cached market quote row.
type Quote struct {
	Ticker    string  `json:"ticker"`
	Price     float64 `json:"price"`
	Currency  string  `json:"currency"`
	Provider  string  `json:"provider"`
	FetchedAt string  `json:"fetchedAt"`
}

// AlertEvent is one row of the alert trigger log.
type AlertEvent struct {
	ID           int64   `json:"id"`
	AlertID      string  `json:"alertId"`
	AssetID      string  `json:"assetId"`
	Ticker       string  `json:"ticker"`
	Direction    string  `json:"direction"`
	TargetPrice  float64 `json:"targetPrice"`
	CurrentPrice float64 `json:"currentPrice"`
	Status       string  `json:"status"`
	Message      string  `json:"message"`
	EventTime    string  `json:"eventTime"`
}
