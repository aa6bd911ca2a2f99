package models

import (
	"encoding/json"
	"strings"

	"github.com/username/fundfolio/backend/src/utils"
)

// Number is a float64 that tolerates quoted numerics, decimal commas and
// thousands separators on input. Anything unparseable decodes to 0; the
// engine never raises on malformed numeric input.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	text := strings.TrimSpace(string(data))
	if text == "" || text == "null" {
		*n = 0
		return nil
	}
	if text[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*n = 0
			return nil
		}
		*n = Number(utils.ToNum(s))
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		*n = Number(utils.ToNum(text))
		return nil
	}
	*n = Number(f)
	return nil
}

func (n Number) Float() float64 { return float64(n) }

// Tags decodes either a JSON array of strings or a single comma-separated
// string, the two shapes brokers and older exports produce.
type Tags []string

func (t *Tags) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = splitTags(list)
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = splitTags(strings.Split(single, ","))
		return nil
	}
	*t = nil
	return nil
}

func splitTags(raw []string) Tags {
	var out Tags
	for _, item := range raw {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Meta carries document-level settings of the state snapshot.
type Meta struct {
	ActivePlan   string `json:"activePlan"`
	BaseCurrency string `json:"baseCurrency"`
	CreatedAt    string `json:"createdAt"`
}

// Portfolio groups operations; the engine uses it purely as a filter key.
type Portfolio struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Currency  string `json:"currency"`
	Benchmark string `json:"benchmark"`
	Goal      string `json:"goal"`
	ParentID  string `json:"parentId"`
	TwinOf    string `json:"twinOf"`
	GroupName string `json:"groupName"`
	IsPublic  bool   `json:"isPublic"`
	CreatedAt string `json:"createdAt"`
}

// Account is a cash bucket; balances are tracked per account id.
type Account struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Currency  string `json:"currency"`
	CreatedAt string `json:"createdAt"`
}

// Asset is reference data. The engine only ever reads CurrentPrice from it.
type Asset struct {
	ID           string `json:"id"`
	Ticker       string `json:"ticker"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Currency     string `json:"currency"`
	CurrentPrice Number `json:"currentPrice"`
	Risk         Number `json:"risk"`
	Sector       string `json:"sector"`
	Industry     string `json:"industry"`
	Tags         Tags   `json:"tags"`
	Benchmark    string `json:"benchmark"`
	CreatedAt    string `json:"createdAt"`
}

// Operation is one immutable ledger entry. Replay order is
// (Date ascending, CreatedAt ascending).
type Operation struct {
	ID             string `json:"id"`
	Date           string `json:"date"`
	Type           string `json:"type"`
	PortfolioID    string `json:"portfolioId"`
	AccountID      string `json:"accountId"`
	AssetID        string `json:"assetId"`
	TargetAssetID  string `json:"targetAssetId"`
	Quantity       Number `json:"quantity"`
	TargetQuantity Number `json:"targetQuantity"`
	Price          Number `json:"price"`
	Amount         Number `json:"amount"`
	Fee            Number `json:"fee"`
	Currency       string `json:"currency"`
	Tags           Tags   `json:"tags"`
	Note           string `json:"note"`
	CreatedAt      string `json:"createdAt"`
}

// RecurringOp is a template for periodically generated operations.
type RecurringOp struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Type              string `json:"type"`
	Frequency         string `json:"frequency"`
	StartDate         string `json:"startDate"`
	Amount            Number `json:"amount"`
	PortfolioID       string `json:"portfolioId"`
	AccountID         string `json:"accountId"`
	AssetID           string `json:"assetId"`
	Currency          string `json:"currency"`
	LastGeneratedDate string `json:"lastGeneratedDate"`
	CreatedAt         string `json:"createdAt"`
}

// Liability is reference data subtracted from net worth; it is not
// ledger-derived.
type Liability struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Amount    Number `json:"amount"`
	Currency  string `json:"currency"`
	Rate      Number `json:"rate"`
	DueDate   string `json:"dueDate"`
	CreatedAt string `json:"createdAt"`
}

// Alert is a price threshold watched by the alert workflow.
type Alert struct {
	ID            string `json:"id"`
	AssetID       string `json:"assetId"`
	Direction     string `json:"direction"` // "gte" or "lte"
	TargetPrice   Number `json:"targetPrice"`
	CreatedAt     string `json:"createdAt"`
	LastTriggerAt string `json:"lastTriggerAt"`
}

// Note is free-form user text.
type Note struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

// Strategy is a named investment strategy description.
type Strategy struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
}

// State is the full snapshot handed to the analytics engine. It must be
// treated as immutable once obtained from the store.
type State struct {
	Meta         Meta          `json:"meta"`
	Portfolios   []Portfolio   `json:"portfolios"`
	Accounts     []Account     `json:"accounts"`
	Assets       []Asset       `json:"assets"`
	Operations   []Operation   `json:"operations"`
	RecurringOps []RecurringOp `json:"recurringOps"`
	Liabilities  []Liability   `json:"liabilities"`
	Alerts       []Alert       `json:"alerts"`
	Notes        []Note        `json:"notes"`
	Strategies   []Strategy    `json:"strategies"`
	Favorites    []string      `json:"favorites"`
}

// AssetByID builds an id lookup over the snapshot's assets.
func (s *State) AssetByID() map[string]Asset {
	out := make(map[string]Asset, len(s.Assets))
	for _, row := range s.Assets {
		out[row.ID] = row
	}
	return out
}

// AccountByID builds an id lookup over the snapshot's accounts.
func (s *State) AccountByID() map[string]Account {
	out := make(map[string]Account, len(s.Accounts))
	for _, row := range s.Accounts {
		out[row.ID] = row
	}
	return out
}

// PortfolioByID builds an id lookup over the snapshot's portfolios.
func (s *State) PortfolioByID() map[string]Portfolio {
	out := make(map[string]Portfolio, len(s.Portfolios))
	for _, row := range s.Portfolios {
		out[row.ID] = row
	}
	return out
}
