package services

import (
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/username/fundfolio/backend/src/analytics"
	"github.com/username/fundfolio/backend/src/utils"
)

const modelPortfolioKey = "modelPortfolio"

// ErrInvalidModelWeights rejects a model portfolio without positive weights.
var ErrInvalidModelWeights = errors.New("model portfolio weights must be positive")

// ModelWeight is one target allocation of the model portfolio, in percent.
type ModelWeight struct {
	Ticker string  `json:"ticker"`
	Weight float64 `json:"weight"`
}

// ModelPortfolio is the stored target allocation document.
type ModelPortfolio struct {
	Name      string        `json:"name"`
	Weights   []ModelWeight `json:"weights"`
	UpdatedAt string        `json:"updatedAt"`
}

// ModelCompareRow is one ticker of the model-vs-actual comparison.
type ModelCompareRow struct {
	Ticker         string  `json:"ticker"`
	TargetSharePct float64 `json:"targetSharePct"`
	ActualSharePct float64 `json:"actualSharePct"`
	DeviationPct   float64 `json:"deviationPct"`
	TargetValue    float64 `json:"targetValue"`
	ActualValue    float64 `json:"actualValue"`
	ValueDelta     float64 `json:"valueDelta"`
	Price          float64 `json:"price"`
	QtyDeltaApprox float64 `json:"qtyDeltaApprox"`
	Action         string  `json:"action"`
}

// ModelCompareSummary aggregates the comparison.
type ModelCompareSummary struct {
	TrackingErrorPct float64 `json:"trackingErrorPct"`
	RebalanceNeeded  bool    `json:"rebalanceNeeded"`
}

// ModelCompareResult is the full comparison response.
type ModelCompareResult struct {
	ModelName   string              `json:"modelName"`
	PortfolioID string              `json:"portfolioId"`
	Rows        []ModelCompareRow   `json:"rows"`
	Summary     ModelCompareSummary `json:"summary"`
	GeneratedAt string              `json:"generatedAt"`
}

// MetaDocumentStore is the slice of the meta store the service uses.
type MetaDocumentStore interface {
	GetJSON(key string, out any) (bool, error)
	SetJSON(key string, value any) error
}

// ModelPortfolioService stores one target allocation and compares the live
// portfolio against it, suggesting buy/sell actions above 1pp deviation.
type ModelPortfolioService struct {
	states StateProvider
	meta   MetaDocumentStore
}

func NewModelPortfolioService(states StateProvider, meta MetaDocumentStore) *ModelPortfolioService {
	return &ModelPortfolioService{states: states, meta: meta}
}

// Get returns the stored model, or an empty default when none was set.
func (s *ModelPortfolioService) Get() (*ModelPortfolio, error) {
	model := &ModelPortfolio{Name: "Portfel wzorcowy", Weights: []ModelWeight{}}
	if _, err := s.meta.GetJSON(modelPortfolioKey, model); err != nil {
		return nil, err
	}
	if model.Weights == nil {
		model.Weights = []ModelWeight{}
	}
	return model, nil
}

// Set validates and persists a model portfolio. Weights are normalized to
// sum to 100 percent.
func (s *ModelPortfolioService) Set(payload ModelPortfolio) (*ModelPortfolio, error) {
	existing, err := s.Get()
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(payload.Name)
	if name == "" {
		name = existing.Name
	}
	if name == "" {
		name = "Portfel wzorcowy"
	}

	parsed := make([]ModelWeight, 0, len(payload.Weights))
	total := 0.0
	for _, weight := range payload.Weights {
		ticker := strings.ToUpper(strings.TrimSpace(weight.Ticker))
		if ticker == "" || weight.Weight <= 0 {
			continue
		}
		parsed = append(parsed, ModelWeight{Ticker: ticker, Weight: weight.Weight})
		total += weight.Weight
	}
	if total <= 0 {
		return nil, ErrInvalidModelWeights
	}
	for i := range parsed {
		parsed[i].Weight = math.Round(parsed[i].Weight/total*100*1e6) / 1e6
	}

	model := &ModelPortfolio{Name: name, Weights: parsed, UpdatedAt: utils.NowISO()}
	if err := s.meta.SetJSON(modelPortfolioKey, model); err != nil {
		return nil, err
	}
	return model, nil
}

// Compare measures the live allocation against the model over the union of
// model tickers and current holdings.
func (s *ModelPortfolioService) Compare(portfolioID string) (*ModelCompareResult, error) {
	model, err := s.Get()
	if err != nil {
		return nil, err
	}
	if len(model.Weights) == 0 {
		return &ModelCompareResult{
			ModelName:   model.Name,
			PortfolioID: portfolioID,
			Rows:        []ModelCompareRow{},
			Summary:     ModelCompareSummary{},
			GeneratedAt: utils.NowISO(),
		}, nil
	}

	state, err := s.states.Get()
	if err != nil {
		return nil, err
	}
	m := analytics.Replay(state, analytics.Options{PortfolioID: portfolioID, UseLivePrices: true})

	actualByTicker := make(map[string]float64)
	valueByTicker := make(map[string]float64)
	priceByTicker := make(map[string]float64)
	for _, holding := range m.Holdings {
		ticker := strings.ToUpper(strings.TrimSpace(holding.Ticker))
		if ticker == "" {
			continue
		}
		actualByTicker[ticker] += holding.Share
		valueByTicker[ticker] += holding.Value
		priceByTicker[ticker] = holding.Price
	}
	for _, asset := range state.Assets {
		ticker := strings.ToUpper(strings.TrimSpace(asset.Ticker))
		if ticker == "" {
			continue
		}
		if _, ok := priceByTicker[ticker]; !ok {
			priceByTicker[ticker] = asset.CurrentPrice.Float()
		}
	}

	targetByTicker := make(map[string]float64, len(model.Weights))
	for _, weight := range model.Weights {
		targetByTicker[weight.Ticker] = weight.Weight
	}
	universe := make([]string, 0, len(targetByTicker)+len(actualByTicker))
	seen := make(map[string]struct{})
	for ticker := range targetByTicker {
		seen[ticker] = struct{}{}
		universe = append(universe, ticker)
	}
	for ticker := range actualByTicker {
		if _, ok := seen[ticker]; !ok {
			universe = append(universe, ticker)
		}
	}
	sort.Strings(universe)

	rows := make([]ModelCompareRow, 0, len(universe))
	sqError := 0.0
	rebalance := false
	for _, ticker := range universe {
		target := targetByTicker[ticker]
		actual := actualByTicker[ticker]
		diff := actual - target
		sqError += diff * diff

		targetValue := m.NetWorth * target / 100
		actualValue := valueByTicker[ticker]
		valueDelta := actualValue - targetValue
		price := priceByTicker[ticker]
		qtyDelta := 0.0
		if price > 0 {
			qtyDelta = math.Abs(valueDelta / price)
		}
		action := "OK"
		if diff > 1 {
			action = "SPRZEDAJ"
		} else if diff < -1 {
			action = "KUP"
		}
		if action != "OK" {
			rebalance = true
		}
		rows = append(rows, ModelCompareRow{
			Ticker:         ticker,
			TargetSharePct: math.Round(target*1e4) / 1e4,
			ActualSharePct: math.Round(actual*1e4) / 1e4,
			DeviationPct:   math.Round(diff*1e4) / 1e4,
			TargetValue:    math.Round(targetValue*100) / 100,
			ActualValue:    math.Round(actualValue*100) / 100,
			ValueDelta:     math.Round(valueDelta*100) / 100,
			Price:          math.Round(price*1e4) / 1e4,
			QtyDeltaApprox: math.Round(qtyDelta*1e6) / 1e6,
			Action:         action,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return math.Abs(rows[i].DeviationPct) > math.Abs(rows[j].DeviationPct)
	})

	trackingError := math.Sqrt(sqError / math.Max(1, float64(len(universe))))
	return &ModelCompareResult{
		ModelName:   model.Name,
		PortfolioID: portfolioID,
		Rows:        rows,
		Summary: ModelCompareSummary{
			TrackingErrorPct: math.Round(trackingError*1e4) / 1e4,
			RebalanceNeeded:  rebalance,
		},
		GeneratedAt: utils.NowISO(),
	}, nil
}
