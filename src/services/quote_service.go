package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/username/fundfolio/backend/src/logger"
	"github.com/username/fundfolio/backend/src/metrics"
	"github.com/username/fundfolio/backend/src/models"
	"github.com/username/fundfolio/backend/src/utils"
)

const quoteUserAgent = "FundFolio/1.0"

type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string   `json:"symbol"`
			Currency           string   `json:"currency"`
			RegularMarketPrice *float64 `json:"regularMarketPrice"`
		} `json:"result"`
		Error any `json:"error"`
	} `json:"quoteResponse"`
}

// HistoryPoint is one daily close from the history provider.
type HistoryPoint struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// Candle is one daily OHLCV bar from the history provider.
type Candle struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// QuoteStoreWriter is the slice of the quote store the service writes to.
type QuoteStoreWriter interface {
	Upsert(quotes []models.Quote) error
	List(tickers []string) ([]models.Quote, error)
}

// QuoteService fetches market quotes from Yahoo in one batch and falls back
// to Stooq per ticker for anything Yahoo does not return. Fetched quotes are
// persisted through the quote store so the last known price survives restarts.
type QuoteService struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	store      QuoteStoreWriter
	timeout    time.Duration
}

func NewQuoteService(store QuoteStoreWriter, timeout time.Duration, every time.Duration, burst int) *QuoteService {
	// Yahoo sets consent cookies; keep them across requests.
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Warn("Cookie jar unavailable, continuing without", "error", err)
	}
	if every <= 0 {
		every = 200 * time.Millisecond
	}
	if burst <= 0 {
		burst = 5
	}
	return &QuoteService{
		httpClient: &http.Client{Jar: jar, Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(every), burst),
		store:      store,
		timeout:    timeout,
	}
}

// Cached returns stored quotes without touching any provider.
func (q *QuoteService) Cached(tickers []string) ([]models.Quote, error) {
	return q.store.List(normalizeTickers(tickers))
}

// Refresh fetches current prices for the given tickers and persists them.
// The response preserves the requested ticker order; tickers no provider
// resolved are simply absent.
func (q *QuoteService) Refresh(ctx context.Context, tickers []string) ([]models.Quote, error) {
	requested := normalizeTickers(tickers)
	if len(requested) == 0 {
		return []models.Quote{}, nil
	}

	found := make(map[string]models.Quote)
	for _, quote := range q.fetchYahoo(ctx, requested) {
		found[quote.Ticker] = quote
	}

	var missing []string
	for _, ticker := range requested {
		if _, ok := found[ticker]; !ok {
			missing = append(missing, ticker)
		}
	}
	for _, ticker := range missing {
		if quote, ok := q.fetchStooq(ctx, ticker); ok {
			found[quote.Ticker] = quote
		}
	}

	out := make([]models.Quote, 0, len(found))
	for _, ticker := range requested {
		if quote, ok := found[ticker]; ok {
			out = append(out, quote)
		}
	}
	if err := q.store.Upsert(out); err != nil {
		logger.L.Error("Persisting refreshed quotes failed", "error", err)
	}
	logger.L.Info("Quotes refreshed", "requested", len(requested), "resolved", len(out))
	return out, nil
}

// DailyHistory returns up to limit daily closes for one ticker, oldest first.
func (q *QuoteService) DailyHistory(ctx context.Context, ticker string, limit int) ([]HistoryPoint, error) {
	symbol := strings.TrimSpace(ticker)
	if symbol == "" {
		return []HistoryPoint{}, nil
	}
	if limit <= 0 {
		limit = 400
	}
	for _, candidate := range stooqHistoryCandidates(symbol) {
		text, err := q.get(ctx, "https://stooq.com/q/d/l/?"+url.Values{
			"s": {candidate},
			"i": {"d"},
		}.Encode(), "text/csv")
		if err != nil {
			continue
		}
		rows := parseStooqHistoryCSV(text)
		if len(rows) == 0 {
			continue
		}
		if len(rows) > limit {
			rows = rows[len(rows)-limit:]
		}
		return rows, nil
	}
	return []HistoryPoint{}, nil
}

// DailyCandles returns the full daily OHLCV history for one ticker, oldest
// first. Symbols are resolved through the same alias and suffix candidates
// as DailyHistory.
func (q *QuoteService) DailyCandles(ctx context.Context, ticker string) ([]Candle, error) {
	symbol := strings.TrimSpace(ticker)
	if symbol == "" {
		return []Candle{}, nil
	}
	for _, candidate := range stooqHistoryCandidates(symbol) {
		text, err := q.get(ctx, "https://stooq.com/q/d/l/?"+url.Values{
			"s": {candidate},
			"i": {"d"},
		}.Encode(), "text/csv")
		if err != nil {
			continue
		}
		rows := parseStooqCandlesCSV(text)
		if len(rows) > 0 {
			return rows, nil
		}
	}
	return []Candle{}, nil
}

func (q *QuoteService) fetchYahoo(ctx context.Context, tickers []string) []models.Quote {
	endpoint := "https://query1.finance.yahoo.com/v7/finance/quote?" + url.Values{
		"symbols": {strings.Join(tickers, ",")},
	}.Encode()
	text, err := q.get(ctx, endpoint, "application/json")
	if err != nil {
		metrics.QuoteRefreshTotal.WithLabelValues("yahoo", "error").Inc()
		logger.L.Warn("Yahoo quote fetch failed", "error", err, "tickers", len(tickers))
		return nil
	}

	var payload yahooQuoteResponse
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		metrics.QuoteRefreshTotal.WithLabelValues("yahoo", "error").Inc()
		logger.L.Warn("Yahoo quote payload unparseable", "error", err)
		return nil
	}

	var out []models.Quote
	for _, row := range payload.QuoteResponse.Result {
		symbol := strings.ToUpper(strings.TrimSpace(row.Symbol))
		if symbol == "" || row.RegularMarketPrice == nil {
			continue
		}
		currency := row.Currency
		if currency == "" {
			currency = guessCurrencyFromTicker(symbol)
		}
		out = append(out, models.Quote{
			Ticker:    symbol,
			Price:     *row.RegularMarketPrice,
			Currency:  currency,
			Provider:  "yahoo",
			FetchedAt: utils.NowISO(),
		})
	}
	metrics.QuoteRefreshTotal.WithLabelValues("yahoo", "ok").Inc()
	return out
}

func (q *QuoteService) fetchStooq(ctx context.Context, ticker string) (models.Quote, bool) {
	for _, candidate := range stooqCandidates(ticker) {
		text, err := q.get(ctx, "https://stooq.com/q/l/?"+url.Values{
			"s": {candidate},
			"f": {"sd2t2ohlcv"},
			"h": {""},
			"e": {"csv"},
		}.Encode(), "text/csv")
		if err != nil {
			continue
		}
		close, ok := parseStooqCSV(text)
		if !ok {
			continue
		}
		metrics.QuoteRefreshTotal.WithLabelValues("stooq", "ok").Inc()
		return models.Quote{
			Ticker:    ticker,
			Price:     close,
			Currency:  guessCurrencyFromTicker(candidate),
			Provider:  "stooq",
			FetchedAt: utils.NowISO(),
		}, true
	}
	metrics.QuoteRefreshTotal.WithLabelValues("stooq", "miss").Inc()
	return models.Quote{}, false
}

func (q *QuoteService) get(ctx context.Context, endpoint, accept string) (string, error) {
	if err := q.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("quote rate limiter: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("building quote request: %w", err)
	}
	req.Header.Set("User-Agent", quoteUserAgent)
	req.Header.Set("Accept", accept)

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: status %d", endpoint, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("reading quote body: %w", err)
	}
	return string(body), nil
}

// parseStooqCSV extracts the Close column of the single-row quote CSV.
func parseStooqCSV(text string) (float64, bool) {
	reader := csv.NewReader(strings.NewReader(text))
	header, err := reader.Read()
	if err != nil {
		return 0, false
	}
	row, err := reader.Read()
	if err != nil {
		return 0, false
	}
	closeIdx := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "Close") {
			closeIdx = i
			break
		}
	}
	if closeIdx < 0 || closeIdx >= len(row) {
		return 0, false
	}
	value := strings.TrimSpace(row[closeIdx])
	if value == "" || value == "N/D" {
		return 0, false
	}
	price, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

func parseStooqHistoryCSV(text string) []HistoryPoint {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil || len(records) < 2 {
		return nil
	}
	header := records[0]
	dateIdx, closeIdx := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "date":
			dateIdx = i
		case "close":
			closeIdx = i
		}
	}
	if dateIdx < 0 || closeIdx < 0 {
		return nil
	}
	var out []HistoryPoint
	for _, row := range records[1:] {
		if dateIdx >= len(row) || closeIdx >= len(row) {
			continue
		}
		date := strings.TrimSpace(row[dateIdx])
		closeText := strings.TrimSpace(row[closeIdx])
		if date == "" || closeText == "" || closeText == "N/D" {
			continue
		}
		close, err := strconv.ParseFloat(closeText, 64)
		if err != nil {
			continue
		}
		if len(date) > 10 {
			date = date[:10]
		}
		out = append(out, HistoryPoint{Date: date, Close: close})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// parseStooqCandlesCSV reads the full OHLCV daily export. Rows with an
// unparseable column (Stooq marks gaps as N/D) are skipped; absent columns
// degrade to 0.
func parseStooqCandlesCSV(text string) []Candle {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil || len(records) < 2 {
		return nil
	}
	columns := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns["date"]; !ok {
		return nil
	}
	if _, ok := columns["close"]; !ok {
		return nil
	}

	field := func(row []string, name string) (float64, bool) {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return 0, true
		}
		value := strings.TrimSpace(row[idx])
		if value == "" {
			return 0, true
		}
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}

	var out []Candle
	for _, row := range records[1:] {
		dateIdx := columns["date"]
		if dateIdx >= len(row) {
			continue
		}
		date := strings.TrimSpace(row[dateIdx])
		if date == "" {
			continue
		}
		if len(date) > 10 {
			date = date[:10]
		}
		open, okOpen := field(row, "open")
		high, okHigh := field(row, "high")
		low, okLow := field(row, "low")
		close, okClose := field(row, "close")
		volume, okVolume := field(row, "volume")
		if !okOpen || !okHigh || !okLow || !okClose || !okVolume {
			continue
		}
		out = append(out, Candle{Date: date, Open: open, High: high, Low: low, Close: close, Volume: volume})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func normalizeTickers(tickers []string) []string {
	seen := make(map[string]struct{}, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, ticker := range tickers {
		text := strings.ToUpper(strings.TrimSpace(ticker))
		if text == "" {
			continue
		}
		if _, ok := seen[text]; ok {
			continue
		}
		seen[text] = struct{}{}
		out = append(out, text)
	}
	return out
}

func stooqCandidates(ticker string) []string {
	base := strings.ToLower(strings.TrimSpace(ticker))
	if base == "" {
		return nil
	}
	candidates := []string{base}
	if !strings.Contains(base, ".") {
		candidates = append(candidates, base+".us", base+".pl")
	}
	return candidates
}

// stooqHistoryCandidates maps common index names onto Stooq symbols before
// trying the raw ticker with market suffixes.
var stooqIndexAliases = map[string]string{
	"WIG20":     "wig20",
	"WIG":       "wig",
	"MWIG40":    "mwig40",
	"SWIG80":    "swig80",
	"SP500":     "spx",
	"S&P500":    "spx",
	"GSPC":      "spx",
	"^GSPC":     "spx",
	"NASDAQ100": "ndq",
	"NDX":       "ndq",
	"DAX":       "dax",
	"CAC40":     "cac",
	"FTSE100":   "uk100",
}

func stooqHistoryCandidates(ticker string) []string {
	raw := strings.TrimSpace(ticker)
	if raw == "" {
		return nil
	}
	upper := strings.ToUpper(raw)
	compact := strings.NewReplacer(" ", "", "-", "", "_", "").Replace(upper)

	var candidates []string
	appendUnique := func(value string) {
		for _, existing := range candidates {
			if existing == value {
				return
			}
		}
		candidates = append(candidates, value)
	}

	if alias, ok := stooqIndexAliases[upper]; ok {
		appendUnique(alias)
	} else if alias, ok := stooqIndexAliases[compact]; ok {
		appendUnique(alias)
	}
	base := strings.ToLower(raw)
	appendUnique(base)
	if root, _, found := strings.Cut(base, "."); found {
		appendUnique(root)
	} else {
		appendUnique(base + ".pl")
		appendUnique(base + ".us")
	}
	return candidates
}

func guessCurrencyFromTicker(ticker string) string {
	lower := strings.ToLower(ticker)
	switch {
	case strings.HasSuffix(lower, ".pl") || strings.HasSuffix(lower, ".wa"):
		return "PLN"
	case strings.HasSuffix(lower, ".de"):
		return "EUR"
	case strings.HasSuffix(lower, ".l"):
		return "GBP"
	case strings.HasSuffix(lower, ".sw"):
		return "CHF"
	default:
		return "USD"
	}
}
