// Package utils holds the shared scalar/date/text helpers used across backend packages.
package utils

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// accentFolder strips combining marks after NFKD decomposition, so "dywidenda"
// and "dywidenda" with diacritics compare equal.
var accentFolder = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ToNum converts free-form numeric text to a float64, tolerating thousands
// separators and decimal commas. Malformed input degrades to 0, never an error.
func ToNum(value string) float64 {
	text := strings.TrimSpace(value)
	if text == "" {
		return 0
	}
	text = strings.ReplaceAll(text, " ", "")
	text = strings.ReplaceAll(text, " ", "")
	text = strings.ReplaceAll(text, ",", ".")
	// "1.234.56" style leftovers from thousands dots: keep the last dot only.
	if strings.Count(text, ".") > 1 {
		last := strings.LastIndex(text, ".")
		text = strings.ReplaceAll(text[:last], ".", "") + text[last:]
	}
	parsed, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0
	}
	return parsed
}

// ToInt converts text to an int, defaulting on failure.
func ToInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

// Fold lowercases, strips accents and collapses whitespace. It is the
// canonical form used by operation classification and scanner filters.
func Fold(value string) string {
	text := strings.ToLower(strings.TrimSpace(value))
	folded, _, err := transform.String(accentFolder, text)
	if err != nil {
		folded = text
	}
	return strings.Join(strings.Fields(folded), " ")
}

// ContainsFold reports whether every part occurs in text, accent- and
// case-insensitively.
func ContainsFold(text string, parts ...string) bool {
	source := Fold(text)
	for _, part := range parts {
		if !strings.Contains(source, Fold(part)) {
			return false
		}
	}
	return true
}

// SafeDiv divides a by b, returning 0 when the denominator is effectively zero.
func SafeDiv(a, b float64) float64 {
	if math.Abs(b) <= 1e-12 {
		return 0
	}
	return a / b
}

// NowISO returns the current UTC time in RFC3339.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// TodayISO returns the current UTC calendar date as YYYY-MM-DD.
func TodayISO() string {
	return time.Now().UTC().Format("2006-01-02")
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02.01.2006",
	"02-01-2006",
	"02/01/2006",
	"2006-01-02 15:04:05",
	"02.01.2006 15:04:05",
	"2006/01/02 15:04:05",
}

// ParseDateISO parses the broker date formats seen in imports and returns
// YYYY-MM-DD. Unparseable input falls back to today, matching the tolerant
// numeric policy: normalization never fails on bad rows.
func ParseDateISO(value string) string {
	text := strings.TrimSpace(value)
	if text == "" {
		return TodayISO()
	}
	if len(text) >= 10 && text[4] == '-' && text[7] == '-' {
		if _, err := time.Parse("2006-01-02", text[:10]); err == nil {
			return text[:10]
		}
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, text); err == nil {
			return parsed.Format("2006-01-02")
		}
	}
	return TodayISO()
}

// SendJSONError writes a JSON error payload with the given status code.
func SendJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
