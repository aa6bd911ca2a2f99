package analytics

import (
	"strings"

	"github.com/username/fundfolio/backend/src/utils"
)

// Kind is the enumerated operation kind the replay switches on. Operation
// types arrive as free-text broker labels in mixed languages; classification
// folds the label (lowercase, accent-stripped) and scans the marker table
// below. Labels matching no marker are treated as generic cash movements:
// the amount is applied to cash but does not count as an owner contribution.
type Kind int

const (
	KindGenericCash Kind = iota
	KindBuy
	KindSell
	KindConversion
	KindDividend
	KindFee
	KindContribution
)

func (k Kind) String() string {
	switch k {
	case KindBuy:
		return "buy"
	case KindSell:
		return "sell"
	case KindConversion:
		return "conversion"
	case KindDividend:
		return "dividend"
	case KindFee:
		return "fee"
	case KindContribution:
		return "contribution"
	default:
		return "cash"
	}
}

// kindMarkers maps folded label substrings to kinds. Order matters: the
// first matching row wins, so trade kinds are listed before the broad
// cash-movement markers.
var kindMarkers = []struct {
	kind    Kind
	markers []string
}{
	{KindBuy, []string{"kupno", "buy"}},
	{KindSell, []string{"sprzedaz", "sell"}},
	{KindConversion, []string{"konwers", "conversion"}},
	{KindDividend, []string{"dywid", "dividend"}},
	{KindFee, []string{"prowiz", "commission"}},
	{KindContribution, []string{
		"operacja gotowkowa",
		"cash operation",
		"przelew",
		"transfer",
		"lokata",
		"term deposit",
		"pozyczka",
		"loan",
		"zobowiazanie",
		"liability",
		"deposit",
		"withdraw",
	}},
}

// ClassifyOperation maps a free-text operation label to its Kind.
func ClassifyOperation(label string) Kind {
	folded := utils.Fold(label)
	for _, row := range kindMarkers {
		for _, marker := range row.markers {
			if strings.Contains(folded, marker) {
				return row.kind
			}
		}
	}
	return KindGenericCash
}
