package query

import (
	"slices"
	"strings"
)

// ColumnHints lists, per role, the header names a rule looks for. The first
// entry is the canonical header; the rest are aliases matched as
// case-insensitive substrings.
type ColumnHints struct {
	Identifier []string
	MarketCap  []string
	YTDReturn  []string
	Sector     []string
	Valuation  []string
}

// DefaultHints matches the column names of the bundled stock sample and
// common variants.
func DefaultHints() ColumnHints {
	return ColumnHints{
		Identifier: []string{"Symbol", "ticker", "symbol", "name"},
		MarketCap:  []string{"Market Cap", "market cap", "marketcap", "market_cap", "capitalization"},
		YTDReturn:  []string{"YTD Return", "ytd"},
		Sector:     []string{"Sector", "sector", "industry"},
		Valuation:  []string{"P/E Ratio", "p/e", "pe ratio", "pe_ratio"},
	}
}

// resolve returns the header a role maps to, or "" when nothing matches.
// Exact matches win over alias containment.
func (ColumnHints) resolve(headers []string, aliases []string) string {
	for _, a := range aliases {
		if slices.Contains(headers, a) {
			return a
		}
	}
	for _, a := range aliases {
		needle := strings.ToLower(a)
		for _, h := range headers {
			if strings.Contains(strings.ToLower(h), needle) {
				return h
			}
		}
	}
	return ""
}

// SuggestedPrompts returns example questions the rule set answers.
func SuggestedPrompts() []string {
	return []string{
		"Show me the top 5 stocks by market cap",
		"Which stocks have positive YTD returns?",
		"Compare technology sector stocks",
		"Find stocks with high P/E ratios",
	}
}
