// Package query answers free-text questions about a dataset.
//
// Interpreter is the seam for swapping backends. RuleInterpreter is the
// built-in, deterministic implementation: it matches keywords in priority
// order and never fails on an unrecognised prompt.
package query

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/JonMunkholm/explorer/internal/dataset"
	"github.com/JonMunkholm/explorer/internal/ingest"
)

// Intent names the rule that produced an Answer.
type Intent string

const (
	IntentTopMarketCap  Intent = "top_market_cap"
	IntentPositiveYTD   Intent = "positive_ytd"
	IntentSector        Intent = "sector"
	IntentHighValuation Intent = "high_valuation"
	IntentChart         Intent = "chart"
	IntentSummary       Intent = "summary"
)

// topN is the number of rows listed by the ranking rule.
const topN = 5

// Answer is an interpreter response. RowsAffected is the number of rows the
// answer describes; nil when the backend does not report one.
type Answer struct {
	Text         string
	RowsAffected *int
	Intent       Intent
}

// Interpreter turns a prompt into an Answer. Implementations must not modify
// the dataset.
type Interpreter interface {
	Interpret(ctx context.Context, prompt string, ds *dataset.Dataset) (Answer, error)
}

// RuleInterpreter is a keyword-driven Interpreter.
type RuleInterpreter struct {
	Hints ColumnHints
}

// NewRuleInterpreter returns a RuleInterpreter using DefaultHints.
func NewRuleInterpreter() *RuleInterpreter {
	return &RuleInterpreter{Hints: DefaultHints()}
}

type rule struct {
	intent  Intent
	matches func(prompt string) bool
	answer  func(r *RuleInterpreter, prompt string, ds *dataset.Dataset) (string, int)
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{IntentTopMarketCap, allOf("top", "market cap"), (*RuleInterpreter).topMarketCap},
	{IntentPositiveYTD, allOf("positive", "ytd"), (*RuleInterpreter).positiveYTD},
	{IntentSector, anyOf("technology", "tech"), (*RuleInterpreter).technology},
	{IntentHighValuation, anyOf("p/e", "pe ratio"), (*RuleInterpreter).highValuation},
	{IntentChart, anyOf("graph", "chart", "volume"), (*RuleInterpreter).chart},
}

// Interpret implements Interpreter. It only fails when ctx is already done.
func (r *RuleInterpreter) Interpret(ctx context.Context, prompt string, ds *dataset.Dataset) (Answer, error) {
	if err := ctx.Err(); err != nil {
		return Answer{}, err
	}

	lower := strings.ToLower(prompt)
	for _, rl := range rules {
		if rl.matches(lower) {
			text, n := rl.answer(r, prompt, ds)
			return Answer{Text: text, RowsAffected: &n, Intent: rl.intent}, nil
		}
	}

	text, n := r.summary(prompt, ds)
	return Answer{Text: text, RowsAffected: &n, Intent: IntentSummary}, nil
}

func allOf(words ...string) func(string) bool {
	return func(p string) bool {
		for _, w := range words {
			if !strings.Contains(p, w) {
				return false
			}
		}
		return true
	}
}

func anyOf(words ...string) func(string) bool {
	return func(p string) bool {
		for _, w := range words {
			if strings.Contains(p, w) {
				return true
			}
		}
		return false
	}
}

func (r *RuleInterpreter) topMarketCap(_ string, ds *dataset.Dataset) (string, int) {
	headers := ds.Headers()
	capCol := r.Hints.resolve(headers, r.Hints.MarketCap)
	idCol := r.Hints.resolve(headers, r.Hints.Identifier)

	ranked := rankDescending(ds.Rows(), capCol)
	n := min(topN, len(ranked))

	var b strings.Builder
	fmt.Fprintf(&b, "Top %d rows by market capitalization:\n\n", n)
	for i, row := range ranked[:n] {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, identify(row.row, idCol, row.pos), row.row.Cell(capCol).String())
	}
	b.WriteString("\nThese are the largest valuations in the dataset.")
	return b.String(), n
}

func (r *RuleInterpreter) positiveYTD(_ string, ds *dataset.Dataset) (string, int) {
	col := r.Hints.resolve(ds.Headers(), r.Hints.YTDReturn)
	n := countWhere(ds, func(row dataset.Row) bool {
		v, ok := numeric(row.Cell(col))
		return ok && v > 0
	})
	return fmt.Sprintf("%d rows have a positive year-to-date return.\n\n"+
		"Gains are spread across several sectors; compare sector averages to find the strongest groups.", n), n
}

func (r *RuleInterpreter) technology(_ string, ds *dataset.Dataset) (string, int) {
	col := r.Hints.resolve(ds.Headers(), r.Hints.Sector)
	n := countWhere(ds, func(row dataset.Row) bool {
		s, ok := row.Cell(col).Text()
		return ok && s == "Technology"
	})
	return fmt.Sprintf("The Technology sector has %d rows in this dataset.\n\n"+
		"Technology names usually carry higher valuation ratios and stronger year-to-date returns than the rest of the market.", n), n
}

func (r *RuleInterpreter) highValuation(_ string, ds *dataset.Dataset) (string, int) {
	col := r.Hints.resolve(ds.Headers(), r.Hints.Valuation)
	n := countWhere(ds, func(row dataset.Row) bool {
		v, ok := numeric(row.Cell(col))
		return ok && v > 50
	})
	return fmt.Sprintf("%d rows have a P/E ratio above 50.\n\n"+
		"A high ratio can signal growth expectations or overvaluation; compare against the sector average before drawing conclusions.", n), n
}

func (r *RuleInterpreter) chart(_ string, ds *dataset.Dataset) (string, int) {
	n := ds.RowCount()
	return fmt.Sprintf("[Chart placeholder]\n\n"+
		"Charts are not available yet. All %d rows are ready to plot once a charting backend is connected.", n), n
}

func (r *RuleInterpreter) summary(prompt string, ds *dataset.Dataset) (string, int) {
	n := ds.RowCount()
	return fmt.Sprintf("You asked: %q\n\n"+
		"The dataset has %d rows and %d columns. Try asking about:\n"+
		"- the top rows by market cap\n"+
		"- positive YTD returns\n"+
		"- a sector such as Technology\n"+
		"- high P/E ratios", prompt, n, ds.ColumnCount()), n
}

type rankedRow struct {
	row   dataset.Row
	pos   int
	value float64
}

// rankDescending orders rows by column, largest first. Missing or
// non-numeric values rank as 0. Ties keep dataset order.
func rankDescending(rows []dataset.Row, column string) []rankedRow {
	ranked := make([]rankedRow, len(rows))
	for i, row := range rows {
		v, _ := numeric(row.Cell(column))
		ranked[i] = rankedRow{row: row, pos: i, value: v}
	}
	slices.SortStableFunc(ranked, func(a, b rankedRow) int {
		return cmp.Compare(b.value, a.value)
	})
	return ranked
}

func identify(row dataset.Row, column string, pos int) string {
	if s := row.Cell(column).String(); s != "" {
		return s
	}
	return fmt.Sprintf("row %d", pos+1)
}

func countWhere(ds *dataset.Dataset, keep func(dataset.Row) bool) int {
	n := 0
	for i := 0; i < ds.RowCount(); i++ {
		if keep(ds.Row(i)) {
			n++
		}
	}
	return n
}

// numeric reads a number from a Number cell or from text that parses as one.
func numeric(c dataset.Cell) (float64, bool) {
	if f, ok := c.Number(); ok {
		return f, true
	}
	if s, ok := c.Text(); ok {
		return ingest.ParseNumber(s)
	}
	return 0, false
}
