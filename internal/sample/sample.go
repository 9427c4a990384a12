// Package sample generates the demonstration stock dataset.
package sample

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/JonMunkholm/explorer/internal/dataset"
)

// DefaultRows is the row count of the demonstration dataset.
const DefaultRows = 150

// progressSteps is the number of increments between 0 and 100.
const progressSteps = 10

// Headers are the sample's columns, in order.
var Headers = []string{
	"Symbol", "Company", "Sector", "Price", "Change", "Change %", "Volume",
	"Market Cap", "P/E Ratio", "Dividend %", "52W High", "52W Low", "Rating", "YTD Return",
}

var symbols = []string{
	"AAPL", "GOOGL", "MSFT", "AMZN", "META", "NVDA", "TSLA", "JPM", "V", "JNJ",
	"WMT", "PG", "UNH", "HD", "MA", "DIS", "PYPL", "BAC", "ADBE", "NFLX",
	"CMCSA", "XOM", "VZ", "INTC", "T", "PFE", "KO", "PEP", "MRK", "ABT",
	"CVX", "CSCO", "TMO", "ABBV", "CRM", "NKE", "AVGO", "ACN", "COST", "MDT",
}

var sectors = []string{
	"Technology", "Healthcare", "Finance", "Consumer", "Energy",
	"Communications", "Industrial", "Materials", "Utilities", "Real Estate",
}

var ratings = []string{"Strong Buy", "Buy", "Hold", "Sell", "Strong Sell"}

// Options controls Load.
type Options struct {
	Rows      int           // defaults to DefaultRows
	Seed      uint64        // 0 picks a random seed
	StepDelay time.Duration // pause before each progress step
}

// Generate builds a stock dataset of n rows from rng. Symbols are unique;
// repeats get the row number appended.
func Generate(n int, rng *rand.Rand) *dataset.Dataset {
	b, err := dataset.NewBuilder(Headers)
	if err != nil {
		panic(fmt.Sprintf("sample headers: %v", err))
	}

	between := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }
	pick := func(s []string) string { return s[rng.IntN(len(s))] }
	num := func(f float64) dataset.Cell { return dataset.Number(round2(f)) }

	used := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		symbol := pick(symbols)
		if used[symbol] {
			symbol = fmt.Sprintf("%s%d", symbol, i)
		}
		used[symbol] = true

		price := between(10, 500)
		change := between(-15, 15)
		dividend := 0.0
		if rng.Float64() > 0.3 {
			dividend = between(0, 5)
		}

		row := []dataset.Cell{
			dataset.Text(symbol),
			dataset.Text(symbol + " Corporation"),
			dataset.Text(pick(sectors)),
			num(price),
			num(change),
			num(change / price * 100),
			dataset.Number(float64(100_000 + rng.IntN(50_000_000-100_000))),
			num(between(1, 3000)),
			num(between(5, 100)),
			num(dividend),
			num(price * between(1.1, 1.5)),
			num(price * between(0.5, 0.9)),
			dataset.Text(pick(ratings)),
			num(between(-30, 50)),
		}
		if err := b.Append(row); err != nil {
			panic(fmt.Sprintf("sample row: %v", err))
		}
	}
	return b.Build()
}

// Load reports progress 0, 10, ..., 100, waiting StepDelay before each step,
// then returns a generated dataset. It returns ctx.Err() if cancelled while
// waiting.
func Load(ctx context.Context, opts Options, onProgress func(percent int)) (*dataset.Dataset, error) {
	for i := 0; i <= progressSteps; i++ {
		if err := wait(ctx, opts.StepDelay); err != nil {
			return nil, err
		}
		if onProgress != nil {
			onProgress(i * 100 / progressSteps)
		}
	}

	rows := opts.Rows
	if rows <= 0 {
		rows = DefaultRows
	}
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return Generate(rows, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))), nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
