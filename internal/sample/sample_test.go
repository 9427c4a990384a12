package sample

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/explorer/internal/dataset"
	"github.com/JonMunkholm/explorer/internal/stats"
)

func TestLoad_DefaultShape(t *testing.T) {
	var progress []int
	ds, err := Load(context.Background(), Options{Seed: 7}, func(p int) {
		progress = append(progress, p)
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultRows, ds.RowCount())
	assert.Equal(t, Headers, ds.Headers())
	assert.Equal(t, []int{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100}, progress)
}

func TestGenerate_Deterministic(t *testing.T) {
	a := Generate(20, rand.New(rand.NewPCG(1, 2)))
	b := Generate(20, rand.New(rand.NewPCG(1, 2)))
	assert.Equal(t, a.Rows(), b.Rows())
}

func TestGenerate_ColumnTypesAndRanges(t *testing.T) {
	ds := Generate(DefaultRows, rand.New(rand.NewPCG(42, 42)))
	set := stats.ComputeAll(ds)

	for _, name := range []string{"Symbol", "Company", "Sector", "Rating"} {
		cs, _ := set.Get(name)
		assert.Equal(t, stats.TypeString, cs.Type, name)
	}
	for _, name := range []string{"Price", "Volume", "Market Cap", "P/E Ratio", "YTD Return"} {
		cs, _ := set.Get(name)
		assert.Equal(t, stats.TypeNumber, cs.Type, name)
		assert.Zero(t, cs.NullCount, name)
	}

	symbols, _ := set.Get("Symbol")
	assert.Equal(t, DefaultRows, symbols.UniqueCount)

	pe, _ := set.Get("P/E Ratio")
	assert.GreaterOrEqual(t, *pe.Min, 5.0)
	assert.LessOrEqual(t, *pe.Max, 100.0)

	for i := 0; i < ds.RowCount(); i++ {
		row := ds.Row(i)
		price, _ := row.Cell("Price").Number()
		high, _ := row.Cell("52W High").Number()
		low, _ := row.Cell("52W Low").Number()
		assert.GreaterOrEqual(t, high, price)
		assert.LessOrEqual(t, low, price)

		sector, _ := row.Cell("Sector").Text()
		assert.Contains(t, sectors, sector)
	}
}

func TestLoad_Cancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Load(ctx, Options{StepDelay: time.Hour}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoad_RowsOption(t *testing.T) {
	ds, err := Load(context.Background(), Options{Rows: 3, Seed: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, ds.RowCount())
	assert.IsType(t, &dataset.Dataset{}, ds)
}
