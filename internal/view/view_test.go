package view

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/explorer/internal/dataset"
)

func rowsOf(t *testing.T, headers []string, rows ...[]dataset.Cell) []dataset.Row {
	t.Helper()
	ds, err := dataset.New(headers, rows...)
	require.NoError(t, err)
	return ds.Rows()
}

func column(rows []dataset.Row, name string) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Cell(name).String()
	}
	return out
}

func stocks(t *testing.T) []dataset.Row {
	return rowsOf(t, []string{"id", "Symbol", "Price"},
		[]dataset.Cell{dataset.Number(1), dataset.Text("AAPL"), dataset.Number(180)},
		[]dataset.Cell{dataset.Number(2), dataset.Text("msft"), dataset.Number(410)},
		[]dataset.Cell{dataset.Number(3), dataset.Text("Nvda"), dataset.Null()},
		[]dataset.Cell{dataset.Number(4), dataset.Text("amzn"), dataset.Number(180)},
		[]dataset.Cell{dataset.Number(5), dataset.Text("GOOG"), dataset.Number(150)},
	)
}

func TestSort_NullsLastScenario(t *testing.T) {
	rows := rowsOf(t, []string{"v"},
		[]dataset.Cell{dataset.Number(5)},
		[]dataset.Cell{dataset.Null()},
		[]dataset.Cell{dataset.Number(1)},
	)

	assert.Equal(t, []string{"1", "5", ""}, column(Sort(rows, "v", Asc), "v"))
	assert.Equal(t, []string{"5", "1", ""}, column(Sort(rows, "v", Desc), "v"))
}

func TestSort_Stable(t *testing.T) {
	rows := stocks(t)

	asc := Sort(rows, "Price", Asc)
	assert.Equal(t, []string{"5", "1", "4", "2", "3"}, column(asc, "id"))

	desc := Sort(rows, "Price", Desc)
	assert.Equal(t, []string{"2", "1", "4", "5", "3"}, column(desc, "id"))
}

func TestSort_Idempotent(t *testing.T) {
	rows := stocks(t)

	for _, dir := range []Direction{Asc, Desc} {
		for _, col := range []string{"id", "Symbol", "Price"} {
			once := Sort(rows, col, dir)
			twice := Sort(once, col, dir)
			assert.Equal(t, column(once, "id"), column(twice, "id"), "%s %s", col, dir)
		}
	}
}

func TestSort_TextIgnoresCase(t *testing.T) {
	sorted := Sort(stocks(t), "Symbol", Asc)
	assert.Equal(t, []string{"AAPL", "amzn", "GOOG", "msft", "Nvda"}, column(sorted, "Symbol"))
}

func TestSort_MixedColumnIsLexical(t *testing.T) {
	rows := rowsOf(t, []string{"v"},
		[]dataset.Cell{dataset.Number(10)},
		[]dataset.Cell{dataset.Text("9")},
		[]dataset.Cell{dataset.Number(2)},
	)

	assert.Equal(t, []string{"10", "2", "9"}, column(Sort(rows, "v", Asc), "v"))
}

func TestSort_UnknownColumnKeepsOrder(t *testing.T) {
	rows := stocks(t)
	assert.Equal(t, column(rows, "id"), column(Sort(rows, "nope", Desc), "id"))
}

func TestSort_DoesNotModifyInput(t *testing.T) {
	rows := stocks(t)
	before := column(rows, "id")

	_ = Sort(rows, "Price", Desc)

	assert.Equal(t, before, column(rows, "id"))
}

func TestFilter(t *testing.T) {
	rows := stocks(t)

	tests := []struct {
		term string
		want []string
	}{
		{"", []string{"1", "2", "3", "4", "5"}},
		{"aapl", []string{"1"}},
		{"MS", []string{"2"}},
		{"180", []string{"1", "4"}},
		{"a", []string{"1", "3", "4"}},
		{"zzz", []string{}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("term %q", tt.term), func(t *testing.T) {
			assert.Equal(t, tt.want, column(Filter(rows, tt.term), "id"))
		})
	}
}

func TestFilter_Monotonic(t *testing.T) {
	rows := stocks(t)

	terms := []string{"a", "am", "amz", "amzn"}
	prev := Filter(rows, "")
	for _, term := range terms {
		cur := Filter(rows, term)
		assert.LessOrEqual(t, len(cur), len(prev))
		assert.Subset(t, column(prev, "id"), column(cur, "id"))
		prev = cur
	}
}

func TestPaginate(t *testing.T) {
	rows := stocks(t)

	p := Paginate(rows, 2, 2)
	assert.Equal(t, []string{"3", "4"}, column(p.Rows, "id"))
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 5, p.TotalRows)
	assert.Equal(t, 2, p.Start)
	assert.Equal(t, 4, p.End)

	last := Paginate(rows, 3, 2)
	assert.Equal(t, []string{"5"}, column(last.Rows, "id"))

	beyond := Paginate(rows, 9, 2)
	assert.Empty(t, beyond.Rows)

	clamped := Paginate(rows, 0, 0)
	assert.Equal(t, 1, clamped.Page)
	assert.Equal(t, DefaultPageSize, clamped.PageSize)
	assert.Len(t, clamped.Rows, 5)
}

func TestPaginate_Empty(t *testing.T) {
	p := Paginate(nil, 1, 25)
	assert.Empty(t, p.Rows)
	assert.Equal(t, 1, p.TotalPages)
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		name string
		n    int
		size int
		want int
	}{
		{"empty", 0, 25, 1},
		{"exact", 50, 25, 2},
		{"remainder", 51, 25, 3},
		{"single row", 1, 1, 1},
		{"size below one", 30, 0, 2},
		{"huge size", 2, math.MaxInt, 1},
		{"huge rows", math.MaxInt, 2, math.MaxInt/2 + 1},
		{"both huge", math.MaxInt, math.MaxInt, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TotalPages(tt.n, tt.size))
		})
	}
}

func TestPaginate_LargeValues(t *testing.T) {
	rows := stocks(t)

	huge := Paginate(rows, 1, math.MaxInt)
	assert.Len(t, huge.Rows, 5)
	assert.Equal(t, 1, huge.TotalPages)
	assert.Equal(t, 5, huge.End)

	farPage := Paginate(rows, math.MaxInt/25+2, 25)
	assert.Empty(t, farPage.Rows)
	assert.Equal(t, 5, farPage.Start)
	assert.Equal(t, 5, farPage.End)

	both := Paginate(rows, math.MaxInt, math.MaxInt)
	assert.Empty(t, both.Rows)
	assert.Equal(t, 1, both.TotalPages)
}

func TestPaginate_Coverage(t *testing.T) {
	headers := []string{"n"}
	var cells [][]dataset.Cell
	for i := 0; i < 53; i++ {
		cells = append(cells, []dataset.Cell{dataset.Number(float64(i))})
	}
	rows := rowsOf(t, headers, cells...)

	for _, size := range []int{1, 7, 25, 53, 100} {
		var seen []string
		pages := TotalPages(len(rows), size)
		for page := 1; page <= pages; page++ {
			seen = append(seen, column(Paginate(rows, page, size).Rows, "n")...)
		}
		assert.Equal(t, column(rows, "n"), seen, "size %d", size)
	}
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("DESC")
	require.NoError(t, err)
	assert.Equal(t, Desc, d)

	d, err = ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, Asc, d)

	_, err = ParseDirection("sideways")
	assert.ErrorIs(t, err, ErrInvalidDirection)

	assert.Equal(t, Desc, Asc.Toggle())
	assert.Equal(t, Asc, Desc.Toggle())
}

func TestApply(t *testing.T) {
	res := Apply(stocks(t), Params{
		SearchTerm:    "a",
		SortColumn:    "Price",
		SortDirection: Desc,
		Page:          1,
		PageSize:      2,
	})

	assert.Equal(t, []string{"1", "4", "3"}, column(res.Rows, "id"))
	assert.Equal(t, []string{"1", "4"}, column(res.Page.Rows, "id"))
	assert.Equal(t, 3, res.Page.TotalRows)
	assert.Equal(t, 2, res.Page.TotalPages)
}
