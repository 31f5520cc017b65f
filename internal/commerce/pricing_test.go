package commerce

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
)

func latteProduct() domain.Product {
	return domain.Product{
		ID:        "prd_latte",
		Name:      "Caffe Latte",
		BasePrice: 45000,
		VariantGroups: []domain.VariantGroup{
			{Name: "Milk", Options: []domain.VariantOption{{Label: "Whole"}, {Label: "Oat", PriceDelta: 8000}}},
			{Name: "Size", Options: []domain.VariantOption{{Label: "S"}, {Label: "M", PriceDelta: 5000}, {Label: "L", PriceDelta: 10000}}},
		},
	}
}

func TestComputeUnitPriceUsesSizeGroup(t *testing.T) {
	p := latteProduct()

	assert.Equal(t, int64(45000), ComputeUnitPrice(p, 0))
	assert.Equal(t, int64(50000), ComputeUnitPrice(p, 1))
	assert.Equal(t, int64(55000), ComputeUnitPrice(p, 2))
}

func TestComputeUnitPriceOutOfRangeFallsBackToFirstOption(t *testing.T) {
	p := latteProduct()

	for _, idx := range []int{NoVariant, 3, 99, math.MinInt32} {
		assert.Equal(t, ComputeUnitPrice(p, 0), ComputeUnitPrice(p, idx), "index %d", idx)
	}
}

func TestComputeUnitPriceWithoutVariants(t *testing.T) {
	p := domain.Product{BasePrice: 30000}
	assert.Equal(t, int64(30000), ComputeUnitPrice(p, 2))

	p.VariantGroups = []domain.VariantGroup{{Name: "size"}}
	assert.Equal(t, int64(30000), ComputeUnitPrice(p, 0))
}

func TestComputeUnitPriceFallsBackToFirstGroup(t *testing.T) {
	p := domain.Product{
		BasePrice:     20000,
		VariantGroups: []domain.VariantGroup{{Name: "Roast", Options: []domain.VariantOption{{Label: "Light"}, {Label: "Dark", PriceDelta: 2000}}}},
	}
	assert.Equal(t, int64(22000), ComputeUnitPrice(p, 1))
}

func TestComputeUnitPriceIgnoresNegativeInputs(t *testing.T) {
	p := domain.Product{
		BasePrice:     -100,
		VariantGroups: []domain.VariantGroup{{Name: "Size", Options: []domain.VariantOption{{Label: "S", PriceDelta: -500}}}},
	}
	assert.Equal(t, int64(0), ComputeUnitPrice(p, 0))
}

func TestComputeUnitPriceForSelection(t *testing.T) {
	p := latteProduct()

	price := ComputeUnitPriceForSelection(p, map[string]int{"size": 2, "MILK": 1})
	assert.Equal(t, int64(45000+10000+8000), price)

	assert.Equal(t, int64(45000), ComputeUnitPriceForSelection(p, nil))
	assert.Equal(t, int64(45000), ComputeUnitPriceForSelection(p, map[string]int{"Size": 7}))

	choices := VariantChoices(p, map[string]int{"Size": 1})
	require.Len(t, choices, 2)
	assert.Equal(t, domain.VariantChoice{Name: "Milk", Value: "Whole", Index: 0}, choices[0])
	assert.Equal(t, domain.VariantChoice{Name: "Size", Value: "M", Index: 1}, choices[1])
}

func TestClampQuantity(t *testing.T) {
	stock := 3
	zero := 0

	assert.Equal(t, 1, ClampQuantity(0, nil))
	assert.Equal(t, 1, ClampQuantity(-4, &stock))
	assert.Equal(t, 3, ClampQuantity(10, &stock))
	assert.Equal(t, 2, ClampQuantity(2, &stock))
	assert.Equal(t, 50, ClampQuantity(50, nil))
	assert.Equal(t, 5, ClampQuantity(5, &zero))
}

func TestComputeOrderTotals(t *testing.T) {
	lines := []Line{
		{UnitPrice: 45000, Quantity: 2},
		{UnitPrice: 30000, Quantity: 0},
		{UnitPrice: 12000, Quantity: 1},
	}

	totals := ComputeOrderTotals(lines, 15000, 5000, 3000)

	assert.Equal(t, int64(90000+30000+12000), totals.Subtotal)
	assert.Equal(t, totals.Subtotal+15000-5000+3000, totals.Total)
}

func TestComputeOrderTotalsIsOrderIndependent(t *testing.T) {
	lines := []Line{{UnitPrice: 1, Quantity: 3}, {UnitPrice: 70, Quantity: 2}, {UnitPrice: 9, Quantity: 5}}
	reversed := []Line{lines[2], lines[1], lines[0]}

	assert.Equal(t, ComputeOrderTotals(lines, 0, 0, 0), ComputeOrderTotals(reversed, 0, 0, 0))
}

func TestComputeOrderTotalsCoercesNegativeCharges(t *testing.T) {
	totals := ComputeOrderTotals([]Line{{UnitPrice: 1000, Quantity: 1}}, -5, -10, -1)
	assert.Equal(t, Totals{Subtotal: 1000, Total: 1000}, totals)
}

func TestCoerceAmount(t *testing.T) {
	cases := []struct {
		name  string
		input any
		want  int64
	}{
		{name: "nil", input: nil, want: 0},
		{name: "int", input: 45000, want: 45000},
		{name: "negative", input: -3, want: 0},
		{name: "float", input: 1999.99, want: 1999},
		{name: "nan", input: math.NaN(), want: 0},
		{name: "inf", input: math.Inf(1), want: 0},
		{name: "string", input: " 45000 ", want: 45000},
		{name: "grouped string", input: "1,250,000", want: 1250000},
		{name: "garbage", input: "free", want: 0},
		{name: "json number", input: json.Number("32000"), want: 32000},
		{name: "decimal", input: decimal.RequireFromString("12.5"), want: 12},
		{name: "bool", input: true, want: 0},
		{name: "max int64", input: "9223372036854775807", want: math.MaxInt64},
		{name: "past int64", input: "9223372036854775808", want: 0},
		{name: "exponent string", input: "1e30", want: 0},
		{name: "huge float", input: 1e25, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CoerceAmount(tc.input))
		})
	}
}

func TestCoerceQuantity(t *testing.T) {
	assert.Equal(t, 3, CoerceQuantity("3"))
	assert.Equal(t, 0, CoerceQuantity("-1"))
	assert.Equal(t, math.MaxInt32, CoerceQuantity(int64(math.MaxInt64)))
}
