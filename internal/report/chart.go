package report

import (
	"spesa/internal/core"
	"spesa/internal/store"
)

// Slice is one segment of the category chart.
type Slice struct {
	Label   string  `json:"label"`
	Amount  string  `json:"amount"`
	Value   float64 `json:"value"`
	Color   string  `json:"color"`
	Percent int     `json:"percent"`
}

// Chart is the dataset for a pie or bar chart of spending per category.
type Chart struct {
	Total  string  `json:"total"`
	Slices []Slice `json:"slices"`
}

var categoryColors = map[core.Category]string{
	core.Produce:      "rgba(40, 167, 69, 0.8)",
	core.Dairy:        "rgba(13, 110, 253, 0.8)",
	core.Meat:         "rgba(220, 53, 69, 0.8)",
	core.Bakery:       "rgba(255, 193, 7, 0.8)",
	core.FrozenFoods:  "rgba(32, 201, 151, 0.8)",
	core.CannedGoods:  "rgba(253, 126, 20, 0.8)",
	core.DryGoods:     "rgba(102, 16, 242, 0.8)",
	core.Beverages:    "rgba(13, 110, 253, 0.7)",
	core.Snacks:       "rgba(255, 193, 7, 0.7)",
	core.Household:    "rgba(111, 66, 193, 0.8)",
	core.PersonalCare: "rgba(232, 62, 140, 0.8)",
	core.Other:        "rgba(108, 117, 125, 0.8)",
}

var fallbackColors = []string{
	"rgba(255, 99, 132, 0.8)",
	"rgba(54, 162, 235, 0.8)",
	"rgba(255, 206, 86, 0.8)",
	"rgba(75, 192, 192, 0.8)",
	"rgba(153, 102, 255, 0.8)",
	"rgba(255, 159, 64, 0.8)",
}

// Color returns the chart color of c, cycling through a fallback palette by
// position for labels outside the enumeration.
func Color(c core.Category, i int) string {
	if col, ok := categoryColors[c]; ok {
		return col
	}
	return fallbackColors[i%len(fallbackColors)]
}

// BuildChart derives the chart dataset from the whole collection.
func BuildChart(items []core.GroceryItem) Chart {
	total := store.GrandTotal(items)
	ch := Chart{Total: total.String(), Slices: []Slice{}}
	for i, ct := range store.Totals(items) {
		pct := 0
		if !total.IsZero() {
			pct = int(ct.Amount.Decimal().Div(total.Decimal()).Mul(hundred).Round(0).IntPart())
		}
		ch.Slices = append(ch.Slices, Slice{
			Label:   ct.Category.String(),
			Amount:  ct.Amount.String(),
			Value:   ct.Amount.Float64(),
			Color:   Color(ct.Category, i),
			Percent: pct,
		})
	}
	return ch
}
