// Package report renders the grocery expense summary as a document.
//
// The summary has the grand total, a per-category breakdown with each
// category's share of the total, and the full item table. It is built from
// the store's read interface only and can be rendered as Markdown, HTML or
// styled terminal text.
package report

import (
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"spesa/internal/core"
	"spesa/internal/store"
)

const Title = "Grocery Expense Summary"

// BaseName is the file name used for downloads, without extension.
const BaseName = "grocery_expenses"

type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
)

// FileName returns the download name for f.
func FileName(f Format) string { return BaseName + "." + string(f) }

// CategoryRow is one line of the category breakdown.
type CategoryRow struct {
	Category core.Category
	Amount   core.Money
	// Share is the percentage of the grand total with one decimal.
	Share string
}

type Report struct {
	GeneratedAt time.Time
	Total       core.Money
	Categories  []CategoryRow
	Items       []core.GroceryItem
}

// Build assembles a report over the whole collection.
func Build(items []core.GroceryItem, at time.Time) Report {
	total := store.GrandTotal(items)
	var rows []CategoryRow
	for _, ct := range store.Totals(items) {
		rows = append(rows, CategoryRow{
			Category: ct.Category,
			Amount:   ct.Amount,
			Share:    Percentage(ct.Amount, total, 1),
		})
	}
	return Report{
		GeneratedAt: at,
		Total:       total,
		Categories:  rows,
		Items:       append([]core.GroceryItem{}, items...),
	}
}

var hundred = decimal.NewFromInt(100)

// Percentage returns amount/total*100 rounded to places decimals. A zero
// total yields zero.
func Percentage(amount, total core.Money, places int32) string {
	if total.IsZero() {
		return decimal.Zero.StringFixed(places)
	}
	return amount.Decimal().Div(total.Decimal()).Mul(hundred).StringFixed(places)
}

// Dollars formats m for display, e.g. "$1,234.50".
func Dollars(m core.Money) string {
	return money.New(m.Cents(), money.USD).Display()
}
