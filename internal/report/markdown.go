package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	md "github.com/nao1215/markdown"
)

// Markdown renders r as a GitHub-flavoured Markdown document.
func Markdown(r Report) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(Title)
	doc.PlainText(fmt.Sprintf("Date: %s", r.GeneratedAt.Format("2006-01-02")))
	doc.PlainText("")
	doc.PlainText(md.Bold(fmt.Sprintf("Total Expenses: %s", Dollars(r.Total))))

	doc.H2("Expenses by Category")
	if len(r.Categories) == 0 {
		doc.PlainText("No expenses recorded.")
	} else {
		rows := make([][]string, 0, len(r.Categories))
		for _, c := range r.Categories {
			rows = append(rows, []string{cell(c.Category.String()), c.Amount.String(), c.Share + "%"})
		}
		doc.Table(md.TableSet{
			Header: []string{"Category", "Amount ($)", "Percentage"},
			Rows:   rows,
		})
	}

	doc.H2("Items")
	if len(r.Items) == 0 {
		doc.PlainText("No items.")
	} else {
		rows := make([][]string, 0, len(r.Items))
		for _, it := range r.Items {
			rows = append(rows, []string{
				cell(it.Name),
				cell(it.Category.String()),
				strconv.Itoa(it.Quantity),
				it.UnitPrice.String(),
				it.TotalPrice.String(),
			})
		}
		doc.Table(md.TableSet{
			Header: []string{"Item", "Category", "Quantity", "Unit Price ($)", "Total ($)"},
			Rows:   rows,
		})
	}

	return doc.String()
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// cell makes s safe inside a table cell: pipes are escaped and line breaks
// become spaces.
func cell(s string) string {
	return strings.ReplaceAll(lineBreaks.Replace(s), "|", `\|`)
}
