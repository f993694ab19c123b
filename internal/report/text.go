// Package report renders monthly statistics as plain text and spreadsheets.
package report

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"prorata/internal/core"
)

// Renderer writes human readable reports. Amounts are formatted for the
// configured language and suffixed with the base currency symbol.
type Renderer struct {
	printer *message.Printer
	symbol  string
}

func NewRenderer(lang language.Tag, symbol string) *Renderer {
	return &Renderer{printer: message.NewPrinter(lang), symbol: symbol}
}

// Amount formats minor units with two decimals.
func (r *Renderer) Amount(cents int64) string {
	return r.printer.Sprintf("%.2f", core.Money{Cents: cents}.Units())
}

// Month writes one line per category, a TOTAL line and the repeating
// expenses that contributed to the month.
func (r *Renderer) Month(w io.Writer, o core.MonthOverview) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\nStatistics for %s %d\n", o.Month.Month, o.Month.Year)
	for _, ca := range o.ByCategory {
		fmt.Fprintf(&b, "%16s: %10s %s\n", ca.Category.Name, r.Amount(ca.Amount.Cents), r.symbol)
	}
	fmt.Fprintf(&b, "%16s: %10s %s\n", "TOTAL", r.Amount(o.Total.Cents), r.symbol)

	if len(o.Repeaters) > 0 {
		b.WriteString("\nwith these repeating expenses considered\n")
		for _, e := range o.Repeaters {
			fmt.Fprintf(&b, "  %s\n", e)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Year writes the yearly total per category followed by each month's total.
func (r *Renderer) Year(w io.Writer, months []core.MonthOverview) error {
	if len(months) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\nOverview for %d\n", months[0].Month.Year)

	for i, ca := range months[0].ByCategory {
		amounts := make([]int64, 0, len(months))
		for _, m := range months {
			if i < len(m.ByCategory) {
				amounts = append(amounts, m.ByCategory[i].Amount.Cents)
			}
		}
		sum, err := core.SumCents(amounts...)
		if err != nil {
			return fmt.Errorf("%s yearly total: %w", ca.Category.Name, err)
		}
		fmt.Fprintf(&b, "%16s: %10s %s\n", ca.Category.Name, r.Amount(sum), r.symbol)
	}
	b.WriteString("\n")
	totals := make([]int64, 0, len(months))
	for _, m := range months {
		totals = append(totals, m.Total.Cents)
		fmt.Fprintf(&b, "%16s: %10s %s\n", m.Month.Month, r.Amount(m.Total.Cents), r.symbol)
	}
	grand, err := core.SumCents(totals...)
	if err != nil {
		return fmt.Errorf("yearly total: %w", err)
	}
	fmt.Fprintf(&b, "%16s: %10s %s\n", "TOTAL", r.Amount(grand), r.symbol)

	_, err = io.WriteString(w, b.String())
	return err
}

// History writes one expense per line, prefixed with its ID.
func (r *Renderer) History(w io.Writer, expenses []core.Expense) error {
	var b strings.Builder
	for _, e := range expenses {
		fmt.Fprintf(&b, "%5d  %s\n", e.ID, e)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
