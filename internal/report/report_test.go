package report

import (
	"bytes"
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"

	"prorata/internal/core"
)

var (
	food = core.Category{ID: 1, Name: "Food", Slug: "food"}
	rent = core.Category{ID: 2, Name: "Rent", Slug: "rent"}
	eur  = core.Currency{ID: 1, Name: "Euro", Identifier: "EUR", Symbol: "€"}
)

func overview(month time.Month, foodCents, rentCents int64, repeaters ...core.Expense) core.MonthOverview {
	return core.MonthOverview{
		Month: core.Month{Year: 2023, Month: month},
		Total: core.Money{Cents: foodCents + rentCents},
		ByCategory: []core.CategoryAmount{
			{Category: food, Amount: core.Money{Cents: foodCents}},
			{Category: rent, Amount: core.Money{Cents: rentCents}},
		},
		Repeaters: repeaters,
	}
}

func TestRendererMonth(t *testing.T) {
	gym := core.Expense{
		ID: 3, Issued: time.Date(2023, 1, 5, 9, 30, 0, 0, time.UTC), RepeatMonths: 1,
		Price: core.Money{Cents: 2500}, Currency: eur, Category: food,
	}
	var buf bytes.Buffer
	r := NewRenderer(language.English, "€")

	if err := r.Month(&buf, overview(time.May, 1050, 30000, gym)); err != nil {
		t.Fatalf("Month() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Statistics for May 2023",
		"            Food:      10.50 €",
		"           TOTAL:     310.50 €",
		"with these repeating expenses considered",
		"2023-01-05 09:30: 25.00€, Food every 1 month(s)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRendererMonthWithoutRepeaters(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRenderer(language.English, "€").Month(&buf, overview(time.June, 0, 0)); err != nil {
		t.Fatalf("Month() error = %v", err)
	}
	if strings.Contains(buf.String(), "repeating") {
		t.Errorf("unexpected repeaters section:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "0.00 €") {
		t.Errorf("zero totals should be listed:\n%s", buf.String())
	}
}

func TestRendererYear(t *testing.T) {
	var buf bytes.Buffer
	months := []core.MonthOverview{overview(time.January, 100, 200), overview(time.February, 300, 0)}
	if err := NewRenderer(language.English, "$").Year(&buf, months); err != nil {
		t.Fatalf("Year() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Overview for 2023", "Food:       4.00 $", "Rent:       2.00 $", "February:       3.00 $", "TOTAL:       6.00 $"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRendererYearOverflow(t *testing.T) {
	tests := []struct {
		name   string
		months []core.MonthOverview
	}{
		{"category sum", []core.MonthOverview{overview(time.January, math.MaxInt64, 0), overview(time.February, 1, 0)}},
		{"grand total", []core.MonthOverview{
			{Month: core.Month{Year: 2023, Month: time.January}, Total: core.Money{Cents: math.MaxInt64}},
			{Month: core.Month{Year: 2023, Month: time.February}, Total: core.Money{Cents: 1}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := NewRenderer(language.English, "$").Year(&buf, tt.months)
			if !errors.Is(err, core.ErrAmountOverflow) {
				t.Fatalf("Year() error = %v, want ErrAmountOverflow", err)
			}
			if buf.Len() != 0 {
				t.Errorf("partial report written: %q", buf.String())
			}
		})
	}
}

func TestRendererHistory(t *testing.T) {
	var buf bytes.Buffer
	e := core.Expense{
		ID: 7, Issued: time.Date(2023, 1, 20, 18, 0, 0, 0, time.UTC),
		Price: core.Money{Cents: 1234}, Currency: eur, Category: food, Note: "pizza",
	}
	if err := NewRenderer(language.English, "€").History(&buf, []core.Expense{e}); err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if got, want := buf.String(), "    7  2023-01-20 18:00: 12.34€, Food (pizza)\n"; got != want {
		t.Errorf("History() = %q, want %q", got, want)
	}
}

func cellFloat(t *testing.T, f *excelize.File, sheet, axis string) float64 {
	t.Helper()
	v, err := f.GetCellValue(sheet, axis, excelize.Options{RawCellValue: true})
	if err != nil {
		t.Fatalf("GetCellValue(%s) error = %v", axis, err)
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		t.Fatalf("cell %s = %q is not a number", axis, v)
	}
	return n
}

func TestMonthXLSX(t *testing.T) {
	gym := core.Expense{ID: 3, Issued: time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC), RepeatMonths: 1, Price: core.Money{Cents: 2500}, Currency: eur, Category: food}
	data, err := MonthXLSX(overview(time.May, 1050, 30000, gym))
	if err != nil {
		t.Fatalf("MonthXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != "2023-05" || sheets[1] != "Repeating" {
		t.Fatalf("sheets = %v", sheets)
	}
	if name, _ := f.GetCellValue("2023-05", "A2"); name != "Food" {
		t.Errorf("A2 = %q, want Food", name)
	}
	if got := cellFloat(t, f, "2023-05", "B3"); got != 300 {
		t.Errorf("B3 = %v, want 300", got)
	}
	if formula, _ := f.GetCellFormula("2023-05", "B4"); formula != "SUM(B2:B3)" {
		t.Errorf("B4 formula = %q", formula)
	}
	if rep, _ := f.GetCellValue("Repeating", "A2"); !strings.Contains(rep, "every 1 month(s)") {
		t.Errorf("Repeating!A2 = %q", rep)
	}
}

func TestYearXLSX(t *testing.T) {
	months := []core.MonthOverview{overview(time.January, 100, 200), overview(time.February, 300, 0)}
	data, err := YearXLSX(months)
	if err != nil {
		t.Fatalf("YearXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	const sheet = "2023"
	if hdr, _ := f.GetCellValue(sheet, "C1"); hdr != "2023-02" {
		t.Errorf("C1 = %q, want 2023-02", hdr)
	}
	if got := cellFloat(t, f, sheet, "C2"); got != 3 {
		t.Errorf("C2 = %v, want 3", got)
	}
	if formula, _ := f.GetCellFormula(sheet, "D2"); formula != "SUM(B2:C2)" {
		t.Errorf("D2 formula = %q", formula)
	}
	if formula, _ := f.GetCellFormula(sheet, "B4"); formula != "SUM(B2:B3)" {
		t.Errorf("B4 formula = %q", formula)
	}
	if total, _ := f.GetCellValue(sheet, "A4"); total != "TOTAL" {
		t.Errorf("A4 = %q, want TOTAL", total)
	}

	if _, err := YearXLSX(nil); err == nil {
		t.Error("YearXLSX(nil) should fail")
	}
}
