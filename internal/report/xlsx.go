package report

import (
	"fmt"

	"dario.cat/mergo"
	"github.com/xuri/excelize/v2"

	"prorata/internal/core"
)

const amountFormat = "#,##0.00"

// MonthXLSX returns a workbook with the category totals of o on the first
// sheet and the contributing repeating expenses on a second one.
func MonthXLSX(o core.MonthOverview) ([]byte, error) {
	xlsx := newWorkbook()

	sheet := xlsx.GetSheetName(xlsx.GetActiveSheetIndex())
	if err := xlsx.SetSheetName(sheet, o.Month.String()); err != nil {
		return nil, err
	}
	sheet = o.Month.String()

	_ = xlsx.SetColWidth(sheet, "A", "A", 30)
	_ = xlsx.SetColWidth(sheet, "B", "B", 14)
	header(xlsx, sheet, 1, "Category", "Amount")

	row := 2
	for _, ca := range o.ByCategory {
		_ = xlsx.SetCellValue(sheet, cell(1, row), ca.Category.Name)
		_ = xlsx.SetCellValue(sheet, cell(2, row), ca.Amount.Units())
		row++
	}
	sumRow(xlsx, sheet, row, 2, 2, 2, row-1)

	amounts, _ := xlsx.NewStyle(mergeStyles(defaultStyle(), numberFormat()))
	_ = xlsx.SetCellStyle(sheet, cell(2, 2), cell(2, row-1), amounts)

	if len(o.Repeaters) > 0 {
		const rs = "Repeating"
		if _, err := xlsx.NewSheet(rs); err != nil {
			return nil, err
		}
		_ = xlsx.SetColWidth(rs, "A", "A", 60)
		header(xlsx, rs, 1, "Repeating expenses considered")
		for i, e := range o.Repeaters {
			_ = xlsx.SetCellValue(rs, cell(1, i+2), e.String())
		}
	}

	return finish(xlsx)
}

// YearXLSX returns a workbook with one row per category and one column per
// month, with row and column totals as formulas.
func YearXLSX(months []core.MonthOverview) ([]byte, error) {
	if len(months) == 0 {
		return nil, fmt.Errorf("year report: no months")
	}
	xlsx := newWorkbook()

	sheet := fmt.Sprintf("%d", months[0].Month.Year)
	if err := xlsx.SetSheetName(xlsx.GetSheetName(xlsx.GetActiveSheetIndex()), sheet); err != nil {
		return nil, err
	}

	totalCol := len(months) + 2
	titles := []string{"Category"}
	for _, m := range months {
		titles = append(titles, m.Month.String())
	}
	titles = append(titles, "Total")
	header(xlsx, sheet, 1, titles...)

	_ = xlsx.SetColWidth(sheet, "A", "A", 30)
	_ = xlsx.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      1,
		TopLeftCell: "B2",
		ActivePane:  "bottomRight",
	})

	row := 2
	for i, ca := range months[0].ByCategory {
		_ = xlsx.SetCellValue(sheet, cell(1, row), ca.Category.Name)
		for j, m := range months {
			if i < len(m.ByCategory) {
				_ = xlsx.SetCellValue(sheet, cell(j+2, row), m.ByCategory[i].Amount.Units())
			}
		}
		_ = xlsx.SetCellFormula(sheet, cell(totalCol, row), fmt.Sprintf("SUM(%s:%s)", cell(2, row), cell(totalCol-1, row)))
		row++
	}

	amounts, _ := xlsx.NewStyle(mergeStyles(defaultStyle(), numberFormat()))
	_ = xlsx.SetCellStyle(sheet, cell(2, 2), cell(totalCol-1, row-1), amounts)
	totals, _ := xlsx.NewStyle(mergeStyles(defaultStyle(), fontItalic(), numberFormat()))
	_ = xlsx.SetCellStyle(sheet, cell(totalCol, 2), cell(totalCol, row-1), totals)

	sumRow(xlsx, sheet, row, 2, totalCol, 2, row-1)

	return finish(xlsx)
}

func newWorkbook() *excelize.File {
	xlsx := excelize.NewFile()
	_ = xlsx.SetAppProps(&excelize.AppProperties{
		Application: "prorata",
	})
	return xlsx
}

func finish(xlsx *excelize.File) ([]byte, error) {
	xlsx.SetActiveSheet(0)
	buf, err := xlsx.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func header(xlsx *excelize.File, sheet string, row int, titles ...string) {
	for i, t := range titles {
		_ = xlsx.SetCellValue(sheet, cell(i+1, row), t)
	}
	style, _ := xlsx.NewStyle(mergeStyles(defaultStyle(), fontBold(), thinBorder("bottom")))
	_ = xlsx.SetCellStyle(sheet, cell(1, row), cell(len(titles), row), style)
}

// sumRow writes a TOTAL row summing rows first..last of columns fromCol..toCol.
func sumRow(xlsx *excelize.File, sheet string, row, fromCol, toCol, first, last int) {
	_ = xlsx.SetCellValue(sheet, cell(1, row), "TOTAL")
	for col := fromCol; col <= toCol; col++ {
		_ = xlsx.SetCellFormula(sheet, cell(col, row), fmt.Sprintf("SUM(%s:%s)", cell(col, first), cell(col, last)))
	}
	style, _ := xlsx.NewStyle(mergeStyles(defaultStyle(), fontBold(), numberFormat(), thickBorder("top")))
	_ = xlsx.SetCellStyle(sheet, cell(1, row), cell(toCol, row), style)
}

func defaultStyle() *excelize.Style {
	return &excelize.Style{
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#FFFFFF"},
			Pattern: 1,
		},
	}
}

func numberFormat() *excelize.Style {
	f := amountFormat
	return &excelize.Style{
		CustomNumFmt: &f,
	}
}

func fontBold() *excelize.Style {
	return &excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
	}
}

func fontItalic() *excelize.Style {
	return &excelize.Style{
		Font: &excelize.Font{
			Italic: true,
		},
	}
}

func thinBorder(where ...string) *excelize.Style {
	return border(1, where...)
}

func thickBorder(where ...string) *excelize.Style {
	return border(2, where...)
}

func border(weight int, where ...string) *excelize.Style {
	s := &excelize.Style{}
	for _, w := range where {
		s.Border = append(s.Border, excelize.Border{
			Type:  w,
			Color: "#000000",
			Style: weight,
		})
	}
	return s
}

// mergeStyles folds the later styles into the first, later values winning.
func mergeStyles(ext ...*excelize.Style) *excelize.Style {
	if len(ext) == 0 {
		return nil
	}
	for _, e := range ext[1:] {
		_ = mergo.Merge(ext[0], e, mergo.WithOverride)
	}
	return ext[0]
}
