package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/brunobiangulo/gooutline/outline"
)

// Entry is one row of a batch summary: the source file and either its
// outline or the reason it failed.
type Entry struct {
	Source string
	Result *outline.Result
	Err    error
}

const (
	summarySheet  = "Summary"
	headingsSheet = "Headings"
)

// WriteWorkbook saves an XLSX summary of a batch run. The "Summary" sheet has
// one row per source file; "Headings" lists every heading found.
func WriteWorkbook(path string, entries []Entry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}
	if _, err := f.NewSheet(headingsSheet); err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating style: %w", err)
	}

	summaryHeader := []any{"File", "Status", "Title", "Pages", "Headings", "Avg Font Size", "Error"}
	if err := writeHeader(f, summarySheet, summaryHeader, bold); err != nil {
		return err
	}
	headingsHeader := []any{"File", "Level", "Text", "Page", "Language", "Font Size"}
	if err := writeHeader(f, headingsSheet, headingsHeader, bold); err != nil {
		return err
	}

	hrow := 2
	for i, e := range entries {
		row := []any{e.Source, "error", "", 0, 0, 0.0, ""}
		if e.Err != nil {
			row[6] = e.Err.Error()
		} else if e.Result != nil {
			row[1] = "ok"
			row[2] = e.Result.Title
			row[3] = e.Result.Metadata.TotalPages
			row[4] = len(e.Result.Outline)
			row[5] = e.Result.Metadata.AvgFontSize
		}
		if err := setRow(f, summarySheet, i+2, row); err != nil {
			return err
		}

		if e.Err != nil || e.Result == nil {
			continue
		}
		for _, h := range e.Result.Outline {
			if err := setRow(f, headingsSheet, hrow, []any{
				e.Source, string(h.Level), h.Text, h.Page, string(h.Language), h.FontSize,
			}); err != nil {
				return err
			}
			hrow++
		}
	}

	_ = f.SetColWidth(summarySheet, "A", "A", 40)
	_ = f.SetColWidth(summarySheet, "C", "C", 40)
	_ = f.SetColWidth(headingsSheet, "A", "A", 40)
	_ = f.SetColWidth(headingsSheet, "C", "C", 60)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, cols []any, style int) error {
	if err := setRow(f, sheet, 1, cols); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(cols), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, row, err)
	}
	return nil
}
