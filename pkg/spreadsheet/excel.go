package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var ErrNoSheet = errors.New("workbook has no sheets")

// Column describes one exported column: the header text and the row key
type Column struct {
	Key    string
	Header string
}

// Options configures export behavior
type Options struct {
	SheetName    string
	FreezeHeader bool
	AutoFilter   bool
	AutoWidth    bool
}

func DefaultOptions(sheet string) Options {
	return Options{
		SheetName:    sheet,
		FreezeHeader: true,
		AutoFilter:   true,
		AutoWidth:    true,
	}
}

// Exporter writes rows of values to a single styled sheet
type Exporter struct {
	file    *excelize.File
	options Options
}

func NewExporter(options Options) *Exporter {
	file := excelize.NewFile()
	file.SetSheetName("Sheet1", options.SheetName)
	return &Exporter{file: file, options: options}
}

// Write writes the header row followed by one row per map
func (e *Exporter) Write(columns []Column, rows []map[string]interface{}) error {
	sheet := e.options.SheetName

	headerStyle, err := e.file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	dateStyle, err := e.file.NewStyle(&excelize.Style{NumFmt: 22})
	if err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}

	widths := make([]float64, len(columns))
	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := e.file.SetCellValue(sheet, cell, col.Header); err != nil {
			return err
		}
		_ = e.file.SetCellStyle(sheet, cell, cell, headerStyle)
		widths[i] = float64(len(col.Header)) * 1.2
	}

	for r, row := range rows {
		for i, col := range columns {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			val := row[col.Key]
			switch v := val.(type) {
			case nil:
				val = ""
			case time.Time:
				if v.IsZero() {
					val = ""
				} else {
					_ = e.file.SetCellStyle(sheet, cell, cell, dateStyle)
				}
			case *time.Time:
				if v == nil || v.IsZero() {
					val = ""
				} else {
					val = *v
					_ = e.file.SetCellStyle(sheet, cell, cell, dateStyle)
				}
			}
			if err := e.file.SetCellValue(sheet, cell, val); err != nil {
				return fmt.Errorf("failed to set cell value: %w", err)
			}
			if w := float64(len(fmt.Sprint(val))) * 1.2; w > widths[i] {
				widths[i] = w
			}
		}
	}

	if e.options.FreezeHeader {
		_ = e.file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
	if e.options.AutoFilter && len(columns) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(columns), 1)
		_ = e.file.AutoFilter(sheet, "A1:"+last, nil)
	}
	if e.options.AutoWidth {
		for i, w := range widths {
			// Min width 10, max width 50
			w = max(10, min(50, w))
			name, _ := excelize.ColumnNumberToName(i + 1)
			_ = e.file.SetColWidth(sheet, name, name, w)
		}
	}
	return nil
}

// WriteTo writes the workbook to w
func (e *Exporter) WriteTo(w io.Writer) (int64, error) {
	return e.file.WriteTo(w)
}

func (e *Exporter) Close() error {
	return e.file.Close()
}

// ReadColumn returns the non-empty trimmed values of the given column
// (0-based) of the first sheet. A first row whose value equals header
// (case-insensitive) is skipped.
func ReadColumn(r io.Reader, col int, header string) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheet
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	var out []string
	for i, row := range rows {
		if col >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[col])
		if v == "" {
			continue
		}
		if i == 0 && header != "" && strings.EqualFold(v, header) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
