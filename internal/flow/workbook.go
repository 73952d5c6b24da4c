package flow

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	titleFontColor = "FFFFFF"
	titleFillColor = "000000"
	errorFillColor = "FFC7CE"
)

// Assemble renders a title row from mappings and one row per outcome, in the
// given order. Failed rows get the error style on every cell and their
// message in the column right after the last mapping. That column has no
// title.
func Assemble[T any](mappings []FieldMapping[T], outcomes []Outcome[T]) (*excelize.File, error) {
	outcomes = CheckCellLengths(mappings, outcomes)
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: titleFontColor},
		Fill: excelize.Fill{Type: "pattern", Color: []string{titleFillColor}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create title style: %w", err)
	}
	errorStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{errorFillColor}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create error style: %w", err)
	}

	for col, m := range mappings {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellStr(sheet, cell, m.Name); err != nil {
			f.Close()
			return nil, err
		}
	}
	if len(mappings) > 0 {
		first, _ := excelize.CoordinatesToCellName(1, 1)
		last, _ := excelize.CoordinatesToCellName(len(mappings), 1)
		if err := f.SetCellStyle(sheet, first, last, titleStyle); err != nil {
			f.Close()
			return nil, err
		}
	}

	for i, o := range outcomes {
		row := i + 2
		for col, m := range mappings {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellStr(sheet, cell, m.Get(o.Value)); err != nil {
				f.Close()
				return nil, err
			}
		}
		if o.Success {
			continue
		}
		msgCell, _ := excelize.CoordinatesToCellName(len(mappings)+1, row)
		if err := f.SetCellStr(sheet, msgCell, o.ErrorMessage); err != nil {
			f.Close()
			return nil, err
		}
		first, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetCellStyle(sheet, first, msgCell, errorStyle); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// CheckCellLengths fails every outcome holding a value longer than a
// spreadsheet cell can store. The oversized fields are cleared so that no
// truncated text is written, and the message names them.
func CheckCellLengths[T any](mappings []FieldMapping[T], outcomes []Outcome[T]) []Outcome[T] {
	checked := outcomes
	copied := false
	for i, o := range outcomes {
		var tooLong []string
		for _, m := range mappings {
			if utf8.RuneCountInString(m.Get(o.Value)) > excelize.TotalCellChars {
				tooLong = append(tooLong, m.Name)
				o.Value = m.Set(o.Value, "")
			}
		}
		if len(tooLong) == 0 {
			continue
		}
		if !copied {
			checked = append([]Outcome[T](nil), outcomes...)
			copied = true
		}
		msg := fmt.Sprintf("字段 %s 超过 Excel 单元格最大长度 %d", strings.Join(tooLong, ", "), excelize.TotalCellChars)
		if !o.Success && o.ErrorMessage != "" {
			msg = o.ErrorMessage + ", " + msg
		}
		checked[i] = Outcome[T]{Value: o.Value, ErrorMessage: msg}
	}
	return checked
}

// WorkbookBytes serialises f as xlsx.
func WorkbookBytes(f *excelize.File) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
