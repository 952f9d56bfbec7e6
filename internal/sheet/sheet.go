// Package sheet parses .xlsx workbooks for the import pipeline.
//
// Both the analyze endpoint and the staging worker read files through this
// package so the preview shown to an operator and the rows actually staged
// obey the same header and end-of-data rules:
//   - only the first worksheet is read
//   - row 1 is the header row; headers are the prefix of populated cells
//   - data starts at row 2 and ends at the first entirely blank row
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type uploads must be PUT with.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Extension is the only accepted file extension.
const Extension = ".xlsx"

var (
	ErrUnreadable  = errors.New("file is not a readable xlsx workbook")
	ErrNoWorksheet = errors.New("workbook has no worksheets")
)

// Cell is one header-keyed value of a data row.
type Cell struct {
	Header string
	Value  any
}

// Row is an ordered list of header/value pairs. Headers are only known at
// runtime, so callers must expect arbitrary keys.
type Row struct {
	Number int // 1-based worksheet row
	Cells  []Cell
}

// Map returns the row as a header-keyed map.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.Cells))
	for _, c := range r.Cells {
		m[c.Header] = c.Value
	}
	return m
}

// Get returns the value under header.
func (r Row) Get(header string) (any, bool) {
	for _, c := range r.Cells {
		if c.Header == header {
			return c.Value, true
		}
	}
	return nil, false
}

// Blank reports whether every cell of the row is empty. A blank row marks the
// end of data; it is not an error.
func (r Row) Blank() bool {
	for _, c := range r.Cells {
		if !isEmpty(c.Value) {
			return false
		}
	}
	return true
}

// Sheet is the parsed first worksheet of a workbook.
type Sheet struct {
	Name    string
	Headers []string

	f    *excelize.File
	raw  [][]string
	date map[int]bool // style id -> date formatted
}

// Parse reads data as an xlsx workbook and extracts the header row of its
// first worksheet.
func Parse(data []byte) (*Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	list := f.GetSheetList()
	if len(list) == 0 {
		f.Close()
		return nil, ErrNoWorksheet
	}
	name := list[0]

	raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: read rows: %v", ErrUnreadable, err)
	}

	s := &Sheet{
		Name: name,
		f:    f,
		raw:  raw,
		date: make(map[int]bool),
	}
	s.Headers = s.readHeaders()
	return s, nil
}

// Close releases the underlying workbook.
func (s *Sheet) Close() error {
	return s.f.Close()
}

// readHeaders stringifies row 1 using the cell display format and stops at the
// first empty cell.
func (s *Sheet) readHeaders() []string {
	if len(s.raw) == 0 {
		return nil
	}
	var headers []string
	for col := 1; col <= len(s.raw[0]); col++ {
		axis, _ := excelize.CoordinatesToCellName(col, 1)
		v, err := s.f.GetCellValue(s.Name, axis)
		if err != nil {
			v = s.raw[0][col-1]
		}
		v = strings.TrimSpace(v)
		if v == "" {
			break
		}
		headers = append(headers, v)
	}
	return headers
}

// Each calls fn for every data row from row 2 until the first blank row or
// the end of the sheet. Iteration stops early when fn returns false.
func (s *Sheet) Each(fn func(Row) bool) {
	if len(s.Headers) == 0 {
		return
	}
	for idx := 1; idx < len(s.raw); idx++ {
		row := s.row(idx)
		if row.Blank() {
			return
		}
		if !fn(row) {
			return
		}
	}
}

// Preview returns up to limit data rows, honoring the blank-row sentinel.
func (s *Sheet) Preview(limit int) []Row {
	var rows []Row
	if limit <= 0 {
		return rows
	}
	s.Each(func(r Row) bool {
		rows = append(rows, r)
		return len(rows) < limit
	})
	return rows
}

func (s *Sheet) row(idx int) Row {
	number := idx + 1
	raw := s.raw[idx]
	row := Row{Number: number, Cells: make([]Cell, len(s.Headers))}
	for col, header := range s.Headers {
		var v any
		if col < len(raw) {
			v = s.typed(col+1, number, raw[col])
		}
		row.Cells[col] = Cell{Header: header, Value: v}
	}
	return row
}

// typed converts a raw cell value into a number, boolean, date or string
// according to the cell type and number format.
func (s *Sheet) typed(col, number int, raw string) any {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	axis, err := excelize.CoordinatesToCellName(col, number)
	if err != nil {
		return raw
	}
	typ, err := s.f.GetCellType(s.Name, axis)
	if err != nil {
		return raw
	}

	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true")
	case excelize.CellTypeDate:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
		return raw
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return raw
		}
		if s.isDateStyled(axis) {
			if t, err := excelize.ExcelDateToTime(n, false); err == nil {
				return t
			}
		}
		return n
	default:
		return raw
	}
}

// builtInDateFormats are the number format ids excel reserves for dates and
// times.
var builtInDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true,
	21: true, 22: true, 45: true, 46: true, 47: true,
}

func (s *Sheet) isDateStyled(axis string) bool {
	styleID, err := s.f.GetCellStyle(s.Name, axis)
	if err != nil || styleID == 0 {
		return false
	}
	if v, ok := s.date[styleID]; ok {
		return v
	}
	isDate := false
	if style, err := s.f.GetStyle(styleID); err == nil && style != nil {
		switch {
		case builtInDateFormats[style.NumFmt]:
			isDate = true
		case style.CustomNumFmt != nil:
			isDate = looksLikeDateFormat(*style.CustomNumFmt)
		}
	}
	s.date[styleID] = isDate
	return isDate
}

func looksLikeDateFormat(format string) bool {
	f := strings.ToLower(format)
	return strings.Contains(f, "yy") || strings.Contains(f, "dd") || strings.Contains(f, "mmm")
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}
