package tabular

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// workbookReader reads the first sheet of an XLSX workbook. Raw cell values
// are rendered to the strings the record parser expects: date-styled
// numerics as ISO calendar dates, plain numerics as integer strings when
// they have no fractional part, booleans as "true"/"false", anything else
// as the stored text or "".
type workbookReader struct {
	file    *excelize.File
	sheet   string
	headers []string
	rows    [][]string
	pos     int
}

func newWorkbookReader(src io.ReadCloser) (*workbookReader, error) {
	defer src.Close()

	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	sheet := f.GetSheetName(0)
	if sheet == "" {
		f.Close()
		return nil, fmt.Errorf("workbook has no sheets")
	}

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(raw) == 0 {
		f.Close()
		return nil, fmt.Errorf("empty workbook")
	}

	r := &workbookReader{file: f, sheet: sheet}
	r.headers = r.renderRow(raw[0], 1)
	r.rows = make([][]string, 0, len(raw)-1)
	for i, cells := range raw[1:] {
		r.rows = append(r.rows, r.renderRow(cells, i+2))
	}
	return r, nil
}

func (r *workbookReader) Kind() Kind        { return KindWorkbook }
func (r *workbookReader) Headers() []string { return r.headers }

func (r *workbookReader) Next() (Row, error) {
	if r.pos >= len(r.rows) {
		return nil, io.EOF
	}
	row := sliceRow(r.rows[r.pos])
	r.pos++
	return row, nil
}

func (r *workbookReader) Close() error { return r.file.Close() }

// renderRow renders the raw cell values of sheet row rowNum (1-based).
func (r *workbookReader) renderRow(raw []string, rowNum int) []string {
	out := make([]string, len(raw))
	for col, v := range raw {
		cell, err := excelize.CoordinatesToCellName(col+1, rowNum)
		if err != nil {
			continue
		}
		out[col] = r.renderCell(v, cell)
	}
	return out
}

func (r *workbookReader) renderCell(raw, cell string) string {
	if raw == "" {
		return ""
	}

	cellType, err := r.file.GetCellType(r.sheet, cell)
	if err != nil {
		return raw
	}

	switch cellType {
	case excelize.CellTypeBool:
		if raw == "1" || strings.EqualFold(raw, "true") {
			return "true"
		}
		return "false"
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return raw
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}

	if r.isDateStyled(cell) {
		if t, err := excelize.ExcelDateToTime(v, false); err == nil {
			return t.Format("2006-01-02")
		}
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// isDateStyled reports whether the cell's number format renders it as a
// calendar date.
func (r *workbookReader) isDateStyled(cell string) bool {
	styleID, err := r.file.GetCellStyle(r.sheet, cell)
	if err != nil {
		return false
	}
	style, err := r.file.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	if isBuiltInDateFmt(style.NumFmt) {
		return true
	}
	if style.CustomNumFmt != nil {
		return hasDateTokens(*style.CustomNumFmt)
	}
	return false
}

func isBuiltInDateFmt(id int) bool {
	switch {
	case id >= 14 && id <= 22:
		return true
	case id >= 27 && id <= 36: // locale variants
		return true
	case id >= 45 && id <= 47:
		return true
	case id >= 50 && id <= 58:
		return true
	}
	return false
}

// hasDateTokens scans a custom number format for date placeholders,
// skipping quoted literals and bracketed sections.
func hasDateTokens(fmtCode string) bool {
	inQuote, inBracket := false, false
	for _, c := range fmtCode {
		switch {
		case c == '"':
			inQuote = !inQuote
		case c == '[':
			inBracket = true
		case c == ']':
			inBracket = false
		case inQuote || inBracket:
		case c == 'y' || c == 'Y' || c == 'd' || c == 'D' || c == 'm' || c == 'M':
			return true
		}
	}
	return false
}
