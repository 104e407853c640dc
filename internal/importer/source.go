package importer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet is the first worksheet of a workbook. Rows are keyed by the
// trimmed header of their column; missing cells read as "".
type Sheet struct {
	Name    string
	Headers []string
	Rows    []map[string]string
}

// builtinDateFormats are the built-in number format ids that render a date.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true,
	20: true, 21: true, 22: true, 45: true, 46: true, 47: true,
}

// ReadSource loads the first sheet of the workbook at path. The first row
// holds the headers; blank rows are skipped. Cells formatted as dates are
// returned as "2006-01-02" so they do not depend on the workbook locale.
func ReadSource(path string) (*Sheet, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceMissing, path)
		}
		return nil, fmt.Errorf("stat source: %w", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: %s has no sheets", ErrEmptySource, path)
	}
	name := sheets[0]

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q", ErrEmptySource, name)
	}

	dates := &dateStyles{f: f, cache: make(map[int]bool)}
	use1904 := uses1904(f)

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	sheet := &Sheet{Name: name, Headers: headers}
	for r, raw := range rows[1:] {
		if blankRow(raw) {
			continue
		}
		row := make(map[string]string, len(headers))
		for c, h := range headers {
			if h == "" {
				continue
			}
			if _, dup := row[h]; dup {
				continue
			}
			var v string
			if c < len(raw) {
				v = raw[c]
			}
			if v != "" && dates.isDate(name, c+1, r+2) {
				v = serialToDate(v, use1904)
			}
			row[h] = v
		}
		sheet.Rows = append(sheet.Rows, row)
	}

	if len(sheet.Rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q has no data rows", ErrEmptySource, name)
	}
	return sheet, nil
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// dateStyles remembers which cell styles carry a date number format.
type dateStyles struct {
	f     *excelize.File
	cache map[int]bool
}

func (d *dateStyles) isDate(sheet string, col, row int) bool {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return false
	}
	id, err := d.f.GetCellStyle(sheet, cell)
	if err != nil || id == 0 {
		return false
	}
	if v, ok := d.cache[id]; ok {
		return v
	}

	isDate := false
	if style, err := d.f.GetStyle(id); err == nil && style != nil {
		switch {
		case builtinDateFormats[style.NumFmt]:
			isDate = true
		case style.CustomNumFmt != nil:
			isDate = dateFormatCode(*style.CustomNumFmt)
		}
	}
	d.cache[id] = isDate
	return isDate
}

// dateFormatCode reports whether a custom number format renders a date:
// it has a day or year token outside quoted literals.
func dateFormatCode(code string) bool {
	quoted := false
	for _, r := range strings.ToLower(code) {
		switch {
		case r == '"':
			quoted = !quoted
		case quoted:
		case r == 'd', r == 'y':
			return true
		}
	}
	return false
}

// serialToDate converts an Excel serial day number. Values that are not
// serials are returned unchanged.
func serialToDate(v string, use1904 bool) string {
	serial, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return v
	}
	t, err := excelize.ExcelDateToTime(serial, use1904)
	if err != nil {
		return v
	}
	return t.Format("2006-01-02")
}

func uses1904(f *excelize.File) bool {
	props, err := f.GetWorkbookProps()
	if err != nil || props.Date1904 == nil {
		return false
	}
	return *props.Date1904
}
