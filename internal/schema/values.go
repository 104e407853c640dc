package schema

// values.go holds the lexical parsers shared by type inference and record
// coercion. They are deliberately tolerant of spreadsheet artifacts:
//   - day-first Italian dates (15/01/2024), ISO dates, timestamps, bare years
//   - currency symbols, thousands separators and decimal commas in numbers
//   - accounting negatives "(12,50)"

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numericRegex validates a cleaned-up number before strconv sees it.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot pushes two-digit years that land more than this many
// years in the future back one century.
var TwoDigitYearPivot = 20

var (
	isoLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		"2006/01/02",
		"2006.01.02",
		"2006-01",
		"2006",
		"20060102",
	}
	// Day-first layouts are tried before month-first ones: the source
	// sheets are Italian, so 03/04/2024 is the 3rd of April.
	fourDigitYearLayouts = []string{
		"02/01/2006 15:04:05", "02/01/2006 15:04", "2/1/2006 15:04",
		"02/01/2006", "2/1/2006", "02-01-2006", "2-1-2006", "02.01.2006", "2.1.2006",
		"01/02/2006", "1/2/2006", "01-02-2006", "1-2-2006",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006", "2 January 2006",
	}
	twoDigitYearLayouts = []string{
		"02/01/06", "2/1/06", "02-01-06", "2-1-06", "02.01.06",
		"01/02/06", "1/2/06", "01-02-06", "1-2-06",
	}
)

// ParseDate parses a calendar date or timestamp. Values without a zone are
// taken as UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}

	pivot := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivot {
				t = t.AddDate(-100, 0, 0)
			}
			return t.UTC(), true
		}
	}

	return time.Time{}, false
}

// ParseNumber parses a decimal number written the way spreadsheets export
// it: "1.234,56", "1,234.56", "€ 12,5", "(99)". NaN and infinities are
// rejected.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer("€", "", "$", "", "£", "", " ", "", " ", "", "'", "").Replace(s)
	s = normalizeSeparators(s)

	if negative {
		s = "-" + s
	}
	if !numericRegex.MatchString(s) {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// normalizeSeparators rewrites thousands and decimal separators to the
// plain "1234.56" form.
//
// When both "." and "," appear, the rightmost one is the decimal separator.
// A separator that appears more than once is a thousands separator. A
// single comma on its own is a decimal comma ("12,5"), and a single dot on
// its own is a decimal point, so "1.234" reads as 1.234.
func normalizeSeparators(s string) string {
	dot := strings.LastIndexByte(s, '.')
	comma := strings.LastIndexByte(s, ',')

	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	default:
		return s
	}
}
