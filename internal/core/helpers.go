package core

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the textual form of dates when a date value is written
// into a text field.
const DateLayout = time.RFC3339

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// textOf renders a JSON scalar as text the way a spreadsheet cell would
// show it. Non-scalars report false.
func textOf(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	case time.Time:
		return val.UTC().Format(DateLayout), true
	default:
		return "", false
	}
}
