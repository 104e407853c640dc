package schema

import "strings"

// DefaultSampleSize caps how many values of a column are inspected.
const DefaultSampleSize = 200

// inferThreshold is the share of non-empty values that must parse for a
// column to be classified as Date or Number.
const inferThreshold = 0.6

// DefaultForceText lists headers that look numeric but are identifiers.
var DefaultForceText = []string{"AUTISTA CARICO", "AUTISTA SCARICO"}

// Inferrer classifies columns as text, number or date from a value sample.
type Inferrer struct {
	forceText  map[string]struct{}
	sampleSize int
}

// NewInferrer builds an Inferrer. A non-positive sampleSize means
// DefaultSampleSize.
func NewInferrer(forceText []string, sampleSize int) *Inferrer {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	ft := make(map[string]struct{}, len(forceText))
	for _, h := range forceText {
		ft[h] = struct{}{}
	}
	return &Inferrer{forceText: ft, sampleSize: sampleSize}
}

// SampleSize returns the configured sample cap.
func (i *Inferrer) SampleSize() int { return i.sampleSize }

// Infer classifies one column.
//
// Number and date parsing are tested independently for every non-empty
// value. The date ratio is checked first, so a column of bare years
// ("2024") is a Date even though every value is also a number.
func (i *Inferrer) Infer(header string, values []string) FieldType {
	if _, forced := i.forceText[header]; forced {
		return TypeText
	}

	if len(values) > i.sampleSize {
		values = values[:i.sampleSize]
	}

	var total, nums, dates int
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		total++
		if _, ok := ParseNumber(v); ok {
			nums++
		}
		if _, ok := ParseDate(v); ok {
			dates++
		}
	}

	if total == 0 {
		return TypeText
	}
	if float64(dates)/float64(total) > inferThreshold {
		return TypeDate
	}
	if float64(nums)/float64(total) > inferThreshold {
		return TypeNumber
	}
	return TypeText
}
