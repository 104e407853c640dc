package core

import (
	"testing"
	"time"

	"github.com/JonMunkholm/trasporti/internal/schema"
)

// ----------------------------------------------------------------------------
// CoerceNumber Tests
// ----------------------------------------------------------------------------

func TestCoerceNumber(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantValue   float64
		wantOutcome Outcome
	}{
		// Valid
		{name: "integer", input: "123", wantValue: 123, wantOutcome: Parsed},
		{name: "decimal comma", input: "12,5", wantValue: 12.5, wantOutcome: Parsed},
		{name: "italian thousands", input: "1.234,56", wantValue: 1234.56, wantOutcome: Parsed},
		{name: "euro symbol", input: "€ 80", wantValue: 80, wantOutcome: Parsed},
		{name: "accounting negative", input: "(99)", wantValue: -99, wantOutcome: Parsed},

		// Fallbacks
		{name: "empty becomes zero", input: "", wantValue: 0, wantOutcome: DefaultedEmpty},
		{name: "whitespace becomes zero", input: "   ", wantValue: 0, wantOutcome: DefaultedEmpty},
		{name: "text becomes zero", input: "x", wantValue: 0, wantOutcome: DefaultedInvalid},
		{name: "mixed becomes zero", input: "12abc", wantValue: 0, wantOutcome: DefaultedInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoerceNumber(tt.input)
			f, ok := got.Value.(float64)
			if !ok {
				t.Fatalf("CoerceNumber(%q) value type = %T, want float64", tt.input, got.Value)
			}
			if f != tt.wantValue {
				t.Errorf("CoerceNumber(%q) = %v, want %v", tt.input, f, tt.wantValue)
			}
			if got.Outcome != tt.wantOutcome {
				t.Errorf("CoerceNumber(%q) outcome = %v, want %v", tt.input, got.Outcome, tt.wantOutcome)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// CoerceDate Tests
// ----------------------------------------------------------------------------

func TestCoerceDate(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		want        time.Time
		wantNil     bool
		wantOutcome Outcome
	}{
		{
			name:        "iso date",
			input:       "2024-01-15",
			want:        time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			wantOutcome: Parsed,
		},
		{
			name:        "day first",
			input:       "03/04/2024",
			want:        time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC),
			wantOutcome: Parsed,
		},
		{
			name:        "empty is null",
			input:       "",
			wantNil:     true,
			wantOutcome: DefaultedEmpty,
		},
		{
			name:        "garbage is null",
			input:       "boh",
			wantNil:     true,
			wantOutcome: DefaultedInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoerceDate(tt.input)
			if got.Outcome != tt.wantOutcome {
				t.Errorf("CoerceDate(%q) outcome = %v, want %v", tt.input, got.Outcome, tt.wantOutcome)
			}
			if tt.wantNil {
				if got.Value != nil {
					t.Errorf("CoerceDate(%q) = %v, want nil", tt.input, got.Value)
				}
				return
			}
			ts, ok := got.Value.(time.Time)
			if !ok {
				t.Fatalf("CoerceDate(%q) value type = %T, want time.Time", tt.input, got.Value)
			}
			if !ts.Equal(tt.want) {
				t.Errorf("CoerceDate(%q) = %v, want %v", tt.input, ts, tt.want)
			}
		})
	}
}

func TestCoerceText_Verbatim(t *testing.T) {
	for _, in := range []string{"", "  spaced  ", "AB 123", "0012"} {
		got := CoerceText(in)
		if got.Value != in {
			t.Errorf("CoerceText(%q) = %q, want verbatim", in, got.Value)
		}
		if got.Defaulted() {
			t.Errorf("CoerceText(%q) reported a fallback", in)
		}
	}
}

func TestCoerce_Dispatch(t *testing.T) {
	if got := Coerce("7", schema.TypeNumber); got.Value != float64(7) {
		t.Errorf("Coerce number = %v, want 7", got.Value)
	}
	if got := Coerce("7", schema.TypeText); got.Value != "7" {
		t.Errorf("Coerce text = %v, want \"7\"", got.Value)
	}
	if got := Coerce("nope", schema.TypeDate); got.Value != nil || got.Outcome != DefaultedInvalid {
		t.Errorf("Coerce date = %+v, want nil defaulted_invalid", got)
	}
}

func TestOutcome_String(t *testing.T) {
	tests := map[Outcome]string{
		Parsed:           "parsed",
		DefaultedEmpty:   "defaulted_empty",
		DefaultedInvalid: "defaulted_invalid",
	}
	for o, want := range tests {
		if got := o.String(); got != want {
			t.Errorf("Outcome(%d).String() = %q, want %q", o, got, want)
		}
	}
}

// ----------------------------------------------------------------------------
// textOf Tests
// ----------------------------------------------------------------------------

func TestTextOf(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		want   string
		wantOK bool
	}{
		{name: "string", input: "abc", want: "abc", wantOK: true},
		{name: "integral float", input: float64(42), want: "42", wantOK: true},
		{name: "fraction", input: 1.5, want: "1.5", wantOK: true},
		{name: "bool", input: true, want: "true", wantOK: true},
		{name: "time", input: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), want: "2024-01-15T00:00:00Z", wantOK: true},
		{name: "object", input: map[string]any{"a": 1}, wantOK: false},
		{name: "array", input: []any{"a"}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := textOf(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("textOf(%v) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("textOf(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
