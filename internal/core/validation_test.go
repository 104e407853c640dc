package core

import (
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/trasporti/internal/schema"
)

func testDescriptor() schema.Descriptor {
	return schema.NewDescriptor(1, "test.xlsx", testColumns(), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestValidTarga(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"AB123CD", true},
		{"ab 123 cd", true},
		{"AB-123-CD", true},
		{"  AB123CD  ", true},
		{"12345678901234567890", true},
		{"123456789012345678901", false},
		{"##", false},
		{"AB_123", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ValidTarga(tt.input); got != tt.want {
				t.Errorf("ValidTarga(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestShapeBody_Full(t *testing.T) {
	desc := testDescriptor()

	got, err := ShapeBody(desc, map[string]any{
		"cliente":   "Acme",
		"targa":     "AB123CD",
		"data":      "2024-01-15",
		"importo":   "1.234,50",
		"_id":       "forged",
		"createdAt": "2020-01-01",
		"unknown":   "dropped",
	}, false)
	if err != nil {
		t.Fatalf("ShapeBody() error = %v", err)
	}

	wantKeys := []string{"cliente", "targa", "data", "importo", "note", "rowColor"}
	if len(got) != len(wantKeys) {
		t.Fatalf("ShapeBody() keys = %v, want %v", got, wantKeys)
	}
	for _, k := range wantKeys {
		if _, ok := got[k]; !ok {
			t.Errorf("missing key %q", k)
		}
	}
	if ts, ok := got["data"].(time.Time); !ok || !ts.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("data = %v, want parsed date", got["data"])
	}
	if got["importo"] != 1234.5 {
		t.Errorf("importo = %v, want 1234.5", got["importo"])
	}
	if got["note"] != nil {
		t.Errorf("note = %v, want nil", got["note"])
	}
	if got["rowColor"] != "" {
		t.Errorf("rowColor = %v, want empty default", got["rowColor"])
	}
}

func TestShapeBody_Partial(t *testing.T) {
	got, err := ShapeBody(testDescriptor(), map[string]any{"note": "consegnato"}, true)
	if err != nil {
		t.Fatalf("ShapeBody() error = %v", err)
	}
	if len(got) != 1 || got["note"] != "consegnato" {
		t.Errorf("ShapeBody() = %v, want only note", got)
	}
}

func TestShapeBody_Errors(t *testing.T) {
	tests := []struct {
		name      string
		body      map[string]any
		wantField string
		wantMsg   string
	}{
		{
			name:      "invalid plate",
			body:      map[string]any{"targa": "##"},
			wantField: "targa",
			wantMsg:   MsgInvalidTarga,
		},
		{
			name:      "plate too long",
			body:      map[string]any{"targa": "123456789012345678901"},
			wantField: "targa",
			wantMsg:   MsgInvalidTarga,
		},
		{
			name:      "invalid date",
			body:      map[string]any{"data": "boh"},
			wantField: "data",
			wantMsg:   MsgInvalidDate,
		},
		{
			name:      "date as bool",
			body:      map[string]any{"data": true},
			wantField: "data",
			wantMsg:   MsgInvalidDate,
		},
		{
			name:      "invalid number",
			body:      map[string]any{"importo": "dieci"},
			wantField: "importo",
			wantMsg:   MsgInvalidNumber,
		},
		{
			name:      "object in text field",
			body:      map[string]any{"cliente": map[string]any{"$ne": ""}},
			wantField: "cliente",
			wantMsg:   MsgInvalidValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ShapeBody(testDescriptor(), tt.body, true)
			if err == nil {
				t.Fatal("ShapeBody() expected error")
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("error %v does not match ErrValidation", err)
			}
			var ve ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error type = %T, want ValidationError", err)
			}
			if ve.Field != tt.wantField || ve.Message != tt.wantMsg {
				t.Errorf("got %s/%q, want %s/%q", ve.Field, ve.Message, tt.wantField, tt.wantMsg)
			}
		})
	}
}

func TestShapeBody_Scalars(t *testing.T) {
	got, err := ShapeBody(testDescriptor(), map[string]any{
		"cliente": float64(42),
		"targa":   "",
		"data":    float64(1705276800000),
		"importo": "",
	}, true)
	if err != nil {
		t.Fatalf("ShapeBody() error = %v", err)
	}

	if got["cliente"] != "42" {
		t.Errorf("cliente = %v, want \"42\"", got["cliente"])
	}
	if got["targa"] != "" {
		t.Errorf("empty targa = %v, want empty string", got["targa"])
	}
	if ts, ok := got["data"].(time.Time); !ok || !ts.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("epoch data = %v, want 2024-01-15", got["data"])
	}
	if got["importo"] != nil {
		t.Errorf("blank importo = %v, want nil", got["importo"])
	}
}

type loginForm struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=4"`
	Targa    string `json:"targa" validate:"omitempty,targa"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name    string
		input   loginForm
		wantErr string
	}{
		{name: "valid", input: loginForm{Username: "admin", Password: "secret"}},
		{name: "missing username", input: loginForm{Password: "secret"}, wantErr: "username obbligatorio"},
		{name: "short password", input: loginForm{Username: "a", Password: "x"}, wantErr: "password deve avere almeno 4 caratteri"},
		{name: "bad plate", input: loginForm{Username: "a", Password: "secret", Targa: "##"}, wantErr: MsgInvalidTarga},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateStruct() error = %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("ValidateStruct() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
