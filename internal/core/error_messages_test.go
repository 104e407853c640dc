package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/trasporti/internal/store"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "store not found maps correctly",
			err:         fmt.Errorf("get record: %w", store.ErrNotFound),
			wantCode:    "REC001",
			wantMessage: "Non trovato",
		},
		{
			name:        "store duplicate maps correctly",
			err:         store.ErrDuplicate,
			wantCode:    "DB001",
			wantMessage: "Elemento già esistente",
		},
		{
			name:        "mongo duplicate key maps correctly",
			err:         errors.New("write exception: E11000 duplicate key error collection"),
			wantCode:    "DB001",
			wantMessage: "Elemento già esistente",
		},
		{
			name:        "connection refused maps correctly",
			err:         errors.New("dial tcp 127.0.0.1:27017: connection refused"),
			wantCode:    "DB004",
			wantMessage: "Database non raggiungibile",
		},
		{
			name:        "mongo server selection maps correctly",
			err:         errors.New("server selection error: server selection timeout"),
			wantCode:    "DB004",
			wantMessage: "Database non raggiungibile",
		},
		{
			name:        "deadline wins over timeout",
			err:         errors.New("context deadline exceeded (timeout)"),
			wantCode:    "REQ002",
			wantMessage: "Tempo della richiesta scaduto",
		},
		{
			name:        "invalid plate maps correctly",
			err:         ValidationError{Field: FieldTarga, Value: "##", Message: MsgInvalidTarga},
			wantCode:    "VAL003",
			wantMessage: "Targa non valida",
		},
		{
			name:        "invalid date maps correctly",
			err:         ValidationError{Field: "data", Value: "boh", Message: MsgInvalidDate},
			wantCode:    "VAL001",
			wantMessage: "Data non valida",
		},
		{
			name:        "other field constraint keeps its message",
			err:         ValidationError{Field: "password", Message: "password deve avere almeno 6 caratteri"},
			wantCode:    "VAL007",
			wantMessage: "password deve avere almeno 6 caratteri",
		},
		{
			name:        "missing store url maps correctly",
			err:         store.ErrNoURL,
			wantCode:    "IMP004",
			wantMessage: "Connessione al database non configurata",
		},
		{
			name:        "rate limit maps correctly",
			err:         errors.New("rate limit exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Troppe richieste",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "Errore del server",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("DUPLICATE KEY value violates"),
			wantCode:    "DB001",
			wantMessage: "Elemento già esistente",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(store.ErrNotFound)

	expected := "Non trovato (Code: REC001). Il record potrebbe essere stato eliminato"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}

	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error is not user facing",
			err:  nil,
			want: false,
		},
		{
			name: "known error is user facing",
			err:  errors.New("duplicate key"),
			want: true,
		},
		{
			name: "unknown error is not user facing",
			err:  errors.New("random internal error xyz"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsUserFacing(tt.err)
			if got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("find record: %w", store.ErrNotFound)
		userErr := NewUserError(techErr)

		if userErr.Error() != "Non trovato" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}

		if !errors.Is(userErr, store.ErrNotFound) {
			t.Error("Unwrap() should return original error")
		}
	})
}
