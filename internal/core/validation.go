package core

// validation.go shapes and validates record bodies for the CRUD layer.
//
// A body is checked against the active schema descriptor:
//  1. targa, when given, must match the permissive plate pattern
//  2. each schema field is converted to its type (dates and numbers from
//     strings, text from any scalar)
//  3. keys outside the schema, including system fields, are dropped
//
// Failures carry the Italian message returned to API clients.

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/trasporti/internal/schema"
)

// ErrValidation matches every ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// Client-facing validation messages.
const (
	MsgInvalidTarga  = "Targa non valida"
	MsgInvalidDate   = "Data non valida"
	MsgInvalidNumber = "Numero non valido"
	MsgInvalidValue  = "Valore non valido"
)

// FieldTarga is the plate field checked on every write.
const FieldTarga = "targa"

// targaRegex accepts 1-20 letters, digits, spaces or dashes.
var targaRegex = regexp.MustCompile(`(?i)^[A-Z0-9\s\-]{1,20}$`)

// ValidationError represents a rejected field.
type ValidationError struct {
	Field   string // Field name
	Value   string // The invalid value
	Message string // Client-facing message
}

func (e ValidationError) Error() string {
	return e.Message
}

func (e ValidationError) Is(target error) bool {
	return target == ErrValidation
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("targa", isValidTarga)

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func isValidTarga(fl validator.FieldLevel) bool {
	return targaRegex.MatchString(strings.TrimSpace(fl.Field().String()))
}

// ValidTarga reports whether s is an acceptable plate.
func ValidTarga(s string) bool {
	return validate.Var(s, "targa") == nil
}

// ValidateStruct checks a request struct's validate tags and returns the
// first failure as a ValidationError.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	return ValidationError{
		Field:   fe.Field(),
		Value:   fmt.Sprint(fe.Value()),
		Message: formatFieldError(fe),
	}
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s obbligatorio", fe.Field())
	case "min":
		return fmt.Sprintf("%s deve avere almeno %s caratteri", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s deve avere al massimo %s caratteri", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s deve essere uno tra: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "targa":
		return MsgInvalidTarga
	default:
		return fmt.Sprintf("%s non valido", fe.Field())
	}
}

// ShapeBody converts a decoded JSON body to the stored field map for desc.
//
// With partial false (create, full replace) every field of the shape is
// present in the result: missing fields take their default or nil. With
// partial true (patch) only the given fields are returned.
func ShapeBody(desc schema.Descriptor, body map[string]any, partial bool) (map[string]any, error) {
	if raw, ok := body[FieldTarga]; ok {
		if s, isString := raw.(string); isString && s != "" && !ValidTarga(s) {
			return nil, ValidationError{Field: FieldTarga, Value: s, Message: MsgInvalidTarga}
		}
	}

	out := make(map[string]any)
	for _, f := range desc.Fields() {
		raw, present := body[f.Name]
		if !present {
			if partial {
				continue
			}
			if f.Default != nil {
				out[f.Name] = *f.Default
			} else {
				out[f.Name] = nil
			}
			continue
		}

		v, err := shapeValue(f, raw)
		if err != nil {
			return nil, err
		}
		out[f.Name] = v
	}
	return out, nil
}

func shapeValue(f schema.Field, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}

	switch f.Type {
	case schema.TypeDate:
		switch v := raw.(type) {
		case string:
			if isBlank(v) {
				return nil, nil
			}
			if t, ok := schema.ParseDate(v); ok {
				return t, nil
			}
			return nil, ValidationError{Field: f.Name, Value: v, Message: MsgInvalidDate}
		case float64:
			// Epoch milliseconds, as JavaScript clients send Date values.
			return time.UnixMilli(int64(v)).UTC(), nil
		}
		return nil, ValidationError{Field: f.Name, Value: fmt.Sprint(raw), Message: MsgInvalidDate}

	case schema.TypeNumber:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case string:
			if isBlank(v) {
				return nil, nil
			}
			if n, ok := schema.ParseNumber(v); ok {
				return n, nil
			}
			return nil, ValidationError{Field: f.Name, Value: v, Message: MsgInvalidNumber}
		}
		return nil, ValidationError{Field: f.Name, Value: fmt.Sprint(raw), Message: MsgInvalidNumber}

	default:
		s, ok := textOf(raw)
		if !ok {
			return nil, ValidationError{Field: f.Name, Message: MsgInvalidValue}
		}
		return s, nil
	}
}
