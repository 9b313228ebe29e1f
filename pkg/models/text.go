package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Text is a nullable, loosely typed string value, in the spirit of
// sql.NullString. Valid is false when the JSON value was null or absent.
type Text struct {
	String string
	Valid  bool
}

// NewText returns a valid Text holding s.
func NewText(s string) Text {
	return Text{String: s, Valid: true}
}

// UnmarshalJSON accepts any JSON value and coerces it to its string form.
// It only fails on malformed JSON.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = Text{}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	*t = Text{String: coerce(v), Valid: true}
	return nil
}

// MarshalJSON writes the string form, or null when invalid.
func (t Text) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.String)
}

// coerce turns a decoded JSON value into the string a browser would show for
// String(value): numbers in shortest form, arrays comma-joined.
func coerce(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return formatNumber(x)
	case []any:
		parts := make([]string, len(x))
		for i, el := range x {
			parts[i] = coerce(el)
		}
		return strings.Join(parts, ",")
	case map[string]any:
		return "[object Object]"
	default:
		return ""
	}
}

func formatNumber(n json.Number) string {
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return n.String()
	}
	if f == 0 {
		return "0"
	}
	if abs := math.Abs(f); abs >= 1e21 || abs < 1e-6 {
		return exponent(f)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// exponent formats f as 1.5e+21 or 1e-7, without Go's zero-padded exponent.
func exponent(f float64) string {
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mant, exp, _ := strings.Cut(s, "e")
	sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
	return mant + "e" + sign + digits
}

// Flag is true only when the JSON value is the literal boolean true.
// Anything else, including "true" as a string, decodes to false.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	*f = Flag(bytes.Equal(bytes.TrimSpace(data), []byte("true")))
	return nil
}
