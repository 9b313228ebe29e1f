// Package cards turns raw card fields into canonical bucket keys.
package cards

import (
	"strings"

	"carddash/pkg/models"
)

// Unknown is the default bucket for missing or blank values.
const Unknown = "Unknown"

// Normalize converts a raw field value into its canonical display string.
// Invalid, empty and whitespace-only values collapse to fallback.
func Normalize(v models.Text, fallback string) string {
	if !v.Valid {
		return fallback
	}
	return NormalizeString(v.String, fallback)
}

// NormalizeString applies the same trimming policy to a present value.
func NormalizeString(s, fallback string) string {
	clean := strings.TrimSpace(s)
	if clean == "" {
		return fallback
	}
	return clean
}

// Key is Normalize with the Unknown fallback. Every bucket key goes through it.
func Key(v models.Text) string {
	return Normalize(v, Unknown)
}

// FieldKey returns the bucket key of field f of c.
func FieldKey(c models.Card, f models.Field) string {
	return Key(c.Get(f))
}
