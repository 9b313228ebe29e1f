package source

import (
	"bytes"
	"encoding/json"
	"fmt"

	"carddash/pkg/models"
)

// Decode reads a collection payload. A top-level array or an object with a
// "data" array yields records; any other well-formed JSON yields an empty
// collection. Array elements that are not objects decode as empty records.
func Decode(body []byte) ([]models.Card, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	switch firstByte(raw) {
	case '[':
		return decodeArray(raw)
	case '{':
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, err
		}
		if firstByte(env.Data) == '[' {
			return decodeArray(env.Data)
		}
	}
	return []models.Card{}, nil
}

func decodeArray(raw json.RawMessage) ([]models.Card, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}

	out := make([]models.Card, len(items))
	for i, item := range items {
		if firstByte(item) != '{' {
			continue
		}
		if err := json.Unmarshal(item, &out[i]); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return out, nil
}

func firstByte(b []byte) byte {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return 0
	}
	return b[0]
}
