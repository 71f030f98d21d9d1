package service

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// decodeRecord reads a single record the backend returns either bare or
// wrapped in a result or data envelope.
func decodeRecord[T any](raw json.RawMessage) (T, error) {
	var out T
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return out, nil
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err == nil {
		for _, field := range []string{"result", "data"} {
			inner := bytes.TrimSpace(envelope[field])
			if len(inner) > 0 && inner[0] == '{' {
				raw = inner
				break
			}
		}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode record: %w", err)
	}
	return out, nil
}

type idBody struct {
	ID int `json:"id"`
}
