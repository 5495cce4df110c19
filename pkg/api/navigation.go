package api

import (
	"bytes"
	"encoding/json"
)

type Area struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type ProcessStep struct {
	ID     ID     `json:"id"`
	Name   string `json:"name"`
	AreaID ID     `json:"area_id"`
}

type UseCase struct {
	ID            ID     `json:"id"`
	Name          string `json:"name"`
	ProcessStepID ID     `json:"process_step_id"`
	Wave          string `json:"wave,omitempty"`
}

// DecodeList accepts either a bare JSON array or an object wrapping the
// array under "items" or under key.
func DecodeList[T any](data []byte, key string) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var out []T
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, err
	}
	raw, ok := wrapper["items"]
	if !ok && key != "" {
		raw, ok = wrapper[key]
	}
	if !ok {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
