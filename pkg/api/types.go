// Package api holds the JSON shapes exchanged with the Usecase Explorer server.
package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// BatchResponse is the answer to a batch commit. Success is a pointer so that
// a body without the flag can be told apart from an explicit false.
type BatchResponse struct {
	Success           *bool          `json:"success"`
	SuccessfulUpdates int            `json:"successful_updates"`
	TotalUpdates      int            `json:"total_updates"`
	FailedUpdates     []FailedUpdate `json:"failed_updates,omitempty"`
	Message           string         `json:"message,omitempty"`
	Error             string         `json:"error,omitempty"`
}

// Succeeded reports the overall flag; an absent flag counts as failure.
func (r *BatchResponse) Succeeded() bool {
	return r != nil && r.Success != nil && *r.Success
}

// FailedUpdate describes one rejected entry of a batch.
type FailedUpdate struct {
	ID    ID     `json:"id"`
	Kind  string `json:"kind,omitempty"`
	Field string `json:"field,omitempty"`
	Error string `json:"error,omitempty"`
}

// UnmarshalJSON accepts the aliases the server has used for the same fields.
func (f *FailedUpdate) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID      ID     `json:"id"`
		Kind    string `json:"kind"`
		Type    string `json:"type"`
		Field   string `json:"field"`
		Error   string `json:"error"`
		Message string `json:"message"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.ID = raw.ID
	f.Kind = firstNonEmpty(raw.Kind, raw.Type)
	f.Field = raw.Field
	f.Error = firstNonEmpty(raw.Error, raw.Message, raw.Reason)
	return nil
}

// FieldUpdateResponse is the answer to a single-field inline update. The
// updated record comes back under an entity-specific key, kept raw in Extra.
type FieldUpdateResponse struct {
	Success bool                       `json:"success"`
	Message string                     `json:"message,omitempty"`
	Extra   map[string]json.RawMessage `json:"-"`
}

func (r *FieldUpdateResponse) UnmarshalJSON(data []byte) error {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	rawSuccess, ok := all["success"]
	if !ok {
		return fmt.Errorf("response has no success flag")
	}
	if err := json.Unmarshal(rawSuccess, &r.Success); err != nil {
		return fmt.Errorf("decode success flag: %w", err)
	}
	if rawMessage, ok := all["message"]; ok {
		_ = json.Unmarshal(rawMessage, &r.Message)
	}
	delete(all, "success")
	delete(all, "message")
	if len(all) > 0 {
		r.Extra = all
	}
	return nil
}

// Entity decodes the updated record stored under key into out.
func (r *FieldUpdateResponse) Entity(key string, out any) (bool, error) {
	raw, ok := r.Extra[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

// ID is an entity identifier as it appears on the wire: a JSON number or a
// string. It is kept in its canonical text form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(str))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("id must be a number or string: %w", err)
	}
	if n, err := num.Int64(); err == nil {
		*id = ID(strconv.FormatInt(n, 10))
		return nil
	}
	f, err := num.Float64()
	if err != nil {
		return err
	}
	if f == float64(int64(f)) {
		*id = ID(strconv.FormatInt(int64(f), 10))
		return nil
	}
	*id = ID(num.String())
	return nil
}

// MarshalJSON emits integer-like ids as numbers.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
