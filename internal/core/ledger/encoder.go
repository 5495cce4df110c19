package ledger

import (
	"fmt"
	"strconv"
)

// Encoder turns a pending snapshot into the JSON body of a batch request.
type Encoder interface {
	Encode(changes []Change) (any, error)
}

type EncoderFunc func(changes []Change) (any, error)

func (f EncoderFunc) Encode(changes []Change) (any, error) { return f(changes) }

// Relationship maps one realignable field onto its array in the request:
//
//	{Array: [{IDKey: <entity id>, TargetKey: <new value>}]}
type Relationship struct {
	Kind      string `yaml:"kind"`
	Field     string `yaml:"field"`
	Array     string `yaml:"array"`
	IDKey     string `yaml:"id_key"`
	TargetKey string `yaml:"target_key"`
}

// RelationshipEncoder groups changes into one array per relationship kind.
// Every declared array is present in the body, empty when nothing changed.
type RelationshipEncoder struct {
	Relationships []Relationship
}

func (e RelationshipEncoder) Encode(changes []Change) (any, error) {
	body := make(map[string][]map[string]any, len(e.Relationships))
	for _, rel := range e.Relationships {
		if _, ok := body[rel.Array]; !ok {
			body[rel.Array] = []map[string]any{}
		}
	}

	for _, change := range changes {
		for _, field := range change.FieldNames() {
			rel, ok := e.lookup(change.Ref.Kind, field)
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s", ErrUnmappedField, change.Ref, field)
			}
			body[rel.Array] = append(body[rel.Array], map[string]any{
				rel.IDKey:     WireID(change.Ref.ID),
				rel.TargetKey: change.Fields[field],
			})
		}
	}
	return body, nil
}

func (e RelationshipEncoder) lookup(kind, field string) (Relationship, bool) {
	for _, rel := range e.Relationships {
		if rel.Field == field && (rel.Kind == "" || rel.Kind == kind) {
			return rel, true
		}
	}
	return Relationship{}, false
}

// FieldsEncoder sends every changed field of an entity together:
//
//	{"updates": [{"id": 7, "fields": {"name": "Beta"}}]}
type FieldsEncoder struct {
	Array     string
	IDKey     string
	FieldsKey string
	// KindKey, when set, adds the entity kind to each entry.
	KindKey string
}

func (e FieldsEncoder) Encode(changes []Change) (any, error) {
	array := orDefault(e.Array, "updates")
	idKey := orDefault(e.IDKey, "id")
	fieldsKey := orDefault(e.FieldsKey, "fields")

	entries := make([]map[string]any, 0, len(changes))
	for _, change := range changes {
		entry := map[string]any{
			idKey:     WireID(change.Ref.ID),
			fieldsKey: cloneValues(change.Fields),
		}
		if e.KindKey != "" && change.Ref.Kind != "" {
			entry[e.KindKey] = change.Ref.Kind
		}
		entries = append(entries, entry)
	}
	return map[string]any{array: entries}, nil
}

// WireID renders an id the way the server stores it: integers as JSON
// numbers, anything else as a string.
func WireID(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
