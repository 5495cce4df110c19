package ledger

import (
	"fmt"
	"sort"
	"strconv"
)

// Ref identifies an entity. Kind separates id spaces when one ledger tracks
// several entity types (process steps and use cases in the alignment view);
// it is empty for single-kind ledgers.
type Ref struct {
	Kind string
	ID   string
}

// NewRef builds a Ref with a normalized id, so NewRef("usecase", "7") and
// NewRef("usecase", 7) are the same map key.
func NewRef(kind string, id any) Ref {
	return Ref{Kind: kind, ID: NormalizeID(id)}
}

func (r Ref) String() string {
	if r.Kind == "" {
		return r.ID
	}
	return r.Kind + ":" + r.ID
}

func (r Ref) normalized() Ref {
	return Ref{Kind: r.Kind, ID: NormalizeID(r.ID)}
}

// State is the per-entity lifecycle: clean until a field differs from its
// original, dirty until every field is reverted or committed.
type State uint8

const (
	StateClean State = iota
	StateDirty
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Entity is an editable record: the server-confirmed values and, for
// fields that differ from them, the local drafts.
type Entity struct {
	Ref      Ref
	Original map[string]any
	Draft    map[string]any
}

// Dirty reports whether any draft is present.
func (e Entity) Dirty() bool {
	return len(e.Draft) > 0
}

// Change is one entity's worth of pending edits, the unit encoders work on.
type Change struct {
	Ref      Ref
	Fields   map[string]any
	Original map[string]any
}

// FieldNames returns the changed fields in sorted order.
func (c Change) FieldNames() []string {
	return sortedKeys(c.Fields)
}

func cloneValues(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sortRefs orders by kind, then numerically when both ids are integers.
func sortRefs(refs []Ref) {
	sort.Slice(refs, func(i, j int) bool { return refLess(refs[i], refs[j]) })
}

func refLess(a, b Ref) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	na, errA := strconv.ParseInt(a.ID, 10, 64)
	nb, errB := strconv.ParseInt(b.ID, 10, 64)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a.ID < b.ID
	}
}
