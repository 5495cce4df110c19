// Package ledger tracks unsaved field edits per entity and commits them to
// the server in one batch.
//
// The pending set holds an entity if and only if at least one of its fields
// differs from the original value; reverting the last differing field removes
// the entity, never leaving an empty entry behind.
package ledger

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ucexplorer/ucexplorer/internal/core/events/bus"
	"github.com/ucexplorer/ucexplorer/internal/core/observability/log"
)

// Event types published on the ledger's topic.
const (
	EventFieldDirty    = "field_dirty"
	EventFieldClean    = "field_clean"
	EventCommitted     = "committed"
	EventCommitPartial = "commit_partial"
	EventCommitFailed  = "commit_failed"
	EventDiscarded     = "discarded"
)

// FieldEvent is the payload of EventFieldDirty and EventFieldClean.
type FieldEvent struct {
	Ref      Ref
	Field    string
	Value    any
	Original any
	// State is the entity's state after the edit.
	State   State
	Pending int
}

type Ledger struct {
	name     string
	endpoint string

	mu       sync.Mutex
	kinds    map[string]FieldKind
	required map[string]struct{}
	entities map[Ref]map[string]any
	pending  map[Ref]map[string]any

	committing atomic.Bool

	committer Committer
	encoder   Encoder
	view      View
	notifier  Notifier
	confirmer Confirmer

	reload      func()
	reloadDelay time.Duration
	afterFunc   func(time.Duration, func()) *time.Timer

	bus    bus.EventBus
	logger log.Log
}

type Option func(*Ledger)

func WithEndpoint(endpoint string) Option {
	return func(l *Ledger) { l.endpoint = endpoint }
}

func WithEncoder(enc Encoder) Option {
	return func(l *Ledger) { l.encoder = enc }
}

func WithFieldKind(field string, kind FieldKind) Option {
	return func(l *Ledger) { l.kinds[field] = kind }
}

func WithFieldKinds(kinds map[string]FieldKind) Option {
	return func(l *Ledger) {
		for field, kind := range kinds {
			l.kinds[field] = kind
		}
	}
}

// WithRequiredFields makes CommitAll refuse batches that blank any of fields.
func WithRequiredFields(fields ...string) Option {
	return func(l *Ledger) {
		for _, f := range fields {
			l.required[f] = struct{}{}
		}
	}
}

func WithView(v View) Option {
	return func(l *Ledger) {
		if v != nil {
			l.view = v
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(l *Ledger) {
		if n != nil {
			l.notifier = n
		}
	}
}

func WithConfirmer(c Confirmer) Option {
	return func(l *Ledger) {
		if c != nil {
			l.confirmer = c
		}
	}
}

// WithReload schedules fn after a fully successful commit, for views that
// re-render from the server.
func WithReload(delay time.Duration, fn func()) Option {
	return func(l *Ledger) {
		l.reload = fn
		l.reloadDelay = delay
	}
}

// WithBus publishes ledger events on the topic named after the ledger.
func WithBus(b bus.EventBus) Option {
	return func(l *Ledger) { l.bus = b }
}

func WithLogger(logger log.Log) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates an empty ledger. Without options it encodes with FieldsEncoder,
// confirms automatically and renders nowhere.
func New(name string, committer Committer, opts ...Option) *Ledger {
	l := &Ledger{
		name:      name,
		kinds:     make(map[string]FieldKind),
		required:  make(map[string]struct{}),
		entities:  make(map[Ref]map[string]any),
		pending:   make(map[Ref]map[string]any),
		committer: committer,
		encoder:   FieldsEncoder{},
		view:      nopView{},
		notifier:  nopNotifier{},
		confirmer: AutoConfirm,
		afterFunc: time.AfterFunc,
		logger:    log.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(log.Component("ledger"), log.String("ledger", name))
	return l
}

func (l *Ledger) Name() string { return l.name }

func (l *Ledger) Endpoint() string { return l.endpoint }

// FieldKind reports how field is compared.
func (l *Ledger) FieldKind(field string) FieldKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.kinds[field]
}

// Load materializes server state. Drafts that differ from their original
// become pending and are marked; pending drafts of loaded entities are
// rebased, so a draft that now equals the new original is dropped.
func (l *Ledger) Load(entities ...Entity) {
	var marked, cleared []FieldEvent

	l.mu.Lock()
	for _, e := range entities {
		ref := e.Ref.normalized()
		l.entities[ref] = cloneValues(e.Original)
		if l.entities[ref] == nil {
			l.entities[ref] = make(map[string]any)
		}
		for _, field := range sortedKeys(e.Draft) {
			draft := e.Draft[field]
			if original, ok := l.entities[ref][field]; ok && !Equal(l.kinds[field], draft, original) {
				l.upsertLocked(ref, field, draft)
				marked = append(marked, FieldEvent{Ref: ref, Field: field, Value: draft, Original: original, State: StateDirty})
			}
		}
		for field, draft := range l.pending[ref] {
			if Equal(l.kinds[field], draft, l.entities[ref][field]) {
				l.removeLocked(ref, field)
				cleared = append(cleared, FieldEvent{Ref: ref, Field: field, Value: draft, Original: draft})
			}
		}
	}
	count := len(l.pending)
	l.mu.Unlock()

	for _, ev := range cleared {
		l.view.ClearUnsaved(ev.Ref, ev.Field)
	}
	for _, ev := range marked {
		ev.Pending = count
		l.view.MarkUnsaved(ev.Ref, ev.Field)
		l.publish(EventFieldDirty, ev)
	}
	l.syncControls(count)
}

// RecordFieldEdit compares newValue with original and updates the pending
// set: a difference upserts the field, equality removes it (and the entity
// when it was the last one). Repeating the same call changes nothing.
func (l *Ledger) RecordFieldEdit(ref Ref, field string, newValue, original any) (State, error) {
	ref = ref.normalized()
	if ref.ID == "" {
		return StateClean, ErrEmptyID
	}
	if field == "" {
		return StateClean, ErrEmptyField
	}

	l.mu.Lock()
	values := l.entities[ref]
	if values == nil {
		values = make(map[string]any)
		l.entities[ref] = values
	}
	values[field] = original
	ev, dirty := l.recordLocked(ref, field, newValue, original)
	l.mu.Unlock()

	return l.afterRecord(ev, dirty), nil
}

// Edit records newValue against the original stored by Load or by an earlier
// RecordFieldEdit.
func (l *Ledger) Edit(ref Ref, field string, newValue any) (State, error) {
	ref = ref.normalized()
	if ref.ID == "" {
		return StateClean, ErrEmptyID
	}
	if field == "" {
		return StateClean, ErrEmptyField
	}

	l.mu.Lock()
	values, ok := l.entities[ref]
	if !ok {
		l.mu.Unlock()
		return StateClean, fmt.Errorf("%w: %s", ErrUnknownEntity, ref)
	}
	original, ok := values[field]
	if !ok {
		l.mu.Unlock()
		return StateClean, fmt.Errorf("%w: %s.%s", ErrUnknownField, ref, field)
	}
	ev, dirty := l.recordLocked(ref, field, newValue, original)
	l.mu.Unlock()

	return l.afterRecord(ev, dirty), nil
}

func (l *Ledger) recordLocked(ref Ref, field string, newValue, original any) (FieldEvent, bool) {
	dirty := !Equal(l.kinds[field], newValue, original)
	if dirty {
		l.upsertLocked(ref, field, newValue)
	} else {
		l.removeLocked(ref, field)
	}
	state := StateClean
	if _, ok := l.pending[ref]; ok {
		state = StateDirty
	}
	return FieldEvent{
		Ref:      ref,
		Field:    field,
		Value:    newValue,
		Original: original,
		State:    state,
		Pending:  len(l.pending),
	}, dirty
}

func (l *Ledger) upsertLocked(ref Ref, field string, value any) {
	fields := l.pending[ref]
	if fields == nil {
		fields = make(map[string]any)
		l.pending[ref] = fields
	}
	fields[field] = value
}

func (l *Ledger) removeLocked(ref Ref, field string) {
	fields, ok := l.pending[ref]
	if !ok {
		return
	}
	delete(fields, field)
	if len(fields) == 0 {
		delete(l.pending, ref)
	}
}

func (l *Ledger) afterRecord(ev FieldEvent, dirty bool) State {
	eventType := EventFieldClean
	if dirty {
		l.view.MarkUnsaved(ev.Ref, ev.Field)
		eventType = EventFieldDirty
	} else {
		l.view.ClearUnsaved(ev.Ref, ev.Field)
	}
	l.syncControls(ev.Pending)
	l.publish(eventType, ev)
	l.logger.Debug("Field edit recorded",
		log.Stringer("entity", ev.Ref),
		log.String("field", ev.Field),
		log.Bool("dirty", dirty),
		log.Int("pending", ev.Pending))
	return ev.State
}

// PendingCount returns how many entities have unsaved edits.
func (l *Ledger) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// PendingFieldCount returns how many fields have unsaved edits across all entities.
func (l *Ledger) PendingFieldCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, fields := range l.pending {
		n += len(fields)
	}
	return n
}

func (l *Ledger) State(ref Ref) State {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.pending[ref.normalized()]; ok {
		return StateDirty
	}
	return StateClean
}

// Entity returns a copy of the tracked entity.
func (l *Ledger) Entity(ref Ref) (Entity, bool) {
	ref = ref.normalized()
	l.mu.Lock()
	defer l.mu.Unlock()
	values, ok := l.entities[ref]
	if !ok {
		return Entity{}, false
	}
	return Entity{Ref: ref, Original: cloneValues(values), Draft: cloneValues(l.pending[ref])}, true
}

// Original returns the last server-confirmed value of field.
func (l *Ledger) Original(ref Ref, field string) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.entities[ref.normalized()][field]
	return v, ok
}

// Pending returns a deep copy of the pending set ordered by ref. Integer
// fields carry their normalized value.
func (l *Ledger) Pending() []Change {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() []Change {
	refs := make([]Ref, 0, len(l.pending))
	for ref := range l.pending {
		refs = append(refs, ref)
	}
	sortRefs(refs)

	changes := make([]Change, 0, len(refs))
	for _, ref := range refs {
		fields := make(map[string]any, len(l.pending[ref]))
		originals := make(map[string]any, len(l.pending[ref]))
		for field, v := range l.pending[ref] {
			if l.kinds[field] == KindInteger {
				v = Normalize(KindInteger, v)
			}
			fields[field] = v
			originals[field] = l.entities[ref][field]
		}
		changes = append(changes, Change{Ref: ref, Fields: fields, Original: originals})
	}
	return changes
}

// Committing reports whether a commit is in flight.
func (l *Ledger) Committing() bool {
	return l.committing.Load()
}

func (l *Ledger) syncControls(pending int) {
	l.view.SetPendingCount(pending)
	l.view.SetControlsEnabled(pending > 0 && !l.committing.Load())
}

func (l *Ledger) notify(level NoticeLevel, msg string, refs ...Ref) {
	l.notifier.Notify(Notice{Level: level, Message: msg, Refs: refs})
}

func (l *Ledger) publish(eventType string, data any) {
	if l.bus == nil {
		return
	}
	if err := l.bus.Publish(l.name, bus.NewEvent(eventType, l.name, data, nil)); err != nil {
		l.logger.Warn("Ledger event handler failed", log.String("event", eventType), log.Error(err))
	}
}
