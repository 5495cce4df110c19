package optimistic

import (
	"context"
	"sync"

	"github.com/ucexplorer/ucexplorer/internal/core/ledger"
	"github.com/ucexplorer/ucexplorer/internal/core/observability/log"
	"github.com/ucexplorer/ucexplorer/pkg/api"
)

// FieldUpdater is the single-field update call of the HTTP client.
type FieldUpdater interface {
	UpdateField(ctx context.Context, path, field string, value any) (*api.FieldUpdateResponse, error)
}

// DisplayFunc shows value in the control for path/field.
type DisplayFunc func(path, field string, value any)

// InlineEditor saves one field at a time, showing the new value before the
// server answers and restoring the old one when it refuses.
type InlineEditor struct {
	mu     sync.Mutex
	values map[inlineKey]any

	updater  FieldUpdater
	notifier ledger.Notifier
	display  DisplayFunc
	logger   log.Log
}

type inlineKey struct {
	path  string
	field string
}

type InlineOption func(*InlineEditor)

func WithNotifier(n ledger.Notifier) InlineOption {
	return func(e *InlineEditor) {
		if n != nil {
			e.notifier = n
		}
	}
}

func WithDisplay(fn DisplayFunc) InlineOption {
	return func(e *InlineEditor) {
		if fn != nil {
			e.display = fn
		}
	}
}

func WithLogger(logger log.Log) InlineOption {
	return func(e *InlineEditor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewInlineEditor(updater FieldUpdater, opts ...InlineOption) *InlineEditor {
	e := &InlineEditor{
		values:   make(map[inlineKey]any),
		updater:  updater,
		notifier: ledger.NotifierFunc(func(ledger.Notice) {}),
		display:  func(string, string, any) {},
		logger:   log.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(log.Component("inline_editor"))
	return e
}

// Set records the server-confirmed value of a field.
func (e *InlineEditor) Set(path, field string, value any) {
	e.mu.Lock()
	e.values[inlineKey{path, field}] = value
	e.mu.Unlock()
}

// Value returns what the control currently shows.
func (e *InlineEditor) Value(path, field string) (any, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.values[inlineKey{path, field}]
	return v, ok
}

// Save sends value for path/field. Saving the value already shown is a no-op.
func (e *InlineEditor) Save(ctx context.Context, path, field string, value any) error {
	key := inlineKey{path, field}
	if current, ok := e.Value(path, field); ok && ledger.Equal(ledger.KindAuto, current, value) {
		return nil
	}

	var resp *api.FieldUpdateResponse
	apply := func() (Undo, error) {
		e.mu.Lock()
		previous, had := e.values[key]
		e.values[key] = value
		e.mu.Unlock()
		e.display(path, field, value)

		return func() {
			e.mu.Lock()
			if had {
				e.values[key] = previous
			} else {
				delete(e.values, key)
			}
			e.mu.Unlock()
			e.display(path, field, previous)
		}, nil
	}
	commit := func(ctx context.Context) error {
		var err error
		resp, err = e.updater.UpdateField(ctx, path, field, value)
		return err
	}
	onSuccess := func() {
		msg := "Saved."
		if resp != nil && resp.Message != "" {
			msg = resp.Message
		}
		e.notifier.Notify(ledger.Notice{Level: ledger.NoticeSuccess, Message: msg})
		e.logger.Debug("Field saved", log.String("path", path), log.String("field", field))
	}
	onFailure := func(err error) {
		msg := "Error saving " + field + "."
		if resp != nil && resp.Message != "" {
			msg = resp.Message
		}
		e.notifier.Notify(ledger.Notice{Level: ledger.NoticeError, Message: msg})
		e.logger.Warn("Field save reverted",
			log.String("path", path),
			log.String("field", field),
			log.Error(err))
	}

	return Do(ctx, apply, commit, onSuccess, onFailure)
}
