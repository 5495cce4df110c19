package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ucexplorer/ucexplorer/internal/core/observability/log"
	"github.com/ucexplorer/ucexplorer/pkg/api"
)

type Status uint8

const (
	// StatusNoop means there was nothing pending and no request was made.
	StatusNoop Status = iota
	StatusCancelled
	StatusSucceeded
	StatusPartial
	StatusFailed
	StatusDiscarded
)

func (s Status) String() string {
	switch s {
	case StatusNoop:
		return "noop"
	case StatusCancelled:
		return "cancelled"
	case StatusSucceeded:
		return "succeeded"
	case StatusPartial:
		return "partial"
	case StatusFailed:
		return "failed"
	case StatusDiscarded:
		return "discarded"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// FailedEntity is an entity the server refused; it stays pending.
type FailedEntity struct {
	Ref    Ref
	Field  string
	Reason string
}

type CommitResult struct {
	Status Status
	// Attempted is the number of entities sent.
	Attempted int
	Committed []Ref
	Failed    []FailedEntity
	// SuccessfulUpdates and TotalUpdates echo the server's counters.
	SuccessfulUpdates int
	TotalUpdates      int
	Message           string
}

type DiscardResult struct {
	Status   Status
	Entities int
	Fields   int
}

// CommitAll sends every pending change in one request.
//
// A fully successful response clears the set and promotes the drafts to
// originals. success:false with a list of failures keeps exactly the failed
// entities pending; success:false without one, a transport error or a
// malformed response leaves the set untouched.
func (l *Ledger) CommitAll(ctx context.Context) (CommitResult, error) {
	if !l.committing.CompareAndSwap(false, true) {
		return CommitResult{}, ErrCommitInProgress
	}
	defer func() {
		l.committing.Store(false)
		l.syncControls(l.PendingCount())
	}()

	changes := l.Pending()
	if len(changes) == 0 {
		l.notify(NoticeInfo, "No changes to save.")
		return CommitResult{Status: StatusNoop}, nil
	}

	if refs, field := l.blankRequired(changes); len(refs) > 0 {
		l.notify(NoticeError, fmt.Sprintf("%q cannot be empty.", field), refs...)
		return CommitResult{Status: StatusNoop}, fmt.Errorf("%w: %s", ErrRequiredFieldEmpty, field)
	}

	ok, err := l.confirmer.Confirm(ctx, fmt.Sprintf("Save changes to %s?", plural(len(changes), "item")))
	if err != nil {
		return CommitResult{Status: StatusCancelled}, err
	}
	if !ok {
		return CommitResult{Status: StatusCancelled}, nil
	}

	l.view.SetControlsEnabled(false)
	result := CommitResult{Status: StatusFailed, Attempted: len(changes)}

	body, err := l.encoder.Encode(changes)
	if err != nil {
		l.notify(NoticeError, "Could not prepare the changes for saving.")
		l.logger.Error("Batch encoding failed", log.Error(err))
		l.publish(EventCommitFailed, result)
		return result, fmt.Errorf("ledger %s: encode batch: %w", l.name, err)
	}

	l.logger.Info("Committing batch",
		log.String("endpoint", l.endpoint),
		log.Int("entities", len(changes)))

	resp, err := l.committer.CommitBatch(ctx, l.endpoint, body)
	if err == nil {
		err = checkResponse(resp)
	}
	if err != nil {
		l.notify(NoticeError, "Error saving changes. Nothing was saved; please try again.")
		l.logger.Error("Batch commit failed", log.Error(err))
		l.publish(EventCommitFailed, result)
		return result, fmt.Errorf("ledger %s: commit: %w", l.name, err)
	}

	result.SuccessfulUpdates = resp.SuccessfulUpdates
	result.TotalUpdates = resp.TotalUpdates
	result.Message = firstNonEmpty(resp.Message, resp.Error)

	if resp.Succeeded() {
		result.Status = StatusSucceeded
		result.Committed = l.applyCommitted(changes)
		l.notify(NoticeSuccess, firstNonEmpty(resp.Message, fmt.Sprintf("Saved %s.", plural(len(changes), "item"))))
		l.logger.Info("Batch committed", log.Int("entities", len(changes)))
		l.publish(EventCommitted, result)
		if l.reload != nil {
			l.afterFunc(l.reloadDelay, l.reload)
		}
		return result, nil
	}

	failed, unmatched := matchFailures(resp.FailedUpdates, changes)
	if len(failed) == 0 {
		l.notify(NoticeError, firstNonEmpty(result.Message, "The server rejected the changes. Nothing was saved."))
		l.logger.Warn("Batch rejected",
			log.Int("reported_failures", len(resp.FailedUpdates)),
			log.Int("unmatched_failures", unmatched))
		l.publish(EventCommitFailed, result)
		return result, fmt.Errorf("ledger %s: %w", l.name, ErrCommitRejected)
	}

	failedRefs := make(map[Ref]struct{}, len(failed))
	for _, f := range failed {
		failedRefs[f.Ref] = struct{}{}
	}
	succeeded := make([]Change, 0, len(changes))
	for _, c := range changes {
		if _, bad := failedRefs[c.Ref]; !bad {
			succeeded = append(succeeded, c)
		}
	}

	result.Status = StatusPartial
	result.Failed = failed
	result.Committed = l.applyCommitted(succeeded)

	refs := make([]Ref, 0, len(failedRefs))
	for ref := range failedRefs {
		refs = append(refs, ref)
	}
	sortRefs(refs)
	l.notify(NoticeWarning, fmt.Sprintf("Saved %d of %d. Failed: %s.",
		len(succeeded), len(changes), joinRefs(refs)), refs...)
	l.logger.Warn("Batch partially committed",
		log.Int("committed", len(succeeded)),
		log.Int("failed", len(refs)),
		log.Int("unmatched_failures", unmatched))
	l.publish(EventCommitPartial, result)
	return result, nil
}

// Body encodes the pending set the way CommitAll would send it.
func (l *Ledger) Body() (any, error) {
	return l.encoder.Encode(l.Pending())
}

// applyCommitted promotes committed drafts to originals. A field edited again
// while the request was in flight stays pending with its newer value.
func (l *Ledger) applyCommitted(changes []Change) []Ref {
	var cleared []FieldEvent
	committed := make([]Ref, 0, len(changes))

	l.mu.Lock()
	for _, c := range changes {
		values := l.entities[c.Ref]
		if values == nil {
			values = make(map[string]any)
			l.entities[c.Ref] = values
		}
		for field, v := range c.Fields {
			values[field] = v
			current, ok := l.pending[c.Ref][field]
			if !ok {
				continue
			}
			if Equal(l.kinds[field], current, v) {
				l.removeLocked(c.Ref, field)
				cleared = append(cleared, FieldEvent{Ref: c.Ref, Field: field, Value: v, Original: v})
			}
		}
		committed = append(committed, c.Ref)
	}
	l.mu.Unlock()

	for _, ev := range cleared {
		l.view.ClearUnsaved(ev.Ref, ev.Field)
	}
	return committed
}

// DiscardAll throws every pending edit away and resets the controls. It
// never talks to the server.
func (l *Ledger) DiscardAll(ctx context.Context) (DiscardResult, error) {
	if l.committing.Load() {
		return DiscardResult{}, ErrCommitInProgress
	}

	count := l.PendingCount()
	if count == 0 {
		l.notify(NoticeInfo, "No changes to discard.")
		return DiscardResult{Status: StatusNoop}, nil
	}

	ok, err := l.confirmer.Confirm(ctx, fmt.Sprintf("Discard unsaved changes to %s?", plural(count, "item")))
	if err != nil {
		return DiscardResult{Status: StatusCancelled}, err
	}
	if !ok {
		return DiscardResult{Status: StatusCancelled}, nil
	}

	l.mu.Lock()
	changes := l.snapshotLocked()
	l.pending = make(map[Ref]map[string]any)
	l.mu.Unlock()

	result := DiscardResult{Status: StatusDiscarded, Entities: len(changes)}
	for _, c := range changes {
		for _, field := range c.FieldNames() {
			l.view.ResetControl(c.Ref, field, c.Original[field])
			l.view.ClearUnsaved(c.Ref, field)
			result.Fields++
		}
	}
	l.syncControls(0)
	l.notify(NoticeSuccess, fmt.Sprintf("Discarded changes to %s.", plural(result.Entities, "item")))
	l.logger.Info("Pending changes discarded", log.Int("entities", result.Entities), log.Int("fields", result.Fields))
	l.publish(EventDiscarded, result)
	return result, nil
}

func checkResponse(resp *api.BatchResponse) error {
	if resp == nil {
		return fmt.Errorf("%w: empty response", api.ErrMalformedResponse)
	}
	if resp.Success == nil {
		return fmt.Errorf("%w: missing success flag", api.ErrMalformedResponse)
	}
	return nil
}

// matchFailures maps the server's failure list onto the attempted changes.
// Entries naming a kind match only that kind; bare ids match every attempted
// entity with that id.
func matchFailures(reported []api.FailedUpdate, changes []Change) ([]FailedEntity, int) {
	var (
		out       []FailedEntity
		seen      = make(map[Ref]struct{})
		unmatched int
	)
	for _, f := range reported {
		id := NormalizeID(f.ID)
		var hits []Ref
		for _, c := range changes {
			if c.Ref.ID == id && (f.Kind == "" || c.Ref.Kind == f.Kind) {
				hits = append(hits, c.Ref)
			}
		}
		if len(hits) == 0 {
			unmatched++
			continue
		}
		for _, ref := range hits {
			if _, dup := seen[ref]; dup {
				continue
			}
			seen[ref] = struct{}{}
			out = append(out, FailedEntity{Ref: ref, Field: f.Field, Reason: f.Error})
		}
	}
	return out, unmatched
}

func (l *Ledger) blankRequired(changes []Change) ([]Ref, string) {
	if len(l.required) == 0 {
		return nil, ""
	}
	var (
		refs  []Ref
		field string
	)
	for _, c := range changes {
		for _, name := range c.FieldNames() {
			if _, req := l.required[name]; !req {
				continue
			}
			if Normalize(KindAuto, c.Fields[name]) == nil {
				refs = append(refs, c.Ref)
				if field == "" {
					field = name
				}
				break
			}
		}
	}
	return refs, field
}

// IsTransport reports whether err came from the request itself rather than
// from the server's verdict.
func IsTransport(err error) bool {
	return errors.Is(err, api.ErrTransport) || errors.Is(err, api.ErrMalformedResponse)
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func joinRefs(refs []Ref) string {
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
