package ledger

import (
	"context"

	"github.com/ucexplorer/ucexplorer/pkg/api"
)

// View is the presentation side of a ledger: per-control "unsaved" marks,
// commit/discard control state and the pending counter. Calls are made
// outside the ledger lock, but a View must not block.
type View interface {
	MarkUnsaved(ref Ref, field string)
	ClearUnsaved(ref Ref, field string)
	// ResetControl puts a control back to the value it had before editing.
	ResetControl(ref Ref, field string, original any)
	SetControlsEnabled(enabled bool)
	SetPendingCount(entities int)
}

type NoticeLevel uint8

const (
	NoticeInfo NoticeLevel = iota
	NoticeSuccess
	NoticeWarning
	NoticeError
)

func (l NoticeLevel) String() string {
	switch l {
	case NoticeSuccess:
		return "success"
	case NoticeWarning:
		return "warning"
	case NoticeError:
		return "error"
	default:
		return "info"
	}
}

// Notice is a transient, auto-dismissing message for the user.
type Notice struct {
	Level   NoticeLevel
	Message string
	Refs    []Ref
}

type Notifier interface {
	Notify(notice Notice)
}

type NotifierFunc func(notice Notice)

func (f NotifierFunc) Notify(notice Notice) { f(notice) }

// Confirmer asks the user before destructive or outward-facing steps.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) { return f(ctx, prompt) }

// AutoConfirm accepts every prompt.
var AutoConfirm Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

// Committer sends one encoded batch to the server.
type Committer interface {
	CommitBatch(ctx context.Context, endpoint string, body any) (*api.BatchResponse, error)
}

type CommitterFunc func(ctx context.Context, endpoint string, body any) (*api.BatchResponse, error)

func (f CommitterFunc) CommitBatch(ctx context.Context, endpoint string, body any) (*api.BatchResponse, error) {
	return f(ctx, endpoint, body)
}

type nopView struct{}

func (nopView) MarkUnsaved(Ref, string)       {}
func (nopView) ClearUnsaved(Ref, string)      {}
func (nopView) ResetControl(Ref, string, any) {}
func (nopView) SetControlsEnabled(bool)       {}
func (nopView) SetPendingCount(int)           {}

type nopNotifier struct{}

func (nopNotifier) Notify(Notice) {}
