// Package optimistic implements tentative apply: show a change right away,
// send it, and undo it if the server does not confirm.
package optimistic

import (
	"context"
	"errors"
	"fmt"
)

var ErrNilStep = errors.New("optimistic: apply and commit are required")

// Undo reverts what an Apply did.
type Undo func()

// Apply makes the tentative change visible and returns how to revert it.
type Apply func() (Undo, error)

// Commit persists the change; a non-nil error means it was not persisted.
type Commit func(ctx context.Context) error

// Do runs apply, then commit. When commit fails the undo runs before
// onFailure; onSuccess runs only after a confirmed commit. Either callback
// may be nil. The commit error is returned.
func Do(ctx context.Context, apply Apply, commit Commit, onSuccess func(), onFailure func(error)) error {
	if apply == nil || commit == nil {
		return ErrNilStep
	}
	undo, err := apply()
	if err != nil {
		return fmt.Errorf("apply: %w", err)
	}

	if err := commit(ctx); err != nil {
		if undo != nil {
			undo()
		}
		if onFailure != nil {
			onFailure(err)
		}
		return err
	}
	if onSuccess != nil {
		onSuccess()
	}
	return nil
}
