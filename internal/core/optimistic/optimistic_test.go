package optimistic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ucexplorer/ucexplorer/internal/core/ledger"
	"github.com/ucexplorer/ucexplorer/pkg/api"
)

func TestDo_Success(t *testing.T) {
	var steps []string
	err := Do(context.Background(),
		func() (Undo, error) {
			steps = append(steps, "apply")
			return func() { steps = append(steps, "undo") }, nil
		},
		func(context.Context) error {
			steps = append(steps, "commit")
			return nil
		},
		func() { steps = append(steps, "success") },
		func(error) { steps = append(steps, "failure") },
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"apply", "commit", "success"}, steps)
}

func TestDo_FailureReverts(t *testing.T) {
	boom := errors.New("boom")
	var steps []string
	var got error
	err := Do(context.Background(),
		func() (Undo, error) {
			steps = append(steps, "apply")
			return func() { steps = append(steps, "undo") }, nil
		},
		func(context.Context) error { return boom },
		func() { steps = append(steps, "success") },
		func(err error) {
			got = err
			steps = append(steps, "failure")
		},
	)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, got, boom)
	assert.Equal(t, []string{"apply", "undo", "failure"}, steps)
}

func TestDo_ApplyErrorSkipsCommit(t *testing.T) {
	committed := false
	err := Do(context.Background(),
		func() (Undo, error) { return nil, errors.New("control gone") },
		func(context.Context) error { committed = true; return nil },
		nil, nil,
	)
	assert.Error(t, err)
	assert.False(t, committed)

	assert.ErrorIs(t, Do(context.Background(), nil, nil, nil, nil), ErrNilStep)
}

type stubUpdater struct {
	resp *api.FieldUpdateResponse
	err  error
	hits int
}

func (s *stubUpdater) UpdateField(context.Context, string, string, any) (*api.FieldUpdateResponse, error) {
	s.hits++
	return s.resp, s.err
}

func TestInlineEditor_SaveConfirmed(t *testing.T) {
	u := &stubUpdater{resp: &api.FieldUpdateResponse{Success: true, Message: "Updated"}}
	var notices []ledger.Notice
	var shown []any
	e := NewInlineEditor(u,
		WithNotifier(ledger.NotifierFunc(func(n ledger.Notice) { notices = append(notices, n) })),
		WithDisplay(func(_, _ string, v any) { shown = append(shown, v) }))
	e.Set("/api/usecases/4", "wave", "1")

	require.NoError(t, e.Save(context.Background(), "/api/usecases/4", "wave", "2"))
	v, _ := e.Value("/api/usecases/4", "wave")
	assert.Equal(t, "2", v)
	assert.Equal(t, []any{"2"}, shown)
	require.Len(t, notices, 1)
	assert.Equal(t, ledger.NoticeSuccess, notices[0].Level)
	assert.Equal(t, "Updated", notices[0].Message)
}

func TestInlineEditor_SaveRefusedReverts(t *testing.T) {
	u := &stubUpdater{
		resp: &api.FieldUpdateResponse{Success: false, Message: "Wave is locked"},
		err:  errors.New("server reported the update as failed"),
	}
	var notices []ledger.Notice
	var shown []any
	e := NewInlineEditor(u,
		WithNotifier(ledger.NotifierFunc(func(n ledger.Notice) { notices = append(notices, n) })),
		WithDisplay(func(_, _ string, v any) { shown = append(shown, v) }))
	e.Set("/api/usecases/4", "wave", "1")

	err := e.Save(context.Background(), "/api/usecases/4", "wave", "2")
	require.Error(t, err)
	v, _ := e.Value("/api/usecases/4", "wave")
	assert.Equal(t, "1", v)
	assert.Equal(t, []any{"2", "1"}, shown)
	require.Len(t, notices, 1)
	assert.Equal(t, ledger.NoticeError, notices[0].Level)
	assert.Equal(t, "Wave is locked", notices[0].Message)
}

func TestInlineEditor_SameValueIsNoop(t *testing.T) {
	u := &stubUpdater{resp: &api.FieldUpdateResponse{Success: true}}
	e := NewInlineEditor(u)
	e.Set("/api/areas/1", "name", "Ops")

	require.NoError(t, e.Save(context.Background(), "/api/areas/1", "name", "Ops"))
	assert.Zero(t, u.hits)
}
