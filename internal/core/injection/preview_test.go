package injection

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ucexplorer/ucexplorer/internal/core/ledger"
	"github.com/ucexplorer/ucexplorer/pkg/api"
)

type captureCommitter struct {
	bodies []string
	ok     bool
}

func (c *captureCommitter) CommitBatch(_ context.Context, _ string, body any) (*api.BatchResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	c.bodies = append(c.bodies, string(raw))
	ok := c.ok
	return &api.BatchResponse{Success: &ok}, nil
}

func testRows() []Row {
	return []Row{
		{ID: "1", Action: ActionCreate, Fields: map[string]any{"name": "Intake", "area_id": 2}},
		{ID: "2", Action: ActionSkip, Fields: map[string]any{"name": "Review", "area_id": 2}},
		{ID: "3", Action: ActionUpdate, Fields: map[string]any{"name": "Close", "area_id": 4}},
	}
}

func newTestPreview(t *testing.T, c ledger.Committer) *Preview {
	t.Helper()
	p, err := NewPreview("injection", c, testRows(), nil,
		ledger.WithEndpoint("/api/inject"),
		ledger.WithFieldKind("area_id", ledger.KindInteger))
	require.NoError(t, err)
	return p
}

func TestNewPreview_Validation(t *testing.T) {
	_, err := NewPreview("x", &captureCommitter{}, []Row{{ID: "1", Action: "merge"}}, nil)
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = NewPreview("x", &captureCommitter{}, []Row{
		{ID: "1", Action: ActionSkip},
		{ID: "01", Action: ActionSkip},
	}, nil)
	assert.ErrorIs(t, err, ErrDuplicateRow)
}

func TestEdit_PromotesAndDemotesSkipRow(t *testing.T) {
	p := newTestPreview(t, &captureCommitter{})

	action, err := p.Edit("2", "name", "Review v2")
	require.NoError(t, err)
	assert.Equal(t, ActionUpdate, action)

	action, err = p.Edit("2", "name", "Review")
	require.NoError(t, err)
	assert.Equal(t, ActionSkip, action)
	assert.Equal(t, 0, p.Ledger().PendingCount())
}

func TestEdit_ExplicitActionIsKept(t *testing.T) {
	p := newTestPreview(t, &captureCommitter{})

	require.NoError(t, p.SetAction("2", ActionSkip))
	action, err := p.Edit("2", "area_id", "5")
	require.NoError(t, err)
	assert.Equal(t, ActionSkip, action)

	require.NoError(t, p.SetAction("3", ActionSkip))
	action, err = p.Edit("3", "name", "Closing")
	require.NoError(t, err)
	assert.Equal(t, ActionSkip, action)
}

func TestEdit_NonSkipRowsUnaffected(t *testing.T) {
	p := newTestPreview(t, &captureCommitter{})

	action, err := p.Edit("1", "name", "Intake v2")
	require.NoError(t, err)
	assert.Equal(t, ActionCreate, action)

	action, err = p.Edit("1", "name", "Intake")
	require.NoError(t, err)
	assert.Equal(t, ActionCreate, action)
}

func TestEdit_UnknownRow(t *testing.T) {
	p := newTestPreview(t, &captureCommitter{})
	_, err := p.Edit("99", "name", "x")
	assert.ErrorIs(t, err, ErrUnknownRow)
	assert.ErrorIs(t, p.SetAction("99", ActionSkip), ErrUnknownRow)
}

func TestApply_SendsWholePlan(t *testing.T) {
	c := &captureCommitter{ok: true}
	p := newTestPreview(t, c)

	_, err := p.Edit("2", "area_id", "7")
	require.NoError(t, err)

	res, err := p.Apply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSucceeded, res.Status)

	require.Len(t, c.bodies, 1)
	assert.JSONEq(t, `{"steps": [
		{"id": 1, "action": "create", "fields": {"name": "Intake", "area_id": 2}},
		{"id": 2, "action": "update", "fields": {"name": "Review", "area_id": 7}},
		{"id": 3, "action": "update", "fields": {"name": "Close", "area_id": 4}}
	]}`, c.bodies[0])

	// committed: the promoted row is clean again
	action, err := p.Action("2")
	require.NoError(t, err)
	assert.Equal(t, ActionSkip, action)
	assert.Equal(t, int64(7), p.Rows()[1].Fields["area_id"])
}

func TestApply_WithoutEdits(t *testing.T) {
	c := &captureCommitter{ok: true}
	p := newTestPreview(t, c)

	res, err := p.Apply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSucceeded, res.Status)
	require.Len(t, c.bodies, 1)
	assert.NotContains(t, c.bodies[0], `"skip"`)

	c.ok = false
	_, err = p.Apply(context.Background())
	assert.ErrorIs(t, err, ledger.ErrCommitRejected)
}
