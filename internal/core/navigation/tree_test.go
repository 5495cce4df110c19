package navigation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ucexplorer/ucexplorer/pkg/api"
)

type fakeSource struct {
	calls   atomic.Int32
	stepErr error
}

func (f *fakeSource) Areas(context.Context) ([]api.Area, error) {
	f.calls.Add(1)
	return []api.Area{{ID: "1", Name: "Finance"}, {ID: "2", Name: "HR"}}, nil
}

func (f *fakeSource) ProcessSteps(context.Context) ([]api.ProcessStep, error) {
	f.calls.Add(1)
	if f.stepErr != nil {
		return nil, f.stepErr
	}
	return []api.ProcessStep{
		{ID: "10", Name: "Reporting", AreaID: "1"},
		{ID: "11", Name: "Close", AreaID: "1"},
		{ID: "20", Name: "Hiring", AreaID: "2"},
	}, nil
}

func (f *fakeSource) UseCases(context.Context) ([]api.UseCase, error) {
	f.calls.Add(1)
	return []api.UseCase{
		{ID: "100", Name: "Accruals", ProcessStepID: "11"},
		{ID: "101", Name: "Reconciliation", ProcessStepID: "11"},
		{ID: "102", Name: "Orphan", ProcessStepID: "99"},
	}, nil
}

func TestLoad(t *testing.T) {
	src := &fakeSource{}
	tree, err := Load(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, int32(3), src.calls.Load())

	trail, err := tree.Trail("100")
	require.NoError(t, err)
	assert.Equal(t, []Crumb{
		{Kind: "area", ID: "1", Name: "Finance"},
		{Kind: "process_step", ID: "11", Name: "Close"},
		{Kind: "usecase", ID: "100", Name: "Accruals"},
	}, trail)
	assert.Equal(t, "Finance › Close › Accruals", Label(trail))
}

func TestLoad_FailurePropagates(t *testing.T) {
	boom := errors.New("503")
	_, err := Load(context.Background(), &fakeSource{stepErr: boom})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "process steps")
}

func TestTrail_MissingParent(t *testing.T) {
	tree, err := Load(context.Background(), &fakeSource{})
	require.NoError(t, err)

	trail, err := tree.Trail("102")
	require.NoError(t, err)
	assert.Len(t, trail, 1)

	_, err = tree.Trail("404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDropdownOptions(t *testing.T) {
	tree, err := Load(context.Background(), &fakeSource{})
	require.NoError(t, err)

	steps := tree.StepsInArea("1")
	require.Len(t, steps, 2)
	assert.Equal(t, "Close", steps[0].Name)
	assert.Equal(t, "Reporting", steps[1].Name)

	ucs := tree.UseCasesInStep("11")
	require.Len(t, ucs, 2)
	assert.Equal(t, "Accruals", ucs[0].Name)
	assert.Empty(t, tree.UseCasesInStep("20"))
	assert.Equal(t, 2, tree.Counts()["11"])
	assert.Len(t, tree.Areas(), 2)
}

func TestNewCache(t *testing.T) {
	src := &fakeSource{}
	cache := NewCache(src, nil)

	for i := 0; i < 2; i++ {
		_, err := cache.Get(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), src.calls.Load())

	cache.Invalidate()
	_, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(6), src.calls.Load())
}
