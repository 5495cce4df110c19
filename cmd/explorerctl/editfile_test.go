package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ucexplorer/ucexplorer/internal/core/injection"
	"github.com/ucexplorer/ucexplorer/internal/core/ledger"
)

func TestLoadEditFile(t *testing.T) {
	f, err := LoadEditFile(strings.NewReader(`
profile: alignment
edits:
  - {kind: usecase, id: 4, field: process_step_id, value: 9, original: 2}
  - {kind: usecase, id: "5", field: process_step_id, value: "3", original: 3}
`))
	require.NoError(t, err)
	assert.Equal(t, "alignment", f.Profile)
	require.Len(t, f.Edits, 2)

	l := ledger.New("alignment", nil, ledger.WithFieldKind("process_step_id", ledger.KindInteger))
	require.NoError(t, f.Apply(l))
	assert.Equal(t, 1, l.PendingCount(), "the second edit equals its original")
	assert.Equal(t, ledger.StateDirty, l.State(ledger.NewRef("usecase", "4")))
}

func TestLoadEditFile_Errors(t *testing.T) {
	_, err := LoadEditFile(strings.NewReader(""))
	assert.Error(t, err)

	_, err = LoadEditFile(strings.NewReader("edits: []\n"))
	assert.ErrorContains(t, err, "profile is required")

	_, err = LoadEditFile(strings.NewReader("profile: x\nchanges: []\n"))
	assert.Error(t, err)

	f, err := LoadEditFile(strings.NewReader("profile: x\nedits:\n  - {kind: usecase, id: 1, value: a}\n"))
	require.NoError(t, err)
	err = f.Apply(ledger.New("x", nil))
	assert.ErrorIs(t, err, ledger.ErrEmptyField)
	assert.ErrorContains(t, err, "edits[0]")
}

func TestEditFile_Rows(t *testing.T) {
	f, err := LoadEditFile(strings.NewReader(`
profile: injection
rows:
  - {id: 1, action: skip, fields: {name: Billing}}
  - {id: 2, action: create, fields: {name: Dunning}}
edits:
  - {id: 1, field: name, value: Billing run}
`))
	require.NoError(t, err)
	require.Len(t, f.Rows, 2)
	assert.Equal(t, injection.ActionSkip, f.Rows[0].Action)

	p, err := injection.NewPreview("injection", nil, f.Rows, nil)
	require.NoError(t, err)
	require.NoError(t, f.ApplyPreview(p))
	action, err := p.Action("1")
	require.NoError(t, err)
	assert.Equal(t, injection.ActionUpdate, action)
}
