package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ucexplorer/ucexplorer/internal/core/injection"
	"github.com/ucexplorer/ucexplorer/internal/core/ledger"
)

// EditFile is a staged set of edits, e.g.
//
//	profile: alignment
//	edits:
//	  - {kind: usecase, id: 4, field: process_step_id, value: 9, original: 2}
//
// For the injection profile, rows lists the plan and edits address rows by
// id only.
type EditFile struct {
	Profile string          `yaml:"profile"`
	Edits   []EditLine      `yaml:"edits"`
	Rows    []injection.Row `yaml:"rows,omitempty"`
}

type EditLine struct {
	Kind     string `yaml:"kind"`
	ID       any    `yaml:"id"`
	Field    string `yaml:"field"`
	Value    any    `yaml:"value"`
	Original any    `yaml:"original"`
}

func LoadEditFile(r io.Reader) (*EditFile, error) {
	var f EditFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("edit file is empty")
		}
		return nil, fmt.Errorf("decode edit file: %w", err)
	}
	if f.Profile == "" {
		return nil, errors.New("edit file: profile is required")
	}
	return &f, nil
}

func readEditFile(path string) (*EditFile, error) {
	if path == "" {
		return nil, errors.New("missing -edits")
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	return LoadEditFile(file)
}

// Apply records every line on l, stopping at the first invalid one.
func (f *EditFile) Apply(l *ledger.Ledger) error {
	for i, e := range f.Edits {
		if _, err := l.RecordFieldEdit(ledger.NewRef(e.Kind, e.ID), e.Field, e.Value, e.Original); err != nil {
			return fmt.Errorf("edits[%d]: %w", i, err)
		}
	}
	return nil
}

// ApplyPreview edits the plan rows of p.
func (f *EditFile) ApplyPreview(p *injection.Preview) error {
	for i, e := range f.Edits {
		if _, err := p.Edit(ledger.NormalizeID(e.ID), e.Field, e.Value); err != nil {
			return fmt.Errorf("edits[%d]: %w", i, err)
		}
	}
	return nil
}
