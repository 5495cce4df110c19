// Package navigation holds the area → process step → use case hierarchy used
// for breadcrumbs and dropdown options.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ucexplorer/ucexplorer/internal/core/observability/log"
	"github.com/ucexplorer/ucexplorer/internal/core/refcache"
	"github.com/ucexplorer/ucexplorer/pkg/api"
)

var ErrNotFound = errors.New("navigation: not found")

// Tree is an immutable snapshot of the reference data.
type Tree struct {
	areas    map[string]api.Area
	steps    map[string]api.ProcessStep
	useCases map[string]api.UseCase

	areaOrder []string
	stepOrder []string
	ucOrder   []string
}

func NewTree(areas []api.Area, steps []api.ProcessStep, useCases []api.UseCase) *Tree {
	t := &Tree{
		areas:    make(map[string]api.Area, len(areas)),
		steps:    make(map[string]api.ProcessStep, len(steps)),
		useCases: make(map[string]api.UseCase, len(useCases)),
	}
	for _, a := range areas {
		if _, dup := t.areas[string(a.ID)]; !dup {
			t.areaOrder = append(t.areaOrder, string(a.ID))
		}
		t.areas[string(a.ID)] = a
	}
	for _, s := range steps {
		if _, dup := t.steps[string(s.ID)]; !dup {
			t.stepOrder = append(t.stepOrder, string(s.ID))
		}
		t.steps[string(s.ID)] = s
	}
	for _, u := range useCases {
		if _, dup := t.useCases[string(u.ID)]; !dup {
			t.ucOrder = append(t.ucOrder, string(u.ID))
		}
		t.useCases[string(u.ID)] = u
	}
	return t
}

// Crumb is one level of a breadcrumb trail.
type Crumb struct {
	Kind string
	ID   string
	Name string
}

// Trail returns area, process step and use case for useCaseID. Missing
// parents end the trail early instead of failing.
func (t *Tree) Trail(useCaseID string) ([]Crumb, error) {
	uc, ok := t.useCases[useCaseID]
	if !ok {
		return nil, fmt.Errorf("%w: usecase %s", ErrNotFound, useCaseID)
	}
	trail := []Crumb{{Kind: "usecase", ID: string(uc.ID), Name: uc.Name}}
	step, ok := t.steps[string(uc.ProcessStepID)]
	if !ok {
		return trail, nil
	}
	trail = append([]Crumb{{Kind: "process_step", ID: string(step.ID), Name: step.Name}}, trail...)
	area, ok := t.areas[string(step.AreaID)]
	if !ok {
		return trail, nil
	}
	return append([]Crumb{{Kind: "area", ID: string(area.ID), Name: area.Name}}, trail...), nil
}

func (t *Tree) Areas() []api.Area {
	out := make([]api.Area, 0, len(t.areaOrder))
	for _, id := range t.areaOrder {
		out = append(out, t.areas[id])
	}
	return out
}

func (t *Tree) Area(id string) (api.Area, bool) {
	a, ok := t.areas[id]
	return a, ok
}

func (t *Tree) Step(id string) (api.ProcessStep, bool) {
	s, ok := t.steps[id]
	return s, ok
}

func (t *Tree) UseCase(id string) (api.UseCase, bool) {
	u, ok := t.useCases[id]
	return u, ok
}

// StepsInArea lists the options of a process step dropdown, by name.
func (t *Tree) StepsInArea(areaID string) []api.ProcessStep {
	var out []api.ProcessStep
	for _, id := range t.stepOrder {
		if s := t.steps[id]; string(s.AreaID) == areaID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// UseCasesInStep lists the use cases attached to stepID, by name.
func (t *Tree) UseCasesInStep(stepID string) []api.UseCase {
	var out []api.UseCase
	for _, id := range t.ucOrder {
		if u := t.useCases[id]; string(u.ProcessStepID) == stepID {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Counts reports how many use cases each process step holds.
func (t *Tree) Counts() map[string]int {
	out := make(map[string]int, len(t.steps))
	for _, u := range t.useCases {
		out[string(u.ProcessStepID)]++
	}
	return out
}

// Source is the subset of the HTTP client the loader needs.
type Source interface {
	Areas(ctx context.Context) ([]api.Area, error)
	ProcessSteps(ctx context.Context) ([]api.ProcessStep, error)
	UseCases(ctx context.Context) ([]api.UseCase, error)
}

// Load fetches the three lists in parallel. The first failure cancels the
// others.
func Load(ctx context.Context, src Source) (*Tree, error) {
	var (
		areas    []api.Area
		steps    []api.ProcessStep
		useCases []api.UseCase
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		areas, err = src.Areas(gctx)
		return wrap("areas", err)
	})
	g.Go(func() (err error) {
		steps, err = src.ProcessSteps(gctx)
		return wrap("process steps", err)
	})
	g.Go(func() (err error) {
		useCases, err = src.UseCases(gctx)
		return wrap("use cases", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewTree(areas, steps, useCases), nil
}

// NewCache wraps Load in a refcache so the tree is fetched once per
// invalidation.
func NewCache(src Source, logger log.Log) *refcache.Cache[*Tree] {
	return refcache.New("navigation", func(ctx context.Context) (*Tree, error) {
		return Load(ctx, src)
	}, logger)
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("load %s: %w", what, err)
}

// Label renders a crumb trail as "Area › Step › Use case".
func Label(trail []Crumb) string {
	var b strings.Builder
	for i, c := range trail {
		if i > 0 {
			b.WriteString(" › ")
		}
		if c.Name != "" {
			b.WriteString(c.Name)
		} else {
			b.WriteString(c.Kind + " #" + c.ID)
		}
	}
	return b.String()
}
