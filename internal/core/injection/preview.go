// Package injection holds the step-injection preview: proposed process steps
// with a create/update/skip action, edited through a ledger before the plan
// is applied.
package injection

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ucexplorer/ucexplorer/internal/core/ledger"
	"github.com/ucexplorer/ucexplorer/internal/core/observability/log"
	"github.com/ucexplorer/ucexplorer/pkg/api"
)

// RefKind is the ledger kind of preview rows.
const RefKind = "step"

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionCreate, ActionUpdate, ActionSkip:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrUnknownRow    = errors.New("no such preview row")
	ErrDuplicateRow  = errors.New("duplicate preview row")
)

// Row is one proposed step as the server suggested it.
type Row struct {
	ID     string         `yaml:"id"`
	Action Action         `yaml:"action"`
	Fields map[string]any `yaml:"fields,omitempty"`
}

type row struct {
	Row
	// explicit is set once the user picks the action; promotion never
	// touches it afterwards.
	explicit bool
	promoted bool
}

type Preview struct {
	mu    sync.Mutex
	rows  map[string]*row
	order []string

	ledger    *ledger.Ledger
	committer ledger.Committer
	logger    log.Log
}

// NewPreview builds a preview over rows. The ledger it creates encodes the
// whole plan, so opts must not override the encoder.
func NewPreview(name string, committer ledger.Committer, rows []Row, logger log.Log, opts ...ledger.Option) (*Preview, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	p := &Preview{
		rows:      make(map[string]*row, len(rows)),
		committer: committer,
		logger:    logger.With(log.Component("injection"), log.String("preview", name)),
	}

	entities := make([]ledger.Entity, 0, len(rows))
	for _, r := range rows {
		id := ledger.NormalizeID(r.ID)
		if id == "" {
			return nil, ledger.ErrEmptyID
		}
		if _, dup := p.rows[id]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRow, id)
		}
		if _, err := ParseAction(string(r.Action)); err != nil {
			return nil, err
		}
		r.ID = id
		r.Fields = cloneMap(r.Fields)
		p.rows[id] = &row{Row: r}
		p.order = append(p.order, id)
		entities = append(entities, ledger.Entity{Ref: ledger.NewRef(RefKind, id), Original: r.Fields})
	}

	opts = append(opts, ledger.WithEncoder(ledger.EncoderFunc(p.encode)), ledger.WithLogger(logger))
	p.ledger = ledger.New(name, committer, opts...)
	p.ledger.Load(entities...)
	return p, nil
}

func (p *Preview) Ledger() *ledger.Ledger { return p.ledger }

// Edit records a field edit on row id and applies the promotion rule: a skip
// row that becomes dirty turns into an update, and turns back into a skip
// once it is clean again. Rows whose action the user chose are left alone.
func (p *Preview) Edit(id, field string, value any) (Action, error) {
	id = ledger.NormalizeID(id)
	if !p.has(id) {
		return "", fmt.Errorf("%w: %s", ErrUnknownRow, id)
	}
	state, err := p.ledger.Edit(ledger.NewRef(RefKind, id), field, value)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.promoteLocked(p.rows[id], state), nil
}

func (p *Preview) promoteLocked(r *row, state ledger.State) Action {
	if r.explicit {
		return r.Action
	}
	switch {
	case state == ledger.StateDirty && r.Action == ActionSkip:
		r.Action = ActionUpdate
		r.promoted = true
		p.logger.Debug("Row promoted", log.String("row", r.ID))
	case state == ledger.StateClean && r.promoted:
		r.Action = ActionSkip
		r.promoted = false
		p.logger.Debug("Row demoted", log.String("row", r.ID))
	}
	return r.Action
}

// SetAction is the user's explicit choice for row id.
func (p *Preview) SetAction(id string, action Action) error {
	if _, err := ParseAction(string(action)); err != nil {
		return err
	}
	id = ledger.NormalizeID(id)
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.rows[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRow, id)
	}
	r.Action = action
	r.explicit = true
	r.promoted = false
	return nil
}

func (p *Preview) Action(id string) (Action, error) {
	id = ledger.NormalizeID(id)
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.rows[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRow, id)
	}
	return r.Action, nil
}

// Rows returns the rows in server order with drafts applied.
func (p *Preview) Rows() []Row {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Row, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.currentLocked(id))
	}
	return out
}

// Apply sends the plan. With pending edits it goes through the ledger's
// commit; otherwise the unedited plan is posted as is.
func (p *Preview) Apply(ctx context.Context) (ledger.CommitResult, error) {
	if p.ledger.PendingCount() > 0 {
		res, err := p.ledger.CommitAll(ctx)
		p.resync()
		return res, err
	}

	body, err := p.encode(nil)
	if err != nil {
		return ledger.CommitResult{}, err
	}
	resp, err := p.committer.CommitBatch(ctx, p.ledger.Endpoint(), body)
	if err != nil {
		return ledger.CommitResult{Status: ledger.StatusFailed}, err
	}
	if resp == nil || resp.Success == nil {
		return ledger.CommitResult{Status: ledger.StatusFailed}, api.ErrMalformedResponse
	}
	res := ledger.CommitResult{
		SuccessfulUpdates: resp.SuccessfulUpdates,
		TotalUpdates:      resp.TotalUpdates,
		Message:           resp.Message,
		Status:            ledger.StatusSucceeded,
	}
	if !resp.Succeeded() {
		res.Status = ledger.StatusFailed
		return res, ledger.ErrCommitRejected
	}
	return res, nil
}

// resync demotes promoted rows the commit left clean.
func (p *Preview) resync() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range p.order {
		r := p.rows[id]
		p.promoteLocked(r, p.ledger.State(ledger.NewRef(RefKind, id)))
	}
}

// encode renders {"steps": [{"id", "action", "fields"}]}: every create and
// update row with its current values, skip rows left out.
func (p *Preview) encode(changes []ledger.Change) (any, error) {
	drafts := make(map[string]map[string]any, len(changes))
	for _, c := range changes {
		drafts[c.Ref.ID] = c.Fields
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	steps := make([]map[string]any, 0, len(p.order))
	for _, id := range p.order {
		r := p.rows[id]
		if r.Action == ActionSkip {
			continue
		}
		fields := p.currentLocked(id).Fields
		if fields == nil {
			fields = make(map[string]any)
		}
		for k, v := range drafts[id] {
			fields[k] = v
		}
		steps = append(steps, map[string]any{
			"id":     ledger.WireID(id),
			"action": string(r.Action),
			"fields": fields,
		})
	}
	return map[string]any{"steps": steps}, nil
}

func (p *Preview) currentLocked(id string) Row {
	r := p.rows[id]
	out := Row{ID: id, Action: r.Action, Fields: cloneMap(r.Fields)}
	if e, ok := p.ledger.Entity(ledger.NewRef(RefKind, id)); ok {
		if out.Fields == nil {
			out.Fields = make(map[string]any)
		}
		for k, v := range e.Original {
			out.Fields[k] = v
		}
		for k, v := range e.Draft {
			out.Fields[k] = v
		}
	}
	return out
}

func (p *Preview) has(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.rows[id]
	return ok
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
