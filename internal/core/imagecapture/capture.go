package imagecapture

import (
	"errors"
	"fmt"
	"sync"
)

type State uint8

const (
	StateIdle State = iota
	StateCapturing
	StateLoaded
	StateCleared
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateLoaded:
		return "loaded"
	case StateCleared:
		return "cleared"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

var ErrInvalidTransition = errors.New("invalid capture transition")

// Capture is the paste/upload widget. Begin opens it, Load accepts bytes,
// Clear removes the image, Cancel abandons an open capture.
type Capture struct {
	mu       sync.Mutex
	state    State
	payload  *Payload
	maxBytes int
	onChange func(State, *Payload)
}

// NewCapture starts Idle. onChange, if set, runs after every transition
// with the lock released.
func NewCapture(maxBytes int, onChange func(State, *Payload)) *Capture {
	if onChange == nil {
		onChange = func(State, *Payload) {}
	}
	return &Capture{maxBytes: maxBytes, onChange: onChange}
}

func (c *Capture) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Payload returns the loaded image, if any.
func (c *Capture) Payload() (Payload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.payload == nil {
		return Payload{}, false
	}
	return *c.payload, true
}

// Begin opens the capture. A loaded image stays until a new one is loaded
// or the capture is cancelled.
func (c *Capture) Begin() error {
	return c.transition(func() error {
		if c.state == StateCapturing {
			return fmt.Errorf("%w: already capturing", ErrInvalidTransition)
		}
		c.state = StateCapturing
		return nil
	})
}

// Load normalizes raw and moves to Loaded. Invalid input keeps the capture
// open so the user can try again.
func (c *Capture) Load(raw []byte) (Payload, error) {
	var out Payload
	err := c.transition(func() error {
		if c.state != StateCapturing {
			return fmt.Errorf("%w: load while %s", ErrInvalidTransition, c.state)
		}
		p, err := Normalize(raw, c.maxBytes)
		if err != nil {
			return err
		}
		c.payload = &p
		c.state = StateLoaded
		out = p
		return nil
	})
	return out, err
}

// Clear drops the image from any state.
func (c *Capture) Clear() error {
	return c.transition(func() error {
		c.payload = nil
		c.state = StateCleared
		return nil
	})
}

// Cancel closes an open capture. With an image loaded before Begin the
// capture returns to Loaded, otherwise to Idle.
func (c *Capture) Cancel() error {
	return c.transition(func() error {
		if c.state != StateCapturing {
			return fmt.Errorf("%w: cancel while %s", ErrInvalidTransition, c.state)
		}
		if c.payload != nil {
			c.state = StateLoaded
		} else {
			c.state = StateIdle
		}
		return nil
	})
}

func (c *Capture) transition(fn func() error) error {
	c.mu.Lock()
	if err := fn(); err != nil {
		c.mu.Unlock()
		return err
	}
	state := c.state
	var p *Payload
	if c.payload != nil {
		cp := *c.payload
		p = &cp
	}
	c.mu.Unlock()
	c.onChange(state, p)
	return nil
}
