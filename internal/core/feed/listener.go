// Package feed listens for server-side change notices over a websocket and
// invalidates cached reference data when something changes.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/ucexplorer/ucexplorer/internal/core/events/bus"
	"github.com/ucexplorer/ucexplorer/internal/core/observability/log"
	"github.com/ucexplorer/ucexplorer/pkg/api"
)

// Topic is the bus topic notices are republished on.
const Topic = "feed"

var (
	ErrNoURL           = errors.New("feed: url is empty")
	ErrReconnectFailed = errors.New("feed: reconnection failed")
)

// Notice is one change announced by the server, e.g.
//
//	{"event": "entity_updated", "kind": "area", "id": 3}
type Notice struct {
	Event string `json:"event"`
	Kind  string `json:"kind,omitempty"`
	ID    api.ID `json:"id,omitempty"`
}

// Invalidator is anything holding data a notice makes stale.
type Invalidator interface {
	Invalidate()
}

type Config struct {
	URL                  string
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	HandshakeTimeout     time.Duration
	Header               http.Header
}

func DefaultConfig() Config {
	return Config{
		ReconnectInterval:    5 * time.Second,
		MaxReconnectAttempts: 10,
		HandshakeTimeout:     10 * time.Second,
	}
}

type Listener struct {
	config Config
	dialer *websocket.Dialer

	mu           sync.Mutex
	invalidators []Invalidator

	bus    bus.EventBus
	logger log.Log
}

type Option func(*Listener)

func WithInvalidator(inv Invalidator) Option {
	return func(l *Listener) {
		if inv != nil {
			l.invalidators = append(l.invalidators, inv)
		}
	}
}

func WithBus(b bus.EventBus) Option {
	return func(l *Listener) { l.bus = b }
}

func WithLogger(logger log.Log) Option {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithDialer(d *websocket.Dialer) Option {
	return func(l *Listener) {
		if d != nil {
			l.dialer = d
		}
	}
}

func NewListener(config Config, opts ...Option) *Listener {
	l := &Listener{
		config: config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
		},
		logger: log.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(log.Component("feed"), log.String("url", config.URL))
	return l
}

// AddInvalidator registers inv for every later notice.
func (l *Listener) AddInvalidator(inv Invalidator) {
	l.mu.Lock()
	l.invalidators = append(l.invalidators, inv)
	l.mu.Unlock()
}

// Run connects and processes notices until ctx ends. A dropped connection is
// redialed every ReconnectInterval; after MaxReconnectAttempts consecutive
// failures Run gives up with ErrReconnectFailed. A zero MaxReconnectAttempts
// retries forever.
func (l *Listener) Run(ctx context.Context) error {
	if l.config.URL == "" {
		return ErrNoURL
	}
	attempts := 0
	for {
		conn, _, err := l.dialer.DialContext(ctx, l.config.URL, l.config.Header)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			err = errors.Wrap(err, "failed to dial feed")
			attempts++
			l.logger.Warn("Dial failed", log.Int("attempt", attempts), log.Error(err))
			if l.config.MaxReconnectAttempts > 0 && attempts >= l.config.MaxReconnectAttempts {
				return fmt.Errorf("%w after %d attempts: %v", ErrReconnectFailed, attempts, err)
			}
			if !sleep(ctx, l.config.ReconnectInterval) {
				return ctx.Err()
			}
			continue
		}

		attempts = 0
		l.logger.Info("Connected")
		err = l.readLoop(ctx, conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.logger.Warn("Connection lost, attempting to reconnect", log.Error(err))
		if !sleep(ctx, l.config.ReconnectInterval) {
			return ctx.Err()
		}
	}
}

func (l *Listener) readLoop(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
			_ = conn.Close()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "failed to read notice")
		}
		var n Notice
		if err := json.Unmarshal(data, &n); err != nil || n.Event == "" {
			l.logger.Debug("Ignoring malformed notice", log.Int("bytes", len(data)))
			continue
		}
		l.Handle(n)
	}
}

// Handle applies one notice: stale data is invalidated, then the notice is
// republished on the bus with the event name as type.
func (l *Listener) Handle(n Notice) {
	l.mu.Lock()
	invalidators := append([]Invalidator(nil), l.invalidators...)
	l.mu.Unlock()
	for _, inv := range invalidators {
		inv.Invalidate()
	}

	l.logger.Debug("Notice received",
		log.String("event", n.Event),
		log.String("kind", n.Kind),
		log.String("id", string(n.ID)))

	if l.bus == nil {
		return
	}
	meta := map[string]string{"kind": n.Kind, "id": string(n.ID)}
	if err := l.bus.Publish(Topic, bus.NewEvent(n.Event, "feed", n, meta)); err != nil {
		l.logger.Warn("Notice handler failed", log.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
