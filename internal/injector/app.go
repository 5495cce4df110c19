// Package injector assembles explorerctl's long-lived components.
package injector

import (
	"github.com/ucexplorer/ucexplorer/internal/config"
	"github.com/ucexplorer/ucexplorer/internal/core/events/bus"
	"github.com/ucexplorer/ucexplorer/internal/core/feed"
	"github.com/ucexplorer/ucexplorer/internal/core/injection"
	"github.com/ucexplorer/ucexplorer/internal/core/ledger"
	"github.com/ucexplorer/ucexplorer/internal/core/navigation"
	"github.com/ucexplorer/ucexplorer/internal/core/observability/log"
	"github.com/ucexplorer/ucexplorer/internal/core/optimistic"
	"github.com/ucexplorer/ucexplorer/internal/core/refcache"
	"github.com/ucexplorer/ucexplorer/sdk/go/client"
)

type App struct {
	Config     *config.Config
	Logger     *log.Logger
	Bus        bus.EventBus
	Client     *client.Client
	Navigation *refcache.Cache[*navigation.Tree]
	Feed       *feed.Listener
}

// Ledger builds the ledger described by the named profile. A fully
// successful commit drops the cached navigation tree after the profile's
// reload delay. opts come last so callers can attach their view, notifier
// and confirmer.
func (a *App) Ledger(name string, opts ...ledger.Option) (*ledger.Ledger, error) {
	profile, err := a.Config.Profile(name)
	if err != nil {
		return nil, err
	}
	base, err := profile.LedgerOptions()
	if err != nil {
		return nil, err
	}
	base = append(base,
		ledger.WithBus(a.Bus),
		ledger.WithLogger(a.Logger),
		ledger.WithReload(profile.ReloadDelay, a.Navigation.Invalidate),
	)
	return ledger.New(name, a.Client, append(base, opts...)...), nil
}

// Preview builds an injection preview posting to the "injection" profile's
// endpoint.
func (a *App) Preview(rows []injection.Row, opts ...ledger.Option) (*injection.Preview, error) {
	const name = "injection"
	profile, err := a.Config.Profile(name)
	if err != nil {
		return nil, err
	}
	base := []ledger.Option{ledger.WithEndpoint(profile.Endpoint), ledger.WithBus(a.Bus)}
	for field, kind := range profile.Fields {
		k, err := ledger.ParseFieldKind(kind)
		if err != nil {
			return nil, err
		}
		base = append(base, ledger.WithFieldKind(field, k))
	}
	return injection.NewPreview(name, a.Client, rows, a.Logger, append(base, opts...)...)
}

func (a *App) InlineEditor(opts ...optimistic.InlineOption) *optimistic.InlineEditor {
	return optimistic.NewInlineEditor(a.Client, append([]optimistic.InlineOption{optimistic.WithLogger(a.Logger)}, opts...)...)
}
