package injector

import (
	"github.com/google/wire"

	"github.com/ucexplorer/ucexplorer/internal/config"
	"github.com/ucexplorer/ucexplorer/internal/core/events/bus"
	"github.com/ucexplorer/ucexplorer/internal/core/feed"
	"github.com/ucexplorer/ucexplorer/internal/core/navigation"
	"github.com/ucexplorer/ucexplorer/internal/core/observability/log"
	"github.com/ucexplorer/ucexplorer/internal/core/refcache"
	"github.com/ucexplorer/ucexplorer/sdk/go/client"
)

// ConfigPath is the YAML file handed to config.Load; empty means defaults.
type ConfigPath string

var ProviderSet = wire.NewSet(
	ProvideConfig,
	ProvideLogger,
	ProvideBus,
	ProvideClient,
	ProvideNavigation,
	ProvideFeed,
)

func ProvideConfig(path ConfigPath) (*config.Config, error) {
	return config.Load(string(path))
}

func ProvideLogger(c *config.Config) (*log.Logger, func(), error) {
	opts, err := c.LogOptions()
	if err != nil {
		return nil, nil, err
	}
	logger, err := log.New(opts)
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}

func ProvideBus(logger *log.Logger) bus.EventBus {
	b := bus.New()
	b.AddObserver(bus.NewLogObserver(logger))
	return b
}

func ProvideClient(c *config.Config, logger *log.Logger) (*client.Client, func(), error) {
	cl, err := client.NewClient(c.ClientConfig(), client.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return cl, func() { _ = cl.Close() }, nil
}

func ProvideNavigation(cl *client.Client, logger *log.Logger) *refcache.Cache[*navigation.Tree] {
	return navigation.NewCache(cl, logger)
}

// ProvideFeed builds a listener that drops the navigation tree on every
// server notice.
func ProvideFeed(c *config.Config, b bus.EventBus, nav *refcache.Cache[*navigation.Tree], logger *log.Logger) *feed.Listener {
	return feed.NewListener(c.FeedConfig(),
		feed.WithInvalidator(nav),
		feed.WithBus(b),
		feed.WithLogger(logger))
}
