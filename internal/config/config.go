// Package config loads explorerctl settings from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ucexplorer/ucexplorer/internal/core/feed"
	"github.com/ucexplorer/ucexplorer/internal/core/imagecapture"
	"github.com/ucexplorer/ucexplorer/internal/core/ledger"
	"github.com/ucexplorer/ucexplorer/internal/core/observability/log"
	"github.com/ucexplorer/ucexplorer/sdk/go/client"
)

const (
	EnvBaseURL  = "UCX_BASE_URL"
	EnvLogLevel = "UCX_LOG_LEVEL"
)

var (
	ErrInvalid        = errors.New("invalid configuration")
	ErrUnknownProfile = errors.New("unknown ledger profile")
)

type Config struct {
	Server  ServerConfig             `yaml:"server"`
	Log     LogConfig                `yaml:"log"`
	Feed    FeedConfig               `yaml:"feed"`
	Image   ImageConfig              `yaml:"image"`
	Ledgers map[string]LedgerProfile `yaml:"ledgers"`
}

type ServerConfig struct {
	BaseURL          string        `yaml:"base_url"`
	Timeout          time.Duration `yaml:"timeout"`
	UserAgent        string        `yaml:"user_agent"`
	AreasPath        string        `yaml:"areas_path"`
	ProcessStepsPath string        `yaml:"process_steps_path"`
	UseCasesPath     string        `yaml:"usecases_path"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

type FeedConfig struct {
	URL                  string        `yaml:"url"`
	ReconnectInterval    time.Duration `yaml:"reconnect_interval"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
}

type ImageConfig struct {
	MaxBytes int `yaml:"max_bytes"`
}

// LedgerProfile describes one editable view: where its batch goes and how
// the body is shaped.
type LedgerProfile struct {
	Endpoint string `yaml:"endpoint"`
	// Encoder is "fields" (default) or "relationship".
	Encoder       string                `yaml:"encoder"`
	Relationships []ledger.Relationship `yaml:"relationships,omitempty"`
	Array         string                `yaml:"array,omitempty"`
	IDKey         string                `yaml:"id_key,omitempty"`
	FieldsKey     string                `yaml:"fields_key,omitempty"`
	KindKey       string                `yaml:"kind_key,omitempty"`
	Fields        map[string]string     `yaml:"fields,omitempty"`
	Required      []string              `yaml:"required,omitempty"`
	ReloadDelay   time.Duration         `yaml:"reload_delay,omitempty"`
}

// Default returns a configuration that talks to a local server.
func Default() Config {
	return Config{
		Server: ServerConfig{
			BaseURL:          "http://localhost:5000",
			UserAgent:        "explorerctl",
			AreasPath:        "/api/areas",
			ProcessStepsPath: "/api/process-steps",
			UseCasesPath:     "/api/usecases",
		},
		Log: LogConfig{Level: "info", Encoding: "console"},
		Feed: FeedConfig{
			ReconnectInterval:    5 * time.Second,
			MaxReconnectAttempts: 10,
		},
		Image: ImageConfig{MaxBytes: imagecapture.DefaultMaxBytes},
		Ledgers: map[string]LedgerProfile{
			"alignment": {
				Endpoint: "/api/alignment/batch-update",
				Encoder:  "relationship",
				Relationships: []ledger.Relationship{
					{Kind: "process_step", Field: "area_id", Array: "process_step_changes", IDKey: "process_step_id", TargetKey: "new_area_id"},
					{Kind: "usecase", Field: "process_step_id", Array: "usecase_changes", IDKey: "usecase_id", TargetKey: "new_process_step_id"},
				},
				Fields:      map[string]string{"area_id": "integer", "process_step_id": "integer"},
				ReloadDelay: 1500 * time.Millisecond,
			},
			"usecases": {
				Endpoint: "/api/usecases/batch-update",
				Encoder:  "fields",
				Fields:   map[string]string{"name": "text", "process_step_id": "integer", "wave": "auto"},
				Required: []string{"name"},
			},
			"areas": {
				Endpoint: "/api/areas/batch-update",
				Encoder:  "fields",
				Fields:   map[string]string{"name": "text", "description": "text"},
				Required: []string{"name"},
			},
			"injection": {
				Endpoint: "/api/process-steps/inject",
				Fields:   map[string]string{"name": "text", "area_id": "integer"},
			},
		},
	}
}

// LoadYAML reads a config from r on top of Default.
func LoadYAML(r io.Reader) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &c, nil
}

// Load reads path, applies environment overrides and validates. An empty
// path yields the defaults.
func Load(path string) (*Config, error) {
	var c *Config
	if path == "" {
		d := Default()
		c = &d
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer func() { _ = f.Close() }()
		if c, err = LoadYAML(f); err != nil {
			return nil, err
		}
	}
	c.ApplyEnv(os.LookupEnv)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvBaseURL); ok && strings.TrimSpace(v) != "" {
		c.Server.BaseURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		c.Log.Level = strings.TrimSpace(v)
	}
}

func (c *Config) Validate() error {
	var errs []error
	if u, err := url.Parse(c.Server.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("server.base_url %q must be an absolute http(s) url", c.Server.BaseURL))
	}
	if c.Server.Timeout < 0 {
		errs = append(errs, errors.New("server.timeout must not be negative"))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Encoding != "" && c.Log.Encoding != "json" && c.Log.Encoding != "console" {
		errs = append(errs, fmt.Errorf("log.encoding %q must be json or console", c.Log.Encoding))
	}
	if c.Feed.URL != "" {
		if u, err := url.Parse(c.Feed.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			errs = append(errs, fmt.Errorf("feed.url %q must be a ws(s) url", c.Feed.URL))
		}
	}
	if c.Feed.MaxReconnectAttempts < 0 {
		errs = append(errs, errors.New("feed.max_reconnect_attempts must not be negative"))
	}
	for _, name := range c.ProfileNames() {
		if err := c.Ledgers[name].validate(); err != nil {
			errs = append(errs, fmt.Errorf("ledgers.%s: %w", name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func (p LedgerProfile) validate() error {
	if p.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	switch p.Encoder {
	case "", "fields":
	case "relationship":
		if len(p.Relationships) == 0 {
			return errors.New("relationship encoder needs relationships")
		}
		for i, r := range p.Relationships {
			if r.Field == "" || r.Array == "" || r.IDKey == "" || r.TargetKey == "" {
				return fmt.Errorf("relationships[%d]: field, array, id_key and target_key are required", i)
			}
		}
	default:
		return fmt.Errorf("unknown encoder %q", p.Encoder)
	}
	for field, kind := range p.Fields {
		if _, err := ledger.ParseFieldKind(kind); err != nil {
			return fmt.Errorf("fields.%s: %w", field, err)
		}
	}
	return nil
}

func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Ledgers))
	for name := range c.Ledgers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Config) Profile(name string) (LedgerProfile, error) {
	p, ok := c.Ledgers[name]
	if !ok {
		return LedgerProfile{}, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	return p, nil
}

// LedgerOptions turns the profile into ledger options; callers append their
// own view, notifier and confirmer.
func (p LedgerProfile) LedgerOptions() ([]ledger.Option, error) {
	opts := []ledger.Option{ledger.WithEndpoint(p.Endpoint)}
	switch p.Encoder {
	case "relationship":
		opts = append(opts, ledger.WithEncoder(ledger.RelationshipEncoder{Relationships: p.Relationships}))
	default:
		opts = append(opts, ledger.WithEncoder(ledger.FieldsEncoder{
			Array:     p.Array,
			IDKey:     p.IDKey,
			FieldsKey: p.FieldsKey,
			KindKey:   p.KindKey,
		}))
	}
	for field, name := range p.Fields {
		kind, err := ledger.ParseFieldKind(name)
		if err != nil {
			return nil, fmt.Errorf("fields.%s: %w", field, err)
		}
		opts = append(opts, ledger.WithFieldKind(field, kind))
	}
	if len(p.Required) > 0 {
		opts = append(opts, ledger.WithRequiredFields(p.Required...))
	}
	return opts, nil
}

func (c *Config) ClientConfig() client.Config {
	return client.Config{
		BaseURL:          c.Server.BaseURL,
		Timeout:          c.Server.Timeout,
		UserAgent:        c.Server.UserAgent,
		AreasPath:        c.Server.AreasPath,
		ProcessStepsPath: c.Server.ProcessStepsPath,
		UseCasesPath:     c.Server.UseCasesPath,
	}
}

func (c *Config) LogOptions() (log.Options, error) {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.Options{}, err
	}
	return log.Options{Level: level, Encoding: c.Log.Encoding}, nil
}

// FeedConfig returns listener settings; the url defaults to /ws on the
// server with the scheme switched to ws(s).
func (c *Config) FeedConfig() feed.Config {
	fc := feed.DefaultConfig()
	fc.URL = c.Feed.URL
	if fc.URL == "" {
		if u, err := url.Parse(c.Server.BaseURL); err == nil {
			switch u.Scheme {
			case "https":
				u.Scheme = "wss"
			default:
				u.Scheme = "ws"
			}
			u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
			fc.URL = u.String()
		}
	}
	if c.Feed.ReconnectInterval > 0 {
		fc.ReconnectInterval = c.Feed.ReconnectInterval
	}
	fc.MaxReconnectAttempts = c.Feed.MaxReconnectAttempts
	return fc
}
