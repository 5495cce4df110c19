package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ucexplorer/ucexplorer/internal/core/ledger"
	"github.com/ucexplorer/ucexplorer/internal/core/observability/log"
	"github.com/ucexplorer/ucexplorer/pkg/api"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, []string{"alignment", "areas", "injection", "usecases"}, c.ProfileNames())
}

func TestLoadYAML(t *testing.T) {
	src := `
server:
  base_url: https://explorer.example.com
  timeout: 15s
log:
  level: debug
  encoding: json
feed:
  url: wss://explorer.example.com/ws
  reconnect_interval: 2s
ledgers:
  waves:
    endpoint: /api/waves/batch-update
    array: changes
    kind_key: type
    fields:
      wave: integer
    required: [wave]
`
	c, err := LoadYAML(strings.NewReader(src))
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, "https://explorer.example.com", c.Server.BaseURL)
	assert.Equal(t, 15*time.Second, c.Server.Timeout)
	assert.Equal(t, "/api/areas", c.Server.AreasPath, "defaults survive partial files")
	assert.Equal(t, 2*time.Second, c.FeedConfig().ReconnectInterval)

	p, err := c.Profile("waves")
	require.NoError(t, err)
	assert.Equal(t, "changes", p.Array)
	_, err = c.Profile("alignment")
	assert.NoError(t, err)

	opts, err := c.LogOptions()
	require.NoError(t, err)
	assert.Equal(t, log.LevelDebug, opts.Level)
	assert.Equal(t, "json", opts.Encoding)
}

func TestLoadYAML_UnknownKey(t *testing.T) {
	_, err := LoadYAML(strings.NewReader("server:\n  base: x\n"))
	assert.Error(t, err)
}

func TestLoadYAML_Empty(t *testing.T) {
	c, err := LoadYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default().Server, c.Server)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"relative base url", func(c *Config) { c.Server.BaseURL = "localhost:5000" }, "server.base_url"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad encoding", func(c *Config) { c.Log.Encoding = "xml" }, "log.encoding"},
		{"http feed", func(c *Config) { c.Feed.URL = "http://x/ws" }, "feed.url"},
		{"no endpoint", func(c *Config) { c.Ledgers["x"] = LedgerProfile{} }, "ledgers.x: endpoint"},
		{"bad kind", func(c *Config) {
			c.Ledgers["x"] = LedgerProfile{Endpoint: "/x", Fields: map[string]string{"a": "date"}}
		}, "fields.a"},
		{"relationship without mapping", func(c *Config) {
			c.Ledgers["x"] = LedgerProfile{Endpoint: "/x", Encoder: "relationship"}
		}, "needs relationships"},
		{"unknown encoder", func(c *Config) {
			c.Ledgers["x"] = LedgerProfile{Endpoint: "/x", Encoder: "xml"}
		}, "unknown encoder"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			err := c.Validate()
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	env := map[string]string{EnvBaseURL: " http://10.0.0.5:8080 ", EnvLogLevel: "warn"}
	c.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	assert.Equal(t, "http://10.0.0.5:8080", c.Server.BaseURL)
	assert.Equal(t, "warn", c.Log.Level)
	assert.Equal(t, "ws://10.0.0.5:8080/ws", c.FeedConfig().URL)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "explorer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\n"), 0o600))
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvBaseURL, "")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", c.Log.Level)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLedgerOptions_Relationship(t *testing.T) {
	c := Default()
	p, err := c.Profile("alignment")
	require.NoError(t, err)
	opts, err := p.LedgerOptions()
	require.NoError(t, err)

	var body any
	l := ledger.New("alignment", ledger.CommitterFunc(func(_ context.Context, endpoint string, b any) (*api.BatchResponse, error) {
		assert.Equal(t, "/api/alignment/batch-update", endpoint)
		body = b
		ok := true
		return &api.BatchResponse{Success: &ok}, nil
	}), opts...)

	_, err = l.RecordFieldEdit(ledger.NewRef("usecase", 4), "process_step_id", "9", 2)
	require.NoError(t, err)
	assert.Equal(t, ledger.KindInteger, l.FieldKind("process_step_id"))

	_, err = l.CommitAll(context.Background())
	require.NoError(t, err)
	m := body.(map[string][]map[string]any)
	assert.Empty(t, m["process_step_changes"])
	assert.Equal(t, []map[string]any{{"usecase_id": int64(4), "new_process_step_id": int64(9)}}, m["usecase_changes"])
}
