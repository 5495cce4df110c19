package injector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ucexplorer/ucexplorer/internal/config"
	"github.com/ucexplorer/ucexplorer/internal/core/injection"
	"github.com/ucexplorer/ucexplorer/internal/core/ledger"
)

func explorerServer(t *testing.T, batches *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/areas", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"id": 1, "name": "Finance"}]`))
	})
	mux.HandleFunc("/api/process-steps", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items": [{"id": 2, "name": "Invoicing", "area_id": 1}]}`))
	})
	mux.HandleFunc("/api/usecases", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"id": 3, "name": "Send invoice", "process_step_id": 2}]`))
	})
	mux.HandleFunc("/api/usecases/batch-update", func(w http.ResponseWriter, r *http.Request) {
		batches.Add(1)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"success": true, "successful_updates": 1, "total_updates": 1}`))
	})
	mux.HandleFunc("/api/process-steps/inject", func(w http.ResponseWriter, _ *http.Request) {
		batches.Add(1)
		_, _ = w.Write([]byte(`{"success": true}`))
	})
	s := httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func writeConfig(t *testing.T, baseURL string) ConfigPath {
	t.Helper()
	t.Setenv(config.EnvBaseURL, "")
	t.Setenv(config.EnvLogLevel, "")
	src := strings.Join([]string{
		"server:",
		"  base_url: " + baseURL,
		"log:",
		"  level: error",
		"ledgers:",
		"  usecases:",
		"    endpoint: /api/usecases/batch-update",
		"    fields:",
		"      name: text",
		"    reload_delay: 10ms",
		"",
	}, "\n")
	path := filepath.Join(t.TempDir(), "explorer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
	return ConfigPath(path)
}

func TestInitializeApp(t *testing.T) {
	var batches atomic.Int32
	s := explorerServer(t, &batches)

	app, cleanup, err := InitializeApp(writeConfig(t, s.URL))
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, s.URL, app.Client.Config().BaseURL)
	assert.Equal(t, "ws"+strings.TrimPrefix(s.URL, "http")+"/ws", app.Config.FeedConfig().URL)

	tree, err := app.Navigation.Get(context.Background())
	require.NoError(t, err)
	trail, err := tree.Trail("3")
	require.NoError(t, err)
	assert.Len(t, trail, 3)
}

func TestInitializeApp_BadConfig(t *testing.T) {
	_, _, err := InitializeApp(ConfigPath(filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, err)
}

func TestApp_LedgerReloadInvalidatesNavigation(t *testing.T) {
	var batches atomic.Int32
	s := explorerServer(t, &batches)
	app, cleanup, err := InitializeApp(writeConfig(t, s.URL))
	require.NoError(t, err)
	defer cleanup()

	_, err = app.Navigation.Get(context.Background())
	require.NoError(t, err)

	l, err := app.Ledger("usecases")
	require.NoError(t, err)
	_, err = l.RecordFieldEdit(ledger.NewRef("usecase", 3), "name", "Send reminder", "Send invoice")
	require.NoError(t, err)

	res, err := l.CommitAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSucceeded, res.Status)
	assert.Equal(t, int32(1), batches.Load())

	assert.Eventually(t, func() bool {
		_, ok := app.Navigation.Peek()
		return !ok
	}, time.Second, 5*time.Millisecond)

	_, err = app.Ledger("nope")
	assert.ErrorIs(t, err, config.ErrUnknownProfile)
}

func TestApp_Preview(t *testing.T) {
	var batches atomic.Int32
	s := explorerServer(t, &batches)
	app, cleanup, err := InitializeApp(writeConfig(t, s.URL))
	require.NoError(t, err)
	defer cleanup()

	p, err := app.Preview([]injection.Row{
		{ID: "7", Action: injection.ActionCreate, Fields: map[string]any{"name": "Dunning", "area_id": 1}},
	})
	require.NoError(t, err)
	_, err = p.Apply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), batches.Load())
}
