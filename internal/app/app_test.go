package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seawatts/grid-sub000/internal/config"
	"github.com/seawatts/grid-sub000/internal/persistence"
	"github.com/seawatts/grid-sub000/internal/sim"
	"github.com/seawatts/grid-sub000/internal/telemetry"
)

func TestOpenStoreBackends(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name    string
		cfg     config.StorageConfig
		wantNil bool
		wantErr bool
	}{
		{name: "none", cfg: config.StorageConfig{Backend: config.BackendNone}, wantNil: true},
		{name: "json", cfg: config.StorageConfig{Backend: config.BackendJSON, Dir: filepath.Join(dir, "saves")}},
		{name: "sqlite", cfg: config.StorageConfig{Backend: config.BackendSQLite, SQLitePath: filepath.Join(dir, "saves.db")}},
		{name: "sqlite memory", cfg: config.StorageConfig{Backend: config.BackendSQLite}},
		{name: "unknown", cfg: config.StorageConfig{Backend: "etcd"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := openStore(tc.cfg)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tc.wantNil {
				assert.Nil(t, store)
				return
			}
			require.NotNil(t, store)
			t.Cleanup(func() { store.Close() })
			saves, err := store.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, saves)
		})
	}
}

func TestBuildSinksSkipsUnconfigured(t *testing.T) {
	cfg := config.Config{}
	cfg.Logging.Console = true
	cfg.Logging.JSONPath = filepath.Join(t.TempDir(), "events.ndjson")

	named := buildSinks(context.Background(), cfg, telemetry.WrapLogger(nil))

	names := make([]string, 0, len(named))
	for _, s := range named {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"console", "json"}, names)
	_, err := os.Stat(cfg.Logging.JSONPath)
	assert.NoError(t, err)
}

func TestBuildMetricsFansOutToOtel(t *testing.T) {
	cfg := config.Config{}
	metrics, err := buildMetrics(cfg)
	require.NoError(t, err)
	assert.IsType(t, &telemetry.Counters{}, metrics)

	cfg.Otel.Enabled = true
	metrics, err = buildMetrics(cfg)
	require.NoError(t, err)
	assert.NotPanics(t, func() { metrics.Add("sim_ticks_total", 1) })
}

func TestRestoreSlotResumesSavedRun(t *testing.T) {
	store, err := persistence.NewJSONStore(t.TempDir())
	require.NoError(t, err)

	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	saved := cfg.InitialState()
	saved.Money = 999
	saved.Wave = 4
	require.NoError(t, persistence.SaveFunc(store, nil)(context.Background(), "resume", saved, 0))

	loop := sim.NewLoop(sim.NewEngine(sim.Deps{}, sim.Config{}), cfg.InitialState(), sim.LoopConfig{}, sim.LoopHooks{})
	require.NoError(t, restoreSlot(context.Background(), loop, store, "resume"))
	assert.Equal(t, 999, loop.Snapshot().Money)
	assert.Equal(t, 4, loop.Snapshot().Wave)

	require.NoError(t, restoreSlot(context.Background(), loop, store, "absent"))
	assert.Equal(t, 999, loop.Snapshot().Money)
}

func TestRunStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gridtd.yaml"), []byte(`
server:
  addr: "127.0.0.1:0"
storage:
  backend: none
logging:
  console: false
`), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, Options{ConfigDir: dir}) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gridtd.yaml"), []byte(`
server:
  tickRate: 0
`), 0o644))

	err := Run(context.Background(), Options{ConfigDir: dir})
	require.Error(t, err)
}
