package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seawatts/grid-sub000/internal/balance"
	"github.com/seawatts/grid-sub000/internal/state"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 20, cfg.Server.TickRate)
	assert.Equal(t, 3*time.Second, cfg.Server.AutoAdvanceDelay)
	assert.Equal(t, "gridtd", cfg.Sim.Seed)
	assert.Equal(t, 2, cfg.Sim.ItemsPerWave)
	assert.Equal(t, 10000, cfg.Sim.ParticleCapacity)
	assert.Equal(t, balance.StartingMoney, cfg.Sim.StartingMoney)
	assert.Equal(t, 20, cfg.Map.Width)
	assert.Equal(t, []CellConfig{{X: 0, Y: 6}}, cfg.Map.Starts)
	assert.Equal(t, []CellConfig{{X: 19, Y: 6}}, cfg.Map.Goals)
	assert.Equal(t, BackendJSON, cfg.Storage.Backend)
	assert.False(t, cfg.Influx.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	dir := t.TempDir()
	body := `
server:
  addr: ":9090"
  autoAdvanceDelay: 5s
map:
  width: 6
  height: 3
  starts: [{x: 0, y: 0}, {x: 0, y: 2}]
  goals: [{x: 5, y: 1}]
  obstacles: [{x: 3, y: 1}]
upgrades:
  powerNodeFrequency: 2
  damage: 1
storage:
  backend: sqlite
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gridtd.yaml"), []byte(body), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.AutoAdvanceDelay)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	grid := cfg.Grid()
	assert.Len(t, grid.Starts, 2)
	assert.Equal(t, []state.Position{{X: 3, Y: 1}}, grid.Obstacles)

	upgrades, err := cfg.RunUpgrades()
	require.NoError(t, err)
	assert.Equal(t, 2, upgrades[state.UpgradePowerNodeFrequency])
	assert.Equal(t, 1, upgrades[state.UpgradeDamage])
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gridtd.json"), []byte(`{"server":{"addr":":7000"}}`), 0o644))
	t.Setenv("GRIDTD_SERVER_ADDR", ":7777")
	t.Setenv("GRIDTD_SIM_SEED", "from-env")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, ":7777", cfg.Server.Addr)
	assert.Equal(t, "from-env", cfg.Sim.Seed)
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"backend":       `{"storage":{"backend":"mongo"}}`,
		"upgrade":       `{"upgrades":{"teleport":1}}`,
		"upgrade level": `{"upgrades":{"damage":9}}`,
		"cell":          `{"map":{"width":4,"height":4,"goals":[{"x":9,"y":0}]}}`,
		"malformed":     `{"server":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "gridtd.json"), []byte(body), 0o644))

			_, err := Load(dir)
			assert.Error(t, err)
		})
	}
}

func TestInitialStateAppliesUpgrades(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	cfg.Upgrades = map[string]int{"startingmoney": 2}
	cfg.Sim.AutoAdvance = true

	st := cfg.InitialState()

	assert.Equal(t, balance.StartingMoney+100, st.Money)
	assert.Equal(t, balance.StartingLives, st.Lives)
	assert.Equal(t, 30, st.MaxWaves)
	assert.True(t, st.Settings.AutoAdvance)
	assert.Equal(t, state.StatusPlaying, st.Status)
	assert.Equal(t, 2, st.RunUpgrades[state.UpgradeStartingMoney])
}
