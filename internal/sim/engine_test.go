package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seawatts/grid-sub000/internal/particles"
	"github.com/seawatts/grid-sub000/internal/state"
	"github.com/seawatts/grid-sub000/internal/telemetry"
	"github.com/seawatts/grid-sub000/logging"
	"github.com/seawatts/grid-sub000/logging/lifecycle"
	"github.com/seawatts/grid-sub000/logging/sinks"
)

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) advance(ms int64) {
	c.now = c.now.Add(time.Duration(ms) * time.Millisecond)
}

type harness struct {
	engine  *Engine
	clock   *manualClock
	events  *sinks.MemorySink
	metrics *telemetry.Counters
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &manualClock{now: time.Unix(1700000000, 0)}
	events := sinks.NewMemorySink()
	metrics := telemetry.NewCounters()
	engine := NewEngine(Deps{Metrics: metrics, Publisher: events, Clock: clock}, Config{Seed: "test", ParticleCapacity: 128})
	return &harness{engine: engine, clock: clock, events: events, metrics: metrics}
}

func corridor() state.GameState {
	return state.New(state.Grid{
		Width:  10,
		Height: 5,
		Starts: []state.Position{{X: 0, Y: 2}},
		Goals:  []state.Position{{X: 9, Y: 2}},
	}, 200, 20, 0)
}

func TestUpdateIsNoopUntilStarted(t *testing.T) {
	h := newHarness(t)
	st := corridor()

	assert.True(t, h.engine.Update(st).Empty())
	h.clock.advance(500)
	assert.Equal(t, int64(0), h.engine.Now(), "time does not run before Start")

	h.engine.Start()
	assert.False(t, h.engine.Update(st).Empty())
	assert.Equal(t, uint64(1), h.engine.Tick())
}

func TestStopFreezesClockUntilRestart(t *testing.T) {
	h := newHarness(t)
	st := corridor()
	h.engine.Start()
	h.clock.advance(100)
	require.False(t, h.engine.Update(st).Empty())

	h.engine.Stop()
	h.clock.advance(1000)
	assert.True(t, h.engine.Clock().IsPaused())
	assert.False(t, h.engine.Paused(), "stopping is not a player pause")
	assert.True(t, h.engine.Update(st).Empty())

	h.engine.Start()
	h.clock.advance(50)
	assert.Equal(t, int64(150), h.engine.Now())
	assert.False(t, h.engine.Update(st).Empty())
}

func TestPauseFreezesTimeAndUpdates(t *testing.T) {
	h := newHarness(t)
	st := corridor()
	h.engine.Start()
	h.clock.advance(100)

	h.engine.Pause()
	h.clock.advance(1000)
	assert.Equal(t, int64(100), h.engine.Now())
	assert.True(t, h.engine.Clock().IsPaused())
	assert.True(t, h.engine.Update(st).Empty())

	h.engine.Resume()
	h.clock.advance(50)
	assert.Equal(t, int64(150), h.engine.Now())
	assert.False(t, h.engine.Update(st).Empty())
}

func TestFastCallsAreCoalesced(t *testing.T) {
	h := newHarness(t)
	st := corridor()
	h.engine.Start()

	require.False(t, h.engine.Update(st).Empty())
	h.clock.advance(20)
	assert.True(t, h.engine.Update(st).Empty())
	h.clock.advance(29)
	assert.True(t, h.engine.Update(st).Empty())
	h.clock.advance(1)
	assert.False(t, h.engine.Update(st).Empty())
	assert.Equal(t, uint64(2), h.engine.Tick())
	assert.Equal(t, uint64(2), h.metrics.Snapshot()[metricTicks])
}

func TestOnUpdateReceivesAggregatedDelta(t *testing.T) {
	var seen []state.Delta
	clock := &manualClock{now: time.Unix(0, 0)}
	engine := NewEngine(Deps{Clock: clock}, Config{OnUpdate: func(d state.Delta) { seen = append(seen, d) }})
	engine.Start()

	d := engine.Update(corridor())

	require.Len(t, seen, 1)
	assert.Equal(t, d, seen[0])
}

func TestLivesNeverGoNegativeAndRunIsLost(t *testing.T) {
	h := newHarness(t)
	st := state.New(state.Grid{Width: 10, Height: 1}, 100, 1, 0)
	path := []state.Position{{X: 0}, {X: 1}, {X: 2}}
	st.IsWaveActive = true
	st.SpawnedEnemies = []state.Enemy{
		{ID: 1, Path: path, PathIndex: 2, Speed: 0.05, Health: 10, Type: state.EnemyBasic},
		{ID: 2, Path: path, PathIndex: 2, Speed: 0.05, Health: 10, Type: state.EnemyBasic},
	}
	h.engine.Start()

	st = h.engine.Update(st).Apply(st)

	assert.Equal(t, 0, st.Lives)
	assert.Equal(t, state.StatusLost, st.Status)
	assert.Len(t, h.events.OfType(lifecycle.EventGameOver), 1)

	h.clock.advance(50)
	assert.True(t, h.engine.Update(st).Empty(), "a finished run no longer ticks")
}

func TestFinalWaveCompletionWinsTheRun(t *testing.T) {
	h := newHarness(t)
	st := corridor()
	st.MaxWaves = 1
	st.Wave = 1
	st.IsWaveActive = true
	h.engine.Start()

	st = h.engine.Update(st).Apply(st)

	assert.False(t, st.IsWaveActive)
	assert.Equal(t, state.StatusWon, st.Status)
	require.Len(t, h.events.OfType(lifecycle.EventWaveCompleted), 1)
	assert.Equal(t, uint64(1), h.events.OfType(lifecycle.EventWaveCompleted)[0].Tick)
	assert.Len(t, h.events.OfType(lifecycle.EventGameOver), 1)
	assert.Equal(t, uint64(1), h.metrics.Snapshot()[metricWavesCompleted])
}

func TestWaveCompletionRegeneratesItems(t *testing.T) {
	h := newHarness(t)
	st := corridor()
	st.Wave = 1
	st.IsWaveActive = true
	st.RunUpgrades = map[state.UpgradeID]int{state.UpgradeLandmineFrequency: 1}
	h.engine.Start()

	st = h.engine.Update(st).Apply(st)

	assert.Equal(t, state.StatusPlaying, st.Status)
	require.NotEmpty(t, st.Placeables)
	for _, p := range st.Placeables {
		assert.Equal(t, state.PlaceableLandmine, p.Type)
	}
}

func TestDamageNumbersAgeOut(t *testing.T) {
	h := newHarness(t)
	st := corridor()
	st.DamageNumbers = []state.DamageNumber{{ID: 1, Life: 1}, {ID: 2, Life: 5}}
	h.engine.Start()

	st = h.engine.Update(st).Apply(st)

	require.Len(t, st.DamageNumbers, 1)
	assert.Equal(t, 2, st.DamageNumbers[0].ID)
	assert.Equal(t, 4, st.DamageNumbers[0].Life)
}

func TestParticleCounterFollowsPool(t *testing.T) {
	h := newHarness(t)
	st := corridor()
	h.engine.Start()
	h.engine.ParticlePool().Spawn(1, 1, 0, 0, 10, particles.RGB{R: 0xff, G: 0xff, B: 0xff})

	st = h.engine.Update(st).Apply(st)

	assert.Len(t, st.Particles, 1)
	assert.Equal(t, 2, st.Counters.NextParticleID)
}

func TestStartWaveDecaysUnboundPowerUps(t *testing.T) {
	h := newHarness(t)
	st := corridor()
	node := func(id, remaining int, bound bool) state.Placeable {
		return state.Placeable{
			ID:             id,
			Category:       state.CategoryPowerUp,
			Type:           state.PlaceablePowerNode,
			Positions:      []state.Position{{X: float64(id), Y: 0}},
			Boost:          1.25,
			RemainingWaves: remaining,
			IsTowerBound:   bound,
		}
	}
	st.Placeables = []state.Placeable{node(1, 1, false), node(2, 1, true), node(3, 3, false)}
	st.ActivePowerUps = []state.WavePowerUp{
		{ID: 1, Duration: state.Duration{Permanent: true}},
		{ID: 2, Duration: state.Duration{Waves: 1}, WavesRemaining: 1},
		{ID: 3, Duration: state.Duration{Waves: 3}, WavesRemaining: 2},
	}

	delta, err := h.engine.StartWave(st)
	require.NoError(t, err)
	st = delta.Apply(st)

	require.Len(t, st.Placeables, 2)
	assert.Equal(t, 2, st.Placeables[0].ID)
	assert.Equal(t, 1, st.Placeables[0].RemainingWaves, "tower-bound nodes never decay")
	assert.Equal(t, 2, st.Placeables[1].RemainingWaves)

	require.Len(t, st.ActivePowerUps, 2)
	assert.Equal(t, 1, st.ActivePowerUps[0].ID)
	assert.Equal(t, 1, st.ActivePowerUps[1].WavesRemaining)
	assert.Equal(t, 1, st.Wave)
}

func TestStartWaveWhileActiveLeavesPowerUpsAlone(t *testing.T) {
	h := newHarness(t)
	st := corridor()
	st.IsWaveActive = true
	st.ActivePowerUps = []state.WavePowerUp{{ID: 1, Duration: state.Duration{Waves: 1}, WavesRemaining: 1}}

	delta, err := h.engine.StartWave(st)

	require.NoError(t, err)
	assert.True(t, delta.Empty())
}

func TestTerminalStatus(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*state.GameState)
		want   state.GameStatus
	}{
		{"playing", func(*state.GameState) {}, state.StatusPlaying},
		{"lost", func(s *state.GameState) { s.Lives = 0 }, state.StatusLost},
		{"endless", func(s *state.GameState) { s.Wave = 50 }, state.StatusPlaying},
		{"won", func(s *state.GameState) { s.MaxWaves, s.Wave = 5, 5 }, state.StatusWon},
		{"final wave still running", func(s *state.GameState) { s.MaxWaves, s.Wave, s.IsWaveActive = 5, 5, true }, state.StatusPlaying},
		{"final wave pending spawn", func(s *state.GameState) {
			s.MaxWaves, s.Wave = 5, 5
			s.UnspawnedEnemies = []state.Enemy{{ID: 1}}
		}, state.StatusPlaying},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := corridor()
			tc.mutate(&st)
			assert.Equal(t, tc.want, terminalStatus(st))
		})
	}
}

var _ logging.Clock = (*manualClock)(nil)
