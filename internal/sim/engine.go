package sim

import (
	"context"
	"sync/atomic"

	"github.com/seawatts/grid-sub000/internal/balance"
	"github.com/seawatts/grid-sub000/internal/combat"
	"github.com/seawatts/grid-sub000/internal/enemies"
	"github.com/seawatts/grid-sub000/internal/items"
	"github.com/seawatts/grid-sub000/internal/particles"
	"github.com/seawatts/grid-sub000/internal/projectiles"
	"github.com/seawatts/grid-sub000/internal/state"
	"github.com/seawatts/grid-sub000/internal/telemetry"
	"github.com/seawatts/grid-sub000/internal/towers"
	"github.com/seawatts/grid-sub000/internal/waves"
	"github.com/seawatts/grid-sub000/logging"
	"github.com/seawatts/grid-sub000/logging/lifecycle"
)

const (
	// MinTickIntervalMs is the shortest simulation step; faster calls are
	// coalesced into the next one.
	MinTickIntervalMs = balance.TickIntervalMs
	// DefaultItemsPerWave scales item generation when not configured.
	DefaultItemsPerWave = 2

	metricTicks            = "sim_ticks_total"
	metricKills            = "sim_enemies_killed_total"
	metricWavesStarted     = "sim_waves_started_total"
	metricWavesCompleted   = "sim_waves_completed_total"
	metricParticlesLive    = "sim_particles_live"
	metricParticlesEvicted = "sim_particles_evicted_total"
)

// Deps carries shared infrastructure dependencies required by the engine.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Clock     logging.Clock
}

// Config tunes one engine instance.
type Config struct {
	Seed             string
	ItemsPerWave     int
	ParticleCapacity int
	// OnUpdate receives the aggregated delta of every executed tick.
	OnUpdate func(state.Delta)
}

// Engine runs the system pipeline over a GameState. It owns the particle
// pool, the simulation clock and the random streams; it is not safe for
// concurrent use.
type Engine struct {
	deps      Deps
	config    Config
	clock     *PausableClock
	publisher logging.Publisher

	pool        *particles.Pool
	enemies     *enemies.System
	towers      *towers.System
	projectiles *projectiles.System
	collision   *combat.System
	waves       *waves.System
	items       *items.System

	running  bool
	paused   bool
	ticked   bool
	lastTick int64
	tick     atomic.Uint64
}

// NewEngine wires the systems in their fixed order around one particle pool.
func NewEngine(deps Deps, cfg Config) *Engine {
	if deps.Metrics == nil {
		deps.Metrics = telemetry.NewCounters()
	}
	if deps.Logger == nil {
		deps.Logger = telemetry.WrapLogger(nil)
	}
	if cfg.ItemsPerWave <= 0 {
		cfg.ItemsPerWave = DefaultItemsPerWave
	}
	e := &Engine{
		deps:   deps,
		config: cfg,
		clock:  NewPausableClock(deps.Clock),
		pool:   particles.NewPool(cfg.ParticleCapacity),
	}
	e.clock.Pause()
	e.publisher = logging.WithTick(deps.Publisher, e)
	e.enemies = enemies.NewSystem(e.publisher)
	e.towers = towers.NewSystem()
	e.projectiles = projectiles.NewSystem()
	e.collision = combat.NewSystem(e.publisher, e.pool, NewDeterministicRNG(cfg.Seed, "combat"))
	e.waves = waves.NewSystem(e.publisher)
	e.items = items.NewSystem(NewDeterministicRNG(cfg.Seed, "items"))
	return e
}

// Tick returns the number of executed ticks.
func (e *Engine) Tick() uint64 {
	return e.tick.Load()
}

// Now returns the current simulation time in milliseconds.
func (e *Engine) Now() int64 {
	return e.clock.NowMs()
}

// Clock exposes the simulation clock.
func (e *Engine) Clock() *PausableClock {
	return e.clock
}

// Publisher returns the tick-stamping event publisher.
func (e *Engine) Publisher() logging.Publisher {
	return e.publisher
}

// Deps returns the injected dependencies.
func (e *Engine) Deps() Deps {
	return e.deps
}

// ParticlePool gives direct spawn access for externally triggered effects.
func (e *Engine) ParticlePool() *particles.Pool {
	return e.pool
}

// Start enables ticking. Simulation time only runs while started.
func (e *Engine) Start() {
	e.running = true
	e.Resume()
}

// Stop disables ticking and freezes time until Start is called again.
func (e *Engine) Stop() {
	e.running = false
	e.clock.Pause()
}

// Pause freezes simulation time and turns Update into a no-op.
func (e *Engine) Pause() {
	e.paused = true
	e.clock.Pause()
}

// Resume undoes Pause.
func (e *Engine) Resume() {
	e.paused = false
	if e.running {
		e.clock.Resume()
	}
}

// Running reports whether the engine is started.
func (e *Engine) Running() bool {
	return e.running
}

// Paused reports whether the engine is paused.
func (e *Engine) Paused() bool {
	return e.paused
}

// Restore prepares the engine for a freshly loaded state: particles are
// dropped, particle ids continue from the saved counter, and trap cooldowns
// are forgotten.
func (e *Engine) Restore(st state.GameState) {
	e.pool.Reset(st.Counters.NextParticleID)
	e.collision.Reset()
	e.ticked = false
}

// Update runs one tick when simulation time is running (the engine is
// started and not paused), the game is still playing and at least
// MinTickIntervalMs of simulation time has passed since the last tick. The
// aggregated delta is also handed to Config.OnUpdate.
func (e *Engine) Update(st state.GameState) state.Delta {
	if e.clock.IsPaused() || st.Status != state.StatusPlaying {
		return state.Delta{}
	}
	now := e.clock.NowMs()
	deltaMs := int64(MinTickIntervalMs)
	if e.ticked {
		deltaMs = now - e.lastTick
		if deltaMs < MinTickIntervalMs {
			return state.Delta{}
		}
	}
	e.ticked = true
	e.lastTick = now
	e.tick.Add(1)

	wasActive := st.IsWaveActive
	cur := st
	var agg state.Delta
	steps := []func(state.GameState, int64, int64) state.Delta{
		e.enemies.Update,
		e.towers.Update,
		e.projectiles.Update,
		e.collision.Update,
		e.waves.Update,
	}
	for _, step := range steps {
		d := step(cur, deltaMs, now)
		cur = d.Apply(cur)
		agg = agg.Merge(d)
	}

	evictedBefore := e.pool.Evictions()
	e.pool.Update(cur.Settings.Speed())
	live := e.pool.ToArray()
	counters := cur.Counters
	counters.NextParticleID = e.pool.NextID()
	agg.Particles = &live
	agg.Counters = &counters
	cur.Particles = live
	cur.Counters = counters

	if aged, ok := ageDamageNumbers(cur.DamageNumbers); ok {
		agg.DamageNumbers = &aged
		cur.DamageNumbers = aged
	}

	ctx := context.Background()
	if wasActive && !cur.IsWaveActive {
		d := e.items.GenerateWaveItems(cur, e.config.ItemsPerWave, false)
		cur = d.Apply(cur)
		agg = agg.Merge(d)
		e.deps.Metrics.Add(metricWavesCompleted, 1)
		lifecycle.WaveCompleted(ctx, e.publisher, 0, lifecycle.WaveCompletedPayload{
			Wave:  cur.Wave,
			Money: cur.Money,
			Lives: cur.Lives,
			Score: cur.Score,
			Kills: cur.Kills,
		}, nil)
	}

	if status := terminalStatus(cur); status != cur.Status {
		agg.Status = &status
		lifecycle.GameOver(ctx, e.publisher, 0, lifecycle.GameOverPayload{
			Status: string(status),
			Wave:   cur.Wave,
			Score:  cur.Score,
		}, nil)
	}

	e.deps.Metrics.Add(metricTicks, 1)
	if cur.Kills > st.Kills {
		e.deps.Metrics.Add(metricKills, uint64(cur.Kills-st.Kills))
	}
	if evicted := e.pool.Evictions() - evictedBefore; evicted > 0 {
		e.deps.Metrics.Add(metricParticlesEvicted, evicted)
	}
	e.deps.Metrics.Store(metricParticlesLive, uint64(e.pool.Len()))

	if e.config.OnUpdate != nil {
		e.config.OnUpdate(agg)
	}
	return agg
}

// StartWave starts the next wave at the current simulation time, then decays
// every power-up that is not bound to a tower. A *waves.PathBlockedError
// leaves the state untouched.
func (e *Engine) StartWave(st state.GameState) (state.Delta, error) {
	d, err := e.waves.StartWave(st, e.clock.NowMs())
	if err != nil || d.Empty() {
		return d, err
	}
	e.deps.Metrics.Add(metricWavesStarted, 1)
	return d.Merge(decayPowerUps(d.Apply(st))), nil
}

// GenerateItems places wave items on demand.
func (e *Engine) GenerateItems(st state.GameState, count int, clearExisting bool) state.Delta {
	return e.items.GenerateWaveItems(st, count, clearExisting)
}

func decayPowerUps(st state.GameState) state.Delta {
	placeables := make([]state.Placeable, 0, len(st.Placeables))
	for _, p := range st.Placeables {
		if p.Category == state.CategoryPowerUp && !p.IsTowerBound {
			p.RemainingWaves--
			if p.RemainingWaves <= 0 {
				continue
			}
		}
		placeables = append(placeables, p)
	}
	active := make([]state.WavePowerUp, 0, len(st.ActivePowerUps))
	for _, p := range st.ActivePowerUps {
		if !p.Duration.Permanent {
			p.WavesRemaining--
			if p.WavesRemaining <= 0 {
				continue
			}
		}
		active = append(active, p)
	}
	return state.Delta{Placeables: &placeables, ActivePowerUps: &active}
}

func ageDamageNumbers(numbers []state.DamageNumber) ([]state.DamageNumber, bool) {
	if len(numbers) == 0 {
		return nil, false
	}
	aged := make([]state.DamageNumber, 0, len(numbers))
	for _, n := range numbers {
		n.Life--
		if n.Life <= 0 {
			continue
		}
		aged = append(aged, n)
	}
	return aged, true
}

func terminalStatus(st state.GameState) state.GameStatus {
	if st.Status != state.StatusPlaying {
		return st.Status
	}
	if st.Lives <= 0 {
		return state.StatusLost
	}
	if st.MaxWaves > 0 && st.Wave >= st.MaxWaves && !st.IsWaveActive && !st.EnemiesRemaining() {
		return state.StatusWon
	}
	return state.StatusPlaying
}
