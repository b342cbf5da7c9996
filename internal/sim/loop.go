package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/seawatts/grid-sub000/internal/state"
	"github.com/seawatts/grid-sub000/internal/telemetry"
	"github.com/seawatts/grid-sub000/internal/waves"
	"github.com/seawatts/grid-sub000/logging"
	"github.com/seawatts/grid-sub000/logging/lifecycle"
	"github.com/seawatts/grid-sub000/logging/simulation"
)

const (
	// CommandRejectQueueFull indicates the command buffer is saturated.
	CommandRejectQueueFull = "queue_full"

	// DefaultTickRate drives Engine.Update at the minimum tick interval.
	DefaultTickRate = 1000 / MinTickIntervalMs
	// DefaultCommandCapacity bounds the staged command queue.
	DefaultCommandCapacity = 256
	// DefaultAutoAdvanceDelay separates a completed wave from the next
	// automatic start.
	DefaultAutoAdvanceDelay = 3 * time.Second

	metricTickOverruns    = "sim_tick_overruns_total"
	metricCommandsDropped = "sim_commands_dropped_total"
)

var (
	// ErrNoPersistence indicates save or load was requested without a store.
	ErrNoPersistence = errors.New("sim: persistence not configured")
	// ErrUnknownCommand indicates an unsupported command type.
	ErrUnknownCommand = errors.New("sim: unknown command")
	// ErrMissingPayload indicates a command arrived without its payload.
	ErrMissingPayload = errors.New("sim: command payload missing")
)

// LoopConfig tunes the command buffer and tick loop orchestration.
type LoopConfig struct {
	TickRate         int
	CommandCapacity  int
	AutoAdvanceDelay time.Duration
}

// LoopHooks lets the host observe steps and supply persistence.
type LoopHooks struct {
	AfterStep     func(LoopStepResult)
	OnCommandDrop func(reason string, cmd Command)
	// Save stores st under slot; now is the simulation time of the save.
	Save func(ctx context.Context, slot string, st state.GameState, now int64) error
	// Load returns the state stored under slot, rebased to now.
	Load func(ctx context.Context, slot string, now int64) (state.GameState, error)
}

// LoopStepResult describes one loop iteration.
type LoopStepResult struct {
	Tick     uint64
	Now      int64
	Delta    state.Delta
	Reset    bool
	Commands []CommandResult
	Duration time.Duration
	Budget   time.Duration
}

// Loop owns the authoritative GameState. Commands are staged from any
// goroutine and applied between ticks on the loop goroutine.
type Loop struct {
	engine  *Engine
	buffer  *CommandBuffer
	hooks   LoopHooks
	config  LoopConfig
	logger  telemetry.Logger
	metrics telemetry.Metrics

	mu    sync.RWMutex
	state state.GameState

	autoAdvanceAt int64
	overrunStreak uint64
}

// NewLoop wraps the engine with a ring-buffer queue and loop around st.
func NewLoop(engine *Engine, st state.GameState, cfg LoopConfig, hooks LoopHooks) *Loop {
	if engine == nil {
		return nil
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultTickRate
	}
	if cfg.CommandCapacity <= 0 {
		cfg.CommandCapacity = DefaultCommandCapacity
	}
	if cfg.AutoAdvanceDelay <= 0 {
		cfg.AutoAdvanceDelay = DefaultAutoAdvanceDelay
	}
	deps := engine.Deps()
	return &Loop{
		engine:  engine,
		buffer:  NewCommandBuffer(cfg.CommandCapacity, deps.Metrics),
		hooks:   hooks,
		config:  cfg,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		state:   st,
	}
}

// Engine returns the wrapped engine.
func (l *Loop) Engine() *Engine {
	if l == nil {
		return nil
	}
	return l.engine
}

// Snapshot returns the current state. Slices are shared and must be treated
// as read-only.
func (l *Loop) Snapshot() state.GameState {
	if l == nil {
		return state.GameState{}
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Tick returns the number of executed engine ticks.
func (l *Loop) Tick() uint64 {
	if l == nil {
		return 0
	}
	return l.engine.Tick()
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// Enqueue stages a command for the next step.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	if cmd.IssuedAt.IsZero() {
		cmd.IssuedAt = time.Now()
	}
	if !l.buffer.Push(cmd) {
		l.reportDrop(CommandRejectQueueFull, cmd)
		return false, CommandRejectQueueFull
	}
	return true, ""
}

// Advance applies staged commands and runs one engine update.
func (l *Loop) Advance(ctx context.Context) LoopStepResult {
	if l == nil {
		return LoopStepResult{}
	}
	commands := l.buffer.Drain()

	l.mu.Lock()
	defer l.mu.Unlock()

	var (
		agg     state.Delta
		reset   bool
		results []CommandResult
	)
	for _, cmd := range commands {
		result, loaded := l.apply(ctx, l.state, cmd)
		switch {
		case loaded != nil:
			l.state = *loaded
			l.engine.Restore(l.state)
			l.autoAdvanceAt = 0
			agg = state.Delta{}
			reset = true
		case result.Err == nil:
			l.state = result.Delta.Apply(l.state)
			agg = agg.Merge(result.Delta)
		}
		results = append(results, result)
		if cmd.Reply != nil {
			cmd.Reply(result)
		}
	}

	wasActive := l.state.IsWaveActive
	d := l.engine.Update(l.state)
	l.state = d.Apply(l.state)
	agg = agg.Merge(d)
	now := l.engine.Now()

	if wasActive && !l.state.IsWaveActive && l.state.Settings.AutoAdvance {
		l.autoAdvanceAt = now + l.config.AutoAdvanceDelay.Milliseconds()
	}
	if l.autoAdvanceAt > 0 && now >= l.autoAdvanceAt && !l.engine.Paused() {
		l.autoAdvanceAt = 0
		if l.state.Settings.AutoAdvance && l.state.Status == state.StatusPlaying && !l.state.IsWaveActive {
			if wd, err := l.startWave(ctx, l.state); err == nil {
				l.state = wd.Apply(l.state)
				agg = agg.Merge(wd)
			}
		}
	}

	return LoopStepResult{
		Tick:     l.engine.Tick(),
		Now:      now,
		Delta:    agg,
		Reset:    reset,
		Commands: results,
	}
}

// Run drives the fixed-timestep loop until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	if l == nil {
		return
	}
	budget := time.Second / time.Duration(l.config.TickRate)
	ticker := time.NewTicker(budget)
	defer ticker.Stop()

	clock := l.engine.Deps().Clock
	if clock == nil {
		clock = logging.SystemClock{}
	}

	l.engine.Start()
	defer l.engine.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := clock.Now()
			result := l.Advance(ctx)
			result.Duration = clock.Now().Sub(start)
			result.Budget = budget
			l.checkBudget(ctx, result)
			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}

// Restore replaces the authoritative state, as on startup from a save.
func (l *Loop) Restore(st state.GameState) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = st
	l.autoAdvanceAt = 0
	l.engine.Restore(st)
}

// apply executes one command against st. A successful load returns the
// replacement state instead of a delta.
func (l *Loop) apply(ctx context.Context, st state.GameState, cmd Command) (CommandResult, *state.GameState) {
	result := CommandResult{Type: cmd.Type}
	e := l.engine
	switch cmd.Type {
	case CommandStartWave:
		result.Delta, result.Err = l.startWave(ctx, st)
	case CommandPause:
		e.Pause()
	case CommandResume:
		e.Resume()
	case CommandPlaceTower:
		if cmd.Tower == nil {
			result.Err = missing(cmd.Type)
			break
		}
		result.Delta, result.Err = e.PlaceTower(st, cmd.Tower.Type, cmd.Tower.Position)
	case CommandUpgradeTower:
		if cmd.Tower == nil {
			result.Err = missing(cmd.Type)
			break
		}
		result.Delta, result.Err = e.UpgradeTower(st, cmd.Tower.ID)
	case CommandSellTower:
		if cmd.Tower == nil {
			result.Err = missing(cmd.Type)
			break
		}
		result.Delta, result.Err = e.SellTower(st, cmd.Tower.ID)
	case CommandPlaceTrap:
		if cmd.Trap == nil {
			result.Err = missing(cmd.Type)
			break
		}
		result.Delta, result.Err = e.PlaceTrap(st, cmd.Trap.Type, cmd.Trap.Positions)
	case CommandApplyPowerUp:
		if cmd.PowerUp == nil {
			result.Err = missing(cmd.Type)
			break
		}
		result.Delta, result.Err = e.ApplyPowerUp(st, cmd.PowerUp.ID)
	case CommandSetSpeed:
		if cmd.Settings == nil {
			result.Err = missing(cmd.Type)
			break
		}
		result.Delta, result.Err = e.SetGameSpeed(st, cmd.Settings.GameSpeed)
	case CommandSetAutoAdvance:
		if cmd.Settings == nil {
			result.Err = missing(cmd.Type)
			break
		}
		result.Delta = e.SetAutoAdvance(st, cmd.Settings.AutoAdvance)
	case CommandGenerateItems:
		count, clearExisting := e.config.ItemsPerWave, false
		if cmd.Items != nil {
			if cmd.Items.Count > 0 {
				count = cmd.Items.Count
			}
			clearExisting = cmd.Items.ClearExisting
		}
		result.Delta = e.GenerateItems(st, count, clearExisting)
	case CommandSave:
		result.Err = l.save(ctx, st, slotOf(cmd))
	case CommandLoad:
		loaded, err := l.load(ctx, slotOf(cmd))
		if err != nil {
			result.Err = err
			break
		}
		return result, &loaded
	default:
		result.Err = fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
	return result, nil
}

func (l *Loop) startWave(ctx context.Context, st state.GameState) (state.Delta, error) {
	d, err := l.engine.StartWave(st)
	if err == nil {
		return d, nil
	}
	var blocked *waves.PathBlockedError
	reason := err.Error()
	if errors.As(err, &blocked) {
		reason = blocked.Reason
	}
	lifecycle.WaveStartFailed(ctx, l.engine.Publisher(), 0, lifecycle.WaveStartFailedPayload{
		Wave:   st.Wave + 1,
		Reason: reason,
	}, map[string]any{"error": err.Error()})
	l.logger.Printf("[waves] start of wave %d refused: %v", st.Wave+1, err)
	return state.Delta{}, err
}

func (l *Loop) save(ctx context.Context, st state.GameState, slot string) error {
	if l.hooks.Save == nil {
		return ErrNoPersistence
	}
	if err := l.hooks.Save(ctx, slot, st, l.engine.Now()); err != nil {
		return fmt.Errorf("save slot %q: %w", slot, err)
	}
	lifecycle.GameSaved(ctx, l.engine.Publisher(), 0, lifecycle.SlotPayload{Slot: slot, Wave: st.Wave}, nil)
	return nil
}

func (l *Loop) load(ctx context.Context, slot string) (state.GameState, error) {
	if l.hooks.Load == nil {
		return state.GameState{}, ErrNoPersistence
	}
	st, err := l.hooks.Load(ctx, slot, l.engine.Now())
	if err != nil {
		return state.GameState{}, fmt.Errorf("load slot %q: %w", slot, err)
	}
	lifecycle.GameLoaded(ctx, l.engine.Publisher(), 0, lifecycle.SlotPayload{Slot: slot, Wave: st.Wave}, nil)
	return st, nil
}

func (l *Loop) checkBudget(ctx context.Context, result LoopStepResult) {
	if result.Budget <= 0 || result.Duration <= result.Budget {
		l.overrunStreak = 0
		return
	}
	l.overrunStreak++
	l.metrics.Add(metricTickOverruns, 1)
	simulation.TickBudgetOverrun(ctx, l.engine.Publisher(), 0, simulation.TickBudgetOverrunPayload{
		DurationMillis: result.Duration.Milliseconds(),
		BudgetMillis:   result.Budget.Milliseconds(),
		Ratio:          float64(result.Duration) / float64(result.Budget),
		Streak:         l.overrunStreak,
	}, nil)
	if l.overrunStreak&(l.overrunStreak-1) == 0 {
		l.logger.Printf("[tick] budget overrun duration=%s budget=%s streak=%d", result.Duration, result.Budget, l.overrunStreak)
	}
}

func (l *Loop) reportDrop(reason string, cmd Command) {
	l.metrics.Add(metricCommandsDropped, 1)
	simulation.CommandDropped(context.Background(), l.engine.Publisher(), 0, simulation.CommandDroppedPayload{
		Command: string(cmd.Type),
		Reason:  reason,
	}, nil)
	if l.hooks.OnCommandDrop != nil {
		l.hooks.OnCommandDrop(reason, cmd)
	}
	if cmd.Reply != nil {
		cmd.Reply(CommandResult{Type: cmd.Type, Err: fmt.Errorf("command dropped: %s", reason)})
	}
}

func missing(t CommandType) error {
	return fmt.Errorf("%w: %s", ErrMissingPayload, t)
}

func slotOf(cmd Command) string {
	if cmd.Slot == nil || cmd.Slot.Slot == "" {
		return "default"
	}
	return cmd.Slot.Slot
}
