package waves

import (
	"context"
	"math"
	"sort"

	"github.com/seawatts/grid-sub000/internal/balance"
	"github.com/seawatts/grid-sub000/internal/pathfinding"
	"github.com/seawatts/grid-sub000/internal/state"
	"github.com/seawatts/grid-sub000/logging"
	"github.com/seawatts/grid-sub000/logging/lifecycle"
)

// System starts waves on request and signals their completion.
type System struct {
	publisher logging.Publisher
}

// NewSystem constructs the wave system. A nil publisher discards events.
func NewSystem(publisher logging.Publisher) *System {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &System{publisher: publisher}
}

// Update clears IsWaveActive once every enemy of the wave is gone.
func (s *System) Update(st state.GameState, deltaMs, timestamp int64) state.Delta {
	if !st.IsWaveActive || st.EnemiesRemaining() {
		return state.Delta{}
	}
	return state.Delta{IsWaveActive: state.Ptr(false)}
}

// StartWave builds the next wave. It returns an empty delta when a wave is
// already running or the game is over, and a *PathBlockedError when some
// start cannot reach any goal.
func (s *System) StartWave(st state.GameState, timestamp int64) (state.Delta, error) {
	if st.IsWaveActive || st.Status != state.StatusPlaying {
		return state.Delta{}, nil
	}
	grid := st.Grid
	if len(grid.Starts) == 0 || len(grid.Goals) == 0 {
		return state.Delta{}, ErrNoEndpoints
	}
	wave := st.Wave + 1

	paths, err := computePaths(&st, wave)
	if err != nil {
		return state.Delta{}, err
	}

	adaptive := AdaptiveMultiplier(DefensivePower(&st, paths), TargetPower(wave))
	boss := IsBossWave(wave)
	health := HealthMultiplier(wave, boss) * adaptive
	reward := RewardMultiplier(health, balance.Upgrade(&st, state.UpgradeReward))
	plan := fitPlan(typePlan(wave, EnemyCount(wave)), AdjustedCount(EnemyCount(wave), adaptive))

	counters := st.Counters
	enemies := make([]state.Enemy, 0, len(st.UnspawnedEnemies)+len(plan))
	enemies = append(enemies, st.UnspawnedEnemies...)
	bosses := 0
	for i, kind := range plan {
		stats := balance.Enemy(kind)
		path := paths[i%len(paths)]
		hp := math.Floor(stats.Health * health)
		enemies = append(enemies, state.Enemy{
			ID:        counters.NextEnemyID,
			Position:  path[0],
			Path:      path,
			Health:    hp,
			MaxHealth: hp,
			Speed:     stats.Speed,
			SpawnTime: timestamp + int64(i)*balance.SpawnStaggerMs,
			Type:      kind,
			Reward:    int(math.Floor(float64(stats.Reward) * reward)),
		})
		counters.NextEnemyID++
		if kind == state.EnemyBoss {
			bosses++
		}
	}

	lifecycle.WaveStarted(context.Background(), s.publisher, 0, lifecycle.WaveStartedPayload{
		Wave:       wave,
		Enemies:    len(plan),
		Bosses:     bosses,
		Paths:      len(paths),
		Difficulty: adaptive,
	}, nil)

	return state.Delta{
		Wave:             state.Ptr(wave),
		IsWaveActive:     state.Ptr(true),
		UnspawnedEnemies: &enemies,
		Counters:         &counters,
		Paths:            &paths,
		Difficulty:       state.Ptr(adaptive),
	}, nil
}

// computePaths routes every start around towers, obstacles and blocking
// traps. When a start is sealed off it decides whether the map alone is at
// fault and which placements border the sealed region.
func computePaths(st *state.GameState, wave int) ([][]state.Position, error) {
	grid := st.Grid
	towerCells := make([]state.Position, 0, len(st.Towers))
	for _, t := range st.Towers {
		towerCells = append(towerCells, t.Position)
	}
	var trapCells []state.Position
	for _, p := range st.Placeables {
		if balance.BlocksPath(p) {
			trapCells = append(trapCells, p.Positions...)
		}
	}
	blocked := pathfinding.BlockedSet(grid.Obstacles, towerCells, trapCells)
	paths := pathfinding.FindPathsForMultipleStartsAndGoals(grid.Starts, grid.Goals, blocked, grid.Width, grid.Height)

	var failed []state.Position
	for i, path := range paths {
		if len(path) == 0 {
			failed = append(failed, grid.Starts[i])
		}
	}
	if len(failed) == 0 {
		return paths, nil
	}

	blockErr := &PathBlockedError{Wave: wave, Reason: ReasonPlacements, Starts: failed}
	mapOnly := pathfinding.BlockedSet(grid.Obstacles)
	for _, start := range failed {
		if _, ok := pathfinding.FindPath(start, grid.Goals, mapOnly, grid.Width, grid.Height); !ok {
			blockErr.Reason = ReasonMap
			return nil, blockErr
		}
	}

	border := sealedBorder(failed, blocked, grid)
	for _, t := range st.Towers {
		if _, ok := border[t.Position.Cell()]; ok {
			blockErr.TowerIDs = append(blockErr.TowerIDs, t.ID)
		}
	}
	for _, p := range st.Placeables {
		if !balance.BlocksPath(p) {
			continue
		}
		for _, pos := range p.Positions {
			if _, ok := border[pos.Cell()]; ok {
				blockErr.PlaceableIDs = append(blockErr.PlaceableIDs, p.ID)
				break
			}
		}
	}
	sort.Ints(blockErr.TowerIDs)
	sort.Ints(blockErr.PlaceableIDs)
	return nil, blockErr
}

// sealedBorder flood-fills from each start and returns the blocked cells
// touching the reachable region.
func sealedBorder(starts []state.Position, blocked map[state.Cell]struct{}, grid state.Grid) map[state.Cell]struct{} {
	border := make(map[state.Cell]struct{})
	seen := make(map[state.Cell]struct{})
	var queue []state.Cell
	for _, s := range starts {
		c := s.Cell()
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			queue = append(queue, c)
		}
	}
	steps := [...]state.Cell{{X: 0, Y: -1}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: -1, Y: 0}}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		for _, d := range steps {
			n := state.Cell{X: c.X + d.X, Y: c.Y + d.Y}
			if !grid.InBounds(n) {
				continue
			}
			if _, ok := blocked[n]; ok {
				border[n] = struct{}{}
				continue
			}
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			queue = append(queue, n)
		}
	}
	return border
}

// typePlan lays out enemy types for count slots of wave.
func typePlan(wave, count int) []state.EnemyType {
	plan := make([]state.EnemyType, count)
	bossSlots := make(map[int]struct{})
	if IsBossWave(wave) {
		bosses := wave / BossWaveInterval
		for k := 0; k < bosses; k++ {
			idx := (k + 1) * count / (bosses + 1)
			if idx >= count {
				idx = count - 1
			}
			bossSlots[idx] = struct{}{}
		}
	}
	for i := range plan {
		if _, ok := bossSlots[i]; ok {
			plan[i] = state.EnemyBoss
			continue
		}
		slot := i + 1
		switch {
		case !IsBossWave(wave) && wave > 3 && slot%5 == 0:
			plan[i] = state.EnemyBoss
		case wave > 2 && slot%4 == 0:
			plan[i] = state.EnemyTank
		case wave > 1 && slot%3 == 0:
			plan[i] = state.EnemyFast
		default:
			plan[i] = state.EnemyBasic
		}
	}
	return plan
}

// fitPlan truncates or pads plan to n slots. Trailing non-boss slots are
// dropped first; padding uses basic enemies.
func fitPlan(plan []state.EnemyType, n int) []state.EnemyType {
	if len(plan) < n {
		out := make([]state.EnemyType, n)
		copy(out, plan)
		for i := len(plan); i < n; i++ {
			out[i] = state.EnemyBasic
		}
		return out
	}
	out := append([]state.EnemyType(nil), plan...)
	for i := len(out) - 1; i >= 0 && len(out) > n; i-- {
		if out[i] != state.EnemyBoss {
			out = append(out[:i], out[i+1:]...)
		}
	}
	return out[:n]
}
