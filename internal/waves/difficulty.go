package waves

import (
	"math"

	"github.com/seawatts/grid-sub000/internal/balance"
	"github.com/seawatts/grid-sub000/internal/calc"
	"github.com/seawatts/grid-sub000/internal/state"
)

// Adaptive controller bounds.
const (
	AdaptiveMin  = 0.8
	AdaptiveMax  = 1.2
	AdaptiveGain = 0.2

	// BossWaveInterval is the spacing of boss waves.
	BossWaveInterval = 10

	persistentTrapWeight = 1.5
	permanentPowerWeight = 1.5
	powerUpScale         = 100
	extraPathDifficulty  = 0.25
	referencePathLength  = 30
)

// IsBossWave reports whether wave carries scheduled bosses.
func IsBossWave(wave int) bool {
	return wave > 0 && wave%BossWaveInterval == 0
}

// EnemyCount is the base number of enemies in wave before adaptation.
func EnemyCount(wave int) int {
	switch {
	case wave <= 10:
		return 5 + 2*wave
	case wave <= 25:
		return 25 + 3*(wave-10)
	default:
		return 70 + 4*(wave-25)
	}
}

// TargetPower is the defensive power the wave is tuned against.
func TargetPower(wave int) float64 {
	switch {
	case wave <= 10:
		return 100 + 50*float64(wave)
	case wave <= 25:
		return 600 + 80*float64(wave-10)
	default:
		return 1800 + 120*float64(wave-25)
	}
}

// HealthMultiplier is the unadapted health scale of wave.
func HealthMultiplier(wave int, isBoss bool) float64 {
	m := 1 + float64(wave-1)*0.05
	if isBoss {
		m += math.Floor(float64(wave)/BossWaveInterval) * 0.2
	}
	return m
}

// RewardMultiplier scales rewards sub-linearly to health, plus the reward
// run upgrade.
func RewardMultiplier(healthMultiplier, upgradeBonus float64) float64 {
	return 1 + (healthMultiplier-1)*0.8 + upgradeBonus
}

// AdaptiveMultiplier nudges difficulty toward the measured defence.
func AdaptiveMultiplier(defensive, target float64) float64 {
	if target <= 0 {
		return 1
	}
	return clamp(1+(defensive/target-1)*AdaptiveGain, AdaptiveMin, AdaptiveMax)
}

// AdjustedCount applies the adaptive multiplier to the base count.
func AdjustedCount(count int, adaptive float64) int {
	return max(1, int(math.Round(float64(count)*adaptive)))
}

// DefensivePower scores the current build against the computed paths:
// tower DPS times path coverage, trap damage times path presence, and the
// weighted value of active power-ups, all divided by the path difficulty.
func DefensivePower(st *state.GameState, paths [][]state.Position) float64 {
	cells := pathCells(paths)
	if len(cells) == 0 {
		return 0
	}

	var towers float64
	for _, tower := range st.Towers {
		reach := calc.TowerRange(st, tower)
		covered := 0
		for _, cell := range cells {
			if state.Distance(tower.Position, cell.Position()) <= reach {
				covered++
			}
		}
		towers += float64(covered) * calc.TowerDPS(st, tower)
	}

	onPath := make(map[state.Cell]struct{}, len(cells))
	for _, cell := range cells {
		onPath[cell] = struct{}{}
	}
	var traps float64
	for _, p := range st.Placeables {
		if p.Category != state.CategoryTrap {
			continue
		}
		def, ok := balance.Trap(p.Type)
		if !ok {
			continue
		}
		presence := 0
		for _, pos := range p.Positions {
			if _, ok := onPath[pos.Cell()]; ok {
				presence++
			}
		}
		damage := p.Damage
		if damage <= 0 {
			damage = def.Damage
		}
		weight := 1.0
		if def.Persistent {
			weight = persistentTrapWeight
		}
		traps += damage * float64(presence) * weight
	}

	var powerUps float64
	for _, p := range st.ActivePowerUps {
		switch {
		case p.Duration.Permanent:
			powerUps += p.Effect.Value * permanentPowerWeight * powerUpScale
		case p.Duration.Waves > 0:
			weight := float64(p.WavesRemaining) / float64(p.Duration.Waves)
			powerUps += p.Effect.Value * weight * powerUpScale
		}
	}

	return (towers + traps + powerUps) / PathDifficulty(paths)
}

// PathDifficulty grows with the number of paths and shrinks with their
// length.
func PathDifficulty(paths [][]state.Position) float64 {
	n, total := 0, 0
	for _, p := range paths {
		if len(p) == 0 {
			continue
		}
		n++
		total += len(p)
	}
	if n == 0 {
		return 1
	}
	avg := float64(total) / float64(n)
	return (1 + extraPathDifficulty*float64(n-1)) * clamp(referencePathLength/avg, 0.5, 3)
}

// pathCells returns the distinct cells of paths in first-seen order.
func pathCells(paths [][]state.Position) []state.Cell {
	seen := make(map[state.Cell]struct{})
	var cells []state.Cell
	for _, path := range paths {
		for _, pos := range path {
			c := pos.Cell()
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			cells = append(cells, c)
		}
	}
	return cells
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
