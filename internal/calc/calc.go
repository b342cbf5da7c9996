package calc

import (
	"math"

	"github.com/seawatts/grid-sub000/internal/balance"
	"github.com/seawatts/grid-sub000/internal/state"
)

// MinReduction floors every resolved fire-rate reduction.
const MinReduction = 0.1

// Modifier is one active contribution to an effect.
type Modifier struct {
	Value    float64
	Stacking state.StackingPolicy
}

// Modifiers collects the active power-ups that affect effect.
func Modifiers(powerUps []state.WavePowerUp, effect state.EffectType) []Modifier {
	var mods []Modifier
	for _, p := range powerUps {
		if p.Effect.Type != effect || p.Duration.Instant() {
			continue
		}
		mods = append(mods, Modifier{Value: p.Effect.Value, Stacking: p.Stacking})
	}
	return mods
}

func highestReplace(mods []Modifier) (float64, bool) {
	best, found := 0.0, false
	for _, m := range mods {
		if m.Stacking != state.StackReplace {
			continue
		}
		if !found || m.Value > best {
			best, found = m.Value, true
		}
	}
	return best, found
}

// ResolveBoost combines boost modifiers into one additive bonus. A replace
// modifier wins outright; otherwise additive values sum and multiplicative
// values compound, joined as sum + (product - 1).
func ResolveBoost(mods []Modifier) float64 {
	if v, ok := highestReplace(mods); ok {
		return v
	}
	sum, product := 0.0, 1.0
	for _, m := range mods {
		switch m.Stacking {
		case state.StackAdditive:
			sum += m.Value
		case state.StackMultiplicative:
			product *= 1 + m.Value
		}
	}
	return sum + (product - 1)
}

// ResolveReduction combines reduction modifiers into a factor applied to a
// cooldown. The shape is (1 - sum) * product(1 - v), floored at MinReduction.
func ResolveReduction(mods []Modifier) float64 {
	factor := 1.0
	if v, ok := highestReplace(mods); ok {
		factor = 1 - v
	} else {
		sum, product := 0.0, 1.0
		for _, m := range mods {
			switch m.Stacking {
			case state.StackAdditive:
				sum += m.Value
			case state.StackMultiplicative:
				product *= 1 - m.Value
			}
		}
		factor = (1 - sum) * product
	}
	return math.Max(MinReduction, factor)
}

// AdjacentTowers counts towers orthogonally next to t.
func AdjacentTowers(towers []state.Tower, t state.Tower) int {
	origin := t.Position.Cell()
	count := 0
	for _, other := range towers {
		if other.ID == t.ID {
			continue
		}
		c := other.Position.Cell()
		dx, dy := c.X-origin.X, c.Y-origin.Y
		if (dx == 0 && (dy == 1 || dy == -1)) || (dy == 0 && (dx == 1 || dx == -1)) {
			count++
		}
	}
	return count
}

// PowerNodeBoost returns the boost of a power node under cell, or 1.
func PowerNodeBoost(placeables []state.Placeable, cell state.Cell) float64 {
	for _, p := range placeables {
		if p.Category != state.CategoryPowerUp || p.Type != state.PlaceablePowerNode {
			continue
		}
		if p.Covers(cell) && p.Boost > 0 {
			return p.Boost
		}
	}
	return 1
}

// TowerDamage is the damage one projectile of t deals.
func TowerDamage(s *state.GameState, t state.Tower) float64 {
	stats, ok := balance.Tower(t.Type)
	if !ok {
		return 0
	}
	adjacency := 1 + balance.AdjacentTowerBonus*float64(AdjacentTowers(s.Towers, t))
	bonus := 1 + balance.Upgrade(s, state.UpgradeDamage) + ResolveBoost(Modifiers(s.ActivePowerUps, state.EffectDamage))
	return stats.Damage *
		balance.LevelDamageMultiplier(t.Level) *
		adjacency *
		bonus *
		PowerNodeBoost(s.Placeables, t.Position.Cell())
}

// TowerBaseFireRate is the cooldown of t in milliseconds at unit game
// speed.
func TowerBaseFireRate(s *state.GameState, t state.Tower) float64 {
	stats, ok := balance.Tower(t.Type)
	if !ok {
		return math.Inf(1)
	}
	return stats.FireRateMs *
		balance.LevelFireRateMultiplier(t.Level) *
		(1 - balance.Upgrade(s, state.UpgradeFireRate)) *
		ResolveReduction(Modifiers(s.ActivePowerUps, state.EffectFireRate))
}

// TowerFireRate is the cooldown of t in milliseconds of simulation time at
// the current game speed.
func TowerFireRate(s *state.GameState, t state.Tower) float64 {
	return TowerBaseFireRate(s, t) / s.Settings.Speed()
}

// TowerRange is the targeting radius of t in cells.
func TowerRange(s *state.GameState, t state.Tower) float64 {
	stats, ok := balance.Tower(t.Type)
	if !ok {
		return 0
	}
	bonus := 1 + balance.Upgrade(s, state.UpgradeRange) + ResolveBoost(Modifiers(s.ActivePowerUps, state.EffectRange))
	return stats.Range * balance.LevelRangeMultiplier(t.Level) * bonus
}

// TowerDPS is damage per second at unit game speed. Playback speed scales
// enemies and towers alike, so it does not enter the rating.
func TowerDPS(s *state.GameState, t state.Tower) float64 {
	rate := TowerBaseFireRate(s, t)
	if rate <= 0 || math.IsInf(rate, 1) {
		return 0
	}
	return TowerDamage(s, t) / (rate / 1000)
}

// KillReward is the money an enemy pays out. Combo never affects it.
func KillReward(s *state.GameState, e state.Enemy) int {
	bonus := ResolveBoost(Modifiers(s.ActivePowerUps, state.EffectReward))
	return int(math.Floor(float64(e.Reward) * (1 + bonus)))
}

// ComboScore is the score granted for a kill worth reward at combo.
func ComboScore(reward, combo int) int {
	if combo < 1 {
		combo = 1
	}
	return int(math.Floor(float64(reward) * (1 + float64(combo-1)*balance.ComboScoreStep)))
}
