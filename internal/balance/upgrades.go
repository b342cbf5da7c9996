package balance

import "github.com/seawatts/grid-sub000/internal/state"

// MaxUpgradeLevel is the highest level of any run upgrade track.
const MaxUpgradeLevel = 3

var upgradeTables = map[state.UpgradeID][MaxUpgradeLevel + 1]float64{
	state.UpgradeDamage:             {0, 0.1, 0.2, 0.3},
	state.UpgradeFireRate:           {0, 0.05, 0.1, 0.15},
	state.UpgradeRange:              {0, 0.1, 0.15, 0.2},
	state.UpgradeReward:             {0, 0.1, 0.2, 0.3},
	state.UpgradeStartingMoney:      {0, 50, 100, 200},
	state.UpgradePowerNodeFrequency: {0, 0.5, 1, 1.5},
	state.UpgradePowerNodePotency:   {1.25, 1.5, 1.75, 2},
	state.UpgradePowerNodeDuration:  {3, 4, 5, 6},
	state.UpgradeLandmineFrequency:  {0, 1, 1.5, 2},
	state.UpgradeLandmineDamage:     {100, 150, 225, 300},
}

// UpgradeValue returns the effect of an upgrade track at level. Levels out
// of range are clamped; unknown tracks yield 0.
func UpgradeValue(id state.UpgradeID, level int) float64 {
	table, ok := upgradeTables[id]
	if !ok {
		return 0
	}
	if level < 0 {
		level = 0
	}
	if level > MaxUpgradeLevel {
		level = MaxUpgradeLevel
	}
	return table[level]
}

// Upgrade returns the effect of an upgrade track at the level selected in s.
func Upgrade(s *state.GameState, id state.UpgradeID) float64 {
	return UpgradeValue(id, s.UpgradeLevel(id))
}

// UpgradeIDs lists every known upgrade track.
func UpgradeIDs() []state.UpgradeID {
	return []state.UpgradeID{
		state.UpgradeDamage,
		state.UpgradeFireRate,
		state.UpgradeRange,
		state.UpgradeReward,
		state.UpgradeStartingMoney,
		state.UpgradePowerNodeFrequency,
		state.UpgradePowerNodePotency,
		state.UpgradePowerNodeDuration,
		state.UpgradeLandmineFrequency,
		state.UpgradeLandmineDamage,
	}
}

// TrapDefinition describes how a trap type behaves on contact.
type TrapDefinition struct {
	Cost          int
	Damage        float64
	DamageOnEntry bool
	Persistent    bool
	BlocksPath    bool
	Length        int
}

var traps = map[state.PlaceableType]TrapDefinition{
	state.PlaceableLandmine: {DamageOnEntry: true, Length: 1},
	state.PlaceableGridBug:  {Cost: 60, Damage: 15, DamageOnEntry: true, Persistent: true, Length: 1},
	state.PlaceableStream:   {Cost: 90, Damage: 10, DamageOnEntry: true, Persistent: true, Length: 3},
}

// Trap returns the definition of a trap type.
func Trap(t state.PlaceableType) (TrapDefinition, bool) {
	def, ok := traps[t]
	return def, ok
}

// BlocksPath reports whether a placeable must be treated as an obstacle by
// pathfinding.
func BlocksPath(p state.Placeable) bool {
	if p.Category != state.CategoryTrap {
		return false
	}
	def, ok := traps[p.Type]
	return ok && def.BlocksPath
}
