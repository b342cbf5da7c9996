package balance

import (
	"math"

	"github.com/seawatts/grid-sub000/internal/state"
)

// Gameplay constants shared by the systems.
const (
	AdjacentTowerBonus    = 0.15
	ComboWindowMs         = 2000
	ComboScoreStep        = 0.1
	HitboxRadius          = 0.4
	SplashRadius          = 1.5
	SplashDamageRatio     = 0.5
	ProjectileLerp        = 0.3
	ProjectileMaxAgeMs    = 5000
	SlowFactor            = 0.5
	SpawnStaggerMs        = 1000
	MaxTowerLevel         = 5
	SellRefundRatio       = 0.7
	StartingMoney         = 200
	StartingLives         = 20
	TickIntervalMs        = 50
	TrapReentryCooldownMs = 2 * TickIntervalMs
)

// TowerStats are the level-1 numbers of a tower type.
type TowerStats struct {
	Cost        int     `json:"cost"`
	Damage      float64 `json:"damage"`
	FireRateMs  float64 `json:"fireRateMs"`
	Range       float64 `json:"range"`
	Penetration int     `json:"penetration"`
}

var towers = map[state.TowerType]TowerStats{
	state.TowerBasic:  {Cost: 50, Damage: 20, FireRateMs: 1000, Range: 3.0, Penetration: 0},
	state.TowerSlow:   {Cost: 75, Damage: 10, FireRateMs: 1500, Range: 2.5, Penetration: 0},
	state.TowerBomb:   {Cost: 120, Damage: 50, FireRateMs: 2500, Range: 2.5, Penetration: 0},
	state.TowerSniper: {Cost: 150, Damage: 100, FireRateMs: 3000, Range: 6.0, Penetration: 2},
}

// Tower returns the stats for t.
func Tower(t state.TowerType) (TowerStats, bool) {
	stats, ok := towers[t]
	return stats, ok
}

// EnemyStats are the unscaled numbers of an enemy type.
type EnemyStats struct {
	Health float64 `json:"health"`
	Speed  float64 `json:"speed"`
	Reward int     `json:"reward"`
	Color  uint32  `json:"color"`
}

var enemies = map[state.EnemyType]EnemyStats{
	state.EnemyBasic: {Health: 100, Speed: 0.05, Reward: 10, Color: 0xe74c3c},
	state.EnemyFast:  {Health: 60, Speed: 0.10, Reward: 12, Color: 0xf1c40f},
	state.EnemyTank:  {Health: 300, Speed: 0.03, Reward: 25, Color: 0x7f8c8d},
	state.EnemyBoss:  {Health: 800, Speed: 0.025, Reward: 100, Color: 0x9b59b6},
}

// Enemy returns the stats for t, falling back to basic for unknown types.
func Enemy(t state.EnemyType) EnemyStats {
	if stats, ok := enemies[t]; ok {
		return stats
	}
	return enemies[state.EnemyBasic]
}

// LevelDamageMultiplier scales damage by tower level.
func LevelDamageMultiplier(level int) float64 {
	return 1 + 0.25*float64(clampLevel(level)-1)
}

// LevelFireRateMultiplier shortens the cooldown by tower level.
func LevelFireRateMultiplier(level int) float64 {
	return math.Max(0.5, 1-0.1*float64(clampLevel(level)-1))
}

// LevelRangeMultiplier extends range by tower level.
func LevelRangeMultiplier(level int) float64 {
	return 1 + 0.1*float64(clampLevel(level)-1)
}

// UpgradeCost is the price of taking a tower from level to level+1.
func UpgradeCost(t state.TowerType, level int) int {
	stats, ok := towers[t]
	if !ok {
		return 0
	}
	return int(math.Floor(float64(stats.Cost) * 0.75 * float64(clampLevel(level))))
}

// SellValue refunds part of everything spent on a tower.
func SellValue(t state.TowerType, level int) int {
	stats, ok := towers[t]
	if !ok {
		return 0
	}
	spent := stats.Cost
	for l := 1; l < clampLevel(level); l++ {
		spent += UpgradeCost(t, l)
	}
	return int(math.Floor(float64(spent) * SellRefundRatio))
}

func clampLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > MaxTowerLevel {
		return MaxTowerLevel
	}
	return level
}
