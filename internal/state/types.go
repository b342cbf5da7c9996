package state

import "math"

// Position is a point on the grid in cell units. Entity centres sit on
// integer coordinates; moving entities interpolate between them.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Cell identifies a single grid tile.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Cell floors both components to the containing tile.
func (p Position) Cell() Cell {
	return Cell{X: int(math.Floor(p.X)), Y: int(math.Floor(p.Y))}
}

// Position returns the tile origin as a Position.
func (c Cell) Position() Position {
	return Position{X: float64(c.X), Y: float64(c.Y)}
}

// Distance returns the Euclidean distance between two positions.
func Distance(a, b Position) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Lerp interpolates between a and b.
func Lerp(a, b Position, t float64) Position {
	return Position{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
}

// EnemyType enumerates the enemy archetypes.
type EnemyType string

const (
	EnemyBasic EnemyType = "basic"
	EnemyFast  EnemyType = "fast"
	EnemyTank  EnemyType = "tank"
	EnemyBoss  EnemyType = "boss"
)

// TowerType enumerates the tower archetypes.
type TowerType string

const (
	TowerBasic  TowerType = "basic"
	TowerSlow   TowerType = "slow"
	TowerBomb   TowerType = "bomb"
	TowerSniper TowerType = "sniper"
)

// PlaceableCategory separates hazards from boosts.
type PlaceableCategory string

const (
	CategoryTrap    PlaceableCategory = "trap"
	CategoryPowerUp PlaceableCategory = "powerup"
)

// PlaceableType enumerates the concrete grid items.
type PlaceableType string

const (
	PlaceableLandmine  PlaceableType = "landmine"
	PlaceableGridBug   PlaceableType = "gridBug"
	PlaceableStream    PlaceableType = "stream"
	PlaceablePowerNode PlaceableType = "powerNode"
)

// GameStatus is the terminal-state marker of a run.
type GameStatus string

const (
	StatusPlaying GameStatus = "playing"
	StatusWon     GameStatus = "won"
	StatusLost    GameStatus = "lost"
)

// EffectType names the stat a wave power-up modifies.
type EffectType string

const (
	EffectDamage   EffectType = "damage"
	EffectFireRate EffectType = "fireRate"
	EffectRange    EffectType = "range"
	EffectReward   EffectType = "reward"
	EffectLives    EffectType = "lives"
	EffectMoney    EffectType = "money"
)

// StackingPolicy controls how simultaneous modifiers of one effect combine.
type StackingPolicy string

const (
	StackAdditive       StackingPolicy = "additive"
	StackMultiplicative StackingPolicy = "multiplicative"
	StackReplace        StackingPolicy = "replace"
)

// UpgradeID names a per-run upgrade track.
type UpgradeID string

const (
	UpgradeDamage             UpgradeID = "damage"
	UpgradeFireRate           UpgradeID = "fireRate"
	UpgradeRange              UpgradeID = "range"
	UpgradeReward             UpgradeID = "reward"
	UpgradeStartingMoney      UpgradeID = "startingMoney"
	UpgradePowerNodeFrequency UpgradeID = "powerNodeFrequency"
	UpgradePowerNodePotency   UpgradeID = "powerNodePotency"
	UpgradePowerNodeDuration  UpgradeID = "powerNodeDuration"
	UpgradeLandmineFrequency  UpgradeID = "landmineFrequency"
	UpgradeLandmineDamage     UpgradeID = "landmineDamage"
)

// Enemy is a unit walking its assigned path toward a goal.
type Enemy struct {
	ID        int        `json:"id"`
	Position  Position   `json:"position"`
	Path      []Position `json:"path"`
	PathIndex float64    `json:"pathIndex"`
	Health    float64    `json:"health"`
	MaxHealth float64    `json:"maxHealth"`
	Speed     float64    `json:"speed"`
	Slowed    bool       `json:"slowed"`
	SpawnTime int64      `json:"spawnTime"`
	Type      EnemyType  `json:"type"`
	Reward    int        `json:"reward"`
}

// Tower is a player-built turret occupying one cell.
type Tower struct {
	ID       int       `json:"id"`
	Position Position  `json:"position"`
	Type     TowerType `json:"type"`
	Level    int       `json:"level"`
	LastShot int64     `json:"lastShot"`
}

// Projectile is a shot in flight. TargetEnemyID is nil for pure point-seek
// shots.
type Projectile struct {
	ID                   int       `json:"id"`
	Position             Position  `json:"position"`
	SourcePosition       Position  `json:"sourcePosition"`
	Target               Position  `json:"target"`
	TargetEnemyID        *int      `json:"targetEnemyId,omitempty"`
	Type                 TowerType `json:"type"`
	HitEnemyIDs          []int     `json:"hitEnemyIds"`
	PenetrationRemaining int       `json:"penetrationRemaining"`
	FiredAt              int64     `json:"firedAt"`
}

// Placeable is a trap or power-up item lying on one or more cells.
type Placeable struct {
	ID             int               `json:"id"`
	Category       PlaceableCategory `json:"category"`
	Type           PlaceableType     `json:"type"`
	Positions      []Position        `json:"positions"`
	Damage         float64           `json:"damage,omitempty"`
	Boost          float64           `json:"boost,omitempty"`
	RemainingWaves int               `json:"remainingWaves,omitempty"`
	IsTowerBound   bool              `json:"isTowerBound,omitempty"`
}

// Covers reports whether any of the placeable's positions falls in cell.
func (p Placeable) Covers(cell Cell) bool {
	for _, pos := range p.Positions {
		if pos.Cell() == cell {
			return true
		}
	}
	return false
}

// Particle is the value form of one live pool entry.
type Particle struct {
	ID       int      `json:"id"`
	Position Position `json:"position"`
	Velocity Position `json:"velocity"`
	Color    uint32   `json:"color"`
	Life     float64  `json:"life"`
	MaxLife  float64  `json:"maxLife"`
}

// DamageNumberLifeTicks is how many ticks a floating damage number lives.
const DamageNumberLifeTicks = 20

// DamageNumber is a floating combat text entry.
type DamageNumber struct {
	ID       int      `json:"id"`
	Position Position `json:"position"`
	Value    int      `json:"value"`
	Color    uint32   `json:"color"`
	Life     int      `json:"life"`
}

// Effect is the stat change a power-up carries.
type Effect struct {
	Type  EffectType `json:"type"`
	Value float64    `json:"value"`
}

// Duration is either permanent or a number of waves; zero waves means the
// effect is applied instantly and never becomes active.
type Duration struct {
	Permanent bool `json:"permanent,omitempty"`
	Waves     int  `json:"waves,omitempty"`
}

// Instant reports whether the duration describes a one-shot effect.
func (d Duration) Instant() bool {
	return !d.Permanent && d.Waves <= 0
}

// WavePowerUp is an active modifier bought or drafted between waves.
type WavePowerUp struct {
	ID             int            `json:"id"`
	CatalogID      string         `json:"catalogId"`
	Effect         Effect         `json:"effect"`
	Duration       Duration       `json:"duration"`
	WavesRemaining int            `json:"wavesRemaining"`
	Stacking       StackingPolicy `json:"stacking"`
}

// Grid carries the map markers the simulation needs.
type Grid struct {
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	Starts    []Position `json:"starts"`
	Goals     []Position `json:"goals"`
	Obstacles []Position `json:"obstacles,omitempty"`
}

// InBounds reports whether the cell lies inside the grid.
func (g Grid) InBounds(c Cell) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.Width && c.Y < g.Height
}

// Settings are the player-facing runtime toggles.
type Settings struct {
	AutoAdvance bool    `json:"autoAdvance"`
	GameSpeed   float64 `json:"gameSpeed"`
}

// Speed returns the game speed multiplier, treating non-positive values as 1.
func (s Settings) Speed() float64 {
	if s.GameSpeed <= 0 {
		return 1
	}
	return s.GameSpeed
}

// Counters hold the next id for every entity kind.
type Counters struct {
	NextEnemyID        int `json:"nextEnemyId"`
	NextTowerID        int `json:"nextTowerId"`
	NextProjectileID   int `json:"nextProjectileId"`
	NextPlaceableID    int `json:"nextPlaceableId"`
	NextDamageNumberID int `json:"nextDamageNumberId"`
	NextPowerUpID      int `json:"nextPowerUpId"`
	NextParticleID     int `json:"nextParticleId"`
}

// NewCounters returns counters that allocate ids starting at 1.
func NewCounters() Counters {
	return Counters{
		NextEnemyID:        1,
		NextTowerID:        1,
		NextProjectileID:   1,
		NextPlaceableID:    1,
		NextDamageNumberID: 1,
		NextPowerUpID:      1,
		NextParticleID:     1,
	}
}
