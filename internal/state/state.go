package state

// GameState is the aggregate root of one run. Systems never mutate it; they
// return a Delta that the engine overlays before the next system runs.
type GameState struct {
	Grid             Grid              `json:"grid"`
	Towers           []Tower           `json:"towers"`
	SpawnedEnemies   []Enemy           `json:"spawnedEnemies"`
	UnspawnedEnemies []Enemy           `json:"unspawnedEnemies"`
	Projectiles      []Projectile      `json:"projectiles"`
	Particles        []Particle        `json:"particles"`
	DamageNumbers    []DamageNumber    `json:"damageNumbers"`
	Placeables       []Placeable       `json:"placeables"`
	ActivePowerUps   []WavePowerUp     `json:"activePowerUps"`
	Paths            [][]Position      `json:"paths,omitempty"`
	Money            int               `json:"money"`
	Lives            int               `json:"lives"`
	Score            int               `json:"score"`
	Combo            int               `json:"combo"`
	LastKillTime     int64             `json:"lastKillTime"`
	Kills            int               `json:"kills"`
	Wave             int               `json:"wave"`
	MaxWaves         int               `json:"maxWaves"`
	IsWaveActive     bool              `json:"isWaveActive"`
	Difficulty       float64           `json:"difficulty"`
	Status           GameStatus        `json:"status"`
	Settings         Settings          `json:"settings"`
	RunUpgrades      map[UpgradeID]int `json:"runUpgrades,omitempty"`
	Counters         Counters          `json:"counters"`
}

// UpgradeLevel returns the level selected for an upgrade track, 0 when unset.
func (s *GameState) UpgradeLevel(id UpgradeID) int {
	if s == nil || s.RunUpgrades == nil {
		return 0
	}
	return s.RunUpgrades[id]
}

// TowerAt returns the tower standing on cell, if any.
func (s *GameState) TowerAt(cell Cell) (Tower, bool) {
	if s == nil {
		return Tower{}, false
	}
	for _, tower := range s.Towers {
		if tower.Position.Cell() == cell {
			return tower, true
		}
	}
	return Tower{}, false
}

// EnemiesRemaining reports whether any enemy is pending or alive.
func (s *GameState) EnemiesRemaining() bool {
	if s == nil {
		return false
	}
	return len(s.SpawnedEnemies) > 0 || len(s.UnspawnedEnemies) > 0
}

// Delta is a sparse overlay over GameState. A nil field means unchanged.
type Delta struct {
	Towers           *[]Tower        `json:"towers,omitempty"`
	SpawnedEnemies   *[]Enemy        `json:"spawnedEnemies,omitempty"`
	UnspawnedEnemies *[]Enemy        `json:"unspawnedEnemies,omitempty"`
	Projectiles      *[]Projectile   `json:"projectiles,omitempty"`
	Particles        *[]Particle     `json:"particles,omitempty"`
	DamageNumbers    *[]DamageNumber `json:"damageNumbers,omitempty"`
	Placeables       *[]Placeable    `json:"placeables,omitempty"`
	ActivePowerUps   *[]WavePowerUp  `json:"activePowerUps,omitempty"`
	Paths            *[][]Position   `json:"paths,omitempty"`
	Money            *int            `json:"money,omitempty"`
	Lives            *int            `json:"lives,omitempty"`
	Score            *int            `json:"score,omitempty"`
	Combo            *int            `json:"combo,omitempty"`
	LastKillTime     *int64          `json:"lastKillTime,omitempty"`
	Kills            *int            `json:"kills,omitempty"`
	Wave             *int            `json:"wave,omitempty"`
	IsWaveActive     *bool           `json:"isWaveActive,omitempty"`
	Difficulty       *float64        `json:"difficulty,omitempty"`
	Status           *GameStatus     `json:"status,omitempty"`
	Settings         *Settings       `json:"settings,omitempty"`
	Counters         *Counters       `json:"counters,omitempty"`
}

// Ptr returns a pointer to a copy of v. Used to fill Delta fields.
func Ptr[T any](v T) *T {
	return &v
}

// Empty reports whether the delta changes nothing.
func (d Delta) Empty() bool {
	return d == Delta{}
}

// Merge overlays later on top of d, last write wins per field.
func (d Delta) Merge(later Delta) Delta {
	merged := d
	if later.Towers != nil {
		merged.Towers = later.Towers
	}
	if later.SpawnedEnemies != nil {
		merged.SpawnedEnemies = later.SpawnedEnemies
	}
	if later.UnspawnedEnemies != nil {
		merged.UnspawnedEnemies = later.UnspawnedEnemies
	}
	if later.Projectiles != nil {
		merged.Projectiles = later.Projectiles
	}
	if later.Particles != nil {
		merged.Particles = later.Particles
	}
	if later.DamageNumbers != nil {
		merged.DamageNumbers = later.DamageNumbers
	}
	if later.Placeables != nil {
		merged.Placeables = later.Placeables
	}
	if later.ActivePowerUps != nil {
		merged.ActivePowerUps = later.ActivePowerUps
	}
	if later.Paths != nil {
		merged.Paths = later.Paths
	}
	if later.Money != nil {
		merged.Money = later.Money
	}
	if later.Lives != nil {
		merged.Lives = later.Lives
	}
	if later.Score != nil {
		merged.Score = later.Score
	}
	if later.Combo != nil {
		merged.Combo = later.Combo
	}
	if later.LastKillTime != nil {
		merged.LastKillTime = later.LastKillTime
	}
	if later.Kills != nil {
		merged.Kills = later.Kills
	}
	if later.Wave != nil {
		merged.Wave = later.Wave
	}
	if later.IsWaveActive != nil {
		merged.IsWaveActive = later.IsWaveActive
	}
	if later.Difficulty != nil {
		merged.Difficulty = later.Difficulty
	}
	if later.Status != nil {
		merged.Status = later.Status
	}
	if later.Settings != nil {
		merged.Settings = later.Settings
	}
	if later.Counters != nil {
		merged.Counters = later.Counters
	}
	return merged
}

// Apply returns s with every non-nil field of d written over it. Slices are
// shared with the delta, so callers treat them as immutable.
func (d Delta) Apply(s GameState) GameState {
	if d.Towers != nil {
		s.Towers = *d.Towers
	}
	if d.SpawnedEnemies != nil {
		s.SpawnedEnemies = *d.SpawnedEnemies
	}
	if d.UnspawnedEnemies != nil {
		s.UnspawnedEnemies = *d.UnspawnedEnemies
	}
	if d.Projectiles != nil {
		s.Projectiles = *d.Projectiles
	}
	if d.Particles != nil {
		s.Particles = *d.Particles
	}
	if d.DamageNumbers != nil {
		s.DamageNumbers = *d.DamageNumbers
	}
	if d.Placeables != nil {
		s.Placeables = *d.Placeables
	}
	if d.ActivePowerUps != nil {
		s.ActivePowerUps = *d.ActivePowerUps
	}
	if d.Paths != nil {
		s.Paths = *d.Paths
	}
	if d.Money != nil {
		s.Money = *d.Money
	}
	if d.Lives != nil {
		s.Lives = *d.Lives
	}
	if d.Score != nil {
		s.Score = *d.Score
	}
	if d.Combo != nil {
		s.Combo = *d.Combo
	}
	if d.LastKillTime != nil {
		s.LastKillTime = *d.LastKillTime
	}
	if d.Kills != nil {
		s.Kills = *d.Kills
	}
	if d.Wave != nil {
		s.Wave = *d.Wave
	}
	if d.IsWaveActive != nil {
		s.IsWaveActive = *d.IsWaveActive
	}
	if d.Difficulty != nil {
		s.Difficulty = *d.Difficulty
	}
	if d.Status != nil {
		s.Status = *d.Status
	}
	if d.Settings != nil {
		s.Settings = *d.Settings
	}
	if d.Counters != nil {
		s.Counters = *d.Counters
	}
	return s
}

// New builds a fresh playing state on grid with the starting economy.
func New(grid Grid, money, lives, maxWaves int) GameState {
	return GameState{
		Grid:             grid,
		Towers:           []Tower{},
		SpawnedEnemies:   []Enemy{},
		UnspawnedEnemies: []Enemy{},
		Projectiles:      []Projectile{},
		Particles:        []Particle{},
		DamageNumbers:    []DamageNumber{},
		Placeables:       []Placeable{},
		ActivePowerUps:   []WavePowerUp{},
		Money:            money,
		Lives:            lives,
		MaxWaves:         maxWaves,
		Difficulty:       1,
		Status:           StatusPlaying,
		Settings:         Settings{GameSpeed: 1},
		RunUpgrades:      map[UpgradeID]int{},
		Counters:         NewCounters(),
	}
}
