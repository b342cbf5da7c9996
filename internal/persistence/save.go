package persistence

import (
	"errors"
	"fmt"
	"time"

	"github.com/seawatts/grid-sub000/internal/state"
)

// SaveVersion is the only save shape this build reads and writes.
const SaveVersion = 1

// ErrUnsupportedVersion indicates a save written in another shape.
var ErrUnsupportedVersion = errors.New("persistence: unsupported save version")

// SaveState is the persisted form of a run. Transient entities (spawned
// enemies, projectiles, particles, damage numbers) are not kept. Times are
// stored relative to the save moment so a load can rebase them onto a
// different clock.
type SaveState struct {
	Version          int                     `json:"version"`
	SavedAt          time.Time               `json:"savedAt"`
	Grid             state.Grid              `json:"grid"`
	Towers           []state.Tower           `json:"towers"`
	UnspawnedEnemies []state.Enemy           `json:"unspawnedEnemies"`
	Placeables       []state.Placeable       `json:"placeables"`
	ActivePowerUps   []state.WavePowerUp     `json:"activePowerUps"`
	Paths            [][]state.Position      `json:"paths,omitempty"`
	Money            int                     `json:"money"`
	Lives            int                     `json:"lives"`
	Score            int                     `json:"score"`
	Combo            int                     `json:"combo"`
	LastKillOffset   int64                   `json:"lastKillOffset"`
	Kills            int                     `json:"kills"`
	Wave             int                     `json:"wave"`
	MaxWaves         int                     `json:"maxWaves"`
	Difficulty       float64                 `json:"difficulty"`
	Status           state.GameStatus        `json:"status"`
	Settings         state.Settings          `json:"settings"`
	RunUpgrades      map[state.UpgradeID]int `json:"runUpgrades,omitempty"`
	Counters         state.Counters          `json:"counters"`
}

// FromState captures st at simulation time now. Pending spawn times, tower
// shot times and the last kill time become offsets from now.
func FromState(st state.GameState, now int64, savedAt time.Time) SaveState {
	towers := make([]state.Tower, len(st.Towers))
	for i, t := range st.Towers {
		t.LastShot -= now
		towers[i] = t
	}
	pending := make([]state.Enemy, len(st.UnspawnedEnemies))
	for i, e := range st.UnspawnedEnemies {
		e.SpawnTime -= now
		pending[i] = e
	}
	upgrades := make(map[state.UpgradeID]int, len(st.RunUpgrades))
	for k, v := range st.RunUpgrades {
		upgrades[k] = v
	}
	return SaveState{
		Version:          SaveVersion,
		SavedAt:          savedAt.UTC(),
		Grid:             st.Grid,
		Towers:           towers,
		UnspawnedEnemies: pending,
		Placeables:       append([]state.Placeable{}, st.Placeables...),
		ActivePowerUps:   append([]state.WavePowerUp{}, st.ActivePowerUps...),
		Paths:            st.Paths,
		Money:            st.Money,
		Lives:            st.Lives,
		Score:            st.Score,
		Combo:            st.Combo,
		LastKillOffset:   st.LastKillTime - now,
		Kills:            st.Kills,
		Wave:             st.Wave,
		MaxWaves:         st.MaxWaves,
		Difficulty:       st.Difficulty,
		Status:           st.Status,
		Settings:         st.Settings,
		RunUpgrades:      upgrades,
		Counters:         st.Counters,
	}
}

// ToState rebuilds a GameState at simulation time now. The wave is active
// again when enemies were still waiting to spawn.
func ToState(save SaveState, now int64) (state.GameState, error) {
	if save.Version != SaveVersion {
		return state.GameState{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, save.Version)
	}
	st := state.New(save.Grid, save.Money, save.Lives, save.MaxWaves)
	for _, t := range save.Towers {
		t.LastShot += now
		st.Towers = append(st.Towers, t)
	}
	for _, e := range save.UnspawnedEnemies {
		e.SpawnTime += now
		st.UnspawnedEnemies = append(st.UnspawnedEnemies, e)
	}
	st.Placeables = append(st.Placeables, save.Placeables...)
	st.ActivePowerUps = append(st.ActivePowerUps, save.ActivePowerUps...)
	st.Paths = save.Paths
	st.Score = save.Score
	st.Combo = save.Combo
	st.LastKillTime = save.LastKillOffset + now
	st.Kills = save.Kills
	st.Wave = save.Wave
	st.IsWaveActive = len(st.UnspawnedEnemies) > 0
	if save.Difficulty > 0 {
		st.Difficulty = save.Difficulty
	}
	if save.Status != "" {
		st.Status = save.Status
	}
	st.Settings = save.Settings
	for k, v := range save.RunUpgrades {
		st.RunUpgrades[k] = v
	}
	st.Counters = save.Counters
	return st, nil
}
