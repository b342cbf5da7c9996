package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/seawatts/grid-sub000/internal/balance"
	"github.com/seawatts/grid-sub000/internal/items"
	"github.com/seawatts/grid-sub000/internal/pathfinding"
	"github.com/seawatts/grid-sub000/internal/state"
	"github.com/seawatts/grid-sub000/logging"
	"github.com/seawatts/grid-sub000/logging/economy"
)

var (
	// ErrUnknownTower indicates an unsupported tower type.
	ErrUnknownTower = errors.New("sim: unknown tower type")
	// ErrTowerNotFound indicates no tower has the given id.
	ErrTowerNotFound = errors.New("sim: tower not found")
	// ErrInsufficientFunds indicates the purchase costs more than the balance.
	ErrInsufficientFunds = errors.New("sim: insufficient funds")
	// ErrCellOccupied indicates the target cell is off grid or already used.
	ErrCellOccupied = errors.New("sim: cell occupied")
	// ErrWouldBlockPath indicates the placement would cut a start off from
	// every goal.
	ErrWouldBlockPath = errors.New("sim: placement would block every path")
	// ErrMaxLevel indicates the tower cannot be upgraded further.
	ErrMaxLevel = errors.New("sim: tower at max level")
	// ErrUnknownPowerUp indicates the catalog id does not exist.
	ErrUnknownPowerUp = errors.New("sim: unknown power-up")
	// ErrInvalidSpeed indicates a non-positive game speed.
	ErrInvalidSpeed = errors.New("sim: game speed must be positive")
	// ErrGameOver indicates the run already ended.
	ErrGameOver = errors.New("sim: game is over")
)

// PlaceTower buys a tower on the cell at pos. A tower built on a power node
// binds it, exempting it from wave decay.
func (e *Engine) PlaceTower(st state.GameState, kind state.TowerType, pos state.Position) (state.Delta, error) {
	if st.Status != state.StatusPlaying {
		return state.Delta{}, e.reject("placeTower", ErrGameOver)
	}
	stats, ok := balance.Tower(kind)
	if !ok {
		return state.Delta{}, e.reject("placeTower", fmt.Errorf("%w: %q", ErrUnknownTower, kind))
	}
	cell := pos.Cell()
	if !cellFree(&st, cell) {
		return state.Delta{}, e.reject("placeTower", fmt.Errorf("%w: (%d,%d)", ErrCellOccupied, cell.X, cell.Y))
	}
	if st.Money < stats.Cost {
		return state.Delta{}, e.reject("placeTower", fmt.Errorf("%w: need %d, have %d", ErrInsufficientFunds, stats.Cost, st.Money))
	}
	at := cell.Position()
	if !pathsSurvive(&st, at) {
		return state.Delta{}, e.reject("placeTower", ErrWouldBlockPath)
	}

	counters := st.Counters
	tower := state.Tower{ID: counters.NextTowerID, Position: at, Type: kind, Level: 1}
	counters.NextTowerID++
	towers := append(append(make([]state.Tower, 0, len(st.Towers)+1), st.Towers...), tower)
	money := st.Money - stats.Cost

	delta := state.Delta{Towers: &towers, Money: &money, Counters: &counters}
	if placeables, bound := setBinding(st.Placeables, cell, true); bound {
		delta.Placeables = &placeables
	}
	economy.TowerPurchased(context.Background(), e.publisher, 0, logging.Ref(logging.EntityKindTower, tower.ID), economy.TransactionPayload{
		Item:         string(kind),
		Level:        1,
		Amount:       stats.Cost,
		MoneyBalance: money,
	}, nil)
	return delta, nil
}

// UpgradeTower raises a tower one level.
func (e *Engine) UpgradeTower(st state.GameState, id int) (state.Delta, error) {
	idx := towerIndex(st.Towers, id)
	if idx < 0 {
		return state.Delta{}, e.reject("upgradeTower", fmt.Errorf("%w: %d", ErrTowerNotFound, id))
	}
	tower := st.Towers[idx]
	if tower.Level >= balance.MaxTowerLevel {
		return state.Delta{}, e.reject("upgradeTower", ErrMaxLevel)
	}
	cost := balance.UpgradeCost(tower.Type, tower.Level)
	if st.Money < cost {
		return state.Delta{}, e.reject("upgradeTower", fmt.Errorf("%w: need %d, have %d", ErrInsufficientFunds, cost, st.Money))
	}
	towers := append([]state.Tower(nil), st.Towers...)
	towers[idx].Level++
	money := st.Money - cost
	economy.TowerUpgraded(context.Background(), e.publisher, 0, logging.Ref(logging.EntityKindTower, id), economy.TransactionPayload{
		Item:         string(tower.Type),
		Level:        towers[idx].Level,
		Amount:       cost,
		MoneyBalance: money,
	}, nil)
	return state.Delta{Towers: &towers, Money: &money}, nil
}

// SellTower removes a tower for a partial refund and unbinds any power node
// under it.
func (e *Engine) SellTower(st state.GameState, id int) (state.Delta, error) {
	idx := towerIndex(st.Towers, id)
	if idx < 0 {
		return state.Delta{}, e.reject("sellTower", fmt.Errorf("%w: %d", ErrTowerNotFound, id))
	}
	tower := st.Towers[idx]
	refund := balance.SellValue(tower.Type, tower.Level)
	towers := make([]state.Tower, 0, len(st.Towers)-1)
	towers = append(towers, st.Towers[:idx]...)
	towers = append(towers, st.Towers[idx+1:]...)
	money := st.Money + refund

	delta := state.Delta{Towers: &towers, Money: &money}
	if placeables, changed := setBinding(st.Placeables, tower.Position.Cell(), false); changed {
		delta.Placeables = &placeables
	}
	economy.TowerSold(context.Background(), e.publisher, 0, logging.Ref(logging.EntityKindTower, id), economy.TransactionPayload{
		Item:         string(tower.Type),
		Level:        tower.Level,
		Amount:       refund,
		MoneyBalance: money,
	}, nil)
	return delta, nil
}

// PlaceTrap buys a gridBug or stream trap.
func (e *Engine) PlaceTrap(st state.GameState, kind state.PlaceableType, positions []state.Position) (state.Delta, error) {
	if st.Status != state.StatusPlaying {
		return state.Delta{}, e.reject("placeTrap", ErrGameOver)
	}
	def, _ := balance.Trap(kind)
	if def.Cost > 0 && st.Money < def.Cost {
		return state.Delta{}, e.reject("placeTrap", fmt.Errorf("%w: need %d, have %d", ErrInsufficientFunds, def.Cost, st.Money))
	}
	delta, err := items.PlaceTrap(st, kind, positions)
	if err != nil {
		return state.Delta{}, e.reject("placeTrap", err)
	}
	money := st.Money - def.Cost
	delta.Money = &money
	placed := (*delta.Placeables)[len(*delta.Placeables)-1]
	economy.TrapPurchased(context.Background(), e.publisher, 0, logging.Ref(logging.EntityKindTrap, placed.ID), economy.TransactionPayload{
		Item:         string(kind),
		Amount:       def.Cost,
		MoneyBalance: money,
	}, nil)
	return delta, nil
}

// ApplyPowerUp takes a catalog power-up. Instant effects change lives or
// money immediately; the rest join the active modifiers.
func (e *Engine) ApplyPowerUp(st state.GameState, catalogID string) (state.Delta, error) {
	def, ok := balance.PowerUp(catalogID)
	if !ok {
		return state.Delta{}, e.reject("applyPowerUp", fmt.Errorf("%w: %q", ErrUnknownPowerUp, catalogID))
	}
	var delta state.Delta
	instant := def.Duration.Instant()
	if instant {
		switch def.Effect.Type {
		case state.EffectLives:
			delta.Lives = state.Ptr(st.Lives + int(def.Effect.Value))
		case state.EffectMoney:
			delta.Money = state.Ptr(st.Money + int(def.Effect.Value))
		}
	} else {
		counters := st.Counters
		active := append(append(make([]state.WavePowerUp, 0, len(st.ActivePowerUps)+1), st.ActivePowerUps...), state.WavePowerUp{
			ID:             counters.NextPowerUpID,
			CatalogID:      def.ID,
			Effect:         def.Effect,
			Duration:       def.Duration,
			WavesRemaining: def.Duration.Waves,
			Stacking:       def.Stacking,
		})
		counters.NextPowerUpID++
		delta.ActivePowerUps = &active
		delta.Counters = &counters
	}
	economy.PowerUpApplied(context.Background(), e.publisher, 0, logging.Ref(logging.EntityKindPowerUp, 0), economy.PowerUpAppliedPayload{
		CatalogID: def.ID,
		Effect:    string(def.Effect.Type),
		Value:     def.Effect.Value,
		Instant:   instant,
	}, nil)
	return delta, nil
}

// SetGameSpeed changes the simulation speed multiplier.
func (e *Engine) SetGameSpeed(st state.GameState, speed float64) (state.Delta, error) {
	if speed <= 0 {
		return state.Delta{}, e.reject("setSpeed", ErrInvalidSpeed)
	}
	settings := st.Settings
	settings.GameSpeed = speed
	return state.Delta{Settings: &settings}, nil
}

// SetAutoAdvance toggles automatic wave starts.
func (e *Engine) SetAutoAdvance(st state.GameState, enabled bool) state.Delta {
	settings := st.Settings
	settings.AutoAdvance = enabled
	return state.Delta{Settings: &settings}
}

func (e *Engine) reject(command string, err error) error {
	economy.PurchaseRejected(context.Background(), e.publisher, 0, economy.PurchaseRejectedPayload{
		Command: command,
		Reason:  err.Error(),
	}, nil)
	e.deps.Metrics.Add("sim_commands_rejected_total", 1)
	return err
}

func towerIndex(towers []state.Tower, id int) int {
	for i, t := range towers {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// cellFree reports whether a tower may stand on cell. Power nodes are the
// only placeables a tower may share a cell with.
func cellFree(st *state.GameState, cell state.Cell) bool {
	if !st.Grid.InBounds(cell) {
		return false
	}
	for _, group := range [][]state.Position{st.Grid.Starts, st.Grid.Goals, st.Grid.Obstacles} {
		for _, pos := range group {
			if pos.Cell() == cell {
				return false
			}
		}
	}
	if _, taken := st.TowerAt(cell); taken {
		return false
	}
	for _, p := range st.Placeables {
		if p.Category == state.CategoryTrap && p.Covers(cell) {
			return false
		}
	}
	return true
}

// pathsSurvive reports whether every start still reaches some goal with an
// extra obstacle at extra.
func pathsSurvive(st *state.GameState, extra state.Position) bool {
	if len(st.Grid.Goals) == 0 {
		return true
	}
	towerCells := make([]state.Position, 0, len(st.Towers)+1)
	for _, t := range st.Towers {
		towerCells = append(towerCells, t.Position)
	}
	towerCells = append(towerCells, extra)
	var trapCells []state.Position
	for _, p := range st.Placeables {
		if balance.BlocksPath(p) {
			trapCells = append(trapCells, p.Positions...)
		}
	}
	blocked := pathfinding.BlockedSet(st.Grid.Obstacles, towerCells, trapCells)
	for _, start := range st.Grid.Starts {
		if _, ok := pathfinding.FindPath(start, st.Grid.Goals, blocked, st.Grid.Width, st.Grid.Height); !ok {
			return false
		}
	}
	return true
}

func setBinding(placeables []state.Placeable, cell state.Cell, bound bool) ([]state.Placeable, bool) {
	changed := false
	out := make([]state.Placeable, len(placeables))
	for i, p := range placeables {
		if p.Category == state.CategoryPowerUp && p.Covers(cell) && p.IsTowerBound != bound {
			p.IsTowerBound = bound
			changed = true
		}
		out[i] = p
	}
	return out, changed
}
