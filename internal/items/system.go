package items

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/seawatts/grid-sub000/internal/balance"
	"github.com/seawatts/grid-sub000/internal/state"
)

var (
	// ErrNotPurchasable is returned for trap types the player cannot buy.
	ErrNotPurchasable = errors.New("items: trap type is not purchasable")
	// ErrBadShape is returned when positions do not form the trap's shape.
	ErrBadShape = errors.New("items: positions do not match trap shape")
	// ErrCellUnavailable is returned when a target cell is occupied or off grid.
	ErrCellUnavailable = errors.New("items: cell unavailable")
)

// System places power nodes and landmines between waves.
type System struct {
	rng *rand.Rand
}

// NewSystem constructs the item system around the engine's random source.
func NewSystem(rng *rand.Rand) *System {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &System{rng: rng}
}

// GenerateWaveItems scatters count-scaled power nodes and landmines over
// free cells. With clearExisting only tower-bound power-ups survive;
// otherwise every trap and every unexpired or tower-bound power-up is kept
// where it lies.
func (s *System) GenerateWaveItems(st state.GameState, count int, clearExisting bool) state.Delta {
	kept := make([]state.Placeable, 0, len(st.Placeables))
	for _, p := range st.Placeables {
		if keep(p, clearExisting) {
			kept = append(kept, p)
		}
	}

	free := freeCells(&st, kept)
	nodes := scaledCount(count, &st, state.UpgradePowerNodeFrequency)
	mines := scaledCount(count, &st, state.UpgradeLandmineFrequency)

	counters := st.Counters
	placeables := kept
	for _, cell := range s.sample(&free, nodes) {
		placeables = append(placeables, state.Placeable{
			ID:             counters.NextPlaceableID,
			Category:       state.CategoryPowerUp,
			Type:           state.PlaceablePowerNode,
			Positions:      []state.Position{cell.Position()},
			Boost:          balance.Upgrade(&st, state.UpgradePowerNodePotency),
			RemainingWaves: int(balance.Upgrade(&st, state.UpgradePowerNodeDuration)),
		})
		counters.NextPlaceableID++
	}
	for _, cell := range s.sample(&free, mines) {
		placeables = append(placeables, state.Placeable{
			ID:        counters.NextPlaceableID,
			Category:  state.CategoryTrap,
			Type:      state.PlaceableLandmine,
			Positions: []state.Position{cell.Position()},
			Damage:    balance.Upgrade(&st, state.UpgradeLandmineDamage),
		})
		counters.NextPlaceableID++
	}

	return state.Delta{
		Placeables: &placeables,
		Counters:   &counters,
	}
}

func keep(p state.Placeable, clearExisting bool) bool {
	if p.Category == state.CategoryPowerUp && p.IsTowerBound {
		return true
	}
	if clearExisting {
		return false
	}
	if p.Category == state.CategoryPowerUp && p.RemainingWaves <= 0 {
		return false
	}
	return true
}

func scaledCount(count int, st *state.GameState, id state.UpgradeID) int {
	n := int(math.Floor(float64(count) * balance.Upgrade(st, id)))
	if n < 1 && st.UpgradeLevel(id) > 0 {
		n = 1
	}
	return n
}

// sample draws up to n cells without replacement, removing them from pool.
func (s *System) sample(pool *[]state.Cell, n int) []state.Cell {
	cells := *pool
	if n > len(cells) {
		n = len(cells)
	}
	for i := 0; i < n; i++ {
		j := i + s.rng.Intn(len(cells)-i)
		cells[i], cells[j] = cells[j], cells[i]
	}
	picked := append([]state.Cell(nil), cells[:n]...)
	*pool = cells[n:]
	return picked
}

// freeCells lists, in row-major order, the cells that carry no map marker,
// tower or placeable.
func freeCells(st *state.GameState, placeables []state.Placeable) []state.Cell {
	taken := occupied(st, placeables)
	var cells []state.Cell
	for y := 0; y < st.Grid.Height; y++ {
		for x := 0; x < st.Grid.Width; x++ {
			c := state.Cell{X: x, Y: y}
			if _, ok := taken[c]; !ok {
				cells = append(cells, c)
			}
		}
	}
	return cells
}

func occupied(st *state.GameState, placeables []state.Placeable) map[state.Cell]struct{} {
	taken := make(map[state.Cell]struct{})
	mark := func(positions []state.Position) {
		for _, pos := range positions {
			taken[pos.Cell()] = struct{}{}
		}
	}
	mark(st.Grid.Starts)
	mark(st.Grid.Goals)
	mark(st.Grid.Obstacles)
	for _, t := range st.Towers {
		taken[t.Position.Cell()] = struct{}{}
	}
	for _, p := range placeables {
		mark(p.Positions)
	}
	return taken
}

// PlaceTrap validates and places a player-bought trap. Money is the caller's
// concern. Multi-cell traps must form a straight orthogonal line.
func PlaceTrap(st state.GameState, kind state.PlaceableType, positions []state.Position) (state.Delta, error) {
	def, ok := balance.Trap(kind)
	if !ok || def.Cost <= 0 {
		return state.Delta{}, fmt.Errorf("%w: %s", ErrNotPurchasable, kind)
	}
	if len(positions) != def.Length || !straightLine(positions) {
		return state.Delta{}, fmt.Errorf("%w: %s needs %d contiguous cells", ErrBadShape, kind, def.Length)
	}
	taken := occupied(&st, st.Placeables)
	cells := make([]state.Position, len(positions))
	for i, pos := range positions {
		c := pos.Cell()
		if !st.Grid.InBounds(c) {
			return state.Delta{}, fmt.Errorf("%w: (%d,%d) is off grid", ErrCellUnavailable, c.X, c.Y)
		}
		if _, ok := taken[c]; ok {
			return state.Delta{}, fmt.Errorf("%w: (%d,%d) is occupied", ErrCellUnavailable, c.X, c.Y)
		}
		cells[i] = c.Position()
	}

	counters := st.Counters
	placeables := make([]state.Placeable, 0, len(st.Placeables)+1)
	placeables = append(placeables, st.Placeables...)
	placeables = append(placeables, state.Placeable{
		ID:        counters.NextPlaceableID,
		Category:  state.CategoryTrap,
		Type:      kind,
		Positions: cells,
		Damage:    def.Damage,
	})
	counters.NextPlaceableID++
	return state.Delta{
		Placeables: &placeables,
		Counters:   &counters,
	}, nil
}

func straightLine(positions []state.Position) bool {
	for i := 1; i < len(positions); i++ {
		a, b := positions[i-1].Cell(), positions[i].Cell()
		dx, dy := b.X-a.X, b.Y-a.Y
		if dx*dx+dy*dy != 1 {
			return false
		}
		if i > 1 {
			p := positions[i-2].Cell()
			if a.X-p.X != dx || a.Y-p.Y != dy {
				return false
			}
		}
	}
	return true
}
