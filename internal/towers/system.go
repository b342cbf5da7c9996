package towers

import (
	"github.com/seawatts/grid-sub000/internal/balance"
	"github.com/seawatts/grid-sub000/internal/calc"
	"github.com/seawatts/grid-sub000/internal/state"
)

// System picks targets for towers whose cooldown elapsed and fires.
type System struct{}

// NewSystem constructs the tower system.
func NewSystem() *System {
	return &System{}
}

// Update fires every ready tower at the in-range enemy furthest along its
// path. Ties keep the first enemy in iteration order.
func (s *System) Update(st state.GameState, deltaMs, timestamp int64) state.Delta {
	if len(st.Towers) == 0 {
		return state.Delta{}
	}
	towers := make([]state.Tower, len(st.Towers))
	copy(towers, st.Towers)
	projectiles := make([]state.Projectile, 0, len(st.Projectiles)+len(towers))
	projectiles = append(projectiles, st.Projectiles...)
	counters := st.Counters
	fired := false

	for i, tower := range towers {
		stats, ok := balance.Tower(tower.Type)
		if !ok {
			continue
		}
		if float64(timestamp-tower.LastShot) < calc.TowerFireRate(&st, tower) {
			continue
		}
		target, found := selectTarget(st.SpawnedEnemies, tower.Position, calc.TowerRange(&st, tower))
		if !found {
			continue
		}
		towers[i].LastShot = timestamp
		targetID := target.ID
		projectiles = append(projectiles, state.Projectile{
			ID:                   counters.NextProjectileID,
			Position:             tower.Position,
			SourcePosition:       tower.Position,
			Target:               target.Position,
			TargetEnemyID:        &targetID,
			Type:                 tower.Type,
			HitEnemyIDs:          []int{},
			PenetrationRemaining: stats.Penetration,
			FiredAt:              timestamp,
		})
		counters.NextProjectileID++
		fired = true
	}

	if !fired {
		return state.Delta{}
	}
	return state.Delta{
		Towers:      &towers,
		Projectiles: &projectiles,
		Counters:    &counters,
	}
}

func selectTarget(enemies []state.Enemy, origin state.Position, reach float64) (state.Enemy, bool) {
	var best state.Enemy
	bestIndex := -1.0
	found := false
	for _, enemy := range enemies {
		if state.Distance(origin, enemy.Position) > reach {
			continue
		}
		if enemy.PathIndex > bestIndex {
			best = enemy
			bestIndex = enemy.PathIndex
			found = true
		}
	}
	return best, found
}
