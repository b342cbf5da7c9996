package projectiles

import (
	"github.com/seawatts/grid-sub000/internal/balance"
	"github.com/seawatts/grid-sub000/internal/state"
)

// System steers in-flight projectiles toward their targets.
type System struct{}

// NewSystem constructs the projectile system.
func NewSystem() *System {
	return &System{}
}

// Update refreshes each projectile's aim from its tracked enemy and moves it
// a fixed fraction of the remaining distance. A projectile whose enemy is gone
// keeps seeking the last recorded point until it is ProjectileMaxAgeMs old,
// then it is dropped.
func (s *System) Update(st state.GameState, deltaMs, timestamp int64) state.Delta {
	if len(st.Projectiles) == 0 {
		return state.Delta{}
	}
	byID := make(map[int]state.Position, len(st.SpawnedEnemies))
	for _, enemy := range st.SpawnedEnemies {
		byID[enemy.ID] = enemy.Position
	}

	moved := make([]state.Projectile, 0, len(st.Projectiles))
	for _, p := range st.Projectiles {
		if timestamp-p.FiredAt > balance.ProjectileMaxAgeMs {
			continue
		}
		if p.TargetEnemyID != nil {
			if pos, ok := byID[*p.TargetEnemyID]; ok {
				p.Target = pos
			}
		}
		p.Position = state.Position{
			X: p.Position.X + (p.Target.X-p.Position.X)*balance.ProjectileLerp,
			Y: p.Position.Y + (p.Target.Y-p.Position.Y)*balance.ProjectileLerp,
		}
		moved = append(moved, p)
	}
	return state.Delta{Projectiles: &moved}
}
