package enemies

import (
	"context"
	"math"

	"github.com/seawatts/grid-sub000/internal/balance"
	"github.com/seawatts/grid-sub000/internal/state"
	"github.com/seawatts/grid-sub000/logging"
	loggingcombat "github.com/seawatts/grid-sub000/logging/combat"
)

// System spawns pending enemies and walks every active enemy along its path.
type System struct {
	publisher logging.Publisher
}

// NewSystem constructs the enemy system. A nil publisher discards events.
func NewSystem(publisher logging.Publisher) *System {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &System{publisher: publisher}
}

// Update releases enemies whose spawn time has come, then advances every
// active enemy. Enemies reaching the end of their path cost one life each,
// never taking lives below zero.
func (s *System) Update(st state.GameState, deltaMs, timestamp int64) state.Delta {
	var delta state.Delta

	active := make([]state.Enemy, 0, len(st.SpawnedEnemies)+len(st.UnspawnedEnemies))
	active = append(active, st.SpawnedEnemies...)
	if len(st.UnspawnedEnemies) > 0 {
		pending := make([]state.Enemy, 0, len(st.UnspawnedEnemies))
		for _, enemy := range st.UnspawnedEnemies {
			if enemy.SpawnTime <= timestamp {
				active = append(active, enemy)
			} else {
				pending = append(pending, enemy)
			}
		}
		if len(pending) != len(st.UnspawnedEnemies) {
			delta.UnspawnedEnemies = &pending
		}
	}

	speedScale := st.Settings.Speed()
	lives := st.Lives
	claimed := make(map[state.Cell]int, len(active))
	moved := make([]state.Enemy, 0, len(active))
	for _, enemy := range active {
		if len(enemy.Path) == 0 {
			continue
		}
		speed := enemy.Speed
		if enemy.Slowed {
			speed *= balance.SlowFactor
		}
		next := enemy.PathIndex + speed*speedScale
		if next >= float64(len(enemy.Path)-1) {
			if lives > 0 {
				lives--
			}
			loggingcombat.GoalBreached(context.Background(), s.publisher, 0, logging.Ref(logging.EntityKindEnemy, enemy.ID), loggingcombat.GoalBreachedPayload{
				EnemyType:      string(enemy.Type),
				LivesRemaining: lives,
			}, nil)
			continue
		}
		i := int(math.Floor(next))
		pos := state.Lerp(enemy.Path[i], enemy.Path[i+1], next-float64(i))
		cell := pos.Cell()
		if owner, taken := claimed[cell]; !taken || owner == enemy.ID {
			claimed[cell] = enemy.ID
			enemy.Position = pos
			enemy.PathIndex = next
		}
		enemy.Slowed = false
		moved = append(moved, enemy)
	}

	delta.SpawnedEnemies = &moved
	if lives != st.Lives {
		delta.Lives = &lives
	}
	return delta
}
