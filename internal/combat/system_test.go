package combat

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seawatts/grid-sub000/internal/particles"
	"github.com/seawatts/grid-sub000/internal/state"
	loggingcombat "github.com/seawatts/grid-sub000/logging/combat"
	"github.com/seawatts/grid-sub000/logging/sinks"
)

func field() state.GameState {
	return state.New(state.Grid{Width: 10, Height: 10}, 100, 20, 0)
}

func at(x, y float64) state.Position {
	return state.Position{X: x, Y: y}
}

func shot(id int, towerType state.TowerType, from, pos state.Position, penetration int) state.Projectile {
	return state.Projectile{ID: id, Position: pos, SourcePosition: from, Target: pos, Type: towerType, HitEnemyIDs: []int{}, PenetrationRemaining: penetration}
}

func newSystem(t *testing.T) (*System, *particles.Pool, *sinks.MemorySink) {
	t.Helper()
	pool := particles.NewPool(64)
	memory := sinks.NewMemorySink()
	return NewSystem(memory, pool, rand.New(rand.NewSource(7))), pool, memory
}

func TestKillAwardsRewardAndStartsCombo(t *testing.T) {
	st := field()
	st.Towers = []state.Tower{{ID: 1, Position: at(0, 0), Type: state.TowerBasic, Level: 1}}
	st.SpawnedEnemies = []state.Enemy{{ID: 5, Position: at(2, 2), Health: 10, MaxHealth: 100, Reward: 10, Type: state.EnemyBasic}}
	st.Projectiles = []state.Projectile{shot(1, state.TowerBasic, at(0, 0), at(2, 2), 0)}
	sys, pool, memory := newSystem(t)

	delta := sys.Update(st, 50, 5000)

	require.NotNil(t, delta.SpawnedEnemies)
	assert.Empty(t, *delta.SpawnedEnemies)
	assert.Equal(t, 110, *delta.Money)
	assert.GreaterOrEqual(t, *delta.Combo, 1)
	assert.Equal(t, 10, *delta.Score)
	assert.Equal(t, 1, *delta.Kills)
	assert.Empty(t, *delta.Projectiles, "penetration 0 is spent by one hit")
	assert.Equal(t, 16, pool.Len())
	assert.Len(t, memory.OfType(loggingcombat.EventEnemyKilled), 1)
	require.NotNil(t, delta.DamageNumbers)
	assert.Equal(t, 20, (*delta.DamageNumbers)[0].Value)
}

func TestBombSplashHalvesDamageOnNeighbours(t *testing.T) {
	st := field()
	st.Towers = []state.Tower{{ID: 1, Position: at(0, 0), Type: state.TowerBomb, Level: 1}}
	st.SpawnedEnemies = []state.Enemy{
		{ID: 1, Position: at(5, 5), Health: 100, Reward: 10},
		{ID: 2, Position: at(6, 5), Health: 100, Reward: 10},
		{ID: 3, Position: at(8, 5), Health: 100, Reward: 10},
	}
	st.Projectiles = []state.Projectile{shot(1, state.TowerBomb, at(0, 0), at(5, 5), 0)}
	sys, _, _ := newSystem(t)

	delta := sys.Update(st, 50, 1000)

	enemies := *delta.SpawnedEnemies
	require.Len(t, enemies, 3)
	assert.InDelta(t, 50, enemies[0].Health, 1e-9)
	assert.InDelta(t, 75, enemies[1].Health, 1e-9)
	assert.InDelta(t, 100, enemies[2].Health, 1e-9, "outside splash radius")
}

func TestStaleComboResetsToOne(t *testing.T) {
	st := field()
	st.Combo = 5
	st.LastKillTime = 1000
	st.Towers = []state.Tower{{ID: 1, Position: at(0, 0), Type: state.TowerBasic, Level: 1}}
	st.SpawnedEnemies = []state.Enemy{{ID: 5, Position: at(2, 2), Health: 10, Reward: 10}}
	st.Projectiles = []state.Projectile{shot(1, state.TowerBasic, at(0, 0), at(2, 2), 0)}
	sys, _, _ := newSystem(t)

	delta := sys.Update(st, 50, 5000)

	assert.Equal(t, 1, *delta.Combo)
	assert.Equal(t, int64(5000), *delta.LastKillTime)
}

func TestResetWinsThenIncrementsWithinTick(t *testing.T) {
	st := field()
	st.Combo = 5
	st.LastKillTime = 0
	st.Towers = []state.Tower{{ID: 1, Position: at(0, 0), Type: state.TowerSniper, Level: 1}}
	st.SpawnedEnemies = []state.Enemy{
		{ID: 1, Position: at(4, 4), Health: 10, Reward: 10},
		{ID: 2, Position: at(4, 4), Health: 10, Reward: 10},
	}
	st.Projectiles = []state.Projectile{shot(1, state.TowerSniper, at(0, 0), at(4, 4), 2)}
	sys, _, _ := newSystem(t)

	delta := sys.Update(st, 50, 9000)

	assert.Equal(t, 2, *delta.Combo)
	assert.Equal(t, 100+20, *delta.Money)
	assert.Equal(t, 10+11, *delta.Score)
}

func TestPenetrationBoundsHits(t *testing.T) {
	st := field()
	st.Towers = []state.Tower{{ID: 1, Position: at(0, 0), Type: state.TowerSniper, Level: 1}}
	for i := 1; i <= 5; i++ {
		st.SpawnedEnemies = append(st.SpawnedEnemies, state.Enemy{ID: i, Position: at(4, 4), Health: 1000, Reward: 10})
	}
	st.Projectiles = []state.Projectile{shot(1, state.TowerSniper, at(0, 0), at(4, 4), 2)}
	sys, _, _ := newSystem(t)

	delta := sys.Update(st, 50, 1000)

	damaged := 0
	for _, e := range *delta.SpawnedEnemies {
		if e.Health < 1000 {
			damaged++
		}
	}
	assert.Equal(t, 3, damaged)
	assert.Empty(t, *delta.Projectiles)
}

func TestProjectileNeverHitsSameEnemyTwice(t *testing.T) {
	st := field()
	st.Towers = []state.Tower{{ID: 1, Position: at(0, 0), Type: state.TowerSniper, Level: 1}}
	st.SpawnedEnemies = []state.Enemy{{ID: 9, Position: at(4, 4), Health: 1000, Reward: 10}}
	st.Projectiles = []state.Projectile{shot(1, state.TowerSniper, at(0, 0), at(4, 4), 2)}
	sys, _, _ := newSystem(t)

	st = sys.Update(st, 50, 1000).Apply(st)
	require.Len(t, st.Projectiles, 1)
	assert.Equal(t, []int{9}, st.Projectiles[0].HitEnemyIDs)
	assert.Equal(t, 1, st.Projectiles[0].PenetrationRemaining)

	st = sys.Update(st, 50, 1050).Apply(st)
	require.Len(t, st.Projectiles, 1)
	assert.Equal(t, []int{9}, st.Projectiles[0].HitEnemyIDs)
	assert.InDelta(t, 900, st.SpawnedEnemies[0].Health, 1e-9)
}

func TestSlowTowerMarksSurvivor(t *testing.T) {
	st := field()
	st.Towers = []state.Tower{{ID: 1, Position: at(0, 0), Type: state.TowerSlow, Level: 1}}
	st.SpawnedEnemies = []state.Enemy{{ID: 1, Position: at(2, 0), Health: 100, Reward: 10}}
	st.Projectiles = []state.Projectile{shot(1, state.TowerSlow, at(0, 0), at(2, 0), 0)}
	sys, _, _ := newSystem(t)

	delta := sys.Update(st, 50, 1000)

	assert.True(t, (*delta.SpawnedEnemies)[0].Slowed)
}

func TestOrphanedProjectileIsDropped(t *testing.T) {
	st := field()
	st.SpawnedEnemies = []state.Enemy{{ID: 1, Position: at(2, 0), Health: 100}}
	st.Projectiles = []state.Projectile{shot(1, state.TowerBasic, at(0, 0), at(2, 0), 0)}
	sys, _, _ := newSystem(t)

	delta := sys.Update(st, 50, 1000)

	assert.Empty(t, *delta.Projectiles)
	assert.Nil(t, delta.SpawnedEnemies)
}

func TestLandmineTriggersExactlyOnce(t *testing.T) {
	st := field()
	st.Placeables = []state.Placeable{{ID: 3, Category: state.CategoryTrap, Type: state.PlaceableLandmine, Positions: []state.Position{at(3, 3)}, Damage: 100}}
	st.SpawnedEnemies = []state.Enemy{
		{ID: 1, Position: at(3.2, 3.4), Health: 500, Reward: 10},
		{ID: 2, Position: at(3.6, 3.1), Health: 500, Reward: 10},
	}
	sys, pool, memory := newSystem(t)

	st = sys.Update(st, 50, 1000).Apply(st)
	assert.Empty(t, st.Placeables)
	assert.InDelta(t, 400, st.SpawnedEnemies[0].Health, 1e-9)
	assert.InDelta(t, 500, st.SpawnedEnemies[1].Health, 1e-9)
	assert.Equal(t, 12, pool.Len())

	st = sys.Update(st, 50, 1050).Apply(st)
	assert.InDelta(t, 400, st.SpawnedEnemies[0].Health, 1e-9)
	assert.Len(t, memory.OfType(loggingcombat.EventTrapTriggered), 1)
}

func TestPersistentTrapReentryCooldown(t *testing.T) {
	st := field()
	st.Placeables = []state.Placeable{{ID: 3, Category: state.CategoryTrap, Type: state.PlaceableGridBug, Positions: []state.Position{at(3, 3)}}}
	st.SpawnedEnemies = []state.Enemy{{ID: 1, Position: at(3.5, 3.5), Health: 100, Reward: 10}}
	sys, _, _ := newSystem(t)

	st = sys.Update(st, 50, 1000).Apply(st)
	assert.InDelta(t, 85, st.SpawnedEnemies[0].Health, 1e-9)
	st = sys.Update(st, 50, 1050).Apply(st)
	assert.InDelta(t, 85, st.SpawnedEnemies[0].Health, 1e-9)
	st = sys.Update(st, 50, 1100).Apply(st)
	assert.InDelta(t, 70, st.SpawnedEnemies[0].Health, 1e-9)
	assert.Len(t, st.Placeables, 1)
}

func TestTrapCooldownsForgetDepartedEnemies(t *testing.T) {
	st := field()
	st.Placeables = []state.Placeable{{ID: 3, Category: state.CategoryTrap, Type: state.PlaceableGridBug, Positions: []state.Position{at(3, 3)}}}
	st.SpawnedEnemies = []state.Enemy{{ID: 1, Position: at(3.5, 3.5), Health: 100, Reward: 10}}
	sys, _, _ := newSystem(t)

	st = sys.Update(st, 50, 1000).Apply(st)
	require.Len(t, sys.trapHits, 1)

	st.SpawnedEnemies = nil
	sys.Update(st, 50, 1050)
	assert.Empty(t, sys.trapHits)
}

func TestTrapKillRemovesEnemyBeforeProjectiles(t *testing.T) {
	st := field()
	st.Towers = []state.Tower{{ID: 1, Position: at(0, 0), Type: state.TowerBasic, Level: 1}}
	st.Placeables = []state.Placeable{{ID: 3, Category: state.CategoryTrap, Type: state.PlaceableLandmine, Positions: []state.Position{at(2, 2)}, Damage: 100}}
	st.SpawnedEnemies = []state.Enemy{{ID: 1, Position: at(2.1, 2.1), Health: 50, Reward: 10}}
	st.Projectiles = []state.Projectile{shot(1, state.TowerBasic, at(0, 0), at(2.1, 2.1), 0)}
	sys, _, _ := newSystem(t)

	delta := sys.Update(st, 50, 5000)

	assert.Empty(t, *delta.SpawnedEnemies)
	require.Len(t, *delta.Projectiles, 1, "projectile found nothing to hit")
	assert.Empty(t, (*delta.Projectiles)[0].HitEnemyIDs)
	assert.Equal(t, 1, *delta.Kills)
}
