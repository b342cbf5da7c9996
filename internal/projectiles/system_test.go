package projectiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seawatts/grid-sub000/internal/balance"
	"github.com/seawatts/grid-sub000/internal/state"
)

func TestTracksEnemyByID(t *testing.T) {
	st := state.New(state.Grid{Width: 10, Height: 10}, 0, 20, 0)
	id := 7
	st.SpawnedEnemies = []state.Enemy{{ID: 7, Position: state.Position{X: 10, Y: 0}}}
	st.Projectiles = []state.Projectile{{ID: 1, Target: state.Position{X: 5, Y: 5}, TargetEnemyID: &id}}

	delta := NewSystem().Update(st, 50, 0)

	require.NotNil(t, delta.Projectiles)
	p := (*delta.Projectiles)[0]
	assert.Equal(t, state.Position{X: 10, Y: 0}, p.Target)
	assert.InDelta(t, 3.0, p.Position.X, 1e-9)
	assert.InDelta(t, 0.0, p.Position.Y, 1e-9)
}

func TestFallsBackToLastKnownPoint(t *testing.T) {
	st := state.New(state.Grid{Width: 10, Height: 10}, 0, 20, 0)
	id := 99
	st.Projectiles = []state.Projectile{{ID: 1, Position: state.Position{X: 0, Y: 0}, Target: state.Position{X: 0, Y: 10}, TargetEnemyID: &id}}

	delta := NewSystem().Update(st, 50, 0)

	p := (*delta.Projectiles)[0]
	assert.Equal(t, state.Position{X: 0, Y: 10}, p.Target)
	assert.InDelta(t, 3.0, p.Position.Y, 1e-9)
}

func TestApproachIsAsymptotic(t *testing.T) {
	st := state.New(state.Grid{Width: 10, Height: 10}, 0, 20, 0)
	st.Projectiles = []state.Projectile{{ID: 1, Target: state.Position{X: 1}}}
	sys := NewSystem()
	for i := 0; i < 20; i++ {
		st = sys.Update(st, 50, 0).Apply(st)
	}
	x := st.Projectiles[0].Position.X
	assert.Less(t, x, 1.0)
	assert.Greater(t, x, 0.99)
}

func TestNoProjectilesIsEmptyDelta(t *testing.T) {
	st := state.New(state.Grid{Width: 10, Height: 10}, 0, 20, 0)
	assert.True(t, NewSystem().Update(st, 50, 0).Empty())
}

func TestDropsProjectilesPastMaxAge(t *testing.T) {
	st := state.New(state.Grid{Width: 10, Height: 10}, 0, 20, 0)
	gone := 99
	st.Projectiles = []state.Projectile{
		{ID: 1, Target: state.Position{X: 5}, TargetEnemyID: &gone, FiredAt: 1000},
		{ID: 2, Target: state.Position{X: 5}, FiredAt: 1000 + balance.ProjectileMaxAgeMs},
	}

	delta := NewSystem().Update(st, 50, 1000+balance.ProjectileMaxAgeMs)
	require.NotNil(t, delta.Projectiles)
	assert.Len(t, *delta.Projectiles, 2, "a projectile exactly at max age is kept")

	delta = NewSystem().Update(st, 50, 1001+balance.ProjectileMaxAgeMs)
	require.Len(t, *delta.Projectiles, 1)
	assert.Equal(t, 2, (*delta.Projectiles)[0].ID)

	delta = NewSystem().Update(st, 50, 2001+2*balance.ProjectileMaxAgeMs)
	require.NotNil(t, delta.Projectiles)
	assert.Empty(t, *delta.Projectiles)
}
