package combat

import (
	"context"
	"math"
	"math/rand"

	"github.com/seawatts/grid-sub000/internal/balance"
	"github.com/seawatts/grid-sub000/internal/calc"
	"github.com/seawatts/grid-sub000/internal/particles"
	"github.com/seawatts/grid-sub000/internal/state"
	"github.com/seawatts/grid-sub000/logging"
	loggingcombat "github.com/seawatts/grid-sub000/logging/combat"
)

// Burst shapes for visual feedback.
const (
	explosionParticles = 12
	explosionSpeed     = 0.15
	explosionLife      = 15
	killParticles      = 16
	killMinSpeed       = 0.08
	killMaxSpeed       = 0.2
	killMinLife        = 10
	killMaxLife        = 25
)

// Damage number colours.
const (
	colorHit    uint32 = 0xffffff
	colorSplash uint32 = 0xff9f43
	colorTrap   uint32 = 0xe67e22
)

var explosionColor = particles.RGB{R: 0xff, G: 0x8c, B: 0x00}

// Emitter receives particle bursts. *particles.Pool satisfies it.
type Emitter interface {
	Radial(x, y float64, count int, speed, life float64, c particles.RGB)
	Scatter(rng *rand.Rand, x, y float64, count int, minSpeed, maxSpeed, minLife, maxLife float64, c particles.RGB)
}

// System resolves trap and projectile contacts. It owns the per-enemy
// per-trap hit timestamps used to gate persistent traps.
type System struct {
	publisher logging.Publisher
	emitter   Emitter
	rng       *rand.Rand
	trapHits  map[int]map[int]int64
}

// NewSystem constructs the collision system. A nil publisher discards events
// and a nil emitter discards particle bursts.
func NewSystem(publisher logging.Publisher, emitter Emitter, rng *rand.Rand) *System {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &System{
		publisher: publisher,
		emitter:   emitter,
		rng:       rng,
		trapHits:  make(map[int]map[int]int64),
	}
}

// Reset forgets all trap cooldowns, used when a save is loaded.
func (s *System) Reset() {
	s.trapHits = make(map[int]map[int]int64)
}

// resolution is the working copy of everything one Update may change.
type resolution struct {
	sys       *System
	st        *state.GameState
	timestamp int64

	enemies       []state.Enemy
	enemiesDirty  bool
	damageNumbers []state.DamageNumber
	counters      state.Counters

	money    int
	score    int
	combo    int
	kills    int
	lastKill int64
	killed   bool
}

// Update runs the trap pass, then the projectile pass. Enemies killed by a
// trap are gone before any projectile is considered.
func (s *System) Update(st state.GameState, deltaMs, timestamp int64) state.Delta {
	r := &resolution{
		sys:       s,
		st:        &st,
		timestamp: timestamp,
		enemies:   append([]state.Enemy(nil), st.SpawnedEnemies...),
		counters:  st.Counters,
		money:     st.Money,
		score:     st.Score,
		combo:     st.Combo,
		kills:     st.Kills,
		lastKill:  st.LastKillTime,
	}

	var delta state.Delta
	if placeables, changed := r.trapPass(); changed {
		delta.Placeables = &placeables
	}
	if len(st.Projectiles) > 0 {
		projectiles := r.projectilePass()
		delta.Projectiles = &projectiles
	}

	alive := make([]state.Enemy, 0, len(r.enemies))
	present := make(map[int]struct{}, len(r.enemies))
	for _, enemy := range r.enemies {
		if enemy.Health <= 0 {
			continue
		}
		alive = append(alive, enemy)
		present[enemy.ID] = struct{}{}
	}
	for id := range s.trapHits {
		if _, ok := present[id]; !ok {
			delete(s.trapHits, id)
		}
	}

	if r.enemiesDirty {
		delta.SpawnedEnemies = &alive
	}
	if len(r.damageNumbers) > 0 {
		numbers := make([]state.DamageNumber, 0, len(st.DamageNumbers)+len(r.damageNumbers))
		numbers = append(numbers, st.DamageNumbers...)
		numbers = append(numbers, r.damageNumbers...)
		delta.DamageNumbers = &numbers
		delta.Counters = &r.counters
	}
	if r.killed {
		delta.Money = &r.money
		delta.Score = &r.score
		delta.Combo = &r.combo
		delta.Kills = &r.kills
		delta.LastKillTime = &r.lastKill
	}
	return delta
}

func (r *resolution) trapPass() ([]state.Placeable, bool) {
	var traps []int
	for i, p := range r.st.Placeables {
		if p.Category == state.CategoryTrap {
			traps = append(traps, i)
		}
	}
	if len(traps) == 0 || len(r.enemies) == 0 {
		return nil, false
	}

	consumed := make(map[int]struct{})
	for ei := range r.enemies {
		for _, ti := range traps {
			if r.enemies[ei].Health <= 0 {
				break
			}
			trap := r.st.Placeables[ti]
			if _, gone := consumed[trap.ID]; gone {
				continue
			}
			def, ok := balance.Trap(trap.Type)
			if !ok || !def.DamageOnEntry {
				continue
			}
			enemy := r.enemies[ei]
			if !trap.Covers(enemy.Position.Cell()) {
				continue
			}
			damage := trap.Damage
			if damage <= 0 {
				damage = def.Damage
			}
			if def.Persistent {
				hits := r.sys.trapHits[enemy.ID]
				if last, seen := hits[trap.ID]; seen && r.timestamp-last < balance.TrapReentryCooldownMs {
					continue
				}
				if hits == nil {
					hits = make(map[int]int64)
					r.sys.trapHits[enemy.ID] = hits
				}
				hits[trap.ID] = r.timestamp
			} else {
				consumed[trap.ID] = struct{}{}
				r.sys.radial(enemy.Position, explosionParticles, explosionSpeed, explosionLife, explosionColor)
			}

			actor := logging.Ref(logging.EntityKindTrap, trap.ID)
			loggingcombat.TrapTriggered(context.Background(), r.sys.publisher, 0, actor, logging.Ref(logging.EntityKindEnemy, enemy.ID), loggingcombat.TrapTriggeredPayload{
				TrapType: string(trap.Type),
				Damage:   damage,
				Consumed: !def.Persistent,
			}, nil)
			r.damage(ei, damage, colorTrap, actor, string(trap.Type))
		}
	}

	if len(consumed) == 0 {
		return nil, false
	}
	kept := make([]state.Placeable, 0, len(r.st.Placeables)-len(consumed))
	for _, p := range r.st.Placeables {
		if _, gone := consumed[p.ID]; gone {
			continue
		}
		kept = append(kept, p)
	}
	return kept, true
}

func (r *resolution) projectilePass() []state.Projectile {
	towers := make(map[state.Position]state.Tower, len(r.st.Towers))
	for _, t := range r.st.Towers {
		towers[t.Position] = t
	}

	kept := make([]state.Projectile, 0, len(r.st.Projectiles))
	for _, p := range r.st.Projectiles {
		if p.PenetrationRemaining < 0 {
			continue
		}
		tower, ok := towers[p.SourcePosition]
		if !ok {
			continue
		}
		amount := calc.TowerDamage(r.st, tower)
		actor := logging.Ref(logging.EntityKindTower, tower.ID)

		hit := make(map[int]struct{}, len(p.HitEnemyIDs))
		for _, id := range p.HitEnemyIDs {
			hit[id] = struct{}{}
		}
		hitIDs := make([]int, 0, len(p.HitEnemyIDs)+1)
		hitIDs = append(hitIDs, p.HitEnemyIDs...)

		var first *state.Position
		for ei := range r.enemies {
			enemy := r.enemies[ei]
			if enemy.Health <= 0 {
				continue
			}
			if _, done := hit[enemy.ID]; done {
				continue
			}
			if state.Distance(p.Position, enemy.Position) > balance.HitboxRadius {
				continue
			}
			hit[enemy.ID] = struct{}{}
			hitIDs = append(hitIDs, enemy.ID)
			if first == nil {
				pos := enemy.Position
				first = &pos
			}
			survived := !r.damage(ei, amount, colorHit, actor, string(tower.Type))
			if survived && p.Type == state.TowerSlow {
				r.enemies[ei].Slowed = true
			}
			p.PenetrationRemaining--
			if p.PenetrationRemaining < 0 {
				break
			}
		}

		if first != nil && p.Type == state.TowerBomb {
			splash := amount * balance.SplashDamageRatio
			for ei := range r.enemies {
				enemy := r.enemies[ei]
				if enemy.Health <= 0 {
					continue
				}
				if _, done := hit[enemy.ID]; done {
					continue
				}
				if state.Distance(*first, enemy.Position) > balance.SplashRadius {
					continue
				}
				hit[enemy.ID] = struct{}{}
				hitIDs = append(hitIDs, enemy.ID)
				r.damage(ei, splash, colorSplash, actor, string(tower.Type))
			}
		}

		if p.PenetrationRemaining < 0 {
			continue
		}
		p.HitEnemyIDs = hitIDs
		kept = append(kept, p)
	}
	return kept
}

// damage applies amount to the enemy at index ei and reports whether it died.
func (r *resolution) damage(ei int, amount float64, color uint32, actor logging.EntityRef, source string) bool {
	enemy := &r.enemies[ei]
	enemy.Health -= amount
	r.enemiesDirty = true

	r.damageNumbers = append(r.damageNumbers, state.DamageNumber{
		ID:       r.counters.NextDamageNumberID,
		Position: enemy.Position,
		Value:    int(math.Round(amount)),
		Color:    color,
		Life:     state.DamageNumberLifeTicks,
	})
	r.counters.NextDamageNumberID++

	if enemy.Health > 0 {
		return false
	}
	r.kill(*enemy, actor, source)
	return true
}

func (r *resolution) kill(enemy state.Enemy, actor logging.EntityRef, source string) {
	reward := calc.KillReward(r.st, enemy)
	if r.timestamp-r.lastKill > balance.ComboWindowMs {
		r.combo = 1
	} else {
		r.combo++
	}
	r.lastKill = r.timestamp
	points := calc.ComboScore(reward, r.combo)

	r.money += reward
	r.score += points
	r.kills++
	r.killed = true

	r.sys.scatter(enemy.Position, particles.Unpack(balance.Enemy(enemy.Type).Color))
	loggingcombat.EnemyKilled(context.Background(), r.sys.publisher, 0, actor, logging.Ref(logging.EntityKindEnemy, enemy.ID), loggingcombat.EnemyKilledPayload{
		EnemyType: string(enemy.Type),
		Source:    source,
		Reward:    reward,
		Combo:     r.combo,
		Score:     points,
	}, nil)
}

func (s *System) radial(at state.Position, count int, speed, life float64, c particles.RGB) {
	if s.emitter == nil {
		return
	}
	s.emitter.Radial(at.X, at.Y, count, speed, life, c)
}

func (s *System) scatter(at state.Position, c particles.RGB) {
	if s.emitter == nil {
		return
	}
	s.emitter.Scatter(s.rng, at.X, at.Y, killParticles, killMinSpeed, killMaxSpeed, killMinLife, killMaxLife, c)
}
