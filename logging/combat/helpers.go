package combat

import (
	"context"

	"github.com/seawatts/grid-sub000/logging"
)

const (
	// EventEnemyKilled is emitted when an enemy's health drops to zero.
	EventEnemyKilled logging.EventType = "combat.enemy_killed"
	// EventTrapTriggered is emitted when a trap damages an enemy.
	EventTrapTriggered logging.EventType = "combat.trap_triggered"
	// EventGoalBreached is emitted when an enemy reaches a goal.
	EventGoalBreached logging.EventType = "combat.goal_breached"
)

// EnemyKilledPayload describes the economy outcome of a kill.
type EnemyKilledPayload struct {
	EnemyType string `json:"enemyType"`
	Source    string `json:"source"`
	Reward    int    `json:"reward"`
	Combo     int    `json:"combo"`
	Score     int    `json:"score"`
}

// TrapTriggeredPayload describes a trap hit.
type TrapTriggeredPayload struct {
	TrapType string  `json:"trapType"`
	Damage   float64 `json:"damage"`
	Consumed bool    `json:"consumed"`
}

// GoalBreachedPayload describes a life lost.
type GoalBreachedPayload struct {
	EnemyType      string `json:"enemyType"`
	LivesRemaining int    `json:"livesRemaining"`
}

// EnemyKilled publishes a kill event. The actor is whatever dealt the blow.
func EnemyKilled(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload EnemyKilledPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventEnemyKilled,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// TrapTriggered publishes a trap hit at debug severity.
func TrapTriggered(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload TrapTriggeredPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventTrapTriggered,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// GoalBreached publishes a warning when an enemy costs the player a life.
func GoalBreached(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload GoalBreachedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventGoalBreached,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
