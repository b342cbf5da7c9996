package economy

import (
	"context"

	"github.com/seawatts/grid-sub000/logging"
)

const (
	// EventTowerPurchased is emitted when a tower is built.
	EventTowerPurchased logging.EventType = "economy.tower_purchased"
	// EventTowerUpgraded is emitted when a tower gains a level.
	EventTowerUpgraded logging.EventType = "economy.tower_upgraded"
	// EventTowerSold is emitted when a tower is sold back.
	EventTowerSold logging.EventType = "economy.tower_sold"
	// EventTrapPurchased is emitted when the player buys a trap.
	EventTrapPurchased logging.EventType = "economy.trap_purchased"
	// EventPowerUpApplied is emitted when a catalog power-up is taken.
	EventPowerUpApplied logging.EventType = "economy.powerup_applied"
	// EventPurchaseRejected is emitted when a command is refused.
	EventPurchaseRejected logging.EventType = "economy.purchase_rejected"
)

// TransactionPayload describes a money movement.
type TransactionPayload struct {
	Item         string `json:"item"`
	Level        int    `json:"level,omitempty"`
	Amount       int    `json:"amount"`
	MoneyBalance int    `json:"moneyBalance"`
}

// PowerUpAppliedPayload describes a taken power-up.
type PowerUpAppliedPayload struct {
	CatalogID string  `json:"catalogId"`
	Effect    string  `json:"effect"`
	Value     float64 `json:"value"`
	Instant   bool    `json:"instant"`
}

// PurchaseRejectedPayload describes why a command was refused.
type PurchaseRejectedPayload struct {
	Command string `json:"command"`
	Reason  string `json:"reason"`
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, tick uint64, actor logging.EntityRef, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryEconomy,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// TowerPurchased publishes a tower purchase.
func TowerPurchased(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload TransactionPayload, extra map[string]any) {
	publish(ctx, pub, EventTowerPurchased, logging.SeverityInfo, tick, actor, payload, extra)
}

// TowerUpgraded publishes a tower upgrade.
func TowerUpgraded(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload TransactionPayload, extra map[string]any) {
	publish(ctx, pub, EventTowerUpgraded, logging.SeverityInfo, tick, actor, payload, extra)
}

// TowerSold publishes a tower sale.
func TowerSold(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload TransactionPayload, extra map[string]any) {
	publish(ctx, pub, EventTowerSold, logging.SeverityInfo, tick, actor, payload, extra)
}

// TrapPurchased publishes a trap purchase.
func TrapPurchased(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload TransactionPayload, extra map[string]any) {
	publish(ctx, pub, EventTrapPurchased, logging.SeverityInfo, tick, actor, payload, extra)
}

// PowerUpApplied publishes a taken power-up.
func PowerUpApplied(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PowerUpAppliedPayload, extra map[string]any) {
	publish(ctx, pub, EventPowerUpApplied, logging.SeverityInfo, tick, actor, payload, extra)
}

// PurchaseRejected publishes a refused command at warning severity.
func PurchaseRejected(ctx context.Context, pub logging.Publisher, tick uint64, payload PurchaseRejectedPayload, extra map[string]any) {
	publish(ctx, pub, EventPurchaseRejected, logging.SeverityWarn, tick, logging.World(), payload, extra)
}
