package sim

import (
	"time"

	"github.com/seawatts/grid-sub000/internal/state"
)

// CommandType enumerates the supported player commands.
type CommandType string

const (
	CommandStartWave      CommandType = "startWave"
	CommandPause          CommandType = "pause"
	CommandResume         CommandType = "resume"
	CommandPlaceTower     CommandType = "placeTower"
	CommandUpgradeTower   CommandType = "upgradeTower"
	CommandSellTower      CommandType = "sellTower"
	CommandPlaceTrap      CommandType = "placeTrap"
	CommandApplyPowerUp   CommandType = "applyPowerUp"
	CommandSetSpeed       CommandType = "setSpeed"
	CommandSetAutoAdvance CommandType = "setAutoAdvance"
	CommandGenerateItems  CommandType = "generateItems"
	CommandSave           CommandType = "save"
	CommandLoad           CommandType = "load"
)

// TowerCommand targets a tower by type and cell, or by id.
type TowerCommand struct {
	Type     state.TowerType `json:"type,omitempty"`
	ID       int             `json:"id,omitempty"`
	Position state.Position  `json:"position"`
}

// TrapCommand places a purchasable trap over one or more cells.
type TrapCommand struct {
	Type      state.PlaceableType `json:"type"`
	Positions []state.Position    `json:"positions"`
}

// PowerUpCommand names a catalog entry.
type PowerUpCommand struct {
	ID string `json:"id"`
}

// SettingsCommand carries a runtime toggle.
type SettingsCommand struct {
	GameSpeed   float64 `json:"gameSpeed,omitempty"`
	AutoAdvance bool    `json:"autoAdvance"`
}

// ItemsCommand regenerates wave items on demand.
type ItemsCommand struct {
	Count         int  `json:"count"`
	ClearExisting bool `json:"clearExisting"`
}

// SlotCommand names a save slot.
type SlotCommand struct {
	Slot string `json:"slot"`
}

// CommandResult reports the outcome of one applied command.
type CommandResult struct {
	Type  CommandType
	Delta state.Delta
	Err   error
}

// Command represents an intent captured for processing before the next tick.
type Command struct {
	Type     CommandType      `json:"type"`
	IssuedAt time.Time        `json:"issuedAt"`
	Tower    *TowerCommand    `json:"tower,omitempty"`
	Trap     *TrapCommand     `json:"trap,omitempty"`
	PowerUp  *PowerUpCommand  `json:"powerUp,omitempty"`
	Settings *SettingsCommand `json:"settings,omitempty"`
	Items    *ItemsCommand    `json:"items,omitempty"`
	Slot     *SlotCommand     `json:"slot,omitempty"`
	// Reply, when set, receives the result once the command is applied or
	// dropped.
	Reply func(CommandResult) `json:"-"`
}
