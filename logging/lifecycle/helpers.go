package lifecycle

import (
	"context"

	"github.com/seawatts/grid-sub000/logging"
)

const (
	// EventWaveStarted is emitted when a wave begins spawning.
	EventWaveStarted logging.EventType = "lifecycle.wave_started"
	// EventWaveCompleted is emitted when every enemy of a wave is gone.
	EventWaveCompleted logging.EventType = "lifecycle.wave_completed"
	// EventWaveStartFailed is emitted when a wave cannot start.
	EventWaveStartFailed logging.EventType = "lifecycle.wave_start_failed"
	// EventGameOver is emitted when the run is won or lost.
	EventGameOver logging.EventType = "lifecycle.game_over"
	// EventGameSaved is emitted after a save slot is written.
	EventGameSaved logging.EventType = "lifecycle.game_saved"
	// EventGameLoaded is emitted after a save slot is restored.
	EventGameLoaded logging.EventType = "lifecycle.game_loaded"
)

// WaveStartedPayload captures the generated composition.
type WaveStartedPayload struct {
	Wave       int     `json:"wave"`
	Enemies    int     `json:"enemies"`
	Bosses     int     `json:"bosses"`
	Paths      int     `json:"paths"`
	Difficulty float64 `json:"difficulty"`
}

// WaveCompletedPayload captures the economy at the end of a wave.
type WaveCompletedPayload struct {
	Wave  int `json:"wave"`
	Money int `json:"money"`
	Lives int `json:"lives"`
	Score int `json:"score"`
	Kills int `json:"kills"`
}

// WaveStartFailedPayload carries the user-facing reason.
type WaveStartFailedPayload struct {
	Wave   int    `json:"wave"`
	Reason string `json:"reason"`
}

// GameOverPayload records the terminal status.
type GameOverPayload struct {
	Status string `json:"status"`
	Wave   int    `json:"wave"`
	Score  int    `json:"score"`
}

// SlotPayload names a save slot.
type SlotPayload struct {
	Slot string `json:"slot"`
	Wave int    `json:"wave"`
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, tick uint64, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    logging.World(),
		Severity: severity,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// WaveStarted publishes a wave start.
func WaveStarted(ctx context.Context, pub logging.Publisher, tick uint64, payload WaveStartedPayload, extra map[string]any) {
	publish(ctx, pub, EventWaveStarted, logging.SeverityInfo, tick, payload, extra)
}

// WaveCompleted publishes a wave completion.
func WaveCompleted(ctx context.Context, pub logging.Publisher, tick uint64, payload WaveCompletedPayload, extra map[string]any) {
	publish(ctx, pub, EventWaveCompleted, logging.SeverityInfo, tick, payload, extra)
}

// WaveStartFailed publishes a refused wave start as an error.
func WaveStartFailed(ctx context.Context, pub logging.Publisher, tick uint64, payload WaveStartFailedPayload, extra map[string]any) {
	publish(ctx, pub, EventWaveStartFailed, logging.SeverityError, tick, payload, extra)
}

// GameOver publishes the end of a run.
func GameOver(ctx context.Context, pub logging.Publisher, tick uint64, payload GameOverPayload, extra map[string]any) {
	publish(ctx, pub, EventGameOver, logging.SeverityInfo, tick, payload, extra)
}

// GameSaved publishes a completed save.
func GameSaved(ctx context.Context, pub logging.Publisher, tick uint64, payload SlotPayload, extra map[string]any) {
	publish(ctx, pub, EventGameSaved, logging.SeverityInfo, tick, payload, extra)
}

// GameLoaded publishes a completed load.
func GameLoaded(ctx context.Context, pub logging.Publisher, tick uint64, payload SlotPayload, extra map[string]any) {
	publish(ctx, pub, EventGameLoaded, logging.SeverityInfo, tick, payload, extra)
}
