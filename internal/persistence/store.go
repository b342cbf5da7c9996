package persistence

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

var (
	// ErrSlotNotFound indicates no save exists under the slot.
	ErrSlotNotFound = errors.New("persistence: slot not found")
	// ErrInvalidSlot indicates a slot name outside [A-Za-z0-9_-]{1,64}.
	ErrInvalidSlot = errors.New("persistence: invalid slot name")
)

var slotPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Summary describes one stored save without its body.
type Summary struct {
	Slot    string    `json:"slot"`
	Wave    int       `json:"wave"`
	Score   int       `json:"score"`
	SavedAt time.Time `json:"savedAt"`
}

// Store defines the interface for save persistence.
type Store interface {
	Save(ctx context.Context, slot string, save SaveState) error
	Load(ctx context.Context, slot string) (SaveState, error)
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, slot string) error
	Close() error
}

// ValidateSlot rejects names that are unsafe as file names or keys.
func ValidateSlot(slot string) error {
	if !slotPattern.MatchString(slot) {
		return fmt.Errorf("%w: %q", ErrInvalidSlot, slot)
	}
	return nil
}

func summarize(slot string, save SaveState) Summary {
	return Summary{Slot: slot, Wave: save.Wave, Score: save.Score, SavedAt: save.SavedAt}
}
