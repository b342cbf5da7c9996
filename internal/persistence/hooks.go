package persistence

import (
	"context"
	"time"

	"github.com/seawatts/grid-sub000/internal/state"
)

// SaveFunc adapts store to the loop's save hook. wall stamps SavedAt and
// defaults to time.Now.
func SaveFunc(store Store, wall func() time.Time) func(context.Context, string, state.GameState, int64) error {
	if wall == nil {
		wall = time.Now
	}
	return func(ctx context.Context, slot string, st state.GameState, now int64) error {
		return store.Save(ctx, slot, FromState(st, now, wall().UTC()))
	}
}

// LoadFunc adapts store to the loop's load hook.
func LoadFunc(store Store) func(context.Context, string, int64) (state.GameState, error) {
	return func(ctx context.Context, slot string, now int64) (state.GameState, error) {
		save, err := store.Load(ctx, slot)
		if err != nil {
			return state.GameState{}, err
		}
		return ToState(save, now)
	}
}
