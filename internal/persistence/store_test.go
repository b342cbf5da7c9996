package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	jsonStore, err := NewJSONStore(filepath.Join(t.TempDir(), "saves"))
	require.NoError(t, err)
	sqlStore, err := OpenSQLite(filepath.Join(t.TempDir(), "saves.db"))
	require.NoError(t, err)
	memoryStore, err := OpenSQLite("")
	require.NoError(t, err)
	out := map[string]Store{"json": jsonStore, "sqlite": sqlStore, "sqlite-memory": memoryStore}
	t.Cleanup(func() {
		for _, s := range out {
			s.Close()
		}
	})
	return out
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			save := FromState(runningState(), 10000, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

			require.NoError(t, store.Save(ctx, "slot-1", save))
			loaded, err := store.Load(ctx, "slot-1")
			require.NoError(t, err)

			assert.Equal(t, save.Wave, loaded.Wave)
			assert.Equal(t, save.Towers, loaded.Towers)
			assert.Equal(t, save.UnspawnedEnemies[0].SpawnTime, loaded.UnspawnedEnemies[0].SpawnTime)
			assert.Equal(t, save.Counters, loaded.Counters)
			assert.True(t, save.SavedAt.Equal(loaded.SavedAt))
		})
	}
}

func TestStoreOverwritesSlot(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			first := FromState(runningState(), 0, time.Unix(10, 0))
			second := first
			second.Wave = 12

			require.NoError(t, store.Save(ctx, "main", first))
			require.NoError(t, store.Save(ctx, "main", second))

			loaded, err := store.Load(ctx, "main")
			require.NoError(t, err)
			assert.Equal(t, 12, loaded.Wave)

			summaries, err := store.List(ctx)
			require.NoError(t, err)
			assert.Len(t, summaries, 1)
		})
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			older := FromState(runningState(), 0, time.Unix(100, 0))
			newer := FromState(runningState(), 0, time.Unix(200, 0))
			newer.Score = 99

			require.NoError(t, store.Save(ctx, "older", older))
			require.NoError(t, store.Save(ctx, "newer", newer))

			summaries, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, summaries, 2)
			assert.Equal(t, "newer", summaries[0].Slot)
			assert.Equal(t, 99, summaries[0].Score)
			assert.Equal(t, "older", summaries[1].Slot)
		})
	}
}

func TestStoreMissingSlot(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Load(ctx, "ghost")
			assert.ErrorIs(t, err, ErrSlotNotFound)
			assert.ErrorIs(t, store.Delete(ctx, "ghost"), ErrSlotNotFound)
		})
	}
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save(ctx, "temp", FromState(runningState(), 0, time.Now())))
			require.NoError(t, store.Delete(ctx, "temp"))

			_, err := store.Load(ctx, "temp")
			assert.ErrorIs(t, err, ErrSlotNotFound)
		})
	}
}

func TestStoreRejectsUnsafeSlot(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := store.Save(ctx, "../escape", FromState(runningState(), 0, time.Now()))
			assert.ErrorIs(t, err, ErrInvalidSlot)
		})
	}
}

func TestJSONStoreSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewJSONStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644))
	require.NoError(t, store.Save(context.Background(), "ok", FromState(runningState(), 0, time.Now())))

	summaries, err := store.List(context.Background())

	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "ok", summaries[0].Slot)
}
