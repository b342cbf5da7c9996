package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const jsonExt = ".json"

// JSONStore keeps one indented JSON file per slot in a directory.
type JSONStore struct {
	dir   string
	mutex sync.RWMutex
}

// NewJSONStore creates the directory when missing.
func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create save directory: %w", err)
	}
	return &JSONStore{dir: dir}, nil
}

func (js *JSONStore) path(slot string) string {
	return filepath.Join(js.dir, slot+jsonExt)
}

// Save writes the slot through a temporary file so a crash never leaves a
// truncated save behind.
func (js *JSONStore) Save(_ context.Context, slot string, save SaveState) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}
	data, err := json.MarshalIndent(save, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode save: %w", err)
	}

	js.mutex.Lock()
	defer js.mutex.Unlock()

	tmp, err := os.CreateTemp(js.dir, slot+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp save: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write save: %w", err)
	}
	if err := os.Rename(tmp.Name(), js.path(slot)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to commit save: %w", err)
	}
	return nil
}

// Load reads the slot.
func (js *JSONStore) Load(_ context.Context, slot string) (SaveState, error) {
	if err := ValidateSlot(slot); err != nil {
		return SaveState{}, err
	}
	js.mutex.RLock()
	defer js.mutex.RUnlock()
	return js.read(slot)
}

func (js *JSONStore) read(slot string) (SaveState, error) {
	data, err := os.ReadFile(js.path(slot))
	if errors.Is(err, fs.ErrNotExist) {
		return SaveState{}, fmt.Errorf("%w: %s", ErrSlotNotFound, slot)
	}
	if err != nil {
		return SaveState{}, fmt.Errorf("failed to read save: %w", err)
	}
	var save SaveState
	if err := json.Unmarshal(data, &save); err != nil {
		return SaveState{}, fmt.Errorf("failed to decode save %s: %w", slot, err)
	}
	return save, nil
}

// List returns every readable slot, newest first.
func (js *JSONStore) List(_ context.Context) ([]Summary, error) {
	js.mutex.RLock()
	defer js.mutex.RUnlock()

	entries, err := os.ReadDir(js.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list saves: %w", err)
	}
	summaries := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, jsonExt) {
			continue
		}
		slot := strings.TrimSuffix(name, jsonExt)
		if ValidateSlot(slot) != nil {
			continue
		}
		save, err := js.read(slot)
		if err != nil {
			continue
		}
		summaries = append(summaries, summarize(slot, save))
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].SavedAt.After(summaries[j].SavedAt)
	})
	return summaries, nil
}

// Delete removes the slot.
func (js *JSONStore) Delete(_ context.Context, slot string) error {
	if err := ValidateSlot(slot); err != nil {
		return err
	}
	js.mutex.Lock()
	defer js.mutex.Unlock()
	err := os.Remove(js.path(slot))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrSlotNotFound, slot)
	}
	if err != nil {
		return fmt.Errorf("failed to delete save: %w", err)
	}
	return nil
}

// Close is a no-op; files are closed after every call.
func (js *JSONStore) Close() error {
	return nil
}
