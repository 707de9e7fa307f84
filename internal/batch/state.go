package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/raphaelgruber/docrelay/internal/models"
)

// LoadState reads the run state. The boolean is false when the file does not exist.
func LoadState(path string) (*models.RunState, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read state file: %w", err)
	}

	state := &models.RunState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, true, fmt.Errorf("parse state file %s: %w", path, err)
	}
	if state.Processed == nil {
		state.Processed = []string{}
	}
	if state.Pending == nil {
		state.Pending = []string{}
	}
	if state.Error == nil {
		state.Error = []models.ItemError{}
	}
	return state, true, nil
}

// SaveState writes the run state atomically, creating parent directories.
func SaveState(path string, state *models.RunState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".run_state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}
