// pkg/checkpoint/checkpoint.go
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"tcp-loadgen/internal/models"
)

const version = 1

var ErrMismatch = errors.New("checkpoint: run parameters do not match")

// State is the unsent remainder of an interrupted run. Params.ObjectCount
// holds the number of objects that were never started.
type State struct {
	Version int                  `json:"version"`
	RunID   string               `json:"run_id"`
	SavedAt time.Time            `json:"saved_at"`
	Sent    int64                `json:"sent"`
	Params  models.RunParameters `json:"params"`
}

// SaveState marshals the remainder to a JSON file. The file is written next
// to its final name and renamed into place.
func SaveState(state State, filePath string) error {
	state.Version = version
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filePath)
}

// LoadState unmarshals a remainder from a JSON file.
func LoadState(filePath string) (State, error) {
	var state State
	data, err := os.ReadFile(filePath)
	if err != nil {
		return state, err
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("checkpoint: decode %s: %w", filePath, err)
	}
	if state.Version != version {
		return state, fmt.Errorf("checkpoint: unsupported version %d", state.Version)
	}
	return state, nil
}

// Apply returns params with the object count replaced by the saved
// remainder. Target and payload size must be the ones the checkpoint was
// taken with; the concurrency limit may differ.
func (s State) Apply(params models.RunParameters) (models.RunParameters, error) {
	if s.Params.Target != params.Target {
		return params, fmt.Errorf("%w: target %s, checkpoint has %s", ErrMismatch, params.Target, s.Params.Target)
	}
	if s.Params.PayloadSize != params.PayloadSize {
		return params, fmt.Errorf("%w: num_bytes %d, checkpoint has %d", ErrMismatch, params.PayloadSize, s.Params.PayloadSize)
	}
	params.ObjectCount = s.Params.ObjectCount
	return params, nil
}
