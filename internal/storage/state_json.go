package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"paper_trader/internal/core"
)

// JSONStateStore persists the processing cursor as a small JSON file.
type JSONStateStore struct {
	path string
}

// NewJSONStateStore creates a cursor store over path.
func NewJSONStateStore(path string) *JSONStateStore {
	return &JSONStateStore{path: path}
}

// LoadState returns the saved cursor, or an empty one when no file exists.
func (s *JSONStateStore) LoadState(ctx context.Context) (*core.CursorState, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &core.CursorState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state core.CursorState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return &state, nil
}

// SaveState writes the cursor atomically, truncating the dedup window first.
func (s *JSONStateStore) SaveState(ctx context.Context, state *core.CursorState) error {
	state.Truncate()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	data = append(data, '\n')

	return writeFileAtomic(s.path, data, 0o644)
}

func (s *JSONStateStore) Close() error { return nil }
