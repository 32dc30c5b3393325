// Package store persists whole-state snapshots keyed by room code. The
// engine state is treated as an opaque structured value: it is encoded once
// and stored as a blob, so every backend round-trips it losslessly.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chiptally/internal/engine"
)

// ErrNotFound is returned when no snapshot exists for a room code.
var ErrNotFound = errors.New("snapshot not found")

// Store is the persistence boundary. Implementations must be safe for
// concurrent use; the session is the only writer per code, but spectators
// may load concurrently.
type Store interface {
	Save(ctx context.Context, code string, snapshot []byte) error
	Load(ctx context.Context, code string) ([]byte, error)
	Delete(ctx context.Context, code string) error
}

// EncodeState serializes a game state for storage or transmission.
func EncodeState(s *engine.GameState) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode game state: %w", err)
	}
	return data, nil
}

// DecodeState restores a game state from an encoded snapshot.
func DecodeState(data []byte) (*engine.GameState, error) {
	var s engine.GameState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode game state: %w", err)
	}
	return &s, nil
}
