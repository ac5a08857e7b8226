package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/quantfold/flowsentry/internal/dedup"
)

// Load reads the seen state for a namespace. Namespaces that were never
// saved return a zero state.
func (s *Store) Load(namespace string) (dedup.SeenState, error) {
	var state dedup.SeenState
	var keys string
	err := s.db.QueryRow(`SELECT date, seen_keys FROM dedup_state WHERE namespace = ?`, namespace).
		Scan(&state.Date, &keys)
	if err == sql.ErrNoRows {
		return dedup.SeenState{}, nil
	}
	if err != nil {
		return dedup.SeenState{}, fmt.Errorf("failed to load dedup state: %w", err)
	}
	if err := json.Unmarshal([]byte(keys), &state.Seen); err != nil {
		return dedup.SeenState{}, fmt.Errorf("failed to decode dedup keys: %w", err)
	}
	return state, nil
}

// Save writes the seen state for a namespace, replacing any previous state.
func (s *Store) Save(namespace string, state dedup.SeenState) error {
	keys, err := json.Marshal(state.Seen)
	if err != nil {
		return fmt.Errorf("failed to encode dedup keys: %w", err)
	}
	if _, err := s.db.Exec(`
		INSERT OR REPLACE INTO dedup_state (namespace, date, seen_keys) VALUES (?, ?, ?)`,
		namespace, state.Date, string(keys),
	); err != nil {
		return fmt.Errorf("failed to save dedup state: %w", err)
	}
	return nil
}
