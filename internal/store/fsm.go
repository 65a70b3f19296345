package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// FSMStore persists per-profile conversation state so flows survive a
// process restart.
type FSMStore struct {
	db DB
}

// Get returns the stored state, or ErrNotFound when the profile is idle.
func (s *FSMStore) Get(ctx context.Context, profileID uuid.UUID) (*FSMState, error) {
	var st FSMState
	err := s.db.QueryRow(ctx, `
		SELECT profile_id, state, payload, updated_at
		FROM fsm_states WHERE profile_id = $1`, profileID).
		Scan(&st.ProfileID, &st.State, &st.Payload, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get fsm state: %w", err)
	}
	return &st, nil
}

// Set upserts the state and payload for a profile.
func (s *FSMStore) Set(ctx context.Context, profileID uuid.UUID, state string, payload []byte) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO fsm_states (profile_id, state, payload, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (profile_id)
		DO UPDATE SET state = EXCLUDED.state, payload = EXCLUDED.payload, updated_at = now()`,
		profileID, state, payload)
	if err != nil {
		return fmt.Errorf("store: set fsm state: %w", err)
	}
	return nil
}

// Clear drops the stored state, returning the profile to idle.
func (s *FSMStore) Clear(ctx context.Context, profileID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM fsm_states WHERE profile_id = $1`, profileID)
	if err != nil {
		return fmt.Errorf("store: clear fsm state: %w", err)
	}
	return nil
}
