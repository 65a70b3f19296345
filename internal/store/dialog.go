package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// DialogStore is the append-only conversation history.
type DialogStore struct {
	db DB
}

// Append records one turn. FSM state and intent are optional annotations.
func (s *DialogStore) Append(ctx context.Context, turn DialogTurn) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO dialog_history (profile_id, role, message, fsm_state, intent)
		VALUES ($1, $2, $3, $4, $5)`,
		turn.ProfileID, turn.Role, turn.Message, turn.FSMState, turn.Intent)
	if err != nil {
		return fmt.Errorf("store: append dialog turn: %w", err)
	}
	return nil
}

// RecentTurns returns the newest turns in chronological order.
func (s *DialogStore) RecentTurns(ctx context.Context, profileID uuid.UUID, limit int) ([]DialogTurn, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, profile_id, role, message, fsm_state, intent, created_at
		FROM (
			SELECT id, profile_id, role, message, fsm_state, intent, created_at
			FROM dialog_history
			WHERE profile_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) latest
		ORDER BY created_at ASC, id ASC`, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent dialog turns: %w", err)
	}
	defer rows.Close()

	var out []DialogTurn
	for rows.Next() {
		var t DialogTurn
		if err := rows.Scan(&t.ID, &t.ProfileID, &t.Role, &t.Message, &t.FSMState, &t.Intent, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan dialog turn: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate dialog turns: %w", err)
	}
	return out, nil
}
