package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// WaitlistStore records families waiting for a suitable course.
type WaitlistStore struct {
	db DB
}

// Add inserts a waitlist entry.
func (s *WaitlistStore) Add(ctx context.Context, e *WaitlistEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO waitlist_entries (id, profile_id, contact, age_group, deal_ref)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		e.ID, e.ProfileID, e.Contact, e.AgeGroup, e.DealRef).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: add waitlist entry: %w", err)
	}
	return nil
}

// ByProfile lists a profile's waitlist entries, newest first.
func (s *WaitlistStore) ByProfile(ctx context.Context, profileID uuid.UUID) ([]WaitlistEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, profile_id, contact, age_group, deal_ref, created_at
		FROM waitlist_entries WHERE profile_id = $1 ORDER BY created_at DESC`, profileID)
	if err != nil {
		return nil, fmt.Errorf("store: waitlist by profile: %w", err)
	}
	defer rows.Close()

	var out []WaitlistEntry
	for rows.Next() {
		var e WaitlistEntry
		if err := rows.Scan(&e.ID, &e.ProfileID, &e.Contact, &e.AgeGroup, &e.DealRef, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan waitlist entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate waitlist entries: %w", err)
	}
	return out, nil
}
