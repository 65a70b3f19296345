package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const lessonColumns = `id, profile_id, dependent_id, event_ref, scheduled_at, status,
	course_name, notes,
	reminder_24h_sent, reminder_1h_sent, reminder_10min_sent,
	notified_new, notified_reschedule, notified_cancel,
	created_at, updated_at`

// LessonStore persists trial lessons.
type LessonStore struct {
	db DB
}

func scanLesson(row pgx.Row) (*Lesson, error) {
	var l Lesson
	err := row.Scan(&l.ID, &l.ProfileID, &l.DependentID, &l.EventRef, &l.ScheduledAt, &l.Status,
		&l.CourseName, &l.Notes,
		&l.Reminder24hSent, &l.Reminder1hSent, &l.Reminder10minSent,
		&l.NotifiedNew, &l.NotifiedReschedule, &l.NotifiedCancel,
		&l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan lesson: %w", err)
	}
	return &l, nil
}

func scanLessons(rows pgx.Rows) ([]Lesson, error) {
	var out []Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate lessons: %w", err)
	}
	return out, nil
}

// Create inserts a planned lesson bound to its calendar event.
func (s *LessonStore) Create(ctx context.Context, l *Lesson) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Status == "" {
		l.Status = LessonPlanned
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO lessons (id, profile_id, dependent_id, event_ref, scheduled_at, status, course_name, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		l.ID, l.ProfileID, l.DependentID, l.EventRef, l.ScheduledAt, l.Status, l.CourseName, l.Notes).
		Scan(&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: create lesson: %w", err)
	}
	return nil
}

// ByEventRef finds the lesson bound to a calendar event.
func (s *LessonStore) ByEventRef(ctx context.Context, eventRef string) (*Lesson, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+lessonColumns+` FROM lessons WHERE event_ref = $1`, eventRef)
	return scanLesson(row)
}

// PlannedByProfile lists a profile's upcoming planned lessons.
func (s *LessonStore) PlannedByProfile(ctx context.Context, profileID uuid.UUID) ([]Lesson, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+lessonColumns+` FROM lessons
		WHERE profile_id = $1 AND status = $2
		ORDER BY scheduled_at ASC`, profileID, LessonPlanned)
	if err != nil {
		return nil, fmt.Errorf("store: planned by profile: %w", err)
	}
	defer rows.Close()
	return scanLessons(rows)
}

// CancelByEventRef marks the lesson for an event as cancelled.
func (s *LessonStore) CancelByEventRef(ctx context.Context, eventRef string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE lessons SET status = $2, updated_at = now()
		WHERE event_ref = $1 AND status = $3`,
		eventRef, LessonCancelled, LessonPlanned)
	if err != nil {
		return fmt.Errorf("store: cancel lesson: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PlannedInWindow lists planned lessons scheduled inside [from, to) that
// have not yet received the given reminder.
func (s *LessonStore) PlannedInWindow(ctx context.Context, from, to time.Time, kind ReminderKind) ([]Lesson, error) {
	flag, err := reminderColumn(kind)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+lessonColumns+` FROM lessons
		WHERE status = $1 AND scheduled_at >= $2 AND scheduled_at < $3 AND `+flag+` = FALSE
		ORDER BY scheduled_at ASC`, LessonPlanned, from, to)
	if err != nil {
		return nil, fmt.Errorf("store: planned in window: %w", err)
	}
	defer rows.Close()
	return scanLessons(rows)
}

// MarkReminderSent sets one reminder flag; repeated calls are no-ops so
// sweeps stay idempotent.
func (s *LessonStore) MarkReminderSent(ctx context.Context, id uuid.UUID, kind ReminderKind) error {
	flag, err := reminderColumn(kind)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		`UPDATE lessons SET `+flag+` = TRUE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: mark reminder sent: %w", err)
	}
	return nil
}

// reminderColumn maps a reminder kind to its flag column. The kind is an
// enum under our control, never user input.
func reminderColumn(kind ReminderKind) (string, error) {
	switch kind {
	case Reminder24h:
		return "reminder_24h_sent", nil
	case Reminder1h:
		return "reminder_1h_sent", nil
	case Reminder10min:
		return "reminder_10min_sent", nil
	}
	return "", fmt.Errorf("store: unknown reminder kind %q", kind)
}

// CompleteExpired flips planned lessons older than the cutoff to completed
// and returns how many rows changed.
func (s *LessonStore) CompleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE lessons SET status = $1, updated_at = now()
		WHERE status = $2 AND scheduled_at < $3`,
		LessonCompleted, LessonPlanned, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: complete expired lessons: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DependentStore persists children.
type DependentStore struct {
	db DB
}

// ByID looks up one child.
func (s *DependentStore) ByID(ctx context.Context, id uuid.UUID) (*Dependent, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, profile_id, name, age, interests, course_name, created_at
		FROM dependents WHERE id = $1`, id)
	var d Dependent
	err := row.Scan(&d.ID, &d.ProfileID, &d.Name, &d.Age, &d.Interests, &d.CourseName, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan dependent: %w", err)
	}
	return &d, nil
}

// ByProfile lists a profile's children oldest first.
func (s *DependentStore) ByProfile(ctx context.Context, profileID uuid.UUID) ([]Dependent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, profile_id, name, age, interests, course_name, created_at
		FROM dependents WHERE profile_id = $1 ORDER BY created_at ASC`, profileID)
	if err != nil {
		return nil, fmt.Errorf("store: dependents by profile: %w", err)
	}
	defer rows.Close()

	var out []Dependent
	for rows.Next() {
		var d Dependent
		if err := rows.Scan(&d.ID, &d.ProfileID, &d.Name, &d.Age, &d.Interests, &d.CourseName, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan dependent: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate dependents: %w", err)
	}
	return out, nil
}
