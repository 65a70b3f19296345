package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

const profileColumns = `id, telegram_id, username, full_name, phone, email,
	enrolled, blocked, off_topic_count,
	onboarding_started_at, onboarding_completed_at, created_at, updated_at`

// ProfileStore persists parent accounts.
type ProfileStore struct {
	db DB
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.TelegramID, &p.Username, &p.FullName, &p.Phone, &p.Email,
		&p.Enrolled, &p.Blocked, &p.OffTopicCount,
		&p.OnboardingStartedAt, &p.OnboardingCompletedAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan profile: %w", err)
	}
	return &p, nil
}

// GetOrCreate returns the profile for a Telegram user, creating it on first
// contact. The username is refreshed on every call.
func (s *ProfileStore) GetOrCreate(ctx context.Context, telegramID int64, username string) (*Profile, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO profiles (id, telegram_id, username)
		VALUES ($1, $2, $3)
		ON CONFLICT (telegram_id)
		DO UPDATE SET username = EXCLUDED.username, updated_at = now()
		RETURNING `+profileColumns,
		uuid.New(), telegramID, username)
	return scanProfile(row)
}

// ByID looks up a profile by its internal identifier.
func (s *ProfileStore) ByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	return scanProfile(row)
}

// ByTelegramID looks up an existing profile.
func (s *ProfileStore) ByTelegramID(ctx context.Context, telegramID int64) (*Profile, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE telegram_id = $1`, telegramID)
	return scanProfile(row)
}

// IncrementOffTopic bumps the off-topic counter and returns the new value.
func (s *ProfileStore) IncrementOffTopic(ctx context.Context, telegramID int64) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		UPDATE profiles
		SET off_topic_count = off_topic_count + 1, updated_at = now()
		WHERE telegram_id = $1
		RETURNING off_topic_count`, telegramID).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("store: increment off-topic count: %w", err)
	}
	return count, nil
}

// Block stops the assistant from replying to this profile.
func (s *ProfileStore) Block(ctx context.Context, telegramID int64) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE profiles SET blocked = TRUE, updated_at = now() WHERE telegram_id = $1`, telegramID)
	if err != nil {
		return fmt.Errorf("store: block profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Unblock lifts a block and resets the off-topic counter to zero.
func (s *ProfileStore) Unblock(ctx context.Context, telegramID int64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE profiles
		SET blocked = FALSE, off_topic_count = 0, updated_at = now()
		WHERE telegram_id = $1`, telegramID)
	if err != nil {
		return fmt.Errorf("store: unblock profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkOnboardingStarted stamps the start of the questionnaire once.
func (s *ProfileStore) MarkOnboardingStarted(ctx context.Context, telegramID int64) error {
	_, err := s.db.Exec(ctx, `
		UPDATE profiles
		SET onboarding_started_at = COALESCE(onboarding_started_at, now()), updated_at = now()
		WHERE telegram_id = $1`, telegramID)
	if err != nil {
		return fmt.Errorf("store: mark onboarding started: %w", err)
	}
	return nil
}

// OnboardingResult is the validated outcome of the questionnaire, committed
// atomically: the dependent row and the profile contact fields land together
// or not at all.
type OnboardingResult struct {
	ParentName string
	Phone      string
	Email      string
	ChildName  string
	ChildAge   int
	Interests  string
	CourseName string
}

// CompleteOnboarding commits the questionnaire result in one transaction and
// returns the created dependent.
func (s *ProfileStore) CompleteOnboarding(ctx context.Context, telegramID int64, res OnboardingResult) (*Dependent, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: begin onboarding tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var profileID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE profiles
		SET full_name = $2, phone = $3, email = $4,
		    onboarding_completed_at = now(), updated_at = now()
		WHERE telegram_id = $1
		RETURNING id`,
		telegramID, res.ParentName, res.Phone, res.Email).Scan(&profileID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: complete onboarding profile update: %w", err)
	}

	dep := &Dependent{
		ID:         uuid.New(),
		ProfileID:  profileID,
		Name:       res.ChildName,
		Age:        res.ChildAge,
		Interests:  res.Interests,
		CourseName: res.CourseName,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO dependents (id, profile_id, name, age, interests, course_name)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		dep.ID, dep.ProfileID, dep.Name, dep.Age, dep.Interests, dep.CourseName).Scan(&dep.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: complete onboarding dependent insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("store: commit onboarding tx: %w", err)
	}
	return dep, nil
}

// CountEnrolled returns the number of enrolled families, used to decide
// whether the early-bird promo is still active.
func (s *ProfileStore) CountEnrolled(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM profiles WHERE enrolled = TRUE`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count enrolled: %w", err)
	}
	return n, nil
}
