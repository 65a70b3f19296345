package store

import (
	"time"

	"github.com/google/uuid"
)

// LessonStatus is the lifecycle state of a trial lesson.
type LessonStatus string

const (
	LessonPlanned   LessonStatus = "planned"
	LessonCompleted LessonStatus = "completed"
	LessonCancelled LessonStatus = "cancelled"
	LessonNoShow    LessonStatus = "no_show"
)

// ReminderKind selects which sent-flag a reminder sweep updates.
type ReminderKind string

const (
	Reminder24h   ReminderKind = "reminder_24h"
	Reminder1h    ReminderKind = "reminder_1h"
	Reminder10min ReminderKind = "reminder_10min"
)

// Profile is a parent account keyed by Telegram user ID.
type Profile struct {
	ID                    uuid.UUID
	TelegramID            int64
	Username              string
	FullName              string
	Phone                 string
	Email                 string
	Enrolled              bool
	Blocked               bool
	OffTopicCount         int
	OnboardingStartedAt   *time.Time
	OnboardingCompletedAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Onboarded reports whether the profile finished the questionnaire.
func (p *Profile) Onboarded() bool {
	return p.OnboardingCompletedAt != nil
}

// Dependent is a child attached to a parent profile.
type Dependent struct {
	ID         uuid.UUID
	ProfileID  uuid.UUID
	Name       string
	Age        int
	Interests  string
	CourseName string
	CreatedAt  time.Time
}

// Lesson is one trial lesson backed by a remote calendar event. Scheduled
// times are stored as UTC; conversion to the school's timezone happens at
// the presentation boundary.
type Lesson struct {
	ID          uuid.UUID
	ProfileID   uuid.UUID
	DependentID uuid.UUID
	EventRef    string
	ScheduledAt time.Time
	Status      LessonStatus
	CourseName  string
	Notes       string

	Reminder24hSent   bool
	Reminder1hSent    bool
	Reminder10minSent bool

	NotifiedNew        bool
	NotifiedReschedule bool
	NotifiedCancel     bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DialogTurn is one message of the persisted conversation history.
type DialogTurn struct {
	ID        int64
	ProfileID uuid.UUID
	Role      string
	Message   string
	FSMState  string
	Intent    string
	CreatedAt time.Time
}

// WaitlistEntry records interest from a parent the school cannot serve yet.
type WaitlistEntry struct {
	ID        uuid.UUID
	ProfileID uuid.UUID
	Contact   string
	AgeGroup  string
	DealRef   string
	CreatedAt time.Time
}

// FSMState is the persisted conversation position for one profile.
type FSMState struct {
	ProfileID uuid.UUID
	State     string
	Payload   []byte
	UpdatedAt time.Time
}
