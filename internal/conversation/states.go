package conversation

import (
	"encoding/json"
	"fmt"
)

// Conversation states persisted between turns. Idle is represented by the
// absence of a stored state.
const (
	StateIdle = "idle"

	// booking
	StateSelectingSlot = "selecting_slot"
	StateConfirming    = "confirming"

	// reschedule
	StateSelectingEventToReschedule = "selecting_event_to_reschedule"
	StateRescheduling               = "rescheduling"

	// cancel
	StateSelectingEventToCancel = "selecting_event_to_cancel"
	StateConfirmingCancel       = "confirming_cancel"

	// onboarding, strictly linear
	StateEnteringParentName    = "entering_parent_name"
	StateEnteringChildName     = "entering_child_name"
	StateEnteringChildAge      = "entering_child_age"
	StateEnteringInterests     = "entering_interests"
	StateChoosingContactMethod = "choose_contact_method"
	StateEnteringPhone         = "entering_phone"
	StateEnteringEmail         = "entering_email"

	// waitlist
	StateAwaitingWaitlistContact = "awaiting_waitlist_contact"
)

// Course names assigned by the child's age.
const (
	CourseJunior  = "Основы программирования (младшая группа)"
	CourseSenior  = "Продвинутое программирование (старшая группа)"
	CourseGeneric = "Программирование"
)

// OnboardingAnswers is filled step by step as the questionnaire advances and
// converted to the persisted shape only on the final atomic commit.
type OnboardingAnswers struct {
	ParentName    string `json:"parent_name,omitempty"`
	ChildName     string `json:"child_name,omitempty"`
	ChildAge      int    `json:"child_age,omitempty"`
	Interests     string `json:"interests,omitempty"`
	ContactMethod string `json:"contact_method,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
}

// CourseName recommends a course for the collected age.
func (a OnboardingAnswers) CourseName() string {
	return CourseForAge(a.ChildAge)
}

// CourseForAge maps an age to the recommended course.
func CourseForAge(age int) string {
	switch {
	case age >= 9 && age <= 13:
		return CourseJunior
	case age >= 14 && age <= 17:
		return CourseSenior
	}
	return CourseGeneric
}

// AgeGroup buckets an age for waitlist entries.
func AgeGroup(age int) string {
	switch {
	case age > 0 && age < 9:
		return "до 9 лет"
	case age >= 9 && age <= 13:
		return "9-13 лет"
	case age >= 14 && age <= 17:
		return "14-17 лет"
	}
	return "не указан"
}

// Payload is the JSON document stored next to the state.
type Payload struct {
	// SlotKey is the slot awaiting confirmation.
	SlotKey string `json:"slot_key,omitempty"`
	// SupersedeEventRef is set while rescheduling: the event to cancel once
	// the replacement is booked.
	SupersedeEventRef string `json:"supersede_event_ref,omitempty"`
	// EventRef is the event pending cancellation confirmation.
	EventRef string `json:"event_ref,omitempty"`
	// EventLabel is the human-readable time of the event being changed.
	EventLabel string `json:"event_label,omitempty"`
	// ResumeBooking continues into slot selection after onboarding.
	ResumeBooking bool `json:"resume_booking,omitempty"`

	Onboarding OnboardingAnswers `json:"onboarding,omitempty"`
}

func (p Payload) Marshal() ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("conversation: marshal payload: %w", err)
	}
	return raw, nil
}

func UnmarshalPayload(raw []byte) (Payload, error) {
	var p Payload
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("conversation: unmarshal payload: %w", err)
	}
	return p, nil
}
