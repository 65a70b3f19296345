package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/codeclass-ai/schoolbot/internal/store"
)

// handleOnboardingText advances the questionnaire one answer at a time. Every
// step persists the accumulated answers so a restart mid-flow loses nothing.
func (h *Handler) handleOnboardingText(ctx context.Context, profile *store.Profile, state string, payload Payload, in Incoming) ([]Reply, error) {
	answer := strings.TrimSpace(in.Text)
	if answer == "" {
		return nil, nil
	}

	switch state {
	case StateEnteringParentName:
		payload.Onboarding.ParentName = answer
		if err := h.setState(ctx, profile.ID, StateEnteringChildName, payload); err != nil {
			return nil, err
		}
		return []Reply{textReply(fmt.Sprintf(textAskChildName, answer))}, nil

	case StateEnteringChildName:
		payload.Onboarding.ChildName = answer
		if err := h.setState(ctx, profile.ID, StateEnteringChildAge, payload); err != nil {
			return nil, err
		}
		return []Reply{textReply(fmt.Sprintf(textAskChildAge, answer))}, nil

	case StateEnteringChildAge:
		age, err := strconv.Atoi(answer)
		if err != nil {
			return []Reply{textReply(textAgeNotNumeric)}, nil
		}
		if age < 1 || age > 18 {
			return []Reply{textReply(textAgeOutOfRange)}, nil
		}
		payload.Onboarding.ChildAge = age
		if err := h.setState(ctx, profile.ID, StateEnteringInterests, payload); err != nil {
			return nil, err
		}
		return []Reply{textReply(textAskInterests)}, nil

	case StateEnteringInterests:
		payload.Onboarding.Interests = answer
		if err := h.setState(ctx, profile.ID, StateChoosingContactMethod, payload); err != nil {
			return nil, err
		}
		return []Reply{{
			Text: textAskContactMethod,
			Buttons: [][]Button{row(
				Button{Text: "📱 Телефон", Data: CallbackContactPhone},
				Button{Text: "📧 Email", Data: CallbackContactEmail},
				Button{Text: "✈️ Telegram", Data: CallbackContactTelegram},
			)},
		}}, nil

	case StateEnteringPhone:
		payload.Onboarding.Phone = answer
		return h.finishOnboarding(ctx, profile, payload)

	case StateEnteringEmail:
		payload.Onboarding.Email = answer
		return h.finishOnboarding(ctx, profile, payload)
	}

	return nil, nil
}

func (h *Handler) chooseContactMethod(ctx context.Context, profile *store.Profile, state string, payload Payload, in Incoming) ([]Reply, error) {
	if state != StateChoosingContactMethod {
		h.clearState(ctx, profile.ID)
		return []Reply{textReply(textSessionExpired)}, nil
	}

	method := strings.TrimPrefix(in.Callback, CallbackContactPrefix)
	payload.Onboarding.ContactMethod = method

	switch method {
	case "phone":
		if err := h.setState(ctx, profile.ID, StateEnteringPhone, payload); err != nil {
			return nil, err
		}
		return []Reply{textReply(textAskPhone)}, nil
	case "email":
		if err := h.setState(ctx, profile.ID, StateEnteringEmail, payload); err != nil {
			return nil, err
		}
		return []Reply{textReply(textAskEmail)}, nil
	default:
		// Reaching out over Telegram needs nothing beyond the username we
		// already have.
		return h.finishOnboarding(ctx, profile, payload)
	}
}

func (h *Handler) finishOnboarding(ctx context.Context, profile *store.Profile, payload Payload) ([]Reply, error) {
	a := payload.Onboarding
	dependent, err := h.d.Profiles.CompleteOnboarding(ctx, profile.TelegramID, store.OnboardingResult{
		ParentName: a.ParentName,
		Phone:      a.Phone,
		Email:      a.Email,
		ChildName:  a.ChildName,
		ChildAge:   a.ChildAge,
		Interests:  a.Interests,
		CourseName: a.CourseName(),
	})
	if err != nil {
		h.logger.Error("onboarding completion failed", "telegram_id", profile.TelegramID, "error", err)
		return []Reply{textReply(textGenericError)}, nil
	}
	h.clearState(ctx, profile.ID)

	replies := []Reply{textReply(fmt.Sprintf(textOnboardingDone,
		a.ParentName, dependent.Name, dependent.Age, dependent.CourseName))}

	if payload.ResumeBooking {
		profile.FullName = a.ParentName
		more, err := h.showSlots(ctx, profile, Payload{})
		if err != nil {
			return replies, err
		}
		replies = append(replies, more...)
	}
	return replies, nil
}
