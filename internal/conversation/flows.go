package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeclass-ai/schoolbot/internal/booking"
	"github.com/codeclass-ai/schoolbot/internal/schedule"
	"github.com/codeclass-ai/schoolbot/internal/store"
)

func (h *Handler) handleCallback(ctx context.Context, profile *store.Profile, state string, payload Payload, in Incoming) ([]Reply, error) {
	data := in.Callback
	switch {
	case data == CallbackBackToMenu, data == CallbackKeepBooking:
		h.clearState(ctx, profile.ID)
		return []Reply{textReply(textBackToMenu)}, nil
	case data == CallbackRefreshSlots:
		return h.showSlots(ctx, profile, payload)
	case data == CallbackMenuBook:
		return h.startEnrollment(ctx, profile)
	case data == CallbackMenuMyBooking:
		return h.listBookings(ctx, profile)
	case data == CallbackMenuReschedule:
		return h.startReschedule(ctx, profile)
	case data == CallbackMenuCancel:
		return h.startCancellation(ctx, profile)
	case strings.HasPrefix(data, CallbackSlotPrefix):
		return h.selectSlot(ctx, profile, state, payload, strings.TrimPrefix(data, CallbackSlotPrefix))
	case data == CallbackConfirmBooking:
		return h.confirmBooking(ctx, profile, state, payload, in)
	case data == CallbackCancelBooking:
		h.clearState(ctx, profile.ID)
		return []Reply{textReply(textBookingCancelled)}, nil
	case strings.HasPrefix(data, CallbackReschedulePrefix):
		return h.selectEventToReschedule(ctx, profile, state, strings.TrimPrefix(data, CallbackReschedulePrefix))
	case strings.HasPrefix(data, CallbackCancelPrefix):
		return h.selectEventToCancel(ctx, profile, state, strings.TrimPrefix(data, CallbackCancelPrefix))
	case data == CallbackConfirmCancel:
		return h.confirmCancellation(ctx, profile, state, payload)
	case data == CallbackWaitlistJoin:
		if err := h.setState(ctx, profile.ID, StateAwaitingWaitlistContact, payload); err != nil {
			return nil, err
		}
		return []Reply{textReply(textWaitlistAskContact)}, nil
	case data == CallbackWaitlistCancel:
		h.clearState(ctx, profile.ID)
		return []Reply{textReply(textWaitlistDeclined)}, nil
	case strings.HasPrefix(data, CallbackContactPrefix):
		return h.chooseContactMethod(ctx, profile, state, payload, in)
	case data == CallbackRequestManager:
		return h.callManager(ctx, profile)
	}
	h.logger.Warn("unknown callback ignored", "data", data)
	return nil, nil
}

// startEnrollment gates the booking flow behind the questionnaire: families
// we know nothing about are onboarded first and land in slot selection
// right after.
func (h *Handler) startEnrollment(ctx context.Context, profile *store.Profile) ([]Reply, error) {
	if !profile.Onboarded() {
		if err := h.d.Profiles.MarkOnboardingStarted(ctx, profile.TelegramID); err != nil {
			h.logger.Warn("mark onboarding started failed", "error", err)
		}
		if err := h.setState(ctx, profile.ID, StateEnteringParentName, Payload{ResumeBooking: true}); err != nil {
			return nil, err
		}
		return []Reply{textReply(textOnboardingIntro)}, nil
	}
	return h.showSlots(ctx, profile, Payload{})
}

func (h *Handler) showSlots(ctx context.Context, profile *store.Profile, payload Payload) ([]Reply, error) {
	slots, err := h.d.Slots.FreeSlots(ctx, h.now())
	if err != nil {
		h.logger.Error("free slot lookup failed", "error", err)
		h.clearState(ctx, profile.ID)
		return []Reply{textReply(textGenericError)}, nil
	}

	if len(slots) == 0 {
		h.clearState(ctx, profile.ID)
		if payload.SupersedeEventRef != "" {
			return []Reply{textReply(textNoRescheduleSlots)}, nil
		}
		return []Reply{{
			Text: textWaitlistOffer,
			Buttons: [][]Button{
				row(Button{Text: "🔔 Сообщить о запуске", Data: CallbackWaitlistJoin}),
				row(Button{Text: "❌ Нет, спасибо", Data: CallbackWaitlistCancel}),
			},
		}}, nil
	}

	state := StateSelectingSlot
	text := fmt.Sprintf(textSlotList, len(slots))
	if payload.SupersedeEventRef != "" {
		state = StateRescheduling
		text = fmt.Sprintf(textRescheduleSlots, payload.EventLabel, len(slots))
	}
	if err := h.setState(ctx, profile.ID, state, payload); err != nil {
		return nil, err
	}
	return []Reply{{Text: text, Buttons: h.slotButtons(slots)}}, nil
}

func (h *Handler) slotButtons(slots []schedule.Slot) [][]Button {
	now := h.now()
	if len(slots) > maxSlotButtons {
		slots = slots[:maxSlotButtons]
	}
	buttons := make([][]Button, 0, len(slots)+1)
	for _, s := range slots {
		buttons = append(buttons, row(Button{Text: s.Label(now), Data: CallbackSlotPrefix + s.Key()}))
	}
	return append(buttons, row(Button{Text: "◀️ Назад в меню", Data: CallbackBackToMenu}))
}

// selectSlot re-verifies the chosen slot against a fresh availability list
// before asking for confirmation. Slots can disappear between the keyboard
// being shown and the tap.
func (h *Handler) selectSlot(ctx context.Context, profile *store.Profile, state string, payload Payload, key string) ([]Reply, error) {
	if state != StateSelectingSlot && state != StateRescheduling {
		h.clearState(ctx, profile.ID)
		return []Reply{textReply(textSessionExpired)}, nil
	}

	slots, err := h.d.Slots.FreeSlots(ctx, h.now())
	if err != nil {
		h.logger.Error("free slot lookup failed", "error", err)
		h.clearState(ctx, profile.ID)
		return []Reply{textReply(textGenericError)}, nil
	}

	var selected *schedule.Slot
	for i := range slots {
		if slots[i].Key() == key {
			selected = &slots[i]
			break
		}
	}
	if selected == nil {
		h.clearState(ctx, profile.ID)
		return []Reply{textReply(textSlotGone)}, nil
	}

	payload.SlotKey = key
	if err := h.setState(ctx, profile.ID, StateConfirming, payload); err != nil {
		return nil, err
	}

	label := selected.Label(h.now())
	text := fmt.Sprintf(textConfirmBooking, label)
	confirmLabel := "✅ Подтвердить"
	if payload.SupersedeEventRef != "" {
		text = fmt.Sprintf(textConfirmReschedule, label)
		confirmLabel = "✅ Подтвердить перенос"
	}
	return []Reply{{
		Text: text,
		Buttons: [][]Button{row(
			Button{Text: confirmLabel, Data: CallbackConfirmBooking},
			Button{Text: "❌ Отмена", Data: CallbackCancelBooking},
		)},
	}}, nil
}

func (h *Handler) confirmBooking(ctx context.Context, profile *store.Profile, state string, payload Payload, in Incoming) ([]Reply, error) {
	if state != StateConfirming || payload.SlotKey == "" {
		h.clearState(ctx, profile.ID)
		return []Reply{textReply(textSessionExpired)}, nil
	}
	slot, err := schedule.ParseSlotKey(payload.SlotKey, h.d.SlotDuration)
	if err != nil {
		h.clearState(ctx, profile.ID)
		return []Reply{textReply(textSessionExpired)}, nil
	}

	req := booking.Request{
		Slot:              slot,
		Profile:           profile,
		SupersedeEventRef: payload.SupersedeEventRef,
	}
	if deps, err := h.d.Dependents.ByProfile(ctx, profile.ID); err == nil && len(deps) > 0 {
		req.Dependent = &deps[0]
		req.CourseName = deps[0].CourseName
	}

	kind := "book"
	if payload.SupersedeEventRef != "" {
		kind = "reschedule"
	}

	res, err := h.d.Booker.Book(ctx, req)
	h.clearState(ctx, profile.ID)
	if err != nil {
		h.d.Metrics.ObserveBooking(kind, "error")
		h.logger.Error("booking failed", "error", err)
		return []Reply{textReply(textGenericError)}, nil
	}
	if !res.Success {
		h.d.Metrics.ObserveBooking(kind, "conflict")
		return []Reply{textReply(fmt.Sprintf(textBookingFailed, res.Reason))}, nil
	}
	h.d.Metrics.ObserveBooking(kind, "success")

	label := slot.Label(h.now())
	name := profile.FullName
	if name == "" {
		name = in.FirstName
	}
	h.notifyAdmins(ctx, fmt.Sprintf(textAdminNewBooking, label, orUnknown(name), orUnknown(profile.Username), profile.TelegramID))

	if payload.SupersedeEventRef != "" {
		return []Reply{textReply(fmt.Sprintf(textRescheduleSuccess, label))}, nil
	}
	return []Reply{textReply(fmt.Sprintf(textBookingSuccess, label))}, nil
}

func (h *Handler) startReschedule(ctx context.Context, profile *store.Profile) ([]Reply, error) {
	events, err := h.userEvents(ctx, profile)
	if err != nil {
		return []Reply{textReply(textGenericError)}, nil
	}
	if len(events) == 0 {
		return []Reply{textReply(textNoEventsReschedule)}, nil
	}
	if err := h.setState(ctx, profile.ID, StateSelectingEventToReschedule, Payload{}); err != nil {
		return nil, err
	}
	return []Reply{{
		Text:    fmt.Sprintf(textPickEventReschedule, len(events)),
		Buttons: h.eventButtons(events, CallbackReschedulePrefix),
	}}, nil
}

// selectEventToReschedule also accepts taps from idle: reminder messages
// carry these buttons outside of any flow.
func (h *Handler) selectEventToReschedule(ctx context.Context, profile *store.Profile, state, ref string) ([]Reply, error) {
	if state != StateSelectingEventToReschedule && state != StateIdle {
		h.clearState(ctx, profile.ID)
		return []Reply{textReply(textSessionExpired)}, nil
	}
	event, ok, err := h.findEvent(ctx, profile, ref)
	if err != nil {
		return []Reply{textReply(textGenericError)}, nil
	}
	if !ok {
		h.clearState(ctx, profile.ID)
		return []Reply{textReply(textEventGone)}, nil
	}
	return h.showSlots(ctx, profile, Payload{
		SupersedeEventRef: ref,
		EventLabel:        h.eventLabel(event),
	})
}

func (h *Handler) startCancellation(ctx context.Context, profile *store.Profile) ([]Reply, error) {
	events, err := h.userEvents(ctx, profile)
	if err != nil {
		return []Reply{textReply(textGenericError)}, nil
	}
	if len(events) == 0 {
		return []Reply{textReply(textNoEventsCancel)}, nil
	}
	if err := h.setState(ctx, profile.ID, StateSelectingEventToCancel, Payload{}); err != nil {
		return nil, err
	}
	return []Reply{{
		Text:    fmt.Sprintf(textPickEventCancel, len(events)),
		Buttons: h.eventButtons(events, CallbackCancelPrefix),
	}}, nil
}

func (h *Handler) selectEventToCancel(ctx context.Context, profile *store.Profile, state, ref string) ([]Reply, error) {
	if state != StateSelectingEventToCancel && state != StateIdle {
		h.clearState(ctx, profile.ID)
		return []Reply{textReply(textSessionExpired)}, nil
	}
	event, ok, err := h.findEvent(ctx, profile, ref)
	if err != nil {
		return []Reply{textReply(textGenericError)}, nil
	}
	if !ok {
		h.clearState(ctx, profile.ID)
		return []Reply{textReply(textEventGone)}, nil
	}

	label := h.eventLabel(event)
	payload := Payload{EventRef: ref, EventLabel: label}
	if err := h.setState(ctx, profile.ID, StateConfirmingCancel, payload); err != nil {
		return nil, err
	}
	return []Reply{{
		Text: fmt.Sprintf(textConfirmCancel, label),
		Buttons: [][]Button{row(
			Button{Text: "✅ Да, отменить", Data: CallbackConfirmCancel},
			Button{Text: "❌ Нет", Data: CallbackKeepBooking},
		)},
	}}, nil
}

func (h *Handler) confirmCancellation(ctx context.Context, profile *store.Profile, state string, payload Payload) ([]Reply, error) {
	if state != StateConfirmingCancel || payload.EventRef == "" {
		h.clearState(ctx, profile.ID)
		return []Reply{textReply(textSessionExpired)}, nil
	}
	h.clearState(ctx, profile.ID)

	if err := h.d.Booker.Cancel(ctx, payload.EventRef); err != nil {
		h.d.Metrics.ObserveBooking("cancel", "error")
		h.logger.Error("cancellation failed", "event_ref", payload.EventRef, "error", err)
		return []Reply{textReply(textCancelFailed)}, nil
	}
	h.d.Metrics.ObserveBooking("cancel", "success")
	return []Reply{textReply(fmt.Sprintf(textCancelSuccess, payload.EventLabel))}, nil
}

func (h *Handler) listBookings(ctx context.Context, profile *store.Profile) ([]Reply, error) {
	events, err := h.userEvents(ctx, profile)
	if err != nil {
		return []Reply{textReply(textGenericError)}, nil
	}
	if len(events) == 0 {
		return []Reply{textReply(textNoActiveBookings)}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, textMyBookings, len(events))
	for i, ev := range events {
		fmt.Fprintf(&b, "%d. %s\n\n", i+1, h.eventLabel(ev))
	}
	b.WriteString(textMyBookingsFooter)
	return []Reply{textReply(b.String())}, nil
}

func (h *Handler) handleWaitlistContact(ctx context.Context, profile *store.Profile, payload Payload, text string) ([]Reply, error) {
	contact := strings.TrimSpace(text)
	if contact == "" {
		return []Reply{textReply(textWaitlistAskContact)}, nil
	}

	ageGroup := AgeGroup(payload.Onboarding.ChildAge)
	if payload.Onboarding.ChildAge == 0 {
		if deps, err := h.d.Dependents.ByProfile(ctx, profile.ID); err == nil && len(deps) > 0 {
			ageGroup = AgeGroup(deps[0].Age)
		}
	}

	err := h.d.Waitlist.Add(ctx, &store.WaitlistEntry{
		ProfileID: profile.ID,
		Contact:   contact,
		AgeGroup:  ageGroup,
	})
	if err != nil {
		h.logger.Error("waitlist entry failed", "error", err)
		return []Reply{textReply(textGenericError)}, nil
	}
	h.clearState(ctx, profile.ID)
	return []Reply{textReply(textWaitlistDone)}, nil
}

func (h *Handler) userEvents(ctx context.Context, profile *store.Profile) ([]booking.Event, error) {
	events, err := h.d.Booker.UserEvents(ctx, profile, h.now())
	if err != nil {
		h.logger.Error("user event lookup failed", "error", err)
		return nil, err
	}
	return events, nil
}

func (h *Handler) findEvent(ctx context.Context, profile *store.Profile, ref string) (booking.Event, bool, error) {
	events, err := h.userEvents(ctx, profile)
	if err != nil {
		return booking.Event{}, false, err
	}
	for _, ev := range events {
		if ev.ID == ref {
			return ev, true, nil
		}
	}
	return booking.Event{}, false, nil
}

func (h *Handler) eventButtons(events []booking.Event, prefix string) [][]Button {
	buttons := make([][]Button, 0, len(events)+1)
	for _, ev := range events {
		buttons = append(buttons, row(Button{Text: h.eventLabel(ev), Data: prefix + ev.ID}))
	}
	return append(buttons, row(Button{Text: "◀️ Назад в меню", Data: CallbackBackToMenu}))
}

func (h *Handler) eventLabel(ev booking.Event) string {
	return schedule.Slot{Start: ev.Start, End: ev.End}.Label(h.now())
}

func orUnknown(s string) string {
	if s == "" {
		return "Не указано"
	}
	return s
}
