package conversation

// Button is one inline keyboard button; Data is the callback payload.
type Button struct {
	Text string
	Data string
}

// Reply is one outgoing message. The transport layer decides how to render
// the keyboard.
type Reply struct {
	Text    string
	Buttons [][]Button
}

func textReply(text string) Reply {
	return Reply{Text: text}
}

func row(buttons ...Button) []Button {
	return buttons
}

// Callback payloads understood by the handler. Slot and event selections
// carry a suffix after the prefix.
const (
	CallbackSlotPrefix       = "slot_"
	CallbackReschedulePrefix = "reschedule_"
	CallbackCancelPrefix     = "cancel_event_"
	CallbackContactPrefix    = "contact:"

	CallbackConfirmBooking  = "confirm_booking"
	CallbackCancelBooking   = "cancel_booking"
	CallbackConfirmCancel   = "confirm_cancel"
	CallbackKeepBooking     = "cancel_cancel"
	CallbackRefreshSlots    = "refresh_slots"
	CallbackBackToMenu      = "back_to_menu"
	CallbackRequestManager  = "request_manager"
	CallbackWaitlistJoin    = "waitlist:join"
	CallbackWaitlistCancel  = "waitlist:cancel"
	CallbackContactPhone    = "contact:phone"
	CallbackContactEmail    = "contact:email"
	CallbackContactTelegram = "contact:telegram"

	CallbackMenuBook       = "menu_book"
	CallbackMenuMyBooking  = "menu_my_booking"
	CallbackMenuReschedule = "menu_reschedule"
	CallbackMenuCancel     = "menu_cancel"
)

// MainMenu is the persistent inline menu shown on /start.
func MainMenu() [][]Button {
	return [][]Button{
		row(
			Button{Text: "📅 Записаться", Data: CallbackMenuBook},
			Button{Text: "📋 Мои записи", Data: CallbackMenuMyBooking},
		),
		row(
			Button{Text: "🔄 Перенести", Data: CallbackMenuReschedule},
			Button{Text: "❌ Отменить", Data: CallbackMenuCancel},
		),
	}
}

// Intent tags that trigger flows rather than scripted replies. The tags match
// keys in the keyword configuration.
const (
	IntentEnroll       = "enroll_request"
	IntentReschedule   = "reschedule_request"
	IntentCancel       = "cancel_request"
	IntentCheckBooking = "check_booking"
	IntentCallManager  = "call_manager"
)
