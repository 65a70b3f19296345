package conversation

// Scripted reply texts. Kept in one place so the flow code stays readable.
const (
	textOnboardingIntro = "Отлично! Давайте познакомимся. Это займет всего минуту.\n\n" +
		"Как вас зовут?"
	textAskChildName     = "Приятно познакомиться, %s!\n\nКак зовут вашего ребенка?"
	textAskChildAge      = "Отлично! Сколько лет %s?"
	textAgeOutOfRange    = "Пожалуйста, введите корректный возраст (от 1 до 18 лет)."
	textAgeNotNumeric    = "Пожалуйста, введите возраст числом (например, 10)."
	textAskInterests     = "Чем интересуется ваш ребенок? (например: игры, программирование, роботы)"
	textAskContactMethod = "Как с вами лучше связаться?"
	textAskPhone         = "Введите ваш номер телефона:"
	textAskEmail         = "Введите ваш email:"
	textOnboardingDone   = "Отлично, %s! Мы сохранили ваши данные.\n\n" +
		"Ваш ребенок: %s, %d лет\n" +
		"Рекомендуемый курс: %s\n\n" +
		"Теперь вы можете записаться на пробное занятие!"

	textSlotList = "📅 Выберите удобное время для пробного занятия:\n\n" +
		"Найдено %d свободных слотов.\n" +
		"Нажмите на кнопку с нужным временем 👇"
	textSlotGone = "❌ Этот слот больше не доступен. Пожалуйста, выберите другое время."
	textConfirmBooking = "📝 Подтвердите бронирование:\n\n" +
		"📅 %s\n\n" +
		"Нажмите 'Подтвердить' для записи."
	textBookingInProgress = "⏳ Создаю бронирование..."
	textBookingSuccess    = "✅ Бронирование успешно создано!\n\n" +
		"📅 %s\n\n" +
		"До встречи на пробном занятии! 🎉"
	textBookingFailed = "❌ Не удалось создать бронирование.\n\n" +
		"Причина: %s\n\n" +
		"Возможно, это время уже занято. Попробуйте выбрать другое время."
	textBookingCancelled = "❌ Бронирование отменено.\n\n" +
		"Используйте кнопки меню для новых действий."
	textSessionExpired = "❌ Сессия истекла. Начните заново."

	textNoActiveBookings = "📭 У вас нет активных записей на пробное занятие.\n\n" +
		"Используйте кнопку 'Записаться' для записи."
	textMyBookings         = "📅 Ваши записи (%d):\n\n"
	textMyBookingsFooter   = "💡 Используйте кнопки 'Перенести' или 'Отменить' для управления записями."
	textNoEventsReschedule = "📭 У вас нет активных записей для переноса.\n\n" +
		"Используйте кнопку 'Записаться' для записи."
	textNoEventsCancel = "📭 У вас нет активных записей для отмены.\n\n" +
		"Используйте кнопку 'Записаться' для записи."
	textPickEventReschedule = "📅 Выберите запись для переноса:\n\n" +
		"Найдено %d активных записей."
	textPickEventCancel = "📅 Выберите запись для отмены:\n\n" +
		"Найдено %d активных записей."
	textRescheduleSlots = "📅 Перенос записи:\n" +
		"Текущее время: %s\n\n" +
		"Выберите новое время:\n" +
		"Найдено %d свободных слотов."
	textNoRescheduleSlots = "😔 К сожалению, нет доступного времени для переноса."
	textConfirmReschedule = "📝 Подтвердите перенос записи:\n\n" +
		"📅 %s\n\n" +
		"Нажмите 'Подтвердить перенос' для записи."
	textRescheduleSuccess = "✅ Запись успешно перенесена!\n\n" +
		"📅 %s\n\n" +
		"До встречи на пробном занятии! 🎉"
	textConfirmCancel = "⚠️ Вы уверены, что хотите отменить запись?\n\n" +
		"📅 %s\n\n" +
		"После отмены запись будет удалена из календаря."
	textCancelSuccess = "✅ Запись успешно отменена!\n\n" +
		"📅 %s\n\n" +
		"Запись удалена из календаря."
	textCancelFailed = "❌ Не удалось отменить запись.\n\nПопробуйте снова."
	textEventGone    = "❌ Запись не найдена. Попробуйте снова."

	textWaitlistAskContact = "Отлично! Пожалуйста, оставьте ваш номер телефона или email, " +
		"и мы сообщим о запуске курса."
	textWaitlistDone     = "Спасибо! Мы сохранили ваши данные и обязательно сообщим вам о старте курса. 🎉"
	textWaitlistDeclined = "Понял вас. Если передумаете, всегда на связи! 😊"
	textWaitlistOffer    = "😔 К сожалению, свободного времени сейчас нет. Хотите, мы сообщим вам, когда появятся места?"

	textManagerCalled = "Я передал ваш запрос нашему менеджеру. Он скоро с вами свяжется в Telegram! " +
		"Не переживайте, мы обо всем позаботимся."
	textHandoffOffer = "Возможно, ваш вопрос лучше задать живому менеджеру? Я могу сразу передать ему наш диалог."
	textGenericError = "❌ Произошла ошибка. Попробуйте позже."
	textFallback     = "Извините, мне нужно немного времени, чтобы разобраться с вашим вопросом. " +
		"Я передал его нашему менеджеру, он скоро ответит!"
	textBackToMenu = "👋 Главное меню\n\nВыберите действие из меню ниже 👇"

	textWelcomeNew = "👋 Здравствуйте! Я — ваш персональный менеджер в школе программирования.\n\n" +
		"Я здесь, чтобы помочь вам выбрать идеальный курс для вашего ребенка и записать его на бесплатный пробный урок.\n\n" +
		"Чтобы начать, давайте познакомимся?"
	textWelcomeBack = "Рад вас снова видеть, %s! Чем могу сегодня помочь?"
)

// Admin notification for a fresh booking.
const textAdminNewBooking = "📝 Новое бронирование:\n\n" +
	"📅 %s\n" +
	"👤 %s\n" +
	"📱 @%s\n" +
	"🆔 %d"
