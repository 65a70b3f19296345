package metrics

import "github.com/prometheus/client_golang/prometheus"

// BotMetrics exposes counters for the assistant's main flows.
type BotMetrics struct {
	messagesTotal  *prometheus.CounterVec
	intentsTotal   *prometheus.CounterVec
	bookingsTotal  *prometheus.CounterVec
	remindersTotal *prometheus.CounterVec
	llmLatency     *prometheus.HistogramVec
}

func NewBotMetrics(reg prometheus.Registerer) *BotMetrics {
	m := &BotMetrics{
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schoolbot",
			Subsystem: "telegram",
			Name:      "messages_total",
			Help:      "Total inbound Telegram updates",
		}, []string{"kind"}),
		intentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schoolbot",
			Subsystem: "intent",
			Name:      "resolutions_total",
			Help:      "Intent resolutions by recognizer stage",
		}, []string{"stage", "intent"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schoolbot",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by outcome",
		}, []string{"kind", "outcome"}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schoolbot",
			Subsystem: "scheduler",
			Name:      "reminders_total",
			Help:      "Reminder sends by window and status",
		}, []string{"window", "status"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "schoolbot",
			Subsystem: "llm",
			Name:      "request_seconds",
			Help:      "Latency of model calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.messagesTotal, m.intentsTotal, m.bookingsTotal, m.remindersTotal, m.llmLatency)
	return m
}

func (m *BotMetrics) ObserveMessage(kind string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(kind).Inc()
}

func (m *BotMetrics) ObserveIntent(stage, intent string) {
	if m == nil {
		return
	}
	m.intentsTotal.WithLabelValues(stage, intent).Inc()
}

func (m *BotMetrics) ObserveBooking(kind, outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *BotMetrics) ObserveReminder(window, status string) {
	if m == nil {
		return
	}
	m.remindersTotal.WithLabelValues(window, status).Inc()
}

func (m *BotMetrics) ObserveLLMLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(operation).Observe(seconds)
}
