package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Env       string
	LogLevel  string
	LogFormat string
	OpsPort   string

	TelegramToken   string
	AdminChatIDs    []int64
	LongPollTimeout time.Duration

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	GeminiAPIKey         string
	GeminiModel          string
	GeminiEmbeddingModel string
	GeminiMaxTokens      int32

	CalendarEnabled       bool
	GoogleCredentialsFile string
	CalendarID            string

	SheetsEnabled bool
	SheetsID      string
	SheetsName    string

	Timezone        string
	WorkStartHour   int
	WorkEndHour     int
	SlotDuration    time.Duration
	HorizonDays     int
	BookingEventTag string

	KeywordsPath      string
	KnowledgePath     string
	SystemPromptPath  string
	SemanticThreshold float64
	TemplateThreshold float64

	OffTopicLimit int

	ReminderSweepSpec   string
	CompletionSweepSpec string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:       getEnv("ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		OpsPort:   getEnv("OPS_PORT", "8080"),

		TelegramToken:   getEnv("TELEGRAM_BOT_TOKEN", ""),
		AdminChatIDs:    parseChatIDs(getEnv("ADMIN_CHAT_IDS", "")),
		LongPollTimeout: getEnvAsDuration("TELEGRAM_POLL_TIMEOUT", 10*time.Second),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		GeminiModel:          getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiEmbeddingModel: getEnv("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
		GeminiMaxTokens:      int32(getEnvAsInt("GEMINI_MAX_TOKENS", 1024)),

		CalendarEnabled:       getEnvAsBool("GOOGLE_CALENDAR_ACTIVATE", false),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_PATH", "./google-credentials.json"),
		CalendarID:            getEnv("GOOGLE_CALENDAR_ID", ""),

		SheetsEnabled: getEnvAsBool("GOOGLE_SHEETS_ACTIVATE", false),
		SheetsID:      getEnv("GOOGLE_SHEETS_ID", ""),
		SheetsName:    getEnv("GOOGLE_SHEETS_NAME", "Записи"),

		Timezone:        getEnv("TIMEZONE", "Europe/Moscow"),
		WorkStartHour:   getEnvAsInt("START_HOUR", 9),
		WorkEndHour:     getEnvAsInt("END_HOUR", 18),
		SlotDuration:    getEnvAsDuration("SLOT_DURATION", 60*time.Minute),
		HorizonDays:     getEnvAsInt("HORIZON_DAYS", 7),
		BookingEventTag: getEnv("BOOKING_EVENT_TAG", "Пробное занятие"),

		KeywordsPath:      getEnv("KEYWORDS_PATH", "config/keywords.yaml"),
		KnowledgePath:     getEnv("KNOWLEDGE_PATH", "knowledge/documents"),
		SystemPromptPath:  getEnv("SYSTEM_PROMPT_PATH", "knowledge/system_prompt.txt"),
		SemanticThreshold: getEnvAsFloat("SEMANTIC_THRESHOLD", 0.75),
		TemplateThreshold: getEnvAsFloat("TEMPLATE_THRESHOLD", 0.9),

		OffTopicLimit: getEnvAsInt("OFF_TOPIC_LIMIT", 3),

		ReminderSweepSpec:   getEnv("REMINDER_SWEEP_SPEC", "@every 1m"),
		CompletionSweepSpec: getEnv("COMPLETION_SWEEP_SPEC", "@every 5m"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func parseChatIDs(raw string) []int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
