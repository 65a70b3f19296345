// Command bot runs the Telegram scheduling assistant: long-polling
// transport, conversation handler, slot engine, reminder scheduler and the
// ops HTTP endpoint, all in one process.
package main

import (
	"context"
	"crypto/tls"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/codeclass-ai/schoolbot/internal/booking"
	"github.com/codeclass-ai/schoolbot/internal/calendar"
	"github.com/codeclass-ai/schoolbot/internal/config"
	"github.com/codeclass-ai/schoolbot/internal/conversation"
	"github.com/codeclass-ai/schoolbot/internal/intent"
	"github.com/codeclass-ai/schoolbot/internal/llm"
	"github.com/codeclass-ai/schoolbot/internal/moderation"
	"github.com/codeclass-ai/schoolbot/internal/observability/metrics"
	"github.com/codeclass-ai/schoolbot/internal/observability/ops"
	"github.com/codeclass-ai/schoolbot/internal/rag"
	"github.com/codeclass-ai/schoolbot/internal/schedule"
	"github.com/codeclass-ai/schoolbot/internal/scheduler"
	"github.com/codeclass-ai/schoolbot/internal/sheets"
	"github.com/codeclass-ai/schoolbot/internal/store"
	"github.com/codeclass-ai/schoolbot/internal/telegram"
	"github.com/codeclass-ai/schoolbot/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	if cfg.TelegramToken == "" {
		logger.Error("TELEGRAM_BOT_TOKEN is required")
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	st := store.New(pool)

	var cache *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		cache = redis.NewClient(opts)
		if err := cache.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, history cache disabled", "error", err)
			cache = nil
		}
	}

	gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiEmbeddingModel, logger)
	if err != nil {
		logger.Error("gemini client init failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = gemini.Close() }()
	model := llm.NewBreakerClient(gemini, "gemini", logger)

	intentCfg, err := intent.LoadConfig(cfg.KeywordsPath)
	if err != nil {
		logger.Error("intent config load failed", "path", cfg.KeywordsPath, "error", err)
		os.Exit(1)
	}
	recognizer, err := intent.NewRecognizer(ctx, intentCfg, gemini, float32(cfg.SemanticThreshold), logger)
	if err != nil {
		logger.Error("intent recognizer init failed", "error", err)
		os.Exit(1)
	}
	relevance := intent.NewRelevanceClassifier(model, logger)
	corrector := llm.NewCorrector(model, logger)

	ragStore := rag.NewStore(gemini)
	docs, err := rag.LoadDirectory(cfg.KnowledgePath)
	if err != nil {
		logger.Error("knowledge base load failed", "path", cfg.KnowledgePath, "error", err)
		os.Exit(1)
	}
	if err := ragStore.AddDocuments(ctx, docs); err != nil {
		logger.Error("knowledge base indexing failed", "error", err)
		os.Exit(1)
	}
	logger.Info("knowledge base indexed", "chunks", ragStore.Len())
	responder := rag.NewResponder(model, ragStore, rag.LoadSystemPrompt(cfg.SystemPromptPath, logger), logger)

	var (
		freeBusy   schedule.FreeBusyProvider
		calSurface booking.Calendar
	)
	if cfg.CalendarEnabled {
		gc, err := calendar.New(ctx, cfg.GoogleCredentialsFile, cfg.CalendarID, logger)
		if err != nil {
			logger.Error("google calendar init failed", "error", err)
			os.Exit(1)
		}
		freeBusy, calSurface = gc, gc
	} else {
		logger.Warn("google calendar disabled, using in-process calendar")
		mem := calendar.NewMemory()
		freeBusy, calSurface = mem, mem
	}

	var ledger booking.Ledger
	if cfg.SheetsEnabled {
		l, err := sheets.NewLedger(ctx, cfg.GoogleCredentialsFile, cfg.SheetsID, cfg.SheetsName, logger)
		if err != nil {
			logger.Error("google sheets init failed", "error", err)
			os.Exit(1)
		}
		ledger = l
	}

	engine := schedule.NewEngine(freeBusy, schedule.Config{
		WorkStartHour: cfg.WorkStartHour,
		WorkEndHour:   cfg.WorkEndHour,
		SlotDuration:  cfg.SlotDuration,
		HorizonDays:   cfg.HorizonDays,
	}, logger)
	coordinator := booking.NewCoordinator(calSurface, ledger, st.Lessons, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	botMetrics := metrics.NewBotMetrics(reg)

	tgCfg := telegram.Config{
		Token:        cfg.TelegramToken,
		AdminChatIDs: cfg.AdminChatIDs,
		PollTimeout:  cfg.LongPollTimeout,
	}
	session, err := telegram.Connect(tgCfg)
	if err != nil {
		logger.Error("telegram connection failed", "error", err)
		os.Exit(1)
	}
	notifier := telegram.NewNotifier(session, st.Profiles, st.Dependents, st.Dialog, cfg.AdminChatIDs, loc, nil, logger)
	guard := moderation.NewGuard(st.Profiles, notifier, cfg.OffTopicLimit, logger)

	handler := conversation.NewHandler(conversation.Deps{
		Profiles:     st.Profiles,
		States:       st.FSM,
		Dependents:   st.Dependents,
		Waitlist:     st.Waitlist,
		History:      conversation.NewHistory(st.Dialog, cache, logger),
		Renderer:     conversation.NewRenderer(st.Profiles, nil, logger),
		Recognizer:   recognizer,
		Templates:    intentCfg,
		Relevance:    relevance,
		Corrector:    corrector,
		Responder:    responder,
		Slots:        engine,
		Booker:       coordinator,
		Guard:        guard,
		Admins:       notifier,
		Metrics:      botMetrics,
		SlotDuration: cfg.SlotDuration,
		Logger:       logger,
		Now:          func() time.Time { return time.Now().In(loc) },
	})
	bot := telegram.NewBot(session, tgCfg, handler, guard, logger)

	sweeps := scheduler.New(st.Lessons, notifier, scheduler.Config{
		ReminderSpec:   cfg.ReminderSweepSpec,
		CompletionSpec: cfg.CompletionSweepSpec,
	}, botMetrics, logger)
	if err := sweeps.Start(ctx); err != nil {
		logger.Error("scheduler start failed", "error", err)
		os.Exit(1)
	}

	probes := map[string]ops.Probe{
		"postgres": pool.Ping,
	}
	if cache != nil {
		probes["redis"] = func(ctx context.Context) error { return cache.Ping(ctx).Err() }
	}
	opsSrv := ops.NewServer(":"+cfg.OpsPort, reg, probes, logger)
	go func() {
		if err := opsSrv.Start(); err != nil {
			logger.Error("ops server failed", "error", err)
		}
	}()

	go bot.Start()
	logger.Info("bot started",
		"env", cfg.Env,
		"calendar", cfg.CalendarEnabled,
		"sheets", cfg.SheetsEnabled,
		"timezone", cfg.Timezone)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down...")
	bot.Stop()
	sweeps.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := opsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown failed", "error", err)
	}
	cancel()
	logger.Info("bye")
}
