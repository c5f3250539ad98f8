// Command postventa runs the outreach recommendation service.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"postventa/internal/api"
	"postventa/internal/notify"
	"postventa/internal/observability"
	"postventa/internal/outreach"
	"postventa/internal/outreach/llm"
)

func main() {
	var (
		addr       = flag.String("addr", envOr("POSTVENTA_ADDR", ":8080"), "listen address")
		configPath = flag.String("config", os.Getenv("POSTVENTA_CONFIG"), "optional YAML config file")
	)
	flag.Parse()

	logger := observability.NewLogger(observability.ConfigFromEnv())

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			Environment:      envOr("SENTRY_ENVIRONMENT", "production"),
			TracesSampleRate: 0.2,
		})
		if err != nil {
			logger.Warn("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			logger.Info("sentry enabled")
		}
	}

	fileCfg, err := loadConfigFile(*configPath)
	if err != nil {
		logger.Error("config file load failed", "path", *configPath, "error", err)
		os.Exit(1)
	}

	metrics := observability.NewMetrics(observability.MetricsConfigFromEnv())
	b := selectBackends(logger)
	defer func() { _ = b.store.Close() }()

	schedCfg := outreach.SchedulerConfigFromEnv()
	fileCfg.applyScheduler(&schedCfg)

	smtpCfg := notify.SMTPConfigFromEnv()
	fileCfg.applySMTP(&smtpCfg)
	var dispatcher notify.Dispatcher
	if smtpCfg.Configured() {
		dispatcher = notify.NewSMTPDispatcher(smtpCfg)
		logger.Info("smtp notifications enabled", "host", smtpCfg.Host, "recipients", len(smtpCfg.Recipients))
	} else {
		dispatcher = notify.NewLogDispatcher(logger)
		logger.Info("smtp not configured, notifications go to the log")
	}
	queue := notify.NewQueue(dispatcher, notify.DefaultQueueSize, logger, metrics)
	defer queue.Close()

	llmCfg := llm.ConfigFromEnv()
	provider := llm.NewOpenAIProvider(llmCfg)
	var composer outreach.Composer
	if provider.Available() {
		composer = outreach.NewGenerativeComposer(provider, llmCfg, logger)
		logger.Info("generative composer enabled", "model", llmCfg.Model)
	} else {
		composer = outreach.TemplateComposer{}
		logger.Info("template composer enabled")
	}

	candidates := outreach.NewCandidateSource(b.candidates)
	svc := outreach.NewService(b.store, b.recs, candidates, composer, b.activity, queue, logger)
	guard := outreach.NewCooldownGuard(b.recs, schedCfg.CooldownDays, schedCfg.DailyLimit, schedCfg.Reasons)
	scheduler := outreach.NewScheduler(svc, candidates, guard, schedCfg, logger, metrics)
	if err := scheduler.Start(); err != nil {
		logger.Error("scheduler start failed", "error", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	mux := http.NewServeMux()
	srv := api.NewServer(mux, b.store, logger, metrics)
	srv.RegisterSystemRoutes()
	api.NewRecommendationServer(srv, svc).RegisterRecommendationRoutes()

	handler := api.ApplyMiddlewares(mux,
		api.RequestIDMiddleware(),
		api.LoggingMiddleware(logger),
		api.RateLimitMiddleware(api.DefaultRateLimitConfig(), logger),
		observability.MetricsMiddleware(metrics),
	)

	httpSrv := &http.Server{
		Addr:              *addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", *addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			sentry.CaptureException(err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
