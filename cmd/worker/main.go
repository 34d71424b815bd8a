package main

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/mvallejo-dev/backend-convenios/internal/config"
	"github.com/mvallejo-dev/backend-convenios/internal/notify"
	"github.com/mvallejo-dev/backend-convenios/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "convenios")
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	redisOpts, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}

	srv := asynq.NewServer(redisOpts, asynq.Config{
		Concurrency: envInt("WORKER_CONCURRENCY", 10),
		Queues: map[string]int{
			notify.QueueDefault: 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("task", task.Type()).Msg("task failed")
		}),
	})

	webhook := &notify.Webhook{
		URL:    cfg.OrderWebhookURL,
		Secret: cfg.OrderWebhookSecret,
		Client: notify.HTTPClient(envInt("WEBHOOK_TIMEOUT_MS", 5000)),
		Logger: &logger,
	}

	logger.Info().Msg("worker starting")
	if err := srv.Run(webhook.Mux()); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}
