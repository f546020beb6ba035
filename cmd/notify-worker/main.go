package main

import (
	"os"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/medagenda/clinic-scheduling/internal/config"
	"github.com/medagenda/clinic-scheduling/internal/notify"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "notify-worker").Logger()
	log.Info().Msg("notify-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	log.Info().
		Str("env", cfg.Env).
		Int("concurrency", cfg.NotifyWorkers).
		Msg("running notification worker")

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisQueueDB,
		},
		asynq.Config{
			Concurrency: cfg.NotifyWorkers,
			Queues: map[string]int{
				notify.QueueNotifications: 1,
			},
		},
	)

	// asynq.Server handles SIGINT/SIGTERM itself and drains in-flight tasks.
	if err := srv.Run(notify.NewServeMux(log)); err != nil {
		log.Fatal().Err(err).Msg("notification worker stopped with error")
	}

	log.Info().Msg("notify-worker stopped")
}
