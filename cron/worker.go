package cron

import (
	"context"
	"encoding/json"
	"time"

	"slotbook/config"
	"slotbook/models"
	"slotbook/services/notification"
	"slotbook/utils"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// InitNotifyWorker runs the async notification worker in background. ctx
// cancellation stops the redis monitor; the worker itself lives for the
// process.
func InitNotifyWorker(ctx context.Context, sender notification.Sender) {
	logger := utils.GetLogger()

	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(notification.TypeNotifyDispatch, handleNotifyTask(sender, logger))

	go monitorQueueRedis(ctx, logger)

	go func() {
		logger.Info("starting notification worker")
		const maxAttempts = 5

		for attempt := 1; attempt <= maxAttempts; attempt++ {
			if err := srv.Run(mux); err != nil {
				logger.Error("notification worker failed to start",
					zap.Int("attempt", attempt), zap.Int("maxAttempts", maxAttempts), zap.Error(err))

				if attempt == maxAttempts {
					logger.Fatal("notification worker exhausted startup attempts")
				}
				time.Sleep(time.Duration(attempt*2) * time.Second)
			} else {
				break
			}
		}
	}()
}

func handleNotifyTask(sender notification.Sender, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var intent models.NotificationIntent
		if err := json.Unmarshal(task.Payload(), &intent); err != nil {
			logger.Error("notification task has invalid payload", zap.Error(err))
			return err
		}

		if err := sender.Send(ctx, intent); err != nil {
			logger.Error("notification send failed",
				zap.String("transactionID", intent.TransactionID), zap.Error(err))
			return err
		}
		return nil
	}
}

// monitorQueueRedis pings the queue's redis periodically so a lost
// connection shows up in the logs before deliveries silently stall.
func monitorQueueRedis(ctx context.Context, logger *zap.Logger) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})
	defer client.Close()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.Ping(ctx).Err(); err != nil {
				logger.Warn("notification queue redis unreachable", zap.Error(err))
			}
		}
	}
}
