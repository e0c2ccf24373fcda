package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"slotbook/models"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TypeNotifyDispatch is the asynq task type consumed by the worker.
const TypeNotifyDispatch = "notify:dispatch"

// AsynqDispatcher enqueues intents on the notification queue. The
// transaction id doubles as the asynq task id, so a redelivered webhook that
// recomputes the same id collapses into the task already enqueued.
type AsynqDispatcher struct {
	client *asynq.Client
	logger *zap.Logger
}

func NewAsynqDispatcher(client *asynq.Client, logger *zap.Logger) *AsynqDispatcher {
	return &AsynqDispatcher{client: client, logger: logger}
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, intent models.NotificationIntent) error {
	payload, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("marshal notification intent: %w", err)
	}

	task := asynq.NewTask(TypeNotifyDispatch, payload)
	_, err = d.client.EnqueueContext(ctx, task,
		asynq.TaskID(intent.TransactionID),
		asynq.MaxRetry(5),
		// Completed task ids stay reserved long past the processor's
		// redelivery horizon.
		asynq.Retention(24*time.Hour),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		d.logger.Debug("notification already dispatched",
			zap.String("transactionID", intent.TransactionID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}

	d.logger.Info("notification dispatched",
		zap.String("transactionID", intent.TransactionID),
		zap.String("workflow", intent.Workflow))
	return nil
}

// LogSender is the default Sender used when no external notifier is wired;
// it records the intent and succeeds.
type LogSender struct {
	Logger *zap.Logger
}

func (s *LogSender) Send(ctx context.Context, intent models.NotificationIntent) error {
	s.Logger.Info("notification sent",
		zap.String("transactionID", intent.TransactionID),
		zap.String("workflow", intent.Workflow),
		zap.String("recipient", intent.Recipient),
		zap.String("role", string(intent.Role)))
	return nil
}
