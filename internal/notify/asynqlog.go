package notify

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// AsynqLogger routes asynq server logs through zerolog.
type AsynqLogger struct {
	Logger zerolog.Logger
}

var _ asynq.Logger = AsynqLogger{}

func (l AsynqLogger) Debug(args ...any) { l.Logger.Debug().Msg(fmt.Sprint(args...)) }
func (l AsynqLogger) Info(args ...any)  { l.Logger.Info().Msg(fmt.Sprint(args...)) }
func (l AsynqLogger) Warn(args ...any)  { l.Logger.Warn().Msg(fmt.Sprint(args...)) }
func (l AsynqLogger) Error(args ...any) { l.Logger.Error().Msg(fmt.Sprint(args...)) }
func (l AsynqLogger) Fatal(args ...any) { l.Logger.Fatal().Msg(fmt.Sprint(args...)) }

// ErrorHandler logs tasks that failed after processing.
func ErrorHandler(logger zerolog.Logger) asynq.ErrorHandler {
	return asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		logger.Error().
			Err(err).
			Str("task_type", task.Type()).
			Int("retried", retried).
			Int("max_retry", maxRetry).
			Msg("notification task failed")
	})
}
